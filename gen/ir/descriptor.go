// Package ir holds the type-descriptor model shared by the annotation and
// emission passes: the canonical registry of known source types and the
// derived descriptors attached to every typed tree position.
package ir

import "strings"

// Ownership describes the storage strategy of a value in the generated code.
type Ownership int

const (
	// OwnValue is plain value storage, no indirection.
	OwnValue Ownership = iota

	// OwnUnique is a uniquely-owned heap object: allocated with new in
	// __cinit__, released with del in __dealloc__, accessed through deref().
	OwnUnique

	// OwnRawPointer is a nullable raw pointer to a primitive, the only
	// representation of optionality for native scalars.
	OwnRawPointer
)

// Descriptor describes the resolved native type of one source-level position.
//
// Registry entries are prototypes: Resolve and Parameterize always hand out
// independent copies, so a Descriptor held by a caller is never shared with
// the registry and may be freely modified.
type Descriptor struct {
	// PyName is the source-level spelling (int, List, ndarray, ...).
	PyName string

	// CyName is the rendered Cython base name (long, vector, ...).
	CyName string

	// Native reports that values of this type can be touched without the GIL:
	// machine primitives, C++ containers via their pointer, and memoryviews.
	Native bool

	// Container marks template-parameterized C++ collection types.
	Container bool

	// View marks NumPy-backed typed memoryviews.
	View bool

	// Void marks the no-value return type.
	Void bool

	// Own is the storage strategy.
	Own Ownership

	// Params holds template parameters for Container descriptors, outermost
	// first (key then value for map).
	Params []Descriptor

	// Header is the libcpp module providing CyName, used to build cimports.
	Header string

	// Dtype and NDim describe View descriptors: element kind and
	// dimensionality. Dtype defaults to double, NDim to 1.
	Dtype string
	NDim  int
}

// IsObject reports whether this is the generic opaque Python-object type.
func (d Descriptor) IsObject() bool {
	return !d.Native && !d.Container && !d.View && !d.Void && d.CyName == "object"
}

// Clone returns a deep copy; Params never alias the receiver's.
func (d Descriptor) Clone() Descriptor {
	out := d
	if len(d.Params) > 0 {
		out.Params = make([]Descriptor, len(d.Params))
		for i, p := range d.Params {
			out.Params[i] = p.Clone()
		}
	}
	return out
}

// CythonType renders the full Cython type string, including template
// parameters, the memoryview dimension suffix, and a trailing * for owned or
// raw-pointer storage.
func (d Descriptor) CythonType() string {
	if d.View {
		return d.viewType()
	}
	base := d.BaseType()
	if d.Own != OwnValue {
		return base + "*"
	}
	return base
}

// BaseType renders the type without pointer decoration, the form used after
// new in allocation statements.
func (d Descriptor) BaseType() string {
	if d.View {
		return d.viewType()
	}
	if d.Container && len(d.Params) > 0 {
		params := make([]string, len(d.Params))
		for i, p := range d.Params {
			params[i] = p.CythonType()
		}
		return d.CyName + "[" + strings.Join(params, ", ") + "]"
	}
	return d.CyName
}

// viewType renders the memoryview form: element kind, one slot per dimension,
// and a contiguity marker on the innermost dimension (double[:, ::1]).
func (d Descriptor) viewType() string {
	ndim := d.NDim
	if ndim < 1 {
		ndim = 1
	}
	dtype := d.Dtype
	if dtype == "" {
		dtype = "double"
	}
	return dtype + "[" + strings.Repeat(":, ", ndim-1) + "::1]"
}

// ElementType returns the type stored at a subscript position of d: the map
// value type, the sequence or set element type, or the view's scalar element.
func ElementType(d Descriptor) (Descriptor, bool) {
	switch {
	case d.View:
		dtype := d.Dtype
		if dtype == "" {
			dtype = "double"
		}
		return Descriptor{PyName: "float", CyName: dtype, Native: true}, true
	case d.Container && d.CyName == "map" && len(d.Params) == 2:
		return d.Params[1], true
	case d.Container && len(d.Params) >= 1:
		return d.Params[0], true
	}
	return Descriptor{}, false
}

// Warning is a non-fatal diagnostic attached to the generation result.
// Nothing is silently dropped: every degradation records one of these.
type Warning struct {
	// Code is the machine-readable condition (type_inference, translation).
	Code string

	// Message describes the degradation and what was substituted.
	Message string

	// Line is the 1-based source line, 0 when not tied to a position.
	Line int
}
