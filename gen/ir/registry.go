package ir

import "sort"

// Registry is the canonical table of known type descriptors plus the record
// of which native imports the current compilation has used. Each run owns an
// exclusive instance; there is no process-wide table.
type Registry struct {
	protos map[string]Descriptor

	// templateParams maps source names to the descriptor they become inside a
	// C++ template parameter list. Python str is the one current entry: it is
	// an object standalone but std::string inside a container.
	templateParams map[string]Descriptor

	cimports map[string]bool
	usesCPP  bool
}

// NewRegistry builds a registry populated with the builtin prototypes.
func NewRegistry() *Registry {
	r := &Registry{
		protos:   make(map[string]Descriptor),
		cimports: make(map[string]bool),
	}

	add := func(d Descriptor) { r.protos[d.PyName] = d }

	// Machine primitives.
	add(Descriptor{PyName: "int", CyName: "long", Native: true})
	add(Descriptor{PyName: "float", CyName: "double", Native: true})
	add(Descriptor{PyName: "bool", CyName: "bint", Native: true})
	add(Descriptor{PyName: "None", CyName: "void", Native: true, Void: true})

	// Interpreter containers, kept as-is (reference-counted fallback).
	add(Descriptor{PyName: "str", CyName: "object"})
	add(Descriptor{PyName: "list", CyName: "list"})
	add(Descriptor{PyName: "dict", CyName: "dict"})
	add(Descriptor{PyName: "set", CyName: "set"})

	// Native containers, uniquely owned on the heap.
	add(Descriptor{PyName: "List", CyName: "vector", Container: true, Native: true, Own: OwnUnique, Header: "vector"})
	add(Descriptor{PyName: "Dict", CyName: "map", Container: true, Native: true, Own: OwnUnique, Header: "map"})
	add(Descriptor{PyName: "Set", CyName: "set", Container: true, Native: true, Own: OwnUnique, Header: "set"})

	// Numeric view over a strided buffer; element kind and dimensionality are
	// refined from annotation arguments.
	add(Descriptor{PyName: "ndarray", CyName: "object", Native: true, View: true, Dtype: "double", NDim: 1})

	add(Descriptor{PyName: "object", CyName: "object"})

	r.templateParams = map[string]Descriptor{
		"str": {PyName: "str", CyName: "string", Container: true, Native: true, Header: "string"},
	}

	return r
}

// Resolve returns a fresh, independently mutable copy of the descriptor for
// name. Unknown names degrade to the generic object descriptor; Resolve never
// fails, so the pipeline can always render something.
func (r *Registry) Resolve(name string) Descriptor {
	proto, ok := r.protos[name]
	if !ok {
		proto = r.protos["object"]
	}
	return proto.Clone()
}

// Known reports whether name resolves to a specific prototype rather than
// degrading to object.
func (r *Registry) Known(name string) bool {
	_, ok := r.protos[name]
	return ok
}

// Parameterize attaches template parameters to a container descriptor and
// marks its header dependency as used. Parameters whose standalone type has a
// distinct in-template form (str) are substituted from the side table, and
// their headers recorded too. Non-container bases are returned unchanged.
func (r *Registry) Parameterize(d Descriptor, params []Descriptor) Descriptor {
	if !d.Container {
		return d
	}
	out := d.Clone()
	out.Params = make([]Descriptor, len(params))
	for i, p := range params {
		if sub, ok := r.templateParams[p.PyName]; ok {
			p = sub.Clone()
		}
		if p.Header != "" {
			r.markHeader(p.Header, p.CyName)
		}
		out.Params[i] = p
	}
	r.markHeader(out.Header, out.CyName)
	r.usesCPP = true
	if out.Own != OwnValue {
		r.AddCimport("from cython.operator cimport dereference as deref")
	}
	return out
}

func (r *Registry) markHeader(header, name string) {
	if header == "" {
		return
	}
	r.AddCimport("from libcpp." + header + " cimport " + name)
}

// MarkNumPy records that the compilation references NumPy arrays, pulling in
// both the C-level and Python-level imports.
func (r *Registry) MarkNumPy() {
	r.AddCimport("cimport numpy as np")
	r.AddCimport("import numpy as np")
}

// AddCimport records an import statement needed by the generated module.
func (r *Registry) AddCimport(stmt string) {
	r.cimports[stmt] = true
}

// Cimports returns the recorded import statements, sorted.
func (r *Registry) Cimports() []string {
	out := make([]string, 0, len(r.cimports))
	for s := range r.cimports {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// UsesCPP reports whether any C++ container type was instantiated; this
// selects the c++ language in the generated build script.
func (r *Registry) UsesCPP() bool {
	return r.usesCPP
}
