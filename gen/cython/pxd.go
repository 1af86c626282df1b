package cython

import (
	"bytes"
	"strings"

	"github.com/broady/pyxgen"
	"github.com/broady/pyxgen/gen/analyze"
	"github.com/broady/pyxgen/gen/ir"
	"github.com/broady/pyxgen/pyast"
)

// interfaceEmitter renders the .pxd public-interface file: the subset of
// declarations other native modules link against. It shares the registry's
// type formatting with the implementation emitter.
type interfaceEmitter struct {
	buf    bytes.Buffer
	indent int
	res    *analyze.Result
	cpdef  bool
}

// EmitInterface renders the .pxd text for mod. It returns "" when the module
// exposes nothing linkable, so the caller can skip writing the file. With
// DefaultToCpdef off, every function uses the interpreter calling convention,
// so only attribute declarations remain.
func EmitInterface(mod *pyast.Module, res *analyze.Result, reg *ir.Registry, opts pyxgen.Options) string {
	e := &interfaceEmitter{res: res, cpdef: opts.DefaultToCpdef}

	var body bytes.Buffer
	e.buf = bytes.Buffer{}
	wrote := false
	for _, stmt := range mod.Body {
		switch n := stmt.(type) {
		case *pyast.ClassDef:
			e.classDef(n)
			wrote = true
		case *pyast.FuncDef:
			if sig, ok := e.signature(n, ""); ok {
				e.write(sig)
				wrote = true
			}
		}
	}
	if !wrote {
		return ""
	}
	body = e.buf

	var out bytes.Buffer
	out.WriteString("# Generated by pyxgen. Do not edit.\n")
	var header []string
	for _, stmt := range reg.Cimports() {
		// Only imports relevant to type declarations belong in the header.
		if strings.Contains(stmt, "libcpp") || strings.Contains(stmt, "numpy") {
			header = append(header, stmt)
		}
	}
	for _, stmt := range header {
		out.WriteString(stmt + "\n")
	}
	out.WriteString("\n")
	out.Write(body.Bytes())
	return out.String()
}

func (e *interfaceEmitter) write(text string) {
	e.buf.WriteString(strings.Repeat("    ", e.indent))
	e.buf.WriteString(text)
	e.buf.WriteString("\n")
}

func (e *interfaceEmitter) classDef(n *pyast.ClassDef) {
	info := e.res.Classes[n]
	e.write("cdef class " + n.Name + ":")
	e.indent++

	wrote := false
	if info != nil {
		for _, attr := range info.Attrs {
			if !linkable(attr.Type) {
				// Pure interpreter objects are not part of the native surface.
				continue
			}
			decl := "cdef "
			if attr.Type.View {
				// Memoryviews may be public: other native modules read the
				// buffer directly.
				decl = "cdef public "
			}
			e.write(decl + attr.Type.CythonType() + " " + attr.Name)
			wrote = true
		}
	}
	for _, item := range n.Body {
		fn, ok := item.(*pyast.FuncDef)
		if !ok {
			continue
		}
		if sig, ok := e.signature(fn, n.Name); ok {
			e.write(sig)
			wrote = true
		}
	}
	if !wrote {
		// Target grammars disallow empty bodies; render an explicit marker.
		e.write("pass")
	}
	e.indent--
	e.write("")
}

// signature renders a cpdef declaration line for fn, or ok=false for methods
// restricted to the interpreter calling convention.
func (e *interfaceEmitter) signature(fn *pyast.FuncDef, className string) (string, bool) {
	if !e.cpdef || isInterpreterOnly(fn.Name) {
		return "", false
	}
	info := e.res.Funcs[fn]
	if info == nil {
		return "", false
	}
	var parts []string
	if className != "" {
		parts = append(parts, "self")
	}
	for _, p := range info.Params {
		parts = append(parts, p.Type.CythonType()+" "+p.Name)
	}
	ret := info.Return.CythonType()
	if info.Return.Void {
		ret = "void"
	}
	return "cpdef " + ret + " " + fn.Name + "(" + strings.Join(parts, ", ") + ")", true
}

// linkable reports whether an attribute type belongs in the native interface:
// native scalars, native containers, and numeric views qualify.
func linkable(d ir.Descriptor) bool {
	return d.Native || d.Container || d.View
}

// isInterpreterOnly marks methods callable only through the interpreter.
func isInterpreterOnly(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}
