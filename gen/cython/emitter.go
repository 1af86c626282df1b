// Package cython renders the annotated tree into the three output artifacts:
// the .pyx implementation, the .pxd public interface, and the setup.py build
// script. Rendering is best-effort: untranslatable constructs degrade to a
// passthrough form or a visible placeholder comment, never an abort.
package cython

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/broady/pyxgen"
	"github.com/broady/pyxgen/gen/analyze"
	"github.com/broady/pyxgen/gen/ir"
	"github.com/broady/pyxgen/pyast"
)

// Emitter renders the .pyx implementation file.
type Emitter struct {
	buf      bytes.Buffer
	indent   int
	res      *analyze.Result
	reg      *ir.Registry
	opts     pyxgen.Options
	class    *pyast.ClassDef
	warnings []ir.Warning
}

// EmitModule renders the whole module, returning the .pyx text and every
// degradation warning produced along the way.
func EmitModule(mod *pyast.Module, res *analyze.Result, reg *ir.Registry, opts pyxgen.Options) (string, []ir.Warning) {
	e := &Emitter{res: res, reg: reg, opts: opts}
	e.header()
	for _, stmt := range mod.Body {
		e.stmt(stmt)
	}
	return e.buf.String(), e.warnings
}

func (e *Emitter) header() {
	for _, item := range e.opts.Directives.Items() {
		e.write("# cython: " + item.Key + "=" + item.Value)
	}
	e.blank()

	var cimports, imports []string
	for _, stmt := range e.reg.Cimports() {
		if strings.Contains(stmt, "cimport") {
			cimports = append(cimports, stmt)
		} else {
			imports = append(imports, stmt)
		}
	}
	if len(cimports) > 0 {
		for _, stmt := range cimports {
			e.write(stmt)
		}
		e.blank()
	}
	if len(imports) > 0 {
		for _, stmt := range imports {
			e.write(stmt)
		}
		e.blank()
	}
}

func (e *Emitter) write(text string) {
	e.buf.WriteString(strings.Repeat("    ", e.indent))
	e.buf.WriteString(text)
	e.buf.WriteString("\n")
}

func (e *Emitter) blank() {
	e.buf.WriteString("\n")
}

func (e *Emitter) warnf(line int, format string, args ...any) {
	e.warnings = append(e.warnings, ir.Warning{
		Code:    string(pyxgen.CodeTranslation),
		Message: fmt.Sprintf(format, args...),
		Line:    line,
	})
}

func (e *Emitter) stmt(s pyast.Stmt) {
	switch n := s.(type) {
	case *pyast.Import:
		// Source-level imports are replaced by the generated cimport block.
	case *pyast.ClassDef:
		e.classDef(n)
	case *pyast.FuncDef:
		e.funcDef(n)
	case *pyast.AnnAssign:
		e.annAssign(n)
	case *pyast.Assign:
		e.assign(n)
	case *pyast.AugAssign:
		e.augAssign(n)
	case *pyast.For:
		e.write("for " + e.expr(n.Target) + " in " + e.expr(n.Iter) + ":")
		e.suite(n.Body)
	case *pyast.While:
		e.write("while " + e.expr(n.Cond) + ":")
		e.suite(n.Body)
	case *pyast.If:
		e.ifStmt(n, "if")
	case *pyast.Return:
		if n.Value == nil {
			e.write("return")
		} else {
			e.write("return " + e.expr(n.Value))
		}
	case *pyast.ExprStmt:
		e.write(e.expr(n.X))
	case *pyast.Pass:
		e.write("pass")
	default:
		if text := pyast.Unparse(n); text != "" {
			e.write(text)
			return
		}
		e.write("# [pyxgen] unhandled statement: " + pyast.KindName(n))
		e.warnf(n.Pos().Line, "no rule for %s statement, emitted placeholder", pyast.KindName(n))
	}
}

func (e *Emitter) suite(body []pyast.Stmt) {
	e.indent++
	if len(body) == 0 {
		e.write("pass")
	}
	for _, s := range body {
		e.stmt(s)
	}
	e.indent--
}

func (e *Emitter) ifStmt(n *pyast.If, keyword string) {
	e.write(keyword + " " + e.expr(n.Cond) + ":")
	e.suite(n.Body)
	if len(n.Else) == 0 {
		return
	}
	if len(n.Else) == 1 {
		if nested, ok := n.Else[0].(*pyast.If); ok {
			e.ifStmt(nested, "elif")
			return
		}
	}
	e.write("else:")
	e.suite(n.Else)
}

func (e *Emitter) classDef(n *pyast.ClassDef) {
	info := e.res.Classes[n]
	e.class = n
	defer func() { e.class = nil }()

	e.write("cdef class " + n.Name + ":")
	e.indent++
	if n.Doc != "" {
		e.write("'''" + n.Doc + "'''")
	}

	wrote := n.Doc != ""
	if info != nil && len(info.Attrs) > 0 {
		for _, attr := range info.Attrs {
			e.write("cdef " + attr.Type.CythonType() + " " + attr.Name)
		}
		e.blank()
		wrote = true
	}

	// Uniquely-owned attributes need allocation and release hooks. One
	// statement per attribute, order-independent.
	if info != nil && len(info.Owned) > 0 {
		e.write("def __cinit__(self):")
		e.indent++
		for _, attr := range info.Owned {
			e.write("self." + attr.Name + " = new " + attr.Type.BaseType() + "()")
		}
		e.indent--
		e.blank()
		e.write("def __dealloc__(self):")
		e.indent++
		for _, attr := range info.Owned {
			e.write("del self." + attr.Name)
		}
		e.indent--
		e.blank()
		wrote = true
	}

	for _, item := range n.Body {
		if fn, ok := item.(*pyast.FuncDef); ok {
			e.funcDef(fn)
			wrote = true
		}
	}
	if !wrote {
		e.write("pass")
	}
	e.indent--
}

func (e *Emitter) funcDef(n *pyast.FuncDef) {
	info := e.res.Funcs[n]
	hook := n.Name == "__init__" || n.Name == "__cinit__" || n.Name == "__dealloc__"

	keyword := "cpdef"
	if hook || !e.opts.DefaultToCpdef {
		keyword = "def"
	}

	var parts []string
	if e.class != nil {
		if keyword == "cpdef" {
			parts = append(parts, e.class.Name+" self")
		} else {
			parts = append(parts, "self")
		}
	}
	for _, p := range info.Params {
		if keyword == "cpdef" {
			parts = append(parts, p.Type.CythonType()+" "+p.Name)
		} else {
			parts = append(parts, p.Name)
		}
	}

	sig := n.Name + "(" + strings.Join(parts, ", ") + "):"
	if keyword == "cpdef" {
		ret := info.Return.CythonType()
		if info.Return.Void {
			ret = "void"
		}
		e.write("cpdef " + ret + " " + sig)
	} else {
		e.write("def " + sig)
	}

	e.indent++
	if n.Doc != "" {
		e.write("'''" + n.Doc + "'''")
	}
	nogil := info.Nogil && e.opts.AutoNogil
	if nogil {
		e.write("with nogil:")
		e.indent++
	}
	if len(n.Body) == 0 {
		e.write("pass")
	}
	for _, s := range n.Body {
		e.stmt(s)
	}
	if nogil {
		e.indent--
	}
	e.indent--
	e.blank()
}

func (e *Emitter) annAssign(n *pyast.AnnAssign) {
	typ := e.res.Types[n]
	target, isName := n.Target.(*pyast.Name)
	if !isName {
		e.assignFallback(n.Target, n.Value)
		return
	}

	if e.res.Fresh[n] {
		decl := "cdef " + typ.CythonType() + " " + target.ID
		switch {
		case n.Value == nil:
			e.write(decl)
		case typ.Own == ir.OwnRawPointer && isNone(n.Value):
			e.write(decl + " = NULL")
		case typ.Own == ir.OwnUnique && isEmptyDisplay(n.Value):
			e.write(decl + " = new " + typ.BaseType() + "()")
		default:
			e.write(decl + " = " + e.expr(n.Value))
		}
		return
	}
	if n.Value == nil {
		return
	}
	e.writeBinding(target, typ, n.Value)
}

func (e *Emitter) assign(n *pyast.Assign) {
	// Assigning an empty structural literal to an owned container slot must
	// allocate; owned heap slots cannot receive literals directly.
	if sub, ok := n.Target.(*pyast.Subscript); ok {
		if outer, found := e.typeOf(sub.X); found && outer.Container {
			if slot, found := ir.ElementType(outer); found && slot.Own == ir.OwnUnique && slot.Container && isEmptyDisplay(n.Value) {
				e.write(e.expr(n.Target) + " = new " + slot.BaseType() + "()")
				return
			}
		}
	}

	if target, ok := n.Target.(*pyast.Name); ok {
		typ := e.res.Types[n]
		if e.res.Fresh[n] {
			if typ.Own == ir.OwnRawPointer && isNone(n.Value) {
				e.write("cdef " + typ.CythonType() + " " + target.ID + " = NULL")
				return
			}
			e.write("cdef " + typ.CythonType() + " " + target.ID + " = " + e.expr(n.Value))
			return
		}
		e.writeBinding(target, typ, n.Value)
		return
	}

	if attr, ok := n.Target.(*pyast.Attribute); ok {
		if typ, found := e.typeOf(attr); found && typ.Own == ir.OwnRawPointer {
			if isNone(n.Value) {
				e.write(e.expr(attr) + " = NULL")
			} else {
				e.write("deref(" + e.expr(attr) + ") = " + e.expr(n.Value))
			}
			return
		}
	}

	e.assignFallback(n.Target, n.Value)
}

// writeBinding renders a rebinding of an already-declared name. Raw-pointer
// targets write through the pointer rather than reseating it; None resets to
// the null sentinel.
func (e *Emitter) writeBinding(target *pyast.Name, typ ir.Descriptor, value pyast.Expr) {
	if typ.Own == ir.OwnRawPointer {
		if isNone(value) {
			e.write(target.ID + " = NULL")
			return
		}
		e.write("deref(" + target.ID + ") = " + e.expr(value))
		return
	}
	e.write(target.ID + " = " + e.expr(value))
}

func (e *Emitter) assignFallback(target pyast.Expr, value pyast.Expr) {
	if value == nil {
		e.write(e.expr(target))
		return
	}
	e.write(e.expr(target) + " = " + e.expr(value))
}

func (e *Emitter) augAssign(n *pyast.AugAssign) {
	lhs := e.expr(n.Target)
	if typ, ok := e.typeOf(n.Target); ok && typ.Own == ir.OwnRawPointer {
		lhs = "deref(" + lhs + ")"
	}
	e.write(lhs + " " + n.Op + "= " + e.expr(n.Value))
}

// expr renders an expression, applying container-method translation and
// ownership-aware dereferencing.
func (e *Emitter) expr(x pyast.Expr) string {
	switch n := x.(type) {
	case *pyast.Call:
		return e.call(n)
	case *pyast.Subscript:
		if typ, ok := e.typeOf(n.X); ok && !typ.View && typ.Own != ir.OwnValue {
			return "deref(" + e.expr(n.X) + ")[" + e.expr(n.Index) + "]"
		}
		return e.expr(n.X) + "[" + e.expr(n.Index) + "]"
	case *pyast.Attribute:
		return e.expr(n.X) + "." + n.Attr
	case *pyast.BinOp:
		return e.expr(n.X) + " " + n.Op + " " + e.expr(n.Y)
	case *pyast.Compare:
		return e.expr(n.X) + " " + n.Op + " " + e.expr(n.Y)
	case *pyast.BoolOp:
		return e.expr(n.X) + " " + n.Op + " " + e.expr(n.Y)
	case *pyast.UnaryOp:
		if n.Op == "not" {
			return "not " + e.expr(n.X)
		}
		return n.Op + e.expr(n.X)
	case *pyast.FString:
		return e.fstring(n)
	case *pyast.Tuple:
		parts := make([]string, len(n.Elts))
		for i, elt := range n.Elts {
			parts[i] = e.expr(elt)
		}
		return strings.Join(parts, ", ")
	case *pyast.Name, *pyast.IntLit, *pyast.FloatLit, *pyast.StrLit,
		*pyast.BoolLit, *pyast.NoneLit, *pyast.ListLit, *pyast.SetLit, *pyast.DictLit:
		return pyast.Unparse(n)
	}
	if text := pyast.Unparse(x); text != "" {
		return text
	}
	e.warnf(x.Pos().Line, "no rule for %s expression, emitted placeholder", pyast.KindName(x))
	return "..."
}

func (e *Emitter) call(n *pyast.Call) string {
	if name, ok := n.Func.(*pyast.Name); ok && name.ID == "len" && len(n.Args) == 1 {
		arg := n.Args[0]
		if typ, found := e.typeOf(arg); found {
			switch {
			case typ.View:
				// Length of a view is a direct dimension-size query.
				return e.expr(arg) + ".shape[0]"
			case typ.Own != ir.OwnValue:
				return "deref(" + e.expr(arg) + ").size()"
			}
		}
	}

	if attr, ok := n.Func.(*pyast.Attribute); ok {
		if rendered, done := e.methodCall(n, attr); done {
			return rendered
		}
	}

	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = e.expr(arg)
	}
	return e.expr(n.Func) + "(" + strings.Join(args, ", ") + ")"
}

// methodCall translates recognized container methods, inserting one deref
// layer per owned level. A mapping holding owned containers needs two:
// subscript the dereferenced map, then deref the owned element.
func (e *Emitter) methodCall(n *pyast.Call, attr *pyast.Attribute) (string, bool) {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = e.expr(arg)
	}
	joined := strings.Join(args, ", ")

	if sub, ok := attr.X.(*pyast.Subscript); ok {
		outer, found := e.typeOf(sub.X)
		if found && outer.Container && outer.Own != ir.OwnValue {
			if slot, ok := ir.ElementType(outer); ok && slot.Container && slot.Own == ir.OwnUnique {
				if cpp, ok := ir.TranslateMethod(slot.CyName, attr.Attr); ok {
					return fmt.Sprintf("deref(deref(%s)[%s]).%s(%s)",
						e.expr(sub.X), e.expr(sub.Index), cpp, joined), true
				}
			}
		}
	}

	typ, found := e.typeOf(attr.X)
	if !found || !typ.Container {
		return "", false
	}
	cpp, ok := ir.TranslateMethod(typ.CyName, attr.Attr)
	if !ok {
		// Unmapped methods pass through unchanged, best-effort.
		return "", false
	}
	recv := e.expr(attr.X)
	if typ.Own != ir.OwnValue {
		recv = "deref(" + recv + ")"
	}
	return recv + "." + cpp + "(" + joined + ")", true
}

// fstring re-renders each embedded expression, dereferencing raw pointers so
// the formatted value is the pointed-to value, not an address.
func (e *Emitter) fstring(n *pyast.FString) string {
	var sb strings.Builder
	sb.WriteString("f'")
	for _, part := range n.Parts {
		if part.Expr == nil {
			text := strings.ReplaceAll(part.Text, "{", "{{")
			text = strings.ReplaceAll(text, "}", "}}")
			sb.WriteString(text)
			continue
		}
		rendered := e.expr(part.Expr)
		if typ, ok := e.typeOf(part.Expr); ok && typ.Own == ir.OwnRawPointer {
			rendered = "deref(" + rendered + ")"
		}
		sb.WriteString("{" + rendered + "}")
	}
	sb.WriteString("'")
	return sb.String()
}

// typeOf resolves a cached or derivable descriptor for an expression. The
// annotator caches name reads; attribute and subscript receivers resolve
// through the class catalog and container element types.
func (e *Emitter) typeOf(x pyast.Expr) (ir.Descriptor, bool) {
	if d, ok := e.res.Types[x]; ok {
		return d, true
	}
	switch n := x.(type) {
	case *pyast.Attribute:
		if base, ok := n.X.(*pyast.Name); ok && base.ID == "self" && e.class != nil {
			if info := e.res.Classes[e.class]; info != nil {
				d, ok := info.ByName[n.Attr]
				return d, ok
			}
		}
	case *pyast.Subscript:
		if outer, ok := e.typeOf(n.X); ok {
			return ir.ElementType(outer)
		}
	}
	return ir.Descriptor{}, false
}

func isNone(x pyast.Expr) bool {
	_, ok := x.(*pyast.NoneLit)
	return ok
}

// isEmptyDisplay reports whether x is an empty list, set, or dict literal.
func isEmptyDisplay(x pyast.Expr) bool {
	switch n := x.(type) {
	case *pyast.ListLit:
		return len(n.Elts) == 0
	case *pyast.SetLit:
		return len(n.Elts) == 0
	case *pyast.DictLit:
		return len(n.Keys) == 0
	}
	return false
}
