package analyze

import (
	"fmt"
	"strings"

	"github.com/broady/pyxgen/gen/ir"
	"github.com/broady/pyxgen/pyast"
)

// Result is the annotation side table. Every typed tree position maps to
// exactly one descriptor; the parsed tree is never mutated.
type Result struct {
	// Types holds the resolved descriptor for declaration statements and for
	// name/attribute/subscript expressions whose type the annotator could
	// determine. The emitter consults it instead of re-deriving types.
	Types map[pyast.Node]ir.Descriptor

	// Fresh marks name-binding statements that bind a name for the first time
	// in any enclosing-or-current scope. Fresh bindings emit a cdef
	// declaration; rebindings emit a bare assignment.
	Fresh map[pyast.Node]bool

	// Funcs holds per-function signature and purity results.
	Funcs map[*pyast.FuncDef]*FuncInfo

	// Classes holds the attribute catalog per class.
	Classes map[*pyast.ClassDef]*ClassInfo

	// ClassOrder preserves source order for interface emission.
	ClassOrder []*pyast.ClassDef

	// Warnings collects every degradation the pass performed.
	Warnings []ir.Warning
}

// FuncInfo carries the resolved signature of one function or method.
type FuncInfo struct {
	Params []ParamType
	Return ir.Descriptor

	// Nogil is set by AnalyzePurity: true when the whole body may execute
	// without interpreter-level synchronization.
	Nogil bool

	// Class is the enclosing class, nil for module-level functions.
	Class *pyast.ClassDef
}

// ParamType is one resolved parameter, in declaration order.
type ParamType struct {
	Name string
	Type ir.Descriptor
}

// ClassInfo is the attribute catalog of one class.
type ClassInfo struct {
	// Attrs lists declared attributes in source order.
	Attrs []Attr

	// Owned is the subset requiring allocation in __cinit__ and release in
	// __dealloc__. Order-independent: attributes do not reference each other
	// at construction time.
	Owned []Attr

	// ByName indexes Attrs for method-body resolution of self.<name>.
	ByName map[string]ir.Descriptor
}

// Attr is one declared class attribute.
type Attr struct {
	Name string
	Type ir.Descriptor
}

// Annotate walks the tree once, class bodies before their methods, resolving
// a descriptor for every typed position. The returned Result feeds the purity
// analyzer and both emitters. The only error condition is a scope imbalance,
// which indicates an internal traversal bug.
func Annotate(mod *pyast.Module, reg *ir.Registry) (*Result, error) {
	a := &annotator{
		reg:    reg,
		scopes: NewScopeStack(),
		res: &Result{
			Types:   make(map[pyast.Node]ir.Descriptor),
			Fresh:   make(map[pyast.Node]bool),
			Funcs:   make(map[*pyast.FuncDef]*FuncInfo),
			Classes: make(map[*pyast.ClassDef]*ClassInfo),
		},
	}
	for _, stmt := range mod.Body {
		if err := a.stmt(stmt, nil); err != nil {
			return nil, err
		}
	}
	return a.res, nil
}

type annotator struct {
	reg    *ir.Registry
	scopes *ScopeStack
	res    *Result
}

func (a *annotator) warnf(line int, code, format string, args ...any) {
	a.res.Warnings = append(a.res.Warnings, ir.Warning{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
	})
}

func (a *annotator) stmt(s pyast.Stmt, class *pyast.ClassDef) error {
	switch n := s.(type) {
	case *pyast.ClassDef:
		return a.classDef(n)
	case *pyast.FuncDef:
		return a.funcDef(n, class)
	case *pyast.AnnAssign:
		a.annAssign(n)
	case *pyast.Assign:
		a.assign(n)
	case *pyast.AugAssign:
		a.expr(n.Target)
		a.expr(n.Value)
	case *pyast.For:
		a.forStmt(n)
		return a.body(n.Body, class)
	case *pyast.While:
		a.expr(n.Cond)
		return a.body(n.Body, class)
	case *pyast.If:
		a.expr(n.Cond)
		if err := a.body(n.Body, class); err != nil {
			return err
		}
		return a.body(n.Else, class)
	case *pyast.Return:
		a.expr(n.Value)
	case *pyast.ExprStmt:
		a.expr(n.X)
	case *pyast.Pass, *pyast.Import:
	}
	return nil
}

func (a *annotator) body(stmts []pyast.Stmt, class *pyast.ClassDef) error {
	for _, s := range stmts {
		if err := a.stmt(s, class); err != nil {
			return err
		}
	}
	return nil
}

// classDef catalogs the class's declared attributes before visiting its
// methods, so method bodies can resolve self.<attr> types.
func (a *annotator) classDef(n *pyast.ClassDef) error {
	a.scopes.Enter(true)

	info := &ClassInfo{ByName: make(map[string]ir.Descriptor)}
	for _, item := range n.Body {
		ann, ok := item.(*pyast.AnnAssign)
		if !ok {
			continue
		}
		target, ok := ann.Target.(*pyast.Name)
		if !ok {
			continue
		}
		typ := a.resolveTypeExpr(ann.Annotation)
		attr := Attr{Name: target.ID, Type: typ}
		info.Attrs = append(info.Attrs, attr)
		info.ByName[target.ID] = typ
		if typ.Own == ir.OwnUnique {
			info.Owned = append(info.Owned, attr)
		}
		a.res.Types[ann] = typ
	}
	a.res.Classes[n] = info
	a.res.ClassOrder = append(a.res.ClassOrder, n)

	for _, item := range n.Body {
		if fn, ok := item.(*pyast.FuncDef); ok {
			if err := a.funcDef(fn, n); err != nil {
				return err
			}
		}
	}
	return a.scopes.Exit()
}

func (a *annotator) funcDef(n *pyast.FuncDef, class *pyast.ClassDef) error {
	a.scopes.Enter(false)

	info := &FuncInfo{Class: class}
	for _, p := range n.Params {
		var typ ir.Descriptor
		if p.Annotation != nil {
			typ = a.resolveTypeExpr(p.Annotation)
		} else {
			typ = a.reg.Resolve("object")
		}
		a.scopes.Bind(p.Name, typ)
		info.Params = append(info.Params, ParamType{Name: p.Name, Type: typ})
	}

	switch {
	case n.Returns != nil:
		info.Return = a.resolveTypeExpr(n.Returns)
	case !hasValueReturn(n.Body):
		info.Return = a.reg.Resolve("None")
	default:
		// A function that sometimes returns a value and sometimes falls
		// through types as object, the safe over-approximation.
		info.Return = a.reg.Resolve("object")
	}
	a.res.Funcs[n] = info

	if err := a.body(n.Body, class); err != nil {
		return err
	}
	return a.scopes.Exit()
}

// hasValueReturn reports whether any return statement anywhere in body, at
// any nesting depth, carries a value.
func hasValueReturn(body []pyast.Stmt) bool {
	found := false
	for _, s := range body {
		pyast.Walk(s, func(n pyast.Node) bool {
			if ret, ok := n.(*pyast.Return); ok && ret.Value != nil {
				found = true
			}
			return !found
		})
	}
	return found
}

func (a *annotator) annAssign(n *pyast.AnnAssign) {
	a.expr(n.Value)
	target, ok := n.Target.(*pyast.Name)
	if !ok {
		a.expr(n.Target)
		return
	}
	typ := a.resolveTypeExpr(n.Annotation)
	prev, bound := a.scopes.Lookup(target.ID)
	a.res.Types[n] = typ
	a.res.Fresh[n] = !bound
	if bound && a.scopes.BoundLocally(target.ID) && prev.CyName != typ.CyName {
		a.warnf(n.P.Line, "type_inference",
			"%s re-annotated from %s to %s in the same scope; emitting a bare assignment", target.ID, prev.CyName, typ.CyName)
	}
	a.scopes.Bind(target.ID, typ)
}

func (a *annotator) assign(n *pyast.Assign) {
	a.expr(n.Value)
	target, ok := n.Target.(*pyast.Name)
	if !ok {
		a.expr(n.Target)
		return
	}
	existing, bound := a.scopes.Lookup(target.ID)
	a.res.Fresh[n] = !bound
	if !bound {
		inferred := a.inferType(n.Value)
		a.scopes.Bind(target.ID, inferred)
		a.res.Types[n] = inferred
		return
	}
	a.res.Types[n] = existing
	// Rebinding with a materially different literal type would be a type
	// error in the generated code; flag it rather than passing it through
	// silently.
	if existing.Native && a.scopes.BoundLocally(target.ID) {
		if lit := a.literalType(n.Value); lit != "" && lit != existing.CyName {
			a.warnf(n.P.Line, "type_inference",
				"%s rebound from %s to %s in the same scope", target.ID, existing.CyName, lit)
		}
	}
}

func (a *annotator) forStmt(n *pyast.For) {
	a.expr(n.Iter)
	if target, ok := n.Target.(*pyast.Name); ok {
		if isRangeCall(n.Iter) {
			a.scopes.Bind(target.ID, a.reg.Resolve("int"))
		} else {
			a.scopes.Bind(target.ID, a.reg.Resolve("object"))
		}
	}
}

func isRangeCall(e pyast.Expr) bool {
	call, ok := e.(*pyast.Call)
	if !ok {
		return false
	}
	name, ok := call.Func.(*pyast.Name)
	return ok && name.ID == "range"
}

// inferType handles the small set of inferable value shapes. Everything else
// degrades to object: under-inference only costs performance, never
// correctness.
func (a *annotator) inferType(value pyast.Expr) ir.Descriptor {
	switch v := value.(type) {
	case *pyast.IntLit:
		return a.reg.Resolve("int")
	case *pyast.FloatLit:
		return a.reg.Resolve("float")
	case *pyast.UnaryOp:
		if v.Op == "-" || v.Op == "+" {
			return a.inferType(v.X)
		}
	case *pyast.Call:
		if name, ok := v.Func.(*pyast.Name); ok && name.ID == "len" {
			return a.reg.Resolve("int")
		}
	}
	return a.reg.Resolve("object")
}

// literalType returns the rendered native type of a literal value, or ""
// for non-literal shapes.
func (a *annotator) literalType(value pyast.Expr) string {
	switch value.(type) {
	case *pyast.IntLit:
		return "long"
	case *pyast.FloatLit:
		return "double"
	case *pyast.BoolLit:
		return "bint"
	case *pyast.StrLit:
		return "object"
	}
	return ""
}

// expr walks an expression, caching descriptors for name reads so later
// passes can resolve receiver types without scope access.
func (a *annotator) expr(e pyast.Expr) {
	if e == nil {
		return
	}
	pyast.Walk(e, func(n pyast.Node) bool {
		if name, ok := n.(*pyast.Name); ok {
			if d, found := a.scopes.Lookup(name.ID); found {
				a.res.Types[name] = d
			}
		}
		return true
	})
}

// resolveTypeExpr translates a source-level type expression into a
// descriptor. Unknown or untranslatable shapes degrade to object with a
// warning; resolution never fails.
func (a *annotator) resolveTypeExpr(e pyast.Expr) ir.Descriptor {
	switch t := e.(type) {
	case *pyast.Name:
		if !a.reg.Known(t.ID) {
			a.warnf(t.P.Line, "type_inference", "unknown type %q, using object", t.ID)
		}
		return a.reg.Resolve(t.ID)

	case *pyast.Attribute:
		full := pyast.Unparse(t)
		if full == "np.ndarray" || full == "numpy.ndarray" {
			a.reg.MarkNumPy()
			return a.reg.Resolve("ndarray")
		}
		a.warnf(t.P.Line, "type_inference", "unknown type %q, using object", full)
		return a.reg.Resolve("object")

	case *pyast.NoneLit:
		return a.reg.Resolve("None")

	case *pyast.Subscript:
		return a.resolveSubscriptType(t)
	}
	a.warnf(e.Pos().Line, "type_inference", "unsupported type expression, using object")
	return a.reg.Resolve("object")
}

func (a *annotator) resolveSubscriptType(t *pyast.Subscript) ir.Descriptor {
	base := strings.TrimPrefix(pyast.Unparse(t.X), "typing.")
	switch strings.ToLower(base) {
	case "list":
		base = "List"
	case "dict":
		base = "Dict"
	case "set":
		base = "Set"
	}

	args := subscriptArgs(t.Index)

	switch base {
	case "Optional":
		if len(args) != 1 {
			a.warnf(t.P.Line, "type_inference", "malformed Optional annotation, using object")
			return a.reg.Resolve("object")
		}
		inner := a.resolveTypeExpr(args[0])
		if inner.Native && !inner.Container && !inner.View && !inner.Void {
			// Optionality of a native scalar is only representable as a
			// nullable pointer-sized sentinel.
			inner.Own = ir.OwnRawPointer
			a.reg.AddCimport("from cython.operator cimport dereference as deref")
			return inner
		}
		a.warnf(t.P.Line, "type_inference", "Optional[%s] has no native representation, using object", inner.PyName)
		return a.reg.Resolve("object")

	case "Annotated":
		return a.resolveAnnotated(t, args)
	}

	baseType := a.reg.Resolve(base)
	if !baseType.Container {
		if !a.reg.Known(base) {
			a.warnf(t.P.Line, "type_inference", "unknown generic %q, using %s", base, baseType.CyName)
		}
		return baseType
	}
	params := make([]ir.Descriptor, len(args))
	for i, arg := range args {
		params[i] = a.resolveTypeExpr(arg)
	}
	return a.reg.Parameterize(baseType, params)
}

// resolveAnnotated handles Annotated[np.ndarray, dtype, ndim]: the element
// kind and dimensionality ride along as annotation arguments, defaulting to a
// one-dimensional double view when omitted.
func (a *annotator) resolveAnnotated(t *pyast.Subscript, args []pyast.Expr) ir.Descriptor {
	if len(args) == 0 {
		a.warnf(t.P.Line, "type_inference", "empty Annotated annotation, using object")
		return a.reg.Resolve("object")
	}
	typ := a.resolveTypeExpr(args[0])
	if !typ.View {
		// Annotated over a non-view type carries no extra meaning here.
		return typ
	}
	for _, arg := range args[1:] {
		switch v := arg.(type) {
		case *pyast.StrLit:
			typ.Dtype = v.Value
		case *pyast.IntLit:
			fmt.Sscanf(v.Value, "%d", &typ.NDim)
		}
	}
	return typ
}

func subscriptArgs(index pyast.Expr) []pyast.Expr {
	if tup, ok := index.(*pyast.Tuple); ok {
		return tup.Elts
	}
	return []pyast.Expr{index}
}
