package analyze

import (
	"github.com/broady/pyxgen/gen/ir"
	"github.com/broady/pyxgen/pyast"
)

// AnalyzePurity decides, per function, whether its body may execute without
// interpreter-level synchronization, recording the verdict on each FuncInfo.
//
// The policy is a whitelist, not a prover. A function qualifies only if every
// parameter and the return type are native, it is not a constructor or
// destructor hook, and every statement in its body is locally pure. False
// negatives (safe code left synchronized) are acceptable; a false positive
// would be a soundness bug in the generated program and must not occur.
func AnalyzePurity(res *Result) {
	for fn, info := range res.Funcs {
		info.Nogil = nogilCandidate(fn, info, res)
	}
}

// isInterpreterHook reports whether name is an entry point the interpreter
// always calls while holding its lock; hooks never qualify.
func isInterpreterHook(name string) bool {
	switch name {
	case "__init__", "__cinit__", "__dealloc__":
		return true
	}
	return false
}

func nogilCandidate(fn *pyast.FuncDef, info *FuncInfo, res *Result) bool {
	if isInterpreterHook(fn.Name) {
		return false
	}
	for _, p := range info.Params {
		if !p.Type.Native {
			return false
		}
	}
	if !info.Return.Native {
		return false
	}

	c := &purityChecker{res: res, env: make(map[string]ir.Descriptor)}
	for _, p := range info.Params {
		c.env[p.Name] = p.Type
	}
	if info.Class != nil {
		c.attrs = res.Classes[info.Class].ByName
	}
	for _, s := range fn.Body {
		if !c.stmt(s) {
			return false
		}
	}
	return true
}

// purityChecker walks one function body, tracking the native types of locals
// as they are declared, and answers whether each construct is locally pure.
type purityChecker struct {
	res   *Result
	env   map[string]ir.Descriptor
	attrs map[string]ir.Descriptor
}

func (c *purityChecker) stmt(s pyast.Stmt) bool {
	switch n := s.(type) {
	case *pyast.Pass:
		return true
	case *pyast.Return:
		return n.Value == nil || c.expr(n.Value)
	case *pyast.ExprStmt:
		return c.expr(n.X)
	case *pyast.AugAssign:
		return c.expr(n.Target) && c.expr(n.Value)
	case *pyast.Assign:
		return c.assign(n)
	case *pyast.AnnAssign:
		typ, ok := c.res.Types[n]
		if !ok || !typ.Native {
			return false
		}
		if target, isName := n.Target.(*pyast.Name); isName {
			c.env[target.ID] = typ
		}
		return n.Value == nil || c.expr(n.Value)
	case *pyast.If:
		if !c.expr(n.Cond) {
			return false
		}
		return c.block(n.Body) && c.block(n.Else)
	case *pyast.While:
		return c.expr(n.Cond) && c.block(n.Body)
	case *pyast.For:
		// Only bounded iteration over range qualifies.
		if !isRangeCall(n.Iter) || !c.expr(n.Iter) {
			return false
		}
		if target, ok := n.Target.(*pyast.Name); ok {
			c.env[target.ID] = ir.Descriptor{PyName: "int", CyName: "long", Native: true}
		}
		return c.block(n.Body)
	}
	// Nested definitions, imports, and anything unrecognized.
	return false
}

func (c *purityChecker) block(body []pyast.Stmt) bool {
	for _, s := range body {
		if !c.stmt(s) {
			return false
		}
	}
	return true
}

func (c *purityChecker) assign(n *pyast.Assign) bool {
	if !c.expr(n.Value) {
		return false
	}
	switch target := n.Target.(type) {
	case *pyast.Name:
		typ, ok := c.res.Types[n]
		if !ok || !typ.Native {
			return false
		}
		c.env[target.ID] = typ
		return true
	case *pyast.Attribute:
		t, ok := c.typeOf(target)
		return ok && t.Native
	case *pyast.Subscript:
		t, ok := c.typeOf(target.X)
		return ok && t.Native && (t.Container || t.View) && c.expr(target.Index)
	}
	return false
}

func (c *purityChecker) expr(e pyast.Expr) bool {
	switch n := e.(type) {
	case *pyast.IntLit, *pyast.FloatLit, *pyast.BoolLit, *pyast.StrLit, *pyast.NoneLit:
		return true
	case *pyast.Name:
		t, ok := c.env[n.ID]
		return ok && t.Native
	case *pyast.Attribute:
		t, ok := c.typeOf(n)
		return ok && t.Native
	case *pyast.BinOp:
		return c.expr(n.X) && c.expr(n.Y)
	case *pyast.Compare:
		return c.expr(n.X) && c.expr(n.Y)
	case *pyast.BoolOp:
		return c.expr(n.X) && c.expr(n.Y)
	case *pyast.UnaryOp:
		return c.expr(n.X)
	case *pyast.Subscript:
		t, ok := c.typeOf(n.X)
		return ok && t.Native && (t.Container || t.View) && c.expr(n.Index)
	case *pyast.Call:
		return c.call(n)
	}
	// String interpolation, displays, and anything unrecognized allocate
	// interpreter objects.
	return false
}

// call recognizes exactly two pure shapes: bounded-iteration or length
// queries over pure operands, and translated methods on native-container
// receivers. Any other call, including interpreter output, is impure.
func (c *purityChecker) call(n *pyast.Call) bool {
	if name, ok := n.Func.(*pyast.Name); ok {
		if name.ID == "range" || name.ID == "len" {
			for _, arg := range n.Args {
				if !c.expr(arg) {
					return false
				}
			}
			return true
		}
		return false
	}

	attr, ok := n.Func.(*pyast.Attribute)
	if !ok {
		return false
	}
	recv, ok := c.typeOf(attr.X)
	if !ok || !recv.Container {
		return false
	}
	if _, recognized := ir.TranslateMethod(recv.CyName, attr.Attr); !recognized {
		return false
	}
	for _, arg := range n.Args {
		if !c.expr(arg) {
			return false
		}
	}
	return true
}

// typeOf resolves the declared type of a receiver expression from the local
// environment, the class attribute catalog, and container element types.
func (c *purityChecker) typeOf(e pyast.Expr) (ir.Descriptor, bool) {
	switch n := e.(type) {
	case *pyast.Name:
		t, ok := c.env[n.ID]
		return t, ok
	case *pyast.Attribute:
		if base, ok := n.X.(*pyast.Name); ok && base.ID == "self" {
			t, ok := c.attrs[n.Attr]
			return t, ok
		}
		// a.b where a is a native local (view.shape and similar).
		if t, ok := c.typeOf(n.X); ok && t.Native {
			return t, true
		}
		return ir.Descriptor{}, false
	case *pyast.Subscript:
		t, ok := c.typeOf(n.X)
		if !ok {
			return ir.Descriptor{}, false
		}
		return ir.ElementType(t)
	}
	return ir.Descriptor{}, false
}
