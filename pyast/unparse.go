package pyast

import (
	"fmt"
	"strings"
)

// Unparse renders a node back to source text. Expression syntax in the
// restricted dialect is shared between Python and Cython, so the generator
// uses this directly as the passthrough rendering for anything it has no
// specific rule for. The output is best-effort; unknown shapes render as an
// empty string and the caller substitutes a placeholder.
func Unparse(node Node) string {
	switch n := node.(type) {
	case *Name:
		return n.ID
	case *Attribute:
		return Unparse(n.X) + "." + n.Attr
	case *Subscript:
		return Unparse(n.X) + "[" + Unparse(n.Index) + "]"
	case *Call:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = Unparse(a)
		}
		return Unparse(n.Func) + "(" + strings.Join(args, ", ") + ")"
	case *BinOp:
		return fmt.Sprintf("%s %s %s", Unparse(n.X), n.Op, Unparse(n.Y))
	case *Compare:
		return fmt.Sprintf("%s %s %s", Unparse(n.X), n.Op, Unparse(n.Y))
	case *BoolOp:
		return fmt.Sprintf("%s %s %s", Unparse(n.X), n.Op, Unparse(n.Y))
	case *UnaryOp:
		if n.Op == "not" {
			return "not " + Unparse(n.X)
		}
		return n.Op + Unparse(n.X)
	case *IntLit:
		return n.Value
	case *FloatLit:
		return n.Value
	case *StrLit:
		return "'" + n.Value + "'"
	case *BoolLit:
		if n.Value {
			return "True"
		}
		return "False"
	case *NoneLit:
		return "None"
	case *FString:
		var sb strings.Builder
		sb.WriteString("f'")
		for _, part := range n.Parts {
			if part.Expr != nil {
				sb.WriteString("{" + Unparse(part.Expr) + "}")
			} else {
				sb.WriteString(part.Text)
			}
		}
		sb.WriteString("'")
		return sb.String()
	case *ListLit:
		return "[" + joinExprs(n.Elts) + "]"
	case *SetLit:
		return "{" + joinExprs(n.Elts) + "}"
	case *DictLit:
		if len(n.Keys) == 0 {
			return "{}"
		}
		pairs := make([]string, len(n.Keys))
		for i := range n.Keys {
			pairs[i] = Unparse(n.Keys[i]) + ": " + Unparse(n.Values[i])
		}
		return "{" + strings.Join(pairs, ", ") + "}"
	case *Tuple:
		return joinExprs(n.Elts)
	case *AugAssign:
		return fmt.Sprintf("%s %s= %s", Unparse(n.Target), n.Op, Unparse(n.Value))
	case *Assign:
		return Unparse(n.Target) + " = " + Unparse(n.Value)
	case *Return:
		if n.Value == nil {
			return "return"
		}
		return "return " + Unparse(n.Value)
	case *ExprStmt:
		return Unparse(n.X)
	case *Pass:
		return "pass"
	}
	return ""
}

func joinExprs(elts []Expr) string {
	parts := make([]string, len(elts))
	for i, e := range elts {
		parts[i] = Unparse(e)
	}
	return strings.Join(parts, ", ")
}

// KindName returns a short human-readable name for a node's kind, used in
// placeholder comments for untranslatable constructs.
func KindName(node Node) string {
	name := fmt.Sprintf("%T", node)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
