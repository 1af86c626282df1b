package pyast

import (
	"fmt"
	"strings"
)

// Parse parses source text in the restricted dialect into a Module.
func Parse(src string) (*Module, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	mod := &Module{}
	for !p.at(tokEOF) {
		if p.at(tokNewline) {
			p.next()
			continue
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		mod.Body = append(mod.Body, stmt)
	}
	return mod, nil
}

// ParseExpr parses a single expression, used for f-string interpolations.
func ParseExpr(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.at(tokEOF) && !p.at(tokNewline) {
		return nil, p.errorf("unexpected trailing tokens after expression")
	}
	return e, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) at(t tokenType) bool { return p.cur().Type == t }

func (p *parser) atOp(text string) bool {
	return p.cur().Type == tokOp && p.cur().Text == text
}

func (p *parser) atKw(kw string) bool {
	return p.cur().Type == tokName && p.cur().Text == kw
}

func (p *parser) expectOp(text string) error {
	if !p.atOp(text) {
		return p.errorf("expected %q, got %q", text, p.cur().Text)
	}
	p.next()
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.cur().Pos.Line, fmt.Sprintf(format, args...))
}

func (p *parser) parseStmt() (Stmt, error) {
	tok := p.cur()
	if tok.Type == tokName {
		switch tok.Text {
		case "def":
			return p.parseFuncDef()
		case "class":
			return p.parseClassDef()
		case "if":
			return p.parseIf()
		case "for":
			return p.parseFor()
		case "while":
			return p.parseWhile()
		case "return":
			return p.parseReturn()
		case "pass":
			p.next()
			return &Pass{P: tok.Pos}, p.endLine()
		case "import", "from":
			return p.parseImport()
		}
	}
	return p.parseSimpleStmt()
}

func (p *parser) parseImport() (Stmt, error) {
	pos := p.cur().Pos
	var parts []string
	for !p.at(tokNewline) && !p.at(tokEOF) {
		parts = append(parts, p.next().Text)
	}
	if p.at(tokNewline) {
		p.next()
	}
	return &Import{P: pos, Text: strings.Join(parts, " ")}, nil
}

func (p *parser) parseFuncDef() (Stmt, error) {
	pos := p.next().Pos // def
	if !p.at(tokName) {
		return nil, p.errorf("expected function name")
	}
	name := p.next().Text
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	var params []Param
	for !p.atOp(")") {
		if !p.at(tokName) {
			return nil, p.errorf("expected parameter name")
		}
		param := Param{Name: p.next().Text}
		if p.atOp(":") {
			p.next()
			ann, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			param.Annotation = ann
		}
		params = append(params, param)
		if p.atOp(",") {
			p.next()
		}
	}
	p.next() // )
	var returns Expr
	if p.atOp("->") {
		p.next()
		var err error
		returns, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	body, doc, err := p.parseSuite()
	if err != nil {
		return nil, err
	}

	// Drop the explicit self parameter; the generator reconstructs it from the
	// enclosing class.
	if len(params) > 0 && params[0].Name == "self" {
		params = params[1:]
	}
	return &FuncDef{P: pos, Name: name, Params: params, Returns: returns, Doc: doc, Body: body}, nil
}

func (p *parser) parseClassDef() (Stmt, error) {
	pos := p.next().Pos // class
	if !p.at(tokName) {
		return nil, p.errorf("expected class name")
	}
	name := p.next().Text
	if p.atOp("(") {
		// Base-class lists are accepted and ignored; the dialect has no
		// inheritance support.
		for !p.atOp(")") && !p.at(tokEOF) {
			p.next()
		}
		p.next()
	}
	body, doc, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &ClassDef{P: pos, Name: name, Doc: doc, Body: body}, nil
}

// parseSuite parses `: NEWLINE INDENT stmts DEDENT`, extracting a leading
// docstring if present.
func (p *parser) parseSuite() ([]Stmt, string, error) {
	if err := p.expectOp(":"); err != nil {
		return nil, "", err
	}
	if !p.at(tokNewline) {
		return nil, "", p.errorf("expected newline after ':'")
	}
	p.next()
	if !p.at(tokIndent) {
		return nil, "", p.errorf("expected indented block")
	}
	p.next()
	var body []Stmt
	for !p.at(tokDedent) && !p.at(tokEOF) {
		if p.at(tokNewline) {
			p.next()
			continue
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, "", err
		}
		body = append(body, stmt)
	}
	if p.at(tokDedent) {
		p.next()
	}

	doc := ""
	if len(body) > 0 {
		if es, ok := body[0].(*ExprStmt); ok {
			if s, ok := es.X.(*StrLit); ok {
				doc = strings.TrimSpace(s.Value)
				body = body[1:]
			}
		}
	}
	return body, doc, nil
}

func (p *parser) parseIf() (Stmt, error) {
	pos := p.next().Pos // if or elif
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, _, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	stmt := &If{P: pos, Cond: cond, Body: body}
	if p.atKw("elif") {
		nested, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		stmt.Else = []Stmt{nested}
	} else if p.atKw("else") {
		p.next()
		orelse, _, err := p.parseSuite()
		if err != nil {
			return nil, err
		}
		stmt.Else = orelse
	}
	return stmt, nil
}

func (p *parser) parseFor() (Stmt, error) {
	pos := p.next().Pos // for
	// Targets parse at postfix level so the 'in' keyword is not swallowed as a
	// membership comparison.
	target, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.atOp(",") {
		tup := &Tuple{P: target.Pos(), Elts: []Expr{target}}
		for p.atOp(",") {
			p.next()
			elt, err := p.parsePostfix()
			if err != nil {
				return nil, err
			}
			tup.Elts = append(tup.Elts, elt)
		}
		target = tup
	}
	if !p.atKw("in") {
		return nil, p.errorf("expected 'in' in for statement")
	}
	p.next()
	iter, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, _, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &For{P: pos, Target: target, Iter: iter, Body: body}, nil
}

func (p *parser) parseWhile() (Stmt, error) {
	pos := p.next().Pos // while
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, _, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &While{P: pos, Cond: cond, Body: body}, nil
}

func (p *parser) parseReturn() (Stmt, error) {
	pos := p.next().Pos // return
	if p.at(tokNewline) || p.at(tokEOF) || p.at(tokDedent) {
		return &Return{P: pos}, p.endLine()
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Return{P: pos, Value: value}, p.endLine()
}

// parseSimpleStmt handles assignments, annotated assignments, augmented
// assignments, and bare expression statements.
func (p *parser) parseSimpleStmt() (Stmt, error) {
	pos := p.cur().Pos
	target, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if p.atOp(":") {
		p.next()
		ann, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt := &AnnAssign{P: pos, Target: target, Annotation: ann}
		if p.atOp("=") {
			p.next()
			stmt.Value, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		return stmt, p.endLine()
	}

	if p.at(tokOp) && strings.HasSuffix(p.cur().Text, "=") && isAugOp(p.cur().Text) {
		op := strings.TrimSuffix(p.next().Text, "=")
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &AugAssign{P: pos, Target: target, Op: op, Value: value}, p.endLine()
	}

	if p.atOp("=") {
		p.next()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Assign{P: pos, Target: target, Value: value}, p.endLine()
	}

	return &ExprStmt{P: pos, X: target}, p.endLine()
}

func isAugOp(text string) bool {
	switch text {
	case "+=", "-=", "*=", "/=", "%=", "//=", "**=":
		return true
	}
	return false
}

func (p *parser) endLine() error {
	if p.at(tokNewline) {
		p.next()
		return nil
	}
	if p.at(tokEOF) || p.at(tokDedent) {
		return nil
	}
	return p.errorf("unexpected token %q at end of statement", p.cur().Text)
}

// Expression grammar, lowest precedence first:
//
//	expr    = andExpr ("or" andExpr)*
//	andExpr = notExpr ("and" notExpr)*
//	notExpr = "not" notExpr | cmp
//	cmp     = arith (cmpOp arith)?
//	arith   = term (("+"|"-") term)*
//	term    = factor (("*"|"/"|"//"|"%") factor)*
//	factor  = ("-"|"+") factor | power
//	power   = postfix ("**" factor)?
func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKw("or") {
		pos := p.next().Pos
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		x = &BoolOp{P: pos, X: x, Op: "or", Y: y}
	}
	return x, nil
}

func (p *parser) parseAnd() (Expr, error) {
	x, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.atKw("and") {
		pos := p.next().Pos
		y, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		x = &BoolOp{P: pos, X: x, Op: "and", Y: y}
	}
	return x, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.atKw("not") {
		pos := p.next().Pos
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{P: pos, Op: "not", X: x}, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (Expr, error) {
	x, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	if op, ok := p.compareOp(); ok {
		y, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		return &Compare{P: x.Pos(), X: x, Op: op, Y: y}, nil
	}
	return x, nil
}

func (p *parser) compareOp() (string, bool) {
	if p.at(tokOp) {
		switch p.cur().Text {
		case "==", "!=", "<", "<=", ">", ">=":
			return p.next().Text, true
		}
	}
	if p.atKw("is") {
		p.next()
		if p.atKw("not") {
			p.next()
			return "is not", true
		}
		return "is", true
	}
	if p.atKw("in") {
		p.next()
		return "in", true
	}
	return "", false
}

func (p *parser) parseArith() (Expr, error) {
	x, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.atOp("+") || p.atOp("-") {
		op := p.next().Text
		y, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		x = &BinOp{P: x.Pos(), X: x, Op: op, Y: y}
	}
	return x, nil
}

func (p *parser) parseTerm() (Expr, error) {
	x, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.atOp("*") || p.atOp("/") || p.atOp("//") || p.atOp("%") {
		op := p.next().Text
		y, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		x = &BinOp{P: x.Pos(), X: x, Op: op, Y: y}
	}
	return x, nil
}

func (p *parser) parseFactor() (Expr, error) {
	if p.atOp("-") || p.atOp("+") {
		tok := p.next()
		x, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{P: tok.Pos, Op: tok.Text, X: x}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (Expr, error) {
	x, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.atOp("**") {
		p.next()
		y, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &BinOp{P: x.Pos(), X: x, Op: "**", Y: y}, nil
	}
	return x, nil
}

func (p *parser) parsePostfix() (Expr, error) {
	x, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.atOp("."):
			p.next()
			if !p.at(tokName) {
				return nil, p.errorf("expected attribute name after '.'")
			}
			x = &Attribute{P: x.Pos(), X: x, Attr: p.next().Text}
		case p.atOp("("):
			p.next()
			var args []Expr
			for !p.atOp(")") {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.atOp(",") {
					p.next()
				}
			}
			p.next()
			x = &Call{P: x.Pos(), Func: x, Args: args}
		case p.atOp("["):
			p.next()
			var elts []Expr
			for !p.atOp("]") {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				elts = append(elts, e)
				if p.atOp(",") {
					p.next()
				}
			}
			p.next()
			var index Expr
			if len(elts) == 1 {
				index = elts[0]
			} else {
				index = &Tuple{P: x.Pos(), Elts: elts}
			}
			x = &Subscript{P: x.Pos(), X: x, Index: index}
		default:
			return x, nil
		}
	}
}

func (p *parser) parseAtom() (Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case tokInt:
		p.next()
		return &IntLit{P: tok.Pos, Value: tok.Text}, nil
	case tokFloat:
		p.next()
		return &FloatLit{P: tok.Pos, Value: tok.Text}, nil
	case tokString:
		p.next()
		return &StrLit{P: tok.Pos, Value: tok.Text}, nil
	case tokFString:
		p.next()
		return parseFString(tok)
	case tokName:
		p.next()
		switch tok.Text {
		case "True":
			return &BoolLit{P: tok.Pos, Value: true}, nil
		case "False":
			return &BoolLit{P: tok.Pos, Value: false}, nil
		case "None":
			return &NoneLit{P: tok.Pos}, nil
		}
		return &Name{P: tok.Pos, ID: tok.Text}, nil
	case tokOp:
		switch tok.Text {
		case "(":
			p.next()
			var elts []Expr
			for !p.atOp(")") {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				elts = append(elts, e)
				if p.atOp(",") {
					p.next()
				} else {
					break
				}
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			if len(elts) == 1 {
				return elts[0], nil
			}
			return &Tuple{P: tok.Pos, Elts: elts}, nil
		case "[":
			p.next()
			var elts []Expr
			for !p.atOp("]") {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				elts = append(elts, e)
				if p.atOp(",") {
					p.next()
				}
			}
			p.next()
			return &ListLit{P: tok.Pos, Elts: elts}, nil
		case "{":
			return p.parseBraced(tok.Pos)
		}
	}
	return nil, p.errorf("unexpected token %q", tok.Text)
}

// parseBraced parses `{}` as an empty dict, `{a, b}` as a set, and
// `{k: v, ...}` as a dict.
func (p *parser) parseBraced(pos Pos) (Expr, error) {
	p.next() // {
	if p.atOp("}") {
		p.next()
		return &DictLit{P: pos}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.atOp(":") {
		dict := &DictLit{P: pos, Keys: []Expr{first}}
		p.next()
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		dict.Values = append(dict.Values, v)
		for p.atOp(",") {
			p.next()
			if p.atOp("}") {
				break
			}
			k, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(":"); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			dict.Keys = append(dict.Keys, k)
			dict.Values = append(dict.Values, v)
		}
		if err := p.expectOp("}"); err != nil {
			return nil, err
		}
		return dict, nil
	}
	set := &SetLit{P: pos, Elts: []Expr{first}}
	for p.atOp(",") {
		p.next()
		if p.atOp("}") {
			break
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		set.Elts = append(set.Elts, e)
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return set, nil
}

// parseFString splits the raw f-string body into literal text and embedded
// expressions. `{{` and `}}` escape literal braces.
func parseFString(tok token) (Expr, error) {
	fs := &FString{P: tok.Pos}
	src := tok.Text
	var text strings.Builder
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '{' && i+1 < len(src) && src[i+1] == '{':
			text.WriteByte('{')
			i++
		case c == '}' && i+1 < len(src) && src[i+1] == '}':
			text.WriteByte('}')
			i++
		case c == '{':
			depth := 1
			j := i + 1
			for j < len(src) && depth > 0 {
				if src[j] == '{' {
					depth++
				}
				if src[j] == '}' {
					depth--
				}
				j++
			}
			if depth != 0 {
				return nil, fmt.Errorf("line %d: unterminated f-string expression", tok.Pos.Line)
			}
			inner := src[i+1 : j-1]
			// Format specs and conversions are not supported; strip them.
			if cut := strings.IndexAny(inner, "!:"); cut >= 0 {
				inner = inner[:cut]
			}
			expr, err := ParseExpr(inner)
			if err != nil {
				return nil, fmt.Errorf("line %d: f-string expression: %v", tok.Pos.Line, err)
			}
			if text.Len() > 0 {
				fs.Parts = append(fs.Parts, FStringPart{Text: text.String()})
				text.Reset()
			}
			fs.Parts = append(fs.Parts, FStringPart{Expr: expr})
			i = j - 1
		default:
			text.WriteByte(c)
		}
	}
	if text.Len() > 0 {
		fs.Parts = append(fs.Parts, FStringPart{Text: text.String()})
	}
	return fs, nil
}
