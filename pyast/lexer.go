package pyast

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokNewline
	tokIndent
	tokDedent
	tokName
	tokInt
	tokFloat
	tokString
	tokFString
	tokOp
)

func (t tokenType) String() string {
	switch t {
	case tokEOF:
		return "EOF"
	case tokNewline:
		return "NEWLINE"
	case tokIndent:
		return "INDENT"
	case tokDedent:
		return "DEDENT"
	case tokName:
		return "NAME"
	case tokInt:
		return "INT"
	case tokFloat:
		return "FLOAT"
	case tokString:
		return "STRING"
	case tokFString:
		return "FSTRING"
	case tokOp:
		return "OP"
	}
	return "UNKNOWN"
}

type token struct {
	Type tokenType
	Text string
	Pos  Pos
}

// lexer turns source text into a token stream with synthetic INDENT/DEDENT
// tokens. Indentation and newlines are suppressed inside brackets, the way
// Python's tokenizer handles implicit line continuation.
type lexer struct {
	src     []rune
	pos     int
	line    int
	col     int
	indents []int
	depth   int // bracket nesting depth
	atLine  bool
	tokens  []token
}

// lex tokenizes src. The returned slice always ends with a tokEOF token,
// preceded by enough tokDedent tokens to close open indentation levels.
func lex(src string) ([]token, error) {
	l := &lexer{
		src:     []rune(strings.ReplaceAll(src, "\r\n", "\n")),
		line:    1,
		col:     1,
		indents: []int{0},
		atLine:  true,
	}
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
		if tok.Type == tokEOF {
			return l.tokens, nil
		}
	}
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", l.line, fmt.Sprintf(format, args...))
}

func (l *lexer) next() (token, error) {
	if l.atLine && l.depth == 0 {
		if tok, ok, err := l.handleIndent(); err != nil {
			return token{}, err
		} else if ok {
			return tok, nil
		}
	}

	for l.pos < len(l.src) {
		r := l.peek()
		switch {
		case r == '#':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case r == ' ' || r == '\t':
			l.advance()
		case r == '\\' && l.peekAt(1) == '\n':
			l.advance()
			l.advance()
		case r == '\n':
			pos := Pos{Line: l.line, Col: l.col}
			l.advance()
			if l.depth > 0 {
				continue
			}
			l.atLine = true
			return token{Type: tokNewline, Text: "\n", Pos: pos}, nil
		default:
			return l.lexToken()
		}
	}

	// Emit pending dedents before EOF.
	if len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		return token{Type: tokDedent, Pos: Pos{Line: l.line, Col: l.col}}, nil
	}
	return token{Type: tokEOF, Pos: Pos{Line: l.line, Col: l.col}}, nil
}

// handleIndent measures leading whitespace at the start of a logical line and
// emits INDENT/DEDENT tokens against the indent stack. Blank and comment-only
// lines produce no tokens at all.
func (l *lexer) handleIndent() (token, bool, error) {
	width := 0
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if r == ' ' {
			width++
			l.advance()
		} else if r == '\t' {
			width += 8 - width%8
			l.advance()
		} else {
			break
		}
	}
	if l.pos >= len(l.src) || l.peek() == '\n' || l.peek() == '#' {
		// Not a logical line; let the main loop consume it.
		l.atLine = l.peek() == '\n' || l.pos >= len(l.src)
		if l.peek() == '#' {
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
			l.atLine = true
		}
		if l.pos < len(l.src) && l.peek() == '\n' {
			l.advance()
		}
		if l.pos >= len(l.src) {
			return token{}, false, nil
		}
		return l.handleIndent()
	}

	l.atLine = false
	cur := l.indents[len(l.indents)-1]
	switch {
	case width > cur:
		l.indents = append(l.indents, width)
		return token{Type: tokIndent, Pos: Pos{Line: l.line, Col: 1}}, true, nil
	case width < cur:
		// Rewind so subsequent calls can emit further dedents for the same line.
		l.pos = start
		l.col = 1
		l.atLine = true
		l.indents = l.indents[:len(l.indents)-1]
		if l.indents[len(l.indents)-1] < width {
			return token{}, false, l.errorf("inconsistent dedent to width %d", width)
		}
		return token{Type: tokDedent, Pos: Pos{Line: l.line, Col: 1}}, true, nil
	}
	return token{}, false, nil
}

func (l *lexer) lexToken() (token, error) {
	pos := Pos{Line: l.line, Col: l.col}
	r := l.peek()

	if r == 'f' && (l.peekAt(1) == '"' || l.peekAt(1) == '\'') {
		l.advance()
		text, err := l.lexString()
		if err != nil {
			return token{}, err
		}
		return token{Type: tokFString, Text: text, Pos: pos}, nil
	}

	if isIdentStart(r) {
		var sb strings.Builder
		for l.pos < len(l.src) && isIdentPart(l.peek()) {
			sb.WriteRune(l.advance())
		}
		return token{Type: tokName, Text: sb.String(), Pos: pos}, nil
	}

	if unicode.IsDigit(r) {
		var sb strings.Builder
		typ := tokInt
		for l.pos < len(l.src) && (unicode.IsDigit(l.peek()) || l.peek() == '_') {
			sb.WriteRune(l.advance())
		}
		if l.peek() == '.' && unicode.IsDigit(l.peekAt(1)) {
			typ = tokFloat
			sb.WriteRune(l.advance())
			for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
				sb.WriteRune(l.advance())
			}
		}
		if l.peek() == 'e' || l.peek() == 'E' {
			off := 1
			if l.peekAt(off) == '+' || l.peekAt(off) == '-' {
				off++
			}
			if unicode.IsDigit(l.peekAt(off)) {
				typ = tokFloat
				for range off {
					sb.WriteRune(l.advance())
				}
				for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
					sb.WriteRune(l.advance())
				}
			}
		}
		return token{Type: typ, Text: sb.String(), Pos: pos}, nil
	}

	if r == '"' || r == '\'' {
		text, err := l.lexString()
		if err != nil {
			return token{}, err
		}
		return token{Type: tokString, Text: text, Pos: pos}, nil
	}

	for _, op := range multiCharOps {
		if l.matches(op) {
			for range op {
				l.advance()
			}
			return token{Type: tokOp, Text: op, Pos: pos}, nil
		}
	}
	if strings.ContainsRune("+-*/%<>=!.,:()[]{}", r) {
		l.advance()
		if r == '(' || r == '[' || r == '{' {
			l.depth++
		}
		if r == ')' || r == ']' || r == '}' {
			l.depth--
		}
		return token{Type: tokOp, Text: string(r), Pos: pos}, nil
	}

	return token{}, l.errorf("unexpected character %q", r)
}

// multiCharOps is ordered longest-first so greedy matching is correct.
var multiCharOps = []string{
	"**=", "//=", "->", "**", "//", "==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=",
}

func (l *lexer) matches(op string) bool {
	for i, r := range op {
		if l.peekAt(i) != r {
			return false
		}
	}
	return true
}

// lexString consumes a quoted string, including triple-quoted docstrings, and
// returns the unquoted contents. Escape sequences are kept verbatim; the
// generator re-emits them untouched.
func (l *lexer) lexString() (string, error) {
	quote := l.advance()
	triple := false
	if l.peek() == quote && l.peekAt(1) == quote {
		l.advance()
		l.advance()
		triple = true
	}
	var sb strings.Builder
	for l.pos < len(l.src) {
		r := l.peek()
		if r == '\\' && l.peekAt(1) != 0 {
			sb.WriteRune(l.advance())
			sb.WriteRune(l.advance())
			continue
		}
		if r == quote {
			if !triple {
				l.advance()
				return sb.String(), nil
			}
			if l.peekAt(1) == quote && l.peekAt(2) == quote {
				l.advance()
				l.advance()
				l.advance()
				return sb.String(), nil
			}
		}
		if r == '\n' && !triple {
			return "", l.errorf("unterminated string literal")
		}
		sb.WriteRune(l.advance())
	}
	return "", l.errorf("unterminated string literal")
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
