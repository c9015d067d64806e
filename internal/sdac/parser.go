package sdac

import "strconv"

// precedence is the operator-precedence table: sentinel < == < comparisons
// < −,+ < ÷,× < ∨ < ∧ < ¬,abs, higher binds tighter.
var precedence = map[string]int{
	"==": 1,
	">":  2, ">=": 2, "<": 2, "<=": 2,
	"-": 3, "+": 3,
	"/": 4, "*": 4,
	"||": 5,
	"&&": 6,
}

const unaryPrecedence = 7

// Parse reads an infix cost expression and returns its AST, per the
// InfixParser grammar of original_source/src/search/sdac_parser/parser.h.
func Parse(input string) (Expr, error) {
	p := &parser{lex: newLexer(input), input: input}
	p.advance()
	e, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, &ParseError{Input: input, Pos: p.cur.pos, Msg: "unexpected trailing input"}
	}
	return e, nil
}

// ParsePrefix reads the pre-order s-expression form this package also
// accepts, e.g. "(+ x 1)" or "(abs x)".
func ParsePrefix(input string) (Expr, error) {
	p := &parser{lex: newLexer(input), input: input}
	p.advance()
	e, err := p.parsePrefixExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, &ParseError{Input: input, Pos: p.cur.pos, Msg: "unexpected trailing input"}
	}
	return e, nil
}

type parser struct {
	lex   *lexer
	cur   token
	input string
}

func (p *parser) advance() { p.cur = p.lex.next() }

func (p *parser) parseExpr(minPrec int) (Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		if p.cur.kind != tokOp {
			break
		}
		prec, ok := precedence[p.cur.text]
		if !ok || prec < minPrec {
			break
		}
		op := p.cur.text
		p.advance()
		rhs, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		lhs = Binary{Op: op, Left: lhs, Right: rhs}
	}
	return lhs, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.cur.kind == tokOp && (p.cur.text == "-" || p.cur.text == "!" || p.cur.text == "abs") {
		op := p.cur.text
		p.advance()
		operand, err := p.parseUnaryOperand()
		if err != nil {
			return nil, err
		}
		return Unary{Op: op, Expr: operand}, nil
	}
	return p.parsePrimary()
}

// parseUnaryOperand binds a unary operator to a single primary (or
// parenthesized expression), the precedence-7 "tightest" binding in the
// table above, rather than recursing through parseExpr and swallowing a
// following binary operator.
func (p *parser) parseUnaryOperand() (Expr, error) {
	return p.parseUnary()
}

func (p *parser) parsePrimary() (Expr, error) {
	switch p.cur.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(p.cur.text, 64)
		if err != nil {
			return nil, &ParseError{Input: p.input, Pos: p.cur.pos, Msg: "malformed number " + p.cur.text}
		}
		p.advance()
		return Const{Value: v}, nil
	case tokIdent:
		name := p.cur.text
		p.advance()
		return VarRef{Name: name}, nil
	case tokLParen:
		p.advance()
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, &ParseError{Input: p.input, Pos: p.cur.pos, Msg: "expected )"}
		}
		p.advance()
		return e, nil
	default:
		return nil, &ParseError{Input: p.input, Pos: p.cur.pos, Msg: "expected a number, variable, or ("}
	}
}

// parsePrefixExpr reads the s-expression form: "(op a b)" for binary, "(op
// a)" for unary, a bare number, or a bare identifier.
func (p *parser) parsePrefixExpr() (Expr, error) {
	switch p.cur.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(p.cur.text, 64)
		if err != nil {
			return nil, &ParseError{Input: p.input, Pos: p.cur.pos, Msg: "malformed number " + p.cur.text}
		}
		p.advance()
		return Const{Value: v}, nil
	case tokIdent:
		name := p.cur.text
		p.advance()
		return VarRef{Name: name}, nil
	case tokLParen:
		p.advance()
		if p.cur.kind != tokOp && p.cur.kind != tokIdent {
			return nil, &ParseError{Input: p.input, Pos: p.cur.pos, Msg: "expected operator after ("}
		}
		op := p.cur.text
		p.advance()
		first, err := p.parsePrefixExpr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind == tokRParen {
			p.advance()
			return Unary{Op: op, Expr: first}, nil
		}
		second, err := p.parsePrefixExpr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, &ParseError{Input: p.input, Pos: p.cur.pos, Msg: "expected ) to close s-expression"}
		}
		p.advance()
		return Binary{Op: op, Left: first, Right: second}, nil
	default:
		return nil, &ParseError{Input: p.input, Pos: p.cur.pos, Msg: "expected (, a number, or a variable"}
	}
}
