// Package parser implements a recursive-descent parser from the
// internal/token stream to internal/ast, for the informal grammar in spec
// §6 (C-style expressions, begin/end blocks, if/while/for, fn definitions,
// table/array literals, attribute/index access).
//
// Per §7.2, a syntax error aborts parsing immediately with a single
// structured diagnostic (the redesigned behavior; the reference
// implementation's "report and continue" approach is not carried forward).
package parser

import (
	"fmt"

	"github.com/weftlang/weft/internal/ast"
	"github.com/weftlang/weft/internal/token"
)

// Error is the single structured diagnostic a parse failure produces.
type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Message) }

// Lexer is the token source a Parser consumes; internal/lexer.Lexer
// satisfies it, and tests can supply a canned token list instead.
type Lexer interface {
	Next() (token.Token, error)
}

// Parser builds an AST from a token stream, one token of lookahead.
type Parser struct {
	lex  Lexer
	cur  token.Token
	err  error
}

// New constructs a Parser reading from lex.
func New(lex Lexer) *Parser {
	p := &Parser{lex: lex}
	p.advance()
	return p
}

// ParseProgram parses a whole source file: a sequence of statements up to
// EOF, returned as a Block.
func ParseProgram(lex Lexer) (*ast.Block, error) {
	p := New(lex)
	block := p.parseStmts(token.EOF)
	if p.err != nil {
		return nil, p.err
	}
	return block, nil
}

func (p *Parser) advance() {
	if p.err != nil {
		return
	}
	tok, err := p.lex.Next()
	if err != nil {
		p.err = err
		p.cur = token.Token{Kind: token.EOF}
		return
	}
	p.cur = tok
}

func (p *Parser) fail(format string, args ...interface{}) {
	if p.err == nil {
		p.err = &Error{Line: p.cur.Line, Message: fmt.Sprintf(format, args...)}
	}
}

func (p *Parser) expect(k token.Kind) token.Token {
	tok := p.cur
	if tok.Kind != k {
		p.fail("expected %v, got %v", k, tok.Kind)
		return tok
	}
	p.advance()
	return tok
}

func (p *Parser) at(k token.Kind) bool { return p.cur.Kind == k }

// parseStmts parses statements until the `until` token kind (or a parse
// error) is reached. It does not consume `until`.
func (p *Parser) parseStmts(until token.Kind) *ast.Block {
	block := &ast.Block{}
	for p.err == nil && p.cur.Kind != until && p.cur.Kind != token.EOF {
		block.Stmts = append(block.Stmts, p.parseStmt())
	}
	return block
}

func (p *Parser) parseBody() ast.Node {
	if p.at(token.BEGIN) {
		p.advance()
		block := p.parseStmts(token.END)
		p.expect(token.END)
		return block
	}
	return p.parseStmt()
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.cur.Kind {
	case token.RETURN:
		p.advance()
		stmt := &ast.ReturnStmt{}
		if !p.at(token.SEMI) {
			stmt.X = p.parseExpr()
		}
		p.consumeSemi()
		return stmt
	case token.LOAD:
		p.advance()
		path := p.expect(token.STRING).Text
		stmt := &ast.LoadStmt{Path: path}
		if p.at(token.AS) {
			p.advance()
			stmt.As = p.expect(token.IDENT).Text
		}
		p.consumeSemi()
		return stmt
	case token.FROM:
		p.advance()
		path := p.expect(token.STRING).Text
		p.expect(token.LOAD)
		name := p.expect(token.IDENT).Text
		stmt := &ast.LoadStmt{Path: path, As: name}
		p.consumeSemi()
		return stmt
	default:
		x := p.parseExpr()
		p.consumeSemi()
		return &ast.ExprStmt{X: x}
	}
}

// consumeSemi swallows an optional trailing `;`: block-bodied forms
// (if/while/for/fn) don't require one, matching the C-style grammar's
// informal contract.
func (p *Parser) consumeSemi() {
	if p.at(token.SEMI) {
		p.advance()
	}
}

func (p *Parser) parseExpr() ast.Expr { return p.parseAssign() }

func (p *Parser) parseAssign() ast.Expr {
	left := p.parseOr()
	if p.at(token.ASSIGN) {
		p.advance()
		value := p.parseAssign()
		switch left.(type) {
		case *ast.Ident, *ast.AttrExpr, *ast.IndexExpr:
		default:
			p.fail("invalid assignment target")
		}
		return &ast.Assign{Target: left, Value: value}
	}
	return left
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.at(token.OR) {
		p.advance()
		right := p.parseAnd()
		left = &ast.BinaryOp{Op: "or", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseEquality()
	for p.at(token.AND) {
		p.advance()
		right := p.parseEquality()
		left = &ast.BinaryOp{Op: "and", Left: left, Right: right}
	}
	return left
}

var equalityOps = map[token.Kind]string{token.EQ: "==", token.NEQ: "!="}
var relationalOps = map[token.Kind]string{
	token.LT: "<", token.LE: "<=", token.GT: ">", token.GE: ">=",
}
var additiveOps = map[token.Kind]string{token.PLUS: "+", token.MINUS: "-"}
var multiplicativeOps = map[token.Kind]string{
	token.STAR: "*", token.SLASH: "/", token.PERCENT: "%",
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseRelational()
	for {
		op, ok := equalityOps[p.cur.Kind]
		if !ok {
			return left
		}
		p.advance()
		right := p.parseRelational()
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseRelational() ast.Expr {
	left := p.parseAdditive()
	for {
		op, ok := relationalOps[p.cur.Kind]
		if !ok {
			return left
		}
		p.advance()
		right := p.parseAdditive()
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for {
		op, ok := additiveOps[p.cur.Kind]
		if !ok {
			return left
		}
		p.advance()
		right := p.parseMultiplicative()
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for {
		op, ok := multiplicativeOps[p.cur.Kind]
		if !ok {
			return left
		}
		p.advance()
		right := p.parseUnary()
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	if p.at(token.MINUS) {
		p.advance()
		return &ast.UnaryOp{Op: "-", X: p.parseUnary()}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	x := p.parsePrimary()
	for {
		switch p.cur.Kind {
		case token.DOT:
			p.advance()
			name := p.expect(token.IDENT).Text
			x = &ast.AttrExpr{Target: x, Name: name}
		case token.LBRACKET:
			p.advance()
			idx := p.parseExpr()
			p.expect(token.RBRACKET)
			x = &ast.IndexExpr{Target: x, Index: idx}
		case token.LPAREN:
			p.advance()
			var args []ast.Expr
			for !p.at(token.RPAREN) && p.err == nil {
				args = append(args, p.parseExpr())
				if p.at(token.COMMA) {
					p.advance()
				} else {
					break
				}
			}
			p.expect(token.RPAREN)
			x = &ast.CallExpr{Callee: x, Args: args}
		default:
			return x
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.cur
	switch tok.Kind {
	case token.NIL:
		p.advance()
		return &ast.NilLit{}
	case token.TRUE:
		p.advance()
		return &ast.BoolLit{Value: true}
	case token.FALSE:
		p.advance()
		return &ast.BoolLit{Value: false}
	case token.NUMBER:
		p.advance()
		return &ast.NumberLit{Value: tok.Num}
	case token.STRING:
		p.advance()
		return &ast.StringLit{Value: tok.Text}
	case token.SELF:
		p.advance()
		return &ast.SelfExpr{}
	case token.IDENT:
		p.advance()
		return &ast.Ident{Name: tok.Text}
	case token.LPAREN:
		p.advance()
		x := p.parseExpr()
		p.expect(token.RPAREN)
		return x
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseFor()
	case token.FN:
		return p.parseFunc()
	case token.LBRACE:
		return p.parseTableLit()
	case token.LBRACKET:
		return p.parseArrayLit()
	default:
		p.fail("unexpected token %v", tok.Kind)
		return &ast.NilLit{}
	}
}

func (p *Parser) parseIf() ast.Expr {
	p.advance()
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	then := p.parseBody()
	node := &ast.IfExpr{Cond: cond, Then: then}
	if p.at(token.ELSE) {
		p.advance()
		node.Else = p.parseBody()
	}
	return node
}

func (p *Parser) parseWhile() ast.Expr {
	p.advance()
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	body := p.parseBody()
	return &ast.WhileExpr{Cond: cond, Body: body}
}

func (p *Parser) parseFor() ast.Expr {
	p.advance()
	p.expect(token.LPAREN)
	node := &ast.ForExpr{}
	if !p.at(token.SEMI) {
		node.Init = p.parseStmt()
	} else {
		p.advance()
	}
	if !p.at(token.SEMI) {
		node.Cond = p.parseExpr()
	}
	p.expect(token.SEMI)
	if !p.at(token.RPAREN) {
		node.Step = &ast.ExprStmt{X: p.parseExpr()}
	}
	p.expect(token.RPAREN)
	node.Body = p.parseBody()
	return node
}

func (p *Parser) parseFunc() ast.Expr {
	p.advance()
	fn := &ast.FuncExpr{}
	if p.at(token.IDENT) {
		fn.Name = p.cur.Text
		p.advance()
	}
	p.expect(token.LPAREN)
	for !p.at(token.RPAREN) && p.err == nil {
		fn.Params = append(fn.Params, p.expect(token.IDENT).Text)
		if p.at(token.COMMA) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RPAREN)
	if p.at(token.LBRACKET) {
		p.advance()
		for !p.at(token.RBRACKET) && p.err == nil {
			fn.Captures = append(fn.Captures, p.parseExpr())
			if p.at(token.COMMA) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(token.RBRACKET)
	}
	fn.Body = p.parseBody()
	return fn
}

func (p *Parser) parseTableLit() ast.Expr {
	p.advance()
	lit := &ast.TableLit{}
	for !p.at(token.RBRACE) && p.err == nil {
		name := p.expect(token.IDENT).Text
		p.expect(token.ASSIGN)
		value := p.parseExpr()
		lit.Keys = append(lit.Keys, name)
		lit.Values = append(lit.Values, value)
		if p.at(token.COMMA) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RBRACE)
	if p.at(token.META) {
		p.advance()
		lit.Meta = p.parseUnary()
	}
	return lit
}

func (p *Parser) parseArrayLit() ast.Expr {
	p.advance()
	lit := &ast.ArrayLit{}
	for !p.at(token.RBRACKET) && p.err == nil {
		lit.Elems = append(lit.Elems, p.parseExpr())
		if p.at(token.COMMA) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RBRACKET)
	return lit
}
