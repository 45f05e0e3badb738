package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlang/weft/internal/ast"
	"github.com/weftlang/weft/internal/lexer"
	"github.com/weftlang/weft/internal/parser"
)

func parse(t *testing.T, src string) *ast.Block {
	t.Helper()
	block, err := parser.ParseProgram(lexer.New(src))
	require.NoError(t, err)
	return block
}

func TestParseArithmeticPrecedence(t *testing.T) {
	block := parse(t, "1 + 2 * 3;")
	require.Len(t, block.Stmts, 1)
	exprStmt := block.Stmts[0].(*ast.ExprStmt)
	bin := exprStmt.X.(*ast.BinaryOp)
	assert.Equal(t, "+", bin.Op)
	assert.IsType(t, &ast.NumberLit{}, bin.Left)
	mul := bin.Right.(*ast.BinaryOp)
	assert.Equal(t, "*", mul.Op)
}

func TestParseAssignment(t *testing.T) {
	block := parse(t, "x = 1;")
	assign := block.Stmts[0].(*ast.ExprStmt).X.(*ast.Assign)
	assert.Equal(t, "x", assign.Target.(*ast.Ident).Name)
}

func TestParseIfElse(t *testing.T) {
	block := parse(t, "if (x) 1; else 2;")
	ifExpr := block.Stmts[0].(*ast.ExprStmt).X.(*ast.IfExpr)
	assert.NotNil(t, ifExpr.Then)
	assert.NotNil(t, ifExpr.Else)
}

func TestParseWhileBeginEnd(t *testing.T) {
	block := parse(t, "while (x) begin x = x - 1; end")
	while := block.Stmts[0].(*ast.ExprStmt).X.(*ast.WhileExpr)
	body := while.Body.(*ast.Block)
	assert.Len(t, body.Stmts, 1)
}

func TestParseForLoop(t *testing.T) {
	block := parse(t, "for (i = 0; i < 10; i = i + 1) print(i);")
	forExpr := block.Stmts[0].(*ast.ExprStmt).X.(*ast.ForExpr)
	assert.NotNil(t, forExpr.Init)
	assert.NotNil(t, forExpr.Cond)
	assert.NotNil(t, forExpr.Step)
}

func TestParseNamedFunction(t *testing.T) {
	block := parse(t, "fn add(a, b) return a + b;")
	fn := block.Stmts[0].(*ast.ExprStmt).X.(*ast.FuncExpr)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []string{"a", "b"}, fn.Params)
}

func TestParseAnonymousFunctionWithCaptures(t *testing.T) {
	block := parse(t, "fn(x)[y] return x + y;")
	fn := block.Stmts[0].(*ast.ExprStmt).X.(*ast.FuncExpr)
	assert.Empty(t, fn.Name)
	require.Len(t, fn.Captures, 1)
	assert.Equal(t, "y", fn.Captures[0].(*ast.Ident).Name)
}

func TestParseTableLitWithMeta(t *testing.T) {
	block := parse(t, "{x = 1, y = 2} meta base;")
	lit := block.Stmts[0].(*ast.ExprStmt).X.(*ast.TableLit)
	assert.Equal(t, []string{"x", "y"}, lit.Keys)
	require.NotNil(t, lit.Meta)
	assert.Equal(t, "base", lit.Meta.(*ast.Ident).Name)
}

func TestParseArrayLitAndIndex(t *testing.T) {
	block := parse(t, "[1, 2, 3][0];")
	idx := block.Stmts[0].(*ast.ExprStmt).X.(*ast.IndexExpr)
	lit := idx.Target.(*ast.ArrayLit)
	assert.Len(t, lit.Elems, 3)
}

func TestParseAttrChainAndCall(t *testing.T) {
	block := parse(t, "self.foo.bar(1, 2);")
	call := block.Stmts[0].(*ast.ExprStmt).X.(*ast.CallExpr)
	attr := call.Callee.(*ast.AttrExpr)
	assert.Equal(t, "bar", attr.Name)
	inner := attr.Target.(*ast.AttrExpr)
	assert.Equal(t, "foo", inner.Name)
	assert.IsType(t, &ast.SelfExpr{}, inner.Target)
	assert.Len(t, call.Args, 2)
}

func TestParseLoadAsAcceptedSyntactically(t *testing.T) {
	block := parse(t, `load "foo" as bar;`)
	stmt := block.Stmts[0].(*ast.LoadStmt)
	assert.Equal(t, "foo", stmt.Path)
	assert.Equal(t, "bar", stmt.As)
}

func TestParseFromLoadAsAcceptedSyntactically(t *testing.T) {
	block := parse(t, `from "foo" load bar;`)
	stmt := block.Stmts[0].(*ast.LoadStmt)
	assert.Equal(t, "foo", stmt.Path)
	assert.Equal(t, "bar", stmt.As)
}

func TestParseReturnBare(t *testing.T) {
	block := parse(t, "fn f() return;")
	fn := block.Stmts[0].(*ast.ExprStmt).X.(*ast.FuncExpr)
	body := fn.Body.(*ast.ReturnStmt)
	assert.Nil(t, body.X)
}

func TestParseLogicalShortCircuitOperators(t *testing.T) {
	block := parse(t, "a and b or c;")
	or := block.Stmts[0].(*ast.ExprStmt).X.(*ast.BinaryOp)
	assert.Equal(t, "or", or.Op)
	and := or.Left.(*ast.BinaryOp)
	assert.Equal(t, "and", and.Op)
}

func TestParseSyntaxErrorReturnsErr(t *testing.T) {
	_, err := parser.ParseProgram(lexer.New("1 +;"))
	assert.Error(t, err)
}

func TestParseUnaryMinus(t *testing.T) {
	block := parse(t, "-x;")
	unary := block.Stmts[0].(*ast.ExprStmt).X.(*ast.UnaryOp)
	assert.Equal(t, "-", unary.Op)
}
