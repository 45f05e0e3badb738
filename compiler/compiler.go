package compiler

import (
	"fmt"

	"github.com/weftlang/weft/asm"
	"github.com/weftlang/weft/internal/ast"
	"github.com/weftlang/weft/object"
)

// Error is a compile-time diagnostic (spec §7.3: name resolution never
// fails at compile time, but the reserved load/from/as syntax and
// malformed assignment targets do).
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Compiler lowers a parsed program into an Assembly. It holds the single
// error encountered (compilation aborts on the first one, matching the
// parser's report-once-then-abort policy).
type Compiler struct {
	assembly *asm.Assembly
	err      error
}

// Compile lowers a whole program (the parser's top-level Block) to an
// Assembly, run in the global scope.
func Compile(program *ast.Block) (*asm.Assembly, error) {
	c := &Compiler{assembly: &asm.Assembly{}}
	c.compileBlockDiscard(program.Stmts, newGlobalScope())
	if c.err != nil {
		return nil, c.err
	}
	return c.assembly, nil
}

func (c *Compiler) fail(format string, args ...interface{}) {
	if c.err == nil {
		c.err = &Error{Message: fmt.Sprintf(format, args...)}
	}
}

func (c *Compiler) intern(s string) string { return c.assembly.Interner.Intern(s) }

// compileBlockDiscard compiles a sequence of statements for their side
// effects only: every expression statement's value is popped, matching
// stack discipline for bodies that don't produce a value (the top-level
// program, and while/for loop bodies).
func (c *Compiler) compileBlockDiscard(stmts []ast.Stmt, sc *scope) {
	for _, stmt := range stmts {
		c.compileStmtDiscard(stmt, sc)
	}
}

func (c *Compiler) compileStmtDiscard(stmt ast.Stmt, sc *scope) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		c.compileExpr(s.X, sc)
		c.assembly.Emit(asm.POP, object.Integer(1))
	case *ast.ReturnStmt:
		c.compileReturn(s, sc)
	case *ast.LoadStmt:
		c.compileLoad(s)
	default:
		c.fail("unsupported statement %T", stmt)
	}
}

func (c *Compiler) compileReturn(s *ast.ReturnStmt, sc *scope) {
	if s.X != nil {
		c.compileExpr(s.X, sc)
		c.assembly.Emit(asm.RETURN, object.Bool(true))
		return
	}
	c.assembly.Emit(asm.RETURN, object.Bool(false))
}

// compileLoad rejects the reserved load/from/as syntax: the tokens parse,
// but any use is a compile-time error until a module model is specified
// (spec §9 open question).
func (c *Compiler) compileLoad(s *ast.LoadStmt) {
	c.fail("load %q as %s: module loading is not implemented", s.Path, s.As)
}

// compileFunctionBody compiles a function's body in its own scope. Unlike
// compileBlockDiscard, the body's final expression statement (when not
// already an explicit `return`) is treated as an implicit `return` of its
// value -- this language has no bare "fall off the end" semantics for a
// function whose last statement is an expression (see scenario: `fn fib(n)
// if (n<2) n else fib(n-1)+fib(n-2);` returns a value with no `return`
// keyword anywhere in the body).
func (c *Compiler) compileFunctionBody(body ast.Node, sc *scope) {
	stmts := bodyStmts(body)
	if len(stmts) == 0 {
		c.assembly.Emit(asm.POP_FRAME, object.Bool(false))
		c.assembly.Emit(asm.RETURN, object.Bool(false))
		return
	}
	for _, stmt := range stmts[:len(stmts)-1] {
		c.compileStmtDiscard(stmt, sc)
	}
	last := stmts[len(stmts)-1]
	switch s := last.(type) {
	case *ast.ReturnStmt:
		c.compileReturn(s, sc)
	case *ast.ExprStmt:
		c.compileExpr(s.X, sc)
		c.assembly.Emit(asm.RETURN, object.Bool(true))
	case *ast.LoadStmt:
		c.compileLoad(s)
		c.assembly.Emit(asm.RETURN, object.Bool(false))
	default:
		c.fail("unsupported statement %T", last)
	}
}

// bodyStmts normalizes a parsed body (either a *ast.Block or a single bare
// statement) into a statement slice.
func bodyStmts(body ast.Node) []ast.Stmt {
	if block, ok := body.(*ast.Block); ok {
		return block.Stmts
	}
	if stmt, ok := body.(ast.Stmt); ok {
		return []ast.Stmt{stmt}
	}
	return nil
}

// compileValue compiles body so that exactly one value is left on the
// stack representing it, used for if/else branches which are themselves
// expressions. A branch ending in `return` diverges control entirely; the
// trailing PUSH(Nil) after it is unreachable bytecode kept only so the
// static +1 stack-effect contract holds for any future tooling that walks
// the assembly without executing it.
func (c *Compiler) compileValue(body ast.Node, sc *scope) {
	stmts := bodyStmts(body)
	if len(stmts) == 0 {
		c.pushNil()
		return
	}
	for _, stmt := range stmts[:len(stmts)-1] {
		c.compileStmtDiscard(stmt, sc)
	}
	last := stmts[len(stmts)-1]
	switch s := last.(type) {
	case *ast.ExprStmt:
		c.compileExpr(s.X, sc)
	case *ast.ReturnStmt:
		c.compileReturn(s, sc)
		c.pushNil()
	case *ast.LoadStmt:
		c.compileLoad(s)
		c.pushNil()
	default:
		c.fail("unsupported statement %T", last)
	}
}

func (c *Compiler) pushNil() { c.assembly.Emit(asm.PUSH, object.Nil) }

// compileExpr compiles e so that it leaves exactly one value on the stack.
func (c *Compiler) compileExpr(e ast.Expr, sc *scope) {
	switch x := e.(type) {
	case *ast.NilLit:
		c.pushNil()
	case *ast.BoolLit:
		c.assembly.Emit(asm.PUSH, object.Bool(x.Value))
	case *ast.NumberLit:
		c.assembly.Emit(asm.PUSH, object.Number(x.Value))
	case *ast.StringLit:
		c.assembly.Emit(asm.PUSH, object.CStringVal(c.intern(x.Value)))
		c.assembly.Emit(asm.NEW_OBJ, object.Integer(asm.NewStringLit))
	case *ast.Ident:
		c.compileReadIdent(x.Name, sc)
	case *ast.SelfExpr:
		c.assembly.EmitBare(asm.GET_SELF)
	case *ast.Assign:
		c.compileAssign(x, sc)
	case *ast.BinaryOp:
		c.compileBinaryOp(x, sc)
	case *ast.UnaryOp:
		c.compileExpr(x.X, sc)
		switch x.Op {
		case "-":
			c.assembly.EmitBare(asm.NEG)
		case "not":
			c.assembly.EmitBare(asm.NOT)
		default:
			c.fail("unknown unary operator %q", x.Op)
		}
	case *ast.AttrExpr:
		c.compileExpr(x.Target, sc)
		c.assembly.Emit(asm.LOAD_ATTR, object.CStringVal(c.intern(x.Name)))
	case *ast.IndexExpr:
		c.compileExpr(x.Target, sc)
		c.compileExpr(x.Index, sc)
		c.assembly.EmitBare(asm.LOAD_INDEX)
	case *ast.CallExpr:
		c.compileCall(x, sc)
	case *ast.IfExpr:
		c.compileIf(x, sc)
	case *ast.WhileExpr:
		c.compileWhile(x, sc)
	case *ast.ForExpr:
		c.compileFor(x, sc)
	case *ast.FuncExpr:
		c.compileFunc(x, sc)
	case *ast.TableLit:
		c.compileTableLit(x, sc)
	case *ast.ArrayLit:
		c.compileArrayLit(x, sc)
	default:
		c.fail("unsupported expression %T", e)
	}
}

func (c *Compiler) compileReadIdent(name string, sc *scope) {
	if slot, depth, ok := sc.getLocal(name); ok {
		c.assembly.Emit(asm.LOAD_FAST, object.Double16Val(int16(slot), int16(depth)))
		return
	}
	if idx, ok := sc.getCapture(name); ok {
		c.assembly.Emit(asm.LOAD_CLOSURE, object.Integer(int32(idx)))
		return
	}
	c.assembly.Emit(asm.LOAD_NAME, object.CStringVal(c.intern(name)))
}

// compileAssignIdent implements the assignment-specific resolution rule
// (spec §4.1), distinct from read resolution: the global scope always
// stores by name; any other scope stores to a depth-0 local in the
// CURRENT scope only, creating one if name isn't already bound there
// (assignment never reaches into an enclosing scope's locals or a
// capture).
func (c *Compiler) compileAssignIdent(name string, sc *scope) {
	if sc.isGlobal {
		c.assembly.Emit(asm.STORE_NAME, object.CStringVal(c.intern(name)))
		c.assembly.Emit(asm.LOAD_NAME, object.CStringVal(c.intern(name)))
		return
	}
	slot := sc.defineLocal(name)
	c.assembly.Emit(asm.STORE_FAST, object.Double16Val(int16(slot), 0))
	c.assembly.Emit(asm.LOAD_FAST, object.Double16Val(int16(slot), 0))
}

// compileAssign lowers `target = value`. Name targets reload the stored
// value (so the assignment expression's value is the value that was
// stored); attribute/index targets leave the container that STORE_ATTR /
// STORE_INDEX naturally peek rather than paying for an extra reload --
// the assignment expression's value is the container in that case, a
// minor quirk on a par with the language's other aliasing quirks.
func (c *Compiler) compileAssign(a *ast.Assign, sc *scope) {
	switch target := a.Target.(type) {
	case *ast.Ident:
		c.compileExpr(a.Value, sc)
		c.compileAssignIdent(target.Name, sc)
	case *ast.AttrExpr:
		c.compileExpr(target.Target, sc)
		c.compileExpr(a.Value, sc)
		c.assembly.Emit(asm.STORE_ATTR, object.CStringVal(c.intern(target.Name)))
	case *ast.IndexExpr:
		c.compileExpr(target.Target, sc)
		c.compileExpr(target.Index, sc)
		c.compileExpr(a.Value, sc)
		c.assembly.EmitBare(asm.STORE_INDEX)
	default:
		c.fail("invalid assignment target %T", a.Target)
	}
}

var binaryOpcodes = map[string]asm.Opcode{
	"+": asm.ADD, "-": asm.SUB, "*": asm.MUL, "/": asm.DIV, "%": asm.MOD,
	"==": asm.EQUAL, "!=": asm.NOT_EQUAL,
	"<": asm.LESS, "<=": asm.LESS_EQUAL, ">": asm.GREATER, ">=": asm.GREATER_EQUAL,
}

// compileBinaryOp lowers a binary operator. Per spec §4.1, the RIGHT
// operand is emitted first, then the LEFT, then the op: the interpreter
// pops left then right, so source order `left op right` is preserved
// while side effects run right-to-left (testable via `f() + g()` printing
// `g` before `f`). `and`/`or` are the redesigned short-circuit forms
// instead of the source reference's buggy MULTIPLY/ADD lowering.
func (c *Compiler) compileBinaryOp(b *ast.BinaryOp, sc *scope) {
	switch b.Op {
	case "or":
		c.compileExpr(b.Left, sc)
		j := c.assembly.Emit(asm.JUMP_IF_TRUE_OR_POP, object.Nil)
		c.compileExpr(b.Right, sc)
		c.assembly.PatchJumpHere(j)
		return
	case "and":
		c.compileExpr(b.Left, sc)
		j := c.assembly.Emit(asm.JUMP_IF_FALSE_OR_POP, object.Nil)
		c.compileExpr(b.Right, sc)
		c.assembly.PatchJumpHere(j)
		return
	}
	op, ok := binaryOpcodes[b.Op]
	if !ok {
		c.fail("unknown binary operator %q", b.Op)
		return
	}
	c.compileExpr(b.Right, sc)
	c.compileExpr(b.Left, sc)
	c.assembly.EmitBare(op)
}

// compileCall pushes each argument in source order (so arg0 ends up
// deepest on the stack), then the callee on top, then CALL -- the
// function prologue's STORE_FAST instructions run in reverse slot order
// so that the leftmost parameter, compiled last, consumes the deepest
// (first-pushed) argument (spec §4.1, §4.3).
func (c *Compiler) compileCall(call *ast.CallExpr, sc *scope) {
	for _, arg := range call.Args {
		c.compileExpr(arg, sc)
	}
	c.compileExpr(call.Callee, sc)
	c.assembly.Emit(asm.CALL, object.Integer(int32(len(call.Args))))
}

// compileIf lowers `if (cond) then [else else_]` as a value-producing
// expression: the taken branch's value is left on the stack, or Nil if
// the condition is false and there is no else clause.
func (c *Compiler) compileIf(n *ast.IfExpr, sc *scope) {
	c.compileExpr(n.Cond, sc)
	jnt := c.assembly.Emit(asm.JUMP_NOT_TEST, object.Nil)
	c.compileValue(n.Then, sc)
	jmp := c.assembly.Emit(asm.JUMP, object.Nil)
	c.assembly.PatchJumpHere(jnt)
	if n.Else != nil {
		c.compileValue(n.Else, sc)
	} else {
		c.pushNil()
	}
	c.assembly.PatchJumpHere(jmp)
}

// compileWhile lowers `while (cond) body`. The body's value is discarded
// each iteration; the loop expression itself always yields Nil.
func (c *Compiler) compileWhile(n *ast.WhileExpr, sc *scope) {
	top := c.assembly.Len()
	c.compileExpr(n.Cond, sc)
	jnt := c.assembly.Emit(asm.JUMP_NOT_TEST, object.Nil)
	c.compileBlockDiscard(bodyStmts(n.Body), sc)
	c.assembly.Emit(asm.JUMP, object.Integer(int32(top)))
	c.assembly.PatchJumpHere(jnt)
	c.pushNil()
}

// compileFor lowers `for (init; cond; step) body`, desugared into the
// equivalent while loop: init once, then loop while cond (default true),
// running body then step each iteration.
func (c *Compiler) compileFor(n *ast.ForExpr, sc *scope) {
	if n.Init != nil {
		c.compileStmtDiscard(n.Init.(ast.Stmt), sc)
	}
	top := c.assembly.Len()
	var jnt int
	hasCond := n.Cond != nil
	if hasCond {
		c.compileExpr(n.Cond, sc)
		jnt = c.assembly.Emit(asm.JUMP_NOT_TEST, object.Nil)
	}
	c.compileBlockDiscard(bodyStmts(n.Body), sc)
	if n.Step != nil {
		c.compileStmtDiscard(n.Step.(ast.Stmt), sc)
	}
	c.assembly.Emit(asm.JUMP, object.Integer(int32(top)))
	if hasCond {
		c.assembly.PatchJumpHere(jnt)
	}
	c.pushNil()
}

// compileFunc lowers a function definition (named or anonymous). It emits
// MAKE_FUNCTION with a placeholder entry_pc, compiles each capture
// expression in the ENCLOSING scope followed by STORE_CLOSURE, jumps over
// the inline body, patches the entry_pc to the body's start, compiles the
// body in a fresh scope, and -- for a named definition -- stores the
// resulting Function to its name exactly as an assignment would.
func (c *Compiler) compileFunc(fn *ast.FuncExpr, sc *scope) {
	mkf := c.assembly.Emit(asm.MAKE_FUNCTION, object.Integer(0))
	captureNames := make([]string, len(fn.Captures))
	for i, capExpr := range fn.Captures {
		ident, ok := capExpr.(*ast.Ident)
		if !ok {
			c.fail("capture %q must be a plain identifier", capExpr)
			return
		}
		captureNames[i] = ident.Name
		c.compileExpr(capExpr, sc)
		c.assembly.EmitBare(asm.STORE_CLOSURE)
	}
	skip := c.assembly.Emit(asm.JUMP, object.Nil)
	entryPC := c.assembly.Len()
	c.assembly.Patch(mkf, object.Integer(int32(entryPC)))

	fnScope := newFunctionScope(sc)
	for _, name := range captureNames {
		fnScope.addCapture(name)
	}
	for _, p := range fn.Params {
		fnScope.defineParam(p)
	}
	c.assembly.EmitBare(asm.ADD_FRAME)
	for i := len(fn.Params) - 1; i >= 0; i-- {
		c.assembly.Emit(asm.STORE_FAST, object.Double16Val(int16(i), 0))
	}
	c.compileFunctionBody(fn.Body, fnScope)

	c.assembly.PatchJumpHere(skip)

	if fn.Name != "" {
		c.compileAssignIdent(fn.Name, sc)
	}
}

func (c *Compiler) compileTableLit(lit *ast.TableLit, sc *scope) {
	c.assembly.Emit(asm.NEW_OBJ, object.Integer(asm.NewTable))
	for i, key := range lit.Keys {
		c.compileExpr(lit.Values[i], sc)
		c.assembly.Emit(asm.STORE_ATTR, object.CStringVal(c.intern(key)))
	}
	if lit.Meta != nil {
		c.compileExpr(lit.Meta, sc)
		c.assembly.EmitBare(asm.SET_META)
	}
}

func (c *Compiler) compileArrayLit(lit *ast.ArrayLit, sc *scope) {
	c.assembly.Emit(asm.NEW_OBJ, object.Integer(asm.NewArray))
	for _, elem := range lit.Elems {
		c.compileExpr(elem, sc)
		c.assembly.EmitBare(asm.STORE_APPEND)
	}
}
