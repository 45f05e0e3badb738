/*
Package weft is the root of a small dynamically-typed scripting language: a
tree-walking recursive-descent compiler that lowers source straight to a
flat bytecode Assembly, and a stack-based mark-sweep-collected VM that
executes it.

A program is a sequence of statements. Expressions include arithmetic with
the usual precedence, short-circuit `and`/`or`, tables with optional `meta`
fallback chains and a `self` binding on method calls, arrays, and first-class
functions that close over named captures by value at definition time:

	fn make_adder(n) begin
		fn add(x) [n] n + x;
		add;
	end
	adder = make_adder(10);
	print(adder(5)); // 15

`if`, `while`, and `for` are themselves expressions: `if` yields the taken
branch's value (or nil), which lets a function's last expression serve as an
implicit return with no `return` keyword:

	fn fib(n) if (n < 2) n else fib(n - 1) + fib(n - 2);

The pieces:

	internal/token, internal/lexer — token types and the character-level
	    scanner (outside this language's own scope; treated as a fixed
	    external contract).
	internal/ast     — the parsed syntax tree.
	internal/parser   — recursive-descent parser, source -> ast.Block.
	asm               — the flat instruction Assembly the compiler emits.
	compiler          — ast.Block -> asm.Assembly, resolving names into
	                    local/capture/global binding classes.
	object            — the tagged Value union and the heap entities
	                    (Table, Array, String, Function, HostFunction).
	gc                — the allocation-threshold-triggered mark-sweep
	                    collector over an object.Heap.
	vm                — the bytecode interpreter: frame pool, value stack,
	                    and the opcode dispatch loop.
	stdlib            — host-provided callables (print, input, clock, and
	                    so on) registered as globals before a run.
	cmd/weft          — the command-line entry point and REPL.

Everything a program can observe is deterministic: two runs of the same
source against the same host bindings produce identical output and final
global state.
*/
package weft
