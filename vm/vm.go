// Package vm implements the stack-based execution engine: activation
// frames pulled from a fixed-capacity pool, a value stack, a distinguished
// currently-executing callee used for `self` and closure resolution, and
// the dispatch loop that interprets an asm.Assembly (spec §4.3, §4.4).
package vm

import (
	"github.com/weftlang/weft/asm"
	"github.com/weftlang/weft/gc"
	"github.com/weftlang/weft/internal/flushio"
	"github.com/weftlang/weft/object"
)

// DefaultStackCapacity is the value stack's fixed capacity (spec §4.3,
// default >= 1MiB / sizeof(Value); sized here directly in value slots).
const DefaultStackCapacity = 1 << 16

// VM owns every piece of mutable runtime state for one program run: the
// value stack, the frame pool, the currently executing Function (used by
// GET_SELF/LOAD_CLOSURE), the globals table, and the managed heap with its
// collector (spec §4.3).
type VM struct {
	assembly *asm.Assembly
	pc       int
	halted   bool

	stack         []object.Value
	sp            int
	stackCapacity int

	frames        *FramePool
	frameCapacity int
	current       *Frame

	globals map[string]object.Value

	heap        *object.Heap
	collector   *gc.Collector
	gcThreshold uint
	memLimit    uint

	callee          *object.Function
	parametersCount int
	argsBase        int

	out   flushio.WriteFlusher
	trace func(pc int, op asm.Op)
}

// New constructs a VM ready to run assembly, applying opts over the
// default configuration (spec §4.3 defaults: 1024-frame pool, >=1MiB
// stack, 1MiB GC threshold).
func New(assembly *asm.Assembly, opts ...Option) *VM {
	vm := &VM{
		assembly: assembly,
		globals:  make(map[string]object.Value),
		heap:     &object.Heap{},
	}
	defaultOptions.apply(vm)
	Options(opts...).apply(vm)
	if vm.gcThreshold == 0 {
		vm.gcThreshold = gc.DefaultThreshold
	}
	vm.stack = make([]object.Value, vm.stackCapacity)
	vm.frames = NewFramePool(vm.frameCapacity)
	vm.collector = gc.New(vm.heap)
	vm.collector.Threshold = vm.gcThreshold
	base := &Frame{ReturnAddress: -1}
	vm.current = base
	return vm
}

// Globals exposes the global bindings table directly, for callers (tests,
// the REPL) that want to inspect a program's final state.
func (vm *VM) Globals() map[string]object.Value { return vm.globals }

// Heap exposes the managed object heap, mainly for tests and diagnostics.
func (vm *VM) Heap() *object.Heap { return vm.heap }

// Collector exposes the garbage collector, so a `collect_garbage` host
// builtin can request an immediate collection.
func (vm *VM) Collector() *gc.Collector { return vm.collector }

// CollectGarbage runs one immediate mark-sweep cycle using this VM's own
// roots (globals, value stack, live frame locals), for the
// `collect_garbage` host builtin.
func (vm *VM) CollectGarbage() gc.Stats { return vm.collector.Collect(vm.markRoots) }

// SetGlobal installs or overwrites a global binding, used by host setup
// code to register builtins before Run (spec §6 "Host registration").
func (vm *VM) SetGlobal(name string, v object.Value) { vm.globals[name] = v }

// RunAssembly replaces the assembly being executed and runs it from its
// first instruction, while preserving every other piece of VM state
// (globals, heap, frame pool). This is what lets a REPL compile and run
// one line at a time against a single persistent VM.
func (vm *VM) RunAssembly(assembly *asm.Assembly) error {
	vm.assembly = assembly
	vm.pc = 0
	vm.halted = false
	return vm.Run()
}

func (vm *VM) push(v object.Value) error {
	if vm.sp >= len(vm.stack) {
		return newRuntimeError(ErrStackOverflow, vm.pc, "stack capacity %d exceeded", len(vm.stack))
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() (object.Value, error) {
	if vm.sp == 0 {
		return object.Nil, newRuntimeError(ErrStackOverflow, vm.pc, "pop from empty stack")
	}
	vm.sp--
	return vm.stack[vm.sp], nil
}

func (vm *VM) peek() (object.Value, error) {
	if vm.sp == 0 {
		return object.Nil, newRuntimeError(ErrStackOverflow, vm.pc, "peek on empty stack")
	}
	return vm.stack[vm.sp-1], nil
}

// ParametersCount implements object.HostVM.
func (vm *VM) ParametersCount() int { return vm.parametersCount }

// GetParameter implements object.HostVM: argument 0 is the leftmost source
// argument.
func (vm *VM) GetParameter(i int) object.Value {
	if i < 0 || i >= vm.parametersCount {
		return object.Nil
	}
	return vm.stack[vm.argsBase+i]
}

// Push implements object.HostVM, letting a host builtin leave a result.
func (vm *VM) Push(v object.Value) { vm.stack[vm.sp] = v; vm.sp++ }

// Output returns the flush-able writer the `print` builtin writes to.
func (vm *VM) Output() flushio.WriteFlusher { return vm.out }

// Run executes the assembly from its first instruction to completion,
// stopping at a top-level `return`, falling off the end of the assembly,
// or a runtime error (spec §7.4: errors terminate the run rather than
// corrupting the stack or heap).
func (vm *VM) Run() error {
	for !vm.halted && vm.pc < vm.assembly.Len() {
		if err := vm.step(); err != nil {
			return err
		}
	}
	if vm.out != nil {
		vm.out.Flush()
	}
	return nil
}

// CallFunction invokes fn synchronously with args and returns its result,
// used both by the VM's own Table `__add` meta dispatch (spec §4.4) and
// by host builtins that need to call back into a Function (spec §5: "may
// re-enter the VM exactly once through the call a Function from the host
// path").
func (vm *VM) CallFunction(fn *object.Function, args []object.Value) (object.Value, error) {
	for _, a := range args {
		if err := vm.push(a); err != nil {
			return object.Nil, err
		}
	}
	if err := vm.push(object.FromObject(fn)); err != nil {
		return object.Nil, err
	}
	resumeAt := vm.pc
	savedCurrent := vm.current
	if err := vm.call(len(args), resumeAt); err != nil {
		return object.Nil, err
	}
	for {
		if err := vm.step(); err != nil {
			return object.Nil, err
		}
		if vm.halted {
			break
		}
		if vm.current == savedCurrent && vm.pc == resumeAt {
			break
		}
	}
	return vm.pop()
}

func (vm *VM) step() error {
	op := vm.assembly.At(vm.pc)
	pc := vm.pc
	vm.pc++

	if vm.trace != nil {
		vm.trace(pc, op)
	}

	switch op.Code {
	case asm.PUSH:
		return vm.push(op.Operand)

	case asm.POP:
		n := int(op.Operand.Integer())
		for i := 0; i < n; i++ {
			if _, err := vm.pop(); err != nil {
				return err
			}
		}
		return nil

	case asm.ADD, asm.SUB, asm.MUL, asm.DIV, asm.MOD, asm.IDIV:
		return vm.binaryArith(op.Code, pc)

	case asm.NEG:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if v.Kind() != object.KindNumber {
			return newRuntimeError(ErrBadOperand, pc, "cannot negate a %s", v.Kind())
		}
		return vm.push(object.Number(-v.Number()))

	case asm.NOT:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(object.Bool(!v.Truthy()))

	case asm.EQUAL, asm.NOT_EQUAL:
		left, right, err := vm.popLeftRight()
		if err != nil {
			return err
		}
		eq := left.Equal(right)
		if op.Code == asm.NOT_EQUAL {
			eq = !eq
		}
		return vm.push(object.Bool(eq))

	case asm.LESS, asm.LESS_EQUAL, asm.GREATER, asm.GREATER_EQUAL:
		return vm.compare(op.Code, pc)

	case asm.LOAD_NAME:
		return vm.push(vm.globals[op.Operand.CString()])

	case asm.STORE_NAME:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.globals[op.Operand.CString()] = v
		return nil

	case asm.LOAD_FAST:
		idx, depth := op.Operand.Double16()
		f := vm.current.Ancestor(int(depth))
		if f == nil {
			return newRuntimeError(ErrBadOperand, pc, "local access at depth %d has no frame", depth)
		}
		return vm.push(f.Locals[idx])

	case asm.STORE_FAST:
		idx, depth := op.Operand.Double16()
		v, err := vm.pop()
		if err != nil {
			return err
		}
		f := vm.current.Ancestor(int(depth))
		if f == nil {
			return newRuntimeError(ErrBadOperand, pc, "local store at depth %d has no frame", depth)
		}
		f.Locals[idx] = v
		if int(idx) >= f.Used {
			f.Used = int(idx) + 1
		}
		return nil

	case asm.LOAD_ATTR:
		return vm.loadAttr(op.Operand.CString(), pc)

	case asm.LOAD_INDEX:
		return vm.loadIndex(pc)

	case asm.STORE_ATTR:
		return vm.storeAttr(op.Operand.CString(), pc)

	case asm.STORE_INDEX:
		return vm.storeIndex(pc)

	case asm.STORE_APPEND:
		return vm.storeAppend(pc)

	case asm.JUMP:
		vm.pc = int(op.Operand.Integer())
		return nil

	case asm.JUMP_NOT_TEST:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if !v.Truthy() {
			vm.pc = int(op.Operand.Integer())
		}
		return nil

	case asm.JUMP_IF_TRUE_OR_POP:
		v, err := vm.peek()
		if err != nil {
			return err
		}
		if v.Truthy() {
			vm.pc = int(op.Operand.Integer())
			return nil
		}
		_, err = vm.pop()
		return err

	case asm.JUMP_IF_FALSE_OR_POP:
		v, err := vm.peek()
		if err != nil {
			return err
		}
		if !v.Truthy() {
			vm.pc = int(op.Operand.Integer())
			return nil
		}
		_, err = vm.pop()
		return err

	case asm.CALL:
		return vm.call(int(op.Operand.Integer()), vm.pc)

	case asm.MAKE_FUNCTION:
		fn := object.NewFunction(int(op.Operand.Integer()), 0, "")
		vm.heap.Link(fn)
		if err := vm.push(object.FromObject(fn)); err != nil {
			return err
		}
		return vm.maybeCollect()

	case asm.STORE_CLOSURE:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		top, err := vm.peek()
		if err != nil {
			return err
		}
		fn, ok := top.Object().(*object.Function)
		if !ok {
			return newRuntimeError(ErrBadOperand, pc, "STORE_CLOSURE on a non-Function")
		}
		fn.Captures = append(fn.Captures, v)
		return nil

	case asm.LOAD_CLOSURE:
		k := int(op.Operand.Integer())
		if vm.callee == nil || k < 0 || k >= len(vm.callee.Captures) {
			return newRuntimeError(ErrBadOperand, pc, "capture index %d out of range", k)
		}
		return vm.push(vm.callee.Captures[k])

	case asm.GET_SELF:
		if vm.callee == nil || vm.callee.Self == nil {
			return vm.push(object.Nil)
		}
		return vm.push(object.FromObject(vm.callee.Self))

	case asm.ADD_FRAME:
		return vm.addFrame(pc)

	case asm.POP_FRAME:
		return vm.popFrame(pc)

	case asm.RETURN:
		return vm.doReturn(op.Operand.Bool())

	case asm.NEW_OBJ:
		return vm.newObj(int(op.Operand.Integer()), pc)

	case asm.SET_META:
		return vm.setMeta(pc)

	default:
		return newRuntimeError(ErrBadOperand, pc, "unknown opcode %v", op.Code)
	}
}

// popLeftRight pops the top two values in (left, right) order: the
// compiler emits the right operand first then the left (spec §4.1), so
// the interpreter's first pop is the left operand and the second is the
// right.
func (vm *VM) popLeftRight() (left, right object.Value, err error) {
	left, err = vm.pop()
	if err != nil {
		return
	}
	right, err = vm.pop()
	return
}

func (vm *VM) binaryArith(code asm.Opcode, pc int) error {
	left, right, err := vm.popLeftRight()
	if err != nil {
		return err
	}

	if left.Kind() == object.KindNumber {
		if right.Kind() != object.KindNumber {
			return newRuntimeError(ErrBadOperand, pc, "arithmetic between number and %s", right.Kind())
		}
		if (code == asm.MOD || code == asm.IDIV) && int64(right.Number()) == 0 {
			return newRuntimeError(ErrBadOperand, pc, "%s by zero", code)
		}
		return vm.push(numericArith(code, left.Number(), right.Number()))
	}

	if left.Kind() == object.KindObject {
		return vm.objectArith(code, left.Object(), right, pc)
	}

	return newRuntimeError(ErrBadOperand, pc, "arithmetic on a %s", left.Kind())
}

func numericArith(code asm.Opcode, ln, rn float64) object.Value {
	switch code {
	case asm.ADD:
		return object.Number(ln + rn)
	case asm.SUB:
		return object.Number(ln - rn)
	case asm.MUL:
		return object.Number(ln * rn)
	case asm.DIV:
		return object.Number(ln / rn)
	case asm.MOD:
		li, ri := int64(ln), int64(rn)
		return object.Number(float64(li % ri))
	case asm.IDIV:
		li, ri := int64(ln), int64(rn)
		return object.Number(float64(li / ri))
	default:
		return object.Nil
	}
}

// objectArith implements the object side of spec §4.4: String `+` mutates
// its bytes in place and returns the same handle; Array `+` appends and
// returns the same handle; Table `+` delegates to a `__add` method found
// through the meta chain.
func (vm *VM) objectArith(code asm.Opcode, obj object.Object, right object.Value, pc int) error {
	if code != asm.ADD {
		return newRuntimeError(ErrBadOperand, pc, "operator not defined on %s", obj.ObjKind())
	}
	switch o := obj.(type) {
	case *object.String:
		o.AppendStringify(right)
		return vm.push(object.FromObject(o))
	case *object.Array:
		o.Append(right)
		return vm.push(object.FromObject(o))
	case *object.Table:
		member, found := o.Lookup("__add")
		if !found {
			return newRuntimeError(ErrBadOperand, pc, "table has no __add method")
		}
		fn, ok := member.Object().(*object.Function)
		if !ok {
			return newRuntimeError(ErrBadOperand, pc, "table's __add is not a function")
		}
		fn.BindSelf(o)
		result, err := vm.CallFunction(fn, []object.Value{right})
		if err != nil {
			return err
		}
		return vm.push(result)
	default:
		return newRuntimeError(ErrBadOperand, pc, "operator not defined on %s", obj.ObjKind())
	}
}

func (vm *VM) compare(code asm.Opcode, pc int) error {
	left, right, err := vm.popLeftRight()
	if err != nil {
		return err
	}
	if left.Kind() != object.KindNumber || right.Kind() != object.KindNumber {
		return newRuntimeError(ErrBadOperand, pc, "comparison between %s and %s", left.Kind(), right.Kind())
	}
	ln, rn := left.Number(), right.Number()
	var result bool
	switch code {
	case asm.LESS:
		result = ln < rn
	case asm.LESS_EQUAL:
		result = ln <= rn
	case asm.GREATER:
		result = ln > rn
	case asm.GREATER_EQUAL:
		result = ln >= rn
	}
	return vm.push(object.Bool(result))
}

func (vm *VM) loadAttr(name string, pc int) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	tbl, ok := v.Object().(*object.Table)
	if !ok {
		return newRuntimeError(ErrBadAttribute, pc, "cannot read attribute %q of %s", name, v.Kind())
	}
	val, found := tbl.Lookup(name)
	if !found {
		return vm.push(object.Nil)
	}
	if fn, ok := val.Object().(*object.Function); ok {
		fn.BindSelf(tbl)
		return vm.push(object.FromObject(fn))
	}
	return vm.push(val)
}

func (vm *VM) loadIndex(pc int) error {
	idx, err := vm.pop()
	if err != nil {
		return err
	}
	v, err := vm.pop()
	if err != nil {
		return err
	}
	arr, ok := v.Object().(*object.Array)
	if !ok {
		return newRuntimeError(ErrBadAttribute, pc, "cannot index a %s", v.Kind())
	}
	if idx.Kind() != object.KindNumber {
		return newRuntimeError(ErrBadOperand, pc, "array index must be a number, got %s", idx.Kind())
	}
	elem, ok := arr.Get(int(idx.Number()))
	if !ok {
		return newRuntimeError(ErrIndexOutOfRange, pc, "index %d out of range", int(idx.Number()))
	}
	return vm.push(elem)
}

func (vm *VM) storeAttr(name string, pc int) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	top, err := vm.peek()
	if err != nil {
		return err
	}
	tbl, ok := top.Object().(*object.Table)
	if !ok {
		return newRuntimeError(ErrBadAttribute, pc, "cannot set attribute %q of %s", name, top.Kind())
	}
	tbl.Set(name, v)
	return nil
}

// storeIndex expects the stack (bottom to top) [Array, Index, Value]: it
// pops Value and Index and peeks the Array, leaving it on the stack.
func (vm *VM) storeIndex(pc int) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	idx, err := vm.pop()
	if err != nil {
		return err
	}
	top, err := vm.peek()
	if err != nil {
		return err
	}
	arr, ok := top.Object().(*object.Array)
	if !ok {
		return newRuntimeError(ErrBadAttribute, pc, "cannot index-assign a %s", top.Kind())
	}
	if idx.Kind() != object.KindNumber {
		return newRuntimeError(ErrBadOperand, pc, "array index must be a number, got %s", idx.Kind())
	}
	if !arr.Set(int(idx.Number()), v) {
		return newRuntimeError(ErrIndexOutOfRange, pc, "index %d out of range", int(idx.Number()))
	}
	return nil
}

// storeAppend expects the stack [Array, Value]: pops Value, peeks Array,
// appends. Used by array-literal construction.
func (vm *VM) storeAppend(pc int) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	top, err := vm.peek()
	if err != nil {
		return err
	}
	arr, ok := top.Object().(*object.Array)
	if !ok {
		return newRuntimeError(ErrBadAttribute, pc, "cannot append to a %s", top.Kind())
	}
	arr.Append(v)
	return nil
}

func (vm *VM) newObj(kind int, pc int) error {
	switch kind {
	case asm.NewArray:
		a := object.NewArray()
		vm.heap.Link(a)
		if err := vm.push(object.FromObject(a)); err != nil {
			return err
		}
	case asm.NewTable:
		t := object.NewTable()
		vm.heap.Link(t)
		if err := vm.push(object.FromObject(t)); err != nil {
			return err
		}
	case asm.NewStringLit:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if v.Kind() != object.KindCString {
			return newRuntimeError(ErrBadOperand, pc, "NEW_OBJ(String) operand must be a CString")
		}
		s := object.NewString(v.CString())
		vm.heap.Link(s)
		if err := vm.push(object.FromObject(s)); err != nil {
			return err
		}
	default:
		return newRuntimeError(ErrBadOperand, pc, "unknown NEW_OBJ kind %d", kind)
	}
	return vm.maybeCollect()
}

func (vm *VM) setMeta(pc int) error {
	meta, err := vm.pop()
	if err != nil {
		return err
	}
	top, err := vm.peek()
	if err != nil {
		return err
	}
	tbl, ok := top.Object().(*object.Table)
	if !ok {
		return newRuntimeError(ErrBadAttribute, pc, "cannot set meta on a %s", top.Kind())
	}
	metaTbl, ok := meta.Object().(*object.Table)
	if !ok {
		return newRuntimeError(ErrBadOperand, pc, "meta value must be a table, got %s", meta.Kind())
	}
	tbl.Meta = metaTbl
	return nil
}

func (vm *VM) call(argc int, resumeAt int) error {
	calleeVal, err := vm.pop()
	if err != nil {
		return err
	}
	switch obj := calleeVal.Object().(type) {
	case *object.Function:
		vm.current.ReturnAddress = resumeAt
		vm.callee = obj
		vm.pc = obj.EntryPC
		return nil
	case *object.HostFunction:
		return vm.callHost(obj, argc)
	default:
		return newRuntimeError(ErrNotCallable, vm.pc, "value of kind %s is not callable", calleeVal.Kind())
	}
}

func (vm *VM) callHost(host *object.HostFunction, argc int) error {
	savedParamsCount := vm.parametersCount
	savedArgsBase := vm.argsBase
	vm.parametersCount = argc
	vm.argsBase = vm.sp - argc

	result := host.Fn(vm)

	if result == 1 {
		held, err := vm.pop()
		if err != nil {
			return err
		}
		for i := 0; i < argc; i++ {
			if _, err := vm.pop(); err != nil {
				return err
			}
		}
		if err := vm.push(held); err != nil {
			return err
		}
	} else {
		for i := 0; i < argc; i++ {
			if _, err := vm.pop(); err != nil {
				return err
			}
		}
		if err := vm.push(object.Nil); err != nil {
			return err
		}
	}

	vm.parametersCount = savedParamsCount
	vm.argsBase = savedArgsBase
	return nil
}

func (vm *VM) addFrame(pc int) error {
	f, ok := vm.frames.Rent()
	if !ok {
		return newRuntimeError(ErrFramePoolExhausted, pc, "frame pool capacity %d exceeded", vm.frameCapacity)
	}
	f.Parent = vm.current
	f.ReturnAddress = -1
	vm.current = f
	return nil
}

func (vm *VM) popFrame(int) error {
	if vm.current.Parent == nil {
		vm.halted = true
		return nil
	}
	old := vm.current
	vm.current = old.Parent
	vm.frames.Return(old)
	return nil
}

// doReturn implements spec §4.3's RETURN unwind: while the current frame
// is transparent (ReturnAddress == -1) and has a parent, return it to the
// pool and move to the parent. A `return` reaching the base frame with no
// parent halts the run instead of underflowing.
func (vm *VM) doReturn(hasValue bool) error {
	if !hasValue {
		if err := vm.push(object.Nil); err != nil {
			return err
		}
	}
	for vm.current.ReturnAddress == -1 && vm.current.Parent != nil {
		old := vm.current
		vm.current = old.Parent
		vm.frames.Return(old)
	}
	if vm.current.ReturnAddress == -1 && vm.current.Parent == nil {
		vm.halted = true
		return nil
	}
	vm.pc = vm.current.ReturnAddress
	vm.current.ReturnAddress = -1
	return nil
}

// maybeCollect runs a collection when the allocation threshold is crossed,
// and enforces memLimit (spec §9 / teacher's memLimitError pattern): if
// usage is still over the limit after collecting, the allocation that
// triggered this check is reported as a fatal heap-OOM error rather than
// silently exceeding the configured bound.
func (vm *VM) maybeCollect() error {
	overLimit := vm.memLimit != 0 && vm.heap.BytesAllocated() > vm.memLimit
	if !vm.collector.ShouldCollect() && !overLimit {
		return nil
	}
	vm.collector.Collect(vm.markRoots)
	if vm.memLimit != 0 && vm.heapBytes() > vm.memLimit {
		return newRuntimeError(ErrHeapOOM, vm.pc, "heap usage exceeds limit of %d bytes", vm.memLimit)
	}
	return nil
}

// heapBytes approximates current live heap footprint by summing Size()
// across the allocation list.
func (vm *VM) heapBytes() uint {
	var total uint
	for o := vm.heap.Head(); o != nil; o = o.Next() {
		total += uint(o.Size())
	}
	return total
}

// markRoots marks every global value, every slot of the live value stack,
// and every used local across the live frame chain (spec §4.5 step 2; the
// clarification in §9 that live frame locals must be scanned as roots
// alongside the value stack, since the frame pool's unused slots are not
// themselves part of the stack snapshot).
func (vm *VM) markRoots(mark func(object.Value)) {
	for _, v := range vm.globals {
		mark(v)
	}
	for i := 0; i < vm.sp; i++ {
		mark(vm.stack[i])
	}
	for f := vm.current; f != nil; f = f.Parent {
		for i := 0; i < f.Used; i++ {
			mark(f.Locals[i])
		}
	}
	if vm.callee != nil {
		mark(object.FromObject(vm.callee))
	}
}
