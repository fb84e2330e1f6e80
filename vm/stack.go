package vm

// DefaultStackSize is the value stack capacity in slots.
const DefaultStackSize = 16384

// valueStack is the single shared value stack of one interpreter
// instance: one contiguous, bounded sequence of values used by every
// native and interpreted call. The backing array is allocated once so
// stack references stay valid for the instance's lifetime.
type valueStack struct {
	data []Value
	sp   int
}

func newValueStack(capacity int) *valueStack {
	if capacity <= 0 {
		capacity = DefaultStackSize
	}
	return &valueStack{data: make([]Value, capacity)}
}

// ---------------------------------------------------------------------------
// VM stack operations
// ---------------------------------------------------------------------------

// Push pushes a value. On overflow it raises StackOverflowError and
// returns false instead of corrupting adjacent memory.
func (vm *VM) Push(v Value) bool {
	s := vm.stack
	if s.sp >= len(s.data) {
		return vm.RaiseType(TpStackOverflowError, "value stack overflow (capacity %d)", len(s.data))
	}
	s.data[s.sp] = v
	s.sp++
	return true
}

// PushNil pushes the nil sentinel (placeholder self slot).
func (vm *VM) PushNil() bool { return vm.Push(Nil) }

// PushNone pushes None.
func (vm *VM) PushNone() bool { return vm.Push(None) }

// PushName pushes a keyword-argument name. Names travel on the stack as
// int values, matching the original wire convention.
func (vm *VM) PushName(n Name) bool { return vm.Push(NewInt(int64(n))) }

// Pop removes and returns the top of stack.
// Panics on underflow (caller bug).
func (vm *VM) Pop() Value {
	s := vm.stack
	if s.sp == 0 {
		panic("vm: stack underflow")
	}
	s.sp--
	return s.data[s.sp]
}

// Shrink discards the top n values.
func (vm *VM) Shrink(n int) {
	s := vm.stack
	if n > s.sp {
		panic("vm: stack underflow")
	}
	s.sp -= n
}

// Peek returns the i-th value from the top; i must be negative
// (-1 is top of stack).
func (vm *VM) Peek(i int) Value {
	s := vm.stack
	if i >= 0 || s.sp+i < 0 {
		panic("vm: bad peek index")
	}
	return s.data[s.sp+i]
}

// PushTmp pushes a nil slot and returns a reference to it, valid until
// the slot is popped. Used for staging a value that must stay rooted.
func (vm *VM) PushTmp() *Value {
	if !vm.Push(Nil) {
		return nil
	}
	return &vm.stack.data[vm.stack.sp-1]
}

// StackDepth returns the current stack depth in slots.
func (vm *VM) StackDepth() int { return vm.stack.sp }

// truncate resets the stack to an earlier depth, discarding everything
// above it.
func (vm *VM) truncate(sp int) {
	if sp < 0 || sp > vm.stack.sp {
		panic("vm: bad truncate point")
	}
	vm.stack.sp = sp
}
