package vm

// maxCallDepth bounds nested host-side dispatch so runaway recursion
// surfaces as a catchable exception instead of a Go stack fault.
const maxCallDepth = 1000

// ExecFunc runs the body of an interpreted function. args holds the
// fully bound parameter frame (receiver included when present). The
// result goes to the retval slot; false means an exception is pending.
type ExecFunc func(vm *VM, fn *FuncDecl, args []Value) bool

// Return stores v in the retval slot and reports success. Conventional
// tail call inside native functions.
func (vm *VM) Return(v Value) bool {
	vm.retval = v
	return true
}

// ReturnNone stores None in the retval slot and reports success.
func (vm *VM) ReturnNone() bool {
	vm.retval = None
	return true
}

// Retval returns the current content of the retval slot. The slot is
// volatile: any subsequent call clobbers it.
func (vm *VM) Retval() Value { return vm.retval }

// SetRetval stores v in the retval slot.
func (vm *VM) SetRetval(v Value) { vm.retval = v }

// ---------------------------------------------------------------------------
// Vectorcall
// ---------------------------------------------------------------------------

// Vectorcall invokes the call window the caller prepared on the stack:
//
//	[callable][self][arg 0]..[arg argc-1][kw name][kw value]...
//
// self is the nil sentinel for an unbound call. Keyword arguments
// travel as name/value pairs after the positionals, the name pushed
// with PushName. On return the stack is truncated to where the window
// began, success or failure alike, and the result is in the retval
// slot.
func (vm *VM) Vectorcall(argc, kwargc int) bool {
	base := vm.stack.sp - argc - 2*kwargc - 2
	if base < 0 {
		panic("vm: malformed call window")
	}
	ok := vm.dispatch(base, argc, kwargc)
	vm.truncate(base)
	return ok
}

// dispatch classifies the callable at base and runs it. The stack at
// and above base belongs to dispatch until it returns; the caller
// truncates.
func (vm *VM) dispatch(base, argc, kwargc int) bool {
	if vm.callDepth >= maxCallDepth {
		return vm.RaiseType(TpStackOverflowError, "maximum call depth exceeded")
	}
	vm.callDepth++
	defer func() { vm.callDepth-- }()

	callable := vm.stack.data[base]
	switch {
	case callable.typ == TpNativeFunc:
		return vm.callNative(callable, base, argc, kwargc)
	case callable.typ == TpFunction:
		return vm.callFunction(callable, base, argc, kwargc)
	case callable.typ == TpBoundMethod:
		obj := vm.heap.Get(callable.Handle())
		vm.stack.data[base] = obj.Slot(1)
		vm.stack.data[base+1] = obj.Slot(0)
		return vm.dispatch(base, argc, kwargc)
	case callable.IsType():
		return vm.construct(callable.AsType(), base, argc, kwargc)
	}

	if hook := vm.TpFindMagic(callable.typ, MagicCall); hook != nil {
		inner := vm.stack.sp
		if !vm.Push(*hook) || !vm.Push(callable) {
			vm.truncate(inner)
			return false
		}
		for i := 0; i < argc+2*kwargc; i++ {
			if !vm.Push(vm.stack.data[base+2+i]) {
				vm.truncate(inner)
				return false
			}
		}
		return vm.Vectorcall(argc, kwargc)
	}
	return vm.RaiseType(TpTypeError, "'%t' object is not callable", callable.typ)
}

// callNative runs a nativefunc over a zero-copy window of the stack.
// When self is present the window starts at the self slot, so the
// receiver arrives as argv[0].
func (vm *VM) callNative(callable Value, base, argc, kwargc int) bool {
	if kwargc > 0 {
		return vm.RaiseType(TpTypeError, "nativefunc does not accept keyword arguments")
	}
	fn := callable.nativeFunc()
	if fn == nil {
		return vm.RaiseType(TpRuntimeError, "stale nativefunc reference")
	}
	argv := vm.stack.data[base+1 : base+2+argc]
	if argv[0].IsNil() {
		argv = argv[1:]
	}
	vm.retval = Nil
	return fn(vm, len(argv), argv)
}

// callFunction binds the window onto a function's declared parameters
// and runs its body: defaults fill trailing holes, keywords fill by
// name, a trailing variadic parameter collects the surplus as a tuple.
func (vm *VM) callFunction(callable Value, base, argc, kwargc int) bool {
	decl := vm.heap.Get(callable.Handle()).Userdata().(*FuncDecl)
	self := vm.stack.data[base+1]
	pos := vm.stack.data[base+2 : base+2+argc]
	kw := vm.stack.data[base+2+argc : base+2+argc+2*kwargc]

	nparams := len(decl.Params)
	fixed := nparams
	if decl.Variadic {
		fixed--
	}

	frame := make([]Value, nparams)
	filled := make([]bool, nparams)

	feed := func(v Value, extras *[]Value, cursor *int) bool {
		if *cursor < fixed {
			frame[*cursor] = v
			filled[*cursor] = true
			*cursor++
			return true
		}
		if decl.Variadic {
			*extras = append(*extras, v)
			return true
		}
		supplied := argc
		if !self.IsNil() {
			supplied++
		}
		return vm.RaiseType(TpTypeError, "%s() expected %d arguments, got %d",
			NameStr(decl.Name), fixed, supplied)
	}

	var extras []Value
	cursor := 0
	if !self.IsNil() {
		if !feed(self, &extras, &cursor) {
			return false
		}
	}
	for _, v := range pos {
		if !feed(v, &extras, &cursor) {
			return false
		}
	}

	for i := 0; i < len(kw); i += 2 {
		name := Name(kw[i].Int())
		val := kw[i+1]
		slot := -1
		for j, p := range decl.Params[:fixed] {
			if p == name {
				slot = j
				break
			}
		}
		if slot < 0 {
			return vm.RaiseType(TpTypeError, "%s() got an unexpected keyword argument '%n'",
				NameStr(decl.Name), name)
		}
		if filled[slot] {
			return vm.RaiseType(TpTypeError, "%s() got multiple values for argument '%n'",
				NameStr(decl.Name), name)
		}
		frame[slot] = val
		filled[slot] = true
	}

	// Defaults align to the tail of the fixed parameters.
	firstDefault := fixed - len(decl.Defaults)
	for i := 0; i < fixed; i++ {
		if filled[i] {
			continue
		}
		if i >= firstDefault {
			frame[i] = decl.Defaults[i-firstDefault]
			filled[i] = true
			continue
		}
		return vm.RaiseType(TpTypeError, "%s() missing required argument '%n'",
			NameStr(decl.Name), decl.Params[i])
	}

	if decl.Variadic {
		tmp := vm.PushTmp()
		if tmp == nil {
			return false
		}
		*tmp = vm.TupleOf(extras...)
		frame[nparams-1] = *tmp
	}

	vm.retval = Nil
	if decl.fn != 0 {
		f := nativeFuncAt(decl.fn)
		return f(vm, len(frame), frame)
	}
	if vm.ExecHook == nil {
		return vm.RaiseType(TpRuntimeError, "function '%s' has no executable body", NameStr(decl.Name))
	}
	return vm.ExecHook(vm, decl, frame)
}

// construct runs the two-phase instantiation protocol for a type used
// as a callable: __new__ produces the instance (absent that, a plain
// dict-backed object), then __init__ initializes it and must return
// None. The instance, not __init__'s result, lands in retval.
func (vm *VM) construct(t Type, base, argc, kwargc int) bool {
	nwindow := argc + 2*kwargc
	newFn := vm.TpFindMagic(t, MagicNew)

	if newFn != nil {
		inner := vm.stack.sp
		if !vm.Push(*newFn) || !vm.Push(newTypeValue(t)) {
			vm.truncate(inner)
			return false
		}
		for i := 0; i < nwindow; i++ {
			if !vm.Push(vm.stack.data[base+2+i]) {
				vm.truncate(inner)
				return false
			}
		}
		if !vm.Vectorcall(argc, kwargc) {
			return false
		}
	} else {
		obj, _ := vm.NewObject(t, -1, 0)
		vm.retval = obj
	}

	// Keep the fresh instance rooted across __init__.
	tmp := vm.PushTmp()
	if tmp == nil {
		return false
	}
	instance := vm.retval
	*tmp = instance

	if initFn := vm.TpFindMagic(t, MagicInit); initFn != nil {
		inner := vm.stack.sp
		if !vm.Push(*initFn) || !vm.Push(instance) {
			vm.truncate(inner)
			return false
		}
		for i := 0; i < nwindow; i++ {
			if !vm.Push(vm.stack.data[base+2+i]) {
				vm.truncate(inner)
				return false
			}
		}
		if !vm.Vectorcall(argc, kwargc) {
			return false
		}
		if !vm.retval.IsNone() && !vm.retval.IsNil() {
			return vm.RaiseType(TpTypeError, "__init__() should return None, got '%t'", vm.retval.typ)
		}
	} else if nwindow > 0 && newFn == nil {
		return vm.RaiseType(TpTypeError, "%t() takes no arguments", t)
	}

	vm.retval = instance
	return true
}

// ---------------------------------------------------------------------------
// Convenience callers
// ---------------------------------------------------------------------------

// Call invokes f with an explicit receiver and positional arguments.
// Pass the nil sentinel as self for an unbound call. Stack-neutral
// whatever the outcome; the result is in retval.
func (vm *VM) Call(f, self Value, args []Value) bool {
	base := vm.stack.sp
	if !vm.Push(f) || !vm.Push(self) {
		vm.truncate(base)
		return false
	}
	for _, a := range args {
		if !vm.Push(a) {
			vm.truncate(base)
			return false
		}
	}
	return vm.Vectorcall(len(args), 0)
}

// PushMethod resolves name on the receiver at top of stack and turns
// the slot into a call window in place: the receiver slot becomes the
// resolved callable and the receiver is pushed back as the implicit
// argument. Returns false, leaving the stack untouched, when name does
// not resolve to something callable this way.
func (vm *VM) PushMethod(name Name) bool {
	self := vm.Peek(-1)
	v, ok := vm.TpFindName(self.typ, name)
	if !ok {
		return false
	}
	top := vm.stack.sp - 1
	switch v.typ {
	case TpFunction, TpNativeFunc:
		vm.stack.data[top] = v
		return vm.Push(self)
	case TpStaticMethod:
		vm.stack.data[top] = vm.heap.Get(v.Handle()).Slot(0)
		return vm.Push(Nil)
	case TpClassMethod:
		vm.stack.data[top] = vm.heap.Get(v.Handle()).Slot(0)
		return vm.Push(vm.TypeObject(self.typ))
	}
	return false
}

// CallMethod invokes self.name(args...), preferring the unbound fast
// path and falling back to full attribute resolution.
func (vm *VM) CallMethod(self Value, name Name, args ...Value) bool {
	base := vm.stack.sp
	if !vm.Push(self) {
		vm.truncate(base)
		return false
	}
	if vm.PushMethod(name) {
		for _, a := range args {
			if !vm.Push(a) {
				vm.truncate(base)
				return false
			}
		}
		return vm.Vectorcall(len(args), 0)
	}
	vm.truncate(base)
	if !vm.GetAttr(self, name) {
		return false
	}
	return vm.Call(vm.retval, Nil, args)
}
