package vm

import "testing"

func TestVectorcallNative(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	add := NewNativeFunc(func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgc(argc, 2) {
			return false
		}
		return vm.Return(NewInt(argv[0].Int() + argv[1].Int()))
	})

	depth := vm.StackDepth()
	vm.Push(add)
	vm.PushNil()
	vm.Push(NewInt(2))
	vm.Push(NewInt(3))
	if !vm.Vectorcall(2, 0) {
		t.Fatalf("call failed: %s", vm.FormatExc())
	}
	if vm.Retval().Int() != 5 {
		t.Errorf("retval = %d, want 5", vm.Retval().Int())
	}
	if vm.StackDepth() != depth {
		t.Errorf("stack depth %d, want %d (restore on success)", vm.StackDepth(), depth)
	}
}

func TestVectorcallRestoresStackOnFailure(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	boom := NewNativeFunc(func(vm *VM, argc int, argv []Value) bool {
		return vm.RaiseType(TpRuntimeError, "boom")
	})

	depth := vm.StackDepth()
	vm.Push(boom)
	vm.PushNil()
	vm.Push(NewInt(1))
	if vm.Vectorcall(1, 0) {
		t.Fatal("call should fail")
	}
	if vm.StackDepth() != depth {
		t.Errorf("stack depth %d, want %d (restore on failure)", vm.StackDepth(), depth)
	}
	vm.ClearExc(-1)
}

func TestFunctionArityMismatch(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	f := vm.NewFunction("pair(a, b)", func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.TupleOf(argv[0], argv[1]))
	})
	vm.Push(f) // keep rooted
	defer vm.Pop()

	if vm.Call(f, Nil, []Value{NewInt(1)}) {
		t.Fatal("missing argument must fail")
	}
	if !vm.MatchExc(TpTypeError) {
		t.Error("arity mismatch must raise TypeError")
	}
	vm.ClearExc(-1)

	if vm.Call(f, Nil, []Value{NewInt(1), NewInt(2), NewInt(3)}) {
		t.Fatal("surplus argument must fail")
	}
	if !vm.MatchExc(TpTypeError) {
		t.Error("arity mismatch must raise TypeError")
	}
	vm.ClearExc(-1)
}

func TestFunctionDefaults(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	f := vm.NewFunction("greet(name, greeting='hello')", func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.NewStr(vm.StrContent(argv[1]) + " " + vm.StrContent(argv[0])))
	})
	vm.Push(f)
	defer vm.Pop()

	world := vm.NewStr("world")
	vm.Push(world)
	defer vm.Pop()

	if !vm.Call(f, Nil, []Value{world}) {
		t.Fatalf("call failed: %s", vm.FormatExc())
	}
	if vm.StrContent(vm.Retval()) != "hello world" {
		t.Errorf("retval = %q", vm.StrContent(vm.Retval()))
	}

	if !vm.Call(f, Nil, []Value{world, vm.NewStr("hi")}) {
		t.Fatalf("call failed: %s", vm.FormatExc())
	}
	if vm.StrContent(vm.Retval()) != "hi world" {
		t.Errorf("retval = %q", vm.StrContent(vm.Retval()))
	}
}

func TestFunctionKeywordArguments(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	f := vm.NewFunction("rect(w, h=1)", func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(NewInt(argv[0].Int() * argv[1].Int()))
	})
	vm.Push(f)
	defer vm.Pop()

	depth := vm.StackDepth()
	vm.Push(f)
	vm.PushNil()
	vm.Push(NewInt(3))
	vm.PushName(NameFor("h"))
	vm.Push(NewInt(4))
	if !vm.Vectorcall(1, 1) {
		t.Fatalf("kwarg call failed: %s", vm.FormatExc())
	}
	if vm.Retval().Int() != 12 {
		t.Errorf("retval = %d, want 12", vm.Retval().Int())
	}
	if vm.StackDepth() != depth {
		t.Error("kwarg call must restore the stack")
	}

	// Unknown keyword.
	vm.Push(f)
	vm.PushNil()
	vm.Push(NewInt(3))
	vm.PushName(NameFor("depth"))
	vm.Push(NewInt(4))
	if vm.Vectorcall(1, 1) {
		t.Fatal("unknown keyword must fail")
	}
	if !vm.MatchExc(TpTypeError) {
		t.Error("unknown keyword must raise TypeError")
	}
	vm.ClearExc(-1)
}

func TestFunctionVariadic(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	f := vm.NewFunction("total(first, *rest)", func(vm *VM, argc int, argv []Value) bool {
		sum := argv[0].Int()
		rest := vm.heap.Get(argv[1].Handle())
		for i := 0; i < rest.NumSlots(); i++ {
			sum += rest.Slot(i).Int()
		}
		return vm.Return(NewInt(sum))
	})
	vm.Push(f)
	defer vm.Pop()

	if !vm.Call(f, Nil, []Value{NewInt(1), NewInt(2), NewInt(3), NewInt(4)}) {
		t.Fatalf("variadic call failed: %s", vm.FormatExc())
	}
	if vm.Retval().Int() != 10 {
		t.Errorf("retval = %d, want 10", vm.Retval().Int())
	}

	if !vm.Call(f, Nil, []Value{NewInt(5)}) {
		t.Fatalf("empty variadic call failed: %s", vm.FormatExc())
	}
	if vm.Retval().Int() != 5 {
		t.Errorf("retval = %d, want 5", vm.Retval().Int())
	}
}

func TestBoundMethodInsertsReceiver(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	tp := vm.NewType("Counter", TpObject, Nil, nil)
	vm.BindMethod(tp, "bump(self, by)", func(vm *VM, argc int, argv []Value) bool {
		cur, _ := vm.GetDict(argv[0], NameFor("n"))
		if cur.IsNil() {
			cur = NewInt(0)
		}
		vm.SetDict(argv[0], NameFor("n"), NewInt(cur.Int()+argv[1].Int()))
		return vm.ReturnNone()
	})

	obj, _ := vm.NewObject(tp, -1, 0)
	vm.Push(obj)
	defer vm.Pop()

	if !vm.GetAttr(obj, NameFor("bump")) {
		t.Fatalf("GetAttr failed: %s", vm.FormatExc())
	}
	bound := vm.Retval()
	if bound.Type() != TpBoundMethod {
		t.Fatalf("attribute access must bind, got type %d", bound.Type())
	}
	vm.Push(bound)
	defer vm.Pop()

	if !vm.Call(bound, Nil, []Value{NewInt(3)}) {
		t.Fatalf("bound call failed: %s", vm.FormatExc())
	}
	if !vm.Call(bound, Nil, []Value{NewInt(4)}) {
		t.Fatalf("bound call failed: %s", vm.FormatExc())
	}
	n, _ := vm.GetDict(obj, NameFor("n"))
	if n.Int() != 7 {
		t.Errorf("counter = %d, want 7", n.Int())
	}
}

func TestCallMethodFastPath(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	lst := vm.NewList(NewInt(1))
	vm.Push(lst)
	defer vm.Pop()

	if !vm.CallMethod(lst, NameFor("append"), NewInt(2)) {
		t.Fatalf("append failed: %s", vm.FormatExc())
	}
	if vm.ListLen(lst) != 2 || vm.ListGet(lst, 1).Int() != 2 {
		t.Error("append did not take effect")
	}
}

func TestConstructWithInit(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	tp := vm.NewType("Point", TpObject, Nil, nil)
	vm.Bind(vm.TypeObject(tp), "__init__(self, x, y)", func(vm *VM, argc int, argv []Value) bool {
		vm.SetDict(argv[0], NameFor("x"), argv[1])
		vm.SetDict(argv[0], NameFor("y"), argv[2])
		return vm.ReturnNone()
	})

	if !vm.Call(vm.TypeObject(tp), Nil, []Value{NewInt(3), NewInt(4)}) {
		t.Fatalf("construction failed: %s", vm.FormatExc())
	}
	p := vm.Retval()
	if p.Type() != tp {
		t.Fatalf("instance type = %d, want %d", p.Type(), tp)
	}
	vm.Push(p)
	defer vm.Pop()
	x, _ := vm.GetDict(p, NameFor("x"))
	y, _ := vm.GetDict(p, NameFor("y"))
	if x.Int() != 3 || y.Int() != 4 {
		t.Error("__init__ did not initialize the instance")
	}
}

func TestConstructRejectsArgsWithoutInit(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	tp := vm.NewType("Blank", TpObject, Nil, nil)
	if vm.Call(vm.TypeObject(tp), Nil, []Value{NewInt(1)}) {
		t.Fatal("arguments without __init__ must fail")
	}
	if !vm.MatchExc(TpTypeError) {
		t.Error("expected TypeError")
	}
	vm.ClearExc(-1)
}

func TestCallableObject(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	tp := vm.NewType("Doubler", TpObject, Nil, nil)
	vm.BindMagic(tp, MagicCall, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(NewInt(argv[1].Int() * 2))
	})

	obj, _ := vm.NewObject(tp, -1, 0)
	vm.Push(obj)
	defer vm.Pop()

	if !vm.Call(obj, Nil, []Value{NewInt(21)}) {
		t.Fatalf("__call__ dispatch failed: %s", vm.FormatExc())
	}
	if vm.Retval().Int() != 42 {
		t.Errorf("retval = %d, want 42", vm.Retval().Int())
	}
}

func TestNotCallable(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	if vm.Call(NewInt(3), Nil, nil) {
		t.Fatal("calling an int must fail")
	}
	if !vm.MatchExc(TpTypeError) {
		t.Error("expected TypeError")
	}
	vm.ClearExc(-1)
}

func TestCallDepthLimit(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	var f Value
	f = NewNativeFunc(func(vm *VM, argc int, argv []Value) bool {
		return vm.Call(f, Nil, nil)
	})
	if vm.Call(f, Nil, nil) {
		t.Fatal("unbounded recursion must fail")
	}
	if !vm.MatchExc(TpStackOverflowError) {
		t.Errorf("expected StackOverflowError, got: %s", vm.FormatExc())
	}
	vm.ClearExc(-1)
}
