package vm

import "testing"

func TestPredefinedTypeOrder(t *testing.T) {
	// External consumers hardcode these ids; the order is load-bearing.
	checks := map[Type]string{
		TpObject:        "object",
		TpType:          "type",
		TpInt:           "int",
		TpFloat:         "float",
		TpBool:          "bool",
		TpStr:           "str",
		TpBaseException: "BaseException",
		TpException:     "Exception",
		TpTypeError:     "TypeError",
		TpKeyError:      "KeyError",
	}
	vm := NewVM(nil)
	defer vm.Close()
	for id, name := range checks {
		if vm.TypeName(id) != name {
			t.Errorf("type %d = %q, want %q", id, vm.TypeName(id), name)
		}
	}
	if TpObject != 1 {
		t.Error("object must be type id 1")
	}
}

func TestNewTypeMonotonicIds(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	a := vm.NewType("Alpha", TpObject, Nil, nil)
	b := vm.NewType("Beta", a, Nil, nil)
	if a <= TpKeyError {
		t.Error("user types must allocate above the predefined range")
	}
	if b != a+1 {
		t.Errorf("ids must be strictly increasing: %d then %d", a, b)
	}
	if vm.TypeBase(b) != a {
		t.Error("base link lost")
	}
}

func TestSubclassChain(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	if !vm.IsSubclass(TpBool, TpInt) {
		t.Error("bool derives from int")
	}
	if !vm.IsSubclass(TpTypeError, TpException) {
		t.Error("TypeError derives from Exception")
	}
	if !vm.IsSubclass(TpTypeError, TpBaseException) {
		t.Error("chain must continue to BaseException")
	}
	if vm.IsSubclass(TpInt, TpBool) {
		t.Error("subclassing is not symmetric")
	}
	if !vm.IsSubclass(TpStr, TpStr) {
		t.Error("a type is a subclass of itself")
	}
}

func TestIsInstance(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	if !vm.IsInstance(True, TpInt) {
		t.Error("True is an instance of int via bool")
	}
	if !vm.IsInstance(NewInt(1), TpObject) {
		t.Error("everything is an object")
	}
	if vm.IsInstance(Nil, TpObject) {
		t.Error("the nil sentinel is an instance of nothing")
	}
}

func TestAttributeShadowing(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	base := vm.NewType("Base", TpObject, Nil, nil)
	derived := vm.NewType("Derived", base, Nil, nil)
	name := NameFor("kind")

	vm.tpSetAttr(base, name, vm.NewStr("base"))
	if v, ok := vm.TpFindName(derived, name); !ok || vm.StrContent(v) != "base" {
		t.Fatal("derived must inherit the base attribute")
	}

	vm.tpSetAttr(derived, name, vm.NewStr("derived"))
	if v, _ := vm.TpFindName(derived, name); vm.StrContent(v) != "derived" {
		t.Error("derived's own attribute must shadow the base")
	}
	if v, _ := vm.TpFindName(base, name); vm.StrContent(v) != "base" {
		t.Error("shadowing must not disturb the base")
	}
}

func TestMagicLookupIgnoresInstanceDict(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	tp := vm.NewType("Gadget", TpObject, Nil, nil)
	obj, _ := vm.NewObject(tp, -1, 0)
	vm.Push(obj)
	defer vm.Pop()

	// An instance-dict entry under a magic name must not become an
	// operator hook.
	vm.SetDict(obj, MagicAdd, NewNativeFunc(func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(NewInt(999))
	}))
	if !vm.BinaryOp(MagicAdd, obj, NewInt(1)) {
		vm.ClearExc(-1)
	} else if vm.Retval().IsInt() && vm.Retval().Int() == 999 {
		t.Error("magic dispatch consulted the instance dict")
	}
}

func TestGetAttrInstanceDictPrecedence(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	tp := vm.NewType("Conf", TpObject, Nil, nil)
	name := NameFor("mode")
	vm.tpSetAttr(tp, name, vm.NewStr("class"))

	obj, _ := vm.NewObject(tp, -1, 0)
	vm.Push(obj)
	defer vm.Pop()

	if !vm.GetAttr(obj, name) {
		t.Fatalf("GetAttr failed: %s", vm.FormatExc())
	}
	if vm.StrContent(vm.Retval()) != "class" {
		t.Error("chain attribute must resolve before any dict entry exists")
	}

	vm.SetDict(obj, name, vm.NewStr("instance"))
	if !vm.GetAttr(obj, name) {
		t.Fatalf("GetAttr failed: %s", vm.FormatExc())
	}
	if vm.StrContent(vm.Retval()) != "instance" {
		t.Error("instance dict must win over the type chain")
	}
}

func TestGetAttrMissingRaises(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	if vm.GetAttr(NewInt(3), NameFor("no_such_attr")) {
		t.Fatal("missing attribute must fail")
	}
	if !vm.MatchExc(TpAttributeError) {
		t.Error("missing attribute must raise AttributeError")
	}
	vm.ClearExc(-1)
}

func TestPropertyDispatch(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	tp := vm.NewType("Box", TpObject, Nil, nil)
	width := NameFor("width")
	vm.BindProperty(tp, "width", func(vm *VM, argc int, argv []Value) bool {
		v, _ := vm.GetDict(argv[0], NameFor("_w"))
		if v.IsNil() {
			v = NewInt(0)
		}
		return vm.Return(v)
	}, func(vm *VM, argc int, argv []Value) bool {
		if argv[1].Int() < 0 {
			return vm.RaiseType(TpValueError, "width must be non-negative")
		}
		vm.SetDict(argv[0], NameFor("_w"), argv[1])
		return vm.ReturnNone()
	})

	obj, _ := vm.NewObject(tp, -1, 0)
	vm.Push(obj)
	defer vm.Pop()

	if !vm.SetAttr(obj, width, NewInt(12)) {
		t.Fatalf("property set failed: %s", vm.FormatExc())
	}
	if !vm.GetAttr(obj, width) {
		t.Fatalf("property get failed: %s", vm.FormatExc())
	}
	if vm.Retval().Int() != 12 {
		t.Errorf("width = %d, want 12", vm.Retval().Int())
	}

	if vm.SetAttr(obj, width, NewInt(-1)) {
		t.Fatal("setter rejection must propagate")
	}
	if !vm.MatchExc(TpValueError) {
		t.Error("expected ValueError from the setter")
	}
	vm.ClearExc(-1)
}

func TestReadonlyProperty(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	tp := vm.NewType("Frozen", TpObject, Nil, nil)
	vm.BindProperty(tp, "id", func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(NewInt(7))
	}, nil)

	obj, _ := vm.NewObject(tp, -1, 0)
	vm.Push(obj)
	defer vm.Pop()

	if vm.SetAttr(obj, NameFor("id"), NewInt(1)) {
		t.Fatal("assigning a readonly property must fail")
	}
	if !vm.MatchExc(TpTypeError) {
		t.Error("expected TypeError for readonly property")
	}
	vm.ClearExc(-1)
}

func TestCheckType(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	if !vm.CheckType(NewInt(1), TpInt) {
		t.Error("exact type must pass")
	}
	if vm.CheckType(NewInt(1), TpStr) {
		t.Fatal("mismatch must fail")
	}
	if !vm.MatchExc(TpTypeError) {
		t.Error("mismatch must raise TypeError")
	}
	got := vm.StrContent(vm.ExcArg(vm.Retval()))
	if got != "expected 'str', got 'int'" {
		t.Errorf("message = %q", got)
	}
	vm.ClearExc(-1)
}

func TestGetAttrHook(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	tp := vm.NewType("Proxy", TpObject, Nil, nil)
	vm.BindMagic(tp, MagicGetattr, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(argv[1])
	})
	obj, _ := vm.NewObject(tp, 0, 0)
	vm.Push(obj)
	defer vm.Pop()

	if !vm.GetAttr(obj, NameFor("anything")) {
		t.Fatalf("hook failed: %s", vm.FormatExc())
	}
	if vm.StrContent(vm.Retval()) != "anything" {
		t.Errorf("hook result = %q", vm.StrContent(vm.Retval()))
	}
}

func TestGetAttrHookStackOverflow(t *testing.T) {
	vm := NewVM(&Config{StackSize: 16})
	defer vm.Close()

	tp := vm.NewType("Proxy", TpObject, Nil, nil)
	vm.BindMagic(tp, MagicGetattr, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(argv[1])
	})
	obj, _ := vm.NewObject(tp, 0, 0)
	vm.Push(obj)

	// Leave one free slot: the hook window needs three.
	for vm.StackDepth() < 15 {
		vm.PushNil()
	}
	depth := vm.StackDepth()

	if vm.GetAttr(obj, NameFor("anything")) {
		t.Fatal("hook call at stack capacity must fail")
	}
	if vm.StackDepth() != depth {
		t.Fatalf("depth = %d, want %d restored exactly", vm.StackDepth(), depth)
	}
	if !vm.MatchExc(TpStackOverflowError) {
		t.Fatalf("want StackOverflowError, got: %s", vm.FormatExc())
	}
	vm.ClearExc(-1)
}
