package vm

import "testing"

func TestImmediateValues(t *testing.T) {
	if !NewInt(42).IsInt() || NewInt(42).Int() != 42 {
		t.Error("int round trip failed")
	}
	if NewInt(-7).Int() != -7 {
		t.Error("negative int round trip failed")
	}
	if NewFloat(3.5).Float() != 3.5 {
		t.Error("float round trip failed")
	}
	if !NewBool(true).Bool() || NewBool(false).Bool() {
		t.Error("bool round trip failed")
	}
	if !None.IsNone() {
		t.Error("None should be None")
	}
	if !Nil.IsNil() {
		t.Error("zero value should be the nil sentinel")
	}
	if Nil.IsNone() {
		t.Error("nil sentinel must be distinct from None")
	}
}

func TestValueCopySemantics(t *testing.T) {
	a := NewInt(1)
	b := a
	b = NewInt(2)
	if a.Int() != 1 || b.Int() != 2 {
		t.Error("assignment must copy, not alias")
	}
}

func TestIdentity(t *testing.T) {
	if !NewInt(5).Identical(NewInt(5)) {
		t.Error("equal ints are identical")
	}
	if NewInt(5).Identical(NewFloat(5)) {
		t.Error("int and float are never identical")
	}
	if !True.Identical(NewBool(true)) {
		t.Error("bool singletons")
	}
	if !None.Identical(None) {
		t.Error("None is identical to itself")
	}

	vm := NewVM(nil)
	defer vm.Close()
	a := vm.NewStr("x")
	b := vm.NewStr("x")
	if a.Identical(b) {
		t.Error("distinct str objects are not identical")
	}
	if !a.Identical(a) {
		t.Error("a value is identical to itself")
	}
}

func TestAccessorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Int() on a float must panic")
		}
	}()
	NewFloat(1.0).Int()
}

func TestNativeFuncTable(t *testing.T) {
	f := NewNativeFunc(func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(NewInt(int64(argc)))
	})
	if f.Type() != TpNativeFunc {
		t.Fatalf("type = %d, want nativefunc", f.Type())
	}
	if f.nativeFunc() == nil {
		t.Fatal("registered function must resolve")
	}
	// Distinct registrations get distinct, comparable values.
	g := NewNativeFunc(func(vm *VM, argc int, argv []Value) bool { return true })
	if f.Identical(g) {
		t.Error("distinct native funcs must not be identical")
	}
}

func TestTypeValues(t *testing.T) {
	v := newTypeValue(TpStr)
	if !v.IsType() || v.AsType() != TpStr {
		t.Error("type value round trip failed")
	}
	if !v.Identical(newTypeValue(TpStr)) {
		t.Error("same type yields identical value")
	}
}
