package vm

import (
	"bytes"
	"strings"
	"testing"
)

func TestListMethods(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	lst := vm.NewList()
	vm.Push(lst)
	defer vm.Pop()

	for i := int64(1); i <= 3; i++ {
		if !vm.CallMethod(lst, NameFor("append"), NewInt(i)) {
			t.Fatalf("append failed: %s", vm.FormatExc())
		}
	}
	if vm.ListLen(lst) != 3 {
		t.Fatalf("len = %d, want 3", vm.ListLen(lst))
	}

	if !vm.CallMethod(lst, NameFor("insert"), NewInt(0), NewInt(0)) {
		t.Fatalf("insert failed: %s", vm.FormatExc())
	}
	if vm.ListGet(lst, 0).Int() != 0 {
		t.Error("insert at head")
	}

	if !vm.CallMethod(lst, NameFor("pop")) {
		t.Fatalf("pop failed: %s", vm.FormatExc())
	}
	if vm.Retval().Int() != 3 {
		t.Errorf("pop() = %d, want 3", vm.Retval().Int())
	}

	if !vm.CallMethod(lst, NameFor("index"), NewInt(2)) {
		t.Fatalf("index failed: %s", vm.FormatExc())
	}
	if vm.Retval().Int() != 2 {
		t.Errorf("index(2) = %d", vm.Retval().Int())
	}

	if vm.CallMethod(lst, NameFor("remove"), NewInt(99)) {
		t.Fatal("remove of absent item must fail")
	}
	if !vm.MatchExc(TpValueError) {
		t.Error("expected ValueError")
	}
	vm.ClearExc(-1)

	if !vm.CallMethod(lst, NameFor("reverse")) {
		t.Fatalf("reverse failed: %s", vm.FormatExc())
	}
	if vm.ListGet(lst, 0).Int() != 2 {
		t.Error("reverse did not reorder")
	}
}

func TestListSubscript(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	lst := vm.NewList(NewInt(10), NewInt(20), NewInt(30))
	vm.Push(lst)
	defer vm.Pop()

	if !vm.SetItem(lst, NewInt(1), NewInt(21)) {
		t.Fatalf("setitem failed: %s", vm.FormatExc())
	}
	if !vm.GetItem(lst, NewInt(-2)) {
		t.Fatalf("getitem failed: %s", vm.FormatExc())
	}
	if vm.Retval().Int() != 21 {
		t.Errorf("lst[-2] = %d, want 21", vm.Retval().Int())
	}
	if !vm.DelItem(lst, NewInt(0)) {
		t.Fatalf("delitem failed: %s", vm.FormatExc())
	}
	if vm.ListLen(lst) != 2 || vm.ListGet(lst, 0).Int() != 21 {
		t.Error("delitem did not shift")
	}

	sl := vm.NewSlice(None, None, NewInt(-1))
	vm.Push(sl)
	defer vm.Pop()
	if !vm.GetItem(lst, sl) {
		t.Fatalf("reverse slice failed: %s", vm.FormatExc())
	}
	rev := vm.Retval()
	if vm.ListLen(rev) != 2 || vm.ListGet(rev, 0).Int() != 30 {
		t.Error("lst[::-1] must reverse")
	}
}

func TestDictProtocol(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	d := vm.NewDict()
	vm.Push(d)
	defer vm.Pop()

	k := vm.NewStr("alpha")
	vm.Push(k)
	defer vm.Pop()

	if !vm.SetItem(d, k, NewInt(1)) {
		t.Fatalf("setitem failed: %s", vm.FormatExc())
	}
	// An equal but not identical key must hit the same entry.
	k2 := vm.NewStr("alpha")
	vm.Push(k2)
	defer vm.Pop()
	if !vm.GetItem(d, k2) {
		t.Fatalf("getitem failed: %s", vm.FormatExc())
	}
	if vm.Retval().Int() != 1 {
		t.Errorf("d['alpha'] = %d, want 1", vm.Retval().Int())
	}

	// Cross-type numeric keys collapse onto one entry.
	if !vm.SetItem(d, NewInt(2), vm.NewStr("two")) {
		t.Fatal("setitem failed")
	}
	if !vm.GetItem(d, NewFloat(2.0)) {
		t.Fatalf("getitem failed: %s", vm.FormatExc())
	}
	if vm.StrContent(vm.Retval()) != "two" {
		t.Error("2 and 2.0 must be the same key")
	}
	if !vm.SetItem(d, NewInt(1), vm.NewStr("one")) {
		t.Fatal("setitem failed")
	}
	if !vm.GetItem(d, True) || vm.StrContent(vm.Retval()) != "one" {
		t.Error("True and 1 must be the same key")
	}

	if vm.GetItem(d, vm.NewStr("missing")) {
		t.Fatal("missing key must fail")
	}
	if !vm.MatchExc(TpKeyError) {
		t.Error("expected KeyError")
	}
	vm.ClearExc(-1)

	if !vm.CallMethod(d, NameFor("get"), vm.NewStr("missing"), NewInt(-1)) {
		t.Fatalf("get failed: %s", vm.FormatExc())
	}
	if vm.Retval().Int() != -1 {
		t.Error("get default")
	}

	if !vm.DelItem(d, k) {
		t.Fatalf("delitem failed: %s", vm.FormatExc())
	}
	if vm.DictLen(d) != 1 {
		t.Errorf("len = %d, want 1", vm.DictLen(d))
	}
}

func TestDictUnhashableKey(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	d := vm.NewDict()
	vm.Push(d)
	defer vm.Pop()
	lst := vm.NewList()
	vm.Push(lst)
	defer vm.Pop()

	if vm.DictSetItem(d, lst, NewInt(1)) {
		t.Fatal("list key must be rejected")
	}
	if !vm.MatchExc(TpTypeError) {
		t.Error("expected TypeError")
	}
	vm.ClearExc(-1)
}

func TestDictInsertionOrder(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	d := vm.NewDict()
	vm.Push(d)
	defer vm.Pop()
	for i := int64(0); i < 5; i++ {
		if !vm.DictSetItem(d, NewInt(i), NewInt(i*i)) {
			t.Fatal("setitem failed")
		}
	}
	var keys []int64
	vm.DictApply(d, func(k, _ Value) bool {
		keys = append(keys, k.Int())
		return true
	})
	for i, k := range keys {
		if k != int64(i) {
			t.Fatalf("iteration order %v, want insertion order", keys)
		}
	}
}

func TestStrMethods(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	s := vm.NewStr("  Hello World  ")
	vm.Push(s)
	defer vm.Pop()

	if !vm.CallMethod(s, NameFor("strip")) {
		t.Fatalf("strip failed: %s", vm.FormatExc())
	}
	if vm.StrContent(vm.Retval()) != "Hello World" {
		t.Errorf("strip = %q", vm.StrContent(vm.Retval()))
	}

	if !vm.CallMethod(s, NameFor("upper")) {
		t.Fatalf("upper failed: %s", vm.FormatExc())
	}
	if vm.StrContent(vm.Retval()) != "  HELLO WORLD  " {
		t.Errorf("upper = %q", vm.StrContent(vm.Retval()))
	}

	csv := vm.NewStr("a,b,c")
	vm.Push(csv)
	defer vm.Pop()
	sep := vm.NewStr(",")
	vm.Push(sep)
	defer vm.Pop()
	if !vm.CallMethod(csv, NameFor("split"), sep) {
		t.Fatalf("split failed: %s", vm.FormatExc())
	}
	parts := vm.Retval()
	vm.Push(parts)
	defer vm.Pop()
	if vm.ListLen(parts) != 3 || vm.StrContent(vm.ListGet(parts, 2)) != "c" {
		t.Error("split result wrong")
	}

	dash := vm.NewStr("-")
	vm.Push(dash)
	defer vm.Pop()
	if !vm.CallMethod(dash, NameFor("join"), parts) {
		t.Fatalf("join failed: %s", vm.FormatExc())
	}
	if vm.StrContent(vm.Retval()) != "a-b-c" {
		t.Errorf("join = %q", vm.StrContent(vm.Retval()))
	}
}

func TestStrConcatAndRepeat(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	a := vm.NewStr("ab")
	vm.Push(a)
	defer vm.Pop()
	b := vm.NewStr("cd")
	vm.Push(b)
	defer vm.Pop()

	if !vm.BinaryOp(MagicAdd, a, b) {
		t.Fatalf("concat failed: %s", vm.FormatExc())
	}
	if vm.StrContent(vm.Retval()) != "abcd" {
		t.Error("str concat")
	}
	if !vm.BinaryOp(MagicMul, a, NewInt(3)) {
		t.Fatalf("repeat failed: %s", vm.FormatExc())
	}
	if vm.StrContent(vm.Retval()) != "ababab" {
		t.Error("str repeat")
	}
}

func TestBuiltinPrint(t *testing.T) {
	var out bytes.Buffer
	vm := NewVM(&Config{Stdout: &out})
	defer vm.Close()

	p, ok := vm.GetBuiltin(NameFor("print"))
	if !ok {
		t.Fatal("print must be a builtin")
	}
	s := vm.NewStr("x")
	vm.Push(s)
	defer vm.Pop()
	if !vm.Call(p, Nil, []Value{NewInt(1), s, True}) {
		t.Fatalf("print failed: %s", vm.FormatExc())
	}
	if got := out.String(); got != "1 x True\n" {
		t.Errorf("print wrote %q", got)
	}
}

func TestBuiltinFunctions(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	call := func(name string, args ...Value) Value {
		t.Helper()
		f, ok := vm.GetBuiltin(NameFor(name))
		if !ok {
			t.Fatalf("builtin %s missing", name)
		}
		if !vm.Call(f, Nil, args) {
			t.Fatalf("%s failed: %s", name, vm.FormatExc())
		}
		return vm.Retval()
	}

	s := vm.NewStr("abc")
	vm.Push(s)
	defer vm.Pop()
	if call("len", s).Int() != 3 {
		t.Error("len('abc')")
	}
	if call("abs", NewInt(-5)).Int() != 5 {
		t.Error("abs(-5)")
	}
	if !call("isinstance", True, vm.TypeObject(TpInt)).Bool() {
		t.Error("isinstance(True, int)")
	}
	if call("issubclass", vm.TypeObject(TpKeyError), vm.TypeObject(TpException)).Bool() != true {
		t.Error("issubclass(KeyError, Exception)")
	}
	if call("min", NewInt(3), NewInt(2)).Int() != 2 {
		t.Error("min")
	}
	if call("max", NewInt(3), NewInt(2)).Int() != 3 {
		t.Error("max")
	}

	dm := call("divmod", NewInt(7), NewInt(3))
	vm.Push(dm)
	defer vm.Pop()
	if vm.GetSlot(dm, 0).Int() != 2 || vm.GetSlot(dm, 1).Int() != 1 {
		t.Error("divmod(7, 3)")
	}

	lst := vm.NewList(NewInt(1), NewInt(2), NewInt(3))
	vm.Push(lst)
	defer vm.Pop()
	if call("sum", lst).Int() != 6 {
		t.Error("sum")
	}
}

func TestBuiltinHasattrGetattr(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	tp := vm.NewType("Thing", TpObject, Nil, nil)
	obj, _ := vm.NewObject(tp, -1, 0)
	vm.Push(obj)
	defer vm.Pop()
	vm.SetDict(obj, NameFor("tag"), NewInt(5))

	call := func(name string, args ...Value) bool {
		t.Helper()
		f, _ := vm.GetBuiltin(NameFor(name))
		return vm.Call(f, Nil, args)
	}

	tag := vm.NewStr("tag")
	vm.Push(tag)
	defer vm.Pop()
	missing := vm.NewStr("missing")
	vm.Push(missing)
	defer vm.Pop()

	if !call("hasattr", obj, tag) || !vm.Retval().Bool() {
		t.Error("hasattr present")
	}
	if !call("hasattr", obj, missing) || vm.Retval().Bool() {
		t.Error("hasattr absent")
	}
	if !call("getattr", obj, tag) || vm.Retval().Int() != 5 {
		t.Error("getattr present")
	}
	if !call("getattr", obj, missing, NewInt(-1)) || vm.Retval().Int() != -1 {
		t.Error("getattr default")
	}
	if call("getattr", obj, missing) {
		t.Error("getattr without default must propagate the failure")
	}
	if !vm.MatchExc(TpAttributeError) {
		t.Fatalf("want AttributeError, got: %s", vm.FormatExc())
	}
	vm.ClearExc(-1)
	if !call("getattr", obj, missing, None) || !vm.Retval().IsNone() {
		t.Error("explicit None default")
	}
	if call("getattr", obj) {
		t.Error("one argument must be rejected")
	}
	if !vm.MatchExc(TpTypeError) {
		t.Fatalf("want TypeError, got: %s", vm.FormatExc())
	}
	vm.ClearExc(-1)
	if !call("setattr", obj, tag, NewInt(9)) {
		t.Error("setattr")
	}
	v, _ := vm.GetDict(obj, NameFor("tag"))
	if v.Int() != 9 {
		t.Error("setattr did not stick")
	}
}

func TestTypeConversions(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	// int('42')
	s := vm.NewStr("42")
	vm.Push(s)
	defer vm.Pop()
	if !vm.Call(vm.TypeObject(TpInt), Nil, []Value{s}) {
		t.Fatalf("int('42') failed: %s", vm.FormatExc())
	}
	if vm.Retval().Int() != 42 {
		t.Error("int('42')")
	}

	// int('nope') raises ValueError
	bad := vm.NewStr("nope")
	vm.Push(bad)
	defer vm.Pop()
	if vm.Call(vm.TypeObject(TpInt), Nil, []Value{bad}) {
		t.Fatal("int('nope') must fail")
	}
	if !vm.MatchExc(TpValueError) {
		t.Error("expected ValueError")
	}
	vm.ClearExc(-1)

	// str(123)
	if !vm.Call(vm.TypeObject(TpStr), Nil, []Value{NewInt(123)}) {
		t.Fatalf("str(123) failed: %s", vm.FormatExc())
	}
	if vm.StrContent(vm.Retval()) != "123" {
		t.Error("str(123)")
	}

	// bool([]) and bool([0])
	empty := vm.NewList()
	vm.Push(empty)
	defer vm.Pop()
	if !vm.Call(vm.TypeObject(TpBool), Nil, []Value{empty}) {
		t.Fatalf("bool([]) failed: %s", vm.FormatExc())
	}
	if vm.Retval().Bool() {
		t.Error("bool([]) is False")
	}

	// list from an iterable
	if !vm.Call(vm.TypeObject(TpRange), Nil, []Value{NewInt(3)}) {
		t.Fatalf("range(3) failed: %s", vm.FormatExc())
	}
	r := vm.Retval()
	vm.Push(r)
	defer vm.Pop()
	if !vm.Call(vm.TypeObject(TpList), Nil, []Value{r}) {
		t.Fatalf("list(range(3)) failed: %s", vm.FormatExc())
	}
	lst := vm.Retval()
	vm.Push(lst)
	defer vm.Pop()
	if vm.ListLen(lst) != 3 || vm.ListGet(lst, 2).Int() != 2 {
		t.Error("list(range(3))")
	}
}

func TestExposedTypeNames(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	for _, name := range []string{"int", "str", "list", "dict", "TypeError", "KeyError"} {
		v, ok := vm.GetBuiltin(NameFor(name))
		if !ok || !v.IsType() {
			t.Errorf("builtin type %s not exposed", name)
		}
	}
}

func TestDictRepr(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	d := vm.NewDict()
	vm.Push(d)
	defer vm.Pop()
	k := vm.NewStr("k")
	vm.Push(k)
	defer vm.Pop()
	if !vm.DictSetItem(d, k, NewInt(1)) {
		t.Fatal("setitem failed")
	}
	if !vm.Repr(d) {
		t.Fatalf("repr failed: %s", vm.FormatExc())
	}
	if got := vm.StrContent(vm.Retval()); got != "{'k': 1}" {
		t.Errorf("repr(dict) = %q", got)
	}
	if !strings.HasPrefix(vm.StrContent(vm.Retval()), "{") {
		t.Error("dict repr braces")
	}
}
