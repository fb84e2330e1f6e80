package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// initBuiltins populates the magic banks of the predefined types and
// the builtins module. Runs once during instance boot, with collection
// paused.
func (vm *VM) initBuiltins() {
	vm.heap.Pause()
	defer vm.heap.Resume()

	vm.initNumberTypes()
	vm.initStrType()
	vm.initListType()
	vm.initTupleType()
	vm.initRangeType()
	vm.initDictType()
	vm.initExceptionTypes()
	vm.initMiscTypes()
	vm.initBuiltinsModule()
}

func (vm *VM) checkArgc(argc, want int) bool {
	if argc != want {
		return vm.RaiseType(TpTypeError, "expected %d arguments, got %d", want, argc)
	}
	return true
}

func (vm *VM) checkArgcRange(argc, lo, hi int) bool {
	if argc < lo || argc > hi {
		return vm.RaiseType(TpTypeError, "expected %d to %d arguments, got %d", lo, hi, argc)
	}
	return true
}

// ---------------------------------------------------------------------------
// int and float
// ---------------------------------------------------------------------------

// pyFloorDiv matches the language's floor semantics for negative
// operands, unlike Go's truncating division.
func pyFloorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func pyMod(a, b int64) int64 {
	r := a % b
	if r != 0 && ((r < 0) != (b < 0)) {
		r += b
	}
	return r
}

func ipow(base, exp int64) int64 {
	r := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			r *= base
		}
		base *= base
		exp >>= 1
	}
	return r
}

func (vm *VM) initNumberTypes() {
	type intOp struct {
		name Name
		fn   func(vm *VM, a, b int64) (Value, bool)
	}
	intOps := []intOp{
		{MagicAdd, func(vm *VM, a, b int64) (Value, bool) { return NewInt(a + b), true }},
		{MagicSub, func(vm *VM, a, b int64) (Value, bool) { return NewInt(a - b), true }},
		{MagicMul, func(vm *VM, a, b int64) (Value, bool) { return NewInt(a * b), true }},
		{MagicFloordiv, func(vm *VM, a, b int64) (Value, bool) {
			if b == 0 {
				return Nil, vm.RaiseType(TpZeroDivisionError, "integer division or modulo by zero")
			}
			return NewInt(pyFloorDiv(a, b)), true
		}},
		{MagicMod, func(vm *VM, a, b int64) (Value, bool) {
			if b == 0 {
				return Nil, vm.RaiseType(TpZeroDivisionError, "integer division or modulo by zero")
			}
			return NewInt(pyMod(a, b)), true
		}},
		{MagicLshift, func(vm *VM, a, b int64) (Value, bool) { return NewInt(a << uint64(b)), true }},
		{MagicRshift, func(vm *VM, a, b int64) (Value, bool) { return NewInt(a >> uint64(b)), true }},
		{MagicAnd, func(vm *VM, a, b int64) (Value, bool) { return NewInt(a & b), true }},
		{MagicOr, func(vm *VM, a, b int64) (Value, bool) { return NewInt(a | b), true }},
		{MagicXor, func(vm *VM, a, b int64) (Value, bool) { return NewInt(a ^ b), true }},
	}
	for _, op := range intOps {
		fn := op.fn
		vm.BindMagic(TpInt, op.name, func(vm *VM, argc int, argv []Value) bool {
			if !argv[1].IsInt() {
				return vm.Return(NotImplemented)
			}
			v, ok := fn(vm, argv[0].Int(), argv[1].Int())
			if !ok {
				return false
			}
			return vm.Return(v)
		})
	}

	vm.BindMagic(TpInt, MagicTruediv, func(vm *VM, argc int, argv []Value) bool {
		if !argv[1].IsInt() {
			return vm.Return(NotImplemented)
		}
		if argv[1].Int() == 0 {
			return vm.RaiseType(TpZeroDivisionError, "division by zero")
		}
		return vm.Return(NewFloat(float64(argv[0].Int()) / float64(argv[1].Int())))
	})
	vm.BindMagic(TpInt, MagicPow, func(vm *VM, argc int, argv []Value) bool {
		if !argv[1].IsInt() {
			return vm.Return(NotImplemented)
		}
		e := argv[1].Int()
		if e < 0 {
			return vm.Return(NewFloat(math.Pow(float64(argv[0].Int()), float64(e))))
		}
		return vm.Return(NewInt(ipow(argv[0].Int(), e)))
	})
	vm.BindMagic(TpInt, MagicNeg, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(NewInt(-argv[0].Int()))
	})
	vm.BindMagic(TpInt, MagicInvert, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(NewInt(^argv[0].Int()))
	})
	vm.BindMagic(TpInt, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.NewStr(strconv.FormatInt(argv[0].Int(), 10)))
	})
	vm.BindMagic(TpInt, MagicNew, func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgcRange(argc, 1, 2) {
			return false
		}
		if argc == 1 {
			return vm.Return(NewInt(0))
		}
		switch v := argv[1]; v.typ {
		case TpInt:
			return vm.Return(v)
		case TpBool:
			if v.Bool() {
				return vm.Return(NewInt(1))
			}
			return vm.Return(NewInt(0))
		case TpFloat:
			return vm.Return(NewInt(int64(math.Trunc(v.Float()))))
		case TpStr:
			s := strings.TrimSpace(vm.StrContent(v))
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return vm.RaiseType(TpValueError, "invalid literal for int(): %q", s)
			}
			return vm.Return(NewInt(i))
		}
		return vm.RaiseType(TpTypeError, "int() argument must be a number or str, not '%t'", argv[1].typ)
	})

	// float arithmetic accepts int on either side; the reflected slots
	// catch int <op> float after int abstains.
	type floatOp struct {
		name Name
		fn   func(vm *VM, a, b float64) (Value, bool)
	}
	floatOps := []floatOp{
		{MagicAdd, func(vm *VM, a, b float64) (Value, bool) { return NewFloat(a + b), true }},
		{MagicSub, func(vm *VM, a, b float64) (Value, bool) { return NewFloat(a - b), true }},
		{MagicMul, func(vm *VM, a, b float64) (Value, bool) { return NewFloat(a * b), true }},
		{MagicTruediv, func(vm *VM, a, b float64) (Value, bool) {
			if b == 0 {
				return Nil, vm.RaiseType(TpZeroDivisionError, "float division by zero")
			}
			return NewFloat(a / b), true
		}},
		{MagicFloordiv, func(vm *VM, a, b float64) (Value, bool) {
			if b == 0 {
				return Nil, vm.RaiseType(TpZeroDivisionError, "float floor division by zero")
			}
			return NewFloat(math.Floor(a / b)), true
		}},
		{MagicMod, func(vm *VM, a, b float64) (Value, bool) {
			if b == 0 {
				return Nil, vm.RaiseType(TpZeroDivisionError, "float modulo by zero")
			}
			r := math.Mod(a, b)
			if r != 0 && (r < 0) != (b < 0) {
				r += b
			}
			return NewFloat(r), true
		}},
		{MagicPow, func(vm *VM, a, b float64) (Value, bool) { return NewFloat(math.Pow(a, b)), true }},
	}
	for _, op := range floatOps {
		fn := op.fn
		forward := func(vm *VM, argc int, argv []Value) bool {
			if !argv[1].IsInt() && !argv[1].IsFloat() {
				return vm.Return(NotImplemented)
			}
			v, ok := fn(vm, numericValue(argv[0]), numericValue(argv[1]))
			if !ok {
				return false
			}
			return vm.Return(v)
		}
		reflected := func(vm *VM, argc int, argv []Value) bool {
			if !argv[1].IsInt() && !argv[1].IsFloat() {
				return vm.Return(NotImplemented)
			}
			v, ok := fn(vm, numericValue(argv[1]), numericValue(argv[0]))
			if !ok {
				return false
			}
			return vm.Return(v)
		}
		vm.BindMagic(TpFloat, op.name, forward)
		vm.BindMagic(TpFloat, op.name+1, reflected)
	}
	vm.BindMagic(TpFloat, MagicNeg, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(NewFloat(-argv[0].Float()))
	})
	vm.BindMagic(TpFloat, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.NewStr(formatFloat(argv[0].Float())))
	})
	vm.BindMagic(TpFloat, MagicNew, func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgcRange(argc, 1, 2) {
			return false
		}
		if argc == 1 {
			return vm.Return(NewFloat(0))
		}
		switch v := argv[1]; v.typ {
		case TpFloat:
			return vm.Return(v)
		case TpInt:
			return vm.Return(NewFloat(float64(v.Int())))
		case TpBool:
			if v.Bool() {
				return vm.Return(NewFloat(1))
			}
			return vm.Return(NewFloat(0))
		case TpStr:
			f, err := strconv.ParseFloat(strings.TrimSpace(vm.StrContent(v)), 64)
			if err != nil {
				return vm.RaiseType(TpValueError, "invalid literal for float(): %q", vm.StrContent(v))
			}
			return vm.Return(NewFloat(f))
		}
		return vm.RaiseType(TpTypeError, "float() argument must be a number or str, not '%t'", argv[1].typ)
	})

	vm.BindMagic(TpBool, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		if argv[0].Bool() {
			return vm.Return(vm.NewStr("True"))
		}
		return vm.Return(vm.NewStr("False"))
	})
	vm.BindMagic(TpBool, MagicNew, func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgcRange(argc, 1, 2) {
			return false
		}
		if argc == 1 {
			return vm.Return(False)
		}
		switch vm.Bool(argv[1]) {
		case -1:
			return false
		case 1:
			return vm.Return(True)
		}
		return vm.Return(False)
	})
}

// ---------------------------------------------------------------------------
// str
// ---------------------------------------------------------------------------

func (vm *VM) initStrType() {
	vm.BindMagic(TpStr, MagicNew, func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgcRange(argc, 1, 2) {
			return false
		}
		if argc == 1 {
			return vm.Return(vm.NewStr(""))
		}
		return vm.Str(argv[1])
	})
	vm.BindMagic(TpStr, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.NewStr("'" + escapeString(vm.StrContent(argv[0])) + "'"))
	})
	vm.BindMagic(TpStr, MagicAdd, func(vm *VM, argc int, argv []Value) bool {
		if !argv[1].IsStr() {
			return vm.Return(NotImplemented)
		}
		return vm.Return(vm.NewStr(vm.StrContent(argv[0]) + vm.StrContent(argv[1])))
	})
	vm.BindMagic(TpStr, MagicMul, func(vm *VM, argc int, argv []Value) bool {
		if !argv[1].IsInt() {
			return vm.Return(NotImplemented)
		}
		n := argv[1].Int()
		if n < 0 {
			n = 0
		}
		return vm.Return(vm.NewStr(strings.Repeat(vm.StrContent(argv[0]), int(n))))
	})
	vm.BindMagic(TpStr, MagicContains, func(vm *VM, argc int, argv []Value) bool {
		if !argv[1].IsStr() {
			return vm.RaiseType(TpTypeError, "'in <str>' requires str, not '%t'", argv[1].typ)
		}
		return vm.Return(NewBool(strings.Contains(vm.StrContent(argv[0]), vm.StrContent(argv[1]))))
	})
	vm.BindMagic(TpStr, MagicGetitem, func(vm *VM, argc int, argv []Value) bool {
		s := vm.StrContent(argv[0])
		key := argv[1]
		if key.typ == TpSlice {
			start, stop, step, ok := vm.sliceIndices(key, len(s))
			if !ok {
				return false
			}
			if step == 1 {
				return vm.Return(vm.NewStr(s[start:stop]))
			}
			var b strings.Builder
			for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
				b.WriteByte(s[i])
			}
			return vm.Return(vm.NewStr(b.String()))
		}
		i, ok := vm.seqIndex(key, len(s))
		if !ok {
			return false
		}
		return vm.Return(vm.NewStr(s[i : i+1]))
	})

	strMethods := map[string]func(vm *VM, s string, argc int, argv []Value) bool{
		"upper(self)": func(vm *VM, s string, argc int, argv []Value) bool {
			return vm.Return(vm.NewStr(strings.ToUpper(s)))
		},
		"lower(self)": func(vm *VM, s string, argc int, argv []Value) bool {
			return vm.Return(vm.NewStr(strings.ToLower(s)))
		},
		"strip(self, chars=None)": func(vm *VM, s string, argc int, argv []Value) bool {
			if argv[1].IsNone() {
				return vm.Return(vm.NewStr(strings.TrimSpace(s)))
			}
			return vm.Return(vm.NewStr(strings.Trim(s, vm.StrContent(argv[1]))))
		},
		"startswith(self, prefix)": func(vm *VM, s string, argc int, argv []Value) bool {
			return vm.Return(NewBool(strings.HasPrefix(s, vm.StrContent(argv[1]))))
		},
		"endswith(self, suffix)": func(vm *VM, s string, argc int, argv []Value) bool {
			return vm.Return(NewBool(strings.HasSuffix(s, vm.StrContent(argv[1]))))
		},
		"find(self, sub)": func(vm *VM, s string, argc int, argv []Value) bool {
			return vm.Return(NewInt(int64(strings.Index(s, vm.StrContent(argv[1])))))
		},
		"count(self, sub)": func(vm *VM, s string, argc int, argv []Value) bool {
			return vm.Return(NewInt(int64(strings.Count(s, vm.StrContent(argv[1])))))
		},
		"replace(self, old, new)": func(vm *VM, s string, argc int, argv []Value) bool {
			return vm.Return(vm.NewStr(strings.ReplaceAll(s, vm.StrContent(argv[1]), vm.StrContent(argv[2]))))
		},
		"split(self, sep=None)": func(vm *VM, s string, argc int, argv []Value) bool {
			var parts []string
			if argv[1].IsNone() {
				parts = strings.Fields(s)
			} else {
				parts = strings.Split(s, vm.StrContent(argv[1]))
			}
			vm.heap.Pause()
			defer vm.heap.Resume()
			items := make([]Value, len(parts))
			for i, p := range parts {
				items[i] = vm.NewStr(p)
			}
			return vm.Return(vm.NewList(items...))
		},
		"join(self, iterable)": func(vm *VM, s string, argc int, argv []Value) bool {
			if !vm.Iter(argv[1]) {
				return false
			}
			tmp := vm.PushTmp()
			if tmp == nil {
				return false
			}
			*tmp = vm.retval
			defer vm.Pop()
			var parts []string
			for {
				r := vm.Next(*tmp)
				if r == -1 {
					return false
				}
				if r == 0 {
					break
				}
				if !vm.retval.IsStr() {
					return vm.RaiseType(TpTypeError, "join() expects str items, got '%t'", vm.retval.typ)
				}
				parts = append(parts, vm.StrContent(vm.retval))
			}
			return vm.Return(vm.NewStr(strings.Join(parts, s)))
		},
	}
	for sig, fn := range strMethods {
		fn := fn
		vm.BindMethod(TpStr, sig, func(vm *VM, argc int, argv []Value) bool {
			return fn(vm, vm.StrContent(argv[0]), argc, argv)
		})
	}
}

// ---------------------------------------------------------------------------
// Sequence index and slice resolution
// ---------------------------------------------------------------------------

// seqIndex resolves an int key against a sequence length, handling
// negative indexing and raising IndexError out of range.
func (vm *VM) seqIndex(key Value, length int) (int, bool) {
	if !key.IsInt() {
		vm.RaiseType(TpTypeError, "indices must be ints, not '%t'", key.typ)
		return 0, false
	}
	i := int(key.Int())
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		vm.RaiseType(TpIndexError, "index %d out of range", key.Int())
		return 0, false
	}
	return i, true
}

// sliceIndices resolves a slice object against a sequence length with
// clamping, matching the language's indices() semantics.
func (vm *VM) sliceIndices(sl Value, length int) (start, stop, step int, ok bool) {
	obj := vm.heap.Get(sl.Handle())
	step = 1
	if v := obj.Slot(2); !v.IsNone() && !v.IsNil() {
		step = int(v.Int())
	}
	if step == 0 {
		vm.RaiseType(TpValueError, "slice step cannot be zero")
		return 0, 0, 0, false
	}

	lower, upper := 0, length
	if step < 0 {
		lower, upper = -1, length-1
	}

	start = lower
	if step < 0 {
		start = upper
	}
	if v := obj.Slot(0); !v.IsNone() && !v.IsNil() {
		start = int(v.Int())
		if start < 0 {
			start += length
		}
		start = clampInt(start, lower, upper)
	}

	stop = upper
	if step < 0 {
		stop = lower
	}
	if v := obj.Slot(1); !v.IsNone() && !v.IsNil() {
		stop = int(v.Int())
		if stop < 0 {
			stop += length
		}
		stop = clampInt(stop, lower, upper)
	}
	return start, stop, step, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ---------------------------------------------------------------------------
// list
// ---------------------------------------------------------------------------

func (vm *VM) initListType() {
	vm.BindMagic(TpList, MagicNew, func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgcRange(argc, 1, 2) {
			return false
		}
		if argc == 1 {
			return vm.Return(vm.NewList())
		}
		return vm.materializeList(argv[1])
	})
	vm.BindMagic(TpList, MagicGetitem, func(vm *VM, argc int, argv []Value) bool {
		n := vm.ListLen(argv[0])
		if argv[1].typ == TpSlice {
			start, stop, step, ok := vm.sliceIndices(argv[1], n)
			if !ok {
				return false
			}
			var out []Value
			for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
				out = append(out, vm.ListGet(argv[0], i))
			}
			return vm.Return(vm.NewList(out...))
		}
		i, ok := vm.seqIndex(argv[1], n)
		if !ok {
			return false
		}
		return vm.Return(vm.ListGet(argv[0], i))
	})
	vm.BindMagic(TpList, MagicSetitem, func(vm *VM, argc int, argv []Value) bool {
		i, ok := vm.seqIndex(argv[1], vm.ListLen(argv[0]))
		if !ok {
			return false
		}
		vm.ListSet(argv[0], i, argv[2])
		return vm.ReturnNone()
	})
	vm.BindMagic(TpList, MagicDelitem, func(vm *VM, argc int, argv []Value) bool {
		i, ok := vm.seqIndex(argv[1], vm.ListLen(argv[0]))
		if !ok {
			return false
		}
		vm.ListDel(argv[0], i)
		return vm.ReturnNone()
	})
	vm.BindMagic(TpList, MagicAdd, func(vm *VM, argc int, argv []Value) bool {
		if argv[1].typ != TpList {
			return vm.Return(NotImplemented)
		}
		items := append(append([]Value(nil), vm.ListItems(argv[0])...), vm.ListItems(argv[1])...)
		return vm.Return(vm.NewList(items...))
	})
	vm.BindMagic(TpList, MagicMul, func(vm *VM, argc int, argv []Value) bool {
		if !argv[1].IsInt() {
			return vm.Return(NotImplemented)
		}
		src := vm.ListItems(argv[0])
		var out []Value
		for k := int64(0); k < argv[1].Int(); k++ {
			out = append(out, src...)
		}
		return vm.Return(vm.NewList(out...))
	})
	vm.BindMagic(TpList, MagicEq, func(vm *VM, argc int, argv []Value) bool {
		if argv[1].typ != TpList {
			return vm.Return(NotImplemented)
		}
		a, b := argv[0], argv[1]
		if vm.ListLen(a) != vm.ListLen(b) {
			return vm.Return(False)
		}
		for i := 0; i < vm.ListLen(a); i++ {
			r := vm.Equal(vm.ListGet(a, i), vm.ListGet(b, i))
			if r == -1 {
				return false
			}
			if r == 0 {
				return vm.Return(False)
			}
		}
		return vm.Return(True)
	})
	vm.BindMagic(TpList, MagicContains, func(vm *VM, argc int, argv []Value) bool {
		for _, it := range vm.ListItems(argv[0]) {
			r := vm.Equal(it, argv[1])
			if r == -1 {
				return false
			}
			if r == 1 {
				return vm.Return(True)
			}
		}
		return vm.Return(False)
	})
	vm.BindMagic(TpList, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		return vm.seqRepr(vm.ListItems(argv[0]), "[", "]", false)
	})

	vm.BindMethod(TpList, "append(self, x)", func(vm *VM, argc int, argv []Value) bool {
		vm.ListAppend(argv[0], argv[1])
		return vm.ReturnNone()
	})
	vm.BindMethod(TpList, "insert(self, i, x)", func(vm *VM, argc int, argv []Value) bool {
		if !argv[1].IsInt() {
			return vm.RaiseType(TpTypeError, "indices must be ints, not '%t'", argv[1].typ)
		}
		n := vm.ListLen(argv[0])
		i := int(argv[1].Int())
		if i < 0 {
			i += n
		}
		vm.ListInsert(argv[0], clampInt(i, 0, n), argv[2])
		return vm.ReturnNone()
	})
	vm.BindMethod(TpList, "pop(self, i=-1)", func(vm *VM, argc int, argv []Value) bool {
		n := vm.ListLen(argv[0])
		if n == 0 {
			return vm.RaiseType(TpIndexError, "pop from empty list")
		}
		i, ok := vm.seqIndex(argv[1], n)
		if !ok {
			return false
		}
		out := vm.ListGet(argv[0], i)
		vm.ListDel(argv[0], i)
		return vm.Return(out)
	})
	vm.BindMethod(TpList, "remove(self, x)", func(vm *VM, argc int, argv []Value) bool {
		for i := 0; i < vm.ListLen(argv[0]); i++ {
			r := vm.Equal(vm.ListGet(argv[0], i), argv[1])
			if r == -1 {
				return false
			}
			if r == 1 {
				vm.ListDel(argv[0], i)
				return vm.ReturnNone()
			}
		}
		return vm.RaiseType(TpValueError, "list.remove(x): x not in list")
	})
	vm.BindMethod(TpList, "index(self, x)", func(vm *VM, argc int, argv []Value) bool {
		for i := 0; i < vm.ListLen(argv[0]); i++ {
			r := vm.Equal(vm.ListGet(argv[0], i), argv[1])
			if r == -1 {
				return false
			}
			if r == 1 {
				return vm.Return(NewInt(int64(i)))
			}
		}
		return vm.RaiseType(TpValueError, "x not in list")
	})
	vm.BindMethod(TpList, "count(self, x)", func(vm *VM, argc int, argv []Value) bool {
		n := int64(0)
		for _, it := range vm.ListItems(argv[0]) {
			r := vm.Equal(it, argv[1])
			if r == -1 {
				return false
			}
			if r == 1 {
				n++
			}
		}
		return vm.Return(NewInt(n))
	})
	vm.BindMethod(TpList, "extend(self, iterable)", func(vm *VM, argc int, argv []Value) bool {
		if !vm.materializeList(argv[1]) {
			return false
		}
		for _, it := range vm.ListItems(vm.retval) {
			vm.ListAppend(argv[0], it)
		}
		return vm.ReturnNone()
	})
	vm.BindMethod(TpList, "reverse(self)", func(vm *VM, argc int, argv []Value) bool {
		items := vm.ListItems(argv[0])
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		return vm.ReturnNone()
	})
	vm.BindMethod(TpList, "clear(self)", func(vm *VM, argc int, argv []Value) bool {
		vm.ListClear(argv[0])
		return vm.ReturnNone()
	})
	vm.BindMethod(TpList, "copy(self)", func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.NewList(vm.ListItems(argv[0])...))
	})
}

// materializeList drains any iterable into a fresh list in retval.
func (vm *VM) materializeList(iterable Value) bool {
	if iterable.typ == TpList {
		return vm.Return(vm.NewList(vm.ListItems(iterable)...))
	}
	if !vm.Iter(iterable) {
		return false
	}
	tmp := vm.PushTmp()
	if tmp == nil {
		return false
	}
	*tmp = vm.retval
	out := vm.PushTmp()
	if out == nil {
		vm.Pop()
		return false
	}
	*out = vm.NewList()
	defer vm.Shrink(2)
	for {
		r := vm.Next(*tmp)
		if r == -1 {
			return false
		}
		if r == 0 {
			break
		}
		vm.ListAppend(*out, vm.retval)
	}
	return vm.Return(*out)
}

// seqRepr renders a container body by repr-ing every item.
func (vm *VM) seqRepr(items []Value, open, close string, trailingComma bool) bool {
	var b strings.Builder
	b.WriteString(open)
	for i, it := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		if !vm.Repr(it) {
			return false
		}
		b.WriteString(vm.StrContent(vm.retval))
	}
	if trailingComma && len(items) == 1 {
		b.WriteString(",")
	}
	b.WriteString(close)
	return vm.Return(vm.NewStr(b.String()))
}

// ---------------------------------------------------------------------------
// tuple
// ---------------------------------------------------------------------------

func (vm *VM) initTupleType() {
	vm.BindMagic(TpTuple, MagicNew, func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgcRange(argc, 1, 2) {
			return false
		}
		if argc == 1 {
			return vm.Return(vm.TupleOf())
		}
		if !vm.materializeList(argv[1]) {
			return false
		}
		return vm.Return(vm.TupleOf(vm.ListItems(vm.retval)...))
	})
	vm.BindMagic(TpTuple, MagicGetitem, func(vm *VM, argc int, argv []Value) bool {
		obj := vm.heap.Get(argv[0].Handle())
		if argv[1].typ == TpSlice {
			start, stop, step, ok := vm.sliceIndices(argv[1], obj.NumSlots())
			if !ok {
				return false
			}
			var out []Value
			for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
				out = append(out, obj.Slot(i))
			}
			return vm.Return(vm.TupleOf(out...))
		}
		i, ok := vm.seqIndex(argv[1], obj.NumSlots())
		if !ok {
			return false
		}
		return vm.Return(obj.Slot(i))
	})
	vm.BindMagic(TpTuple, MagicEq, func(vm *VM, argc int, argv []Value) bool {
		if argv[1].typ != TpTuple {
			return vm.Return(NotImplemented)
		}
		r := vm.tupleEqual(argv[0], argv[1])
		if r == -1 {
			return false
		}
		return vm.Return(NewBool(r == 1))
	})
	vm.BindMagic(TpTuple, MagicContains, func(vm *VM, argc int, argv []Value) bool {
		obj := vm.heap.Get(argv[0].Handle())
		for i := 0; i < obj.NumSlots(); i++ {
			r := vm.Equal(obj.Slot(i), argv[1])
			if r == -1 {
				return false
			}
			if r == 1 {
				return vm.Return(True)
			}
		}
		return vm.Return(False)
	})
	vm.BindMagic(TpTuple, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		obj := vm.heap.Get(argv[0].Handle())
		items := make([]Value, obj.NumSlots())
		for i := range items {
			items[i] = obj.Slot(i)
		}
		return vm.seqRepr(items, "(", ")", true)
	})
}

// ---------------------------------------------------------------------------
// range and slice
// ---------------------------------------------------------------------------

func (vm *VM) initRangeType() {
	vm.BindMagic(TpRange, MagicNew, func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgcRange(argc, 2, 4) {
			return false
		}
		start, stop, step := int64(0), int64(0), int64(1)
		for _, a := range argv[1:] {
			if !a.IsInt() {
				return vm.RaiseType(TpTypeError, "range() arguments must be ints, not '%t'", a.typ)
			}
		}
		switch argc {
		case 2:
			stop = argv[1].Int()
		case 3:
			start, stop = argv[1].Int(), argv[2].Int()
		case 4:
			start, stop, step = argv[1].Int(), argv[2].Int(), argv[3].Int()
			if step == 0 {
				return vm.RaiseType(TpValueError, "range() step cannot be zero")
			}
		}
		vm.heap.Pause()
		defer vm.heap.Resume()
		h := vm.heap.Alloc(TpRange, 3, 0)
		obj := vm.heap.Get(h)
		obj.SetSlot(0, NewInt(start))
		obj.SetSlot(1, NewInt(stop))
		obj.SetSlot(2, NewInt(step))
		return vm.Return(newHandleValue(TpRange, h))
	})
	vm.BindMagic(TpRange, MagicLen, func(vm *VM, argc int, argv []Value) bool {
		obj := vm.heap.Get(argv[0].Handle())
		start, stop, step := obj.Slot(0).Int(), obj.Slot(1).Int(), obj.Slot(2).Int()
		var n int64
		if step > 0 && stop > start {
			n = (stop - start + step - 1) / step
		} else if step < 0 && stop < start {
			n = (start - stop - step - 1) / -step
		}
		return vm.Return(NewInt(n))
	})
	vm.BindMagic(TpRange, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		obj := vm.heap.Get(argv[0].Handle())
		s := fmt.Sprintf("range(%d, %d)", obj.Slot(0).Int(), obj.Slot(1).Int())
		if step := obj.Slot(2).Int(); step != 1 {
			s = fmt.Sprintf("range(%d, %d, %d)", obj.Slot(0).Int(), obj.Slot(1).Int(), step)
		}
		return vm.Return(vm.NewStr(s))
	})

	vm.BindMagic(TpSlice, MagicNew, func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgcRange(argc, 2, 4) {
			return false
		}
		switch argc {
		case 2:
			return vm.Return(vm.NewSlice(None, argv[1], None))
		case 3:
			return vm.Return(vm.NewSlice(argv[1], argv[2], None))
		default:
			return vm.Return(vm.NewSlice(argv[1], argv[2], argv[3]))
		}
	})
	vm.BindProperty(TpSlice, "start", func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.GetSlot(argv[0], 0))
	}, nil)
	vm.BindProperty(TpSlice, "stop", func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.GetSlot(argv[0], 1))
	}, nil)
	vm.BindProperty(TpSlice, "step", func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.GetSlot(argv[0], 2))
	}, nil)
}

// ---------------------------------------------------------------------------
// dict
// ---------------------------------------------------------------------------

func (vm *VM) initDictType() {
	vm.BindMagic(TpDict, MagicNew, func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgc(argc, 1) {
			return false
		}
		return vm.Return(vm.NewDict())
	})
	vm.BindMagic(TpDict, MagicGetitem, func(vm *VM, argc int, argv []Value) bool {
		switch vm.DictGetItem(argv[0], argv[1]) {
		case -1:
			return false
		case 1:
			return true
		}
		if m := vm.TpFindMagic(argv[0].typ, MagicMissing); m != nil {
			return vm.Call(*m, argv[0], []Value{argv[1]})
		}
		return vm.KeyError(argv[1])
	})
	vm.BindMagic(TpDict, MagicSetitem, func(vm *VM, argc int, argv []Value) bool {
		if !vm.DictSetItem(argv[0], argv[1], argv[2]) {
			return false
		}
		return vm.ReturnNone()
	})
	vm.BindMagic(TpDict, MagicDelitem, func(vm *VM, argc int, argv []Value) bool {
		switch vm.DictDelItem(argv[0], argv[1]) {
		case -1:
			return false
		case 0:
			return vm.KeyError(argv[1])
		}
		return vm.ReturnNone()
	})
	vm.BindMagic(TpDict, MagicContains, func(vm *VM, argc int, argv []Value) bool {
		switch vm.DictGetItem(argv[0], argv[1]) {
		case -1:
			return false
		case 1:
			return vm.Return(True)
		}
		return vm.Return(False)
	})
	vm.BindMagic(TpDict, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		var b strings.Builder
		b.WriteString("{")
		first := true
		ok := vm.DictApply(argv[0], func(k, v Value) bool {
			if !first {
				b.WriteString(", ")
			}
			first = false
			if !vm.Repr(k) {
				return false
			}
			b.WriteString(vm.StrContent(vm.retval))
			b.WriteString(": ")
			if !vm.Repr(v) {
				return false
			}
			b.WriteString(vm.StrContent(vm.retval))
			return true
		})
		if !ok {
			return false
		}
		b.WriteString("}")
		return vm.Return(vm.NewStr(b.String()))
	})

	vm.BindMethod(TpDict, "get(self, key, default=None)", func(vm *VM, argc int, argv []Value) bool {
		switch vm.DictGetItem(argv[0], argv[1]) {
		case -1:
			return false
		case 1:
			return true
		}
		return vm.Return(argv[2])
	})
	vm.BindMethod(TpDict, "pop(self, key)", func(vm *VM, argc int, argv []Value) bool {
		switch vm.DictGetItem(argv[0], argv[1]) {
		case -1:
			return false
		case 0:
			return vm.KeyError(argv[1])
		}
		out := vm.retval
		if vm.DictDelItem(argv[0], argv[1]) == -1 {
			return false
		}
		return vm.Return(out)
	})
	vm.BindMethod(TpDict, "keys(self)", func(vm *VM, argc int, argv []Value) bool {
		out := vm.NewList()
		tmp := vm.PushTmp()
		if tmp == nil {
			return false
		}
		*tmp = out
		defer vm.Pop()
		vm.DictApply(argv[0], func(k, _ Value) bool {
			vm.ListAppend(out, k)
			return true
		})
		return vm.Return(out)
	})
	vm.BindMethod(TpDict, "values(self)", func(vm *VM, argc int, argv []Value) bool {
		out := vm.NewList()
		tmp := vm.PushTmp()
		if tmp == nil {
			return false
		}
		*tmp = out
		defer vm.Pop()
		vm.DictApply(argv[0], func(_, v Value) bool {
			vm.ListAppend(out, v)
			return true
		})
		return vm.Return(out)
	})
	vm.BindMethod(TpDict, "items(self)", func(vm *VM, argc int, argv []Value) bool {
		out := vm.NewList()
		tmp := vm.PushTmp()
		if tmp == nil {
			return false
		}
		*tmp = out
		defer vm.Pop()
		vm.DictApply(argv[0], func(k, v Value) bool {
			vm.ListAppend(out, vm.TupleOf(k, v))
			return true
		})
		return vm.Return(out)
	})
	vm.BindMethod(TpDict, "update(self, other)", func(vm *VM, argc int, argv []Value) bool {
		if argv[1].typ != TpDict {
			return vm.RaiseType(TpTypeError, "update() expects dict, got '%t'", argv[1].typ)
		}
		ok := vm.DictApply(argv[1], func(k, v Value) bool {
			return vm.DictSetItem(argv[0], k, v)
		})
		if !ok {
			return false
		}
		return vm.ReturnNone()
	})
	vm.BindMethod(TpDict, "clear(self)", func(vm *VM, argc int, argv []Value) bool {
		d := vm.dictData(argv[0])
		d.entries = d.entries[:0]
		d.buckets = make(map[int64][]int32)
		d.length = 0
		return vm.ReturnNone()
	})
	vm.BindMethod(TpDict, "copy(self)", func(vm *VM, argc int, argv []Value) bool {
		out := vm.NewDict()
		tmp := vm.PushTmp()
		if tmp == nil {
			return false
		}
		*tmp = out
		defer vm.Pop()
		ok := vm.DictApply(argv[0], func(k, v Value) bool {
			return vm.DictSetItem(out, k, v)
		})
		if !ok {
			return false
		}
		return vm.Return(out)
	})
}

// ---------------------------------------------------------------------------
// exceptions
// ---------------------------------------------------------------------------

func (vm *VM) initExceptionTypes() {
	vm.BindMagic(TpBaseException, MagicNew, func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgcRange(argc, 1, 2) {
			return false
		}
		arg := Nil
		if argc == 2 {
			arg = argv[1]
		}
		return vm.Return(vm.NewException(argv[0].AsType(), arg))
	})
	vm.BindMagic(TpBaseException, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		self := argv[0]
		arg := vm.ExcArg(self)
		if arg.IsNil() {
			return vm.Return(vm.NewStr(vm.TypeName(self.typ) + "()"))
		}
		if !vm.Repr(arg) {
			return false
		}
		return vm.Return(vm.NewStr(vm.TypeName(self.typ) + "(" + vm.StrContent(vm.retval) + ")"))
	})
	vm.BindMagic(TpBaseException, MagicStr, func(vm *VM, argc int, argv []Value) bool {
		arg := vm.ExcArg(argv[0])
		if arg.IsNil() {
			return vm.Return(vm.NewStr(""))
		}
		return vm.Str(arg)
	})
}

// ---------------------------------------------------------------------------
// misc singletons and callables
// ---------------------------------------------------------------------------

func (vm *VM) initMiscTypes() {
	vm.BindMagic(TpNoneType, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.NewStr("None"))
	})
	vm.BindMagic(TpNotImplementedType, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.NewStr("NotImplemented"))
	})
	vm.BindMagic(TpEllipsis, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.NewStr("Ellipsis"))
	})
	vm.BindMagic(TpType, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.NewStr("<class '" + vm.TypeName(argv[0].AsType()) + "'>"))
	})
	vm.BindMagic(TpType, MagicNew, func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgc(argc, 2) {
			return false
		}
		return vm.Return(newTypeValue(vm.TypeOf(argv[1])))
	})
	vm.BindMagic(TpModule, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		name, _ := vm.GetDict(argv[0], nameDunderName)
		if name.IsStr() {
			return vm.Return(vm.NewStr("<module '" + vm.StrContent(name) + "'>"))
		}
		return vm.Return(vm.NewStr("<module>"))
	})
	vm.BindMagic(TpFunction, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.NewStr("<function " + NameStr(vm.FuncDeclOf(argv[0]).Name) + ">"))
	})
	vm.BindMagic(TpNativeFunc, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.NewStr("<nativefunc>"))
	})
	vm.BindMagic(TpBoundMethod, MagicRepr, func(vm *VM, argc int, argv []Value) bool {
		return vm.Return(vm.NewStr("<boundmethod>"))
	})
}

// ---------------------------------------------------------------------------
// builtins module
// ---------------------------------------------------------------------------

func (vm *VM) initBuiltinsModule() {
	mod := vm.builtins

	// Expose the predefined types by name.
	for t := TpObject; t <= TpKeyError; t++ {
		vm.SetDict(mod, NameFor(vm.TypeName(t)), newTypeValue(t))
	}
	vm.SetDict(mod, NameFor("None"), None)
	vm.SetDict(mod, NameFor("True"), True)
	vm.SetDict(mod, NameFor("False"), False)
	vm.SetDict(mod, NameFor("NotImplemented"), NotImplemented)
	vm.SetDict(mod, NameFor("Ellipsis"), Ellipsis)

	vm.Bind(mod, "print(*args)", func(vm *VM, argc int, argv []Value) bool {
		tup := argv[0]
		obj := vm.heap.Get(tup.Handle())
		parts := make([]string, obj.NumSlots())
		for i := range parts {
			if !vm.Str(obj.Slot(i)) {
				return false
			}
			parts[i] = vm.StrContent(vm.retval)
		}
		fmt.Fprintln(vm.Stdout, strings.Join(parts, " "))
		return vm.ReturnNone()
	})
	vm.Bind(mod, "len(x)", func(vm *VM, argc int, argv []Value) bool {
		return vm.Len(argv[0])
	})
	vm.Bind(mod, "repr(x)", func(vm *VM, argc int, argv []Value) bool {
		return vm.Repr(argv[0])
	})
	vm.Bind(mod, "hash(x)", func(vm *VM, argc int, argv []Value) bool {
		h, ok := vm.Hash(argv[0])
		if !ok {
			return false
		}
		return vm.Return(NewInt(h))
	})
	vm.Bind(mod, "id(x)", func(vm *VM, argc int, argv []Value) bool {
		if argv[0].isPtr {
			return vm.Return(NewInt(int64(argv[0].Handle())))
		}
		return vm.Return(NewInt(int64(argv[0].bits)))
	})
	vm.Bind(mod, "abs(x)", func(vm *VM, argc int, argv []Value) bool {
		switch v := argv[0]; v.typ {
		case TpInt:
			if v.Int() < 0 {
				return vm.Return(NewInt(-v.Int()))
			}
			return vm.Return(v)
		case TpFloat:
			return vm.Return(NewFloat(math.Abs(v.Float())))
		}
		return vm.RaiseType(TpTypeError, "bad operand type for abs(): '%t'", argv[0].typ)
	})
	vm.Bind(mod, "isinstance(obj, cls)", func(vm *VM, argc int, argv []Value) bool {
		if !argv[1].IsType() {
			return vm.RaiseType(TpTypeError, "isinstance() arg 2 must be a type")
		}
		return vm.Return(NewBool(vm.IsInstance(argv[0], argv[1].AsType())))
	})
	vm.Bind(mod, "issubclass(derived, base)", func(vm *VM, argc int, argv []Value) bool {
		if !argv[0].IsType() || !argv[1].IsType() {
			return vm.RaiseType(TpTypeError, "issubclass() arguments must be types")
		}
		return vm.Return(NewBool(vm.IsSubclass(argv[0].AsType(), argv[1].AsType())))
	})
	vm.Bind(mod, "callable(x)", func(vm *VM, argc int, argv []Value) bool {
		switch argv[0].typ {
		case TpFunction, TpNativeFunc, TpBoundMethod, TpType:
			return vm.Return(True)
		}
		return vm.Return(NewBool(vm.TpFindMagic(argv[0].typ, MagicCall) != nil))
	})
	// Raw window: getattr must see whether a default was actually passed.
	vm.BindFunc(mod, "getattr", func(vm *VM, argc int, argv []Value) bool {
		if !vm.checkArgcRange(argc, 2, 3) {
			return false
		}
		if !argv[1].IsStr() {
			return vm.RaiseType(TpTypeError, "attribute name must be str, not '%t'", argv[1].typ)
		}
		name := NameFor(vm.StrContent(argv[1]))
		if vm.GetAttr(argv[0], name) {
			return true
		}
		if argc == 3 && vm.MatchExc(TpAttributeError) {
			vm.ClearExc(-1)
			return vm.Return(argv[2])
		}
		return false
	})
	vm.Bind(mod, "setattr(obj, name, value)", func(vm *VM, argc int, argv []Value) bool {
		if !argv[1].IsStr() {
			return vm.RaiseType(TpTypeError, "attribute name must be str, not '%t'", argv[1].typ)
		}
		if !vm.SetAttr(argv[0], NameFor(vm.StrContent(argv[1])), argv[2]) {
			return false
		}
		return vm.ReturnNone()
	})
	vm.Bind(mod, "hasattr(obj, name)", func(vm *VM, argc int, argv []Value) bool {
		if !argv[1].IsStr() {
			return vm.RaiseType(TpTypeError, "attribute name must be str, not '%t'", argv[1].typ)
		}
		if vm.GetAttr(argv[0], NameFor(vm.StrContent(argv[1]))) {
			return vm.Return(True)
		}
		if vm.MatchExc(TpAttributeError) {
			vm.ClearExc(-1)
			return vm.Return(False)
		}
		return false
	})
	vm.Bind(mod, "delattr(obj, name)", func(vm *VM, argc int, argv []Value) bool {
		if !argv[1].IsStr() {
			return vm.RaiseType(TpTypeError, "attribute name must be str, not '%t'", argv[1].typ)
		}
		if !vm.DelAttr(argv[0], NameFor(vm.StrContent(argv[1]))) {
			return false
		}
		return vm.ReturnNone()
	})
	vm.Bind(mod, "iter(x)", func(vm *VM, argc int, argv []Value) bool {
		return vm.Iter(argv[0])
	})
	vm.Bind(mod, "next(it)", func(vm *VM, argc int, argv []Value) bool {
		switch vm.Next(argv[0]) {
		case -1:
			return false
		case 0:
			return vm.StopIteration()
		}
		return true
	})
	vm.Bind(mod, "sum(iterable)", func(vm *VM, argc int, argv []Value) bool {
		if !vm.materializeList(argv[0]) {
			return false
		}
		isum, fsum := int64(0), 0.0
		isInt := true
		for _, it := range vm.ListItems(vm.retval) {
			switch it.typ {
			case TpInt:
				isum += it.Int()
				fsum += float64(it.Int())
			case TpFloat:
				isInt = false
				fsum += it.Float()
			default:
				return vm.RaiseType(TpTypeError, "sum() expects numbers, got '%t'", it.typ)
			}
		}
		if isInt {
			return vm.Return(NewInt(isum))
		}
		return vm.Return(NewFloat(fsum))
	})
	vm.Bind(mod, "min(a, b)", func(vm *VM, argc int, argv []Value) bool {
		switch vm.Less(argv[1], argv[0]) {
		case -1:
			return false
		case 1:
			return vm.Return(argv[1])
		}
		return vm.Return(argv[0])
	})
	vm.Bind(mod, "max(a, b)", func(vm *VM, argc int, argv []Value) bool {
		switch vm.Less(argv[0], argv[1]) {
		case -1:
			return false
		case 1:
			return vm.Return(argv[1])
		}
		return vm.Return(argv[0])
	})
	vm.Bind(mod, "divmod(a, b)", func(vm *VM, argc int, argv []Value) bool {
		if !argv[0].IsInt() || !argv[1].IsInt() {
			return vm.RaiseType(TpTypeError, "divmod() expects ints")
		}
		if argv[1].Int() == 0 {
			return vm.RaiseType(TpZeroDivisionError, "integer division or modulo by zero")
		}
		q := pyFloorDiv(argv[0].Int(), argv[1].Int())
		r := pyMod(argv[0].Int(), argv[1].Int())
		return vm.Return(vm.TupleOf(NewInt(q), NewInt(r)))
	})
}
