package vm

import "math"

// ---------------------------------------------------------------------------
// Truth, equality, ordering
// ---------------------------------------------------------------------------

// Bool evaluates truthiness: 1 true, 0 false, -1 with an exception
// pending. Builtin types resolve without dispatch; everything else
// consults __len__ and defaults to true.
func (vm *VM) Bool(v Value) int {
	switch v.typ {
	case TpNoneType:
		return 0
	case TpBool:
		if v.Bool() {
			return 1
		}
		return 0
	case TpInt:
		if v.Int() != 0 {
			return 1
		}
		return 0
	case TpFloat:
		if v.Float() != 0 {
			return 1
		}
		return 0
	case TpStr:
		if len(vm.StrContent(v)) > 0 {
			return 1
		}
		return 0
	case TpList:
		if vm.ListLen(v) > 0 {
			return 1
		}
		return 0
	case TpTuple:
		if vm.heap.Get(v.Handle()).NumSlots() > 0 {
			return 1
		}
		return 0
	case TpDict:
		if vm.DictLen(v) > 0 {
			return 1
		}
		return 0
	}
	if m := vm.TpFindMagic(v.typ, MagicLen); m != nil {
		if !vm.Call(*m, v, nil) {
			return -1
		}
		if !vm.retval.IsInt() {
			vm.RaiseType(TpTypeError, "__len__ returned non-int '%t'", vm.retval.typ)
			return -1
		}
		if vm.retval.Int() != 0 {
			return 1
		}
		return 0
	}
	return 1
}

// Equal compares two values: 1 equal, 0 not, -1 with an exception
// pending. Numerics (bool included) compare by value, NaN unequal to
// itself; identity short-circuits everything else; str and tuple
// comparisons are inline; user types run __eq__ with the reflected
// fallback, and two values with no opinion are unequal.
func (vm *VM) Equal(a, b Value) int {
	if isNumeric(a) && isNumeric(b) {
		if a.IsFloat() || b.IsFloat() {
			if numericValue(a) == numericValue(b) {
				return 1
			}
			return 0
		}
		if intValue(a) == intValue(b) {
			return 1
		}
		return 0
	}
	if a.Identical(b) {
		return 1
	}
	switch {
	case a.IsStr() && b.IsStr():
		if vm.StrContent(a) == vm.StrContent(b) {
			return 1
		}
		return 0
	case a.typ == TpTuple && b.typ == TpTuple:
		return vm.tupleEqual(a, b)
	}

	if m := vm.TpFindMagic(a.typ, MagicEq); m != nil {
		if !vm.Call(*m, a, []Value{b}) {
			return -1
		}
		if !vm.retval.Identical(NotImplemented) {
			return vm.Bool(vm.retval)
		}
	}
	if m := vm.TpFindMagic(b.typ, MagicEq); m != nil {
		if !vm.Call(*m, b, []Value{a}) {
			return -1
		}
		if !vm.retval.Identical(NotImplemented) {
			return vm.Bool(vm.retval)
		}
	}
	return 0
}

func (vm *VM) tupleEqual(a, b Value) int {
	oa, ob := vm.heap.Get(a.Handle()), vm.heap.Get(b.Handle())
	if oa.NumSlots() != ob.NumSlots() {
		return 0
	}
	for i := 0; i < oa.NumSlots(); i++ {
		r := vm.Equal(oa.Slot(i), ob.Slot(i))
		if r != 1 {
			return r
		}
	}
	return 1
}

// Less orders two values: 1, 0, or -1 with an exception pending. Runs
// __lt__, then the reflected __gt__, then raises TypeError.
func (vm *VM) Less(a, b Value) int {
	switch {
	case isNumeric(a) && isNumeric(b):
		if !a.IsFloat() && !b.IsFloat() {
			if intValue(a) < intValue(b) {
				return 1
			}
			return 0
		}
		if numericValue(a) < numericValue(b) {
			return 1
		}
		return 0
	case a.IsStr() && b.IsStr():
		if vm.StrContent(a) < vm.StrContent(b) {
			return 1
		}
		return 0
	}

	if m := vm.TpFindMagic(a.typ, MagicLt); m != nil {
		if !vm.Call(*m, a, []Value{b}) {
			return -1
		}
		if !vm.retval.Identical(NotImplemented) {
			return vm.Bool(vm.retval)
		}
	}
	if m := vm.TpFindMagic(b.typ, MagicGt); m != nil {
		if !vm.Call(*m, b, []Value{a}) {
			return -1
		}
		if !vm.retval.Identical(NotImplemented) {
			return vm.Bool(vm.retval)
		}
	}
	vm.RaiseType(TpTypeError, "'<' not supported between instances of '%t' and '%t'", a.typ, b.typ)
	return -1
}

func isNumeric(v Value) bool { return v.IsInt() || v.IsFloat() || v.IsBool() }

func intValue(v Value) int64 {
	if v.IsBool() {
		if v.Bool() {
			return 1
		}
		return 0
	}
	return v.Int()
}

func numericValue(v Value) float64 {
	if v.IsFloat() {
		return v.Float()
	}
	return float64(intValue(v))
}

// ---------------------------------------------------------------------------
// Binary dispatch
// ---------------------------------------------------------------------------

// reflectedOp maps an arithmetic magic to its reflected counterpart, or
// 0 when the operation has none.
func reflectedOp(op Name) Name {
	switch op {
	case MagicAdd, MagicSub, MagicMul, MagicTruediv, MagicFloordiv, MagicMod, MagicPow:
		return op + 1
	}
	return 0
}

func opSymbol(op Name) string {
	switch op {
	case MagicAdd:
		return "+"
	case MagicSub:
		return "-"
	case MagicMul:
		return "*"
	case MagicTruediv:
		return "/"
	case MagicFloordiv:
		return "//"
	case MagicMod:
		return "%"
	case MagicPow:
		return "**"
	case MagicLshift:
		return "<<"
	case MagicRshift:
		return ">>"
	case MagicAnd:
		return "&"
	case MagicOr:
		return "|"
	case MagicXor:
		return "^"
	case MagicMatmul:
		return "@"
	}
	return NameStr(op)
}

// BinaryOp dispatches lhs <op> rhs through the magic bank: lhs's slot
// first, the reflected slot on rhs when lhs abstains with
// NotImplemented, TypeError when both abstain. Result in retval.
func (vm *VM) BinaryOp(op Name, lhs, rhs Value) bool {
	if m := vm.TpFindMagic(lhs.typ, op); m != nil {
		if !vm.Call(*m, lhs, []Value{rhs}) {
			return false
		}
		if !vm.retval.Identical(NotImplemented) {
			return true
		}
	}
	if rop := reflectedOp(op); rop != 0 {
		if m := vm.TpFindMagic(rhs.typ, rop); m != nil {
			if !vm.Call(*m, rhs, []Value{lhs}) {
				return false
			}
			if !vm.retval.Identical(NotImplemented) {
				return true
			}
		}
	}
	return vm.RaiseType(TpTypeError, "unsupported operand type(s) for %s: '%t' and '%t'",
		opSymbol(op), lhs.typ, rhs.typ)
}

// UnaryOp dispatches <op> v (__neg__, __invert__) through the magic
// bank.
func (vm *VM) UnaryOp(op Name, v Value) bool {
	if m := vm.TpFindMagic(v.typ, op); m != nil {
		return vm.Call(*m, v, nil)
	}
	return vm.RaiseType(TpTypeError, "bad operand type for unary %n: '%t'", op, v.typ)
}

// ---------------------------------------------------------------------------
// Hashing
// ---------------------------------------------------------------------------

// Hash computes a value's hash, or reports false with an exception
// pending. Equal numbers hash equal across int and float. Mutable
// builtin containers are unhashable; other heap objects default to
// handle identity unless __hash__ overrides.
func (vm *VM) Hash(v Value) (int64, bool) {
	switch v.typ {
	case TpInt:
		return v.Int(), true
	case TpBool:
		if v.Bool() {
			return 1, true
		}
		return 0, true
	case TpFloat:
		f := v.Float()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
		return int64(math.Float64bits(f)), true
	case TpStr:
		return strHash(vm.StrContent(v)), true
	case TpNoneType, TpNotImplementedType, TpEllipsis, TpType:
		return int64(v.bits) ^ int64(v.typ)<<32, true
	case TpTuple:
		obj := vm.heap.Get(v.Handle())
		h := int64(1000003)
		for i := 0; i < obj.NumSlots(); i++ {
			ih, ok := vm.Hash(obj.Slot(i))
			if !ok {
				return 0, false
			}
			h = h*31 + ih
		}
		return h, true
	case TpList, TpDict:
		vm.RaiseType(TpTypeError, "unhashable type: '%t'", v.typ)
		return 0, false
	}

	if m := vm.TpFindMagic(v.typ, MagicHash); m != nil {
		if !vm.Call(*m, v, nil) {
			return 0, false
		}
		if !vm.retval.IsInt() {
			vm.RaiseType(TpTypeError, "__hash__ returned non-int '%t'", vm.retval.typ)
			return 0, false
		}
		return vm.retval.Int(), true
	}
	if v.isPtr {
		return int64(v.Handle()), true
	}
	return int64(v.bits), true
}

// strHash is FNV-1a over the bytes, stable within a process.
func strHash(s string) int64 {
	h := uint64(14695981039346656037)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return int64(h)
}

// ---------------------------------------------------------------------------
// Iteration
// ---------------------------------------------------------------------------

// Iter produces an iterator over v in retval: builtin sequences get
// native iterator objects, user types run __iter__.
func (vm *VM) Iter(v Value) bool {
	switch v.typ {
	case TpStr:
		vm.retval = vm.NewObjectUD(TpStrIterator, 0, &strIterState{s: vm.StrContent(v)}, 0)
		return true
	case TpList, TpTuple:
		vm.retval = vm.NewObjectUD(TpArrayIterator, 0, &arrayIterState{src: v}, 0)
		return true
	case TpRange:
		obj := vm.heap.Get(v.Handle())
		vm.retval = vm.NewObjectUD(TpRangeIterator, 0, &rangeIterState{
			cur:  obj.Slot(0).Int(),
			stop: obj.Slot(1).Int(),
			step: obj.Slot(2).Int(),
		}, 0)
		return true
	case TpDict:
		keys := make([]Value, 0, vm.DictLen(v))
		vm.DictApply(v, func(k, _ Value) bool {
			keys = append(keys, k)
			return true
		})
		tmp := vm.PushTmp()
		if tmp == nil {
			return false
		}
		*tmp = vm.NewList(keys...)
		vm.retval = vm.NewObjectUD(TpArrayIterator, 0, &arrayIterState{src: *tmp}, 0)
		vm.Pop()
		return true
	case TpStrIterator, TpArrayIterator, TpRangeIterator:
		vm.retval = v
		return true
	}
	if m := vm.TpFindMagic(v.typ, MagicIter); m != nil {
		return vm.Call(*m, v, nil)
	}
	return vm.RaiseType(TpTypeError, "'%t' object is not iterable", v.typ)
}

// Next advances an iterator: 1 with the item in retval, 0 when
// exhausted, -1 with an exception pending. A StopIteration raised by a
// user __next__ is consumed and folded into 0.
func (vm *VM) Next(iter Value) int {
	switch iter.typ {
	case TpStrIterator:
		it := vm.heap.Get(iter.Handle()).Userdata().(*strIterState)
		if it.i >= len(it.s) {
			return 0
		}
		// byte-wise, matching str indexing
		vm.retval = vm.NewStr(it.s[it.i : it.i+1])
		it.i++
		return 1
	case TpArrayIterator:
		it := vm.heap.Get(iter.Handle()).Userdata().(*arrayIterState)
		var n int
		switch it.src.typ {
		case TpTuple:
			n = vm.heap.Get(it.src.Handle()).NumSlots()
		default:
			n = vm.ListLen(it.src)
		}
		if it.i >= n {
			return 0
		}
		if it.src.typ == TpTuple {
			vm.retval = vm.heap.Get(it.src.Handle()).Slot(it.i)
		} else {
			vm.retval = vm.ListGet(it.src, it.i)
		}
		it.i++
		return 1
	case TpRangeIterator:
		it := vm.heap.Get(iter.Handle()).Userdata().(*rangeIterState)
		if (it.step > 0 && it.cur >= it.stop) || (it.step < 0 && it.cur <= it.stop) {
			return 0
		}
		vm.retval = NewInt(it.cur)
		it.cur += it.step
		return 1
	}

	m := vm.TpFindMagic(iter.typ, MagicNext)
	if m == nil {
		vm.RaiseType(TpTypeError, "'%t' object is not an iterator", iter.typ)
		return -1
	}
	if vm.Call(*m, iter, nil) {
		return 1
	}
	if vm.MatchExc(TpStopIteration) {
		vm.ClearExc(-1)
		return 0
	}
	return -1
}

// ---------------------------------------------------------------------------
// String conversion
// ---------------------------------------------------------------------------

// Str renders v for display into retval, via __str__ then __repr__.
func (vm *VM) Str(v Value) bool {
	if v.typ == TpStr {
		vm.retval = v
		return true
	}
	if m := vm.TpFindMagic(v.typ, MagicStr); m != nil {
		if !vm.Call(*m, v, nil) {
			return false
		}
		return vm.checkStrResult("__str__")
	}
	return vm.Repr(v)
}

// Repr renders v unambiguously into retval, via __repr__ with a
// generic fallback.
func (vm *VM) Repr(v Value) bool {
	if m := vm.TpFindMagic(v.typ, MagicRepr); m != nil {
		if !vm.Call(*m, v, nil) {
			return false
		}
		return vm.checkStrResult("__repr__")
	}
	if !v.isPtr {
		vm.retval = vm.NewStr(vm.safeRepr(v))
		return true
	}
	vm.retval = vm.NewStr(vm.formatMessage("<%t object at %p>", v.typ, v.Handle()))
	return true
}

func (vm *VM) checkStrResult(which string) bool {
	if !vm.retval.IsStr() {
		return vm.RaiseType(TpTypeError, "%s returned non-str '%t'", which, vm.retval.typ)
	}
	return true
}

// Len puts len(v) in retval as an int.
func (vm *VM) Len(v Value) bool {
	switch v.typ {
	case TpStr:
		vm.retval = NewInt(int64(len(vm.StrContent(v))))
		return true
	case TpBytes:
		vm.retval = NewInt(int64(len(vm.BytesContent(v))))
		return true
	case TpList:
		vm.retval = NewInt(int64(vm.ListLen(v)))
		return true
	case TpTuple:
		vm.retval = NewInt(int64(vm.heap.Get(v.Handle()).NumSlots()))
		return true
	case TpDict:
		vm.retval = NewInt(int64(vm.DictLen(v)))
		return true
	}
	if m := vm.TpFindMagic(v.typ, MagicLen); m != nil {
		return vm.Call(*m, v, nil)
	}
	return vm.RaiseType(TpTypeError, "'%t' object has no len()", v.typ)
}

// ---------------------------------------------------------------------------
// Subscription
// ---------------------------------------------------------------------------

// GetItem evaluates self[key] into retval.
func (vm *VM) GetItem(self, key Value) bool {
	if m := vm.TpFindMagic(self.typ, MagicGetitem); m != nil {
		return vm.Call(*m, self, []Value{key})
	}
	return vm.RaiseType(TpTypeError, "'%t' object is not subscriptable", self.typ)
}

// SetItem performs self[key] = val.
func (vm *VM) SetItem(self, key, val Value) bool {
	if m := vm.TpFindMagic(self.typ, MagicSetitem); m != nil {
		return vm.Call(*m, self, []Value{key, val})
	}
	return vm.RaiseType(TpTypeError, "'%t' object does not support item assignment", self.typ)
}

// DelItem performs del self[key].
func (vm *VM) DelItem(self, key Value) bool {
	if m := vm.TpFindMagic(self.typ, MagicDelitem); m != nil {
		return vm.Call(*m, self, []Value{key})
	}
	return vm.RaiseType(TpTypeError, "'%t' object does not support item deletion", self.typ)
}

// Contains evaluates key in self: 1, 0, or -1 with an exception
// pending. Without __contains__ it falls back to linear iteration.
func (vm *VM) Contains(self, key Value) int {
	if m := vm.TpFindMagic(self.typ, MagicContains); m != nil {
		if !vm.Call(*m, self, []Value{key}) {
			return -1
		}
		return vm.Bool(vm.retval)
	}
	if !vm.Iter(self) {
		return -1
	}
	tmp := vm.PushTmp()
	if tmp == nil {
		return -1
	}
	*tmp = vm.retval
	defer vm.Pop()
	for {
		switch vm.Next(*tmp) {
		case -1:
			return -1
		case 0:
			return 0
		}
		r := vm.Equal(vm.retval, key)
		if r != 0 {
			return r
		}
	}
}
