package vm

// Heap-backed value creation. Every constructor here returns a value
// wrapping a freshly allocated handle; the heap alone owns the object.

// NewStr creates a str value.
func (vm *VM) NewStr(s string) Value {
	h := vm.heap.alloc(TpStr, 0, s, len(s))
	return newHandleValue(TpStr, h)
}

// StrContent returns the Go string behind a str value.
// Panics if v is not a str.
func (vm *VM) StrContent(v Value) string {
	if v.typ != TpStr {
		panic("vm: StrContent: not a str")
	}
	return vm.heap.Get(v.Handle()).Userdata().(string)
}

// NewBytes creates a bytes value with a copy of b.
func (vm *VM) NewBytes(b []byte) Value {
	buf := make([]byte, len(b))
	copy(buf, b)
	h := vm.heap.alloc(TpBytes, 0, buf, len(buf))
	return newHandleValue(TpBytes, h)
}

// NewBytesUninit creates a bytes value with n uninitialized bytes and
// returns the buffer for the caller to fill.
func (vm *VM) NewBytesUninit(n int) (Value, []byte) {
	buf := make([]byte, n)
	h := vm.heap.alloc(TpBytes, 0, buf, n)
	return newHandleValue(TpBytes, h), buf
}

// BytesContent returns the byte buffer behind a bytes value.
func (vm *VM) BytesContent(v Value) []byte {
	if v.typ != TpBytes {
		panic("vm: BytesContent: not bytes")
	}
	return vm.heap.Get(v.Handle()).Bytes()
}

// NewTuple creates a tuple with n slots initialized to the nil sentinel.
// The caller must fill every slot before the values can be observed by
// a collection; pair with Heap.Pause while building if intermediate
// allocation happens.
func (vm *VM) NewTuple(n int) Value {
	h := vm.heap.Alloc(TpTuple, n, 0)
	return newHandleValue(TpTuple, h)
}

// TupleOf creates a tuple from the given items.
func (vm *VM) TupleOf(items ...Value) Value {
	vm.heap.Pause()
	defer vm.heap.Resume()
	t := vm.NewTuple(len(items))
	obj := vm.heap.Get(t.Handle())
	for i, it := range items {
		obj.SetSlot(i, it)
	}
	return t
}

// NewObject creates an object of a (typically user-defined) type.
// slotCount -1 creates an instance dict instead of slots; extraBytes > 0
// allocates a zeroed byte blob returned for the caller to fill.
func (vm *VM) NewObject(t Type, slotCount, extraBytes int) (Value, []byte) {
	h := vm.heap.Alloc(t, slotCount, extraBytes)
	return newHandleValue(t, h), vm.heap.Get(h).Bytes()
}

// NewObjectUD creates an object of type t carrying an arbitrary host
// payload as userdata. udSize is the byte volume accounted to the GC
// threshold.
func (vm *VM) NewObjectUD(t Type, slotCount int, ud any, udSize int) Value {
	h := vm.heap.alloc(t, slotCount, ud, udSize)
	return newHandleValue(t, h)
}

// Userdata returns the host payload of an object value, or nil.
func (vm *VM) Userdata(v Value) any {
	if !v.isPtr {
		return nil
	}
	obj := vm.heap.Get(v.Handle())
	if obj == nil {
		return nil
	}
	return obj.Userdata()
}

// NewBoundMethod creates a boundmethod pairing a receiver with a
// callable. Invoking it reinserts the receiver as the implicit first
// argument.
func (vm *VM) NewBoundMethod(self, fn Value) Value {
	vm.heap.Pause()
	defer vm.heap.Resume()
	h := vm.heap.Alloc(TpBoundMethod, 2, 0)
	obj := vm.heap.Get(h)
	obj.SetSlot(0, self)
	obj.SetSlot(1, fn)
	return newHandleValue(TpBoundMethod, h)
}

// NewSlice creates a slice object from start, stop and step.
func (vm *VM) NewSlice(start, stop, step Value) Value {
	vm.heap.Pause()
	defer vm.heap.Resume()
	h := vm.heap.Alloc(TpSlice, 3, 0)
	obj := vm.heap.Get(h)
	obj.SetSlot(0, start)
	obj.SetSlot(1, stop)
	obj.SetSlot(2, step)
	return newHandleValue(TpSlice, h)
}

// ---------------------------------------------------------------------------
// Slot and dict access through values
// ---------------------------------------------------------------------------

// GetSlot returns slot i of an object value. The object must have slots
// and i must be in range.
func (vm *VM) GetSlot(v Value, i int) Value {
	return vm.heap.Get(v.Handle()).Slot(i)
}

// SetSlot stores val into slot i of an object value.
func (vm *VM) SetSlot(v Value, i int, val Value) {
	vm.heap.Get(v.Handle()).SetSlot(i, val)
}

// GetDict looks up name in an object value's instance dict.
func (vm *VM) GetDict(v Value, name Name) (Value, bool) {
	if !v.isPtr {
		return Nil, false
	}
	obj := vm.heap.Get(v.Handle())
	if obj == nil {
		return Nil, false
	}
	return obj.DictGet(name)
}

// SetDict stores a value in an object value's instance dict.
func (vm *VM) SetDict(v Value, name Name, val Value) {
	vm.heap.Get(v.Handle()).DictSet(name, val)
}

// DelDict removes name from an object value's instance dict, reporting
// whether it was present.
func (vm *VM) DelDict(v Value, name Name) bool {
	if !v.isPtr {
		return false
	}
	obj := vm.heap.Get(v.Handle())
	if obj == nil {
		return false
	}
	return obj.DictDel(name)
}

// ApplyDict applies fn to every entry of an object value's instance
// dict, stopping early if fn returns false. Returns true if fn
// succeeded for all entries.
func (vm *VM) ApplyDict(v Value, fn func(name Name, val Value) bool) bool {
	obj := vm.heap.Get(v.Handle())
	if obj == nil {
		return true
	}
	return obj.DictEach(fn)
}
