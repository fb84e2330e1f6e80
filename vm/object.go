package vm

// Handle is a generation-checked reference to a heap object: the low 32
// bits index the heap arena, the high 32 bits carry the cell generation.
// A handle goes stale when its object is reclaimed; dereferencing a stale
// handle yields nil rather than an aliased successor. Handle 0 is invalid.
type Handle uint64

func makeHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index))
}

func (h Handle) index() uint32 { return uint32(h) }
func (h Handle) gen() uint32   { return uint32(h >> 32) }

// IsValid reports whether h could name a live object (it may still be
// stale; only the owning heap can tell).
func (h Handle) IsValid() bool { return h != 0 }

// ---------------------------------------------------------------------------
// Object
// ---------------------------------------------------------------------------

// Object is a heap-allocated record: a type tag, a GC mark, and a payload
// of value slots (count fixed at creation), a dynamic name→value dict, or
// host userdata. The predefined super/star_wrapper layouts pair one slot
// with scalar userdata, so slots and userdata may coexist; a dict always
// excludes slots.
type Object struct {
	typ  Type
	mark uint32 // heap epoch at which this object was last marked

	slots []Value
	dict  map[Name]Value
	ud    any

	size int // accounted bytes for the GC threshold
}

// valueContainer is implemented by userdata payloads that hold values the
// collector must trace (list storage, value-keyed dicts, iterators).
type valueContainer interface {
	traverse(fn func(Value))
}

// TypeId returns the object's type tag.
func (o *Object) TypeId() Type { return o.typ }

// ---------------------------------------------------------------------------
// Slot access
// ---------------------------------------------------------------------------

// NumSlots returns the slot count fixed at creation (0 for dict-payload
// and plain userdata objects).
func (o *Object) NumSlots() int { return len(o.slots) }

// Slot returns the value at slot index i.
// Panics if the index is out of range.
func (o *Object) Slot(i int) Value {
	return o.slots[i]
}

// SetSlot stores v at slot index i.
// Panics if the index is out of range.
func (o *Object) SetSlot(i int, v Value) {
	o.slots[i] = v
}

// ---------------------------------------------------------------------------
// Dict access
// ---------------------------------------------------------------------------

// HasDict reports whether the object carries an instance dict.
func (o *Object) HasDict() bool { return o.dict != nil }

// DictGet looks up name in the instance dict.
func (o *Object) DictGet(name Name) (Value, bool) {
	if o.dict == nil {
		return Nil, false
	}
	v, ok := o.dict[name]
	return v, ok
}

// DictSet stores a value in the instance dict.
// Panics if the object has no dict.
func (o *Object) DictSet(name Name, v Value) {
	if o.dict == nil {
		panic("Object.DictSet: object has no dict")
	}
	o.dict[name] = v
}

// DictDel removes name from the instance dict, reporting whether it was
// present.
func (o *Object) DictDel(name Name) bool {
	if o.dict == nil {
		return false
	}
	if _, ok := o.dict[name]; !ok {
		return false
	}
	delete(o.dict, name)
	return true
}

// DictEach applies fn to every entry in the instance dict until fn
// returns false. Iteration order is unspecified.
func (o *Object) DictEach(fn func(name Name, v Value) bool) bool {
	for n, v := range o.dict {
		if !fn(n, v) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Userdata access
// ---------------------------------------------------------------------------

// Userdata returns the object's host payload (nil if none).
func (o *Object) Userdata() any { return o.ud }

// SetUserdata replaces the object's host payload.
func (o *Object) SetUserdata(ud any) { o.ud = ud }

// Bytes returns the object's payload as a byte blob, or nil if the
// payload is not bytes.
func (o *Object) Bytes() []byte {
	b, _ := o.ud.([]byte)
	return b
}

// forEachRef applies fn to every value the object references. Used by
// the mark phase.
func (o *Object) forEachRef(fn func(Value)) {
	for _, v := range o.slots {
		fn(v)
	}
	for _, v := range o.dict {
		fn(v)
	}
	if c, ok := o.ud.(valueContainer); ok {
		c.traverse(fn)
	}
}
