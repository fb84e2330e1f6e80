package vm

// ---------------------------------------------------------------------------
// List storage
// ---------------------------------------------------------------------------

// listData is the growable backing store of a list object.
type listData struct {
	items []Value
}

func (l *listData) traverse(fn func(Value)) {
	for _, v := range l.items {
		fn(v)
	}
}

// NewList creates a list from the given items.
func (vm *VM) NewList(items ...Value) Value {
	data := &listData{items: make([]Value, len(items))}
	copy(data.items, items)
	h := vm.heap.alloc(TpList, 0, data, len(items)*slotStride)
	return newHandleValue(TpList, h)
}

func (vm *VM) listData(v Value) *listData {
	if v.typ != TpList {
		panic("vm: not a list")
	}
	return vm.heap.Get(v.Handle()).Userdata().(*listData)
}

// ListLen returns the number of items in a list.
func (vm *VM) ListLen(v Value) int { return len(vm.listData(v).items) }

// ListGet returns item i of a list. i must be in range.
func (vm *VM) ListGet(v Value, i int) Value { return vm.listData(v).items[i] }

// ListSet replaces item i of a list.
func (vm *VM) ListSet(v Value, i int, val Value) { vm.listData(v).items[i] = val }

// ListAppend appends a value to a list.
func (vm *VM) ListAppend(v Value, val Value) {
	d := vm.listData(v)
	d.items = append(d.items, val)
}

// ListInsert inserts a value at index i, shifting later items right.
func (vm *VM) ListInsert(v Value, i int, val Value) {
	d := vm.listData(v)
	d.items = append(d.items, Nil)
	copy(d.items[i+1:], d.items[i:])
	d.items[i] = val
}

// ListDel removes item i, shifting later items left.
func (vm *VM) ListDel(v Value, i int) {
	d := vm.listData(v)
	d.items = append(d.items[:i], d.items[i+1:]...)
}

// ListSwap exchanges items i and j.
func (vm *VM) ListSwap(v Value, i, j int) {
	d := vm.listData(v)
	d.items[i], d.items[j] = d.items[j], d.items[i]
}

// ListClear removes all items.
func (vm *VM) ListClear(v Value) {
	d := vm.listData(v)
	d.items = d.items[:0]
}

// ListItems returns the list's backing slice. The slice invalidates
// when the list is modified.
func (vm *VM) ListItems(v Value) []Value { return vm.listData(v).items }

// ---------------------------------------------------------------------------
// Dict storage
// ---------------------------------------------------------------------------

// dictData is the value-keyed hash storage of a dict object. Entries
// keep insertion order; buckets map hash codes to entry indexes.
// Deleted entries are tombstoned in place.
type dictData struct {
	entries []dictEntry
	buckets map[int64][]int32
	length  int
}

type dictEntry struct {
	key  Value
	val  Value
	dead bool
}

func (d *dictData) traverse(fn func(Value)) {
	for _, e := range d.entries {
		if !e.dead {
			fn(e.key)
			fn(e.val)
		}
	}
}

// NewDict creates an empty dict.
func (vm *VM) NewDict() Value {
	data := &dictData{buckets: make(map[int64][]int32)}
	h := vm.heap.alloc(TpDict, 0, data, dictOverhead)
	return newHandleValue(TpDict, h)
}

func (vm *VM) dictData(v Value) *dictData {
	if v.typ != TpDict {
		panic("vm: not a dict")
	}
	return vm.heap.Get(v.Handle()).Userdata().(*dictData)
}

// dictFind locates key: entry index or -1, with tri-state error flag.
func (vm *VM) dictFind(d *dictData, key Value) (int32, bool) {
	hash, ok := vm.Hash(key)
	if !ok {
		return -1, false
	}
	for _, idx := range d.buckets[hash] {
		e := &d.entries[idx]
		if e.dead {
			continue
		}
		eq := vm.Equal(e.key, key)
		if eq < 0 {
			return -1, false
		}
		if eq == 1 {
			return idx, true
		}
	}
	return -1, true
}

// DictGetItem looks up key. Returns 1 with the value in retval, 0 if
// absent, -1 with an exception pending (unhashable key or failing
// equality hook).
func (vm *VM) DictGetItem(v Value, key Value) int {
	d := vm.dictData(v)
	idx, ok := vm.dictFind(d, key)
	if !ok {
		return -1
	}
	if idx < 0 {
		return 0
	}
	vm.retval = d.entries[idx].val
	return 1
}

// DictSetItem inserts or replaces key. Returns false with an exception
// pending on an unhashable key.
func (vm *VM) DictSetItem(v Value, key, val Value) bool {
	d := vm.dictData(v)
	idx, ok := vm.dictFind(d, key)
	if !ok {
		return false
	}
	if idx >= 0 {
		d.entries[idx].val = val
		return true
	}
	hash, _ := vm.Hash(key)
	d.entries = append(d.entries, dictEntry{key: key, val: val})
	d.buckets[hash] = append(d.buckets[hash], int32(len(d.entries)-1))
	d.length++
	return true
}

// DictDelItem removes key. Returns 1 if deleted, 0 if absent, -1 with
// an exception pending.
func (vm *VM) DictDelItem(v Value, key Value) int {
	d := vm.dictData(v)
	idx, ok := vm.dictFind(d, key)
	if !ok {
		return -1
	}
	if idx < 0 {
		return 0
	}
	d.entries[idx].dead = true
	d.length--
	return 1
}

// DictLen returns the number of live entries.
func (vm *VM) DictLen(v Value) int { return vm.dictData(v).length }

// DictApply applies fn to every live entry in insertion order, stopping
// early if fn returns false.
func (vm *VM) DictApply(v Value, fn func(key, val Value) bool) bool {
	d := vm.dictData(v)
	for i := range d.entries {
		if d.entries[i].dead {
			continue
		}
		if !fn(d.entries[i].key, d.entries[i].val) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Iterator storage
// ---------------------------------------------------------------------------

// strIterState iterates the bytes of a str.
type strIterState struct {
	s string
	i int
}

// arrayIterState iterates a tuple's slots or a list's items.
type arrayIterState struct {
	src Value
	i   int
}

func (it *arrayIterState) traverse(fn func(Value)) { fn(it.src) }

// rangeIterState iterates a numeric range.
type rangeIterState struct {
	cur, stop, step int64
}
