package vm

// Type is a dense type id. Id 0 is reserved/invalid; ids 1..TpKeyError
// are predefined at initialization in a fixed, ABI-stable order that
// external consumers hardcode. User types are allocated monotonically
// above the predefined range and never reused within one instance.
type Type int16

// Predefined type ids, in the exact initialization order.
const (
	TpObject Type = iota + 1
	TpType
	TpInt
	TpFloat
	TpBool
	TpStr
	TpStrIterator
	TpList
	TpTuple
	TpArrayIterator
	TpSlice // 3 slots (start, stop, step)
	TpRange
	TpRangeIterator
	TpModule
	TpFunction
	TpNativeFunc
	TpBoundMethod // 2 slots (self, func)
	TpSuper       // 1 slot + type payload
	TpBaseException
	TpException
	TpBytes
	TpNameDict
	TpLocals
	TpCode
	TpDict
	TpDictItems // 1 slot
	TpProperty  // 2 slots (getter, setter)
	TpStarWrapper
	TpStaticMethod // 1 slot
	TpClassMethod  // 1 slot
	TpNoneType
	TpNotImplementedType
	TpEllipsis
	TpGenerator
	TpSystemExit
	TpKeyboardInterrupt
	TpStopIteration
	TpSyntaxError
	TpStackOverflowError
	TpIOError
	TpOSError
	TpNotImplementedError
	TpTypeError
	TpIndexError
	TpValueError
	TpRuntimeError
	TpZeroDivisionError
	TpNameError
	TpUnboundLocalError
	TpAttributeError
	TpImportError
	TpAssertionError
	TpKeyError
)

const numPredefinedTypes = int(TpKeyError)

// Finalizer is a per-type cleanup routine, invoked exactly once with the
// object's userdata when the object is reclaimed.
type Finalizer func(ud any)

// typeInfo describes one type: its name, single base, attribute map and
// fixed magic-slot bank. Type hierarchies are explicit per instance;
// resolution is a loop over base ids, never the host language's own
// inheritance.
type typeInfo struct {
	name      string
	base      Type // 0 for object
	module    Value
	attrs     map[Name]Value
	magic     [MagicMissing + 1]Value
	finalizer Finalizer
}

// predefined type table: name and base, in id order.
var predefinedTypes = []struct {
	name string
	base Type
}{
	{"object", 0},
	{"type", TpObject},
	{"int", TpObject},
	{"float", TpObject},
	{"bool", TpInt},
	{"str", TpObject},
	{"str_iterator", TpObject},
	{"list", TpObject},
	{"tuple", TpObject},
	{"array_iterator", TpObject},
	{"slice", TpObject},
	{"range", TpObject},
	{"range_iterator", TpObject},
	{"module", TpObject},
	{"function", TpObject},
	{"nativefunc", TpObject},
	{"boundmethod", TpObject},
	{"super", TpObject},
	{"BaseException", TpObject},
	{"Exception", TpBaseException},
	{"bytes", TpObject},
	{"namedict", TpObject},
	{"locals", TpObject},
	{"code", TpObject},
	{"dict", TpObject},
	{"dict_items", TpObject},
	{"property", TpObject},
	{"star_wrapper", TpObject},
	{"staticmethod", TpObject},
	{"classmethod", TpObject},
	{"NoneType", TpObject},
	{"NotImplementedType", TpObject},
	{"ellipsis", TpObject},
	{"generator", TpObject},
	{"SystemExit", TpBaseException},
	{"KeyboardInterrupt", TpBaseException},
	{"StopIteration", TpException},
	{"SyntaxError", TpException},
	{"StackOverflowError", TpException},
	{"IOError", TpException},
	{"OSError", TpException},
	{"NotImplementedError", TpException},
	{"TypeError", TpException},
	{"IndexError", TpException},
	{"ValueError", TpException},
	{"RuntimeError", TpException},
	{"ZeroDivisionError", TpException},
	{"NameError", TpException},
	{"UnboundLocalError", TpException},
	{"AttributeError", TpException},
	{"ImportError", TpException},
	{"AssertionError", TpException},
	{"KeyError", TpException},
}

func (vm *VM) initTypes() {
	vm.types = make([]typeInfo, numPredefinedTypes+1) // index 0 unused
	for i, t := range predefinedTypes {
		vm.types[i+1] = typeInfo{
			name:  t.name,
			base:  t.base,
			attrs: make(map[Name]Value),
		}
	}
}

// ---------------------------------------------------------------------------
// Type definition and hierarchy
// ---------------------------------------------------------------------------

// NewType defines a user type and returns its id, strictly increasing
// above the predefined range. module may be Nil for builtin types.
// Panics if base is not a valid type id (host programming error).
func (vm *VM) NewType(name string, base Type, module Value, fin Finalizer) Type {
	if !vm.validType(base) {
		panic("vm: NewType: invalid base type")
	}
	vm.types = append(vm.types, typeInfo{
		name:      name,
		base:      base,
		module:    module,
		attrs:     make(map[Name]Value),
		finalizer: fin,
	})
	return Type(len(vm.types) - 1)
}

func (vm *VM) validType(t Type) bool {
	return t > 0 && int(t) < len(vm.types)
}

func (vm *VM) typeInfo(t Type) *typeInfo {
	return &vm.types[t]
}

// TypeName returns the name of a type, or "?" for an invalid id.
func (vm *VM) TypeName(t Type) string {
	if !vm.validType(t) {
		return "?"
	}
	return vm.types[t].name
}

// TypeBase returns a type's single base, or 0 for object.
func (vm *VM) TypeBase(t Type) Type {
	if !vm.validType(t) {
		return 0
	}
	return vm.types[t].base
}

// TypeObject returns the value representing the type itself.
func (vm *VM) TypeObject(t Type) Value {
	return newTypeValue(t)
}

// TypeByName resolves a type by module path and name. Returns 0 if the
// module or the name is not bound to a type.
func (vm *VM) TypeByName(module string, name Name) Type {
	mod := vm.GetModule(module)
	if mod.IsNil() {
		return 0
	}
	obj := vm.heap.Get(mod.Handle())
	if obj == nil {
		return 0
	}
	v, ok := obj.DictGet(name)
	if !ok || !v.IsType() {
		return 0
	}
	return v.AsType()
}

// finalizerFor returns the finalizer registered for t, or nil.
func (vm *VM) finalizerFor(t Type) Finalizer {
	if !vm.validType(t) {
		return nil
	}
	return vm.types[t].finalizer
}

// IsSubclass reports whether base occurs on derived's single-inheritance
// chain, including derived itself.
func (vm *VM) IsSubclass(derived, base Type) bool {
	for t := derived; t != 0; t = vm.types[t].base {
		if t == base {
			return true
		}
	}
	return false
}

// IsInstance reports whether v is an instance of t or a subtype of t.
func (vm *VM) IsInstance(v Value, t Type) bool {
	if v.typ == 0 {
		return false
	}
	return vm.IsSubclass(v.typ, t)
}

// TypeOf returns the type of a value (0 for the nil sentinel).
func (vm *VM) TypeOf(v Value) Type { return v.typ }

// CheckType verifies that v is exactly of type t, raising TypeError
// otherwise.
func (vm *VM) CheckType(v Value, t Type) bool {
	if v.typ == t {
		return true
	}
	return vm.RaiseType(TpTypeError, "expected '%t', got '%t'", t, v.typ)
}

// ---------------------------------------------------------------------------
// Magic slots
// ---------------------------------------------------------------------------

// TpGetMagic returns a stable reference into t's own magic table, never
// a base's. The referenced slot is always valid though possibly empty.
func (vm *VM) TpGetMagic(t Type, name Name) *Value {
	if !IsMagicName(name) {
		panic("vm: TpGetMagic: not a magic name")
	}
	return &vm.types[t].magic[name]
}

// TpFindMagic searches the magic slot from t up its base chain. Returns
// nil if no type on the chain fills the slot. Magic lookup never
// consults instance dicts: operators are always class-level.
func (vm *VM) TpFindMagic(t Type, name Name) *Value {
	if !IsMagicName(name) {
		panic("vm: TpFindMagic: not a magic name")
	}
	for ; t != 0; t = vm.types[t].base {
		if slot := &vm.types[t].magic[name]; !slot.IsNil() {
			return slot
		}
	}
	return nil
}

// TpFindName searches t's attribute map and then each base's in chain
// order. First match wins.
func (vm *VM) TpFindName(t Type, name Name) (Value, bool) {
	for ; t != 0; t = vm.types[t].base {
		if v, ok := vm.types[t].attrs[name]; ok {
			return v, true
		}
	}
	return Nil, false
}

// tpSetAttr installs a value directly on a type's own attribute map.
func (vm *VM) tpSetAttr(t Type, name Name, v Value) {
	vm.types[t].attrs[name] = v
}

// ---------------------------------------------------------------------------
// Attribute resolution
// ---------------------------------------------------------------------------

// GetAttr resolves self.name: (1) the instance dict, if present;
// (2) the type's attribute map; (3) each base's map in chain order.
// Properties found on the chain invoke their getter; plain functions
// bind self. Absence at every level raises AttributeError. The result
// lands in the retval slot.
func (vm *VM) GetAttr(self Value, name Name) bool {
	if self.IsType() {
		return vm.getTypeAttr(self, name)
	}

	if self.isPtr {
		if obj := vm.heap.Get(self.Handle()); obj != nil {
			if v, ok := obj.DictGet(name); ok {
				vm.retval = v
				return true
			}
		}
	}

	if v, ok := vm.TpFindName(self.typ, name); ok {
		return vm.bindAttr(self, v)
	}

	if hook := vm.TpFindMagic(self.typ, MagicGetattr); hook != nil {
		inner := vm.stack.sp
		if !vm.Push(*hook) || !vm.Push(self) || !vm.Push(vm.NewStr(NameStr(name))) {
			vm.truncate(inner)
			return false
		}
		return vm.Vectorcall(1, 0)
	}

	return vm.RaiseType(TpAttributeError, "'%t' object has no attribute '%n'", self.typ, name)
}

// getTypeAttr resolves attribute access on a type value (class-level
// access).
func (vm *VM) getTypeAttr(self Value, name Name) bool {
	t := self.AsType()
	v, ok := vm.TpFindName(t, name)
	if !ok {
		return vm.RaiseType(TpAttributeError, "type '%t' has no attribute '%n'", t, name)
	}
	switch v.typ {
	case TpStaticMethod:
		vm.retval = vm.heap.Get(v.Handle()).Slot(0)
	case TpClassMethod:
		vm.retval = vm.NewBoundMethod(self, vm.heap.Get(v.Handle()).Slot(0))
	case TpProperty:
		return vm.callPropertyGetter(v, self)
	default:
		vm.retval = v
	}
	return true
}

// bindAttr post-processes a chain hit for instance access.
func (vm *VM) bindAttr(self, v Value) bool {
	switch v.typ {
	case TpProperty:
		return vm.callPropertyGetter(v, self)
	case TpNativeFunc, TpFunction:
		vm.retval = vm.NewBoundMethod(self, v)
	case TpStaticMethod:
		vm.retval = vm.heap.Get(v.Handle()).Slot(0)
	case TpClassMethod:
		vm.retval = vm.NewBoundMethod(vm.TypeObject(self.typ), vm.heap.Get(v.Handle()).Slot(0))
	default:
		vm.retval = v
	}
	return true
}

func (vm *VM) callPropertyGetter(prop, self Value) bool {
	getter := vm.heap.Get(prop.Handle()).Slot(0)
	return vm.Call(getter, self, nil)
}

// SetAttr assigns self.name = val. A property with a setter on the
// type chain intercepts ahead of the instance dict; a property without
// one raises TypeError. Objects without an instance dict reject plain
// attribute assignment.
func (vm *VM) SetAttr(self Value, name Name, val Value) bool {
	if self.IsType() {
		vm.tpSetAttr(self.AsType(), name, val)
		return true
	}

	if v, ok := vm.TpFindName(self.typ, name); ok && v.typ == TpProperty {
		setter := vm.heap.Get(v.Handle()).Slot(1)
		if setter.IsNil() {
			return vm.RaiseType(TpTypeError, "readonly attribute '%n'", name)
		}
		return vm.Call(setter, self, []Value{val})
	}

	if self.isPtr {
		if obj := vm.heap.Get(self.Handle()); obj != nil && obj.HasDict() {
			obj.DictSet(name, val)
			return true
		}
	}
	return vm.RaiseType(TpTypeError, "cannot set attribute '%n' on '%t' object", name, self.typ)
}

// DelAttr removes self.name from the instance dict.
func (vm *VM) DelAttr(self Value, name Name) bool {
	if self.IsType() {
		info := vm.typeInfo(self.AsType())
		if _, ok := info.attrs[name]; ok {
			delete(info.attrs, name)
			return true
		}
		return vm.RaiseType(TpAttributeError, "type '%t' has no attribute '%n'", self.AsType(), name)
	}
	if self.isPtr {
		if obj := vm.heap.Get(self.Handle()); obj != nil && obj.DictDel(name) {
			return true
		}
	}
	return vm.RaiseType(TpAttributeError, "'%t' object has no attribute '%n'", self.typ, name)
}
