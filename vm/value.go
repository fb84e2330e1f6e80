package vm

import (
	"math"
	"sync"
)

// Value is a fixed-width tagged value: either an immediate (int, float,
// bool, None, NotImplemented, Ellipsis, nativefunc, type) or a handle to
// a heap object.
//
// Values are trivially copyable; assignment is a plain struct copy with
// no side effects, no allocation and no reference counting. The heap owns
// objects, values are non-owning observers.
//
// The zero Value (type id 0) is the nil sentinel: an invalid/empty slot
// distinct from the language-level None. It is never produced by the
// general value-creation API.
type Value struct {
	typ   Type
	isPtr bool
	bits  uint64
}

// Well-known immediate values.
var (
	// Nil is the invalid-slot sentinel (type id 0). Not a language value.
	Nil = Value{}
	// None is the language-level None singleton.
	None = Value{typ: TpNoneType}
	// NotImplemented is the reflected-operator protocol sentinel.
	NotImplemented = Value{typ: TpNotImplementedType}
	// Ellipsis is the `...` singleton.
	Ellipsis = Value{typ: TpEllipsis}
	// True and False are the bool singletons.
	True  = Value{typ: TpBool, bits: 1}
	False = Value{typ: TpBool}
)

// ---------------------------------------------------------------------------
// Immediate constructors
// ---------------------------------------------------------------------------

// NewInt creates an int value. Never allocates.
func NewInt(i int64) Value {
	return Value{typ: TpInt, bits: uint64(i)}
}

// NewFloat creates a float value. Never allocates.
func NewFloat(f float64) Value {
	return Value{typ: TpFloat, bits: math.Float64bits(f)}
}

// NewBool creates a bool value. Never allocates.
func NewBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// newHandleValue wraps a freshly allocated heap handle.
func newHandleValue(typ Type, h Handle) Value {
	return Value{typ: typ, isPtr: true, bits: uint64(h)}
}

// newTypeValue creates the immediate value representing a type itself.
func newTypeValue(t Type) Value {
	return Value{typ: TpType, bits: uint64(t)}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// Type returns the value's type id. 0 means the nil sentinel.
func (v Value) Type() Type { return v.typ }

// IsPtr reports whether the value holds a heap handle.
func (v Value) IsPtr() bool { return v.isPtr }

// IsNil reports whether the value is the invalid-slot sentinel.
func (v Value) IsNil() bool { return v.typ == 0 }

// IsNone reports whether the value is None.
func (v Value) IsNone() bool { return v.typ == TpNoneType }

// Is reports whether the value's type is exactly t.
func (v Value) Is(t Type) bool { return v.typ == t }

// IsInt reports whether the value is an int.
func (v Value) IsInt() bool { return v.typ == TpInt }

// IsFloat reports whether the value is a float.
func (v Value) IsFloat() bool { return v.typ == TpFloat }

// IsBool reports whether the value is a bool.
func (v Value) IsBool() bool { return v.typ == TpBool }

// IsStr reports whether the value is a str.
func (v Value) IsStr() bool { return v.typ == TpStr }

// IsType reports whether the value represents a type.
func (v Value) IsType() bool { return v.typ == TpType }

// ---------------------------------------------------------------------------
// Immediate accessors
// ---------------------------------------------------------------------------

// Int returns the value as an int64.
// Panics if v is not an int.
func (v Value) Int() int64 {
	if v.typ != TpInt {
		panic("Value.Int: not an int")
	}
	return int64(v.bits)
}

// Float returns the value as a float64.
// Panics if v is not a float.
func (v Value) Float() float64 {
	if v.typ != TpFloat {
		panic("Value.Float: not a float")
	}
	return math.Float64frombits(v.bits)
}

// Bool returns the value as a bool.
// Panics if v is not a bool.
func (v Value) Bool() bool {
	if v.typ != TpBool {
		panic("Value.Bool: not a bool")
	}
	return v.bits != 0
}

// Handle returns the heap handle held by a pointer value.
// Panics if v does not hold a handle.
func (v Value) Handle() Handle {
	if !v.isPtr {
		panic("Value.Handle: not a heap value")
	}
	return Handle(v.bits)
}

// AsType returns the type id represented by a type value.
// Panics if v is not a type.
func (v Value) AsType() Type {
	if v.typ != TpType {
		panic("Value.AsType: not a type")
	}
	return Type(v.bits)
}

// Identical reports whether two values are bitwise identical
// (the language-level `is` test).
func (v Value) Identical(other Value) bool {
	return v == other
}

// ---------------------------------------------------------------------------
// Native functions
// ---------------------------------------------------------------------------

// NativeFunc is the host function signature. argv is a zero-copy window
// into the VM's value stack and argc == len(argv). A NativeFunc returns
// true on success with its result in the VM's retval slot, or false with
// an exception pending.
type NativeFunc func(vm *VM, argc int, argv []Value) bool

// nativeFuncs is the process-wide append-only function table. Values
// store a dense index into it because Go func values are not comparable
// and cannot live inside the fixed-width value record.
var nativeFuncs struct {
	mu  sync.RWMutex
	fns []NativeFunc
}

func init() {
	// Index 0 is reserved/invalid.
	nativeFuncs.fns = []NativeFunc{nil}
}

func registerNativeFunc(f NativeFunc) uint64 {
	nativeFuncs.mu.Lock()
	defer nativeFuncs.mu.Unlock()
	id := uint64(len(nativeFuncs.fns))
	nativeFuncs.fns = append(nativeFuncs.fns, f)
	return id
}

func nativeFuncAt(id uint64) NativeFunc {
	nativeFuncs.mu.RLock()
	defer nativeFuncs.mu.RUnlock()
	if id == 0 || id >= uint64(len(nativeFuncs.fns)) {
		return nil
	}
	return nativeFuncs.fns[id]
}

// NewNativeFunc creates a nativefunc value wrapping a host function.
// The function carries no closure state: state must come from a bound
// receiver or from namespace lookups inside the function body.
func NewNativeFunc(f NativeFunc) Value {
	return Value{typ: TpNativeFunc, bits: registerNativeFunc(f)}
}

// nativeFunc returns the host function wrapped by a nativefunc value.
// Panics if v is not a nativefunc.
func (v Value) nativeFunc() NativeFunc {
	if v.typ != TpNativeFunc {
		panic("Value.nativeFunc: not a nativefunc")
	}
	return nativeFuncAt(v.bits)
}
