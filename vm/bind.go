package vm

import (
	"strconv"
	"strings"
)

// FuncDecl is the declaration record behind a function object: the
// interned name, parameter list, trailing defaults and an optional
// variadic tail. Native-backed functions carry an index into the
// process function table; interpreted ones carry an opaque body for
// the exec hook.
type FuncDecl struct {
	Name     Name
	Params   []Name
	Defaults []Value
	Variadic bool
	Doc      string
	Code     any

	fn uint64
}

// traverse keeps default values alive while the declaration is.
func (d *FuncDecl) traverse(fn func(Value)) {
	for _, v := range d.Defaults {
		fn(v)
	}
}

// ---------------------------------------------------------------------------
// Signature parsing
// ---------------------------------------------------------------------------

// parseSignature parses a declaration like
//
//	"split(self, sep=None, maxsplit=-1)"
//	"print(*args)"
//
// into a FuncDecl. Defaults are literals: None, True, False, ints,
// floats and quoted strings. Binding happens at boot with host-authored
// strings, so malformed signatures panic.
func (vm *VM) parseSignature(sig string) *FuncDecl {
	lp := strings.IndexByte(sig, '(')
	rp := strings.LastIndexByte(sig, ')')
	if lp <= 0 || rp != len(sig)-1 {
		panic("vm: malformed signature: " + sig)
	}
	decl := &FuncDecl{Name: NameFor(strings.TrimSpace(sig[:lp]))}

	params := strings.TrimSpace(sig[lp+1 : rp])
	if params == "" {
		return decl
	}
	for _, part := range strings.Split(params, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			panic("vm: malformed signature: " + sig)
		}
		if strings.HasPrefix(part, "*") {
			if decl.Variadic {
				panic("vm: multiple variadic parameters: " + sig)
			}
			decl.Variadic = true
			decl.Params = append(decl.Params, NameFor(part[1:]))
			continue
		}
		if decl.Variadic {
			panic("vm: parameter after variadic: " + sig)
		}
		name, lit, hasDefault := strings.Cut(part, "=")
		decl.Params = append(decl.Params, NameFor(strings.TrimSpace(name)))
		if hasDefault {
			decl.Defaults = append(decl.Defaults, vm.parseLiteral(strings.TrimSpace(lit)))
		} else if len(decl.Defaults) > 0 {
			panic("vm: non-default parameter after default: " + sig)
		}
	}
	return decl
}

func (vm *VM) parseLiteral(lit string) Value {
	switch lit {
	case "None":
		return None
	case "True":
		return True
	case "False":
		return False
	}
	if len(lit) >= 2 && (lit[0] == '\'' || lit[0] == '"') && lit[len(lit)-1] == lit[0] {
		return vm.NewStr(lit[1 : len(lit)-1])
	}
	if i, err := strconv.ParseInt(lit, 0, 64); err == nil {
		return NewInt(i)
	}
	if f, err := strconv.ParseFloat(lit, 64); err == nil {
		return NewFloat(f)
	}
	panic("vm: unsupported default literal: " + lit)
}

// ---------------------------------------------------------------------------
// Function objects
// ---------------------------------------------------------------------------

// NewFunction creates a function object whose parameters come from a
// signature string and whose body is a native function. Unlike a bare
// nativefunc value, the call path checks arity, fills defaults and
// accepts keyword arguments.
func (vm *VM) NewFunction(sig string, f NativeFunc) Value {
	vm.heap.Pause()
	defer vm.heap.Resume()
	decl := vm.parseSignature(sig)
	decl.fn = registerNativeFunc(f)
	return vm.NewFunctionDecl(decl)
}

// NewFunctionDecl wraps an existing declaration in a function object.
// Interpreted declarations (fn unset) run through the exec hook.
func (vm *VM) NewFunctionDecl(decl *FuncDecl) Value {
	return vm.NewObjectUD(TpFunction, 0, decl, len(decl.Params)*slotStride)
}

// FuncDeclOf returns the declaration behind a function value.
func (vm *VM) FuncDeclOf(v Value) *FuncDecl {
	if v.typ != TpFunction {
		panic("vm: not a function")
	}
	return vm.heap.Get(v.Handle()).Userdata().(*FuncDecl)
}

// NewStaticMethod wraps a callable so attribute access returns it
// without binding a receiver.
func (vm *VM) NewStaticMethod(fn Value) Value {
	vm.heap.Pause()
	defer vm.heap.Resume()
	h := vm.heap.Alloc(TpStaticMethod, 1, 0)
	vm.heap.Get(h).SetSlot(0, fn)
	return newHandleValue(TpStaticMethod, h)
}

// NewClassMethod wraps a callable so attribute access binds the type
// instead of the instance.
func (vm *VM) NewClassMethod(fn Value) Value {
	vm.heap.Pause()
	defer vm.heap.Resume()
	h := vm.heap.Alloc(TpClassMethod, 1, 0)
	vm.heap.Get(h).SetSlot(0, fn)
	return newHandleValue(TpClassMethod, h)
}

// NewProperty pairs a getter with an optional setter. Pass the nil
// sentinel as setter for a readonly property.
func (vm *VM) NewProperty(getter, setter Value) Value {
	vm.heap.Pause()
	defer vm.heap.Resume()
	h := vm.heap.Alloc(TpProperty, 2, 0)
	obj := vm.heap.Get(h)
	obj.SetSlot(0, getter)
	obj.SetSlot(1, setter)
	return newHandleValue(TpProperty, h)
}

// ---------------------------------------------------------------------------
// Binding
// ---------------------------------------------------------------------------

// Bind installs a signature-checked native function on a namespace
// value: a module's dict, a type's attribute map, or any object with an
// instance dict. A magic name bound on a type routes to its magic slot.
// Returns the function value.
func (vm *VM) Bind(obj Value, sig string, f NativeFunc) Value {
	vm.heap.Pause()
	defer vm.heap.Resume()
	fn := vm.NewFunction(sig, f)
	name := vm.FuncDeclOf(fn).Name
	vm.setBound(obj, name, fn)
	return fn
}

// BindFunc installs a bare nativefunc under name. No arity checking or
// keyword support: the function sees the raw argument window.
func (vm *VM) BindFunc(obj Value, name string, f NativeFunc) Value {
	vm.heap.Pause()
	defer vm.heap.Resume()
	fn := NewNativeFunc(f)
	vm.setBound(obj, NameFor(name), fn)
	return fn
}

// BindMethod installs a signature-checked native function on a type.
// The signature's first parameter receives the instance.
func (vm *VM) BindMethod(t Type, sig string, f NativeFunc) Value {
	return vm.Bind(vm.TypeObject(t), sig, f)
}

// BindMagic installs f in a type's magic slot for name.
func (vm *VM) BindMagic(t Type, name Name, f NativeFunc) {
	*vm.TpGetMagic(t, name) = NewNativeFunc(f)
}

// BindStaticMethod installs a signature-checked function that never
// binds a receiver.
func (vm *VM) BindStaticMethod(t Type, sig string, f NativeFunc) {
	vm.heap.Pause()
	defer vm.heap.Resume()
	fn := vm.NewFunction(sig, f)
	vm.tpSetAttr(t, vm.FuncDeclOf(fn).Name, vm.NewStaticMethod(fn))
}

// BindProperty installs a computed attribute on a type. setter may be
// nil for a readonly property.
func (vm *VM) BindProperty(t Type, name string, getter, setter NativeFunc) {
	vm.heap.Pause()
	defer vm.heap.Resume()
	g := NewNativeFunc(getter)
	s := Nil
	if setter != nil {
		s = NewNativeFunc(setter)
	}
	vm.tpSetAttr(t, NameFor(name), vm.NewProperty(g, s))
}

func (vm *VM) setBound(obj Value, name Name, fn Value) {
	if obj.IsType() {
		t := obj.AsType()
		if IsMagicName(name) {
			*vm.TpGetMagic(t, name) = fn
			return
		}
		vm.tpSetAttr(t, name, fn)
		return
	}
	vm.SetDict(obj, name, fn)
}
