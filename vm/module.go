package vm

var (
	nameDunderName = NameFor("__name__")
	nameDunderMain = NameFor("__main__")
)

// ImportHook resolves a module path the instance has never seen.
// Implementations construct and register the module (typically via
// NewModule plus binding) and leave it in retval. Return 1 on success,
// 0 when the path is unknown, -1 with an exception pending.
type ImportHook func(vm *VM, path string) int

// NewModule creates a dict-backed module object, stores its dotted
// path under __name__ and registers it with the instance.
// Panics if the path is already registered.
func (vm *VM) NewModule(path string) Value {
	if _, ok := vm.modules[path]; ok {
		panic("vm: module already registered: " + path)
	}
	vm.heap.Pause()
	defer vm.heap.Resume()
	mod, _ := vm.NewObject(TpModule, -1, 0)
	vm.SetDict(mod, nameDunderName, vm.NewStr(path))
	vm.modules[path] = mod
	return mod
}

// GetModule returns a registered module, or the nil sentinel.
func (vm *VM) GetModule(path string) Value {
	if m, ok := vm.modules[path]; ok {
		return m
	}
	return Nil
}

// Import resolves a module path: 1 with the module in retval, 0 when
// nothing can provide it, -1 with an exception pending. Registered
// modules hit directly; unknown paths go through the import hook.
func (vm *VM) Import(path string) int {
	if m, ok := vm.modules[path]; ok {
		vm.retval = m
		return 1
	}
	if vm.ImportHook == nil {
		return 0
	}
	return vm.ImportHook(vm, path)
}

// MainModule returns __main__.
func (vm *VM) MainModule() Value { return vm.main }

// BuiltinsModule returns the builtins module.
func (vm *VM) BuiltinsModule() Value { return vm.builtins }

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

// GetGlobal looks up name in __main__'s dict.
func (vm *VM) GetGlobal(name Name) (Value, bool) {
	return vm.GetDict(vm.main, name)
}

// SetGlobal stores name in __main__'s dict.
func (vm *VM) SetGlobal(name Name, v Value) {
	vm.SetDict(vm.main, name, v)
}

// DelGlobal removes name from __main__'s dict, reporting whether it
// was present.
func (vm *VM) DelGlobal(name Name) bool {
	return vm.DelDict(vm.main, name)
}

// GetBuiltin looks up name in the builtins module.
func (vm *VM) GetBuiltin(name Name) (Value, bool) {
	return vm.GetDict(vm.builtins, name)
}

// LoadName resolves name through the global scope then builtins,
// raising NameError when neither has it. Result in retval.
func (vm *VM) LoadName(name Name) bool {
	if v, ok := vm.GetGlobal(name); ok {
		vm.retval = v
		return true
	}
	if v, ok := vm.GetBuiltin(name); ok {
		vm.retval = v
		return true
	}
	return vm.NameError(name)
}
