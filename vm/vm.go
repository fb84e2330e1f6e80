package vm

import (
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var vmLog = commonlog.GetLogger("piccolo.vm")

// NumRegisters is the number of scratch registers per instance.
const NumRegisters = 8

// Config are the boot parameters of an interpreter instance. The zero
// value uses defaults throughout.
type Config struct {
	// StackSize is the value stack capacity in slots.
	StackSize int
	// GCMinThreshold is the floor of the adaptive collection threshold,
	// in accounted bytes.
	GCMinThreshold int
	// GCGrowthFactor scales the threshold by survivor volume after each
	// collection cycle.
	GCGrowthFactor float64
	// GCDisabled turns off automatic collection; explicit Collect still
	// works.
	GCDisabled bool
	// ThreadSafe serializes allocation and collection with a mutex so
	// multiple goroutines may share the instance under external
	// call-level coordination.
	ThreadSafe bool
	// Stdout receives print() output. Defaults to os.Stdout.
	Stdout io.Writer
}

// VM is one isolated interpreter instance: its own heap, value stack,
// type table, interned modules and pending exception. Instances share
// nothing except the process-wide name pool and native function table,
// so values and handles must never cross instances.
//
// All operations take the instance explicitly; there is no ambient
// current-instance selector.
type VM struct {
	id   uuid.UUID
	heap *Heap

	stack *valueStack
	types []typeInfo

	retval     Value
	curExc     Value
	excHandled bool
	registers  [NumRegisters]Value

	modules  map[string]Value
	main     Value
	builtins Value

	callDepth int

	threadSafe bool
	heapMu     sync.Mutex

	// ExecHook runs interpreted function bodies. Unset, calling an
	// interpreted function raises RuntimeError.
	ExecHook ExecFunc
	// ImportHook resolves module paths not yet registered.
	ImportHook ImportHook
	// Stdout receives print() output.
	Stdout io.Writer
}

// NewVM boots an interpreter instance: type table, heap, stack, the
// builtins and __main__ modules, and the builtin method banks.
func NewVM(cfg *Config) *VM {
	if cfg == nil {
		cfg = &Config{}
	}
	vm := &VM{
		id:         uuid.New(),
		modules:    make(map[string]Value),
		threadSafe: cfg.ThreadSafe,
		Stdout:     cfg.Stdout,
	}
	if vm.Stdout == nil {
		vm.Stdout = os.Stdout
	}
	vm.heap = newHeap(vm, cfg.GCMinThreshold, cfg.GCGrowthFactor, cfg.GCDisabled)
	vm.stack = newValueStack(cfg.StackSize)
	vm.initTypes()

	vm.heap.Pause()
	vm.builtins = vm.NewModule("builtins")
	vm.main = vm.NewModule("__main__")
	vm.heap.Resume()

	vm.initBuiltins()

	vmLog.Debugf("instance %s: %d types, stack %d slots, gc threshold %d",
		vm.id, len(vm.types)-1, len(vm.stack.data), vm.heap.threshold)
	return vm
}

// ID returns the instance's unique identity.
func (vm *VM) ID() uuid.UUID { return vm.id }

// Heap exposes the instance's heap for collection control and stats.
func (vm *VM) Heap() *Heap { return vm.heap }

// Reg returns a pointer to scratch register i. Registers are roots:
// values parked in them survive collection.
func (vm *VM) Reg(i int) *Value {
	return &vm.registers[i]
}

// Close tears the instance down, running every live object's finalizer.
// The instance must not be used afterwards.
func (vm *VM) Close() {
	for i := range vm.heap.cells {
		cell := &vm.heap.cells[i]
		if cell.obj == nil {
			continue
		}
		if fin := vm.finalizerFor(cell.obj.typ); fin != nil {
			fin(cell.obj.ud)
		}
		cell.obj = nil
		cell.gen++
	}
	vm.heap.liveBytes = 0
	vm.modules = nil
	vm.stack.sp = 0
	vmLog.Debugf("instance %s closed", vm.id)
}

// forEachRoot applies fn to every root value of the instance: the live
// stack region, registers, the retval and pending-exception slots, the
// module registry and everything referenced from the type table.
func (vm *VM) forEachRoot(fn func(Value)) {
	for i := 0; i < vm.stack.sp; i++ {
		fn(vm.stack.data[i])
	}
	for i := range vm.registers {
		fn(vm.registers[i])
	}
	fn(vm.retval)
	fn(vm.curExc)
	for _, m := range vm.modules {
		fn(m)
	}
	for i := 1; i < len(vm.types); i++ {
		info := &vm.types[i]
		fn(info.module)
		for _, v := range info.attrs {
			fn(v)
		}
		for _, v := range info.magic {
			fn(v)
		}
	}
}
