package vm

import (
	"fmt"
	"os"
	"strings"
)

// ---------------------------------------------------------------------------
// Pending-exception protocol
// ---------------------------------------------------------------------------
//
// Exactly one pending exception exists per interpreter instance, moving
// through three states: Normal (none pending), Raised, Handled.
// Propagation is purely cooperative: there is no automatic unwinding at
// this layer. Every native-level caller that observes false from a
// sub-call must itself return false or handle the exception; omission
// is a caller bug, not a framework-detected error.
//
// Exception objects are heap objects of an exception type with two
// slots: slot 0 holds the argument (usually the message string), slot 1
// an optional inner cause. A second Raise silently replaces the first;
// callers wanting chaining link the prior exception via SetExcCause
// before raising the new one.

// Raise makes exc the pending exception and returns false. Any
// previously pending exception is overwritten without queuing.
func (vm *VM) Raise(exc Value) bool {
	vm.curExc = exc
	vm.excHandled = false
	return false
}

// RaiseType formats a message with the %-verb placeholders, creates an
// exception object of type t, raises it and returns false.
func (vm *VM) RaiseType(t Type, format string, args ...any) bool {
	msg := vm.formatMessage(format, args...)
	return vm.Raise(vm.NewException(t, vm.NewStr(msg)))
}

// NewException creates an exception object of type t with the given
// argument (slot 0); the cause slot starts empty.
func (vm *VM) NewException(t Type, arg Value) Value {
	vm.heap.Pause()
	defer vm.heap.Resume()
	h := vm.heap.Alloc(t, 2, 0)
	obj := vm.heap.Get(h)
	obj.SetSlot(0, arg)
	obj.SetSlot(1, Nil)
	return newHandleValue(t, h)
}

// ExcArg returns an exception object's argument (slot 0).
func (vm *VM) ExcArg(exc Value) Value {
	if obj := vm.heap.Get(exc.Handle()); obj != nil && obj.NumSlots() >= 1 {
		return obj.Slot(0)
	}
	return Nil
}

// ExcCause returns an exception object's chained cause, or Nil.
func (vm *VM) ExcCause(exc Value) Value {
	if obj := vm.heap.Get(exc.Handle()); obj != nil && obj.NumSlots() >= 2 {
		return obj.Slot(1)
	}
	return Nil
}

// SetExcCause links an inner cause into an exception object. Callers
// use this to chain a prior pending exception before raising a new one.
func (vm *VM) SetExcCause(exc, cause Value) {
	if obj := vm.heap.Get(exc.Handle()); obj != nil && obj.NumSlots() >= 2 {
		obj.SetSlot(1, cause)
	}
}

// CheckExc reports whether an exception is pending. With ignoreHandled,
// a matched (handled) exception does not count.
func (vm *VM) CheckExc(ignoreHandled bool) bool {
	if vm.curExc.IsNil() {
		return false
	}
	if ignoreHandled && vm.excHandled {
		return false
	}
	return true
}

// MatchExc implements the `except T:` test: if the pending exception is
// an instance of t, it is moved into the retval slot, marked handled,
// and true is returned. Otherwise (or when nothing is pending) the
// state is unchanged and false is returned.
func (vm *VM) MatchExc(t Type) bool {
	if vm.curExc.IsNil() || vm.excHandled {
		return false
	}
	if !vm.IsInstance(vm.curExc, t) {
		return false
	}
	vm.retval = vm.curExc
	vm.excHandled = true
	return true
}

// ClearExc resets the exception state to Normal. unwindPoint >= 0
// additionally truncates the value stack to that depth, discarding
// partially evaluated operands left by an expression that failed
// mid-evaluation. Idempotent when nothing is pending.
func (vm *VM) ClearExc(unwindPoint int) {
	vm.curExc = Nil
	vm.excHandled = false
	if unwindPoint >= 0 {
		vm.truncate(unwindPoint)
	}
}

// ---------------------------------------------------------------------------
// Well-known raises
// ---------------------------------------------------------------------------

// StopIteration raises the iteration-protocol sentinel. It is not a
// user-visible failure; Next translates it into the exhausted result.
func (vm *VM) StopIteration() bool {
	return vm.Raise(vm.NewException(TpStopIteration, Nil))
}

// KeyError raises KeyError carrying the missing key as the argument.
func (vm *VM) KeyError(key Value) bool {
	return vm.Raise(vm.NewException(TpKeyError, key))
}

// AttributeError raises the canonical missing-attribute message.
func (vm *VM) AttributeError(self Value, name Name) bool {
	return vm.RaiseType(TpAttributeError, "'%t' object has no attribute '%n'", self.typ, name)
}

// NameError raises the canonical undefined-name message.
func (vm *VM) NameError(name Name) bool {
	return vm.RaiseType(TpNameError, "name '%n' is not defined", name)
}

// UnboundLocalError raises the canonical unbound-local message.
func (vm *VM) UnboundLocalError(name Name) bool {
	return vm.RaiseType(TpUnboundLocalError,
		"local variable '%n' referenced before assignment", name)
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

// FormatExc renders the pending exception with its cause chain and marks
// it handled. Returns "" when nothing is pending.
func (vm *VM) FormatExc() string {
	if vm.curExc.IsNil() {
		return ""
	}
	var b strings.Builder
	exc := vm.curExc
	for !exc.IsNil() {
		if b.Len() > 0 {
			b.WriteString("\nCaused by: ")
		}
		b.WriteString(vm.excLine(exc))
		exc = vm.ExcCause(exc)
	}
	vm.excHandled = true
	return b.String()
}

// PrintExc prints the pending exception to stderr and marks it handled.
func (vm *VM) PrintExc() {
	if s := vm.FormatExc(); s != "" {
		fmt.Fprintln(os.Stderr, s)
	}
}

// excLine renders one exception as "TypeName: arg".
func (vm *VM) excLine(exc Value) string {
	name := vm.TypeName(exc.typ)
	arg := vm.ExcArg(exc)
	switch {
	case arg.IsNil():
		return name
	case arg.IsStr():
		return name + ": " + vm.StrContent(arg)
	default:
		return name + ": " + vm.safeRepr(arg)
	}
}

// safeRepr renders a value without invoking user code, for use inside
// exception reporting where re-entry is unsafe.
func (vm *VM) safeRepr(v Value) string {
	switch v.typ {
	case 0:
		return "nil"
	case TpNoneType:
		return "None"
	case TpBool:
		if v.Bool() {
			return "True"
		}
		return "False"
	case TpInt:
		return vm.formatMessage("%i", v.Int())
	case TpFloat:
		return formatFloat(v.Float())
	case TpStr:
		return "'" + escapeString(vm.StrContent(v)) + "'"
	case TpType:
		return "<class '" + vm.TypeName(v.AsType()) + "'>"
	default:
		return vm.formatMessage("<%s object at %p>", vm.TypeName(v.typ), Handle(v.bits))
	}
}
