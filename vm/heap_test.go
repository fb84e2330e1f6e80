package vm

import "testing"

func TestRootedObjectSurvivesCollection(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	s := vm.NewStr("survivor")
	if !vm.Push(s) {
		t.Fatal("push failed")
	}
	vm.Heap().Collect()
	if obj := vm.Heap().Get(s.Handle()); obj == nil {
		t.Fatal("rooted object was swept")
	}
	if vm.StrContent(s) != "survivor" {
		t.Error("content corrupted across collection")
	}

	vm.Pop()
	vm.SetRetval(Nil)
	vm.Heap().Collect()
	if vm.Heap().Get(s.Handle()) != nil {
		t.Error("unrooted object must be swept")
	}
}

func TestSlotReferencesKeepChildrenAlive(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	inner := vm.NewStr("inner")
	tup := vm.TupleOf(inner, NewInt(1))
	vm.SetRetval(Nil)
	if !vm.Push(tup) {
		t.Fatal("push failed")
	}
	vm.Heap().Collect()
	if vm.Heap().Get(inner.Handle()) == nil {
		t.Error("child referenced from a live slot was swept")
	}
}

func TestStaleHandleDereferencesNil(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	s := vm.NewStr("doomed")
	h := s.Handle()
	vm.SetRetval(Nil)
	vm.Heap().Collect()
	if vm.Heap().Get(h) != nil {
		t.Fatal("stale handle must dereference to nil")
	}

	// A successor reusing the cell gets a fresh generation, so the old
	// handle still misses.
	s2 := vm.NewStr("successor")
	if vm.Heap().Get(h) != nil {
		t.Error("stale handle aliases a successor object")
	}
	if vm.Heap().Get(s2.Handle()) == nil {
		t.Error("fresh handle must dereference")
	}
}

func TestFinalizerRunsExactlyOnce(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	runs := 0
	tp := vm.NewType("resource", TpObject, Nil, func(ud any) { runs++ })
	vm.NewObjectUD(tp, 0, "payload", 8)
	vm.SetRetval(Nil)

	vm.Heap().Collect()
	vm.Heap().Collect()
	if runs != 1 {
		t.Errorf("finalizer ran %d times, want 1", runs)
	}
}

func TestFinalizerRunsOnClose(t *testing.T) {
	vm := NewVM(nil)
	runs := 0
	tp := vm.NewType("resource", TpObject, Nil, func(ud any) { runs++ })
	obj := vm.NewObjectUD(tp, 0, nil, 0)
	vm.Push(obj) // rooted, so only Close may reclaim it
	vm.Close()
	if runs != 1 {
		t.Errorf("finalizer ran %d times on close, want 1", runs)
	}
}

func TestAutomaticCollectionTriggers(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	before := vm.Heap().Stats().Collections
	for i := 0; i < 100; i++ {
		vm.NewStr(string(make([]byte, 1024)))
	}
	if vm.Heap().Stats().Collections == before {
		t.Error("allocating past the threshold must trigger collection")
	}
}

func TestThresholdNeverBelowMinimum(t *testing.T) {
	vm := NewVM(&Config{GCMinThreshold: 32768})
	defer vm.Close()
	vm.Heap().Collect()
	if vm.Heap().Threshold() < 32768 {
		t.Errorf("threshold %d fell below the configured minimum", vm.Heap().Threshold())
	}
}

func TestPauseSuppressesCollection(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	vm.Heap().Pause()
	before := vm.Heap().Stats().Collections
	for i := 0; i < 100; i++ {
		vm.NewStr(string(make([]byte, 1024)))
	}
	if got := vm.Heap().Stats().Collections; got != before {
		t.Errorf("collections ran while paused: %d -> %d", before, got)
	}
	vm.Heap().Resume()
}

func TestNestedPauseResume(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	vm.Heap().Pause()
	vm.Heap().Pause()
	vm.Heap().Resume()
	vm.Heap().Resume()

	defer func() {
		if recover() == nil {
			t.Error("unbalanced Resume must panic")
		}
	}()
	vm.Heap().Resume()
}

func TestDisabledGC(t *testing.T) {
	vm := NewVM(&Config{GCDisabled: true})
	defer vm.Close()

	before := vm.Heap().Stats().Collections
	for i := 0; i < 100; i++ {
		vm.NewStr(string(make([]byte, 1024)))
	}
	if vm.Heap().Stats().Collections != before {
		t.Error("disabled collector must not run automatically")
	}
	vm.SetRetval(Nil)
	if vm.Heap().Collect() == 0 {
		t.Error("explicit Collect must still reclaim garbage")
	}
}
