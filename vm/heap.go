package vm

import (
	"time"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Heap: arena allocator + stop-the-world mark-sweep collector
// ---------------------------------------------------------------------------

var gcLog = commonlog.GetLogger("piccolo.gc")

// DefaultGCMinThreshold is the initial live-byte threshold before the
// first automatic collection.
const DefaultGCMinThreshold = 16384

// DefaultGCGrowthFactor scales the threshold by survivor volume after
// each cycle.
const DefaultGCGrowthFactor = 2.0

// Accounting constants for the live-byte counter. Slots are counted at
// their fixed wire stride; the per-object overhead is an estimate of the
// arena cell plus headers.
const (
	slotStride     = 16
	objectOverhead = 64
	dictOverhead   = 128
)

type heapCell struct {
	gen uint32
	obj *Object
}

// HeapStats is a snapshot of collector counters.
type HeapStats struct {
	Collections uint64
	LiveObjects int
	LiveBytes   int
	Threshold   int
	LastSwept   int
	LastPause   time.Duration
}

// Heap owns every object of one interpreter instance. Objects are
// addressed by generation-checked handles; reclaiming a cell bumps its
// generation so stale handles dereference to nil instead of aliasing a
// successor.
//
// Collection is stop-the-world on the owning goroutine: allocation may
// trigger a full mark-sweep pass whose duration scales with the live
// object count. Exhaustion of the underlying Go allocator is fatal and
// not modeled as an exception.
type Heap struct {
	vm *VM

	cells []heapCell
	free  []uint32

	liveBytes    int
	threshold    int
	minThreshold int
	growth       float64

	disabled   bool
	pauseDepth int
	epoch      uint32

	collections uint64
	lastSwept   int
	lastPause   time.Duration
}

func newHeap(vm *VM, minThreshold int, growth float64, disabled bool) *Heap {
	if minThreshold <= 0 {
		minThreshold = DefaultGCMinThreshold
	}
	if growth < 1.0 {
		growth = DefaultGCGrowthFactor
	}
	return &Heap{
		vm:           vm,
		minThreshold: minThreshold,
		threshold:    minThreshold,
		growth:       growth,
		disabled:     disabled,
	}
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

// Alloc allocates a heap object and returns its handle.
//
// slotCount >= 0 allocates that many value slots (initialized to the nil
// sentinel, which the collector never treats as a root); slotCount == -1
// allocates a dynamic instance dict instead. extraBytes > 0 additionally
// allocates a zeroed byte blob as userdata.
//
// Alloc may run a collection first, so the caller must not hold
// unrooted handles across it; pair with Pause/Resume while building
// multi-field values.
func (h *Heap) Alloc(typ Type, slotCount, extraBytes int) Handle {
	var ud any
	if extraBytes > 0 {
		ud = make([]byte, extraBytes)
	}
	return h.alloc(typ, slotCount, ud, extraBytes)
}

// alloc is the shared allocation path; ud may be any Go-side payload and
// udSize its accounted byte size.
func (h *Heap) alloc(typ Type, slotCount int, ud any, udSize int) Handle {
	if h.vm.threadSafe {
		h.vm.heapMu.Lock()
		defer h.vm.heapMu.Unlock()
	}

	size := objectOverhead + udSize
	if slotCount > 0 {
		size += slotCount * slotStride
	} else if slotCount < 0 {
		size += dictOverhead
	}

	if !h.disabled && h.pauseDepth == 0 && h.liveBytes+size > h.threshold {
		h.collect()
	}

	obj := &Object{typ: typ, ud: ud, size: size}
	if slotCount > 0 {
		obj.slots = make([]Value, slotCount)
	} else if slotCount < 0 {
		obj.dict = make(map[Name]Value)
	}

	h.liveBytes += size

	if n := len(h.free); n > 0 {
		idx := h.free[n-1]
		h.free = h.free[:n-1]
		h.cells[idx].obj = obj
		return makeHandle(idx, h.cells[idx].gen)
	}

	idx := uint32(len(h.cells))
	h.cells = append(h.cells, heapCell{gen: 1, obj: obj})
	return makeHandle(idx, 1)
}

// Get dereferences a handle. Returns nil for the zero handle, a stale
// handle, or an out-of-range index.
func (h *Heap) Get(handle Handle) *Object {
	idx := handle.index()
	if handle == 0 || int(idx) >= len(h.cells) {
		return nil
	}
	cell := &h.cells[idx]
	if cell.gen != handle.gen() {
		return nil
	}
	return cell.obj
}

// ---------------------------------------------------------------------------
// Collection
// ---------------------------------------------------------------------------

// Pause suppresses automatic collection while the object graph is
// transiently inconsistent. Calls nest; each Pause must be matched by a
// Resume.
func (h *Heap) Pause() { h.pauseDepth++ }

// Resume re-enables automatic collection after a matching Pause.
// Panics on unbalanced calls.
func (h *Heap) Resume() {
	if h.pauseDepth == 0 {
		panic("Heap.Resume: unbalanced pause/resume")
	}
	h.pauseDepth--
}

// Collect runs a full stop-the-world mark-sweep cycle and returns the
// number of objects reclaimed. Finalizers of reclaimed objects run
// exactly once, during the sweep.
func (h *Heap) Collect() int {
	if h.vm.threadSafe {
		h.vm.heapMu.Lock()
		defer h.vm.heapMu.Unlock()
	}
	return h.collect()
}

func (h *Heap) collect() int {
	start := time.Now()
	h.epoch++

	// Mark phase: traverse from the instance roots.
	h.vm.forEachRoot(h.markValue)

	// Sweep phase: reclaim every unmarked object, running finalizers.
	swept := 0
	survivors := 0
	for i := range h.cells {
		cell := &h.cells[i]
		if cell.obj == nil {
			continue
		}
		if cell.obj.mark == h.epoch {
			survivors += cell.obj.size
			continue
		}
		if fin := h.vm.finalizerFor(cell.obj.typ); fin != nil {
			fin(cell.obj.ud)
		}
		h.liveBytes -= cell.obj.size
		cell.obj = nil
		cell.gen++
		h.free = append(h.free, uint32(i))
		swept++
	}

	h.threshold = int(float64(survivors) * h.growth)
	if h.threshold < h.minThreshold {
		h.threshold = h.minThreshold
	}

	h.collections++
	h.lastSwept = swept
	h.lastPause = time.Since(start)

	gcLog.Debugf("collection %d: swept %d, live %d bytes, threshold %d, pause %s",
		h.collections, swept, h.liveBytes, h.threshold, h.lastPause)

	return swept
}

// markValue marks the object behind v (if any) and everything reachable
// from it.
func (h *Heap) markValue(v Value) {
	if !v.isPtr {
		return
	}
	obj := h.Get(Handle(v.bits))
	if obj == nil || obj.mark == h.epoch {
		return
	}
	obj.mark = h.epoch
	obj.forEachRef(h.markValue)
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

// Stats returns a snapshot of collector counters.
func (h *Heap) Stats() HeapStats {
	live := 0
	for i := range h.cells {
		if h.cells[i].obj != nil {
			live++
		}
	}
	return HeapStats{
		Collections: h.collections,
		LiveObjects: live,
		LiveBytes:   h.liveBytes,
		Threshold:   h.threshold,
		LastSwept:   h.lastSwept,
		LastPause:   h.lastPause,
	}
}

// LiveBytes returns the current accounted live-byte counter.
func (h *Heap) LiveBytes() int { return h.liveBytes }

// Threshold returns the current adaptive collection threshold.
func (h *Heap) Threshold() int { return h.threshold }
