package vm

import "sync"

// Name is an interned identifier: a dense small integer backed by the
// process-wide name pool. Name 0 is reserved/invalid.
type Name uint16

// ---------------------------------------------------------------------------
// Magic names
// ---------------------------------------------------------------------------

// The operator-hook names occupy a fixed reserved range 1..MagicMissing,
// interned at package init in this exact order. External consumers
// hardcode these ids, so the order must never change.
const (
	MagicNew Name = iota + 1 // __new__
	MagicInit                // __init__
	MagicDel                 // __del__
	MagicRepr                // __repr__
	MagicStr                 // __str__
	MagicHash                // __hash__
	MagicLen                 // __len__
	MagicIter                // __iter__
	MagicNext                // __next__
	MagicNeg                 // __neg__
	MagicInvert              // __invert__
	MagicEq                  // __eq__
	MagicNe                  // __ne__
	MagicLt                  // __lt__
	MagicLe                  // __le__
	MagicGt                  // __gt__
	MagicGe                  // __ge__
	MagicAdd                 // __add__
	MagicRadd                // __radd__
	MagicSub                 // __sub__
	MagicRsub                // __rsub__
	MagicMul                 // __mul__
	MagicRmul                // __rmul__
	MagicTruediv             // __truediv__
	MagicRtruediv            // __rtruediv__
	MagicFloordiv            // __floordiv__
	MagicRfloordiv           // __rfloordiv__
	MagicMod                 // __mod__
	MagicRmod                // __rmod__
	MagicPow                 // __pow__
	MagicRpow                // __rpow__
	MagicLshift              // __lshift__
	MagicRshift              // __rshift__
	MagicAnd                 // __and__
	MagicOr                  // __or__
	MagicXor                 // __xor__
	MagicMatmul              // __matmul__
	MagicGetitem             // __getitem__
	MagicSetitem             // __setitem__
	MagicDelitem             // __delitem__
	MagicContains            // __contains__
	MagicCall                // __call__
	MagicGetattr             // __getattr__
	MagicSetattr             // __setattr__
	MagicDelattr             // __delattr__
	MagicEnter               // __enter__
	MagicExit                // __exit__
	MagicDivmod              // __divmod__
	MagicRound               // __round__
	MagicMissing             // __missing__
)

var magicNameStrings = []string{
	"__new__", "__init__", "__del__", "__repr__", "__str__", "__hash__",
	"__len__", "__iter__", "__next__", "__neg__", "__invert__",
	"__eq__", "__ne__", "__lt__", "__le__", "__gt__", "__ge__",
	"__add__", "__radd__", "__sub__", "__rsub__", "__mul__", "__rmul__",
	"__truediv__", "__rtruediv__", "__floordiv__", "__rfloordiv__",
	"__mod__", "__rmod__", "__pow__", "__rpow__",
	"__lshift__", "__rshift__", "__and__", "__or__", "__xor__", "__matmul__",
	"__getitem__", "__setitem__", "__delitem__", "__contains__",
	"__call__", "__getattr__", "__setattr__", "__delattr__",
	"__enter__", "__exit__", "__divmod__", "__round__", "__missing__",
}

// IsMagicName reports whether n is one of the reserved operator-hook names.
func IsMagicName(n Name) bool {
	return n >= MagicNew && n <= MagicMissing
}

// ---------------------------------------------------------------------------
// Name pool
// ---------------------------------------------------------------------------

// namePool interns name strings to dense ids. The pool is process-wide
// and shared by all interpreter instances, so it is always locked.
type namePool struct {
	mu     sync.RWMutex
	byName map[string]Name
	byID   []string
}

var names = newNamePool()

func newNamePool() *namePool {
	p := &namePool{
		byName: make(map[string]Name, 256),
		byID:   make([]string, 1, 256), // id 0 reserved
	}
	for i, s := range magicNameStrings {
		p.byName[s] = Name(i + 1)
		p.byID = append(p.byID, s)
	}
	if Name(len(p.byID)-1) != MagicMissing {
		panic("vm: magic name bank out of sync")
	}
	return p
}

// NameFor returns the dense id for a name string, interning it on first
// use. Ids are stable for the lifetime of the process.
func NameFor(s string) Name {
	// Fast path: read-only lookup
	names.mu.RLock()
	if id, ok := names.byName[s]; ok {
		names.mu.RUnlock()
		return id
	}
	names.mu.RUnlock()

	names.mu.Lock()
	defer names.mu.Unlock()

	// Double-check after acquiring write lock
	if id, ok := names.byName[s]; ok {
		return id
	}

	id := Name(len(names.byID))
	names.byName[s] = id
	names.byID = append(names.byID, s)
	return id
}

// LookupName returns the id for a name string without interning,
// or 0 and false if the string has never been interned.
func LookupName(s string) (Name, bool) {
	names.mu.RLock()
	defer names.mu.RUnlock()
	id, ok := names.byName[s]
	return id, ok
}

// NameStr returns the string for a name id, or "" if invalid.
func NameStr(n Name) string {
	names.mu.RLock()
	defer names.mu.RUnlock()
	if int(n) >= len(names.byID) {
		return ""
	}
	return names.byID[n]
}

// NameCount returns the number of interned names, including the reserved
// magic range.
func NameCount() int {
	names.mu.RLock()
	defer names.mu.RUnlock()
	return len(names.byID) - 1
}
