// Package snapshot serializes data-value graphs to canonical CBOR so
// host programs can persist results or move them between instances.
// Only plain data round-trips: None, bool, int, float, str, bytes and
// acyclic list/tuple/dict compositions of those. Functions, modules,
// types and user objects are refused.
package snapshot

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/piccolo/vm"
)

// Format version, bumped on incompatible envelope changes.
const Version = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

const (
	kindNone = iota
	kindBool
	kindInt
	kindFloat
	kindStr
	kindBytes
	kindList
	kindTuple
	kindDict
)

// node is one value in the wire tree. Dicts carry parallel Keys/Items
// slices so insertion order survives the round trip.
type node struct {
	Kind  uint8   `cbor:"k"`
	Bool  bool    `cbor:"b,omitempty"`
	Int   int64   `cbor:"i,omitempty"`
	Float float64 `cbor:"f,omitempty"`
	Str   string  `cbor:"s,omitempty"`
	Bytes []byte  `cbor:"y,omitempty"`
	Items []*node `cbor:"v,omitempty"`
	Keys  []*node `cbor:"e,omitempty"`
}

type envelope struct {
	Version uint8 `cbor:"ver"`
	Root    *node `cbor:"root"`
}

// Marshal serializes a data value owned by m to canonical CBOR bytes.
func Marshal(m *vm.VM, v vm.Value) ([]byte, error) {
	enc := encoder{vm: m, seen: make(map[vm.Handle]bool)}
	root, err := enc.encode(v)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(&envelope{Version: Version, Root: root})
}

// Unmarshal reconstructs a snapshot inside m. The result is stored
// nowhere; callers must root it before the next allocation.
func Unmarshal(m *vm.VM, data []byte) (vm.Value, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return vm.Nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	if env.Version != Version {
		return vm.Nil, fmt.Errorf("snapshot: unsupported version %d", env.Version)
	}
	if env.Root == nil {
		return vm.Nil, fmt.Errorf("snapshot: missing root")
	}

	// The tree is rebuilt bottom-up with partial containers not yet
	// reachable from any root, so collection stays off until the whole
	// graph is handed back.
	m.Heap().Pause()
	defer m.Heap().Resume()
	return decode(m, env.Root)
}

type encoder struct {
	vm   *vm.VM
	seen map[vm.Handle]bool
}

func (e *encoder) encode(v vm.Value) (*node, error) {
	m := e.vm
	switch m.TypeOf(v) {
	case vm.TpNoneType:
		return &node{Kind: kindNone}, nil
	case vm.TpBool:
		return &node{Kind: kindBool, Bool: v.Bool()}, nil
	case vm.TpInt:
		return &node{Kind: kindInt, Int: v.Int()}, nil
	case vm.TpFloat:
		return &node{Kind: kindFloat, Float: v.Float()}, nil
	case vm.TpStr:
		return &node{Kind: kindStr, Str: m.StrContent(v)}, nil
	case vm.TpBytes:
		return &node{Kind: kindBytes, Bytes: m.BytesContent(v)}, nil
	case vm.TpList:
		return e.encodeSeq(v, kindList, m.ListItems(v))
	case vm.TpTuple:
		obj := m.Heap().Get(v.Handle())
		items := make([]vm.Value, obj.NumSlots())
		for i := range items {
			items[i] = obj.Slot(i)
		}
		return e.encodeSeq(v, kindTuple, items)
	case vm.TpDict:
		return e.encodeDict(v)
	}
	return nil, fmt.Errorf("snapshot: cannot serialize '%s' value", m.TypeName(m.TypeOf(v)))
}

func (e *encoder) encodeSeq(v vm.Value, kind uint8, items []vm.Value) (*node, error) {
	h := v.Handle()
	if e.seen[h] {
		return nil, fmt.Errorf("snapshot: cycle detected")
	}
	e.seen[h] = true
	defer delete(e.seen, h)

	n := &node{Kind: kind, Items: make([]*node, len(items))}
	for i, item := range items {
		child, err := e.encode(item)
		if err != nil {
			return nil, err
		}
		n.Items[i] = child
	}
	return n, nil
}

func (e *encoder) encodeDict(v vm.Value) (*node, error) {
	h := v.Handle()
	if e.seen[h] {
		return nil, fmt.Errorf("snapshot: cycle detected")
	}
	e.seen[h] = true
	defer delete(e.seen, h)

	n := &node{Kind: kindDict}
	var encErr error
	e.vm.DictApply(v, func(key, val vm.Value) bool {
		k, err := e.encode(key)
		if err != nil {
			encErr = err
			return false
		}
		item, err := e.encode(val)
		if err != nil {
			encErr = err
			return false
		}
		n.Keys = append(n.Keys, k)
		n.Items = append(n.Items, item)
		return true
	})
	if encErr != nil {
		return nil, encErr
	}
	return n, nil
}

func decode(m *vm.VM, n *node) (vm.Value, error) {
	switch n.Kind {
	case kindNone:
		return vm.None, nil
	case kindBool:
		return vm.NewBool(n.Bool), nil
	case kindInt:
		return vm.NewInt(n.Int), nil
	case kindFloat:
		return vm.NewFloat(n.Float), nil
	case kindStr:
		return m.NewStr(n.Str), nil
	case kindBytes:
		return m.NewBytes(n.Bytes), nil
	case kindList:
		items, err := decodeAll(m, n.Items)
		if err != nil {
			return vm.Nil, err
		}
		return m.NewList(items...), nil
	case kindTuple:
		items, err := decodeAll(m, n.Items)
		if err != nil {
			return vm.Nil, err
		}
		return m.TupleOf(items...), nil
	case kindDict:
		if len(n.Keys) != len(n.Items) {
			return vm.Nil, fmt.Errorf("snapshot: malformed dict node")
		}
		d := m.NewDict()
		for i, kn := range n.Keys {
			key, err := decode(m, kn)
			if err != nil {
				return vm.Nil, err
			}
			val, err := decode(m, n.Items[i])
			if err != nil {
				return vm.Nil, err
			}
			if !m.DictSetItem(d, key, val) {
				msg := m.FormatExc()
				m.ClearExc(-1)
				return vm.Nil, fmt.Errorf("snapshot: %s", msg)
			}
		}
		return d, nil
	}
	return vm.Nil, fmt.Errorf("snapshot: unknown node kind %d", n.Kind)
}

func decodeAll(m *vm.VM, nodes []*node) ([]vm.Value, error) {
	items := make([]vm.Value, len(nodes))
	for i, n := range nodes {
		v, err := decode(m, n)
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return items, nil
}
