package vm

import "testing"

func TestNameInterning(t *testing.T) {
	a := NameFor("counter")
	b := NameFor("counter")
	if a != b {
		t.Error("same string must intern to the same id")
	}
	if NameStr(a) != "counter" {
		t.Errorf("NameStr = %q, want %q", NameStr(a), "counter")
	}
	c := NameFor("other")
	if a == c {
		t.Error("distinct strings must get distinct ids")
	}
}

func TestLookupName(t *testing.T) {
	want := NameFor("lookup_probe")
	got, ok := LookupName("lookup_probe")
	if !ok || got != want {
		t.Errorf("LookupName = (%d, %v), want (%d, true)", got, ok, want)
	}
	if _, ok := LookupName("never interned anywhere"); ok {
		t.Error("unknown string must not resolve")
	}
}

func TestMagicNamesPreinterned(t *testing.T) {
	if NameFor("__new__") != MagicNew {
		t.Error("__new__ must intern to its reserved id")
	}
	if NameFor("__missing__") != MagicMissing {
		t.Error("__missing__ must intern to its reserved id")
	}
	if NameFor("__getitem__") != MagicGetitem {
		t.Error("__getitem__ must intern to its reserved id")
	}
}

func TestIsMagicName(t *testing.T) {
	if !IsMagicName(MagicAdd) || !IsMagicName(MagicNew) || !IsMagicName(MagicMissing) {
		t.Error("reserved names are magic")
	}
	if IsMagicName(NameFor("banana")) {
		t.Error("ordinary names are not magic")
	}
	if IsMagicName(0) {
		t.Error("the zero name is not magic")
	}
}

func TestReflectedPairsAdjacent(t *testing.T) {
	pairs := [][2]Name{
		{MagicAdd, MagicRadd},
		{MagicSub, MagicRsub},
		{MagicMul, MagicRmul},
		{MagicTruediv, MagicRtruediv},
		{MagicFloordiv, MagicRfloordiv},
		{MagicMod, MagicRmod},
		{MagicPow, MagicRpow},
	}
	for _, p := range pairs {
		if p[1] != p[0]+1 {
			t.Errorf("%s and %s must be adjacent", NameStr(p[0]), NameStr(p[1]))
		}
		if reflectedOp(p[0]) != p[1] {
			t.Errorf("reflectedOp(%s) != %s", NameStr(p[0]), NameStr(p[1]))
		}
	}
	if reflectedOp(MagicAnd) != 0 {
		t.Error("bitwise ops have no reflected form")
	}
}
