package cell

import (
	"fmt"
	"testing"
)

func TestMapAssocGetDissoc(t *testing.T) {
	m := EmptyMap
	for i := 0; i < 40; i++ {
		m = m.Assoc(Keyword(fmt.Sprintf("key-%d", i)), Long(i))
	}
	if m.Count() != 40 {
		t.Fatalf("count = %d, want 40", m.Count())
	}

	m2 := m.Assoc(Keyword("fixed-key"), Long(999))
	v, ok := m2.Get(Keyword("fixed-key"))
	if !ok {
		t.Fatal("expected key to be present")
	}
	got, _ := v.Value()
	if got.(Long) != 999 {
		t.Fatalf("value = %v, want 999", got)
	}

	m3 := m2.Dissoc(Keyword("fixed-key"))
	if _, ok := m3.Get(Keyword("fixed-key")); ok {
		t.Fatal("dissoc did not remove the key")
	}
	if m3.Count() != m2.Count()-1 {
		t.Fatalf("count after dissoc = %d, want %d", m3.Count(), m2.Count()-1)
	}
}

func TestMapPromotesAboveFlatThreshold(t *testing.T) {
	m := EmptyMap
	for i := 0; i < 3; i++ {
		m = m.Assoc(Long(i), Long(i*10))
	}
	if m.hamt != nil {
		t.Fatal("map with 3 entries should still be flat")
	}
	for i := 3; i < 20; i++ {
		m = m.Assoc(Long(i), Long(i*10))
	}
	if m.hamt == nil {
		t.Fatal("map with 20 entries should have promoted to a HAMT")
	}
	for i := 0; i < 20; i++ {
		v, ok := m.Get(Long(i))
		if !ok {
			t.Fatalf("missing key %d after promotion", i)
		}
		got, _ := v.Value()
		if got.(Long) != Long(i*10) {
			t.Fatalf("value for key %d = %v, want %d", i, got, i*10)
		}
	}
}

func TestMapIterationOrderIsFunctionOfKeys(t *testing.T) {
	build := func(order []int) Map {
		m := EmptyMap
		for _, i := range order {
			m = m.Assoc(Long(i), Long(i))
		}
		return m
	}
	a := build([]int{1, 2, 3, 4, 5})
	b := build([]int{5, 4, 3, 2, 1})
	if !Equal(a.Keys(), b.Keys()) {
		t.Fatal("iteration order must depend only on the key set, not insertion order")
	}
}

func TestMapEncodeDecodeRoundTrip(t *testing.T) {
	m := EmptyMap
	for i := 0; i < 30; i++ {
		m = m.Assoc(Long(i), Long(i*2))
	}
	enc := Encode(m)
	dec, _, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	dm, ok := dec.(Map)
	if !ok {
		t.Fatalf("decoded value is not a Map: %T", dec)
	}
	if dm.Count() != m.Count() {
		t.Fatalf("count mismatch: got %d want %d", dm.Count(), m.Count())
	}
	for i := 0; i < 30; i++ {
		v, ok := dm.Get(Long(i))
		if !ok {
			t.Fatalf("missing key %d", i)
		}
		got, _ := v.Value()
		if got.(Long) != Long(i*2) {
			t.Fatalf("value for key %d = %v, want %d", i, got, i*2)
		}
	}
}

func TestSetMembership(t *testing.T) {
	s := NewSet(Long(1), Long(2), Long(3))
	if !s.Contains(Long(2)) {
		t.Fatal("expected 2 to be a member")
	}
	if s.Contains(Long(9)) {
		t.Fatal("did not expect 9 to be a member")
	}
	s2 := s.Disj(Long(2))
	if s2.Contains(Long(2)) {
		t.Fatal("disj did not remove the member")
	}
	if !s.Contains(Long(2)) {
		t.Fatal("disj mutated the original set")
	}
}
