package cell

import "testing"

func TestVectorAppendGet(t *testing.T) {
	v := EmptyVector
	const n = 200
	for i := 0; i < n; i++ {
		v = v.Append(NewRef(Long(i)))
	}
	if v.Count() != n {
		t.Fatalf("count = %d, want %d", v.Count(), n)
	}
	for i := 0; i < n; i++ {
		got, _ := v.Get(i).Value()
		if got.(Long) != Long(i) {
			t.Fatalf("get(%d) = %v, want %d", i, got, i)
		}
	}
}

func TestVectorAssocPreservesOlderVersion(t *testing.T) {
	v := EmptyVector
	for i := 0; i < 40; i++ {
		v = v.Append(NewRef(Long(i)))
	}
	v2 := v.Assoc(17, NewRef(Long(-1)))

	got, _ := v2.Get(17).Value()
	if got.(Long) != Long(-1) {
		t.Fatalf("assoc did not take effect: %v", got)
	}
	orig, _ := v.Get(17).Value()
	if orig.(Long) != Long(17) {
		t.Fatalf("assoc mutated the original vector: %v", orig)
	}
}

func TestVectorSubVectorIdentity(t *testing.T) {
	v := EmptyVector
	for i := 0; i < 33; i++ {
		v = v.Append(NewRef(Long(i)))
	}
	sub := v.SubVector(0, v.Count())
	if !Equal(sub, v) {
		t.Fatal("sub-vector(v, 0, count(v)) must equal v")
	}
}

func TestVectorCommonPrefixLength(t *testing.T) {
	a := NewVector(Long(1), Long(2), Long(3), Long(4))
	b := NewVector(Long(1), Long(2), Long(9), Long(4))
	if got := a.CommonPrefixLength(b); got != 2 {
		t.Fatalf("common prefix length = %d, want 2", got)
	}
}

func TestVectorEncodeDecodeRoundTrip(t *testing.T) {
	v := EmptyVector
	for i := 0; i < 50; i++ {
		v = v.Append(NewRef(Long(i * i)))
	}
	enc := Encode(v)
	dec, _, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	dv, ok := dec.(Vector)
	if !ok {
		t.Fatalf("decoded value is not a Vector: %T", dec)
	}
	if dv.Count() != v.Count() {
		t.Fatalf("count mismatch: got %d want %d", dv.Count(), v.Count())
	}
	for i := 0; i < v.Count(); i++ {
		a, _ := v.Get(i).Value()
		b, _ := dv.Get(i).Value()
		if !Equal(a, b) {
			t.Fatalf("element %d mismatch: %v vs %v", i, a, b)
		}
	}
}
