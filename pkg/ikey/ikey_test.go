package ikey

import (
	"math/big"
	"sort"
	"testing"
)

func TestNumIndexRoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 42, 1_000_000, 999_999_999_999_999_999} {
		got := ParseNumIndex([]byte(NumIndex(n)))
		if got != n {
			t.Errorf("NumIndex round trip: encoded %d, decoded %d", n, got)
		}
	}
}

func TestNumIndexSortsAscending(t *testing.T) {
	values := []uint64{500, 1, 9999999999, 2, 0}
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = NumIndex(v)
	}
	sorted := append([]string(nil), encoded...)
	sort.Strings(sorted)

	want := append([]uint64(nil), values...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	for i, s := range sorted {
		if ParseNumIndex([]byte(s)) != want[i] {
			t.Fatalf("position %d: lexicographic order does not match ascending numeric order", i)
		}
	}
}

func TestNumIndexDescRoundTripAndOrder(t *testing.T) {
	values := []uint64{1, 2, 3, 1000}
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = NumIndexDesc(v)
		if got := ParseNumIndexDesc([]byte(encoded[i])); got != v {
			t.Errorf("NumIndexDesc round trip: encoded %d, decoded %d", v, got)
		}
	}

	sorted := append([]string(nil), encoded...)
	sort.Strings(sorted)
	// lexicographic ascending on the desc encoding should be descending numeric order
	for i := 1; i < len(sorted); i++ {
		if ParseNumIndexDesc([]byte(sorted[i])) > ParseNumIndexDesc([]byte(sorted[i-1])) {
			t.Fatalf("NumIndexDesc did not sort descending: %v", values)
		}
	}
}

func TestNumIndexBigNarrowValueIsPadded(t *testing.T) {
	got := NumIndexBig(big.NewInt(42))
	if len(got) != numIndexLen {
		t.Fatalf("expected padded width %d, got %d (%q)", numIndexLen, len(got), got)
	}
}

func TestNumIndexBigWideValuePassesThrough(t *testing.T) {
	wide := new(big.Int)
	wide.SetString("123456789012345678901234567890", 10)
	got := NumIndexBig(wide)
	if got != wide.String() {
		t.Fatalf("expected unpadded wide value to pass through, got %q", got)
	}
}

func TestLastSegment(t *testing.T) {
	cases := map[string]string{
		"a:b:c":    "c",
		"noColons": "noColons",
		"a:":       "",
		":b":       "b",
	}
	for in, want := range cases {
		if got := LastSegment([]byte(in)); got != want {
			t.Errorf("LastSegment(%q) = %q, want %q", in, got, want)
		}
	}
}
