// Package ikey implements the fixed-width decimal encoding used throughout
// the storage layer's composite keys, so that lexicographic byte order on
// pebble keys coincides with numeric order (ascending or descending) on the
// values embedded in them. It has no dependency on any higher-level
// package, so both the inscription and market packages can share it without
// creating an import cycle between them.
package ikey

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// descIndexC is the constant subtracted from a numeric value before
// zero-padding it, so that encoding it as a fixed-width decimal string
// sorts keys in descending numeric order under plain lexicographic
// ordering. It must exceed any value ever encoded with it.
const descIndexC uint64 = 1_000_000_000_000_000_000 // 10^18

// numIndexLen is the width every NumIndex/NumIndexDesc string is padded to.
const numIndexLen = 18

// NumIndex zero-pads n to a fixed width so that ascending numeric order and
// lexicographic byte order coincide.
func NumIndex(n uint64) string {
	return fmt.Sprintf("%0*d", numIndexLen, n)
}

// NumIndexDesc encodes n so that lexicographic order is descending numeric
// order: larger n sorts first.
func NumIndexDesc(n uint64) string {
	return fmt.Sprintf("%0*d", numIndexLen, descIndexC-n)
}

// NumIndexBig is NumIndex for values that may exceed uint64 range, such as
// marketplace unit prices. Values of numIndexLen digits or more are returned
// unpadded, so they order correctly only against values of the same width.
func NumIndexBig(n *big.Int) string {
	s := n.String()
	if len(s) >= numIndexLen {
		return s
	}
	return fmt.Sprintf("%0*s", numIndexLen, s)
}

// ParseNumIndex reads the last numIndexLen characters of key back into the
// ascending value that produced them.
func ParseNumIndex(key []byte) uint64 {
	s := string(key)
	if len(s) < numIndexLen {
		return 0
	}
	n, _ := strconv.ParseUint(s[len(s)-numIndexLen:], 10, 64)
	return n
}

// ParseNumIndexDesc is the inverse of NumIndexDesc embedded at the end of key.
func ParseNumIndexDesc(key []byte) uint64 {
	return descIndexC - ParseNumIndex(key)
}

// LastSegment returns the text after the final ':' in key, or the whole
// string if there is none.
func LastSegment(key []byte) string {
	s := string(key)
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return s
}
