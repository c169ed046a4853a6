// Package storage defines the ordered key-value contract the indexer is
// built on, independent of the concrete engine underneath it.
package storage

import (
	"encoding/binary"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Iterator mirrors the subset of pebble.Iterator the rest of the codebase
// needs, so a *pebble.Iterator satisfies it without any wrapping.
type Iterator interface {
	First() bool
	Last() bool
	Next() bool
	Prev() bool
	SeekGE(key []byte) bool
	SeekLT(key []byte) bool
	Valid() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// IterOptions bounds an iterator to a key range, [LowerBound, UpperBound).
type IterOptions struct {
	LowerBound []byte
	UpperBound []byte
}

// Txn batches a set of writes that either all land or none do.
type Txn interface {
	Put(key, val []byte) error
	Delete(key []byte) error
	Commit() error
	Close() error
}

// Store is the ordered KV contract every component in this module is built
// against. PebbleStore is the only production implementation.
type Store interface {
	Get(key []byte) ([]byte, error)
	NewIter(opts *IterOptions) (Iterator, error)
	NewTxn() Txn
	Checkpoint(dir string) error
	Close() error
}

// Direction controls which way GetItems/GetItemKeys walk a prefix range.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// Item is a single key/value pair returned from a range scan.
type Item struct {
	Key   []byte
	Value []byte
}

// GetU64 reads an 8-byte big-endian counter, returning 0 when the key is
// absent or malformed rather than propagating an error — cursors and
// counters in this module always have a well-defined zero value.
func GetU64(s Store, key []byte) uint64 {
	v, err := s.Get(key)
	if err != nil || len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

// PutU64 stages an 8-byte big-endian counter write inside a transaction.
func PutU64(t Txn, key []byte, n uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return t.Put(key, buf[:])
}

// GetString reads a raw string value, returning "" when absent.
func GetString(s Store, key []byte) string {
	v, err := s.Get(key)
	if err != nil {
		return ""
	}
	return string(v)
}

// PrefixUpperBound returns the smallest key that sorts after every key
// starting with prefix, suitable as an IterOptions.UpperBound. Prefixes in
// this module are ASCII tags, so the simple increment-last-byte approach
// used by the teacher's account key helpers never needs to carry past the
// end of the slice.
func PrefixUpperBound(prefix []byte) []byte {
	up := append([]byte(nil), prefix...)
	for i := len(up) - 1; i >= 0; i-- {
		if up[i] < 0xff {
			up[i]++
			return up[:i+1]
		}
	}
	return nil
}

// GetItems walks the key range starting with prefix. If start is nil, the
// walk begins at the edge of the range (first key for Forward, last key for
// Reverse); otherwise it begins at the key nearest to start, inclusive.
// skip entries are discarded before collection begins, then up to limit
// entries (0 means unlimited) are returned.
func GetItems(s Store, prefix, start []byte, skip, limit uint64, dir Direction) ([]Item, error) {
	iter, err := s.NewIter(&IterOptions{LowerBound: prefix, UpperBound: PrefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var valid bool
	switch {
	case dir == Forward && len(start) == 0:
		valid = iter.First()
	case dir == Forward:
		valid = iter.SeekGE(start)
	case dir == Reverse && len(start) == 0:
		valid = iter.Last()
	default:
		valid = iter.SeekGE(start)
		if valid && string(iter.Key()) != string(start) {
			valid = iter.Prev()
		} else if !valid {
			valid = iter.Last()
		}
	}

	var items []Item
	var skipped uint64
	for ; valid; {
		if skipped < skip {
			skipped++
		} else {
			if limit > 0 && uint64(len(items)) >= limit {
				break
			}
			items = append(items, Item{
				Key:   append([]byte(nil), iter.Key()...),
				Value: append([]byte(nil), iter.Value()...),
			})
		}
		if dir == Forward {
			valid = iter.Next()
		} else {
			valid = iter.Prev()
		}
	}
	return items, iter.Error()
}

// GetItemKeys is GetItems with the values discarded.
func GetItemKeys(s Store, prefix, start []byte, skip, limit uint64, dir Direction) ([][]byte, error) {
	items, err := GetItems(s, prefix, start, skip, limit, dir)
	if err != nil {
		return nil, err
	}
	keys := make([][]byte, len(items))
	for i, it := range items {
		keys[i] = it.Key
	}
	return keys, nil
}
