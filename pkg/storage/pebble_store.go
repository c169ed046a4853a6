package storage

import (
	"github.com/cockroachdb/pebble"
)

// PebbleStore is the production Store, backed by a single pebble.DB. Tuning
// mirrors an ingest-heavy workload: a larger block cache and memtable than
// pebble's defaults, since the sync and inscribe stages both write every
// block.
type PebbleStore struct {
	db   *pebble.DB
	path string
}

// Open opens (creating if absent) a pebble database at path.
func Open(path string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize: 64 << 20,
		Cache:        pebble.NewCache(128 << 20),
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db, path: path}, nil
}

func (s *PebbleStore) Get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	out := append([]byte(nil), v...)
	return out, closer.Close()
}

func (s *PebbleStore) NewIter(opts *IterOptions) (Iterator, error) {
	popts := &pebble.IterOptions{}
	if opts != nil {
		popts.LowerBound = opts.LowerBound
		popts.UpperBound = opts.UpperBound
	}
	return s.db.NewIter(popts)
}

func (s *PebbleStore) NewTxn() Txn {
	return &pebbleTxn{batch: s.db.NewBatch()}
}

// Checkpoint hard-links every live sstable into dir, producing a
// point-in-time snapshot without copying data. This is the primitive the
// checkpoint manager builds its rollback mechanism on.
func (s *PebbleStore) Checkpoint(dir string) error {
	return s.db.Checkpoint(dir)
}

func (s *PebbleStore) Close() error { return s.db.Close() }

type pebbleTxn struct {
	batch *pebble.Batch
}

func (t *pebbleTxn) Put(key, val []byte) error { return t.batch.Set(key, val, nil) }
func (t *pebbleTxn) Delete(key []byte) error   { return t.batch.Delete(key, nil) }
func (t *pebbleTxn) Commit() error             { return t.batch.Commit(pebble.Sync) }
func (t *pebbleTxn) Close() error              { return t.batch.Close() }

var _ Store = (*PebbleStore)(nil)
