package sync

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/insdexer/indexer/pkg/chain"
	"github.com/insdexer/indexer/pkg/inscription"
	"github.com/insdexer/indexer/pkg/storage"
)

// fakeSource is an in-memory chain.Source, as the interface doc promises.
type fakeSource struct {
	chainID uint64
	head    uint64
	blocks  map[uint64]*chain.Block
	hashes  map[uint64]string
	logs    map[uint64]map[uint64][]chain.Log
}

func (f *fakeSource) ChainID(ctx context.Context) (uint64, error) { return f.chainID, nil }
func (f *fakeSource) HeadNumber(ctx context.Context) (uint64, error) { return f.head, nil }

func (f *fakeSource) BlockByNumber(ctx context.Context, number uint64) (*chain.Block, error) {
	b, ok := f.blocks[number]
	if !ok {
		return nil, fmt.Errorf("fake source: no block %d", number)
	}
	return b, nil
}

func (f *fakeSource) BlockHashByNumber(ctx context.Context, number uint64) (string, error) {
	h, ok := f.hashes[number]
	if !ok {
		return "", fmt.Errorf("fake source: no hash for block %d", number)
	}
	return h, nil
}

func (f *fakeSource) LogsByTxIndex(ctx context.Context, number, txIndex uint64, addrs []string) ([]chain.Log, error) {
	return f.logs[number][txIndex], nil
}

var _ chain.Source = (*fakeSource)(nil)

func openSyncStore(t *testing.T) *storage.PebbleStore {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testWorker(t *testing.T, s storage.Store, src chain.Source, cfg Config) *Worker {
	t.Helper()
	w := NewWorker(s, src, cfg, nil, zap.NewNop())
	return w
}

func TestNextBlockNumberUsesStartBlockWhenNoCursor(t *testing.T) {
	s := openSyncStore(t)
	w := testWorker(t, s, &fakeSource{}, Config{StartBlock: 42})
	if got := w.nextBlockNumber(); got != 42 {
		t.Fatalf("expected start block 42 with no cursor, got %d", got)
	}
}

func TestNextBlockNumberAdvancesPastCursor(t *testing.T) {
	s := openSyncStore(t)
	txn := s.NewTxn()
	if err := storage.PutU64(txn, []byte(inscription.KeySyncBlockNumber), 100); err != nil {
		t.Fatalf("put cursor: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	w := testWorker(t, s, &fakeSource{}, Config{StartBlock: 0})
	if got := w.nextBlockNumber(); got != 101 {
		t.Fatalf("expected cursor+1=101, got %d", got)
	}
}

func TestSaveBlockPersistsCursorsAndInscription(t *testing.T) {
	s := openSyncStore(t)
	w := testWorker(t, s, &fakeSource{}, Config{})

	block := &chain.Block{
		Header: chain.Header{Number: 5, Hash: "0xblockhash5", Timestamp: 123},
		Transactions: []chain.Transaction{
			{Hash: "0xtx1", Index: 0, BlockNumber: 5, From: "0xAAA", To: "0xBBB", Input: []byte("data:text/plain,hi")},
		},
	}
	fb := &fetchedBlock{block: block, logs: map[uint64][]chain.Log{}}

	if err := w.saveBlock(fb); err != nil {
		t.Fatalf("saveBlock: %v", err)
	}

	if got := storage.GetString(s, []byte(inscription.KeySyncBlockHash(5))); got != "0xblockhash5" {
		t.Fatalf("expected block hash persisted, got %q", got)
	}
	if got := storage.GetU64(s, []byte(inscription.KeySyncBlockNumber)); got != 5 {
		t.Fatalf("expected sync block number cursor at 5, got %d", got)
	}
	top := storage.GetU64(s, []byte(inscription.KeyInscSyncTop))
	if top != 1 {
		t.Fatalf("expected exactly one inscription extracted, cursor=%d", top)
	}

	raw, err := s.Get(inscription.KeyInscID(1))
	if err != nil {
		t.Fatalf("get primary record: %v", err)
	}
	var insc inscription.Inscription
	if err := storage.DecodeJSON(raw, &insc); err != nil {
		t.Fatalf("decode primary record: %v", err)
	}
	if insc.TxHash != "0xtx1" || insc.MimeCategory != inscription.CategoryText {
		t.Fatalf("unexpected persisted inscription: %+v", insc)
	}
}

func TestSaveBlockSkipsUnrecognizedTransactions(t *testing.T) {
	s := openSyncStore(t)
	w := testWorker(t, s, &fakeSource{}, Config{})

	block := &chain.Block{
		Header: chain.Header{Number: 6, Hash: "0xblockhash6"},
		Transactions: []chain.Transaction{
			{Hash: "0xtx1", Index: 0, BlockNumber: 6, To: "0xbbb", Input: []byte{0x01, 0x02}},
		},
	}
	fb := &fetchedBlock{block: block, logs: map[uint64][]chain.Log{}}

	if err := w.saveBlock(fb); err != nil {
		t.Fatalf("saveBlock: %v", err)
	}
	if top := storage.GetU64(s, []byte(inscription.KeyInscSyncTop)); top != 0 {
		t.Fatalf("expected no inscriptions extracted from unrecognizable calldata, cursor=%d", top)
	}
}

func TestSaveBlockAssignsSequentialIDsAcrossCalls(t *testing.T) {
	s := openSyncStore(t)
	w := testWorker(t, s, &fakeSource{}, Config{})

	first := &chain.Block{
		Header:       chain.Header{Number: 1, Hash: "0xh1"},
		Transactions: []chain.Transaction{{Hash: "0xa", Index: 0, To: "0xbbb", Input: []byte("data:text/plain,a")}},
	}
	second := &chain.Block{
		Header:       chain.Header{Number: 2, Hash: "0xh2"},
		Transactions: []chain.Transaction{{Hash: "0xb", Index: 0, To: "0xbbb", Input: []byte("data:text/plain,b")}},
	}

	if err := w.saveBlock(&fetchedBlock{block: first, logs: map[uint64][]chain.Log{}}); err != nil {
		t.Fatalf("saveBlock(1): %v", err)
	}
	if err := w.saveBlock(&fetchedBlock{block: second, logs: map[uint64][]chain.Log{}}); err != nil {
		t.Fatalf("saveBlock(2): %v", err)
	}

	if top := storage.GetU64(s, []byte(inscription.KeyInscSyncTop)); top != 2 {
		t.Fatalf("expected the sync-top cursor to reach 2 across two blocks, got %d", top)
	}
	if id := storage.GetU64(s, inscription.KeyInscTx("0xb")); id != 2 {
		t.Fatalf("expected the second block's inscription to get id 2, got %d", id)
	}
}
