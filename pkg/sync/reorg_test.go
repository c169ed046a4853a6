package sync

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/insdexer/indexer/pkg/checkpoint"
	"github.com/insdexer/indexer/pkg/inscription"
	"github.com/insdexer/indexer/pkg/storage"
)

func putSyncBlockHash(t *testing.T, s storage.Store, number uint64, hash string) {
	t.Helper()
	txn := s.NewTxn()
	if err := txn.Put(inscription.KeySyncBlockHash(number), []byte(hash)); err != nil {
		t.Fatalf("put block hash: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func testCheckpoints(t *testing.T, s storage.Store) *checkpoint.Manager {
	t.Helper()
	dbDir := t.TempDir()
	return checkpoint.NewManager(s, dbDir, filepath.Join(dbDir, "checkpoints"), 100, 5, zap.NewNop())
}

func TestCheckFinalizedNoopOutsideWindow(t *testing.T) {
	s := openSyncStore(t)
	src := &fakeSource{hashes: map[uint64]string{10: "0xchain10"}}
	w := testWorker(t, s, src, Config{FinalizedBlocks: 5})
	w.headCache = 100 // far ahead of block 10: outside the finalized window

	putSyncBlockHash(t, s, 10, "0xstored10")

	if err := w.checkFinalized(context.Background(), 10); err != nil {
		t.Fatalf("checkFinalized: %v", err)
	}
	if got := storage.GetU64(s, []byte(inscription.KeyRollbackBlockNumber)); got != 0 {
		t.Fatalf("expected no rollback scheduled outside the finalized window, got %d", got)
	}
}

func TestCheckFinalizedNoopWhenHashesAgree(t *testing.T) {
	s := openSyncStore(t)
	src := &fakeSource{hashes: map[uint64]string{10: "0xsame"}}
	w := testWorker(t, s, src, Config{FinalizedBlocks: 50})
	w.headCache = 15

	putSyncBlockHash(t, s, 10, "0xsame")

	if err := w.checkFinalized(context.Background(), 10); err != nil {
		t.Fatalf("checkFinalized: %v", err)
	}
	if got := storage.GetU64(s, []byte(inscription.KeyRollbackBlockNumber)); got != 0 {
		t.Fatalf("expected no rollback scheduled when hashes agree, got %d", got)
	}
}

func TestCheckFinalizedSchedulesRollbackOnMismatch(t *testing.T) {
	s := openSyncStore(t)
	src := &fakeSource{hashes: map[uint64]string{
		8:  "0xgood8",
		9:  "0xgood9",
		10: "0xchain10reorged",
	}}
	ckpts := testCheckpoints(t, s)
	w := NewWorker(s, src, Config{FinalizedBlocks: 50}, ckpts, zap.NewNop())
	w.headCache = 15

	putSyncBlockHash(t, s, 8, "0xgood8")
	putSyncBlockHash(t, s, 9, "0xgood9")
	putSyncBlockHash(t, s, 10, "0xstored10stale")

	if err := w.checkFinalized(context.Background(), 10); err != nil {
		t.Fatalf("checkFinalized: %v", err)
	}
	target, pending := ckpts.PendingRollback()
	if !pending || target != 9 {
		t.Fatalf("expected rollback requested to the last block that still agrees (9), got target=%d pending=%v", target, pending)
	}
}

func TestCheckFinalizedIgnoresMismatchWhenRollbackAlreadyPending(t *testing.T) {
	s := openSyncStore(t)
	src := &fakeSource{hashes: map[uint64]string{
		8:  "0xgood8",
		10: "0xchain10reorged",
	}}
	ckpts := testCheckpoints(t, s)
	if err := ckpts.RequestRollback(5); err != nil {
		t.Fatalf("seed pending rollback: %v", err)
	}
	w := NewWorker(s, src, Config{FinalizedBlocks: 50}, ckpts, zap.NewNop())
	w.headCache = 15

	putSyncBlockHash(t, s, 8, "0xgood8")
	putSyncBlockHash(t, s, 10, "0xstored10stale")

	if err := w.checkFinalized(context.Background(), 10); err != nil {
		t.Fatalf("checkFinalized: %v", err)
	}
	target, pending := ckpts.PendingRollback()
	if !pending || target != 5 {
		t.Fatalf("expected the earlier pending rollback target to be left untouched, got target=%d pending=%v", target, pending)
	}
}

func TestCheckFinalizedNoopWhenNothingStoredYet(t *testing.T) {
	s := openSyncStore(t)
	src := &fakeSource{hashes: map[uint64]string{10: "0xchain10"}}
	w := testWorker(t, s, src, Config{FinalizedBlocks: 50})
	w.headCache = 15

	if err := w.checkFinalized(context.Background(), 10); err != nil {
		t.Fatalf("checkFinalized: %v", err)
	}
	if got := storage.GetU64(s, []byte(inscription.KeyRollbackBlockNumber)); got != 0 {
		t.Fatalf("expected no rollback scheduled with nothing stored for this block yet, got %d", got)
	}
}

func TestFindConsensusBlockWalksBackToAgreement(t *testing.T) {
	s := openSyncStore(t)
	src := &fakeSource{hashes: map[uint64]string{
		7: "0xgood7",
		8: "0xgood8",
		9: "0xgood9",
	}}
	w := testWorker(t, s, src, Config{})

	putSyncBlockHash(t, s, 7, "0xgood7")
	putSyncBlockHash(t, s, 8, "0xstale8")
	putSyncBlockHash(t, s, 9, "0xstale9")

	got, err := w.findConsensusBlock(context.Background(), 10)
	if err != nil {
		t.Fatalf("findConsensusBlock: %v", err)
	}
	if got != 7 {
		t.Fatalf("expected consensus at block 7, got %d", got)
	}
}

func TestFindConsensusBlockReturnsZeroWhenNeverAgrees(t *testing.T) {
	s := openSyncStore(t)
	src := &fakeSource{hashes: map[uint64]string{1: "0xchain1"}}
	w := testWorker(t, s, src, Config{})

	putSyncBlockHash(t, s, 1, "0xstale1")

	got, err := w.findConsensusBlock(context.Background(), 2)
	if err != nil {
		t.Fatalf("findConsensusBlock: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected a fall-back to genesis when no block agrees, got %d", got)
	}
}
