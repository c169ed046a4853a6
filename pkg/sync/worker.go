// Package sync runs the high-throughput fetch stage: pulling blocks off the
// chain source, extracting raw inscriptions from their transactions, and
// committing them unresolved. Interpreting them into verified protocol
// state is a separate, strictly-ordered stage (pkg/inscribe).
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/insdexer/indexer/pkg/chain"
	"github.com/insdexer/indexer/pkg/checkpoint"
	"github.com/insdexer/indexer/pkg/inscription"
	"github.com/insdexer/indexer/pkg/storage"
	"github.com/insdexer/indexer/pkg/util"
)

// Config bounds the fetch stage's concurrency and chain-confirmation policy.
type Config struct {
	StartBlock      uint64
	WorkerCount     int
	BufferLength    int
	ConfirmBlocks   uint64
	FinalizedBlocks uint64
	MarketAddrs     map[string]bool
}

type fetchedBlock struct {
	block *chain.Block
	logs  map[uint64][]chain.Log // by tx index, market-contract logs only
}

// Worker fetches blocks concurrently into a bounded in-memory buffer, then
// drains them strictly in order onto the store — mirroring the
// fetch-ahead/save-in-order split of the reference sync stage, adapted to
// goroutines plus a mutex-guarded map instead of an actor-per-block runtime.
type Worker struct {
	store       storage.Store
	source      chain.Source
	cfg         Config
	log         *zap.Logger
	clock       util.Clock
	checkpoints *checkpoint.Manager

	mu        sync.Mutex
	pending   map[uint64]*fetchedBlock
	inFlight  int
	headCache uint64
}

func NewWorker(store storage.Store, source chain.Source, cfg Config, checkpoints *checkpoint.Manager, log *zap.Logger) *Worker {
	return &Worker{
		store:       store,
		source:      source,
		cfg:         cfg,
		checkpoints: checkpoints,
		log:         log,
		clock:       util.RealClock{},
		pending:     make(map[uint64]*fetchedBlock),
	}
}

// Run launches the fetch loop and the save loop and blocks until ctx is
// canceled or either loop returns a fatal error.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- w.runFetch(ctx) }()
	go func() { errCh <- w.runSave(ctx) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (w *Worker) nextBlockNumber() uint64 {
	n := storage.GetU64(w.store, []byte(inscription.KeySyncBlockNumber))
	if n < w.cfg.StartBlock {
		return w.cfg.StartBlock
	}
	return n + 1
}

// runFetch keeps launching bounded fetch goroutines for the next unfetched
// blocks up to the chain's confirmed head, backing off when the in-memory
// buffer or worker pool is full.
func (w *Worker) runFetch(ctx context.Context) error {
	next := w.nextBlockNumber()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		head, err := chain.WithRetry(ctx, w.log, w.clock, "head number", func() (uint64, error) {
			return w.source.HeadNumber(ctx)
		})
		if err != nil {
			return fmt.Errorf("sync: fetch head: %w", err)
		}
		w.mu.Lock()
		w.headCache = head
		w.mu.Unlock()

		if head < w.cfg.ConfirmBlocks {
			if !w.sleep(ctx, 3*time.Second) {
				return ctx.Err()
			}
			continue
		}
		target := head - w.cfg.ConfirmBlocks

		if next > target {
			if !w.sleep(ctx, 3*time.Second) {
				return ctx.Err()
			}
			continue
		}

		w.mu.Lock()
		room := w.cfg.WorkerCount - w.inFlight
		bufferRoom := w.cfg.BufferLength - len(w.pending)
		w.mu.Unlock()
		if room <= 0 || bufferRoom <= 0 {
			if !w.sleep(ctx, 10*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		launch := target - next + 1
		if uint64(room) < launch {
			launch = uint64(room)
		}
		if uint64(bufferRoom) < launch {
			launch = uint64(bufferRoom)
		}
		if launch == 0 {
			if !w.sleep(ctx, 10*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		for i := uint64(0); i < launch; i++ {
			w.launchFetch(ctx, next)
			next++
		}
	}
}

func (w *Worker) launchFetch(ctx context.Context, blockNumber uint64) {
	w.mu.Lock()
	w.inFlight++
	w.mu.Unlock()

	go func() {
		defer func() {
			w.mu.Lock()
			w.inFlight--
			w.mu.Unlock()
		}()

		block, err := chain.WithRetry(ctx, w.log, w.clock, "block fetch", func() (*chain.Block, error) {
			return w.source.BlockByNumber(ctx, blockNumber)
		})
		if err != nil {
			w.log.Error("sync: block fetch failed", zap.Uint64("block", blockNumber), zap.Error(err))
			return
		}

		marketAddrs := make([]string, 0, len(w.cfg.MarketAddrs))
		for addr := range w.cfg.MarketAddrs {
			marketAddrs = append(marketAddrs, addr)
		}
		logs := make(map[uint64][]chain.Log)
		for _, tx := range block.Transactions {
			if !w.cfg.MarketAddrs[tx.To] {
				continue
			}
			txLogs, err := chain.WithRetry(ctx, w.log, w.clock, "tx logs", func() ([]chain.Log, error) {
				return w.source.LogsByTxIndex(ctx, blockNumber, tx.Index, marketAddrs)
			})
			if err != nil {
				w.log.Error("sync: log fetch failed", zap.Uint64("block", blockNumber), zap.Uint64("tx", tx.Index), zap.Error(err))
				return
			}
			if len(txLogs) > 0 {
				logs[tx.Index] = txLogs
			}
		}

		w.mu.Lock()
		w.pending[blockNumber] = &fetchedBlock{block: block, logs: logs}
		w.mu.Unlock()

		w.log.Info("sync: fetched block", zap.Uint64("block", blockNumber), zap.Int("txs", len(block.Transactions)))
	}()
}

// runSave drains fetched blocks strictly in order, extracting and committing
// each one's raw inscriptions before advancing the sync cursor.
func (w *Worker) runSave(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		blockNumber := w.nextBlockNumber()
		w.mu.Lock()
		fb, ok := w.pending[blockNumber]
		w.mu.Unlock()
		if !ok {
			if !w.sleep(ctx, 10*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		if err := w.saveBlock(fb); err != nil {
			return fmt.Errorf("sync: save block %d: %w", blockNumber, err)
		}

		if err := w.checkFinalized(ctx, blockNumber); err != nil {
			w.log.Error("sync: finalized check failed", zap.Error(err))
		}
		if w.checkpoints != nil {
			w.checkpoints.Maybe(blockNumber)
		}

		w.mu.Lock()
		delete(w.pending, blockNumber)
		w.mu.Unlock()
	}
}

func (w *Worker) saveBlock(fb *fetchedBlock) error {
	txn := w.store.NewTxn()
	defer txn.Close()

	nextID := storage.GetU64(w.store, []byte(inscription.KeyInscSyncTop)) + 1
	count := 0

	for _, tx := range fb.block.Transactions {
		insc := inscription.Extract(&tx, fb.block, fb.logs[tx.Index], w.cfg.MarketAddrs)
		if insc == nil {
			continue
		}
		insc.ID = nextID
		if err := inscription.PutSyncIndices(txn, insc); err != nil {
			return err
		}
		nextID++
		count++
	}

	if err := txn.Put([]byte(inscription.KeySyncBlockHash(fb.block.Number)), []byte(fb.block.Hash)); err != nil {
		return err
	}
	if err := storage.PutU64(txn, []byte(inscription.KeySyncBlockNumber), fb.block.Number); err != nil {
		return err
	}
	if err := storage.PutU64(txn, []byte(inscription.KeyInscSyncTop), nextID-1); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}

	w.log.Info("sync: saved block", zap.Uint64("block", fb.block.Number), zap.Int("inscriptions", count))
	return nil
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-w.clock.After(d):
		return true
	}
}
