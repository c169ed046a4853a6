// Package checkpoint manages periodic hard-linked snapshots of the store so
// a detected reorg can roll the whole database back to a point before the
// fork without replaying history from genesis.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/insdexer/indexer/pkg/storage"
)

// Manager owns the checkpoint directory: it decides when a new snapshot is
// due, evicts the oldest ones beyond the retention window, and can restore
// the live database from one.
type Manager struct {
	store  storage.Store
	dbPath string
	dir    string
	span   uint64
	retain int
	log    *zap.Logger

	working         atomic.Bool
	rollbackRequest atomic.Uint64
}

func NewManager(store storage.Store, dbPath, dir string, span uint64, retain int, log *zap.Logger) *Manager {
	return &Manager{store: store, dbPath: dbPath, dir: dir, span: span, retain: retain, log: log}
}

// Maybe takes a checkpoint at blockNumber if it falls on the configured
// span and no checkpoint is already in flight. It runs in the background;
// errors are logged, not returned, matching the fire-and-forget snapshot
// cadence of the sync loop that calls it.
func (m *Manager) Maybe(blockNumber uint64) {
	if m.span == 0 || blockNumber%m.span != 0 {
		return
	}
	if !m.working.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer m.working.Store(false)
		defer m.evictEarlier()
		if err := m.create(blockNumber); err != nil {
			m.log.Error("checkpoint: create failed", zap.Uint64("block", blockNumber), zap.Error(err))
			return
		}
		m.log.Info("checkpoint: created", zap.Uint64("block", blockNumber))
	}()
}

// RequestRollback raises the process-wide rollback request to blockNumber,
// the operator-facing seam a future admin endpoint would call. It reports
// an error if a rollback is already pending rather than overwriting it.
func (m *Manager) RequestRollback(blockNumber uint64) error {
	if !m.rollbackRequest.CompareAndSwap(0, blockNumber) {
		return fmt.Errorf("checkpoint: rollback already in progress")
	}
	return nil
}

// PendingRollback reports the currently requested rollback target, if any.
// The inscribe loop polls this on every tick.
func (m *Manager) PendingRollback() (uint64, bool) {
	v := m.rollbackRequest.Load()
	return v, v != 0
}

func (m *Manager) create(blockNumber uint64) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(m.dir, strconv.FormatUint(blockNumber, 10))
	return m.store.Checkpoint(path)
}

// List returns every checkpointed block number found under the checkpoint
// directory, ascending.
func (m *Manager) List() ([]uint64, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []uint64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *Manager) evictEarlier() {
	checkpoints, err := m.List()
	if err != nil {
		m.log.Error("checkpoint: list failed", zap.Error(err))
		return
	}
	for len(checkpoints) > m.retain {
		oldest := checkpoints[0]
		path := filepath.Join(m.dir, strconv.FormatUint(oldest, 10))
		if err := os.RemoveAll(path); err != nil {
			m.log.Error("checkpoint: evict failed", zap.Uint64("block", oldest), zap.Error(err))
			return
		}
		m.log.Info("checkpoint: evicted", zap.Uint64("block", oldest))
		checkpoints = checkpoints[1:]
	}
}

// NearestAtOrBelow returns the most recent checkpoint at or before
// blockNumber, used to pick a restore point for a rollback target that
// doesn't itself have a checkpoint.
func (m *Manager) NearestAtOrBelow(blockNumber uint64) (uint64, bool, error) {
	checkpoints, err := m.List()
	if err != nil {
		return 0, false, err
	}
	for i := len(checkpoints) - 1; i >= 0; i-- {
		if checkpoints[i] <= blockNumber {
			return checkpoints[i], true, nil
		}
	}
	return 0, false, nil
}

// Restore replaces the live database directory with a hard-linked copy of
// the checkpoint at blockNumber. The caller must hold the store closed
// before calling this and reopen it at dbPath afterward — Restore only
// manipulates the filesystem.
func (m *Manager) Restore(blockNumber uint64) error {
	path := filepath.Join(m.dir, strconv.FormatUint(blockNumber, 10))
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("checkpoint: restore: no checkpoint at block %d: %w", blockNumber, err)
	}

	if err := os.RemoveAll(m.dbPath); err != nil {
		return err
	}
	if err := os.MkdirAll(m.dbPath, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(path, e.Name())
		dst := filepath.Join(m.dbPath, e.Name())
		if err := os.Link(src, dst); err != nil {
			return fmt.Errorf("checkpoint: restore: link %s: %w", e.Name(), err)
		}
	}
	return nil
}
