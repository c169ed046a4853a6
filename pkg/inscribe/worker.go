// Package inscribe runs the strictly-ordered interpretation stage: reading
// one block's worth of raw, unresolved inscriptions at a time and running
// them through the protocol state machine.
package inscribe

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/insdexer/indexer/pkg/chain"
	"github.com/insdexer/indexer/pkg/checkpoint"
	"github.com/insdexer/indexer/pkg/inscription"
	"github.com/insdexer/indexer/pkg/storage"
	"github.com/insdexer/indexer/pkg/util"
)

// Worker reads inscriptions in id order, one fully-synced block at a time,
// and commits their interpreted state.
type Worker struct {
	store       storage.Store
	marketABI   *chain.MarketABI
	cfg         inscription.Config
	checkpoints *checkpoint.Manager
	log         *zap.Logger
	clock       util.Clock
}

func NewWorker(store storage.Store, marketABI *chain.MarketABI, cfg inscription.Config, checkpoints *checkpoint.Manager, log *zap.Logger) *Worker {
	return &Worker{store: store, marketABI: marketABI, cfg: cfg, checkpoints: checkpoints, log: log, clock: util.RealClock{}}
}

// Run repeatedly interprets the next fully-synced block until ctx is
// canceled, idling between polls when there's nothing new to do. On every
// tick it also checks for a rollback raised by the sync worker's reorg
// detector; if one is pending it persists the rollback marker and exits
// the process, relying on the next start to consume the marker and
// restore from checkpoint.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if exited, err := w.checkRollbackRequest(); exited || err != nil {
			return err
		}

		ok, err := w.inscribeNextBlock()
		if err != nil {
			w.log.Error("inscribe: block failed", zap.Error(err))
		}
		if ok {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(3 * time.Second):
		}
	}
}

// checkRollbackRequest persists any rollback target the sync worker's
// reorg detector has raised and terminates the process, mirroring the
// teacher's CLI exit-on-fatal-condition convention (cmd/sign-order).
// Recovery happens on the next start: the initializer sees the marker and
// invokes the checkpoint manager's restore before either worker runs again.
func (w *Worker) checkRollbackRequest() (bool, error) {
	if w.checkpoints == nil {
		return false, nil
	}
	target, pending := w.checkpoints.PendingRollback()
	if !pending {
		return false, nil
	}

	txn := w.store.NewTxn()
	if err := storage.PutU64(txn, []byte(inscription.KeyRollbackBlockNumber), target); err != nil {
		txn.Close()
		return false, err
	}
	if err := txn.Commit(); err != nil {
		return false, err
	}

	w.log.Warn("inscribe: rollback marker persisted, exiting for restart", zap.Uint64("target", target))
	w.log.Sync()
	os.Exit(1)
	return true, nil
}

// inscribeNextBlock interprets every inscription belonging to the next
// block that hasn't been interpreted yet, provided that block has finished
// syncing. It reports false when there is nothing ready to process.
func (w *Worker) inscribeNextBlock() (bool, error) {
	doneID := storage.GetU64(w.store, []byte(inscription.KeyInscTop))
	syncID := storage.GetU64(w.store, []byte(inscription.KeyInscSyncTop))
	if doneID >= syncID {
		return false, nil
	}

	first, err := w.getInscription(doneID + 1)
	if err != nil || first == nil {
		return false, err
	}

	syncBlocknumber := storage.GetU64(w.store, []byte(inscription.KeySyncBlockNumber))
	if first.BlockNumber >= syncBlocknumber {
		return false, nil
	}

	block, err := w.loadBlock(doneID+1, first.BlockNumber)
	if err != nil {
		return false, err
	}
	if len(block) == 0 {
		return false, nil
	}

	ctx := inscription.NewContext(w.store, w.marketABI, w.cfg)
	for _, insc := range block {
		ctx.Add(insc)
	}
	ctx.Inscribe()

	txn := w.store.NewTxn()
	defer txn.Close()
	if err := ctx.Save(txn); err != nil {
		return false, err
	}
	if err := txn.Commit(); err != nil {
		return false, err
	}

	w.log.Info("inscribe: committed block", zap.Uint64("block", first.BlockNumber), zap.Int("count", len(block)))
	return true, nil
}

// loadBlock reads every inscription starting at id belonging to
// blockNumber, stopping at the first id that belongs to a later block or
// doesn't exist yet.
func (w *Worker) loadBlock(id, blockNumber uint64) ([]*inscription.Inscription, error) {
	var out []*inscription.Inscription
	for {
		insc, err := w.getInscription(id)
		if err != nil {
			return nil, err
		}
		if insc == nil || insc.BlockNumber != blockNumber {
			break
		}
		out = append(out, insc)
		id++
	}
	return out, nil
}

func (w *Worker) getInscription(id uint64) (*inscription.Inscription, error) {
	v, err := w.store.Get(inscription.KeyInscID(id))
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	var insc inscription.Inscription
	if err := storage.DecodeJSON(v, &insc); err != nil {
		return nil, err
	}
	insc.HydrateJSON()
	return &insc, nil
}
