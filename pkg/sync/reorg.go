package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/insdexer/indexer/pkg/chain"
	"github.com/insdexer/indexer/pkg/inscription"
	"github.com/insdexer/indexer/pkg/storage"
)

// checkFinalized compares the stored hash for blockNumber against the
// chain's current view once blockNumber is within the finalized window
// behind the head, and schedules a rollback if they've diverged.
func (w *Worker) checkFinalized(ctx context.Context, blockNumber uint64) error {
	w.mu.Lock()
	head := w.headCache
	w.mu.Unlock()
	if head < blockNumber || head-blockNumber >= w.cfg.FinalizedBlocks {
		return nil
	}

	storedHash := storage.GetString(w.store, []byte(inscription.KeySyncBlockHash(blockNumber)))
	if storedHash == "" {
		return nil
	}

	chainHash, err := chain.WithRetry(ctx, w.log, w.clock, "finalized hash", func() (string, error) {
		return w.source.BlockHashByNumber(ctx, blockNumber)
	})
	if err != nil {
		return err
	}
	if storedHash == chainHash {
		return nil
	}

	w.log.Error("sync: reorg detected", zap.Uint64("block", blockNumber),
		zap.String("stored", storedHash), zap.String("chain", chainHash))

	consensusBlock, err := w.findConsensusBlock(ctx, blockNumber)
	if err != nil {
		return fmt.Errorf("sync: find consensus block: %w", err)
	}

	if err := w.checkpoints.RequestRollback(consensusBlock); err != nil {
		w.log.Warn("sync: rollback request ignored, one already pending", zap.Error(err))
		return nil
	}

	w.log.Warn("sync: rollback requested", zap.Uint64("to_block", consensusBlock))
	return nil
}

// findConsensusBlock walks backward from startBlock-1 comparing the stored
// block hash against the chain's, returning the first block where they
// agree again.
func (w *Worker) findConsensusBlock(ctx context.Context, startBlock uint64) (uint64, error) {
	blockNumber := startBlock
	for blockNumber > 0 {
		blockNumber--
		storedHash := storage.GetString(w.store, []byte(inscription.KeySyncBlockHash(blockNumber)))
		if storedHash == "" {
			continue
		}
		chainHash, err := chain.WithRetry(ctx, w.log, w.clock, "consensus hash", func() (string, error) {
			return w.source.BlockHashByNumber(ctx, blockNumber)
		})
		if err != nil {
			return 0, err
		}
		if storedHash == chainHash {
			return blockNumber, nil
		}
		w.log.Warn("sync: consensus mismatch", zap.Uint64("block", blockNumber),
			zap.String("stored", storedHash), zap.String("chain", chainHash))
	}
	return 0, nil
}
