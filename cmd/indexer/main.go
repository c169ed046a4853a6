package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/insdexer/indexer/params"
	"github.com/insdexer/indexer/pkg/chain"
	"github.com/insdexer/indexer/pkg/checkpoint"
	"github.com/insdexer/indexer/pkg/inscribe"
	"github.com/insdexer/indexer/pkg/inscription"
	"github.com/insdexer/indexer/pkg/storage"
	"github.com/insdexer/indexer/pkg/sync"
	"github.com/insdexer/indexer/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Log.LogFile, cfg.LogLevel())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("indexer_starting",
		zap.String("rpc", cfg.Chain.RPCURL),
		zap.Uint64("start_block", cfg.Chain.StartBlock),
		zap.Int("market_addrs", len(cfg.Protocol.MarketAddrs)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, checkpoints, err := openStoreApplyingPendingRollback(cfg, logger)
	if err != nil {
		logger.Fatal("open store failed", zap.Error(err))
	}
	defer store.Close()

	if cfg.Protocol.Reindex {
		logger.Warn("reindex_requested: deleting secondary indices")
		if err := inscription.Reindex(store); err != nil {
			logger.Fatal("reindex failed", zap.Error(err))
		}
		logger.Info("reindex_complete: rerun without REINDEX to re-derive indices")
		return
	}

	source, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		logger.Fatal("dial chain source failed", zap.Error(err))
	}

	if id, err := source.ChainID(ctx); err != nil {
		logger.Warn("chain id check failed", zap.Error(err))
	} else if cfg.Chain.ChainID != 0 && id != cfg.Chain.ChainID {
		logger.Fatal("chain id mismatch",
			zap.Uint64("configured", cfg.Chain.ChainID), zap.Uint64("actual", id))
	}

	marketABI, err := chain.NewMarketABI()
	if err != nil {
		logger.Fatal("parse market abi failed", zap.Error(err))
	}

	syncWorker := sync.NewWorker(store, source, cfg.SyncConfig(), checkpoints, logger)
	inscribeWorker := inscribe.NewWorker(store, marketABI, cfg.InscriptionConfig(), checkpoints, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return syncWorker.Run(gctx) })
	g.Go(func() error { return inscribeWorker.Run(gctx) })

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		logger.Error("indexer stopped with error", zap.Error(err))
	}
	logger.Info("indexer_stopped")
}

// openStoreApplyingPendingRollback opens the store and, if a prior run's
// reorg detector left a rollback target behind, restores the nearest
// checkpoint at or below it and reopens before handing the store back.
// A detected reorg must never reach the sync/inscribe workers.
func openStoreApplyingPendingRollback(cfg params.Config, logger *zap.Logger) (*storage.PebbleStore, *checkpoint.Manager, error) {
	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, err
	}
	checkpoints := checkpoint.NewManager(store, cfg.Storage.DBPath, cfg.Checkpoint.Path,
		cfg.Checkpoint.Span, cfg.Checkpoint.Retain, logger)

	target := storage.GetU64(store, []byte(inscription.KeyRollbackBlockNumber))
	if target == 0 {
		return store, checkpoints, nil
	}

	restorePoint, ok, err := checkpoints.NearestAtOrBelow(target)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if !ok {
		logger.Warn("rollback scheduled but no checkpoint available", zap.Uint64("target", target))
		return store, checkpoints, nil
	}

	logger.Warn("restoring from checkpoint", zap.Uint64("target", target), zap.Uint64("checkpoint", restorePoint))
	if err := store.Close(); err != nil {
		return nil, nil, err
	}
	if err := checkpoints.Restore(restorePoint); err != nil {
		return nil, nil, err
	}

	store, err = storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, err
	}
	checkpoints = checkpoint.NewManager(store, cfg.Storage.DBPath, cfg.Checkpoint.Path,
		cfg.Checkpoint.Span, cfg.Checkpoint.Retain, logger)
	logger.Info("rollback restore complete", zap.Uint64("checkpoint", restorePoint))
	return store, checkpoints, nil
}
