// Package ingest drives event ingestion: it tails new blocks, backfills
// gaps in chunks, and applies decoded protocol events to the balance ledger
// behind a durable checkpoint.
package ingest

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lendingScope/internal/ledger"
	"lendingScope/internal/model"
	"lendingScope/internal/protocol"
	"lendingScope/internal/storage"
)

// Source is the chain access the controller needs: historical log fetches,
// block timestamps, and a stream of new block numbers.
type Source interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]model.RawLog, error)
	BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error)
	WatchBlockNumber(ctx context.Context) (<-chan uint64, <-chan error, error)
}

// ReserveRefresher updates the stored reserve snapshot and reports the token
// addresses whose logs should be watched.
type ReserveRefresher interface {
	Refresh(ctx context.Context, currentTimestamp uint64) ([]common.Address, error)
}

// AssetResolver maps a protocol token address to its underlying reserve
// asset.
type AssetResolver interface {
	Underlying(ctx context.Context, token common.Address) (common.Address, error)
}

// Config holds runtime settings for the controller.
type Config struct {
	// StartBlock seeds the checkpoint when none was persisted yet.
	StartBlock uint64
	// ChunkSize bounds the block span of one backfill fetch. A gap of at
	// least one chunk switches the controller into recovery mode.
	ChunkSize uint64
	// LendingPool is watched alongside the reserve tokens for the
	// collateral flag events it emits.
	LendingPool  common.Address
	MaxRetries   int
	RetryBackoff time.Duration
}

// Controller is the ingestion state machine. It processes block
// notifications strictly sequentially: ledger mutation and checkpoint
// advancement are not safe under concurrent application.
type Controller struct {
	cfg         Config
	source      Source
	refresher   ReserveRefresher
	resolver    AssetResolver
	decoder     *protocol.Decoder
	ledger      *ledger.BalanceLedger
	checkpoints storage.CheckpointStore
	logger      *zap.Logger

	cp       model.Checkpoint
	watched  []common.Address
	replayed bool
}

// NewController builds an ingestion controller.
func NewController(
	cfg Config,
	source Source,
	refresher ReserveRefresher,
	resolver AssetResolver,
	decoder *protocol.Decoder,
	balanceLedger *ledger.BalanceLedger,
	checkpoints storage.CheckpointStore,
	logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:         cfg,
		source:      source,
		refresher:   refresher,
		resolver:    resolver,
		decoder:     decoder,
		ledger:      balanceLedger,
		checkpoints: checkpoints,
		logger:      logger,
	}
}

// Run subscribes to new block numbers and processes them until the context
// is cancelled or a fatal error occurs.
func (c *Controller) Run(ctx context.Context) error {
	if c.cfg.ChunkSize == 0 {
		return fmt.Errorf("chunk size must be greater than zero")
	}

	cp, ok, err := c.checkpoints.Load(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if ok {
		c.cp = cp
		c.logger.Info("resume from checkpoint",
			zap.Uint64("block", cp.Block),
			zap.Uint64("log_index", cp.LogIndex))
	} else {
		c.cp = model.Checkpoint{Block: c.cfg.StartBlock}
		// Nothing was applied before, so there is no partial block to
		// replay.
		c.replayed = true
		c.logger.Info("starting fresh", zap.Uint64("block", c.cfg.StartBlock))
	}

	blocks, errs, err := c.source.WatchBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("watch blocks: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return fmt.Errorf("block subscription: %w", err)
		case observed, open := <-blocks:
			if !open {
				return fmt.Errorf("block stream closed")
			}
			if err := c.step(ctx, observed); err != nil {
				return err
			}
		}
	}
}

// step processes one block notification end to end.
func (c *Controller) step(ctx context.Context, observed uint64) error {
	timestamp, err := c.blockTimestampWithRetry(ctx, observed)
	if err != nil {
		return fmt.Errorf("block timestamp %d: %w", observed, err)
	}
	tokens, err := c.refresher.Refresh(ctx, timestamp)
	if err != nil {
		return fmt.Errorf("refresh reserves: %w", err)
	}
	c.watched = append(tokens, c.cfg.LendingPool)

	if !c.replayed {
		if err := c.replayPartialBlock(ctx); err != nil {
			return err
		}
		c.replayed = true
	}

	if observed == 0 {
		return nil
	}
	target := observed - 1
	if target <= c.cp.Block {
		return nil
	}

	if (target-c.cp.Block)/c.cfg.ChunkSize >= 1 {
		return c.recover(ctx, target)
	}
	return c.liveStep(ctx, target)
}

// replayPartialBlock re-fetches the checkpointed block and re-applies only
// the logs past the checkpointed log index. This covers a crash that
// persisted the block number but not every log within it.
func (c *Controller) replayPartialBlock(ctx context.Context) error {
	c.logger.Info("replaying partial block",
		zap.Uint64("block", c.cp.Block),
		zap.Uint64("log_index", c.cp.LogIndex))

	logs, err := c.filterLogsWithRetry(ctx, c.cp.Block, c.cp.Block)
	if err != nil {
		return fmt.Errorf("replay block %d: %w", c.cp.Block, err)
	}
	return c.applyLogs(ctx, logs)
}

// liveStep catches up to target one fetch at a time.
func (c *Controller) liveStep(ctx context.Context, target uint64) error {
	logs, err := c.filterLogsWithRetry(ctx, c.cp.Block+1, target)
	if err != nil {
		return fmt.Errorf("filter logs: %w", err)
	}
	if err := c.applyLogs(ctx, logs); err != nil {
		return err
	}
	return c.advanceBlock(ctx, target)
}

// recover backfills the gap up to target in chunks. Live notifications that
// arrive meanwhile are handled naturally: by the time they are read, the
// checkpoint has moved past them and they reduce to no-ops.
func (c *Controller) recover(ctx context.Context, target uint64) error {
	chunks, err := SplitGap(c.cp.Block, target, c.cfg.ChunkSize)
	if err != nil {
		return err
	}

	total := target - c.cp.Block
	c.logger.Info("entering recovery",
		zap.Uint64("from", c.cp.Block+1),
		zap.Uint64("to", target),
		zap.Uint64("gap", total),
		zap.Int("chunks", len(chunks)))

	start := time.Now()
	var done uint64
	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logs, err := c.filterLogsWithRetry(ctx, chunk.From, chunk.To)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}
		if err := c.applyLogs(ctx, logs); err != nil {
			return err
		}
		if err := c.advanceBlock(ctx, chunk.To); err != nil {
			return err
		}

		done += chunk.To - chunk.From + 1
		elapsed := time.Since(start).Seconds()
		if elapsed > 0 {
			rate := float64(done) / elapsed
			remaining := float64(total-done) / rate
			c.logger.Info("recovery progress",
				zap.Uint64("block", chunk.To),
				zap.Int("logs", len(logs)),
				zap.Float64("blocks_per_sec", rate),
				zap.Float64("eta_sec", remaining))
		}
	}

	c.logger.Info("recovery complete", zap.Uint64("block", c.cp.Block))
	return nil
}

// applyLogs decodes and applies a batch in ascending (block, logIndex)
// order. Ordering matters: transfer legs and sequential mint/burn events
// are order-dependent when balances approach zero.
func (c *Controller) applyLogs(ctx context.Context, logs []model.RawLog) error {
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].LogIndex < logs[j].LogIndex
	})

	for _, raw := range logs {
		if c.cp.Covers(raw.BlockNumber, raw.LogIndex) {
			continue
		}
		ev, ok, err := c.decoder.Decode(raw)
		if err != nil {
			return fmt.Errorf("decode log %d:%d: %w", raw.BlockNumber, raw.LogIndex, err)
		}
		if !ok {
			continue
		}
		if err := c.applyEvent(ctx, ev); err != nil {
			return fmt.Errorf("apply %s at %d:%d: %w", ev.Kind, ev.BlockNumber, ev.LogIndex, err)
		}

		c.cp = model.Checkpoint{Block: ev.BlockNumber, LogIndex: ev.LogIndex}
		if err := c.checkpoints.Save(ctx, c.cp); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	return nil
}

func (c *Controller) applyEvent(ctx context.Context, ev model.Event) error {
	switch ev.Kind {
	case model.CollateralEnabled:
		return c.ledger.SetCollateralFlag(ctx, ev.User.Hex(), ev.Reserve.Hex(), true)
	case model.CollateralDisabled:
		return c.ledger.SetCollateralFlag(ctx, ev.User.Hex(), ev.Reserve.Hex(), false)
	}

	asset, err := c.resolver.Underlying(ctx, ev.Token)
	if err != nil {
		return fmt.Errorf("resolve underlying of %s: %w", ev.Token.Hex(), err)
	}
	scaled, err := ledger.ScaleAmount(ev.Amount, ev.Index)
	if err != nil {
		return err
	}

	switch ev.Kind {
	case model.SupplyMint:
		return c.ledger.ApplyDelta(ctx, ev.User.Hex(), asset.Hex(), scaled, ledger.SupplyLeg)
	case model.SupplyBurn:
		return c.ledger.ApplyDelta(ctx, ev.User.Hex(), asset.Hex(), new(big.Int).Neg(scaled), ledger.SupplyLeg)
	case model.SupplyTransfer:
		// Two synthetic legs: debit the sender, then credit the receiver.
		if err := c.ledger.ApplyDelta(ctx, ev.User.Hex(), asset.Hex(), new(big.Int).Neg(scaled), ledger.SupplyLeg); err != nil {
			return err
		}
		return c.ledger.ApplyDelta(ctx, ev.To.Hex(), asset.Hex(), scaled, ledger.SupplyLeg)
	case model.DebtMint:
		return c.ledger.ApplyDelta(ctx, ev.User.Hex(), asset.Hex(), scaled, ledger.DebtLeg)
	case model.DebtBurn:
		return c.ledger.ApplyDelta(ctx, ev.User.Hex(), asset.Hex(), new(big.Int).Neg(scaled), ledger.DebtLeg)
	default:
		return fmt.Errorf("unsupported event kind: %s", ev.Kind)
	}
}

// advanceBlock moves the checkpoint's block forward after a batch whose
// final blocks may have held no decoded events. The log index is left as
// is: it only refers to the last block that actually produced an event.
func (c *Controller) advanceBlock(ctx context.Context, block uint64) error {
	if block <= c.cp.Block {
		return nil
	}
	c.cp.Block = block
	return c.checkpoints.Save(ctx, c.cp)
}

func (c *Controller) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]model.RawLog, error) {
	var logs []model.RawLog
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = c.source.FilterLogs(ctx, fromBlock, toBlock, c.watched, c.decoder.Topics())
		if err != nil {
			c.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (c *Controller) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = c.source.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			c.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}
