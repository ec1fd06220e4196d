package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lendingScope/internal/chain"
	"lendingScope/internal/config"
	"lendingScope/internal/ingest"
	"lendingScope/internal/ledger"
	"lendingScope/internal/protocol"
	"lendingScope/internal/reserve"
	"lendingScope/internal/storage"
	"lendingScope/internal/storage/file"
	"lendingScope/internal/storage/memory"
	"lendingScope/internal/storage/postgres"
)

func runIngest(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadIngest(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	for name, value := range map[string]string{
		"data-provider":      cfg.DataProvider,
		"addresses-provider": cfg.AddressesProvider,
		"lending-pool":       cfg.LendingPool,
	} {
		if !common.IsHexAddress(value) {
			return fmt.Errorf("%s must be a valid address", name)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var (
		reserveStore    storage.ReserveStore
		userStore       storage.UserReserveStore
		checkpointStore storage.CheckpointStore
	)
	if cfg.PGDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		reserveStore = postgres.NewReserveStore(db)
		userStore = postgres.NewUserReserveStore(db)
		checkpointStore = postgres.NewCheckpointStore(db, "ingest")
	} else {
		reserveStore = memory.NewReserveStore()
		userStore = memory.NewUserReserveStore()
		checkpointStore = file.NewCheckpointStore(cfg.Checkpoint)
	}

	decoder, err := protocol.NewDecoder()
	if err != nil {
		return err
	}
	resolver := protocol.NewAssetResolver(chainClient)
	refresher := reserve.NewRefresher(
		chainClient,
		reserveStore,
		resolver,
		common.HexToAddress(cfg.DataProvider),
		common.HexToAddress(cfg.AddressesProvider),
		logger,
	)

	controller := ingest.NewController(ingest.Config{
		StartBlock:   cfg.StartBlock,
		ChunkSize:    cfg.ChunkSize,
		LendingPool:  common.HexToAddress(cfg.LendingPool),
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, refresher, resolver, decoder, ledger.New(userStore), checkpointStore, logger)

	logger.Info("ingest start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("start_block", cfg.StartBlock),
		zap.Uint64("chunk_size", cfg.ChunkSize),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.String("lending_pool", cfg.LendingPool),
	)

	return controller.Run(ctx)
}
