package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lendingScope/internal/chain"
	"lendingScope/internal/config"
	"lendingScope/internal/risk"
	"lendingScope/internal/storage/postgres"
)

func runScan(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadScan(cfgFile, cmd.Flags())
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
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if !common.IsHexAddress(cfg.PriceFeed) {
		return fmt.Errorf("price-feed must be a valid address")
	}
	minHealth, ok := new(big.Int).SetString(cfg.MinHealthFactor, 10)
	if !ok {
		return fmt.Errorf("invalid min-health-factor: %s", cfg.MinHealthFactor)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	db, err := postgres.Connect(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	engine := risk.NewEngine(
		postgres.NewReserveStore(db),
		postgres.NewUserReserveStore(db),
		chainClient,
		common.HexToAddress(cfg.PriceFeed),
		minHealth,
		logger,
	)

	report, err := engine.Scan(ctx)
	if err != nil {
		return err
	}

	for _, proposal := range report.Proposals {
		logger.Info("liquidation proposal",
			zap.String("user", proposal.User),
			zap.String("collateral_asset", proposal.CollateralAsset),
			zap.String("collateral_amount", proposal.CollateralAmount.String()),
			zap.String("debt_asset", proposal.DebtAsset),
			zap.String("debt_amount", proposal.DebtAmount.String()),
		)
	}
	return nil
}
