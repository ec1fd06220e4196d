package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "liquidator",
		Short:        "Lending protocol position indexer and liquidation scanner",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Tail protocol events and maintain user positions",
		RunE:  runIngest,
	}

	ingestCmd.Flags().String("rpc", "", "Ethereum RPC URL (websocket required for block subscriptions)")
	ingestCmd.Flags().String("pg-dsn", "", "Postgres DSN (empty runs with in-memory stores)")
	ingestCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path (used without Postgres)")
	ingestCmd.Flags().Uint64("start-block", 0, "block to start from when no checkpoint exists")
	ingestCmd.Flags().Uint64("chunk-size", 799, "blocks per backfill fetch")
	ingestCmd.Flags().String("data-provider", "", "UiPoolDataProvider contract address")
	ingestCmd.Flags().String("addresses-provider", "", "PoolAddressesProvider contract address")
	ingestCmd.Flags().String("lending-pool", "", "lending pool contract address")
	ingestCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	ingestCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	ingestCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(ingestCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan stored positions for liquidation candidates",
		RunE:  runScan,
	}

	scanCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	scanCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	scanCmd.Flags().String("price-feed", "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419", "reference currency USD price feed")
	scanCmd.Flags().String("min-health-factor", "300000000000000000", "candidate floor, 1e18 scale")
	scanCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(scanCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
