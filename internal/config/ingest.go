// Package config loads command configuration from flags, environment
// variables, and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// IngestConfig holds configuration for the ingest command.
type IngestConfig struct {
	RPCURL            string
	PGDSN             string
	Checkpoint        string
	StartBlock        uint64
	ChunkSize         uint64
	DataProvider      string
	AddressesProvider string
	LendingPool       string
	MaxRetries        int
	RetryBackoff      time.Duration
	LogLevel          string
}

// LoadIngest merges config file, environment variables, and flags into
// IngestConfig.
func LoadIngest(cfgFile string, flags *pflag.FlagSet) (IngestConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("LENDINGSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("chunk-size", uint64(799))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return IngestConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return IngestConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return IngestConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := IngestConfig{
		RPCURL:            v.GetString("rpc"),
		PGDSN:             v.GetString("pg-dsn"),
		Checkpoint:        v.GetString("checkpoint"),
		StartBlock:        v.GetUint64("start-block"),
		ChunkSize:         v.GetUint64("chunk-size"),
		DataProvider:      v.GetString("data-provider"),
		AddressesProvider: v.GetString("addresses-provider"),
		LendingPool:       v.GetString("lending-pool"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}
