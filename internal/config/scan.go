package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ScanConfig holds configuration for the scan command.
type ScanConfig struct {
	RPCURL          string
	PGDSN           string
	PriceFeed       string
	MinHealthFactor string
	LogLevel        string
}

// LoadScan merges config file, environment variables, and flags into
// ScanConfig.
func LoadScan(cfgFile string, flags *pflag.FlagSet) (ScanConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("LENDINGSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Chainlink ETH/USD on mainnet.
	v.SetDefault("price-feed", "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419")
	v.SetDefault("min-health-factor", "300000000000000000")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return ScanConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return ScanConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return ScanConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := ScanConfig{
		RPCURL:          v.GetString("rpc"),
		PGDSN:           v.GetString("pg-dsn"),
		PriceFeed:       v.GetString("price-feed"),
		MinHealthFactor: v.GetString("min-health-factor"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}
