// Package config loads command settings from flags, VAULTFEES_* environment
// variables and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Common holds the settings every command shares.
type Common struct {
	RPCURL        string
	RPCRate       float64
	Vaults        []string
	VaultVersions map[string]string
	Catalog       string
	Layouts       string
	LogLevel      string
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("VAULTFEES")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("catalog", "./data/catalog")
	v.SetDefault("rpc-rate", 0.0)
	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func loadCommon(v *viper.Viper) Common {
	return Common{
		RPCURL:        v.GetString("rpc"),
		RPCRate:       v.GetFloat64("rpc-rate"),
		Vaults:        getStringSlice(v, "vaults"),
		VaultVersions: getStringMap(v, "vault-versions"),
		Catalog:       v.GetString("catalog"),
		Layouts:       v.GetString("layouts"),
		LogLevel:      v.GetString("log-level"),
	}
}

// SyncConfig configures the catalog scan.
type SyncConfig struct {
	Common
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// LoadSync merges config file, environment variables, and flags into SyncConfig.
func LoadSync(cfgFile string, flags *pflag.FlagSet) (SyncConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(2000),
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
	})
	if err != nil {
		return SyncConfig{}, err
	}
	return SyncConfig{
		Common:            loadCommon(v),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
	}, nil
}

// IndexConfig configures the reconciliation pipeline.
type IndexConfig struct {
	Common
	PGDSN        string
	Workers      int
	CacheDir     string
	CacheSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	DenyTxs      []string
	Mismatches   string
	MetricsAddr  string
}

// LoadIndex merges config file, environment variables, and flags into IndexConfig.
func LoadIndex(cfgFile string, flags *pflag.FlagSet) (IndexConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"workers":       4,
		"cache-dir":     "./data/cache",
		"cache-size":    256,
		"max-retries":   3,
		"retry-backoff": time.Second,
		"mismatches":    "./data/mismatches.jsonl",
	})
	if err != nil {
		return IndexConfig{}, err
	}
	return IndexConfig{
		Common:       loadCommon(v),
		PGDSN:        v.GetString("pg-dsn"),
		Workers:      v.GetInt("workers"),
		CacheDir:     v.GetString("cache-dir"),
		CacheSize:    v.GetInt("cache-size"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		DenyTxs:      getStringSlice(v, "deny-txs"),
		Mismatches:   v.GetString("mismatches"),
		MetricsAddr:  v.GetString("metrics-addr"),
	}, nil
}

// InspectConfig configures the single transaction commands.
type InspectConfig struct {
	Common
	CacheDir string
}

// LoadInspect merges config file, environment variables, and flags into InspectConfig.
func LoadInspect(cfgFile string, flags *pflag.FlagSet) (InspectConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"cache-dir": "./data/cache",
	})
	if err != nil {
		return InspectConfig{}, err
	}
	return InspectConfig{
		Common:   loadCommon(v),
		CacheDir: v.GetString("cache-dir"),
	}, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		var out []string
		for _, item := range typed {
			out = append(out, splitAndClean(item)...)
		}
		return out
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
