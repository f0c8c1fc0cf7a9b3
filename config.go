package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// MigrationConfig holds the full TOML-driven migration configuration.
type MigrationConfig struct {
	Sources []SourceConfig `toml:"source"`
	Target  TargetConfig   `toml:"target"`

	TablePrefix       string   `toml:"table_prefix"`
	Mode              string   `toml:"mode"` // insert|upsert|overwrite|truncate
	BatchSize         int      `toml:"batch_size"`
	CreateIndexes     bool     `toml:"create_indexes"`
	CreateForeignKeys bool     `toml:"create_foreign_keys"`
	IncludeTables     []string `toml:"include_tables"`
	ExcludeTables     []string `toml:"exclude_tables"`
	PingTimeout       duration `toml:"ping_timeout"`

	// Renames maps source table name to a source→target column rename map.
	Renames map[string]map[string]string `toml:"rename"`

	Progress bool   `toml:"progress"`
	RunLog   string `toml:"run_log"` // optional SQLite run-history file

	// configDir is the directory containing the TOML file, used to resolve
	// the run_log path.
	configDir string
}

// SourceConfig identifies one SQL Server source connection string.
type SourceConfig struct {
	DSN string `toml:"dsn"`
}

type TargetConfig struct {
	DSN string `toml:"dsn"`
}

// duration lets TOML carry values like "10s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// loadConfig reads a TOML config file and returns a MigrationConfig with
// defaults applied.
func loadConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := MigrationConfig{
		Mode:        string(ModeInsert),
		BatchSize:   1000,
		PingTimeout: duration{10 * time.Second},
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("at least one [[source]] is required")
	}
	for i, src := range cfg.Sources {
		if strings.TrimSpace(src.DSN) == "" {
			return nil, fmt.Errorf("source[%d].dsn is required", i)
		}
	}
	if strings.TrimSpace(cfg.Target.DSN) == "" {
		return nil, fmt.Errorf("target.dsn is required")
	}

	switch Mode(cfg.Mode) {
	case ModeInsert, ModeUpsert, ModeOverwrite, ModeTruncate:
	default:
		return nil, fmt.Errorf("mode must be one of: insert, upsert, overwrite, truncate")
	}

	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch_size must be greater than zero")
	}
	if cfg.PingTimeout.Duration < 0 {
		return nil, fmt.Errorf("ping_timeout must not be negative")
	}

	return &cfg, nil
}

// options builds the engine Options from the loaded configuration.
func (c *MigrationConfig) options() *Options {
	return &Options{
		TablePrefix:       c.TablePrefix,
		Mode:              Mode(c.Mode),
		BatchSize:         c.BatchSize,
		CreateIndexes:     c.CreateIndexes,
		CreateForeignKeys: c.CreateForeignKeys,
		ColumnRenames:     c.Renames,
		IncludeTables:     c.IncludeTables,
		ExcludeTables:     c.ExcludeTables,
		PingTimeout:       c.PingTimeout.Duration,
	}
}

// resolvePath resolves a path relative to the config file directory.
func (c *MigrationConfig) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}
