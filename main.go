package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "msferry [config.toml]",
	Short: "SQL Server to PostgreSQL migration tool",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigration,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to migration TOML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigration(cmd *cobra.Command, args []string) error {
	// Resolve config path: positional arg takes precedence over --config flag
	cfgPath := configPath
	if len(args) > 0 {
		cfgPath = args[0]
	}
	if cfgPath == "" {
		return fmt.Errorf("config file required: msferry <config.toml> or msferry --config <config.toml>")
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	// Cooperative cancellation: Ctrl-C stops between pages and tables,
	// never mid-statement.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("starting migration run")
	log.Printf("config: sources=%d mode=%s batch_size=%d prefix=%q",
		len(cfg.Sources), cfg.Mode, cfg.BatchSize, cfg.TablePrefix)

	log.Printf("connecting to SQL Server...")
	sources := make([]*Source, 0, len(cfg.Sources))
	defer func() {
		for _, src := range sources {
			src.Close()
		}
	}()
	for _, sc := range cfg.Sources {
		src, err := openSource(sc.DSN)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	log.Printf("connecting to PostgreSQL...")
	pgPool, err := pgxpool.New(ctx, cfg.Target.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgPool.Close()

	opts := cfg.options()
	if cfg.Progress {
		opts.Progress = newProgressDisplay()
		uiprogress.Start()
		defer uiprogress.Stop()
	}

	result := Migrate(ctx, sources, pgPool, opts)

	log.Printf("tables processed: %d, rows migrated: %d, duration: %s",
		result.TablesProcessed, result.TotalRowsMigrated, result.Duration().Round(time.Millisecond))
	for _, w := range result.Warnings {
		log.Printf("WARN: %s", w)
	}
	for _, e := range result.Errors {
		log.Printf("ERROR: %s", e)
	}

	if cfg.RunLog != "" {
		runID, err := recordRun(cfg.resolvePath(cfg.RunLog), result)
		if err != nil {
			log.Printf("WARN: run log not written: %v", err)
		} else {
			log.Printf("run %s recorded in %s", runID, cfg.RunLog)
		}
	}

	if !result.Success {
		return fmt.Errorf("migration failed with %d error(s)", len(result.Errors))
	}
	log.Printf("migration completed")
	return nil
}

// newProgressDisplay returns a ProgressFunc backed by one uiprogress bar
// per table.
func newProgressDisplay() ProgressFunc {
	bars := make(map[string]*uiprogress.Bar)
	return func(table string, copied, total int64) {
		bar, ok := bars[table]
		if !ok {
			max := int(total)
			if max <= 0 {
				max = 1
			}
			bar = uiprogress.AddBar(max).AppendCompleted()
			name := table
			bar.PrependFunc(func(*uiprogress.Bar) string { return name })
			bars[table] = bar
		}
		n := int(copied)
		if n > bar.Total {
			n = bar.Total
		}
		bar.Set(n)
	}
}
