package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"
)

// targetDB is the subset of pgxpool.Pool the orchestrator needs.
type targetDB interface {
	pgExecutor
	Ping(ctx context.Context) error
}

// tableRef ties a discovered table to the source it came from.
type tableRef struct {
	name string
	src  *Source
}

// Migrate copies every surviving base table from the sources into the
// target, strictly one table at a time. Per-table failures are scoped to
// that table; only configuration and connectivity problems abort the run.
func Migrate(ctx context.Context, sources []*Source, target targetDB, opts *Options) *MigrationResult {
	result := newMigrationResult()
	defer result.finalize()

	if opts == nil {
		result.addError("migration options are required")
		return result
	}
	if opts.BatchSize <= 0 {
		result.addError("batch size must be greater than zero, got %d", opts.BatchSize)
		return result
	}
	if len(sources) == 0 {
		result.addError("no source connections provided")
		return result
	}

	// verify connectivity everywhere before doing any schema work
	for _, src := range sources {
		if !testSourceConnection(ctx, src.DB, opts.PingTimeout) {
			result.addError("source connectivity check failed for %s", redactDSN(src.DSN))
			return result
		}
	}
	if !testTargetConnection(ctx, target, opts.PingTimeout) {
		result.addError("target connectivity check failed")
		return result
	}

	tables, err := discoverTables(ctx, sources)
	if err != nil {
		result.addError("enumerate tables: %v", err)
		return result
	}
	tables = filterTables(tables, opts.IncludeTables, opts.ExcludeTables)
	log.Printf("migrating %d tables...", len(tables))

	for i, t := range tables {
		if ctx.Err() != nil {
			result.addWarning("migration canceled; %d tables not processed", len(tables)-i)
			break
		}

		tr, warnings := migrateTable(ctx, t.src, target, t.name, opts)
		result.TableResults[t.name] = tr
		result.TablesProcessed++
		result.TotalRowsMigrated += tr.RowsMigrated
		result.Errors = append(result.Errors, tr.Errors...)
		result.Warnings = append(result.Warnings, warnings...)

		if tr.Success {
			log.Printf("  %s → %s: %d rows in %s",
				tr.SourceTable, tr.TargetTable, tr.RowsMigrated, tr.Duration.Round(time.Millisecond))
		} else {
			log.Printf("  %s → %s: failed after %s",
				tr.SourceTable, tr.TargetTable, tr.Duration.Round(time.Millisecond))
		}
	}

	return result
}

// migrateTable runs the per-table stage sequence: schema discovery, conflict
// policy, materialization, data copy. Any stage failure short-circuits the
// rest; elapsed time is recorded on every exit path. The returned warnings
// belong on the aggregate result, not the table result.
func migrateTable(ctx context.Context, src *Source, target targetDB, tableName string, opts *Options) (*TableMigrationResult, []string) {
	start := time.Now()
	res := &TableMigrationResult{SourceTable: tableName}
	res.SetTargetTable(opts.TablePrefix + tableName)
	defer func() { res.Duration = time.Since(start) }()

	cols, err := introspectColumns(ctx, src.DB, tableName)
	if err != nil {
		res.addError("table %s: %v", tableName, err)
		return res, nil
	}
	for i := range cols {
		cols[i].TargetName = targetColumnName(tableName, cols[i].Name, opts.ColumnRenames)
	}

	if err := applyConflictMode(ctx, target, res.TargetTable, opts.Mode); err != nil {
		res.addError("table %s: %v", tableName, err)
		return res, nil
	}

	if err := createTable(ctx, target, res.TargetTable, cols); err != nil {
		res.addError("table %s: %v", tableName, err)
		return res, nil
	}

	rows, err := copyTable(ctx, src.DB, target, tableName, res.TargetTable, cols, opts)
	res.RowsMigrated = rows
	if err != nil {
		// A table vanishing mid-copy is non-fatal for the run: the table
		// stays unsuccessful but the cause surfaces as a warning, not an
		// error.
		if strings.Contains(err.Error(), "does not exist") {
			msg := fmt.Sprintf("table %s: copy aborted: %v", tableName, err)
			log.Printf("WARN: %s", msg)
			return res, []string{msg}
		}
		res.addError("table %s: %v", tableName, err)
		return res, nil
	}

	res.Success = true
	return res, nil
}

// discoverTables enumerates base tables across all sources, in source
// order. When two sources expose the same table name, the later source
// wins; the table keeps its original position in the run order.
func discoverTables(ctx context.Context, sources []*Source) ([]tableRef, error) {
	var ordered []tableRef
	seen := make(map[string]int)
	for _, src := range sources {
		names, err := listBaseTables(ctx, src.DB)
		if err != nil {
			return nil, fmt.Errorf("list tables for %s: %w", redactDSN(src.DSN), err)
		}
		for _, name := range names {
			key := strings.ToLower(name)
			if i, ok := seen[key]; ok {
				ordered[i] = tableRef{name: name, src: src}
				continue
			}
			seen[key] = len(ordered)
			ordered = append(ordered, tableRef{name: name, src: src})
		}
	}
	return ordered, nil
}

// filterTables applies the include/exclude sets. Exclude always wins; a
// non-empty include set is an allow-list. Matching is case-insensitive.
func filterTables(tables []tableRef, include, exclude []string) []tableRef {
	var kept []tableRef
	for _, t := range tables {
		if containsFold(exclude, t.name) {
			continue
		}
		if len(include) > 0 && !containsFold(include, t.name) {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

func containsFold(set []string, name string) bool {
	for _, s := range set {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// testSourceConnection probes a source connection. It never fails hard;
// any problem collapses to false.
func testSourceConnection(ctx context.Context, db *sql.DB, timeout time.Duration) bool {
	if db == nil {
		return false
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.PingContext(ctx) == nil
}

// testTargetConnection probes the target. Same contract as the source probe.
func testTargetConnection(ctx context.Context, target targetDB, timeout time.Duration) bool {
	if target == nil {
		return false
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return target.Ping(ctx) == nil
}

// redactDSN strips credentials from a connection string for log and error
// messages.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "source"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.Redacted()
}
