package main

import (
	"fmt"
	"strings"
	"time"
)

// Column represents a single column from SQL Server INFORMATION_SCHEMA.
type Column struct {
	Name         string
	TargetName   string // PostgreSQL column name (lower-cased, rename map applied)
	DataType     string // e.g. "int", "nvarchar", "datetimeoffset"
	MaxLength    int64  // character max length; -1 for (max) types
	Precision    int64
	Scale        int64
	Nullable     bool
	OrdinalPos   int
	IsPrimaryKey bool
}

// Mode governs how pre-existing target data is treated before a table
// is populated.
type Mode string

const (
	ModeInsert    Mode = "insert"
	ModeUpsert    Mode = "upsert"
	ModeOverwrite Mode = "overwrite"
	ModeTruncate  Mode = "truncate"
)

// ProgressFunc receives per-table copy progress. total is a pre-copy row
// count and is 0 when counting is disabled.
type ProgressFunc func(table string, copied, total int64)

// Options holds the caller-supplied migration settings. The engine treats
// it as read-only.
type Options struct {
	TablePrefix       string
	Mode              Mode
	BatchSize         int
	CreateIndexes     bool // accepted but index DDL is not emitted yet
	CreateForeignKeys bool // accepted but FK DDL is not emitted yet

	// ColumnRenames maps source table name to a source→target column
	// name mapping.
	ColumnRenames map[string]map[string]string

	// ExcludeTables always wins; a non-empty IncludeTables acts as an
	// allow-list. Both match case-insensitively.
	IncludeTables []string
	ExcludeTables []string

	// PingTimeout bounds the pre-flight connectivity probes.
	PingTimeout time.Duration

	Progress ProgressFunc
}

// TableMigrationResult is the outcome of migrating one table.
type TableMigrationResult struct {
	SourceTable  string
	TargetTable  string // always lower-case; assign via SetTargetTable
	RowsMigrated int64
	Success      bool
	Duration     time.Duration
	Errors       []string
}

// SetTargetTable assigns the target table name, lower-casing it to match
// PostgreSQL's identifier case folding.
func (r *TableMigrationResult) SetTargetTable(name string) {
	r.TargetTable = strings.ToLower(name)
}

func (r *TableMigrationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// MigrationResult aggregates the outcome of a whole migration run.
type MigrationResult struct {
	Success           bool
	StartTime         time.Time
	EndTime           time.Time
	TablesProcessed   int
	TotalRowsMigrated int64
	Errors            []string
	Warnings          []string

	// TableResults is keyed by source table name. Tables removed by the
	// include/exclude filter are absent, not marked failed.
	TableResults map[string]*TableMigrationResult
}

func newMigrationResult() *MigrationResult {
	return &MigrationResult{
		StartTime:    time.Now(),
		TableResults: make(map[string]*TableMigrationResult),
	}
}

// Duration returns the wall-clock time of the run.
func (r *MigrationResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

func (r *MigrationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *MigrationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// finalize stamps the end time and recomputes Success. Success is never
// set directly; it always equals "error list is empty" at finalization.
func (r *MigrationResult) finalize() {
	r.EndTime = time.Now()
	r.Success = len(r.Errors) == 0
}
