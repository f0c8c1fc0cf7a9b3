package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgExecutor is the subset of pgxpool.Pool the DDL and copy paths need,
// kept small so tests can substitute a fake.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// generateCreateTable produces a CREATE TABLE IF NOT EXISTS statement for
// the target table. Primary-key columns are forced NOT NULL regardless of
// source nullability. Index and FK DDL is not emitted even when the
// corresponding option toggles are set.
func generateCreateTable(tableName string, cols []Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", pgIdent(tableName))

	var pkCols []string
	for i, col := range cols {
		fmt.Fprintf(&b, "  %s %s", pgIdent(col.TargetName), mapColumnType(col))

		if !col.Nullable || col.IsPrimaryKey {
			b.WriteString(" NOT NULL")
		}
		if col.IsPrimaryKey {
			pkCols = append(pkCols, pgIdent(col.TargetName))
		}

		if i < len(cols)-1 || len(pkCols) > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}

	if len(pkCols) > 0 {
		fmt.Fprintf(&b, "  PRIMARY KEY(%s)\n", strings.Join(pkCols, ", "))
	}

	b.WriteString(")")
	return b.String()
}

// createTable materializes the target table, a no-op when it already exists.
func createTable(ctx context.Context, exec pgExecutor, tableName string, cols []Column) error {
	ddl := generateCreateTable(tableName, cols)
	if _, err := exec.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w\nDDL: %s", tableName, err, ddl)
	}
	return nil
}

// applyConflictMode applies the configured conflict policy to the target
// table before materialization. Insert and Upsert leave existing data
// untouched; Truncate fails when the table does not exist yet.
func applyConflictMode(ctx context.Context, exec pgExecutor, tableName string, mode Mode) error {
	switch mode {
	case ModeInsert, ModeUpsert:
		return nil
	case ModeOverwrite:
		if _, err := exec.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", pgIdent(tableName))); err != nil {
			return fmt.Errorf("drop table %s: %w", tableName, err)
		}
		return nil
	case ModeTruncate:
		if _, err := exec.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", pgIdent(tableName))); err != nil {
			return fmt.Errorf("truncate table %s: %w", tableName, err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported mode %q", mode)
	}
}

// buildInsertSQL returns the parameterized single-row insert statement for
// the target table, columns in source ordinal order.
func buildInsertSQL(tableName string, cols []Column) string {
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = pgIdent(c.TargetName)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgIdent(tableName), strings.Join(names, ", "), strings.Join(params, ", "))
}
