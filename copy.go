package main

import (
	"context"
	"database/sql"
	"fmt"
)

// copyTable moves all rows of one source table into its materialized target
// counterpart in fixed-size pages, never holding the full table in memory.
// An empty page is the loop's only termination condition; cancellation is
// observed once per page, so a page already in flight completes first.
func copyTable(ctx context.Context, src *sql.DB, target pgExecutor, srcTable, dstTable string, cols []Column, opts *Options) (int64, error) {
	pageQuery := buildPageQuery(srcTable, cols)
	insertSQL := buildInsertSQL(dstTable, cols)

	var expected int64
	if opts.Progress != nil {
		// best effort; progress just shows an unbounded count on failure
		if n, err := countRows(ctx, src, srcTable); err == nil {
			expected = n
		}
	}

	var total int64
	for offset := 0; ; offset += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		page, err := fetchPage(ctx, src, pageQuery, offset, opts.BatchSize)
		if err != nil {
			return total, fmt.Errorf("read page at offset %d from %s: %w", offset, srcTable, err)
		}
		if len(page) == 0 {
			return total, nil
		}

		for _, row := range page {
			args := transformRow(row, cols)
			if _, err := target.Exec(ctx, insertSQL, args...); err != nil {
				return total, fmt.Errorf("insert into %s: %w", dstTable, err)
			}
		}

		total += int64(len(page))
		if opts.Progress != nil {
			opts.Progress(srcTable, total, expected)
		}
	}
}
