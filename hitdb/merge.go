// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hitdb

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Find returns all the SQLite database files (with a .db extension)
// under dir, sorted by name.
func Find(dir string) ([]string, error) {
	var fnames []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".db" {
			return nil
		}
		fnames = append(fnames, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hitdb: could not walk %q: %w", dir, err)
	}
	sort.Strings(fnames)
	return fnames, nil
}

// Merge appends the runs of all the provided SQLite files to db.
// Run identifiers are not preserved: merged runs get a new identifier.
// Files without a runs table are skipped.
// Merge returns the number of appended runs.
func (db *DB) Merge(ctx context.Context, srcs ...string) (int64, error) {
	var n int64
	for _, src := range srcs {
		db.msg.Printf("merging %q...", src)
		nn, err := db.merge(ctx, src)
		n += nn
		if err != nil {
			return n, fmt.Errorf("hitdb: could not merge %q: %w", src, err)
		}
	}
	return n, nil
}

func (db *DB) merge(ctx context.Context, fname string) (int64, error) {
	src, err := sql.Open("sqlite", "file:"+fname+"?mode=ro")
	if err != nil {
		return 0, fmt.Errorf("could not open source db: %w", err)
	}
	defer src.Close()

	cols, err := srcColumns(ctx, src)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		db.msg.Printf("skipping %q: no runs table", fname)
		return 0, nil
	}

	for _, c := range cols {
		if _, ok := columnSet[c]; !ok {
			return 0, fmt.Errorf("unknown runs column %q", c)
		}
	}

	rows, err := src.QueryContext(ctx, "SELECT "+strings.Join(cols, ", ")+" FROM runs ORDER BY id")
	if err != nil {
		return 0, fmt.Errorf("could not query source runs: %w", err)
	}
	defer rows.Close()

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not start transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO runs (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	))
	if err != nil {
		return 0, fmt.Errorf("could not prepare insert statement: %w", err)
	}
	defer stmt.Close()

	var (
		n    int64
		vals = make([]any, len(cols))
		ptrs = make([]any, len(cols))
	)
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		err = rows.Scan(ptrs...)
		if err != nil {
			return 0, fmt.Errorf("could not scan source run: %w", err)
		}
		_, err = stmt.ExecContext(ctx, vals...)
		if err != nil {
			return 0, fmt.Errorf("could not insert run: %w", err)
		}
		n++
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("could not iterate over source runs: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("could not commit merged runs: %w", err)
	}
	return n, nil
}

// srcColumns returns the columns of the runs table of src, without
// its primary key.
func srcColumns(ctx context.Context, src *sql.DB) ([]string, error) {
	rows, err := src.QueryContext(ctx, "SELECT name FROM pragma_table_info('runs')")
	if err != nil {
		return nil, fmt.Errorf("could not query source schema: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("could not scan source schema: %w", err)
		}
		if name == "id" {
			continue
		}
		cols = append(cols, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate over source schema: %w", err)
	}
	return cols, nil
}
