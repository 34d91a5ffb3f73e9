// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hitdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	selectRuns = "SELECT " + strings.Join(columns, ", ") + " FROM runs"
	insertRun  = fmt.Sprintf(
		"INSERT INTO runs (%s) VALUES (%s)",
		strings.Join(columns[1:], ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)-1), ", "),
	)
	updateResults = func() string {
		set := make([]string, 0, NumSpecies*4)
		for _, c := range columns[ratioOffset:] {
			set = append(set, c+" = ?")
		}
		return "UPDATE runs SET " + strings.Join(set, ", ") + " WHERE id = ?"
	}()
)

// AddRun records a new run, stamped with the current local time.
// The ratios of the new run are set to Sentinel, whatever run.Results
// holds. AddRun returns the identifier of the new run.
func (db *DB) AddRun(ctx context.Context, run Run) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, db.timeout)
	defer cancel()

	args := make([]any, 0, len(columns)-1)
	args = append(args,
		run.JobNum, db.now().Format(tsLayout),
		run.FCL, nullString(run.Output), nullString(run.Hist),
	)
	args = append(args, paramValues(run.Params)...)
	args = append(args, run.Notes)
	for i := 0; i < NumSpecies*4; i++ {
		args = append(args, float64(Sentinel))
	}

	res, err := db.db.ExecContext(ctx, insertRun, args...)
	if err != nil {
		return 0, fmt.Errorf("hitdb: could not insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("hitdb: could not retrieve run id: %w", err)
	}

	return id, nil
}

// Run returns the run with the provided identifier.
func (db *DB) Run(ctx context.Context, id int64) (Run, error) {
	runs, err := db.query(ctx, selectRuns+" WHERE id = ?", id)
	if err != nil {
		return Run{}, fmt.Errorf("hitdb: could not retrieve run %d: %w", id, err)
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("hitdb: could not retrieve run %d: %w", id, ErrNotFound)
	}
	return runs[0], nil
}

// Runs returns all the runs, most recent first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	runs, err := db.query(ctx, selectRuns+" ORDER BY timestamp DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("hitdb: could not retrieve runs: %w", err)
	}
	return runs, nil
}

// Count returns the number of recorded runs.
func (db *DB) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, db.timeout)
	defer cancel()

	var n int64
	err := db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("hitdb: could not count runs: %w", err)
	}
	return n, nil
}

// Search returns the runs whose columns equal all the provided values.
// Filters are keyed by column name.
func (db *DB) Search(ctx context.Context, filters map[string]any) ([]Run, error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		if _, ok := columnSet[k]; !ok {
			return nil, fmt.Errorf("hitdb: invalid search column %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		query = new(strings.Builder)
		args  = make([]any, 0, len(keys))
	)
	query.WriteString(selectRuns + " WHERE 1=1")
	for _, k := range keys {
		query.WriteString(" AND " + k + " = ?")
		args = append(args, filters[k])
	}
	query.WriteString(" ORDER BY id")

	runs, err := db.query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("hitdb: could not search runs: %w", err)
	}
	return runs, nil
}

// UpdateOutputFilename sets the reconstructed output file of a run.
func (db *DB) UpdateOutputFilename(ctx context.Context, id int64, fname string) error {
	err := db.exec(ctx, "UPDATE runs SET output_filename = ? WHERE id = ?", fname, id)
	if err != nil {
		return fmt.Errorf("hitdb: could not update output filename of run %d: %w", id, err)
	}
	return nil
}

// UpdateHistFilename sets the analysis histograms file of a run.
func (db *DB) UpdateHistFilename(ctx context.Context, id int64, fname string) error {
	err := db.exec(ctx, "UPDATE runs SET hist_filename = ? WHERE id = ?", fname, id)
	if err != nil {
		return fmt.Errorf("hitdb: could not update hist filename of run %d: %w", id, err)
	}
	return nil
}

// UpdateResults sets the energy ratios of a run.
func (db *DB) UpdateResults(ctx context.Context, id int64, res Results) error {
	args := make([]any, 0, NumSpecies*4+1)
	for _, vs := range res {
		for _, v := range vs {
			args = append(args, v)
		}
	}
	args = append(args, id)

	err := db.exec(ctx, updateResults, args...)
	if err != nil {
		return fmt.Errorf("hitdb: could not update results of run %d: %w", id, err)
	}
	return nil
}

func (db *DB) exec(ctx context.Context, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, db.timeout)
	defer cancel()

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not retrieve number of updated rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) query(ctx context.Context, query string, args ...any) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, db.timeout)
	defer cancel()

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not run query: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row %d: %w", len(runs), err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not scan db for runs: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error while retrieving runs: %w", err)
	}

	return runs, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run    Run
		p      = &run.Params
		output sql.NullString
		hist   sql.NullString
		notes  sql.NullString
		ratios [NumSpecies * 4]sql.NullFloat64
	)

	dst := []any{
		&run.ID, &run.JobNum, &run.Timestamp,
		&run.FCL, &output, &hist,
		&p.RoiThreshold[0], &p.RoiThreshold[1], &p.RoiThreshold[2],
		&p.MinPulseHeight[0], &p.MinPulseHeight[1], &p.MinPulseHeight[2],
		&p.MinPulseSigma[0], &p.MinPulseSigma[1], &p.MinPulseSigma[2],
		&p.LongMaxHits[0], &p.LongMaxHits[1], &p.LongMaxHits[2],
		&p.LongPulseWidth[0], &p.LongPulseWidth[1], &p.LongPulseWidth[2],
		&p.PulseHeightCuts[0], &p.PulseHeightCuts[1], &p.PulseHeightCuts[2],
		&p.PulseWidthCuts[0], &p.PulseWidthCuts[1], &p.PulseWidthCuts[2],
		&p.PulseRatioCuts[0], &p.PulseRatioCuts[1], &p.PulseRatioCuts[2],
		&p.MaxMultiHit, &p.Chi2NDF, &notes,
	}
	for i := range ratios {
		dst = append(dst, &ratios[i])
	}

	err := rows.Scan(dst...)
	if err != nil {
		return run, err
	}

	run.Output = output.String
	run.Hist = hist.String
	run.Notes = notes.String
	for i, v := range ratios {
		r := &run.Results[i/4][i%4]
		switch {
		case v.Valid:
			*r = v.Float64
		default:
			*r = Sentinel
		}
	}

	return run, nil
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
