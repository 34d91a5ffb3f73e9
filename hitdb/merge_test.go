// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hitdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-lpc/hittune/fhicl"
	"github.com/google/go-cmp/cmp"
)

func TestMerge(t *testing.T) {
	var (
		ctx   = context.Background()
		dir   = t.TempDir()
		ratio = func(job int) float64 { return 0.1 * float64(job) }
	)

	for job := 1; job <= 3; job++ {
		fname := filepath.Join(dir, "jobs", fmt.Sprintf("hitTuning_%d.db", job))
		err := os.MkdirAll(filepath.Dir(fname), 0755)
		if err != nil {
			t.Fatalf("could not create jobs dir: %+v", err)
		}
		db, err := Open(fname, WithLogger(log.New(io.Discard, "", 0)))
		if err != nil {
			t.Fatalf("could not open job db: %+v", err)
		}
		p := fhicl.Default()
		p.MaxMultiHit = 10 * job
		id, err := db.AddRun(ctx, Run{JobNum: int64(job), FCL: "grid.fcl", Params: p})
		if err != nil {
			t.Fatalf("could not add run: %+v", err)
		}
		res := NewResults()
		res[Total][0] = ratio(job)
		err = db.UpdateResults(ctx, id, res)
		if err != nil {
			t.Fatalf("could not update results: %+v", err)
		}
		err = db.Close()
		if err != nil {
			t.Fatalf("could not close job db: %+v", err)
		}
	}

	// a db without a runs table.
	{
		raw, err := sql.Open("sqlite", filepath.Join(dir, "jobs", "other.db"))
		if err != nil {
			t.Fatalf("could not create other db: %+v", err)
		}
		_, err = raw.Exec("CREATE TABLE stuff (id INTEGER)")
		if err != nil {
			t.Fatalf("could not create other table: %+v", err)
		}
		_ = raw.Close()
	}

	err := os.WriteFile(filepath.Join(dir, "jobs", "notes.txt"), []byte("not a db"), 0644)
	if err != nil {
		t.Fatalf("could not create text file: %+v", err)
	}

	srcs, err := Find(filepath.Join(dir, "jobs"))
	if err != nil {
		t.Fatalf("could not find db files: %+v", err)
	}
	if got, want := len(srcs), 4; got != want {
		t.Fatalf("invalid number of db files: got=%d, want=%d (%q)", got, want, srcs)
	}

	dst, err := Open(filepath.Join(dir, "merged.db"), WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("could not open merged db: %+v", err)
	}
	defer dst.Close()

	// pre-existing run in the destination.
	_, err = dst.AddRun(ctx, Run{JobNum: 0, FCL: "local.fcl", Params: fhicl.Tuned()})
	if err != nil {
		t.Fatalf("could not add run: %+v", err)
	}

	n, err := dst.Merge(ctx, srcs...)
	if err != nil {
		t.Fatalf("could not merge db files: %+v", err)
	}
	if got, want := n, int64(3); got != want {
		t.Fatalf("invalid number of merged runs: got=%d, want=%d", got, want)
	}

	runs, err := dst.Search(ctx, nil)
	if err != nil {
		t.Fatalf("could not retrieve runs: %+v", err)
	}
	if got, want := len(runs), 4; got != want {
		t.Fatalf("invalid number of runs: got=%d, want=%d", got, want)
	}

	type summary struct {
		ID, Job int64
		MMH     int
		Ratio   float64
	}
	var got []summary
	for _, run := range runs {
		got = append(got, summary{run.ID, run.JobNum, run.Params.MaxMultiHit, run.Results[Total][0]})
	}
	want := []summary{
		{1, 0, 10, Sentinel},
		{2, 1, 10, ratio(1)},
		{3, 2, 20, ratio(2)},
		{4, 3, 30, ratio(3)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("invalid merged runs (-want +got):\n%s", diff)
	}
}

func TestMergeErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	dst, err := Open(filepath.Join(dir, "merged.db"), WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("could not open merged db: %+v", err)
	}
	defer dst.Close()

	fname := filepath.Join(dir, "alien.db")
	raw, err := sql.Open("sqlite", fname)
	if err != nil {
		t.Fatalf("could not create alien db: %+v", err)
	}
	_, err = raw.Exec("CREATE TABLE runs (id INTEGER PRIMARY KEY, flavour TEXT)")
	if err != nil {
		t.Fatalf("could not create alien table: %+v", err)
	}
	_ = raw.Close()

	_, err = dst.Merge(ctx, fname)
	if err == nil {
		t.Fatalf("expected an error merging an unknown schema")
	}

	_, err = Find(filepath.Join(dir, "missing"))
	if err == nil {
		t.Fatalf("expected an error walking a missing directory")
	}
}
