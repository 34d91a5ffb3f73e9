// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scan runs the hit-finding reconstruction over sets of
// parameters and records each run in a HitTuningDB.
package scan // import "github.com/go-lpc/hittune/scan"

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-lpc/hittune/effana"
	"github.com/go-lpc/hittune/fhicl"
	"github.com/go-lpc/hittune/hitdb"
	"github.com/go-lpc/hittune/lar"
	"golang.org/x/sync/errgroup"
)

// DefaultInput is the input file processed when none is provided.
const DefaultInput = "output_run9963_evt28003_stage0.root"

// Grid describes the FHiCL files of a grid scan.
type Grid struct {
	Dir     string
	Tag     string
	Kind    fhicl.Kind
	Debug   bool // write only the first two files
	Verbose bool // log the parameters of each file
}

// CreateGrid writes one FHiCL file per parameter set, named
// <dir>/hitTuning_<tag>_<i>.fcl, and returns the names of the files.
func CreateGrid(cfg Grid, points []fhicl.Params, msg *log.Logger) ([]string, error) {
	if msg == nil {
		msg = log.New(os.Stdout, "scan: ", 0)
	}

	err := os.MkdirAll(cfg.Dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("scan: could not create output directory: %w", err)
	}

	var verbose *log.Logger
	if cfg.Verbose {
		verbose = msg
	}

	fnames := make([]string, 0, len(points))
	for i, params := range points {
		if cfg.Debug && i > 1 {
			break
		}
		if i%100 == 0 {
			msg.Printf("creating FHiCL for parameter set %d/%d", i, len(points))
		}
		fname := filepath.Join(cfg.Dir, fmt.Sprintf("hitTuning_%s_%d.fcl", cfg.Tag, i))
		err = fhicl.GenerateFile(fname, cfg.Kind, params, verbose)
		if err != nil {
			return fnames, fmt.Errorf("scan: could not create FHiCL for parameter set %d: %w", i, err)
		}
		fnames = append(fnames, fname)
	}

	return fnames, nil
}

// Scanner runs reconstruction jobs and records them in a database.
type Scanner struct {
	db  *hitdb.DB
	lar *lar.Runner
	msg *log.Logger

	// AnaFCL is the FHiCL file dumping the hitana ntuple from the
	// reconstructed output. The analysis is skipped when empty.
	AnaFCL string

	mu sync.Mutex // serializes the allocation of output versions
}

// New creates a scanner recording runs in db.
func New(db *hitdb.DB, runner *lar.Runner, msg *log.Logger) *Scanner {
	if msg == nil {
		msg = log.New(os.Stdout, "scan: ", 0)
	}
	if runner == nil {
		runner = lar.NewRunner(msg)
	}
	return &Scanner{
		db:  db,
		lar: runner,
		msg: msg,
	}
}

// Job describes a reconstruction job of a batch grid scan.
type Job struct {
	FCL     string // FHiCL configuration of the job
	Output  string // reconstructed output, must be a .root file
	Input   string
	Num     int64  // job number
	Options string // lar options (default: -n 5)
}

// Validate returns an error if the job is not fully specified.
func (job Job) Validate() error {
	switch {
	case !strings.HasSuffix(job.Output, ".root"):
		return fmt.Errorf("scan: output %q must be the name of a .root file", job.Output)
	case job.FCL == "":
		return fmt.Errorf("scan: missing FHiCL file")
	case job.Num < 0:
		return fmt.Errorf("scan: invalid job number %d", job.Num)
	}
	return nil
}

// RunJob runs one reconstruction job of a batch grid scan.
// The job parameters are read back from its FHiCL file.
func (s *Scanner) RunJob(ctx context.Context, job Job) (int64, error) {
	err := job.Validate()
	if err != nil {
		return 0, err
	}
	if job.Input == "" {
		job.Input = DefaultInput
	}
	if job.Options == "" {
		job.Options = "-n 5"
	}
	s.msg.Printf("processing input file: %s", job.Input)

	params, err := fhicl.ParseFile(job.FCL)
	if err != nil {
		return 0, fmt.Errorf("scan: could not read parameters of job %d: %w", job.Num, err)
	}

	id, err := s.db.AddRun(ctx, hitdb.Run{
		JobNum: job.Num,
		FCL:    job.FCL,
		Params: params,
	})
	if err != nil {
		return 0, fmt.Errorf("scan: could not add run of job %d: %w", job.Num, err)
	}
	s.msg.Printf("added run with ID: %d", id)

	err = s.lar.Run(ctx, lar.Job{
		FCL:     job.FCL,
		Input:   job.Input,
		Output:  job.Output,
		Options: job.Options,
	})
	if err != nil {
		return id, err
	}

	err = s.db.UpdateOutputFilename(ctx, id, job.Output)
	if err != nil {
		return id, fmt.Errorf("scan: could not update output of run %d: %w", id, err)
	}
	s.logCount(ctx)

	dir := filepath.Dir(job.Output)
	err = s.analyze(ctx, id, fhicl.MC, analysis{
		output: job.Output,
		ntuple: filepath.Join(dir, fmt.Sprintf("ntuple_%d.root", job.Num)),
		hist:   filepath.Join(dir, fmt.Sprintf("hist_output_%d.root", job.Num)),
	})
	if err != nil {
		return id, err
	}

	return id, nil
}

// Local describes an interactive scan.
type Local struct {
	OutDir  string // directory of the FHiCL, output and hist files
	Tag     string
	Kind    fhicl.Kind
	Input   string
	JobNum  int64
	Debug   bool   // process only 2 events per point
	Options string // lar options, overriding the debug ones
	Jobs    int    // number of concurrent points (default: 1)
	Verbose bool   // log the parameters of each point
}

// Summary describes the outcome of a scan.
type Summary struct {
	Points int
	Runs   []int64 // identifiers of the successful runs
	Errs   []error // failures, one per failed point
}

func (sum Summary) String() string {
	o := new(strings.Builder)
	fmt.Fprintf(o, "points:  %d\n", sum.Points)
	fmt.Fprintf(o, "success: %d\n", len(sum.Runs))
	fmt.Fprintf(o, "failure: %d\n", len(sum.Errs))
	for _, err := range sum.Errs {
		fmt.Fprintf(o, " - %v\n", err)
	}
	return o.String()
}

// RunLocal runs the reconstruction for each parameter set.
// Each point gets the first free version of the output files.
// The failure of a point is logged and the scan continues.
func (s *Scanner) RunLocal(ctx context.Context, cfg Local, points []fhicl.Params) (Summary, error) {
	if cfg.Input == "" {
		cfg.Input = DefaultInput
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = 1
	}
	if cfg.Options == "" && cfg.Debug {
		cfg.Options = "-n 2"
	}

	err := os.MkdirAll(cfg.OutDir, 0755)
	if err != nil {
		return Summary{}, fmt.Errorf("scan: could not create output directory: %w", err)
	}
	s.msg.Printf("processing input file: %s", cfg.Input)

	var (
		mu  sync.Mutex
		sum = Summary{Points: len(points)}
		grp errgroup.Group
	)
	grp.SetLimit(cfg.Jobs)

	for i, params := range points {
		if ctx.Err() != nil {
			break
		}
		i, params := i, params
		grp.Go(func() error {
			id, err := s.runPoint(ctx, cfg, params)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				err = fmt.Errorf("parameter set %d: %w", i, err)
				s.msg.Printf("error processing %v", err)
				sum.Errs = append(sum.Errs, err)
				return nil
			}
			sum.Runs = append(sum.Runs, id)
			return nil
		})
	}
	_ = grp.Wait()

	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("scan: interrupted: %w", err)
	}
	return sum, nil
}

// Files are the files of one version of an interactive scan point.
type Files struct {
	FCL    string
	Output string
	Ntuple string
	Hist   string
}

// VersionFiles returns the names of the files of a scan point.
func VersionFiles(dir, tag string, version int) Files {
	name := func(format string) string {
		return filepath.Join(dir, fmt.Sprintf(format, tag, version))
	}
	return Files{
		FCL:    name("hitTuning_%s_%d.fcl"),
		Output: name("output_%s_%d.root"),
		Ntuple: name("ntuple_%s_%d.root"),
		Hist:   name("hist_output_%s_%d.root"),
	}
}

// allocate generates the FHiCL file of the first free version.
func (s *Scanner) allocate(cfg Local, params fhicl.Params) (Files, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for v := 0; ; v++ {
		files := VersionFiles(cfg.OutDir, cfg.Tag, v)
		_, err := os.Stat(files.FCL)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, os.ErrNotExist):
			return files, fmt.Errorf("scan: could not stat %q: %w", files.FCL, err)
		}
		var verbose *log.Logger
		if cfg.Verbose {
			verbose = s.msg
		}
		err = fhicl.GenerateFile(files.FCL, cfg.Kind, params, verbose)
		return files, err
	}
}

func (s *Scanner) runPoint(ctx context.Context, cfg Local, params fhicl.Params) (int64, error) {
	files, err := s.allocate(cfg, params)
	if err != nil {
		return 0, err
	}

	id, err := s.db.AddRun(ctx, hitdb.Run{
		JobNum: cfg.JobNum,
		FCL:    files.FCL,
		Params: params,
	})
	if err != nil {
		return 0, fmt.Errorf("scan: could not add run: %w", err)
	}
	s.msg.Printf("added run with ID: %d", id)

	err = s.lar.Run(ctx, lar.Job{
		FCL:     files.FCL,
		Input:   cfg.Input,
		Output:  files.Output,
		Options: cfg.Options,
		Log:     strings.TrimSuffix(files.Output, ".root") + ".log",
	})
	if err != nil {
		return id, err
	}

	err = s.db.UpdateOutputFilename(ctx, id, files.Output)
	if err != nil {
		return id, fmt.Errorf("scan: could not update output of run %d: %w", id, err)
	}
	s.logCount(ctx)

	err = s.analyze(ctx, id, cfg.Kind, analysis{
		output: files.Output,
		ntuple: files.Ntuple,
		hist:   files.Hist,
	})
	if err != nil {
		return id, err
	}

	return id, nil
}

type analysis struct {
	output string // reconstructed output
	ntuple string // hitana ntuple
	hist   string // histograms
}

// analyze dumps the hitana ntuple of a reconstructed output and fills
// the histograms. For simulated data, the efficiency ratios are stored
// in the database.
func (s *Scanner) analyze(ctx context.Context, id int64, kind fhicl.Kind, ana analysis) error {
	if s.AnaFCL == "" {
		s.msg.Printf("no analysis FHiCL: skipping analysis of run %d", id)
		return nil
	}

	err := s.lar.Run(ctx, lar.Job{
		FCL:   s.AnaFCL,
		Input: ana.output,
		TFile: ana.ntuple,
	})
	if err != nil {
		return fmt.Errorf("scan: could not dump ntuple of run %d: %w", id, err)
	}

	s.msg.Printf("processing hits with output %q and hist file %q", ana.output, ana.hist)
	switch kind {
	case fhicl.MC:
		res, err := effana.Analyze(ana.ntuple, ana.hist, s.msg)
		if err != nil {
			return fmt.Errorf("scan: could not analyze run %d: %w", id, err)
		}
		s.msg.Printf("results: %v", res)
		err = s.db.UpdateResults(ctx, id, res)
		if err != nil {
			return fmt.Errorf("scan: could not store results of run %d: %w", id, err)
		}
	default:
		err = effana.HitSummary(ana.ntuple, ana.hist, s.msg)
		if err != nil {
			return fmt.Errorf("scan: could not summarize hits of run %d: %w", id, err)
		}
	}

	err = s.db.UpdateHistFilename(ctx, id, ana.hist)
	if err != nil {
		return fmt.Errorf("scan: could not update hist file of run %d: %w", id, err)
	}
	return nil
}

func (s *Scanner) logCount(ctx context.Context) {
	n, err := s.db.Count(ctx)
	if err != nil {
		s.msg.Printf("could not count runs: %+v", err)
		return
	}
	s.msg.Printf("total runs in database: %d", n)
}
