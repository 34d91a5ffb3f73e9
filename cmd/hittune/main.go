// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hittune creates the FHiCL files of a hit-finding parameter grid
// and runs the ICARUS reconstruction over them, recording each run in a
// HitTuningDB database.
//
// Usage: hittune [OPTIONS]
//
// Example:
//
//	$> hittune -c -mc -t grid -o ./fclFiles
//	$> hittune -r -f ./fclFiles/hitTuning_grid_42.fcl -n 42 -o out_42.root -p ana.fcl
//	$> hittune -mc -t test -p ana.fcl -i input.root
//	$> hittune -mc -t scan -grid ./grid.yaml -j 4 -mail
//
// Options:
//
//	-c	create all FHiCL files of the parameter grid
//	-o string
//	  	output directory (or output .root file in batch mode) (default "./fclFiles")
//	-mc
//	  	run on MC data
//	-t string
//	  	tag for output files (default "test")
//	-d	enable debug mode
//	-v	enable verbose output
//	-r	run one job of the parameter grid on the batch system
//	-i string
//	  	input file to process
//	-f string
//	  	FHiCL file of the batch job
//	-n int
//	  	job number of the batch job
//	-p string
//	  	FHiCL file dumping the hitana ntuple of the analysis
//	-grid string
//	  	YAML file describing the parameter grid
//	-j int
//	  	number of parameter sets processed concurrently (default 1)
//	-opts string
//	  	options passed to lar
//	-db string
//	  	database to record runs (default "hitTuning_<tag>.db" or "hitTuning_<job>.db")
//	-pmon
//	  	enable pmon monitoring of lar
//	-freq duration
//	  	pmon frequency (default 1s)
//	-mail
//	  	send a summary of the scan by mail (MAIL_* environment)
//	-version
//	  	print version and exit
package main // import "github.com/go-lpc/hittune/cmd/hittune"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/go-lpc/hittune"
	"github.com/go-lpc/hittune/fhicl"
	"github.com/go-lpc/hittune/grid"
	"github.com/go-lpc/hittune/hitdb"
	"github.com/go-lpc/hittune/internal/notify"
	"github.com/go-lpc/hittune/lar"
	"github.com/go-lpc/hittune/scan"
)

type config struct {
	create  bool
	outDir  string
	mc      bool
	tag     string
	debug   bool
	verbose bool
	batch   bool
	input   string
	fcl     string
	job     int64
	ana     string
	grid    string
	jobs    int
	opts    string
	db      string
	pmon    bool
	freq    time.Duration
	mail    bool
}

func main() {
	log.SetPrefix("hittune: ")
	log.SetFlags(0)

	var cfg config
	flag.BoolVar(&cfg.create, "c", false, "create all FHiCL files of the parameter grid")
	flag.StringVar(&cfg.outDir, "o", "./fclFiles", "output directory (or output .root file in batch mode)")
	flag.BoolVar(&cfg.mc, "mc", false, "run on MC data")
	flag.StringVar(&cfg.tag, "t", "test", "tag for output files")
	flag.BoolVar(&cfg.debug, "d", false, "enable debug mode")
	flag.BoolVar(&cfg.verbose, "v", false, "enable verbose output")
	flag.BoolVar(&cfg.batch, "r", false, "run one job of the parameter grid on the batch system")
	flag.StringVar(&cfg.input, "i", "", "input file to process")
	flag.StringVar(&cfg.fcl, "f", "", "FHiCL file of the batch job")
	flag.Int64Var(&cfg.job, "n", 0, "job number of the batch job")
	flag.StringVar(&cfg.ana, "p", "", "FHiCL file dumping the hitana ntuple of the analysis")
	flag.StringVar(&cfg.grid, "grid", "", "YAML file describing the parameter grid")
	flag.IntVar(&cfg.jobs, "j", 1, "number of parameter sets processed concurrently")
	flag.StringVar(&cfg.opts, "opts", "", "options passed to lar")
	flag.StringVar(&cfg.db, "db", "", `database to record runs (default "hitTuning_<tag>.db" or "hitTuning_<job>.db")`)
	flag.BoolVar(&cfg.pmon, "pmon", false, "enable pmon monitoring of lar")
	flag.DurationVar(&cfg.freq, "freq", 1*time.Second, "pmon frequency")
	flag.BoolVar(&cfg.mail, "mail", false, "send a summary of the scan by mail (MAIL_* environment)")

	doVers := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: hittune [OPTIONS]

Example:

 $> hittune -c -mc -t grid -o ./fclFiles
 $> hittune -r -f ./fclFiles/hitTuning_grid_42.fcl -n 42 -o out_42.root -p ana.fcl
 $> hittune -mc -t test -p ana.fcl -i input.root
 $> hittune -mc -t scan -grid ./grid.yaml -j 4 -mail

Options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if *doVers {
		version, sum := hittune.Version()
		fmt.Printf("hittune %s %s\n", version, sum)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, cfg, log.Default())
	if err != nil {
		log.Fatalf("could not run hittune: %+v", err)
	}
}

func run(ctx context.Context, cfg config, msg *log.Logger) error {
	kind := fhicl.Data
	if cfg.mc {
		kind = fhicl.MC
	}

	switch {
	case cfg.create:
		return createGrid(cfg, kind, msg)
	case cfg.batch:
		return runBatch(ctx, cfg, msg)
	default:
		return runLocal(ctx, cfg, kind, msg)
	}
}

func loadGrid(fname string) (grid.Axes, error) {
	if fname == "" {
		return grid.Default(), nil
	}
	return grid.Load(fname)
}

func createGrid(cfg config, kind fhicl.Kind, msg *log.Logger) error {
	axes, err := loadGrid(cfg.grid)
	if err != nil {
		return fmt.Errorf("could not load parameter grid: %w", err)
	}

	points, err := axes.Points(true)
	if err != nil {
		return fmt.Errorf("could not create parameter grid: %w", err)
	}

	fnames, err := scan.CreateGrid(scan.Grid{
		Dir:     cfg.outDir,
		Tag:     cfg.tag,
		Kind:    kind,
		Debug:   cfg.debug,
		Verbose: cfg.verbose,
	}, points, msg)
	if err != nil {
		return fmt.Errorf("could not create FHiCL files: %w", err)
	}
	msg.Printf("created %d FHiCL files under %q", len(fnames), cfg.outDir)
	return nil
}

func newRunner(cfg config, msg *log.Logger) *lar.Runner {
	runner := lar.NewRunner(msg)
	runner.Monitor = cfg.pmon
	runner.Freq = cfg.freq
	return runner
}

func openDB(name string, msg *log.Logger) (*hitdb.DB, error) {
	db, err := hitdb.Open(name, hitdb.WithLogger(msg))
	if err != nil {
		return nil, fmt.Errorf("could not open database %q: %w", name, err)
	}
	return db, nil
}

func runBatch(ctx context.Context, cfg config, msg *log.Logger) error {
	job := scan.Job{
		FCL:     cfg.fcl,
		Output:  cfg.outDir,
		Input:   cfg.input,
		Num:     cfg.job,
		Options: cfg.opts,
	}
	err := job.Validate()
	if err != nil {
		return fmt.Errorf("invalid batch job: %w", err)
	}

	name := cfg.db
	if name == "" {
		name = fmt.Sprintf("hitTuning_%d.db", cfg.job)
	}
	db, err := openDB(name, msg)
	if err != nil {
		return err
	}
	defer db.Close()

	s := scan.New(db, newRunner(cfg, msg), msg)
	s.AnaFCL = cfg.ana

	id, err := s.RunJob(ctx, job)
	if err != nil {
		return fmt.Errorf("could not run job %d: %w", cfg.job, err)
	}
	msg.Printf("job %d recorded as run %d", cfg.job, id)

	err = db.Close()
	if err != nil {
		return fmt.Errorf("could not close database %q: %w", name, err)
	}
	return nil
}

func runLocal(ctx context.Context, cfg config, kind fhicl.Kind, msg *log.Logger) error {
	var mailer *notify.Mailer
	if cfg.mail {
		mailer = notify.FromEnv()
		err := mailer.Valid()
		if err != nil {
			return fmt.Errorf("could not setup mail notification: %w", err)
		}
	}

	points := []fhicl.Params{fhicl.Tuned()}
	if cfg.grid != "" {
		axes, err := grid.Load(cfg.grid)
		if err != nil {
			return fmt.Errorf("could not load parameter grid: %w", err)
		}
		points, err = axes.Points(false)
		if err != nil {
			return fmt.Errorf("could not create parameter grid: %w", err)
		}
	}

	name := cfg.db
	if name == "" {
		name = fmt.Sprintf("hitTuning_%s.db", cfg.tag)
	}
	db, err := openDB(name, msg)
	if err != nil {
		return err
	}
	defer db.Close()

	s := scan.New(db, newRunner(cfg, msg), msg)
	s.AnaFCL = cfg.ana

	sum, err := s.RunLocal(ctx, scan.Local{
		OutDir:  cfg.outDir,
		Tag:     cfg.tag,
		Kind:    kind,
		Input:   cfg.input,
		JobNum:  cfg.job,
		Debug:   cfg.debug,
		Options: cfg.opts,
		Jobs:    cfg.jobs,
		Verbose: cfg.verbose,
	}, points)
	msg.Printf("scan summary:\n%s", sum)

	if mailer != nil {
		subject := fmt.Sprintf("hittune: scan %q done", cfg.tag)
		if err != nil {
			subject = fmt.Sprintf("hittune: scan %q interrupted", cfg.tag)
		}
		if err := mailer.Send(subject, sum.String()); err != nil {
			msg.Printf("could not send scan summary: %+v", err)
		}
	}

	if err != nil {
		return fmt.Errorf("could not run scan %q: %w", cfg.tag, err)
	}

	err = db.Close()
	if err != nil {
		return fmt.Errorf("could not close database %q: %w", name, err)
	}
	return nil
}
