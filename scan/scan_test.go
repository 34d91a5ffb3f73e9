// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/go-lpc/hittune/effana"
	"github.com/go-lpc/hittune/fhicl"
	"github.com/go-lpc/hittune/hitdb"
	"github.com/go-lpc/hittune/lar"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

// installLAr puts a fake lar executable first on $PATH.
// The fake lar creates the requested output and copies the ntuple fixture
// to the requested TFileService file. It fails for configurations with
// MaxMultiHit set to 13.
func installLAr(t *testing.T) (calls string) {
	t.Helper()
	dir := t.TempDir()

	ntuple := filepath.Join(dir, "fixture.root")
	w, err := effana.Create(ntuple)
	if err != nil {
		t.Fatalf("could not create ntuple fixture: %+v", err)
	}
	err = w.Write(effana.Event{
		Run: 1, Event: 1,
		Hits: []effana.Hit{{PeakAmplitude: 10, RMS: 2}},
		Matches: []effana.Match{
			{Plane: 0, PDG: 11, Energy: 2, IDEFraction: 1, NDF: 1},
		},
		IDEs: []effana.IDE{{Channel: 100, TrackID: 1, Energy: 4}},
	})
	if err != nil {
		t.Fatalf("could not write ntuple fixture: %+v", err)
	}
	err = w.Close()
	if err != nil {
		t.Fatalf("could not close ntuple fixture: %+v", err)
	}

	calls = filepath.Join(dir, "calls.txt")
	script := `#!/bin/sh
echo "$@" >> ` + calls + `
fcl=""; out=""; tfile=""
while [ $# -gt 0 ]; do
	case "$1" in
		-c) fcl="$2"; shift;;
		-o) out="$2"; shift;;
		-T) tfile="$2"; shift;;
	esac
	shift
done
if grep -q "MaxMultiHit: *13$" "$fcl"; then
	echo "bad configuration" >&2
	exit 1
fi
[ -n "$out" ] && echo "reco" > "$out"
[ -n "$tfile" ] && cp ` + ntuple + ` "$tfile"
exit 0
`
	err = os.WriteFile(filepath.Join(dir, "lar"), []byte(script), 0755)
	if err != nil {
		t.Fatalf("could not create fake lar: %+v", err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return calls
}

func newScanner(t *testing.T, dir string) (*Scanner, *hitdb.DB, *bytes.Buffer) {
	t.Helper()
	out := new(bytes.Buffer)
	msg := log.New(out, "scan: ", 0)

	db, err := hitdb.Open(filepath.Join(dir, "hitTuning_test.db"), hitdb.WithLogger(msg))
	if err != nil {
		t.Fatalf("could not open db: %+v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ana := filepath.Join(dir, "hitana.fcl")
	err = os.WriteFile(ana, []byte("#include \"hitana.fcl\"\n"), 0644)
	if err != nil {
		t.Fatalf("could not create analysis fcl: %+v", err)
	}

	s := New(db, lar.NewRunner(msg), msg)
	s.AnaFCL = ana
	return s, db, out
}

func withMultiHit(n int) fhicl.Params {
	p := fhicl.Default()
	p.MaxMultiHit = n
	return p
}

func TestCreateGrid(t *testing.T) {
	points := []fhicl.Params{withMultiHit(3), withMultiHit(4), withMultiHit(5)}

	for _, tc := range []struct {
		name  string
		debug bool
		want  int
	}{
		{"all", false, 3},
		{"debug", true, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "fclFiles")
			out := new(bytes.Buffer)
			fnames, err := CreateGrid(Grid{Dir: dir, Tag: "grid", Kind: fhicl.MC, Debug: tc.debug}, points, log.New(out, "", 0))
			if err != nil {
				t.Fatalf("could not create grid: %+v", err)
			}
			if got, want := len(fnames), tc.want; got != want {
				t.Fatalf("invalid number of files: got=%d, want=%d", got, want)
			}
			for i, fname := range fnames {
				if got, want := fname, filepath.Join(dir, "hitTuning_grid_"+strconv.Itoa(i)+".fcl"); got != want {
					t.Fatalf("invalid file name: got=%q, want=%q", got, want)
				}
				p, err := fhicl.ParseFile(fname)
				if err != nil {
					t.Fatalf("could not parse %q: %+v", fname, err)
				}
				if diff := cmp.Diff(points[i], p); diff != "" {
					t.Fatalf("invalid parameters (-want +got):\n%s", diff)
				}
			}
			if got, want := out.String(), "creating FHiCL for parameter set 0/3\n"; got != want {
				t.Fatalf("invalid log:\ngot= %q\nwant=%q", got, want)
			}
		})
	}
}

func TestRunJob(t *testing.T) {
	calls := installLAr(t)
	dir := t.TempDir()
	s, db, out := newScanner(t, dir)

	fcl := filepath.Join(dir, "hitTuning_grid_7.fcl")
	err := fhicl.GenerateFile(fcl, fhicl.MC, fhicl.Tuned(), nil)
	if err != nil {
		t.Fatalf("could not generate fcl: %+v", err)
	}

	output := filepath.Join(dir, "output.root")
	ctx := context.Background()
	id, err := s.RunJob(ctx, Job{
		FCL:    fcl,
		Output: output,
		Input:  "files.txt",
		Num:    7,
	})
	if err != nil {
		t.Fatalf("could not run job: %+v\n%s", err, out.String())
	}

	run, err := db.Run(ctx, id)
	if err != nil {
		t.Fatalf("could not get run: %+v", err)
	}
	if got, want := run.JobNum, int64(7); got != want {
		t.Fatalf("invalid job number: got=%d, want=%d", got, want)
	}
	if got, want := run.FCL, fcl; got != want {
		t.Fatalf("invalid fcl: got=%q, want=%q", got, want)
	}
	if got, want := run.Output, output; got != want {
		t.Fatalf("invalid output: got=%q, want=%q", got, want)
	}
	if got, want := run.Hist, filepath.Join(dir, "hist_output_7.root"); got != want {
		t.Fatalf("invalid hist: got=%q, want=%q", got, want)
	}
	if diff := cmp.Diff(fhicl.Tuned(), run.Params); diff != "" {
		t.Fatalf("invalid parameters (-want +got):\n%s", diff)
	}

	want := hitdb.Results{
		hitdb.Total:    {0.5, 0.5, 0, 0},
		hitdb.Electron: {0.5, 0.5, 0, 0},
	}
	if diff := cmp.Diff(want, run.Results); diff != "" {
		t.Fatalf("invalid results (-want +got):\n%s", diff)
	}

	raw, err := os.ReadFile(calls)
	if err != nil {
		t.Fatalf("could not read lar calls: %+v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	wantCalls := []string{
		"-c " + fcl + " --source-list files.txt -o " + output + " -n 5",
		"-c " + s.AnaFCL + " -s " + output + " -T " + filepath.Join(dir, "ntuple_7.root") + " -n -1",
	}
	if diff := cmp.Diff(wantCalls, lines); diff != "" {
		t.Fatalf("invalid lar calls (-want +got):\n%s", diff)
	}

	for _, want := range []string{"added run with ID: 1", "total runs in database: 1"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in log:\n%s", want, out.String())
		}
	}
}

func TestRunJobErrors(t *testing.T) {
	installLAr(t)
	dir := t.TempDir()
	s, db, _ := newScanner(t, dir)

	fcl := filepath.Join(dir, "bad.fcl")
	err := fhicl.GenerateFile(fcl, fhicl.MC, withMultiHit(13), nil)
	if err != nil {
		t.Fatalf("could not generate fcl: %+v", err)
	}

	for _, tc := range []struct {
		name string
		job  Job
		err  string
	}{
		{
			name: "not-root",
			job:  Job{FCL: fcl, Output: "out.txt"},
			err:  `scan: output "out.txt" must be the name of a .root file`,
		},
		{
			name: "no-fcl",
			job:  Job{Output: "out.root"},
			err:  "scan: missing FHiCL file",
		},
		{
			name: "missing-fcl",
			job:  Job{FCL: filepath.Join(dir, "missing.fcl"), Output: "out.root"},
			err:  "scan: could not read parameters of job 0",
		},
		{
			name: "lar-failure",
			job:  Job{FCL: fcl, Output: filepath.Join(dir, "out.root"), Num: 2},
			err:  `lar: could not run job "` + fcl + `": exit status 1`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.RunJob(context.Background(), tc.job)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.HasPrefix(err.Error(), tc.err) {
				t.Fatalf("invalid error:\ngot= %v\nwant=%v", err, tc.err)
			}
		})
	}

	// the failed job is still recorded, without output.
	runs, err := db.Runs(context.Background())
	if err != nil {
		t.Fatalf("could not get runs: %+v", err)
	}
	if got, want := len(runs), 1; got != want {
		t.Fatalf("invalid number of runs: got=%d, want=%d", got, want)
	}
	if runs[0].Output != "" {
		t.Fatalf("unexpected output for failed run: %q", runs[0].Output)
	}
}

func TestRunLocal(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	installLAr(t)
	dir := t.TempDir()
	s, db, out := newScanner(t, dir)

	outdir := filepath.Join(dir, "fclFiles")
	err := os.MkdirAll(outdir, 0755)
	if err != nil {
		t.Fatalf("could not create output dir: %+v", err)
	}
	// version 0 is already taken.
	err = os.WriteFile(filepath.Join(outdir, "hitTuning_test_0.fcl"), nil, 0644)
	if err != nil {
		t.Fatalf("could not create fcl: %+v", err)
	}

	points := []fhicl.Params{fhicl.Tuned(), withMultiHit(13), withMultiHit(4)}
	ctx := context.Background()
	sum, err := s.RunLocal(ctx, Local{
		OutDir: outdir,
		Tag:    "test",
		Kind:   fhicl.MC,
		Debug:  true,
		Jobs:   2,
	}, points)
	if err != nil {
		t.Fatalf("could not run local scan: %+v", err)
	}

	if got, want := sum.Points, 3; got != want {
		t.Fatalf("invalid number of points: got=%d, want=%d", got, want)
	}
	if got, want := len(sum.Runs), 2; got != want {
		t.Fatalf("invalid number of runs: got=%d, want=%d\n%s", got, want, out.String())
	}
	if got, want := len(sum.Errs), 1; got != want {
		t.Fatalf("invalid number of errors: got=%d, want=%d", got, want)
	}
	if !strings.HasPrefix(sum.Errs[0].Error(), "parameter set 1: lar: could not run job") {
		t.Fatalf("invalid error: %+v", sum.Errs[0])
	}

	runs, err := db.Runs(ctx)
	if err != nil {
		t.Fatalf("could not get runs: %+v", err)
	}
	if got, want := len(runs), 3; got != want {
		t.Fatalf("invalid number of runs: got=%d, want=%d", got, want)
	}

	var fcls []string
	for _, run := range runs {
		fcls = append(fcls, filepath.Base(run.FCL))
		switch run.Params.MaxMultiHit {
		case 13:
			if run.Output != "" || run.Hist != "" {
				t.Fatalf("unexpected files for failed run: %+v", run)
			}
			if run.Results != hitdb.NewResults() {
				t.Fatalf("unexpected results for failed run: %v", run.Results)
			}
		default:
			files := VersionFiles(outdir, "test", version(t, run.FCL))
			if run.Output != files.Output || run.Hist != files.Hist {
				t.Fatalf("invalid files for run %d: %+v", run.ID, run)
			}
			if got, want := run.Results[hitdb.Electron][0], 0.5; got != want {
				t.Fatalf("invalid results: got=%v, want=%v", got, want)
			}
		}
	}
	sort.Strings(fcls)
	if diff := cmp.Diff([]string{"hitTuning_test_1.fcl", "hitTuning_test_2.fcl", "hitTuning_test_3.fcl"}, fcls); diff != "" {
		t.Fatalf("invalid versions (-want +got):\n%s", diff)
	}
}

func version(t *testing.T, fcl string) int {
	t.Helper()
	name := strings.TrimSuffix(filepath.Base(fcl), ".fcl")
	v, err := strconv.Atoi(name[strings.LastIndex(name, "_")+1:])
	if err != nil {
		t.Fatalf("could not parse version of %q: %+v", fcl, err)
	}
	return v
}

func TestRunLocalData(t *testing.T) {
	calls := installLAr(t)
	dir := t.TempDir()
	s, db, _ := newScanner(t, dir)

	ctx := context.Background()
	sum, err := s.RunLocal(ctx, Local{
		OutDir:  dir,
		Tag:     "data",
		Kind:    fhicl.Data,
		Input:   "run9963.root",
		Options: "-n 1 --nskip 3",
	}, []fhicl.Params{fhicl.Tuned()})
	if err != nil {
		t.Fatalf("could not run local scan: %+v", err)
	}
	if len(sum.Errs) != 0 {
		t.Fatalf("unexpected errors: %v", sum.Errs)
	}

	run, err := db.Run(ctx, sum.Runs[0])
	if err != nil {
		t.Fatalf("could not get run: %+v", err)
	}
	files := VersionFiles(dir, "data", 0)
	if run.Hist != files.Hist {
		t.Fatalf("invalid hist: got=%q, want=%q", run.Hist, files.Hist)
	}
	if run.Results != hitdb.NewResults() {
		t.Fatalf("unexpected results for data run: %v", run.Results)
	}
	if _, err := os.Stat(files.Hist); err != nil {
		t.Fatalf("missing hist file: %+v", err)
	}
	if _, err := os.Stat(strings.TrimSuffix(files.Output, ".root") + ".log"); err != nil {
		t.Fatalf("missing lar log file: %+v", err)
	}

	raw, err := os.ReadFile(calls)
	if err != nil {
		t.Fatalf("could not read lar calls: %+v", err)
	}
	if want := "-c " + files.FCL + " -s run9963.root -o " + files.Output + " -n 1 --nskip 3\n"; !strings.HasPrefix(string(raw), want) {
		t.Fatalf("invalid lar call:\ngot= %q\nwant=%q", raw, want)
	}
}

func TestRunLocalNoAnalysis(t *testing.T) {
	installLAr(t)
	dir := t.TempDir()
	s, db, out := newScanner(t, dir)
	s.AnaFCL = ""

	ctx := context.Background()
	sum, err := s.RunLocal(ctx, Local{OutDir: dir, Tag: "ana", Kind: fhicl.MC}, []fhicl.Params{fhicl.Default()})
	if err != nil {
		t.Fatalf("could not run local scan: %+v", err)
	}
	run, err := db.Run(ctx, sum.Runs[0])
	if err != nil {
		t.Fatalf("could not get run: %+v", err)
	}
	if run.Hist != "" {
		t.Fatalf("unexpected hist file: %q", run.Hist)
	}
	if !strings.Contains(out.String(), "no analysis FHiCL: skipping analysis of run 1") {
		t.Fatalf("invalid log:\n%s", out.String())
	}
}

func TestRunLocalCanceled(t *testing.T) {
	installLAr(t)
	dir := t.TempDir()
	s, db, _ := newScanner(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RunLocal(ctx, Local{OutDir: dir, Tag: "cancel"}, []fhicl.Params{fhicl.Default()})
	if err == nil {
		t.Fatalf("expected an error")
	}
	n, err := db.Count(context.Background())
	if err != nil {
		t.Fatalf("could not count runs: %+v", err)
	}
	if n != 0 {
		t.Fatalf("unexpected runs: %d", n)
	}
}

func TestSummary(t *testing.T) {
	sum := Summary{
		Points: 3,
		Runs:   []int64{1, 3},
		Errs:   []error{os.ErrNotExist},
	}
	want := `points:  3
success: 2
failure: 1
 - file does not exist
`
	if got := sum.String(); got != want {
		t.Fatalf("invalid summary:\ngot:\n%s\nwant:\n%s", got, want)
	}
}
