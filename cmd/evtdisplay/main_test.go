// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-lpc/hittune/effana"
	"github.com/go-lpc/hittune/evtdisplay"
	"github.com/go-lpc/hittune/icarus"
)

func TestRangeFlag(t *testing.T) {
	for _, tc := range []struct {
		v    string
		want rangeFlag
		err  string
	}{
		{v: "0,5000", want: rangeFlag{0, 5000}},
		{v: " 10 , 20 ", want: rangeFlag{10, 20}},
		{v: "10", err: `invalid range "10" (want min,max)`},
		{v: "a,20", err: `invalid range minimum "a"`},
		{v: "10,b", err: `invalid range maximum "b"`},
	} {
		t.Run(tc.v, func(t *testing.T) {
			var r rangeFlag
			err := r.Set(tc.v)
			switch {
			case tc.err != "":
				if err == nil {
					t.Fatalf("expected an error")
				}
				if got := err.Error(); !strings.HasPrefix(got, tc.err) {
					t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, tc.err)
				}
				return
			case err != nil:
				t.Fatalf("could not parse range: %+v", err)
			}
			if r != tc.want {
				t.Fatalf("invalid range: got=%v, want=%v", r, tc.want)
			}
			if got, want := r.String(), tc.want.String(); got != want {
				t.Fatalf("invalid string: got=%q, want=%q", got, want)
			}
		})
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "event.root")

	sig := make([]float32, 100)
	for i := range sig {
		sig[i] = float32(i % 10)
	}
	ww, err := evtdisplay.CreateWires(fname)
	if err != nil {
		t.Fatalf("could not create wires file: %+v", err)
	}
	err = ww.Write(evtdisplay.Wire{Run: 9963, Event: 3, TPC: icarus.WW, Channel: 41500, Signal: sig})
	if err != nil {
		t.Fatalf("could not write wire: %+v", err)
	}
	err = ww.Close()
	if err != nil {
		t.Fatalf("could not close wires file: %+v", err)
	}

	hits := filepath.Join(dir, "hits.root")
	hw, err := effana.Create(hits)
	if err != nil {
		t.Fatalf("could not create hits file: %+v", err)
	}
	err = hw.Write(effana.Event{
		Run: 9963, Event: 3,
		Hits: []effana.Hit{{TPC: icarus.WW, Channel: 41500, PeakTime: 50, PeakAmplitude: 9, RMS: 3}},
	})
	if err != nil {
		t.Fatalf("could not write hits: %+v", err)
	}
	err = hw.Close()
	if err != nil {
		t.Fatalf("could not close hits file: %+v", err)
	}

	cfg := evtdisplay.Default()
	cfg.Wires = fname
	cfg.Hits = hits
	cfg.OutDir = filepath.Join(dir, "displays")
	cfg.Event = 3
	cfg.Ticks = [2]int{0, 100}

	out := new(bytes.Buffer)
	err = run(cfg, log.New(out, "", 0))
	if err != nil {
		t.Fatalf("could not display event: %+v", err)
	}

	fnames, err := filepath.Glob(filepath.Join(cfg.OutDir, "*"))
	if err != nil {
		t.Fatalf("could not list displays: %+v", err)
	}
	if got, want := len(fnames), 1+2*len(icarus.TPCs); got != want {
		t.Fatalf("invalid number of files: got=%d, want=%d", got, want)
	}
	for _, fname := range fnames {
		if !strings.Contains(out.String(), "created "+fname) {
			t.Fatalf("missing %q in log:\n%s", fname, out.String())
		}
		if _, err := os.Stat(fname); err != nil {
			t.Fatalf("could not stat %q: %+v", fname, err)
		}
	}
}

func TestRunMissingInput(t *testing.T) {
	err := run(evtdisplay.Default(), log.New(new(bytes.Buffer), "", 0))
	if err == nil {
		t.Fatalf("expected an error")
	}
	if got, want := err.Error(), "missing input file"; got != want {
		t.Fatalf("invalid error: got=%q, want=%q", got, want)
	}
}
