// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package grid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-lpc/hittune/fhicl"
	"github.com/google/go-cmp/cmp"
)

func TestDefault(t *testing.T) {
	axes := Default()
	if got, want := axes.Len(), 6*1*1*4*3*2*1*1*4*5; got != want {
		t.Fatalf("invalid grid size: got=%d, want=%d", got, want)
	}

	ps, err := axes.Points(true)
	if err != nil {
		t.Fatalf("could not build grid: %+v", err)
	}
	if got, want := len(ps), axes.Len()+1; got != want {
		t.Fatalf("invalid number of points: got=%d, want=%d", got, want)
	}

	if diff := cmp.Diff(fhicl.Default(), ps[0]); diff != "" {
		t.Fatalf("invalid first point (-want +got):\n%s", diff)
	}

	first := fhicl.Params{
		RoiThreshold:    [3]float64{6, 6, 6},
		MinPulseHeight:  [3]float64{2, 2, 2},
		MinPulseSigma:   [3]float64{1, 1, 1},
		LongMaxHits:     [3]int{1, 1, 1},
		LongPulseWidth:  [3]float64{2, 2, 2},
		PulseHeightCuts: [3]float64{2, 2, 2},
		PulseWidthCuts:  [3]float64{2, 1.5, 1},
		PulseRatioCuts:  [3]float64{0.35, 0.4, 0.2},
		MaxMultiHit:     5,
		Chi2NDF:         500,
	}
	if diff := cmp.Diff(first, ps[1]); diff != "" {
		t.Fatalf("invalid grid point #1 (-want +got):\n%s", diff)
	}

	// last axis varies fastest.
	second := first
	second.Chi2NDF = 1000
	if diff := cmp.Diff(second, ps[2]); diff != "" {
		t.Fatalf("invalid grid point #2 (-want +got):\n%s", diff)
	}

	sixth := first
	sixth.MaxMultiHit = 7
	if diff := cmp.Diff(sixth, ps[6]); diff != "" {
		t.Fatalf("invalid grid point #6 (-want +got):\n%s", diff)
	}

	last := first
	last.RoiThreshold = [3]float64{1, 1, 1}
	last.LongMaxHits = [3]int{15, 15, 15}
	last.LongPulseWidth = [3]float64{8, 8, 8}
	last.PulseHeightCuts = [3]float64{3, 3, 3}
	last.MaxMultiHit = 12
	last.Chi2NDF = 2500
	if diff := cmp.Diff(last, ps[len(ps)-1]); diff != "" {
		t.Fatalf("invalid last grid point (-want +got):\n%s", diff)
	}

	ps, err = axes.Points(false)
	if err != nil {
		t.Fatalf("could not build grid: %+v", err)
	}
	if got, want := len(ps), axes.Len(); got != want {
		t.Fatalf("invalid number of points: got=%d, want=%d", got, want)
	}
	if diff := cmp.Diff(first, ps[0]); diff != "" {
		t.Fatalf("invalid first point (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "grid.yaml")
	err := os.WriteFile(fname, []byte(`
roiThreshold: [3, [2, 2.5, 3]]
LongMaxHits: [1, 10]
MaxMultiHit: [8]
Chi2NDF: [1750]
`), 0644)
	if err != nil {
		t.Fatalf("could not write grid file: %+v", err)
	}

	axes, err := Load(fname)
	if err != nil {
		t.Fatalf("could not load grid: %+v", err)
	}

	if diff := cmp.Diff([]Set{{3}, {2, 2.5, 3}}, axes.RoiThreshold); diff != "" {
		t.Fatalf("invalid roiThreshold axis (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Default().LongPulseWidth, axes.LongPulseWidth); diff != "" {
		t.Fatalf("invalid default axis (-want +got):\n%s", diff)
	}
	if got, want := axes.Len(), 2*2*3*2; got != want {
		t.Fatalf("invalid grid size: got=%d, want=%d", got, want)
	}

	ps, err := axes.Points(false)
	if err != nil {
		t.Fatalf("could not build grid: %+v", err)
	}
	if got, want := ps[len(ps)-1].RoiThreshold, [3]float64{2, 2.5, 3}; got != want {
		t.Fatalf("invalid roiThreshold: got=%v, want=%v", got, want)
	}
	if got, want := ps[len(ps)-1].LongMaxHits, [3]int{10, 10, 10}; got != want {
		t.Fatalf("invalid LongMaxHits: got=%v, want=%v", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{"empty-axis", "roiThreshold: []\n"},
		{"empty-set", "PulseWidthCuts: [[]]\n"},
		{"non-integer", "LongMaxHits: [1.5]\n"},
		{"empty-chi2", "Chi2NDF: []\n"},
		{"invalid-set", "PulseRatioCuts: [{a: 1}]\n"},
		{"invalid-yaml", "roiThreshold: [1, 2\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(t.TempDir(), "grid.yaml")
			err := os.WriteFile(fname, []byte(tc.data), 0644)
			if err != nil {
				t.Fatalf("could not write grid file: %+v", err)
			}
			_, err = Load(fname)
			if err == nil {
				t.Fatalf("expected an error")
			}
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
