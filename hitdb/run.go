// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hitdb

import (
	"fmt"
	"time"

	"github.com/go-lpc/hittune/fhicl"
)

// Sentinel is the value of a ratio not yet computed.
const Sentinel = -1

// Species identifies a class of simulated particles.
type Species uint8

const (
	Total    Species = iota // all particles
	Electron                // |pdg| = 11
	Photon                  // |pdg| = 22
	Muon                    // |pdg| = 13
	Proton                  // |pdg| = 2212
	Pion                    // |pdg| = 211, 111

	NumSpecies = int(Pion) + 1
)

var species = [NumSpecies]string{"total", "ele", "gamma", "mu", "p", "pi"}

func (sp Species) String() string {
	if int(sp) < NumSpecies {
		return species[sp]
	}
	return fmt.Sprintf("Species(%d)", uint8(sp))
}

// Results holds the ratios of reconstructed hit energy over deposited
// energy, per species. For each species, the first entry is the ratio
// over all planes, followed by the ratio on each plane.
type Results [NumSpecies][4]float64

// NewResults returns results with all ratios set to Sentinel.
func NewResults() Results {
	var res Results
	for i := range res {
		for j := range res[i] {
			res[i][j] = Sentinel
		}
	}
	return res
}

// Run describes one reconstruction job.
type Run struct {
	ID        int64
	JobNum    int64
	Timestamp string
	FCL       string // FHiCL configuration file
	Output    string // reconstructed output file
	Hist      string // histograms of the efficiency analysis
	Params    fhicl.Params
	Notes     string
	Results   Results
}

// Time returns the creation time of the run.
func (run Run) Time() (time.Time, error) {
	return time.ParseInLocation("2006-01-02T15:04:05.999999", run.Timestamp, time.Local)
}

var paramNames = [...]string{
	"roiThreshold",
	"minPulseHeight",
	"minPulseSigma",
	"LongMaxHits",
	"LongPulseWidth",
	"PulseHeightCuts",
	"PulseWidthCuts",
	"PulseRatioCuts",
}

var (
	columns     = makeColumns()
	columnSet   = makeColumnSet(columns)
	ratioOffset = len(columns) - NumSpecies*4
)

func makeColumns() []string {
	cols := []string{
		"id", "jobNum", "timestamp",
		"fcl_filename", "output_filename", "hist_filename",
	}
	for _, name := range paramNames {
		for i := 0; i < 3; i++ {
			cols = append(cols, fmt.Sprintf("%s_%d", name, i))
		}
	}
	cols = append(cols, "MaxMultiHit", "Chi2NDF", "notes")
	for _, sp := range species {
		cols = append(cols, "ratio_"+sp)
		for i := 0; i < 3; i++ {
			cols = append(cols, fmt.Sprintf("ratio_%s%d", sp, i))
		}
	}
	return cols
}

func makeColumnSet(cols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		set[c] = struct{}{}
	}
	return set
}

// Columns returns the names of the columns of the runs table.
func Columns() []string {
	return append([]string(nil), columns...)
}

// RatioColumn returns the name of the column holding the ratio of
// species sp on plane (-1 for all planes).
func RatioColumn(sp Species, plane int) string {
	if plane < 0 {
		return "ratio_" + sp.String()
	}
	return fmt.Sprintf("ratio_%v%d", sp, plane)
}

func paramValues(p fhicl.Params) []any {
	vs := make([]any, 0, 3*len(paramNames)+2)
	for _, arr := range [][3]float64{p.RoiThreshold, p.MinPulseHeight, p.MinPulseSigma} {
		vs = append(vs, arr[0], arr[1], arr[2])
	}
	vs = append(vs, p.LongMaxHits[0], p.LongMaxHits[1], p.LongMaxHits[2])
	for _, arr := range [][3]float64{p.LongPulseWidth, p.PulseHeightCuts, p.PulseWidthCuts, p.PulseRatioCuts} {
		vs = append(vs, arr[0], arr[1], arr[2])
	}
	return append(vs, p.MaxMultiHit, p.Chi2NDF)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
