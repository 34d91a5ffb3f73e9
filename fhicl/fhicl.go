// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fhicl generates and reads back the FHiCL configuration files
// driving the ICARUS Gaussian hit finders.
package fhicl // import "github.com/go-lpc/hittune/fhicl"

import (
	"strconv"
	"strings"
)

// Params holds the tunable parameters of the Gaussian hit finder.
// Array fields hold one value per wire plane.
type Params struct {
	RoiThreshold    [3]float64 `yaml:"roiThreshold"`
	MinPulseHeight  [3]float64 `yaml:"minPulseHeight"`
	MinPulseSigma   [3]float64 `yaml:"minPulseSigma"`
	LongMaxHits     [3]int     `yaml:"LongMaxHits"`
	LongPulseWidth  [3]float64 `yaml:"LongPulseWidth"`
	PulseHeightCuts [3]float64 `yaml:"PulseHeightCuts"`
	PulseWidthCuts  [3]float64 `yaml:"PulseWidthCuts"`
	PulseRatioCuts  [3]float64 `yaml:"PulseRatioCuts"`
	MaxMultiHit     int        `yaml:"MaxMultiHit"`
	Chi2NDF         float64    `yaml:"Chi2NDF"`
}

// Default returns the nominal hit finder configuration.
func Default() Params {
	return Params{
		RoiThreshold:    [3]float64{5, 5, 5},
		MinPulseHeight:  [3]float64{2, 2, 2},
		MinPulseSigma:   [3]float64{1, 1, 1},
		LongMaxHits:     [3]int{1, 1, 1},
		LongPulseWidth:  [3]float64{10, 10, 10},
		PulseHeightCuts: [3]float64{3, 3, 3},
		PulseWidthCuts:  [3]float64{2, 1.5, 1},
		PulseRatioCuts:  [3]float64{0.35, 0.4, 0.2},
		MaxMultiHit:     5,
		Chi2NDF:         500,
	}
}

// Tuned returns the configuration used for local scans, with lowered
// thresholds and looser long-pulse handling.
func Tuned() Params {
	p := Default()
	p.RoiThreshold = [3]float64{2, 2, 2}
	p.LongMaxHits = [3]int{3, 3, 3}
	p.LongPulseWidth = [3]float64{5, 5, 5}
	p.MaxMultiHit = 10
	p.Chi2NDF = 2500
	return p
}

func (p Params) String() string {
	o := new(strings.Builder)
	o.WriteString("fhicl.Params:\n")
	o.WriteString("    roiThreshold: " + formatFloats(p.RoiThreshold) + "\n")
	o.WriteString("    minPulseHeight: " + formatFloats(p.MinPulseHeight) + "\n")
	o.WriteString("    minPulseSigma: " + formatFloats(p.MinPulseSigma) + "\n")
	o.WriteString("    LongMaxHits: " + formatInts(p.LongMaxHits) + "\n")
	o.WriteString("    LongPulseWidth: " + formatFloats(p.LongPulseWidth) + "\n")
	o.WriteString("    PulseHeightCuts: " + formatFloats(p.PulseHeightCuts) + "\n")
	o.WriteString("    PulseWidthCuts: " + formatFloats(p.PulseWidthCuts) + "\n")
	o.WriteString("    PulseRatioCuts: " + formatFloats(p.PulseRatioCuts) + "\n")
	o.WriteString("    MaxMultiHit: " + strconv.Itoa(p.MaxMultiHit) + "\n")
	o.WriteString("    Chi2NDF: " + formatFloat(p.Chi2NDF))
	return o.String()
}

// formatFloat formats v so that it is always read back as a float.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func formatFloats(vs [3]float64) string {
	return "[" + formatFloat(vs[0]) + ", " + formatFloat(vs[1]) + ", " + formatFloat(vs[2]) + "]"
}

func formatInts(vs [3]int) string {
	return "[" + strconv.Itoa(vs[0]) + ", " + strconv.Itoa(vs[1]) + ", " + strconv.Itoa(vs[2]) + "]"
}
