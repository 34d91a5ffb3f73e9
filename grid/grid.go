// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package grid builds the hit finder parameter grid scanned by hittune.
package grid // import "github.com/go-lpc/hittune/grid"

import (
	"fmt"
	"math"
	"os"

	"github.com/go-lpc/hittune/fhicl"
	"gopkg.in/yaml.v3"
)

// Set is one candidate value of a per-plane parameter.
// A single value is replicated over all planes.
type Set []float64

// UnmarshalYAML decodes a Set from a scalar or a sequence.
func (s *Set) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		err := node.Decode(&v)
		if err != nil {
			return err
		}
		*s = Set{v}
		return nil
	case yaml.SequenceNode:
		var vs []float64
		err := node.Decode(&vs)
		if err != nil {
			return err
		}
		*s = vs
		return nil
	default:
		return fmt.Errorf("grid: line %d: invalid value set", node.Line)
	}
}

func (s Set) planes() ([3]float64, error) {
	var o [3]float64
	if len(s) == 0 {
		return o, fmt.Errorf("empty value set")
	}
	for i := range o {
		o[i] = s[min(i, len(s)-1)]
	}
	return o, nil
}

// Axes holds the candidate values of each hit finder parameter.
type Axes struct {
	RoiThreshold    []Set     `yaml:"roiThreshold"`
	MinPulseHeight  []Set     `yaml:"minPulseHeight"`
	MinPulseSigma   []Set     `yaml:"minPulseSigma"`
	LongMaxHits     []Set     `yaml:"LongMaxHits"`
	LongPulseWidth  []Set     `yaml:"LongPulseWidth"`
	PulseHeightCuts []Set     `yaml:"PulseHeightCuts"`
	PulseWidthCuts  []Set     `yaml:"PulseWidthCuts"`
	PulseRatioCuts  []Set     `yaml:"PulseRatioCuts"`
	MaxMultiHit     []int     `yaml:"MaxMultiHit"`
	Chi2NDF         []float64 `yaml:"Chi2NDF"`
}

// Default returns the axes of the nominal ICARUS scan.
func Default() Axes {
	return Axes{
		RoiThreshold:    []Set{{6}, {5}, {4}, {3}, {2}, {1}},
		MinPulseHeight:  []Set{{2}},
		MinPulseSigma:   []Set{{1}},
		LongMaxHits:     []Set{{1}, {5}, {10}, {15}},
		LongPulseWidth:  []Set{{2}, {5}, {8}},
		PulseHeightCuts: []Set{{2}, {3}},
		PulseWidthCuts:  []Set{{2, 1.5, 1}},
		PulseRatioCuts:  []Set{{0.35, 0.4, 0.2}},
		MaxMultiHit:     []int{5, 7, 10, 12},
		Chi2NDF:         []float64{500, 1000, 1500, 2000, 2500},
	}
}

// Load reads axes from the named YAML file.
// Parameters missing from the file keep their default axis.
func Load(fname string) (Axes, error) {
	axes := Default()

	raw, err := os.ReadFile(fname)
	if err != nil {
		return axes, fmt.Errorf("grid: could not read grid file: %w", err)
	}

	err = yaml.Unmarshal(raw, &axes)
	if err != nil {
		return axes, fmt.Errorf("grid: could not decode grid file %q: %w", fname, err)
	}

	err = axes.Validate()
	if err != nil {
		return axes, fmt.Errorf("grid: invalid grid file %q: %w", fname, err)
	}

	return axes, nil
}

func (axes Axes) sets() []struct {
	name string
	sets []Set
} {
	return []struct {
		name string
		sets []Set
	}{
		{"roiThreshold", axes.RoiThreshold},
		{"minPulseHeight", axes.MinPulseHeight},
		{"minPulseSigma", axes.MinPulseSigma},
		{"LongMaxHits", axes.LongMaxHits},
		{"LongPulseWidth", axes.LongPulseWidth},
		{"PulseHeightCuts", axes.PulseHeightCuts},
		{"PulseWidthCuts", axes.PulseWidthCuts},
		{"PulseRatioCuts", axes.PulseRatioCuts},
	}
}

// Validate checks that every axis holds at least one valid value.
func (axes Axes) Validate() error {
	for _, axis := range axes.sets() {
		if len(axis.sets) == 0 {
			return fmt.Errorf("empty %s axis", axis.name)
		}
		for i, set := range axis.sets {
			if len(set) == 0 {
				return fmt.Errorf("empty %s value set #%d", axis.name, i)
			}
		}
	}
	for i, set := range axes.LongMaxHits {
		for _, v := range set {
			if v != math.Trunc(v) {
				return fmt.Errorf("non-integer LongMaxHits value set #%d: %v", i, set)
			}
		}
	}
	if len(axes.MaxMultiHit) == 0 {
		return fmt.Errorf("empty MaxMultiHit axis")
	}
	if len(axes.Chi2NDF) == 0 {
		return fmt.Errorf("empty Chi2NDF axis")
	}
	return nil
}

func (axes Axes) shape() []int {
	var shape []int
	for _, axis := range axes.sets() {
		shape = append(shape, len(axis.sets))
	}
	return append(shape, len(axes.MaxMultiHit), len(axes.Chi2NDF))
}

// Len returns the number of points in the grid.
func (axes Axes) Len() int {
	n := 1
	for _, v := range axes.shape() {
		n *= v
	}
	return n
}

// Points returns the flat Cartesian product of all axes, in declaration
// order with the last axis varying fastest.
// When defaultFirst is true, the nominal parameters are prepended.
func (axes Axes) Points(defaultFirst bool) ([]fhicl.Params, error) {
	err := axes.Validate()
	if err != nil {
		return nil, fmt.Errorf("grid: invalid axes: %w", err)
	}

	var (
		shape = axes.shape()
		idx   = make([]int, len(shape))
		ps    = make([]fhicl.Params, 0, axes.Len()+1)
	)

	if defaultFirst {
		ps = append(ps, fhicl.Default())
	}

	for {
		p, err := axes.at(idx)
		if err != nil {
			return nil, fmt.Errorf("grid: could not build point %v: %w", idx, err)
		}
		ps = append(ps, p)

		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}

	return ps, nil
}

func (axes Axes) at(idx []int) (fhicl.Params, error) {
	var (
		p    fhicl.Params
		dsts = []*[3]float64{
			&p.RoiThreshold,
			&p.MinPulseHeight,
			&p.MinPulseSigma,
			nil, // LongMaxHits
			&p.LongPulseWidth,
			&p.PulseHeightCuts,
			&p.PulseWidthCuts,
			&p.PulseRatioCuts,
		}
	)

	for i, axis := range axes.sets() {
		vs, err := axis.sets[idx[i]].planes()
		if err != nil {
			return p, fmt.Errorf("invalid %s: %w", axis.name, err)
		}
		switch dst := dsts[i]; dst {
		case nil:
			for j, v := range vs {
				p.LongMaxHits[j] = int(v)
			}
		default:
			*dst = vs
		}
	}

	n := len(idx)
	p.MaxMultiHit = axes.MaxMultiHit[idx[n-2]]
	p.Chi2NDF = axes.Chi2NDF[idx[n-1]]

	return p, nil
}
