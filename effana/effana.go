// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package effana computes the hit-finding efficiency of a reconstruction
// job from the per-event ntuple of matched hits and simulated energy
// depositions.
package effana // import "github.com/go-lpc/hittune/effana"

import (
	"fmt"
	"log"
	"math"
	"os"

	"github.com/go-lpc/hittune/hitdb"
	"github.com/go-lpc/hittune/icarus"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/hbook"
)

// SpeciesOf returns the species of a particle with the given PDG code.
func SpeciesOf(pdg int32) (hitdb.Species, bool) {
	switch abs(pdg) {
	case 11:
		return hitdb.Electron, true
	case 22:
		return hitdb.Photon, true
	case 13:
		return hitdb.Muon, true
	case 2212:
		return hitdb.Proton, true
	case 211, 111:
		return hitdb.Pion, true
	}
	return hitdb.Total, false
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// analysis accumulates the energy sums and histograms of the
// efficiency analysis.
type analysis struct {
	hitE [hitdb.NumSpecies][icarus.NumPlanes]float64
	ideE [hitdb.NumSpecies][icarus.NumPlanes]float64

	species [hitdb.NumSpecies]*speciesHists
	hits    *hitSummary

	particles *hbook.H1D // species found per event
	maxE      *hbook.H1D // species of the highest energy deposition

	nevts  int
	nskips int
}

func newAnalysis() *analysis {
	ana := &analysis{
		hits:      newHitSummary(mcBinning),
		particles: newH1D("h_particleCount", "Particle Count per Event;Particle Type;Counts", binning{6, 0, 6}),
		maxE:      newH1D("h_maxEParticleCount", "Highest Energy Particle per Event;Particle Type;Counts", binning{6, 0, 6}),
	}
	for i := range ana.species {
		ana.species[i] = newSpeciesHists(hitdb.Species(i))
	}
	return ana
}

func (ana *analysis) process(evt Event) {
	ana.nevts++
	ana.hits.fill(evt)

	var (
		hitE  [icarus.NumPlanes]float64
		ideE  [icarus.NumPlanes]float64
		found [hitdb.NumSpecies]bool
	)

	for _, m := range evt.Matches {
		if m.Plane < 0 || m.Plane >= icarus.NumPlanes {
			continue
		}
		if sp, ok := SpeciesOf(m.PDG); ok {
			if m.Energy > 0 {
				found[sp] = true
			}
			if m.IDEFraction > 0.5 {
				ana.species[sp].fillHit(m)
			}
		}
		ana.species[hitdb.Total].fillHit(m)
		hitE[m.Plane] += float64(m.Energy) * float64(m.IDEFraction)
	}

	hasSpecies := false
	for _, v := range found[hitdb.Electron:] {
		hasSpecies = hasSpecies || v
	}
	if !hasSpecies {
		ana.nskips++
		return
	}
	found[hitdb.Total] = true

	tracks := make(map[int32]Particle, len(evt.Particles))
	for _, p := range evt.Particles {
		tracks[p.TrackID] = p
	}

	var (
		emax     = -1.0
		maxTrack = int32(-1)
		maxPDG   int32
		hasPDG   bool
	)
	for _, ide := range evt.IDEs {
		plane := icarus.Plane(int(ide.Channel))
		if plane < 0 {
			continue
		}
		e := float64(ide.Energy)
		ideE[plane] += e
		if e > emax {
			emax = e
			maxTrack = ide.TrackID
			if p, ok := tracks[ide.TrackID]; ok {
				maxPDG = p.PDG
				hasPDG = true
			}
		}
	}

	theta, phi := -9999.0, -9999.0
	if p, ok := tracks[maxTrack]; ok && maxTrack != -1 {
		theta, phi = angles(p)
	}

	maxSp := hitdb.Total
	if hasPDG {
		sp, ok := SpeciesOf(maxPDG)
		switch {
		case ok:
			maxSp = sp
			fill(ana.maxE, float64(sp-1))
		default:
			fill(ana.maxE, 5)
		}
	}

	ratio := 0.0
	for i := 0; i < icarus.NumPlanes; i++ {
		if ideE[i] > 0 {
			ratio += hitE[i] / ideE[i]
		}
	}
	ana.species[hitdb.Total].fillAngles(theta, phi, ratio)

	for sp, ok := range found {
		if !ok {
			continue
		}
		hs := ana.species[sp]
		for i := 0; i < icarus.NumPlanes; i++ {
			hs.fillEvent(i, hitE[i], ideE[i])
			ana.hitE[sp][i] += hitE[i]
			ana.ideE[sp][i] += ideE[i]
		}
		if sp == int(hitdb.Total) {
			continue
		}
		fill(ana.particles, float64(sp-1))
		if hasPDG && maxSp == hitdb.Species(sp) {
			hs.fillAngles(theta, phi, ratio)
		}
	}
}

func (ana *analysis) results() hitdb.Results {
	var res hitdb.Results
	for sp := range res {
		var hit, ide float64
		for i := 0; i < icarus.NumPlanes; i++ {
			hit += ana.hitE[sp][i]
			ide += ana.ideE[sp][i]
			res[sp][i+1] = safeDiv(ana.hitE[sp][i], ana.ideE[sp][i])
		}
		res[sp][0] = safeDiv(hit, ide)
	}
	return res
}

func (ana *analysis) write(dir riofs.Directory) error {
	for _, h := range []*hbook.H1D{ana.particles, ana.maxE} {
		err := put(dir, h)
		if err != nil {
			return err
		}
	}
	for _, hs := range ana.species {
		err := hs.write(dir)
		if err != nil {
			return err
		}
	}
	return ana.hits.write(dir)
}

// angles returns the polar and azimuthal angles of the momentum of p.
func angles(p Particle) (theta, phi float64) {
	var (
		px = float64(p.Px)
		py = float64(p.Py)
		pz = float64(p.Pz)
	)
	if px == 0 && py == 0 && pz == 0 {
		return 0, 0
	}
	return math.Atan2(math.Hypot(px, py), pz), math.Atan2(py, px)
}

// Analyze runs the efficiency analysis over the events of the ntuple
// file and writes the histograms to the hist file.
//
// The returned results hold, for each species, the ratio of matched hit
// energy over deposited energy summed over all planes, followed by the
// ratio on each plane. Ratios with no deposited energy are zero.
func Analyze(ntuple, hist string, msg *log.Logger) (hitdb.Results, error) {
	if msg == nil {
		msg = log.New(os.Stdout, "effana: ", 0)
	}

	ana := newAnalysis()
	err := ReadEvents(ntuple, func(evt Event) error {
		ana.process(evt)
		return nil
	})
	if err != nil {
		return hitdb.NewResults(), err
	}
	msg.Printf("processed %d events (%d without particles of interest)", ana.nevts, ana.nskips)

	for i := 0; i < icarus.NumPlanes; i++ {
		msg.Printf(
			"plane %d: total hit energy: %g MeV, total IDE energy: %g MeV",
			i, ana.hitE[hitdb.Total][i], ana.ideE[hitdb.Total][i],
		)
	}

	err = writeHists(hist, ana.write)
	if err != nil {
		return hitdb.NewResults(), err
	}

	return ana.results(), nil
}

// HitSummary fills the per-TPC hit histograms of the events of the
// ntuple file and writes them to the hist file.
func HitSummary(ntuple, hist string, msg *log.Logger) error {
	if msg == nil {
		msg = log.New(os.Stdout, "effana: ", 0)
	}

	var (
		sum   = newHitSummary(dataBinning)
		nevts = 0
	)
	err := ReadEvents(ntuple, func(evt Event) error {
		nevts++
		sum.fill(evt)
		return nil
	})
	if err != nil {
		return err
	}
	msg.Printf("processed %d events", nevts)

	return writeHists(hist, sum.write)
}

func writeHists(fname string, write func(dir riofs.Directory) error) error {
	f, err := groot.Create(fname)
	if err != nil {
		return fmt.Errorf("effana: could not create hist file %q: %w", fname, err)
	}

	err = write(riofs.Dir(f))
	if err != nil {
		_ = f.Close()
		return err
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("effana: could not close hist file %q: %w", fname, err)
	}
	return nil
}
