// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package effana

import (
	"fmt"
	"math"

	"github.com/go-lpc/hittune/hitdb"
	"github.com/go-lpc/hittune/icarus"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/hbook"
)

type binning struct {
	n int
	lo, hi float64
}

func newH1D(name, title string, b binning) *hbook.H1D {
	h := hbook.NewH1D(b.n, b.lo, b.hi)
	h.Annotation()["name"] = name
	h.Annotation()["title"] = title
	return h
}

func newH2D(name, title string, bx, by binning) *hbook.H2D {
	h := hbook.NewH2D(bx.n, bx.lo, bx.hi, by.n, by.lo, by.hi)
	h.Annotation()["name"] = name
	h.Annotation()["title"] = title
	return h
}

// fill fills h with x, skipping values that can not be binned.
func fill(h *hbook.H1D, x float64) {
	if math.IsNaN(x) {
		return
	}
	h.Fill(x, 1)
}

func fill2(h *hbook.H2D, x, y float64) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return
	}
	h.Fill(x, y, 1)
}

// hitBinning describes the binning of the per-TPC hit histograms.
type hitBinning struct {
	peak, nhits, rms, integral, gof, adc, channel binning
}

var (
	dataBinning = hitBinning{
		peak:     binning{400, 0, 400},
		nhits:    binning{250, 0, 25000},
		rms:      binning{100, 0, 20},
		integral: binning{100, 0, 1000},
		gof:      binning{50, 0, 5},
		adc:      binning{500, 0, 1000},
		channel:  binning{3500, 0, 3500},
	}
	mcBinning = hitBinning{
		peak:     binning{400, 0, 400},
		nhits:    binning{250, 0, 1000},
		rms:      binning{100, 0, 20},
		integral: binning{500, 0, 2000},
		gof:      binning{50, 0, 10},
		adc:      binning{500, 0, 2000},
		channel:  binning{3500, 0, 3500},
	}
)

// tpcHists holds the hit histograms of one TPC.
type tpcHists struct {
	tpc      icarus.TPC
	peak     *hbook.H1D
	nhits    *hbook.H1D
	rms      *hbook.H1D
	integral *hbook.H1D
	gof      *hbook.H1D
	hitADC   *hbook.H1D
	roiADC   *hbook.H1D
	channel  *hbook.H1D
}

func newTPCHists(tpc icarus.TPC, b hitBinning) *tpcHists {
	id := tpc.String()
	return &tpcHists{
		tpc:      tpc,
		peak:     newH1D("hPeakAmplitude_"+id, "Hit Peak Amplitude "+id+";Amplitude;Counts", b.peak),
		nhits:    newH1D("hNHits_"+id, "Number of Hits "+id+";Number of Hits;Counts", b.nhits),
		rms:      newH1D("hRMS_"+id, "Hit RMS "+id+";RMS;Counts", b.rms),
		integral: newH1D("hIntegral_"+id, "Hit Integral "+id+";Integral;Counts", b.integral),
		gof:      newH1D("hGoodnessOfFit_"+id, "Hit Goodness of Fit "+id+";Goodness of Fit;Counts", b.gof),
		hitADC:   newH1D("hHitSummedADC_"+id, "Hit Summed ADC "+id+";Hit Summed ADC;Counts", b.adc),
		roiADC:   newH1D("hROISummedADC_"+id, "ROI Summed ADC "+id+";ROI Summed ADC;Counts", b.adc),
		channel:  newH1D("hChannel_"+id, "Hit Channel "+id+";Channel;Counts", b.channel),
	}
}

func (hs *tpcHists) list() []*hbook.H1D {
	return []*hbook.H1D{
		hs.peak, hs.nhits, hs.rms, hs.integral,
		hs.gof, hs.hitADC, hs.roiADC, hs.channel,
	}
}

// hitSummary fills the per-TPC hit histograms.
type hitSummary struct {
	tpcs [len(icarus.TPCs)]*tpcHists
}

func newHitSummary(b hitBinning) *hitSummary {
	var sum hitSummary
	for i, tpc := range icarus.TPCs {
		sum.tpcs[i] = newTPCHists(tpc, b)
	}
	return &sum
}

func (sum *hitSummary) fill(evt Event) {
	var nhits [len(icarus.TPCs)]int
	for _, hit := range evt.Hits {
		if int(hit.TPC) >= len(sum.tpcs) {
			continue
		}
		nhits[hit.TPC]++
		hs := sum.tpcs[hit.TPC]
		fill(hs.peak, float64(hit.PeakAmplitude))
		fill(hs.rms, float64(hit.RMS))
		fill(hs.integral, float64(hit.Integral))
		fill(hs.gof, float64(hit.GoodnessOfFit))
		fill(hs.hitADC, float64(hit.HitSummedADC))
		fill(hs.roiADC, float64(hit.ROISummedADC))
		fill(hs.channel, float64(hit.Wire))
	}
	for i, n := range nhits {
		fill(sum.tpcs[i].nhits, float64(n))
	}
}

func (sum *hitSummary) write(dir riofs.Directory) error {
	for _, hs := range sum.tpcs {
		sub, err := dir.Mkdir("Hits_" + hs.tpc.String())
		if err != nil {
			return fmt.Errorf("effana: could not create directory for TPC %v: %w", hs.tpc, err)
		}
		for _, h := range hs.list() {
			err = put(sub, h)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// label describes how a species is named in histograms.
type label struct {
	dir    string
	suffix string
	event  string // qualifier of per-event histograms
	hits   string // qualifier of per-hit histograms
	name   string // singular name
}

var labels = [hitdb.NumSpecies]label{
	hitdb.Total:    {"AllParticles", "", "", "all Hits", "Particle"},
	hitdb.Electron: {"Electrons", "_ele", " (Electron in Event)", "Hits from Electrons", "Electron"},
	hitdb.Photon:   {"Photons", "_gamma", " (Photon in Event)", "Hits from Photons", "Photon"},
	hitdb.Muon:     {"Muons", "_mu", " (Muon in Event)", "Hits from Muons", "Muon"},
	hitdb.Proton:   {"Protons", "_p", " (Proton in Event)", "Hits from Protons", "Proton"},
	hitdb.Pion:     {"Pions", "_pi", " (Pion in Event)", "Hits from Pions", "Pion"},
}

var (
	energyBins = binning{100, 0, 1e4}
	ratioBins  = binning{256, -2, 1.2}
	adcBins    = binning{100, 0, 5e3}
	areaBins   = binning{100, 0, 2}
	fitBins    = binning{100, 0, 1}
	angleBins  = binning{100, -4, 4}
)

// speciesHists holds the histograms of one species.
type speciesHists struct {
	lbl label

	hitEnergy [icarus.NumPlanes]*hbook.H1D
	ideEnergy [icarus.NumPlanes]*hbook.H1D
	ratio     [icarus.NumPlanes]*hbook.H1D
	integral  [icarus.NumPlanes]*hbook.H1D
	adc       [icarus.NumPlanes]*hbook.H1D
	areaRatio [icarus.NumPlanes]*hbook.H1D
	fit       [icarus.NumPlanes]*hbook.H1D

	theta    *hbook.H1D
	phi      *hbook.H1D
	thetaVsE *hbook.H2D
	phiVsE   *hbook.H2D
}

func newSpeciesHists(sp hitdb.Species) *speciesHists {
	lbl := labels[sp]
	hs := &speciesHists{lbl: lbl}
	s := lbl.suffix
	for i := 0; i < icarus.NumPlanes; i++ {
		p := fmt.Sprintf("_plane%d", i)
		t := fmt.Sprintf(" Plane %d", i)
		hs.hitEnergy[i] = newH1D("h_hitEnergy"+s+p, "Hit Energy from BackTrackerHitMatchingData"+lbl.event+t+";Energy (MeV);Counts", energyBins)
		hs.ideEnergy[i] = newH1D("h_ideEnergy"+s+p, "IDE Energy from SimChannel"+lbl.event+t+";Energy (MeV);Counts", energyBins)
		hs.ratio[i] = newH1D("h_energyRatio"+s+p, "Ratio of Hit Energy to IDE Energy"+lbl.event+t+";Hit Energy / IDE Energy;Counts", ratioBins)
		hs.integral[i] = newH1D("h_hitIntegral"+s+p, "Hit Integral "+lbl.hits+t+";Integral (tick x ADC);Counts", adcBins)
		hs.adc[i] = newH1D("h_hitADC"+s+p, "Hit Summed ADC "+lbl.hits+t+";Summed ADC;Counts", adcBins)
		hs.areaRatio[i] = newH1D("h_hitAreaRatio"+s+p, "Hit Integral/ADC "+lbl.hits+t+";Hit Integral/ADC Ratio;Counts", areaBins)
		hs.fit[i] = newH1D("h_hitFit"+s+p, "Chi2/NDOF "+lbl.hits+t+";Chi2/NDOF;Counts", fitBins)
	}
	hs.theta = newH1D("h_maxETheta"+s, "Theta of Highest Energy "+lbl.name+" per Event;Theta (radians);Counts", angleBins)
	hs.phi = newH1D("h_maxEPhi"+s, "Phi of Highest Energy "+lbl.name+" per Event;Phi (radians);Counts", angleBins)
	hs.thetaVsE = newH2D("h_maxETheta_vs_E"+s, "Theta vs Energy of Highest Energy "+lbl.name+" per Event;Theta (radians);Energy (MeV)", angleBins, ratioBins)
	hs.phiVsE = newH2D("h_maxEPhi_vs_E"+s, "Phi vs Energy of Highest Energy "+lbl.name+" per Event;Phi (radians);Energy (MeV)", angleBins, ratioBins)
	return hs
}

// fillHit fills the per-hit histograms of a matched hit.
func (hs *speciesHists) fillHit(m Match) {
	p := m.Plane
	integral := float64(m.Integral)
	adc := float64(m.SummedADC)
	fill(hs.integral[p], integral)
	fill(hs.adc[p], adc)
	fill(hs.areaRatio[p], integral/adc)
	fill(hs.fit[p], float64(m.GoodnessOfFit)/float64(m.NDF))
}

func (hs *speciesHists) fillEvent(plane int, hitE, ideE float64) {
	fill(hs.hitEnergy[plane], hitE)
	fill(hs.ideEnergy[plane], ideE)
	fill(hs.ratio[plane], fillValue(hitE, ideE))
}

func (hs *speciesHists) fillAngles(theta, phi, ratio float64) {
	fill(hs.theta, theta)
	fill(hs.phi, phi)
	fill2(hs.thetaVsE, theta, ratio)
	fill2(hs.phiVsE, phi, ratio)
}

func (hs *speciesHists) write(dir riofs.Directory) error {
	sub, err := dir.Mkdir(hs.lbl.dir)
	if err != nil {
		return fmt.Errorf("effana: could not create directory %q: %w", hs.lbl.dir, err)
	}
	for i := 0; i < icarus.NumPlanes; i++ {
		for _, h := range []*hbook.H1D{
			hs.hitEnergy[i], hs.ideEnergy[i], hs.ratio[i],
			hs.integral[i], hs.adc[i], hs.areaRatio[i], hs.fit[i],
		} {
			err = put(sub, h)
			if err != nil {
				return err
			}
		}
	}
	for _, h := range []any{hs.theta, hs.phi, hs.thetaVsE, hs.phiVsE} {
		err = put(sub, h)
		if err != nil {
			return err
		}
	}
	return nil
}

func put(dir riofs.Directory, h any) error {
	var err error
	switch h := h.(type) {
	case *hbook.H1D:
		err = dir.Put(h.Name(), rhist.NewH1DFrom(h))
	case *hbook.H2D:
		err = dir.Put(h.Name(), rhist.NewH2DFrom(h))
	default:
		panic(fmt.Errorf("effana: invalid histogram type %T", h))
	}
	if err != nil {
		return fmt.Errorf("effana: could not write histogram: %w", err)
	}
	return nil
}

// fillValue returns the energy ratio to histogram for one event:
// -1 when both energies are zero, -2 when only the deposited energy is.
func fillValue(hitE, ideE float64) float64 {
	if ideE == 0 {
		if hitE == 0 {
			return -1
		}
		return -2
	}
	return hitE / ideE
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
