// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package effana

import (
	"fmt"

	"github.com/go-lpc/hittune/icarus"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
)

// TreeName is the name of the per-event tree dumped by the
// analysis FHiCL.
const TreeName = "hitana"

// Event holds the reconstructed and simulated content of one event.
type Event struct {
	Run    int32
	SubRun int32
	Event  int32

	Hits      []Hit      // reconstructed hits of all TPCs
	Matches   []Match    // hit to simulated particle matches
	IDEs      []IDE      // simulated energy depositions
	Particles []Particle // simulated particles
}

// Hit is a reconstructed Gaussian hit.
type Hit struct {
	TPC           icarus.TPC
	Channel       int32 // readout channel
	Wire          int32 // wire number within the plane
	PeakTime      float32
	PeakAmplitude float32
	RMS           float32
	Integral      float32
	GoodnessOfFit float32
	HitSummedADC  float32
	ROISummedADC  float32
}

// Match associates a reconstructed hit with a simulated particle.
type Match struct {
	Plane       int32
	PDG         int32
	Energy      float32 // matched energy (MeV)
	IDEFraction float32

	Integral      float32
	SummedADC     float32
	GoodnessOfFit float32
	NDF           int32
}

// IDE is an ionization energy deposition on a readout channel.
type IDE struct {
	Channel int32
	TrackID int32
	Energy  float32 // MeV
}

// Particle is a simulated particle.
type Particle struct {
	TrackID    int32
	PDG        int32
	Px, Py, Pz float32
}

// row is the flat layout of an Event in the tree.
type row struct {
	Run    int32 `groot:"run"`
	SubRun int32 `groot:"subrun"`
	Event  int32 `groot:"event"`

	NHit          int32     `groot:"nhit"`
	HitTPC        []int32   `groot:"hit_tpc[nhit]"`
	HitChannel    []int32   `groot:"hit_channel[nhit]"`
	HitWire       []int32   `groot:"hit_wire[nhit]"`
	HitPeakTime   []float32 `groot:"hit_peaktime[nhit]"`
	HitPeakAmpl   []float32 `groot:"hit_peakamp[nhit]"`
	HitRMS        []float32 `groot:"hit_rms[nhit]"`
	HitIntegral   []float32 `groot:"hit_integral[nhit]"`
	HitGoF        []float32 `groot:"hit_gof[nhit]"`
	HitSummedADC  []float32 `groot:"hit_summedadc[nhit]"`
	HitROISummADC []float32 `groot:"hit_roisummedadc[nhit]"`

	NMatch     int32     `groot:"nmatch"`
	MPlane     []int32   `groot:"m_plane[nmatch]"`
	MPDG       []int32   `groot:"m_pdg[nmatch]"`
	MEnergy    []float32 `groot:"m_energy[nmatch]"`
	MIDEFrac   []float32 `groot:"m_idefrac[nmatch]"`
	MIntegral  []float32 `groot:"m_integral[nmatch]"`
	MSummedADC []float32 `groot:"m_summedadc[nmatch]"`
	MGoF       []float32 `groot:"m_gof[nmatch]"`
	MNDF       []int32   `groot:"m_ndf[nmatch]"`

	NIDE       int32     `groot:"nide"`
	IDEChannel []int32   `groot:"ide_channel[nide]"`
	IDETrack   []int32   `groot:"ide_track[nide]"`
	IDEEnergy  []float32 `groot:"ide_energy[nide]"`

	NMCP     int32     `groot:"nmcp"`
	MCPTrack []int32   `groot:"mcp_track[nmcp]"`
	MCPPDG   []int32   `groot:"mcp_pdg[nmcp]"`
	MCPPx    []float32 `groot:"mcp_px[nmcp]"`
	MCPPy    []float32 `groot:"mcp_py[nmcp]"`
	MCPPz    []float32 `groot:"mcp_pz[nmcp]"`
}

func (r *row) reset() {
	*r = row{
		HitTPC:        r.HitTPC[:0],
		HitChannel:    r.HitChannel[:0],
		HitWire:       r.HitWire[:0],
		HitPeakTime:   r.HitPeakTime[:0],
		HitPeakAmpl:   r.HitPeakAmpl[:0],
		HitRMS:        r.HitRMS[:0],
		HitIntegral:   r.HitIntegral[:0],
		HitGoF:        r.HitGoF[:0],
		HitSummedADC:  r.HitSummedADC[:0],
		HitROISummADC: r.HitROISummADC[:0],
		MPlane:        r.MPlane[:0],
		MPDG:          r.MPDG[:0],
		MEnergy:       r.MEnergy[:0],
		MIDEFrac:      r.MIDEFrac[:0],
		MIntegral:     r.MIntegral[:0],
		MSummedADC:    r.MSummedADC[:0],
		MGoF:          r.MGoF[:0],
		MNDF:          r.MNDF[:0],
		IDEChannel:    r.IDEChannel[:0],
		IDETrack:      r.IDETrack[:0],
		IDEEnergy:     r.IDEEnergy[:0],
		MCPTrack:      r.MCPTrack[:0],
		MCPPDG:        r.MCPPDG[:0],
		MCPPx:         r.MCPPx[:0],
		MCPPy:         r.MCPPy[:0],
		MCPPz:         r.MCPPz[:0],
	}
}

func (r *row) from(evt Event) {
	r.reset()
	r.Run = evt.Run
	r.SubRun = evt.SubRun
	r.Event = evt.Event

	r.NHit = int32(len(evt.Hits))
	for _, h := range evt.Hits {
		r.HitTPC = append(r.HitTPC, int32(h.TPC))
		r.HitChannel = append(r.HitChannel, h.Channel)
		r.HitWire = append(r.HitWire, h.Wire)
		r.HitPeakTime = append(r.HitPeakTime, h.PeakTime)
		r.HitPeakAmpl = append(r.HitPeakAmpl, h.PeakAmplitude)
		r.HitRMS = append(r.HitRMS, h.RMS)
		r.HitIntegral = append(r.HitIntegral, h.Integral)
		r.HitGoF = append(r.HitGoF, h.GoodnessOfFit)
		r.HitSummedADC = append(r.HitSummedADC, h.HitSummedADC)
		r.HitROISummADC = append(r.HitROISummADC, h.ROISummedADC)
	}

	r.NMatch = int32(len(evt.Matches))
	for _, m := range evt.Matches {
		r.MPlane = append(r.MPlane, m.Plane)
		r.MPDG = append(r.MPDG, m.PDG)
		r.MEnergy = append(r.MEnergy, m.Energy)
		r.MIDEFrac = append(r.MIDEFrac, m.IDEFraction)
		r.MIntegral = append(r.MIntegral, m.Integral)
		r.MSummedADC = append(r.MSummedADC, m.SummedADC)
		r.MGoF = append(r.MGoF, m.GoodnessOfFit)
		r.MNDF = append(r.MNDF, m.NDF)
	}

	r.NIDE = int32(len(evt.IDEs))
	for _, ide := range evt.IDEs {
		r.IDEChannel = append(r.IDEChannel, ide.Channel)
		r.IDETrack = append(r.IDETrack, ide.TrackID)
		r.IDEEnergy = append(r.IDEEnergy, ide.Energy)
	}

	r.NMCP = int32(len(evt.Particles))
	for _, p := range evt.Particles {
		r.MCPTrack = append(r.MCPTrack, p.TrackID)
		r.MCPPDG = append(r.MCPPDG, p.PDG)
		r.MCPPx = append(r.MCPPx, p.Px)
		r.MCPPy = append(r.MCPPy, p.Py)
		r.MCPPz = append(r.MCPPz, p.Pz)
	}
}

func (r *row) event() Event {
	evt := Event{
		Run:       r.Run,
		SubRun:    r.SubRun,
		Event:     r.Event,
		Hits:      make([]Hit, len(r.HitTPC)),
		Matches:   make([]Match, len(r.MPlane)),
		IDEs:      make([]IDE, len(r.IDEChannel)),
		Particles: make([]Particle, len(r.MCPTrack)),
	}
	for i := range evt.Hits {
		evt.Hits[i] = Hit{
			TPC:           icarus.TPC(r.HitTPC[i]),
			Channel:       r.HitChannel[i],
			Wire:          r.HitWire[i],
			PeakTime:      r.HitPeakTime[i],
			PeakAmplitude: r.HitPeakAmpl[i],
			RMS:           r.HitRMS[i],
			Integral:      r.HitIntegral[i],
			GoodnessOfFit: r.HitGoF[i],
			HitSummedADC:  r.HitSummedADC[i],
			ROISummedADC:  r.HitROISummADC[i],
		}
	}
	for i := range evt.Matches {
		evt.Matches[i] = Match{
			Plane:         r.MPlane[i],
			PDG:           r.MPDG[i],
			Energy:        r.MEnergy[i],
			IDEFraction:   r.MIDEFrac[i],
			Integral:      r.MIntegral[i],
			SummedADC:     r.MSummedADC[i],
			GoodnessOfFit: r.MGoF[i],
			NDF:           r.MNDF[i],
		}
	}
	for i := range evt.IDEs {
		evt.IDEs[i] = IDE{
			Channel: r.IDEChannel[i],
			TrackID: r.IDETrack[i],
			Energy:  r.IDEEnergy[i],
		}
	}
	for i := range evt.Particles {
		evt.Particles[i] = Particle{
			TrackID: r.MCPTrack[i],
			PDG:     r.MCPPDG[i],
			Px:      r.MCPPx[i],
			Py:      r.MCPPy[i],
			Pz:      r.MCPPz[i],
		}
	}
	return evt
}

// Writer writes events to a hitana tree.
type Writer struct {
	f   *riofs.File
	t   rtree.Writer
	row row
}

// Create creates a new ROOT file holding a hitana tree.
func Create(fname string) (*Writer, error) {
	f, err := groot.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("effana: could not create ntuple file %q: %w", fname, err)
	}

	w := &Writer{f: f}
	t, err := rtree.NewWriter(f, TreeName, rtree.WriteVarsFromStruct(&w.row))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("effana: could not create tree: %w", err)
	}
	w.t = t
	return w, nil
}

// Write appends an event to the tree.
func (w *Writer) Write(evt Event) error {
	w.row.from(evt)
	_, err := w.t.Write()
	if err != nil {
		return fmt.Errorf("effana: could not write event %d: %w", evt.Event, err)
	}
	return nil
}

// Close flushes the tree and closes the file.
func (w *Writer) Close() error {
	err := w.t.Close()
	if err != nil {
		_ = w.f.Close()
		return fmt.Errorf("effana: could not close tree: %w", err)
	}
	err = w.f.Close()
	if err != nil {
		return fmt.Errorf("effana: could not close ntuple file: %w", err)
	}
	return nil
}

// ReadEvents calls fct for each event of the hitana tree in fname.
func ReadEvents(fname string, fct func(evt Event) error) error {
	f, err := groot.Open(fname)
	if err != nil {
		return fmt.Errorf("effana: could not open ntuple file %q: %w", fname, err)
	}
	defer f.Close()

	o, err := f.Get(TreeName)
	if err != nil {
		return fmt.Errorf("effana: could not find tree %q in %q: %w", TreeName, fname, err)
	}
	tree, ok := o.(rtree.Tree)
	if !ok {
		return fmt.Errorf("effana: object %q in %q is not a tree (%T)", TreeName, fname, o)
	}

	var data row
	r, err := rtree.NewReader(tree, rtree.ReadVarsFromStruct(&data))
	if err != nil {
		return fmt.Errorf("effana: could not create tree reader: %w", err)
	}
	defer r.Close()

	err = r.Read(func(rtree.RCtx) error {
		return fct(data.event())
	})
	if err != nil {
		return fmt.Errorf("effana: could not read tree: %w", err)
	}
	return nil
}
