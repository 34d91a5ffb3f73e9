// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package evtdisplay draws the deconvolved wire signals and the
// reconstructed hits of one event, per TPC.
package evtdisplay // import "github.com/go-lpc/hittune/evtdisplay"

import (
	"fmt"
	"image/color"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/go-lpc/hittune/effana"
	"github.com/go-lpc/hittune/icarus"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Config describes what to display.
type Config struct {
	Wires  string // ROOT file with the wires tree
	Hits   string // ROOT file with the hitana tree (default: Wires)
	OutDir string
	Tag    string

	Event int
	Plane int
	Ticks [2]int // time range, in ticks
	Chans [2]int // channel range, {0,0} selects the whole plane

	// Channel selects the channel of the waveform view.
	// The waveform view is disabled when Channel is negative.
	Channel int

	Verbose bool
}

// Default returns the default display configuration.
func Default() Config {
	return Config{
		OutDir:  "eventDisplays",
		Tag:     "test",
		Ticks:   [2]int{0, 5000},
		Channel: -1,
	}
}

var (
	hitColor  = color.NRGBA{R: 255, A: 255}
	imgWidth  = 20 * vg.Centimeter
	imgHeight = 15 * vg.Centimeter
)

// Display draws the requested event and returns the list of created files.
func Display(cfg Config, msg *log.Logger) ([]string, error) {
	if msg == nil {
		msg = log.New(os.Stdout, "evtdisplay: ", 0)
	}
	if cfg.Hits == "" {
		cfg.Hits = cfg.Wires
	}
	if cfg.Ticks[1] <= cfg.Ticks[0] {
		return nil, fmt.Errorf("evtdisplay: invalid time range %v", cfg.Ticks)
	}
	if cfg.Chans != [2]int{} && cfg.Chans[1] <= cfg.Chans[0] {
		return nil, fmt.Errorf("evtdisplay: invalid channel range %v", cfg.Chans)
	}
	if cfg.Plane < 0 || cfg.Plane >= icarus.NumPlanes {
		return nil, fmt.Errorf("evtdisplay: invalid plane %d", cfg.Plane)
	}

	wires, err := ReadWires(cfg.Wires, cfg.Event)
	if err != nil {
		return nil, err
	}

	var (
		evt   effana.Event
		found bool
	)
	err = effana.ReadEvents(cfg.Hits, func(e effana.Event) error {
		if int(e.Event) == cfg.Event {
			evt = e
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("evtdisplay: could not read hits: %w", err)
	}

	if !found && len(wires) == 0 {
		return nil, fmt.Errorf("evtdisplay: event %d not found", cfg.Event)
	}

	run := evt.Run
	if !found {
		run = wires[0].Run
	}
	msg.Printf("found event to display: run %d, event %d", run, cfg.Event)

	err = os.MkdirAll(cfg.OutDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("evtdisplay: could not create output directory: %w", err)
	}

	fname := filepath.Join(cfg.OutDir, fmt.Sprintf("display_%s_evt%d_plane%d.root", cfg.Tag, cfg.Event, cfg.Plane))
	f, err := groot.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("evtdisplay: could not create display file: %w", err)
	}
	defer f.Close()

	files := []string{fname}
	npart := hbook.NewH1D(51, -0.5, 50.5)
	npart.Annotation()["name"] = "npart"
	npart.Annotation()["title"] = "Number of Hits"

	for _, tpc := range icarus.TPCs {
		view, err := newView(cfg, tpc, run)
		if err != nil {
			return nil, err
		}
		msg.Printf(
			"displaying %v plane %d with channel range %v and time range %v",
			tpc, cfg.Plane, view.chans, cfg.Ticks,
		)

		n := 0
		for _, w := range wires {
			if w.TPC != tpc {
				continue
			}
			if cfg.Verbose {
				msg.Printf("processing %v wire %d", tpc, w.Channel)
			}
			view.fillWire(w)
		}

		nhits := 0
		for _, hit := range evt.Hits {
			if hit.TPC != tpc {
				continue
			}
			nhits++
			if view.addHit(hit) {
				n++
			}
		}
		if cfg.Verbose {
			msg.Printf("number of hits in %v: %d (%d displayed)", tpc, nhits, n)
		}
		npart.Fill(float64(nhits), 1)

		err = f.Put(view.h2d.Name(), rhist.NewH2DFrom(view.h2d))
		if err != nil {
			return nil, fmt.Errorf("evtdisplay: could not write display of %v: %w", tpc, err)
		}

		base := fmt.Sprintf("%s_run%d_evt%d_plane%d_%v.png", cfg.Tag, run, cfg.Event, cfg.Plane, tpc)
		for _, v := range []struct {
			name string
			hits bool
		}{
			{"event_" + base, false},
			{"eventHits_" + base, true},
		} {
			oname := filepath.Join(cfg.OutDir, v.name)
			err = view.save(oname, v.hits)
			if err != nil {
				return nil, err
			}
			files = append(files, oname)
		}
	}

	err = f.Put(npart.Name(), rhist.NewH1DFrom(npart))
	if err != nil {
		return nil, fmt.Errorf("evtdisplay: could not write hit counts: %w", err)
	}

	if cfg.Channel >= 0 {
		oname, err := waveform(f, cfg, run, wires, evt.Hits)
		if err != nil {
			return nil, err
		}
		files = append(files, oname)
	}

	err = f.Close()
	if err != nil {
		return nil, fmt.Errorf("evtdisplay: could not close display file: %w", err)
	}

	return files, nil
}

// view is the channel by tick display of one TPC.
// Ticks are drawn downwards.
type view struct {
	cfg   Config
	tpc   icarus.TPC
	run   int32
	chans [2]int
	h2d   *hbook.H2D
	hits  hitPoints
}

func newView(cfg Config, tpc icarus.TPC, run int32) (*view, error) {
	chans := cfg.Chans
	if chans == [2]int{} {
		r, err := icarus.Bounds(cfg.Plane, tpc)
		if err != nil {
			return nil, fmt.Errorf("evtdisplay: could not find channel bounds: %w", err)
		}
		chans = [2]int{r.Beg, r.End}
	}

	t0, t1 := cfg.Ticks[0], cfg.Ticks[1]
	h := hbook.NewH2D(
		chans[1]-chans[0], float64(chans[0]), float64(chans[1]),
		t1-t0, float64(t0), float64(t1),
	)
	h.Annotation()["name"] = fmt.Sprintf("h_wire2d%d_%v", cfg.Event, tpc)
	h.Annotation()["title"] = fmt.Sprintf("Display: Run %d Event %d %v;Channel;Time Ticks", run, cfg.Event, tpc)

	return &view{
		cfg:   cfg,
		tpc:   tpc,
		run:   run,
		chans: chans,
		h2d:   h,
	}, nil
}

func (v *view) inChans(ch int) bool {
	return v.chans[0] <= ch && ch <= v.chans[1]
}

// flip returns the vertical coordinate of a tick.
func (v *view) flip(tick float64) float64 {
	return float64(v.cfg.Ticks[0]+v.cfg.Ticks[1]) - tick
}

func (v *view) fillWire(w Wire) {
	ch := int(w.Channel)
	if !v.inChans(ch) {
		return
	}
	t0, t1 := v.cfg.Ticks[0], v.cfg.Ticks[1]
	x := float64(ch) + 0.5
	for it, adc := range w.Signal {
		if it < t0 || it >= t1 || adc == 0 {
			continue
		}
		v.h2d.Fill(x, v.flip(float64(it)+0.5), float64(adc))
	}
}

// addHit adds a hit to the overlay and reports whether it is displayed.
func (v *view) addHit(hit effana.Hit) bool {
	ch := int(hit.Channel)
	if !v.inChans(ch) {
		return false
	}
	mean := float64(hit.PeakTime)
	if mean < float64(v.cfg.Ticks[0]) || mean > float64(v.cfg.Ticks[1]) {
		return false
	}
	v.hits = append(v.hits, hitPoint{
		x:   float64(ch) + 0.5,
		y:   v.flip(mean),
		rms: float64(hit.RMS),
	})
	return true
}

func (v *view) save(fname string, withHits bool) error {
	p := hplot.New()
	p.Title.Text = fmt.Sprintf("Display: Run %d Event %d %v", v.run, v.cfg.Event, v.tpc)
	p.X.Label.Text = "Channel"
	p.Y.Label.Text = "Time Ticks"

	cmap := moreland.ExtendedBlackBody()
	hm := plotter.NewHeatMap(v.h2d.GridXYZ(), cmap.Palette(255))
	hm.Min, hm.Max = zrange(v.h2d)
	p.Add(hm)

	if withHits && len(v.hits) > 0 {
		pts, err := plotter.NewScatter(v.hits)
		if err != nil {
			return fmt.Errorf("evtdisplay: could not create hits overlay: %w", err)
		}
		pts.GlyphStyle.Color = hitColor
		pts.GlyphStyle.Radius = vg.Points(1)

		errs, err := plotter.NewYErrorBars(v.hits)
		if err != nil {
			return fmt.Errorf("evtdisplay: could not create hits overlay: %w", err)
		}
		errs.LineStyle.Color = hitColor
		p.Add(pts, errs)
	}

	err := p.Save(imgWidth, imgHeight, fname)
	if err != nil {
		return fmt.Errorf("evtdisplay: could not save %q: %w", fname, err)
	}
	return nil
}

// zrange returns the color scale of a display.
// Displays without negative samples start at -1.
func zrange(h *hbook.H2D) (lo, hi float64) {
	grid := h.GridXYZ()
	lo, hi = math.Inf(+1), math.Inf(-1)
	nx, ny := grid.Dims()
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			z := grid.Z(i, j)
			lo = math.Min(lo, z)
			hi = math.Max(hi, z)
		}
	}
	if lo >= 0 {
		lo = -1
		hi *= 1.2
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

type hitPoint struct {
	x, y float64
	rms  float64
}

type hitPoints []hitPoint

func (hs hitPoints) Len() int                      { return len(hs) }
func (hs hitPoints) XY(i int) (x, y float64)       { return hs[i].x, hs[i].y }
func (hs hitPoints) YError(i int) (lo, hi float64) { return hs[i].rms, hs[i].rms }
