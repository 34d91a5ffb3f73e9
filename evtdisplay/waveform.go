// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evtdisplay

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/go-lpc/hittune/effana"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
)

// Waveform returns the signal of one channel and the sum of the
// Gaussians of its hits, over the provided time range.
func Waveform(wire Wire, hits []effana.Hit, ticks [2]int) (signal, fit *hbook.H1D) {
	var (
		t0, t1 = ticks[0], ticks[1]
		n      = t1 - t0
	)
	signal = hbook.NewH1D(n, float64(t0), float64(t1))
	signal.Annotation()["name"] = fmt.Sprintf("hWire_ch%d", wire.Channel)
	signal.Annotation()["title"] = fmt.Sprintf("Wire vs Hits on Channel %d;Time Tick;ADC Counts", wire.Channel)

	fit = hbook.NewH1D(n, float64(t0), float64(t1))
	fit.Annotation()["name"] = fmt.Sprintf("hHits_ch%d", wire.Channel)
	fit.Annotation()["title"] = "Summed Hit Gaussians"

	for it, adc := range wire.Signal {
		if it < t0 || it >= t1 {
			continue
		}
		signal.Fill(float64(it)+0.5, float64(adc))
	}

	for i := 0; i < n; i++ {
		x := float64(t0+i) + 0.5
		sum := 0.0
		for _, hit := range hits {
			if hit.Channel != wire.Channel || hit.RMS <= 0 {
				continue
			}
			var (
				mean  = float64(hit.PeakTime)
				sigma = float64(hit.RMS)
				amp   = float64(hit.PeakAmplitude)
			)
			sum += amp * math.Exp(-0.5*math.Pow((x-mean)/sigma, 2))
		}
		if sum != 0 {
			fit.Fill(x, sum)
		}
	}

	return signal, fit
}

func waveform(dir riofs.Directory, cfg Config, run int32, wires []Wire, hits []effana.Hit) (string, error) {
	var (
		wire  Wire
		found bool
	)
	for _, w := range wires {
		if int(w.Channel) == cfg.Channel {
			wire = w
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("evtdisplay: no wire for channel %d in event %d", cfg.Channel, cfg.Event)
	}

	signal, fit := Waveform(wire, hits, cfg.Ticks)
	for _, h := range []*hbook.H1D{signal, fit} {
		err := dir.Put(h.Name(), rhist.NewH1DFrom(h))
		if err != nil {
			return "", fmt.Errorf("evtdisplay: could not write waveform: %w", err)
		}
	}

	p := hplot.New()
	p.Title.Text = fmt.Sprintf("Wire vs Hits on Channel %d", cfg.Channel)
	p.X.Label.Text = "Time Tick"
	p.Y.Label.Text = "ADC Counts"

	hw := hplot.NewH1D(signal)
	hh := hplot.NewH1D(fit)
	hh.LineStyle.Color = hitColor
	p.Add(hw, hh)
	p.Legend.Add("Wire ROI", hw)
	p.Legend.Add("Hit Gaussians", hh)
	p.Legend.Top = true

	fname := filepath.Join(cfg.OutDir, fmt.Sprintf("waveform_%s_run%d_evt%d_ch%d.png", cfg.Tag, run, cfg.Event, cfg.Channel))
	err := p.Save(imgWidth, imgHeight, fname)
	if err != nil {
		return "", fmt.Errorf("evtdisplay: could not save %q: %w", fname, err)
	}
	return fname, nil
}
