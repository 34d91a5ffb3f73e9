// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evtdisplay

import (
	"fmt"

	"github.com/go-lpc/hittune/icarus"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
)

// TreeName is the name of the tree holding the deconvolved wire signals.
const TreeName = "wires"

// Wire is the deconvolved signal of one readout channel.
type Wire struct {
	Run     int32
	Event   int32
	TPC     icarus.TPC
	Channel int32
	Signal  []float32 // one sample per tick
}

type wireRow struct {
	Run     int32     `groot:"run"`
	Event   int32     `groot:"event"`
	TPC     int32     `groot:"tpc"`
	Channel int32     `groot:"channel"`
	NSig    int32     `groot:"nsig"`
	Signal  []float32 `groot:"signal[nsig]"`
}

// WireWriter writes wire signals to a ROOT file.
type WireWriter struct {
	f   *riofs.File
	t   rtree.Writer
	row wireRow
}

// CreateWires creates a ROOT file holding a wires tree.
func CreateWires(fname string) (*WireWriter, error) {
	f, err := groot.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("evtdisplay: could not create wires file %q: %w", fname, err)
	}
	w := &WireWriter{f: f}
	t, err := rtree.NewWriter(f, TreeName, rtree.WriteVarsFromStruct(&w.row))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("evtdisplay: could not create wires tree: %w", err)
	}
	w.t = t
	return w, nil
}

// Write appends a wire to the tree.
func (w *WireWriter) Write(wire Wire) error {
	w.row = wireRow{
		Run:     wire.Run,
		Event:   wire.Event,
		TPC:     int32(wire.TPC),
		Channel: wire.Channel,
		NSig:    int32(len(wire.Signal)),
		Signal:  wire.Signal,
	}
	_, err := w.t.Write()
	if err != nil {
		return fmt.Errorf("evtdisplay: could not write wire %d: %w", wire.Channel, err)
	}
	return nil
}

// Close flushes the tree and closes the file.
func (w *WireWriter) Close() error {
	err := w.t.Close()
	if err != nil {
		_ = w.f.Close()
		return fmt.Errorf("evtdisplay: could not close wires tree: %w", err)
	}
	err = w.f.Close()
	if err != nil {
		return fmt.Errorf("evtdisplay: could not close wires file: %w", err)
	}
	return nil
}

// ReadWires returns the wires of the requested event.
func ReadWires(fname string, event int) ([]Wire, error) {
	f, err := groot.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("evtdisplay: could not open wires file %q: %w", fname, err)
	}
	defer f.Close()

	o, err := f.Get(TreeName)
	if err != nil {
		return nil, fmt.Errorf("evtdisplay: could not find tree %q in %q: %w", TreeName, fname, err)
	}
	tree, ok := o.(rtree.Tree)
	if !ok {
		return nil, fmt.Errorf("evtdisplay: object %q in %q is not a tree (%T)", TreeName, fname, o)
	}

	var data wireRow
	r, err := rtree.NewReader(tree, rtree.ReadVarsFromStruct(&data))
	if err != nil {
		return nil, fmt.Errorf("evtdisplay: could not create wires reader: %w", err)
	}
	defer r.Close()

	var wires []Wire
	err = r.Read(func(rtree.RCtx) error {
		if int(data.Event) != event {
			return nil
		}
		wires = append(wires, Wire{
			Run:     data.Run,
			Event:   data.Event,
			TPC:     icarus.TPC(data.TPC),
			Channel: data.Channel,
			Signal:  append([]float32(nil), data.Signal...),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("evtdisplay: could not read wires: %w", err)
	}
	return wires, nil
}
