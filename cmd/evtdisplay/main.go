// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command evtdisplay draws the wire signals and the reconstructed hits of
// one event, for each ICARUS TPC.
//
// Usage: evtdisplay [OPTIONS] -i wires.root
//
// Example:
//
//	$> evtdisplay -i wires.root -e 28003 -p 2
//	$> evtdisplay -i wires.root -hits hitana.root -e 28003 -p 0 -t 500,3000 -w 1000,1500
//	$> evtdisplay -i wires.root -e 28003 -p 2 -ch 42017
//
// Options:
//
//	-o string
//	  	output directory (default "eventDisplays")
//	-tag string
//	  	tag for output files (default "test")
//	-v	enable verbose output
//	-i string
//	  	ROOT file with the wires tree
//	-hits string
//	  	ROOT file with the hitana tree (default: input file)
//	-e int
//	  	event number to display
//	-p int
//	  	plane number to display (0, 1 or 2)
//	-t value
//	  	time range to display, in ticks (default 0,5000)
//	-w value
//	  	wire range to display (default 0,0: whole plane)
//	-ch int
//	  	channel of the waveform view (default -1: no waveform)
package main // import "github.com/go-lpc/hittune/cmd/evtdisplay"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-lpc/hittune/evtdisplay"
)

// rangeFlag is a [min,max] range flag value.
type rangeFlag [2]int

func (r *rangeFlag) String() string {
	return fmt.Sprintf("%d,%d", r[0], r[1])
}

func (r *rangeFlag) Set(v string) error {
	lo, hi, ok := strings.Cut(v, ",")
	if !ok {
		return fmt.Errorf("invalid range %q (want min,max)", v)
	}
	var err error
	r[0], err = strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return fmt.Errorf("invalid range minimum %q: %w", lo, err)
	}
	r[1], err = strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return fmt.Errorf("invalid range maximum %q: %w", hi, err)
	}
	return nil
}

func main() {
	log.SetPrefix("evtdisplay: ")
	log.SetFlags(0)

	cfg := evtdisplay.Default()
	ticks := rangeFlag(cfg.Ticks)
	chans := rangeFlag(cfg.Chans)

	flag.StringVar(&cfg.OutDir, "o", cfg.OutDir, "output directory")
	flag.StringVar(&cfg.Tag, "tag", cfg.Tag, "tag for output files")
	flag.BoolVar(&cfg.Verbose, "v", false, "enable verbose output")
	flag.StringVar(&cfg.Wires, "i", "", "ROOT file with the wires tree")
	flag.StringVar(&cfg.Hits, "hits", "", "ROOT file with the hitana tree (default: input file)")
	flag.IntVar(&cfg.Event, "e", 0, "event number to display")
	flag.IntVar(&cfg.Plane, "p", 0, "plane number to display (0, 1 or 2)")
	flag.Var(&ticks, "t", "time range to display, in ticks")
	flag.Var(&chans, "w", "wire range to display (0,0: whole plane)")
	flag.IntVar(&cfg.Channel, "ch", cfg.Channel, "channel of the waveform view (-1: no waveform)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: evtdisplay [OPTIONS] -i wires.root

Example:

 $> evtdisplay -i wires.root -e 28003 -p 2
 $> evtdisplay -i wires.root -hits hitana.root -e 28003 -p 0 -t 500,3000 -w 1000,1500
 $> evtdisplay -i wires.root -e 28003 -p 2 -ch 42017

Options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg.Ticks = ticks
	cfg.Chans = chans

	err := run(cfg, log.Default())
	if err != nil {
		log.Fatalf("could not display event: %+v", err)
	}
}

func run(cfg evtdisplay.Config, msg *log.Logger) error {
	if cfg.Wires == "" {
		return fmt.Errorf("missing input file")
	}

	fnames, err := evtdisplay.Display(cfg, msg)
	if err != nil {
		return err
	}

	for _, fname := range fnames {
		msg.Printf("created %s", fname)
	}
	return nil
}
