// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package icarus describes the readout geometry of the ICARUS TPCs:
// the four TPC labels and the mapping from channel number to wire plane.
package icarus // import "github.com/go-lpc/hittune/icarus"

import (
	"fmt"
	"strings"
)

// NumPlanes is the number of wire planes per TPC.
const NumPlanes = 3

// TPC identifies one of the four ICARUS TPCs.
type TPC uint8

const (
	EE TPC = iota
	EW
	WE
	WW
)

// TPCs lists all TPCs in channel order.
var TPCs = [...]TPC{EE, EW, WE, WW}

func (tpc TPC) String() string {
	switch tpc {
	case EE:
		return "EE"
	case EW:
		return "EW"
	case WE:
		return "WE"
	case WW:
		return "WW"
	}
	return fmt.Sprintf("TPC(%d)", uint8(tpc))
}

// ParseTPC returns the TPC named by s (case-insensitive).
func ParseTPC(s string) (TPC, error) {
	for _, tpc := range TPCs {
		if strings.EqualFold(s, tpc.String()) {
			return tpc, nil
		}
	}
	return 0, fmt.Errorf("icarus: invalid TPC name %q", s)
}

// Range is an inclusive channel range.
type Range struct {
	Beg, End int
}

func (r Range) contains(ch int) bool { return r.Beg <= ch && ch <= r.End }

// Len returns the number of channels in the range.
func (r Range) Len() int { return r.End - r.Beg + 1 }

// planes holds the channel ranges of each plane, per TPC,
// from ChannelMapICARUS_20240318.
var planes = [NumPlanes][len(TPCs)]Range{
	{{0, 2239}, {13824, 16063}, {27648, 29887}, {41472, 43711}},
	{{2240, 8063}, {16128, 21087}, {29952, 35711}, {43776, 49535}},
	{{8064, 13823}, {21888, 27647}, {35712, 41471}, {49536, 55295}},
}

// display holds the channel ranges used by the event display.
// They differ from planes for the first induction plane boundaries.
var display = [NumPlanes][len(TPCs)]Range{
	{{0, 2239}, {13824, 16063}, {27648, 29887}, {41472, 43711}},
	{{2304, 8063}, {16128, 21087}, {29952, 35711}, {43776, 49535}},
	{{8064, 13823}, {21888, 27647}, {35712, 41471}, {49536, 55295}},
}

// Plane returns the wire plane of the provided channel, or -1 if the
// channel is not mapped.
func Plane(ch int) int {
	for plane, rs := range planes {
		for _, r := range rs {
			if r.contains(ch) {
				return plane
			}
		}
	}
	return -1
}

// Bounds returns the range of channels displayed for a given plane and TPC.
func Bounds(plane int, tpc TPC) (Range, error) {
	if plane < 0 || plane >= NumPlanes {
		return Range{}, fmt.Errorf("icarus: invalid plane %d", plane)
	}
	if int(tpc) >= len(TPCs) {
		return Range{}, fmt.Errorf("icarus: invalid TPC %v", tpc)
	}
	return display[plane][tpc], nil
}
