// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hittune holds tools to tune the parameters of the ICARUS
// Gaussian hit finder.
//
// The toolkit generates FHiCL configurations over a parameter grid,
// runs the LArSoft reconstruction for each of them, records every run
// and its hit-finding efficiency in a HitTuningDB database and draws
// event displays of the reconstructed hits.
//
// Commands:
//   - hittune creates the grid FHiCL files and runs the scans,
//   - hitdb inspects a HitTuningDB database,
//   - hitdb-merge merges the databases of batch jobs,
//   - evtdisplay draws the wire signals and hits of one event.
package hittune // import "github.com/go-lpc/hittune"

import (
	"fmt"
	"runtime/debug"
)

const root = "github.com/go-lpc/hittune"

// Version returns the version of hittune and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	if b.Main.Path == root {
		return moduleVersion(&b.Main)
	}
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		return moduleVersion(m)
	}
	return "", ""
}

func moduleVersion(m *debug.Module) (version, sum string) {
	if m.Replace == nil {
		return m.Version, m.Sum
	}
	switch r := m.Replace; {
	case r.Version != "" && r.Path != "":
		return fmt.Sprintf("%s %s", r.Path, r.Version), r.Sum
	case r.Version != "":
		return r.Version, r.Sum
	case r.Path != "":
		return r.Path, r.Sum
	default:
		return m.Version + "*", ""
	}
}
