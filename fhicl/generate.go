// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fhicl

import (
	"embed"
	"fmt"
	"io"
	"log"
	"os"
	"text/template"

	"github.com/go-lpc/hittune/icarus"
)

// Kind selects the FHiCL template to generate.
type Kind uint8

const (
	Data Kind = iota // stage-1 reconstruction of detector data
	MC               // stage-1 reconstruction of simulation, with truth matching
)

func (k Kind) String() string {
	switch k {
	case Data:
		return "data"
	case MC:
		return "mc"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

//go:embed templates/*.tmpl
var tmplFS embed.FS

var tmpl = template.Must(template.New("fhicl").Funcs(template.FuncMap{
	"float":  formatFloat,
	"floats": formatFloats,
	"ints":   formatInts,
}).ParseFS(tmplFS, "templates/*.tmpl"))

type cluster3D struct {
	Cryo string
	Tags string
}

type tmplData struct {
	Params    Params
	TPCs      []icarus.TPC
	Cluster3D []cluster3D
}

// Generate writes a complete FHiCL configuration of the given kind,
// configuring the hit finders of all TPCs with params.
func Generate(w io.Writer, kind Kind, params Params) error {
	var name string
	switch kind {
	case Data:
		name = "data.fcl.tmpl"
	case MC:
		name = "mc.fcl.tmpl"
	default:
		return fmt.Errorf("fhicl: invalid FHiCL kind %v", kind)
	}

	err := tmpl.ExecuteTemplate(w, name, tmplData{
		Params: params,
		TPCs:   icarus.TPCs[:],
		Cluster3D: []cluster3D{
			{"W", `["gaushitPT2dTPCWW", "gaushitPT2dTPCWE"]`},
			{"E", `["gaushitPT2dTPCEW", "gaushitPT2dTPCEE"]`},
		},
	})
	if err != nil {
		return fmt.Errorf("fhicl: could not generate %v FHiCL: %w", kind, err)
	}
	return nil
}

// GenerateFile creates the named FHiCL file.
// When msg is not nil, the parameters are logged.
func GenerateFile(fname string, kind Kind, params Params, msg *log.Logger) error {
	if msg != nil {
		msg.Printf("generating %v FHiCL file %q with:\n%v", kind, fname, params)
	}

	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("fhicl: could not create FHiCL file: %w", err)
	}
	defer f.Close()

	err = Generate(f, kind, params)
	if err != nil {
		return err
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("fhicl: could not close FHiCL file %q: %w", fname, err)
	}
	return nil
}
