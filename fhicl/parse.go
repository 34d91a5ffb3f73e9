// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fhicl

import (
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ParseValue parses the right-hand side of a FHiCL assignment.
//
// Lists are returned as []any, booleans as bool, numbers as int64 or
// float64 (when the literal holds a '.', 'e' or 'E'), quoted strings
// without their quotes. Anything else is returned verbatim.
func ParseValue(s string) any {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if inner == "" {
			return []any{}
		}
		parts := strings.Split(inner, ",")
		vs := make([]any, len(parts))
		for i, p := range parts {
			vs[i] = ParseValue(p)
		}
		return vs
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}

	if strings.ContainsAny(s, ".eE") {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	} else {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
	}

	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}

	return s
}

// ValuesOf returns the parsed values of all the assignments to key
// found in text, in order of appearance.
// Trailing comments are ignored.
func ValuesOf(key, text string) []any {
	re := regexp.MustCompile(regexp.QuoteMeta(key) + `\s*:\s*([^\n#]+)`)
	ms := re.FindAllStringSubmatch(text, -1)
	vs := make([]any, len(ms))
	for i, m := range ms {
		vs[i] = ParseValue(m[1])
	}
	return vs
}

func last(key, text string, def any) any {
	vs := ValuesOf(key, text)
	if len(vs) == 0 {
		return def
	}
	return vs[len(vs)-1]
}

// ParseFile reads back the hit finder parameters from the named FHiCL file.
func ParseFile(fname string) (Params, error) {
	f, err := os.Open(fname)
	if err != nil {
		return Params{}, fmt.Errorf("fhicl: could not open FHiCL file: %w", err)
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return p, fmt.Errorf("fhicl: could not parse %q: %w", fname, err)
	}
	return p, nil
}

// Parse reads back the hit finder parameters from a FHiCL document.
//
// When a key is assigned several times, the last assignment wins.
// Missing keys take their nominal value.
func Parse(r io.Reader) (Params, error) {
	var p Params

	raw, err := io.ReadAll(r)
	if err != nil {
		return p, fmt.Errorf("fhicl: could not read FHiCL document: %w", err)
	}
	text := string(raw)

	roi := []any{
		last("HitFinderToolVec.CandidateHitsPlane0.RoiThreshold", text, 5.0),
		last("HitFinderToolVec.CandidateHitsPlane1.RoiThreshold", text, 5.0),
		last("HitFinderToolVec.CandidateHitsPlane2.RoiThreshold", text, 5.0),
	}

	for _, field := range []struct {
		name string
		val  any
		dst  *[3]float64
	}{
		{"RoiThreshold", roi, &p.RoiThreshold},
		{"MinPulseHeight", last("HitFilterAlg.MinPulseHeight", text, 2.0), &p.MinPulseHeight},
		{"MinPulseSigma", last("HitFilterAlg.MinPulseSigma", text, 1.0), &p.MinPulseSigma},
		{"LongPulseWidth", last("LongPulseWidth", text, 10.0), &p.LongPulseWidth},
		{"PulseHeightCuts", last("PulseHeightCuts", text, int64(3)), &p.PulseHeightCuts},
		{"PulseWidthCuts", last("PulseWidthCuts", text, int64(2)), &p.PulseWidthCuts},
		{"PulseRatioCuts", last("PulseRatioCuts", text, 0.35), &p.PulseRatioCuts},
	} {
		vs, err := ensure3(field.val)
		if err != nil {
			return p, fmt.Errorf("fhicl: invalid %s: %w", field.name, err)
		}
		for i, v := range vs {
			field.dst[i], err = toFloat(v)
			if err != nil {
				return p, fmt.Errorf("fhicl: invalid %s[%d]: %w", field.name, i, err)
			}
		}
	}

	lmh, err := ensure3(last("LongMaxHits", text, int64(1)))
	if err != nil {
		return p, fmt.Errorf("fhicl: invalid LongMaxHits: %w", err)
	}
	for i, v := range lmh {
		p.LongMaxHits[i], err = toInt(v)
		if err != nil {
			return p, fmt.Errorf("fhicl: invalid LongMaxHits[%d]: %w", i, err)
		}
	}

	p.MaxMultiHit, err = toInt(last("MaxMultiHit", text, int64(5)))
	if err != nil {
		return p, fmt.Errorf("fhicl: invalid MaxMultiHit: %w", err)
	}

	p.Chi2NDF, err = toFloat(last("Chi2NDF", text, 500.0))
	if err != nil {
		return p, fmt.Errorf("fhicl: invalid Chi2NDF: %w", err)
	}

	return p, nil
}

// ensure3 normalizes v to exactly three values.
// Scalars and one-element lists are replicated, longer lists truncated
// and shorter lists padded with their last element.
func ensure3(v any) ([3]any, error) {
	var o [3]any
	vs, ok := v.([]any)
	if !ok {
		return [3]any{v, v, v}, nil
	}
	switch n := len(vs); n {
	case 0:
		return o, fmt.Errorf("empty list")
	case 1:
		return [3]any{vs[0], vs[0], vs[0]}, nil
	default:
		for i := range o {
			o[i] = vs[min(i, n-1)]
		}
		return o, nil
	}
}

func toFloat(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not a number", v, v)
	}
}

func toInt(v any) (int, error) {
	switch v := v.(type) {
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("value %v is not an integer", v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not a number", v, v)
	}
}
