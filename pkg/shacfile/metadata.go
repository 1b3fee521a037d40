package shacfile

import (
	"encoding/json"
	"fmt"
	"math"
)

// MarshalJSON emits position, type, and gain alongside any Extra fields,
// so unrecognized fields round-trip unchanged.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["position"] = []float64{m.Position[0], m.Position[1], m.Position[2]}
	out["type"] = m.Type
	out["gain"] = m.Gain
	return json.Marshal(out)
}

// UnmarshalJSON parses a layer metadata object, defaulting gain to 1.0
// when absent, and preserving any unrecognized fields in Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	pos, ok := raw["position"]
	if !ok {
		return fmt.Errorf("metadata: missing required field %q", "position")
	}
	posSlice, ok := pos.([]any)
	if !ok || len(posSlice) != 3 {
		return fmt.Errorf("metadata: %q must be an array of 3 numbers", "position")
	}
	var p [3]float64
	for i, v := range posSlice {
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("metadata: position[%d] is not a finite number", i)
		}
		p[i] = f
	}

	typ, ok := raw["type"]
	if !ok {
		return fmt.Errorf("metadata: missing required field %q", "type")
	}
	typStr, ok := typ.(string)
	if !ok {
		return fmt.Errorf("metadata: %q must be a string", "type")
	}

	gain := 1.0
	if g, ok := raw["gain"]; ok {
		gf, ok := g.(float64)
		if !ok {
			return fmt.Errorf("metadata: %q must be a number", "gain")
		}
		gain = gf
	}

	extra := make(map[string]any)
	for k, v := range raw {
		switch k {
		case "position", "type", "gain":
			continue
		default:
			extra[k] = v
		}
	}

	m.Position = p
	m.Type = typStr
	m.Gain = gain
	m.Extra = extra
	return nil
}

// validate checks a Metadata value's own invariants, independent of its
// serialized size (checked separately against MaxMetaLen).
func (m Metadata) validate() error {
	for i, v := range m.Position {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("position[%d] is not finite", i)
		}
	}
	return nil
}
