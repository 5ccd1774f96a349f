// Package defect defines the declarative defect document consumed by the
// synthesis pipeline: defect types, per-face contour specifications, and
// the JSON document format produced by the contour capture tooling
// (including its pixel-to-millimetre scaling convention).
package defect

import (
	"fmt"
	"strings"

	"defectsynth/pkg/geom"
)

// Type is the closed catalog of surface defect kinds. Classification
// precedence on overlapping defects is fixed per type (see pkg/classify),
// so the catalog is a tagged enum rather than open polymorphic dispatch.
type Type int

const (
	TypeNone Type = iota // undisturbed base material
	TypeSpall
	TypeRebar
	TypeEfflorescence
	TypeCrack
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeSpall:
		return "spall"
	case TypeRebar:
		return "rebar"
	case TypeEfflorescence:
		return "efflorescence"
	case TypeCrack:
		return "crack"
	default:
		return "unknown"
	}
}

// ParseType parses a defect type name (case-insensitive).
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return TypeNone, nil
	case "spall":
		return TypeSpall, nil
	case "rebar":
		return TypeRebar, nil
	case "efflorescence":
		return TypeEfflorescence, nil
	case "crack":
		return TypeCrack, nil
	default:
		return 0, fmt.Errorf("unknown defect type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if t < TypeNone || t > TypeCrack {
		return nil, fmt.Errorf("invalid defect type value %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UnmarshalYAML decodes a type name from YAML. The yaml package does not
// consult encoding.TextUnmarshaler, so this is spelled out.
func (t *Type) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(s))
}

// MarshalYAML encodes the type name.
func (t Type) MarshalYAML() (any, error) {
	return t.String(), nil
}

// ContourSpec is an ordered sequence of face-local 2D points describing a
// defect region footprint, with a closure flag and an optional corner
// rounding radius (mm).
type ContourSpec struct {
	Points      [][2]float64 `json:"points"`
	Closed      bool         `json:"closed"`
	RoundRadius float64      `json:"round_radius,omitempty"`
}

// Vecs returns the contour points as geom.Vec2 values.
func (c ContourSpec) Vecs() []geom.Vec2 {
	out := make([]geom.Vec2, len(c.Points))
	for i, p := range c.Points {
		out[i] = geom.Vec2{X: p[0], Y: p[1]}
	}
	return out
}

// Spec describes one defect region on one face. Specs are owned by the
// caller and consumed read-only by the pipeline.
type Spec struct {
	ID       string         `json:"id,omitempty"`
	Type     Type           `json:"type"`
	Face     geom.Face      `json:"face"`
	Contour  ContourSpec    `json:"contour"`
	Depth    float64        `json:"depth"` // cutter extrusion distance, mm
	Metadata map[string]any `json:"metadata,omitempty"`
}
