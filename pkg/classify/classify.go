// Package classify resolves each split patch to a single defect label
// and its layer binding. Overlap precedence is fixed: rebar wins over
// spall, spall over efflorescence, and remaining types fall back to
// their declaration order in the document, so a given document always
// classifies the same way.
package classify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"defectsynth/pkg/defect"
	"defectsynth/pkg/geom"
	"defectsynth/pkg/layers"
	"defectsynth/pkg/split"
)

// Entry binds one defect type, optionally narrowed to a face, to a layer
// name, display color and material library key.
type Entry struct {
	Type     defect.Type `json:"type" yaml:"type"`
	Face     string      `json:"face,omitempty" yaml:"face,omitempty"` // empty means any face
	Layer    string      `json:"layer" yaml:"layer"`
	Color    layers.RGB  `json:"color" yaml:"color"`
	Material string      `json:"material,omitempty" yaml:"material,omitempty"`
}

// ColorMap is the classification table loaded from a color map file.
type ColorMap struct {
	Entries []Entry `json:"entries" yaml:"entries"`
}

// UnmappedDefectError reports a patch whose defect type has no color map
// entry, neither face-specific nor generic.
type UnmappedDefectError struct {
	Type defect.Type
	Face geom.Face
}

func (e *UnmappedDefectError) Error() string {
	return fmt.Sprintf("no color map entry for defect type %q on face %s", e.Type, e.Face)
}

// LoadColorMap reads a color map from a JSON or YAML file, chosen by
// extension.
func LoadColorMap(path string) (*ColorMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read color map: %w", err)
	}
	var cm ColorMap
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &cm)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cm)
	default:
		return nil, fmt.Errorf("color map %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse color map %s: %w", path, err)
	}
	if err := cm.validate(); err != nil {
		return nil, fmt.Errorf("color map %s: %w", path, err)
	}
	return &cm, nil
}

func (m *ColorMap) validate() error {
	for i, e := range m.Entries {
		if e.Layer == "" {
			return fmt.Errorf("entry %d: empty layer name", i)
		}
		if e.Face != "" {
			if _, err := geom.ParseFace(e.Face); err != nil {
				return fmt.Errorf("entry %d: %w", i, err)
			}
		}
	}
	return nil
}

// Lookup finds the entry for a defect type on a face: an exact
// (type, face) match wins over a generic type-only entry.
func (m *ColorMap) Lookup(typ defect.Type, face geom.Face) (Entry, error) {
	var generic *Entry
	for i := range m.Entries {
		e := &m.Entries[i]
		if e.Type != typ {
			continue
		}
		if e.Face == "" {
			if generic == nil {
				generic = e
			}
			continue
		}
		if f, err := geom.ParseFace(e.Face); err == nil && f == face {
			return *e, nil
		}
	}
	if generic != nil {
		return *generic, nil
	}
	return Entry{}, &UnmappedDefectError{Type: typ, Face: face}
}

// Label is the classification of one patch.
type Label struct {
	PatchID  string
	Type     defect.Type
	Layer    string
	Color    layers.RGB
	Material string
}

// Classifier maps patches to labels using a color map and the defect
// specs of the run.
type Classifier struct {
	colors *ColorMap
	types  map[string]defect.Type // defect ID -> type
	rank   map[defect.Type]int
}

// Fixed precedence ranks; lower wins. Types without a fixed rank order
// by first declaration after these.
const (
	rankRebar = iota
	rankSpall
	rankEfflorescence
	rankDeclared
)

// NewClassifier builds a classifier for one document's specs.
func NewClassifier(colors *ColorMap, specs []defect.Spec, declRank map[defect.Type]int) *Classifier {
	types := make(map[string]defect.Type, len(specs))
	for _, s := range specs {
		types[s.ID] = s.Type
	}
	rank := map[defect.Type]int{
		defect.TypeRebar:         rankRebar,
		defect.TypeSpall:         rankSpall,
		defect.TypeEfflorescence: rankEfflorescence,
	}
	for typ, pos := range declRank {
		if _, fixed := rank[typ]; !fixed {
			rank[typ] = rankDeclared + pos
		}
	}
	return &Classifier{colors: colors, types: types, rank: rank}
}

// Classify resolves a patch to its label. Base patches map to the
// TypeNone entry of the color map; overlap patches take the
// highest-precedence type among their tags.
func (c *Classifier) Classify(p *split.Patch) (Label, error) {
	typ := defect.TypeNone
	if !p.Base() {
		best := -1
		for _, tag := range p.Tags {
			t, ok := c.types[tag]
			if !ok {
				return Label{}, fmt.Errorf("patch %s: unknown defect id %q", p.ID, tag)
			}
			r, ok := c.rank[t]
			if !ok {
				r = rankDeclared + len(c.types)
			}
			if best == -1 || r < best {
				best, typ = r, t
			}
		}
	}

	entry, err := c.colors.Lookup(typ, p.Face)
	if err != nil {
		return Label{}, err
	}
	return Label{
		PatchID:  p.ID,
		Type:     typ,
		Layer:    entry.Layer,
		Color:    entry.Color,
		Material: entry.Material,
	}, nil
}
