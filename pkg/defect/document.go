package defect

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"defectsynth/pkg/geom"
)

// Document is the defect-specification input to one pipeline run: an
// ordered list of defect specs, optionally expressed in pixel coordinates.
//
// When PixelSizeCM is non-zero, contour points are pixel coordinates in
// [0, edge/px] and Normalized converts them to centered face-local
// millimetres (pixel_size_cm * 10 mm per pixel, then shifted so the face
// center is the origin), matching the contour-map capture format.
type Document struct {
	PixelSizeCM float64 `json:"pixel_size_cm,omitempty"`
	Defects     []Spec  `json:"defects"`
}

// ParseDocument decodes a defect document from JSON.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse defect document: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	doc.assignIDs()
	return &doc, nil
}

// LoadDocument reads and decodes a defect document file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defect document: %w", err)
	}
	return ParseDocument(data)
}

// validate checks document-level structure. Geometric validity of each
// contour is the contour builder's job; here only the parts that make the
// document unusable as a whole are rejected.
func (d *Document) validate() error {
	for i, s := range d.Defects {
		if s.Type == TypeNone {
			return fmt.Errorf("defect %d: type %q cannot be declared", i, s.Type)
		}
		if len(s.Contour.Points) == 0 {
			return fmt.Errorf("defect %d (%s on %s): contour has no points", i, s.Type, s.Face)
		}
		// Tag sets join defect IDs with "|", so the separator cannot
		// appear inside an ID.
		if strings.Contains(s.ID, "|") {
			return fmt.Errorf("defect %d: id %q contains reserved character %q", i, s.ID, "|")
		}
	}
	return nil
}

// assignIDs gives every spec without a caller-provided identifier a stable
// one derived from its declaration position.
func (d *Document) assignIDs() {
	for i := range d.Defects {
		if d.Defects[i].ID == "" {
			d.Defects[i].ID = fmt.Sprintf("%s-%s-%02d", d.Defects[i].Type, d.Defects[i].Face, i)
		}
	}
}

// Normalized returns a document whose contour points are centered
// face-local millimetres for a base cube with the given edge length.
// The receiver is never modified: documents stay owned by the caller, so
// pixel-space points are deep-copied before conversion. Documents already
// expressed in millimetres (PixelSizeCM == 0) are returned as-is.
func (d *Document) Normalized(baseEdge float64) *Document {
	if d.PixelSizeCM == 0 {
		return d
	}
	mmPerPixel := d.PixelSizeCM * 10
	half := baseEdge / 2
	out := &Document{Defects: make([]Spec, len(d.Defects))}
	copy(out.Defects, d.Defects)
	for i := range out.Defects {
		src := d.Defects[i].Contour.Points
		pts := make([][2]float64, len(src))
		for j, p := range src {
			pts[j] = [2]float64{p[0]*mmPerPixel - half, p[1]*mmPerPixel - half}
		}
		out.Defects[i].Contour.Points = pts
	}
	return out
}

// ByFace groups the defect specs per face, preserving declaration order
// within each face. Faces without defects are absent from the map.
func (d *Document) ByFace() map[geom.Face][]Spec {
	out := make(map[geom.Face][]Spec)
	for _, s := range d.Defects {
		out[s.Face] = append(out[s.Face], s)
	}
	return out
}

// DeclarationRank returns, for each defect type present in the document,
// the position of its first declaration. Classification uses this to order
// types that have no built-in precedence.
func (d *Document) DeclarationRank() map[Type]int {
	rank := make(map[Type]int)
	for i, s := range d.Defects {
		if _, seen := rank[s.Type]; !seen {
			rank[s.Type] = i
		}
	}
	return rank
}
