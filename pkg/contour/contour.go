// Package contour turns raw defect contour specs into validated planar
// curves in face-local coordinates. All downstream geometry (cutters,
// splitting) consumes the curves this package produces, so every
// degenerate input is rejected here before any kernel work happens.
package contour

import (
	"fmt"
	"math"

	"defectsynth/pkg/defect"
	"defectsynth/pkg/geom"
)

// filletFacets is the number of arc segments per rounded corner.
const filletFacets = 8

// PlanarCurve is a validated, counter-clockwise simple polygon in the
// 2D coordinate frame of a cube face.
type PlanarCurve struct {
	Face   geom.Face
	Points []geom.Vec2
	Area   float64
}

// InvalidContourError reports a contour spec that cannot produce a
// usable planar curve.
type InvalidContourError struct {
	Defect string
	Face   geom.Face
	Reason string
}

func (e *InvalidContourError) Error() string {
	return fmt.Sprintf("invalid contour for defect %q on face %s: %s", e.Defect, e.Face, e.Reason)
}

// Builder validates and normalizes defect contours for a cube of a
// given size.
type Builder struct {
	halfExtent float64 // half the cube edge; face coordinates span [-halfExtent, +halfExtent]
	epsArea    float64 // minimum usable contour area
	epsGeom    float64 // coordinate comparison tolerance
}

// NewBuilder returns a Builder for a cube with the given edge length.
func NewBuilder(baseEdge, epsArea, epsGeom float64) *Builder {
	return &Builder{
		halfExtent: baseEdge / 2,
		epsArea:    epsArea,
		epsGeom:    epsGeom,
	}
}

// Build validates a contour spec and returns the planar curve for it.
// The result is always counter-clockwise and, when the spec asks for
// corner rounding, has its corners replaced by arc approximations.
func (b *Builder) Build(defectID string, face geom.Face, spec defect.ContourSpec) (*PlanarCurve, error) {
	fail := func(reason string) error {
		return &InvalidContourError{Defect: defectID, Face: face, Reason: reason}
	}

	if !spec.Closed {
		return nil, fail("contour is not closed")
	}

	pts := spec.Vecs()
	pts = stripClosingPoint(pts, b.epsGeom)
	if len(pts) < 3 {
		return nil, fail(fmt.Sprintf("need at least 3 distinct points, got %d", len(pts)))
	}
	for _, p := range pts {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fail("contour contains non-finite coordinates")
		}
	}

	area := geom.SignedArea(pts)
	if math.Abs(area) < b.epsArea {
		return nil, fail(fmt.Sprintf("contour area %.6g below minimum %.6g", math.Abs(area), b.epsArea))
	}
	if !geom.IsSimple(pts) {
		return nil, fail("contour is self-intersecting")
	}

	// Normalize winding to counter-clockwise.
	if area < 0 {
		reverse(pts)
		area = -area
	}

	min, max := geom.Bounds(pts)
	lim := b.halfExtent + b.epsGeom
	if min.X < -lim || min.Y < -lim || max.X > lim || max.Y > lim {
		return nil, fail(fmt.Sprintf("contour exceeds face bounds [%.6g, %.6g]", -b.halfExtent, b.halfExtent))
	}

	if spec.RoundRadius > 0 {
		pts = geom.RoundCorners(pts, spec.RoundRadius, filletFacets)
		area = geom.SignedArea(pts)
		if area < b.epsArea {
			return nil, fail("contour degenerated under corner rounding")
		}
	}

	return &PlanarCurve{Face: face, Points: pts, Area: area}, nil
}

// Contains reports whether a face-local point lies inside the curve.
func (c *PlanarCurve) Contains(p geom.Vec2) bool {
	return geom.Contains(c.Points, p)
}

// stripClosingPoint drops a final point that duplicates the first, a
// common artifact of exported closed polylines.
func stripClosingPoint(pts []geom.Vec2, eps float64) []geom.Vec2 {
	for len(pts) > 1 {
		d := pts[len(pts)-1].Sub(pts[0])
		if math.Abs(d.X) > eps || math.Abs(d.Y) > eps {
			break
		}
		pts = pts[:len(pts)-1]
	}
	return pts
}

func reverse(pts []geom.Vec2) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}
