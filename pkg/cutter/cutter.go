// Package cutter builds the 3D boolean operands used to carve defect
// volumes out of the base cube. A cutter is a prism: a validated face
// contour extruded inward by the defect depth, with a small overshoot
// margin past the face plane so boolean operations never have to cope
// with coincident surfaces.
package cutter

import (
	"fmt"

	"defectsynth/pkg/contour"
	"defectsynth/pkg/defect"
	"defectsynth/pkg/geom"
	"defectsynth/pkg/kernel"
)

// Cutter is a positioned solid ready for boolean splitting, together with
// the footprint it was built from.
type Cutter struct {
	ID        string
	Type      defect.Type
	Face      geom.Face
	Footprint *contour.PlanarCurve
	Depth     float64
	Margin    float64
	Solid     kernel.Solid
}

// ContainsFootprint reports whether a face-local 2D point falls inside
// the cutter's footprint.
func (c *Cutter) ContainsFootprint(p geom.Vec2) bool {
	return c.Footprint.Contains(p)
}

// DegenerateCutterError reports a defect spec whose parameters cannot
// produce a usable cutter volume.
type DegenerateCutterError struct {
	Defect string
	Face   geom.Face
	Reason string
}

func (e *DegenerateCutterError) Error() string {
	return fmt.Sprintf("degenerate cutter for defect %q on face %s: %s", e.Defect, e.Face, e.Reason)
}

// Factory builds cutters for a cube of a fixed edge length.
type Factory struct {
	kernel       kernel.Kernel
	baseEdge     float64
	overshoot    float64 // margin as a fraction of the edge
	minOvershoot float64 // absolute floor for the margin, mm
	epsGeom      float64 // minimum usable depth
}

// NewFactory returns a cutter factory. overshootFrac scales the margin
// with the cube edge; minOvershoot keeps it meaningful on small cubes;
// epsGeom is the depth below which a cut is considered degenerate.
func NewFactory(k kernel.Kernel, baseEdge, overshootFrac, minOvershoot, epsGeom float64) *Factory {
	return &Factory{
		kernel:       k,
		baseEdge:     baseEdge,
		overshoot:    overshootFrac,
		minOvershoot: minOvershoot,
		epsGeom:      epsGeom,
	}
}

// Margin returns the overshoot applied beyond both ends of a cutter.
func (f *Factory) Margin() float64 {
	m := f.overshoot * f.baseEdge
	if m < f.minOvershoot {
		m = f.minOvershoot
	}
	return m
}

// Make builds the positioned cutter solid for a defect. The footprint is
// extruded to depth plus a margin at both ends, rotated into the face
// frame, and translated outward along the face normal so the prism spans
// [half-Depth-Margin, half+Margin] along the normal. The outer margin
// clears the face plane; the inner one keeps the cut bottom away from
// boolean tolerance effects at exactly Depth.
func (f *Factory) Make(spec defect.Spec, footprint *contour.PlanarCurve) (*Cutter, error) {
	fail := func(reason string) error {
		return &DegenerateCutterError{Defect: spec.ID, Face: spec.Face, Reason: reason}
	}

	if footprint == nil || len(footprint.Points) < 3 {
		return nil, fail("missing footprint")
	}
	if spec.Depth <= f.epsGeom {
		return nil, fail(fmt.Sprintf("depth %.6g below minimum %.6g", spec.Depth, f.epsGeom))
	}
	if spec.Depth >= f.baseEdge {
		return nil, fail(fmt.Sprintf("depth %.6g exceeds cube edge %.6g", spec.Depth, f.baseEdge))
	}

	margin := f.Margin()
	height := spec.Depth + 2*margin

	prism, err := f.kernel.Extrude(footprint.Points, height)
	if err != nil {
		return nil, fail(fmt.Sprintf("extrusion failed: %v", err))
	}

	rx, ry, rz := spec.Face.Euler()
	oriented := f.kernel.Rotate(prism, rx, ry, rz)

	// The extrusion is centered on the face plane after rotation. Shift
	// along the outward normal so the span along the normal becomes
	// [half-Depth-Margin, half+Margin].
	half := f.baseEdge / 2
	offset := half + margin - height/2
	n := spec.Face.Normal()
	solid := f.kernel.Translate(oriented, n.X*offset, n.Y*offset, n.Z*offset)

	return &Cutter{
		ID:        spec.ID,
		Type:      spec.Type,
		Face:      spec.Face,
		Footprint: footprint,
		Depth:     spec.Depth,
		Margin:    margin,
		Solid:     solid,
	}, nil
}
