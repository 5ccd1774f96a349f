// Package kernel defines the abstract geometry kernel interface used by
// the defect synthesis engine. Implementations (sdfx, analytic) provide
// solid modeling and boolean operations behind this interface, so the
// contour/cutter/split layers never touch a concrete geometry library.
package kernel

import "defectsynth/pkg/geom"

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives. Box is centered at the origin.
	Box(x, y, z float64) Solid

	// Extrude builds a solid from a simple planar polygon in the XY
	// plane, extruded symmetrically along Z to the given total height
	// (z spans [-height/2, +height/2]).
	Extrude(profile []geom.Vec2, height float64) (Solid, error)

	// Boolean operations.
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms.
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees, X then Y then Z

	// Contains reports whether the point lies inside the solid, within
	// the given surface tolerance. Split validation probes interior
	// witness points through this.
	Contains(s Solid, x, y, z, tol float64) bool

	// Mesh output.
	ToMesh(s Solid) (*Mesh, error)
}
