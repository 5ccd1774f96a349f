// Package analytic implements the geometry kernel with exact membership
// predicates instead of signed distance fields. Solids are composed
// point-classification functions, so boolean results and containment
// probes are exact. It exists for tests: the split and pipeline suites
// use it to verify boolean bookkeeping without meshing noise.
package analytic

import (
	"errors"
	"fmt"
	"math"

	"defectsynth/pkg/geom"
	"defectsynth/pkg/kernel"
)

// Kernel is the analytic membership-function kernel.
type Kernel struct{}

// Compile-time interface checks.
var (
	_ kernel.Kernel = (*Kernel)(nil)
	_ kernel.Solid  = (*solid)(nil)
)

func New() *Kernel {
	return &Kernel{}
}

type solid struct {
	inside   func(p geom.Vec3) bool
	min, max geom.Vec3
}

func (s *solid) BoundingBox() (min, max [3]float64) {
	return [3]float64{s.min.X, s.min.Y, s.min.Z},
		[3]float64{s.max.X, s.max.Y, s.max.Z}
}

func unwrap(s kernel.Solid) *solid {
	as, ok := s.(*solid)
	if !ok {
		panic(fmt.Sprintf("analytic: foreign solid type %T", s))
	}
	return as
}

// Box returns an axis-aligned box centered at the origin.
func (k *Kernel) Box(x, y, z float64) kernel.Solid {
	hx, hy, hz := x/2, y/2, z/2
	return &solid{
		inside: func(p geom.Vec3) bool {
			return math.Abs(p.X) <= hx && math.Abs(p.Y) <= hy && math.Abs(p.Z) <= hz
		},
		min: geom.Vec3{X: -hx, Y: -hy, Z: -hz},
		max: geom.Vec3{X: hx, Y: hy, Z: hz},
	}
}

// Extrude builds a prism from a simple polygon in the XY plane, extruded
// symmetrically along Z. Membership is point-in-polygon plus a Z range test.
func (k *Kernel) Extrude(profile []geom.Vec2, height float64) (kernel.Solid, error) {
	if len(profile) < 3 {
		return nil, errors.New("analytic: extrusion profile needs at least 3 points")
	}
	if height <= 0 {
		return nil, errors.New("analytic: extrusion height must be positive")
	}
	pts := make([]geom.Vec2, len(profile))
	copy(pts, profile)
	bmin, bmax := geom.Bounds(pts)
	hz := height / 2
	return &solid{
		inside: func(p geom.Vec3) bool {
			if math.Abs(p.Z) > hz {
				return false
			}
			return geom.Contains(pts, geom.Vec2{X: p.X, Y: p.Y})
		},
		min: geom.Vec3{X: bmin.X, Y: bmin.Y, Z: -hz},
		max: geom.Vec3{X: bmax.X, Y: bmax.Y, Z: hz},
	}, nil
}

func (k *Kernel) Union(a, b kernel.Solid) kernel.Solid {
	sa, sb := unwrap(a), unwrap(b)
	return &solid{
		inside: func(p geom.Vec3) bool { return sa.inside(p) || sb.inside(p) },
		min:    vmin(sa.min, sb.min),
		max:    vmax(sa.max, sb.max),
	}
}

func (k *Kernel) Difference(a, b kernel.Solid) kernel.Solid {
	sa, sb := unwrap(a), unwrap(b)
	return &solid{
		inside: func(p geom.Vec3) bool { return sa.inside(p) && !sb.inside(p) },
		min:    sa.min,
		max:    sa.max,
	}
}

func (k *Kernel) Intersection(a, b kernel.Solid) kernel.Solid {
	sa, sb := unwrap(a), unwrap(b)
	return &solid{
		inside: func(p geom.Vec3) bool { return sa.inside(p) && sb.inside(p) },
		min:    vmax(sa.min, sb.min),
		max:    vmin(sa.max, sb.max),
	}
}

func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	ss := unwrap(s)
	d := geom.Vec3{X: x, Y: y, Z: z}
	return &solid{
		inside: func(p geom.Vec3) bool { return ss.inside(p.Sub(d)) },
		min:    ss.min.Add(d),
		max:    ss.max.Add(d),
	}
}

// Rotate rotates a solid by Euler angles in degrees, X then Y then Z.
// Membership is tested by applying the inverse rotation to the query
// point; the bounding box comes from rotating the original box corners.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	ss := unwrap(s)
	m := geom.RotationXYZ(x, y, z)
	inv := m.Transpose()

	min := geom.Vec3{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max := geom.Vec3{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, cx := range []float64{ss.min.X, ss.max.X} {
		for _, cy := range []float64{ss.min.Y, ss.max.Y} {
			for _, cz := range []float64{ss.min.Z, ss.max.Z} {
				c := m.Apply(geom.Vec3{X: cx, Y: cy, Z: cz})
				min = vmin(min, c)
				max = vmax(max, c)
			}
		}
	}

	return &solid{
		inside: func(p geom.Vec3) bool { return ss.inside(inv.Apply(p)) },
		min:    min,
		max:    max,
	}
}

// Contains is exact. tol is ignored since membership is a predicate,
// not a distance.
func (k *Kernel) Contains(s kernel.Solid, x, y, z, tol float64) bool {
	return unwrap(s).inside(geom.Vec3{X: x, Y: y, Z: z})
}

// ToMesh is not supported; the analytic kernel has no surface
// representation to triangulate.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	return nil, errors.New("analytic: meshing not supported")
}

func vmin(a, b geom.Vec3) geom.Vec3 {
	return geom.Vec3{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func vmax(a, b geom.Vec3) geom.Vec3 {
	return geom.Vec3{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}
