package sdfx

import (
	"math"
	"testing"

	"defectsynth/pkg/geom"
)

func TestBox(t *testing.T) {
	k := New()
	box := k.Box(100, 50, 25)
	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if mesh.VertexCount() == 0 {
		t.Fatal("expected non-zero vertex count")
	}
	triCount := mesh.TriangleCount()
	if triCount == 0 {
		t.Fatal("expected non-zero triangle count")
	}
	// Verify vertex and index array sizes are consistent.
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != triCount*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), triCount*3)
	}
}

func TestBoundingBox(t *testing.T) {
	k := New()
	box := k.Box(100, 50, 25)
	min, max := box.BoundingBox()

	const tol = 0.01
	expectMin := [3]float64{-50, -25, -12.5}
	expectMax := [3]float64{50, 25, 12.5}

	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected %f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected %f", i, max[i], expectMax[i])
		}
	}
}

func TestExtrude(t *testing.T) {
	k := New()
	square := []geom.Vec2{{X: -10, Y: -10}, {X: 10, Y: -10}, {X: 10, Y: 10}, {X: -10, Y: 10}}
	s, err := k.Extrude(square, 30)
	if err != nil {
		t.Fatalf("Extrude failed: %v", err)
	}

	min, max := s.BoundingBox()
	const tol = 0.5
	if math.Abs(min[2]+15) > tol || math.Abs(max[2]-15) > tol {
		t.Errorf("extrusion z bounds = [%f, %f], expected [-15, 15]", min[2], max[2])
	}

	// The center of the extruded square must be inside, a point well
	// outside the footprint must not.
	if !k.Contains(s, 0, 0, 0, 1e-9) {
		t.Error("center not contained in extrusion")
	}
	if k.Contains(s, 50, 0, 0, 1e-9) {
		t.Error("exterior point reported inside extrusion")
	}
}

func TestExtrudeRejectsTooFewPoints(t *testing.T) {
	k := New()
	_, err := k.Extrude([]geom.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}}, 10)
	if err == nil {
		t.Fatal("expected error for 2-point profile")
	}
}

func TestDifferenceContains(t *testing.T) {
	k := New()
	box := k.Box(100, 100, 100)
	bite := k.Translate(k.Box(40, 40, 40), 50, 0, 0)
	diff := k.Difference(box, bite)

	// A point in the bitten-out corner is outside, the opposite side stays in.
	if k.Contains(diff, 45, 0, 0, 1e-9) {
		t.Error("point inside removed volume reported contained")
	}
	if !k.Contains(diff, -45, 0, 0, 1e-9) {
		t.Error("point in remaining volume reported outside")
	}
}

func TestIntersectionContains(t *testing.T) {
	k := New()
	box1 := k.Box(100, 100, 100)
	box2 := k.Translate(k.Box(100, 100, 100), 50, 0, 0)
	inter := k.Intersection(box1, box2)

	if !k.Contains(inter, 25, 0, 0, 1e-9) {
		t.Error("point in overlap reported outside")
	}
	if k.Contains(inter, -25, 0, 0, 1e-9) {
		t.Error("point outside overlap reported inside")
	}
}

func TestUnion(t *testing.T) {
	k := New()
	box1 := k.Box(50, 50, 50)
	box2 := k.Translate(k.Box(50, 50, 50), 30, 0, 0)
	u := k.Union(box1, box2)

	if !k.Contains(u, 0, 0, 0, 1e-9) || !k.Contains(u, 30, 0, 0, 1e-9) {
		t.Error("union must contain both box centers")
	}
}

func TestTranslate(t *testing.T) {
	k := New()
	box := k.Box(10, 10, 10)
	translated := k.Translate(box, 100, 200, 300)

	min, max := translated.BoundingBox()

	const tol = 0.5
	expectMin := [3]float64{95, 195, 295}
	expectMax := [3]float64{105, 205, 305}

	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected ~%f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected ~%f", i, max[i], expectMax[i])
		}
	}
}

func TestRotate(t *testing.T) {
	k := New()
	box := k.Box(100, 10, 10)

	// A long box along X rotated 90 degrees around Z should extend along Y instead.
	rotated := k.Rotate(box, 0, 0, 90)
	min, max := rotated.BoundingBox()

	xExtent := max[0] - min[0]
	yExtent := max[1] - min[1]

	const tol = 1.0
	if math.Abs(xExtent-10) > tol {
		t.Errorf("rotated X extent = %f, expected ~10", xExtent)
	}
	if math.Abs(yExtent-100) > tol {
		t.Errorf("rotated Y extent = %f, expected ~100", yExtent)
	}
}

// The face Euler rotations used for cutter placement must behave the same
// in the sdfx backend as in the pure-math geom table: a profile extruded
// along +Z and rotated into a face frame ends up outward of that face.
func TestRotateMatchesFaceFrames(t *testing.T) {
	k := New()
	for _, f := range geom.Faces() {
		t.Run(f.String(), func(t *testing.T) {
			slab := k.Box(10, 10, 2) // thin along local Z
			rx, ry, rz := f.Euler()
			rotated := k.Rotate(slab, rx, ry, rz)

			min, max := rotated.BoundingBox()
			n := f.Normal()
			// The thin extent must now lie along the face normal axis.
			extents := [3]float64{max[0] - min[0], max[1] - min[1], max[2] - min[2]}
			axes := [3]float64{math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)}
			for i := 0; i < 3; i++ {
				want := 10.0
				if axes[i] > 0.5 {
					want = 2.0
				}
				if math.Abs(extents[i]-want) > 0.5 {
					t.Errorf("axis %d extent = %f, want ~%f", i, extents[i], want)
				}
			}
		})
	}
}
