package cutter

import (
	"errors"
	"math"
	"testing"

	"defectsynth/pkg/contour"
	"defectsynth/pkg/defect"
	"defectsynth/pkg/geom"
	"defectsynth/pkg/kernel/analytic"
)

const testEdge = 500.0

func testFactory() *Factory {
	return NewFactory(analytic.New(), testEdge, 0.01, 1.0, 1e-3)
}

func buildFootprint(t *testing.T, face geom.Face, pts [][2]float64) *contour.PlanarCurve {
	t.Helper()
	b := contour.NewBuilder(testEdge, 0.25, 1e-3)
	c, err := b.Build("d", face, defect.ContourSpec{Points: pts, Closed: true})
	if err != nil {
		t.Fatalf("footprint build failed: %v", err)
	}
	return c
}

func TestMakePlacement(t *testing.T) {
	f := testFactory()
	k := analytic.New()

	for _, face := range geom.Faces() {
		t.Run(face.String(), func(t *testing.T) {
			fp := buildFootprint(t, face, [][2]float64{{-40, -40}, {40, -40}, {40, 40}, {-40, 40}})
			spec := defect.Spec{ID: "d", Type: defect.TypeSpall, Face: face, Depth: 30}
			c, err := f.Make(spec, fp)
			if err != nil {
				t.Fatalf("Make failed: %v", err)
			}

			half := testEdge / 2
			n := face.Normal()

			// Just inside the face at the footprint center is in the cutter.
			inner := n.Scale(half - 10)
			if !k.Contains(c.Solid, inner.X, inner.Y, inner.Z, 0) {
				t.Errorf("point 10mm under face not in cutter")
			}
			// Beyond the cut depth plus margin is out.
			deep := n.Scale(half - c.Depth - c.Margin - 5)
			if k.Contains(c.Solid, deep.X, deep.Y, deep.Z, 0) {
				t.Errorf("point below cut bottom in cutter")
			}
			// Outside the footprint in the face plane is out.
			u, _, _ := face.Axes()
			off := n.Scale(half - 10).Add(u.Scale(60))
			if k.Contains(c.Solid, off.X, off.Y, off.Z, 0) {
				t.Errorf("point outside footprint in cutter")
			}

			// The bounding box straddles the face plane by Margin.
			min, max := c.Solid.BoundingBox()
			span := [3][2]float64{{min[0], max[0]}, {min[1], max[1]}, {min[2], max[2]}}
			axes := [3]float64{n.X, n.Y, n.Z}
			for i, a := range axes {
				if math.Abs(a) < 0.5 {
					continue
				}
				lo, hi := span[i][0], span[i][1]
				if a < 0 {
					lo, hi = -hi, -lo
				}
				if math.Abs(hi-(half+c.Margin)) > 1e-9 {
					t.Errorf("outer extent along normal = %v, want %v", hi, half+c.Margin)
				}
				if math.Abs(lo-(half-c.Depth-c.Margin)) > 1e-9 {
					t.Errorf("inner extent along normal = %v, want %v", lo, half-c.Depth-c.Margin)
				}
			}
		})
	}
}

func TestMakeMargin(t *testing.T) {
	k := analytic.New()

	// 1% of 500mm wins over the 1mm floor.
	f := NewFactory(k, 500, 0.01, 1.0, 1e-3)
	if got := f.Margin(); math.Abs(got-5.0) > 1e-12 {
		t.Errorf("margin = %v, want 5", got)
	}
	// On a small cube the floor wins.
	f = NewFactory(k, 50, 0.01, 1.0, 1e-3)
	if got := f.Margin(); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("margin = %v, want 1", got)
	}
}

func TestMakeRejections(t *testing.T) {
	f := testFactory()
	fp := buildFootprint(t, geom.FacePosZ, [][2]float64{{-40, -40}, {40, -40}, {40, 40}, {-40, 40}})

	tests := []struct {
		name string
		spec defect.Spec
		fp   *contour.PlanarCurve
	}{
		{"zero depth", defect.Spec{ID: "d", Face: geom.FacePosZ, Depth: 0}, fp},
		{"negative depth", defect.Spec{ID: "d", Face: geom.FacePosZ, Depth: -5}, fp},
		{"depth exceeds edge", defect.Spec{ID: "d", Face: geom.FacePosZ, Depth: 600}, fp},
		{"nil footprint", defect.Spec{ID: "d", Face: geom.FacePosZ, Depth: 10}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Make(tt.spec, tt.fp)
			if err == nil {
				t.Fatal("expected error")
			}
			var dce *DegenerateCutterError
			if !errors.As(err, &dce) {
				t.Fatalf("error type = %T, want *DegenerateCutterError", err)
			}
			if dce.Defect != "d" {
				t.Errorf("error defect = %q, want \"d\"", dce.Defect)
			}
		})
	}
}

func TestContainsFootprint(t *testing.T) {
	f := testFactory()
	fp := buildFootprint(t, geom.FaceNegY, [][2]float64{{0, 0}, {30, 0}, {30, 30}, {0, 30}})
	c, err := f.Make(defect.Spec{ID: "d", Type: defect.TypeRebar, Face: geom.FaceNegY, Depth: 12}, fp)
	if err != nil {
		t.Fatalf("Make failed: %v", err)
	}
	if !c.ContainsFootprint(geom.Vec2{X: 15, Y: 15}) {
		t.Error("footprint center not contained")
	}
	if c.ContainsFootprint(geom.Vec2{X: -15, Y: 15}) {
		t.Error("point outside footprint contained")
	}
}
