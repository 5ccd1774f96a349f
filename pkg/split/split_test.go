package split

import (
	"context"
	"errors"
	"math"
	"testing"

	"defectsynth/pkg/contour"
	"defectsynth/pkg/cutter"
	"defectsynth/pkg/defect"
	"defectsynth/pkg/geom"
	"defectsynth/pkg/kernel/analytic"
)

const testEdge = 500.0

func testEngine() *Engine {
	return NewEngine(analytic.New(), 50, 1e-3, 2, 3)
}

func makeCutter(t *testing.T, id string, typ defect.Type, face geom.Face, depth float64, pts [][2]float64) *cutter.Cutter {
	t.Helper()
	b := contour.NewBuilder(testEdge, 0.25, 1e-3)
	fp, err := b.Build(id, face, defect.ContourSpec{Points: pts, Closed: true})
	if err != nil {
		t.Fatalf("footprint %s: %v", id, err)
	}
	f := cutter.NewFactory(analytic.New(), testEdge, 0.01, 1.0, 1e-3)
	c, err := f.Make(defect.Spec{ID: id, Type: typ, Face: face, Depth: depth}, fp)
	if err != nil {
		t.Fatalf("cutter %s: %v", id, err)
	}
	return c
}

func patchByTags(patches []*Patch, tags ...string) *Patch {
	for _, p := range patches {
		if len(p.Tags) != len(tags) {
			continue
		}
		match := true
		for i := range tags {
			if p.Tags[i] != tags[i] {
				match = false
				break
			}
		}
		if match {
			return p
		}
	}
	return nil
}

func totalArea(patches []*Patch) float64 {
	sum := 0.0
	for _, p := range patches {
		sum += p.Area
	}
	return sum
}

func TestSplitNoCutters(t *testing.T) {
	e := testEngine()
	k := analytic.New()
	base := k.Box(testEdge, testEdge, testEdge)

	res, err := e.Split(context.Background(), base, testEdge, geom.FacePosZ, nil)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(res.Patches) != 1 {
		t.Fatalf("patch count = %d, want 1", len(res.Patches))
	}
	p := res.Patches[0]
	if !p.Base() {
		t.Error("sole patch is not base")
	}
	if math.Abs(p.Area-res.FaceArea) > 1e-9 {
		t.Errorf("base patch area = %v, want %v", p.Area, res.FaceArea)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
}

func TestSplitSingleDefect(t *testing.T) {
	e := testEngine()
	k := analytic.New()
	base := k.Box(testEdge, testEdge, testEdge)

	// 100x100mm spall centered on the front face.
	c := makeCutter(t, "spall-0", defect.TypeSpall, geom.FacePosZ, 30,
		[][2]float64{{-50, -50}, {50, -50}, {50, 50}, {-50, 50}})

	res, err := e.Split(context.Background(), base, testEdge, geom.FacePosZ, []*cutter.Cutter{c})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(res.Patches) != 2 {
		t.Fatalf("patch count = %d, want 2", len(res.Patches))
	}

	basePatch := patchByTags(res.Patches)
	spall := patchByTags(res.Patches, "spall-0")
	if basePatch == nil || spall == nil {
		t.Fatal("expected one base patch and one spall patch")
	}

	// Grid cell is 10mm, footprint edges align with cell boundaries, so
	// the sampled area is exact here.
	if math.Abs(spall.Area-10000) > 1e-9 {
		t.Errorf("spall area = %v, want 10000", spall.Area)
	}
	if math.Abs(totalArea(res.Patches)-res.FaceArea) > 1e-9 {
		t.Errorf("areas sum to %v, want %v", totalArea(res.Patches), res.FaceArea)
	}

	// The spall patch solid sits in the carved pocket, the base patch
	// everywhere else.
	if !k.Contains(spall.Solid, 0, 0, 240, 0) {
		t.Error("pocket interior not in spall patch")
	}
	if k.Contains(basePatch.Solid, 0, 0, 240, 0) {
		t.Error("pocket interior leaked into base patch")
	}
	if !k.Contains(basePatch.Solid, 200, 200, 0, 0) {
		t.Error("cube interior not in base patch")
	}
}

func TestSplitOverlappingDefects(t *testing.T) {
	e := testEngine()
	k := analytic.New()
	base := k.Box(testEdge, testEdge, testEdge)

	spall := makeCutter(t, "spall-0", defect.TypeSpall, geom.FacePosX, 25,
		[][2]float64{{-100, -100}, {50, -100}, {50, 50}, {-100, 50}})
	rebar := makeCutter(t, "rebar-0", defect.TypeRebar, geom.FacePosX, 60,
		[][2]float64{{0, 0}, {120, 0}, {120, 120}, {0, 120}})

	res, err := e.Split(context.Background(), base, testEdge, geom.FacePosX, []*cutter.Cutter{spall, rebar})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(res.Patches) != 4 {
		t.Fatalf("patch count = %d, want 4", len(res.Patches))
	}

	overlap := patchByTags(res.Patches, "rebar-0", "spall-0")
	if overlap == nil {
		t.Fatal("no overlap patch")
	}
	// Overlap is the 50x50 square [0,50]x[0,50], cell-aligned.
	if math.Abs(overlap.Area-2500) > 1e-9 {
		t.Errorf("overlap area = %v, want 2500", overlap.Area)
	}
	if math.Abs(totalArea(res.Patches)-res.FaceArea) > 1e-9 {
		t.Errorf("areas sum to %v, want %v", totalArea(res.Patches), res.FaceArea)
	}

	// The overlap solid reaches only as deep as the shallower cut.
	// Face is +x, footprint point (25, 25) maps to world (x, 25, 25).
	if !k.Contains(overlap.Solid, 240, 25, 25, 0) {
		t.Error("shallow overlap interior missing")
	}
	if k.Contains(overlap.Solid, 200, 25, 25, 0) {
		t.Error("overlap solid extends past the shallow cut")
	}
}

func TestSplitOrderIndependent(t *testing.T) {
	e := testEngine()
	k := analytic.New()
	base := k.Box(testEdge, testEdge, testEdge)

	a := makeCutter(t, "a", defect.TypeSpall, geom.FaceNegY, 20,
		[][2]float64{{-80, -80}, {40, -80}, {40, 40}, {-80, 40}})
	b := makeCutter(t, "b", defect.TypeRebar, geom.FaceNegY, 50,
		[][2]float64{{-20, -20}, {100, -20}, {100, 100}, {-20, 100}})

	r1, err := e.Split(context.Background(), base, testEdge, geom.FaceNegY, []*cutter.Cutter{a, b})
	if err != nil {
		t.Fatalf("Split a,b failed: %v", err)
	}
	r2, err := e.Split(context.Background(), base, testEdge, geom.FaceNegY, []*cutter.Cutter{b, a})
	if err != nil {
		t.Fatalf("Split b,a failed: %v", err)
	}

	if len(r1.Patches) != len(r2.Patches) {
		t.Fatalf("patch counts differ: %d vs %d", len(r1.Patches), len(r2.Patches))
	}
	for i := range r1.Patches {
		p1, p2 := r1.Patches[i], r2.Patches[i]
		if len(p1.Tags) != len(p2.Tags) {
			t.Fatalf("patch %d tag counts differ", i)
		}
		for j := range p1.Tags {
			if p1.Tags[j] != p2.Tags[j] {
				t.Errorf("patch %d tags differ: %v vs %v", i, p1.Tags, p2.Tags)
			}
		}
		if math.Abs(p1.Area-p2.Area) > 1e-9 {
			t.Errorf("patch %d areas differ: %v vs %v", i, p1.Area, p2.Area)
		}
	}
}

func TestSplitRejectsForeignFaceCutter(t *testing.T) {
	e := testEngine()
	k := analytic.New()
	base := k.Box(testEdge, testEdge, testEdge)

	c := makeCutter(t, "c", defect.TypeSpall, geom.FacePosY, 10,
		[][2]float64{{0, 0}, {30, 0}, {30, 30}, {0, 30}})
	_, err := e.Split(context.Background(), base, testEdge, geom.FacePosZ, []*cutter.Cutter{c})
	if err == nil {
		t.Fatal("expected error for cutter on a different face")
	}
}

func TestSplitCancellation(t *testing.T) {
	e := testEngine()
	k := analytic.New()
	base := k.Box(testEdge, testEdge, testEdge)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Split(ctx, base, testEdge, geom.FacePosZ, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSplitFailureExhaustsRetries(t *testing.T) {
	e := testEngine()
	k := analytic.New()
	base := k.Box(testEdge, testEdge, testEdge)

	// A cutter whose solid does not match its footprint: the probe can
	// never find material inside the claimed patch.
	c := makeCutter(t, "bad", defect.TypeSpall, geom.FacePosZ, 30,
		[][2]float64{{-50, -50}, {50, -50}, {50, 50}, {-50, 50}})
	c.Solid = k.Translate(k.Box(1, 1, 1), 10*testEdge, 0, 0)

	_, err := e.Split(context.Background(), base, testEdge, geom.FacePosZ, []*cutter.Cutter{c})
	var fe *FailureError
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T, want *FailureError", err)
	}
	if fe.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", fe.Attempts)
	}
	if fe.Face != geom.FacePosZ {
		t.Errorf("face = %s, want +z", fe.Face)
	}
	// Tolerance was relaxed twice from the starting value.
	if math.Abs(fe.Tolerance-4e-3) > 1e-12 {
		t.Errorf("final tolerance = %v, want 4e-3", fe.Tolerance)
	}
}
