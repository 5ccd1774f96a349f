// Package split partitions the base cube into patches along one face:
// for every combination of overlapping defect cutters the face exhibits,
// it produces one patch solid plus its exact share of the face area.
//
// Membership is decided in 2D by sampling the face on a regular grid
// against the cutter footprints, which makes the per-face area accounting
// an exact partition by construction. The 3D patch solids are then built
// by sequential boolean intersection/difference against the same cutter
// set, and each one is validated by probing an interior witness point.
// A failed probe means the booleans did not converge at the current
// tolerance, and the whole face is retried with a relaxed tolerance.
package split

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"defectsynth/pkg/cutter"
	"defectsynth/pkg/geom"
	"defectsynth/pkg/kernel"
)

// Patch is one region of a face partition: the sub-solid of the base
// carved out by a particular set of cutters, or left untouched by all
// of them when Tags is empty.
type Patch struct {
	ID      string
	Face    geom.Face
	Tags    []string // sorted IDs of the defects covering this patch
	Solid   kernel.Solid
	Area    float64 // face area share, mm^2
	Samples int     // grid samples that landed in this patch
}

// Base reports whether the patch is undisturbed base material.
func (p *Patch) Base() bool { return len(p.Tags) == 0 }

// Result is the partition of one face.
type Result struct {
	Face      geom.Face
	Patches   []*Patch
	FaceArea  float64
	Tolerance float64 // probe tolerance the partition converged at
	Attempts  int
}

// FailureError reports a face whose partition never converged within the
// retry budget.
type FailureError struct {
	Face      geom.Face
	Attempts  int
	Tolerance float64
	PatchKey  string
	Reason    string
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("split failed on face %s after %d attempts (tolerance %.6g): patch %q: %s",
		e.Face, e.Attempts, e.Tolerance, e.PatchKey, e.Reason)
}

// Engine splits base solids face by face.
type Engine struct {
	kernel      kernel.Kernel
	grid        int
	epsGeom     float64
	relaxFactor float64
	maxAttempts int
}

// NewEngine returns a split engine. grid is the per-axis sampling
// resolution; epsGeom seeds the probe tolerance, relaxed by relaxFactor
// on each of up to maxAttempts attempts.
func NewEngine(k kernel.Kernel, grid int, epsGeom, relaxFactor float64, maxAttempts int) *Engine {
	return &Engine{
		kernel:      k,
		grid:        grid,
		epsGeom:     epsGeom,
		relaxFactor: relaxFactor,
		maxAttempts: maxAttempts,
	}
}

// region accumulates the grid samples sharing one cutter membership set.
type region struct {
	key     string
	tags    []string
	samples []geom.Vec2
	sumU    float64
	sumV    float64
}

// Split partitions one face of the base solid. cutters must all belong
// to the given face; a face with no cutters yields a single base patch
// covering the whole face.
func (e *Engine) Split(ctx context.Context, base kernel.Solid, edge float64, face geom.Face, cutters []*cutter.Cutter) (*Result, error) {
	for _, c := range cutters {
		if c.Face != face {
			return nil, fmt.Errorf("cutter %q is on face %s, not %s", c.ID, c.Face, face)
		}
	}

	regions, cellArea, err := e.sampleFace(ctx, edge, face, cutters)
	if err != nil {
		return nil, err
	}

	var (
		result *Result
		tol    = e.epsGeom
	)
	attempts := 0
	backoff := retry.WithMaxRetries(uint64(e.maxAttempts-1), retry.NewConstant(time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		r, perr := e.buildPatches(ctx, base, edge, face, cutters, regions, cellArea, tol)
		if perr != nil {
			if ctx.Err() != nil {
				return perr
			}
			tol *= e.relaxFactor
			return retry.RetryableError(perr)
		}
		result = r
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &FailureError{
			Face:      face,
			Attempts:  attempts,
			Tolerance: tol / e.relaxFactor,
			PatchKey:  failedKey(err),
			Reason:    "interior probe found no material",
		}
	}
	result.Attempts = attempts
	return result, nil
}

// sampleFace classifies every grid cell center against the cutter
// footprints and groups cells by membership key.
func (e *Engine) sampleFace(ctx context.Context, edge float64, face geom.Face, cutters []*cutter.Cutter) (map[string]*region, float64, error) {
	half := edge / 2
	cell := edge / float64(e.grid)
	cellArea := cell * cell

	regions := make(map[string]*region)
	tags := make([]string, 0, len(cutters))

	for i := 0; i < e.grid; i++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		u := -half + (float64(i)+0.5)*cell
		for j := 0; j < e.grid; j++ {
			v := -half + (float64(j)+0.5)*cell
			p := geom.Vec2{X: u, Y: v}

			tags = tags[:0]
			for _, c := range cutters {
				if c.ContainsFootprint(p) {
					tags = append(tags, c.ID)
				}
			}
			key := strings.Join(tags, "|")
			r, ok := regions[key]
			if !ok {
				r = &region{key: key, tags: append([]string(nil), tags...)}
				sort.Strings(r.tags)
				regions[key] = r
			}
			r.samples = append(r.samples, p)
			r.sumU += p.X
			r.sumV += p.Y
		}
	}
	return regions, cellArea, nil
}

// buildPatches constructs and validates the 3D solid for every sampled
// region at the given probe tolerance.
func (e *Engine) buildPatches(ctx context.Context, base kernel.Solid, edge float64, face geom.Face, cutters []*cutter.Cutter, regions map[string]*region, cellArea, tol float64) (*Result, error) {
	keys := make([]string, 0, len(regions))
	for k := range regions {
		keys = append(keys, k)
	}
	// Deterministic patch order: base first, then fewer tags before
	// more, ties broken lexically.
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := regions[keys[i]], regions[keys[j]]
		if len(ri.tags) != len(rj.tags) {
			return len(ri.tags) < len(rj.tags)
		}
		return keys[i] < keys[j]
	})

	frame := face.Frame(edge / 2)
	patches := make([]*Patch, 0, len(keys))

	for idx, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := regions[key]
		member := make(map[string]bool, len(r.tags))
		for _, t := range r.tags {
			member[t] = true
		}

		solid := base
		for _, c := range cutters {
			if member[c.ID] {
				solid = e.kernel.Intersection(solid, c.Solid)
			} else {
				solid = e.kernel.Difference(solid, c.Solid)
			}
		}

		witness := witnessPoint(r)
		depth := probeDepth(edge, r.tags, cutters)
		p3 := frame.ToWorld(witness).Sub(frame.Normal.Scale(depth))
		if !e.kernel.Contains(solid, p3.X, p3.Y, p3.Z, tol) {
			return nil, &probeError{key: key}
		}

		patches = append(patches, &Patch{
			ID:      fmt.Sprintf("%s/patch-%02d", face, idx),
			Face:    face,
			Tags:    r.tags,
			Solid:   solid,
			Area:    float64(len(r.samples)) * cellArea,
			Samples: len(r.samples),
		})
	}

	return &Result{
		Face:      face,
		Patches:   patches,
		FaceArea:  edge * edge,
		Tolerance: tol,
	}, nil
}

// witnessPoint picks the region sample closest to the region centroid,
// which keeps the probe away from membership boundaries for convex
// regions and is still a guaranteed member for concave ones.
func witnessPoint(r *region) geom.Vec2 {
	n := float64(len(r.samples))
	centroid := geom.Vec2{X: r.sumU / n, Y: r.sumV / n}
	best := r.samples[0]
	bestD := best.Sub(centroid).Length()
	for _, s := range r.samples[1:] {
		if d := s.Sub(centroid).Length(); d < bestD {
			best, bestD = s, d
		}
	}
	return best
}

// probeDepth returns how far below the face plane to probe: half the
// shallowest covering cut, so the point sits inside every member cutter,
// or a quarter of the edge for undisturbed base material.
func probeDepth(edge float64, tags []string, cutters []*cutter.Cutter) float64 {
	if len(tags) == 0 {
		return edge / 4
	}
	member := make(map[string]bool, len(tags))
	for _, t := range tags {
		member[t] = true
	}
	min := edge
	for _, c := range cutters {
		if member[c.ID] && c.Depth < min {
			min = c.Depth
		}
	}
	return min / 2
}

type probeError struct {
	key string
}

func (e *probeError) Error() string {
	return fmt.Sprintf("patch %q: interior probe found no material", e.key)
}

func failedKey(err error) string {
	var pe *probeError
	if errors.As(err, &pe) {
		return pe.key
	}
	return ""
}
