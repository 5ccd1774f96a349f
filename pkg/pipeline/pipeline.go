// Package pipeline runs the full defect synthesis sequence: normalize
// the defect document, build contours and cutters, split every cube
// face into patches, classify the patches, and bind them to layers and
// materials. Faces are isolated from each other: a bad contour or a
// non-converging split fails its own face and the run carries on.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"defectsynth/pkg/classify"
	"defectsynth/pkg/config"
	"defectsynth/pkg/contour"
	"defectsynth/pkg/cutter"
	"defectsynth/pkg/defect"
	"defectsynth/pkg/geom"
	"defectsynth/pkg/kernel"
	"defectsynth/pkg/layers"
	"defectsynth/pkg/split"
)

// FaceFailure records a face that produced no patches.
type FaceFailure struct {
	Face geom.Face
	Err  error
}

// PatchFailure records a patch that could not be classified or bound.
type PatchFailure struct {
	PatchID string
	Err     error
}

// Binding records the layer and material a patch ended up on.
type Binding struct {
	PatchID  string
	Layer    layers.LayerHandle
	Material layers.MaterialHandle
}

// AnnotatedSolid is the result of one run: the base solid, every patch
// that was produced, its classification, and its document binding.
// Failed faces and patches are listed rather than silently dropped.
type AnnotatedSolid struct {
	RunID         string
	Edge          float64
	Base          kernel.Solid
	Patches       []*split.Patch
	Labels        map[string]classify.Label
	Bindings      []Binding
	FaceFailures  []FaceFailure
	PatchFailures []PatchFailure
}

// Pipeline wires the synthesis stages together over one kernel and one
// layer document.
type Pipeline struct {
	kernel   kernel.Kernel
	cfg      config.Config
	log      *zap.Logger
	importer layers.MaterialImporter
	registry layers.Registry

	contours *contour.Builder
	cutters  *cutter.Factory
	splitter *split.Engine
}

// New assembles a pipeline. A nil logger disables logging.
func New(k kernel.Kernel, cfg config.Config, log *zap.Logger, importer layers.MaterialImporter, registry layers.Registry) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		kernel:   k,
		cfg:      cfg,
		log:      log,
		importer: importer,
		registry: registry,
		contours: contour.NewBuilder(cfg.BaseEdge, cfg.MinArea(), cfg.EpsGeom),
		cutters:  cutter.NewFactory(k, cfg.BaseEdge, cfg.OvershootFrac, cfg.MinOvershoot, cfg.EpsGeom),
		splitter: split.NewEngine(k, cfg.SampleGrid, cfg.EpsGeom, cfg.RelaxFactor, cfg.MaxSplitAttempts),
	}
}

// Run executes the pipeline for one defect document against the given
// base solid; a nil base means a default cube of the configured edge,
// centered at the origin. The returned AnnotatedSolid is partial but
// valid when ctx is cancelled mid-run or individual faces fail; the
// error is non-nil only for cancellation or a document-level problem.
func (p *Pipeline) Run(ctx context.Context, base kernel.Solid, doc *defect.Document, colors *classify.ColorMap) (*AnnotatedSolid, error) {
	runID := uuid.NewString()
	log := p.log.With(zap.String("run", runID))

	doc = doc.Normalized(p.cfg.BaseEdge)
	log.Info("run started",
		zap.Int("defects", len(doc.Defects)),
		zap.Float64("edge", p.cfg.BaseEdge))

	if base == nil {
		base = p.kernel.Box(p.cfg.BaseEdge, p.cfg.BaseEdge, p.cfg.BaseEdge)
	}
	out := &AnnotatedSolid{
		RunID:  runID,
		Edge:   p.cfg.BaseEdge,
		Base:   base,
		Labels: make(map[string]classify.Label),
	}

	cutters, failedFaces := p.buildCutters(ctx, doc, log)
	if err := ctx.Err(); err != nil {
		return out, err
	}

	for _, face := range geom.Faces() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if ferr, ok := failedFaces[face]; ok {
			out.FaceFailures = append(out.FaceFailures, FaceFailure{Face: face, Err: ferr})
			log.Warn("face skipped", zap.String("face", face.String()), zap.Error(ferr))
			continue
		}
		res, err := p.splitter.Split(ctx, out.Base, p.cfg.BaseEdge, face, cutters[face])
		if err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			out.FaceFailures = append(out.FaceFailures, FaceFailure{Face: face, Err: err})
			log.Warn("face split failed", zap.String("face", face.String()), zap.Error(err))
			continue
		}
		out.Patches = append(out.Patches, res.Patches...)
		log.Info("face split",
			zap.String("face", face.String()),
			zap.Int("patches", len(res.Patches)),
			zap.Int("attempts", res.Attempts),
			zap.Float64("tolerance", res.Tolerance))
	}

	p.classifyAndBind(doc, colors, out, log)

	log.Info("run finished",
		zap.Int("patches", len(out.Patches)),
		zap.Int("bindings", len(out.Bindings)),
		zap.Int("face_failures", len(out.FaceFailures)),
		zap.Int("patch_failures", len(out.PatchFailures)))
	return out, nil
}

// buildCutters constructs every defect's contour and cutter, bounded by
// the configured worker count. A failed defect poisons its whole face.
func (p *Pipeline) buildCutters(ctx context.Context, doc *defect.Document, log *zap.Logger) (map[geom.Face][]*cutter.Cutter, map[geom.Face]error) {
	specs := doc.Defects
	built := make([]*cutter.Cutter, len(specs))
	errs := make([]error, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.WorkerCount())
	for i := range specs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s := specs[i]
			curve, err := p.contours.Build(s.ID, s.Face, s.Contour)
			if err != nil {
				errs[i] = err
				return nil
			}
			c, err := p.cutters.Make(s, curve)
			if err != nil {
				errs[i] = err
				return nil
			}
			built[i] = c
			return nil
		})
	}
	// Per-defect failures are collected, not returned, so the only group
	// error is cancellation; the caller checks ctx itself.
	_ = g.Wait()

	cutters := make(map[geom.Face][]*cutter.Cutter)
	failed := make(map[geom.Face]error)
	for i, s := range specs {
		if errs[i] != nil {
			if _, ok := failed[s.Face]; !ok {
				failed[s.Face] = errs[i]
			}
			log.Warn("defect rejected", zap.String("defect", s.ID), zap.Error(errs[i]))
			continue
		}
		if built[i] != nil {
			cutters[s.Face] = append(cutters[s.Face], built[i])
		}
	}
	return cutters, failed
}

// classifyAndBind labels every patch, then materializes the layer
// bindings. Registry mutation starts only after every patch has been
// through classification, so a classification miss never leaves the
// layer table half-built for the patches that follow it.
func (p *Pipeline) classifyAndBind(doc *defect.Document, colors *classify.ColorMap, out *AnnotatedSolid, log *zap.Logger) {
	cls := classify.NewClassifier(colors, doc.Defects, doc.DeclarationRank())
	for _, patch := range out.Patches {
		label, err := cls.Classify(patch)
		if err != nil {
			out.PatchFailures = append(out.PatchFailures, PatchFailure{PatchID: patch.ID, Err: err})
			log.Warn("patch unclassified", zap.String("patch", patch.ID), zap.Error(err))
			continue
		}
		out.Labels[patch.ID] = label
	}
	p.bindPatches(out)
}

// bindPatches assigns every classified patch to its layer and material.
// Materials import once per key.
func (p *Pipeline) bindPatches(out *AnnotatedSolid) {
	mats := make(map[string]layers.MaterialHandle)

	for _, patch := range out.Patches {
		label, ok := out.Labels[patch.ID]
		if !ok {
			continue
		}

		layer, err := p.registry.EnsureLayer(label.Layer, label.Color)
		if err != nil {
			out.PatchFailures = append(out.PatchFailures, PatchFailure{PatchID: patch.ID, Err: err})
			continue
		}
		var mat layers.MaterialHandle
		if label.Material != "" {
			m, ok := mats[label.Material]
			if !ok {
				m, err = p.importer.EnsureMaterial(label.Material)
				if err != nil {
					out.PatchFailures = append(out.PatchFailures, PatchFailure{PatchID: patch.ID, Err: err})
					continue
				}
				mats[label.Material] = m
			}
			mat = m
			if err := p.registry.SetLayerMaterial(layer, mat); err != nil {
				out.PatchFailures = append(out.PatchFailures, PatchFailure{PatchID: patch.ID, Err: err})
				continue
			}
		}
		if err := p.registry.Assign(patch.ID, layer); err != nil {
			out.PatchFailures = append(out.PatchFailures, PatchFailure{PatchID: patch.ID, Err: err})
			continue
		}
		out.Bindings = append(out.Bindings, Binding{PatchID: patch.ID, Layer: layer, Material: mat})
	}
}

// ExportMeshes triangulates every patch solid. Mesh part names follow
// the patch's layer so downstream tooling can keep the grouping.
func (p *Pipeline) ExportMeshes(a *AnnotatedSolid) ([]*kernel.Mesh, error) {
	meshes := make([]*kernel.Mesh, 0, len(a.Patches))
	for _, patch := range a.Patches {
		m, err := p.kernel.ToMesh(patch.Solid)
		if err != nil {
			return nil, fmt.Errorf("mesh patch %s: %w", patch.ID, err)
		}
		if label, ok := a.Labels[patch.ID]; ok {
			m.PartName = fmt.Sprintf("%s/%s", label.Layer, patch.ID)
		} else {
			m.PartName = patch.ID
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}

// Summary returns per-layer patch counts sorted by layer name, for
// report output.
func (a *AnnotatedSolid) Summary() []LayerCount {
	counts := make(map[string]int)
	for _, label := range a.Labels {
		counts[label.Layer]++
	}
	out := make([]LayerCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, LayerCount{Layer: name, Patches: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Layer < out[j].Layer })
	return out
}

// LayerCount is one row of the run summary.
type LayerCount struct {
	Layer   string `json:"layer"`
	Patches int    `json:"patches"`
}
