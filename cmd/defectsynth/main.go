package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"defectsynth/pkg/classify"
	"defectsynth/pkg/config"
	"defectsynth/pkg/defect"
	"defectsynth/pkg/kernel"
	"defectsynth/pkg/kernel/sdfx"
	"defectsynth/pkg/layers"
	"defectsynth/pkg/pipeline"
)

var version = "dev"

var (
	// Global flags
	verbose    bool
	configPath string

	// run flags
	defectsPath string
	colorsPath  string
	reportPath  string
	stlPath     string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "defectsynth",
	Short: "Parametric surface defect synthesis for concrete test specimens",
	Long: `defectsynth carves declared surface defects (spalls, exposed rebar,
efflorescence, cracks) into a base cube, splits each face into patches
along the defect boundaries, and binds every patch to a layer and render
material.

Input is a JSON defect document plus a color map; output is a run report
and optionally an STL of the patch solids.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg = zap.NewDevelopmentConfig()
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the synthesis pipeline on a defect document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		doc, err := defect.LoadDocument(defectsPath)
		if err != nil {
			return err
		}
		colors, err := classify.LoadColorMap(colorsPath)
		if err != nil {
			return err
		}

		layerDoc := layers.NewDocument()
		p := pipeline.New(sdfx.NewWithResolution(cfg.MeshCells), cfg, logger, layerDoc, layerDoc)

		out, err := p.Run(ctx, nil, doc, colors)
		if err != nil {
			return err
		}

		if stlPath != "" {
			if err := writeSTL(p, out, stlPath); err != nil {
				return err
			}
			logger.Info("stl written", zap.String("path", stlPath))
		}
		if err := writeReport(out, layerDoc, reportPath); err != nil {
			return err
		}

		if n := len(out.FaceFailures) + len(out.PatchFailures); n > 0 {
			return fmt.Errorf("run completed with %d failures", n)
		}
		return nil
	},
}

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "Run the pipeline and print the resulting layer table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		doc, err := defect.LoadDocument(defectsPath)
		if err != nil {
			return err
		}
		colors, err := classify.LoadColorMap(colorsPath)
		if err != nil {
			return err
		}

		layerDoc := layers.NewDocument()
		p := pipeline.New(sdfx.NewWithResolution(cfg.MeshCells), cfg, logger, layerDoc, layerDoc)
		if _, err := p.Run(ctx, nil, doc, colors); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LAYER\tCOLOR\tMATERIAL\tPATCHES")
		for _, l := range layerDoc.Layers() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", l.Name, l.Color, l.Material, len(l.Patches))
		}
		return w.Flush()
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a defect document and color map without building geometry",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := defect.LoadDocument(defectsPath)
		if err != nil {
			return err
		}
		if colorsPath != "" {
			if _, err := classify.LoadColorMap(colorsPath); err != nil {
				return err
			}
		}
		fmt.Printf("ok: %d defects\n", len(doc.Defects))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("defectsynth", version)
	},
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// report is the JSON run summary written by the run command.
type report struct {
	RunID         string                `json:"run_id"`
	Edge          float64               `json:"edge_mm"`
	Patches       []reportPatch         `json:"patches"`
	Summary       []pipeline.LayerCount `json:"summary"`
	Layers        []reportLayer         `json:"layers"`
	FaceFailures  []string              `json:"face_failures,omitempty"`
	PatchFailures []string              `json:"patch_failures,omitempty"`
}

type reportPatch struct {
	ID    string     `json:"id"`
	Face  string     `json:"face"`
	Tags  []string   `json:"tags,omitempty"`
	Area  float64    `json:"area_mm2"`
	Type  string     `json:"type,omitempty"`
	Layer string     `json:"layer,omitempty"`
	Color layers.RGB `json:"color"`
}

type reportLayer struct {
	Name     string   `json:"name"`
	Material string   `json:"material,omitempty"`
	Patches  []string `json:"patches"`
}

func writeReport(out *pipeline.AnnotatedSolid, reg *layers.Document, path string) error {
	r := report{
		RunID:   out.RunID,
		Edge:    out.Edge,
		Summary: out.Summary(),
	}
	for _, patch := range out.Patches {
		rp := reportPatch{
			ID:   patch.ID,
			Face: patch.Face.String(),
			Tags: patch.Tags,
			Area: patch.Area,
		}
		if label, ok := out.Labels[patch.ID]; ok {
			rp.Type = label.Type.String()
			rp.Layer = label.Layer
			rp.Color = label.Color
		}
		r.Patches = append(r.Patches, rp)
	}
	for _, l := range reg.Layers() {
		r.Layers = append(r.Layers, reportLayer{
			Name:     l.Name,
			Material: string(l.Material),
			Patches:  l.Patches,
		})
	}
	for _, f := range out.FaceFailures {
		r.FaceFailures = append(r.FaceFailures, fmt.Sprintf("%s: %v", f.Face, f.Err))
	}
	for _, f := range out.PatchFailures {
		r.PatchFailures = append(r.PatchFailures, fmt.Sprintf("%s: %v", f.PatchID, f.Err))
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeSTL(p *pipeline.Pipeline, out *pipeline.AnnotatedSolid, path string) error {
	meshes, err := p.ExportMeshes(out)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stl: %w", err)
	}
	if err := kernel.WriteSTL(f, meshes...); err != nil {
		f.Close()
		return fmt.Errorf("write stl: %w", err)
	}
	return f.Close()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "engine config file (YAML)")

	runCmd.Flags().StringVar(&defectsPath, "defects", "", "defect document (JSON)")
	runCmd.Flags().StringVar(&colorsPath, "colors", "", "color map (JSON or YAML)")
	runCmd.Flags().StringVarP(&reportPath, "out", "o", "", "report output path (default stdout)")
	runCmd.Flags().StringVar(&stlPath, "stl", "", "write patch solids as binary STL")
	_ = runCmd.MarkFlagRequired("defects")
	_ = runCmd.MarkFlagRequired("colors")

	layersCmd.Flags().StringVar(&defectsPath, "defects", "", "defect document (JSON)")
	layersCmd.Flags().StringVar(&colorsPath, "colors", "", "color map (JSON or YAML)")
	_ = layersCmd.MarkFlagRequired("defects")
	_ = layersCmd.MarkFlagRequired("colors")

	validateCmd.Flags().StringVar(&defectsPath, "defects", "", "defect document (JSON)")
	validateCmd.Flags().StringVar(&colorsPath, "colors", "", "color map (JSON or YAML)")
	_ = validateCmd.MarkFlagRequired("defects")

	rootCmd.AddCommand(runCmd, layersCmd, validateCmd, versionCmd)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
