// Package config holds the tunable parameters of the synthesis engine:
// cube size, geometric tolerances, split retry policy, and meshing
// resolution. Values load from YAML with sensible Rhino-compatible
// defaults for anything left unset.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration. Lengths are millimetres.
type Config struct {
	// BaseEdge is the edge length of the base cube.
	BaseEdge float64 `yaml:"base_edge"`

	// EpsGeom is the coordinate comparison tolerance. It doubles as the
	// starting surface tolerance for split witness probes.
	EpsGeom float64 `yaml:"eps_geom"`

	// EpsArea is the minimum usable contour area. Zero means derive it
	// from EpsGeom and BaseEdge.
	EpsArea float64 `yaml:"eps_area"`

	// OvershootFrac sizes the cutter margin as a fraction of BaseEdge.
	OvershootFrac float64 `yaml:"overshoot_frac"`

	// MinOvershoot is the absolute floor for the cutter margin.
	MinOvershoot float64 `yaml:"min_overshoot"`

	// RelaxFactor multiplies the probe tolerance between split attempts.
	RelaxFactor float64 `yaml:"relax_factor"`

	// MaxSplitAttempts bounds tolerance relaxation retries per face.
	MaxSplitAttempts int `yaml:"max_split_attempts"`

	// SampleGrid is the per-axis footprint sampling resolution.
	SampleGrid int `yaml:"sample_grid"`

	// Workers bounds concurrent cutter construction. Zero means NumCPU.
	Workers int `yaml:"workers"`

	// MeshCells is the marching cubes resolution for mesh output.
	MeshCells int `yaml:"mesh_cells"`
}

// Default returns the configuration used when nothing is specified: a
// 500mm cube with millimetre-scale tolerances.
func Default() Config {
	return Config{
		BaseEdge:         500,
		EpsGeom:          1e-3,
		OvershootFrac:    0.01,
		MinOvershoot:     1.0,
		RelaxFactor:      2,
		MaxSplitAttempts: 3,
		SampleGrid:       200,
		MeshCells:        200,
	}
}

// Load reads a YAML config file, filling unset fields from Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a meaningful run.
func (c Config) Validate() error {
	switch {
	case c.BaseEdge <= 0:
		return fmt.Errorf("base_edge %.6g must be positive", c.BaseEdge)
	case c.EpsGeom <= 0:
		return fmt.Errorf("eps_geom %.6g must be positive", c.EpsGeom)
	case c.EpsArea < 0:
		return fmt.Errorf("eps_area %.6g must not be negative", c.EpsArea)
	case c.OvershootFrac < 0:
		return fmt.Errorf("overshoot_frac %.6g must not be negative", c.OvershootFrac)
	case c.RelaxFactor <= 1:
		return fmt.Errorf("relax_factor %.6g must exceed 1", c.RelaxFactor)
	case c.MaxSplitAttempts < 1:
		return fmt.Errorf("max_split_attempts %d must be at least 1", c.MaxSplitAttempts)
	case c.SampleGrid < 2:
		return fmt.Errorf("sample_grid %d must be at least 2", c.SampleGrid)
	case c.Workers < 0:
		return fmt.Errorf("workers %d must not be negative", c.Workers)
	case c.MeshCells < 1:
		return fmt.Errorf("mesh_cells %d must be at least 1", c.MeshCells)
	}
	return nil
}

// MinArea returns the effective contour area floor: EpsArea if set,
// otherwise (EpsGeom * BaseEdge)^2 scaled to stay well above float noise.
func (c Config) MinArea() float64 {
	if c.EpsArea > 0 {
		return c.EpsArea
	}
	d := c.EpsGeom * c.BaseEdge
	return d * d
}

// WorkerCount resolves the cutter construction parallelism.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
