// Package layers models the document-side binding of patches to layers
// and materials: named layers carry a display color and an optional
// render material, and every classified patch is assigned to exactly one
// layer. The in-memory Document implementation mirrors the semantics of
// a CAD document layer table, with idempotent create-or-get operations.
package layers

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// RGB is a display color. It marshals as a [r, g, b] JSON array to match
// the color map file format.
type RGB struct {
	R, G, B uint8
}

// MarshalJSON implements json.Marshaler.
func (c RGB) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d,%d]", c.R, c.G, c.B)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *RGB) UnmarshalJSON(data []byte) error {
	var arr [3]int
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("color must be a [r,g,b] array: %w", err)
	}
	for _, v := range arr {
		if v < 0 || v > 255 {
			return fmt.Errorf("color component %d out of range [0,255]", v)
		}
	}
	c.R, c.G, c.B = uint8(arr[0]), uint8(arr[1]), uint8(arr[2])
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler via the same array form.
func (c *RGB) UnmarshalYAML(unmarshal func(any) error) error {
	var arr [3]int
	if err := unmarshal(&arr); err != nil {
		return fmt.Errorf("color must be a [r,g,b] array: %w", err)
	}
	for _, v := range arr {
		if v < 0 || v > 255 {
			return fmt.Errorf("color component %d out of range [0,255]", v)
		}
	}
	c.R, c.G, c.B = uint8(arr[0]), uint8(arr[1]), uint8(arr[2])
	return nil
}

// MarshalYAML emits the same [r, g, b] array form.
func (c RGB) MarshalYAML() (any, error) {
	return []int{int(c.R), int(c.G), int(c.B)}, nil
}

func (c RGB) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B)
}

// MaterialHandle identifies an imported render material.
type MaterialHandle string

// LayerHandle identifies a document layer.
type LayerHandle string

// MaterialImporter resolves material keys (library paths such as
// "/Concrete Weathered 300cm") to document material handles. Importing
// the same key twice returns the same handle.
type MaterialImporter interface {
	EnsureMaterial(key string) (MaterialHandle, error)
}

// Layer is a snapshot of one layer's state.
type Layer struct {
	Name     string
	Color    RGB
	Material MaterialHandle
	Patches  []string
}

// Registry is the layer table. All operations are idempotent where the
// document model allows; Assign moves a patch if it was already on
// another layer.
type Registry interface {
	// EnsureLayer returns the layer with the given name, creating it
	// with the given color when absent. An existing layer keeps its
	// original color.
	EnsureLayer(name string, color RGB) (LayerHandle, error)

	// SetLayerMaterial binds a material to a layer.
	SetLayerMaterial(layer LayerHandle, mat MaterialHandle) error

	// Assign puts a patch on a layer.
	Assign(patchID string, layer LayerHandle) error

	// DeleteLayer removes a layer and its patch assignments.
	DeleteLayer(layer LayerHandle) error

	// Reset drops all layers and assignments.
	Reset()

	// Layers returns snapshots of all layers, sorted by name.
	Layers() []Layer
}

// Document is the in-memory Registry and MaterialImporter implementation.
type Document struct {
	mu        sync.Mutex
	layers    map[LayerHandle]*layerState
	patches   map[string]LayerHandle
	materials map[string]MaterialHandle
}

type layerState struct {
	name     string
	color    RGB
	material MaterialHandle
}

// Compile-time interface checks.
var (
	_ Registry         = (*Document)(nil)
	_ MaterialImporter = (*Document)(nil)
)

// NewDocument returns an empty layer document.
func NewDocument() *Document {
	return &Document{
		layers:    make(map[LayerHandle]*layerState),
		patches:   make(map[string]LayerHandle),
		materials: make(map[string]MaterialHandle),
	}
}

// EnsureMaterial implements MaterialImporter. Handles are derived from
// the key, so re-importing is a no-op.
func (d *Document) EnsureMaterial(key string) (MaterialHandle, error) {
	if key == "" {
		return "", fmt.Errorf("empty material key")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if h, ok := d.materials[key]; ok {
		return h, nil
	}
	h := MaterialHandle("mat:" + key)
	d.materials[key] = h
	return h, nil
}

func (d *Document) EnsureLayer(name string, color RGB) (LayerHandle, error) {
	if name == "" {
		return "", fmt.Errorf("empty layer name")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := LayerHandle(name)
	if _, ok := d.layers[h]; !ok {
		d.layers[h] = &layerState{name: name, color: color}
	}
	return h, nil
}

func (d *Document) SetLayerMaterial(layer LayerHandle, mat MaterialHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.layers[layer]
	if !ok {
		return fmt.Errorf("unknown layer %q", layer)
	}
	st.material = mat
	return nil
}

func (d *Document) Assign(patchID string, layer LayerHandle) error {
	if patchID == "" {
		return fmt.Errorf("empty patch id")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.layers[layer]; !ok {
		return fmt.Errorf("unknown layer %q", layer)
	}
	d.patches[patchID] = layer
	return nil
}

func (d *Document) DeleteLayer(layer LayerHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.layers[layer]; !ok {
		return fmt.Errorf("unknown layer %q", layer)
	}
	delete(d.layers, layer)
	for id, l := range d.patches {
		if l == layer {
			delete(d.patches, id)
		}
	}
	return nil
}

func (d *Document) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layers = make(map[LayerHandle]*layerState)
	d.patches = make(map[string]LayerHandle)
}

func (d *Document) Layers() []Layer {
	d.mu.Lock()
	defer d.mu.Unlock()

	byHandle := make(map[LayerHandle]*Layer, len(d.layers))
	out := make([]Layer, 0, len(d.layers))
	for h, st := range d.layers {
		out = append(out, Layer{Name: st.name, Color: st.color, Material: st.material})
		byHandle[h] = &out[len(out)-1]
	}
	for id, h := range d.patches {
		if l, ok := byHandle[h]; ok {
			l.Patches = append(l.Patches, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	for i := range out {
		sort.Strings(out[i].Patches)
	}
	return out
}
