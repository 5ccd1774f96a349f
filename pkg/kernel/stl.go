package kernel

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteSTL writes the meshes to w as a single binary STL body. The STL
// format carries per-facet normals only, so vertex normals beyond the
// first of each triangle are dropped.
func WriteSTL(w io.Writer, meshes ...*Mesh) error {
	var header [80]byte
	copy(header[:], "defectsynth")
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write stl header: %w", err)
	}

	total := 0
	for _, m := range meshes {
		total += m.TriangleCount()
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(total)); err != nil {
		return fmt.Errorf("write stl facet count: %w", err)
	}

	for _, m := range meshes {
		for t := 0; t < m.TriangleCount(); t++ {
			var facet [12]float32
			i0 := m.Indices[t*3]
			// Per-facet normal: take the first vertex's normal.
			if len(m.Normals) >= int(i0)*3+3 {
				copy(facet[0:3], m.Normals[i0*3:i0*3+3])
			}
			for v := 0; v < 3; v++ {
				idx := m.Indices[t*3+v]
				copy(facet[3+v*3:6+v*3], m.Vertices[idx*3:idx*3+3])
			}
			if err := binary.Write(w, binary.LittleEndian, facet); err != nil {
				return fmt.Errorf("write stl facet: %w", err)
			}
			// Attribute byte count, always zero.
			if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
				return fmt.Errorf("write stl facet attributes: %w", err)
			}
		}
	}
	return nil
}
