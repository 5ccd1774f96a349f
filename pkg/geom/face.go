package geom

import (
	"fmt"
	"strings"
)

// Face identifies one of the base cube's six logical faces.
type Face int

const (
	FacePosX Face = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

func (f Face) String() string {
	switch f {
	case FacePosX:
		return "+x"
	case FaceNegX:
		return "-x"
	case FacePosY:
		return "+y"
	case FaceNegY:
		return "-y"
	case FacePosZ:
		return "+z"
	case FaceNegZ:
		return "-z"
	default:
		return fmt.Sprintf("Face(%d)", int(f))
	}
}

// Faces returns all six faces in canonical processing order.
func Faces() []Face {
	return []Face{FacePosX, FaceNegX, FacePosY, FaceNegY, FacePosZ, FaceNegZ}
}

// faceAliases maps the accepted spellings to faces. The alias set matches
// the contour-map documents produced by the capture tooling.
var faceAliases = map[string]Face{
	"+x": FacePosX, "x+": FacePosX, "px": FacePosX, "posx": FacePosX,
	"-x": FaceNegX, "x-": FaceNegX, "nx": FaceNegX, "negx": FaceNegX,
	"+y": FacePosY, "y+": FacePosY, "py": FacePosY, "posy": FacePosY,
	"-y": FaceNegY, "y-": FaceNegY, "ny": FaceNegY, "negy": FaceNegY,
	"+z": FacePosZ, "z+": FacePosZ, "pz": FacePosZ, "posz": FacePosZ,
	"-z": FaceNegZ, "z-": FaceNegZ, "nz": FaceNegZ, "negz": FaceNegZ,
}

// ParseFace parses a face name. It accepts the canonical "+x" form and the
// aliases "x+", "px" and "posx" (case-insensitive), for all six faces.
func ParseFace(s string) (Face, error) {
	f, ok := faceAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown face %q: use +x, -x, +y, -y, +z or -z", s)
	}
	return f, nil
}

// MarshalText implements encoding.TextMarshaler so faces serialize as "+x"
// style strings in JSON and YAML documents.
func (f Face) MarshalText() ([]byte, error) {
	if f < FacePosX || f > FaceNegZ {
		return nil, fmt.Errorf("invalid face value %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Face) UnmarshalText(text []byte) error {
	parsed, err := ParseFace(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// faceBasis fixes, for each face, the in-plane axes (U, V), the outward
// normal N, and the Euler rotation (degrees, applied X then Y then Z) that
// maps local +X to U, +Y to V and +Z to N. Each triple is right-handed
// (U × V = N) so the same proper rotation places extruded profiles.
var faceBasis = [6]struct {
	u, v, n Vec3
	euler   Vec3
}{
	FacePosX: {u: Vec3{0, 1, 0}, v: Vec3{0, 0, 1}, n: Vec3{1, 0, 0}, euler: Vec3{90, 0, 90}},
	FaceNegX: {u: Vec3{0, -1, 0}, v: Vec3{0, 0, 1}, n: Vec3{-1, 0, 0}, euler: Vec3{90, 0, -90}},
	FacePosY: {u: Vec3{1, 0, 0}, v: Vec3{0, 0, -1}, n: Vec3{0, 1, 0}, euler: Vec3{-90, 0, 0}},
	FaceNegY: {u: Vec3{1, 0, 0}, v: Vec3{0, 0, 1}, n: Vec3{0, -1, 0}, euler: Vec3{90, 0, 0}},
	FacePosZ: {u: Vec3{1, 0, 0}, v: Vec3{0, 1, 0}, n: Vec3{0, 0, 1}, euler: Vec3{0, 0, 0}},
	FaceNegZ: {u: Vec3{1, 0, 0}, v: Vec3{0, -1, 0}, n: Vec3{0, 0, -1}, euler: Vec3{180, 0, 0}},
}

// Normal returns the outward unit normal of the face.
func (f Face) Normal() Vec3 { return faceBasis[f].n }

// Axes returns the fixed in-plane axes (U, V) and outward normal N.
func (f Face) Axes() (u, v, n Vec3) {
	b := faceBasis[f]
	return b.u, b.v, b.n
}

// Euler returns the rotation (degrees, X then Y then Z order) that maps
// local +X/+Y/+Z onto the face's U/V/N axes.
func (f Face) Euler() (x, y, z float64) {
	e := faceBasis[f].euler
	return e.X, e.Y, e.Z
}

// Frame is the fixed coordinate frame of a face on a cube with the given
// half-extent: origin at the face center, U/V in-plane, N outward.
type Frame struct {
	Origin Vec3
	U, V   Vec3
	Normal Vec3
}

// Frame returns the face frame for a cube of the given half-extent centered
// at the world origin.
func (f Face) Frame(halfExtent float64) Frame {
	b := faceBasis[f]
	return Frame{
		Origin: b.n.Scale(halfExtent),
		U:      b.u,
		V:      b.v,
		Normal: b.n,
	}
}

// ToWorld maps a face-local 2D point onto the face plane in world space.
func (fr Frame) ToWorld(p Vec2) Vec3 {
	return fr.Origin.Add(fr.U.Scale(p.X)).Add(fr.V.Scale(p.Y))
}
