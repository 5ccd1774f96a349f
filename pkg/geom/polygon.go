package geom

import "math"

// SignedArea returns the signed area of the polygon (shoelace formula).
// Positive for counter-clockwise winding.
func SignedArea(pts []Vec2) float64 {
	if len(pts) < 3 {
		return 0
	}
	sum := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].Cross(pts[j])
	}
	return sum / 2
}

// Bounds returns the axis-aligned bounding box of the points.
func Bounds(pts []Vec2) (min, max Vec2) {
	min = Vec2{math.Inf(1), math.Inf(1)}
	max = Vec2{math.Inf(-1), math.Inf(-1)}
	for _, p := range pts {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
	}
	return min, max
}

// Contains reports whether p lies inside the closed polygon, using
// ray casting. Points exactly on an edge may land on either side.
func Contains(pts []Vec2, p Vec2) bool {
	inside := false
	n := len(pts)
	for i := 0; i < n; i++ {
		a := pts[i]
		b := pts[(i+1)%n]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// IsSimple reports whether the closed polygon is simple: no two
// non-adjacent edges intersect, and adjacent edges meet only at their
// shared vertex. Uses the pairwise segment test; contour point counts are
// small enough that the quadratic cost is irrelevant.
func IsSimple(pts []Vec2) bool {
	n := len(pts)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		a1 := pts[i]
		a2 := pts[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip the edge itself and the two edges sharing a vertex
			// with it (i,i+1) vs (j,j+1).
			if j == i || (j+1)%n == i || (i+1)%n == j {
				continue
			}
			b1 := pts[j]
			b2 := pts[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return false
			}
		}
	}
	return true
}

// segmentsIntersect reports whether the closed segments [a1,a2] and
// [b1,b2] share any point, including collinear overlap.
func segmentsIntersect(a1, a2, b1, b2 Vec2) bool {
	d1 := orient(b1, b2, a1)
	d2 := orient(b1, b2, a2)
	d3 := orient(a1, a2, b1)
	d4 := orient(a1, a2, b2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	// Collinear cases: endpoint lying on the other segment.
	if d1 == 0 && onSegment(b1, b2, a1) {
		return true
	}
	if d2 == 0 && onSegment(b1, b2, a2) {
		return true
	}
	if d3 == 0 && onSegment(a1, a2, b1) {
		return true
	}
	if d4 == 0 && onSegment(a1, a2, b2) {
		return true
	}
	return false
}

// orient returns the orientation of c relative to the directed line a→b:
// positive = left turn, negative = right turn, zero = collinear.
func orient(a, b, c Vec2) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// onSegment reports whether collinear point p lies within the bounding box
// of segment [a,b].
func onSegment(a, b, p Vec2) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

// RoundCorners replaces each polygon vertex with a circular fillet of the
// given radius, tessellated into the given number of facets per corner.
// The fillet is clamped so the tangent offset never exceeds half the
// shorter adjacent edge, which prevents neighbouring fillets from
// overlapping. Near-straight corners are left untouched. The input polygon
// must be simple; the output preserves winding.
func RoundCorners(pts []Vec2, radius float64, facets int) []Vec2 {
	n := len(pts)
	if radius <= 0 || n < 3 {
		return pts
	}
	if facets < 1 {
		facets = 1
	}

	out := make([]Vec2, 0, n*(facets+1))
	for i := 0; i < n; i++ {
		prev := pts[(i-1+n)%n]
		cur := pts[i]
		next := pts[(i+1)%n]

		dIn := prev.Sub(cur)
		dOut := next.Sub(cur)
		lenIn := dIn.Length()
		lenOut := dOut.Length()
		if lenIn == 0 || lenOut == 0 {
			out = append(out, cur)
			continue
		}
		uIn := dIn.Scale(1 / lenIn)
		uOut := dOut.Scale(1 / lenOut)

		// Interior angle at the vertex.
		cosA := math.Max(-1, math.Min(1, uIn.Dot(uOut)))
		angle := math.Acos(cosA)
		if angle > math.Pi-1e-9 || angle < 1e-9 {
			// Straight or degenerate spike: nothing to round.
			out = append(out, cur)
			continue
		}

		// Tangent offset along each edge, clamped to half the shorter
		// adjacent edge. Shrinking the offset shrinks the effective radius.
		half := angle / 2
		t := radius / math.Tan(half)
		tMax := math.Min(lenIn, lenOut) / 2
		if t > tMax {
			t = tMax
		}
		r := t * math.Tan(half)

		p1 := cur.Add(uIn.Scale(t))
		p2 := cur.Add(uOut.Scale(t))

		bisector := uIn.Add(uOut).Normalize()
		center := cur.Add(bisector.Scale(r / math.Sin(half)))

		// Sweep the minor arc from p1 to p2 around the fillet center.
		a1 := math.Atan2(p1.Y-center.Y, p1.X-center.X)
		a2 := math.Atan2(p2.Y-center.Y, p2.X-center.X)
		sweep := a2 - a1
		for sweep > math.Pi {
			sweep -= 2 * math.Pi
		}
		for sweep < -math.Pi {
			sweep += 2 * math.Pi
		}

		for k := 0; k <= facets; k++ {
			a := a1 + sweep*float64(k)/float64(facets)
			out = append(out, Vec2{
				center.X + r*math.Cos(a),
				center.Y + r*math.Sin(a),
			})
		}
	}
	return dedupe(out)
}

// dedupe removes consecutive duplicate points (including a last point equal
// to the first). Fully clamped fillets on adjacent corners share tangent
// points, which would otherwise leave zero-length edges.
func dedupe(pts []Vec2) []Vec2 {
	const eps = 1e-12
	out := pts[:0:0]
	for _, p := range pts {
		if len(out) > 0 && p.Sub(out[len(out)-1]).Length() < eps {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[len(out)-1].Sub(out[0]).Length() < eps {
		out = out[:len(out)-1]
	}
	return out
}
