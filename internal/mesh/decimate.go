package mesh

import "math"

// Decimate reduces the mesh to at most budget triangles by vertex
// clustering: vertices are snapped to a uniform grid over the bounding box
// and triangles that collapse (two or more corners in one cell) are
// dropped. The grid resolution is walked down until the result fits the
// budget, which preserves the silhouette at the cost of surface detail -
// the right trade for bounded thumbnail render latency.
//
// Meshes already within budget are returned unchanged.
func Decimate(m *Mesh, budget int) *Mesh {
	if budget <= 0 || m.TriangleCount() <= budget {
		return m
	}

	bounds := m.Bounds()
	if bounds.IsDegenerate() {
		// Nothing to cluster against; truncation is the only option left.
		return &Mesh{Triangles: m.Triangles[:budget]}
	}

	for resolution := 256; resolution >= 4; resolution /= 2 {
		clustered := clusterToGrid(m, bounds, resolution)
		if clustered.TriangleCount() <= budget {
			return clustered
		}
	}

	// Even the coarsest grid overflowed the budget; keep that result
	// truncated rather than returning the full mesh.
	clustered := clusterToGrid(m, bounds, 4)
	if clustered.TriangleCount() > budget {
		clustered.Triangles = clustered.Triangles[:budget]
	}
	return clustered
}

type gridCell struct {
	x, y, z int
}

func clusterToGrid(m *Mesh, bounds Bounds, resolution int) *Mesh {
	size := bounds.Size()
	cell := math.Max(size.X, math.Max(size.Y, size.Z)) / float64(resolution)
	if cell <= 0 {
		return m
	}

	snap := func(v Vec3) (gridCell, Vec3) {
		c := gridCell{
			x: int(math.Floor((v.X - bounds.Min.X) / cell)),
			y: int(math.Floor((v.Y - bounds.Min.Y) / cell)),
			z: int(math.Floor((v.Z - bounds.Min.Z) / cell)),
		}
		// Cell center is the representative vertex.
		rep := Vec3{
			X: bounds.Min.X + (float64(c.x)+0.5)*cell,
			Y: bounds.Min.Y + (float64(c.y)+0.5)*cell,
			Z: bounds.Min.Z + (float64(c.z)+0.5)*cell,
		}
		return c, rep
	}

	out := &Mesh{Triangles: make([]Triangle, 0, len(m.Triangles)/2)}
	seen := make(map[[3]gridCell]struct{})

	for _, t := range m.Triangles {
		ca, a := snap(t.A)
		cb, b := snap(t.B)
		cc, c := snap(t.C)

		// Collapsed triangles contribute nothing to the silhouette.
		if ca == cb || cb == cc || ca == cc {
			continue
		}

		// Deduplicate faces that cluster onto the same cell triple.
		key := [3]gridCell{ca, cb, cc}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		out.Triangles = append(out.Triangles, Triangle{A: a, B: b, C: c})
	}
	return out
}
