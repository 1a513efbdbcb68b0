package mesh

import (
	"math"
	"testing"
)

// boxMesh returns a 12-triangle axis-aligned box spanning min..max.
func boxMesh(min, max Vec3) *Mesh {
	v := [8]Vec3{
		{min.X, min.Y, min.Z}, {max.X, min.Y, min.Z},
		{max.X, max.Y, min.Z}, {min.X, max.Y, min.Z},
		{min.X, min.Y, max.Z}, {max.X, min.Y, max.Z},
		{max.X, max.Y, max.Z}, {min.X, max.Y, max.Z},
	}
	quads := [6][4]int{
		{0, 1, 2, 3}, {4, 5, 6, 7}, {0, 1, 5, 4},
		{2, 3, 7, 6}, {0, 3, 7, 4}, {1, 2, 6, 5},
	}
	m := &Mesh{}
	for _, q := range quads {
		m.Triangles = append(m.Triangles,
			Triangle{A: v[q[0]], B: v[q[1]], C: v[q[2]]},
			Triangle{A: v[q[0]], B: v[q[2]], C: v[q[3]]},
		)
	}
	return m
}

func TestMesh_Bounds(t *testing.T) {
	m := boxMesh(Vec3{-1, -2, -3}, Vec3{4, 5, 6})

	b := m.Bounds()
	if b.Min != (Vec3{-1, -2, -3}) {
		t.Errorf("Min: got %v", b.Min)
	}
	if b.Max != (Vec3{4, 5, 6}) {
		t.Errorf("Max: got %v", b.Max)
	}
	if b.IsDegenerate() {
		t.Error("box bounds reported degenerate")
	}

	size := b.Size()
	if size != (Vec3{5, 7, 9}) {
		t.Errorf("Size: got %v", size)
	}
}

func TestMesh_Bounds_Empty(t *testing.T) {
	m := &Mesh{}
	if !m.Bounds().IsDegenerate() {
		t.Error("empty mesh bounds should be degenerate")
	}
}

func TestMesh_VertexCount(t *testing.T) {
	m := boxMesh(Vec3{0, 0, 0}, Vec3{1, 1, 1})
	// A box has 8 distinct corners regardless of shared-face duplication.
	if got := m.VertexCount(); got != 8 {
		t.Errorf("VertexCount: got %d, want 8", got)
	}
	if got := m.TriangleCount(); got != 12 {
		t.Errorf("TriangleCount: got %d, want 12", got)
	}
}

func TestTriangle_Normal(t *testing.T) {
	tri := Triangle{A: Vec3{0, 0, 0}, B: Vec3{1, 0, 0}, C: Vec3{0, 1, 0}}
	n := tri.Normal()
	if math.Abs(n.Z-1) > 1e-9 || math.Abs(n.X) > 1e-9 || math.Abs(n.Y) > 1e-9 {
		t.Errorf("Normal: got %v, want +Z", n)
	}
}

func TestDecimate_WithinBudget(t *testing.T) {
	m := boxMesh(Vec3{0, 0, 0}, Vec3{1, 1, 1})
	out := Decimate(m, 100)
	if out != m {
		t.Error("mesh within budget should be returned unchanged")
	}
}

func TestDecimate_ReducesAndKeepsBounds(t *testing.T) {
	// Dense tessellated plane: 2*n*n triangles over a unit square.
	const n = 50
	m := &Mesh{}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x0, x1 := float64(i)/n, float64(i+1)/n
			y0, y1 := float64(j)/n, float64(j+1)/n
			a, b, c, d := Vec3{x0, y0, 0}, Vec3{x1, y0, 0}, Vec3{x1, y1, 0}, Vec3{x0, y1, 0}
			m.Triangles = append(m.Triangles,
				Triangle{A: a, B: b, C: c},
				Triangle{A: a, B: c, C: d},
			)
		}
	}

	budget := 500
	out := Decimate(m, budget)

	if out.TriangleCount() > budget {
		t.Errorf("decimated count %d exceeds budget %d", out.TriangleCount(), budget)
	}
	if out.TriangleCount() == 0 {
		t.Fatal("decimation removed everything")
	}

	// Silhouette preservation: bounds should survive within one grid cell.
	ob := out.Bounds()
	if ob.Size().X < 0.8 || ob.Size().Y < 0.8 {
		t.Errorf("decimation shrank bounds too far: %v", ob.Size())
	}
}
