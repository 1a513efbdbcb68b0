package thumbs

import (
	"image"
	"math"
	"sort"

	"github.com/fogleman/gg"

	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/errors"
	"github.com/meshvault/meshvault-server/internal/mesh"
)

// renderImage rasterizes a mesh in the given mode onto a size×size canvas.
// Degenerate bounds fail with RenderFailed so the caller can fall back to
// the placeholder.
func renderImage(m *mesh.Mesh, mode domain.RenderMode, size int) (image.Image, error) {
	cam, ok := frameCamera(m.Bounds(), size)
	if !ok {
		return nil, errors.RenderFailed("degenerate bounding box")
	}

	dc := gg.NewContext(size, size)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	switch mode {
	case domain.RenderWireframe:
		renderWireframe(dc, m, cam)
	case domain.RenderSolid:
		renderSolid(dc, m, cam)
	default:
		return nil, errors.RenderFailedf("unknown render mode %q", mode)
	}

	return dc.Image(), nil
}

// renderWireframe draws every triangle edge as a projected line.
func renderWireframe(dc *gg.Context, m *mesh.Mesh, cam camera) {
	dc.SetRGB(0.15, 0.35, 0.55)
	dc.SetLineWidth(1)

	for _, t := range m.Triangles {
		ax, ay, _ := cam.project(t.A)
		bx, by, _ := cam.project(t.B)
		cx, cy, _ := cam.project(t.C)

		dc.MoveTo(ax, ay)
		dc.LineTo(bx, by)
		dc.LineTo(cx, cy)
		dc.ClosePath()
	}
	dc.Stroke()
}

type solidFace struct {
	ax, ay float64
	bx, by float64
	cx, cy float64
	depth  float64
	shade  float64
}

// renderSolid fills triangles back to front with flat lambert shading.
// Faces pointing away from the camera are culled.
func renderSolid(dc *gg.Context, m *mesh.Mesh, cam camera) {
	light := mesh.Vec3{X: -0.4, Y: -0.6, Z: 1}.Normalize()

	faces := make([]solidFace, 0, len(m.Triangles))
	for _, t := range m.Triangles {
		normal := t.Normal()
		if normal.Dot(cam.view) >= 0 {
			continue
		}

		ax, ay, ad := cam.project(t.A)
		bx, by, bd := cam.project(t.B)
		cx, cy, cd := cam.project(t.C)

		shade := 0.25 + 0.75*math.Max(0, normal.Dot(light))
		faces = append(faces, solidFace{
			ax: ax, ay: ay,
			bx: bx, by: by,
			cx: cx, cy: cy,
			depth: (ad + bd + cd) / 3,
			shade: shade,
		})
	}

	sort.Slice(faces, func(i, j int) bool { return faces[i].depth < faces[j].depth })

	for _, f := range faces {
		dc.SetRGB(0.35*f.shade, 0.55*f.shade, 0.8*f.shade)
		dc.MoveTo(f.ax, f.ay)
		dc.LineTo(f.bx, f.by)
		dc.LineTo(f.cx, f.cy)
		dc.ClosePath()
		dc.Fill()
	}
}
