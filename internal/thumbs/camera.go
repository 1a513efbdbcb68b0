package thumbs

import (
	"math"

	"github.com/meshvault/meshvault-server/internal/mesh"
)

// frameMargin is the fraction of the canvas left empty around the model.
const frameMargin = 0.1

// camera is an orthographic projection framed onto a bounding box. The view
// direction is a fixed three-quarter angle so thumbnails read consistently
// across the catalog.
type camera struct {
	center mesh.Vec3
	right  mesh.Vec3
	up     mesh.Vec3
	view   mesh.Vec3

	scale   float64 // world units to pixels
	offsetX float64
	offsetY float64
}

// frameCamera fits the bounding box into a size×size canvas with margins.
// Returns false for degenerate bounds, which cannot be framed.
func frameCamera(b mesh.Bounds, size int) (camera, bool) {
	if b.IsDegenerate() {
		return camera{}, false
	}

	view := mesh.Vec3{X: -1, Y: -1, Z: -1}.Normalize()
	worldUp := mesh.Vec3{X: 0, Y: 0, Z: 1}
	right := worldUp.Cross(view).Normalize()
	up := view.Cross(right).Normalize()

	cam := camera{
		center: b.Center(),
		right:  right,
		up:     up,
		view:   view,
	}

	// Project the box corners to find the projected extent.
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, corner := range b.Corners() {
		rel := corner.Sub(cam.center)
		x := rel.Dot(right)
		y := rel.Dot(up)
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	extent := math.Max(maxX-minX, maxY-minY)
	if extent <= 0 {
		return camera{}, false
	}

	usable := float64(size) * (1 - 2*frameMargin)
	cam.scale = usable / extent
	cam.offsetX = float64(size) / 2
	cam.offsetY = float64(size) / 2
	return cam, true
}

// project maps a world point to canvas coordinates plus a depth value for
// painter-order sorting. Larger depth is closer to the viewer.
func (c camera) project(v mesh.Vec3) (x, y, depth float64) {
	rel := v.Sub(c.center)
	x = c.offsetX + rel.Dot(c.right)*c.scale
	// Canvas y grows downward.
	y = c.offsetY - rel.Dot(c.up)*c.scale
	depth = -rel.Dot(c.view)
	return x, y, depth
}
