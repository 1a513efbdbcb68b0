package thumbs

import (
	"image"

	"github.com/fogleman/gg"
)

// renderPlaceholder draws the generic wireframe-cube icon used when a mesh
// cannot be loaded or rendered. Models always get an image, even broken ones.
func renderPlaceholder(size int) image.Image {
	dc := gg.NewContext(size, size)
	dc.SetRGB(0.93, 0.93, 0.95)
	dc.Clear()

	s := float64(size)
	cx, cy := s/2, s/2
	half := s * 0.22
	off := half * 0.55 // isometric offset for the back face

	// Front face.
	fx0, fy0 := cx-half, cy-half+off/2
	fx1, fy1 := cx+half, cy+half+off/2
	// Back face.
	bx0, by0 := fx0+off, fy0-off
	bx1, by1 := fx1+off, fy1-off

	dc.SetRGB(0.55, 0.58, 0.62)
	dc.SetLineWidth(s / 100)

	dc.DrawRectangle(bx0, by0, bx1-bx0, by1-by0)
	dc.DrawRectangle(fx0, fy0, fx1-fx0, fy1-fy0)

	// Connecting edges.
	dc.MoveTo(fx0, fy0)
	dc.LineTo(bx0, by0)
	dc.MoveTo(fx1, fy0)
	dc.LineTo(bx1, by0)
	dc.MoveTo(fx0, fy1)
	dc.LineTo(bx0, by1)
	dc.MoveTo(fx1, fy1)
	dc.LineTo(bx1, by1)
	dc.Stroke()

	// Question mark to signal the render failure.
	dc.SetRGB(0.45, 0.48, 0.52)
	dc.DrawStringAnchored("?", cx, cy+off/4, 0.5, 0.5)

	return dc.Image()
}
