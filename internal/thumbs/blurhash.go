package thumbs

import (
	"image"

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"
)

// blurHashSize is the working size for blurhash computation. The hash is a
// low-frequency placeholder; a small downscale produces an identical result
// far faster than hashing the full render.
const blurHashSize = 32

// computeBlurHash encodes a compact blurhash placeholder for an image.
// Failures are non-fatal to thumbnail generation; callers log and move on.
func computeBlurHash(img image.Image) (string, error) {
	small := image.NewRGBA(image.Rect(0, 0, blurHashSize, blurHashSize))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)
	return blurhash.Encode(4, 3, small)
}
