package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // page.png decoding
	"os"
)

const (
	maxBytes     = 4_000_000
	maxDimension = 7999
)

// preparedImage is a page image resized/encoded for a vision model call.
type preparedImage struct {
	Data   []byte
	Width  int
	Height int
}

// loadPageImage decodes path, downsamples it (nearest-neighbor -- no resize
// library exists anywhere in the example pack, so this is the one concern in
// this package that falls back to hand-written stdlib math rather than a
// third-party dependency) once to the pixel ceiling, and re-encodes as JPEG
// at quality 85, stepping down by 15 while the result exceeds maxBytes; at
// quality 20 or below it stops, so the result can still exceed maxBytes
// (§4.I step 1).
func loadPageImage(path string) (preparedImage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return preparedImage{}, fmt.Errorf("reading page image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return preparedImage{}, fmt.Errorf("decoding page image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if longest := max(w, h); longest > maxDimension {
		scale := float64(maxDimension) / float64(longest)
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
		img = resizeNearest(img, w, h)
	}

	quality := 85
	for {
		buf := &bytes.Buffer{}
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return preparedImage{}, fmt.Errorf("encoding jpeg: %w", err)
		}
		if buf.Len() <= maxBytes || quality <= 20 {
			return preparedImage{Data: buf.Bytes(), Width: w, Height: h}, nil
		}
		quality -= 15
	}
}

func resizeNearest(src image.Image, w, h int) image.Image {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := b.Min.Y + y*b.Dy()/h
		for x := 0; x < w; x++ {
			sx := b.Min.X + x*b.Dx()/w
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
