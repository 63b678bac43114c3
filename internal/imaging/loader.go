package imaging

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "github.com/ugguru/url-fraud-detection/internal/errors"
)

// CanonicalSide is the working resolution every input is normalized to:
// the longest side of the frame is scaled to exactly this many pixels.
// All metric calibration constants assume this scale.
const CanonicalSide = 512

// Frame is the normalized pixel grid all metric analyzers read. It is
// created once per analysis and never mutated afterwards, which is what
// makes the parallel engine mode safe without locking.
type Frame struct {
	Width  int
	Height int
	Gray   *image.Gray
	RGBA   *image.RGBA
}

// LoadFile reads and normalizes an image from disk.
func LoadFile(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewInvalidImageError("cannot read image file", err)
	}
	return Load(data)
}

// Load decodes raw image bytes and normalizes them into a Frame.
// Decoding failures yield an invalid_image error; a decodable image with
// zero area yields unsupported_format. The same input bytes always produce
// the same Frame, pixel for pixel.
func Load(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, apperrors.NewInvalidImageError("empty image data", nil)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewInvalidImageError("cannot decode image bytes", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, apperrors.NewUnsupportedFormatError("image has zero area", nil)
	}

	nw, nh := canonicalSize(w, h)
	rgba := image.NewRGBA(image.Rect(0, 0, nw, nh))
	// ApproxBiLinear is deterministic for identical inputs, which the
	// reproducibility guarantee depends on.
	xdraw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), src, bounds, xdraw.Src, nil)

	gray := image.NewGray(rgba.Bounds())
	draw.Draw(gray, gray.Bounds(), rgba, image.Point{}, draw.Src)

	return &Frame{
		Width:  nw,
		Height: nh,
		Gray:   gray,
		RGBA:   rgba,
	}, nil
}

func canonicalSize(w, h int) (int, int) {
	if w >= h {
		nh := (h*CanonicalSide + w/2) / w
		if nh < 1 {
			nh = 1
		}
		return CanonicalSide, nh
	}
	nw := (w*CanonicalSide + h/2) / h
	if nw < 1 {
		nw = 1
	}
	return nw, CanonicalSide
}
