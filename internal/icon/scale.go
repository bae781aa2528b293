package icon

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// ErrEncoding marks failures to decode, scale or re-encode icon imagery.
var ErrEncoding = errors.New("icon encoding failed")

// Scaler renders a source image at arbitrary pixel dimensions.
type Scaler struct {
	// Interpolator defaults to draw.CatmullRom.
	Interpolator draw.Interpolator
}

// Scale renders src at width x height with the default scaler.
func Scale(src image.Image, width, height int) ([]byte, error) {
	return Scaler{}.Scale(src, width, height)
}

// Scale draws src onto a transparent canvas of exactly width x height in one
// compositing pass and encodes the result as PNG. The aspect ratio is not
// preserved.
func (s Scaler) Scale(src image.Image, width, height int) ([]byte, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source image is nil", ErrEncoding)
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("%w: source image has no pixels", ErrEncoding)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid target size %dx%d", ErrEncoding, width, height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	s.interpolator().Scale(dst, dst.Rect, src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("%w: encode png: %v", ErrEncoding, err)
	}
	return buf.Bytes(), nil
}

func (s Scaler) interpolator() draw.Interpolator {
	if s.Interpolator != nil {
		return s.Interpolator
	}
	return draw.CatmullRom
}
