package icon

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/jackmordaunt/icns/v3"
	ico "github.com/sergeymakinen/go-ico"
)

var (
	icnsMagic = []byte("icns")
	icoMagic  = []byte{0x00, 0x00, 0x01, 0x00}
)

// Load opens and decodes the icon source at path.
func Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read icon %s: %w", path, err)
	}

	img, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("icon %s: %w", path, err)
	}
	return img, nil
}

// Decode reads a PNG, JPEG, GIF, BMP, TIFF, ICO or ICNS image from r.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read source: %v", ErrEncoding, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: source is empty", ErrEncoding)
	}

	var img image.Image
	switch {
	case bytes.HasPrefix(data, icnsMagic):
		img, err = icns.Decode(bytes.NewReader(data))
	case bytes.HasPrefix(data, icoMagic):
		// image.Decode sniffing trips over some ICO payloads, so decode directly.
		img, err = ico.Decode(bytes.NewReader(data))
	default:
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: decoded image has no pixels", ErrEncoding)
	}
	return img, nil
}
