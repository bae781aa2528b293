// Package native compiles staged icon sets without external tools.
package native

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cochaviz/squeeze/internal/bundle"
	"github.com/cochaviz/squeeze/internal/icon"

	"github.com/jackmordaunt/icns/v3"
)

var _ bundle.IconCompiler = (*Compiler)(nil)

// ErrEmptyIconSet is returned when the staging directory holds no rasters.
var ErrEmptyIconSet = errors.New("icon set contains no rasters")

// Compiler encodes the largest staged raster into an icns container. The
// encoder derives the smaller icon types from it.
type Compiler struct {
	Logger *slog.Logger
}

func (c *Compiler) logger() *slog.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Compile reads stagingDir and writes outputIconFile.
func (c *Compiler) Compile(ctx context.Context, stagingDir, outputIconFile string) error {
	source, err := largestRaster(stagingDir)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := readPNG(source)
	if err != nil {
		return err
	}

	c.logger().Debug("encoding icns", "source", filepath.Base(source), "output_file", outputIconFile)

	out, err := os.OpenFile(outputIconFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := icns.Encode(out, img); err != nil {
		out.Close()
		os.Remove(outputIconFile)
		return fmt.Errorf("encode icns: %w", err)
	}
	return out.Close()
}

// largestRaster picks the staged PNG with the greatest pixel width.
func largestRaster(stagingDir string) (string, error) {
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return "", err
	}

	var (
		best      string
		bestWidth int
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "."+icon.Extension) {
			continue
		}
		path := filepath.Join(stagingDir, entry.Name())
		width, err := rasterWidth(path)
		if err != nil {
			return "", err
		}
		if width > bestWidth {
			best, bestWidth = path, width
		}
	}
	if best == "" {
		return "", fmt.Errorf("%s: %w", stagingDir, ErrEmptyIconSet)
	}
	return best, nil
}

func rasterWidth(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg.Width, nil
}

func readPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return img, nil
}
