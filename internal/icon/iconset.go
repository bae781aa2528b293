package icon

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
)

const (
	// Extension is the raster format used for staged icons.
	Extension = "png"
	// HighDensitySuffix is the token iconutil expects on double-resolution entries.
	HighDensitySuffix = "@2x"

	stagedFilePerm = 0o644
)

// Sizes lists the base pixel sizes rendered for every icon set, in order.
var Sizes = [...]int{32, 64, 256, 512, 1024}

// SizeSpec describes a single raster in the icon set.
type SizeSpec struct {
	BasePixels  int
	HighDensity bool
}

// FileName returns the iconset entry name for the spec. High-density variants
// keep the pixel count of BasePixels but are filed under half that size.
func (s SizeSpec) FileName() string {
	if s.HighDensity {
		half := s.BasePixels / 2
		return fmt.Sprintf("icon_%dx%d%s.%s", half, half, HighDensitySuffix, Extension)
	}
	return fmt.Sprintf("icon_%dx%d.%s", s.BasePixels, s.BasePixels, Extension)
}

// Specs expands Sizes into the full size/density matrix.
func Specs() []SizeSpec {
	specs := make([]SizeSpec, 0, len(Sizes)*2)
	for _, size := range Sizes {
		specs = append(specs,
			SizeSpec{BasePixels: size},
			SizeSpec{BasePixels: size, HighDensity: true},
		)
	}
	return specs
}

// StagedIcon is one raster written to the staging directory.
type StagedIcon struct {
	SizeSpec
	Name string
	Path string
	Size int64
}

// StagedIconSet is the ordered result of BuildSet.
type StagedIconSet struct {
	Dir   string
	Icons []StagedIcon
}

// Largest returns the staged raster with the most pixels.
func (s StagedIconSet) Largest() (StagedIcon, bool) {
	var (
		best  StagedIcon
		found bool
	)
	for _, staged := range s.Icons {
		if !found || staged.BasePixels > best.BasePixels {
			best = staged
			found = true
		}
	}
	return best, found
}

// Builder renders icon sets with a configurable Scaler.
type Builder struct {
	Scaler Scaler
}

// BuildSet renders src with the default builder.
func BuildSet(src image.Image, stagingDir string) (StagedIconSet, error) {
	return Builder{}.BuildSet(src, stagingDir)
}

// BuildSet renders src at every size in Sizes and writes both the base and the
// high-density entry for each into stagingDir, which must already exist.
// Scaling failures wrap ErrEncoding; no partial set is returned on error.
func (b Builder) BuildSet(src image.Image, stagingDir string) (StagedIconSet, error) {
	set := StagedIconSet{Dir: stagingDir}

	for _, size := range Sizes {
		raster, err := b.Scaler.Scale(src, size, size)
		if err != nil {
			return StagedIconSet{}, fmt.Errorf("render %dx%d: %w", size, size, err)
		}

		for _, spec := range []SizeSpec{{BasePixels: size}, {BasePixels: size, HighDensity: true}} {
			name := spec.FileName()
			path := filepath.Join(stagingDir, name)
			if err := os.WriteFile(path, raster, stagedFilePerm); err != nil {
				return StagedIconSet{}, fmt.Errorf("write %s: %w", name, err)
			}
			set.Icons = append(set.Icons, StagedIcon{
				SizeSpec: spec,
				Name:     name,
				Path:     path,
				Size:     int64(len(raster)),
			})
		}
	}

	return set, nil
}
