package bundle

import (
	"path/filepath"

	"github.com/cochaviz/squeeze/internal/manifest"
)

const (
	// BundleExtension is appended to the bundle name to form its directory.
	BundleExtension = ".app"
	// StagingDirName holds the rendered rasters between generation and compilation.
	StagingDirName = "icons.iconset"

	ExecutablePerm = 0o775
	DirPerm        = 0o755
	FilePerm       = 0o644
)

// Layout resolves the fixed on-disk paths of a bundle.
type Layout struct {
	Root       string
	Executable string
	IconFile   string
	Manifest   string
	Staging    string
}

// NewLayout returns the layout for a bundle called name inside destinationDir.
func NewLayout(destinationDir, name string) Layout {
	root := filepath.Join(destinationDir, name+BundleExtension)
	return Layout{
		Root:       root,
		Executable: filepath.Join(root, name),
		IconFile:   filepath.Join(root, manifest.IconFileName),
		Manifest:   filepath.Join(root, manifest.FileName),
		Staging:    filepath.Join(root, StagingDirName),
	}
}
