package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cochaviz/squeeze/internal/artifacts"
	"github.com/cochaviz/squeeze/internal/manifest"
)

// Inspection reports what an existing bundle on disk contains.
type Inspection struct {
	Layout    Layout
	Manifest  manifest.Manifest
	Artifacts []artifacts.Artifact
	// Problems lists deviations from the expected layout.
	Problems []string
}

// Inspect reads the bundle at bundlePath and checks it against the fixed
// layout. The error is only set when the bundle cannot be read at all.
func Inspect(bundlePath string) (*Inspection, error) {
	info, err := os.Stat(bundlePath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", bundlePath)
	}

	name := strings.TrimSuffix(filepath.Base(bundlePath), BundleExtension)
	layout := NewLayout(filepath.Dir(bundlePath), name)
	inspection := &Inspection{Layout: layout}

	m, err := manifest.Read(layout.Manifest)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		inspection.Problems = append(inspection.Problems, "manifest is missing")
	case err != nil:
		inspection.Problems = append(inspection.Problems, fmt.Sprintf("manifest is unreadable: %v", err))
	default:
		inspection.Manifest = m
		if m.Executable != name {
			inspection.Problems = append(inspection.Problems,
				fmt.Sprintf("manifest executable %q does not match bundle name %q", m.Executable, name))
		}
		if want := manifest.Identifier(m.Name); m.Identifier != want {
			inspection.Problems = append(inspection.Problems,
				fmt.Sprintf("identifier %q does not match %q", m.Identifier, want))
		}
	}

	collected, err := CollectArtifacts(layout)
	if err != nil {
		inspection.Problems = append(inspection.Problems, err.Error())
	}
	inspection.Artifacts = collected

	for _, artifact := range collected {
		if artifact.Kind == artifacts.ExecutableArtifact && artifact.Mode != ExecutablePerm {
			inspection.Problems = append(inspection.Problems,
				fmt.Sprintf("executable mode is %#o, want %#o", artifact.Mode, ExecutablePerm))
		}
	}

	if _, err := os.Stat(layout.Staging); err == nil {
		inspection.Problems = append(inspection.Problems, "staging directory was left behind")
	}

	return inspection, nil
}

// OK reports whether the bundle matched the expected layout.
func (i *Inspection) OK() bool {
	return len(i.Problems) == 0
}
