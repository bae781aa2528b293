package bundle

import (
	"image"

	"github.com/cochaviz/squeeze/internal/artifacts"
	"github.com/cochaviz/squeeze/internal/manifest"
)

// State is a step of the assembly state machine.
type State string

// Assembly states, in pipeline order. StateFailed is reachable from any
// non-terminal state.
const (
	StateValidating        State = "validating"
	StateScaffolding       State = "scaffolding"
	StateCopyingExecutable State = "copying_executable"
	StateBuildingIconSet   State = "building_icon_set"
	StateCompilingIcon     State = "compiling_icon"
	StateCleaningStaging   State = "cleaning_staging"
	StateWritingManifest   State = "writing_manifest"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// Request carries everything needed to assemble one bundle. It is treated as
// immutable once passed to Assemble.
type Request struct {
	Name      string
	Version   string
	// Publisher is required but not written to any output.
	Publisher string

	Icon           image.Image
	ExecutablePath string
	DestinationDir string

	// Overwrite replaces an existing bundle of the same name instead of failing.
	Overwrite bool
}

// Result describes the produced bundle. After a manifest write failure it
// still carries the executable and icon paths, and Manifest holds the value
// that could not be written.
type Result struct {
	RunID      string
	State      State
	BundlePath string
	Executable string
	IconFile   string
	Manifest   manifest.Manifest
	// ManifestPath is empty when the manifest was not written.
	ManifestPath string
	Artifacts    []artifacts.Artifact
}
