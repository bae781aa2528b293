package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cochaviz/squeeze/internal/artifacts"
	"github.com/cochaviz/squeeze/internal/icon"
	"github.com/cochaviz/squeeze/internal/manifest"

	"github.com/google/uuid"
)

// Assembler runs the bundle pipeline. Runs are synchronous and must not be
// started concurrently for the same destination bundle.
type Assembler struct {
	Logger       *slog.Logger
	IconBuilder  icon.Builder
	IconCompiler IconCompiler
}

type run struct {
	logger *slog.Logger
	result *Result
}

func (r *run) enter(state State) {
	r.result.State = state
	r.logger.Debug("entering state", "state", state)
}

func (r *run) fail(err *Error) (*Result, error) {
	r.logger.Error("bundle assembly failed",
		"state", r.result.State,
		"kind", err.Kind,
		"error", err,
	)
	r.result.State = StateFailed
	return r.result, err
}

// Assemble validates request and produces <DestinationDir>/<Name>.app. On
// failure the returned error is an *Error and the Result is non-nil, in the
// Failed state, with every path produced before the failure filled in.
func (a *Assembler) Assemble(ctx context.Context, request Request) (*Result, error) {
	runID := uuid.NewString()
	r := &run{
		logger: a.logger().With("run_id", runID, "bundle", request.Name),
		result: &Result{RunID: runID},
	}

	r.enter(StateValidating)
	if err := validate(request); err != nil {
		return r.fail(err)
	}
	if a.IconCompiler == nil {
		return r.fail(toolInvocationFailed("", errors.New("icon compiler is not configured")))
	}

	layout := NewLayout(request.DestinationDir, request.Name)
	r.result.BundlePath = layout.Root
	r.logger.Info("starting bundle assembly", "destination", layout.Root)

	r.enter(StateScaffolding)
	if err := scaffold(layout, request.Overwrite); err != nil {
		return r.fail(err)
	}

	r.enter(StateCopyingExecutable)
	if err := copyFile(request.ExecutablePath, layout.Executable, ExecutablePerm); err != nil {
		return r.fail(filesystemError("Unable to copy the executable into the bundle", layout.Executable, err))
	}
	r.result.Executable = layout.Executable
	r.logger.Info("copied executable", "source", request.ExecutablePath)

	r.enter(StateBuildingIconSet)
	set, err := a.IconBuilder.BuildSet(request.Icon, layout.Staging)
	if err != nil {
		if rmErr := os.RemoveAll(layout.Staging); rmErr != nil {
			r.logger.Warn("unable to remove partial icon set", "staging", layout.Staging, "error", rmErr)
		}
		if errors.Is(err, icon.ErrEncoding) {
			return r.fail(imageEncodingFailed(err))
		}
		return r.fail(filesystemError("Unable to write the icon set", layout.Staging, err))
	}
	largest, _ := set.Largest()
	r.logger.Info("icon set staged", "icons", len(set.Icons), "largest", largest.Name, "staging", set.Dir)

	r.enter(StateCompilingIcon)
	if err := a.IconCompiler.Compile(ctx, layout.Staging, layout.IconFile); err != nil {
		// staging stays in place for diagnosis
		return r.fail(toolInvocationFailed(layout.Staging, err))
	}
	r.result.IconFile = layout.IconFile
	r.logger.Info("icon compiled", "icon", layout.IconFile)

	r.enter(StateCleaningStaging)
	if err := os.RemoveAll(layout.Staging); err != nil {
		r.logger.Warn("unable to remove staging directory", "staging", layout.Staging, "error", err)
	}

	r.enter(StateWritingManifest)
	r.result.Manifest = manifest.New(request.Name, request.Version)
	if err := writeManifest(r.result.Manifest, layout.Manifest); err != nil {
		r.logger.Warn("bundle left without manifest", "manifest", layout.Manifest)
		return r.fail(filesystemError("Unable to write the bundle manifest", layout.Manifest, err))
	}
	r.result.ManifestPath = layout.Manifest

	collected, err := CollectArtifacts(layout)
	if err != nil {
		r.logger.Warn("unable to describe bundle artifacts", "error", err)
	}
	r.result.Artifacts = collected

	r.enter(StateDone)
	r.logger.Info("bundle assembled",
		"bundle_path", layout.Root,
		"identifier", r.result.Manifest.Identifier,
	)
	return r.result, nil
}

func (a *Assembler) logger() *slog.Logger {
	if a != nil && a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// CheckRequired fails with a MissingValues *Error when a required field of
// request is blank. iconProvided stands in for the icon, so callers can run
// the check before decoding it.
func CheckRequired(request Request, iconProvided bool) error {
	if missing := missingFields(request, iconProvided); len(missing) > 0 {
		return missingValues("Not all properties were given a value! Missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func missingFields(request Request, iconProvided bool) []string {
	var missing []string
	if strings.TrimSpace(request.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(request.Version) == "" {
		missing = append(missing, "version")
	}
	if strings.TrimSpace(request.Publisher) == "" {
		missing = append(missing, "publisher")
	}
	if !iconProvided {
		missing = append(missing, "icon")
	}
	if strings.TrimSpace(request.ExecutablePath) == "" {
		missing = append(missing, "executable")
	}
	if strings.TrimSpace(request.DestinationDir) == "" {
		missing = append(missing, "destination")
	}
	return missing
}

func validate(request Request) *Error {
	if missing := missingFields(request, request.Icon != nil); len(missing) > 0 {
		return missingValues("Not all properties were given a value! Missing: %s", strings.Join(missing, ", "))
	}

	if strings.ContainsAny(request.Name, `/\`) || request.Name == "." || request.Name == ".." {
		return filesystemError("The bundle name cannot be used as a file name", request.Name, nil)
	}
	if reservedName(request.Name) {
		return filesystemError("The bundle name collides with a fixed bundle entry", request.Name, nil)
	}
	if err := ensureRegularFile(request.ExecutablePath); err != nil {
		return filesystemError("The executable cannot be read", request.ExecutablePath, err)
	}
	if err := ensureWritableDir(request.DestinationDir); err != nil {
		return filesystemError("The destination cannot be written to", request.DestinationDir, err)
	}
	return nil
}

// reservedName reports whether the executable for name would share a path
// with the manifest, the icon container or the staging directory. The match
// ignores case since bundles usually land on case-insensitive volumes.
func reservedName(name string) bool {
	for _, entry := range []string{manifest.FileName, manifest.IconFileName, StagingDirName} {
		if strings.EqualFold(name, entry) {
			return true
		}
	}
	return false
}

func scaffold(layout Layout, overwrite bool) *Error {
	if _, err := os.Lstat(layout.Root); err == nil {
		if !overwrite {
			return filesystemError("A bundle with this name already exists", layout.Root, fs.ErrExist)
		}
		if err := os.RemoveAll(layout.Root); err != nil {
			return filesystemError("Unable to replace the existing bundle", layout.Root, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return filesystemError("Unable to inspect the destination", layout.Root, err)
	}

	if err := os.MkdirAll(layout.Staging, DirPerm); err != nil {
		return filesystemError("Unable to create the bundle directories", layout.Staging, err)
	}
	return nil
}

func writeManifest(m manifest.Manifest, path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, FilePerm)
}

// CollectArtifacts describes the executable, icon container and manifest of
// the bundle at layout. Missing files are reported in the joined error.
func CollectArtifacts(layout Layout) ([]artifacts.Artifact, error) {
	var (
		collected []artifacts.Artifact
		errs      error
	)
	for _, entry := range []struct {
		path string
		kind artifacts.ArtifactKind
	}{
		{layout.Executable, artifacts.ExecutableArtifact},
		{layout.IconFile, artifacts.IconArtifact},
		{layout.Manifest, artifacts.ManifestArtifact},
	} {
		artifact, err := artifacts.Describe(entry.path, entry.kind)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", filepath.Base(entry.path), err))
			continue
		}
		collected = append(collected, artifact)
	}
	return collected, errs
}
