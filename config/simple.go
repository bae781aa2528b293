package simple

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cochaviz/squeeze/internal/archive"
	"github.com/cochaviz/squeeze/internal/artifacts"
	"github.com/cochaviz/squeeze/internal/bundle"
	"github.com/cochaviz/squeeze/internal/bundle/adapters/iconutil"
	"github.com/cochaviz/squeeze/internal/bundle/adapters/native"
	"github.com/cochaviz/squeeze/internal/icon"
	"github.com/cochaviz/squeeze/internal/logging"
	"github.com/cochaviz/squeeze/internal/setup"
)

// Compiler names the icon compiler backend.
type Compiler string

const (
	// CompilerAuto uses iconutil when it is installed and the native encoder otherwise.
	CompilerAuto     Compiler = "auto"
	CompilerIconutil Compiler = "iconutil"
	CompilerNative   Compiler = "native"
)

var DefaultCompiler = CompilerAuto
var DefaultIconTool = setup.IconTool

// BundleOptions is the CLI-level bundle request, before the icon is decoded.
type BundleOptions struct {
	Name           string
	Version        string
	Publisher      string
	IconPath       string
	ExecutablePath string
	DestinationDir string

	Compiler  Compiler
	Overwrite bool

	// Archive also writes <name>.app.tar.gz. ArchiveDir defaults to DestinationDir.
	Archive    bool
	ArchiveDir string
}

// ParseCompiler validates a compiler name; empty selects DefaultCompiler.
func ParseCompiler(value string) (Compiler, error) {
	switch c := Compiler(strings.ToLower(strings.TrimSpace(value))); c {
	case "":
		return DefaultCompiler, nil
	case CompilerAuto, CompilerIconutil, CompilerNative:
		return c, nil
	default:
		return "", fmt.Errorf("unknown icon compiler %q (want auto, iconutil or native)", value)
	}
}

// SelectCompiler builds the icon compiler for name. An explicit iconutil
// selection is returned even when the tool is missing, so the failure
// surfaces from the compile step with the staged icons kept on disk.
func SelectCompiler(name Compiler, logger *slog.Logger) (bundle.IconCompiler, error) {
	logger = logging.Ensure(logger)

	switch name {
	case CompilerIconutil:
		return &iconutil.Compiler{Tool: DefaultIconTool, Logger: logger.With("compiler", "iconutil")}, nil
	case CompilerNative:
		return &native.Compiler{Logger: logger.With("compiler", "native")}, nil
	case CompilerAuto, "":
		tool := &iconutil.Compiler{Tool: DefaultIconTool, Logger: logger.With("compiler", "iconutil")}
		if tool.Available() {
			logger.Debug("using iconutil", "tool", DefaultIconTool)
			return tool, nil
		}
		logger.Debug("iconutil not found, using native encoder", "tool", DefaultIconTool)
		return &native.Compiler{Logger: logger.With("compiler", "native")}, nil
	default:
		return nil, fmt.Errorf("unknown icon compiler %q", name)
	}
}

// BuildBundle checks the required fields, decodes the icon, assembles the
// bundle and optionally archives it. Errors from the pipeline are *bundle.Error.
func BuildBundle(ctx context.Context, opts BundleOptions, logger *slog.Logger) (*bundle.Result, error) {
	logger = logging.Ensure(logger).With("component", "config.simple")

	compiler, err := SelectCompiler(opts.Compiler, logger)
	if err != nil {
		return nil, err
	}

	request := bundle.Request{
		Name:           strings.TrimSpace(opts.Name),
		Version:        strings.TrimSpace(opts.Version),
		Publisher:      strings.TrimSpace(opts.Publisher),
		ExecutablePath: strings.TrimSpace(opts.ExecutablePath),
		DestinationDir: strings.TrimSpace(opts.DestinationDir),
		Overwrite:      opts.Overwrite,
	}

	iconPath := strings.TrimSpace(opts.IconPath)
	if err := bundle.CheckRequired(request, iconPath != ""); err != nil {
		return nil, err
	}

	// decode before anything touches the destination
	if iconPath != "" {
		img, err := icon.Load(iconPath)
		if err != nil {
			if errors.Is(err, icon.ErrEncoding) {
				return nil, &bundle.Error{
					Kind:    bundle.KindImageEncoding,
					Message: bundle.ErrImageEncodingFailed.Message,
					Path:    iconPath,
					Err:     err,
				}
			}
			return nil, &bundle.Error{
				Kind:    bundle.KindFilesystem,
				Message: "The icon cannot be read",
				Path:    iconPath,
				Err:     err,
			}
		}
		request.Icon = img
	}

	assembler := bundle.Assembler{
		Logger:       logger.With("service", "bundle"),
		IconCompiler: compiler,
	}

	result, err := assembler.Assemble(ctx, request)
	if err != nil {
		return result, err
	}

	if opts.Archive {
		if err := attachArchive(result, opts, logger); err != nil {
			return result, err
		}
	}
	return result, nil
}

func attachArchive(result *bundle.Result, opts BundleOptions, logger *slog.Logger) error {
	outputDir := opts.ArchiveDir
	if outputDir == "" {
		outputDir = opts.DestinationDir
	}

	path, size, err := archive.WriteBundle(result.BundlePath, outputDir, time.Now().UTC().Truncate(time.Second))
	if err != nil {
		return &bundle.Error{
			Kind:    bundle.KindFilesystem,
			Message: "Unable to archive the bundle",
			Path:    outputDir,
			Err:     err,
		}
	}

	artifact, err := artifacts.Describe(path, artifacts.ArchiveArtifact)
	if err != nil {
		logger.Warn("unable to describe archive", "archive", path, "error", err)
	} else {
		result.Artifacts = append(result.Artifacts, artifact)
	}
	logger.Info("bundle archived", "archive", path, "uncompressed_bytes", size)
	return nil
}

// Inspect checks an existing bundle on disk.
func Inspect(bundlePath string, logger *slog.Logger) (*bundle.Inspection, error) {
	logger = logging.Ensure(logger).With("component", "config.simple")

	inspection, err := bundle.Inspect(strings.TrimSpace(bundlePath))
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", bundlePath, err)
	}
	for _, problem := range inspection.Problems {
		logger.Warn("bundle problem", "bundle", inspection.Layout.Root, "problem", problem)
	}
	return inspection, nil
}

// VerifyTools reports whether the external icon tool is installed.
func VerifyTools() (setup.ToolStatus, error) {
	return setup.Verify(DefaultIconTool)
}
