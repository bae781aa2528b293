package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	config "github.com/cochaviz/squeeze/config"
	"github.com/cochaviz/squeeze/internal/artifacts"
	"github.com/cochaviz/squeeze/internal/bundle"
	"github.com/cochaviz/squeeze/internal/logging"
	"github.com/cochaviz/squeeze/internal/setup"
)

const (
	defaultLogLevel  = "warning"
	defaultLogFormat = "cli"
)

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &app{stderr: os.Stderr, level: &levelVar}
	app.setLogger(logging.NewCLI(os.Stderr, &levelVar))

	root := app.rootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			app.logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		app.logger.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// app carries the root logger, which is rebuilt once the persistent flags
// are parsed.
type app struct {
	stderr io.Writer
	level  *slog.LevelVar
	logger *slog.Logger
}

func (a *app) setLogger(logger *slog.Logger) {
	a.logger = logger
	slog.SetDefault(logger)
	setup.SetLogger(logger.With("component", "setup"))
}

func (a *app) rootCommand() *cobra.Command {
	logLevel := defaultLogLevel
	logFormat := defaultLogFormat

	root := &cobra.Command{
		Use:           "squeeze",
		Short:         "Package an executable and an icon into a macOS application bundle",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", defaultLogFormat, "Set log output format (cli, json)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		mode, err := logging.ParseMode(logFormat)
		if err != nil {
			return err
		}
		a.level.Set(level)
		a.setLogger(logging.New(mode, a.stderr, a.level))
		return nil
	}

	root.AddCommand(
		a.bundleCommand(),
		a.inspectCommand(),
		a.verifyCommand(),
	)
	return root
}

func (a *app) bundleCommand() *cobra.Command {
	var (
		requestPath string
		flags       config.BundleOptions
		compiler    string
	)

	cmd := &cobra.Command{
		Use:   "bundle",
		Args:  cobra.NoArgs,
		Short: "Assemble <name>.app from an executable and an icon",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.BundleOptions{Compiler: config.DefaultCompiler}
			if path := strings.TrimSpace(requestPath); path != "" {
				loaded, err := config.LoadRequest(path)
				if err != nil {
					return err
				}
				opts = loaded
			}

			flagCompiler, err := config.ParseCompiler(compiler)
			if err != nil {
				return err
			}
			flags.Compiler = flagCompiler
			applyFlagOverrides(cmd, &opts, flags)

			cmdLogger := a.logger.With("command", "bundle", "bundle", opts.Name)
			cmdLogger.Info("starting bundle",
				"destination", opts.DestinationDir,
				"compiler", opts.Compiler,
				"archive", opts.Archive,
			)

			result, err := config.BuildBundle(cmd.Context(), opts, cmdLogger)
			if result != nil && result.State == bundle.StateDone {
				printArtifacts(cmd.OutOrStdout(), result.BundlePath, result.Artifacts)
			}
			if err != nil {
				var bundleErr *bundle.Error
				if errors.As(err, &bundleErr) && bundleErr.Kind == bundle.KindMissingValues {
					cmdLogger.Info("provide the missing values with flags or --request")
				}
				return err
			}

			cmdLogger.Info("bundle completed", "bundle_path", result.BundlePath, "run_id", result.RunID)
			return nil
		},
	}

	cmd.Flags().StringVar(&requestPath, "request", "", "YAML file describing the bundle; flags override its values")
	cmd.Flags().StringVar(&flags.Name, "name", "", "Application name, used for the bundle directory and executable")
	cmd.Flags().StringVar(&flags.Version, "version", "", "Version written to CFBundleShortVersionString")
	cmd.Flags().StringVar(&flags.Publisher, "publisher", "", "Publisher of the application")
	cmd.Flags().StringVar(&flags.IconPath, "icon", "", "Source image for the icon (png, jpeg, gif, bmp, tiff, ico, icns)")
	cmd.Flags().StringVar(&flags.ExecutablePath, "exec", "", "Executable to copy into the bundle")
	cmd.Flags().StringVar(&flags.DestinationDir, "dest", "", "Directory in which <name>.app is created")
	cmd.Flags().StringVar(&compiler, "compiler", "", "Icon compiler (auto, iconutil, native)")
	cmd.Flags().BoolVarP(&flags.Overwrite, "force", "f", false, "Replace an existing bundle with the same name")
	cmd.Flags().BoolVar(&flags.Archive, "archive", false, "Also write <name>.app.tar.gz next to the bundle")
	cmd.Flags().StringVar(&flags.ArchiveDir, "archive-dir", "", "Directory for the archive (defaults to --dest)")

	return cmd
}

// applyFlagOverrides copies every explicitly set flag over the request values.
func applyFlagOverrides(cmd *cobra.Command, opts *config.BundleOptions, flags config.BundleOptions) {
	changed := cmd.Flags().Changed
	if changed("name") {
		opts.Name = flags.Name
	}
	if changed("version") {
		opts.Version = flags.Version
	}
	if changed("publisher") {
		opts.Publisher = flags.Publisher
	}
	if changed("icon") {
		opts.IconPath = flags.IconPath
	}
	if changed("exec") {
		opts.ExecutablePath = flags.ExecutablePath
	}
	if changed("dest") {
		opts.DestinationDir = flags.DestinationDir
	}
	if changed("compiler") {
		opts.Compiler = flags.Compiler
	}
	if changed("force") {
		opts.Overwrite = flags.Overwrite
	}
	if changed("archive") {
		opts.Archive = flags.Archive
	}
	if changed("archive-dir") {
		opts.ArchiveDir = flags.ArchiveDir
	}
}

func (a *app) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <path.app>",
		Args:  cobra.ExactArgs(1),
		Short: "Check an existing bundle and print its contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := a.logger.With("command", "inspect")

			inspection, err := config.Inspect(args[0], cmdLogger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			m := inspection.Manifest
			fmt.Fprintf(out, "name:\t%s\nversion:\t%s\nidentifier:\t%s\n", m.Name, m.ShortVersion, m.Identifier)
			printArtifacts(out, inspection.Layout.Root, inspection.Artifacts)

			if !inspection.OK() {
				for _, problem := range inspection.Problems {
					fmt.Fprintf(out, "problem:\t%s\n", problem)
				}
				return fmt.Errorf("bundle %s has %d problem(s)", inspection.Layout.Root, len(inspection.Problems))
			}
			return nil
		},
	}
}

func (a *app) verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check whether the external icon compiler is installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := a.logger.With("command", "verify")

			status, err := config.VerifyTools()
			if err != nil {
				cmdLogger.Warn("icon tool unavailable; --compiler auto falls back to the native encoder", "error", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", status.Name, status.Path)
			return nil
		},
	}
}

// printArtifacts lists collected with paths relative to bundlePath.
func printArtifacts(out io.Writer, bundlePath string, collected []artifacts.Artifact) {
	fmt.Fprintln(out, bundlePath)
	for _, artifact := range collected {
		location := artifact.URI
		if path, err := artifacts.PathFromURI(artifact.URI); err == nil {
			if rel, err := filepath.Rel(bundlePath, path); err == nil {
				location = rel
			}
		}
		fmt.Fprintf(out, "%s\t%s\t%d\tsha256:%s\n", artifact.Kind, location, artifact.Size, artifact.Checksum)
	}
}
