package bundle

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/cochaviz/squeeze/internal/icon"
	"github.com/cochaviz/squeeze/internal/manifest"
)

type stubCompiler struct {
	calls      int
	stagingDir string
	output     string
	staged     []string
	err        error
	// prepare runs before the stub writes its output.
	prepare func(outputIconFile string)
}

func (s *stubCompiler) Compile(_ context.Context, stagingDir, outputIconFile string) error {
	s.calls++
	s.stagingDir = stagingDir
	s.output = outputIconFile

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		s.staged = append(s.staged, entry.Name())
	}
	sort.Strings(s.staged)

	if s.prepare != nil {
		s.prepare(outputIconFile)
	}
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(outputIconFile, []byte("icns-stub"), 0o644)
}

func squareIcon(size int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	return img
}

func newTestAssembler(compiler IconCompiler) *Assembler {
	return &Assembler{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		IconCompiler: compiler,
	}
}

// newTestRequest returns a valid request backed by a fresh executable and an
// empty destination directory.
func newTestRequest(t *testing.T) Request {
	t.Helper()

	srcDir := t.TempDir()
	exe := filepath.Join(srcDir, "tool-binary")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\necho tool\n"), 0o600); err != nil {
		t.Fatalf("write executable: %v", err)
	}

	return Request{
		Name:           "Tool",
		Version:        "1.0",
		Publisher:      "Acme",
		Icon:           squareIcon(512),
		ExecutablePath: exe,
		DestinationDir: t.TempDir(),
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

func expectedStagedNames() []string {
	var names []string
	for _, spec := range icon.Specs() {
		names = append(names, spec.FileName())
	}
	sort.Strings(names)
	return names
}

func TestAssembleProducesBundle(t *testing.T) {
	t.Parallel()

	request := newTestRequest(t)
	compiler := &stubCompiler{}
	assembler := newTestAssembler(compiler)

	result, err := assembler.Assemble(context.Background(), request)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if result.State != StateDone {
		t.Fatalf("State = %q, want %q", result.State, StateDone)
	}

	bundleDir := filepath.Join(request.DestinationDir, "Tool.app")
	if result.BundlePath != bundleDir {
		t.Fatalf("BundlePath = %q, want %q", result.BundlePath, bundleDir)
	}

	if got, want := listDir(t, bundleDir), []string{"Info.plist", "Tool", "icon.icns"}; !equalStrings(got, want) {
		t.Fatalf("bundle contents = %v, want %v", got, want)
	}

	wantExe, err := os.ReadFile(request.ExecutablePath)
	if err != nil {
		t.Fatalf("read source executable: %v", err)
	}
	gotExe, err := os.ReadFile(filepath.Join(bundleDir, "Tool"))
	if err != nil {
		t.Fatalf("read bundled executable: %v", err)
	}
	if !bytes.Equal(gotExe, wantExe) {
		t.Fatal("bundled executable differs from source")
	}
	info, err := os.Stat(filepath.Join(bundleDir, "Tool"))
	if err != nil {
		t.Fatalf("stat executable: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o775 {
		t.Fatalf("executable mode = %#o, want 0775", perm)
	}

	iconInfo, err := os.Stat(filepath.Join(bundleDir, "icon.icns"))
	if err != nil {
		t.Fatalf("stat icon: %v", err)
	}
	if iconInfo.Size() == 0 {
		t.Fatal("icon container is empty")
	}

	m, err := manifest.Read(filepath.Join(bundleDir, "Info.plist"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if m.Identifier != "bundled-app-Tool" {
		t.Fatalf("CFBundleIdentifier = %q, want bundled-app-Tool", m.Identifier)
	}
	if m.ShortVersion != "1.0" || m.Executable != "Tool" || m.Name != "Tool" {
		t.Fatalf("unexpected manifest %+v", m)
	}

	if compiler.calls != 1 {
		t.Fatalf("compiler calls = %d, want 1", compiler.calls)
	}
	if compiler.stagingDir != filepath.Join(bundleDir, StagingDirName) {
		t.Fatalf("staging dir = %q", compiler.stagingDir)
	}
	if want := expectedStagedNames(); !equalStrings(compiler.staged, want) {
		t.Fatalf("staged files = %v, want %v", compiler.staged, want)
	}
	if _, err := os.Stat(compiler.stagingDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staging dir still present after cleanup: %v", err)
	}

	if len(result.Artifacts) != 3 {
		t.Fatalf("artifacts = %d, want 3", len(result.Artifacts))
	}
}

func TestAssembleMissingValuesWritesNothing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{name: "name", mutate: func(r *Request) { r.Name = "" }},
		{name: "blank name", mutate: func(r *Request) { r.Name = "   " }},
		{name: "version", mutate: func(r *Request) { r.Version = "" }},
		{name: "publisher", mutate: func(r *Request) { r.Publisher = "" }},
		{name: "icon", mutate: func(r *Request) { r.Icon = nil }},
		{name: "executable", mutate: func(r *Request) { r.ExecutablePath = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			request := newTestRequest(t)
			tc.mutate(&request)
			compiler := &stubCompiler{}

			result, err := newTestAssembler(compiler).Assemble(context.Background(), request)
			if !errors.Is(err, ErrMissingValues) {
				t.Fatalf("Assemble() error = %v, want ErrMissingValues", err)
			}
			if result.State != StateFailed {
				t.Fatalf("State = %q, want %q", result.State, StateFailed)
			}
			if entries := listDir(t, request.DestinationDir); len(entries) != 0 {
				t.Fatalf("destination has entries %v, want none", entries)
			}
			if compiler.calls != 0 {
				t.Fatalf("compiler invoked %d times", compiler.calls)
			}
		})
	}
}

func TestAssembleRejectsUnusablePaths(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(t *testing.T, r *Request)
	}{
		{name: "missing executable", mutate: func(t *testing.T, r *Request) {
			r.ExecutablePath = filepath.Join(t.TempDir(), "absent")
		}},
		{name: "executable is directory", mutate: func(t *testing.T, r *Request) {
			r.ExecutablePath = t.TempDir()
		}},
		{name: "missing destination", mutate: func(t *testing.T, r *Request) {
			r.DestinationDir = filepath.Join(t.TempDir(), "nope")
		}},
		{name: "name with separator", mutate: func(t *testing.T, r *Request) {
			r.Name = "../escape"
		}},
		{name: "name is manifest", mutate: func(t *testing.T, r *Request) {
			r.Name = manifest.FileName
		}},
		{name: "name is icon container", mutate: func(t *testing.T, r *Request) {
			r.Name = manifest.IconFileName
		}},
		{name: "name is staging dir", mutate: func(t *testing.T, r *Request) {
			r.Name = StagingDirName
		}},
		{name: "name differs only in case", mutate: func(t *testing.T, r *Request) {
			r.Name = "info.PLIST"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			request := newTestRequest(t)
			tc.mutate(t, &request)
			compiler := &stubCompiler{}

			result, err := newTestAssembler(compiler).Assemble(context.Background(), request)
			if !errors.Is(err, ErrFilesystem) {
				t.Fatalf("Assemble() error = %v, want ErrFilesystem", err)
			}
			if result.State != StateFailed {
				t.Fatalf("State = %q, want %q", result.State, StateFailed)
			}
			if compiler.calls != 0 {
				t.Fatalf("compiler invoked %d times", compiler.calls)
			}
			if info, err := os.Stat(request.DestinationDir); err == nil && info.IsDir() {
				if entries := listDir(t, request.DestinationDir); len(entries) != 0 {
					t.Fatalf("destination has entries %v, want none", entries)
				}
			}
		})
	}
}

func TestCheckRequired(t *testing.T) {
	t.Parallel()

	request := newTestRequest(t)
	request.Icon = nil

	if err := CheckRequired(request, true); err != nil {
		t.Fatalf("CheckRequired() error = %v", err)
	}

	request.Name = " "
	err := CheckRequired(request, false)
	if !errors.Is(err, ErrMissingValues) {
		t.Fatalf("CheckRequired() error = %v, want ErrMissingValues", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "name, icon") {
		t.Fatalf("CheckRequired() message = %q, want name and icon listed", msg)
	}
}

func TestAssembleImageFailureStopsBeforeCompiler(t *testing.T) {
	t.Parallel()

	request := newTestRequest(t)
	request.Icon = image.NewRGBA(image.Rect(0, 0, 0, 0))
	compiler := &stubCompiler{}

	result, err := newTestAssembler(compiler).Assemble(context.Background(), request)
	if !errors.Is(err, ErrImageEncodingFailed) {
		t.Fatalf("Assemble() error = %v, want ErrImageEncodingFailed", err)
	}
	if !errors.Is(err, icon.ErrEncoding) {
		t.Fatalf("Assemble() error = %v, want wrapped icon.ErrEncoding", err)
	}
	if compiler.calls != 0 {
		t.Fatalf("compiler invoked %d times", compiler.calls)
	}

	for _, name := range []string{"icon.icns", "Info.plist", StagingDirName} {
		if _, err := os.Stat(filepath.Join(result.BundlePath, name)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s exists after image failure: %v", name, err)
		}
	}
}

func TestAssembleCompilerFailurePreservesStaging(t *testing.T) {
	t.Parallel()

	request := newTestRequest(t)
	compiler := &stubCompiler{err: errors.New("iconutil: exit status 1")}

	result, err := newTestAssembler(compiler).Assemble(context.Background(), request)
	if !errors.Is(err, ErrToolInvocationFailed) {
		t.Fatalf("Assemble() error = %v, want ErrToolInvocationFailed", err)
	}

	var assemblyErr *Error
	if !errors.As(err, &assemblyErr) {
		t.Fatalf("error %T is not *Error", err)
	}
	staging := filepath.Join(result.BundlePath, StagingDirName)
	if assemblyErr.Path != staging {
		t.Fatalf("error path = %q, want %q", assemblyErr.Path, staging)
	}

	if got, want := listDir(t, staging), expectedStagedNames(); !equalStrings(got, want) {
		t.Fatalf("staging contents = %v, want %v", got, want)
	}
	if _, err := os.Stat(filepath.Join(result.BundlePath, "Info.plist")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("manifest written after compiler failure: %v", err)
	}
}

func TestAssembleExistingBundle(t *testing.T) {
	t.Parallel()

	request := newTestRequest(t)
	assembler := newTestAssembler(&stubCompiler{})

	if _, err := assembler.Assemble(context.Background(), request); err != nil {
		t.Fatalf("first Assemble() error = %v", err)
	}

	if _, err := assembler.Assemble(context.Background(), request); !errors.Is(err, ErrFilesystem) {
		t.Fatalf("second Assemble() error = %v, want ErrFilesystem", err)
	}

	request.Overwrite = true
	request.Version = "2.0"
	result, err := assembler.Assemble(context.Background(), request)
	if err != nil {
		t.Fatalf("overwrite Assemble() error = %v", err)
	}
	m, err := manifest.Read(result.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if m.ShortVersion != "2.0" {
		t.Fatalf("ShortVersion = %q, want 2.0", m.ShortVersion)
	}
}

func TestAssembleManifestWriteFailureIsReported(t *testing.T) {
	t.Parallel()

	request := newTestRequest(t)
	compiler := &stubCompiler{
		prepare: func(outputIconFile string) {
			// occupy the manifest path so the write fails
			_ = os.Mkdir(filepath.Join(filepath.Dir(outputIconFile), "Info.plist"), 0o755)
		},
	}

	result, err := newTestAssembler(compiler).Assemble(context.Background(), request)
	if !errors.Is(err, ErrFilesystem) {
		t.Fatalf("Assemble() error = %v, want ErrFilesystem", err)
	}
	if result == nil {
		t.Fatal("Result is nil on manifest failure")
	}
	if result.State != StateFailed {
		t.Fatalf("State = %q, want %q", result.State, StateFailed)
	}
	if result.Executable == "" || result.IconFile == "" {
		t.Fatalf("bundle paths missing from result: %+v", result)
	}
	if result.ManifestPath != "" {
		t.Fatalf("ManifestPath = %q, want empty", result.ManifestPath)
	}
	if result.Manifest.Identifier != "bundled-app-Tool" {
		t.Fatalf("Manifest.Identifier = %q", result.Manifest.Identifier)
	}
}

func TestAssembleRequiresCompiler(t *testing.T) {
	t.Parallel()

	request := newTestRequest(t)
	_, err := newTestAssembler(nil).Assemble(context.Background(), request)
	if !errors.Is(err, ErrToolInvocationFailed) {
		t.Fatalf("Assemble() error = %v, want ErrToolInvocationFailed", err)
	}
	if entries := listDir(t, request.DestinationDir); len(entries) != 0 {
		t.Fatalf("destination has entries %v, want none", entries)
	}
}

func TestAssembleKeepsSpacesInName(t *testing.T) {
	t.Parallel()

	request := newTestRequest(t)
	request.Name = "My App"
	compiler := IconCompilerFunc(func(_ context.Context, _, out string) error {
		return os.WriteFile(out, []byte("icns"), 0o644)
	})

	result, err := newTestAssembler(compiler).Assemble(context.Background(), request)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if want := filepath.Join(request.DestinationDir, "My App.app", "My App"); result.Executable != want {
		t.Fatalf("Executable = %q, want %q", result.Executable, want)
	}
	if result.Manifest.Identifier != "bundled-app-MyApp" {
		t.Fatalf("Identifier = %q, want bundled-app-MyApp", result.Manifest.Identifier)
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	request := newTestRequest(t)
	result, err := newTestAssembler(&stubCompiler{}).Assemble(context.Background(), request)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	inspection, err := Inspect(result.BundlePath)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if !inspection.OK() {
		t.Fatalf("Inspect() problems = %v", inspection.Problems)
	}
	if inspection.Manifest.Identifier != "bundled-app-Tool" {
		t.Fatalf("Identifier = %q", inspection.Manifest.Identifier)
	}

	if err := os.Chmod(result.Executable, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := os.Remove(result.ManifestPath); err != nil {
		t.Fatalf("remove manifest: %v", err)
	}

	inspection, err = Inspect(result.BundlePath)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if inspection.OK() {
		t.Fatal("Inspect() reported a damaged bundle as OK")
	}
	if len(inspection.Problems) < 2 {
		t.Fatalf("Problems = %v, want mode and manifest problems", inspection.Problems)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
