package simple

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RequestFile is the YAML form of a bundle request.
type RequestFile struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Publisher   string `yaml:"publisher"`
	Icon        string `yaml:"icon"`
	Executable  string `yaml:"executable"`
	Destination string `yaml:"destination"`
	Compiler    string `yaml:"compiler,omitempty"`
	Overwrite   bool   `yaml:"overwrite,omitempty"`
	Archive     bool   `yaml:"archive,omitempty"`
}

// LoadRequest reads a YAML request. Relative paths resolve against the
// directory holding the file; unknown keys are rejected.
func LoadRequest(path string) (BundleOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BundleOptions{}, fmt.Errorf("read request %s: %w", path, err)
	}

	var file RequestFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return BundleOptions{}, fmt.Errorf("parse request %s: %w", path, err)
	}

	compiler, err := ParseCompiler(file.Compiler)
	if err != nil {
		return BundleOptions{}, fmt.Errorf("request %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	return BundleOptions{
		Name:           strings.TrimSpace(file.Name),
		Version:        strings.TrimSpace(file.Version),
		Publisher:      strings.TrimSpace(file.Publisher),
		IconPath:       resolvePath(baseDir, file.Icon),
		ExecutablePath: resolvePath(baseDir, file.Executable),
		DestinationDir: resolvePath(baseDir, file.Destination),
		Compiler:       compiler,
		Overwrite:      file.Overwrite,
		Archive:        file.Archive,
	}, nil
}

func resolvePath(baseDir, value string) string {
	value = strings.TrimSpace(value)
	if value == "" || filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(baseDir, value)
}
