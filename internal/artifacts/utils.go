package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const fileScheme = "file://"

// FileURI returns the file:// URI for path.
func FileURI(path string) string {
	return fileScheme + path
}

// PathFromURI extracts the local path from a file:// URI.
func PathFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, fileScheme) {
		return "", errors.New("not a file:// URI")
	}
	return strings.TrimPrefix(uri, fileScheme), nil
}

// Describe inspects the file at path and returns it as an artifact of kind,
// with a fresh ID and its SHA-256 checksum.
func Describe(path string, kind ArtifactKind) (Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return Artifact{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Artifact{}, err
	}
	if !info.Mode().IsRegular() {
		return Artifact{}, fmt.Errorf("%s is not a regular file", path)
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return Artifact{}, fmt.Errorf("checksum %s: %w", path, err)
	}

	return Artifact{
		ID:          uuid.NewString(),
		Kind:        kind,
		URI:         FileURI(path),
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
		ContentType: detectContentType(path, kind),
		Size:        info.Size(),
		Mode:        uint32(info.Mode().Perm()),
	}, nil
}

func detectContentType(path string, kind ArtifactKind) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".icns":
		return "image/x-icns"
	case ".plist":
		return "application/x-plist"
	case ".gz":
		return "application/gzip"
	}
	if kind == ExecutableArtifact {
		return "application/x-executable"
	}
	return "application/octet-stream"
}
