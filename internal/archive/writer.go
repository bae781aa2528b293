// Package archive packs a finished bundle into a reproducible tarball.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Extension is appended to the bundle directory name.
const Extension = ".tar.gz"

type entry struct {
	rel  string
	path string
	info fs.FileInfo
}

// WriteBundle archives bundleDir into <outputDir>/<base(bundleDir)>.tar.gz.
// Entries are sorted by path and stamped with ts, so equal bundles produce
// equal archives. It returns the absolute archive path and the total
// uncompressed size of the regular files.
func WriteBundle(bundleDir, outputDir string, ts time.Time) (string, int64, error) {
	entries, err := collect(bundleDir)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	archivePath, err := filepath.Abs(filepath.Join(outputDir, filepath.Base(bundleDir)+Extension))
	if err != nil {
		return "", 0, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	f, err := os.Create(archivePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create archive file: %w", err)
	}

	size, writeErr := write(f, filepath.Base(bundleDir), entries, ts)
	if err := errors.Join(writeErr, f.Close()); err != nil {
		os.Remove(archivePath)
		return "", 0, err
	}
	return archivePath, size, nil
}

func collect(bundleDir string) ([]entry, error) {
	var entries []entry
	err := filepath.WalkDir(bundleDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == bundleDir {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			return fmt.Errorf("%s: unsupported file type %s", path, info.Mode().Type())
		}
		rel, err := filepath.Rel(bundleDir, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{rel: filepath.ToSlash(rel), path: path, info: info})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })
	return entries, nil
}

func write(w io.Writer, root string, entries []entry, ts time.Time) (int64, error) {
	gw := gzip.NewWriter(w)
	gw.ModTime = ts
	tw := tar.NewWriter(gw)

	var total int64
	err := func() error {
		if err := tw.WriteHeader(header(root+"/", tar.TypeDir, 0o755, 0, ts)); err != nil {
			return err
		}
		for _, e := range entries {
			name := root + "/" + e.rel
			mode := int64(e.info.Mode().Perm())
			if e.info.IsDir() {
				if err := tw.WriteHeader(header(name+"/", tar.TypeDir, mode, 0, ts)); err != nil {
					return err
				}
				continue
			}
			if err := tw.WriteHeader(header(name, tar.TypeReg, mode, e.info.Size(), ts)); err != nil {
				return err
			}
			n, err := copyFile(tw, e.path)
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", e.rel, err)
			}
			total += n
		}
		return nil
	}()

	return total, errors.Join(err, tw.Close(), gw.Close())
}

func header(name string, typeflag byte, mode, size int64, ts time.Time) *tar.Header {
	return &tar.Header{
		Typeflag:   typeflag,
		Name:       name,
		Mode:       mode,
		Size:       size,
		ModTime:    ts,
		AccessTime: ts,
		ChangeTime: ts,
		Format:     tar.FormatPAX,
	}
}

func copyFile(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}
