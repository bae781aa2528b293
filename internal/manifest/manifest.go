// Package manifest derives and serialises the Info.plist descriptor that the
// OS loader reads to find a bundle's executable, icon and identity.
package manifest

import (
	"fmt"
	"os"
	"strings"

	"howett.net/plist"
)

const (
	// FileName is the manifest's location relative to the bundle root.
	FileName = "Info.plist"
	// IconFileName is the compiled icon container referenced by every manifest.
	IconFileName = "icon.icns"
	// IdentifierPrefix is prepended to the compacted bundle name.
	IdentifierPrefix = "bundled-app-"
)

// Manifest holds the property-list keys written for a bundle.
type Manifest struct {
	Executable   string `plist:"CFBundleExecutable"`
	IconFile     string `plist:"CFBundleIconFile"`
	Identifier   string `plist:"CFBundleIdentifier"`
	Name         string `plist:"CFBundleName"`
	ShortVersion string `plist:"CFBundleShortVersionString"`
}

// New derives the manifest for a bundle called name at version.
func New(name, version string) Manifest {
	return Manifest{
		Executable:   name,
		IconFile:     IconFileName,
		Identifier:   Identifier(name),
		Name:         name,
		ShortVersion: version,
	}
}

// Identifier returns IdentifierPrefix followed by name with every space removed.
func Identifier(name string) string {
	return IdentifierPrefix + strings.ReplaceAll(name, " ", "")
}

// Marshal encodes the manifest as an XML property list.
func (m Manifest) Marshal() ([]byte, error) {
	data, err := plist.MarshalIndent(m, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// Decode parses a property list in any of the supported plist formats.
func Decode(data []byte) (Manifest, error) {
	var m Manifest
	if _, err := plist.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// Read loads and decodes the manifest stored at path.
func Read(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	return Decode(data)
}
