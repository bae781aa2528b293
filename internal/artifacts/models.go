package artifacts

type ArtifactKind string

const (
	ExecutableArtifact ArtifactKind = "executable" // The bundled program
	IconArtifact       ArtifactKind = "icon"       // Compiled icon container
	ManifestArtifact   ArtifactKind = "manifest"   // Info.plist descriptor
	ArchiveArtifact    ArtifactKind = "archive"    // Compressed copy of a bundle
)

type Artifact struct {
	ID   string
	Kind ArtifactKind
	URI  string

	Checksum    string
	ContentType string
	Size        int64
	Mode        uint32
}
