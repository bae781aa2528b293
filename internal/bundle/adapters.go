package bundle

import "context"

// IconCompiler packs a staged .iconset directory into a single icon container.
type IconCompiler interface {
	Compile(ctx context.Context, stagingDir, outputIconFile string) error
}

// IconCompilerFunc adapts a plain function to IconCompiler.
type IconCompilerFunc func(ctx context.Context, stagingDir, outputIconFile string) error

// Compile calls f.
func (f IconCompilerFunc) Compile(ctx context.Context, stagingDir, outputIconFile string) error {
	return f(ctx, stagingDir, outputIconFile)
}
