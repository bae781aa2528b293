//go:build !unix

package bundle

import (
	"fmt"
	"os"
)

// checkWritable reads the owner write bit where access(2) is unavailable. On
// Windows the bit mirrors the read-only attribute.
func checkWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0o200 == 0 {
		return fmt.Errorf("%s is not writable: read-only", dir)
	}
	return nil
}
