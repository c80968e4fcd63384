// Package filex holds small filesystem helpers for the client binary.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDirs creates the parent directory of every path with owner-only
// permissions. Relative paths resolve against the working directory.
func EnsureParentDirs(paths ...string) error {
	for _, p := range paths {
		dir := filepath.Dir(p)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}
