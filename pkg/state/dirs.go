package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths is the canonical runtime folder layout under the cache path.
type Paths struct {
	Store     string
	State     string
	Retention string
}

// EnsureDirs creates the runtime layout under cachePath and verifies the
// paths are usable directories, not symlinks.
func EnsureDirs(cachePath string) (Paths, error) {
	p := Paths{
		Store:     filepath.Join(cachePath, "store"),
		State:     filepath.Join(cachePath, "state"),
		Retention: filepath.Join(cachePath, "state", "retention"),
	}
	for _, dir := range []string{p.Store, p.State, p.Retention} {
		if fi, err := os.Lstat(dir); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return Paths{}, fmt.Errorf("path is a symlink: %s", dir)
			}
			if !fi.IsDir() {
				return Paths{}, fmt.Errorf("path exists and is not a directory: %s", dir)
			}
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return Paths{}, fmt.Errorf("cannot create path %s: %w", dir, err)
		}
		tmp, err := os.CreateTemp(dir, ".validate-*")
		if err != nil {
			return Paths{}, fmt.Errorf("path not writable: %s: %w", dir, err)
		}
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	return p, nil
}
