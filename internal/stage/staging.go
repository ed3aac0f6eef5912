package stage

import (
	"fmt"
	"os"
	"path/filepath"
)

// stagingDir is the temporary package root productbuild reads from.
type stagingDir struct {
	root string
}

func newStagingDir(parent string) (*stagingDir, error) {
	dir, err := os.MkdirTemp(parent, "macsign-pkg-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to resolve staging directory: %w", err)
	}

	return &stagingDir{root: root}, nil
}

// Target returns where files installed at installPath are staged.
// installPath must be absolute.
func (d *stagingDir) Target(installPath string) string {
	return filepath.Join(d.root, installPath)
}

// Release removes the staging directory and everything in it.
func (d *stagingDir) Release() error {
	if err := os.RemoveAll(d.root); err != nil {
		return fmt.Errorf("failed to remove staging directory %s: %w", d.root, err)
	}
	return nil
}
