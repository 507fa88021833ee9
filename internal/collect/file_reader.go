package collect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileReader reads job output from a filesystem visible to this process,
// typically the cluster's shared filesystem.
type FileReader struct {
	// Root is prepended to relative output paths; empty means the working
	// directory.
	Root string
}

func (r FileReader) ReadOutput(_ context.Context, path string) (string, error) {
	if !filepath.IsAbs(path) && r.Root != "" {
		path = filepath.Join(r.Root, path)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", ErrNotAvailable
	}
	if err != nil {
		return "", fmt.Errorf("read output %s: %w", path, err)
	}
	return string(data), nil
}
