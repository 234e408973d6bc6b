package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/geocoder89/mealplanner/internal/fsutil"
)

// FileSink writes exports into a local directory.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Put(_ context.Context, key, _ string, body []byte) error {
	if key != filepath.Base(key) {
		return fmt.Errorf("export key %q must be a plain file name", key)
	}
	return fsutil.WriteFileAtomic(filepath.Join(s.dir, key), body, 0o644)
}
