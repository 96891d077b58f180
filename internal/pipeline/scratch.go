package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/franckalain/scaneats/internal/models"
)

// scratchFile is the on-disk copy of one run's image. It lives from the
// Image Source handoff until release, which every exit path reaches.
type scratchFile struct {
	path   string
	logger *slog.Logger
}

func spool(dir string, img models.RawImage, logger *slog.Logger) (*scratchFile, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "scan-*"+safeExt(img.Name))
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	sf := &scratchFile{path: f.Name(), logger: logger}
	if _, err := f.Write(img.Data); err != nil {
		f.Close()
		sf.release()
		return nil, fmt.Errorf("write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		sf.release()
		return nil, fmt.Errorf("close scratch file: %w", err)
	}
	return sf, nil
}

// replace overwrites the file with data, e.g. after preprocessing.
func (f *scratchFile) replace(data []byte) error {
	return os.WriteFile(f.path, data, 0o600)
}

func (f *scratchFile) release() {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Warn("Failed to delete scratch file", slog.String("path", f.path), slog.String("error", err.Error()))
		return
	}
	f.logger.Debug("Deleted scratch file", slog.String("path", f.path))
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 6 || strings.ContainsAny(ext, `/\*`) {
		return ""
	}
	return ext
}
