// Package staging materializes uploaded byte streams to a temporary
// directory before they are forwarded to the summarization engine, and
// guarantees their removal once the owning request finishes.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnsupportedType is returned for filenames outside the allow-list.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrTooLarge is returned when an upload exceeds the size ceiling.
	ErrTooLarge = errors.New("file exceeds the maximum allowed size")
)

// Manager stages uploads under a single directory created at startup.
// Re-running the ensure-exists step is safe.
type Manager struct {
	dir      string
	maxBytes int64
	allowed  map[string]struct{}
}

// New creates the staging directory if missing and returns a Manager.
func New(dir string, maxBytes int64, allowedExtensions []string) (*Manager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("staging dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	if len(allowedExtensions) == 0 {
		allowedExtensions = []string{".txt", ".pdf", ".docx"}
	}
	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &Manager{dir: dir, maxBytes: maxBytes, allowed: allowed}, nil
}

// Dir returns the staging directory path.
func (m *Manager) Dir() string { return m.dir }

// MaxBytes returns the upload size ceiling.
func (m *Manager) MaxBytes() int64 { return m.maxBytes }

// CheckFilename validates the file extension against the allow-list,
// case-insensitively.
func (m *Manager) CheckFilename(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := m.allowed[ext]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// Artifact is one staged file. Remove deletes it from the staging area and
// is safe to call from multiple exit paths; only the first call deletes.
type Artifact struct {
	Path         string
	OriginalName string
	SizeBytes    int64

	removeOnce sync.Once
	removeErr  error
}

// Stage validates and writes the upload to the staging directory. Nothing is
// written when validation fails. declaredSize may be negative when unknown;
// the ceiling is then enforced while copying.
func (m *Manager) Stage(filename string, r io.Reader, declaredSize int64) (*Artifact, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." {
		return nil, fmt.Errorf("filename is required")
	}
	if err := m.CheckFilename(name); err != nil {
		return nil, err
	}
	if declaredSize > m.maxBytes {
		return nil, ErrTooLarge
	}

	// Arrival time plus original name keeps keys practically unique.
	// Same-millisecond collisions on identical names are an accepted risk.
	key := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), name)
	path := filepath.Join(m.dir, key)

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	written, err := io.Copy(out, io.LimitReader(r, m.maxBytes+1))
	closeErr := out.Close()
	if err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write staged file: %w", err)
	}
	if written > m.maxBytes {
		_ = os.Remove(path)
		return nil, ErrTooLarge
	}
	return &Artifact{Path: path, OriginalName: name, SizeBytes: written}, nil
}

// Open returns a read handle on the staged file.
func (a *Artifact) Open() (*os.File, error) {
	return os.Open(a.Path)
}

// Remove deletes the staged file exactly once.
func (a *Artifact) Remove() error {
	a.removeOnce.Do(func() {
		a.removeErr = os.Remove(a.Path)
	})
	return a.removeErr
}
