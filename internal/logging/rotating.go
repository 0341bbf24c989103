package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotatingFile is an io.Writer that rotates path by size. When a write
// would push the file past maxBytes, path.(n-1) is renamed to path.n (for n
// down to 1), path becomes path.1 and a new path is created. At most
// backups rotated files are kept.
type RotatingFile struct {
	path     string
	maxBytes int64
	backups  int

	mu      sync.Mutex
	f       *os.File
	curSize int64
}

// NewRotatingFile returns a writer for path. The file is created on the
// first write. A maxBytes <= 0 means 10 MiB.
func NewRotatingFile(path string, maxBytes int64, backups int) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	if backups < 0 {
		backups = 0
	}
	return &RotatingFile{path: path, maxBytes: maxBytes, backups: backups}
}

// Path returns the active log file path.
func (w *RotatingFile) Path() string { return w.path }

func (w *RotatingFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureOpen(); err != nil {
		return 0, err
	}
	if w.curSize > 0 && w.curSize+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.f.Write(p)
	w.curSize += int64(n)
	return n, err
}

func (w *RotatingFile) ensureOpen() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	if st, err := f.Stat(); err == nil {
		w.curSize = st.Size()
	} else {
		w.curSize = 0
	}
	return nil
}

func (w *RotatingFile) rotate() error {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}

	if w.backups == 0 {
		if err := os.Truncate(w.path, 0); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("truncate log file: %w", err)
		}
		return w.ensureOpen()
	}

	_ = os.Remove(fmt.Sprintf("%s.%d", w.path, w.backups))
	for i := w.backups - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", w.path, i)
		if _, err := os.Stat(src); err == nil {
			if err := os.Rename(src, fmt.Sprintf("%s.%d", w.path, i+1)); err != nil {
				return fmt.Errorf("rename rotated file: %w", err)
			}
		}
	}
	if err := os.Rename(w.path, w.path+".1"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename rotated file: %w", err)
	}
	return w.ensureOpen()
}

// Close closes the current file handle.
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f != nil {
		err := w.f.Close()
		w.f = nil
		return err
	}
	return nil
}
