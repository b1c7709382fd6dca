package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// DefaultMaxSize is the size at which a log file is rotated.
	DefaultMaxSize = 10 * 1024 * 1024 // 10 MiB
	// DefaultMaxBackups is how many rotated files are kept around.
	DefaultMaxBackups = 3
)

// RotatingFile is an io.WriteCloser for debug logs. Once the current file
// grows past the size limit it is renamed to <path>.1 and a fresh file is
// opened; older backups shift to .2, .3, ... up to the backup limit.
type RotatingFile struct {
	path       string
	maxSize    int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

type Option func(*RotatingFile)

func WithMaxSize(size int64) Option {
	return func(r *RotatingFile) { r.maxSize = size }
}

func WithMaxBackups(count int) Option {
	return func(r *RotatingFile) { r.maxBackups = count }
}

// NewRotatingFile opens (or creates) the log file at path, creating parent
// directories as needed. The file is opened in append mode so restarts keep
// prior log content.
func NewRotatingFile(path string, opts ...Option) (*RotatingFile, error) {
	r := &RotatingFile{
		path:       path,
		maxSize:    DefaultMaxSize,
		maxBackups: DefaultMaxBackups,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

func (r *RotatingFile) open() error {
	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	r.file = file
	r.size = info.Size()
	return nil
}

func (r *RotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}

	_ = os.Remove(fmt.Sprintf("%s.%d", r.path, r.maxBackups))
	for i := r.maxBackups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", r.path, i), fmt.Sprintf("%s.%d", r.path, i+1))
	}
	if err := os.Rename(r.path, r.path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}

	r.size = 0
	return r.open()
}
