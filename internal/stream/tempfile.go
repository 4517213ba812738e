package stream

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

const tempPattern = "relastore-*.tmp"

// TempFile is a private scratch file that is deleted when closed. If the
// deletion fails the path is remembered and retried by CleanupTempFiles.
type TempFile struct {
	*os.File
	logger *slog.Logger
	once   sync.Once
	err    error
}

// CreateTemp creates a scratch file in dir (the system default when empty)
// readable and writable by the owner only. Failing to restrict the
// permissions is logged and otherwise ignored.
func CreateTemp(dir string, logger *slog.Logger) (*TempFile, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return nil, err
	}

	if err := f.Chmod(0o600); err != nil {
		logger.Debug("Could not restrict temp file permissions", "path", f.Name(), "err", err)
	}

	logger.Debug("Created temp file", "path", f.Name())
	return &TempFile{File: f, logger: logger}, nil
}

// Close closes and deletes the file. Deletion failures are never returned.
func (t *TempFile) Close() error {
	t.once.Do(func() {
		t.err = t.File.Close()
		removeOrDefer(t.Name(), t.logger)
	})
	return t.err
}

var pending = struct {
	sync.Mutex
	paths map[string]struct{}
}{paths: map[string]struct{}{}}

func removeOrDefer(path string, logger *slog.Logger) {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		logger.Debug("Deleted temp file", "path", path)
		return
	}

	logger.Warn("Could not delete temp file, retrying at exit", "path", path, "err", err)

	pending.Lock()
	pending.paths[path] = struct{}{}
	pending.Unlock()
}

// PendingTempFiles returns the temp files whose deletion has been deferred.
func PendingTempFiles() []string {
	pending.Lock()
	defer pending.Unlock()

	paths := make([]string, 0, len(pending.paths))
	for path := range pending.paths {
		paths = append(paths, path)
	}
	return paths
}

// CleanupTempFiles makes a final best-effort attempt at deleting temp files
// that could not be deleted on close. Host programs defer it from main.
func CleanupTempFiles() {
	pending.Lock()
	defer pending.Unlock()

	for path := range pending.paths {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Temp file left behind", "path", path, "err", err)
			continue
		}
		delete(pending.paths, path)
	}
}
