// Package resource provides the byte sources accepted by storage.Store.Put.
package resource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"
)

// File reads from a path on the local filesystem. Size and modification time
// come from the file itself.
type File struct {
	Path string
}

func (f File) Open(context.Context) (io.ReadCloser, error) {
	return os.Open(f.Path)
}

func (f File) Size() (int64, bool) {
	info, err := os.Stat(f.Path)
	if err != nil || !info.Mode().IsRegular() {
		return 0, false
	}
	return info.Size(), true
}

func (f File) ModTime() (time.Time, bool) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// Bytes serves an in-memory buffer.
type Bytes struct {
	Data     []byte
	Modified time.Time
}

func (b Bytes) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

func (b Bytes) Size() (int64, bool) {
	return int64(len(b.Data)), true
}

func (b Bytes) ModTime() (time.Time, bool) {
	return b.Modified, !b.Modified.IsZero()
}

// ErrConsumed is returned when a Stream is opened a second time.
var ErrConsumed = errors.New("stream already consumed")

// Stream wraps a reader whose length is unknown until it has been drained,
// such as standard input. It can be opened once.
type Stream struct {
	mu       sync.Mutex
	r        io.Reader
	modified time.Time
}

// NewStream wraps r. A zero modified means no modification time.
func NewStream(r io.Reader, modified time.Time) *Stream {
	return &Stream{r: r, modified: modified}
}

func (s *Stream) Open(context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r == nil {
		return nil, ErrConsumed
	}
	r := s.r
	s.r = nil

	if rc, ok := r.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(r), nil
}

func (s *Stream) Size() (int64, bool) {
	return 0, false
}

func (s *Stream) ModTime() (time.Time, bool) {
	return s.modified, !s.modified.IsZero()
}
