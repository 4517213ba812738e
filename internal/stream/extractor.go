package stream

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"relastore/internal/container"
)

// Rows is the part of *sql.Rows an extractor needs.
type Rows interface {
	Scan(dest ...any) error
	Close() error
}

// Extractor stages the blob column of the current row. The blob column is
// scanned after dest, so it must be the last selected column. Extract takes
// ownership of rows: they are closed no later than the returned Blob.
type Extractor interface {
	Extract(rows Rows, dest ...any) (Blob, error)
}

// Blob is staged container bytes awaiting decode.
type Blob interface {
	// Open decodes the blob. Closing the returned stream releases the blob.
	Open(p container.DecodeParams) (io.ReadCloser, error)
	// Close releases the blob without decoding it.
	Close() error
}

// ParseExtractor builds the extractor with the given name: direct, memory or
// file.
func ParseExtractor(name string, o Options) (Extractor, error) {
	switch name {
	case "direct", "":
		return DirectExtractor{}, nil
	case "memory":
		return MemoryExtractor{}, nil
	case "file":
		return FileExtractor{Dir: o.TempDir, Logger: o.Logger}, nil
	default:
		return nil, fmt.Errorf("unknown blob extractor: %q", name)
	}
}

func scanWithBlob(rows Rows, blob any, dest []any) error {
	all := make([]any, 0, len(dest)+1)
	all = append(all, dest...)
	all = append(all, blob)
	return rows.Scan(all...)
}

// DirectExtractor decodes straight from the driver's column buffer. The row
// cursor, and with it the connection, stays open until the stream is closed.
type DirectExtractor struct{}

func (DirectExtractor) Extract(rows Rows, dest ...any) (Blob, error) {
	var raw sql.RawBytes
	if err := scanWithBlob(rows, &raw, dest); err != nil {
		_ = rows.Close()
		return nil, err
	}
	return &bytesBlob{data: raw, release: rows.Close}, nil
}

// MemoryExtractor copies the column into memory and releases the cursor
// before decoding.
type MemoryExtractor struct{}

func (MemoryExtractor) Extract(rows Rows, dest ...any) (Blob, error) {
	var data []byte
	err := scanWithBlob(rows, &data, dest)
	closeErr := rows.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return &bytesBlob{data: data, release: func() error { return nil }}, nil
}

type bytesBlob struct {
	data    []byte
	release func() error
}

func (b *bytesBlob) Open(p container.DecodeParams) (io.ReadCloser, error) {
	rc, err := container.DecodeBytes(b.data, p)
	if err != nil {
		_ = b.release()
		return nil, err
	}
	return &chainCloser{ReadCloser: rc, after: b.release}, nil
}

func (b *bytesBlob) Close() error {
	return b.release()
}

// FileExtractor copies the column into a temp file, releases the cursor and
// decodes from the file. The file is deleted when the stream is closed.
type FileExtractor struct {
	// Dir holds the temp files; empty means the system default.
	Dir    string
	Logger *slog.Logger
}

func (fe FileExtractor) Extract(rows Rows, dest ...any) (Blob, error) {
	var raw sql.RawBytes
	if err := scanWithBlob(rows, &raw, dest); err != nil {
		_ = rows.Close()
		return nil, err
	}

	tf, err := CreateTemp(fe.Dir, fe.Logger)
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	bw := bufio.NewWriter(tf)
	_, err = bw.Write(raw)
	if err == nil {
		err = bw.Flush()
	}
	// raw is invalid once the cursor is closed.
	err = errors.Join(err, rows.Close())
	if err != nil {
		_ = tf.Close()
		return nil, fmt.Errorf("stage blob: %w", err)
	}

	return &fileBlob{file: tf, size: int64(len(raw))}, nil
}

type fileBlob struct {
	file *TempFile
	size int64
}

func (b *fileBlob) Open(p container.DecodeParams) (io.ReadCloser, error) {
	rc, err := container.Decode(b.file, b.size, p)
	if err != nil {
		_ = b.file.Close()
		return nil, err
	}
	return &chainCloser{ReadCloser: rc, after: b.file.Close}, nil
}

func (b *fileBlob) Close() error {
	return b.file.Close()
}

// chainCloser closes the decoded stream and then whatever backs it.
type chainCloser struct {
	io.ReadCloser
	after func() error
}

func (c *chainCloser) Close() error {
	return errors.Join(c.ReadCloser.Close(), c.after())
}
