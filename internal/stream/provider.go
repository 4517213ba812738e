// Package stream moves encoded content between callers and the database
// driver. Providers produce the encoded form of a plaintext source for
// writing; extractors stage a fetched blob column and decode it for reading.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"relastore/internal/container"
)

// DefaultPipeBufferSize is the pipe provider's buffer size when none is set.
const DefaultPipeBufferSize = 16 * 1024

// Provider turns a plaintext source into a stream of container bytes.
// Closing the returned stream releases everything the provider acquired,
// including any background worker, even if the stream was not drained.
type Provider interface {
	Open(ctx context.Context, src io.Reader, p container.EncodeParams) (io.ReadCloser, error)
}

// Options configures the strategies built by ParseProvider and
// ParseExtractor.
type Options struct {
	PipeBufferSize int
	TempDir        string
	Logger         *slog.Logger
}

// ParseProvider builds the provider with the given name: pipe, memory or
// file.
func ParseProvider(name string, o Options) (Provider, error) {
	switch name {
	case "pipe", "":
		return PipeProvider{BufferSize: o.PipeBufferSize}, nil
	case "memory":
		return MemoryProvider{}, nil
	case "file":
		return FileProvider{Dir: o.TempDir, Logger: o.Logger}, nil
	default:
		return nil, fmt.Errorf("unknown stream provider: %q", name)
	}
}

// PipeProvider encodes on a background goroutine into a bounded buffer
// drained by the caller. The worker blocks while the buffer is full and the
// caller blocks while it is empty.
//
// The bound covers the encoder only. database/sql binds a parameter as one
// value, so the store still reads the whole encoded blob into memory when
// it executes the write.
type PipeProvider struct {
	// BufferSize bounds the bytes buffered ahead of the reader.
	BufferSize int
}

func (pp PipeProvider) Open(ctx context.Context, src io.Reader, p container.EncodeParams) (io.ReadCloser, error) {
	size := pp.BufferSize
	if size <= 0 {
		size = DefaultPipeBufferSize
	}

	pr, pw := io.Pipe()

	// The worker is never joined. It exits once the encoder finishes or the
	// read end is closed under it.
	go func() {
		bw := bufio.NewWriterSize(pw, size)
		err := container.Encode(bw, src, p)
		if err == nil {
			err = bw.Flush()
		}
		_ = pw.CloseWithError(err)
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = pr.CloseWithError(context.Cause(ctx))
	})

	return &pipeReader{PipeReader: pr, stop: stop}, nil
}

type pipeReader struct {
	*io.PipeReader
	stop func() bool
}

func (r *pipeReader) Close() error {
	r.stop()
	return r.PipeReader.Close()
}

// MemoryProvider encodes the whole source into memory before returning.
type MemoryProvider struct{}

func (MemoryProvider) Open(ctx context.Context, src io.Reader, p container.EncodeParams) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if err := container.Encode(&buf, src, p); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

// FileProvider encodes the whole source into a temp file and streams it
// back. The file is deleted when the stream is closed.
type FileProvider struct {
	// Dir holds the temp files; empty means the system default.
	Dir    string
	Logger *slog.Logger
}

func (fp FileProvider) Open(ctx context.Context, src io.Reader, p container.EncodeParams) (io.ReadCloser, error) {
	tf, err := CreateTemp(fp.Dir, fp.Logger)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	bw := bufio.NewWriter(tf)
	if err := container.Encode(bw, src, p); err != nil {
		_ = tf.Close()
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		_ = tf.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = tf.Close()
		return nil, err
	}
	if _, err := tf.Seek(0, io.SeekStart); err != nil {
		_ = tf.Close()
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}

	return tf, nil
}
