// Package container encodes object content into a single-entry zip archive,
// optionally deflated and optionally sealed with a password-derived key.
//
// With sealing disabled the encoding is reproducible: the entry name and
// modification time are fixed, so identical content at the same compression
// level always yields identical bytes.
package container

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// EntryName is the name of the single entry inside every container.
const EntryName = "content.dat"

// EntryTime is the modification time recorded for the entry.
var EntryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

var magic = []byte("PK\x03\x04")

var (
	// ErrCorrupt is returned for input that is not a well formed container.
	ErrCorrupt = errors.New("corrupt container")
	// ErrPassword is returned when a sealed container cannot be opened with
	// the supplied password, or no password was supplied.
	ErrPassword = errors.New("wrong or missing password")
)

// EncodeParams controls how content is encoded.
type EncodeParams struct {
	Compression Compression
	// Password enables sealing when non-empty.
	Password []byte
}

// Encrypted reports whether the parameters seal the content.
func (p EncodeParams) Encrypted() bool {
	return len(p.Password) > 0
}

// DecodeParams describes how stored content was encoded.
type DecodeParams struct {
	Compressed bool
	Encrypted  bool
	Password   []byte
}

func method(compressed, encrypted bool) uint16 {
	switch {
	case compressed && encrypted:
		return MethodSealedDeflate
	case encrypted:
		return MethodSealedStore
	case compressed:
		return zip.Deflate
	default:
		return zip.Store
	}
}

// Encode reads src to EOF and writes the encoded container to dst.
func Encode(dst io.Writer, src io.Reader, p EncodeParams) error {
	zw := zip.NewWriter(dst)

	var deflater zip.Compressor
	if p.Compression.Enabled() {
		level := p.Compression.flateLevel()
		deflater = func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, level)
		}
		zw.RegisterCompressor(zip.Deflate, deflater)
	}

	if p.Encrypted() {
		zw.RegisterCompressor(MethodSealedStore, sealer(p.Password, nil))
		zw.RegisterCompressor(MethodSealedDeflate, sealer(p.Password, deflater))
	}

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     EntryName,
		Method:   method(p.Compression.Enabled(), p.Encrypted()),
		Modified: EntryTime,
	})
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}

	if _, err := io.Copy(w, src); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish container: %w", err)
	}
	return nil
}

// EncodeBytes encodes data in memory.
func EncodeBytes(data []byte, p EncodeParams) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, bytes.NewReader(data), p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode validates the container held in ra and returns a stream of the
// decoded content. The stream reads from ra lazily, so ra must stay valid
// until the stream is closed.
func Decode(ra io.ReaderAt, size int64, p DecodeParams) (io.ReadCloser, error) {
	if p.Encrypted && len(p.Password) == 0 {
		return nil, ErrPassword
	}

	head := make([]byte, len(magic))
	if _, err := ra.ReadAt(head, 0); err != nil || !bytes.Equal(head, magic) {
		return nil, fmt.Errorf("%w: missing local header signature", ErrCorrupt)
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if len(zr.File) != 1 {
		return nil, fmt.Errorf("%w: expected one entry, found %d", ErrCorrupt, len(zr.File))
	}

	entry := zr.File[0]
	if want := method(p.Compressed, p.Encrypted); entry.Method != want {
		return nil, fmt.Errorf("%w: entry method %#x does not match recorded flags (want %#x)", ErrCorrupt, entry.Method, want)
	}

	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)
	if p.Encrypted {
		zr.RegisterDecompressor(MethodSealedStore, unsealer(p.Password, nil))
		zr.RegisterDecompressor(MethodSealedDeflate, unsealer(p.Password, flate.NewReader))
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	// Peek so a bad password or a broken deflate stream surfaces here rather
	// than on the caller's first read.
	br := bufio.NewReader(rc)
	if _, err := br.Peek(1); err != nil && !errors.Is(err, io.EOF) {
		_ = rc.Close()
		return nil, classify(err)
	}

	return &decodedReader{r: br, c: rc}, nil
}

// DecodeBytes decodes a container held in memory.
func DecodeBytes(data []byte, p DecodeParams) (io.ReadCloser, error) {
	return Decode(bytes.NewReader(data), int64(len(data)), p)
}

type decodedReader struct {
	r io.Reader
	c io.Closer
}

func (d *decodedReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = classify(err)
	}
	return n, err
}

func (d *decodedReader) Close() error {
	return d.c.Close()
}

// classify folds archive and deflate failures into ErrCorrupt.
func classify(err error) error {
	if errors.Is(err, ErrCorrupt) || errors.Is(err, ErrPassword) {
		return err
	}

	var corrupt flate.CorruptInputError
	switch {
	case errors.As(err, &corrupt),
		errors.Is(err, zip.ErrChecksum),
		errors.Is(err, zip.ErrFormat),
		errors.Is(err, zip.ErrAlgorithm),
		errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return err
}
