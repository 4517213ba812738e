package container

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
	"golang.org/x/crypto/pbkdf2"
)

// Sealed entries carry their own method IDs so the container records
// whether the ciphertext wraps a stored or a deflated payload. Both live in
// the range the zip appnote leaves unassigned.
const (
	MethodSealedStore   uint16 = 0xAE00
	MethodSealedDeflate uint16 = 0xAE08
)

// Key derivation and cipher parameters. Sealed payload layout:
//
//	salt (32) | iv (16) | password check (2) | AES-256-CTR ciphertext
const (
	kdfIterations = 65536
	keyLength     = 32
	saltLength    = 32
	ivLength      = aes.BlockSize
	checkLength   = 2
	headerLength  = saltLength + ivLength + checkLength
)

var checkLabel = []byte("relastore password check")

func deriveKey(password, salt []byte) (key, check []byte) {
	key = pbkdf2.Key(password, salt, kdfIterations, keyLength, sha256.New)

	mac := hmac.New(sha256.New, key)
	mac.Write(checkLabel)
	return key, mac.Sum(nil)[:checkLength]
}

// sealWriter emits the salt, IV and password check ahead of the first
// ciphertext byte. The zip writer asks for the compressor before it writes
// the local file header, so nothing may reach w until data arrives or the
// entry is closed.
type sealWriter struct {
	w      io.Writer
	header []byte
	sw     *cipher.StreamWriter
}

func (s *sealWriter) writeHeader() error {
	if s.header == nil {
		return nil
	}
	header := s.header
	s.header = nil
	_, err := s.w.Write(header)
	return err
}

func (s *sealWriter) Write(p []byte) (int, error) {
	if err := s.writeHeader(); err != nil {
		return 0, err
	}
	return s.sw.Write(p)
}

// Close writes the header if no data did, so an empty entry still carries
// it. The underlying writer belongs to the zip writer and stays open.
func (s *sealWriter) Close() error {
	return s.writeHeader()
}

// sealedCompressor closes the inner compressor, whose final flush passes
// through the sealWriter, and then the sealWriter itself.
type sealedCompressor struct {
	io.WriteCloser
	seal *sealWriter
}

func (c *sealedCompressor) Close() error {
	if err := c.WriteCloser.Close(); err != nil {
		return err
	}
	return c.seal.Close()
}

// sealer wraps inner so that its output is encrypted with a key derived from
// password. Salt and IV are drawn fresh for every entry.
func sealer(password []byte, inner zip.Compressor) zip.Compressor {
	return func(w io.Writer) (io.WriteCloser, error) {
		header := make([]byte, headerLength)
		if _, err := rand.Read(header[:saltLength+ivLength]); err != nil {
			return nil, fmt.Errorf("draw salt and iv: %w", err)
		}
		salt := header[:saltLength]
		iv := header[saltLength : saltLength+ivLength]

		key, check := deriveKey(password, salt)
		copy(header[saltLength+ivLength:], check)

		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("create cipher: %w", err)
		}

		seal := &sealWriter{
			w:      w,
			header: header,
			sw:     &cipher.StreamWriter{S: cipher.NewCTR(block, iv), W: w},
		}
		if inner == nil {
			return seal, nil
		}

		wc, err := inner(seal)
		if err != nil {
			return nil, err
		}
		return &sealedCompressor{WriteCloser: wc, seal: seal}, nil
	}
}

type errReadCloser struct {
	err error
}

func (e errReadCloser) Read([]byte) (int, error) { return 0, e.err }
func (e errReadCloser) Close() error             { return nil }

// unsealer reverses sealer. A password that does not reproduce the stored
// check value fails with ErrPassword on the first read.
func unsealer(password []byte, inner zip.Decompressor) zip.Decompressor {
	return func(r io.Reader) io.ReadCloser {
		header := make([]byte, headerLength)
		if _, err := io.ReadFull(r, header); err != nil {
			return errReadCloser{fmt.Errorf("%w: truncated sealed header: %w", ErrCorrupt, err)}
		}
		salt := header[:saltLength]
		iv := header[saltLength : saltLength+ivLength]

		key, check := deriveKey(password, salt)
		if !hmac.Equal(check, header[saltLength+ivLength:]) {
			return errReadCloser{ErrPassword}
		}

		block, err := aes.NewCipher(key)
		if err != nil {
			return errReadCloser{err}
		}

		sr := &cipher.StreamReader{S: cipher.NewCTR(block, iv), R: r}
		if inner == nil {
			return io.NopCloser(sr)
		}
		return inner(sr)
	}
}
