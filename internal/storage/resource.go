package storage

import (
	"context"
	"io"
	"relastore/internal/ident"
	"time"

	"github.com/google/uuid"
)

// Resource is a named byte source handed to Put.
type Resource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Size returns the content length if it is known before reading.
	Size() (int64, bool)
	// ModTime returns the last modification time if the source has one.
	ModTime() (time.Time, bool)
}

// Object describes a stored row.
type Object struct {
	Filename      string
	ContentLength int64
	LastModified  time.Time
	UUID          uuid.UUID
	Compressed    bool
	Encrypted     bool
}

// URI returns the object's urn:uuid: identity.
func (o Object) URI() string {
	return ident.URI(o.UUID)
}

// Token returns the object's identity in its stored base64url form.
func (o Object) Token() string {
	return ident.Encode(o.UUID)
}
