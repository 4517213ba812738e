package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"relastore/internal/container"
	"relastore/internal/ident"
	"relastore/internal/stream"

	"github.com/google/uuid"
)

// pendingLength marks a row whose content length has not been confirmed
// yet. A row left with it was interrupted between the two write phases.
const pendingLength = -1

// blobArg binds an encoded stream to the contents column. database/sql has
// no streaming bind, so the stream is drained when the driver asks for the
// value.
type blobArg struct {
	r   io.Reader
	err error
}

func (b *blobArg) Value() (driver.Value, error) {
	data, err := io.ReadAll(b.r)
	if err != nil {
		b.err = err
		return nil, err
	}
	return data, nil
}

// Put stores the content of res under name and returns the stored
// metadata.
//
// Without OpenTruncateExisting the call only inserts and fails with
// ErrAlreadyExists when name is taken. With it an existing row is rewritten
// in place and keeps its identity. OpenAppend, OpenDeleteOnClose and
// OpenRead are rejected.
//
// The content is written before its length is confirmed; a follow-up
// statement records the number of bytes actually read from res. If res
// declared a size and a different number of bytes was read, Put fails with
// ErrCorruption after the row has been written.
func (s *Store) Put(ctx context.Context, res Resource, name string, opts ...OpenOption) (*Object, error) {
	mode, err := parsePutOptions(name, opts)
	if err != nil {
		return nil, err
	}

	var existing uuid.UUID
	found := false
	if mode.replace {
		existing, found, err = s.lookup(ctx, name)
		if err != nil {
			return nil, err
		}
	}

	// The declared size is taken before reading, as the caller announced it.
	declared, sized := res.Size()

	src, err := res.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("file %q: %w: open source: %w", name, ErrStorageIO, err)
	}
	defer src.Close()

	counter := stream.NewCountingReader(src)
	params := container.EncodeParams{Compression: s.cfg.Compression, Password: s.cfg.Password}

	encoded, err := s.cfg.Provider.Open(ctx, counter, params)
	if err != nil {
		return nil, classify(name, err)
	}
	defer encoded.Close()

	obj := Object{
		Filename:      name,
		ContentLength: pendingLength,
		LastModified:  s.lastModified(res),
		Compressed:    params.Compression.Enabled(),
		Encrypted:     params.Encrypted(),
	}

	blob := &blobArg{r: encoded}
	if found {
		obj.UUID = existing
		err = s.rewrite(ctx, obj, blob)
	} else {
		obj.UUID = ident.New()
		err = s.insert(ctx, obj, blob)
	}
	if err != nil {
		return nil, err
	}

	obj.ContentLength = counter.Count()
	if sized && declared != obj.ContentLength {
		return nil, fmt.Errorf("file %q: %w: declared %d bytes, read %d", name, ErrCorruption, declared, obj.ContentLength)
	}

	if err := s.confirmLength(ctx, obj); err != nil {
		return nil, err
	}

	s.cfg.Logger.Debug("Stored file", "file", name, "uuid", obj.Token(), "length", obj.ContentLength, "replaced", found)
	return &obj, nil
}

func (s *Store) lookup(ctx context.Context, name string) (uuid.UUID, bool, error) {
	rows, err := s.query(ctx, "SELECT "+s.cols.uuid+" FROM "+s.table+" WHERE "+s.cols.filename+" = ?", name)
	if err != nil {
		return uuid.Nil, false, classify(name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return uuid.Nil, false, classify(name, rows.Err())
	}

	var token string
	if err := rows.Scan(&token); err != nil {
		return uuid.Nil, false, classify(name, err)
	}
	id, err := ident.Decode(token)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("file %q: %w: %w", name, ErrCorruption, err)
	}
	return id, true, nil
}

func (s *Store) insert(ctx context.Context, obj Object, blob *blobArg) error {
	c := s.cols
	q := "INSERT INTO " + s.table + " (" +
		c.uuid + ", " + c.filename + ", " + c.length + ", " + c.modified + ", " +
		c.compressed + ", " + c.encrypted + ", " + c.contents +
		") VALUES (?, ?, ?, ?, ?, ?, ?)"

	_, err := s.exec(ctx, q, obj.Token(), obj.Filename, obj.ContentLength, obj.LastModified, obj.Compressed, obj.Encrypted, blob)
	return s.writeError(obj.Filename, blob, err)
}

func (s *Store) rewrite(ctx context.Context, obj Object, blob *blobArg) error {
	c := s.cols
	q := "UPDATE " + s.table + " SET " +
		c.contents + " = ?, " + c.length + " = ?, " + c.modified + " = ?, " +
		c.compressed + " = ?, " + c.encrypted + " = ? WHERE " + c.uuid + " = ?"

	res, err := s.exec(ctx, q, blob, obj.ContentLength, obj.LastModified, obj.Compressed, obj.Encrypted, obj.Token())
	if err := s.writeError(obj.Filename, blob, err); err != nil {
		return err
	}
	return expectOne(obj.Filename, res)
}

func (s *Store) confirmLength(ctx context.Context, obj Object) error {
	res, err := s.exec(ctx, "UPDATE "+s.table+" SET "+s.cols.length+" = ? WHERE "+s.cols.uuid+" = ?", obj.ContentLength, obj.Token())
	if err != nil {
		return classify(obj.Filename, err)
	}
	return expectOne(obj.Filename, res)
}

// writeError prefers the failure of the content stream over the driver's
// report of it.
func (s *Store) writeError(name string, blob *blobArg, err error) error {
	if err == nil {
		return nil
	}
	if blob.err != nil {
		return classify(name, blob.err)
	}
	return classify(name, err)
}

func expectOne(name string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(name, err)
	}
	if n != 1 {
		return fmt.Errorf("file %q: %w: %d rows affected, expected 1", name, ErrInconsistentUpdate, n)
	}
	return nil
}
