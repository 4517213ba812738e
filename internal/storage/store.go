// Package storage keeps files as rows of a single relational table: one row
// per file, holding its name, identity, plaintext length, modification time,
// encoding flags and the encoded content as a blob.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"relastore/internal/container"
	"relastore/internal/ident"
	"relastore/internal/pattern"
	"time"
)

// Querier is the statement surface shared by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Store runs file operations against one table. It holds no state beyond
// its configuration; concurrent use is safe as far as the database allows.
type Store struct {
	cfg   Config
	db    Querier
	inTx  bool
	table string
	cols  columns
}

type columns struct {
	uuid, filename, length, modified, compressed, encrypted, contents string
}

// New returns a Store for table. A *sql.Tx counts as an active transaction.
func New(db Querier, table string, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	if table == "" {
		return nil, errors.New("table must not be empty")
	}

	cfg := NewConfig(opts...)
	if cfg.Provider == nil || cfg.Extractor == nil {
		return nil, errors.New("provider and extractor must not be nil")
	}

	q := func(id string) string { return cfg.Dialect.QuoteIdentifier(id, cfg.AlwaysQuote) }

	qualified := q(table)
	if cfg.Schema != "" {
		qualified = q(cfg.Schema) + "." + qualified
	}

	_, inTx := db.(*sql.Tx)

	return &Store{
		cfg:   cfg,
		db:    db,
		inTx:  inTx,
		table: qualified,
		cols: columns{
			uuid:       q("uuid"),
			filename:   q("filename"),
			length:     q("content_length"),
			modified:   q("last_modified"),
			compressed: q("compressed"),
			encrypted:  q("encrypted"),
			contents:   q("contents"),
		},
	}, nil
}

// Table returns the quoted, schema-qualified table name.
func (s *Store) Table() string {
	return s.table
}

// WithTx returns a copy of the store bound to tx.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	c := *s
	c.db = tx
	c.inTx = true
	return &c
}

// InTx reports whether the store is bound to a transaction.
func (s *Store) InTx() bool {
	return s.inTx
}

// Transact runs fn with a store bound to a new transaction, committing if fn
// returns nil and rolling back otherwise. A store that is already bound to a
// transaction runs fn directly.
func (s *Store) Transact(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}

	b, ok := s.db.(beginner)
	if !ok {
		return fmt.Errorf("%w: %T cannot begin transactions", ErrPreconditionFailed, s.db)
	}

	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrStorageIO, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(s.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %w", ErrStorageIO, err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = s.cfg.Dialect.Rebind(query)
	s.cfg.Logger.Debug("Executing statement", "sql", query)
	return s.db.ExecContext(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = s.cfg.Dialect.Rebind(query)
	s.cfg.Logger.Debug("Executing query", "sql", query)
	return s.db.QueryContext(ctx, query, args...)
}

func (s *Store) metadataColumns() string {
	c := s.cols
	return c.filename + ", " + c.length + ", " + c.modified + ", " + c.uuid + ", " + c.compressed + ", " + c.encrypted
}

// scanTarget receives the metadata columns in metadataColumns order.
type scanTarget struct {
	obj   Object
	token string
}

func (t *scanTarget) dest() []any {
	return []any{&t.obj.Filename, &t.obj.ContentLength, &t.obj.LastModified, &t.token, &t.obj.Compressed, &t.obj.Encrypted}
}

func (t *scanTarget) object() (Object, error) {
	id, err := ident.Decode(t.token)
	if err != nil {
		return Object{}, fmt.Errorf("file %q: %w: %w", t.obj.Filename, ErrCorruption, err)
	}
	t.obj.UUID = id
	t.obj.LastModified = t.obj.LastModified.UTC()
	return t.obj, nil
}

// List returns every object whose filename matches at least one of the glob
// patterns, or every object when no pattern is given. Order is unspecified.
func (s *Store) List(ctx context.Context, patterns ...string) ([]Object, error) {
	clause := pattern.Where(s.cols.filename, s.cfg.Dialect.escapeLiteral, patterns...)

	rows, err := s.query(ctx, "SELECT "+s.metadataColumns()+" FROM "+s.table+clause.SQL, clause.Args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrStorageIO, err)
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		var t scanTarget
		if err := rows.Scan(t.dest()...); err != nil {
			return nil, fmt.Errorf("%w: list: %w", ErrStorageIO, err)
		}
		obj, err := t.object()
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrStorageIO, err)
	}
	return objects, nil
}

// Get returns the metadata of name.
func (s *Store) Get(ctx context.Context, name string) (*Object, error) {
	rows, err := s.query(ctx, "SELECT "+s.metadataColumns()+" FROM "+s.table+" WHERE "+s.cols.filename+" = ?", name)
	if err != nil {
		return nil, classify(name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, classify(name, err)
		}
		return nil, fmt.Errorf("file %q: %w", name, ErrNotFound)
	}

	var t scanTarget
	if err := rows.Scan(t.dest()...); err != nil {
		return nil, classify(name, err)
	}
	obj, err := t.object()
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// Exists reports whether a row carries name.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	rows, err := s.query(ctx, "SELECT COUNT(*) FROM "+s.table+" WHERE "+s.cols.filename+" = ?", name)
	if err != nil {
		return false, classify(name, err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return false, classify(name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return false, classify(name, err)
	}
	return n > 0, nil
}

// Open returns the metadata of name together with a stream of its decoded
// content. The stream must be closed; with the direct extractor it holds the
// row cursor, and so a connection, until then.
func (s *Store) Open(ctx context.Context, name string) (*Object, io.ReadCloser, error) {
	rows, err := s.query(ctx, "SELECT "+s.metadataColumns()+", "+s.cols.contents+" FROM "+s.table+" WHERE "+s.cols.filename+" = ?", name)
	if err != nil {
		return nil, nil, classify(name, err)
	}

	if !rows.Next() {
		err := rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, nil, classify(name, err)
		}
		return nil, nil, fmt.Errorf("file %q: %w", name, ErrNotFound)
	}

	var t scanTarget
	blob, err := s.cfg.Extractor.Extract(rows, t.dest()...)
	if err != nil {
		return nil, nil, classify(name, err)
	}

	obj, err := t.object()
	if err != nil {
		_ = blob.Close()
		return nil, nil, err
	}

	rc, err := blob.Open(container.DecodeParams{
		Compressed: obj.Compressed,
		Encrypted:  obj.Encrypted,
		Password:   s.cfg.Password,
	})
	if err != nil {
		return nil, nil, classify(name, err)
	}

	return &obj, &contentReader{ReadCloser: rc, name: name}, nil
}

// contentReader maps decode failures surfacing mid-stream onto
// ErrCorruption.
type contentReader struct {
	io.ReadCloser
	name string
}

func (r *contentReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = classify(r.name, err)
	}
	return n, err
}

// Delete removes name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.exec(ctx, "DELETE FROM "+s.table+" WHERE "+s.cols.filename+" = ?", name)
	if err != nil {
		return classify(name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify(name, err)
	}
	if n == 0 {
		return fmt.Errorf("file %q: %w", name, ErrNotFound)
	}
	return nil
}

// lastModified picks the resource's modification time, falling back to the
// store clock. Times are kept in UTC at microsecond precision, the finest
// every backend keeps.
func (s *Store) lastModified(res Resource) time.Time {
	t, ok := res.ModTime()
	if !ok || t.IsZero() || t.UnixMilli() <= 0 {
		t = s.cfg.Now()
	}
	return t.UTC().Truncate(time.Microsecond)
}
