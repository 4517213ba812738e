package storage

import (
	"errors"
	"fmt"
	"relastore/internal/container"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Every error returned by a Store wraps exactly one of these.
var (
	// ErrNotFound means no row carries the requested filename.
	ErrNotFound = errors.New("file not found")
	// ErrAlreadyExists means the target filename is taken and replacing was
	// not requested.
	ErrAlreadyExists = errors.New("file already exists")
	// ErrCorruption means stored or streamed content failed an integrity
	// check: a length mismatch on write or an unreadable container on read.
	ErrCorruption = errors.New("content corrupted")
	// ErrUnsupportedOption means the call carried an option it cannot honor.
	ErrUnsupportedOption = errors.New("unsupported option")
	// ErrPreconditionFailed means the call needs a transaction the store is
	// not bound to.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrInconsistentUpdate means a statement touched an unexpected number
	// of rows.
	ErrInconsistentUpdate = errors.New("inconsistent update")
	// ErrStorageIO wraps every other database or I/O failure.
	ErrStorageIO = errors.New("storage i/o error")
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	mysqlDuplicateEntry2 = 1586
)

// isUniqueViolation recognizes unique and primary key violations from every
// supported driver. It is the only place that knows driver error types.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry || mysqlErr.Number == mysqlDuplicateEntry2
	}

	return false
}

// classify maps a failed statement on name onto the error taxonomy.
func classify(name string, err error) error {
	switch {
	case err == nil:
		return nil
	case isTaxonomy(err):
		return err
	case isUniqueViolation(err):
		return fmt.Errorf("file %q: %w", name, ErrAlreadyExists)
	case errors.Is(err, container.ErrCorrupt), errors.Is(err, container.ErrPassword):
		return fmt.Errorf("file %q: %w: %w", name, ErrCorruption, err)
	default:
		return fmt.Errorf("file %q: %w: %w", name, ErrStorageIO, err)
	}
}

func isTaxonomy(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrCorruption,
		ErrUnsupportedOption,
		ErrPreconditionFailed,
		ErrInconsistentUpdate,
		ErrStorageIO,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
