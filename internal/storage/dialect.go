package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// maxSimpleIdentifier is the longest identifier emitted without quotes.
const maxSimpleIdentifier = 128

// Dialect captures the SQL differences between supported backends.
type Dialect struct {
	// Name is the database/sql driver name the dialect pairs with.
	Name string

	quote         byte
	escapeLiteral string
	numbered      bool
	types         columnTypes
}

type columnTypes struct {
	uuid, filename, length, timestamp, flag, blob string
}

var (
	// SQLite pairs with github.com/mattn/go-sqlite3.
	SQLite = Dialect{
		Name:          "sqlite3",
		quote:         '"',
		escapeLiteral: `'\'`,
		types: columnTypes{
			uuid:      "TEXT",
			filename:  "TEXT",
			length:    "INTEGER",
			timestamp: "TIMESTAMP",
			flag:      "BOOLEAN",
			blob:      "BLOB",
		},
	}

	// Postgres pairs with github.com/jackc/pgx/v5/stdlib.
	Postgres = Dialect{
		Name:          "pgx",
		quote:         '"',
		escapeLiteral: `'\'`,
		numbered:      true,
		types: columnTypes{
			uuid:      "VARCHAR(22)",
			filename:  "VARCHAR(1024)",
			length:    "BIGINT",
			timestamp: "TIMESTAMPTZ",
			flag:      "BOOLEAN",
			blob:      "BYTEA",
		},
	}

	// MySQL pairs with github.com/go-sql-driver/mysql. The DSN must set
	// parseTime=true so timestamps scan into time.Time, and
	// clientFoundRows=true so updates report matched rather than changed
	// rows.
	MySQL = Dialect{
		Name:          "mysql",
		quote:         '`',
		escapeLiteral: `'\\'`,
		types: columnTypes{
			uuid:      "VARCHAR(22)",
			filename:  "VARCHAR(768)",
			length:    "BIGINT",
			timestamp: "DATETIME(6)",
			flag:      "BOOLEAN",
			blob:      "LONGBLOB",
		},
	}
)

// ParseDialect returns the dialect for a database/sql driver name.
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %q", driver)
	}
}

// QuoteIdentifier prepares id for splicing into statement text. Simple
// identifiers (a letter followed by letters, digits or underscores) are
// returned verbatim unless always is set; already quoted identifiers are
// kept; anything else is quoted with embedded quote characters doubled.
func (d Dialect) QuoteIdentifier(id string, always bool) string {
	if !always && isSimpleIdentifier(id) {
		return id
	}
	if d.isQuoted(id) {
		return id
	}

	q := string(d.quote)
	return q + strings.ReplaceAll(id, q, q+q) + q
}

func isSimpleIdentifier(id string) bool {
	if id == "" || len(id) > maxSimpleIdentifier {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '_'):
		default:
			return false
		}
	}
	return true
}

// isQuoted reports whether id is already wrapped in quote characters with
// every embedded quote character doubled.
func (d Dialect) isQuoted(id string) bool {
	if len(id) < 3 || id[0] != d.quote || id[len(id)-1] != d.quote {
		return false
	}
	inner := id[1 : len(id)-1]
	for i := 0; i < len(inner); i++ {
		if inner[i] != d.quote {
			continue
		}
		if i+1 >= len(inner) || inner[i+1] != d.quote {
			return false
		}
		i++
	}
	return true
}

// Rebind rewrites ? placeholders for drivers that expect $1, $2, ...
// Placeholders inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)

	n := 0
	inLiteral := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inLiteral = !inLiteral
			sb.WriteByte(c)
		case c == '?' && !inLiteral:
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
