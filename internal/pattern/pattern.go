// Package pattern translates shell-style glob patterns into SQL LIKE
// predicates.
package pattern

import "strings"

// Escape is the escape character placed in front of literal LIKE wildcards.
const Escape = `\`

// DefaultEscapeLiteral is the SQL string literal denoting Escape for engines
// that do not treat backslash as special inside string literals.
const DefaultEscapeLiteral = `'\'`

var likeReplacer = strings.NewReplacer(
	Escape, Escape+Escape,
	"%", Escape+"%",
	"_", Escape+"_",
	"*", "%",
	"?", "_",
)

// Like translates a single glob into a LIKE pattern using Escape. A literal
// backslash is doubled, literal % and _ are escaped, then * becomes % and ?
// becomes _.
func Like(glob string) string {
	// strings.Replacer scans left to right and never rescans its own output,
	// so the substitutions cannot interfere with each other.
	return likeReplacer.Replace(glob)
}

// Clause is a translated filter ready to be appended to a SELECT statement.
// SQL is empty when there is nothing to filter on.
type Clause struct {
	SQL  string
	Args []any
}

// Where builds a WHERE clause OR-combining one LIKE predicate per glob on the
// given (already quoted) column. No globs means no clause at all, which
// matches every row. An empty escapeLiteral selects DefaultEscapeLiteral.
func Where(column string, escapeLiteral string, globs ...string) Clause {
	if len(globs) == 0 {
		return Clause{}
	}
	if escapeLiteral == "" {
		escapeLiteral = DefaultEscapeLiteral
	}

	var sb strings.Builder
	args := make([]any, 0, len(globs))

	sb.WriteString(" WHERE ")
	for i, glob := range globs {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString(column)
		sb.WriteString(" LIKE ? ESCAPE ")
		sb.WriteString(escapeLiteral)
		args = append(args, Like(glob))
	}

	return Clause{SQL: sb.String(), Args: args}
}
