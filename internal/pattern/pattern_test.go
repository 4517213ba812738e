package pattern_test

import (
	"relastore/internal/pattern"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLike(t *testing.T) {
	t.Parallel()

	tests := []struct {
		glob string
		want string
	}{
		{glob: "", want: ""},
		{glob: "*", want: "%"},
		{glob: "t*", want: "t%"},
		{glob: "tax?.txt", want: "tax_.txt"},
		{glob: "tax%.txt", want: `tax\%.txt`},
		{glob: "my_file.txt", want: `my\_file.txt`},
		{glob: `dir\*.txt`, want: `dir\\%.txt`},
		{glob: `a\b`, want: `a\\b`},
		{glob: "*.d?t", want: "%.d_t"},
		{glob: "100%_*?", want: `100\%\_%_`},
	}

	for _, tt := range tests {
		require.Equalf(t, tt.want, pattern.Like(tt.glob), "Like(%q)", tt.glob)
	}
}

func TestWhereNoPatterns(t *testing.T) {
	t.Parallel()

	clause := pattern.Where("filename", "")
	require.Empty(t, clause.SQL, "no patterns means no clause")
	require.Empty(t, clause.Args)
}

func TestWhereCombinesWithOr(t *testing.T) {
	t.Parallel()

	clause := pattern.Where(`"filename"`, "", "*.txt", "tax?")
	require.Equal(t, ` WHERE "filename" LIKE ? ESCAPE '\' OR "filename" LIKE ? ESCAPE '\'`, clause.SQL)
	require.Equal(t, []any{"%.txt", "tax_"}, clause.Args)
}

func TestWhereCustomEscapeLiteral(t *testing.T) {
	t.Parallel()

	clause := pattern.Where("filename", `'\\'`, "a*")
	require.Equal(t, ` WHERE filename LIKE ? ESCAPE '\\'`, clause.SQL)
	require.Equal(t, []any{"a%"}, clause.Args)
}
