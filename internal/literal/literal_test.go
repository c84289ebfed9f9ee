package literal

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_MetadataLine(t *testing.T) {
	line := `{'asin': '0000143561', 'categories': [['Movies & TV', 'Movies']], ` +
		`'description': "3Pack DVD set - Italian Classic", 'title': 'Everyday Italian, Volume 1', ` +
		`'price': 12.99, 'salesRank': {'Movies & TV': 376041}, 'related': {'also_viewed': ['B0036FO6SI']}}`

	m, err := ParseMap(line)
	require.NoError(t, err)
	require.Equal(t, "0000143561", m["asin"])
	require.Equal(t, []any{[]any{"Movies & TV", "Movies"}}, m["categories"])
	require.Equal(t, 12.99, m["price"])
	require.Equal(t, map[string]any{"Movies & TV": int64(376041)}, m["salesRank"])
}

func TestParse_JSON(t *testing.T) {
	v, err := Parse(`{"asin": "A1", "price": null, "flag": true, "off": false, "n": [1, 2.5, -3]}`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"asin":  "A1",
		"price": nil,
		"flag":  true,
		"off":   false,
		"n":     []any{int64(1), 2.5, int64(-3)},
	}, v)
}

func TestParse_Strings(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`'it\'s'`, "it's"},
		{`"say \"hi\""`, `say "hi"`},
		{`'a\nb\tc'`, "a\nb\tc"},
		{`'\x41é\101'`, "AéA"},
		{`'\U0001F600'`, "\U0001F600"},
		{`'keep \q'`, `keep \q`},
		{`'ab' "cd"`, "abcd"},
		{`u'unicode'`, "unicode"},
		{`r'raw\n'`, `raw\n`},
		{`'caf` + "é" + `'`, "café"},
	}
	for _, tc := range cases {
		v, err := Parse(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, v, tc.in)
	}
}

func TestParse_Numbers(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"+3", int64(3)},
		{"-1.5e3", -1500.0},
		{"1.", 1.0},
		{".5", 0.5},
		{"99999999999999999999", 1e20},
	}
	for _, tc := range cases {
		v, err := Parse(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, v, tc.in)
	}
}

func TestParse_Tuples(t *testing.T) {
	v, err := Parse(`(1, 'a')`)
	require.NoError(t, err)
	require.Equal(t, []any{int64(1), "a"}, v)

	v, err = Parse(`(1)`)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	v, err = Parse(`(1,)`)
	require.NoError(t, err)
	require.Equal(t, []any{int64(1)}, v)

	v, err = Parse(`[1, 2, ]`)
	require.NoError(t, err)
	require.Equal(t, []any{int64(1), int64(2)}, v)
}

func TestParse_RejectsExpressions(t *testing.T) {
	cases := []string{
		`__import__('os').system('rm -rf /')`,
		`{'a': 1 + 2}`,
		`{'a': open('x')}`,
		`{'a': [x for x in y]}`,
		`{'a': lambda: 1}`,
		`{1: 'x'}`,
		`{'a': }`,
		`{'a' 1}`,
		`'unterminated`,
		`[1, 2`,
		`{'a': 1} extra`,
		`10L`,
		`1e`,
		`-`,
		``,
		`'\x4'`,
	}
	for _, in := range cases {
		_, err := Parse(in)
		require.Error(t, err, in)
		require.True(t, Error.Has(err), in)
	}
}

func TestParse_SyntaxErrorOffset(t *testing.T) {
	_, err := Parse(`{'asin': 'A1', 'title': boom}`)
	require.Error(t, err)

	var serr *SyntaxError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, 24, serr.Offset)
	require.Contains(t, serr.Msg, "boom")
}

func TestParse_DepthLimit(t *testing.T) {
	deep := strings.Repeat("[", MaxDepth+2) + strings.Repeat("]", MaxDepth+2)
	_, err := Parse(deep)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nesting")

	ok := strings.Repeat("[", MaxDepth) + strings.Repeat("]", MaxDepth)
	_, err = Parse(ok)
	require.NoError(t, err)
}

func TestParseMap_RequiresMapping(t *testing.T) {
	_, err := ParseMap(`['asin', 'A1']`)
	require.Error(t, err)
	require.True(t, Error.Has(err))
}
