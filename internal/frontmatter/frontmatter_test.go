package frontmatter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	raw, body, had, err := Split(input)
	require.NoError(t, err)
	require.False(t, had)
	require.Empty(t, raw)
	require.Equal(t, input, body)
}

func TestSplit_YAMLFrontmatter(t *testing.T) {
	raw, body, had, err := Split([]byte("---\ntitle: Intro\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("title: Intro\n"), raw)
	require.Equal(t, []byte("# Title\n"), body)
}

func TestSplit_CRLF(t *testing.T) {
	raw, body, had, err := Split([]byte("---\r\ntitle: Intro\r\n---\r\n# Title\r\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("title: Intro\r\n"), raw)
	require.Equal(t, []byte("# Title\r\n"), body)
}

func TestSplit_EmptyBlock(t *testing.T) {
	raw, body, had, err := Split([]byte("---\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Empty(t, raw)
	require.Equal(t, []byte("# Title\n"), body)
}

func TestSplit_ClosingDelimiterAtEOF(t *testing.T) {
	raw, body, had, err := Split([]byte("---\ntitle: x\n---"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("title: x\n"), raw)
	require.Empty(t, body)
}

func TestSplit_MissingClosingDelimiter(t *testing.T) {
	_, _, had, err := Split([]byte("---\ntitle: x\n# Title\n"))
	require.Error(t, err)
	require.False(t, had)
	require.True(t, errors.Is(err, ErrMissingClosingDelimiter))
}

func TestParse(t *testing.T) {
	page, err := Parse([]byte("---\ntitle: Intro\nincludes:\n  - partials\n---\nbody"))
	require.NoError(t, err)
	assert.True(t, page.Had)
	assert.Equal(t, "Intro", page.Fields["title"])
	assert.Equal(t, []any{"partials"}, page.Fields["includes"])
	assert.Equal(t, []byte("body"), page.Body)

	page, err = Parse([]byte("plain"))
	require.NoError(t, err)
	assert.NotNil(t, page.Fields)
	assert.Empty(t, page.Fields)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: [unterminated\n---\nbody"))
	require.Error(t, err)
}

func TestSerializeYAML_SortsKeys(t *testing.T) {
	out, err := SerializeYAML(map[string]any{
		"zeta":  1,
		"alpha": map[string]any{"b": true, "a": "x"},
	})
	require.NoError(t, err)
	require.Equal(t, "alpha:\n  a: x\n  b: true\nzeta: 1\n", string(out))

	out, err = SerializeYAML(nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(map[string]any{"title": "A", "tags": []any{"x"}}, []byte("body"))
	require.NoError(t, err)
	b, err := Fingerprint(map[string]any{"tags": []any{"x"}, "title": "A", "fingerprint": "stale"}, []byte("body"))
	require.NoError(t, err)
	require.NotEmpty(t, a)
	require.Equal(t, a, b)

	c, err := Fingerprint(map[string]any{"title": "A", "tags": []any{"x"}}, []byte("other body"))
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}
