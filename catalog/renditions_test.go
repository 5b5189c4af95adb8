package catalog

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gospellibrary/sdk-go/types"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestParseRenditionsRelative(t *testing.T) {
	input := "100x200,/hello/world.png\n200x300,/test.jpg"

	got, err := ParseRenditions(input, mustParseURL(t, "https://cdn.example.com/base/"))
	require.NoError(t, err)

	assert.Equal(t, []types.Rendition{
		{Width: 100, Height: 200, URL: "https://cdn.example.com/hello/world.png"},
		{Width: 200, Height: 300, URL: "https://cdn.example.com/test.jpg"},
	}, got)
}

func TestParseRenditionsRelativeWithoutBase(t *testing.T) {
	_, err := ParseRenditions("100x200,/hello/world.png\n200x300,/test.jpg", nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestParseRenditionsAbsolute(t *testing.T) {
	input := "100x200,https://cdn.example.com/new/hello/world.png\n200x300,https://cdn.example.com/new/test.jpg"
	want := []types.Rendition{
		{Width: 100, Height: 200, URL: "https://cdn.example.com/new/hello/world.png"},
		{Width: 200, Height: 300, URL: "https://cdn.example.com/new/test.jpg"},
	}

	got, err := ParseRenditions(input, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// The base URL is ignored for absolute URLs.
	got, err = ParseRenditions(input, mustParseURL(t, "https://cdn.example.com/base/"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseRenditionsPathRelativeToSchema(t *testing.T) {
	base, err := renditionBase("https://cdn.example.com/mobile/", "v4")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/mobile/v4", base.String())

	got, err := ParseRenditions("10x20,covers/a.jpg", base)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/mobile/covers/a.jpg", got[0].URL)
}

func TestParseRenditionsMalformed(t *testing.T) {
	base := mustParseURL(t, "https://cdn.example.com/")
	tests := map[string]string{
		"no comma":      "100x200",
		"no separator":  "100,https://cdn.example.com/a.jpg",
		"bad width":     "wx200,https://cdn.example.com/a.jpg",
		"bad height":    "100xh,https://cdn.example.com/a.jpg",
		"second broken": "1x2,https://cdn.example.com/a.jpg\nbroken",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRenditions(input, base)
			assert.ErrorIs(t, err, types.ErrInvalidInput)
		})
	}
}

func TestParseRenditionsSkipsBlankLines(t *testing.T) {
	got, err := ParseRenditions("1x2,https://a.example/x.png\r\n\n3x4,https://a.example/y.png\n", nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[1].Width)
	assert.Equal(t, 4, got[1].Height)
}

func TestParseRenditionsEmpty(t *testing.T) {
	got, err := ParseRenditions("", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
