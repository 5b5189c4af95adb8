package catalog

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gospellibrary/sdk-go/catalogtest"
	"github.com/gospellibrary/sdk-go/types"
)

const (
	testSchema         = "v4"
	testEnglishVersion = 42
	testSpanishVersion = 17
)

// publishFixtures serves English and Spanish fixture catalogs and indexes.
func publishFixtures(t *testing.T, srv *catalogtest.Server, codec Codec) {
	t.Helper()

	srv.Put(LanguagesPath(testSchema), []byte(catalogtest.LanguagesJSON))

	for lang, version := range map[string]int{
		catalogtest.EnglishLocalized: testEnglishVersion,
		catalogtest.SpanishLocalized: testSpanishVersion,
	} {
		srv.Put(IndexPath(testSchema, lang), []byte(`{"catalogVersion": `+strconv.Itoa(version)+`, "name": "index"}`))

		encoded, err := codec.Encode(catalogtest.CatalogBytes(t, lang))
		require.NoError(t, err)
		srv.Put(CatalogPath(testSchema, lang, version, codec), encoded)
	}
}

func newTestConfig(t *testing.T, srv *catalogtest.Server) types.Config {
	t.Helper()

	return types.Config{
		BaseURL:       srv.BaseURL(),
		SchemaVersion: testSchema,
		CachePath:     t.TempDir(),
		MaxRetries:    -1,
	}
}

func newTestClient(t *testing.T, codec Codec) (*Client, *catalogtest.Server) {
	t.Helper()

	srv := catalogtest.NewServer(t)
	publishFixtures(t, srv, codec)

	c, err := NewClient(newTestConfig(t, srv), WithCodec(codec))
	require.NoError(t, err)
	return c, srv
}

func openTestCatalog(t *testing.T, lang string) *DB {
	t.Helper()

	c, _ := newTestClient(t, XZ)
	db, err := c.Catalog(context.Background(), lang, 0)
	require.NoError(t, err)
	return db
}
