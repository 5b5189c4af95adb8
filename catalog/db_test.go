package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gospellibrary/sdk-go/catalogtest"
	"github.com/gospellibrary/sdk-go/types"
)

func TestDBLanguageNames(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		catalog string
		id      int64
		want    string
	}{
		{catalogtest.EnglishLocalized, catalogtest.EnglishLanguageID, "English"},
		{catalogtest.EnglishLocalized, catalogtest.SpanishLanguageID, "Spanish"},
		{catalogtest.SpanishLocalized, catalogtest.EnglishLanguageID, "Inglés"},
		{catalogtest.SpanishLocalized, catalogtest.SpanishLanguageID, "Español"},
	}
	for _, tt := range tests {
		t.Run(tt.catalog+"/"+tt.want, func(t *testing.T) {
			db := openTestCatalog(t, tt.catalog)

			name, found, err := db.LanguageName(ctx, tt.id)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestDBLanguageNameMissing(t *testing.T) {
	db := openTestCatalog(t, catalogtest.EnglishLocalized)

	name, found, err := db.LanguageName(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, name)
}

func TestDBLanguages(t *testing.T) {
	db := openTestCatalog(t, catalogtest.EnglishLocalized)

	rows, err := db.Languages(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "000", rows[0]["lds"])
	assert.Equal(t, int64(catalogtest.EnglishLanguageID), rows[0]["id"])
	assert.Equal(t, "English", rows[0]["name"])
	assert.Equal(t, "002", rows[1]["lds"])
	assert.Equal(t, "Spanish", rows[1]["name"])
}

func TestDBItemCategories(t *testing.T) {
	db := openTestCatalog(t, catalogtest.EnglishLocalized)

	rows, err := db.ItemCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestDBCollection(t *testing.T) {
	db := openTestCatalog(t, catalogtest.EnglishLocalized)
	ctx := context.Background()

	root, found, err := db.Collection(ctx, catalogtest.RootCollectionID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "root", root["external_id"])
	_, hasSection := root["library_section_id"]
	assert.False(t, hasSection, "null section id must be omitted")
	_, hasCovers := root["cover_renditions"]
	assert.False(t, hasCovers)

	helps, found, err := db.Collection(ctx, 2)
	require.NoError(t, err)
	require.True(t, found)
	renditions, ok := helps["cover_renditions"].([]types.Rendition)
	require.True(t, ok)
	require.Len(t, renditions, 1)
	assert.Equal(t, db.base.ResolveReference(mustParseURL(t, "/covers/helps.jpg")).String(), renditions[0].URL)
	assert.Equal(t, "100x200,/covers/helps.jpg", helps["raw_cover_renditions"])

	_, found, err = db.Collection(ctx, 404)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDBSections(t *testing.T) {
	db := openTestCatalog(t, catalogtest.EnglishLocalized)

	rows, err := db.Sections(context.Background(), catalogtest.RootCollectionID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(catalogtest.ScripturesSection), rows[0]["id"])
	assert.Equal(t, int64(catalogtest.ConferenceSection), rows[1]["id"])
	_, hasTitle := rows[1]["title"]
	assert.False(t, hasTitle)

	rows, err = db.Sections(context.Background(), 404)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDBCollections(t *testing.T) {
	db := openTestCatalog(t, catalogtest.EnglishLocalized)
	ctx := context.Background()

	rows, err := db.Collections(ctx, []int64{catalogtest.ConferenceSection, catalogtest.ScripturesSection})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assertPositionsSorted(t, rows)

	rows, err = db.Collections(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDBItems(t *testing.T) {
	db := openTestCatalog(t, catalogtest.EnglishLocalized)
	ctx := context.Background()

	all, err := db.Items(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		prev, _ := all[i-1].String("external_id")
		cur, _ := all[i].String("external_id")
		assert.LessOrEqual(t, prev, cur)
	}
	assertHasItem(t, all, catalogtest.BookOfMormonURI, catalogtest.EnglishLanguageID)
	assertHasItem(t, all, catalogtest.ConferenceURI, catalogtest.EnglishLanguageID)

	scriptures, err := db.Items(ctx, []int64{catalogtest.ScripturesSection})
	require.NoError(t, err)
	require.Len(t, scriptures, 2)
	assertPositionsSorted(t, scriptures)
	// item.id wins over library_item.id in the join.
	assert.Equal(t, int64(catalogtest.BookOfMormonItemID), scriptures[0]["id"])
	assert.Equal(t, catalogtest.BookOfMormonExternalID, scriptures[0]["external_id"])

	none, err := db.Items(ctx, []int64{})
	require.NoError(t, err)
	assert.Empty(t, none)

	none, err = db.Items(ctx, []int64{catalogtest.EmptySection})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDBItemsSpanish(t *testing.T) {
	db := openTestCatalog(t, catalogtest.SpanishLocalized)

	all, err := db.Items(context.Background(), nil)
	require.NoError(t, err)
	assertHasItem(t, all, catalogtest.BookOfMormonURI, catalogtest.SpanishLanguageID)
	assertHasItem(t, all, catalogtest.ConferenceURI, catalogtest.SpanishLanguageID)
}

func TestDBNodes(t *testing.T) {
	db := openTestCatalog(t, catalogtest.EnglishLocalized)
	ctx := context.Background()
	sections := []int64{catalogtest.ScripturesSection, catalogtest.ConferenceSection}

	nodes, err := db.Nodes(ctx, sections)
	require.NoError(t, err)
	collections, err := db.Collections(ctx, sections)
	require.NoError(t, err)
	items, err := db.Items(ctx, sections)
	require.NoError(t, err)

	assert.Len(t, nodes, len(collections)+len(items))
	assertPositionsSorted(t, nodes)
	for _, want := range append(collections, items...) {
		assert.Contains(t, nodes, want)
	}

	scripture, err := db.Nodes(ctx, []int64{catalogtest.ScripturesSection})
	require.NoError(t, err)
	var ids []any
	for _, n := range scripture {
		ids = append(ids, n["external_id"])
	}
	assert.Equal(t, []any{catalogtest.BookOfMormonExternalID, "scriptures-study", "_general_conference_2014_10", "scriptures-other"}, ids)

	empty, err := db.Nodes(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDBItemByIDAndURI(t *testing.T) {
	db := openTestCatalog(t, catalogtest.EnglishLocalized)
	ctx := context.Background()

	byID, found, err := db.Item(ctx, types.ItemRef{ID: catalogtest.BookOfMormonItemID})
	require.NoError(t, err)
	require.True(t, found)

	byURI, found, err := db.Item(ctx, types.ItemRef{URI: catalogtest.BookOfMormonURI})
	require.NoError(t, err)
	require.True(t, found)

	for _, item := range []types.Row{byID, byURI} {
		assert.Equal(t, catalogtest.BookOfMormonExternalID, item["external_id"])
		version, ok := item.Int64("version")
		require.True(t, ok)
		assert.GreaterOrEqual(t, version, int64(1))
		assert.Equal(t, int64(catalogtest.BookOfMormonVersion), version)
		_, hasLatest := item["latest_version"]
		assert.False(t, hasLatest)

		renditions, ok := item["item_cover_renditions"].([]types.Rendition)
		require.True(t, ok)
		require.Len(t, renditions, 2)
		assert.Equal(t, catalogtest.AbsoluteCoverURL, renditions[0].URL)
		assert.Equal(t, 60, renditions[0].Width)
		assert.Equal(t, db.base.ResolveReference(mustParseURL(t, catalogtest.RelativeCoverPath)).String(), renditions[1].URL)
		assert.Equal(t, catalogtest.ItemCoverRendition, item["raw_item_cover_renditions"])
	}
	assert.Equal(t, byID, byURI)
}

func TestDBItemNotFound(t *testing.T) {
	db := openTestCatalog(t, catalogtest.EnglishLocalized)

	item, found, err := db.Item(context.Background(), types.ItemRef{URI: "/nope"})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, item)
}

func TestDBItemRequiresExactlyOneSelector(t *testing.T) {
	db := openTestCatalog(t, catalogtest.EnglishLocalized)
	ctx := context.Background()

	_, _, err := db.Item(ctx, types.ItemRef{})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, _, err = db.Item(ctx, types.ItemRef{ID: 1, URI: "/x"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestDBCatalogNotFound(t *testing.T) {
	c, _ := newTestClient(t, XZ)
	db, err := c.Catalog(context.Background(), "eng", 999)
	require.NoError(t, err)

	exists, err := db.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = db.Items(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrCatalogNotFound)
}

func TestDBReusesRowMapper(t *testing.T) {
	db := openTestCatalog(t, catalogtest.EnglishLocalized)
	ctx := context.Background()

	_, err := db.ItemCategories(ctx)
	require.NoError(t, err)
	m := db.mappers["item_categories"]
	require.NotNil(t, m)

	_, err = db.ItemCategories(ctx)
	require.NoError(t, err)
	assert.Same(t, m, db.mappers["item_categories"])
}

func assertPositionsSorted(t *testing.T, rows []types.Row) {
	t.Helper()
	for i := 1; i < len(rows); i++ {
		prev, ok := rows[i-1].Int64("position")
		require.True(t, ok)
		cur, ok := rows[i].Int64("position")
		require.True(t, ok)
		assert.LessOrEqual(t, prev, cur)
	}
}

func assertHasItem(t *testing.T, rows []types.Row, uri string, languageID int64) {
	t.Helper()
	for _, row := range rows {
		lang, _ := row.Int64("language_id")
		if row["uri"] == uri && lang == languageID {
			return
		}
	}
	t.Errorf("no item %s for language %d", uri, languageID)
}
