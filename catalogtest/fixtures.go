// Package catalogtest provides fixture catalogs and a fixture CDN for tests.
package catalogtest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// Fixture identifiers shared by tests.
const (
	BookOfMormonItemID     = 128350135
	BookOfMormonExternalID = "_scriptures_bofm_000"
	BookOfMormonURI        = "/scriptures/bofm"
	ConferenceURI          = "/general-conference/2014/10"

	// BookOfMormonVersion and BookOfMormonLatestVersion are both selected by
	// item queries; version precedes latest_version in the item table.
	BookOfMormonVersion       = 5
	BookOfMormonLatestVersion = 6

	RootCollectionID   = 1
	ScripturesSection  = 10
	ConferenceSection  = 11
	EmptySection       = 99
	EnglishLanguageID  = 1
	SpanishLanguageID  = 3
	EnglishLocalized   = "eng"
	SpanishLocalized   = "spa"
	RelativeCoverPath  = "/covers/bofm-120.jpg"
	AbsoluteCoverURL   = "https://cdn.example.com/covers/bofm-60.jpg"
	ItemCoverRendition = "60x80," + AbsoluteCoverURL + "\n120x160," + RelativeCoverPath
)

const schema = `
CREATE TABLE language (
	id INTEGER PRIMARY KEY,
	lds TEXT NOT NULL,
	iso639_3 TEXT NOT NULL,
	bcp47 TEXT NOT NULL,
	root_library_collection_id INTEGER
);
CREATE TABLE language_name (
	id INTEGER PRIMARY KEY,
	language_id INTEGER NOT NULL,
	localization_language_id INTEGER NOT NULL,
	name TEXT NOT NULL
);
CREATE TABLE item_category (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE library_collection (
	id INTEGER PRIMARY KEY,
	external_id TEXT NOT NULL,
	library_section_id INTEGER,
	position INTEGER NOT NULL,
	title_html TEXT NOT NULL,
	cover_renditions TEXT,
	type_id INTEGER NOT NULL
);
CREATE TABLE library_section (
	id INTEGER PRIMARY KEY,
	external_id TEXT NOT NULL,
	library_collection_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	title TEXT
);
CREATE TABLE item (
	id INTEGER PRIMARY KEY,
	external_id TEXT NOT NULL,
	language_id INTEGER NOT NULL,
	uri TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	item_cover_renditions TEXT,
	item_category_id INTEGER NOT NULL,
	version INTEGER NOT NULL,
	latest_version INTEGER,
	obsolete INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE library_item (
	id INTEGER PRIMARY KEY,
	external_id TEXT NOT NULL,
	library_section_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	title_html TEXT NOT NULL,
	is_obsolete INTEGER NOT NULL DEFAULT 0,
	item_id INTEGER NOT NULL REFERENCES item(id)
);
`

// BuildCatalog writes a fixture catalog database to path. localization
// selects the language the language names are written in: EnglishLocalized
// or SpanishLocalized.
func BuildCatalog(t testing.TB, path, localization string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create fixture dir: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open fixture db: %v", err)
	}
	defer db.Close()

	names := map[int]string{EnglishLanguageID: "English", SpanishLanguageID: "Spanish"}
	languageID := EnglishLanguageID
	if localization == SpanishLocalized {
		names = map[int]string{EnglishLanguageID: "Inglés", SpanishLanguageID: "Español"}
		languageID = SpanishLanguageID
	}

	stmts := []struct {
		sql  string
		args []any
	}{
		{schema, nil},
		{`INSERT INTO language VALUES (?, '000', 'eng', 'en', 1), (?, '002', 'spa', 'es', 1)`,
			[]any{EnglishLanguageID, SpanishLanguageID}},
		{`INSERT INTO language_name (language_id, localization_language_id, name) VALUES (?, 1, ?), (?, 1, ?)`,
			[]any{SpanishLanguageID, names[SpanishLanguageID], EnglishLanguageID, names[EnglishLanguageID]}},
		{`INSERT INTO item_category VALUES (1, 'Scriptures'), (2, 'General Conference')`, nil},
		{`INSERT INTO library_collection VALUES
			(1, 'root', NULL, 0, 'Library', NULL, 1),
			(2, 'scriptures-study', ?, 2, 'Study Helps', '100x200,/covers/helps.jpg', 2),
			(3, 'scriptures-other', ?, 4, 'Other', NULL, 2),
			(4, 'conference-archive', ?, 5, 'Archive', NULL, 2)`,
			[]any{ScripturesSection, ScripturesSection, ConferenceSection}},
		{`INSERT INTO library_section VALUES
			(?, 'scriptures', ?, 0, 'Scriptures'),
			(?, 'conference', ?, 1, NULL)`,
			[]any{ScripturesSection, RootCollectionID, ConferenceSection, RootCollectionID}},
		{`INSERT INTO item VALUES
			(?, ?, ?, ?, 'Book of Mormon', ?, 1, ?, ?, 0),
			(2, '_general_conference_2014_10', ?, ?, 'October 2014', NULL, 2, 3, NULL, 0),
			(3, '_general_conference_2015_04', ?, '/general-conference/2015/04', 'April 2015', NULL, 2, 1, NULL, 0)`,
			[]any{
				BookOfMormonItemID, BookOfMormonExternalID, languageID, BookOfMormonURI, ItemCoverRendition,
				BookOfMormonVersion, BookOfMormonLatestVersion,
				languageID, ConferenceURI,
				languageID,
			}},
		{`INSERT INTO library_item VALUES
			(100, 'li-bofm', ?, 1, 'Book of Mormon', 0, ?),
			(101, 'li-gc-2014-10', ?, 3, 'October 2014', 0, 2),
			(102, 'li-gc-2015-04', ?, 0, 'April 2015', 0, 3)`,
			[]any{ScripturesSection, BookOfMormonItemID, ScripturesSection, ConferenceSection}},
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt.sql, stmt.args...); err != nil {
			t.Fatalf("failed to build fixture catalog: %v\n%s", err, stmt.sql)
		}
	}
}

// CatalogBytes returns the raw bytes of a freshly built fixture catalog.
func CatalogBytes(t testing.TB, localization string) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.sqlite")
	BuildCatalog(t, path, localization)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture catalog: %v", err)
	}
	return data
}

// LanguagesJSON is a fixture languages.json document.
const LanguagesJSON = `[
	{"id": 1, "iso639_3Code": "eng", "bcp47Code": "en", "nativeName": "English", "ldsCode": "000"},
	{"id": 3, "iso639_3Code": "spa", "bcp47Code": "es", "nativeName": "Español", "ldsCode": "002"},
	{"id": 5, "iso639_3Code": "por", "bcp47Code": "pt-BR", "nativeName": "Português", "ldsCode": "059"}
]`
