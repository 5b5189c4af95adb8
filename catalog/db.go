package catalog

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/gospellibrary/sdk-go/types"
)

// localizationLanguageID is the language_name localization used when
// listing languages.
const localizationLanguageID = 1

// DB runs the fixed catalog queries against one cached catalog.
//
// The database file is opened and closed for every query; a DB holds no
// connection between calls.
type DB struct {
	key   types.CatalogKey
	cache *Cache
	base  *url.URL

	mu      sync.Mutex
	mappers map[string]*rowMapper
}

// NewDB creates a query layer for key. base resolves relative rendition URLs
// and may be nil when every rendition is absolute.
func NewDB(cache *Cache, key types.CatalogKey, base *url.URL) *DB {
	return &DB{
		key:     key,
		cache:   cache,
		base:    base,
		mappers: make(map[string]*rowMapper),
	}
}

// Key returns the catalog this DB reads.
func (d *DB) Key() types.CatalogKey {
	return d.key
}

// Exists reports whether the catalog is cached or can be fetched.
func (d *DB) Exists(ctx context.Context) (bool, error) {
	_, found, err := d.cache.EnsureLocal(ctx, d.key)
	return found, err
}

// Path returns the local catalog file, fetching it first if needed.
func (d *DB) Path(ctx context.Context) (string, error) {
	path, found, err := d.cache.EnsureLocal(ctx, d.key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %s", types.ErrCatalogNotFound, d.key)
	}
	return path, nil
}

// Languages returns every language with its name in the localization
// language, ordered by LDS code.
func (d *DB) Languages(ctx context.Context) ([]types.Row, error) {
	return d.query(ctx, "languages", `
		SELECT language.*, language_name.*
		FROM
			language
			LEFT OUTER JOIN (
				SELECT *
				FROM language_name
				WHERE localization_language_id = ?
			) language_name ON language.id = language_name.language_id
		ORDER BY language.lds`, localizationLanguageID)
}

// LanguageName returns the catalog's name for a language.
func (d *DB) LanguageName(ctx context.Context, languageID int64) (string, bool, error) {
	rows, err := d.query(ctx, "language_name",
		`SELECT name FROM language_name WHERE language_id = ? LIMIT 1`, languageID)
	if err != nil || len(rows) == 0 {
		return "", false, err
	}
	name, ok := rows[0].String("name")
	return name, ok, nil
}

// ItemCategories returns all item categories.
func (d *DB) ItemCategories(ctx context.Context) ([]types.Row, error) {
	return d.query(ctx, "item_categories", `SELECT * FROM item_category`)
}

// Collection returns one library collection by id.
func (d *DB) Collection(ctx context.Context, collectionID int64) (types.Row, bool, error) {
	return first(d.query(ctx, "collection",
		`SELECT * FROM library_collection WHERE id = ? LIMIT 1`, collectionID))
}

// Sections returns the sections of a collection ordered by position.
func (d *DB) Sections(ctx context.Context, collectionID int64) ([]types.Row, error) {
	return d.query(ctx, "sections", `
		SELECT *
		FROM library_section
		WHERE library_collection_id = ?
		ORDER BY position`, collectionID)
}

// Collections returns the collections nested in any of the sections,
// ordered by position.
func (d *DB) Collections(ctx context.Context, sectionIDs []int64) ([]types.Row, error) {
	if len(sectionIDs) == 0 {
		return []types.Row{}, nil
	}
	return d.query(ctx, "collections", `
		SELECT *
		FROM library_collection
		WHERE library_section_id IN (`+placeholders(len(sectionIDs))+`)
		ORDER BY position`, int64Args(sectionIDs)...)
}

// Items returns items joined with their library placement. A nil sectionIDs
// returns every item ordered by external id; otherwise only items in those
// sections are returned, ordered by position.
func (d *DB) Items(ctx context.Context, sectionIDs []int64) ([]types.Row, error) {
	if sectionIDs == nil {
		return d.query(ctx, "items_all", `
			SELECT item.*, library_item.*
			FROM
				library_item
				INNER JOIN item ON library_item.item_id = item.id
			ORDER BY item.external_id`)
	}
	if len(sectionIDs) == 0 {
		return []types.Row{}, nil
	}
	return d.query(ctx, "items", `
		SELECT item.*, library_item.*
		FROM
			library_item
			INNER JOIN item ON library_item.item_id = item.id
		WHERE library_item.library_section_id IN (`+placeholders(len(sectionIDs))+`)
		ORDER BY library_item.position`, int64Args(sectionIDs)...)
}

// Nodes returns the collections and items of the sections merged into one
// sequence ordered by position. Ties keep collections before items.
func (d *DB) Nodes(ctx context.Context, sectionIDs []int64) ([]types.Row, error) {
	if len(sectionIDs) == 0 {
		return []types.Row{}, nil
	}
	collections, err := d.Collections(ctx, sectionIDs)
	if err != nil {
		return nil, err
	}
	items, err := d.Items(ctx, sectionIDs)
	if err != nil {
		return nil, err
	}

	nodes := append(collections, items...)
	slices.SortStableFunc(nodes, func(a, b types.Row) int {
		pa, _ := a.Int64("position")
		pb, _ := b.Int64("position")
		return cmp.Compare(pa, pb)
	})
	return nodes, nil
}

// Item returns one item by id or by uri. Exactly one of ref.ID and ref.URI
// must be set.
func (d *DB) Item(ctx context.Context, ref types.ItemRef) (types.Row, bool, error) {
	switch {
	case ref.ID != 0 && ref.URI != "":
		return nil, false, fmt.Errorf("%w: item id and uri are mutually exclusive", types.ErrInvalidInput)
	case ref.ID != 0:
		return first(d.query(ctx, "item_by_id", `SELECT * FROM item WHERE id = ? LIMIT 1`, ref.ID))
	case ref.URI != "":
		return first(d.query(ctx, "item_by_uri", `SELECT * FROM item WHERE uri = ? LIMIT 1`, ref.URI))
	default:
		return nil, false, fmt.Errorf("%w: item id or uri is required", types.ErrInvalidInput)
	}
}

// query opens the catalog, runs one statement and maps its rows.
func (d *DB) query(ctx context.Context, name, stmt string, args ...any) ([]types.Row, error) {
	path, err := d.Path(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query %s columns: %w", name, err)
	}

	result, err := d.mapper(name, columns).scanAll(rows)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	if result == nil {
		result = []types.Row{}
	}
	return result, nil
}

func (d *DB) mapper(name string, columns []string) *rowMapper {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.mappers[name]
	if !ok || !m.matches(columns) {
		m = newRowMapper(columns, d.base)
		d.mappers[name] = m
	}
	return m
}

// openReadOnly opens a catalog file for queries only.
func openReadOnly(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

func first(rows []types.Row, err error) (types.Row, bool, error) {
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}
	return rows[0], true, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
