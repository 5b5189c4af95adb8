package catalog

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"

	"github.com/gospellibrary/sdk-go/client"
)

// Source fetches documents addressed by a path relative to the catalog root,
// such as "v4/languages/languages.json". Missing documents are reported with
// an error matching types.ErrNotFound.
type Source interface {
	Fetch(ctx context.Context, relPath string) ([]byte, error)
}

// HTTPSource fetches documents from a CDN base URL through a Session.
type HTTPSource struct {
	session *client.Session
	baseURL *url.URL
}

// NewHTTPSource creates a source rooted at baseURL.
func NewHTTPSource(session *client.Session, baseURL string) (*HTTPSource, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &HTTPSource{session: session, baseURL: base}, nil
}

// Fetch resolves relPath against the base URL and GETs it.
func (s *HTTPSource) Fetch(ctx context.Context, relPath string) ([]byte, error) {
	ref, err := s.baseURL.Parse(relPath)
	if err != nil {
		return nil, fmt.Errorf("invalid document path %q: %w", relPath, err)
	}
	return s.session.Get(ctx, ref.String())
}

// LanguagesPath is the languages index document for a schema version.
func LanguagesPath(schemaVersion string) string {
	return path.Join(schemaVersion, "languages", "languages.json")
}

// IndexPath is the per-language index document holding catalogVersion.
func IndexPath(schemaVersion, languageCode string) string {
	return path.Join(schemaVersion, "languages", languageCode, "index.json")
}

// CatalogPath is the compressed catalog for one version, with the codec's extension.
func CatalogPath(schemaVersion, languageCode string, version int, codec Codec) string {
	return path.Join(schemaVersion, "languages", languageCode, "catalogs", strconv.Itoa(version)+codec.Ext())
}
