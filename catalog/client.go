// Package catalog provides read access to versioned, localized content
// catalogs.
//
// A catalog is a SQLite database published per language and version as a
// compressed blob. The package resolves the current version of a language's
// catalog, downloads and caches the database, and runs a fixed set of
// queries over it, normalizing rendition strings into structured data.
//
// Typical use:
//
//	cfg, _ := client.LoadConfig()
//	c, err := catalog.NewClient(cfg)
//	db, err := c.Catalog(ctx, "eng", 0) // 0 resolves the current version
//	item, found, err := db.Item(ctx, types.ItemRef{URI: "/scriptures/bofm"})
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gospellibrary/sdk-go/client"
	"github.com/gospellibrary/sdk-go/types"
)

// Client ties a Source, a Resolver and a Cache together for one
// configuration. Each Client owns its own session and cache root.
type Client struct {
	cfg      types.Config
	source   Source
	resolver *Resolver
	cache    *Cache
	base     *url.URL
	logger   *slog.Logger
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	source  Source
	session *client.Session
	codec   Codec
}

// WithSource reads documents from src instead of the CDN, e.g. an S3 mirror.
func WithSource(src Source) Option {
	return func(o *clientOptions) { o.source = src }
}

// WithSession sends CDN requests through session.
func WithSession(session *client.Session) Option {
	return func(o *clientOptions) { o.session = session }
}

// WithCodec sets the compression of remote catalogs (default XZ).
func WithCodec(codec Codec) Option {
	return func(o *clientOptions) { o.codec = codec }
}

// NewClient creates a Client for cfg. Empty config fields take defaults.
func NewClient(cfg types.Config, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.source == nil {
		session := o.session
		if session == nil {
			session = client.NewSession(cfg)
		}
		src, err := NewHTTPSource(session, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		o.source = src
	}

	base, err := renditionBase(cfg.BaseURL, cfg.SchemaVersion)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:      cfg,
		source:   o.source,
		resolver: NewResolver(o.source, cfg.SchemaVersion, cfg.Logger),
		cache:    NewCache(cfg.CachePath, o.source, o.codec, cfg.Logger),
		base:     base,
		logger:   cfg.Logger,
	}, nil
}

// Config returns the effective configuration.
func (c *Client) Config() types.Config {
	return c.cfg
}

// Cache returns the client's catalog cache.
func (c *Client) Cache() *Cache {
	return c.cache
}

// Languages returns the languages index; found is false when it is unavailable.
func (c *Client) Languages(ctx context.Context) ([]types.Language, bool, error) {
	return c.resolver.ListLanguages(ctx)
}

// CurrentVersion returns the current catalog version of languageCode (the
// configured language when empty).
func (c *Client) CurrentVersion(ctx context.Context, languageCode string) (int, bool, error) {
	if languageCode == "" {
		languageCode = c.cfg.LanguageCode
	}
	return c.resolver.CurrentVersion(ctx, languageCode)
}

// Catalog returns the query layer for a language's catalog. An empty
// languageCode uses the configured language; version 0 resolves the current
// version, failing with ErrCatalogNotFound when none is published.
func (c *Client) Catalog(ctx context.Context, languageCode string, version int) (*DB, error) {
	if languageCode == "" {
		languageCode = c.cfg.LanguageCode
	}
	if version == 0 {
		current, found, err := c.resolver.CurrentVersion(ctx, languageCode)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: no current version for %s", types.ErrCatalogNotFound, languageCode)
		}
		version = current
	}

	key := types.CatalogKey{
		LanguageCode:  languageCode,
		SchemaVersion: c.cfg.SchemaVersion,
		Version:       version,
	}
	c.logger.Debug("opening catalog", "catalog", key.String())
	return NewDB(c.cache, key, c.base), nil
}
