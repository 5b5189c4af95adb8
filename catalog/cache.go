package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gospellibrary/sdk-go/types"
)

// CatalogFileName is the name of every decompressed catalog in the cache.
const CatalogFileName = "Catalog.sqlite"

// Cache materializes catalogs on local disk.
//
// A catalog version is treated as permanently valid content for its key: a
// file present at the key's path is returned without re-validation, and
// nothing is ever evicted.
type Cache struct {
	root   string
	source Source
	codec  Codec
	logger *slog.Logger
}

// NewCache creates a cache rooted at root that fetches missing catalogs from
// source, decoding them with codec (nil means XZ).
func NewCache(root string, source Source, codec Codec, logger *slog.Logger) *Cache {
	if codec == nil {
		codec = XZ
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{root: root, source: source, codec: codec, logger: logger}
}

// Path returns the deterministic cache location for key.
func (c *Cache) Path(key types.CatalogKey) string {
	return filepath.Join(
		c.root,
		key.SchemaVersion,
		"languages",
		key.LanguageCode,
		"catalogs",
		strconv.Itoa(key.Version),
		CatalogFileName,
	)
}

// EnsureLocal returns the path of the decompressed catalog for key, fetching
// and decompressing it first when it is not cached. found is false when the
// remote catalog does not exist.
func (c *Cache) EnsureLocal(ctx context.Context, key types.CatalogKey) (path string, found bool, err error) {
	path = c.Path(key)
	if isFile(path) {
		c.logger.Debug("catalog cache hit", "catalog", key.String(), "path", path)
		return path, true, nil
	}

	remote := CatalogPath(key.SchemaVersion, key.LanguageCode, key.Version, c.codec)
	c.logger.Info("fetching catalog", "catalog", key.String(), "remote", remote)

	payload, err := c.source.Fetch(ctx, remote)
	switch {
	case errors.Is(err, types.ErrNotFound):
		c.logger.Warn("catalog unavailable", "catalog", key.String(), "error", err)
	case err != nil:
		return "", false, fmt.Errorf("failed to fetch catalog %s: %w", key, err)
	default:
		data, err := c.codec.Decode(payload)
		if err != nil {
			return "", false, fmt.Errorf("failed to decompress catalog %s: %w", key, err)
		}
		if err := writeFileAtomic(path, data); err != nil {
			return "", false, fmt.Errorf("failed to write catalog %s: %w", key, err)
		}
		c.logger.Info("catalog cached", "catalog", key.String(), "compressed_bytes", len(payload), "bytes", len(data))
	}

	if isFile(path) {
		return path, true, nil
	}
	return "", false, nil
}

// writeFileAtomic writes data to a temp file beside path and renames it into
// place, so readers never observe a partial catalog. Concurrent writers of
// the same key race; the last rename wins.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+CatalogFileName+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
