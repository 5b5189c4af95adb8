package types

import "errors"

var (
	// ErrNotFound reports a remote document that could not be retrieved
	// (any non-200 response). Callers treat it as absence, not failure.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput reports a caller mistake, such as a relative rendition
	// URL with no base URL to resolve it against.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCatalogNotFound is returned by queries when the catalog for the
	// requested key cannot be made available locally.
	ErrCatalogNotFound = errors.New("catalog not found")
)
