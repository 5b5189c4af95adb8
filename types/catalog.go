package types

import (
	"fmt"
	"strconv"

	"golang.org/x/text/language"
)

// CatalogKey identifies one immutable catalog snapshot.
type CatalogKey struct {
	LanguageCode  string
	SchemaVersion string
	Version       int
}

func (k CatalogKey) String() string {
	return k.SchemaVersion + "/" + k.LanguageCode + "/" + strconv.Itoa(k.Version)
}

// Language is one entry of the languages.json index.
type Language struct {
	ID           int    `json:"id"`
	ISO639_3Code string `json:"iso639_3Code"`
	BCP47Code    string `json:"bcp47Code"`
	NativeName   string `json:"nativeName"`
	LDSCode      string `json:"ldsCode"`
}

// Tag parses the language's BCP 47 code.
func (l Language) Tag() (language.Tag, error) {
	tag, err := language.Parse(l.BCP47Code)
	if err != nil {
		return language.Und, fmt.Errorf("invalid bcp47 code %q for %s: %w", l.BCP47Code, l.ISO639_3Code, err)
	}
	return tag, nil
}

// Rendition is one sized variant of an image.
type Rendition struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
}

// Row is one post-processed result row keyed by column name. Null columns
// are absent.
type Row map[string]any

// Int64 returns the named column as an int64 when it holds an integer.
func (r Row) Int64(name string) (int64, bool) {
	switch v := r[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// String returns the named column as a string.
func (r Row) String(name string) (string, bool) {
	switch v := r[name].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

// ItemRef selects a single item. Exactly one of ID or URI must be set.
type ItemRef struct {
	ID  int64
	URI string
}

// EventCatalogPublished is the Notification event type sent after a mirror publish.
const EventCatalogPublished = "catalog.published"

// Notification announces a catalog copied into the mirror bucket.
type Notification struct {
	MessageID      string `json:"message_id,omitempty"`
	ReceiptHandle  string `json:"receipt_handle,omitempty"`
	EventType      string `json:"event_type"`
	LanguageCode   string `json:"language_code"`
	SchemaVersion  string `json:"schema_version"`
	CatalogVersion int    `json:"catalog_version"`
	S3Bucket       string `json:"s3_bucket"`
	S3Key          string `json:"s3_key"`
	SizeBytes      int64  `json:"size_bytes"`
	Timestamp      string `json:"timestamp"`
	RawMessage     string `json:"raw_message,omitempty"`
}

// Key returns the catalog the notification refers to.
func (n Notification) Key() CatalogKey {
	return CatalogKey{
		LanguageCode:  n.LanguageCode,
		SchemaVersion: n.SchemaVersion,
		Version:       n.CatalogVersion,
	}
}
