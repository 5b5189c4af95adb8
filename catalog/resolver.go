package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"
	"golang.org/x/text/language"

	"github.com/gospellibrary/sdk-go/types"
)

// Resolver discovers supported languages and current catalog versions.
type Resolver struct {
	source        Source
	schemaVersion string
	logger        *slog.Logger
}

// NewResolver creates a resolver reading index documents from source.
func NewResolver(source Source, schemaVersion string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{source: source, schemaVersion: schemaVersion, logger: logger}
}

// ListLanguages returns the languages index. found is false when the index
// could not be retrieved.
func (r *Resolver) ListLanguages(ctx context.Context) (languages []types.Language, found bool, err error) {
	body, err := r.source.Fetch(ctx, LanguagesPath(r.schemaVersion))
	if errors.Is(err, types.ErrNotFound) {
		r.logger.Debug("languages index unavailable", "schema_version", r.schemaVersion, "error", err)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch languages: %w", err)
	}

	if err := json.Unmarshal(body, &languages); err != nil {
		return nil, false, fmt.Errorf("failed to decode languages: %w", err)
	}
	return languages, true, nil
}

// CurrentVersion returns the current catalog version for languageCode. found
// is false when the index could not be retrieved or has no numeric
// catalogVersion.
func (r *Resolver) CurrentVersion(ctx context.Context, languageCode string) (version int, found bool, err error) {
	body, err := r.source.Fetch(ctx, IndexPath(r.schemaVersion, languageCode))
	if errors.Is(err, types.ErrNotFound) {
		r.logger.Debug("language index unavailable", "language", languageCode, "error", err)
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to fetch index for %s: %w", languageCode, err)
	}

	field := gjson.GetBytes(body, "catalogVersion")
	if field.Type != gjson.Number {
		return 0, false, nil
	}
	return int(field.Int()), true, nil
}

// MatchLanguage picks the catalog language that best serves the preferred
// locales. It reports false when no language matches with any confidence.
func MatchLanguage(languages []types.Language, preferred ...language.Tag) (types.Language, bool) {
	var (
		tags       []language.Tag
		candidates []types.Language
	)
	for _, l := range languages {
		tag, err := l.Tag()
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		candidates = append(candidates, l)
	}
	if len(tags) == 0 || len(preferred) == 0 {
		return types.Language{}, false
	}

	_, index, confidence := language.NewMatcher(tags).Match(preferred...)
	if confidence == language.No {
		return types.Language{}, false
	}
	return candidates[index], true
}
