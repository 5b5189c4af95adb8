package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gospellibrary/sdk-go/types"
)

// ParseRenditions converts a newline separated rendition string of
// "<width>x<height>,<url>" records into structured renditions, preserving
// input order. URLs that are not absolute http(s) URLs are resolved against
// base; a relative URL with a nil base is an ErrInvalidInput error.
func ParseRenditions(s string, base *url.URL) ([]types.Rendition, error) {
	var renditions []types.Rendition
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		size, ref, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("%w: rendition %q has no url", types.ErrInvalidInput, line)
		}
		w, h, ok := strings.Cut(size, "x")
		if !ok {
			return nil, fmt.Errorf("%w: rendition %q has no size", types.ErrInvalidInput, line)
		}
		width, err := strconv.Atoi(w)
		if err != nil {
			return nil, fmt.Errorf("%w: rendition %q width: %v", types.ErrInvalidInput, line, err)
		}
		height, err := strconv.Atoi(h)
		if err != nil {
			return nil, fmt.Errorf("%w: rendition %q height: %v", types.ErrInvalidInput, line, err)
		}

		if !isAbsoluteHTTP(ref) {
			if base == nil {
				return nil, fmt.Errorf("%w: base URL must be passed when url is not complete: %s", types.ErrInvalidInput, line)
			}
			resolved, err := base.Parse(ref)
			if err != nil {
				return nil, fmt.Errorf("%w: rendition %q url: %v", types.ErrInvalidInput, line, err)
			}
			ref = resolved.String()
		}

		renditions = append(renditions, types.Rendition{Width: width, Height: height, URL: ref})
	}
	return renditions, nil
}

func isAbsoluteHTTP(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// renditionBase returns the URL relative rendition paths resolve against:
// the schema version joined onto the CDN base URL.
func renditionBase(baseURL, schemaVersion string) (*url.URL, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return base.Parse(schemaVersion)
}
