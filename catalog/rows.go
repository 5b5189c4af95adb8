package catalog

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/gospellibrary/sdk-go/types"
)

type fieldKind int

const (
	fieldPlain fieldKind = iota
	fieldVersion
	fieldRendition
)

// fieldKinds maps the columns that need more than a copy to their handling.
var fieldKinds = map[string]fieldKind{
	"version":               fieldVersion,
	"latest_version":        fieldVersion,
	"cover_renditions":      fieldRendition,
	"item_cover_renditions": fieldRendition,
	"image_renditions":      fieldRendition,
}

type fieldRule struct {
	column string
	key    string
	kind   fieldKind
}

// rowMapper turns scanned rows of one query into Rows. It is built once
// from the query's result columns and reused for every row.
type rowMapper struct {
	rules []fieldRule
	base  *url.URL
}

func newRowMapper(columns []string, base *url.URL) *rowMapper {
	rules := make([]fieldRule, len(columns))
	for i, name := range columns {
		rule := fieldRule{column: name, key: name, kind: fieldKinds[name]}
		if rule.kind == fieldVersion {
			rule.key = "version"
		}
		rules[i] = rule
	}
	return &rowMapper{rules: rules, base: base}
}

// matches reports whether the mapper was built for these columns.
func (m *rowMapper) matches(columns []string) bool {
	if len(columns) != len(m.rules) {
		return false
	}
	for i, name := range columns {
		if m.rules[i].column != name {
			return false
		}
	}
	return true
}

// mapRow applies the rules to one row of values.
//
// The first non-null value written to a key wins; later columns targeting
// the same key are dropped without notice. This covers joins that repeat
// columns such as id, and also means that when both version and
// latest_version are present, whichever comes first in the select list
// becomes "version". That ordering dependence looks unintended but is
// observable, so it is kept.
func (m *rowMapper) mapRow(values []any) (types.Row, error) {
	row := make(types.Row, len(values))
	for i, rule := range m.rules {
		value := values[i]
		if value == nil {
			continue
		}
		if _, seen := row[rule.key]; seen {
			continue
		}

		switch rule.kind {
		case fieldRendition:
			raw, ok := value.(string)
			if !ok {
				if b, isBytes := value.([]byte); isBytes {
					raw = string(b)
				} else {
					return nil, fmt.Errorf("column %s: unexpected rendition value %T", rule.column, value)
				}
			}
			renditions, err := ParseRenditions(raw, m.base)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", rule.column, err)
			}
			row[rule.key] = renditions
			row["raw_"+rule.key] = raw
		default:
			row[rule.key] = value
		}
	}
	return row, nil
}

// scanAll maps every remaining row with m.
func (m *rowMapper) scanAll(rows *sql.Rows) ([]types.Row, error) {
	var result []types.Row
	values := make([]any, len(m.rules))
	dest := make([]any, len(m.rules))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		for i := range values {
			values[i] = nil
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row, err := m.mapRow(values)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return result, nil
}
