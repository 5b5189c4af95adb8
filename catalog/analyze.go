package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AnalysisResult summarizes the contents of a catalog database.
type AnalysisResult struct {
	Tables []TableStats `json:"tables"`
}

// TableStats holds the row count of one table and, per column, the
// percentage of rows where the column is NULL or blank.
type TableStats struct {
	Name            string             `json:"name"`
	RowCount        int64              `json:"row_count"`
	ColumnEmptiness map[string]float64 `json:"column_emptiness"`
}

// RowCounts returns table name to row count.
func (r *AnalysisResult) RowCounts() map[string]int64 {
	counts := make(map[string]int64, len(r.Tables))
	for _, t := range r.Tables {
		counts[t.Name] = t.RowCount
	}
	return counts
}

// Analyze inspects every table of the catalog at path.
func Analyze(ctx context.Context, path string) (*AnalysisResult, error) {
	conn, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tables, err := queryStrings(ctx, conn,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	result := &AnalysisResult{}
	for _, table := range tables {
		stats, err := analyzeTable(ctx, conn, table)
		if err != nil {
			return nil, err
		}
		result.Tables = append(result.Tables, stats)
	}
	sort.Slice(result.Tables, func(i, j int) bool { return result.Tables[i].Name < result.Tables[j].Name })
	return result, nil
}

func analyzeTable(ctx context.Context, conn querier, table string) (TableStats, error) {
	stats := TableStats{Name: table, ColumnEmptiness: map[string]float64{}}
	quoted := quoteIdent(table)

	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoted).Scan(&stats.RowCount); err != nil {
		return stats, fmt.Errorf("failed to count %s: %w", table, err)
	}

	columns, err := queryStrings(ctx, conn, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return stats, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	for _, column := range columns {
		if stats.RowCount == 0 {
			stats.ColumnEmptiness[column] = 0
			continue
		}
		col := quoteIdent(column)
		var empty int64
		err := conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+quoted+` WHERE `+col+` IS NULL OR TRIM(CAST(`+col+` AS TEXT)) = ''`).Scan(&empty)
		if err != nil {
			return stats, fmt.Errorf("failed to measure %s.%s: %w", table, column, err)
		}
		stats.ColumnEmptiness[column] = roundTo2Decimals(float64(empty) / float64(stats.RowCount) * 100)
	}
	return stats, nil
}

func queryStrings(ctx context.Context, conn querier, stmt string, args ...any) ([]string, error) {
	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func roundTo2Decimals(v float64) float64 {
	return math.Round(v*100) / 100
}
