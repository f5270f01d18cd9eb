// Package filter narrows datasets by a free-text term.
package filter

import (
	"strings"

	"github.com/user/sales-dashboard-go/internal/models"
)

// Rows returns the rows in which any column value contains term, compared
// case-insensitively. An empty term matches every row. The result is a new
// slice; rows themselves are shared with the input.
func Rows(rows []models.Row, term string) []models.Row {
	out := make([]models.Row, 0, len(rows))
	if term == "" {
		return append(out, rows...)
	}
	needle := strings.ToLower(term)
	for _, row := range rows {
		if matches(row, needle) {
			out = append(out, row)
		}
	}
	return out
}

func matches(row models.Row, needle string) bool {
	for _, v := range row {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

// Datasets applies Rows to every dataset and returns filtered copies keyed
// like the input.
func Datasets(in map[string]models.Dataset, term string) map[string]models.Dataset {
	out := make(map[string]models.Dataset, len(in))
	for name, ds := range in {
		ds.Rows = Rows(ds.Rows, term)
		out[name] = ds
	}
	return out
}
