// Package aggregate reduces parsed rows into ordered label/value series.
//
// Every reducer is pure: it reads the rows it is given and returns a fresh
// Result. Labels appear in the order they are first seen in the input.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/user/sales-dashboard-go/internal/models"
)

// Kind selects the reduction applied to each group.
type Kind string

const (
	Count   Kind = "count"
	Sum     Kind = "sum"
	Average Kind = "avg"
)

// Valid reports whether k is a known aggregation.
func (k Kind) Valid() bool {
	switch k {
	case Count, Sum, Average:
		return true
	}
	return false
}

// Field names a column by one or more aliases. The first alias present in a
// row wins, so a single Field can read files that disagree on naming.
type Field []string

// Lookup returns the trimmed value of the first alias present in row.
func (f Field) Lookup(row models.Row) (string, bool) {
	for _, name := range f {
		if v, ok := row[name]; ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func (f Field) String() string {
	return strings.Join(f, "|")
}

// Entry is one label and its aggregated value.
type Entry struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Result is an ordered aggregation.
type Result []Entry

// Labels returns the labels in order.
func (r Result) Labels() []string {
	out := make([]string, len(r))
	for i, e := range r {
		out[i] = e.Label
	}
	return out
}

// Values returns the values in order.
func (r Result) Values() []float64 {
	out := make([]float64, len(r))
	for i, e := range r {
		out[i] = e.Value
	}
	return out
}

// Map returns the result as a label to value map.
func (r Result) Map() map[string]float64 {
	out := make(map[string]float64, len(r))
	for _, e := range r {
		out[e.Label] = e.Value
	}
	return out
}

// Spec describes a full aggregation: group rows by Label, reduce Value with
// Kind, then keep the Top highest entries when Top is positive.
type Spec struct {
	Kind  Kind
	Label Field
	Value Field // Ignored for Count
	Top   int
}

// Aggregate runs spec over rows.
func Aggregate(rows []models.Row, spec Spec) (Result, error) {
	var r Result
	switch spec.Kind {
	case Count:
		r = CountBy(rows, spec.Label)
	case Sum:
		r = SumBy(rows, spec.Label, spec.Value)
	case Average:
		r = AverageBy(rows, spec.Label, spec.Value)
	default:
		return nil, fmt.Errorf("unknown aggregation %q", spec.Kind)
	}
	if spec.Top > 0 {
		r = TopN(r, spec.Top)
	}
	return r, nil
}

// ParseNumber reads the longest leading decimal number in s, after skipping
// leading whitespace, so "1200 USD" is 1200 and "1,200" is 1. Input with no
// numeric prefix is rejected, as are NaN and infinite results.
func ParseNumber(s string) (float64, bool) {
	prefix := numericPrefix(strings.TrimLeft(s, " \t\r\n\v\f"))
	if prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// numericPrefix returns the longest prefix of s of the form
// [+-]digits[.digits][(e|E)[+-]digits] with at least one mantissa digit.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
			digits++
		}
		if digits > 0 {
			i = j
		}
	}
	if digits == 0 {
		return ""
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		start := j
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j > start {
			i = j
		}
	}
	return s[:i]
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// groups keeps first-seen label order alongside per-label state.
type groups[T any] struct {
	order []string
	state map[string]T
}

func newGroups[T any]() *groups[T] {
	return &groups[T]{state: make(map[string]T)}
}

func (g *groups[T]) update(label string, fn func(T) T) {
	cur, ok := g.state[label]
	if !ok {
		g.order = append(g.order, label)
	}
	g.state[label] = fn(cur)
}

// CountBy counts rows per label. Rows with a blank or missing label are skipped.
func CountBy(rows []models.Row, label Field) Result {
	g := newGroups[int]()
	for _, row := range rows {
		l, ok := label.Lookup(row)
		if !ok || l == "" {
			continue
		}
		g.update(l, func(n int) int { return n + 1 })
	}
	out := make(Result, 0, len(g.order))
	for _, l := range g.order {
		out = append(out, Entry{Label: l, Value: float64(g.state[l])})
	}
	return out
}

// SumBy sums value per label. Rows with a blank label or a value that does
// not parse are skipped.
func SumBy(rows []models.Row, label, value Field) Result {
	g := newGroups[float64]()
	eachValid(rows, label, value, func(l string, v float64) {
		g.update(l, func(acc float64) float64 { return acc + v })
	})
	out := make(Result, 0, len(g.order))
	for _, l := range g.order {
		out = append(out, Entry{Label: l, Value: g.state[l]})
	}
	return out
}

// AverageBy averages value per label over the rows whose value parsed.
func AverageBy(rows []models.Row, label, value Field) Result {
	g := newGroups[[]float64]()
	eachValid(rows, label, value, func(l string, v float64) {
		g.update(l, func(vs []float64) []float64 { return append(vs, v) })
	})
	out := make(Result, 0, len(g.order))
	for _, l := range g.order {
		// Every group holds at least one value, so Mean cannot fail here.
		mean, _ := stats.Mean(g.state[l])
		out = append(out, Entry{Label: l, Value: mean})
	}
	return out
}

func eachValid(rows []models.Row, label, value Field, fn func(string, float64)) {
	for _, row := range rows {
		l, ok := label.Lookup(row)
		if !ok || l == "" {
			continue
		}
		raw, ok := value.Lookup(row)
		if !ok {
			continue
		}
		v, ok := ParseNumber(raw)
		if !ok {
			continue
		}
		fn(l, v)
	}
}

// TopN returns at most n entries sorted by descending value. Equal values
// keep their original relative order. The input is not modified.
func TopN(r Result, n int) Result {
	if n <= 0 {
		return Result{}
	}
	sorted := make(Result, len(r))
	copy(sorted, r)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
