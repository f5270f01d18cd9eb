package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/sales-dashboard-go/internal/models"
)

func TestCountBy_SkipsBlankAndMissingLabels(t *testing.T) {
	rows := []models.Row{
		{"regional_office": "East"},
		{"regional_office": "  West "},
		{"regional_office": ""},
		{"regional_office": "   "},
		{"other": "East"},
		{"regional_office": "East"},
	}

	got := CountBy(rows, Field{"regional_office"})

	assert.Equal(t, Result{{Label: "East", Value: 2}, {Label: "West", Value: 1}}, got)
}

func TestCountBy_AliasFallback(t *testing.T) {
	rows := []models.Row{
		{"region": "Central"},
		{"regional_office": "East", "region": "ignored"},
	}

	got := CountBy(rows, Field{"regional_office", "region"})

	assert.Equal(t, []string{"Central", "East"}, got.Labels())
	assert.Equal(t, []float64{1, 1}, got.Values())
}

func TestSumBy_IgnoresUnparsableValues(t *testing.T) {
	rows := []models.Row{
		{"deal_stage": "Won", "close_value": "100"},
		{"deal_stage": "Won", "close_value": " 50.5 "},
		{"deal_stage": "Won", "close_value": ""},
		{"deal_stage": "Won", "close_value": "n/a"},
		{"deal_stage": "Lost", "close_value": "0"},
		{"deal_stage": "Engaging"},
		{"deal_stage": "", "close_value": "999"},
		{"deal_stage": "Won", "close_value": "NaN"},
		{"deal_stage": "Won", "close_value": "Inf"},
	}

	got := SumBy(rows, Field{"deal_stage"}, Field{"close_value"})

	assert.Equal(t, Result{{Label: "Won", Value: 150.5}, {Label: "Lost", Value: 0}}, got)
}

func TestAverageBy_DividesByValidCount(t *testing.T) {
	rows := []models.Row{
		{"series": "GTX", "sales_price": "100"},
		{"series": "GTX", "sales_price": "200"},
		{"series": "GTX", "sales_price": "bad"},
		{"series": "GTX", "sales_price": ""},
		{"series": "MG", "sales_price": "55"},
		{"series": "XX", "sales_price": "bad"},
	}

	got := AverageBy(rows, Field{"series"}, Field{"sales_price"})

	require.Len(t, got, 2)
	assert.Equal(t, "GTX", got[0].Label)
	assert.InDelta(t, 150.0, got[0].Value, 1e-9)
	assert.Equal(t, "MG", got[1].Label)
	assert.InDelta(t, 55.0, got[1].Value, 1e-9)
}

func TestTopN(t *testing.T) {
	in := Result{
		{Label: "a", Value: 1},
		{Label: "b", Value: 7},
		{Label: "c", Value: 3},
		{Label: "d", Value: 7},
		{Label: "e", Value: 5},
		{Label: "f", Value: 2},
		{Label: "g", Value: 4},
	}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"top five", 5, []string{"b", "d", "e", "g", "c"}},
		{"more than available", 10, []string{"b", "d", "e", "g", "c", "f", "a"}},
		{"one", 1, []string{"b"}},
		{"zero", 0, []string{}},
		{"negative", -3, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TopN(in, tt.n)
			assert.Equal(t, tt.want, got.Labels())
			assert.LessOrEqual(t, len(got), max(tt.n, 0))
			for i := 1; i < len(got); i++ {
				assert.GreaterOrEqual(t, got[i-1].Value, got[i].Value)
			}
		})
	}

	assert.Equal(t, "a", in[0].Label, "input must not be reordered")
}

func TestAggregate_Dispatch(t *testing.T) {
	rows := []models.Row{
		{"Platform": "PS2", "Global_Sales": "10"},
		{"Platform": "Wii", "Global_Sales": "20"},
		{"Platform": "PS2", "Global_Sales": "15"},
		{"Platform": "GB", "Global_Sales": "1"},
	}

	got, err := Aggregate(rows, Spec{Kind: Sum, Label: Field{"Platform"}, Value: Field{"Global_Sales"}, Top: 2})
	require.NoError(t, err)
	assert.Equal(t, Result{{Label: "PS2", Value: 25}, {Label: "Wii", Value: 20}}, got)

	got, err = Aggregate(rows, Spec{Kind: Count, Label: Field{"Platform"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"PS2": 2, "Wii": 1, "GB": 1}, got.Map())

	_, err = Aggregate(rows, Spec{Kind: "median", Label: Field{"Platform"}})
	assert.Error(t, err)
}

func TestAggregate_EmptyInput(t *testing.T) {
	for _, k := range []Kind{Count, Sum, Average} {
		got, err := Aggregate(nil, Spec{Kind: k, Label: Field{"x"}, Value: Field{"y"}})
		require.NoError(t, err)
		assert.Empty(t, got, "kind %s", k)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{" -3.25 ", -3.25, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1,000", 1, true},
		{"1200 USD", 1200, true},
		{"12.5%", 12.5, true},
		{"  7.", 7, true},
		{".5x", 0.5, true},
		{"-2e3kg", -2000, true},
		{"3e", 3, true},
		{"4e+", 4, true},
		{"0x10", 0, true},
		{"$5", 0, false},
		{"-", 0, false},
		{".", 0, false},
		{"-.e5", 0, false},
		{"NaN", 0, false},
		{"Infinity", 0, false},
		{"-Infinity", 0, false},
		{"1e400", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, "ParseNumber(%q)", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "ParseNumber(%q)", tt.in)
		}
	}
}

func TestSumBy_ReadsLeadingNumber(t *testing.T) {
	rows := []models.Row{
		{"deal_stage": "Won", "close_value": "1200 USD"},
		{"deal_stage": "Won", "close_value": "12.5%"},
		{"deal_stage": "Won", "close_value": "7.5"},
		{"deal_stage": "Won", "close_value": "USD 40"},
	}

	got := SumBy(rows, Field{"deal_stage"}, Field{"close_value"})

	assert.Equal(t, Result{{Label: "Won", Value: 1220}}, got)
}

func TestCountBy_IntegerLikeLabelsKeepInputOrder(t *testing.T) {
	rows := []models.Row{
		{"year": "2016"},
		{"year": "unknown"},
		{"year": "1999"},
		{"year": "2016"},
	}

	got := CountBy(rows, Field{"year"})

	assert.Equal(t, []string{"2016", "unknown", "1999"}, got.Labels())
}
