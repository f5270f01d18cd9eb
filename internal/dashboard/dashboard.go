// Package dashboard turns collected datasets into chart series.
package dashboard

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/user/sales-dashboard-go/internal/aggregate"
	"github.com/user/sales-dashboard-go/internal/config"
	"github.com/user/sales-dashboard-go/internal/filter"
	"github.com/user/sales-dashboard-go/internal/models"
	"go.uber.org/zap"
)

// ErrUnknownChart is returned when a chart id is not configured.
var ErrUnknownChart = errors.New("unknown chart")

// TopPlatforms is how many platforms the sales line chart keeps.
const TopPlatforms = 5

// DefaultCharts returns the five standard sales charts.
func DefaultCharts() []config.ChartSpec {
	return []config.ChartSpec{
		{
			ID:          "chart1",
			Title:       "Sales Agents by Region",
			Kind:        models.ChartDoughnut,
			Dataset:     "sales_teams.csv",
			Label:       []string{"regional_office", "region"},
			Aggregation: aggregate.Count,
			Colors:      []string{"#4e79a7", "#f28e2c", "#e15759"},
		},
		{
			ID:          "chart2",
			Title:       "Account Distribution by Sector",
			Kind:        models.ChartPie,
			Dataset:     "accounts.csv",
			Label:       []string{"sector"},
			Aggregation: aggregate.Count,
			Colors:      []string{"#76b7b2", "#59a14f", "#edc949", "#af7aa1"},
		},
		{
			ID:          "chart3",
			Title:       "Total Close Value by Deal Stage",
			Kind:        models.ChartBar,
			Dataset:     "sales_pipeline.csv",
			Label:       []string{"deal_stage"},
			Value:       []string{"close_value"},
			Aggregation: aggregate.Sum,
			SeriesLabel: "Close Value",
			Colors:      []string{"#4e79a7"},
		},
		{
			ID:          "chart4",
			Title:       "Top 5 Gaming Platforms by Global Sales",
			Kind:        models.ChartLine,
			Dataset:     "video_game_sales.csv",
			Label:       []string{"Platform"},
			Value:       []string{"Global_Sales"},
			Aggregation: aggregate.Sum,
			Top:         TopPlatforms,
			SeriesLabel: "Global Sales (M)",
			Colors:      []string{"rgba(225,87,89,0.3)"},
			BorderColor: "#e15759",
			Fill:        true,
		},
		{
			ID:          "chart5",
			Title:       "Average Price by Product Series",
			Kind:        models.ChartHorizontalBar,
			Dataset:     "products.csv",
			Label:       []string{"series", "product_series"},
			Value:       []string{"sales_price", "price"},
			Aggregation: aggregate.Average,
			SeriesLabel: "Average Price ($)",
			Colors:      []string{"#f28e2c"},
		},
	}
}

// Charts returns the configured charts, or the defaults when none are set.
func Charts(cfg *config.Config) []config.ChartSpec {
	if cfg == nil || len(cfg.Charts) == 0 {
		return DefaultCharts()
	}
	return cfg.Charts
}

// Datasets lists the dataset names the charts read, in first-use order.
func Datasets(charts []config.ChartSpec) []string {
	seen := make(map[string]bool, len(charts))
	var names []string
	for _, c := range charts {
		if !seen[c.Dataset] {
			seen[c.Dataset] = true
			names = append(names, c.Dataset)
		}
	}
	return names
}

// Builder computes dashboards from collected data.
type Builder struct {
	Charts []config.ChartSpec
	log    *zap.Logger
}

// NewBuilder returns a Builder for charts. A nil logger discards output.
func NewBuilder(charts []config.ChartSpec, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{Charts: charts, log: log}
}

// Build filters every dataset by term and aggregates each chart from scratch.
// A chart whose dataset is missing is returned empty with Error set.
func (b *Builder) Build(data *models.CollectedData, term string) *models.DashboardData {
	filtered := filter.Datasets(data.Datasets, term)

	meta := data.Metadata
	meta.ReportID = uuid.NewString()
	meta.Filter = term

	out := &models.DashboardData{
		Metadata: meta,
		Charts:   make([]models.ChartData, 0, len(b.Charts)),
	}
	for _, spec := range b.Charts {
		out.Charts = append(out.Charts, b.buildChart(spec, data, filtered))
	}
	return out
}

func (b *Builder) buildChart(spec config.ChartSpec, data *models.CollectedData, filtered map[string]models.Dataset) models.ChartData {
	cd := models.ChartData{
		ID:          spec.ID,
		Title:       spec.Title,
		Kind:        spec.Kind,
		Dataset:     spec.Dataset,
		SeriesLabel: spec.SeriesLabel,
		Labels:      []string{},
		Values:      []float64{},
		Colors:      spec.Colors,
		BorderColor: spec.BorderColor,
		Fill:        spec.Fill,
	}

	ds, ok := filtered[spec.Dataset]
	if !ok {
		cd.Error = "dataset not loaded"
		if reason, failed := data.Failures[spec.Dataset]; failed {
			cd.Error = fmt.Sprintf("dataset not loaded: %s", reason)
		}
		return cd
	}
	cd.TotalRows = len(data.Datasets[spec.Dataset].Rows)
	cd.MatchedRows = len(ds.Rows)

	result, err := aggregate.Aggregate(ds.Rows, spec.AggregateSpec())
	if err != nil {
		b.log.Warn("Failed to aggregate chart", zap.String("chart", spec.ID), zap.Error(err))
		cd.Error = err.Error()
		return cd
	}
	cd.Labels = result.Labels()
	cd.Values = result.Values()
	return cd
}

// BuildChart builds a single chart by id.
func (b *Builder) BuildChart(data *models.CollectedData, id, term string) (models.ChartData, error) {
	for _, spec := range b.Charts {
		if spec.ID != id {
			continue
		}
		one := NewBuilder([]config.ChartSpec{spec}, b.log)
		return one.Build(data, term).Charts[0], nil
	}
	return models.ChartData{}, fmt.Errorf("%w: %s", ErrUnknownChart, id)
}
