package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/sales-dashboard-go/internal/config"
	"github.com/user/sales-dashboard-go/internal/models"
)

func testData() *models.CollectedData {
	return &models.CollectedData{
		Metadata: models.Metadata{Source: models.SourceMetadata{DataDir: "/data"}},
		Datasets: map[string]models.Dataset{
			"sales_teams.csv": {Rows: []models.Row{
				{"sales_agent": "Anna", "regional_office": "Central"},
				{"sales_agent": "Cecily", "regional_office": "East"},
				{"sales_agent": "Darcel", "regional_office": "Central"},
				{"sales_agent": "Ghost", "regional_office": " "},
			}},
			"accounts.csv": {Rows: []models.Row{
				{"account": "Acme", "sector": "retail"},
				{"account": "Betatech", "sector": "medical"},
				{"account": "Cheers", "sector": "retail"},
			}},
			"sales_pipeline.csv": {Rows: []models.Row{
				{"deal_stage": "Won", "close_value": "1054", "sales_agent": "Anna"},
				{"deal_stage": "Engaging", "close_value": ""},
				{"deal_stage": "Won", "close_value": "4514", "sales_agent": "Cecily"},
				{"deal_stage": "Lost", "close_value": "0", "sales_agent": "Anna"},
			}},
			"video_game_sales.csv": {Rows: []models.Row{
				{"Platform": "Wii", "Global_Sales": "82.74"},
				{"Platform": "NES", "Global_Sales": "40.24"},
				{"Platform": "Wii", "Global_Sales": "35.82"},
				{"Platform": "GB", "Global_Sales": "31.37"},
				{"Platform": "DS", "Global_Sales": "30.01"},
				{"Platform": "X360", "Global_Sales": "21.82"},
				{"Platform": "PS3", "Global_Sales": "N/A"},
				{"Platform": "PS4", "Global_Sales": "14.24"},
			}},
			"products.csv": {Rows: []models.Row{
				{"product": "GTX Basic", "series": "GTX", "sales_price": "550"},
				{"product": "GTX Pro", "series": "GTX", "sales_price": "4821"},
				{"product": "MG Special", "series": "MG", "sales_price": "55"},
			}},
		},
		Failures: map[string]string{},
	}
}

func TestDatasets(t *testing.T) {
	names := Datasets(DefaultCharts())
	assert.Equal(t, []string{"sales_teams.csv", "accounts.csv", "sales_pipeline.csv", "video_game_sales.csv", "products.csv"}, names)

	dup := append(DefaultCharts(), config.ChartSpec{ID: "x", Dataset: "accounts.csv"})
	assert.Len(t, Datasets(dup), 5)
}

func TestDefaultChartsValidate(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Charts = DefaultCharts()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultCharts(), Charts(config.DefaultConfig()))
	assert.Equal(t, cfg.Charts, Charts(cfg))
}

func TestBuild_Unfiltered(t *testing.T) {
	d := NewBuilder(DefaultCharts(), nil).Build(testData(), "")
	require.Len(t, d.Charts, 5)
	assert.NotEmpty(t, d.Metadata.ReportID)
	assert.Equal(t, "/data", d.Metadata.Source.DataDir)

	regions, _ := d.Chart("chart1")
	assert.Equal(t, models.ChartDoughnut, regions.Kind)
	assert.Equal(t, []string{"Central", "East"}, regions.Labels)
	assert.Equal(t, []float64{2, 1}, regions.Values)
	assert.Equal(t, 4, regions.TotalRows)

	sectors, _ := d.Chart("chart2")
	assert.Equal(t, []string{"retail", "medical"}, sectors.Labels)
	assert.Equal(t, []float64{2, 1}, sectors.Values)

	stages, _ := d.Chart("chart3")
	assert.Equal(t, []string{"Won", "Lost"}, stages.Labels)
	assert.Equal(t, []float64{5568, 0}, stages.Values)

	platforms, _ := d.Chart("chart4")
	assert.Equal(t, []string{"Wii", "NES", "GB", "DS", "X360"}, platforms.Labels)
	assert.InDelta(t, 118.56, platforms.Values[0], 1e-9)
	assert.Equal(t, "#e15759", platforms.BorderColor)
	assert.True(t, platforms.Fill)

	prices, _ := d.Chart("chart5")
	assert.Equal(t, models.ChartHorizontalBar, prices.Kind)
	assert.Equal(t, []string{"GTX", "MG"}, prices.Labels)
	assert.Equal(t, []float64{2685.5, 55}, prices.Values)
}

func TestBuild_ProductColumnAliases(t *testing.T) {
	data := testData()
	data.Datasets["products.csv"] = models.Dataset{Rows: []models.Row{
		{"product_series": "GTX", "price": "100"},
		{"product_series": "GTX", "price": "300"},
	}}

	d := NewBuilder(DefaultCharts(), nil).Build(data, "")
	prices, _ := d.Chart("chart5")
	assert.Equal(t, []string{"GTX"}, prices.Labels)
	assert.Equal(t, []float64{200}, prices.Values)
}

func TestBuild_FilterRecomputesEveryChart(t *testing.T) {
	d := NewBuilder(DefaultCharts(), nil).Build(testData(), "anna")
	assert.Equal(t, "anna", d.Metadata.Filter)

	regions, _ := d.Chart("chart1")
	assert.Equal(t, []string{"Central"}, regions.Labels)
	assert.Equal(t, []float64{1}, regions.Values)
	assert.Equal(t, 4, regions.TotalRows)
	assert.Equal(t, 1, regions.MatchedRows)

	stages, _ := d.Chart("chart3")
	assert.Equal(t, []string{"Won", "Lost"}, stages.Labels)
	assert.Equal(t, []float64{1054, 0}, stages.Values)

	sectors, _ := d.Chart("chart2")
	assert.Empty(t, sectors.Labels)
	assert.Empty(t, sectors.Error, "no match is not an error")
}

func TestBuild_MissingDataset(t *testing.T) {
	data := testData()
	delete(data.Datasets, "accounts.csv")
	data.Failures["accounts.csv"] = "file not found"

	d := NewBuilder(DefaultCharts(), nil).Build(data, "")
	sectors, _ := d.Chart("chart2")
	assert.True(t, sectors.Empty())
	assert.Equal(t, "dataset not loaded: file not found", sectors.Error)

	regions, _ := d.Chart("chart1")
	assert.False(t, regions.Empty(), "other charts still render")
}

func TestBuildChart(t *testing.T) {
	b := NewBuilder(DefaultCharts(), nil)

	c, err := b.BuildChart(testData(), "chart4", "wii")
	require.NoError(t, err)
	assert.Equal(t, []string{"Wii"}, c.Labels)

	_, err = b.BuildChart(testData(), "chart9", "")
	assert.ErrorIs(t, err, ErrUnknownChart)
}
