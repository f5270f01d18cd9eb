package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/sales-dashboard-go/internal/models"
)

func getTestDashboardData() *models.DashboardData {
	return &models.DashboardData{
		Metadata: models.Metadata{
			Generator: models.GeneratorMetadata{
				Version:       "test-0.1",
				DateGenerated: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
				GoVersion:     "go1.24",
			},
			Source: models.SourceMetadata{
				DataDir: "/srv/data",
				Revision: &models.GitRevision{
					SHA:    "abcdef1234567890",
					Branch: "main",
				},
			},
			ReportID: "5f0c2a8e-report",
			Filter:   "east",
		},
		Charts: []models.ChartData{
			{
				ID: "chart1", Title: "Sales Agents by Region", Kind: models.ChartDoughnut, Dataset: "sales_teams.csv",
				Labels: []string{"East"}, Values: []float64{10}, Colors: []string{"#4e79a7"},
				TotalRows: 35, MatchedRows: 10,
			},
			{
				ID: "chart2", Title: "Account Distribution by Sector", Kind: models.ChartPie, Dataset: "accounts.csv",
				Labels: []string{}, Values: []float64{}, Error: "dataset not loaded",
			},
		},
	}
}

func TestNewAdapter(t *testing.T) {
	for _, f := range Formats {
		a, err := NewAdapter(f, false, nil)
		require.NoError(t, err, f)
		assert.NotNil(t, a)
	}
	_, err := NewAdapter("pdf", false, nil)
	assert.Error(t, err)

	assert.Equal(t, "dashboard-report.json", DefaultOutputPath("json"))
	assert.Equal(t, "dashboard-charts", DefaultOutputPath("png"))
}

func TestJSONReportAdapter(t *testing.T) {
	data := getTestDashboardData()
	adapter := &JSONReportAdapter{}
	require.NoError(t, adapter.PrepareData(data))

	var decoded models.DashboardData
	require.NoError(t, json.Unmarshal(adapter.reportData, &decoded))
	assert.Equal(t, "east", decoded.Metadata.Filter)
	assert.Equal(t, []float64{10}, decoded.Charts[0].Values)

	outputFile := filepath.Join(t.TempDir(), "nested", "report.json")
	require.NoError(t, adapter.Write(outputFile))
	_, err := os.Stat(outputFile)
	assert.NoError(t, err)
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, getTestDashboardData(), HTMLOptions{Live: true}))
	out := buf.String()

	assert.Contains(t, out, "<title>Sales Dashboard</title>")
	assert.Contains(t, out, `<canvas id="chart1">`)
	assert.Contains(t, out, "10 of 35 rows from sales_teams.csv")
	assert.Contains(t, out, "dataset not loaded")
	assert.Contains(t, out, "abcdef12")
	assert.Contains(t, out, `value="east"`)
	assert.Regexp(t, `window\.dashboardLive =\s*true`, out)
	assert.Contains(t, out, `"doughnut"`)
	assert.Contains(t, out, `id="search"`)
	assert.Contains(t, out, `<div class="error" id="error-chart1" hidden></div>`)
	assert.Contains(t, out, `<div class="error" id="error-chart2">dataset not loaded</div>`)
	assert.Contains(t, out, "seq !== latest", "stale filter responses are dropped")
}

func TestRenderHTML_StaticEscapesInput(t *testing.T) {
	data := getTestDashboardData()
	data.Metadata.Filter = `"><script>alert(1)</script>`

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, data, HTMLOptions{Title: "Report"}))
	out := buf.String()

	assert.NotContains(t, out, `id="search"`, "static reports have no filter input")
	assert.Contains(t, out, "Rows filtered by <strong>&#34;&gt;&lt;script&gt;alert(1)&lt;/script&gt;</strong>")
	assert.Regexp(t, `window\.dashboardLive =\s*false`, out)
	assert.False(t, strings.Contains(out, "<script>alert(1)</script>"))
}

func TestRenderHTML_StaticWithoutFilter(t *testing.T) {
	data := getTestDashboardData()
	data.Metadata.Filter = ""

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, data, HTMLOptions{}))
	out := buf.String()

	assert.NotContains(t, out, `id="search"`)
	assert.NotContains(t, out, `id="filter-term"`)
}

func TestHTMLReportAdapter_Write(t *testing.T) {
	data := getTestDashboardData()
	adapter := &HTMLReportAdapter{EmbedPNG: true}
	require.NoError(t, adapter.PrepareData(data))

	outputFile := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, adapter.Write(outputFile))

	content, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), data.Metadata.ReportID)
	assert.Contains(t, string(content), "data:image/png;base64,", "embedded fallback image for the non-empty chart")
	assert.Equal(t, 1, strings.Count(string(content), "<noscript>"), "empty chart gets no image")
}

func TestPNGReportAdapter(t *testing.T) {
	adapter := &PNGReportAdapter{}
	require.NoError(t, adapter.PrepareData(getTestDashboardData()))

	dir := filepath.Join(t.TempDir(), "charts")
	require.NoError(t, adapter.Write(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "chart1.png", entries[0].Name())
}

func TestPNGReportAdapter_NothingToRender(t *testing.T) {
	data := getTestDashboardData()
	data.Charts = data.Charts[1:]

	adapter := &PNGReportAdapter{}
	assert.Error(t, adapter.PrepareData(data))
}
