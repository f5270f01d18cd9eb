package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/user/sales-dashboard-go/internal/chart"
	"github.com/user/sales-dashboard-go/internal/models"
	"go.uber.org/zap"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const templateName = "dashboard.html.tmpl"

// Formats lists the report formats NewAdapter understands.
var Formats = []string{"html", "json", "png"}

// ReportAdapter defines the interface for generating different report formats.
type ReportAdapter interface {
	PrepareData(data *models.DashboardData) error
	Write(outputPath string) error
}

// NewAdapter returns the adapter for format.
func NewAdapter(format string, embedPNG bool, log *zap.Logger) (ReportAdapter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch format {
	case "html":
		return &HTMLReportAdapter{EmbedPNG: embedPNG, log: log}, nil
	case "json":
		return &JSONReportAdapter{}, nil
	case "png":
		return &PNGReportAdapter{log: log}, nil
	default:
		return nil, fmt.Errorf("invalid report format '%s'. Must be one of %v", format, Formats)
	}
}

// DefaultOutputPath is the output used when none is given: a file for html
// and json, a directory for png.
func DefaultOutputPath(format string) string {
	if format == "png" {
		return "dashboard-charts"
	}
	return fmt.Sprintf("dashboard-report.%s", format)
}

// --- JSON Report Adapter ---

// JSONReportAdapter generates reports in JSON format.
type JSONReportAdapter struct {
	reportData []byte
}

// PrepareData marshals the dashboard into indented JSON.
func (jra *JSONReportAdapter) PrepareData(data *models.DashboardData) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data to JSON: %w", err)
	}
	jra.reportData = jsonData
	return nil
}

// Write saves the JSON report data to the specified output file.
func (jra *JSONReportAdapter) Write(outputFilePath string) error {
	return writeFile(outputFilePath, jra.reportData)
}

// --- HTML Report Adapter ---

// HTMLOptions control RenderHTML.
type HTMLOptions struct {
	Title  string
	Live   bool              // Re-query /api/charts as the filter is typed
	Images map[string]string // Chart id to base64 PNG, shown when scripts are off
}

var dashboardTemplate = template.Must(
	template.New(templateName).Funcs(funcMap()).ParseFS(templateFS, "templates/"+templateName),
)

func funcMap() template.FuncMap {
	return template.FuncMap{
		"FormatDateTime": func(t time.Time) string {
			if t.IsZero() {
				return "unknown"
			}
			return t.Format("2006-01-02 15:04:05 MST")
		},
		"ShortSha": func(sha string) string {
			if len(sha) > 8 {
				return sha[:8]
			}
			return sha
		},
		"ChartConfigs": func(charts []models.ChartData) map[string]interface{} {
			out := make(map[string]interface{}, len(charts))
			for _, c := range charts {
				out[c.ID] = chart.ChartJSConfig(c)
			}
			return out
		},
	}
}

// RenderHTML writes the dashboard page for data to w.
func RenderHTML(w io.Writer, data *models.DashboardData, opts HTMLOptions) error {
	if opts.Title == "" {
		opts.Title = "Sales Dashboard"
	}
	images := make(map[string]template.URL, len(opts.Images))
	for id, b64 := range opts.Images {
		images[id] = template.URL("data:image/png;base64," + b64)
	}
	view := struct {
		Title  string
		Live   bool
		Data   *models.DashboardData
		Images map[string]template.URL
	}{
		Title:  opts.Title,
		Live:   opts.Live,
		Data:   data,
		Images: images,
	}
	if err := dashboardTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("failed to execute HTML template: %w", err)
	}
	return nil
}

// HTMLReportAdapter generates a self-contained HTML dashboard.
type HTMLReportAdapter struct {
	EmbedPNG bool // Also embed gonum/plot renderings as a no-script fallback

	log       *zap.Logger
	reportBuf bytes.Buffer
}

// PrepareData renders the dashboard page.
func (hra *HTMLReportAdapter) PrepareData(data *models.DashboardData) error {
	if hra.log == nil {
		hra.log = zap.NewNop()
	}
	opts := HTMLOptions{}
	if hra.EmbedPNG {
		opts.Images = make(map[string]string)
		for _, c := range data.Charts {
			img, err := chart.EncodeBase64PNG(c)
			if err != nil {
				hra.log.Warn("Failed to render chart image", zap.String("chart", c.ID), zap.Error(err))
				continue
			}
			opts.Images[c.ID] = img
		}
	}

	var buf bytes.Buffer
	if err := RenderHTML(&buf, data, opts); err != nil {
		return err
	}
	hra.reportBuf = buf
	return nil
}

// Write saves the HTML report data to the specified output file.
func (hra *HTMLReportAdapter) Write(outputFilePath string) error {
	return writeFile(outputFilePath, hra.reportBuf.Bytes())
}

// --- PNG Report Adapter ---

// PNGReportAdapter renders every chart to its own PNG file.
type PNGReportAdapter struct {
	log    *zap.Logger
	images map[string][]byte
	order  []string
}

// PrepareData renders each non-empty chart. Empty charts are skipped with a
// warning; it is an error only when nothing could be rendered.
func (pra *PNGReportAdapter) PrepareData(data *models.DashboardData) error {
	if pra.log == nil {
		pra.log = zap.NewNop()
	}
	pra.images = make(map[string][]byte, len(data.Charts))
	pra.order = pra.order[:0]
	for _, c := range data.Charts {
		var buf bytes.Buffer
		if err := chart.RenderPNG(&buf, c, chart.DefaultWidth, chart.DefaultHeight); err != nil {
			pra.log.Warn("Skipping chart", zap.String("chart", c.ID), zap.Error(err))
			continue
		}
		pra.images[c.ID] = buf.Bytes()
		pra.order = append(pra.order, c.ID)
	}
	if len(pra.images) == 0 {
		return errors.New("no charts could be rendered")
	}
	return nil
}

// Write saves one <chart id>.png per chart into outputDir.
func (pra *PNGReportAdapter) Write(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	for _, id := range pra.order {
		if err := os.WriteFile(filepath.Join(outputDir, id+".png"), pra.images[id], 0644); err != nil {
			return fmt.Errorf("failed to write chart %s: %w", id, err)
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for report file %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0644)
}
