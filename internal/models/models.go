package models

import "time"

// Row is one parsed tabular record: column name to raw string value.
// A column absent from the map is treated the same as a blank cell.
type Row map[string]string

// Dataset is a single parsed input file.
type Dataset struct {
	Name     string    `json:"name"` // File name relative to the data directory, e.g. "accounts.csv"
	Path     string    `json:"path"`
	Columns  []string  `json:"columns"` // Header order
	Rows     []Row     `json:"rows"`
	LoadedAt time.Time `json:"loaded_at"`
}

// CollectedData is the main structure holding every loaded dataset.
type CollectedData struct {
	Metadata Metadata           `json:"metadata"`
	Datasets map[string]Dataset `json:"datasets"`
	Failures map[string]string  `json:"failures,omitempty"` // Dataset name to load error
}

// Metadata holds information about the generation process and the data source.
type Metadata struct {
	Generator GeneratorMetadata `json:"generator"`
	Source    SourceMetadata    `json:"source"`
	ReportID  string            `json:"report_id,omitempty"`
	Filter    string            `json:"filter"`
}

// GeneratorMetadata contains details about the execution environment.
type GeneratorMetadata struct {
	Version       string    `json:"version"`
	DateGenerated time.Time `json:"date_generated"`
	User          string    `json:"user"`
	Hostname      string    `json:"hostname"`
	Platform      string    `json:"platform"`
	GoVersion     string    `json:"go_version"`
}

// SourceMetadata describes where the datasets came from.
type SourceMetadata struct {
	DataDir     string       `json:"data_dir"`
	Fingerprint string       `json:"fingerprint"`
	Revision    *GitRevision `json:"revision,omitempty"` // Nil when the data dir is not under git
}

// GitRevision is the HEAD of the git working tree containing the data directory.
type GitRevision struct {
	SHA     string    `json:"sha"`
	Branch  string    `json:"branch"`
	Date    time.Time `json:"date"`
	Author  string    `json:"author"` // Format: "Name (email)"
	Message string    `json:"message"`
}

// ChartKind names one of the supported chart types.
type ChartKind string

const (
	ChartDoughnut      ChartKind = "doughnut"
	ChartPie           ChartKind = "pie"
	ChartBar           ChartKind = "bar"
	ChartLine          ChartKind = "line"
	ChartHorizontalBar ChartKind = "horizontalBar"
)

// Valid reports whether k is a known chart kind.
func (k ChartKind) Valid() bool {
	switch k {
	case ChartDoughnut, ChartPie, ChartBar, ChartLine, ChartHorizontalBar:
		return true
	}
	return false
}

// ChartData is a chart-ready series plus the presentation hints needed to draw it.
type ChartData struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Kind        ChartKind `json:"kind"`
	Dataset     string    `json:"dataset"`
	SeriesLabel string    `json:"series_label,omitempty"`
	Labels      []string  `json:"labels"`
	Values      []float64 `json:"values"`
	Colors      []string  `json:"colors,omitempty"`
	BorderColor string    `json:"border_color,omitempty"`
	Fill        bool      `json:"fill,omitempty"`
	TotalRows   int       `json:"total_rows"`
	MatchedRows int       `json:"matched_rows"`
	Error       string    `json:"error,omitempty"`
}

// Empty reports whether the chart has nothing to draw.
func (c ChartData) Empty() bool {
	return len(c.Values) == 0
}

// DashboardData is the full set of charts produced from one CollectedData and filter.
type DashboardData struct {
	Metadata Metadata    `json:"metadata"`
	Charts   []ChartData `json:"charts"`
}

// Chart returns the chart with the given id.
func (d *DashboardData) Chart(id string) (ChartData, bool) {
	for _, c := range d.Charts {
		if c.ID == id {
			return c, true
		}
	}
	return ChartData{}, false
}
