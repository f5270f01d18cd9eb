package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/sales-dashboard-go/internal/models"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReportCommand_JSON(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "report.json")
	_, err := runRoot(t, "report", "../../assets/data", "json", "--no-cache", "-o", outFile, "-f", "gtx")
	require.NoError(t, err)

	raw, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var data models.DashboardData
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, "gtx", data.Metadata.Filter)
	require.Len(t, data.Charts, 5)

	prices, ok := data.Chart("chart5")
	require.True(t, ok)
	assert.Equal(t, []string{"GTX"}, prices.Labels)
}

func TestReportCommand_InvalidFormat(t *testing.T) {
	_, err := runRoot(t, "report", "../../assets/data", "pdf", "--no-cache")
	assert.Error(t, err)
}

func TestChartsCommand(t *testing.T) {
	out, err := runRoot(t, "charts")
	require.NoError(t, err)
	assert.Contains(t, out, "id: chart1")
	assert.Contains(t, out, "dataset: video_game_sales.csv")
}
