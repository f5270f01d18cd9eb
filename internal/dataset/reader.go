// Package dataset reads header-row tabular files into models.Dataset values.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/sales-dashboard-go/internal/models"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned for file extensions other than .csv and .xlsx.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	// ErrNoHeader is returned when a file has no header row.
	ErrNoHeader = errors.New("dataset has no header row")
)

const utf8BOM = "\uFEFF"

// Read parses the file at path. The format is chosen by extension.
func Read(path string) (models.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return models.Dataset{}, fmt.Errorf("failed to open dataset %s: %w", path, err)
		}
		defer f.Close()
		ds, err := ReadCSV(f)
		if err != nil {
			return models.Dataset{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return finish(ds, path), nil
	case ".xlsx":
		ds, err := readXLSX(path)
		if err != nil {
			return models.Dataset{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return finish(ds, path), nil
	default:
		return models.Dataset{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func finish(ds models.Dataset, path string) models.Dataset {
	ds.Name = filepath.Base(path)
	ds.Path = path
	ds.LoadedAt = time.Now().UTC()
	return ds
}

// ReadCSV parses comma-separated records whose first line is the header.
// Rows may be shorter or longer than the header; missing trailing cells are
// left out of the row and extra cells are dropped.
func ReadCSV(r io.Reader) (models.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return models.Dataset{}, ErrNoHeader
	}
	if err != nil {
		return models.Dataset{}, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.Dataset{}, fmt.Errorf("failed to read CSV record: %w", err)
		}
		records = append(records, rec)
	}
	return fromRecords(header, records)
}

func readXLSX(path string) (models.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return models.Dataset{}, ErrNoHeader
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return models.Dataset{}, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return models.Dataset{}, ErrNoHeader
	}
	return fromRecords(rows[0], rows[1:])
}

func fromRecords(header []string, records [][]string) (models.Dataset, error) {
	columns := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		columns[i] = strings.TrimSpace(h)
	}
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == "") {
		return models.Dataset{}, ErrNoHeader
	}

	rows := make([]models.Row, 0, len(records))
	for _, rec := range records {
		if blank(rec) {
			continue
		}
		row := make(models.Row, len(columns))
		for i, name := range columns {
			if i >= len(rec) {
				break
			}
			if name == "" {
				continue
			}
			row[name] = rec[i]
		}
		rows = append(rows, row)
	}
	return models.Dataset{Columns: columns, Rows: rows}, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
