package collector

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/user/sales-dashboard-go/internal/dataset"
	"github.com/user/sales-dashboard-go/internal/models"
	"github.com/user/sales-dashboard-go/pkg/gitutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const Version = "0.1.0"

const cacheEntryName = "data.gob"

// Options tune a DatasetCollector.
type Options struct {
	CacheDir    string // Empty disables caching
	Concurrency int    // Defaults to runtime.NumCPU()
	Logger      *zap.Logger
}

// DatasetCollector loads a fixed set of dataset files from a directory.
type DatasetCollector struct {
	DataDir string
	Names   []string
	Data    models.CollectedData

	opts        Options
	log         *zap.Logger
	fingerprint string
}

// NewDatasetCollector creates a collector for the named files under dataDir.
func NewDatasetCollector(dataDir string, names []string, opts Options) (*DatasetCollector, error) {
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for data dir: %w", err)
	}
	if len(names) == 0 {
		return nil, errors.New("no datasets to collect")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &DatasetCollector{
		DataDir: absDataDir,
		Names:   names,
		Data:    emptyData(),
		opts:    opts,
		log:     log,
	}, nil
}

func emptyData() models.CollectedData {
	return models.CollectedData{
		Datasets: make(map[string]models.Dataset),
		Failures: make(map[string]string),
	}
}

// Fingerprint hashes the data directory and the name, size and modification
// time of every dataset file. Missing files hash as missing, so creating one
// changes the result.
func (dc *DatasetCollector) Fingerprint() string {
	names := append([]string(nil), dc.Names...)
	sort.Strings(names)

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00", dc.DataDir)
	for _, name := range names {
		fmt.Fprintf(h, "%s\x00", name)
		info, err := os.Stat(filepath.Join(dc.DataDir, name))
		if err != nil {
			fmt.Fprint(h, "missing\x00")
			continue
		}
		fmt.Fprintf(h, "%d\x00%d\x00", info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// cachePath returns the cache file for the current fingerprint.
func (dc *DatasetCollector) cachePath() string {
	if dc.fingerprint == "" {
		dc.fingerprint = dc.Fingerprint()
	}
	return filepath.Join(dc.opts.CacheDir, dc.fingerprint+".zip.gob")
}

// CacheExists checks if a cache file exists for the current fingerprint.
func (dc *DatasetCollector) CacheExists() bool {
	if dc.opts.CacheDir == "" {
		return false
	}
	_, err := os.Stat(dc.cachePath())
	return err == nil
}

// SaveCache saves the collected data to a gob-encoded, zip-compressed file.
func (dc *DatasetCollector) SaveCache() error {
	if dc.opts.CacheDir == "" {
		return nil
	}
	cacheFile := dc.cachePath()
	if err := os.MkdirAll(filepath.Dir(cacheFile), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", filepath.Dir(cacheFile), err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(dc.Data); err != nil {
		return fmt.Errorf("failed to gob-encode data: %w", err)
	}

	zipFile, err := os.Create(cacheFile)
	if err != nil {
		return fmt.Errorf("failed to create zip cache file %s: %w", cacheFile, err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	dataWriter, err := zipWriter.Create(cacheEntryName)
	if err != nil {
		return fmt.Errorf("failed to create %s entry in zip: %w", cacheEntryName, err)
	}
	if _, err := dataWriter.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write gob data to zip entry: %w", err)
	}
	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}
	dc.log.Debug("Data cached", zap.String("path", cacheFile))
	return nil
}

// LoadCache loads collected data from a gob-encoded, zip-compressed file.
func (dc *DatasetCollector) LoadCache() error {
	cacheFile := dc.cachePath()
	zipReader, err := zip.OpenReader(cacheFile)
	if err != nil {
		return fmt.Errorf("failed to open zip cache file %s: %w", cacheFile, err)
	}
	defer zipReader.Close()

	if len(zipReader.File) == 0 || zipReader.File[0].Name != cacheEntryName {
		return fmt.Errorf("invalid cache file format: %s not found", cacheEntryName)
	}

	dataFile, err := zipReader.File[0].Open()
	if err != nil {
		return fmt.Errorf("failed to open %s from zip: %w", cacheEntryName, err)
	}
	defer dataFile.Close()

	data := emptyData()
	if err := gob.NewDecoder(dataFile).Decode(&data); err != nil {
		return fmt.Errorf("failed to gob-decode data: %w", err)
	}
	dc.Data = data
	dc.log.Debug("Data loaded from cache", zap.String("path", cacheFile))
	return nil
}

// ClearCache removes the cache file for the current fingerprint.
func (dc *DatasetCollector) ClearCache() error {
	if dc.opts.CacheDir == "" {
		return nil
	}
	cacheFile := dc.cachePath()
	err := os.Remove(cacheFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file %s: %w", cacheFile, err)
	}
	if err == nil {
		dc.log.Info("Cache file removed", zap.String("path", cacheFile))
	}
	return nil
}

// Collect loads every dataset. A valid cache for the current fingerprint is
// used when present. Datasets that fail to load are recorded in Data.Failures
// and the rest are still loaded; only context cancellation aborts.
func (dc *DatasetCollector) Collect(ctx context.Context) error {
	dc.fingerprint = dc.Fingerprint()

	if dc.CacheExists() {
		if err := dc.LoadCache(); err != nil {
			dc.log.Warn("Failed to load cache, re-collecting", zap.Error(err))
		} else if dc.cacheComplete() {
			return nil
		} else {
			dc.log.Warn("Cache seems incomplete, re-collecting")
		}
	}

	dc.Data = emptyData()
	dc.collectMetadata()

	type result struct {
		ds  models.Dataset
		err error
	}
	results := make([]result, len(dc.Names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dc.opts.Concurrency)
	for i, name := range dc.Names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			ds, err := dataset.Read(filepath.Join(dc.DataDir, name))
			results[i] = result{ds: ds, err: err}
			if err == nil {
				dc.log.Debug("Dataset loaded",
					zap.String("dataset", name),
					zap.Int("rows", len(ds.Rows)),
					zap.Duration("elapsed", time.Since(start)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("dataset collection aborted: %w", err)
	}

	for i, name := range dc.Names {
		r := results[i]
		if r.err != nil {
			dc.log.Warn("Failed to load dataset", zap.String("dataset", name), zap.Error(r.err))
			dc.Data.Failures[name] = r.err.Error()
			continue
		}
		dc.Data.Datasets[name] = r.ds
	}

	if len(dc.Data.Failures) > 0 {
		return nil
	}
	if err := dc.SaveCache(); err != nil {
		return fmt.Errorf("failed to save data to cache: %w", err)
	}
	return nil
}

// cacheComplete reports whether the loaded cache covers every dataset name.
func (dc *DatasetCollector) cacheComplete() bool {
	if dc.Data.Metadata.Generator.DateGenerated.IsZero() {
		return false
	}
	for _, name := range dc.Names {
		if _, ok := dc.Data.Datasets[name]; !ok {
			return false
		}
	}
	return true
}

func (dc *DatasetCollector) collectMetadata() {
	userName := "unknown"
	if currentUser, err := user.Current(); err == nil {
		userName = currentUser.Username
	}
	hostname, _ := os.Hostname()

	revision, err := gitutil.Revision(dc.DataDir)
	if err != nil && !errors.Is(err, gitutil.ErrNotRepository) {
		dc.log.Warn("Could not read git revision of data dir", zap.Error(err))
	}

	dc.Data.Metadata = models.Metadata{
		Generator: models.GeneratorMetadata{
			Version:       Version,
			DateGenerated: time.Now().UTC(),
			User:          userName,
			Hostname:      hostname,
			Platform:      fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
			GoVersion:     runtime.Version(),
		},
		Source: models.SourceMetadata{
			DataDir:     dc.DataDir,
			Fingerprint: dc.fingerprint,
			Revision:    revision,
		},
	}
}

// Load runs Collect and returns a copy of the collected data.
func (dc *DatasetCollector) Load(ctx context.Context) (*models.CollectedData, error) {
	if err := dc.Collect(ctx); err != nil {
		return nil, err
	}
	data := dc.Data
	return &data, nil
}
