package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/sales-dashboard-go/internal/collector"
	"github.com/user/sales-dashboard-go/internal/config"
	"github.com/user/sales-dashboard-go/internal/dashboard"
	"github.com/user/sales-dashboard-go/internal/report"
	"github.com/user/sales-dashboard-go/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

var (
	// Used for flags.
	configPath     string
	verbose        bool
	dataDirFlag    string
	outputFilePath string
	filterTerm     string
	embedPNG       bool
	clearCache     bool
	noCache        bool
	addr           string
	watch          bool

	cfg    *config.Config
	logger *zap.Logger

	rootCmd = &cobra.Command{
		Use:   "dashboard",
		Short: "Sales dashboard over a directory of CSV datasets.",
		Long: `Loads the sales, accounts, products, pipeline and video game CSV datasets,
aggregates them into charts, and either writes a report (html, json or png)
or serves an interactive dashboard with a live text filter.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			zcfg := zap.NewProductionConfig()
			if level, err := zap.ParseAtomicLevel(cfg.Logging.Level); err == nil && cfg.Logging.Level != "" {
				zcfg.Level = level
			}
			if verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err = zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	loadCmd = &cobra.Command{
		Use:   "load [DATA_DIR]",
		Short: "Loads every dataset and caches the result.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := resolveDataDir(args)
			if err != nil {
				return err
			}
			col, err := newCollector(dataDir)
			if err != nil {
				return err
			}
			if clearCache {
				if err := col.ClearCache(); err != nil {
					return err
				}
			}

			fmt.Printf("Loading datasets from: %s\n", dataDir)
			if err := col.Collect(cmd.Context()); err != nil {
				return fmt.Errorf("error during data collection for %s: %w", dataDir, err)
			}
			for _, name := range col.Names {
				if reason, failed := col.Data.Failures[name]; failed {
					fmt.Printf("  %-24s FAILED: %s\n", name, reason)
					continue
				}
				fmt.Printf("  %-24s %d rows\n", name, len(col.Data.Datasets[name].Rows))
			}
			if len(col.Data.Failures) > 0 {
				return fmt.Errorf("%d of %d datasets failed to load", len(col.Data.Failures), len(col.Names))
			}
			fmt.Println("Data collection successful.")
			return nil
		},
	}

	reportCmd = &cobra.Command{
		Use:   "report [DATA_DIR] [html|json|png]",
		Short: "Generates a report from the datasets.",
		Long: `Generates a report in the specified format (html, json or png, default html)
from the datasets in DATA_DIR. The png format writes one image per chart into
the output directory.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := "html"
			switch {
			case len(args) == 2:
				format = args[1]
				args = args[:1]
			case len(args) == 1 && slices.Contains(report.Formats, args[0]):
				format = args[0]
				args = nil
			}

			adapter, err := report.NewAdapter(format, embedPNG, logger)
			if err != nil {
				return err
			}

			dataDir, err := resolveDataDir(args)
			if err != nil {
				return err
			}
			if outputFilePath == "" {
				outputFilePath = report.DefaultOutputPath(format)
			}
			absOutputFilePath, err := filepath.Abs(outputFilePath)
			if err != nil {
				return fmt.Errorf("invalid output file path '%s': %w", outputFilePath, err)
			}

			col, err := newCollector(dataDir)
			if err != nil {
				return err
			}
			fmt.Printf("Generating %s report for: %s\n", format, dataDir)
			if err := col.Collect(cmd.Context()); err != nil {
				return fmt.Errorf("failed to load data from %s: %w", dataDir, err)
			}

			data := dashboard.NewBuilder(dashboard.Charts(cfg), logger).Build(&col.Data, filterTerm)
			if err := adapter.PrepareData(data); err != nil {
				return fmt.Errorf("failed to prepare %s report data: %w", format, err)
			}

			fmt.Printf("Writing report to: %s\n", absOutputFilePath)
			if err := adapter.Write(absOutputFilePath); err != nil {
				return fmt.Errorf("failed to write %s report to %s: %w", format, absOutputFilePath, err)
			}
			fmt.Printf("%s report generated successfully: %s\n", strings.ToUpper(format), absOutputFilePath)
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve [DATA_DIR]",
		Short: "Serves the interactive dashboard.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := resolveDataDir(args)
			if err != nil {
				return err
			}
			col, err := newCollector(dataDir)
			if err != nil {
				return err
			}

			listen := cfg.Server.Addr
			if cmd.Flags().Changed("addr") {
				listen = addr
			}
			charts := dashboard.Charts(cfg)
			srv := server.New(col, dashboard.NewBuilder(charts, logger), server.Options{
				Addr:    listen,
				Watch:   cfg.Server.Watch || watch,
				DataDir: dataDir,
				Names:   dashboard.Datasets(charts),
				Logger:  logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := srv.Reload(ctx); err != nil {
				return err
			}
			fmt.Printf("Serving dashboard for %s on %s\n", dataDir, listen)
			return srv.Run(ctx)
		},
	}

	chartsCmd = &cobra.Command{
		Use:   "charts",
		Short: "Prints the configured chart definitions as YAML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(map[string]interface{}{"charts": dashboard.Charts(cfg)})
			if err != nil {
				return fmt.Errorf("failed to marshal charts: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
)

// resolveDataDir picks the positional argument, then --data-dir, then the
// configured directory, and checks that it exists.
func resolveDataDir(args []string) (string, error) {
	dataDir := cfg.DataDir
	if dataDirFlag != "" {
		dataDir = dataDirFlag
	}
	if len(args) > 0 {
		dataDir = args[0]
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return "", fmt.Errorf("error getting absolute path for '%s': %w", dataDir, err)
	}
	stat, err := os.Stat(absDataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("data directory '%s' does not exist", absDataDir)
		}
		return "", fmt.Errorf("error accessing data directory '%s': %w", absDataDir, err)
	}
	if !stat.IsDir() {
		return "", fmt.Errorf("data path '%s' is not a directory", absDataDir)
	}
	cfg.DataDir = absDataDir
	return absDataDir, nil
}

func newCollector(dataDir string) (*collector.DatasetCollector, error) {
	opts := collector.Options{Logger: logger}
	if !noCache {
		opts.CacheDir = cfg.ResolvedCacheDir()
	}
	col, err := collector.NewDatasetCollector(dataDir, dashboard.Datasets(dashboard.Charts(cfg)), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize collector for %s: %w", dataDir, err)
	}
	return col, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "dashboard.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory holding the dataset files")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Neither read nor write the dataset cache")

	loadCmd.Flags().BoolVar(&clearCache, "clear-cache", false, "Clears the existing cache before loading")

	reportCmd.Flags().StringVarP(&outputFilePath, "output-file-path", "o", "", "Output file (or directory for png) for the report")
	reportCmd.Flags().StringVarP(&filterTerm, "filter", "f", "", "Only aggregate rows containing this text")
	reportCmd.Flags().BoolVar(&embedPNG, "embed-png", false, "Embed PNG renderings in the html report")

	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	serveCmd.Flags().BoolVar(&watch, "watch", false, "Reload when dataset files change")

	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chartsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
