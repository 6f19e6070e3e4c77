package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-catalog/browser"
	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

const tableWidth = 40

// CLI is the catalog command line. Flags left unset keep the value from the
// profile, the CATALOG_* environment or the defaults.
type CLI struct {
	Keyword string `arg:"" help:"Title keyword to search for."`

	Config      string         `short:"c" help:"Profile file (YAML, TOML or JSON)." env:"CATALOG_CONFIG"`
	MaxResults  *int           `short:"n" help:"Maximum distinct works to return."`
	Driver      string         `help:"Page driver: chrome or static."`
	Headful     bool           `help:"Show the browser window."`
	Delay       *time.Duration `help:"Minimum pause between detail views."`
	Output      string         `short:"o" help:"Output file path for csv, json and dual formats."`
	Format      string         `short:"f" help:"Output format: table, csv, json or dual."`
	MetricsAddr string         `help:"Prometheus metrics listen address (e.g. :9090)."`
	Verbose     bool           `short:"v" help:"Enable debug logging."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("catalog"),
		kong.Description("Search a school library catalog and list the distinct works found."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	if err := kctx.Run(); err != nil {
		slog.Error("catalog search failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

// Run executes one search.
func (c *CLI) Run(ctx context.Context) error {
	cfg, err := c.buildConfig()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(os.Stderr, cfg.Verbose))

	launch, err := browser.NewLauncher(cfg)
	if err != nil {
		return err
	}
	s, err := scraper.NewScraper(cfg, launch)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	if cfg.MetricsAddr != "" {
		server := startMetricsServer(cfg.MetricsAddr, s.Metrics)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	slog.Info("starting search",
		slog.String("keyword", c.Keyword),
		slog.Int("max_results", cfg.MaxResults),
		slog.String("driver", cfg.Driver),
	)

	result, err := s.Run(ctx, c.Keyword, cfg.MaxResults)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		slog.Warn("search interrupted, reporting partial results")
	}

	if err := report(os.Stdout, cfg, result); err != nil {
		return err
	}
	printSummary(os.Stdout, result, cfg)
	return nil
}

// buildConfig layers flags over the loaded profile.
func (c *CLI) buildConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}

	if c.MaxResults != nil {
		cfg.MaxResults = *c.MaxResults
	}
	if c.Driver != "" {
		cfg.Driver = strings.ToLower(c.Driver)
	}
	if c.Headful {
		cfg.Headless = false
	}
	if c.Delay != nil {
		cfg.Delay = *c.Delay
	}
	if c.Output != "" {
		cfg.OutputFile = c.Output
	}
	if c.Format != "" {
		cfg.OutputFormat = c.Format
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	if c.MetricsAddr != "" {
		cfg.MetricsAddr = c.MetricsAddr
	}
	if c.Verbose {
		cfg.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func report(out io.Writer, cfg *config.Config, result *models.ScrapeResult) error {
	if len(result.Records) == 0 {
		fmt.Fprintln(out, "no results")
		return nil
	}

	writer, err := createWriter(out, cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	if err := writer.Write(result.Records); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}
	return nil
}

func createWriter(out io.Writer, format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "table":
		return pipeline.NewTableWriter(out, tableWidth), nil
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		return pipeline.NewDualWriter(filename, pipeline.DualJSONPath(filename))
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func printSummary(out io.Writer, result *models.ScrapeResult, cfg *config.Config) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(out, "\n"+separator)
	fmt.Fprintln(out, "Search complete")

	volumes := 0
	for _, r := range result.Records {
		volumes += r.Volumes
	}

	fmt.Fprintf(out, "  Keyword:       %s\n", result.Keyword)
	fmt.Fprintf(out, "  Works:         %d\n", len(result.Records))
	fmt.Fprintf(out, "  Volumes:       %d\n", volumes)
	fmt.Fprintf(out, "  Attempts:      %d\n", result.Attempts)
	fmt.Fprintf(out, "  Skipped:       %d\n", result.Skipped)
	if len(result.SkipsByReason) > 0 {
		reasons := make([]string, 0, len(result.SkipsByReason))
		for reason := range result.SkipsByReason {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		parts := make([]string, 0, len(reasons))
		for _, reason := range reasons {
			parts = append(parts, fmt.Sprintf("%s=%d", reason, result.SkipsByReason[reason]))
		}
		fmt.Fprintf(out, "  Skip reasons:  %s\n", strings.Join(parts, " "))
	}
	if !result.EndTime.IsZero() {
		fmt.Fprintf(out, "  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	}
	if cfg.OutputFormat != "table" && len(result.Records) > 0 {
		fmt.Fprintf(out, "  Output file:   %s\n", cfg.OutputFile)
	}
	fmt.Fprintln(out, separator)
}

func newLogger(w *os.File, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	if isTerminal(w) {
		return slog.New(humanlog.NewHandler(w, &humanlog.Options{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
