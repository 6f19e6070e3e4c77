package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "negative max results",
			mutate: func(cfg *Config) {
				cfg.MaxResults = -1
			},
			wantErr: "max results",
		},
		{
			name: "empty search url",
			mutate: func(cfg *Config) {
				cfg.SearchURL = ""
			},
			wantErr: "search URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.SearchURL = "http://"
			},
			wantErr: "search URL",
		},
		{
			name: "unknown driver",
			mutate: func(cfg *Config) {
				cfg.Driver = "selenium"
			},
			wantErr: "driver",
		},
		{
			name: "negative page timeout",
			mutate: func(cfg *Config) {
				cfg.PageTimeout = -1 * time.Second
			},
			wantErr: "page timeout",
		},
		{
			name: "zero detail timeout",
			mutate: func(cfg *Config) {
				cfg.DetailTimeout = 0
			},
			wantErr: "detail timeout",
		},
		{
			name: "negative delay",
			mutate: func(cfg *Config) {
				cfg.Delay = -time.Millisecond
			},
			wantErr: "delay",
		},
		{
			name: "csv without file",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "csv"
				cfg.OutputFile = ""
			},
			wantErr: "output file",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "missing result handle selector",
			mutate: func(cfg *Config) {
				cfg.Selectors.ResultHandle = " "
			},
			wantErr: "result_handle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := DefaultConfig()
	if cfg.SearchURL != want.SearchURL || cfg.MaxResults != want.MaxResults || cfg.Delay != want.Delay {
		t.Fatalf("loaded %+v, want defaults %+v", cfg, want)
	}
	if cfg.Selectors != want.Selectors {
		t.Fatalf("selectors=%+v, want %+v", cfg.Selectors, want.Selectors)
	}
}

func TestLoadProfileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	profile := `
search_url: http://opac.example.test/search
max_results: 12
driver: static
delay: 250ms
institution:
  name: Example High
selectors:
  result_handle: a.detail
  author:
    selector: dd.author
    label: ""
`
	if err := os.WriteFile(path, []byte(profile), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	t.Setenv("CATALOG_MAX_RESULTS", "3")
	t.Setenv("CATALOG_SELECTORS_TITLE_SELECTOR", "h1.title")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.SearchURL != "http://opac.example.test/search" {
		t.Fatalf("search url=%q", cfg.SearchURL)
	}
	if cfg.MaxResults != 3 {
		t.Fatalf("max results=%d, want env override 3", cfg.MaxResults)
	}
	if cfg.Driver != DriverStatic {
		t.Fatalf("driver=%q, want static", cfg.Driver)
	}
	if cfg.Delay != 250*time.Millisecond {
		t.Fatalf("delay=%v, want 250ms", cfg.Delay)
	}
	if cfg.Institution.Name != "Example High" || cfg.Institution.ProvCode != "B10" {
		t.Fatalf("institution=%+v", cfg.Institution)
	}
	if cfg.Selectors.ResultHandle != "a.detail" {
		t.Fatalf("result handle=%q", cfg.Selectors.ResultHandle)
	}
	if cfg.Selectors.Author.Selector != "dd.author" || cfg.Selectors.Author.Label != "" {
		t.Fatalf("author field=%+v", cfg.Selectors.Author)
	}
	if cfg.Selectors.Title.Selector != "h1.title" {
		t.Fatalf("title selector=%q, want env override", cfg.Selectors.Title.Selector)
	}
	if cfg.Selectors.Publisher.Label != "출판사:" {
		t.Fatalf("publisher label=%q, want default", cfg.Selectors.Publisher.Label)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing profile")
	}
}
