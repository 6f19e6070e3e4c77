package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DriverChrome = "chrome"
	DriverStatic = "static"
)

// Institution holds the fixed library parameters sent with every search.
type Institution struct {
	Name     string `mapstructure:"name"`
	ProvCode string `mapstructure:"prov_code"`
	NeisCode string `mapstructure:"neis_code"`
}

// Field locates one value on the detail view. When Label is set, the first
// element matching Selector whose text contains Label is used and the label
// is stripped from the value.
type Field struct {
	Selector string `mapstructure:"selector"`
	Label    string `mapstructure:"label"`
}

// Selectors describes the catalog markup.
type Selectors struct {
	ResultHandle   string `mapstructure:"result_handle"`
	DetailReady    string `mapstructure:"detail_ready"`
	CoverAttribute string `mapstructure:"cover_attribute"`
	Title          Field  `mapstructure:"title"`
	Author         Field  `mapstructure:"author"`
	Publisher      Field  `mapstructure:"publisher"`
	CallNumber     Field  `mapstructure:"call_number"`
	Availability   Field  `mapstructure:"availability"`
	Description    Field  `mapstructure:"description"`
}

// Config holds scraper configuration.
type Config struct {
	SearchURL        string        `mapstructure:"search_url"`
	Institution      Institution   `mapstructure:"institution"`
	MaxResults       int           `mapstructure:"max_results"`
	Driver           string        `mapstructure:"driver"`
	Headless         bool          `mapstructure:"headless"`
	UserAgent        string        `mapstructure:"user_agent"`
	PageTimeout      time.Duration `mapstructure:"page_timeout"`
	DetailTimeout    time.Duration `mapstructure:"detail_timeout"`
	Delay            time.Duration `mapstructure:"delay"`
	HistoryCacheSize int           `mapstructure:"history_cache_size"`
	Selectors        Selectors     `mapstructure:"selectors"`
	OutputFile       string        `mapstructure:"output_file"`
	OutputFormat     string        `mapstructure:"output_format"` // table, csv, json, or dual
	MetricsAddr      string        `mapstructure:"metrics_addr"`
	Verbose          bool          `mapstructure:"verbose"`
}

// DefaultSelectors matches the read365 school library search pages.
func DefaultSelectors() Selectors {
	return Selectors{
		ResultHandle:   "a.hover-btn.plus",
		DetailReady:    "img[alt='도서의 표지 이미지입니다.']",
		CoverAttribute: "src",
		Title:          Field{Selector: "h3.prod-name"},
		Author:         Field{Selector: "span", Label: "저자:"},
		Publisher:      Field{Selector: "span", Label: "출판사:"},
		CallNumber:     Field{Selector: "span", Label: "청구기호:"},
		Availability:   Field{Selector: ".book-state"},
		Description:    Field{Selector: "p.more-area"},
	}
}

// DefaultConfig returns defaults for the read365 school library catalog.
func DefaultConfig() *Config {
	return &Config{
		SearchURL: "https://read365.edunet.net/PureScreen/SchoolSearchResult",
		Institution: Institution{
			Name:     "광운인공지능고등학교",
			ProvCode: "B10",
			NeisCode: "B100000580",
		},
		MaxResults:       5,
		Driver:           DriverChrome,
		Headless:         true,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		PageTimeout:      20 * time.Second,
		DetailTimeout:    20 * time.Second,
		Delay:            time.Second,
		HistoryCacheSize: 16,
		Selectors:        DefaultSelectors(),
		OutputFile:       "",
		OutputFormat:     "table",
		MetricsAddr:      "",
		Verbose:          false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.SearchURL == "" {
		return fmt.Errorf("search URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.SearchURL)
	if err != nil {
		return fmt.Errorf("invalid search URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("search URL must include a host")
	}

	if c.MaxResults < 0 {
		return fmt.Errorf("max results cannot be negative")
	}
	if c.Driver != DriverChrome && c.Driver != DriverStatic {
		return fmt.Errorf("driver must be %s or %s", DriverChrome, DriverStatic)
	}
	if c.PageTimeout <= 0 {
		return fmt.Errorf("page timeout must be positive")
	}
	if c.DetailTimeout <= 0 {
		return fmt.Errorf("detail timeout must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.HistoryCacheSize <= 0 {
		return fmt.Errorf("history cache size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if err := c.Selectors.Validate(); err != nil {
		return err
	}

	switch c.OutputFormat {
	case "table":
	case "csv", "json", "dual":
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty for %s output", c.OutputFormat)
		}
	default:
		return fmt.Errorf("output format must be table, csv, json, or dual")
	}

	return nil
}

// Validate reports the first selector that is missing.
func (s Selectors) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"result_handle", s.ResultHandle},
		{"detail_ready", s.DetailReady},
		{"cover_attribute", s.CoverAttribute},
		{"title", s.Title.Selector},
		{"author", s.Author.Selector},
		{"publisher", s.Publisher.Selector},
		{"call_number", s.CallNumber.Selector},
		{"availability", s.Availability.Selector},
		{"description", s.Description.Selector},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("selector %s cannot be empty", r.name)
		}
	}
	return nil
}
