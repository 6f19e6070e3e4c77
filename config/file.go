package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CATALOG_MAX_RESULTS or
// CATALOG_SELECTORS_TITLE_SELECTOR.
const EnvPrefix = "CATALOG"

// Load builds a Config from defaults, an optional profile file and CATALOG_*
// environment variables, in increasing order of precedence. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("search_url", d.SearchURL)
	v.SetDefault("institution.name", d.Institution.Name)
	v.SetDefault("institution.prov_code", d.Institution.ProvCode)
	v.SetDefault("institution.neis_code", d.Institution.NeisCode)
	v.SetDefault("max_results", d.MaxResults)
	v.SetDefault("driver", d.Driver)
	v.SetDefault("headless", d.Headless)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("page_timeout", d.PageTimeout)
	v.SetDefault("detail_timeout", d.DetailTimeout)
	v.SetDefault("delay", d.Delay)
	v.SetDefault("history_cache_size", d.HistoryCacheSize)
	v.SetDefault("output_file", d.OutputFile)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("verbose", d.Verbose)

	s := d.Selectors
	v.SetDefault("selectors.result_handle", s.ResultHandle)
	v.SetDefault("selectors.detail_ready", s.DetailReady)
	v.SetDefault("selectors.cover_attribute", s.CoverAttribute)
	for name, f := range map[string]Field{
		"title":        s.Title,
		"author":       s.Author,
		"publisher":    s.Publisher,
		"call_number":  s.CallNumber,
		"availability": s.Availability,
		"description":  s.Description,
	} {
		v.SetDefault("selectors."+name+".selector", f.Selector)
		v.SetDefault("selectors."+name+".label", f.Label)
	}
}
