package browser

import (
	"fmt"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

var (
	_ scraper.LabelReader = (*Chrome)(nil)
	_ scraper.LabelReader = (*Static)(nil)
)

// NewLauncher returns the launcher for cfg.Driver.
func NewLauncher(cfg *config.Config) (scraper.Launcher, error) {
	switch cfg.Driver {
	case config.DriverChrome:
		return ChromeLauncher(ChromeOptions{
			Headless:        cfg.Headless,
			UserAgent:       cfg.UserAgent,
			NavigateTimeout: cfg.PageTimeout,
			ActionTimeout:   cfg.DetailTimeout,
		}), nil
	case config.DriverStatic:
		return StaticLauncher(StaticOptions{
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.PageTimeout,
			CacheSize: cfg.HistoryCacheSize,
		}), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}
