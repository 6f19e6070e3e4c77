// Package query builds catalog search requests.
package query

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/config"
)

// BuildSearchURL returns the search page address for keyword at inst.
func BuildSearchURL(base, keyword string, inst config.Institution) (string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", fmt.Errorf("search keyword cannot be empty")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse search url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("search url must include a host")
	}

	q := u.Query()
	q.Set("searchKeyword", keyword)
	q.Set("provCode", inst.ProvCode)
	q.Set("neisCode", inst.NeisCode)
	q.Set("schoolName", inst.Name)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
