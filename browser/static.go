package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

// StaticOptions configures a Static session.
type StaticOptions struct {
	UserAgent string
	Timeout   time.Duration
	CacheSize int
	// Transport replaces the collector's HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Static drives server-rendered catalogs without a browser. Every page load
// is a new render: handles from earlier loads report ErrStaleHandle. Clicking
// a handle follows its href.
type Static struct {
	collector *colly.Collector
	pages     *lru.Cache[string, []byte]

	doc     *goquery.Document
	current *url.URL
	gen     int
	history []string
	closed  bool
}

type staticHandle struct {
	gen int
	sel *goquery.Selection
}

// NewStatic builds a Static session.
func NewStatic(opts StaticOptions) (*Static, error) {
	if opts.CacheSize <= 0 {
		return nil, fmt.Errorf("page cache size must be positive")
	}
	pages, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}

	collector := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	if opts.Timeout > 0 {
		collector.SetRequestTimeout(opts.Timeout)
	}
	if opts.Transport != nil {
		collector.WithTransport(opts.Transport)
	}

	return &Static{
		collector: collector,
		pages:     pages,
	}, nil
}

// StaticLauncher opens a fresh Static session per scrape.
func StaticLauncher(opts StaticOptions) scraper.Launcher {
	return func(ctx context.Context) (scraper.Driver, error) {
		return NewStatic(opts)
	}
}

func (s *Static) Navigate(ctx context.Context, target string) error {
	if s.closed {
		return scraper.ErrNavigation{URL: target, Err: errors.New("session closed")}
	}
	prev := s.current
	if err := s.load(ctx, target); err != nil {
		return err
	}
	if prev != nil {
		s.history = append(s.history, prev.String())
	}
	return nil
}

func (s *Static) WaitReady(ctx context.Context, timeout time.Duration) error {
	if s.doc == nil {
		return scraper.ErrTimeout{Err: errors.New("no page loaded")}
	}
	return ctx.Err()
}

// WaitPresent does not poll: a static render never changes after load.
func (s *Static) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	if s.doc == nil || s.doc.Find(selector).Length() == 0 {
		return scraper.ErrTimeout{Err: fmt.Errorf("%q not present", selector)}
	}
	return nil
}

func (s *Static) FindAll(ctx context.Context, selector string) ([]scraper.Handle, error) {
	if s.doc == nil {
		return nil, nil
	}
	var handles []scraper.Handle
	s.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		handles = append(handles, staticHandle{gen: s.gen, sel: sel})
	})
	return handles, nil
}

func (s *Static) Click(ctx context.Context, h scraper.Handle) error {
	sel, err := s.resolve(h)
	if err != nil {
		return err
	}
	href, ok := sel.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return scraper.ErrNotFound{Selector: "href", Err: errors.New("handle has no link target")}
	}
	target, err := s.current.Parse(href)
	if err != nil {
		return scraper.ErrNavigation{URL: href, Err: err}
	}
	return s.Navigate(ctx, target.String())
}

func (s *Static) Text(ctx context.Context, scope scraper.Handle, selector string) (string, error) {
	sel, err := s.find(scope, selector)
	if err != nil {
		return "", err
	}
	return sel.Text(), nil
}

func (s *Static) LabelledText(ctx context.Context, selector, label string) (string, error) {
	if s.doc == nil {
		return "", scraper.ErrNotFound{Selector: selector, Err: errors.New("no page loaded")}
	}
	var text string
	found := false
	s.doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if t := sel.Text(); strings.Contains(t, label) {
			text, found = t, true
			return false
		}
		return true
	})
	if !found {
		return "", scraper.ErrNotFound{Selector: selector, Err: fmt.Errorf("no element labelled %q", label)}
	}
	return text, nil
}

// Attribute resolves src and href values against the page address.
func (s *Static) Attribute(ctx context.Context, scope scraper.Handle, selector, name string) (string, error) {
	sel, err := s.find(scope, selector)
	if err != nil {
		return "", err
	}
	value, ok := sel.Attr(name)
	if !ok {
		return "", scraper.ErrNotFound{Selector: selector + "@" + name, Err: errors.New("attribute missing")}
	}
	if name == "src" || name == "href" {
		if abs, err := s.current.Parse(strings.TrimSpace(value)); err == nil {
			return abs.String(), nil
		}
	}
	return value, nil
}

func (s *Static) Back(ctx context.Context) error {
	if len(s.history) == 0 {
		return scraper.ErrNavigation{URL: "history", Err: errors.New("no previous page")}
	}
	prev := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	return s.load(ctx, prev)
}

func (s *Static) Close() error {
	s.closed = true
	s.doc = nil
	s.history = nil
	s.pages.Purge()
	return nil
}

func (s *Static) load(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, ok := s.pages.Get(target)
	if !ok {
		fetched, err := s.fetch(target)
		if err != nil {
			return scraper.ErrNavigation{URL: target, Err: err}
		}
		body = fetched
		s.pages.Add(target, body)
	} else {
		slog.Debug("page cache hit", slog.String("url", target))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scraper.ErrNavigation{URL: target, Err: fmt.Errorf("parse html: %w", err)}
	}
	u, err := url.Parse(target)
	if err != nil {
		return scraper.ErrNavigation{URL: target, Err: err}
	}

	s.doc = doc
	s.current = u
	s.gen++
	return nil
}

func (s *Static) fetch(target string) ([]byte, error) {
	var body []byte
	c := s.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	if err := c.Visit(target); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("empty response")
	}
	return body, nil
}

func (s *Static) resolve(h scraper.Handle) (*goquery.Selection, error) {
	sh, ok := h.(staticHandle)
	if !ok {
		return nil, fmt.Errorf("unexpected handle type %T", h)
	}
	if sh.gen != s.gen {
		return nil, scraper.ErrStaleHandle{Err: fmt.Errorf("handle from render %d, page is at render %d", sh.gen, s.gen)}
	}
	return sh.sel, nil
}

func (s *Static) find(scope scraper.Handle, selector string) (*goquery.Selection, error) {
	if s.doc == nil {
		return nil, scraper.ErrNotFound{Selector: selector, Err: errors.New("no page loaded")}
	}
	root := s.doc.Selection
	if scope != nil {
		sel, err := s.resolve(scope)
		if err != nil {
			return nil, err
		}
		root = sel
	}
	if selector == "" {
		return root, nil
	}
	found := root.Find(selector).First()
	if found.Length() == 0 {
		return nil, scraper.ErrNotFound{Selector: selector, Err: errors.New("no match")}
	}
	return found, nil
}
