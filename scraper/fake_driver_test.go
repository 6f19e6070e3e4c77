package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
)

type fakeItem struct {
	title         string
	author        string
	publisher     string
	callNumber    string
	availability  string
	cover         string
	description   string
	noTitle       bool
	noAuthor      bool
	noDescription bool
	detailTimeout bool
}

func item(title, author, publisher string) fakeItem {
	return fakeItem{
		title:        title,
		author:       author,
		publisher:    publisher,
		callNumber:   "813.6",
		availability: "대출가능",
		cover:        "http://example.test/cover/" + title + ".jpg",
		description:  "About " + title,
	}
}

type fakeHandle struct {
	gen   int
	kind  string
	index int
}

const onList = -1

// fakeDriver is an in-memory catalog: a result list whose handles go stale on
// every render, and one detail view per item.
type fakeDriver struct {
	sel   config.Selectors
	items []fakeItem

	// listLen overrides how many handles the nth list render shows.
	listLen     func(render int) int
	staleClicks map[int]bool
	failBack    bool
	navErr      error

	// staleReads fails reading a selector on the nth detail view as stale.
	staleReads map[int]string

	gen         int
	renders     int
	page        int
	history     []int
	clicks      []int
	navigations int
	backs       int
	closed      bool
}

func newFakeDriver(items ...fakeItem) *fakeDriver {
	return &fakeDriver{
		sel:         config.DefaultSelectors(),
		items:       items,
		staleClicks: make(map[int]bool),
		staleReads:  make(map[int]string),
		page:        onList,
	}
}

func (d *fakeDriver) launcher(calls *int) Launcher {
	return func(ctx context.Context) (Driver, error) {
		if calls != nil {
			*calls++
		}
		return d, nil
	}
}

func (d *fakeDriver) render(page int) {
	d.page = page
	d.gen++
	if page == onList {
		d.renders++
	}
}

func (d *fakeDriver) listCount() int {
	if d.listLen != nil {
		return d.listLen(d.renders)
	}
	return len(d.items)
}

func (d *fakeDriver) current() (fakeItem, error) {
	if d.page == onList {
		return fakeItem{}, fmt.Errorf("not on a detail view")
	}
	return d.items[d.page], nil
}

func (d *fakeDriver) spans(it fakeItem) []string {
	var out []string
	if !it.noAuthor {
		out = append(out, d.sel.Author.Label+" "+it.author)
	}
	out = append(out,
		d.sel.Publisher.Label+" "+it.publisher,
		d.sel.CallNumber.Label+" "+it.callNumber,
	)
	return out
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	if d.navErr != nil {
		return ErrNavigation{URL: url, Err: d.navErr}
	}
	d.navigations++
	d.history = append(d.history, d.page)
	d.render(onList)
	return nil
}

func (d *fakeDriver) WaitReady(ctx context.Context, timeout time.Duration) error {
	return nil
}

func (d *fakeDriver) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	switch {
	case d.page == onList && selector == d.sel.ResultHandle:
		if d.listCount() == 0 {
			return ErrTimeout{Err: errors.New("no results rendered")}
		}
		return nil
	case d.page != onList && selector == d.sel.DetailReady:
		if d.items[d.page].detailTimeout {
			return ErrTimeout{Err: errors.New("cover never rendered")}
		}
		return nil
	}
	return ErrTimeout{Err: fmt.Errorf("%q not present", selector)}
}

func (d *fakeDriver) FindAll(ctx context.Context, selector string) ([]Handle, error) {
	var out []Handle
	switch {
	case d.page == onList && selector == d.sel.ResultHandle:
		for i := 0; i < d.listCount(); i++ {
			out = append(out, fakeHandle{gen: d.gen, kind: "result", index: i})
		}
	case d.page != onList && selector == d.sel.Author.Selector:
		for i := range d.spans(d.items[d.page]) {
			out = append(out, fakeHandle{gen: d.gen, kind: "span", index: i})
		}
	}
	return out, nil
}

func (d *fakeDriver) Click(ctx context.Context, h Handle) error {
	fh := h.(fakeHandle)
	if fh.gen != d.gen || d.staleClicks[fh.index] {
		return ErrStaleHandle{Err: fmt.Errorf("result %d detached", fh.index)}
	}
	d.clicks = append(d.clicks, fh.index)
	d.history = append(d.history, d.page)
	d.render(fh.index)
	return nil
}

func (d *fakeDriver) Text(ctx context.Context, scope Handle, selector string) (string, error) {
	it, err := d.current()
	if err != nil {
		return "", ErrNotFound{Selector: selector, Err: err}
	}
	if scope != nil {
		fh := scope.(fakeHandle)
		if fh.gen != d.gen {
			return "", ErrStaleHandle{Err: errors.New("span detached")}
		}
		return d.spans(it)[fh.index], nil
	}

	if sel, ok := d.staleReads[d.page]; ok && sel == selector {
		return "", ErrStaleHandle{Err: fmt.Errorf("%s detached", selector)}
	}

	missing := ErrNotFound{Selector: selector, Err: errors.New("no match")}
	switch selector {
	case d.sel.Title.Selector:
		if it.noTitle {
			return "", missing
		}
		return "  " + it.title + "\n", nil
	case d.sel.Availability.Selector:
		return it.availability, nil
	case d.sel.Description.Selector:
		if it.noDescription {
			return "", missing
		}
		return it.description, nil
	}
	return "", missing
}

func (d *fakeDriver) Attribute(ctx context.Context, scope Handle, selector, name string) (string, error) {
	it, err := d.current()
	if err != nil || selector != d.sel.DetailReady || name != d.sel.CoverAttribute {
		return "", ErrNotFound{Selector: selector, Err: errors.New("no match")}
	}
	return it.cover, nil
}

func (d *fakeDriver) Back(ctx context.Context) error {
	d.backs++
	if d.failBack {
		return ErrNavigation{URL: "history", Err: errors.New("back unavailable")}
	}
	if len(d.history) == 0 {
		return ErrNavigation{URL: "history", Err: errors.New("no history")}
	}
	prev := d.history[len(d.history)-1]
	d.history = d.history[:len(d.history)-1]
	d.render(prev)
	return nil
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

// flakyList fails the nth result listing (1-based) and every listing from
// failFrom on, when set.
type flakyList struct {
	*fakeDriver
	failOn   int
	failFrom int
	listings int
}

func (f *flakyList) FindAll(ctx context.Context, selector string) ([]Handle, error) {
	if selector == f.sel.ResultHandle {
		f.listings++
		if f.listings == f.failOn || (f.failFrom > 0 && f.listings >= f.failFrom) {
			return nil, ErrStaleHandle{Err: errors.New("result list re-rendered")}
		}
	}
	return f.fakeDriver.FindAll(ctx, selector)
}

// labelled adds single-lookup label reads to the fake.
type labelled struct {
	*fakeDriver
	lookups   int
	spanScans int
}

func (l *labelled) FindAll(ctx context.Context, selector string) ([]Handle, error) {
	if selector == l.sel.Author.Selector && l.page != onList {
		l.spanScans++
	}
	return l.fakeDriver.FindAll(ctx, selector)
}

func (l *labelled) LabelledText(ctx context.Context, selector, label string) (string, error) {
	l.lookups++
	it, err := l.current()
	if err != nil {
		return "", ErrNotFound{Selector: selector, Err: err}
	}
	for _, text := range l.spans(it) {
		if strings.Contains(text, label) {
			return text, nil
		}
	}
	return "", ErrNotFound{Selector: selector, Err: fmt.Errorf("no element labelled %q", label)}
}

func launchAs(drv Driver) Launcher {
	return func(ctx context.Context) (Driver, error) {
		return drv, nil
	}
}
