package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

// stubChromedp replaces the chromedp entry points for the duration of a test.
func stubChromedp(t *testing.T, run func(ctx context.Context, actions ...chromedp.Action) error) {
	t.Helper()
	origRunner, origCancel := chromedpRunner, chromedpCancel
	chromedpRunner = run
	chromedpCancel = func(ctx context.Context) error { return nil }
	t.Cleanup(func() {
		chromedpRunner = origRunner
		chromedpCancel = origCancel
	})
}

func TestBuildExecAllocatorOptions(t *testing.T) {
	base := buildExecAllocatorOptions(ChromeOptions{Headless: true})
	withAgent := buildExecAllocatorOptions(ChromeOptions{Headless: true, UserAgent: "catalog-test"})

	assert.NotEmpty(t, base)
	assert.Len(t, withAgent, len(base)+1)
}

func TestNewChromeStartFailure(t *testing.T) {
	stubChromedp(t, func(ctx context.Context, actions ...chromedp.Action) error {
		return errors.New("exec: chrome not found")
	})

	_, err := NewChrome(context.Background(), ChromeOptions{Headless: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start chrome")
}

func TestChromeNavigationErrors(t *testing.T) {
	var failWith error
	stubChromedp(t, func(ctx context.Context, actions ...chromedp.Action) error {
		if len(actions) == 0 {
			return nil
		}
		return failWith
	})

	c, err := NewChrome(context.Background(), ChromeOptions{NavigateTimeout: time.Second, ActionTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	failWith = errors.New("net::ERR_NAME_NOT_RESOLVED")
	err = c.Navigate(context.Background(), "http://catalog.example.test/search")
	assert.True(t, scraper.IsNavigation(err))

	err = c.Back(context.Background())
	assert.True(t, scraper.IsNavigation(err))

	failWith = context.DeadlineExceeded
	err = c.WaitPresent(context.Background(), "a.hover-btn.plus", time.Second)
	assert.True(t, scraper.IsTimeout(err))

	failWith = chromedp.ErrPollingTimeout
	err = c.WaitReady(context.Background(), time.Second)
	assert.True(t, scraper.IsTimeout(err))

	failWith = &cdproto.Error{Code: -32000, Message: "No node with given id found"}
	err = c.Click(context.Background(), &cdp.Node{NodeID: 7})
	assert.True(t, scraper.IsStale(err))

	failWith = nil
	handles, err := c.FindAll(context.Background(), "a.hover-btn.plus")
	require.NoError(t, err)
	assert.Empty(t, handles)

	_, err = c.Text(context.Background(), nil, "h3.prod-name")
	assert.True(t, scraper.IsNotFound(err))
}

func TestChromeCanceledContextIsNotClassified(t *testing.T) {
	stubChromedp(t, func(ctx context.Context, actions ...chromedp.Action) error {
		if len(actions) == 0 {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	})

	c, err := NewChrome(context.Background(), ChromeOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.WaitPresent(ctx, "a.hover-btn.plus", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, scraper.IsTimeout(err))

	err = c.Navigate(ctx, "http://catalog.example.test/search")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, scraper.IsNavigation(err))
}

func TestChromeCloseIsIdempotent(t *testing.T) {
	stubChromedp(t, func(ctx context.Context, actions ...chromedp.Action) error { return nil })
	closes := 0
	chromedpCancel = func(ctx context.Context) error {
		closes++
		return nil
	}

	c, err := NewChrome(context.Background(), ChromeOptions{})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, closes)
}

func TestChromeRejectsForeignHandles(t *testing.T) {
	stubChromedp(t, func(ctx context.Context, actions ...chromedp.Action) error { return nil })

	c, err := NewChrome(context.Background(), ChromeOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	err = c.Click(context.Background(), staticHandle{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected handle type")

	_, err = c.Text(context.Background(), nil, "")
	assert.True(t, scraper.IsNotFound(err))
}

func TestChromeLabelledText(t *testing.T) {
	var failWith error
	evaluations := 0
	stubChromedp(t, func(ctx context.Context, actions ...chromedp.Action) error {
		if len(actions) == 0 {
			return nil
		}
		evaluations++
		return failWith
	})

	c, err := NewChrome(context.Background(), ChromeOptions{ActionTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.LabelledText(context.Background(), "span", "저자:")
	assert.True(t, scraper.IsNotFound(err), "an empty script result means no labelled element")
	assert.Equal(t, 1, evaluations)

	failWith = context.DeadlineExceeded
	_, err = c.LabelledText(context.Background(), "span", "저자:")
	assert.True(t, scraper.IsTimeout(err))

	failWith = errors.New("Execution context was destroyed")
	_, err = c.LabelledText(context.Background(), "span", "저자:")
	require.Error(t, err)
	assert.False(t, scraper.IsNotFound(err))
	assert.Equal(t, 3, evaluations)
}

func TestLabelledTextExprQuotesArguments(t *testing.T) {
	expr, err := labelledTextExpr(`span[title="a"]`, "저자:")
	require.NoError(t, err)

	assert.Contains(t, expr, `document.querySelectorAll("span[title=\"a\"]")`)
	assert.Contains(t, expr, `text.includes("저자:")`)
}

func TestClassify(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name  string
		ctx   context.Context
		err   error
		check func(error) bool
	}{
		{"nil", context.Background(), nil, func(err error) bool { return err == nil }},
		{"deadline", context.Background(), context.DeadlineExceeded, scraper.IsTimeout},
		{"polling", context.Background(), chromedp.ErrPollingTimeout, scraper.IsTimeout},
		{"stale protocol error", context.Background(), &cdproto.Error{Message: "Could not find node with given id"}, scraper.IsStale},
		{"stale message", context.Background(), errors.New("Node with given id does not belong to the document"), scraper.IsStale},
		{"caller canceled", canceled, context.DeadlineExceeded, func(err error) bool { return !scraper.IsTimeout(err) }},
		{"other", context.Background(), errors.New("boom"), func(err error) bool {
			return err != nil && !scraper.IsTimeout(err) && !scraper.IsStale(err)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.ctx, "op", tt.err)
			if !tt.check(got) {
				t.Fatalf("classify(%v) = %v", tt.err, got)
			}
		})
	}
}
