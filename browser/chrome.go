package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

var (
	chromedpExecAllocator = chromedp.NewExecAllocator
	chromedpContext       = chromedp.NewContext
	chromedpRunner        = chromedp.Run
	chromedpCancel        = chromedp.Cancel
)

const (
	clickJS     = `function() { this.click(); }`
	textJS      = `function() { return this.innerText || this.textContent || ""; }`
	attributeJS = `function(name) {
	const v = this[name];
	if (typeof v === "string" && v !== "") { return v; }
	return this.getAttribute(name) || "";
}`
	// labelledTextJS takes the JSON-quoted selector and label.
	labelledTextJS = `(() => {
	for (const el of document.querySelectorAll(%s)) {
		const text = el.innerText || el.textContent || "";
		if (text.includes(%s)) { return text; }
	}
	return "";
})()`
)

// ChromeOptions configures a Chrome session.
type ChromeOptions struct {
	Headless  bool
	UserAgent string
	// NavigateTimeout bounds page loads.
	NavigateTimeout time.Duration
	// ActionTimeout bounds single DOM reads and clicks.
	ActionTimeout time.Duration
}

// Chrome drives a real browser tab over the DevTools protocol.
type Chrome struct {
	opts ChromeOptions
	ctx  context.Context

	closeOnce       sync.Once
	closeErr        error
	cancelBrowser   context.CancelFunc
	cancelAllocator context.CancelFunc
}

// NewChrome starts a browser and opens one tab. The browser lives until
// Close or until parent is done.
func NewChrome(parent context.Context, opts ChromeOptions) (*Chrome, error) {
	allocCtx, cancelAllocator := chromedpExecAllocator(parent, buildExecAllocatorOptions(opts)...)
	browserCtx, cancelBrowser := chromedpContext(allocCtx)

	// An empty run starts the browser.
	if err := chromedpRunner(browserCtx); err != nil {
		cancelBrowser()
		cancelAllocator()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &Chrome{
		opts:            opts,
		ctx:             browserCtx,
		cancelBrowser:   cancelBrowser,
		cancelAllocator: cancelAllocator,
	}, nil
}

// ChromeLauncher starts a fresh browser per scrape.
func ChromeLauncher(opts ChromeOptions) scraper.Launcher {
	return func(ctx context.Context) (scraper.Driver, error) {
		return NewChrome(ctx, opts)
	}
}

func buildExecAllocatorOptions(opts ChromeOptions) []chromedp.ExecAllocatorOption {
	options := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.NoSandbox,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	}
	if opts.UserAgent != "" {
		options = append(options, chromedp.UserAgent(opts.UserAgent))
	}
	return options
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, c.opts.NavigateTimeout, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return scraper.ErrNavigation{URL: url, Err: err}
	}
	return nil
}

func (c *Chrome) WaitReady(ctx context.Context, timeout time.Duration) error {
	var complete bool
	err := c.run(ctx, timeout, chromedp.Poll(
		`document.readyState === "complete"`,
		&complete,
		chromedp.WithPollingTimeout(timeout),
	))
	return classify(ctx, "wait for document", err)
}

func (c *Chrome) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	err := c.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	return classify(ctx, fmt.Sprintf("wait for %q", selector), err)
}

func (c *Chrome) FindAll(ctx context.Context, selector string) ([]scraper.Handle, error) {
	nodes, err := c.query(ctx, nil, selector)
	if err != nil {
		return nil, err
	}
	handles := make([]scraper.Handle, 0, len(nodes))
	for _, n := range nodes {
		handles = append(handles, n)
	}
	return handles, nil
}

// Click dispatches a DOM click on the node. Overlays and scroll position do
// not matter, unlike an input-level click.
func (c *Chrome) Click(ctx context.Context, h scraper.Handle) error {
	node, err := asNode(h)
	if err != nil {
		return err
	}
	err = c.run(ctx, c.opts.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := callOnNode(ctx, node, clickJS)
		return err
	}))
	return classify(ctx, "click", err)
}

func (c *Chrome) Text(ctx context.Context, scope scraper.Handle, selector string) (string, error) {
	node, err := c.target(ctx, scope, selector)
	if err != nil {
		return "", err
	}
	return c.read(ctx, node, textJS)
}

func (c *Chrome) Attribute(ctx context.Context, scope scraper.Handle, selector, name string) (string, error) {
	node, err := c.target(ctx, scope, selector)
	if err != nil {
		return "", err
	}
	value, err := c.read(ctx, node, attributeJS, name)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", scraper.ErrNotFound{Selector: selector + "@" + name, Err: errors.New("attribute missing")}
	}
	return value, nil
}

// LabelledText scans the document for selector in one script evaluation.
func (c *Chrome) LabelledText(ctx context.Context, selector, label string) (string, error) {
	expr, err := labelledTextExpr(selector, label)
	if err != nil {
		return "", err
	}
	var text string
	if err := c.run(ctx, c.opts.ActionTimeout, chromedp.Evaluate(expr, &text)); err != nil {
		return "", classify(ctx, "read labelled text", err)
	}
	if text == "" {
		return "", scraper.ErrNotFound{Selector: selector, Err: fmt.Errorf("no element labelled %q", label)}
	}
	return text, nil
}

func labelledTextExpr(selector, label string) (string, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return "", fmt.Errorf("encode selector: %w", err)
	}
	lbl, err := json.Marshal(label)
	if err != nil {
		return "", fmt.Errorf("encode label: %w", err)
	}
	return fmt.Sprintf(labelledTextJS, sel, lbl), nil
}

func (c *Chrome) Back(ctx context.Context) error {
	if err := c.run(ctx, c.opts.NavigateTimeout, chromedp.NavigateBack()); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return scraper.ErrNavigation{URL: "history", Err: err}
	}
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		if err := chromedpCancel(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.closeErr = fmt.Errorf("close chrome: %w", err)
		}
		c.cancelBrowser()
		c.cancelAllocator()
	})
	return c.closeErr
}

// run executes actions on the tab. The tab context outlives ctx, so a
// canceled ctx only aborts this call.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(c.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(c.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedpRunner(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Chrome) query(ctx context.Context, scope *cdp.Node, selector string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if scope != nil {
		opts = append(opts, chromedp.FromNode(scope))
	}
	err := c.run(ctx, c.opts.ActionTimeout, chromedp.Nodes(selector, &nodes, opts...))
	if err != nil {
		return nil, classify(ctx, fmt.Sprintf("query %q", selector), err)
	}
	return nodes, nil
}

func (c *Chrome) target(ctx context.Context, scope scraper.Handle, selector string) (*cdp.Node, error) {
	var root *cdp.Node
	if scope != nil {
		node, err := asNode(scope)
		if err != nil {
			return nil, err
		}
		root = node
	}
	if selector == "" {
		if root == nil {
			return nil, scraper.ErrNotFound{Err: errors.New("no scope or selector")}
		}
		return root, nil
	}
	nodes, err := c.query(ctx, root, selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, scraper.ErrNotFound{Selector: selector, Err: errors.New("no match")}
	}
	return nodes[0], nil
}

func (c *Chrome) read(ctx context.Context, node *cdp.Node, fn string, args ...string) (string, error) {
	var out string
	err := c.run(ctx, c.opts.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		value, err := callOnNode(ctx, node, fn, args...)
		out = value
		return err
	}))
	if err != nil {
		return "", classify(ctx, "read node", err)
	}
	return out, nil
}

// callOnNode calls fn with the node bound to this and returns its string
// result.
func callOnNode(ctx context.Context, node *cdp.Node, fn string, args ...string) (string, error) {
	obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := runtime.ReleaseObject(obj.ObjectID).Do(ctx); err != nil {
			slog.Debug("release remote object", slog.Any("error", err))
		}
	}()

	call := runtime.CallFunctionOn(fn).
		WithObjectID(obj.ObjectID).
		WithReturnByValue(true)
	if len(args) > 0 {
		callArgs := make([]*runtime.CallArgument, 0, len(args))
		for _, arg := range args {
			raw, err := json.Marshal(arg)
			if err != nil {
				return "", fmt.Errorf("encode argument: %w", err)
			}
			callArgs = append(callArgs, &runtime.CallArgument{Value: raw})
		}
		call = call.WithArguments(callArgs)
	}

	res, exception, err := call.Do(ctx)
	if err != nil {
		return "", err
	}
	if exception != nil {
		return "", exception
	}
	if res == nil || len(res.Value) == 0 {
		return "", nil
	}
	var out string
	if err := json.Unmarshal([]byte(res.Value), &out); err != nil {
		return "", fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

func asNode(h scraper.Handle) (*cdp.Node, error) {
	node, ok := h.(*cdp.Node)
	if !ok || node == nil {
		return nil, fmt.Errorf("unexpected handle type %T", h)
	}
	return node, nil
}

// staleNodeMessages are the protocol errors for nodes detached by a re-render.
var staleNodeMessages = []string{
	"No node with given id found",
	"Could not find node with given id",
	"Node with given id does not belong to the document",
	"Cannot find context with specified id",
}

func isStaleNode(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	var cdpErr *cdproto.Error
	if errors.As(err, &cdpErr) {
		msg = cdpErr.Message
	}
	for _, m := range staleNodeMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// classify maps a chromedp failure onto the scraper's error kinds.
func classify(ctx context.Context, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, chromedp.ErrPollingTimeout):
		return scraper.ErrTimeout{Err: fmt.Errorf("%s: %w", op, err)}
	case isStaleNode(err):
		return scraper.ErrStaleHandle{Err: fmt.Errorf("%s: %w", op, err)}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
