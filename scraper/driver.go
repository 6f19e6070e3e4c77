package scraper

import (
	"context"
	"time"
)

// Handle is an opaque reference to an element of the current page render.
// Handles from an earlier render may fail with ErrStaleHandle.
type Handle any

// Driver is the browser session the scraper walks. Implementations report
// failures as ErrNavigation, ErrTimeout, ErrStaleHandle or ErrNotFound.
type Driver interface {
	// Navigate loads url.
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until the page reports it has finished loading.
	WaitReady(ctx context.Context, timeout time.Duration) error
	// WaitPresent blocks until selector matches at least one element.
	WaitPresent(ctx context.Context, selector string, timeout time.Duration) error
	// FindAll returns the elements currently matching selector; it may be
	// empty and may be shorter than an earlier call.
	FindAll(ctx context.Context, selector string) ([]Handle, error)
	// Click activates h.
	Click(ctx context.Context, h Handle) error
	// Text returns the text of the first element matching selector under
	// scope. A nil scope searches the document; an empty selector reads
	// scope itself.
	Text(ctx context.Context, scope Handle, selector string) (string, error)
	// Attribute is like Text but returns the named attribute.
	Attribute(ctx context.Context, scope Handle, selector, name string) (string, error)
	// Back returns to the previous page in history.
	Back(ctx context.Context) error
	// Close releases the session.
	Close() error
}

// LabelReader is implemented by drivers that can find a labelled element in
// a single round trip. LabelledText returns the raw text of the first element
// matching selector whose text contains label, or ErrNotFound.
type LabelReader interface {
	LabelledText(ctx context.Context, selector, label string) (string, error)
}

// Launcher opens a new Driver session.
type Launcher func(ctx context.Context) (Driver, error)
