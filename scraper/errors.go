package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-catalog/pipeline"
)

// ErrSetup indicates the browser session or search page could not be
// established. It is the only error Run returns once a search has started.
type ErrSetup struct {
	Err error
}

func (e ErrSetup) Error() string {
	return fmt.Errorf("setup: %w", e.Err).Error()
}

func (e ErrSetup) Unwrap() error {
	return e.Err
}

// ErrNavigation indicates a page could not be loaded.
type ErrNavigation struct {
	URL string
	Err error
}

func (e ErrNavigation) Error() string {
	return fmt.Errorf("navigation to %s: %w", e.URL, e.Err).Error()
}

func (e ErrNavigation) Unwrap() error {
	return e.Err
}

// ErrStaleHandle indicates a handle no longer refers to a node in the
// current render.
type ErrStaleHandle struct {
	Err error
}

func (e ErrStaleHandle) Error() string {
	return fmt.Errorf("stale_handle: %w", e.Err).Error()
}

func (e ErrStaleHandle) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a selector matched nothing.
type ErrNotFound struct {
	Selector string
	Err      error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found %q: %w", e.Selector, e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a bounded wait elapsed.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// IsStale reports whether err is, or wraps, an ErrStaleHandle.
func IsStale(err error) bool {
	var stale ErrStaleHandle
	return errors.As(err, &stale)
}

// IsNotFound reports whether err is, or wraps, an ErrNotFound.
func IsNotFound(err error) bool {
	var notFound ErrNotFound
	return errors.As(err, &notFound)
}

// IsTimeout reports whether err is, or wraps, an ErrTimeout.
func IsTimeout(err error) bool {
	var timeout ErrTimeout
	return errors.As(err, &timeout)
}

// IsNavigation reports whether err is, or wraps, an ErrNavigation.
func IsNavigation(err error) bool {
	var nav ErrNavigation
	return errors.As(err, &nav)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var setup ErrSetup
	if errors.As(err, &setup) {
		return "setup"
	}
	if IsStale(err) {
		return "stale"
	}
	if IsNotFound(err) {
		return "not_found"
	}
	if IsTimeout(err) {
		return "timeout"
	}
	if IsNavigation(err) {
		return "navigation"
	}
	if errors.Is(err, pipeline.ErrInvalidRecord) {
		return "invalid_record"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "other"
}
