// Package models defines data structures for the scraper.
package models

import "time"

const (
	// TitleUnavailable replaces a title the detail view did not render.
	TitleUnavailable = "title unavailable"
	// NoDescription replaces a missing description.
	NoDescription = "no description"
)

// BookRecord is one catalog work as returned to callers.
type BookRecord struct {
	Title        string `csv:"title" json:"title"`
	Author       string `csv:"author" json:"author"`
	Publisher    string `csv:"publisher" json:"publisher"`
	CallNumber   string `csv:"call_number" json:"call_number"`
	Availability string `csv:"availability" json:"availability"`
	CoverURL     string `csv:"cover_url" json:"cover_url"`
	Description  string `csv:"description" json:"description"`
	Volumes      int    `csv:"volumes" json:"volumes"`
}

// DedupKey identifies a work independent of which physical volume was scanned.
type DedupKey struct {
	Title     string
	Author    string
	Publisher string
}

// Key returns the identity of the record.
func (b BookRecord) Key() DedupKey {
	return DedupKey{Title: b.Title, Author: b.Author, Publisher: b.Publisher}
}

// ScrapeResult holds the overall result of one scrape invocation.
type ScrapeResult struct {
	Keyword       string
	SearchURL     string
	Records       []BookRecord
	StartTime     time.Time
	EndTime       time.Time
	HandlesSeen   int
	Attempts      int
	Skipped       int
	SkipsByReason map[string]int
}
