package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

var (
	// ErrInvalidRecord is returned by Add for records missing identity fields.
	ErrInvalidRecord = errors.New("pipeline: invalid record")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []models.BookRecord) error
	Close() error
	Validate() error
}

// Aggregator folds extracted records into one entry per work and counts how
// many physical volumes mapped to each work. It is not safe for concurrent
// use; a scrape drives it from a single goroutine.
type Aggregator struct {
	seen    map[models.DedupKey]int
	records map[models.DedupKey]*models.BookRecord
	order   []models.DedupKey
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		seen:    make(map[models.DedupKey]int),
		records: make(map[models.DedupKey]*models.BookRecord),
	}
}

// Add records one successful extraction. The first observation of a key keeps
// its descriptive fields; later ones only raise the volume count. It reports
// whether the key was new.
func (a *Aggregator) Add(record models.BookRecord) (bool, error) {
	record.Volumes = 1
	if err := parser.ValidateRecord(&record); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	key := record.Key()
	a.seen[key]++

	if existing, ok := a.records[key]; ok {
		existing.Volumes = a.seen[key]
		return false, nil
	}

	record.Volumes = a.seen[key]
	a.records[key] = &record
	a.order = append(a.order, key)
	return true, nil
}

// Unique returns the number of distinct works captured.
func (a *Aggregator) Unique() int {
	return len(a.order)
}

// Seen returns how many times key was observed.
func (a *Aggregator) Seen(key models.DedupKey) int {
	return a.seen[key]
}

// Records returns a copy of the captured works in first-seen order.
func (a *Aggregator) Records() []models.BookRecord {
	out := make([]models.BookRecord, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, *a.records[key])
	}
	return out
}

// Sorted returns the captured works ordered by series.
func (a *Aggregator) Sorted() []models.BookRecord {
	out := a.Records()
	parser.SortRecords(out)
	return out
}
