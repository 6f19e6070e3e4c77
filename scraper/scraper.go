package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/query"
)

// Scraper walks a catalog result list one detail view at a time.
type Scraper struct {
	cfg     *config.Config
	launch  Launcher
	pacer   *rate.Limiter
	Metrics *Metrics
}

// Outcome is the result of one attempt: a record, or the reason it was
// skipped.
type Outcome struct {
	Record models.BookRecord
	Err    error
	// Opened is set once the detail view was requested, so the caller must
	// return to the result list.
	Opened bool
}

// Skipped reports whether the attempt produced no record.
func (o Outcome) Skipped() bool {
	return o.Err != nil
}

// Reason labels why the attempt was skipped.
func (o Outcome) Reason() string {
	return errorTypeLabel(o.Err)
}

// NewScraper builds a scraper that opens sessions with launch.
func NewScraper(cfg *config.Config, launch Launcher) (*Scraper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if launch == nil {
		return nil, fmt.Errorf("launcher cannot be nil")
	}
	if err := cfg.Selectors.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selectors: %w", err)
	}

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	return &Scraper{
		cfg:     cfg,
		launch:  launch,
		pacer:   rate.NewLimiter(limit, 1),
		Metrics: NewMetrics(),
	}, nil
}

// Scrape returns up to maxResults distinct works for keyword, ordered by
// series. Per-result failures are logged and skipped; only ErrSetup and
// invalid arguments are returned as errors.
func (s *Scraper) Scrape(ctx context.Context, keyword string, maxResults int) ([]models.BookRecord, error) {
	result, err := s.Run(ctx, keyword, maxResults)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// Run is Scrape with run statistics.
func (s *Scraper) Run(ctx context.Context, keyword string, maxResults int) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxResults < 0 {
		return nil, fmt.Errorf("max results cannot be negative")
	}

	searchURL, err := query.BuildSearchURL(s.cfg.SearchURL, keyword, s.cfg.Institution)
	if err != nil {
		return nil, fmt.Errorf("build search url: %w", err)
	}

	result := &models.ScrapeResult{
		Keyword:       keyword,
		SearchURL:     searchURL,
		Records:       []models.BookRecord{},
		StartTime:     time.Now(),
		SkipsByReason: make(map[string]int),
	}
	if maxResults == 0 {
		result.EndTime = time.Now()
		return result, nil
	}

	drv, err := s.launch(ctx)
	if err != nil {
		return nil, ErrSetup{Err: err}
	}
	defer func() {
		if err := drv.Close(); err != nil {
			slog.Warn("closing browser session", slog.Any("error", err))
		}
	}()

	if err := s.openList(ctx, drv, searchURL); err != nil {
		if IsNavigation(err) {
			return nil, ErrSetup{Err: err}
		}
		slog.Info("no results",
			slog.String("keyword", keyword),
			slog.String("reason", errorTypeLabel(err)),
		)
		result.EndTime = time.Now()
		return result, nil
	}

	agg := pipeline.NewAggregator()
	s.walk(ctx, drv, searchURL, maxResults, agg, result)

	result.Records = agg.Sorted()
	result.EndTime = time.Now()

	slog.Info("scrape finished",
		slog.String("keyword", keyword),
		slog.Int("records", len(result.Records)),
		slog.Int("attempts", result.Attempts),
		slog.Int("skipped", result.Skipped),
		slog.Duration("elapsed", result.EndTime.Sub(result.StartTime)),
	)
	return result, nil
}

// walk drives the list/detail state machine. index advances on every
// iteration, so it ends after at most one attempt per handle.
func (s *Scraper) walk(ctx context.Context, drv Driver, searchURL string, maxResults int, agg *pipeline.Aggregator, result *models.ScrapeResult) {
	// known is the handle count of the last successful listing. waitList
	// has already confirmed at least one handle.
	known := 1
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			slog.Warn("scrape interrupted", slog.Int("index", index), slog.Any("error", err))
			return
		}

		// The list is re-rendered after every return from a detail view.
		handles, err := drv.FindAll(ctx, s.cfg.Selectors.ResultHandle)
		if err != nil {
			if errors.Is(err, context.Canceled) || index >= known || agg.Unique() >= maxResults {
				slog.Warn("listing results failed, stopping", slog.Int("index", index), slog.Any("error", err))
				return
			}
			result.Attempts++
			s.skip(result, index, errorTypeLabel(err), fmt.Errorf("list results: %w", err))
			continue
		}
		known = len(handles)
		s.Metrics.SetHandles(known)
		if known > result.HandlesSeen {
			result.HandlesSeen = known
		}

		if index >= known || agg.Unique() >= maxResults {
			slog.Debug("result walk done",
				slog.Int("index", index),
				slog.Int("handles", known),
				slog.Int("unique", agg.Unique()),
			)
			return
		}

		if err := s.pacer.Wait(ctx); err != nil {
			slog.Warn("scrape interrupted", slog.Int("index", index), slog.Any("error", err))
			return
		}

		start := time.Now()
		outcome := s.attempt(ctx, drv, handles[index])
		s.Metrics.ObserveDuration(time.Since(start))
		result.Attempts++

		if !outcome.Skipped() {
			isNew, err := agg.Add(outcome.Record)
			if err != nil {
				outcome.Err = err
			} else {
				s.Metrics.IncAttempt("success")
				s.Metrics.IncVolume(isNew)
				slog.Debug("captured result",
					slog.Int("index", index),
					slog.String("title", outcome.Record.Title),
					slog.Bool("new", isNew),
					slog.Int("volumes", agg.Seen(outcome.Record.Key())),
				)
			}
		}
		if outcome.Skipped() {
			s.skip(result, index, outcome.Reason(), outcome.Err)
		}

		if outcome.Opened && !s.returnToList(ctx, drv, searchURL) {
			return
		}
	}
}

func (s *Scraper) skip(result *models.ScrapeResult, index int, reason string, err error) {
	result.Skipped++
	result.SkipsByReason[reason]++
	s.Metrics.IncAttempt("skipped")
	s.Metrics.IncSkip(reason)
	slog.Warn("skipping result",
		slog.Int("index", index),
		slog.String("reason", reason),
		slog.Any("error", err),
	)
}

// attempt opens one result and extracts its record. Nothing is committed
// here; the caller folds successful outcomes into the aggregator.
func (s *Scraper) attempt(ctx context.Context, drv Driver, h Handle) Outcome {
	if err := drv.Click(ctx, h); err != nil {
		return Outcome{Err: fmt.Errorf("open result: %w", err)}
	}
	if err := drv.WaitPresent(ctx, s.cfg.Selectors.DetailReady, s.cfg.DetailTimeout); err != nil {
		return Outcome{Opened: true, Err: fmt.Errorf("wait for detail view: %w", err)}
	}

	record, err := s.extract(ctx, drv)
	if err != nil {
		return Outcome{Opened: true, Err: err}
	}
	return Outcome{Opened: true, Record: record}
}

func (s *Scraper) extract(ctx context.Context, drv Driver) (models.BookRecord, error) {
	sel := s.cfg.Selectors

	cover, err := drv.Attribute(ctx, nil, sel.DetailReady, sel.CoverAttribute)
	if err != nil {
		return models.BookRecord{}, fmt.Errorf("cover: %w", err)
	}
	author, err := s.field(ctx, drv, sel.Author)
	if err != nil {
		return models.BookRecord{}, fmt.Errorf("author: %w", err)
	}
	publisher, err := s.field(ctx, drv, sel.Publisher)
	if err != nil {
		return models.BookRecord{}, fmt.Errorf("publisher: %w", err)
	}
	callNumber, err := s.field(ctx, drv, sel.CallNumber)
	if err != nil {
		return models.BookRecord{}, fmt.Errorf("call number: %w", err)
	}
	availability, err := s.field(ctx, drv, sel.Availability)
	if err != nil {
		return models.BookRecord{}, fmt.Errorf("availability: %w", err)
	}
	title, err := s.optionalField(ctx, drv, sel.Title)
	if err != nil {
		return models.BookRecord{}, fmt.Errorf("title: %w", err)
	}
	description, err := s.optionalField(ctx, drv, sel.Description)
	if err != nil {
		return models.BookRecord{}, fmt.Errorf("description: %w", err)
	}

	return models.BookRecord{
		Title:        parser.OrDefault(title, models.TitleUnavailable),
		Author:       author,
		Publisher:    publisher,
		CallNumber:   callNumber,
		Availability: availability,
		CoverURL:     cover,
		Description:  parser.OrDefault(description, models.NoDescription),
	}, nil
}

// field reads f from the detail view. Labelled fields take the first element
// matching the selector that carries the label.
func (s *Scraper) field(ctx context.Context, drv Driver, f config.Field) (string, error) {
	if f.Label == "" {
		text, err := drv.Text(ctx, nil, f.Selector)
		if err != nil {
			return "", err
		}
		return parser.NormalizeText(text), nil
	}
	if lr, ok := drv.(LabelReader); ok {
		text, err := lr.LabelledText(ctx, f.Selector, f.Label)
		if err != nil {
			return "", err
		}
		return parser.StripLabel(text, f.Label), nil
	}

	// One read per candidate element.
	handles, err := drv.FindAll(ctx, f.Selector)
	if err != nil {
		return "", err
	}
	for _, h := range handles {
		text, err := drv.Text(ctx, h, "")
		if err != nil {
			return "", err
		}
		if parser.HasLabel(text, f.Label) {
			return parser.StripLabel(text, f.Label), nil
		}
	}
	return "", ErrNotFound{Selector: f.Selector, Err: fmt.Errorf("no element labelled %q", f.Label)}
}

// optionalField is field with a missing element reported as "".
func (s *Scraper) optionalField(ctx context.Context, drv Driver, f config.Field) (string, error) {
	text, err := s.field(ctx, drv, f)
	if IsNotFound(err) {
		return "", nil
	}
	return text, err
}

// openList loads the search page and waits for the first result handle.
func (s *Scraper) openList(ctx context.Context, drv Driver, searchURL string) error {
	if err := drv.Navigate(ctx, searchURL); err != nil {
		return err
	}
	return s.waitList(ctx, drv)
}

func (s *Scraper) waitList(ctx context.Context, drv Driver) error {
	if err := drv.WaitReady(ctx, s.cfg.PageTimeout); err != nil {
		return err
	}
	return drv.WaitPresent(ctx, s.cfg.Selectors.ResultHandle, s.cfg.PageTimeout)
}

// returnToList goes back from a detail view. When history navigation fails
// the search page is reloaded; false means the list could not be restored.
func (s *Scraper) returnToList(ctx context.Context, drv Driver, searchURL string) bool {
	err := drv.Back(ctx)
	if err == nil {
		err = s.waitList(ctx, drv)
	}
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	slog.Warn("return to result list failed, reloading search", slog.Any("error", err))
	if err := s.openList(ctx, drv, searchURL); err != nil {
		slog.Error("reloading search failed, stopping early", slog.Any("error", err))
		return false
	}
	return true
}
