// Package extractor turns an article URL into clean structured text using a
// primary readability pass and a manual DOM fallback.
package extractor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"newsbrief/internal/fetch"
	"newsbrief/internal/model"
	"newsbrief/internal/textutil"
)

const (
	// MinPrimaryChars is the content length below which the secondary
	// strategy is consulted.
	MinPrimaryChars = 100
	MaxTitleChars   = 500
	MaxContentWords = 500
)

var ErrNoContent = errors.New("no content extracted")

// Strategy derives a Result from a downloaded page.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, page *fetch.Page) (Result, error)
}

// Fetcher downloads a page.
type Fetcher interface {
	Get(ctx context.Context, pageURL string) (*fetch.Page, error)
}

// Extractor downloads a page once and runs the strategies over it.
type Extractor struct {
	fetcher   Fetcher
	primary   Strategy
	secondary Strategy
	logger    *zap.Logger
}

func New(fetcher Fetcher, primary, secondary Strategy, logger *zap.Logger) *Extractor {
	return &Extractor{
		fetcher:   fetcher,
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// NewDefault wires readability as primary and DOM matchers as secondary.
func NewDefault(client *fetch.Client, logger *zap.Logger) *Extractor {
	return New(client, NewReadabilityStrategy(), NewDOMStrategy(), logger)
}

// Extract never fails. Network or parse problems yield a Result whose
// Failed method reports true.
func (e *Extractor) Extract(ctx context.Context, pageURL string) Result {
	logger := e.logger.With(zap.String("url", pageURL))

	page, err := e.fetcher.Get(ctx, pageURL)
	if err != nil {
		logger.Warn("Fetch failed", zap.Error(err))
		return failure("", err)
	}

	best := e.run(ctx, logger, e.primary, page)
	if textutil.Len(best.Content) < MinPrimaryChars && e.secondary != nil {
		alt := e.run(ctx, logger, e.secondary, page)
		best = Merge(best, alt)
	}

	if best.Content == "" {
		if best.Err == nil {
			best.Err = ErrNoContent
		}
		logger.Warn("Extraction yielded no content", zap.Error(best.Err))
		return failure(best.Strategy, best.Err)
	}

	res := finalize(best)
	logger.Debug("Extracted",
		zap.String("strategy", res.Strategy),
		zap.Int("words", res.WordCount))
	return res
}

func (e *Extractor) run(ctx context.Context, logger *zap.Logger, s Strategy, page *fetch.Page) (res Result) {
	if s == nil {
		return Result{Err: ErrNoContent}
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Strategy panicked", zap.String("strategy", s.Name()), zap.Any("panic", r))
			res = Result{Strategy: s.Name(), Err: fmt.Errorf("%s strategy panicked: %v", s.Name(), r)}
		}
	}()

	res, err := s.Extract(ctx, page)
	if err != nil {
		logger.Info("Strategy failed", zap.String("strategy", s.Name()), zap.Error(err))
		return Result{Strategy: s.Name(), Err: err}
	}
	res.Strategy = s.Name()
	return res
}

// Merge keeps whichever result has the longer content and fills missing
// metadata from the other. Length, not quality, decides.
func Merge(primary, secondary Result) Result {
	winner, loser := primary, secondary
	if textutil.Len(secondary.Content) > textutil.Len(primary.Content) {
		winner, loser = secondary, primary
	}
	if winner.Content != "" {
		winner.Err = nil
	}
	winner.fillFrom(loser)
	return winner
}

// finalize applies the bounds every stored result obeys.
func finalize(r Result) Result {
	r.Title = textutil.Truncate(textutil.Clean(r.Title), MaxTitleChars)
	if r.Title == "" {
		r.Title = "Untitled"
	}
	r.Content = textutil.JoinCapped(textutil.Paragraphs(r.Content), MaxContentWords)
	r.WordCount = model.CountWords(r.Content)
	r.Authors = textutil.Clean(r.Authors)
	r.MetaDescription = textutil.Clean(r.MetaDescription)
	r.PublishDate = textutil.Clean(r.PublishDate)
	if r.Language == "" {
		r.Language = model.LanguageUnknown
	}
	return r
}
