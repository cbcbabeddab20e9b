package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"newsbrief/internal/extractor"
	"newsbrief/internal/model"
	"newsbrief/internal/store"
	"newsbrief/internal/summarizer"
	"newsbrief/internal/textutil"
)

// Kind classifies what ProcessOne did.
type Kind string

const (
	KindAlreadyExists       Kind = "already_exists"
	KindInsufficientContent Kind = "insufficient_content"
	KindCompleted           Kind = "completed"
	KindFailed              Kind = "failed"
	KindError               Kind = "error"
)

// Outcome is the result of processing one URL.
type Outcome struct {
	Kind      Kind      `json:"kind"`
	URL       string    `json:"url"`
	ArticleID uuid.UUID `json:"article_id,omitempty"`
	Message   string    `json:"message"`
}

func (o Outcome) String() string {
	return o.Message
}

// ProcessOne extracts, detects and summarizes one URL. It never returns an
// error or panics: every failure is folded into the Outcome, and a record
// that was already created ends up failed.
func (o *Orchestrator) ProcessOne(ctx context.Context, rawURL string, sum Summarizer) (out Outcome) {
	logger := o.logger.With(zap.String("url", rawURL))

	var created *model.Article
	defer func() {
		if r := recover(); r != nil {
			out = o.abort(ctx, logger, rawURL, created, fmt.Errorf("panic: %v", r))
		}
	}()

	if _, err := o.store.Get(ctx, rawURL); err == nil {
		logger.Info("Article already exists, skipping")
		return alreadyExists(rawURL)
	} else if !errors.Is(err, store.ErrNotFound) {
		return o.abort(ctx, logger, rawURL, nil, fmt.Errorf("lookup: %w", err))
	}

	logger.Info("Processing article")
	res := o.extractor.Extract(ctx, rawURL)
	if !o.sufficient(res) {
		logger.Warn("Insufficient content extracted", zap.Int("chars", textutil.Len(res.Content)))
		return Outcome{
			Kind:    KindInsufficientContent,
			URL:     rawURL,
			Message: fmt.Sprintf("Insufficient content from %s", rawURL),
		}
	}

	article := model.NewArticle(rawURL, o.now())
	article.Status = model.StatusProcessing
	o.applyExtraction(logger, &article, res)

	if err := o.store.Create(ctx, &article); err != nil {
		if errors.Is(err, store.ErrConflict) {
			logger.Info("Article created concurrently, skipping")
			return alreadyExists(rawURL)
		}
		return o.abort(ctx, logger, rawURL, nil, fmt.Errorf("create record: %w", err))
	}
	created = &article

	return o.summarize(ctx, logger, &article, res.Language, sum)
}

func alreadyExists(rawURL string) Outcome {
	return Outcome{
		Kind:    KindAlreadyExists,
		URL:     rawURL,
		Message: fmt.Sprintf("Article from %s already exists", rawURL),
	}
}

func (o *Orchestrator) sufficient(res extractor.Result) bool {
	return !res.Failed() && textutil.Len(res.Content) >= o.minChars
}

// applyExtraction copies extracted fields onto a record. An unparseable
// publish date is logged and left unset.
func (o *Orchestrator) applyExtraction(logger *zap.Logger, a *model.Article, res extractor.Result) {
	a.Title = res.Title
	if a.Title == "" || a.Title == "Untitled" {
		a.Title = "Article from " + a.SourceDomain
	}
	a.SetContent(res.Content)
	a.Authors = res.Authors
	a.TopImage = res.TopImage
	a.MetaDescription = res.MetaDescription

	if res.PublishDate == "" {
		return
	}
	t, err := extractor.ParseDate(res.PublishDate)
	if err != nil {
		logger.Warn("Could not parse publish date", zap.String("raw", res.PublishDate), zap.Error(err))
		return
	}
	t = t.UTC()
	a.PublishedAt = &t
}

// summarize runs language detection and the engine on a processing record
// and persists the terminal status.
func (o *Orchestrator) summarize(ctx context.Context, logger *zap.Logger, a *model.Article, hint string, sum Summarizer) Outcome {
	a.Language = o.detector.DetectWithHint(a.Content, hint)

	logger.Info("Generating summary", zap.String("language", a.Language))
	so := o.runEngine(ctx, sum, a)

	a.Summary = so.Summary
	next := model.StatusFailed
	if so.OK() {
		next = model.StatusCompleted
	}
	if !model.CanTransition(a.Status, next) {
		return o.abort(ctx, logger, a.SourceURL, a, fmt.Errorf("illegal transition %s -> %s", a.Status, next))
	}
	a.Status = next
	a.Touch(o.now())

	if err := o.store.Update(ctx, a); err != nil {
		return o.abort(ctx, logger, a.SourceURL, a, fmt.Errorf("save summary: %w", err))
	}

	if next == model.StatusFailed {
		logger.Error("Summary generation failed",
			zap.String("model", so.ModelUsed),
			zap.String("diagnostic", so.Summary))
		return Outcome{
			Kind:      KindFailed,
			URL:       a.SourceURL,
			ArticleID: a.ID,
			Message:   fmt.Sprintf("Content extracted but summary failed for %s: %s", a.SourceURL, so.Summary),
		}
	}

	logger.Info("Successfully processed article",
		zap.String("article_id", a.ID.String()),
		zap.String("model", so.ModelUsed),
		zap.Int("summary_words", so.OutputWords))
	return Outcome{
		Kind:      KindCompleted,
		URL:       a.SourceURL,
		ArticleID: a.ID,
		Message:   fmt.Sprintf("Successfully processed: %s - %s", a.ID, a.Title),
	}
}

func (o *Orchestrator) runEngine(ctx context.Context, sum Summarizer, a *model.Article) summarizer.Outcome {
	if o.translateNotes {
		return sum.TranslateAndSummarize(ctx, a.Content, a.Language)
	}
	return sum.Summarize(ctx, a.Content, 0, 0, a.Language)
}

// abort logs err and, when a record exists, forces it to failed. The write
// uses a detached context so an expired task deadline still records it.
func (o *Orchestrator) abort(ctx context.Context, logger *zap.Logger, rawURL string, a *model.Article, err error) Outcome {
	logger.Error("Error processing article", zap.Error(err))

	out := Outcome{
		Kind:    KindError,
		URL:     rawURL,
		Message: fmt.Sprintf("Error processing article from %s: %v", rawURL, err),
	}
	if a == nil {
		return out
	}
	out.ArticleID = a.ID

	a.Status = model.StatusFailed
	if a.Summary == "" {
		a.Summary = "Summary generation failed"
	}
	a.Touch(o.now())

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if uerr := o.store.Update(wctx, a); uerr != nil {
		logger.Error("Could not mark article failed", zap.Error(uerr))
	}
	return out
}
