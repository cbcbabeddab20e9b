package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"newsbrief/internal/model"
	"newsbrief/internal/store"
	"newsbrief/internal/textutil"
)

// RetryReport sums up one RetryFailed run.
type RetryReport struct {
	Selected    int `json:"selected"`
	Completed   int `json:"completed"`
	StillFailed int `json:"still_failed"`
}

func (r RetryReport) String() string {
	return fmt.Sprintf("Reprocessed %d failed articles", r.Completed)
}

// RetryFailed re-extracts a bounded batch of failed records, oldest first.
// Records whose content now qualifies go through summarization again; the
// rest stay failed.
func (o *Orchestrator) RetryFailed(ctx context.Context, sum Summarizer) (RetryReport, error) {
	var report RetryReport

	failed, err := o.store.Filter(ctx, store.Filter{
		Status: model.StatusFailed,
		Limit:  o.retryBatch,
	})
	if err != nil {
		return report, fmt.Errorf("select failed articles: %w", err)
	}
	report.Selected = len(failed)

	for i := range failed {
		if ctx.Err() != nil {
			break
		}
		if o.retryOne(ctx, &failed[i], sum) == KindCompleted {
			report.Completed++
		} else {
			report.StillFailed++
		}
	}

	o.logger.Info("Retry sweep finished",
		zap.Int("selected", report.Selected),
		zap.Int("completed", report.Completed))
	return report, nil
}

func (o *Orchestrator) retryOne(ctx context.Context, a *model.Article, sum Summarizer) (kind Kind) {
	logger := o.logger.With(zap.String("url", a.SourceURL), zap.String("article_id", a.ID.String()))

	defer func() {
		if r := recover(); r != nil {
			kind = o.abort(ctx, logger, a.SourceURL, a, fmt.Errorf("panic: %v", r)).Kind
		}
	}()

	logger.Info("Reprocessing failed article")
	res := o.extractor.Extract(ctx, a.SourceURL)
	if !o.sufficient(res) {
		logger.Warn("Still insufficient content", zap.Int("chars", textutil.Len(res.Content)))
		return KindInsufficientContent
	}
	if !model.CanTransition(a.Status, model.StatusProcessing) {
		return KindError
	}

	a.Status = model.StatusProcessing
	a.Summary = ""
	o.applyExtraction(logger, a, res)
	a.Touch(o.now())
	if err := o.store.Update(ctx, a); err != nil {
		return o.abort(ctx, logger, a.SourceURL, a, fmt.Errorf("save content: %w", err)).Kind
	}

	return o.summarize(ctx, logger, a, res.Language, sum).Kind
}

// Cleanup deletes failed records older than the retention window.
func (o *Orchestrator) Cleanup(ctx context.Context) (int, error) {
	cutoff := o.now().Add(-o.retention)
	n, err := o.store.Delete(ctx, store.Filter{
		Status:        model.StatusFailed,
		CreatedBefore: cutoff,
	})
	if err != nil {
		return n, fmt.Errorf("cleanup failed articles: %w", err)
	}
	o.logger.Info("Cleaned up old failed articles", zap.Int("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}
