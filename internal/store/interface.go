package store

import (
	"context"
	"errors"
	"time"

	"newsbrief/internal/model"
)

var (
	ErrNotFound = errors.New("article not found")
	// ErrConflict means a record for the source URL already exists.
	ErrConflict = errors.New("article already exists")
)

// Filter selects records. Zero fields match everything.
type Filter struct {
	Status        model.ArticleStatus
	CreatedBefore time.Time
	Limit         int
	// Newest orders by creation time descending instead of ascending.
	Newest bool
	// SkipContent leaves Content empty; WordCount is still filled.
	SkipContent bool
}

// Store persists one record per source URL. Create is the only
// concurrency guard: of two racing creators exactly one succeeds.
type Store interface {
	Create(ctx context.Context, article *model.Article) error
	Get(ctx context.Context, sourceURL string) (*model.Article, error)
	Filter(ctx context.Context, f Filter) ([]model.Article, error)
	Update(ctx context.Context, article *model.Article) error
	Delete(ctx context.Context, f Filter) (int, error)
	Close() error
}

// prepare enforces the invariants every write keeps.
func prepare(a *model.Article) error {
	if a.SourceURL == "" {
		return errors.New("article has no source url")
	}
	if !a.Status.Valid() {
		return errors.New("article has invalid status " + string(a.Status))
	}
	a.WordCount = model.CountWords(a.Content)
	return nil
}
