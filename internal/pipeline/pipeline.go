package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"newsbrief/internal/config"
	"newsbrief/internal/discovery"
	"newsbrief/internal/extractor"
	"newsbrief/internal/queue"
	"newsbrief/internal/store"
	"newsbrief/internal/summarizer"
)

// Extractor turns a URL into a Result. It never fails.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) extractor.Result
}

// Detector guesses the language of a text, using hint when the text is
// inconclusive.
type Detector interface {
	DetectWithHint(text, hint string) string
}

// Summarizer is the per-worker engine.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxLen, minLen int, lang string) summarizer.Outcome
	TranslateAndSummarize(ctx context.Context, text, sourceLang string) summarizer.Outcome
}

// Enqueuer hands tasks to the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, args map[string]string) (queue.Handle, error)
}

// Discoverers resolves a site kind to its discoverer.
type Discoverers interface {
	Resolve(kind string) (discovery.Discoverer, error)
}

// Deps wires the collaborators of the Orchestrator.
type Deps struct {
	Store       store.Store
	Discoverers Discoverers
	Extractor   Extractor
	Detector    Detector
	Queue       Enqueuer
	Logger      *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Orchestrator sequences discovery, extraction, language detection and
// summarization. Store uniqueness on the source URL is its only
// concurrency guard.
type Orchestrator struct {
	store       store.Store
	discoverers Discoverers
	extractor   Extractor
	detector    Detector
	queue       Enqueuer
	logger      *zap.Logger
	now         func() time.Time

	sites          []config.SiteConfig
	maxLinks       int
	minChars       int
	retryBatch     int
	retention      time.Duration
	translateNotes bool
}

func New(deps Deps, cfg config.Config) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		store:       deps.Store,
		discoverers: deps.Discoverers,
		extractor:   deps.Extractor,
		detector:    deps.Detector,
		queue:       deps.Queue,
		logger:      logger,
		now:         clock,

		sites:          cfg.Sites,
		maxLinks:       cfg.Discovery.MaxLinks,
		minChars:       cfg.Pipeline.MinContentChars,
		retryBatch:     cfg.Pipeline.RetryBatchSize,
		retention:      cfg.Pipeline.CleanupRetention,
		translateNotes: cfg.Summarizer.TranslateNotes,
	}
}

// SiteReport is the discovery result for one site.
type SiteReport struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Found    int    `json:"found"`
	Enqueued int    `json:"enqueued"`
	Error    string `json:"error,omitempty"`
}

// DiscoveryReport sums up one DiscoverAll run.
type DiscoveryReport struct {
	Sites      []SiteReport `json:"sites"`
	Discovered int          `json:"discovered"`
	Enqueued   int          `json:"enqueued"`
}

// DiscoverAll asks every configured site for links and enqueues one
// process_url task per link. A failing site is logged and skipped.
func (o *Orchestrator) DiscoverAll(ctx context.Context) DiscoveryReport {
	var report DiscoveryReport

	for _, site := range o.sites {
		if ctx.Err() != nil {
			break
		}
		sr := o.discoverSite(ctx, site)
		report.Sites = append(report.Sites, sr)
		report.Discovered += sr.Found
		report.Enqueued += sr.Enqueued
	}

	o.logger.Info("Discovery completed",
		zap.Int("discovered", report.Discovered),
		zap.Int("enqueued", report.Enqueued))
	return report
}

func (o *Orchestrator) discoverSite(ctx context.Context, site config.SiteConfig) (sr SiteReport) {
	logger := o.logger.With(zap.String("site", site.URL))
	sr = SiteReport{Name: site.Name, URL: site.URL}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Discovery panicked", zap.Any("panic", r))
			sr.Error = "discovery panicked"
		}
	}()

	d, err := o.discoverers.Resolve(site.Kind)
	if err != nil {
		logger.Error("Error discovering articles", zap.Error(err))
		sr.Error = err.Error()
		return sr
	}

	maxLinks := site.MaxLinks
	if maxLinks <= 0 {
		maxLinks = o.maxLinks
	}

	logger.Info("Discovering articles", zap.Int("max_links", maxLinks))
	links := d.Discover(ctx, site.URL, maxLinks)
	sr.Found = len(links)

	for _, link := range links {
		if _, err := o.queue.Enqueue(ctx, queue.TaskProcessURL, map[string]string{queue.ArgURL: link}); err != nil {
			logger.Error("Failed to enqueue article", zap.String("url", link), zap.Error(err))
			sr.Error = err.Error()
			continue
		}
		sr.Enqueued++
	}

	logger.Info("Found potential articles", zap.Int("found", sr.Found), zap.Int("enqueued", sr.Enqueued))
	return sr
}
