package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"newsbrief/internal/config"
	"newsbrief/internal/discovery"
	"newsbrief/internal/extractor"
	"newsbrief/internal/fetch"
	"newsbrief/internal/model"
	"newsbrief/internal/queue"
	"newsbrief/internal/store"
	"newsbrief/internal/summarizer"
)

// fakeExtractor serves canned results by URL.
type fakeExtractor struct {
	mu      sync.Mutex
	results map[string]extractor.Result
	calls   int
}

func (f *fakeExtractor) Extract(_ context.Context, pageURL string) extractor.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if r, ok := f.results[pageURL]; ok {
		return r
	}
	return extractor.Result{Content: "Content could not be extracted: 404", Err: errors.New("404")}
}

type fixedDetector string

func (d fixedDetector) DetectWithHint(string, string) string { return string(d) }

// fakeSummarizer returns out, or panics when panicMsg is set.
type fakeSummarizer struct {
	out      summarizer.Outcome
	panicMsg string
	lang     string
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ string, _, _ int, lang string) summarizer.Outcome {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.lang = lang
	return f.out
}

func (f *fakeSummarizer) TranslateAndSummarize(ctx context.Context, text, lang string) summarizer.Outcome {
	out := f.Summarize(ctx, text, 0, 0, lang)
	out.Summary = "[translate] " + out.Summary
	return out
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
}

func (q *recordingQueue) Enqueue(_ context.Context, name string, args map[string]string) (queue.Handle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := queue.Task{ID: uuid.New(), Name: name, Args: args}
	q.tasks = append(q.tasks, t)
	return queue.Handle{ID: t.ID, Name: name}, nil
}

type failingLoader struct{}

func (failingLoader) Name() string { return "broken" }
func (failingLoader) Load(context.Context) (summarizer.Model, error) {
	return nil, errors.New("weights missing")
}

func okSummary() *fakeSummarizer {
	return &fakeSummarizer{out: summarizer.Outcome{
		Summary:   "Wheat exports fell.",
		Status:    summarizer.StatusSuccess,
		ModelUsed: "stub",
	}}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	st, err := store.NewHybridStore(mr.Addr(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

type harness struct {
	orch  *Orchestrator
	store store.Store
	ext   *fakeExtractor
	queue *recordingQueue
	now   time.Time
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{
		store: newTestStore(t),
		ext:   &fakeExtractor{results: map[string]extractor.Result{}},
		queue: &recordingQueue{},
		now:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	registry := discovery.NewRegistry()
	client := fetch.New(2*time.Second, "")
	registry.Register(config.KindListing, discovery.NewHTMLDiscoverer(client, zap.NewNop()))

	h.orch = New(Deps{
		Store:       h.store,
		Discoverers: registry,
		Extractor:   h.ext,
		Detector:    fixedDetector("en"),
		Queue:       h.queue,
		Logger:      zap.NewNop(),
		Clock:       func() time.Time { return h.now },
	}, cfg)
	return h
}

func body(chars int) string {
	s := strings.Repeat("Grain markets moved. ", chars/21+1)
	return s[:chars]
}

func TestProcessOne_Idempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	url := "https://example.com/news/corn-prices-rise"
	h.ext.results[url] = extractor.Result{Title: "Corn prices rise", Content: body(300), PublishDate: "2025-05-30T07:00:00Z"}

	first := h.orch.ProcessOne(ctx, url, okSummary())
	assert.Equal(t, KindCompleted, first.Kind)

	second := h.orch.ProcessOne(ctx, url, okSummary())
	assert.Equal(t, KindAlreadyExists, second.Kind)
	assert.Equal(t, 1, h.ext.calls, "second call must not extract again")

	all, err := h.store.Filter(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)

	a := all[0]
	assert.Equal(t, model.StatusCompleted, a.Status)
	assert.Equal(t, "Wheat exports fell.", a.Summary)
	assert.Equal(t, "en", a.Language)
	assert.Equal(t, "example.com", a.SourceDomain)
	assert.Equal(t, model.CountWords(a.Content), a.WordCount)
	require.NotNil(t, a.PublishedAt)
	assert.Equal(t, time.Date(2025, 5, 30, 7, 0, 0, 0, time.UTC), a.PublishedAt.UTC())
}

func TestProcessOne_InsufficientContentCreatesNothing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	url := "https://example.com/news/short"
	h.ext.results[url] = extractor.Result{Title: "Short", Content: body(80)}

	out := h.orch.ProcessOne(ctx, url, okSummary())
	assert.Equal(t, KindInsufficientContent, out.Kind)

	_, err := h.store.Get(ctx, url)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProcessOne_ExtractionFailureCreatesNothing(t *testing.T) {
	h := newHarness(t, nil)
	out := h.orch.ProcessOne(context.Background(), "https://example.com/news/gone", okSummary())
	assert.Equal(t, KindInsufficientContent, out.Kind)
}

func TestProcessOne_DisabledEngineFailsRecord(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	url := "https://example.com/news/soybeans"
	h.ext.results[url] = extractor.Result{Title: "Soybeans", Content: body(150)}

	engine := summarizer.NewEngine([]summarizer.Loader{failingLoader{}}, summarizer.Options{TargetLanguage: "uk"}, zap.NewNop())
	out := h.orch.ProcessOne(ctx, url, engine)
	assert.Equal(t, KindFailed, out.Kind)

	a, err := h.store.Get(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, a.Status)
	assert.Equal(t, summarizer.MessagesFor("uk").Unavailable, a.Summary)
}

func TestProcessOne_RecoversPanicAndFailsRecord(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	url := "https://example.com/news/dairy"
	h.ext.results[url] = extractor.Result{Title: "Dairy", Content: body(200)}

	out := h.orch.ProcessOne(ctx, url, &fakeSummarizer{panicMsg: "boom"})
	assert.Equal(t, KindError, out.Kind)
	assert.Contains(t, out.Message, "boom")

	a, err := h.store.Get(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, a.Status)
	assert.Equal(t, "Summary generation failed", a.Summary)
}

func TestProcessOne_BadPublishDateIsNotFatal(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	url := "https://example.com/news/rain"
	h.ext.results[url] = extractor.Result{Title: "Rain", Content: body(200), PublishDate: "sometime soon"}

	out := h.orch.ProcessOne(ctx, url, okSummary())
	assert.Equal(t, KindCompleted, out.Kind)

	a, err := h.store.Get(ctx, url)
	require.NoError(t, err)
	assert.Nil(t, a.PublishedAt)
}

func TestProcessOne_TranslateNotes(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Summarizer.TranslateNotes = true })
	ctx := context.Background()
	url := "https://example.com/news/barley"
	h.ext.results[url] = extractor.Result{Title: "Barley", Content: body(200)}

	sum := okSummary()
	h.orch.ProcessOne(ctx, url, sum)

	a, err := h.store.Get(ctx, url)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a.Summary, "[translate] "))
	assert.Equal(t, "en", sum.lang)
}

func TestProcessOne_ConcurrentCallsCreateOneRecord(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	url := "https://example.com/news/race"
	h.ext.results[url] = extractor.Result{Title: "Race", Content: body(200)}

	var wg sync.WaitGroup
	kinds := make([]Kind, 6)
	for i := range kinds {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kinds[i] = h.orch.ProcessOne(ctx, url, okSummary()).Kind
		}(i)
	}
	wg.Wait()

	completed := 0
	for _, k := range kinds {
		if k == KindCompleted {
			completed++
		} else {
			assert.Equal(t, KindAlreadyExists, k)
		}
	}
	assert.Equal(t, 1, completed)
}

func listingServer(t *testing.T, links int) *httptest.Server {
	t.Helper()
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 1; i <= links; i++ {
		fmt.Fprintf(&b, `<article><h2><a href="/news/story-%d">Story %d</a></h2></article>`, i, i)
	}
	b.WriteString(`<a href="/category/corn">Corn</a></body></html>`)
	page := b.String()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverAll_EnqueuesOneTaskPerLink(t *testing.T) {
	srv := listingServer(t, 5)
	h := newHarness(t, func(c *config.Config) {
		c.Discovery.MaxLinks = 3
		c.Sites = []config.SiteConfig{
			{Name: "local", URL: srv.URL + "/news", Kind: config.KindListing},
			{Name: "unsupported", URL: "https://example.com/x", Kind: "carrier-pigeon"},
		}
	})

	report := h.orch.DiscoverAll(context.Background())
	assert.Equal(t, 3, report.Discovered)
	assert.Equal(t, 3, report.Enqueued)
	require.Len(t, report.Sites, 2)
	assert.NotEmpty(t, report.Sites[1].Error)

	require.Len(t, h.queue.tasks, 3)
	for i, task := range h.queue.tasks {
		assert.Equal(t, queue.TaskProcessURL, task.Name)
		assert.Equal(t, fmt.Sprintf("%s/news/story-%d", srv.URL, i+1), task.Args[queue.ArgURL])
	}
}

func seedArticle(t *testing.T, st store.Store, url string, status model.ArticleStatus, created time.Time) model.Article {
	t.Helper()
	a := model.NewArticle(url, created)
	a.Status = status
	a.Title = "seeded"
	a.SetContent("old content")
	require.NoError(t, st.Create(context.Background(), &a))
	return a
}

func TestRetryFailed(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Pipeline.RetryBatchSize = 2 })
	ctx := context.Background()

	recovered := "https://example.com/news/recovered"
	stillBad := "https://example.com/news/still-bad"
	untouched := "https://example.com/news/untouched"
	seedArticle(t, h.store, recovered, model.StatusFailed, h.now.Add(-3*time.Hour))
	seedArticle(t, h.store, stillBad, model.StatusFailed, h.now.Add(-2*time.Hour))
	seedArticle(t, h.store, untouched, model.StatusFailed, h.now.Add(-1*time.Hour))
	h.ext.results[recovered] = extractor.Result{Title: "Recovered", Content: body(300)}
	h.ext.results[stillBad] = extractor.Result{Title: "Still bad", Content: body(40)}

	report, err := h.orch.RetryFailed(ctx, okSummary())
	require.NoError(t, err)
	assert.Equal(t, RetryReport{Selected: 2, Completed: 1, StillFailed: 1}, report)

	a, err := h.store.Get(ctx, recovered)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, a.Status)
	assert.Equal(t, "Wheat exports fell.", a.Summary)
	assert.Equal(t, body(300), a.Content)

	b, err := h.store.Get(ctx, stillBad)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, b.Status)
	assert.Equal(t, "old content", b.Content)

	c, err := h.store.Get(ctx, untouched)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, c.Status)
}

func TestCleanup_RetentionWindow(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	old := "https://example.com/news/forty-days"
	recent := "https://example.com/news/ten-days"
	done := "https://example.com/news/old-but-completed"
	seedArticle(t, h.store, old, model.StatusFailed, h.now.Add(-40*24*time.Hour))
	seedArticle(t, h.store, recent, model.StatusFailed, h.now.Add(-10*24*time.Hour))
	seedArticle(t, h.store, done, model.StatusCompleted, h.now.Add(-40*24*time.Hour))

	n, err := h.orch.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = h.store.Get(ctx, old)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = h.store.Get(ctx, recent)
	assert.NoError(t, err)
	_, err = h.store.Get(ctx, done)
	assert.NoError(t, err)
}

func TestStats(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	seedArticle(t, h.store, "https://a.example/news/1", model.StatusCompleted, h.now.Add(-3*time.Hour))
	seedArticle(t, h.store, "https://a.example/news/2", model.StatusCompleted, h.now.Add(-2*time.Hour))
	seedArticle(t, h.store, "https://b.example/news/3", model.StatusFailed, h.now.Add(-1*time.Hour))

	st, err := h.orch.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, []Count{{Key: "completed", Count: 2}, {Key: "failed", Count: 1}}, st.ByStatus)
	assert.Equal(t, []Count{{Key: "unknown", Count: 3}}, st.ByLanguage)
	assert.Equal(t, []Count{{Key: "a.example", Count: 2}, {Key: "b.example", Count: 1}}, st.TopDomains)
	assert.InDelta(t, 2.0, st.AverageWordCount, 0.001)
	assert.Equal(t, 1, st.Failed)
	require.Len(t, st.RecentCompleted, 2)
	assert.Equal(t, "https://a.example/news/2", st.RecentCompleted[0].URL)
	require.Len(t, st.RecentFailures, 1)
}
