package pipeline

import (
	"context"
	"fmt"
	"sort"

	"newsbrief/internal/model"
	"newsbrief/internal/store"
	"newsbrief/internal/textutil"
)

const (
	topDomains      = 10
	recentCompleted = 5
	recentFailures  = 3
)

// Count is one bucket of a breakdown.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// RecentArticle is a short listing entry.
type RecentArticle struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Language  string `json:"language"`
	CreatedAt string `json:"created_at"`
}

// Stats is a snapshot of the store.
type Stats struct {
	Total            int             `json:"total"`
	ByStatus         []Count         `json:"by_status"`
	ByLanguage       []Count         `json:"by_language"`
	TopDomains       []Count         `json:"top_domains"`
	AverageWordCount float64         `json:"average_word_count"`
	RecentCompleted  []RecentArticle `json:"recent_completed"`
	Failed           int             `json:"failed"`
	RecentFailures   []RecentArticle `json:"recent_failures"`
}

// Stats reads every record's metadata and aggregates it.
func (o *Orchestrator) Stats(ctx context.Context) (Stats, error) {
	articles, err := o.store.Filter(ctx, store.Filter{Newest: true, SkipContent: true})
	if err != nil {
		return Stats{}, fmt.Errorf("load articles: %w", err)
	}

	var (
		st        = Stats{Total: len(articles)}
		status    = map[string]int{}
		language  = map[string]int{}
		domain    = map[string]int{}
		wordTotal int
	)
	for _, a := range articles {
		status[string(a.Status)]++
		language[a.Language]++
		d := a.SourceDomain
		if d == "" {
			d = "Unknown"
		}
		domain[d]++
		wordTotal += a.WordCount

		switch a.Status {
		case model.StatusCompleted:
			if len(st.RecentCompleted) < recentCompleted {
				st.RecentCompleted = append(st.RecentCompleted, recent(a))
			}
		case model.StatusFailed:
			st.Failed++
			if len(st.RecentFailures) < recentFailures {
				st.RecentFailures = append(st.RecentFailures, recent(a))
			}
		}
	}

	st.ByStatus = buckets(status, func(a, b Count) bool { return a.Key < b.Key })
	st.ByLanguage = buckets(language, byCountDesc)
	st.TopDomains = buckets(domain, byCountDesc)
	if len(st.TopDomains) > topDomains {
		st.TopDomains = st.TopDomains[:topDomains]
	}
	if st.Total > 0 {
		st.AverageWordCount = float64(wordTotal) / float64(st.Total)
	}
	return st, nil
}

func recent(a model.Article) RecentArticle {
	t := a.Title
	if textutil.Len(t) > 60 {
		t = textutil.Truncate(t, 60) + "..."
	}
	return RecentArticle{
		Title:     t,
		URL:       a.SourceURL,
		Language:  a.Language,
		CreatedAt: a.CreatedAt.UTC().Format("2006-01-02 15:04"),
	}
}

func byCountDesc(a, b Count) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.Key < b.Key
}

func buckets(m map[string]int, less func(a, b Count) bool) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
