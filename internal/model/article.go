package model

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ArticleStatus string

const (
	StatusPending    ArticleStatus = "pending"
	StatusProcessing ArticleStatus = "processing"
	StatusCompleted  ArticleStatus = "completed"
	StatusFailed     ArticleStatus = "failed"
)

// LanguageUnknown marks text whose language could not be detected.
const LanguageUnknown = "unknown"

// transitions lists the statuses reachable from each status.
var transitions = map[ArticleStatus][]ArticleStatus{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusProcessing},
}

// Valid reports whether s is one of the known statuses.
func (s ArticleStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a record may move from one status to another.
func CanTransition(from, to ArticleStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Article is the persisted record for one source URL.
type Article struct {
	ID              uuid.UUID     `json:"id"`
	SourceURL       string        `json:"source_url"`
	Title           string        `json:"title"`
	Content         string        `json:"content,omitempty"`
	Summary         string        `json:"summary"`
	Language        string        `json:"language"`
	Status          ArticleStatus `json:"status"`
	WordCount       int           `json:"word_count"`
	PublishedAt     *time.Time    `json:"published_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Authors         string        `json:"authors,omitempty"`
	TopImage        string        `json:"top_image,omitempty"`
	MetaDescription string        `json:"meta_description,omitempty"`
	SourceDomain    string        `json:"source_domain,omitempty"`
}

// NewArticle creates a pending Article for rawURL stamped with now.
func NewArticle(rawURL string, now time.Time) Article {
	return Article{
		ID:           uuid.New(),
		SourceURL:    rawURL,
		Language:     LanguageUnknown,
		Status:       StatusPending,
		SourceDomain: DomainOf(rawURL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SetContent replaces the body and keeps WordCount in sync with it.
func (a *Article) SetContent(content string) {
	a.Content = content
	a.WordCount = CountWords(content)
}

// Touch bumps UpdatedAt.
func (a *Article) Touch(now time.Time) {
	a.UpdatedAt = now
}

// IsTranslated reports whether the article already carries a summary in the
// target language.
func (a *Article) IsTranslated(target string) bool {
	return a.Language == target && a.Summary != ""
}

// CountWords splits on whitespace runs, the same way the summary input is measured.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// DomainOf returns the host part of rawURL, or "" when it does not parse.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
