package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"newsbrief/internal/fetch"
	"newsbrief/internal/model"
	"newsbrief/internal/textutil"
)

// blockSelector names the elements that become separate fragments of the
// readability body.
const blockSelector = "p, h1, h2, h3, h4, h5, h6, li, blockquote, pre, figcaption, td"

// ReadabilityStrategy runs go-readability over the downloaded page.
type ReadabilityStrategy struct{}

var _ Strategy = (*ReadabilityStrategy)(nil)

func NewReadabilityStrategy() *ReadabilityStrategy {
	return &ReadabilityStrategy{}
}

func (s *ReadabilityStrategy) Name() string { return "readability" }

func (s *ReadabilityStrategy) Extract(_ context.Context, page *fetch.Page) (Result, error) {
	article, err := readability.FromReader(bytes.NewReader(page.Body), page.URL)
	if err != nil {
		return Result{}, fmt.Errorf("readability: %w", err)
	}

	res := Result{
		Title:           article.Title,
		Content:         strings.Join(readableFragments(article), "\n"),
		Authors:         strings.TrimSpace(article.Byline),
		TopImage:        article.Image,
		MetaDescription: article.Excerpt,
		Language:        strings.ToLower(article.Language),
		Strategy:        s.Name(),
	}
	if res.Language == "" {
		res.Language = model.LanguageUnknown
	}
	if article.PublishedTime != nil {
		res.PublishDate = article.PublishedTime.Format(time.RFC3339)
	}
	return res, nil
}

// readableFragments splits the parsed article into one fragment per innermost
// block element. TextContent joins sibling blocks without a separator, so it
// is only used when the tree has no blocks at all.
func readableFragments(article readability.Article) []string {
	if article.Node == nil {
		return textutil.Paragraphs(article.TextContent)
	}

	var out []string
	root := goquery.NewDocumentFromNode(article.Node).Selection
	root.Find(blockSelector).Each(func(_ int, b *goquery.Selection) {
		if b.Find(blockSelector).Length() > 0 {
			return
		}
		if t := textutil.Clean(b.Text()); t != "" {
			out = append(out, t)
		}
	})
	if len(out) == 0 {
		return textutil.Paragraphs(article.TextContent)
	}
	return out
}
