package extractor

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsbrief/internal/fetch"
	"newsbrief/internal/model"
	"newsbrief/internal/textutil"
)

const (
	minTitleChars        = 10
	minParagraphChars    = 20
	minParagraphs        = 3
	maxFragments         = 20
	maxFallbackFragments = 15
)

// DOMStrategy pulls article fields out of the page with ordered goquery
// matchers. It is the fallback for layouts readability misreads.
type DOMStrategy struct {
	Titles       []Matcher
	Containers   []string
	Descriptions []Matcher
	Dates        []Matcher
	Authors      []Matcher
	Images       []Matcher
}

var _ Strategy = (*DOMStrategy)(nil)

// NewDOMStrategy returns a strategy using the package-level matcher lists.
func NewDOMStrategy() *DOMStrategy {
	return &DOMStrategy{
		Titles:       TitleMatchers,
		Containers:   ContentSelectors,
		Descriptions: DescriptionMatchers,
		Dates:        DateMatchers,
		Authors:      AuthorMatchers,
		Images:       ImageMatchers,
	}
}

func (s *DOMStrategy) Name() string { return "dom" }

func (s *DOMStrategy) Extract(_ context.Context, page *fetch.Page) (Result, error) {
	doc, err := page.Document()
	if err != nil {
		return Result{}, err
	}

	root := doc.Selection
	res := Result{
		Title: firstMatch(root, s.Titles, func(v string) bool {
			return textutil.Len(textutil.Clean(v)) > minTitleChars
		}),
		MetaDescription: firstMatch(root, s.Descriptions, nonEmpty),
		PublishDate:     NormalizeDate(firstMatch(root, s.Dates, nonEmpty)),
		Authors:         s.authors(root),
		TopImage:        resolveURL(page, firstMatch(root, s.Images, nonEmpty)),
		Language:        pageLanguage(doc),
		Strategy:        s.Name(),
	}

	// Title and meta are read above; noise goes before the body is.
	doc.Find(NoiseSelector).Remove()
	res.Content = strings.Join(s.content(root), "\n\n")

	return res, nil
}

// content returns paragraph fragments from the first container selector that
// yields enough real paragraphs, falling back to every long paragraph.
func (s *DOMStrategy) content(root *goquery.Selection) []string {
	for _, sel := range s.Containers {
		var paras *goquery.Selection
		if sel == "p" {
			paras = root.Find("p")
		} else {
			paras = root.Find(sel).Find("p")
		}

		fragments := longParagraphs(paras, maxFragments)
		if len(fragments) >= minParagraphs {
			return fragments
		}
	}
	return longParagraphs(root.Find("p"), maxFallbackFragments)
}

func (s *DOMStrategy) authors(root *goquery.Selection) string {
	for _, m := range s.Authors {
		values := m.Values(root)
		if len(values) == 0 {
			continue
		}
		seen := map[string]bool{}
		var names []string
		for _, v := range values {
			v = strings.TrimPrefix(textutil.Clean(v), "By ")
			v = strings.TrimPrefix(v, "by ")
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			names = append(names, v)
		}
		if len(names) > 0 {
			return strings.Join(names, ", ")
		}
	}
	return ""
}

func longParagraphs(paras *goquery.Selection, limit int) []string {
	var out []string
	paras.EachWithBreak(func(_ int, p *goquery.Selection) bool {
		t := textutil.Clean(p.Text())
		if textutil.Len(t) > minParagraphChars {
			out = append(out, t)
		}
		return len(out) < limit
	})
	return out
}

func pageLanguage(doc *goquery.Document) string {
	if lang, ok := doc.Find("html").Attr("lang"); ok && strings.TrimSpace(lang) != "" {
		return strings.ToLower(strings.TrimSpace(lang))
	}
	return model.LanguageUnknown
}

func resolveURL(page *fetch.Page, ref string) string {
	if ref == "" || page.URL == nil {
		return ref
	}
	u, err := page.URL.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
