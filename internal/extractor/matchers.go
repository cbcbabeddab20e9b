package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Matcher reads a value from every element matching Selector: the element
// text when Attr is empty, otherwise the attribute.
type Matcher struct {
	Selector string
	Attr     string
}

func byText(sel string) Matcher { return Matcher{Selector: sel} }

func byAttr(sel, name string) Matcher { return Matcher{Selector: sel, Attr: name} }

func metaName(name string) Matcher { return byAttr(`meta[name="`+name+`"]`, "content") }

func metaProperty(prop string) Matcher { return byAttr(`meta[property="`+prop+`"]`, "content") }

// Values returns the trimmed non-empty values in document order.
func (m Matcher) Values(root *goquery.Selection) []string {
	var out []string
	root.Find(m.Selector).Each(func(_ int, s *goquery.Selection) {
		var v string
		if m.Attr == "" {
			v = s.Text()
		} else {
			v, _ = s.Attr(m.Attr)
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	})
	return out
}

// firstMatch walks matchers in order and returns the first value accepted by ok.
func firstMatch(root *goquery.Selection, matchers []Matcher, ok func(string) bool) string {
	for _, m := range matchers {
		for _, v := range m.Values(root) {
			if ok(v) {
				return v
			}
		}
	}
	return ""
}

func nonEmpty(string) bool { return true }

// TitleMatchers: semantic heading classes, then h1, <title>, og:title.
var TitleMatchers = []Matcher{
	byText(".article-title"),
	byText(".entry-title"),
	byText(".post-title"),
	byText(".headline"),
	byText(".story-title"),
	byText(`[itemprop="headline"]`),
	byText("h1.title"),
	byText("h1"),
	byText("title"),
	metaProperty("og:title"),
	metaName("twitter:title"),
}

// ContentSelectors: content-specific containers before generic ones.
var ContentSelectors = []string{
	".article-content",
	".article-body",
	".article__body",
	".entry-content",
	".post-content",
	".post-body",
	".story-body",
	".content-body",
	".news-content",
	`[itemprop="articleBody"]`,
	"article",
	"main",
	".content",
	"p",
}

var DescriptionMatchers = []Matcher{
	metaName("description"),
	metaProperty("og:description"),
	metaName("twitter:description"),
}

var DateMatchers = []Matcher{
	metaProperty("article:published_time"),
	metaName("pubdate"),
	metaName("publishdate"),
	metaName("publish-date"),
	metaName("date"),
	byAttr(`meta[itemprop="datePublished"]`, "content"),
	byAttr("time[datetime]", "datetime"),
	byAttr(`[itemprop="datePublished"]`, "datetime"),
	byText(`[itemprop="datePublished"]`),
	byText(".published"),
	byText(".publish-date"),
	byText(".post-date"),
	byText(".date"),
	byText("time"),
}

var AuthorMatchers = []Matcher{
	metaName("author"),
	metaProperty("article:author"),
	byText(`[itemprop="author"] [itemprop="name"]`),
	byText(`[itemprop="author"]`),
	byText(`[rel="author"]`),
	byText(".byline"),
	byText(".author-name"),
	byText(".author"),
}

var ImageMatchers = []Matcher{
	metaProperty("og:image"),
	metaName("twitter:image"),
	byAttr(`link[rel="image_src"]`, "href"),
}

// NoiseSelector lists elements removed before content extraction.
const NoiseSelector = "script, style, noscript, iframe, nav, header, footer, aside, " +
	".advertisement, .ad, .ads, .social-share, .share, .related, .comments, .newsletter"
