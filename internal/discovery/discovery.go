// Package discovery finds candidate article URLs on news listing pages.
package discovery

import (
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"newsbrief/internal/fetch"
)

// Discoverer returns up to maxLinks absolute article URLs found on a listing
// page. It never fails; problems are logged and yield an empty slice.
type Discoverer interface {
	Discover(ctx context.Context, listingURL string, maxLinks int) []string
}

// LinkSelectors is the ordered list tried against a listing page. Earlier
// selectors take priority.
var LinkSelectors = []string{
	// article containers
	"article a[href]",
	".article a[href]",
	".post a[href]",
	".news-item a[href]",
	".story a[href]",
	".card a[href]",
	// heading links
	"h1 a[href]",
	"h2 a[href]",
	"h3 a[href]",
	".headline a[href]",
	".title a[href]",
	// href patterns
	`a[href*="/article/"]`,
	`a[href*="/news/"]`,
	`a[href*="/post/"]`,
}

// HTMLDiscoverer scrapes links out of a regular HTML listing page.
type HTMLDiscoverer struct {
	client    *fetch.Client
	logger    *zap.Logger
	selectors []string
}

var _ Discoverer = (*HTMLDiscoverer)(nil)

func NewHTMLDiscoverer(client *fetch.Client, logger *zap.Logger) *HTMLDiscoverer {
	return &HTMLDiscoverer{client: client, logger: logger, selectors: LinkSelectors}
}

func (d *HTMLDiscoverer) Discover(ctx context.Context, listingURL string, maxLinks int) []string {
	logger := d.logger.With(zap.String("listing", listingURL))

	doc, err := d.client.Document(ctx, listingURL)
	if err != nil {
		logger.Warn("Listing fetch failed", zap.Error(err))
		return []string{}
	}

	links, err := d.collect(doc, maxLinks)
	if err != nil {
		logger.Warn("Listing parse failed", zap.Error(err))
		return []string{}
	}

	logger.Info("Discovered links", zap.Int("count", len(links)))
	return links
}

func (d *HTMLDiscoverer) collect(doc *goquery.Document, maxLinks int) ([]string, error) {
	base := doc.Url
	if base == nil {
		return nil, fmt.Errorf("document has no base url")
	}
	if href, ok := doc.Find("base[href]").Attr("href"); ok {
		if b, err := base.Parse(href); err == nil {
			base = b
		}
	}

	c := newCollector(maxLinks)
	for _, sel := range d.selectors {
		doc.Find(sel).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			link, ok := resolve(base, href)
			if !ok || link == doc.Url.String() {
				return true
			}
			if u, err := url.Parse(link); err != nil || !sameSite(u, doc.Url) {
				return true
			}
			c.add(link)
			return !c.full()
		})
		if c.full() {
			break
		}
	}
	if c.links == nil {
		return []string{}, nil
	}
	return c.links, nil
}
