package discovery

import (
	"context"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"newsbrief/internal/fetch"
)

// FeedDiscoverer reads item links from an RSS or Atom feed.
type FeedDiscoverer struct {
	parser *gofeed.Parser
	logger *zap.Logger
}

var _ Discoverer = (*FeedDiscoverer)(nil)

func NewFeedDiscoverer(client *fetch.Client, logger *zap.Logger) *FeedDiscoverer {
	parser := gofeed.NewParser()
	parser.Client = client.HTTPClient()
	parser.UserAgent = fetch.DefaultUserAgent
	return &FeedDiscoverer{parser: parser, logger: logger}
}

func (d *FeedDiscoverer) Discover(ctx context.Context, feedURL string, maxLinks int) []string {
	logger := d.logger.With(zap.String("feed", feedURL))

	feed, err := d.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		logger.Warn("Feed fetch failed", zap.Error(err))
		return []string{}
	}

	c := newCollector(maxLinks)
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		c.add(item.Link)
		if c.full() {
			break
		}
	}

	logger.Info("Discovered feed links", zap.Int("count", len(c.links)))
	if c.links == nil {
		return []string{}
	}
	return c.links
}
