package discovery

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const minPathLen = 5

// nonArticlePatterns match paths that point at navigation, admin or asset
// pages rather than individual articles.
var nonArticlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`/(category|categories|tag|tags|topic|topics|section)/`),
	regexp.MustCompile(`/(author|authors|contributor|contributors)/`),
	regexp.MustCompile(`/(search|archive|archives)(/|$)`),
	regexp.MustCompile(`/(login|logout|register|signup|subscribe|account|cart|checkout)(/|$)`),
	regexp.MustCompile(`/page/\d+`),
	regexp.MustCompile(`/(feed|rss|atom)(/|$)`),
	regexp.MustCompile(`sitemap`),
	regexp.MustCompile(`/(wp-admin|wp-login|wp-json|wp-content)/`),
	regexp.MustCompile(`/(contact|about|privacy|terms|advertise|newsletter)(-us)?/?$`),
	regexp.MustCompile(`\.(jpe?g|png|gif|webp|svg|ico|css|js|pdf|zip|mp3|mp4|xml|json)$`),
}

// Eligible reports whether rawURL looks like an individual article.
func Eligible(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}

	path := strings.ToLower(u.Path)
	if path == "/" || len(path) < minPathLen {
		return false
	}
	for _, p := range nonArticlePatterns {
		if p.MatchString(path) {
			return false
		}
	}
	return true
}

// resolve turns href into an absolute URL against base and drops the fragment.
func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	return abs.String(), true
}

// sameSite reports whether both URLs belong to the same registrable domain,
// so news.site.com and www.site.com count as site.com.
func sameSite(a, b *url.URL) bool {
	return siteOf(a) == siteOf(b)
}

// siteOf is the eTLD+1 of the host, or the bare host for IPs and names the
// public suffix list cannot place.
func siteOf(u *url.URL) string {
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if net.ParseIP(host) != nil {
		return host
	}
	if site, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return site
	}
	return host
}

// collector keeps distinct eligible links in discovery order up to a bound.
type collector struct {
	max   int
	seen  map[string]struct{}
	links []string
}

func newCollector(max int) *collector {
	return &collector{max: max, seen: map[string]struct{}{}}
}

func (c *collector) full() bool {
	return c.max > 0 && len(c.links) >= c.max
}

func (c *collector) add(link string) bool {
	if c.full() {
		return false
	}
	if _, ok := c.seen[link]; ok {
		return false
	}
	if !Eligible(link) {
		return false
	}
	c.seen[link] = struct{}{}
	c.links = append(c.links, link)
	return true
}
