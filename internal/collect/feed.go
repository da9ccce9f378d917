package collect

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/rivalwatch/internal/config"
)

const (
	googleNewsBaseURL = "https://news.google.com/rss/search"
	googleNewsSource  = "Google News RSS"
	userAgent         = "rivalwatch/1.0 (competitor news monitor)"
)

// GoogleNews searches the Google News RSS endpoint once per competitor.
type GoogleNews struct {
	cfg     config.GoogleNews
	baseURL string
	parser  *gofeed.Parser
}

// NewGoogleNews creates a Google News source.
func NewGoogleNews(cfg config.GoogleNews) *GoogleNews {
	return &GoogleNews{cfg: cfg, baseURL: googleNewsBaseURL, parser: newParser()}
}

func (g *GoogleNews) Name() string { return googleNewsSource }

// Query returns the search query for a competitor. An explicit query wins
// over name plus suffix.
func (g *GoogleNews) Query(comp config.Competitor) string {
	if q := strings.TrimSpace(comp.Query); q != "" {
		return q
	}
	return strings.TrimSpace(comp.Name + " " + g.cfg.QuerySuffix)
}

// SearchURL builds the RSS search URL for a query.
func (g *GoogleNews) SearchURL(query string) string {
	params := url.Values{"q": {query}}
	if g.cfg.Language != "" {
		params.Set("hl", g.cfg.Language)
	}
	if g.cfg.Country != "" {
		params.Set("gl", g.cfg.Country)
	}
	if g.cfg.Edition != "" {
		params.Set("ceid", g.cfg.Edition)
	}
	return g.baseURL + "?" + params.Encode()
}

func (g *GoogleNews) Fetch(ctx context.Context, comp config.Competitor) ([]Item, error) {
	return parseFeed(ctx, g.parser, g.SearchURL(g.Query(comp)), googleNewsSource)
}

// FeedSource reads the extra RSS/Atom feeds configured on a competitor.
type FeedSource struct {
	parser *gofeed.Parser
}

// NewFeedSource creates a source for per-competitor feeds.
func NewFeedSource() *FeedSource {
	return &FeedSource{parser: newParser()}
}

func (f *FeedSource) Name() string { return "feeds" }

// Fetch parses each feed. One failing feed fails the source only when no
// other feed succeeded.
func (f *FeedSource) Fetch(ctx context.Context, comp config.Competitor) ([]Item, error) {
	var (
		all     []Item
		lastErr error
		ok      int
	)
	for _, fc := range comp.Feeds {
		name := fc.Name
		if name == "" {
			name = sourceName(fc.URL)
		}
		items, err := parseFeed(ctx, f.parser, fc.URL, name)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", fc.URL, err)
			continue
		}
		ok++
		all = append(all, items...)
	}
	if ok == 0 && lastErr != nil {
		return nil, lastErr
	}
	return all, nil
}

func newParser() *gofeed.Parser {
	p := gofeed.NewParser()
	p.UserAgent = userAgent
	return p
}

func parseFeed(ctx context.Context, parser *gofeed.Parser, feedURL, source string) ([]Item, error) {
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(feed.Items))
	for _, fi := range feed.Items {
		if item := convertItem(fi, source); item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

func convertItem(fi *gofeed.Item, source string) *Item {
	link := strings.TrimSpace(fi.Link)
	if link == "" {
		link = strings.TrimSpace(fi.GUID)
	}
	title := strings.TrimSpace(fi.Title)
	if link == "" || title == "" {
		return nil
	}

	var published *time.Time
	if fi.PublishedParsed != nil {
		t := fi.PublishedParsed.UTC()
		published = &t
	} else if fi.UpdatedParsed != nil {
		t := fi.UpdatedParsed.UTC()
		published = &t
	}

	summary := fi.Description
	if summary == "" {
		summary = fi.Content
	}

	return &Item{
		Title:       title,
		URL:         link,
		PublishedAt: published,
		Source:      source,
		Summary:     stripHTML(summary),
	}
}

// stripHTML drops tags, decodes entities and collapses whitespace.
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(b.String())), " ")
}

func sourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "blog.", "news.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}
	parts := strings.Split(host, ".")
	switch {
	case len(parts) >= 3 && len(parts[len(parts)-1]) == 2 && len(parts[len(parts)-2]) <= 3:
		host = parts[len(parts)-3] // saramin.co.kr
	case len(parts) >= 2:
		host = parts[len(parts)-2]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
