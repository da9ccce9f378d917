package collect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/rivalwatch/internal/config"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>test</title>
<item>
  <title>사람인, AI 매칭 서비스 출시</title>
  <link>https://news.example.com/1</link>
  <pubDate>Thu, 14 Mar 2024 08:00:00 +0900</pubDate>
  <description>&lt;a href="https://news.example.com/1"&gt;사람인 AI&lt;/a&gt;&amp;nbsp;매칭</description>
</item>
<item>
  <title>날짜 없는 기사</title>
  <link>https://news.example.com/2</link>
</item>
<item>
  <title></title>
  <link>https://news.example.com/3</link>
</item>
</channel>
</rss>`

func rssServer(t *testing.T, gotQuery *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotQuery != nil {
			*gotQuery = r.URL.Query()
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testRSS)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleNewsQuery(t *testing.T) {
	g := NewGoogleNews(config.GoogleNews{QuerySuffix: "채용 OR 투자"})
	if q := g.Query(config.Competitor{Name: "사람인"}); q != "사람인 채용 OR 투자" {
		t.Errorf("unexpected query %q", q)
	}
	if q := g.Query(config.Competitor{Name: "사람인", Query: "saramin hiring"}); q != "saramin hiring" {
		t.Errorf("expected explicit query, got %q", q)
	}
}

func TestGoogleNewsSearchURL(t *testing.T) {
	g := NewGoogleNews(config.GoogleNews{Language: "ko", Country: "KR", Edition: "KR:ko"})
	u, err := url.Parse(g.SearchURL("잡코리아 공고"))
	if err != nil {
		t.Fatalf("invalid url: %v", err)
	}
	q := u.Query()
	if q.Get("q") != "잡코리아 공고" || q.Get("hl") != "ko" || q.Get("gl") != "KR" || q.Get("ceid") != "KR:ko" {
		t.Errorf("unexpected params: %v", q)
	}
	if !strings.HasPrefix(u.String(), googleNewsBaseURL+"?") {
		t.Errorf("unexpected base: %s", u)
	}
}

func TestGoogleNewsFetch(t *testing.T) {
	var got url.Values
	srv := rssServer(t, &got)

	g := NewGoogleNews(config.GoogleNews{Language: "ko"})
	g.baseURL = srv.URL
	items, err := g.Fetch(context.Background(), config.Competitor{Name: "사람인"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Get("q") != "사람인" {
		t.Errorf("expected query for competitor, got %q", got.Get("q"))
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items (empty title dropped), got %d", len(items))
	}

	first := items[0]
	if first.Source != googleNewsSource {
		t.Errorf("unexpected source %q", first.Source)
	}
	if first.PublishedAt == nil {
		t.Fatal("expected published time")
	}
	want := time.Date(2024, 3, 13, 23, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) || first.PublishedAt.Location() != time.UTC {
		t.Errorf("expected %v in UTC, got %v", want, first.PublishedAt)
	}
	if first.Summary != "사람인 AI 매칭" {
		t.Errorf("unexpected summary %q", first.Summary)
	}
	if items[1].PublishedAt != nil {
		t.Error("expected undated item to have nil PublishedAt")
	}
}

func TestFeedSource(t *testing.T) {
	srv := rssServer(t, nil)
	comp := config.Competitor{
		Name: "리멤버",
		Feeds: []config.Feed{
			{URL: srv.URL, Name: "Remember Blog"},
			{URL: "http://127.0.0.1:1/feed"},
		},
	}
	items, err := NewFeedSource().Fetch(context.Background(), comp)
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if len(items) != 2 || items[0].Source != "Remember Blog" {
		t.Errorf("unexpected items: %+v", items)
	}

	comp.Feeds = comp.Feeds[1:]
	if _, err := NewFeedSource().Fetch(context.Background(), comp); err == nil {
		t.Error("expected error when every feed fails")
	}

	comp.Feeds = nil
	items, err = NewFeedSource().Fetch(context.Background(), comp)
	if err != nil || len(items) != 0 {
		t.Errorf("expected no items and no error without feeds, got %d, %v", len(items), err)
	}
}

func TestNewsAPISearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("from") != "2024-03-01" {
			t.Errorf("unexpected from %q", r.URL.Query().Get("from"))
		}
		fmt.Fprint(w, `{"status":"ok","articles":[
			{"url":"https://a.com/1","title":"Jobkorea raises prices","publishedAt":"2024-03-14T01:00:00Z","description":"desc","source":{"name":"Korea Herald"}},
			{"url":"https://removed.com","title":"[Removed]"},
			{"url":"https://a.com/2","title":"No date","source":{}}
		]}`)
	}))
	defer srv.Close()

	c := NewNewsAPIClient(config.NewsAPIConfig{}, 14)
	c.apiKey = "secret"
	c.baseURL = srv.URL
	c.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }

	items, err := c.Fetch(context.Background(), config.Competitor{Name: "jobkorea"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Source != "Korea Herald" || items[0].PublishedAt == nil {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].Source != "NewsAPI" || items[1].PublishedAt != nil {
		t.Errorf("unexpected second item: %+v", items[1])
	}

	c.apiKey = "wrong"
	if _, err := c.Search(context.Background(), "x"); err == nil {
		t.Error("expected error on HTTP 401")
	}
}

type stubSource struct {
	name  string
	items map[string][]Item
	fail  map[string]bool
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(_ context.Context, comp config.Competitor) ([]Item, error) {
	if s.fail[comp.Name] {
		return nil, errors.New("boom")
	}
	return append([]Item(nil), s.items[comp.Name]...), nil
}

func TestCollectDegradesPerCompetitor(t *testing.T) {
	src := &stubSource{
		name: "stub",
		items: map[string][]Item{
			"사람인": {{Title: "a", URL: "https://a"}},
			"리멤버": {{Title: "c", URL: "https://c"}},
		},
		fail: map[string]bool{"잡코리아": true},
	}
	c := NewCollectorWithSources(src)
	r := c.Collect(context.Background(), []config.Competitor{
		{Name: "사람인"}, {Name: "잡코리아"}, {Name: "리멤버"},
	})

	if len(r.Order) != 3 {
		t.Errorf("expected 3 competitors, got %v", r.Order)
	}
	if r.Total() != 2 {
		t.Errorf("expected 2 items, got %d", r.Total())
	}
	if len(r.Errors) != 1 || r.Errors[0].Competitor != "잡코리아" {
		t.Fatalf("expected one error for 잡코리아, got %v", r.Errors)
	}
	var cerr *Error
	if !errors.As(r.Errors[0], &cerr) || cerr.Source != "stub" {
		t.Errorf("unexpected error value %v", r.Errors[0])
	}

	items := r.Items()
	if items[0].Competitor != "사람인" || items[1].Competitor != "리멤버" {
		t.Errorf("expected items tagged in competitor order, got %+v", items)
	}
}

func TestSourceName(t *testing.T) {
	cases := map[string]string{
		"https://blog.saramin.co.kr/rss": "Saramin",
		"https://www.jobkorea.com/feed":  "Jobkorea",
		"not a url":                      "not a url",
	}
	for in, want := range cases {
		if got := sourceName(in); got != want {
			t.Errorf("sourceName(%q) = %q, want %q", in, got, want)
		}
	}
}
