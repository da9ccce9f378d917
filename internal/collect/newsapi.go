package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/rivalwatch/internal/config"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPIClient searches NewsAPI for each competitor name.
type NewsAPIClient struct {
	apiKey   string
	language string
	pageSize int
	daysBack int
	baseURL  string
	client   *http.Client
	now      func() time.Time
}

// NewNewsAPIClient creates a new NewsAPI client.
func NewNewsAPIClient(cfg config.NewsAPIConfig, daysBack int) *NewsAPIClient {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &NewsAPIClient{
		apiKey:   os.Getenv(cfg.APIKeyEnv),
		language: cfg.Language,
		pageSize: pageSize,
		daysBack: daysBack,
		baseURL:  newsAPIBaseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		now:      time.Now,
	}
}

// IsConfigured returns whether the API key is available.
func (c *NewsAPIClient) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *NewsAPIClient) Name() string { return "NewsAPI" }

func (c *NewsAPIClient) Fetch(ctx context.Context, comp config.Competitor) ([]Item, error) {
	query := comp.Name
	if strings.TrimSpace(comp.Query) != "" {
		query = comp.Query
	}
	return c.Search(ctx, query)
}

// Search returns articles matching query within the lookback window.
func (c *NewsAPIClient) Search(ctx context.Context, query string) ([]Item, error) {
	now := c.now().UTC()
	params := url.Values{
		"q":        {query},
		"from":     {now.AddDate(0, 0, -c.daysBack).Format("2006-01-02")},
		"to":       {now.Format("2006-01-02")},
		"pageSize": {strconv.Itoa(c.pageSize)},
		"sortBy":   {"publishedAt"},
	}
	if c.language != "" {
		params.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NewsAPI HTTP %d", resp.StatusCode)
	}

	var result struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Content     string `json:"content"`
			Description string `json:"description"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding NewsAPI response: %w", err)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("NewsAPI status %s: %s", result.Status, result.Message)
	}

	var items []Item
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" || a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		var published *time.Time
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			t = t.UTC()
			published = &t
		}

		summary := a.Description
		if summary == "" {
			summary = a.Content
		}

		source := "NewsAPI"
		if a.Source.Name != "" {
			source = a.Source.Name
		}

		items = append(items, Item{
			Title:       strings.TrimSpace(a.Title),
			URL:         a.URL,
			PublishedAt: published,
			Source:      source,
			Summary:     strings.TrimSpace(summary),
		})
	}
	return items, nil
}
