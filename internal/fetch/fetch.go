// Package fetch retrieves full article text for items that only carry a
// feed snippet.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	readability "github.com/go-shiori/go-readability"
)

const (
	minTextLen = 100
	maxBody    = 5 << 20
)

// ErrDomainSkipped is returned for URLs on a domain that already answered
// with an HTTP error during this run.
var ErrDomainSkipped = errors.New("domain previously failed")

// ErrNoContent is returned when readability finds no usable text.
var ErrNoContent = errors.New("no extractable content")

// HTTPError is a non-success status from the article host.
type HTTPError struct {
	Code int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
}

// ContentFetcher fetches full article text via HTTP + readability extraction.
type ContentFetcher struct {
	client *http.Client

	mu            sync.Mutex
	failedDomains map[string]struct{}
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(timeout time.Duration) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ContentFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		failedDomains: make(map[string]struct{}),
	}
}

// Fetch returns the readable text of the article at articleURL. After an
// HTTP error, later URLs on the same domain fail fast with ErrDomainSkipped.
func (f *ContentFetcher) Fetch(ctx context.Context, articleURL string) (string, error) {
	parsed, err := url.Parse(articleURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	domain := strings.ToLower(parsed.Host)

	if f.domainFailed(domain) {
		return "", ErrDomainSkipped
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "rivalwatch/1.0 (competitor news monitor)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		f.markFailed(domain)
		log.Debug("HTTP error, skipping remaining URLs from domain", "url", articleURL, "domain", domain)
		return "", &HTTPError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), resp.Request.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoContent, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len([]rune(text)) < minTextLen {
		return "", ErrNoContent
	}
	return text, nil
}

func (f *ContentFetcher) domainFailed(domain string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.failedDomains[domain]
	return ok
}

func (f *ContentFetcher) markFailed(domain string) {
	if domain == "" {
		return
	}
	f.mu.Lock()
	f.failedDomains[domain] = struct{}{}
	f.mu.Unlock()
}
