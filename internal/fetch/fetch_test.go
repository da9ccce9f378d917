package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>잡코리아 요금제 개편</title></head>
<body>
<nav>menu</nav>
<article>
<h1>잡코리아 요금제 개편</h1>
<p>%s</p>
<p>%s</p>
</article>
</body></html>`

func TestFetchExtractsArticleText(t *testing.T) {
	para := strings.Repeat("잡코리아가 기업 고객 대상 공고 요금제를 전면 개편했다. ", 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, articleHTML, para, para)
	}))
	defer srv.Close()

	text, err := NewContentFetcher(0).Fetch(context.Background(), srv.URL+"/news/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "요금제를 전면 개편했다") {
		t.Errorf("expected article text, got %q", text)
	}
}

func TestFetchShortPageHasNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>short</p></body></html>`)
	}))
	defer srv.Close()

	_, err := NewContentFetcher(0).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("expected ErrNoContent, got %v", err)
	}
}

func TestFetchSkipsFailedDomain(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewContentFetcher(0)
	_, err := f.Fetch(context.Background(), srv.URL+"/a")
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.Code != http.StatusForbidden {
		t.Fatalf("expected HTTP 403 error, got %v", err)
	}

	_, err = f.Fetch(context.Background(), srv.URL+"/b")
	if !errors.Is(err, ErrDomainSkipped) {
		t.Errorf("expected ErrDomainSkipped, got %v", err)
	}
	if hits != 1 {
		t.Errorf("expected one request to the failing host, got %d", hits)
	}
}
