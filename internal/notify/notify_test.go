package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/rivalwatch/internal/config"
)

func TestSlackWebhook(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	err := NewSlackWebhook(srv.URL).Send(context.Background(), Message{Name: "cache", Text: "*hello*"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["text"] != "*hello*" {
		t.Errorf("expected text payload, got %v", got)
	}
}

func TestSlackWebhookStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	err := NewSlackWebhook(srv.URL).Send(context.Background(), Message{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "403 invalid_token") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	if err := NewFileSink(dir).Send(context.Background(), Message{Name: "strategy", Text: "## 사람인\n"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	md, err := os.ReadFile(filepath.Join(dir, "strategy.md"))
	if err != nil || string(md) != "## 사람인\n" {
		t.Errorf("unexpected markdown %q, %v", md, err)
	}
	html, err := os.ReadFile(filepath.Join(dir, "strategy.html"))
	if err != nil || !strings.Contains(string(html), "<h2>사람인</h2>") {
		t.Errorf("unexpected html %q, %v", html, err)
	}
}

type failingSink struct{ calls int }

func (f *failingSink) Send(context.Context, Message) error {
	f.calls++
	return errors.New("down")
}

func TestMultiAttemptsEverySink(t *testing.T) {
	var buf bytes.Buffer
	first := &failingSink{}
	m := Multi{first, NewWriter(&buf)}

	err := m.Send(context.Background(), Message{Text: "report\n"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Errorf("expected joined error, got %v", err)
	}
	if first.calls != 1 || buf.String() != "report\n" {
		t.Errorf("expected every sink to be attempted, got calls=%d out=%q", first.calls, buf.String())
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{Sink: config.Sink{SlackWebhookURL: "https://hooks.example", ReportDir: t.TempDir(), Stdout: true}}
	if n := len(FromConfig(cfg)); n != 3 {
		t.Errorf("expected 3 sinks, got %d", n)
	}
	if n := len(FromConfig(&config.Config{})); n != 0 {
		t.Errorf("expected no sinks, got %d", n)
	}
}
