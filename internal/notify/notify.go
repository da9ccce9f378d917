// Package notify delivers run messages to Slack, report files and stdout.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/TobiSchelling/rivalwatch/internal/compose"
	"github.com/TobiSchelling/rivalwatch/internal/config"
)

// Message is one run outcome to deliver.
type Message struct {
	// Name is a short file-safe label, e.g. "strategy" or "cache".
	Name string
	Text string
}

// Sink delivers a message.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// SlackWebhook posts messages to a Slack incoming webhook.
type SlackWebhook struct {
	url    string
	client *http.Client
}

// NewSlackWebhook creates a Slack sink.
func NewSlackWebhook(url string) *SlackWebhook {
	return &SlackWebhook{url: url, client: &http.Client{Timeout: 20 * time.Second}}
}

func (s *SlackWebhook) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(map[string]string{"text": msg.Text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook failed: %d %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}

// FileSink writes each message as <name>.md and <name>.html under a
// directory, replacing the previous report of the same name.
type FileSink struct {
	dir string
}

// NewFileSink creates a file sink rooted at dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (f *FileSink) Send(_ context.Context, msg Message) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	name := msg.Name
	if name == "" {
		name = "report"
	}

	mdPath := filepath.Join(f.dir, name+".md")
	if err := os.WriteFile(mdPath, []byte(msg.Text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mdPath, err)
	}

	page, err := compose.ToHTML(name, msg.Text)
	if err != nil {
		return err
	}
	htmlPath := filepath.Join(f.dir, name+".html")
	if err := os.WriteFile(htmlPath, []byte(page), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", htmlPath, err)
	}
	log.Infof("Report written to %s", mdPath)
	return nil
}

// Writer prints messages to an io.Writer, normally stdout.
type Writer struct {
	w io.Writer
}

// NewWriter creates a sink that prints to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Send(_ context.Context, msg Message) error {
	_, err := io.WriteString(w.w, msg.Text)
	return err
}

// Multi fans a message out to several sinks. Every sink is attempted; the
// errors are joined.
type Multi []Sink

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the configured sinks.
func FromConfig(cfg *config.Config) Multi {
	var sinks Multi
	if url := cfg.SlackWebhook(); url != "" {
		sinks = append(sinks, NewSlackWebhook(url))
	}
	if cfg.Sink.ReportDir != "" {
		sinks = append(sinks, NewFileSink(cfg.Sink.ReportDir))
	}
	if cfg.Sink.Stdout {
		sinks = append(sinks, NewWriter(os.Stdout))
	}
	return sinks
}
