package factcache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedClock(s string) func() time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return func() time.Time { return t }
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir()).WithClock(fixedClock("2024-03-15T09:30:00Z"))
}

func ptr(s string) *string { return &s }

func TestKeyIsStableAndTruncated(t *testing.T) {
	k1 := Key("https://example.com/a")
	k2 := Key("https://example.com/a")
	if k1 != k2 {
		t.Errorf("expected stable key, got %q and %q", k1, k2)
	}
	if len(k1) != KeyWidth {
		t.Errorf("expected key width %d, got %d", KeyWidth, len(k1))
	}
	if Key("https://example.com/b") == k1 {
		t.Error("expected different urls to produce different keys")
	}
}

func TestPathUsesTodayBucket(t *testing.T) {
	s := openTestStore(t)
	path := s.Path("https://example.com/a", "")
	want := filepath.Join(s.Root(), "2024-03-15", Key("https://example.com/a")+".json")
	if path != want {
		t.Errorf("expected %q, got %q", want, path)
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	url := "https://example.com/news/1"

	if s.Exists(url, "") {
		t.Fatal("expected payload to be absent before save")
	}

	path, err := s.Save(url, "Google News RSS", "사람인 신규 서비스", ptr("2024-03-14"),
		map[string]any{"company": "사람인"}, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(path, filepath.Join(s.Root(), "2024-03-15")) {
		t.Errorf("expected path in today's bucket, got %q", path)
	}
	if !s.Exists(url, "") {
		t.Error("expected payload to exist after save")
	}

	p, err := s.Load(url, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Meta.URL != url || p.Meta.Source != "Google News RSS" {
		t.Errorf("unexpected meta: %+v", p.Meta)
	}
	if p.Meta.PublishedDate == nil || *p.Meta.PublishedDate != "2024-03-14" {
		t.Errorf("expected published_date 2024-03-14, got %v", p.Meta.PublishedDate)
	}
	if p.Meta.CollectedAt != "2024-03-15T09:30:00Z" {
		t.Errorf("expected collected_at from clock, got %q", p.Meta.CollectedAt)
	}
	if p.Fact["company"] != "사람인" {
		t.Errorf("expected company fact, got %v", p.Fact["company"])
	}
}

func TestSaveWritesUnescapedJSON(t *testing.T) {
	s := openTestStore(t)
	path, err := s.Save("https://example.com/?a=1&b=2", "src", "잡코리아 <공지>", nil, nil, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	data, _ := os.ReadFile(path)
	body := string(data)
	if !strings.Contains(body, "잡코리아 <공지>") {
		t.Errorf("expected raw title in file, got:\n%s", body)
	}
	if !strings.Contains(body, `"published_date": null`) {
		t.Errorf("expected null published_date, got:\n%s", body)
	}
	if !strings.Contains(body, `"fact": {}`) {
		t.Errorf("expected empty fact object, got:\n%s", body)
	}
}

func TestLoadMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Load("https://example.com/missing", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSeenAcrossBuckets(t *testing.T) {
	s := openTestStore(t)
	url := "https://example.com/old"
	if _, err := s.Save(url, "src", "t", nil, nil, "2024-03-01"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if s.Exists(url, "") {
		t.Error("expected Exists to be bucket-scoped")
	}
	if !s.Seen(url) {
		t.Error("expected Seen to find payload in an older bucket")
	}
	if s.Seen("https://example.com/other") {
		t.Error("expected Seen false for unknown url")
	}
}

func TestLoadAllSkipsCorrupt(t *testing.T) {
	s := openTestStore(t)
	s.Save("https://a.com", "src", "A", nil, map[string]any{"n": 1}, "2024-03-10")
	s.Save("https://b.com", "src", "B", nil, map[string]any{"n": 2}, "2024-03-15")

	bad := filepath.Join(s.Root(), "2024-03-12", "deadbeefdeadbeef.json")
	os.MkdirAll(filepath.Dir(bad), 0o755)
	os.WriteFile(bad, []byte("{not json"), 0o644)
	os.WriteFile(filepath.Join(s.Root(), "2024-03-12", "notes.txt"), []byte("ignore"), 0o644)

	all, err := s.LoadAll()
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(all))
	}
	if all[0].Meta.Title != "A" || all[1].Meta.Title != "B" {
		t.Errorf("expected bucket order A, B; got %q, %q", all[0].Meta.Title, all[1].Meta.Title)
	}
	if all[0].Path == "" {
		t.Error("expected Path to be set on loaded payload")
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 json files counted, got %d", n)
	}
}

func TestLoadAllMissingRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"))
	all, err := s.LoadAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected no payloads, got %d", len(all))
	}
}
