// Package factcache stores extracted facts on disk, one JSON file per URL.
//
// Layout (version 1):
//
//	<root>/<YYYY-MM-DD>/<key>.json
//
// where key is the first 16 hex characters of sha256(url) and the date
// directory is the UTC day the payload was saved. Changing KeyWidth or the
// bucket format orphans everything already cached, so bump LayoutVersion and
// migrate when either changes.
package factcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	LayoutVersion = 1
	KeyWidth      = 16
	BucketFormat  = "2006-01-02"
)

// ErrNotFound is returned by Load when no payload exists for the URL.
var ErrNotFound = errors.New("fact not found")

// Meta describes where a fact came from.
type Meta struct {
	URL           string  `json:"url"`
	Source        string  `json:"source"`
	Title         string  `json:"title"`
	PublishedDate *string `json:"published_date"`
	CollectedAt   string  `json:"collected_at"`
}

// Payload is the unit of durable state: one extracted fact and its metadata.
type Payload struct {
	Meta Meta           `json:"meta"`
	Fact map[string]any `json:"fact"`

	// Path is the file the payload was read from. Not persisted.
	Path string `json:"-"`
}

// Store is a date-bucketed, content-addressed fact store.
type Store struct {
	root string
	now  func() time.Time
}

// New creates a store rooted at dir. The directory is created lazily on Save.
func New(dir string) *Store {
	return &Store{root: dir, now: time.Now}
}

// WithClock returns a copy of the store that uses now for bucket and
// collected_at timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{root: s.root, now: now}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Key returns the identity key for a URL.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:KeyWidth]
}

// Bucket returns today's UTC bucket name.
func (s *Store) Bucket() string {
	return s.now().UTC().Format(BucketFormat)
}

// Path returns the payload path for url in bucket. An empty bucket means today.
func (s *Store) Path(url, bucket string) string {
	if bucket == "" {
		bucket = s.Bucket()
	}
	return filepath.Join(s.root, bucket, Key(url)+".json")
}

// Exists reports whether a payload for url is stored in bucket.
func (s *Store) Exists(url, bucket string) bool {
	_, err := os.Stat(s.Path(url, bucket))
	return err == nil
}

// Seen reports whether a payload for url is stored in any bucket.
func (s *Store) Seen(url string) bool {
	matches, err := filepath.Glob(filepath.Join(s.root, "*", Key(url)+".json"))
	if err != nil {
		return false
	}
	return len(matches) > 0
}

// Load reads the payload for url from bucket.
func (s *Store) Load(url, bucket string) (*Payload, error) {
	path := s.Path(url, bucket)
	p, err := readPayload(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Save writes a payload for url and returns its path. The write goes through
// a temp file and rename so readers never see a partial payload.
func (s *Store) Save(url, source, title string, publishedDate *string, fact map[string]any, bucket string) (string, error) {
	path := s.Path(url, bucket)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating bucket: %w", err)
	}

	if fact == nil {
		fact = map[string]any{}
	}
	payload := Payload{
		Meta: Meta{
			URL:           url,
			Source:        source,
			Title:         title,
			PublishedDate: publishedDate,
			CollectedAt:   s.now().UTC().Format(time.RFC3339),
		},
		Fact: fact,
	}

	tmp, err := os.CreateTemp(dir, ".fact-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing payload: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("committing payload: %w", err)
	}
	return path, nil
}

// LoadAll returns every stored payload across all buckets in lexical path
// order. Unreadable or malformed files are skipped.
func (s *Store) LoadAll() ([]Payload, error) {
	if _, err := os.Stat(s.root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var out []Payload
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Debug("skipping unreadable cache entry", "path", path, "err", err)
			if d != nil && d.IsDir() && path != s.root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isPayloadFile(d.Name()) {
			return nil
		}
		p, err := readPayload(path)
		if err != nil {
			log.Debug("skipping corrupt fact", "path", path, "err", err)
			return nil
		}
		out = append(out, *p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning fact cache: %w", err)
	}
	return out, nil
}

// Count returns the number of payload files in the store.
func (s *Store) Count() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, "*", "*.json"))
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

func isPayloadFile(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}

func readPayload(path string) (*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if p.Fact == nil {
		p.Fact = map[string]any{}
	}
	p.Path = path
	return &p, nil
}
