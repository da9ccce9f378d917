package gate

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/TobiSchelling/rivalwatch/internal/factcache"
)

// UndatedPolicy decides what happens to freshly collected items without a
// publication time.
type UndatedPolicy int

const (
	UndatedExclude UndatedPolicy = iota
	UndatedInclude
)

func (p UndatedPolicy) String() string {
	if p == UndatedInclude {
		return "include"
	}
	return "exclude"
}

// Verdict is the outcome of a recency check.
type Verdict int

const (
	Keep Verdict = iota
	Old
	Undated
)

func (v Verdict) String() string {
	switch v {
	case Keep:
		return "keep"
	case Old:
		return "old"
	case Undated:
		return "undated"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Recency accepts records whose best-available timestamp falls inside the
// trailing lookback window.
type Recency struct {
	LookbackDays int
	Undated      UndatedPolicy
	Now          func() time.Time
}

// Cutoff returns now (UTC) minus the lookback window.
func (r Recency) Cutoff() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return now().UTC().AddDate(0, 0, -r.LookbackDays)
}

// CheckItem applies the gate to a freshly collected item.
func (r Recency) CheckItem(published *time.Time) Verdict {
	if published == nil || published.IsZero() {
		if r.Undated == UndatedInclude {
			return Keep
		}
		return Undated
	}
	if published.UTC().Before(r.Cutoff()) {
		return Old
	}
	return Keep
}

// CheckMeta applies the gate to cached payload metadata. published_date wins
// over collected_at; a payload with neither usable value is rejected as
// undated regardless of policy.
func (r Recency) CheckMeta(meta factcache.Meta) Verdict {
	if meta.PublishedDate != nil {
		if day, err := time.Parse(factcache.BucketFormat, strings.TrimSpace(*meta.PublishedDate)); err == nil {
			return r.checkDay(day)
		}
	}
	if ts, ok := parseTimestamp(meta.CollectedAt); ok {
		if ts.Before(r.Cutoff()) {
			return Old
		}
		return Keep
	}
	return Undated
}

// checkDay compares calendar dates so the boundary day itself is inside the
// window.
func (r Recency) checkDay(day time.Time) Verdict {
	c := r.Cutoff()
	cutoffDay := time.Date(c.Year(), c.Month(), c.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(cutoffDay) {
		return Old
	}
	return Keep
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// Tally counts recency verdicts.
type Tally struct {
	Kept    int
	Old     int
	Undated int
}

// Add records one verdict and reports whether the record was kept.
func (t *Tally) Add(v Verdict) bool {
	switch v {
	case Keep:
		t.Kept++
		return true
	case Old:
		t.Old++
	case Undated:
		t.Undated++
	}
	return false
}
