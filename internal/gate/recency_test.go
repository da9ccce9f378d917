package gate

import (
	"testing"
	"time"

	"github.com/TobiSchelling/rivalwatch/internal/factcache"
)

func at(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func ptr(s string) *string { return &s }

func TestCutoff(t *testing.T) {
	r := Recency{LookbackDays: 14, Now: at("2024-03-15T00:00:00Z")}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !r.Cutoff().Equal(want) {
		t.Errorf("expected cutoff %v, got %v", want, r.Cutoff())
	}
}

func TestCheckMetaBoundaryIsInclusive(t *testing.T) {
	// Later in the day than midnight: the boundary date must still be kept.
	for _, now := range []string{"2024-03-15T00:00:00Z", "2024-03-15T18:45:00Z"} {
		r := Recency{LookbackDays: 14, Now: at(now)}

		if v := r.CheckMeta(factcache.Meta{PublishedDate: ptr("2024-03-01")}); v != Keep {
			t.Errorf("now=%s: expected 2024-03-01 kept, got %v", now, v)
		}
		if v := r.CheckMeta(factcache.Meta{PublishedDate: ptr("2024-02-29")}); v != Old {
			t.Errorf("now=%s: expected 2024-02-29 old, got %v", now, v)
		}
	}
}

func TestCheckMetaFallsBackToCollectedAt(t *testing.T) {
	r := Recency{LookbackDays: 14, Now: at("2024-03-15T12:00:00Z")}

	recent := factcache.Meta{PublishedDate: ptr("not a date"), CollectedAt: "2024-03-10T08:00:00Z"}
	if v := r.CheckMeta(recent); v != Keep {
		t.Errorf("expected recent collected_at kept, got %v", v)
	}

	stale := factcache.Meta{CollectedAt: "2024-02-01T08:00:00+00:00"}
	if v := r.CheckMeta(stale); v != Old {
		t.Errorf("expected stale collected_at old, got %v", v)
	}

	lenient := factcache.Meta{CollectedAt: "2024-03-14 10:00:00"}
	if v := r.CheckMeta(lenient); v != Keep {
		t.Errorf("expected lenient timestamp kept, got %v", v)
	}
}

func TestCheckMetaUndatedRejected(t *testing.T) {
	r := Recency{LookbackDays: 14, Undated: UndatedInclude, Now: at("2024-03-15T12:00:00Z")}
	if v := r.CheckMeta(factcache.Meta{}); v != Undated {
		t.Errorf("expected undated payload rejected, got %v", v)
	}
	if v := r.CheckMeta(factcache.Meta{CollectedAt: "garbage"}); v != Undated {
		t.Errorf("expected unparseable payload rejected, got %v", v)
	}
}

func TestCheckItemPolicy(t *testing.T) {
	now := at("2024-03-15T12:00:00Z")
	exclude := Recency{LookbackDays: 14, Now: now}
	include := Recency{LookbackDays: 14, Undated: UndatedInclude, Now: now}

	if v := exclude.CheckItem(nil); v != Undated {
		t.Errorf("expected undated under exclude policy, got %v", v)
	}
	if v := include.CheckItem(nil); v != Keep {
		t.Errorf("expected keep under include policy, got %v", v)
	}

	fresh := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	old := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if v := exclude.CheckItem(&fresh); v != Keep {
		t.Errorf("expected fresh item kept, got %v", v)
	}
	if v := include.CheckItem(&old); v != Old {
		t.Errorf("expected old item rejected, got %v", v)
	}
}

func TestTally(t *testing.T) {
	var tally Tally
	kept := 0
	for _, v := range []Verdict{Keep, Old, Undated, Keep, Old} {
		if tally.Add(v) {
			kept++
		}
	}
	if kept != 2 || tally.Kept != 2 || tally.Old != 2 || tally.Undated != 1 {
		t.Errorf("unexpected tally %+v (kept=%d)", tally, kept)
	}
}
