package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/TobiSchelling/rivalwatch/internal/factcache"
)

// mockClassifier returns a level keyed by the fact's "id" field.
type mockClassifier struct {
	levels map[string]Level
	fail   map[string]bool
}

func (m *mockClassifier) Classify(_ context.Context, fact map[string]any) (*Classification, error) {
	id, _ := fact["id"].(string)
	if m.fail[id] {
		return nil, errors.New("model unavailable")
	}
	return &Classification{Level: m.levels[id], Reason: "test"}, nil
}

func payload(id string) factcache.Payload {
	return factcache.Payload{
		Meta: factcache.Meta{URL: "https://example.com/" + id, Title: id},
		Fact: map[string]any{"id": id},
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"A": LevelA, " b ": LevelB, "c": LevelC} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseLevel("D"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestFilterSignalsKeepsMaterial(t *testing.T) {
	c := &mockClassifier{levels: map[string]Level{"1": LevelA, "2": LevelC, "3": LevelB}}
	r := FilterSignals(context.Background(), c, []factcache.Payload{payload("1"), payload("2"), payload("3")})

	if len(r.Kept) != 2 {
		t.Fatalf("expected 2 kept, got %d", len(r.Kept))
	}
	if r.Kept[0].Payload.Meta.Title != "1" || r.Kept[1].Payload.Meta.Title != "3" {
		t.Errorf("expected order 1, 3; got %q, %q", r.Kept[0].Payload.Meta.Title, r.Kept[1].Payload.Meta.Title)
	}
	if r.Kept[0].Signal.Level != LevelA {
		t.Errorf("expected envelope to carry level A, got %q", r.Kept[0].Signal.Level)
	}
	if r.Dropped != 1 || r.Failed != 0 {
		t.Errorf("expected 1 dropped, 0 failed; got %d, %d", r.Dropped, r.Failed)
	}
	if got := r.Payloads(); len(got) != 2 || got[1].Meta.Title != "3" {
		t.Errorf("unexpected payloads %v", got)
	}
}

func TestFilterSignalsIsolatesFailures(t *testing.T) {
	c := &mockClassifier{
		levels: map[string]Level{"2": LevelB},
		fail:   map[string]bool{"1": true},
	}
	r := FilterSignals(context.Background(), c, []factcache.Payload{payload("1"), payload("2")})

	if r.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", r.Failed)
	}
	if len(r.Kept) != 1 || r.Kept[0].Payload.Meta.Title != "2" {
		t.Errorf("expected the second fact to survive, got %v", r.Kept)
	}
}

func TestFilterSignalsAllLowSignal(t *testing.T) {
	c := &mockClassifier{levels: map[string]Level{"1": LevelC, "2": LevelC}}
	r := FilterSignals(context.Background(), c, []factcache.Payload{payload("1"), payload("2")})
	if len(r.Kept) != 0 || r.Dropped != 2 {
		t.Errorf("expected nothing kept and 2 dropped, got %d kept, %d dropped", len(r.Kept), r.Dropped)
	}
}
