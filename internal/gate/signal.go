package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/TobiSchelling/rivalwatch/internal/factcache"
)

// Level is a coarse strategic-signal grade assigned to a fact.
type Level string

const (
	LevelA Level = "A" // pricing, business model, org, investment, core product
	LevelB Level = "B" // features, partnerships, target expansion, experiments
	LevelC Level = "C" // campaigns, interviews, promotion
)

// ParseLevel normalizes a classifier level string.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(strings.TrimSpace(s))); l {
	case LevelA, LevelB, LevelC:
		return l, nil
	}
	return "", fmt.Errorf("unknown signal level %q", s)
}

// Material reports whether the level carries strategic signal.
func (l Level) Material() bool {
	return l == LevelA || l == LevelB
}

// Classification is the classifier's verdict on one fact.
type Classification struct {
	Level         Level  `json:"signal_level"`
	Reason        string `json:"reason"`
	EventLike     string `json:"is_event_like"`
	NeedsFollowup bool   `json:"needs_followup"`
}

// Classifier assigns a signal level to a fact.
type Classifier interface {
	Classify(ctx context.Context, fact map[string]any) (*Classification, error)
}

// Envelope is a fact annotated with its signal classification.
type Envelope struct {
	Payload factcache.Payload
	Signal  Classification
}

// SignalResult holds the outcome of filtering one group.
type SignalResult struct {
	Kept    []Envelope
	Dropped int
	Failed  int
}

// Payloads returns the kept payloads in input order.
func (r *SignalResult) Payloads() []factcache.Payload {
	out := make([]factcache.Payload, len(r.Kept))
	for i, e := range r.Kept {
		out[i] = e.Payload
	}
	return out
}

// FilterSignals classifies each payload's fact and keeps only material ones.
// A failed classification drops that fact and moves on.
func FilterSignals(ctx context.Context, c Classifier, payloads []factcache.Payload) *SignalResult {
	r := &SignalResult{}
	for _, p := range payloads {
		cls, err := c.Classify(ctx, p.Fact)
		if err != nil {
			log.Warnf("Signal classification failed for %s: %v", p.Meta.URL, err)
			r.Failed++
			continue
		}
		if !cls.Level.Material() {
			log.Debugf("Dropped [%s]: %s", cls.Level, p.Meta.Title)
			r.Dropped++
			continue
		}
		r.Kept = append(r.Kept, Envelope{Payload: p, Signal: *cls})
	}
	return r
}
