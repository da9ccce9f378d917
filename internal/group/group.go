// Package group assigns cached facts to competitor groups.
package group

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TobiSchelling/rivalwatch/internal/factcache"
)

// Kind distinguishes tracked competitors from the reserved buckets.
type Kind int

const (
	KindNamed Kind = iota
	KindComparison
	KindUnclassified
)

// Key identifies a group. Build named keys with Named; the reserved keys are
// the Comparison and Unclassified values.
type Key struct {
	kind Kind
	name string
}

var (
	// Comparison collects records that mention several tracked competitors.
	Comparison = Key{kind: KindComparison}
	// Unclassified collects records that match no competitor.
	Unclassified = Key{kind: KindUnclassified}
)

// Named returns the key for a specific competitor.
func Named(name string) Key {
	return Key{kind: KindNamed, name: name}
}

// Kind returns the key's variant.
func (k Key) Kind() Kind { return k.kind }

// Reserved reports whether the key is one of the visibility-only buckets that
// never feed hypothesis generation.
func (k Key) Reserved() bool {
	return k.kind != KindNamed
}

func (k Key) String() string {
	switch k.kind {
	case KindComparison:
		return "comparison article"
	case KindUnclassified:
		return "unclassified"
	}
	return k.name
}

// Rule maps one keyword to a canonical competitor name.
type Rule struct {
	Keyword string
	Company string
}

// KeywordTable is an ordered, read-only keyword→competitor mapping.
type KeywordTable struct {
	rules []Rule
}

// NewKeywordTable copies rules into a table. Rules with an empty keyword or
// company are ignored.
func NewKeywordTable(rules ...Rule) KeywordTable {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		kw := strings.TrimSpace(r.Keyword)
		company := strings.TrimSpace(r.Company)
		if kw == "" || company == "" {
			continue
		}
		out = append(out, Rule{Keyword: strings.ToLower(kw), Company: company})
	}
	return KeywordTable{rules: out}
}

// Rules returns a copy of the table's rules.
func (t KeywordTable) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Len returns the number of rules.
func (t KeywordTable) Len() int { return len(t.rules) }

// Match returns the distinct companies whose keyword appears in text, in
// table order.
func (t KeywordTable) Match(text string) []string {
	lower := strings.ToLower(text)
	var hits []string
	seen := make(map[string]struct{})
	for _, r := range t.rules {
		if !strings.Contains(lower, r.Keyword) {
			continue
		}
		if _, ok := seen[r.Company]; ok {
			continue
		}
		seen[r.Company] = struct{}{}
		hits = append(hits, r.Company)
	}
	return hits
}

// Resolve picks the group for one fact. An explicit company in the fact always
// wins; otherwise the title and url are matched against the keyword table.
// A company spelled like a reserved bucket resolves to that bucket, so reserved
// names never become named groups.
func Resolve(fact map[string]any, meta factcache.Meta, table KeywordTable) Key {
	if company := explicitCompany(fact); company != "" {
		for _, reserved := range []Key{Comparison, Unclassified} {
			if strings.EqualFold(company, reserved.String()) {
				return reserved
			}
		}
		return Named(company)
	}

	hits := table.Match(meta.Title + " " + meta.URL)
	switch len(hits) {
	case 0:
		return Unclassified
	case 1:
		return Named(hits[0])
	default:
		return Comparison
	}
}

func explicitCompany(fact map[string]any) string {
	v, ok := fact["company"]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return strings.TrimSpace(s)
}

// Groups maps keys to payloads. Keys iterate sorted by name; payloads keep
// their input order within a group.
type Groups struct {
	byKey map[Key][]factcache.Payload
}

// GroupPayloads resolves every payload and groups them, preserving input
// order inside each group.
func GroupPayloads(payloads []factcache.Payload, table KeywordTable) *Groups {
	g := &Groups{byKey: make(map[Key][]factcache.Payload)}
	for _, p := range payloads {
		k := Resolve(p.Fact, p.Meta, table)
		g.byKey[k] = append(g.byKey[k], p)
	}
	return g
}

// Keys returns all group keys sorted by their string form.
func (g *Groups) Keys() []Key {
	keys := make([]Key, 0, len(g.byKey))
	for k := range g.byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Get returns the payloads for key.
func (g *Groups) Get(k Key) []factcache.Payload {
	return g.byKey[k]
}

// Len returns the number of groups.
func (g *Groups) Len() int {
	return len(g.byKey)
}

// Sizes returns payload counts by key string, for summaries.
func (g *Groups) Sizes() map[string]int {
	out := make(map[string]int, len(g.byKey))
	for k, ps := range g.byKey {
		out[k.String()] = len(ps)
	}
	return out
}
