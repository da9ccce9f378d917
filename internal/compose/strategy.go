// Package compose renders reports and run summaries as Slack-flavoured
// markdown. Every renderer is a pure function of its input.
package compose

import (
	"sort"
	"strings"

	"github.com/TobiSchelling/rivalwatch/internal/analyze"
	"github.com/TobiSchelling/rivalwatch/internal/factcache"
)

const (
	maxEvidence = 4
	maxLinks    = 3

	strategyTitle      = "*[Weekly competitor strategy report]*"
	missingHypothesis  = "(no hypothesis)"
	missingTitle       = "(untitled)"
	defaultCompanyName = "Our"
)

// StrategyInput is everything the strategy report shows. All maps are keyed
// by group name.
type StrategyInput struct {
	Company    string
	Hypotheses map[string]*analyze.Hypothesis
	Responses  map[string]*analyze.ResponseOptions
	Payloads   map[string][]factcache.Payload
}

// RenderStrategy renders the strategy report. Groups appear in lexicographic
// key order so identical input always yields identical text.
func RenderStrategy(in StrategyInput) string {
	keys := make([]string, 0, len(in.Hypotheses))
	for k := range in.Hypotheses {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	company := in.Company
	if company == "" {
		company = defaultCompanyName
	}

	var b strings.Builder
	b.WriteString(strategyTitle + "\n\n")

	for _, key := range keys {
		hyp := in.Hypotheses[key]
		if hyp == nil {
			hyp = &analyze.Hypothesis{}
		}

		b.WriteString("*■ " + key + "*\n")

		statement := strings.TrimSpace(hyp.Hypothesis)
		if statement == "" {
			statement = missingHypothesis
		}
		b.WriteString("- Hypothesis: " + statement + "\n")

		if ev := firstN(hyp.Evidence, maxEvidence); len(ev) > 0 {
			b.WriteString("  - Evidence:\n")
			for _, e := range ev {
				b.WriteString("    - " + e + "\n")
			}
		}

		if links := EvidenceLinks(in.Payloads[key], maxLinks); len(links) > 0 {
			b.WriteString("  - Sources:\n")
			for _, l := range links {
				b.WriteString("    - " + l.Title + " — " + l.URL + "\n")
			}
		}

		b.WriteString("- → " + company + " response options:\n")
		if opts := in.Responses[key]; opts != nil {
			if o := opts.DoNothing; o != nil {
				b.WriteString("  - Do Nothing: " + o.Why + "\n")
			}
			if o := opts.Defensive; o != nil {
				b.WriteString("  - Defensive: " + strings.Join(o.Actions, ", ") + "\n")
			}
			if o := opts.Offensive; o != nil {
				b.WriteString("  - Offensive: " + strings.Join(o.Actions, ", ") + "\n")
			}
		} else {
			b.WriteString("  - (response options unavailable)\n")
		}
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String()) + "\n"
}

// Link is a source reference shown under a group.
type Link struct {
	Title string
	URL   string
}

// EvidenceLinks returns the first limit payloads that carry a URL, in stored
// order.
func EvidenceLinks(payloads []factcache.Payload, limit int) []Link {
	var links []Link
	for _, p := range payloads {
		if len(links) >= limit {
			break
		}
		if p.Meta.URL == "" {
			continue
		}
		title := p.Meta.Title
		if title == "" {
			title = missingTitle
		}
		links = append(links, Link{Title: title, URL: p.Meta.URL})
	}
	return links
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
