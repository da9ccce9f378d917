package pipeline

import (
	"context"

	"github.com/TobiSchelling/rivalwatch/internal/collect"
	"github.com/TobiSchelling/rivalwatch/internal/compose"
	"github.com/TobiSchelling/rivalwatch/internal/database"
	"github.com/TobiSchelling/rivalwatch/internal/gate"
)

// DraftResult holds the results of a draft run.
type DraftResult struct {
	RunResult
	Items map[string][]collect.Item
}

// RunDraft collects news and sends a digest of the last report_output_days.
// Undated items are kept and marked in the digest.
func (p *Pipeline) RunDraft(ctx context.Context) *DraftResult {
	r := &DraftResult{RunResult: *p.begin(ModeDraft), Items: make(map[string][]collect.Item)}
	days := p.cfg.Pipeline.ReportOutputDays

	p.setState(ModeDraft, Collecting)
	collected := p.deps.Collector.Collect(ctx, p.cfg.Competitors)
	r.step("Collect", "Found %d items (%d failed fetches)", collected.Total(), len(collected.Errors))

	p.setState(ModeDraft, Gating)
	rec := p.recency(days, gate.UndatedInclude)
	r.PeriodID = database.MakePeriodID(rec.Cutoff(), p.deps.Now())
	var tally gate.Tally
	for _, name := range collected.Order {
		items := gate.Dedup(collected.ByCompetitor[name], func(it collect.Item) string { return it.URL })
		for _, it := range items {
			if tally.Add(rec.CheckItem(it.PublishedAt)) {
				r.Items[name] = append(r.Items[name], it)
			}
		}
	}
	r.step("Gate", "%d items within %d days", tally.Kept, days)

	p.setState(ModeDraft, Rendering)
	r.Message = compose.RenderDraft(compose.DraftInput{
		Days:        days,
		GeneratedAt: p.deps.Now(),
		Order:       collected.Order,
		Items:       r.Items,
	})

	p.finish(ctx, &r.RunResult, Done, map[string]int{
		"collected":      collected.Total(),
		"collect_errors": len(collected.Errors),
		"kept":           tally.Kept,
		"skipped_old":    tally.Old,
	})
	return r
}
