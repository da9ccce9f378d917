package pipeline

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/TobiSchelling/rivalwatch/internal/collect"
	"github.com/TobiSchelling/rivalwatch/internal/compose"
	"github.com/TobiSchelling/rivalwatch/internal/database"
	"github.com/TobiSchelling/rivalwatch/internal/factcache"
	"github.com/TobiSchelling/rivalwatch/internal/gate"
)

// outcome is what happened to one item in the caching stage.
type outcome int

const (
	outcomeSaved outcome = iota
	outcomeDuplicate
	outcomeFailed
	outcomeDeferred
)

func fold(s *compose.CacheSummary, o outcome) {
	switch o {
	case outcomeSaved:
		s.Saved++
	case outcomeDuplicate:
		s.SkippedDup++
	case outcomeFailed:
		s.Failed++
	case outcomeDeferred:
		s.Deferred++
	}
}

// CacheResult holds the results of a cache run.
type CacheResult struct {
	RunResult
	Summary compose.CacheSummary
}

// RunCache collects, gates, extracts and persists facts.
func (p *Pipeline) RunCache(ctx context.Context) *CacheResult {
	r := &CacheResult{RunResult: *p.begin(ModeCache)}
	s := &r.Summary
	s.LookbackDays = p.cfg.Pipeline.LookbackDays
	s.Bucket = p.deps.Store.Bucket()
	r.PeriodID = s.Bucket

	if p.deps.Extractor == nil {
		r.Err = errors.New("no fact extractor configured")
		r.Message = compose.RenderFailure(string(ModeCache), r.Err)
		p.finish(ctx, &r.RunResult, Failed, nil)
		return r
	}

	p.setState(ModeCache, Collecting)
	collected := p.deps.Collector.Collect(ctx, p.cfg.Competitors)
	items := collected.Items()
	s.Collected = len(items)
	s.CollectErrors = len(collected.Errors)
	r.step("Collect", "Found %d items (%d failed fetches)", s.Collected, s.CollectErrors)

	p.setState(ModeCache, Gating)
	unique := gate.Dedup(items, func(it collect.Item) string { return it.URL })
	s.Unique = len(unique)

	rec := p.recency(p.cfg.Pipeline.LookbackDays, p.undatedPolicy())
	var tally gate.Tally
	var recent []collect.Item
	for _, it := range unique {
		if tally.Add(rec.CheckItem(it.PublishedAt)) {
			recent = append(recent, it)
		}
	}
	s.SkippedOld = tally.Old
	s.SkippedUndated = tally.Undated
	r.step("Gate", "%d unique, %d recent (%d old, %d undated)", s.Unique, len(recent), tally.Old, tally.Undated)

	if len(recent) == 0 {
		r.Message = compose.RenderCacheSummary(*s)
		p.finish(ctx, &r.RunResult, EmptyInput, cacheCounts(*s))
		return r
	}

	p.setState(ModeCache, Caching)
	attempts := 0
	for _, it := range recent {
		if ctx.Err() != nil {
			r.Err = ctx.Err()
			break
		}
		o := p.cacheItem(ctx, it, &attempts)
		fold(s, o)
	}
	r.step("Cache", "%d saved, %d already cached, %d failed, %d deferred", s.Saved, s.SkippedDup, s.Failed, s.Deferred)

	if r.Err != nil {
		r.Message = compose.RenderFailure(string(ModeCache), r.Err) + "\n" + compose.RenderCacheSummary(*s)
	} else {
		r.Message = compose.RenderCacheSummary(*s)
	}
	p.finish(ctx, &r.RunResult, Done, cacheCounts(*s))
	return r
}

// cacheItem handles one recent item. Already-cached URLs do not count
// against the extraction cap.
func (p *Pipeline) cacheItem(ctx context.Context, it collect.Item, attempts *int) outcome {
	if p.deps.Store.Seen(it.URL) {
		log.Debug("already cached", "url", it.URL)
		return outcomeDuplicate
	}
	if *attempts >= p.cfg.Pipeline.MaxFactItems {
		return outcomeDeferred
	}
	*attempts++

	rawText := p.rawText(ctx, it)
	fact, err := p.deps.Extractor.Extract(ctx, it.Source, it.URL, it.Title, rawText)
	if err != nil {
		log.Warn("extraction failed", "url", it.URL, "err", err)
		return outcomeFailed
	}

	var published *string
	if it.PublishedAt != nil {
		d := it.PublishedAt.UTC().Format(factcache.BucketFormat)
		published = &d
	}
	if _, err := p.deps.Store.Save(it.URL, it.Source, it.Title, published, fact, ""); err != nil {
		log.Warn("saving fact failed", "url", it.URL, "err", err)
		return outcomeFailed
	}
	log.Infof("Cached fact: %s", it.Title)
	return outcomeSaved
}

// rawText prefers fetched article text, then the feed summary, then the
// title.
func (p *Pipeline) rawText(ctx context.Context, it collect.Item) string {
	if p.deps.Fetcher != nil {
		text, err := p.deps.Fetcher.Fetch(ctx, it.URL)
		if err == nil && text != "" {
			return text
		}
		log.Debug("full text unavailable, using summary", "url", it.URL, "err", err)
	}
	if it.Summary != "" {
		return it.Summary
	}
	return it.Title
}

func cacheCounts(s compose.CacheSummary) map[string]int {
	return map[string]int{
		"collected":       s.Collected,
		"collect_errors":  s.CollectErrors,
		"unique":          s.Unique,
		"skipped_old":     s.SkippedOld,
		"skipped_undated": s.SkippedUndated,
		"skipped_dup":     s.SkippedDup,
		"saved":           s.Saved,
		"failed":          s.Failed,
		"deferred":        s.Deferred,
	}
}

var _ RunStore = (*database.DB)(nil)
