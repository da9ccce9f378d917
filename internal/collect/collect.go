// Package collect gathers news items about each tracked competitor.
package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/TobiSchelling/rivalwatch/internal/config"
)

// Item is one collected news entry.
type Item struct {
	Title       string
	URL         string
	PublishedAt *time.Time
	Source      string
	Summary     string
	Competitor  string
}

// Error reports a failed fetch for one competitor and source. Collection
// continues with the remaining sources.
type Error struct {
	Competitor string
	Source     string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("collecting %s from %s: %v", e.Competitor, e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Source fetches items about one competitor.
type Source interface {
	Name() string
	Fetch(ctx context.Context, comp config.Competitor) ([]Item, error)
}

// Result holds the results of a collection run.
type Result struct {
	ByCompetitor map[string][]Item
	Order        []string
	Errors       []*Error
}

// Items returns every collected item, competitor by competitor in
// configuration order.
func (r *Result) Items() []Item {
	var all []Item
	for _, name := range r.Order {
		all = append(all, r.ByCompetitor[name]...)
	}
	return all
}

// Total returns the number of collected items.
func (r *Result) Total() int {
	n := 0
	for _, items := range r.ByCompetitor {
		n += len(items)
	}
	return n
}

// Collector runs every configured source for every competitor.
type Collector struct {
	sources []Source
}

// NewCollector creates a collector from configuration.
func NewCollector(cfg *config.Config) *Collector {
	var sources []Source
	if cfg.Sources.GoogleNews.Enabled {
		sources = append(sources, NewGoogleNews(cfg.Sources.GoogleNews))
	}
	sources = append(sources, NewFeedSource())
	if cfg.Sources.NewsAPI.Enabled {
		client := NewNewsAPIClient(cfg.Sources.NewsAPI, cfg.Pipeline.LookbackDays)
		if client.IsConfigured() {
			sources = append(sources, client)
		} else {
			log.Warn("NewsAPI enabled but no API key set", "env", cfg.Sources.NewsAPI.APIKeyEnv)
		}
	}
	return NewCollectorWithSources(sources...)
}

// NewCollectorWithSources creates a collector over explicit sources.
func NewCollectorWithSources(sources ...Source) *Collector {
	return &Collector{sources: sources}
}

// Collect fetches items for each competitor. A failing source degrades to no
// items for that competitor and is recorded in Result.Errors.
func (c *Collector) Collect(ctx context.Context, competitors []config.Competitor) *Result {
	r := &Result{ByCompetitor: make(map[string][]Item)}

	for _, comp := range competitors {
		if _, ok := r.ByCompetitor[comp.Name]; !ok {
			r.Order = append(r.Order, comp.Name)
			r.ByCompetitor[comp.Name] = nil
		}

		for _, src := range c.sources {
			if ctx.Err() != nil {
				return r
			}
			items, err := src.Fetch(ctx, comp)
			if err != nil {
				cerr := &Error{Competitor: comp.Name, Source: src.Name(), Err: err}
				log.Warn("collection failed", "competitor", comp.Name, "source", src.Name(), "err", err)
				r.Errors = append(r.Errors, cerr)
				continue
			}
			for i := range items {
				items[i].Competitor = comp.Name
			}
			r.ByCompetitor[comp.Name] = append(r.ByCompetitor[comp.Name], items...)
			if len(items) > 0 {
				log.Debugf("Collected %d items for %s from %s", len(items), comp.Name, src.Name())
			}
		}
	}

	log.Infof("Collection complete: %d items for %d competitors, %d failed fetches",
		r.Total(), len(r.Order), len(r.Errors))
	return r
}
