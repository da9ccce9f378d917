package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/TobiSchelling/rivalwatch/internal/analyze"
	"github.com/TobiSchelling/rivalwatch/internal/compose"
	"github.com/TobiSchelling/rivalwatch/internal/database"
	"github.com/TobiSchelling/rivalwatch/internal/factcache"
	"github.com/TobiSchelling/rivalwatch/internal/gate"
	"github.com/TobiSchelling/rivalwatch/internal/group"
)

// maxHypothesisFacts bounds the facts sent to hypothesis generation per group.
const maxHypothesisFacts = 8

// StrategyResult holds the results of a strategy run.
type StrategyResult struct {
	RunResult
	Stats    compose.StrategyStats
	Report   string
	Outcomes []database.GroupOutcome
}

// RunStrategy loads cached facts and produces the strategy report.
func (p *Pipeline) RunStrategy(ctx context.Context) *StrategyResult {
	r := &StrategyResult{RunResult: *p.begin(ModeStrategy)}
	st := &r.Stats
	st.LookbackDays = p.cfg.Pipeline.LookbackDays

	if p.deps.Classifier == nil || p.deps.Hypothesizer == nil || p.deps.Responder == nil {
		r.Err = errors.New("no analysis services configured")
		r.Message = compose.RenderFailure(string(ModeStrategy), r.Err)
		p.finish(ctx, &r.RunResult, Failed, nil)
		return r
	}

	p.setState(ModeStrategy, Gating)
	rec := p.recency(p.cfg.Pipeline.LookbackDays, gate.UndatedExclude)
	r.PeriodID = database.MakePeriodID(rec.Cutoff(), p.deps.Now())

	payloads, err := p.deps.Store.LoadAll()
	if err != nil {
		r.Err = fmt.Errorf("loading fact cache: %w", err)
		r.Message = compose.RenderFailure(string(ModeStrategy), r.Err)
		p.finish(ctx, &r.RunResult, Failed, nil)
		return r
	}
	st.Loaded = len(payloads)

	var tally gate.Tally
	var recent []factcache.Payload
	for _, pl := range payloads {
		if tally.Add(rec.CheckMeta(pl.Meta)) {
			recent = append(recent, pl)
		}
	}
	st.Kept, st.SkippedOld, st.SkippedUndated = tally.Kept, tally.Old, tally.Undated
	r.step("Load", "%d cached facts, %d within %d days", st.Loaded, st.Kept, st.LookbackDays)

	if len(recent) == 0 {
		r.Message = compose.RenderNoData(*st)
		p.finish(ctx, &r.RunResult, EmptyInput, strategyCounts(*st))
		return r
	}

	p.setState(ModeStrategy, Grouping)
	groups := group.GroupPayloads(recent, p.cfg.KeywordTable())
	st.Groups = groups.Len()
	r.step("Group", "%d groups", st.Groups)

	in := compose.StrategyInput{
		Company:    p.cfg.Company,
		Hypotheses: make(map[string]*analyze.Hypothesis),
		Responses:  make(map[string]*analyze.ResponseOptions),
		Payloads:   make(map[string][]factcache.Payload),
	}

	for _, key := range groups.Keys() {
		if ctx.Err() != nil {
			r.Err = ctx.Err()
			break
		}
		name := key.String()
		members := groups.Get(key)
		oc := database.GroupOutcome{RunID: r.RunID, Group: name, Facts: len(members)}

		if key.Reserved() {
			st.ReservedGroups++
			oc.Outcome = database.OutcomeReserved
			r.Outcomes = append(r.Outcomes, oc)
			log.Debugf("Skipping reserved group %q (%d facts)", name, len(members))
			continue
		}

		p.setState(ModeStrategy, Filtering)
		sr := gate.FilterSignals(ctx, p.deps.Classifier, members)
		st.Dropped += sr.Dropped
		st.ClassifyFailed += sr.Failed
		oc.Kept, oc.Dropped, oc.Failed = len(sr.Kept), sr.Dropped, sr.Failed

		if len(sr.Kept) == 0 {
			oc.Outcome = database.OutcomeNoSignal
			r.Outcomes = append(r.Outcomes, oc)
			log.Infof("No material signal for %s", name)
			continue
		}

		p.setState(ModeStrategy, Generating)
		kept := sr.Payloads()
		hyp, resp, err := p.generate(ctx, kept)
		if err != nil {
			st.HypothesisFailed++
			oc.Outcome = database.OutcomeHypothesisFailed
			r.Outcomes = append(r.Outcomes, oc)
			log.Warn("hypothesis generation failed", "group", name, "err", err)
			continue
		}
		if resp == nil {
			st.ResponseFailed++
		} else {
			in.Responses[name] = resp
		}
		in.Hypotheses[name] = hyp
		in.Payloads[name] = kept
		oc.Outcome = database.OutcomeReported
		r.Outcomes = append(r.Outcomes, oc)
	}
	st.Reported = len(in.Hypotheses)
	r.step("Generate", "%d groups reported, %d dropped facts, %d failures",
		st.Reported, st.Dropped, st.ClassifyFailed+st.HypothesisFailed+st.ResponseFailed)

	if p.deps.Runs != nil && r.RunID != "" {
		if err := p.deps.Runs.InsertGroupOutcomes(r.Outcomes); err != nil {
			log.Warn("could not record group outcomes", "err", err)
		}
	}

	if r.Err != nil {
		r.Message = compose.RenderFailure(string(ModeStrategy), r.Err)
		p.finish(ctx, &r.RunResult, Failed, strategyCounts(*st))
		return r
	}
	if len(in.Hypotheses) == 0 {
		r.Message = compose.RenderNoSignal(*st)
		p.finish(ctx, &r.RunResult, NoSignal, strategyCounts(*st))
		return r
	}

	p.setState(ModeStrategy, Rendering)
	r.Report = compose.RenderStrategy(in)
	r.Message = r.Report + "\n" + compose.RenderStrategyFooter(*st)
	p.finish(ctx, &r.RunResult, Done, strategyCounts(*st))
	return r
}

// generate runs hypothesis then response generation for one group. A
// response failure keeps the hypothesis and returns nil options.
func (p *Pipeline) generate(ctx context.Context, kept []factcache.Payload) (*analyze.Hypothesis, *analyze.ResponseOptions, error) {
	n := min(len(kept), maxHypothesisFacts)
	facts := make([]map[string]any, n)
	for i := range n {
		facts[i] = kept[i].Fact
	}

	hyp, err := p.deps.Hypothesizer.Infer(ctx, facts)
	if err != nil {
		return nil, nil, err
	}

	resp, err := p.deps.Responder.Propose(ctx, hyp)
	if err != nil {
		log.Warn("response generation failed, keeping hypothesis", "err", err)
		return hyp, nil, nil
	}
	return hyp, resp, nil
}

func strategyCounts(s compose.StrategyStats) map[string]int {
	return map[string]int{
		"loaded":            s.Loaded,
		"kept":              s.Kept,
		"skipped_old":       s.SkippedOld,
		"skipped_undated":   s.SkippedUndated,
		"groups":            s.Groups,
		"reserved_groups":   s.ReservedGroups,
		"dropped":           s.Dropped,
		"classify_failed":   s.ClassifyFailed,
		"hypothesis_failed": s.HypothesisFailed,
		"response_failed":   s.ResponseFailed,
		"reported":          s.Reported,
	}
}
