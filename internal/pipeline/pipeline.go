// Package pipeline runs the cache, strategy and draft modes end to end. Each
// run walks a fixed sequence of states, delivers exactly one message to the
// sink and records itself in the run history.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/TobiSchelling/rivalwatch/internal/analyze"
	"github.com/TobiSchelling/rivalwatch/internal/collect"
	"github.com/TobiSchelling/rivalwatch/internal/config"
	"github.com/TobiSchelling/rivalwatch/internal/database"
	"github.com/TobiSchelling/rivalwatch/internal/factcache"
	"github.com/TobiSchelling/rivalwatch/internal/fetch"
	"github.com/TobiSchelling/rivalwatch/internal/gate"
	"github.com/TobiSchelling/rivalwatch/internal/llm"
	"github.com/TobiSchelling/rivalwatch/internal/notify"
)

// State is a pipeline stage.
type State int

const (
	Idle State = iota
	Collecting
	Gating
	Caching
	Grouping
	Filtering
	Generating
	Rendering
	Done
	EmptyInput
	NoSignal
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	Collecting: "collecting",
	Gating:     "gating",
	Caching:    "caching",
	Grouping:   "grouping",
	Filtering:  "filtering",
	Generating: "generating",
	Rendering:  "rendering",
	Done:       "done",
	EmptyInput: "empty_input",
	NoSignal:   "no_signal",
	Failed:     "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether a run ends in s.
func (s State) Terminal() bool {
	return s == Done || s == EmptyInput || s == NoSignal || s == Failed
}

// Mode selects which pipeline a run executes.
type Mode string

const (
	ModeCache    Mode = "cache"
	ModeStrategy Mode = "strategy"
	ModeDraft    Mode = "draft"
)

// Modes returns the modes enabled by the pipeline switches, in execution
// order. With both switches set the cache run goes first so the report sees
// today's facts. With neither set the draft digest runs.
func Modes(p config.Pipeline) []Mode {
	var modes []Mode
	if p.FactCacheMode {
		modes = append(modes, ModeCache)
	}
	if p.WeeklyStrategyMode {
		modes = append(modes, ModeStrategy)
	}
	if len(modes) == 0 {
		modes = append(modes, ModeDraft)
	}
	return modes
}

// NeedsLLM reports whether any of the modes calls a language model.
func NeedsLLM(modes []Mode) bool {
	for _, m := range modes {
		if m != ModeDraft {
			return true
		}
	}
	return false
}

// Collector gathers items for the configured competitors.
type Collector interface {
	Collect(ctx context.Context, competitors []config.Competitor) *collect.Result
}

// TextFetcher retrieves full article text.
type TextFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Extractor turns raw text into a fact.
type Extractor interface {
	Extract(ctx context.Context, source, url, title, rawText string) (map[string]any, error)
}

// Hypothesizer infers a hypothesis from facts.
type Hypothesizer interface {
	Infer(ctx context.Context, facts []map[string]any) (*analyze.Hypothesis, error)
}

// Responder proposes response options for a hypothesis.
type Responder interface {
	Propose(ctx context.Context, hyp *analyze.Hypothesis) (*analyze.ResponseOptions, error)
}

// RunStore records run history.
type RunStore interface {
	StartRun(mode string, startedAt time.Time) (string, error)
	FinishRun(id, state string, periodID *string, counts map[string]int, message string, runErr error, finishedAt time.Time) error
	InsertGroupOutcomes(outcomes []database.GroupOutcome) error
}

// Deps are the collaborators a pipeline drives. Fetcher and Runs may be nil.
type Deps struct {
	Collector    Collector
	Fetcher      TextFetcher
	Extractor    Extractor
	Classifier   gate.Classifier
	Hypothesizer Hypothesizer
	Responder    Responder
	Store        *factcache.Store
	Sink         notify.Sink
	Runs         RunStore
	Now          func() time.Time
}

// Pipeline orchestrates the run modes.
type Pipeline struct {
	cfg   *config.Config
	deps  Deps
	state State
}

// New creates a pipeline over explicit collaborators.
func New(cfg *config.Config, deps Deps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

// NewFromConfig wires the production collaborators. provider may be nil when
// only the draft mode runs.
func NewFromConfig(cfg *config.Config, db *database.DB, provider llm.Provider) *Pipeline {
	deps := Deps{
		Collector: collect.NewCollector(cfg),
		Store:     factcache.New(cfg.FactDir()),
		Sink:      notify.FromConfig(cfg),
	}
	if db != nil {
		deps.Runs = db
	}
	if cfg.Pipeline.FetchFullText {
		deps.Fetcher = fetch.NewContentFetcher(15 * time.Second)
	}
	if provider != nil {
		n := cfg.LLM.MaxTokens
		deps.Extractor = analyze.NewExtractor(provider).WithMaxTokens(n)
		deps.Classifier = analyze.NewSignalClassifier(provider).WithMaxTokens(n)
		deps.Hypothesizer = analyze.NewHypothesizer(provider).WithMaxTokens(n)
		deps.Responder = analyze.NewResponder(provider, cfg.Company).WithMaxTokens(n)
	}
	return New(cfg, deps)
}

// State returns the current state.
func (p *Pipeline) State() State {
	return p.state
}

func (p *Pipeline) setState(mode Mode, s State) {
	log.Debug("pipeline state", "mode", mode, "from", p.state, "to", s)
	p.state = s
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// RunResult is common to every mode.
type RunResult struct {
	Mode     Mode
	RunID    string
	State    State
	PeriodID string
	Steps    []StepResult
	Message  string
	Err      error
}

func (r *RunResult) step(name, format string, args ...any) {
	r.Steps = append(r.Steps, StepResult{Name: name, Summary: fmt.Sprintf(format, args...)})
}

// Run executes one mode.
func (p *Pipeline) Run(ctx context.Context, mode Mode) *RunResult {
	switch mode {
	case ModeCache:
		return &p.RunCache(ctx).RunResult
	case ModeStrategy:
		return &p.RunStrategy(ctx).RunResult
	default:
		return &p.RunDraft(ctx).RunResult
	}
}

func (p *Pipeline) begin(mode Mode) *RunResult {
	p.state = Idle
	r := &RunResult{Mode: mode, State: Idle}
	if p.deps.Runs != nil {
		id, err := p.deps.Runs.StartRun(string(mode), p.deps.Now())
		if err != nil {
			log.Warn("could not record run start", "err", err)
		}
		r.RunID = id
	}
	log.Infof("Starting %s run", mode)
	return r
}

// finish delivers the message once and stores the run row.
func (p *Pipeline) finish(ctx context.Context, r *RunResult, final State, counts map[string]int) {
	if r.Err != nil {
		final = Failed
	}

	if p.deps.Sink != nil {
		// Deliver even when the run was cancelled.
		sendCtx := context.WithoutCancel(ctx)
		err := p.deps.Sink.Send(sendCtx, notify.Message{Name: string(r.Mode), Text: r.Message})
		if err != nil {
			log.Error("delivering run message failed", "mode", r.Mode, "err", err)
			if r.Err == nil {
				r.Err = fmt.Errorf("delivering message: %w", err)
			}
			final = Failed
		}
	}

	p.setState(r.Mode, final)
	r.State = final

	if p.deps.Runs != nil && r.RunID != "" {
		var period *string
		if r.PeriodID != "" {
			period = &r.PeriodID
		}
		if err := p.deps.Runs.FinishRun(r.RunID, final.String(), period, counts, r.Message, r.Err, p.deps.Now()); err != nil {
			log.Warn("could not record run result", "err", err)
		}
	}
	log.Infof("Finished %s run: %s", r.Mode, final)
}

func (p *Pipeline) recency(days int, undated gate.UndatedPolicy) gate.Recency {
	return gate.Recency{LookbackDays: days, Undated: undated, Now: p.deps.Now}
}

func (p *Pipeline) undatedPolicy() gate.UndatedPolicy {
	if p.cfg.Pipeline.AllowUndatedItems {
		return gate.UndatedInclude
	}
	return gate.UndatedExclude
}
