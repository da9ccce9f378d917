// Package analyze wraps the LLM-backed extraction, classification,
// hypothesis and response services. Each service is a function from
// structured input to structured JSON output.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/TobiSchelling/rivalwatch/internal/gate"
	"github.com/TobiSchelling/rivalwatch/internal/llm"
)

const (
	maxRawText     = 6000
	extractTokens  = 2048
	classifyTokens = 512
	generateTokens = 2048
	defaultCompany = "our company"
)

// tokenBudget returns def, or limit when one is configured. Capped services
// never exceed their own default.
func tokenBudget(def, limit int, capped bool) int {
	if limit <= 0 || (capped && limit > def) {
		return def
	}
	return limit
}

// ExtractionError reports that a fact could not be extracted for one item.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ClassificationError reports that a fact could not be classified.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classifying fact: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Extractor turns raw article text into a structured fact object.
type Extractor struct {
	provider  llm.Provider
	maxTokens int
}

// NewExtractor creates a new fact extractor.
func NewExtractor(provider llm.Provider) *Extractor {
	return &Extractor{provider: provider}
}

// WithMaxTokens sets the output token budget. Zero keeps the default.
func (x *Extractor) WithMaxTokens(n int) *Extractor {
	x.maxTokens = n
	return x
}

// Extract returns the fact JSON for one document.
func (x *Extractor) Extract(ctx context.Context, source, url, title, rawText string) (map[string]any, error) {
	if len([]rune(rawText)) > maxRawText {
		rawText = string([]rune(rawText)[:maxRawText]) + "..."
	}
	prompt := fmt.Sprintf(extractPrompt, source, url, title, rawText)

	text, err := x.provider.Generate(ctx, extractSystem, prompt, tokenBudget(extractTokens, x.maxTokens, false))
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}
	fact, err := llm.DecodeObject(text)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}
	return fact, nil
}

// SignalClassifier grades facts A/B/C. It satisfies gate.Classifier.
type SignalClassifier struct {
	provider  llm.Provider
	maxTokens int
}

// NewSignalClassifier creates a new signal classifier.
func NewSignalClassifier(provider llm.Provider) *SignalClassifier {
	return &SignalClassifier{provider: provider}
}

// WithMaxTokens caps the output token budget. Verdicts are short, so a
// larger limit keeps the default.
func (c *SignalClassifier) WithMaxTokens(n int) *SignalClassifier {
	c.maxTokens = n
	return c
}

// Classify returns the signal classification for one fact. An unknown level
// is an error rather than a guess.
func (c *SignalClassifier) Classify(ctx context.Context, fact map[string]any) (*gate.Classification, error) {
	data, err := json.Marshal(fact)
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}

	text, err := c.provider.Generate(ctx, classifySystem, fmt.Sprintf(classifyPrompt, data), tokenBudget(classifyTokens, c.maxTokens, true))
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}

	// Only signal_level decides success; the other fields are advisory and
	// models are loose about their types.
	var raw struct {
		Level         string `json:"signal_level"`
		Reason        any    `json:"reason"`
		EventLike     any    `json:"is_event_like"`
		NeedsFollowup any    `json:"needs_followup"`
	}
	if err := llm.DecodeInto(text, &raw); err != nil {
		return nil, &ClassificationError{Err: err}
	}
	level, err := gate.ParseLevel(raw.Level)
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}

	return &gate.Classification{
		Level:         level,
		Reason:        looseString(raw.Reason),
		EventLike:     looseString(raw.EventLike),
		NeedsFollowup: looseBool(raw.NeedsFollowup),
	}, nil
}

func looseString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	return fmt.Sprint(v)
}

func looseBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	case float64:
		return t != 0
	}
	return false
}

// Hypothesis is a hedged strategic reading of a competitor's facts.
type Hypothesis struct {
	Hypothesis    string   `json:"hypothesis"`
	Evidence      []string `json:"evidence"`
	AltHypothesis []string `json:"alt_hypothesis"`
	Falsifiers    []string `json:"falsifiers"`
}

// Hypothesizer infers a hypothesis from a set of facts.
type Hypothesizer struct {
	provider  llm.Provider
	maxTokens int
}

// NewHypothesizer creates a new hypothesis generator.
func NewHypothesizer(provider llm.Provider) *Hypothesizer {
	return &Hypothesizer{provider: provider}
}

// WithMaxTokens sets the output token budget. Zero keeps the default.
func (h *Hypothesizer) WithMaxTokens(n int) *Hypothesizer {
	h.maxTokens = n
	return h
}

// Infer generates a hypothesis for the given facts.
func (h *Hypothesizer) Infer(ctx context.Context, facts []map[string]any) (*Hypothesis, error) {
	data, err := json.Marshal(facts)
	if err != nil {
		return nil, fmt.Errorf("encoding facts: %w", err)
	}

	text, err := h.provider.Generate(ctx, hypothesisSystem, fmt.Sprintf(hypothesisPrompt, data), tokenBudget(generateTokens, h.maxTokens, false))
	if err != nil {
		return nil, fmt.Errorf("generating hypothesis: %w", err)
	}

	var hyp Hypothesis
	if err := llm.DecodeInto(text, &hyp); err != nil {
		return nil, fmt.Errorf("decoding hypothesis: %w", err)
	}
	return &hyp, nil
}

// Option is one response option. Do-nothing options use Why; the others use
// Actions and Impact.
type Option struct {
	Why     string   `json:"why,omitempty"`
	Actions []string `json:"actions,omitempty"`
	Impact  string   `json:"impact,omitempty"`
	Risks   []string `json:"risks,omitempty"`
}

// ResponseOptions holds the three response options. Missing options are nil.
type ResponseOptions struct {
	DoNothing *Option `json:"do_nothing"`
	Defensive *Option `json:"defensive"`
	Offensive *Option `json:"offensive"`
}

// Responder proposes response options to a competitor hypothesis.
type Responder struct {
	provider  llm.Provider
	company   string
	maxTokens int
}

// NewResponder creates a responder writing options for company.
func NewResponder(provider llm.Provider, company string) *Responder {
	if company == "" {
		company = defaultCompany
	}
	return &Responder{provider: provider, company: company}
}

// WithMaxTokens sets the output token budget. Zero keeps the default.
func (r *Responder) WithMaxTokens(n int) *Responder {
	r.maxTokens = n
	return r
}

// Propose generates response options for a hypothesis.
func (r *Responder) Propose(ctx context.Context, hyp *Hypothesis) (*ResponseOptions, error) {
	data, err := json.Marshal(hyp)
	if err != nil {
		return nil, fmt.Errorf("encoding hypothesis: %w", err)
	}

	system := fmt.Sprintf(responseSystem, r.company)
	prompt := fmt.Sprintf(responsePrompt, r.company, data)
	text, err := r.provider.Generate(ctx, system, prompt, tokenBudget(generateTokens, r.maxTokens, false))
	if err != nil {
		return nil, fmt.Errorf("generating response options: %w", err)
	}

	var opts ResponseOptions
	if err := llm.DecodeInto(text, &opts); err != nil {
		return nil, fmt.Errorf("decoding response options: %w", err)
	}
	return &opts, nil
}
