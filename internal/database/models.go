package database

// Run is one pipeline invocation.
type Run struct {
	ID         string
	Mode       string
	State      string
	PeriodID   *string
	Counts     map[string]int
	Message    *string
	Error      *string
	StartedAt  string
	FinishedAt *string
}

// Group outcomes recorded for strategy runs.
const (
	OutcomeReported         = "reported"
	OutcomeReserved         = "reserved"
	OutcomeNoSignal         = "no_signal"
	OutcomeHypothesisFailed = "hypothesis_failed"
)

// GroupOutcome records what happened to one company group in a strategy run.
type GroupOutcome struct {
	RunID   string
	Group   string
	Facts   int
	Kept    int
	Dropped int
	Failed  int
	Outcome string
}

// Stats summarises the run history.
type Stats struct {
	TotalRuns int
	ByMode    map[string]int
	LastRun   *Run
}
