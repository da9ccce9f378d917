package compose

import (
	"fmt"
	"strings"
)

// CacheSummary tallies one cache run.
type CacheSummary struct {
	Collected      int
	CollectErrors  int
	Unique         int
	SkippedDup     int
	SkippedOld     int
	SkippedUndated int
	Saved          int
	Failed         int
	Deferred       int
	LookbackDays   int
	Bucket         string
}

// RenderCacheSummary renders the message sent after a cache run.
func RenderCacheSummary(s CacheSummary) string {
	var b strings.Builder
	b.WriteString("*[Fact cache run]*\n")
	fmt.Fprintf(&b, "- Bucket: %s (lookback %d days)\n", s.Bucket, s.LookbackDays)
	fmt.Fprintf(&b, "- Collected: %d (unique %d", s.Collected, s.Unique)
	if s.CollectErrors > 0 {
		fmt.Fprintf(&b, ", %d failed fetches", s.CollectErrors)
	}
	b.WriteString(")\n")
	fmt.Fprintf(&b, "- Saved: %d\n", s.Saved)
	fmt.Fprintf(&b, "- Skipped: %d already cached, %d too old, %d undated\n",
		s.SkippedDup, s.SkippedOld, s.SkippedUndated)
	fmt.Fprintf(&b, "- Failed: %d\n", s.Failed)
	if s.Deferred > 0 {
		fmt.Fprintf(&b, "- Deferred past item cap: %d\n", s.Deferred)
	}
	return b.String()
}

// StrategyStats tallies one strategy run.
type StrategyStats struct {
	LookbackDays     int
	Loaded           int
	Kept             int
	SkippedOld       int
	SkippedUndated   int
	Groups           int
	ReservedGroups   int
	Dropped          int
	ClassifyFailed   int
	HypothesisFailed int
	ResponseFailed   int
	Reported         int
}

// RenderNoData renders the outcome when no cached fact is recent enough.
func RenderNoData(s StrategyStats) string {
	var b strings.Builder
	b.WriteString("*[Weekly competitor strategy report]*\n")
	fmt.Fprintf(&b, "No cached facts within the last %d days.\n", s.LookbackDays)
	fmt.Fprintf(&b, "- Loaded: %d, too old: %d, undated: %d\n", s.Loaded, s.SkippedOld, s.SkippedUndated)
	return b.String()
}

// RenderNoSignal renders the outcome when every group was filtered out.
func RenderNoSignal(s StrategyStats) string {
	var b strings.Builder
	b.WriteString("*[Weekly competitor strategy report]*\n")
	b.WriteString("No actionable signal this period.\n")
	writeStrategyStats(&b, s)
	return b.String()
}

// RenderStrategyFooter renders run counters appended below a report.
func RenderStrategyFooter(s StrategyStats) string {
	var b strings.Builder
	b.WriteString("_Run stats_\n")
	writeStrategyStats(&b, s)
	return b.String()
}

func writeStrategyStats(b *strings.Builder, s StrategyStats) {
	fmt.Fprintf(b, "- Facts: %d loaded, %d in window (%d too old, %d undated)\n",
		s.Loaded, s.Kept, s.SkippedOld, s.SkippedUndated)
	fmt.Fprintf(b, "- Groups: %d (%d reserved), %d reported\n", s.Groups, s.ReservedGroups, s.Reported)
	fmt.Fprintf(b, "- Signals: %d low-signal dropped, %d classification failures\n", s.Dropped, s.ClassifyFailed)
	if s.HypothesisFailed > 0 || s.ResponseFailed > 0 {
		fmt.Fprintf(b, "- Generation failures: %d hypothesis, %d response\n", s.HypothesisFailed, s.ResponseFailed)
	}
}

// RenderFailure renders an error that aborted a run.
func RenderFailure(mode string, err error) string {
	return fmt.Sprintf("*[rivalwatch %s run failed]*\n- Error: `%v`\n", mode, err)
}
