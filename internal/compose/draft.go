package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/TobiSchelling/rivalwatch/internal/collect"
)

const (
	maxDraftItems = 10
	dateUnknown   = "date unknown"
)

// DraftInput holds recent items per competitor for the draft digest.
type DraftInput struct {
	Days        int
	GeneratedAt time.Time
	Order       []string
	Items       map[string][]collect.Item
}

// RenderDraft renders the draft digest: up to ten items per competitor in
// collection order.
func RenderDraft(in DraftInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*[Weekly competitor news draft] last %d days*\n\n", in.Days)
	fmt.Fprintf(&b, "- Generated (UTC): %s\n", in.GeneratedAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "- Window: last %d days\n\n", in.Days)

	for _, name := range in.Order {
		b.WriteString("## " + name + "\n")
		items := in.Items[name]
		if len(items) == 0 {
			b.WriteString("- No items collected\n\n")
			continue
		}
		if len(items) > maxDraftItems {
			items = items[:maxDraftItems]
		}
		for _, it := range items {
			date := dateUnknown
			if it.PublishedAt != nil {
				date = it.PublishedAt.UTC().Format("2006-01-02")
			}
			fmt.Fprintf(&b, "- (%s) %s — %s / %s\n", date, it.Title, it.Source, it.URL)
		}
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String()) + "\n"
}
