package stats

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/mikey/opportunity-agent/internal/utils"
)

// WriteText renders the summary as aligned plain-text sections
func WriteText(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if s.Total == 0 {
		fmt.Fprintln(tw, "No data available")
		return tw.Flush()
	}

	fmt.Fprintln(tw, "OVERVIEW")
	fmt.Fprintf(tw, "Total opportunities\t%d\n", s.Total)
	if !s.First.IsZero() {
		fmt.Fprintf(tw, "Period\t%s -> %s\n", s.First.Format("2006-01-02 15:04"), s.Last.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(tw, "Retained\t%d (%.1f%%)\n", s.Retained, s.RetentionRate)
	fmt.Fprintf(tw, "Replies sent\t%d (%.1f%%)\n", s.Sent, s.ResponseRate)
	fmt.Fprintf(tw, "Average pertinence\t%.2f/10\n", s.Pertinence.Mean)

	fmt.Fprintln(tw, "\nDECISIONS")
	writeCounts(tw, s.ByDecision, s.Total)

	fmt.Fprintln(tw, "\nACTIONS")
	writeCounts(tw, s.ByAction, s.Total)

	fmt.Fprintln(tw, "\nPERTINENCE")
	fmt.Fprintf(tw, "Mean / median\t%.2f / %.1f\n", s.Pertinence.Mean, s.Pertinence.Median)
	fmt.Fprintf(tw, "Min / max\t%d / %d\n", s.Pertinence.Min, s.Pertinence.Max)
	scores := make([]int, 0, len(s.Pertinence.Distribution))
	for score := range s.Pertinence.Distribution {
		scores = append(scores, score)
	}
	sort.Ints(scores)
	for _, score := range scores {
		count := s.Pertinence.Distribution[score]
		pct := percent(count, s.Total)
		fmt.Fprintf(tw, "  %d/10\t%d (%.1f%%)\t%s\n", score, count, pct, strings.Repeat("#", int(pct/2)))
	}

	fmt.Fprintln(tw, "\nTOP SENDERS")
	for i, c := range s.TopSenders {
		fmt.Fprintf(tw, "%2d. %s\t%d (%.1f%%)\n", i+1, utils.DisplayName(c.Key), c.Count, percent(c.Count, s.Total))
	}

	fmt.Fprintln(tw, "\nDAILY ACTIVITY")
	days := make([]string, 0, len(s.DailyActivity))
	for day := range s.DailyActivity {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		fmt.Fprintf(tw, "%s\t%d\n", day, s.DailyActivity[day])
	}

	if len(s.TopKeywords) > 0 {
		fmt.Fprintln(tw, "\nTOP KEYWORDS")
		for _, c := range s.TopKeywords {
			fmt.Fprintf(tw, "%s\t%d\n", c.Key, c.Count)
		}
	}

	return tw.Flush()
}

func writeCounts(w io.Writer, counts map[string]int, total int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d (%.1f%%)\n", k, counts[k], percent(counts[k], total))
	}
}
