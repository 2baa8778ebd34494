// Package stats computes activity statistics over the decision log.
package stats

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/mikey/opportunity-agent/internal/core"
)

// TopN is the length of the sender and keyword rankings
const TopN = 10

// Count is one ranked key
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Pertinence summarises the score distribution
type Pertinence struct {
	Mean         float64     `json:"mean"`
	Median       float64     `json:"median"`
	Min          int         `json:"min"`
	Max          int         `json:"max"`
	Distribution map[int]int `json:"distribution"`
}

// Summary is the full set of statistics over a list of entries
type Summary struct {
	Total         int            `json:"total"`
	First         time.Time      `json:"first,omitempty"`
	Last          time.Time      `json:"last,omitempty"`
	ByDecision    map[string]int `json:"by_decision"`
	ByAction      map[string]int `json:"by_action"`
	Pertinence    Pertinence     `json:"pertinence"`
	TopSenders    []Count        `json:"top_senders"`
	DailyActivity map[string]int `json:"daily_activity"`
	TopKeywords   []Count        `json:"top_keywords"`
	Retained      int            `json:"retained"`
	Sent          int            `json:"sent"`
	RetentionRate float64        `json:"retention_rate"`
	ResponseRate  float64        `json:"response_rate"`
}

// Compute returns the statistics of entries. An empty input yields a
// zero Summary with empty maps.
func Compute(entries []core.LogEntry) Summary {
	s := Summary{
		Total:         len(entries),
		ByDecision:    map[string]int{},
		ByAction:      map[string]int{},
		DailyActivity: map[string]int{},
		Pertinence:    Pertinence{Distribution: map[int]int{}},
		TopSenders:    []Count{},
		TopKeywords:   []Count{},
	}
	if len(entries) == 0 {
		return s
	}

	senders := map[string]int{}
	keywords := map[string]int{}
	scores := make([]int, 0, len(entries))

	for _, e := range entries {
		s.ByDecision[string(e.Decision)]++
		s.ByAction[string(e.Action)]++
		s.Pertinence.Distribution[e.Pertinence]++
		scores = append(scores, e.Pertinence)

		sender := e.Sender
		if sender == "" {
			sender = "unknown"
		}
		senders[sender]++

		if !e.Timestamp.IsZero() {
			local := e.Timestamp.Local()
			s.DailyActivity[local.Format("2006-01-02")]++
			if s.First.IsZero() || local.Before(s.First) {
				s.First = local
			}
			if local.After(s.Last) {
				s.Last = local
			}
		}

		for _, reason := range e.Reasons {
			for _, w := range words(reason) {
				keywords[w]++
			}
		}

		if e.Decision == core.DecisionRetained {
			s.Retained++
		}
		if e.Action == core.ActionResponseSent {
			s.Sent++
		}
	}

	s.Pertinence.Mean = round(mean(scores), 2)
	s.Pertinence.Median = median(scores)
	s.Pertinence.Min, s.Pertinence.Max = minMax(scores)
	s.TopSenders = top(senders, TopN)
	s.TopKeywords = top(keywords, TopN)
	s.RetentionRate = percent(s.Retained, s.Total)
	s.ResponseRate = percent(s.Sent, s.Total)
	return s
}

// Today returns the entries recorded on the local calendar day of now
func Today(entries []core.LogEntry, now time.Time) []core.LogEntry {
	y, m, d := now.Local().Date()
	var out []core.LogEntry
	for _, e := range entries {
		ey, em, ed := e.Timestamp.Local().Date()
		if ey == y && em == m && ed == d {
			out = append(out, e)
		}
	}
	return out
}

// words splits a reason into lowercased words longer than 3 letters
func words(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 3 {
			out = append(out, f)
		}
	}
	return out
}

// top ranks by count, then by key for a stable order
func top(counts map[string]int, n int) []Count {
	out := make([]Count, 0, len(counts))
	for k, c := range counts {
		out = append(out, Count{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func mean(xs []int) float64 {
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func median(xs []int) float64 {
	sorted := append([]int(nil), xs...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

func minMax(xs []int) (int, int) {
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	return lo, hi
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part)*100/float64(total), 1)
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
