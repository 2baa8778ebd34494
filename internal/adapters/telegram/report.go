package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mikey/opportunity-agent/internal/core"
	"github.com/mikey/opportunity-agent/internal/stats"
	"github.com/mikey/opportunity-agent/internal/utils"
	"go.uber.org/zap"
)

const (
	reportSenders    = 3
	reportRecent     = 3
	reportSubjectLen = 40
)

// Reporter sends the daily activity report built from the decision log
type Reporter struct {
	notifier *Notifier
	log      core.DecisionLog
	logger   *zap.Logger
	now      func() time.Time
}

// NewReporter creates a new daily reporter
func NewReporter(notifier *Notifier, log core.DecisionLog, logger *zap.Logger) *Reporter {
	return &Reporter{
		notifier: notifier,
		log:      log,
		logger:   logger,
		now:      time.Now,
	}
}

// SendDailyReport loads the log and posts the report for the current day
func (r *Reporter) SendDailyReport(ctx context.Context) error {
	entries, err := r.log.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load decision log: %w", err)
	}
	text := FormatDailyReport(entries, r.now())
	if err := r.notifier.SendMessage(ctx, text); err != nil {
		return err
	}
	r.logger.Info("Daily report sent", zap.Int("entries", len(entries)))
	return nil
}

// FormatDailyReport renders the report of the local day of now
func FormatDailyReport(entries []core.LogEntry, now time.Time) string {
	var b strings.Builder
	b.WriteString("📊 <b>Daily report</b>\n")

	if len(entries) == 0 {
		b.WriteString("\n❌ No data available")
		return b.String()
	}

	fmt.Fprintf(&b, "📅 <b>%s</b>\n\n", now.Local().Format("2006-01-02"))

	today := stats.Today(entries, now)
	day := stats.Compute(today)
	if len(today) > 0 {
		b.WriteString("🆕 <b>Today:</b>\n")
		fmt.Fprintf(&b, "• 📧 %d email(s) analysed\n", day.Total)
		fmt.Fprintf(&b, "• ✅ %d mission(s) retained\n", day.Retained)
		fmt.Fprintf(&b, "• 📤 %d reply(ies) sent\n", day.Sent)
		fmt.Fprintf(&b, "• 📈 Average pertinence: %.1f/10\n", day.Pertinence.Mean)
	} else {
		b.WriteString("😴 <b>No activity today</b>\n")
	}

	all := stats.Compute(entries)
	b.WriteString("\n📈 <b>Overall:</b>\n")
	fmt.Fprintf(&b, "• 📧 Total: %d opportunity(ies)\n", all.Total)
	fmt.Fprintf(&b, "• ✅ Retained: %d (%.1f%%)\n", all.Retained, all.RetentionRate)
	fmt.Fprintf(&b, "• 📤 Replies sent: %d (%.1f%%)\n", all.Sent, all.ResponseRate)
	fmt.Fprintf(&b, "• 📊 Average pertinence: %.2f/10\n", all.Pertinence.Mean)

	if len(today) == 0 {
		return b.String()
	}

	b.WriteString("\n📧 <b>Top senders today:</b>\n")
	for i, c := range day.TopSenders {
		if i == reportSenders {
			break
		}
		fmt.Fprintf(&b, "%d. %s (%d)\n", i+1, html.EscapeString(utils.DisplayName(c.Key)), c.Count)
	}

	b.WriteString("\n🕒 <b>Latest opportunities:</b>\n")
	recent := today
	if len(recent) > reportRecent {
		recent = recent[len(recent)-reportRecent:]
	}
	for i, e := range recent {
		fmt.Fprintf(&b, "%d. %s\n   %s (%d/10)\n", i+1,
			html.EscapeString(utils.Snippet(e.Subject, reportSubjectLen)),
			html.EscapeString(string(e.Decision)), e.Pertinence)
	}
	return b.String()
}

var _ core.Reporter = (*Reporter)(nil)
