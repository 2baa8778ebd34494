package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ServiceOptions holds the reply settings of the pipeline
type ServiceOptions struct {
	Signature string
	// PrefixSubject replies with "Re: <original subject>" instead of the
	// drafted subject, which keeps the thread intact in most clients.
	PrefixSubject bool
}

// BatchReport summarises one poll of the mailbox
type BatchReport struct {
	Mode       FetchMode
	Fetched    int
	Skipped    int
	Processed  int
	Retained   int
	Sent       int
	SendErrors int
}

// OpportunityService is the core intake, classify, respond and log pipeline
type OpportunityService struct {
	source     MailboxSource
	classifier *ClassifierChain
	responder  *ResponseChain
	dispatcher Dispatcher
	log        DecisionLog
	notifier   Notifier
	senders    SenderFilter
	criteria   Criteria
	opts       ServiceOptions
	logger     *zap.Logger
	now        func() time.Time
}

// NewOpportunityService creates a new opportunity service
func NewOpportunityService(
	source MailboxSource,
	classifier *ClassifierChain,
	responder *ResponseChain,
	dispatcher Dispatcher,
	log DecisionLog,
	notifier Notifier,
	senders SenderFilter,
	criteria Criteria,
	opts ServiceOptions,
	logger *zap.Logger,
) *OpportunityService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &OpportunityService{
		source:     source,
		classifier: classifier,
		responder:  responder,
		dispatcher: dispatcher,
		log:        log,
		notifier:   notifier,
		senders:    senders,
		criteria:   criteria,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// FetchMode picks bulk when forced or when nothing was logged yet. A log
// that exists but cannot be read is not a first run: bulk would answer
// already handled messages again, so incremental is used.
func (s *OpportunityService) FetchMode(ctx context.Context, force bool) FetchMode {
	if force {
		return FetchBulk
	}
	entries, err := s.log.Load(ctx)
	if err != nil {
		s.logger.Error("Failed to load decision log, fetching unread messages only", zap.Error(err))
		return FetchIncremental
	}
	if len(entries) == 0 {
		return FetchBulk
	}
	return FetchIncremental
}

// RunBatch polls the mailbox once and processes every unseen opportunity
// sequentially, in the order the source returned them.
func (s *OpportunityService) RunBatch(ctx context.Context, session *Session, force bool) BatchReport {
	mode, opportunities, err := s.Poll(ctx, force)
	if err != nil {
		return BatchReport{Mode: mode}
	}
	return s.ProcessAll(ctx, session, mode, opportunities)
}

// Poll selects the fetch mode and lists the candidate opportunities. A
// failed fetch is logged and yields no opportunities.
func (s *OpportunityService) Poll(ctx context.Context, force bool) (FetchMode, []*Opportunity, error) {
	mode := s.FetchMode(ctx, force)

	s.logger.Info("Checking mailbox", zap.String("mode", mode.String()))
	opportunities, err := s.source.Fetch(ctx, mode)
	if err != nil {
		s.logger.Warn("Mailbox check failed, skipping batch", zap.Error(err))
		return mode, nil, err
	}
	return mode, opportunities, nil
}

// ProcessAll runs the pipeline over a fetched batch
func (s *OpportunityService) ProcessAll(ctx context.Context, session *Session, mode FetchMode, opportunities []*Opportunity) BatchReport {
	report := BatchReport{Mode: mode, Fetched: len(opportunities)}

	for _, opp := range opportunities {
		if session.Seen(opp.ID) {
			report.Skipped++
			continue
		}
		if s.senders != nil && s.senders.IsIgnored(opp.SenderAddress) {
			s.logger.Debug("Skipping ignored sender",
				zap.String("opportunity_id", opp.ID),
				zap.String("sender", opp.SenderAddress))
			session.Mark(opp.ID)
			report.Skipped++
			continue
		}

		entry := s.Process(ctx, session, opp)
		if entry == nil {
			report.Skipped++
			continue
		}
		report.Processed++
		if entry.Decision == DecisionRetained {
			report.Retained++
		}
		switch entry.Action {
		case ActionResponseSent:
			report.Sent++
		case ActionSendError:
			report.SendErrors++
		}
	}

	s.logger.Info("Batch complete",
		zap.String("mode", report.Mode.String()),
		zap.Int("fetched", report.Fetched),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("retained", report.Retained),
		zap.Int("sent", report.Sent))
	return report
}

// Process runs the full pipeline for one opportunity and returns the
// recorded entry, or nil when the opportunity was already handled in
// this session.
func (s *OpportunityService) Process(ctx context.Context, session *Session, opp *Opportunity) *LogEntry {
	if session.Seen(opp.ID) {
		return nil
	}

	logger := s.logger.With(zap.String("opportunity_id", opp.ID))
	logger.Info("Processing opportunity",
		zap.String("subject", opp.Subject),
		zap.String("sender", opp.Sender))

	result := s.classifier.Classify(ctx, opp, s.criteria)

	action := ActionRejected
	if result.Decision == DecisionRetained {
		action = s.respond(ctx, logger, opp)
	}

	entry := LogEntry{
		Timestamp:       s.now(),
		OpportunityID:   opp.ID,
		MessageID:       opp.MessageID,
		Subject:         opp.Subject,
		Sender:          opp.Sender,
		Pertinence:      result.Pertinence,
		Decision:        result.Decision,
		Action:          action,
		Reasons:         result.Reasons,
		AttentionPoints: result.AttentionPoints,
		Provider:        result.Provider,
	}
	if entry.Reasons == nil {
		entry.Reasons = []string{}
	}
	if err := s.log.Append(ctx, entry); err != nil {
		logger.Error("Failed to record decision", zap.Error(err))
	}

	s.maybeNotify(ctx, opp, result)
	session.Mark(opp.ID)

	logger.Info("Opportunity processed",
		zap.Int("pertinence", result.Pertinence),
		zap.String("decision", string(result.Decision)),
		zap.String("action", string(action)))
	return &entry
}

func (s *OpportunityService) respond(ctx context.Context, logger *zap.Logger, opp *Opportunity) Action {
	draft := s.responder.Draft(ctx, opp, s.criteria, s.opts.Signature)

	subject := draft.Subject
	if s.opts.PrefixSubject && opp.Subject != "" {
		subject = replySubject(opp.Subject)
	}
	to := opp.SenderAddress
	if to == "" {
		to = opp.Sender
	}

	if err := s.dispatcher.Send(ctx, to, subject, draft.FullBody(), opp.MessageID); err != nil {
		logger.Error("Failed to send reply", zap.String("to", to), zap.Error(err))
		return ActionSendError
	}
	logger.Info("Reply sent", zap.String("to", to), zap.String("subject", subject))
	return ActionResponseSent
}

// maybeNotify alerts a human for high-score opportunities only
func (s *OpportunityService) maybeNotify(ctx context.Context, opp *Opportunity, result AnalysisResult) {
	if result.Pertinence < NotifyThreshold {
		return
	}
	if err := s.notifier.NotifyOpportunity(ctx, opp, result); err != nil {
		s.logger.Warn("Failed to send notification",
			zap.String("opportunity_id", opp.ID),
			zap.Error(err))
	}
}
