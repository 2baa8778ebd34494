package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/opportunity-agent/internal/config"
	"github.com/mikey/opportunity-agent/internal/core"
	"github.com/mikey/opportunity-agent/internal/factory"
	"github.com/mikey/opportunity-agent/internal/logging"
	"github.com/mikey/opportunity-agent/internal/scheduler"
	"github.com/mikey/opportunity-agent/internal/utils"
)

// Options are the command line settings that shape the container
type Options struct {
	ConfigPath string
	// Debug and JSON override logging.level and logging.format
	Debug bool
	JSON  bool
	// Quiet discards logs unless Debug is set
	Quiet bool
}

// BuildContainer creates and configures a dependency injection container
func BuildContainer(opts Options) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(cfg *config.Config) (*zap.Logger, error) {
		if opts.Quiet && !opts.Debug {
			return zap.NewNop(), nil
		}
		if opts.Debug || opts.JSON {
			return logging.InitConsoleLogger(opts.Debug, opts.JSON)
		}
		return logging.InitLogger(cfg)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	for _, ctor := range []interface{}{
		factory.NewLLMFactory,
		factory.NewDecisionLogFactory,
		factory.NewNotifierFactory,
		factory.NewMailFactory,
	} {
		if err := container.Provide(ctor); err != nil {
			return nil, err
		}
	}

	// Register LLM providers and chains
	if err := container.Provide(func(f *factory.LLMFactory) (factory.Providers, error) {
		return f.CreateProviders(context.Background())
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.LLMFactory, p factory.Providers) (*core.ClassifierChain, error) {
		return f.CreateClassifierChain(p)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.LLMFactory, p factory.Providers) (*core.ResponseChain, error) {
		return f.CreateResponseChain(p)
	}); err != nil {
		return nil, err
	}

	// Register decision log
	if err := container.Provide(func(f *factory.DecisionLogFactory) (core.DecisionLog, error) {
		return f.CreateDecisionLog()
	}); err != nil {
		return nil, err
	}

	// Register notifier and reporter
	if err := container.Provide(func(f *factory.NotifierFactory) (core.Notifier, error) {
		return f.CreateNotifier()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.NotifierFactory, log core.DecisionLog) (core.Reporter, error) {
		return f.CreateReporter(log)
	}); err != nil {
		return nil, err
	}

	// Register mail adapters
	if err := container.Provide(func(f *factory.MailFactory) (core.MailboxSource, error) {
		return f.CreateMailbox()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.MailFactory) (core.Dispatcher, error) {
		return f.CreateDispatcher()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.MailFactory) core.SenderFilter {
		return f.CreateSenderFilter()
	}); err != nil {
		return nil, err
	}

	// Register criteria and reply options
	if err := container.Provide(func(cfg *config.Config) core.Criteria {
		return cfg.GetCriteria()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) core.ServiceOptions {
		reply := cfg.GetReply()
		return core.ServiceOptions{
			Signature:     reply.Signature,
			PrefixSubject: reply.PrefixSubject,
		}
	}); err != nil {
		return nil, err
	}

	// Register opportunity service
	if err := container.Provide(core.NewOpportunityService); err != nil {
		return nil, err
	}

	// Register session and scheduler
	if err := container.Provide(core.NewSession); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) (config.SchedulerConfig, error) {
		return cfg.GetScheduler()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		service *core.OpportunityService,
		reporter core.Reporter,
		session *core.Session,
		cfg config.SchedulerConfig,
		logger *zap.Logger,
	) *scheduler.Scheduler {
		return scheduler.New(service, reporter, session, cfg, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
