package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/opportunity-agent/internal/adapters/decisionlog"
	"github.com/mikey/opportunity-agent/internal/config"
	"github.com/mikey/opportunity-agent/internal/core"
	"go.uber.org/zap"
)

// DecisionLogFactory creates decision logs based on configuration
type DecisionLogFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewDecisionLogFactory creates a new decision log factory
func NewDecisionLogFactory(cfg *config.Config, logger *zap.Logger) *DecisionLogFactory {
	return &DecisionLogFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateDecisionLog creates a decision log based on the configuration
func (f *DecisionLogFactory) CreateDecisionLog() (core.DecisionLog, error) {
	logCfg := f.cfg.GetDecisionLog()

	switch logCfg.Type {
	case "json", "":
		return decisionlog.NewJSONLog(logCfg.Path, f.logger), nil
	case "memory":
		return decisionlog.NewMemoryLog(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(logCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return decisionlog.NewSQLiteLog(logCfg.SQLitePath, f.logger)
	case "mysql":
		return decisionlog.NewMySQLLog(logCfg.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported decision log type: %s", logCfg.Type)
	}
}
