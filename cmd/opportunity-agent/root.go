package main

import (
	"fmt"

	"github.com/mikey/opportunity-agent/internal/di"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
)

const app = "opportunity-agent"

var (
	// Used for flags.
	cfgFile string
	debug   bool
	jsonLog bool

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "opportunity-agent watches a mailbox for freelance opportunities, scores them and answers the good ones",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is config.yaml in ./configs, $HOME/.opportunity-agent or /etc/opportunity-agent)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLog, "json", "j", false, "json format for logging, and for the stats output")
}

// invoke builds the container from the global flags and runs fn with its
// dependencies injected
func invoke(fn interface{}) error {
	return invokeWith(false, fn)
}

// invokeQuiet is invoke for commands whose output is the result itself
func invokeQuiet(fn interface{}) error {
	return invokeWith(true, fn)
}

func invokeWith(quiet bool, fn interface{}) error {
	container, err := di.BuildContainer(di.Options{
		ConfigPath: cfgFile,
		Debug:      debug,
		JSON:       jsonLog,
		Quiet:      quiet,
	})
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}
	if err := container.Invoke(fn); err != nil {
		return dig.RootCause(err)
	}
	return nil
}
