package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mikey/opportunity-agent/internal/adapters/imap"
	"github.com/mikey/opportunity-agent/internal/config"
	"github.com/mikey/opportunity-agent/internal/core"
	"github.com/mikey/opportunity-agent/internal/factory"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	classifyFile  string
	classifyDraft bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Score a single message read from a file or stdin without sending anything",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			classifyFile = args[0]
		}
		return invokeQuiet(func(
			logger *zap.Logger,
			cfg *config.Config,
			providers factory.Providers,
			classifier *core.ClassifierChain,
			responder *core.ResponseChain,
			criteria core.Criteria,
		) error {
			defer logger.Sync()
			defer providers.Close()
			return classify(cmd.Context(), cmd.OutOrStdout(), cfg, classifier, responder, criteria)
		})
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVarP(&classifyFile, "file", "f", "", "input message file (stdin if not specified)")
	classifyCmd.Flags().BoolVar(&classifyDraft, "draft", false, "also draft a reply for retained opportunities")
}

type classifyOutput struct {
	Subject         string       `json:"subject"`
	Sender          string       `json:"sender"`
	Pertinence      int          `json:"pertinence"`
	Decision        string       `json:"decision"`
	Reasons         []string     `json:"reasons"`
	AttentionPoints []string     `json:"attention_points"`
	Provider        string       `json:"provider,omitempty"`
	Draft           *draftOutput `json:"draft,omitempty"`
}

type draftOutput struct {
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Provider string `json:"provider,omitempty"`
}

func classify(ctx context.Context, out io.Writer, cfg *config.Config, classifier *core.ClassifierChain, responder *core.ResponseChain, criteria core.Criteria) error {
	var input io.Reader = bufio.NewReader(os.Stdin)
	if classifyFile != "" {
		file, err := os.Open(classifyFile)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		input = file
	}

	opp, err := imap.ParseMessage(0, input, time.Now())
	if err != nil {
		return err
	}

	result := classifier.Classify(ctx, opp, criteria)
	output := classifyOutput{
		Subject:         opp.Subject,
		Sender:          opp.Sender,
		Pertinence:      result.Pertinence,
		Decision:        string(result.Decision),
		Reasons:         result.Reasons,
		AttentionPoints: result.AttentionPoints,
		Provider:        result.Provider,
	}

	if classifyDraft && result.Decision == core.DecisionRetained {
		draft := responder.Draft(ctx, opp, criteria, cfg.GetReply().Signature)
		output.Draft = &draftOutput{
			Subject:  draft.Subject,
			Body:     draft.FullBody(),
			Provider: draft.Provider,
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(output)
}
