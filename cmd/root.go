package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "candidate-cli",
	Short: "Candidate record normalization and resume extraction pipeline",
	Long:  "Normalizes candidate spreadsheets against a controlled taxonomy, then drives the preprocessed tables through resume extraction in resumable batches.",
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return cfg.Validate(commandMode(cmd))
	}
}

// commandMode returns the name of the top-level command cmd belongs to.
func commandMode(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent() != rootCmd {
		cmd = cmd.Parent()
	}
	if cmd == rootCmd {
		return ""
	}
	return cmd.Name()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
