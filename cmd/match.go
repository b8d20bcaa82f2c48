package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/candidate-cli/internal/match"
	"github.com/sells-group/candidate-cli/internal/model"
)

var matchCmd = &cobra.Command{
	Use:   "match TEXT...",
	Short: "Resolve free text against one taxonomy category",
	Long: `Runs the matcher on each argument and prints the canonical term and the
stage that produced it. Useful when tuning patterns and thresholds.

Examples:
  candidate-cli match --category role "PGT Physics Teacher" "Vice-Principal"
  candidate-cli match --category city --state Karnataka Bengaluru`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		catName, _ := cmd.Flags().GetString("category")
		strategyName, _ := cmd.Flags().GetString("strategy")
		state, _ := cmd.Flags().GetString("state")

		cat, err := model.ParseCategory(catName)
		if err != nil {
			return err
		}
		if strategyName == "" {
			strategyName = cfg.Normalize.Strategy
		}
		strategy, err := match.ParseStrategy(strategyName)
		if err != nil {
			return err
		}

		m, err := initMatcher(ctx, nil)
		if err != nil {
			return err
		}
		formatMatches(os.Stdout, resolveAll(ctx, m, cat, strategy, state, args))
		return nil
	},
}

func init() {
	matchCmd.Flags().String("category", string(model.CategoryRole), "category (role, level, skill, city)")
	matchCmd.Flags().String("strategy", "", "matching strategy (default: normalize.strategy)")
	matchCmd.Flags().String("state", "", "state that scopes city matching")
	rootCmd.AddCommand(matchCmd)
}

type matchLine struct {
	Text   string
	Result match.Result
}

func resolveAll(ctx context.Context, m *match.Matcher, cat model.Category, s match.Strategy, state string, texts []string) []matchLine {
	out := make([]matchLine, 0, len(texts))
	for _, text := range texts {
		var res match.Result
		switch cat {
		case model.CategoryCity:
			res = m.ResolveCity(text, state)
		case model.CategoryLevel:
			res = m.ResolveLevel(ctx, text, s)
		default:
			res = m.Resolve(ctx, cat, text, s)
		}
		out = append(out, matchLine{Text: text, Result: res})
	}
	return out
}

func formatMatches(out io.Writer, lines []matchLine) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TEXT\tCANONICAL\tSTAGE\tSCORE")
	for _, l := range lines {
		canonical, stage, score := "-", "-", ""
		if l.Result.OK() {
			canonical = l.Result.Canonical
			stage = string(l.Result.Stage)
		}
		if l.Result.Score > 0 {
			score = fmt.Sprintf("%.2f", l.Result.Score)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", strings.TrimSpace(l.Text), canonical, stage, score)
	}
	_ = w.Flush()
}
