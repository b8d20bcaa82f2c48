package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/match"
	"github.com/sells-group/candidate-cli/internal/monitoring"
	"github.com/sells-group/candidate-cli/internal/normalize"
	"github.com/sells-group/candidate-cli/internal/table"
)

var (
	normalizeInput    string
	normalizeOutput   string
	normalizeReport   string
	normalizeSample   int
	normalizeSeed     int64
	normalizeStrategy string
	normalizeWorkers  int
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize a raw candidate table",
	Long: `Loads a CSV or XLSX candidate table, renames legacy columns, resolves skill,
role, level and city against the taxonomy, cleans contact fields and classifies
every row. The result is written to the preprocessed directory for "process".

Examples:
  # Normalize a spreadsheet into data/preprocessed/teachers.xlsx
  candidate-cli normalize --input raw/teachers.xlsx

  # Try the pattern stage alone on 500 random rows
  candidate-cli normalize --input raw/teachers.xlsx --sample 500 --strategy pattern --output /tmp/sample.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runNormalize(ctx)
	},
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizeInput, "input", "", "raw candidate table (.csv or .xlsx)")
	normalizeCmd.Flags().StringVar(&normalizeOutput, "output", "", "output table (default: <batch.input_dir>/<input name>)")
	normalizeCmd.Flags().StringVar(&normalizeReport, "report", "", "write the matching report here (.json for JSON) instead of stdout")
	normalizeCmd.Flags().IntVar(&normalizeSample, "sample", 0, "normalize only N randomly chosen rows")
	normalizeCmd.Flags().Int64Var(&normalizeSeed, "seed", 42, "random seed for --sample")
	normalizeCmd.Flags().StringVar(&normalizeStrategy, "strategy", "", "matching strategy (default: normalize.strategy)")
	normalizeCmd.Flags().IntVar(&normalizeWorkers, "workers", 0, "worker pool size (default: normalize.workers)")
	_ = normalizeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(ctx context.Context) error {
	strategyName := normalizeStrategy
	if strategyName == "" {
		strategyName = cfg.Normalize.Strategy
	}
	strategy, err := match.ParseStrategy(strategyName)
	if err != nil {
		return err
	}
	workers := normalizeWorkers
	if workers <= 0 {
		workers = cfg.Normalize.Workers
	}

	tbl, err := table.Load(ctx, normalizeInput)
	if err != nil {
		return err
	}
	if err := table.Prepare(tbl, cfg.Normalize.SkillColumn); err != nil {
		return err
	}
	if normalizeSample > 0 {
		tbl = table.Sample(tbl, normalizeSample, normalizeSeed)
	}

	metrics := monitoring.NewMetrics()
	m, err := initMatcher(ctx, metrics)
	if err != nil {
		return err
	}
	n := normalize.New(m, normalize.WithSkillColumn(cfg.Normalize.SkillColumn))

	out, err := normalize.Transform(ctx, tbl, n, normalize.Options{
		Strategy: strategy,
		Workers:  workers,
		Recorder: metrics,
	})
	if err != nil {
		return eris.Wrap(err, "normalize")
	}

	dest := normalizeOutput
	if dest == "" {
		dest = filepath.Join(cfg.Batch.InputDir, filepath.Base(normalizeInput))
	}
	if err := table.Save(dest, out); err != nil {
		return err
	}
	zap.L().Info("normalized table written", zap.String("output", dest), zap.Int("rows", out.Len()))

	rep, err := normalize.BuildReport(out)
	if err != nil {
		return err
	}
	if normalizeReport != "" {
		if err := normalize.SaveReport(normalizeReport, rep); err != nil {
			return err
		}
	} else if err := normalize.WriteReport(os.Stdout, rep, normalize.FormatText); err != nil {
		return err
	}

	finishMetrics(ctx, metrics)
	return nil
}
