package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/batch"
	"github.com/sells-group/candidate-cli/internal/monitoring"
)

var (
	processInputDir  string
	processOutputDir string
	processBatchDir  string
	processBatchSize int
	processYes       bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Extract resumes for every preprocessed table in batches",
	Long: `Finds preprocessed tables with no processed counterpart, splits their pending
rows into batches, submits each batch's resumes to the extraction service and
merges the results back. A table is written to the output directory only when
all of its batches succeeded; re-running resumes from the journal.

Unless --yes is given, the run and every batch wait for confirmation
(Enter to continue, q to quit).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bc := batchConfig(processInputDir, processOutputDir, processBatchDir, processBatchSize)
		metrics := monitoring.NewMetrics()
		opts := []batch.Option{
			batch.WithRecorder(metrics),
			batch.WithBreaker(initBreaker()),
		}

		if !processYes {
			gate := batch.NewPromptGate(os.Stdin, os.Stderr)
			ok, err := gate.Confirm(fmt.Sprintf("Process tables in %s into %s?", bc.InputDir, bc.OutputDir))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(os.Stderr, "Aborted.") //nolint:errcheck
				return nil
			}
			opts = append(opts, batch.WithGate(gate))
		}

		journal, err := initJournal(ctx)
		if err != nil {
			return err
		}
		defer journal.Close() //nolint:errcheck

		orch := batch.New(bc, journal, initFetcher(), initExtractor(), opts...)
		outcome, runErr := orch.Run(ctx)
		if outcome != nil {
			formatRunOutcome(os.Stdout, outcome)
		}
		finishMetrics(ctx, metrics)
		if runErr != nil {
			zap.L().Error("process stopped", zap.Error(runErr))
		}
		return runErr
	},
}

func init() {
	processCmd.Flags().StringVar(&processInputDir, "input-dir", "", "preprocessed tables (default: batch.input_dir)")
	processCmd.Flags().StringVar(&processOutputDir, "output-dir", "", "processed tables (default: batch.output_dir)")
	processCmd.Flags().StringVar(&processBatchDir, "batch-dir", "", "persisted batches (default: batch.batch_dir)")
	processCmd.Flags().IntVar(&processBatchSize, "batch-size", 0, "rows per batch (default: batch.size)")
	processCmd.Flags().BoolVarP(&processYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(processCmd)
}

// formatRunOutcome writes one line per batch and a closing status per file.
func formatRunOutcome(out io.Writer, run *batch.RunOutcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tBATCH\tSTATE\tROWS\tSUBMITTED\tSUCCEEDED\tFAILED\tSKIPPED")
	for _, f := range run.Files {
		for _, b := range f.Batches {
			id := truncateID(b.ID)
			if b.Resumed {
				id += "*"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				f.Name, id, b.State, b.Rows, b.Submitted, b.Succeeded, b.Failed, b.Skipped)
		}
	}
	_ = w.Flush()

	for _, f := range run.Files {
		switch {
		case f.Err != nil:
			_, _ = fmt.Fprintf(out, "%s: skipped: %v\n", f.Name, f.Err)
		case f.Checkpointed:
			_, _ = fmt.Fprintf(out, "%s: done (%d rows replayed from journal)\n", f.Name, f.Replayed)
		default:
			_, _ = fmt.Fprintf(out, "%s: incomplete, re-run to resume\n", f.Name)
		}
	}
	if run.Aborted {
		_, _ = fmt.Fprintln(out, "Run stopped by operator.")
	}
}
