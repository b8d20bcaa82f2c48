package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/internal/store"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List journaled batches",
	Long:  "Lists the batches recorded in the journal, oldest first, with per-state totals.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		j, err := initJournal(ctx)
		if err != nil {
			return err
		}
		defer j.Close() //nolint:errcheck

		origin, _ := cmd.Flags().GetString("origin")
		state, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := j.ListBatches(ctx, store.BatchFilter{
			Origin: origin,
			State:  model.BatchState(state),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "batches")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No batches found.") //nolint:errcheck
			return nil
		}

		formatBatchList(os.Stdout, entries)
		formatBatchStats(os.Stdout, computeBatchStats(entries))
		return nil
	},
}

func init() {
	batchesCmd.Flags().String("origin", "", "filter by input file name")
	batchesCmd.Flags().String("state", "", "filter by state (split, submitted, merged, failed, abandoned)")
	batchesCmd.Flags().Int("limit", 0, "max number of batches to display (0 = all)")
	rootCmd.AddCommand(batchesCmd)
}

// batchStats holds per-state totals over a set of batches.
type batchStats struct {
	Total   int
	Rows    int
	ByState map[model.BatchState]int
	Open    int
}

func computeBatchStats(entries []model.BatchEntry) batchStats {
	s := batchStats{ByState: make(map[model.BatchState]int)}
	for _, e := range entries {
		s.Total++
		s.Rows += e.Rows
		s.ByState[e.State]++
		if e.State.Open() {
			s.Open++
		}
	}
	return s
}

// formatBatchList writes a tabular list of batches to w.
func formatBatchList(out io.Writer, entries []model.BatchEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFILE\tSTATE\tROWS\tUPDATED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t----\t-------\t-----")

	for _, e := range entries {
		errMsg := strings.ReplaceAll(e.Error, "\n", " ")
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			truncateID(e.ID),
			e.Origin,
			e.State,
			e.Rows,
			e.UpdatedAt.Local().Format("2006-01-02 15:04"),
			errMsg,
		)
	}
	_ = w.Flush()
}

func formatBatchStats(out io.Writer, s batchStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "\nTotal batches:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Rows:\t%d\n", s.Rows)
	for _, st := range []model.BatchState{model.BatchSplit, model.BatchSubmitted, model.BatchMerged, model.BatchFailed, model.BatchAbandoned} {
		if n := s.ByState[st]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", st, n)
		}
	}
	_, _ = fmt.Fprintf(w, "Still open:\t%d\n", s.Open)
	_ = w.Flush()
}

// truncateID shortens a batch id ("batch-" + UUID) for compact display.
func truncateID(id string) string {
	const keep = len("batch-") + 8
	if len(id) > keep {
		return id[:keep]
	}
	return id
}
