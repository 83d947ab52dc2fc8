package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/catwalk/jit/trace"
)

// --- catwalk inspect ---

var (
	inspectDBPath string
	inspectRunID  string
	inspectLast   int
	inspectAll    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show runs and decisions persisted with --trace-db",
	Long:  "Without --run, lists the most recent runs in the trace database. With --run, prints the summary of that run and its recompilations (every decision with --all).",
	Run: func(cmd *cobra.Command, args []string) {
		if inspectDBPath == "" {
			logrus.Fatalf("--trace-db is required")
		}
		store, err := trace.OpenStore(inspectDBPath)
		if err != nil {
			logrus.Fatalf("opening trace db: %v", err)
		}
		defer store.Close()

		if inspectRunID == "" {
			runs, err := store.ListRuns(inspectLast)
			if err != nil {
				logrus.Fatalf("listing runs: %v", err)
			}
			writeRuns(os.Stdout, runs)
			return
		}
		records, err := store.LoadRun(inspectRunID)
		if err != nil {
			logrus.Fatalf("loading run %s: %v", inspectRunID, err)
		}
		writeDecisions(os.Stdout, records, inspectAll)
		printSummary(trace.Summarize(records))
	},
}

func writeRuns(w io.Writer, runs []trace.RunInfo) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	for _, r := range runs {
		label := r.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "%s  seed=%d  decisions=%d  label=%s  created=%s\n",
			r.RunID, r.Seed, r.Decisions, label, r.CreatedAt.Format(time.RFC3339))
	}
}

// writeDecisions prints one line per decision. Unless all is set only
// recompilations and rejections are shown.
func writeDecisions(w io.Writer, records []trace.DecisionRecord, all bool) {
	for _, r := range records {
		if !all && r.Reason != trace.ReasonCompiled && r.Reason != trace.ReasonRejected {
			continue
		}
		fmt.Fprintf(w, "%-16s round=%-5d %-13s %-8s chain=[%s] per-call=%.2f obs=%d\n",
			r.CallSite, r.Round, r.State, r.Reason, strings.Join(r.Chain, " "), r.PerCallCost, r.Observations)
	}
}

func printSummary(s *trace.TraceSummary) {
	writeSummary(os.Stdout, s)
}

func writeSummary(w io.Writer, s *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Decision Summary ===")
	fmt.Fprintf(w, "Decisions        : %d\n", s.TotalDecisions)
	fmt.Fprintf(w, "Recompilations   : %d\n", s.Recompilations)
	fmt.Fprintf(w, "Reuses           : %d\n", s.Reuses)
	fmt.Fprintf(w, "Rejections       : %d\n", s.Rejections)
	fmt.Fprintf(w, "Per-call cost    : mean %.2f, stddev %.2f, max %.2f\n",
		s.MeanPerCallCost, s.StdDevPerCallCost, s.MaxPerCallCost)

	ids := make([]string, 0, len(s.Sites))
	for id := range s.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		site := s.Sites[id]
		fmt.Fprintf(w, "  %s: %d decisions, %d recompilations, %d reuses, mean per-call %.2f, final [%s]\n",
			id, site.Decisions, site.Recompilations, site.Reuses, site.MeanPerCallCost, strings.Join(site.FinalChain, " "))
	}
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDBPath, "trace-db", "", "SQLite trace database written by run --trace-db")
	inspectCmd.Flags().StringVar(&inspectRunID, "run", "", "Run id to show (default: list runs)")
	inspectCmd.Flags().IntVar(&inspectLast, "last", 10, "Number of runs to list (0 = all)")
	inspectCmd.Flags().BoolVar(&inspectAll, "all", false, "Show every decision, not only recompilations")
}
