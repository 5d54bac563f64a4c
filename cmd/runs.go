package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/scryptbench/internal/store"
)

const defaultResultsDir = "./results"

func newRunsCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage saved run summaries",
		Long: `Manage summaries written by runs started with --results-dir.
Each summary records the kernel, parameters, aggregate hashrate and mismatch count.`,
	}
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultResultsDir,
		"Directory holding saved run summaries (defaults to --results-dir from env or config)")

	cmd.AddCommand(newRunsListCmd(&dataDir), newRunsCleanCmd(&dataDir))
	return cmd
}

func newRunsListCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved run summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openRunStore(cmd, *dataDir)
			if err != nil {
				return err
			}
			summaries, err := st.ListSummaries()
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tFINISHED\tKERNEL\tBACKEND\tHASHRATE\tMISMATCHES")
			fmt.Fprintln(w, "------\t--------\t------\t-------\t--------\t----------")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0fkH/s\t%d\n",
					shortID(s.RunID),
					s.Finished.Format("2006-01-02 15:04:05"),
					s.Kernel,
					s.Backend,
					s.Hashrate/1000,
					s.Mismatches,
				)
			}
			w.Flush()

			fmt.Fprintf(out, "\nTotal runs: %d\n", len(summaries))
			return nil
		},
	}
}

func newRunsCleanCmd(dataDir *string) *cobra.Command {
	var (
		keepLast      int
		olderThanDays int
		force         bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete old run summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keepLast <= 0 && olderThanDays <= 0 {
				return fmt.Errorf("%w: must specify either --keep-last or --older-than", errUsage)
			}

			st, err := openRunStore(cmd, *dataDir)
			if err != nil {
				return err
			}
			summaries, err := st.ListSummaries()
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			olderThan := time.Duration(olderThanDays) * 24 * time.Hour
			toDelete := store.SelectForDeletion(summaries, keepLast, olderThan, time.Now())
			if len(toDelete) == 0 {
				fmt.Fprintln(out, "No runs match deletion criteria.")
				return nil
			}

			fmt.Fprintf(out, "Found %d run(s) to delete:\n", len(toDelete))
			for _, s := range toDelete {
				fmt.Fprintf(out, "  - %s (%s, %s)\n", shortID(s.RunID), s.Kernel, s.Finished.Format("2006-01-02 15:04:05"))
			}

			if !force {
				fmt.Fprint(out, "\nProceed with deletion? [y/N]: ")
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
					fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}

			deleted, failed := 0, 0
			for _, s := range toDelete {
				if err := st.DeleteSummary(s.RunID); err != nil {
					slog.Error("Failed to delete run", "run_id", s.RunID, "error", err)
					failed++
					continue
				}
				slog.Info("Deleted run", "run_id", s.RunID)
				deleted++
			}

			fmt.Fprintf(out, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N runs (0 = keep all)")
	cmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}

// openRunStore uses --data-dir when given, else the results-dir the benchmark
// would write to from SCRYPTBENCH_RESULTS_DIR or the config file.
func openRunStore(cmd *cobra.Command, dataDir string) (*store.FSStore, error) {
	if !cmd.Flags().Changed("data-dir") {
		cfgFile, _ := cmd.Flags().GetString("config")
		v, err := newViper(cfgFile)
		if err != nil {
			return nil, err
		}
		if dir := v.GetString("results-dir"); dir != "" {
			dataDir = dir
		}
	}

	st, err := store.NewFSStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open results store: %w", err)
	}
	return st, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}
