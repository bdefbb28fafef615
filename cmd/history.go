/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/restyle/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the log of transformation runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := history.New(cfg.HistoryDB)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWHEN\tTONE\tCOMPLEXITY\tSTATUS\tTONE MATCH\tLATENCY\tTEXT")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
				r.ID, r.Timestamp.Local().Format("2006-01-02 15:04"),
				r.TargetTone, r.TargetComplexity, r.Status,
				r.Quality.ToneMatch, r.Latency.Round(1e6), snippet(r.Content, 40))
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := history.New(cfg.HistoryDB)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		r, err := db.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:          %s\n", r.ID)
		fmt.Printf("When:        %s\n", r.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Target:      %s, %s (%s)\n", r.TargetTone, r.TargetComplexity, r.ContentType)
		fmt.Printf("Status:      %s\n", r.Status)
		if r.FailedStage != "" {
			fmt.Printf("Failed at:   %s: %s\n", r.FailedStage, r.Error)
		}
		fmt.Printf("Examples:    %d\n", r.SimilarCount)
		fmt.Printf("Tone match:  %.2f\n", r.Quality.ToneMatch)
		fmt.Printf("Latency:     %s\n", r.Latency.Round(1e6))
		for _, s := range r.Quality.Suggestions {
			fmt.Printf("Suggestion:  %s\n", s)
		}
		fmt.Printf("\n--- original ---\n%s\n", r.Content)
		if r.Transformed != "" {
			fmt.Printf("\n--- transformed ---\n%s\n", r.Transformed)
		}
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := history.New(cfg.HistoryDB)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Total runs:        %d\n", stats.TotalRuns)
		fmt.Printf("Retained:          %d\n", stats.Retained)
		fmt.Printf("Not retained:      %d\n", stats.NotRetained)
		fmt.Printf("Retention failed:  %d\n", stats.RetentionFailed)
		fmt.Printf("Failed:            %d\n", stats.Failed)
		fmt.Printf("Avg tone match:    %.2f\n", stats.AvgToneMatch)
		fmt.Printf("Avg latency:       %s\n", stats.AvgLatency.Round(1e6))
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := history.New(cfg.HistoryDB)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		n, err := db.ClearRuns(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Printf("Cleared %d runs from history.\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Show at most n runs (0 for all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyClearCmd)
}
