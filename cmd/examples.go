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
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/restyle/internal/examples"
)

var (
	examplesSearchK int
	examplesLimit   int
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Manage the store of kept rewrite examples",
}

var examplesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored examples",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := examples.ReadFile(cfg.StorePath)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No examples stored.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tTONE\tCOMPLEXITY\tTYPE\tTEXT")
		for i, ex := range list {
			if examplesLimit > 0 && i >= examplesLimit {
				break
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				i+1, ex.Tone, ex.Complexity, ex.ContentType, snippet(ex.Original, 50))
		}
		return w.Flush()
	},
}

var examplesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show example counts by tone, complexity and type",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := examples.ReadFile(cfg.StorePath)
		if err != nil {
			return err
		}

		tones := map[string]int{}
		levels := map[string]int{}
		types := map[string]int{}
		for _, ex := range list {
			tones[ex.Tone]++
			levels[ex.Complexity]++
			types[ex.ContentType]++
		}

		fmt.Printf("Store:      %s\n", cfg.StorePath)
		fmt.Printf("Examples:   %d\n", len(list))
		fmt.Printf("Tones:      %s\n", formatCounts(tones))
		fmt.Printf("Complexity: %s\n", formatCounts(levels))
		fmt.Printf("Types:      %s\n", formatCounts(types))
		return nil
	},
}

var examplesSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the examples most similar to a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openExamples(ctx, cfg)
		if err != nil {
			return err
		}

		found, err := store.FindSimilar(ctx, args[0], examplesSearchK)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if len(found) == 0 {
			fmt.Println("No examples stored.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tTONE\tCOMPLEXITY\tORIGINAL\tTRANSFORMED")
		for i, ex := range found {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				i+1, ex.Tone, ex.Complexity, snippet(ex.Original, 40), snippet(ex.Transformed, 40))
		}
		return w.Flush()
	},
}

var examplesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored examples",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := examples.ReadFile(cfg.StorePath)
		if err != nil {
			return err
		}
		// An empty store needs no embeddings to save.
		if err := examples.New(nil).Save(cfg.StorePath); err != nil {
			return fmt.Errorf("failed to clear examples: %w", err)
		}
		fmt.Printf("Cleared %d examples from %s.\n", len(list), cfg.StorePath)
		return nil
	},
}

// snippet flattens whitespace and shortens s to at most n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		label := k
		if label == "" {
			label = "(none)"
		}
		parts = append(parts, fmt.Sprintf("%s=%d", label, counts[k]))
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(examplesCmd)

	examplesListCmd.Flags().IntVarP(&examplesLimit, "limit", "n", 0, "Show at most n examples (0 for all)")
	examplesSearchCmd.Flags().IntVarP(&examplesSearchK, "top", "k", examples.DefaultK, "Number of results")

	examplesCmd.AddCommand(examplesListCmd)
	examplesCmd.AddCommand(examplesStatsCmd)
	examplesCmd.AddCommand(examplesSearchCmd)
	examplesCmd.AddCommand(examplesClearCmd)
}
