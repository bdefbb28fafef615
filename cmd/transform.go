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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/restyle/internal/pipeline"
)

var (
	inputFile   string
	outputFile  string
	targetTone  string
	complexity  string
	contentType string
	quiet       bool
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Rewrite a document into a target tone and complexity",
	Long: `Rewrite a document into a target tone and reading complexity.

The input is analyzed, similar earlier rewrites are retrieved as examples,
and the rewrite is planned, converted and scored. When the tone match score
is above 0.8 the rewrite is kept as a new example.

Use "-i -" to read from stdin. Without -o the rewrite is printed to stdout.`,
	Example: `  restyle transform -i report.md -o report.casual.md --tone casual --complexity beginner
  cat note.txt | restyle transform -i - --tone formal --complexity advanced --type email`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFile != "" && inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		content, err := readInput(inputFile)
		if err != nil {
			return err
		}
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("input is empty")
		}

		ctx := cmd.Context()
		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.pipeline.Run(ctx, pipeline.Request{
			Content:          content,
			TargetTone:       targetTone,
			TargetComplexity: complexity,
			ContentType:      contentType,
		})
		if err != nil {
			return err
		}

		if outputFile == "" {
			fmt.Fprintln(os.Stdout, res.TransformedContent)
		} else {
			if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			if err := os.WriteFile(outputFile, []byte(res.TransformedContent), 0644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
		}

		if !quiet {
			printReport(os.Stderr, res)
		}
		return nil
	},
}

func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read input file: %w", err)
	}
	return string(data), nil
}

func printReport(w io.Writer, res *pipeline.Result) {
	q := res.Quality
	fmt.Fprintf(w, "Run:          %s (%s)\n", res.RunID, res.Duration.Round(1e6))
	fmt.Fprintf(w, "Source style: %s, %s, %s", res.Analysis.Tone, res.Analysis.Complexity, res.Analysis.Structure)
	if res.Analysis.Language != "" {
		fmt.Fprintf(w, ", %s", res.Analysis.Language)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Examples:     %d\n", len(res.SimilarExamples))
	fmt.Fprintf(w, "Tone match:   %.2f\n", q.ToneMatch)
	fmt.Fprintf(w, "Grammar:      %.2f\n", q.GrammarScore)
	fmt.Fprintf(w, "Consistency:  %.2f\n", q.ConsistencyScore)
	fmt.Fprintf(w, "Factuality:   %.2f\n", q.FactualityScore)
	fmt.Fprintf(w, "Retention:    %s\n", res.Retention)
	if len(q.Suggestions) > 0 {
		fmt.Fprintln(w, "Suggestions:")
		for _, s := range q.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warn)
	}
}

func init() {
	rootCmd.AddCommand(transformCmd)

	flags := transformCmd.Flags()
	flags.StringVarP(&inputFile, "input", "i", "", "Input file to rewrite, or - for stdin (required)")
	flags.StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
	flags.StringVarP(&targetTone, "tone", "t", "", "Target tone, e.g. casual, formal, academic (required)")
	flags.StringVarP(&complexity, "complexity", "c", "", "Target complexity: beginner, intermediate, advanced (required)")
	flags.StringVar(&contentType, "type", pipeline.DefaultContentType, "Content type recorded with kept examples")
	flags.Int("k", 3, "Number of similar examples to retrieve")
	flags.Bool("parallel", false, "Retrieve examples and plan concurrently")
	flags.Bool("no-history", false, "Do not record the run in the history database")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Do not print the quality report")

	v.BindPFlag("similar_k", flags.Lookup("k"))
	v.BindPFlag("parallel", flags.Lookup("parallel"))
	v.BindPFlag("no_history", flags.Lookup("no-history"))

	transformCmd.MarkFlagRequired("input")
	transformCmd.MarkFlagRequired("tone")
	transformCmd.MarkFlagRequired("complexity")
}
