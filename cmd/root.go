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
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/valpere/restyle/internal/config"
	"github.com/valpere/restyle/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile string
	logJSON bool

	v   = config.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "restyle",
	Short: "Rewrite documents into a target tone and complexity",
	Long: `restyle rewrites a document into a requested tone and reading level.

Each run analyzes the source style, retrieves similar earlier rewrites,
plans the rewrite, converts the text and scores the result. Rewrites that
match the target tone well are kept as examples for later runs.

Use "restyle transform --help" for rewrite options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal.
		_ = godotenv.Load()

		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Init(logJSON, logging.ParseLevel(cfg.LogLevel))
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./restyle.yaml or ~/.config/restyle/restyle.yaml)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.BoolVar(&logJSON, "log-json", false, "Write logs as JSON")
	flags.String("store", "transformation_examples.json", "Example store file")
	flags.String("db", "./data/restyle.db", "Run history database path")

	v.BindPFlag("log_level", flags.Lookup("log-level"))
	v.BindPFlag("store_path", flags.Lookup("store"))
	v.BindPFlag("history_db", flags.Lookup("db"))
}
