/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package graph provides the graph command for bindle.
package graph

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/bindle/bundle"
	"bennypowers.dev/bindle/fs"
	"bennypowers.dev/bindle/internal/config"
	"bennypowers.dev/bindle/internal/logging"
	"bennypowers.dev/bindle/internal/output"
)

// Cmd is the graph cobra command that prints the dependency graph and chunk
// assignment without emitting anything.
var Cmd = &cobra.Command{
	Use:   "graph [entries...]",
	Short: "Print the dependency graph as JSON",
	Long: `Build the dependency graph of the entry modules and print its modules,
imports, cycles, and chunks as JSON. Nothing is written to the output directory.`,
	Example: `  # Inspect the graph of the configured entries
  bindle graph

  # Save the graph of one entry
  bindle graph ./src/index.js -o graph.json`,
	RunE: run,
}

func init() {
	Cmd.Flags().IntP("jobs", "j", 0, "Number of parallel workers (default: number of CPUs)")
	Cmd.Flags().Int("shared-threshold", 0, "Also extract modules over this many bytes into shared chunks")
}

func run(cmd *cobra.Command, args []string) error {
	if err := config.BindFlags(cmd, map[string]string{
		"jobs":            "jobs",
		"sharedThreshold": "shared-threshold",
	}); err != nil {
		return err
	}
	osfs := fs.NewOSFileSystem()
	logger := logging.New(os.Stderr, viper.GetString("log-level"))

	cfg, err := config.ForCommand(args)
	if err != nil {
		return err
	}
	opts, err := cfg.Options(osfs, logger)
	if err != nil {
		return err
	}
	s, err := bundle.NewSession(opts)
	if err != nil {
		return err
	}
	defer s.Dispose()

	result, err := s.Build(cmd.Context())
	if err != nil {
		return err
	}
	return output.JSON(osfs, result.Report())
}
