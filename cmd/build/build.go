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

// Package build provides the build command for bindle.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/bindle/bundle"
	"bennypowers.dev/bindle/emit"
	"bennypowers.dev/bindle/fs"
	"bennypowers.dev/bindle/internal/config"
	"bennypowers.dev/bindle/internal/logging"
	"bennypowers.dev/bindle/internal/output"
)

// Cmd is the build cobra command that bundles entries and writes the output.
var Cmd = &cobra.Command{
	Use:   "build [entries...]",
	Short: "Bundle entry modules into chunks",
	Long: `Build the dependency graph of the entry modules, partition it into chunks,
and write the chunks with their stylesheets, source maps, and HTML pages.

Entries come from the arguments or the entries key of bindle.yaml. Entries
may be globs. The list of emitted assets is printed as JSON.`,
	Example: `  # Build the entries configured in bindle.yaml
  bindle build

  # Build two pages, extracting modules over 30kB into shared chunks
  bindle build ./src/home.js ./src/about.js --shared-threshold 30000

  # Write the metafile for bundle analysis
  bindle build --stats dist/meta.json

  # See what would be emitted without writing
  bindle build --dry-run`,
	RunE: run,
}

func init() {
	Cmd.Flags().String("out-dir", "", "Output directory (default: dist)")
	Cmd.Flags().IntP("jobs", "j", 0, "Number of parallel workers (default: number of CPUs)")
	Cmd.Flags().String("fingerprint", "", "Content hash algorithm (sha256, xxhash)")
	Cmd.Flags().Int("shared-threshold", 0, "Also extract modules over this many bytes into shared chunks")
	Cmd.Flags().String("stats", "", "Write the build metafile to this path")
	Cmd.Flags().Bool("dry-run", false, "Compute assets without writing them")
}

// Summary is the printed result of a build.
type Summary struct {
	Assets   []*emit.Asset              `json:"assets"`
	Chunks   map[string]emit.ChunkFiles `json:"chunks"`
	Errors   []string                   `json:"errors,omitempty"`
	Warnings []string                   `json:"warnings,omitempty"`
}

func run(cmd *cobra.Command, args []string) error {
	if err := config.BindFlags(cmd, map[string]string{
		"outDir":          "out-dir",
		"jobs":            "jobs",
		"fingerprint":     "fingerprint",
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
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	stats, _ := cmd.Flags().GetString("stats")

	summary, err := Run(cmd.Context(), osfs, cfg, logger, dryRun, stats)
	if err != nil {
		return err
	}
	if err := output.JSON(osfs, summary); err != nil {
		return err
	}
	if n := len(summary.Errors); n > 0 {
		return fmt.Errorf("build finished with %d errors", n)
	}
	return nil
}

// Run builds and emits cfg once.
func Run(ctx context.Context, osfs fs.FileSystem, cfg *config.Config, logger *log.Logger, dryRun bool, stats string) (*Summary, error) {
	opts, err := cfg.Options(osfs, logger)
	if err != nil {
		return nil, err
	}
	s, err := bundle.NewSession(opts)
	if err != nil {
		return nil, err
	}
	defer s.Dispose()

	result, err := s.Build(ctx)
	if err != nil {
		var fatal *bundle.FatalError
		if errors.As(err, &fatal) {
			return nil, fmt.Errorf("build failed: %w", err)
		}
		return nil, err
	}
	for _, e := range result.Errors {
		logger.Error(e.Error())
	}

	emitOpts := cfg.EmitOptions(osfs, logger)
	emitOpts.DryRun = dryRun
	emitter, err := emit.New(emitOpts)
	if err != nil {
		return nil, err
	}
	out, err := emitter.Emit(ctx, result)
	if err != nil {
		return nil, err
	}

	if stats != "" {
		data, err := out.Metafile.JSON()
		if err != nil {
			return nil, err
		}
		if err := osfs.WriteFile(stats, append(data, '\n'), 0644); err != nil {
			return nil, fmt.Errorf("writing stats: %w", err)
		}
	}

	summary := &Summary{Assets: out.Assets, Chunks: out.Files}
	for _, e := range result.Errors {
		summary.Errors = append(summary.Errors, e.Error())
	}
	for _, w := range result.Warnings {
		summary.Warnings = append(summary.Warnings, w.Error())
	}
	return summary, nil
}
