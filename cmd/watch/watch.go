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

// Package watch provides the watch command for bindle.
package watch

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/bindle/bundle"
	"bennypowers.dev/bindle/emit"
	"bennypowers.dev/bindle/fs"
	"bennypowers.dev/bindle/internal/config"
	"bennypowers.dev/bindle/internal/logging"
	"bennypowers.dev/bindle/internal/output"
	"bennypowers.dev/bindle/watch"
)

// Cmd is the watch cobra command that rebuilds on file changes.
var Cmd = &cobra.Command{
	Use:   "watch [entries...]",
	Short: "Build, then rebuild incrementally on file changes",
	Long: `Build and emit the entries, then watch the project root. Each batch of
changes rebuilds only the affected modules, re-emits the output, and prints one
JSON update per line describing the modules to replace, or a full reload.`,
	Example: `  # Watch the configured entries
  bindle watch

  # Watch with a longer quiet period before rebuilding
  bindle watch --debounce 300ms`,
	RunE: run,
}

func init() {
	Cmd.Flags().String("out-dir", "", "Output directory (default: dist)")
	Cmd.Flags().IntP("jobs", "j", 0, "Number of parallel workers (default: number of CPUs)")
	Cmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before a rebuild")
	Cmd.Flags().StringSlice("ignore", nil, "Additional glob patterns to ignore (relative to the root)")
}

func run(cmd *cobra.Command, args []string) error {
	if err := config.BindFlags(cmd, map[string]string{
		"outDir": "out-dir",
		"jobs":   "jobs",
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
	emitter, err := emit.New(cfg.EmitOptions(osfs, logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := s.Build(ctx)
	if err != nil {
		return err
	}
	if _, err := emitter.Emit(ctx, result); err != nil {
		return err
	}

	debounce, _ := cmd.Flags().GetDuration("debounce")
	ignore, _ := cmd.Flags().GetStringSlice("ignore")
	if rel, err := filepath.Rel(cfg.Root, cfg.OutDir); err == nil && !strings.HasPrefix(rel, "..") {
		ignore = append(ignore, filepath.ToSlash(rel)+"/**")
	}

	updates := output.NewNDJSON(cmd.OutOrStdout())
	w, err := watch.New(watch.Options{
		Root:     cfg.Root,
		Ignore:   ignore,
		Debounce: debounce,
		Logger:   logger,
		OnChange: func(ctx context.Context, paths []string) error {
			return rebuild(ctx, s, emitter, updates, logger, paths)
		},
	})
	if err != nil {
		return err
	}
	logger.Info("Watching for changes", "root", cfg.Root)
	return w.Run(ctx)
}

// rebuild applies one batch of changed paths.
func rebuild(ctx context.Context, s *bundle.Session, emitter *emit.Emitter, updates *output.NDJSON, logger *log.Logger, paths []string) error {
	for _, p := range paths {
		ids, err := s.InvalidatePath(p)
		if err != nil {
			return err
		}
		logger.Debug("Invalidated", "path", p, "modules", len(ids))
	}

	update, result, err := s.Rebuild(ctx)
	if err != nil {
		var fatal *bundle.FatalError
		if errors.As(err, &fatal) {
			// Keep watching; the next change may fix the entry.
			logger.Error("Rebuild failed", "error", err)
			return nil
		}
		return err
	}
	if update.Empty() {
		return nil
	}
	for _, e := range update.Errors {
		logger.Error(e.Error())
	}
	if _, err := emitter.EmitUpdate(ctx, result, update); err != nil {
		return err
	}
	return updates.Encode(update)
}
