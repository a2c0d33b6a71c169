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

// Package dll provides the dll command for bindle.
package dll

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/bindle/dll"
	"bennypowers.dev/bindle/fs"
	"bennypowers.dev/bindle/internal/config"
	"bennypowers.dev/bindle/internal/logging"
	"bennypowers.dev/bindle/internal/output"
)

// Cmd is the dll cobra command that pre-bundles libraries.
var Cmd = &cobra.Command{
	Use:   "dll <name> <library...>",
	Short: "Pre-bundle libraries into a DLL bundle and manifest",
	Long: `Bundle the named libraries into one file that exposes them through a global,
and write a manifest describing it. Builds that list the manifest under
dll.manifests in bindle.yaml import those libraries from the bundle instead of
rebuilding them.`,
	Example: `  # Pre-bundle jquery and lodash
  bindle dll vendors jquery lodash

  # Then reference the manifest in bindle.yaml:
  #   dll:
  #     manifests: [dll/vendors.manifest.json]
  bindle dll vendors jquery --out-dir dll`,
	Args: cobra.MinimumNArgs(2),
	RunE: run,
}

func init() {
	Cmd.Flags().String("out-dir", "", "Output directory (default: dist)")
	Cmd.Flags().String("filename", dll.DefaultFilename, "Bundle filename template")
	Cmd.Flags().String("manifest", "", "Manifest path relative to the output directory (default: <name>.manifest.json)")
	Cmd.Flags().Bool("dry-run", false, "Compute the bundle without writing it")
}

func run(cmd *cobra.Command, args []string) error {
	if err := config.BindFlags(cmd, map[string]string{"outDir": "out-dir"}); err != nil {
		return err
	}
	osfs := fs.NewOSFileSystem()
	logger := logging.New(os.Stderr, viper.GetString("log-level"))

	name, libraries := args[0], args[1:]
	cfg, err := config.ForCommand(libraries)
	if err != nil {
		return err
	}
	opts, err := cfg.Options(osfs, logger)
	if err != nil {
		return err
	}
	// The libraries being bundled cannot come from another bundle.
	for _, lib := range libraries {
		delete(opts.Externals, lib)
	}

	emitOpts := cfg.EmitOptions(osfs, logger)
	emitOpts.Filename, _ = cmd.Flags().GetString("filename")
	emitOpts.Precache = false
	emitOpts.DryRun, _ = cmd.Flags().GetBool("dry-run")
	manifestFile, _ := cmd.Flags().GetString("manifest")

	result, err := dll.Build(cmd.Context(), dll.Options{
		Name:         name,
		Libraries:    libraries,
		Session:      opts,
		Emit:         emitOpts,
		ManifestFile: manifestFile,
	})
	if err != nil {
		return fmt.Errorf("dll failed: %w", err)
	}
	return output.JSON(osfs, result.Manifest)
}
