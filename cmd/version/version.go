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

// Package version provides the version command for bindle.
package version

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"bennypowers.dev/bindle/internal/version"
)

// Cmd is the version command.
var Cmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print version information for bindle and the esbuild and tree-sitter versions it was built with.`,
	RunE:  run,
}

func init() {
	Cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	Cmd.Flags().Bool("tools", false, "Also list toolchain versions in text output")
}

func run(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("error reading format flag: %w", err)
	}
	w := cmd.OutOrStdout()
	info := version.GetBuildInfo()
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "text":
		fmt.Fprintf(w, "bindle %s\n", version.GetFullVersion())
		if verbose, _ := cmd.Flags().GetBool("tools"); verbose {
			fmt.Fprintf(w, "  go %s\n", info.Go)
			for _, name := range slices.Sorted(maps.Keys(info.Tools)) {
				fmt.Fprintf(w, "  %s %s\n", name, info.Tools[name])
			}
		}
		return nil
	default:
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", format)
	}
}
