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
package stages

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"path"
	"strconv"

	"bennypowers.dev/bindle/fingerprint"
	"bennypowers.dev/bindle/module"
	"bennypowers.dev/bindle/transform"
)

// DefaultAssetLimit is the inline size limit in bytes.
const DefaultAssetLimit = 8192

// AssetOptions configures the asset stage.
type AssetOptions struct {
	// Limit is the largest file inlined as a data URI. Zero means
	// DefaultAssetLimit; negative never inlines.
	Limit int `mapstructure:"limit"`
	// OutputPath is the directory, relative to the output root, that
	// emitted files are placed in.
	OutputPath string `mapstructure:"outputPath"`
	// PublicPath prefixes the URL exported for emitted files.
	PublicPath string `mapstructure:"publicPath"`
}

// Asset returns a stage that turns a binary file into a module exporting its
// URL: a data URI for small files, an emitted artifact otherwise.
func Asset(opts AssetOptions) transform.Func {
	limit := opts.Limit
	if limit == 0 {
		limit = DefaultAssetLimit
	}
	return func(_ context.Context, src transform.Source) (transform.Result, error) {
		ext := src.ID.Ext()
		if limit > 0 && len(src.Code) <= limit {
			mimeType := mime.TypeByExtension(ext)
			if mimeType == "" {
				mimeType = "application/octet-stream"
			}
			uri := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(src.Code))
			return transform.Result{Code: exportDefault(uri)}, nil
		}

		name := fingerprint.Short(fingerprint.SHA256.Sum(src.Code), 10) + ext
		virtual := path.Join(opts.OutputPath, name)
		return transform.Result{
			Code:      exportDefault(opts.PublicPath + virtual),
			Artifacts: []module.Artifact{{VirtualPath: virtual, Bytes: src.Code}},
		}, nil
	}
}

func exportDefault(s string) []byte {
	return []byte("export default " + strconv.Quote(s) + ";\n")
}

// BannerOptions configures the banner stage.
type BannerOptions struct {
	Text string `mapstructure:"text"`
}

// Banner returns a stage that prepends a block comment.
func Banner(opts BannerOptions) transform.Func {
	header := []byte("/*! " + opts.Text + " */\n")
	return transform.Bytes(func(code []byte, _ string) ([]byte, error) {
		out := make([]byte, 0, len(header)+len(code))
		return append(append(out, header...), code...), nil
	})
}
