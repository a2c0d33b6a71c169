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

// Package config loads bindle project configuration from a bindle.{yaml,json,toml}
// file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/bindle/bundle"
	"bennypowers.dev/bindle/dll"
	"bennypowers.dev/bindle/emit"
	"bennypowers.dev/bindle/fingerprint"
	"bennypowers.dev/bindle/fs"
	"bennypowers.dev/bindle/graph"
	"bennypowers.dev/bindle/hmr"
	"bennypowers.dev/bindle/internal/logging"
	"bennypowers.dev/bindle/transform"
	"bennypowers.dev/bindle/transform/stages"
	"bennypowers.dev/bindle/validate"
)

// FileName is the config file name without its extension.
const FileName = "bindle"

// Transform is one configured transform stage.
type Transform struct {
	Name     string         `mapstructure:"name"`
	Use      string         `mapstructure:"use"`
	Include  []string       `mapstructure:"include"`
	Exclude  []string       `mapstructure:"exclude"`
	Query    string         `mapstructure:"query"`
	Priority int            `mapstructure:"priority"`
	Options  map[string]any `mapstructure:"options"`
}

// HTML configures the generated page.
type HTML struct {
	Template string `mapstructure:"template"`
	Filename string `mapstructure:"filename"`
	Title    string `mapstructure:"title"`
}

// DLL lists the manifests of pre-bundled libraries.
type DLL struct {
	Manifests []string `mapstructure:"manifests"`
}

// Hot configures incremental rebuilds.
type Hot struct {
	Accept string `mapstructure:"accept"`
}

// Config is a project configuration. Paths are absolute after Load.
type Config struct {
	Root       string   `mapstructure:"root"`
	Entries    []string `mapstructure:"entries"`
	OutDir     string   `mapstructure:"outDir"`
	PublicPath string   `mapstructure:"publicPath"`

	Extensions []string          `mapstructure:"extensions"`
	MainFields []string          `mapstructure:"mainFields"`
	Conditions []string          `mapstructure:"conditions"`
	Externals  map[string]string `mapstructure:"externals"`
	DLL        DLL               `mapstructure:"dll"`

	SharedThreshold int    `mapstructure:"sharedThreshold"`
	Fingerprint     string `mapstructure:"fingerprint"`
	Deferred        string `mapstructure:"deferred"`
	Jobs            int    `mapstructure:"jobs"`
	CacheSize       int    `mapstructure:"cacheSize"`

	Filename      string `mapstructure:"filename"`
	ChunkFilename string `mapstructure:"chunkFilename"`
	CSSFilename   string `mapstructure:"cssFilename"`
	HTML          *HTML  `mapstructure:"html"`
	Precache      bool   `mapstructure:"precache"`

	Transforms []Transform `mapstructure:"transforms"`
	Hot        Hot         `mapstructure:"hot"`
	// Validate enables the dependency hygiene warnings.
	Validate bool `mapstructure:"validate"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("outDir", "dist")
	v.SetDefault("publicPath", "/")
	v.SetDefault("fingerprint", string(fingerprint.Default))
	v.SetDefault("deferred", "dynamic-import")
	v.SetDefault("cacheSize", graph.DefaultMemoSize)
	v.SetDefault("filename", emit.DefaultFilename)
	v.SetDefault("chunkFilename", emit.DefaultChunkFilename)
	v.SetDefault("cssFilename", emit.DefaultCSSFilename)
	v.SetDefault("hot.accept", "hot-accept")
	v.SetDefault("validate", true)
}

// Load reads the config file named by the "config" key, or bindle.* in the
// root, into v and decodes the result. A missing bindle.* file is not an
// error.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	root, err := filepath.Abs(v.GetString("root"))
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(root)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if cfg.Root, err = filepath.Abs(cfg.Root); err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	cfg.OutDir = cfg.path(cfg.OutDir)
	for i, m := range cfg.DLL.Manifests {
		cfg.DLL.Manifests[i] = cfg.path(m)
	}
	if cfg.HTML != nil && cfg.HTML.Template != "" {
		cfg.HTML.Template = cfg.path(cfg.HTML.Template)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// path resolves p against the root.
func (c *Config) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

func (c *Config) validate() error {
	var errs []error
	if _, err := fingerprint.Parse(c.Fingerprint); err != nil {
		errs = append(errs, err)
	}
	if _, err := graph.ParseDeferredRule(c.Deferred); err != nil {
		errs = append(errs, err)
	}
	if _, err := hmr.ParseAcceptPolicy(c.Hot.Accept); err != nil {
		errs = append(errs, err)
	}
	for _, pattern := range []string{c.Filename, c.ChunkFilename, c.CSSFilename} {
		if _, err := emit.ParseTemplate(pattern); err != nil {
			errs = append(errs, err)
		}
	}
	if c.SharedThreshold < 0 {
		errs = append(errs, fmt.Errorf("sharedThreshold must not be negative, got %d", c.SharedThreshold))
	}
	for i, t := range c.Transforms {
		if t.Use == "" {
			errs = append(errs, fmt.Errorf("transforms[%d]: use is required", i))
		}
	}
	return errors.Join(errs...)
}

// Registrations builds the configured transform stages.
func (c *Config) Registrations() ([]transform.Registration, error) {
	regs := make([]transform.Registration, 0, len(c.Transforms))
	for i, t := range c.Transforms {
		fn, version, err := stages.Lookup(t.Use, t.Options)
		if err != nil {
			return nil, fmt.Errorf("transforms[%d]: %w", i, err)
		}
		name := t.Name
		if name == "" {
			name = t.Use
		}
		regs = append(regs, transform.Registration{
			Name:     name,
			Include:  t.Include,
			Exclude:  t.Exclude,
			Query:    t.Query,
			Priority: t.Priority,
			Version:  version,
			Fn:       fn,
		})
	}
	return regs, nil
}

// Options builds the session options. DLL manifests are read from fsys and
// merged into the externals.
func (c *Config) Options(fsys fs.FileSystem, logger logging.Logger) (bundle.Options, error) {
	regs, err := c.Registrations()
	if err != nil {
		return bundle.Options{}, err
	}
	manifests, err := dll.LoadAll(fsys, c.DLL.Manifests)
	if err != nil {
		return bundle.Options{}, err
	}
	alg, _ := fingerprint.Parse(c.Fingerprint)
	deferred, _ := graph.ParseDeferredRule(c.Deferred)
	accept, _ := hmr.ParseAcceptPolicy(c.Hot.Accept)

	var plugins []bundle.Plugin
	if c.Validate {
		plugins = append(plugins, validate.New(fsys, c.Root))
	}
	return bundle.Options{
		FS:              fsys,
		Root:            c.Root,
		Entries:         c.Entries,
		Extensions:      c.Extensions,
		MainFields:      c.MainFields,
		Conditions:      c.Conditions,
		Externals:       dll.Externals(c.Externals, manifests...),
		Transforms:      regs,
		Plugins:         plugins,
		SharedThreshold: c.SharedThreshold,
		Fingerprint:     alg,
		Deferred:        deferred,
		Jobs:            c.Jobs,
		CacheSize:       c.CacheSize,
		Accept:          accept,
		Logger:          logger,
	}, nil
}

// EmitOptions builds the emitter options.
func (c *Config) EmitOptions(fsys fs.FileSystem, logger logging.Logger) emit.Options {
	alg, _ := fingerprint.Parse(c.Fingerprint)
	opts := emit.Options{
		FS:            fsys,
		Root:          c.Root,
		OutDir:        c.OutDir,
		PublicPath:    c.PublicPath,
		Filename:      c.Filename,
		ChunkFilename: c.ChunkFilename,
		CSSFilename:   c.CSSFilename,
		Precache:      c.Precache,
		Fingerprint:   alg,
		Jobs:          c.Jobs,
		Logger:        logger,
	}
	if c.HTML != nil {
		opts.HTML = &emit.HTMLOptions{
			Template: c.HTML.Template,
			Filename: c.HTML.Filename,
			Title:    c.HTML.Title,
		}
	}
	return opts
}

// BindFlags binds config keys to the named flags of cmd on the global viper
// instance.
func BindFlags(cmd *cobra.Command, flags map[string]string) error {
	for key, name := range flags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// ForCommand loads the global configuration. Command arguments, when
// given, replace the configured entries.
func ForCommand(args []string) (*Config, error) {
	cfg, err := Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Entries = args
	}
	if len(cfg.Entries) == 0 {
		return nil, fmt.Errorf("no entries: pass entry files or set entries in %s.yaml", FileName)
	}
	return cfg, nil
}
