// Package commands implements the jdbcx command line.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/jdbcx/jdbcx-sub006/cli/internal/config"
	"github.com/jdbcx/jdbcx-sub006/cli/internal/version"
	"github.com/jdbcx/jdbcx-sub006/extension"
	"github.com/jdbcx/jdbcx-sub006/extension/db"
	"github.com/jdbcx/jdbcx-sub006/extension/prql"
	"github.com/jdbcx/jdbcx-sub006/extension/shell"
	"github.com/jdbcx/jdbcx-sub006/extension/values"
	"github.com/jdbcx/jdbcx-sub006/extension/web"
	"github.com/jdbcx/jdbcx-sub006/internal/debug"
	"github.com/jdbcx/jdbcx-sub006/query"
	"github.com/jdbcx/jdbcx-sub006/query/cache"
	"github.com/jdbcx/jdbcx-sub006/query/resolver"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configFile string
	debug      bool
	timeout    string
	onError    string
}

// App holds what the commands share once configuration is loaded.
type App struct {
	flags globalFlags

	Config   *config.Config
	Registry *extension.Registry
	Engine   *query.Engine
	DB       *db.DB
}

// setup loads the configuration, applies flag overrides and builds the
// engine.
func (a *App) setup() error {
	cfg, err := config.LoadConfig(a.flags.configFile)
	if err != nil {
		return err
	}
	if a.flags.timeout != "" {
		if cfg.Timeout, err = resolver.ParseTimeout(a.flags.timeout); err != nil {
			return err
		}
	}
	if a.flags.onError != "" {
		cfg.OnError = a.flags.onError
	}
	a.Config = cfg

	level, err := debug.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if a.flags.debug {
		level = slog.LevelDebug
	}
	debug.Init(level, os.Stderr)
	if cfg.File != "" {
		debug.Debug("config loaded", "file", cfg.File)
	}

	if err := version.Check(version.Version, cfg.RequiredVersion); err != nil {
		return err
	}

	engineCfg, err := engineConfig(cfg)
	if err != nil {
		return err
	}
	a.DB = db.New(newManager(cfg), db.WithCache(cache.NewLRUCache(cfg.CacheSize, cfg.CacheTTL)))
	a.Registry = Builtins(a.DB)
	a.Engine = query.NewEngine(a.Registry, engineCfg)
	return nil
}

// close releases the datasource pools.
func (a *App) close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Manager().Close()
}

func newManager(cfg *config.Config) *db.Manager {
	m := db.NewManager()
	for id, ds := range cfg.Datasources {
		m.Add(db.Datasource{
			ID:                  id,
			URL:                 ds.URL,
			Driver:              ds.Driver,
			MaxOpenConns:        ds.MaxOpenConns,
			HealthCheckInterval: ds.HealthCheckInterval,
		})
	}
	return m
}

func engineConfig(cfg *config.Config) (query.Config, error) {
	out := query.DefaultConfig()
	var err error
	if out.OnError, err = resolver.ParseOnError(cfg.OnError); err != nil {
		return out, err
	}
	if out.WarnOutput, err = resolver.ParseWarnOutput(cfg.OnErrorOutput); err != nil {
		return out, err
	}
	out.Timeout = cfg.Timeout
	out.DefaultExtension = cfg.DefaultExtension
	out.Variables = cfg.Variables
	out.SlowBlock = cfg.Timeout / 2
	if len(cfg.Extensions) > 0 {
		out.ExtensionPolicies = make(map[string]resolver.OnError, len(cfg.Extensions))
	}
	for name, ext := range cfg.Extensions {
		if ext.OnError == "" {
			continue
		}
		p, err := resolver.ParseOnError(ext.OnError)
		if err != nil {
			return out, fmt.Errorf("extensions.%s: %w", name, err)
		}
		out.ExtensionPolicies[name] = p
	}
	return out, nil
}

// Builtins returns a registry holding every bundled extension.
func Builtins(d *db.DB) *extension.Registry {
	r := extension.NewRegistry()
	r.MustRegister(db.Name, d)
	r.MustRegister(prql.Name, prql.New())
	r.MustRegister(shell.Name, shell.New())
	r.MustRegister(values.Name, values.New())
	r.MustRegister(web.Name, web.New())
	return r
}

// readQuery returns the query from args, from file, or from in when
// neither is given.
func readQuery(args []string, file string, in io.Reader) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", fmt.Errorf("give either a query or --file, not both")
	case file != "":
		data, err := afero.ReadFile(config.AppFs, file)
		if err != nil {
			return "", fmt.Errorf("failed to read query file: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read query: %w", err)
	}
	return string(data), nil
}

// parseVars turns k=v pairs into a map.
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid variable %q, expected name=value", p)
		}
		vars[strings.TrimSpace(k)] = v
	}
	return vars, nil
}
