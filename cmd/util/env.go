package util

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgschema/viewmig/internal/config"
	"github.com/pgschema/viewmig/internal/engine"
)

var (
	loaded     *config.Config
	loadedPath string
)

// SetConfig stores the configuration loaded by the root command
func SetConfig(cfg *config.Config, path string) {
	loaded = cfg
	loadedPath = path
}

// ConfigPath returns the config file in use, empty when running on defaults
func ConfigPath() string {
	return loadedPath
}

// Settings is the configuration of one command run, after command-line
// flags have been layered over the loaded config
type Settings struct {
	Declarations  string
	HistoryDir    string
	Engine        engine.ID
	TargetEngines []engine.ID
	DSN           string
	Schema        string
	Concurrency   int
}

// AddCommonFlags registers the flags shared by commands that read
// declarations or history
func AddCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("declarations", "", "Path to the view declaration file (config: declarations)")
	cmd.Flags().String("history", "", "Directory holding migration records (config: history_dir)")
	cmd.Flags().String("engine", "", "Engine of the connection running migrations: postgresql, postgis, mysql, sqlite3 (config: engine)")
	cmd.Flags().StringSlice("target-engine", nil, "Restrict per-engine definitions to this engine; repeatable (config: target_engines)")
	cmd.Flags().String("database-url", "", "Database connection string (env: VIEWMIG_DATABASE_URL)")
}

// ResolveSettings layers explicitly set flags over the loaded configuration.
// Flags win over environment, which wins over the config file.
func ResolveSettings(cmd *cobra.Command) (*Settings, error) {
	cfg := loaded
	if cfg == nil {
		var err error
		if cfg, _, err = config.Load(""); err != nil {
			return nil, err
		}
	}

	s := &Settings{
		Declarations: stringFlag(cmd, "declarations", cfg.Declarations),
		HistoryDir:   stringFlag(cmd, "history", cfg.HistoryDir),
		Engine:       engine.Parse(stringFlag(cmd, "engine", cfg.Engine)),
		Schema:       cfg.Inspect.Schema,
		Concurrency:  cfg.Inspect.Concurrency,
	}

	targets := cfg.TargetEngines
	if cmd.Flags().Changed("target-engine") {
		targets, _ = cmd.Flags().GetStringSlice("target-engine")
	}
	for _, t := range targets {
		s.TargetEngines = append(s.TargetEngines, engine.Parse(t))
	}

	db := cfg.Database
	db.URL = stringFlag(cmd, "database-url", db.URL)
	s.DSN = BuildDSN(db, s.Engine)

	if s.Declarations == "" {
		return nil, fmt.Errorf("declaration file is required (use --declarations or set declarations in viewmig.yaml)")
	}
	if s.HistoryDir == "" {
		return nil, fmt.Errorf("history directory is required (use --history or set history_dir in viewmig.yaml)")
	}
	return s, nil
}

func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Lookup(name) == nil || !cmd.Flags().Changed(name) {
		return fallback
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}
