// Package config loads viewmig settings from viewmig.yaml, VIEWMIG_*
// environment variables and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	maxWalkDepth = 25
	envPrefix    = "VIEWMIG"
)

// ConfigFileNames are searched for, in order, when no config path is given
var ConfigFileNames = []string{"viewmig.yaml", "viewmig.yml"}

// Config is the full viewmig configuration
type Config struct {
	// Declarations is the YAML file declaring views
	Declarations string `mapstructure:"declarations"`
	// HistoryDir holds the numbered migration records
	HistoryDir string `mapstructure:"history_dir"`
	// Engine is the engine of the connection running migrations
	Engine string `mapstructure:"engine"`
	// TargetEngines restricts per-engine definitions; empty means every
	// engine a definition names
	TargetEngines []string `mapstructure:"target_engines"`

	Database DatabaseConfig `mapstructure:"database"`
	Inspect  InspectConfig  `mapstructure:"inspect"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	ApplicationName string `mapstructure:"application_name"`
}

// InspectConfig controls index discovery
type InspectConfig struct {
	Schema      string `mapstructure:"schema"`
	Concurrency int    `mapstructure:"concurrency"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Debug  bool   `mapstructure:"debug"`
	Format string `mapstructure:"format"`
}

// Load discovers and loads configuration with precedence
// env > config file > defaults. Command-line flags are applied by the caller.
//
// Returns the loaded config and the path of the config file, empty if none
// was found.
func Load(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	// relative paths in a config file are relative to that file
	if configPath != "" {
		base := filepath.Dir(configPath)
		cfg.Declarations = relativeTo(base, cfg.Declarations, v.InConfig("declarations"))
		cfg.HistoryDir = relativeTo(base, cfg.HistoryDir, v.InConfig("history_dir"))
	}

	applyLibpqEnv(&cfg.Database)
	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("declarations", "views.yaml")
	v.SetDefault("history_dir", "migrations")
	v.SetDefault("engine", "postgresql")
	v.SetDefault("target_engines", []string{})

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "")
	v.SetDefault("database.application_name", "viewmig")

	v.SetDefault("inspect.schema", "public")
	v.SetDefault("inspect.concurrency", 4)

	v.SetDefault("log.debug", false)
	v.SetDefault("log.format", "text")
}

func relativeTo(base, path string, fromFile bool) string {
	if !fromFile || path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// applyLibpqEnv fills unset connection fields from the standard PG*
// environment variables
func applyLibpqEnv(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = os.Getenv("PGHOST")
	}
	if db.Port == 0 {
		if port, err := strconv.Atoi(os.Getenv("PGPORT")); err == nil {
			db.Port = port
		}
	}
	if db.Name == "" {
		db.Name = os.Getenv("PGDATABASE")
	}
	if db.User == "" {
		db.User = os.Getenv("PGUSER")
	}
	if db.Password == "" {
		db.Password = os.Getenv("PGPASSWORD")
	}
	if db.SSLMode == "" {
		db.SSLMode = os.Getenv("PGSSLMODE")
	}
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for viewmig.yaml or viewmig.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}
