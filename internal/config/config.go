// ABOUTME: Configuration types and loading for ergo
// ABOUTME: Merges built-in defaults, the user's YAML file and include-dir fragments, then validates

package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultYAML []byte

// Config represents the complete ergo configuration
type Config struct {
	General    GeneralConfig             `yaml:"general"`
	Chat       ChatConfig                `yaml:"chat"`
	AO         AOConfig                  `yaml:"ao"`
	Supervisor SupervisorConfig          `yaml:"supervisor"`
	Dispatch   DispatchConfig            `yaml:"dispatch"`
	Database   DatabaseConfig            `yaml:"database"`
	Server     ServerConfig              `yaml:"server"`
	Commands   map[string]map[string]any `yaml:"commands"`
}

// GeneralConfig holds process-wide settings
type GeneralConfig struct {
	Include     string `yaml:"include"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error critical"`
	LogFormat   string `yaml:"log_format" validate:"oneof=text json"`
	LogFilename string `yaml:"log_filename"`
}

// ChatConfig holds per-scope prefixes and outbound pacing
type ChatConfig struct {
	PrefixPrivate   string  `yaml:"prefix_private"`
	PrefixGroup     string  `yaml:"prefix_group"`
	PrefixClan      string  `yaml:"prefix_clan"`
	ClanChannelName string  `yaml:"clan_channel_name" validate:"required"`
	SendRate        float64 `yaml:"send_rate" validate:"gte=0"`
	SendBurst       int     `yaml:"send_burst" validate:"gte=0"`

	FloodWindow    time.Duration `yaml:"-"`
	FloodWindowRaw string        `yaml:"flood_window"`
}

// AOConfig holds dimensions and the accounts to run
type AOConfig struct {
	Dimensions map[string]Dimension `yaml:"dimensions" validate:"dive"`
	Accounts   []Account            `yaml:"accounts" validate:"required,min=1,dive"`
}

// Dimension is a chat server endpoint
type Dimension struct {
	Host string `yaml:"host" validate:"required,hostname_rfc1123"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	Name string `yaml:"name"`
}

// Account is one bot character to keep online.
// Host and Port default to those of Dimension.
type Account struct {
	Username  string `yaml:"username" validate:"required"`
	Password  string `yaml:"password"`
	Dimension string `yaml:"dimension" validate:"required"`
	Character string `yaml:"character" validate:"required"`
	Host      string `yaml:"host" validate:"required"`
	Port      int    `yaml:"port" validate:"min=1,max=65535"`
}

// SessionName returns the name the account's session is known by.
func (a Account) SessionName() string {
	return a.Character + "@" + a.Dimension
}

// SupervisorConfig holds reconnect backoff settings
type SupervisorConfig struct {
	BackoffInitial    time.Duration `yaml:"-"`
	BackoffMax        time.Duration `yaml:"-"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" validate:"gte=1"`

	// Raw string values for YAML unmarshaling
	BackoffInitialRaw string `yaml:"backoff_initial"`
	BackoffMaxRaw     string `yaml:"backoff_max"`
}

// DispatchConfig holds command execution settings
type DispatchConfig struct {
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds the HTTP status server address. Empty disables it.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" validate:"omitempty,hostname_port"`
}

// DefaultYAML returns the built-in defaults, unexpanded, as a starter config file.
func DefaultYAML() []byte {
	return slices.Clone(defaultYAML)
}

// Default returns the built-in configuration without any user file.
func Default() (*Config, error) {
	return load("", nil)
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A .env file next to it is loaded into the environment first. Environment
// variables in the format ${VAR_NAME} are expanded. Duration strings are
// parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	return load(path, data)
}

func load(path string, data []byte) (*Config, error) {
	defaults, err := parseYAML("defaults", defaultYAML)
	if err != nil {
		return nil, err
	}

	tree := map[string]any{}
	baseDir := "."
	if data != nil {
		if tree, err = parseYAML(path, data); err != nil {
			return nil, err
		}
		baseDir = filepath.Dir(path)
	}

	// Precedence: user file, then include fragments, then built-in defaults.
	include := includeDir(merge(tree, defaults), baseDir)
	fragments, err := readIncludes(include)
	if err != nil {
		return nil, err
	}
	for _, fragment := range fragments {
		tree = merge(tree, fragment)
	}
	tree = merge(tree, defaults)

	cfg, err := decode(tree)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.General.Include = include

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := resolveAccounts(cfg); err != nil {
		return nil, fmt.Errorf("resolving accounts: %w", err)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(DataDir(), "ergo.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// CommandNames returns the configured command names, sorted. Empty means all.
func (c *Config) CommandNames() []string {
	names := lo.Keys(c.Commands)
	slices.Sort(names)
	return names
}

// parseYAML expands environment variables and decodes one YAML document into a tree.
func parseYAML(name string, data []byte) (map[string]any, error) {
	expanded := expandEnvVars(string(data))

	tree := map[string]any{}
	if err := yaml.Unmarshal([]byte(expanded), &tree); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return tree, nil
}

// decode converts a merged tree into a Config.
func decode(tree map[string]any) (*Config, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// loadDotEnv loads dir/.env without overriding variables already set.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// resolveAccounts fills account host and port from their dimension.
func resolveAccounts(cfg *Config) error {
	for i := range cfg.AO.Accounts {
		acc := &cfg.AO.Accounts[i]
		dim, ok := cfg.AO.Dimensions[acc.Dimension]
		if !ok {
			if acc.Host != "" && acc.Port != 0 {
				continue
			}
			return fmt.Errorf("account %q: unknown dimension %q", acc.Username, acc.Dimension)
		}
		if acc.Host == "" {
			acc.Host = dim.Host
		}
		if acc.Port == 0 {
			acc.Port = dim.Port
		}
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"chat.flood_window", cfg.Chat.FloodWindowRaw, &cfg.Chat.FloodWindow},
		{"supervisor.backoff_initial", cfg.Supervisor.BackoffInitialRaw, &cfg.Supervisor.BackoffInitial},
		{"supervisor.backoff_max", cfg.Supervisor.BackoffMaxRaw, &cfg.Supervisor.BackoffMax},
		{"dispatch.timeout", cfg.Dispatch.TimeoutRaw, &cfg.Dispatch.Timeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}
	return nil
}
