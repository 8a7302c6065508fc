package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config captures the connection and output options shared by every step
// command. Per-step parameters stay on the individual subcommands.
type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	Mailbox            string
	Format             string
	StateDir           string
	LogLevel           string
	LogDir             string
	IncludeHeader      []string
	IncludeBody        []string
	ExcludeHeader      []string
	ExcludeBody        []string
}

const envPrefix = "IMAPSTEP"

// RegisterFlags attaches the shared flags to the root command and binds
// them to viper so every value can also come from an IMAPSTEP_* environment
// variable or the optional config file (~/.imapstep/config.yaml).
func RegisterFlags(cmd *cobra.Command) error {
	defaultStateDir, err := defaultStateDir()
	if err != nil {
		return err
	}

	flags := cmd.PersistentFlags()
	flags.String("host", "", "IMAP server hostname")
	flags.Int("port", 993, "IMAP server port")
	flags.String("user", "", "IMAP username")
	flags.String("pass", "", "IMAP password (prefer IMAPSTEP_PASS env var)")
	flags.Bool("tls", true, "Use implicit TLS for the IMAP connection")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.String("mailbox", "INBOX", "Mailbox the step operates on")
	flags.String("format", "json", "Record output format: json or yaml")
	flags.String("state-dir", defaultStateDir, "Directory for the download manifest")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (stdout only when empty)")
	flags.StringArray("include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to message headers")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to message bodies")

	v := viper.GetViper()
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return nil
}

// Load reads the merged flag/env/file values into a validated Config.
func Load() (Config, error) {
	v := viper.GetViper()

	if err := readConfigFile(v); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Host:               v.GetString("host"),
		Port:               v.GetInt("port"),
		Username:           v.GetString("user"),
		Password:           v.GetString("pass"),
		UseTLS:             v.GetBool("tls"),
		InsecureSkipVerify: v.GetBool("insecure-skip-verify"),
		Mailbox:            v.GetString("mailbox"),
		Format:             strings.ToLower(v.GetString("format")),
		StateDir:           v.GetString("state-dir"),
		LogLevel:           strings.ToLower(v.GetString("log-level")),
		LogDir:             v.GetString("log-dir"),
		IncludeHeader:      v.GetStringSlice("include-header"),
		IncludeBody:        v.GetStringSlice("include-body"),
		ExcludeHeader:      v.GetStringSlice("exclude-header"),
		ExcludeBody:        v.GetStringSlice("exclude-body"),
	}

	if cfg.StateDir == "" {
		stateDir, err := defaultStateDir()
		if err != nil {
			return Config{}, err
		}
		cfg.StateDir = stateDir
	}
	cfg.StateDir = filepath.Clean(cfg.StateDir)

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(home, ".imapstep"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// Validate checks the invariants every step depends on.
func Validate(cfg Config) error {
	if cfg.Host == "" {
		return fmt.Errorf("--host is required (or IMAPSTEP_HOST)")
	}
	if cfg.Username == "" {
		return fmt.Errorf("--user is required (or IMAPSTEP_USER)")
	}
	if cfg.Password == "" {
		return fmt.Errorf("password must be provided via --pass, IMAPSTEP_PASS, or the config file")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("--port must be between 1 and 65535")
	}
	if cfg.Mailbox == "" {
		return fmt.Errorf("--mailbox must not be empty")
	}

	switch cfg.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("invalid --format: %s", cfg.Format)
	}

	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".imapstep", "state"), nil
}
