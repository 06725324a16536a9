// Package config loads the TOML run configuration shared by the mailsift
// binaries.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// MailboxConfig selects and parameterizes the webmail backend.
type MailboxConfig struct {
	Backend string `toml:"backend"` // "imap" or "gmail"
}

// IMAPConfig configures the IMAP backend.
type IMAPConfig struct {
	Address  string `toml:"address"` // host:port, implicit TLS
	Username string `toml:"username"`
	Password string `toml:"password"`
	Inbox    string `toml:"inbox"` // mailbox to watch/enumerate, default INBOX
}

// GmailConfig configures the Gmail API backend.
type GmailConfig struct {
	CredentialsDir string `toml:"credentials_dir"` // oauth client + cached token
}

// RulesConfig locates the rule store.
type RulesConfig struct {
	DBPath string `toml:"db_path"`
}

// LLMConfig configures the optional AI judgement provider.
type LLMConfig struct {
	Provider string `toml:"provider"` // "google" or empty to disable
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
}

// RunConfig tunes batch and watch execution.
type RunConfig struct {
	ScanLimit    int    `toml:"scan_limit"`
	BatchSize    int    `toml:"batch_size"`
	VerifyLimit  int    `toml:"verify_limit"`
	PollInterval string `toml:"poll_interval"` // watch mode, e.g. "30s"
	RatePerSec   int    `toml:"rate_per_sec"`
	RateBurst    int    `toml:"rate_burst"`
	MetricsAddr  string `toml:"metrics_addr"` // empty disables the exporter
	LogLevel     string `toml:"log_level"`
}

// Config is the root of the TOML file.
type Config struct {
	Mailbox MailboxConfig `toml:"mailbox"`
	IMAP    IMAPConfig    `toml:"imap"`
	Gmail   GmailConfig   `toml:"gmail"`
	Rules   RulesConfig   `toml:"rules"`
	LLM     LLMConfig     `toml:"llm"`
	Run     RunConfig     `toml:"run"`
}

// Load reads, defaults and validates a config file.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mailbox.Backend == "" {
		c.Mailbox.Backend = "imap"
	}
	if c.IMAP.Inbox == "" {
		c.IMAP.Inbox = "INBOX"
	}
	if c.Rules.DBPath == "" {
		c.Rules.DBPath = "mailsift.db"
	}
	if c.Run.ScanLimit <= 0 {
		c.Run.ScanLimit = 1000
	}
	if c.Run.BatchSize <= 0 {
		c.Run.BatchSize = 50
	}
	if c.Run.VerifyLimit <= 0 {
		c.Run.VerifyLimit = 5
	}
	if c.Run.PollInterval == "" {
		c.Run.PollInterval = "30s"
	}
	if c.Run.RatePerSec <= 0 {
		c.Run.RatePerSec = 5
	}
	if c.Run.RateBurst <= 0 {
		c.Run.RateBurst = 10
	}
	if c.Run.LogLevel == "" {
		c.Run.LogLevel = "info"
	}
}

// Validate checks the loaded configuration for contradictions.
func (c Config) Validate() error {
	switch c.Mailbox.Backend {
	case "imap":
		if c.IMAP.Address == "" {
			return fmt.Errorf("mailbox backend imap requires imap.address")
		}
		if c.IMAP.Username == "" {
			return fmt.Errorf("mailbox backend imap requires imap.username")
		}
	case "gmail":
		// credentials_dir empty falls back to the default config dir.
	default:
		return fmt.Errorf("unknown mailbox backend %q", c.Mailbox.Backend)
	}
	if c.LLM.Provider != "" && c.LLM.Provider != "google" {
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if _, err := c.Run.GetPollInterval(); err != nil {
		return err
	}
	return nil
}

// GetPollInterval parses the watch-mode poll interval.
func (r RunConfig) GetPollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(r.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("run.poll_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("run.poll_interval must be positive")
	}
	return d, nil
}
