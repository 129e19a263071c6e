// Package config loads the worker configuration file. All tunables the core
// consumes are plain scalars here; how deployments produce the file (ansible,
// hand-edit) is out of scope.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Replies holds the outbound conversation texts. Defaults are the Portuguese
// prompts the campaign ships with; deployments may override any of them.
type Replies struct {
	AskDocument      string `yaml:"ask_document"`
	AskDocumentAgain string `yaml:"ask_document_again"`
	AskEmail         string `yaml:"ask_email"`
	AskEmailAgain    string `yaml:"ask_email_again"`
	Confirmation     string `yaml:"confirmation"`
	AlreadyDone      string `yaml:"already_done"`
}

// Reporting holds the fire-and-forget sink endpoints. Empty URLs disable the
// corresponding sink.
type Reporting struct {
	ErrorURL  string `yaml:"error_url"`
	LeadURL   string `yaml:"lead_url"`
	SheetURL  string `yaml:"sheet_url"`
	AuthToken string `yaml:"auth_token"`
}

// Config is the full worker configuration.
type Config struct {
	Worker              string    `yaml:"worker"`
	LedgerPath          string    `yaml:"ledger_path"`
	GatewayURL          string    `yaml:"gateway_url"`
	ClaimMode           string    `yaml:"claim_mode"` // "self_assign" or "pre_assigned"
	ArchivePath         string    `yaml:"archive_path"`
	DefaultDelayMs      int64     `yaml:"default_delay_ms"`
	JitterMinMs         int64     `yaml:"jitter_min_ms"`
	JitterMaxMs         int64     `yaml:"jitter_max_ms"`
	InvalidAttemptLimit int       `yaml:"invalid_attempt_limit"`
	OneShotTimeoutS     int64     `yaml:"one_shot_timeout_s"`
	Reporting           Reporting `yaml:"reporting"`
	Replies             Replies   `yaml:"replies"`
}

// Default returns a config with every tunable at its shipped value. The
// caller still has to set Worker and LedgerPath.
func Default() Config {
	return Config{
		ClaimMode:           "self_assign",
		GatewayURL:          "http://127.0.0.1:3000",
		ArchivePath:         "autowpp.db",
		DefaultDelayMs:      2000,
		JitterMinMs:         1000,
		JitterMaxMs:         5000,
		InvalidAttemptLimit: 3,
		OneShotTimeoutS:     60,
		Replies: Replies{
			AskDocument:      "Para continuarmos, por favor informe seu CPF ou CNPJ (apenas números ou com pontuação).",
			AskDocumentAgain: "Documento inválido. Por favor, informe seu CPF ou CNPJ.",
			AskEmail:         "Obrigado! Agora, por favor, informe seu e-mail:",
			AskEmailAgain:    "Estamos aguardando seu e-mail para continuar.",
			Confirmation:     "Obrigado! Um especialista entrará em contato em breve.",
			AlreadyDone:      "Já recebemos seus dados. Em breve entraremos em contato.",
		},
	}
}

// Load reads and validates a YAML config file. Missing optional fields keep
// their defaults.
func Load(path string) (*Config, error) {
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err == nil {
			path = filepath.Join(wd, path)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants the rest of the system assumes.
func (c *Config) Validate() error {
	if c.Worker == "" {
		return fmt.Errorf("config: worker identity must not be empty")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("config: ledger_path must not be empty")
	}
	if c.ClaimMode != "self_assign" && c.ClaimMode != "pre_assigned" {
		return fmt.Errorf("config: claim_mode must be self_assign or pre_assigned, got %q", c.ClaimMode)
	}
	if c.DefaultDelayMs < 0 {
		return fmt.Errorf("config: default_delay_ms must not be negative")
	}
	if c.JitterMinMs < 0 || c.JitterMaxMs < c.JitterMinMs {
		return fmt.Errorf("config: jitter range [%d, %d] is invalid", c.JitterMinMs, c.JitterMaxMs)
	}
	if c.InvalidAttemptLimit < 1 {
		return fmt.Errorf("config: invalid_attempt_limit must be at least 1")
	}
	if c.OneShotTimeoutS < 1 {
		return fmt.Errorf("config: one_shot_timeout_s must be at least 1")
	}
	return nil
}

// DefaultDelay returns the inter-task pacing floor as a duration.
func (c *Config) DefaultDelay() time.Duration {
	return time.Duration(c.DefaultDelayMs) * time.Millisecond
}

// JitterRange returns the pacing jitter bounds as durations.
func (c *Config) JitterRange() (time.Duration, time.Duration) {
	return time.Duration(c.JitterMinMs) * time.Millisecond,
		time.Duration(c.JitterMaxMs) * time.Millisecond
}

// OneShotTimeout returns the one-shot mode deadline as a duration.
func (c *Config) OneShotTimeout() time.Duration {
	return time.Duration(c.OneShotTimeoutS) * time.Second
}
