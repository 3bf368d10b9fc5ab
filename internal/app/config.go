package app

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/crmbot/core/config"
	"github.com/m3rciful/crmbot/core/database"
	"github.com/m3rciful/crmbot/core/telegram/keyboard"
	"github.com/m3rciful/crmbot/internal/conversation"
	"github.com/m3rciful/crmbot/internal/crm"
)

// CRMConfig points the bot at the CRM backend.
type CRMConfig struct {
	BaseURL      string `yaml:"base_url" envconfig:"CRM_BASE_URL"`
	Secret       string `yaml:"secret" envconfig:"CRM_BOT_SECRET"`
	SecretHeader string `yaml:"secret_header" envconfig:"CRM_SECRET_HEADER"`
	TimeoutMS    int    `yaml:"timeout_ms" envconfig:"CRM_TIMEOUT_MS"`
}

// Timeout returns the per-request timeout.
func (c CRMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// SessionConfig bounds the life of idle conversations.
type SessionConfig struct {
	TTLMinutes           int `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds" envconfig:"SESSION_SWEEP_INTERVAL_SECONDS"`
}

// TTL of an idle session.
func (s SessionConfig) TTL() time.Duration { return time.Duration(s.TTLMinutes) * time.Minute }

// SweepInterval between expiry sweeps.
func (s SessionConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

// Config is the full bot configuration: the shared core plus the CRM specific sections.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database    database.Config      `yaml:"database"`
	CRM         CRMConfig            `yaml:"crm"`
	Session     SessionConfig        `yaml:"session"`
	LeadOptions conversation.Options `yaml:"lead_options"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}

	cfg.CRM.BaseURL = strings.TrimSpace(cfg.CRM.BaseURL)
	if cfg.CRM.BaseURL == "" {
		return fmt.Errorf("crm.base_url is required")
	}
	u, err := url.Parse(cfg.CRM.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("crm.base_url must be an absolute http(s) URL, got %q", cfg.CRM.BaseURL)
	}
	if strings.TrimSpace(cfg.CRM.Secret) == "" {
		return fmt.Errorf("crm.secret is required")
	}
	if strings.TrimSpace(cfg.CRM.SecretHeader) == "" {
		cfg.CRM.SecretHeader = crm.DefaultSecretHeader
	}
	if cfg.CRM.TimeoutMS < 0 {
		return fmt.Errorf("crm.timeout_ms must be >= 0")
	}
	if cfg.CRM.TimeoutMS == 0 {
		cfg.CRM.TimeoutMS = 10000
	}

	if cfg.Session.TTLMinutes < 0 {
		return fmt.Errorf("session.ttl_minutes must be >= 0")
	}
	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = 30
	}
	if cfg.Session.SweepIntervalSeconds <= 0 {
		cfg.Session.SweepIntervalSeconds = 60
	}

	cfg.LeadOptions = cfg.LeadOptions.Normalize()
	return validateOptions(cfg.LeadOptions)
}

// validateOptions rejects options whose button would exceed the callback data limit.
func validateOptions(o conversation.Options) error {
	lists := map[conversation.Step][]string{
		conversation.StepLeadSector:        o.Sectors,
		conversation.StepLeadTransaction:   o.TransactionTypes,
		conversation.StepLeadInboundSource: o.InboundSources,
	}
	for step, options := range lists {
		for _, btn := range keyboard.Choices(string(step), options) {
			if err := btn.Validate(); err != nil {
				return fmt.Errorf("lead_options: %w", err)
			}
		}
	}
	return nil
}
