package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	accounts "github.com/goliatone/go-accounts"
)

// Config is the runtime configuration of the accounts service, read from
// ACCOUNTS_* environment variables.
type Config struct {
	Debug bool   `env:"ACCOUNTS_DEBUG" envDefault:"false"`
	Addr  string `env:"ACCOUNTS_ADDR"  envDefault:":8080"`

	DBDriver string `env:"ACCOUNTS_DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"ACCOUNTS_DB_DSN"    envDefault:"file:accounts.db?cache=shared&_pragma=foreign_keys(1)"`

	SigningKey string   `env:"ACCOUNTS_SIGNING_KEY"`
	Issuer     string   `env:"ACCOUNTS_ISSUER"   envDefault:"accounts"`
	Audience   []string `env:"ACCOUNTS_AUDIENCE" envDefault:"volunteers" envSeparator:","`

	SessionTTL              time.Duration `env:"ACCOUNTS_SESSION_TTL"               envDefault:"48h"`
	ResetCodeTTL            time.Duration `env:"ACCOUNTS_RESET_CODE_TTL"            envDefault:"15m"`
	ResetProofTTL           time.Duration `env:"ACCOUNTS_RESET_PROOF_TTL"           envDefault:"10m"`
	VerificationGracePeriod time.Duration `env:"ACCOUNTS_VERIFICATION_GRACE_PERIOD" envDefault:"15m"`
	SweepInterval           time.Duration `env:"ACCOUNTS_SWEEP_INTERVAL"            envDefault:"1m"`

	PasswordCost int    `env:"ACCOUNTS_PASSWORD_COST" envDefault:"10"`
	DefaultRole  string `env:"ACCOUNTS_DEFAULT_ROLE"  envDefault:"Volunteer"`
	ResetURL     string `env:"ACCOUNTS_RESET_URL"`
	PhoneRegion  string `env:"ACCOUNTS_PHONE_REGION"  envDefault:"ET"`

	SMTPHost     string `env:"ACCOUNTS_SMTP_HOST"`
	SMTPPort     int    `env:"ACCOUNTS_SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"ACCOUNTS_SMTP_USERNAME"`
	SMTPPassword string `env:"ACCOUNTS_SMTP_PASSWORD"`
	SMTPFrom     string `env:"ACCOUNTS_SMTP_FROM" envDefault:"no-reply@localhost"`
}

var _ accounts.Config = (*Config)(nil)

// Load parses the environment and validates the result
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values that have no safe default
func (c *Config) Validate() error {
	if len(c.SigningKey) < 32 {
		return errors.New("ACCOUNTS_SIGNING_KEY must be at least 32 bytes")
	}

	durations := map[string]time.Duration{
		"ACCOUNTS_SESSION_TTL":               c.SessionTTL,
		"ACCOUNTS_RESET_CODE_TTL":            c.ResetCodeTTL,
		"ACCOUNTS_RESET_PROOF_TTL":           c.ResetProofTTL,
		"ACCOUNTS_VERIFICATION_GRACE_PERIOD": c.VerificationGracePeriod,
		"ACCOUNTS_SWEEP_INTERVAL":            c.SweepInterval,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}

// SMTPEnabled reports whether a relay is configured
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func (c *Config) GetSigningKey() string {
	return c.SigningKey
}

func (c *Config) GetIssuer() string {
	return c.Issuer
}

func (c *Config) GetAudience() []string {
	return c.Audience
}

func (c *Config) GetSessionTTL() time.Duration {
	return c.SessionTTL
}

func (c *Config) GetResetCodeTTL() time.Duration {
	return c.ResetCodeTTL
}

func (c *Config) GetResetProofTTL() time.Duration {
	return c.ResetProofTTL
}

func (c *Config) GetVerificationGracePeriod() time.Duration {
	return c.VerificationGracePeriod
}

func (c *Config) GetSweepInterval() time.Duration {
	return c.SweepInterval
}

func (c *Config) GetPasswordCost() int {
	return c.PasswordCost
}

func (c *Config) GetDefaultRole() string {
	return c.DefaultRole
}

func (c *Config) GetResetURL() string {
	return c.ResetURL
}

func (c *Config) GetPhoneRegion() string {
	return c.PhoneRegion
}
