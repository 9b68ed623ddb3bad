// Package config provides YAML-based configuration loading for Loadline.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Loadline configuration, loaded from config.yaml.
type Config struct {
	Company     CompanyConfig     `yaml:"company"`
	Truck       TruckConfig       `yaml:"truck"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	Database    DatabaseConfig    `yaml:"database"`
	Server      ServerConfig      `yaml:"server"`
	Capability  CapabilityConfig  `yaml:"capability"`
	Mailer      MailerConfig      `yaml:"mailer"`
	Locator     LocatorConfig     `yaml:"locator"`
	Notify      NotifyConfig      `yaml:"notify"`
	Routing     RoutingConfig     `yaml:"routing"`
	Sweeper     SweeperConfig     `yaml:"sweeper"`
}

// CompanyConfig identifies the carrier on whose behalf the agent negotiates.
type CompanyConfig struct {
	Name     string `yaml:"name"`
	MCNumber string `yaml:"mc_number"`
	Details  string `yaml:"details"`
}

// TruckConfig describes the truck the agent books loads for. Compliance
// checks compare load details against these attributes.
type TruckConfig struct {
	ID             string   `yaml:"id"`
	Equipment      string   `yaml:"equipment"`
	LengthFt       int      `yaml:"length_ft"`
	MaxWeightLbs   int      `yaml:"max_weight_lbs"`
	TeamSolo       string   `yaml:"team_solo"`
	Restrictions   []string `yaml:"restrictions"`
	ExcludedStates []string `yaml:"excluded_states"`
	Permits        []string `yaml:"permits"`
	Security       []string `yaml:"security"`
}

// NegotiationConfig holds the carrier's rate policy. Rates are per mile.
type NegotiationConfig struct {
	FloorRatePerMile  float64 `yaml:"floor_rate_per_mile"`
	TargetRatePerMile float64 `yaml:"target_rate_per_mile"`
	RoundingIncrement float64 `yaml:"rounding_increment"`
	MaxRounds         int     `yaml:"max_rounds"`
}

// DatabaseConfig selects the backing store. Driver is "sqlite" (single node,
// default) or "mysql" (shared server).
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"` // sqlite file path
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
}

// ServerConfig holds the inbound HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// CapabilityConfig selects the text-understanding provider. Provider is
// "gemini" or "mock"; the API key is read from APIKeyEnv at startup so the
// key itself never lands in the config file.
type CapabilityConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// MailerConfig points at the outbound drafts API.
type MailerConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// LocatorConfig points at the truck location/ETA service.
type LocatorConfig struct {
	BaseURL string `yaml:"base_url"`
}

// NotifyConfig configures terminal-event notifications to ops channels.
// Both platforms are optional; an empty token disables that platform.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack bot credentials and the target channel.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordConfig holds Discord bot credentials and the target channel.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// RoutingConfig holds router policy knobs. CompanyQuestionFirst gives
// company-information questions precedence over missing required fields
// when both apply to the same inbound email.
type RoutingConfig struct {
	CompanyQuestionFirst bool `yaml:"company_question_first"`
}

// SweeperConfig schedules the stale-negotiation sweep. Schedule is a
// standard 5-field cron expression.
type SweeperConfig struct {
	Schedule        string `yaml:"schedule"`
	StaleAfterHours int    `yaml:"stale_after_hours"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// APIKey resolves the capability API key from the configured environment
// variable. Empty when unset, which the gemini invoker treats as an error.
func (c *Config) APIKey() string {
	if c.Capability.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Capability.APIKeyEnv)
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "loadline.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "loadline"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Negotiation.RoundingIncrement == 0 {
		c.Negotiation.RoundingIncrement = 0.05
	}
	if c.Negotiation.MaxRounds == 0 {
		c.Negotiation.MaxRounds = 3
	}
	if c.Capability.Provider == "" {
		c.Capability.Provider = "gemini"
	}
	if c.Capability.Model == "" {
		c.Capability.Model = "gemini-2.5-flash"
	}
	if c.Capability.APIKeyEnv == "" {
		c.Capability.APIKeyEnv = "LOADLINE_GEMINI_API_KEY"
	}
	if c.Capability.MaxAttempts == 0 {
		c.Capability.MaxAttempts = 3
	}
	if c.Sweeper.Schedule == "" {
		c.Sweeper.Schedule = "0 * * * *"
	}
	if c.Sweeper.StaleAfterHours == 0 {
		c.Sweeper.StaleAfterHours = 72
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Company.Name == "" {
		errs = append(errs, "company.name is required")
	}
	if c.Company.MCNumber == "" {
		errs = append(errs, "company.mc_number is required")
	}
	if c.Negotiation.FloorRatePerMile <= 0 {
		errs = append(errs, "negotiation.floor_rate_per_mile must be positive")
	}
	if c.Negotiation.TargetRatePerMile <= 0 {
		errs = append(errs, "negotiation.target_rate_per_mile must be positive")
	}
	if c.Negotiation.TargetRatePerMile < c.Negotiation.FloorRatePerMile {
		errs = append(errs, "negotiation.target_rate_per_mile must not be below floor_rate_per_mile")
	}
	if c.Negotiation.RoundingIncrement < 0 {
		errs = append(errs, "negotiation.rounding_increment must not be negative")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	switch c.Capability.Provider {
	case "gemini", "mock":
	default:
		errs = append(errs, fmt.Sprintf("capability.provider %q is not supported (gemini, mock)", c.Capability.Provider))
	}
	if c.Mailer.BaseURL == "" {
		errs = append(errs, "mailer.base_url is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
