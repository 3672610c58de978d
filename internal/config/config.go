// Package config provides application configuration.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration. Values are read once at
// startup and treated as immutable afterwards.
type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"./data/club.db"`

	// GatewayToken authenticates the chat-transport adapter on the
	// websocket gateway. AdminToken guards the admin HTTP API.
	GatewayToken string `env:"GATEWAY_TOKEN,notEmpty"`
	AdminToken   string `env:"ADMIN_TOKEN"`

	// OperatorIDs is the trusted set allowed to approve/reject proofs and
	// override subscription dates. OperatorChatID is where proofs and
	// support escalations are forwarded.
	OperatorIDs    []int64 `env:"OPERATOR_IDS" envSeparator:","`
	OperatorChatID int64   `env:"OPERATOR_CHAT_ID"`

	SubscriptionDays  int `env:"SUBSCRIPTION_DAYS" envDefault:"30"`
	SubscriptionPrice int `env:"SUBSCRIPTION_PRICE" envDefault:"590"`

	// Payment requisites shown on the pay screen.
	PayeeName    string `env:"PAYEE_NAME"`
	PayeeBank    string `env:"PAYEE_BANK"`
	PayeeAccount string `env:"PAYEE_ACCOUNT"`

	// Club destinations rendered in menu screens.
	ChannelLink   string `env:"CLUB_CHANNEL_LINK"`
	ChatLink      string `env:"CLUB_CHAT_LINK"`
	MaterialsLink string `env:"MATERIALS_LINK"`
	SeasonsLink   string `env:"SEASONS_LINK"`

	// Archive preview covers sent as a media album before the archive link.
	ArchivePhotos  []string `env:"ARCHIVE_PHOTOS" envSeparator:","`
	ArchiveCaption string   `env:"ARCHIVE_CAPTION"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if len(c.OperatorIDs) == 0 {
		return fmt.Errorf("OPERATOR_IDS cannot be empty")
	}
	if c.OperatorChatID == 0 {
		return fmt.Errorf("OPERATOR_CHAT_ID cannot be empty")
	}
	if c.SubscriptionDays <= 0 {
		return fmt.Errorf("SUBSCRIPTION_DAYS must be > 0")
	}
	return nil
}

// IsOperator reports whether id belongs to the trusted operator set.
func (c *Config) IsOperator(id int64) bool {
	for _, op := range c.OperatorIDs {
		if op == id {
			return true
		}
	}
	return false
}
