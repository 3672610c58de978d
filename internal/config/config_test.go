package config

import (
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GATEWAY_TOKEN", "secret")
	t.Setenv("OPERATOR_IDS", "931831277,555")
	t.Setenv("OPERATOR_CHAT_ID", "931831277")
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SUBSCRIPTION_DAYS", "45")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port, got %q", cfg.Port)
	}
	if cfg.SubscriptionDays != 45 {
		t.Errorf("expected 45 subscription days, got %d", cfg.SubscriptionDays)
	}
	if len(cfg.OperatorIDs) != 2 {
		t.Errorf("expected 2 operators, got %v", cfg.OperatorIDs)
	}
}

func TestLoadRequiresGatewayToken(t *testing.T) {
	t.Setenv("OPERATOR_IDS", "931831277")
	t.Setenv("OPERATOR_CHAT_ID", "931831277")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when GATEWAY_TOKEN is missing")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no operators", func(c *Config) { c.OperatorIDs = nil }, true},
		{"no operator chat", func(c *Config) { c.OperatorChatID = 0 }, true},
		{"zero duration", func(c *Config) { c.SubscriptionDays = 0 }, true},
		{"empty db path", func(c *Config) { c.DBPath = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Port:             "8080",
				DBPath:           "./data/club.db",
				OperatorIDs:      []int64{931831277},
				OperatorChatID:   931831277,
				SubscriptionDays: 30,
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsOperator(t *testing.T) {
	cfg := &Config{OperatorIDs: []int64{931831277}}

	if !cfg.IsOperator(931831277) {
		t.Error("expected trusted operator to pass")
	}
	if cfg.IsOperator(1) {
		t.Error("expected unknown identity to fail")
	}
}
