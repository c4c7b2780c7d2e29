package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestValidateWeekday(t *testing.T) {
	for _, day := range []string{"monday", "thursday", "sunday"} {
		if err := validateWeekday(day); err != nil {
			t.Errorf("Expected %q to be a valid weekday, got %v", day, err)
		}
	}

	for _, day := range []string{"", "thurs", "someday", "THURSDAY "} {
		if err := validateWeekday(day); err == nil {
			t.Errorf("Expected %q to be rejected", day)
		}
	}
}

func TestCapabilityChecks(t *testing.T) {
	cfg := &Cfg{}

	if cfg.ClassifierConfigured() {
		t.Error("Classifier should be disabled without an API key")
	}
	if cfg.MailerConfigured() {
		t.Error("Mailer should be disabled without credentials")
	}
	if cfg.SocialConfigured() {
		t.Error("Social collection should be disabled without credentials")
	}

	cfg.AnthropicAPIKey = "sk-test"
	if !cfg.ClassifierConfigured() {
		t.Error("Classifier should be enabled with an API key")
	}

	cfg.MailAPIKey = "mc-test"
	if cfg.MailerConfigured() {
		t.Error("Mailer requires a list ID as well as an API key")
	}
	cfg.MailListID = "list-1"
	if !cfg.MailerConfigured() {
		t.Error("Mailer should be enabled with key and list ID")
	}

	// The feature flag alone is not enough; credentials must be present.
	cfg.EnableSocialCollection = true
	if cfg.SocialConfigured() {
		t.Error("Social collection requires an API key")
	}
	cfg.SocialAPIKey = "bd-test"
	if !cfg.SocialConfigured() {
		t.Error("Social collection should be enabled with flag and key")
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		Port:                  "8080",
		UserAgent:             "Test Agent",
		APIAccessKey:          "test-key",
		SourcesDir:            "./sources",
		DBHost:                "localhost",
		MaxConcurrency:        5,
		CollectIntervalHours:  6,
		ClassifyOffsetMinutes: 30,
		PreviewDelayHours:     2,
		DigestWeekday:         "thursday",
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.MaxConcurrency != 5 {
		t.Errorf("Expected max concurrency 5, got %d", cfg.MaxConcurrency)
	}
	if cfg.CollectIntervalHours != 6 {
		t.Errorf("Expected collect interval 6, got %d", cfg.CollectIntervalHours)
	}
	if cfg.ClassifyOffsetMinutes != 30 {
		t.Errorf("Expected classify offset 30, got %d", cfg.ClassifyOffsetMinutes)
	}
	if cfg.DigestWeekday != "thursday" {
		t.Errorf("Expected digest weekday 'thursday', got '%s'", cfg.DigestWeekday)
	}
}
