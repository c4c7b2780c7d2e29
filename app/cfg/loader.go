package cfg

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"digest_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"digest_password" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"twincounty_digest" description:"Database name"`

	// Application configuration
	SourcesDir   string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source definition files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`

	// Claude classification / generation
	AnthropicAPIKey string `long:"anthropic-api-key" env:"ANTHROPIC_API_KEY" description:"Anthropic API key (classification disabled when unset)"`
	ClaudeModel     string `long:"claude-model" env:"CLAUDE_MODEL" default:"claude-sonnet-4-5-20250929" description:"Claude model for classification and generation"`
	ClaudeMaxTokens int    `long:"claude-max-tokens" env:"CLAUDE_MAX_TOKENS" default:"1024" description:"Maximum tokens for Claude responses"`

	// Campaign delivery
	MailAPIKey       string `long:"mail-api-key" env:"MAIL_API_KEY" description:"Campaign provider API key (delivery disabled when unset)"`
	MailServerPrefix string `long:"mail-server-prefix" env:"MAIL_SERVER_PREFIX" default:"us6" description:"Campaign provider server prefix"`
	MailListID       string `long:"mail-list-id" env:"MAIL_LIST_ID" description:"Audience list ID for campaigns"`
	MailFromName     string `long:"mail-from-name" env:"MAIL_FROM_NAME" default:"Twin County Weekly" description:"Sender name for campaigns"`
	MailReplyTo      string `long:"mail-reply-to" env:"MAIL_REPLY_TO" description:"Reply-to address for campaigns"`

	// Preview workflow
	ApproverEmail        string `long:"approver-email" env:"APPROVER_EMAIL" description:"Address that receives digest previews"`
	PreviewDelayHours    int    `long:"preview-delay-hours" env:"PREVIEW_DELAY_HOURS" default:"2" description:"Hours between preview and automatic send"`
	AutoSendAfterPreview bool   `long:"auto-send" env:"AUTO_SEND_AFTER_PREVIEW" description:"Automatically send the digest after the preview delay"`

	// Digest schedule
	DigestWeekday string `long:"digest-weekday" env:"DIGEST_WEEKDAY" default:"thursday" description:"Day of week for digest assembly"`
	DigestHour    int    `long:"digest-hour" env:"DIGEST_HOUR" default:"8" description:"Hour for digest assembly (24h)"`
	DigestMinute  int    `long:"digest-minute" env:"DIGEST_MINUTE" default:"0" description:"Minute for digest assembly"`

	// Collection / classification schedule
	CollectIntervalHours  int `long:"collect-interval-hours" env:"COLLECT_INTERVAL_HOURS" default:"6" description:"Hours between collection runs"`
	ClassifyOffsetMinutes int `long:"classify-offset-minutes" env:"CLASSIFY_OFFSET_MINUTES" default:"30" description:"Start offset of the classification pass after collection"`
	ClassifyBatchLimit    int `long:"classify-batch-limit" env:"CLASSIFY_BATCH_LIMIT" default:"100" description:"Maximum pending items classified per pass"`
	MaxConcurrency        int `long:"max-concurrency" env:"MAX_CONCURRENCY" default:"5" description:"Maximum concurrent classifier calls"`

	// Content selection
	LookbackDays      int `long:"lookback-days" env:"LOOKBACK_DAYS" default:"7" description:"Days to look back for digest content"`
	EventHorizonDays  int `long:"event-horizon-days" env:"EVENT_HORIZON_DAYS" default:"14" description:"Days ahead to include calendar events"`
	MaxItemsPerSource int `long:"max-items-per-source" env:"MAX_ITEMS_PER_SOURCE" default:"20" description:"Maximum items collected per source"`

	// Resilience
	RetryAttempts           int `long:"retry-attempts" env:"API_RETRY_ATTEMPTS" default:"3" description:"Retry attempts for external API calls"`
	RetryMinWaitSeconds     int `long:"retry-min-wait" env:"API_RETRY_MIN_WAIT" default:"2" description:"Minimum backoff between retries (seconds)"`
	RetryMaxWaitSeconds     int `long:"retry-max-wait" env:"API_RETRY_MAX_WAIT" default:"10" description:"Maximum backoff between retries (seconds)"`
	BreakerFailureThreshold int `long:"breaker-threshold" env:"CIRCUIT_BREAKER_FAILURE_THRESHOLD" default:"5" description:"Consecutive failures before the circuit opens"`
	BreakerCooldownSeconds  int `long:"breaker-cooldown" env:"CIRCUIT_BREAKER_RECOVERY_TIMEOUT" default:"60" description:"Seconds the circuit stays open before a probe"`

	// Social collection
	SocialAPIKey     string `long:"social-api-key" env:"BRIGHT_DATA_API_KEY" description:"Social scraping API key (social collection disabled when unset)"`
	SocialCustomerID string `long:"social-customer-id" env:"BRIGHT_DATA_CUSTOMER_ID" description:"Social scraping customer ID"`

	// Feature flags
	EnableCouncilCollection bool `long:"enable-council" env:"ENABLE_COUNCIL_COLLECTION" description:"Enable council minutes collection"`
	EnableSocialCollection  bool `long:"enable-social" env:"ENABLE_SOCIAL_COLLECTION" description:"Enable social media collection"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Twin County Digest/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	// Local env files are optional; the process environment wins.
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	raw.DigestWeekday = strings.ToLower(raw.DigestWeekday)
	if err := validateWeekday(raw.DigestWeekday); err != nil {
		return nil, err
	}

	cfg := &Cfg{
		DBHost:                  raw.DBHost,
		DBPort:                  raw.DBPort,
		DBUser:                  raw.DBUser,
		DBPassword:              raw.DBPassword,
		DBName:                  raw.DBName,
		SourcesDir:              raw.SourcesDir,
		Port:                    raw.Port,
		APIAccessKey:            raw.APIAccessKey,
		AnthropicAPIKey:         raw.AnthropicAPIKey,
		ClaudeModel:             raw.ClaudeModel,
		ClaudeMaxTokens:         raw.ClaudeMaxTokens,
		MailAPIKey:              raw.MailAPIKey,
		MailServerPrefix:        raw.MailServerPrefix,
		MailListID:              raw.MailListID,
		MailFromName:            raw.MailFromName,
		MailReplyTo:             raw.MailReplyTo,
		ApproverEmail:           raw.ApproverEmail,
		PreviewDelayHours:       raw.PreviewDelayHours,
		AutoSendAfterPreview:    raw.AutoSendAfterPreview,
		DigestWeekday:           raw.DigestWeekday,
		DigestHour:              raw.DigestHour,
		DigestMinute:            raw.DigestMinute,
		CollectIntervalHours:    raw.CollectIntervalHours,
		ClassifyOffsetMinutes:   raw.ClassifyOffsetMinutes,
		ClassifyBatchLimit:      raw.ClassifyBatchLimit,
		MaxConcurrency:          raw.MaxConcurrency,
		LookbackDays:            raw.LookbackDays,
		EventHorizonDays:        raw.EventHorizonDays,
		MaxItemsPerSource:       raw.MaxItemsPerSource,
		RetryAttempts:           raw.RetryAttempts,
		RetryMinWaitSeconds:     raw.RetryMinWaitSeconds,
		RetryMaxWaitSeconds:     raw.RetryMaxWaitSeconds,
		BreakerFailureThreshold: raw.BreakerFailureThreshold,
		BreakerCooldownSeconds:  raw.BreakerCooldownSeconds,
		SocialAPIKey:            raw.SocialAPIKey,
		SocialCustomerID:        raw.SocialCustomerID,
		EnableCouncilCollection: raw.EnableCouncilCollection,
		EnableSocialCollection:  raw.EnableSocialCollection,
		UserAgent:               raw.UserAgent,
		Timezone:                raw.Timezone,
		Debug:                   raw.Debug,
		Version:                 GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

func validateWeekday(day string) error {
	if !weekdays[day] {
		return fmt.Errorf("invalid digest weekday: %q", day)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
