package cfg

import "time"

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Application configuration
	SourcesDir   string
	Port         string
	APIAccessKey string

	// Claude classification / generation
	AnthropicAPIKey string
	ClaudeModel     string
	ClaudeMaxTokens int

	// Campaign delivery
	MailAPIKey       string
	MailServerPrefix string
	MailListID       string
	MailFromName     string
	MailReplyTo      string

	// Preview workflow
	ApproverEmail        string
	PreviewDelayHours    int
	AutoSendAfterPreview bool

	// Digest schedule
	DigestWeekday string
	DigestHour    int
	DigestMinute  int

	// Collection / classification schedule
	CollectIntervalHours  int
	ClassifyOffsetMinutes int
	ClassifyBatchLimit    int
	MaxConcurrency        int

	// Content selection
	LookbackDays      int
	EventHorizonDays  int
	MaxItemsPerSource int

	// Resilience
	RetryAttempts           int
	RetryMinWaitSeconds     int
	RetryMaxWaitSeconds     int
	BreakerFailureThreshold int
	BreakerCooldownSeconds  int

	// Social collection (Bright Data style API)
	SocialAPIKey     string
	SocialCustomerID string

	// Feature flags
	EnableCouncilCollection bool
	EnableSocialCollection  bool

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

// Weekday converts the validated digest weekday name to a time.Weekday.
func (c *Cfg) Weekday() time.Weekday {
	days := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	return days[c.DigestWeekday]
}

// SocialConfigured reports whether the social collection API credentials
// are present. Social sources are skipped entirely when they are not.
func (c *Cfg) SocialConfigured() bool {
	return c.EnableSocialCollection && c.SocialAPIKey != ""
}

// ClassifierConfigured reports whether the Claude API key is present.
func (c *Cfg) ClassifierConfigured() bool {
	return c.AnthropicAPIKey != ""
}

// MailerConfigured reports whether campaign delivery credentials are present.
func (c *Cfg) MailerConfigured() bool {
	return c.MailAPIKey != "" && c.MailListID != ""
}
