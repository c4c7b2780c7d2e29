package sources

// Kind identifies the collector a source is handled by.
type Kind string

const (
	KindNews    Kind = "news"
	KindCouncil Kind = "council"
	KindSocial  Kind = "social"
)

// County values served by the digest. Empty means regional content.
const (
	CountyNash      = "nash"
	CountyEdgecombe = "edgecombe"
	CountyWilson    = "wilson"
)

// Source is the capability surface shared by every source kind.
type Source interface {
	SourceName() string
	SourceDisplayName() string
	SourceKind() Kind
	SourceCounty() string
	Active() bool
}

type base struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	County      string `yaml:"county"`
	IsActive    *bool  `yaml:"is_active"`
}

func (b base) SourceName() string        { return b.Name }
func (b base) SourceDisplayName() string { return b.DisplayName }
func (b base) SourceCounty() string      { return b.County }

// Active defaults to true when omitted in the definition file.
func (b base) Active() bool { return b.IsActive == nil || *b.IsActive }

// NewsSource is a news website with an RSS/Atom feed.
type NewsSource struct {
	base    `yaml:",inline"`
	URL     string `yaml:"url"`
	FeedURL string `yaml:"feed_url"`
	// FetchBody enables fetching linked pages and extracting article text.
	FetchBody bool `yaml:"fetch_body"`
}

func (s NewsSource) SourceKind() Kind { return KindNews }

// CouncilSource is a government page listing meeting minutes and agendas.
type CouncilSource struct {
	base            `yaml:",inline"`
	URL             string `yaml:"url"`
	MinutesSelector string `yaml:"minutes_selector"`
}

func (s CouncilSource) SourceKind() Kind { return KindCouncil }

// SocialSource is a social media account fetched through the scraping API.
type SocialSource struct {
	base      `yaml:",inline"`
	Platform  string `yaml:"platform"`
	AccountID string `yaml:"account_id"`
}

func (s SocialSource) SourceKind() Kind { return KindSocial }

// file is the on-disk shape of a source definition document.
type file struct {
	News    []NewsSource    `yaml:"news"`
	Council []CouncilSource `yaml:"council"`
	Social  []SocialSource  `yaml:"social"`
}

const defaultMinutesSelector = "a[href*='minute'], a[href*='agenda'], .meeting-minutes"
