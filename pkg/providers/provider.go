package providers

import (
	"context"
	"strings"
	"time"

	"jobradar/pkg/models"
)

// Provider is implemented by every job source the aggregator pulls from.
type Provider interface {
	// Name returns the source name (e.g. "usajobs", "remotive", "jsearch")
	Name() string

	// Search fetches postings matching the query from the source
	Search(ctx context.Context, query SearchQuery) (*SearchResult, error)

	// IsConfigured checks if the source has the credentials it needs
	IsConfigured() bool

	// RateLimit returns the request budget the aggregator must respect
	RateLimit() RateLimit

	// ValidateCredentials verifies the credentials with a minimal request
	ValidateCredentials(ctx context.Context) error
}

// SearchQuery is the source-independent query a provider translates into its
// own wire format.
type SearchQuery struct {
	Keywords   []string `json:"keywords"`
	Location   string   `json:"location"`
	Remote     bool     `json:"remote"`
	JobType    string   `json:"job_type,omitempty"` // full-time, part-time, contract, internship
	DatePosted string   `json:"date_posted,omitempty"` // 1d, 3d, 7d, 14d, 30d
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
}

// SearchResult is one source's answer to a query, already normalized.
type SearchResult struct {
	Jobs      []models.Job `json:"jobs"`
	Total     int          `json:"total"`
	HasMore   bool         `json:"has_more"`
	Provider  string       `json:"provider"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// RateLimit is the per-source request budget.
type RateLimit struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	Burst             int `json:"burst"`
}

// SourceConfig configures one source entry from the config file.
type SourceConfig struct {
	Name       string            `json:"name"`
	Enabled    bool              `json:"enabled"`
	Provider   string            `json:"provider"` // usajobs, jsearch, remotive, remoteok, gradcircle, rssfeed, campus
	BaseURL    string            `json:"base_url"`
	APIKey     string            `json:"api_key"`
	MaxResults int               `json:"max_results"`
	Timeout    string            `json:"timeout"` // duration string like "30s"
	RateLimit  RateLimit         `json:"rate_limit"`
	Headers    map[string]string `json:"headers,omitempty"`

	// Feeds configures the rssfeed provider.
	Feeds []FeedConfig `json:"feeds,omitempty"`

	// Selectors and RenderJS configure the campus HTML provider.
	Selectors *Selectors `json:"selectors,omitempty"`
	RenderJS  bool       `json:"render_js,omitempty"`
}

// ParseTimeout returns the configured request timeout, defaulting to 30s.
func (c SourceConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// SourceError is an error from a specific source, carrying enough context for
// the registry to decide whether the request was worth retrying.
type SourceError struct {
	Provider   string `json:"provider"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

func (e *SourceError) Error() string {
	return e.Message
}

// parseDatePosted converts the query's date-posted shorthand to days.
func parseDatePosted(datePosted string) int {
	switch strings.ToLower(datePosted) {
	case "1d", "today":
		return 1
	case "3d":
		return 3
	case "7d", "week":
		return 7
	case "14d":
		return 14
	case "30d", "month":
		return 30
	default:
		return 0
	}
}

// matchesKeywords reports whether a posting's text mentions any query keyword.
// Used by feed-style sources that cannot filter server-side.
func matchesKeywords(job *models.Job, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	text := job.SearchText()
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
