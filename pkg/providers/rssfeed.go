package providers

import (
	"context"
	"crypto/md5"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"jobradar/pkg/models"
)

// FeedConfig is one RSS or Atom feed in an rssfeed source entry.
type FeedConfig struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	FeedType string `json:"feed_type"` // "rss" or "atom"
}

// RSSFeedProvider pulls postings from remote-job RSS/Atom feeds
// (We Work Remotely and similar boards that publish no JSON API).
type RSSFeedProvider struct {
	config SourceConfig
	client *http.Client
}

// NewRSSFeedProvider creates a new feed provider.
func NewRSSFeedProvider(config SourceConfig) *RSSFeedProvider {
	return &RSSFeedProvider{
		config: config,
		client: &http.Client{
			Timeout: config.ParseTimeout(),
		},
	}
}

// Name returns the provider name.
func (p *RSSFeedProvider) Name() string {
	return "rssfeed"
}

// Search fetches every configured feed and filters items against the query.
// A feed failing does not fail the others; the error is returned only when
// every feed failed.
func (p *RSSFeedProvider) Search(ctx context.Context, query SearchQuery) (*SearchResult, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("rssfeed provider has no feeds configured")
	}

	var jobs []models.Job
	var errs []string

	for _, feed := range p.config.Feeds {
		feedJobs, err := p.fetchFeed(ctx, feed, query)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", feed.Name, err))
			continue
		}
		jobs = append(jobs, feedJobs...)
	}

	if len(jobs) == 0 && len(errs) > 0 {
		return nil, &SourceError{
			Provider:  p.Name(),
			Message:   fmt.Sprintf("all feeds failed: %s", strings.Join(errs, "; ")),
			Retryable: true,
		}
	}

	return &SearchResult{
		Jobs:      jobs,
		Total:     len(jobs),
		HasMore:   false,
		Provider:  p.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// IsConfigured checks at least one feed is configured.
func (p *RSSFeedProvider) IsConfigured() bool {
	return p.config.Enabled && len(p.config.Feeds) > 0
}

// RateLimit returns the request budget.
func (p *RSSFeedProvider) RateLimit() RateLimit {
	return p.config.RateLimit
}

// ValidateCredentials confirms the first feed is reachable.
func (p *RSSFeedProvider) ValidateCredentials(ctx context.Context) error {
	if !p.IsConfigured() {
		return fmt.Errorf("rssfeed provider has no feeds configured")
	}
	_, err := p.fetchFeed(ctx, p.config.Feeds[0], SearchQuery{})
	return err
}

func (p *RSSFeedProvider) fetchFeed(ctx context.Context, feed FeedConfig, query SearchQuery) ([]models.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if ua, ok := p.config.Headers["User-Agent"]; ok {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	if strings.EqualFold(feed.FeedType, "atom") {
		return p.parseAtom(body, feed, query)
	}
	return p.parseRSS(body, feed, query)
}

func (p *RSSFeedProvider) parseRSS(body []byte, feed FeedConfig, query SearchQuery) ([]models.Job, error) {
	var parsed rssFeed
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse RSS: %w", err)
	}

	var jobs []models.Job
	for _, item := range parsed.Channel.Items {
		if p.config.MaxResults > 0 && len(jobs) >= p.config.MaxResults {
			break
		}

		title, company := splitFeedTitle(item.Title)
		externalID := item.GUID
		if externalID == "" {
			externalID = hashLink(item.Link)
		}

		job := models.NewJob(
			"rssfeed",
			externalID,
			title,
			company,
			"Remote",
			"",
			stripHTMLTags(item.Description),
			item.Link,
		)
		job.Remote = true
		job.ExtractKeywords()
		if t, ok := parseFeedDate(item.PubDate); ok {
			job.PostedAt = &t
		}

		if !job.IsValid() || !matchesKeywords(job, query.Keywords) {
			continue
		}
		jobs = append(jobs, *job)
	}

	return jobs, nil
}

func (p *RSSFeedProvider) parseAtom(body []byte, feed FeedConfig, query SearchQuery) ([]models.Job, error) {
	var parsed atomFeed
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse Atom: %w", err)
	}

	var jobs []models.Job
	for _, entry := range parsed.Entries {
		if p.config.MaxResults > 0 && len(jobs) >= p.config.MaxResults {
			break
		}

		title, company := splitFeedTitle(entry.Title)
		externalID := entry.ID
		if externalID == "" {
			externalID = hashLink(entry.Link.Href)
		}

		job := models.NewJob(
			"rssfeed",
			externalID,
			title,
			company,
			"Remote",
			"",
			stripHTMLTags(entry.Summary),
			entry.Link.Href,
		)
		job.Remote = true
		job.ExtractKeywords()
		if t, ok := parseFeedDate(entry.Published); ok {
			job.PostedAt = &t
		}

		if !job.IsValid() || !matchesKeywords(job, query.Keywords) {
			continue
		}
		jobs = append(jobs, *job)
	}

	return jobs, nil
}

// splitFeedTitle pulls company out of the common "Company: Job Title" feed
// title convention. Titles without the separator keep everything as the title.
func splitFeedTitle(raw string) (title, company string) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[0])
	}
	return strings.TrimSpace(raw), ""
}

func hashLink(link string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(link)))
}

var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05Z",
}

func parseFeedDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range feedDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func stripHTMLTags(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// RSS and Atom wire structures
type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Link        string    `xml:"link"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
	Category    string `xml:"category"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Link    struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Published string `xml:"published"`
	ID        string `xml:"id"`
}
