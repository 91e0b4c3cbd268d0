package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"jobradar/pkg/models"
)

// RemoteOKProvider pulls postings from the RemoteOK public JSON feed.
// The feed has no server-side filtering, so keyword matching happens here.
type RemoteOKProvider struct {
	config SourceConfig
	client *http.Client
}

// NewRemoteOKProvider creates a new RemoteOK provider.
func NewRemoteOKProvider(config SourceConfig) *RemoteOKProvider {
	return &RemoteOKProvider{
		config: config,
		client: &http.Client{
			Timeout: config.ParseTimeout(),
		},
	}
}

// Name returns the provider name.
func (p *RemoteOKProvider) Name() string {
	return "remoteok"
}

// Search fetches the feed and filters it against the query keywords.
func (p *RemoteOKProvider) Search(ctx context.Context, query SearchQuery) (*SearchResult, error) {
	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = "https://remoteok.com/api"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua, ok := p.config.Headers["User-Agent"]; ok {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SourceError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("remoteok request failed with status %d", resp.StatusCode),
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	var feed []remoteOKJob
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	jobs := p.convertJobs(feed, query)

	return &SearchResult{
		Jobs:      jobs,
		Total:     len(jobs),
		HasMore:   false,
		Provider:  p.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// IsConfigured checks the source is enabled; RemoteOK needs no key.
func (p *RemoteOKProvider) IsConfigured() bool {
	return p.config.Enabled
}

// RateLimit returns the request budget.
func (p *RemoteOKProvider) RateLimit() RateLimit {
	return p.config.RateLimit
}

// ValidateCredentials confirms the feed is reachable.
func (p *RemoteOKProvider) ValidateCredentials(ctx context.Context) error {
	_, err := p.Search(ctx, SearchQuery{Limit: 1})
	return err
}

func (p *RemoteOKProvider) convertJobs(feed []remoteOKJob, query SearchQuery) []models.Job {
	limit := query.Limit
	if limit <= 0 {
		limit = p.config.MaxResults
	}

	var jobs []models.Job
	for _, rj := range feed {
		// The first feed element is a legal notice with no id; skip
		// anything that does not look like a posting.
		if rj.ID == 0 || rj.Position == "" {
			continue
		}
		if limit > 0 && len(jobs) >= limit {
			break
		}

		link := rj.URL
		if link == "" && rj.Slug != "" {
			link = "https://remoteok.com/remote-jobs/" + rj.Slug
		}

		job := models.NewJob(
			"remoteok",
			strconv.FormatInt(rj.ID, 10),
			rj.Position,
			rj.Company,
			rj.Location,
			formatRemoteOKSalary(rj),
			rj.Description,
			link,
		)

		job.Remote = true
		job.SalaryMin = rj.SalaryMin
		job.SalaryMax = rj.SalaryMax
		if len(rj.Tags) > 0 {
			job.Keywords = rj.Tags
		} else {
			job.ExtractKeywords()
		}
		if t, err := time.Parse(time.RFC3339, rj.Date); err == nil {
			job.PostedAt = &t
		}

		if !matchesKeywords(job, query.Keywords) {
			continue
		}

		jobs = append(jobs, *job)
	}

	return jobs
}

func formatRemoteOKSalary(rj remoteOKJob) string {
	if rj.SalaryMin > 0 && rj.SalaryMax > 0 {
		return fmt.Sprintf("$%d - $%d per year", rj.SalaryMin, rj.SalaryMax)
	}
	if rj.SalaryMin > 0 {
		return fmt.Sprintf("$%d+ per year", rj.SalaryMin)
	}
	return ""
}

// RemoteOK feed structure
type remoteOKJob struct {
	ID          int64    `json:"id,string"`
	Slug        string   `json:"slug"`
	Company     string   `json:"company"`
	Position    string   `json:"position"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Tags        []string `json:"tags"`
	URL         string   `json:"url"`
	Date        string   `json:"date"`
	SalaryMin   int      `json:"salary_min"`
	SalaryMax   int      `json:"salary_max"`
}
