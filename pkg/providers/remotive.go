package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jobradar/pkg/models"
)

// RemotiveProvider pulls postings from the Remotive remote-jobs API.
// The API is keyless and filters server-side by search term only.
type RemotiveProvider struct {
	config SourceConfig
	client *http.Client
}

// NewRemotiveProvider creates a new Remotive provider.
func NewRemotiveProvider(config SourceConfig) *RemotiveProvider {
	return &RemotiveProvider{
		config: config,
		client: &http.Client{
			Timeout: config.ParseTimeout(),
		},
	}
}

// Name returns the provider name.
func (p *RemotiveProvider) Name() string {
	return "remotive"
}

// Search fetches postings from the Remotive API.
func (p *RemotiveProvider) Search(ctx context.Context, query SearchQuery) (*SearchResult, error) {
	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = "https://remotive.com/api/remote-jobs"
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	params := url.Values{}
	if len(query.Keywords) > 0 {
		params.Set("search", strings.Join(query.Keywords, " "))
	}
	limit := query.Limit
	if limit <= 0 {
		limit = p.config.MaxResults
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SourceError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("remotive request failed with status %d", resp.StatusCode),
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	var apiResp remotiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	jobs := p.convertJobs(apiResp.Jobs, limit)

	return &SearchResult{
		Jobs:      jobs,
		Total:     apiResp.JobCount,
		HasMore:   false,
		Provider:  p.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// IsConfigured checks the source is enabled; Remotive needs no key.
func (p *RemotiveProvider) IsConfigured() bool {
	return p.config.Enabled
}

// RateLimit returns the request budget.
func (p *RemotiveProvider) RateLimit() RateLimit {
	return p.config.RateLimit
}

// ValidateCredentials confirms the endpoint is reachable.
func (p *RemotiveProvider) ValidateCredentials(ctx context.Context) error {
	_, err := p.Search(ctx, SearchQuery{Limit: 1})
	return err
}

func (p *RemotiveProvider) convertJobs(data []remotiveJob, limit int) []models.Job {
	var jobs []models.Job

	for _, rj := range data {
		if limit > 0 && len(jobs) >= limit {
			break
		}

		job := models.NewJob(
			"remotive",
			strconv.Itoa(rj.ID),
			rj.Title,
			rj.CompanyName,
			rj.CandidateRequiredLocation,
			rj.Salary,
			rj.Description,
			rj.URL,
		)

		// Everything on Remotive is remote by definition.
		job.Remote = true
		job.JobType = normalizeEmploymentType(rj.JobType)
		if len(rj.Tags) > 0 {
			job.Keywords = rj.Tags
		} else {
			job.ExtractKeywords()
		}

		if t, err := time.Parse("2006-01-02T15:04:05", rj.PublicationDate); err == nil {
			job.PostedAt = &t
		}

		jobs = append(jobs, *job)
	}

	return jobs
}

// Remotive API response structures
type remotiveResponse struct {
	JobCount int           `json:"job-count"`
	Jobs     []remotiveJob `json:"jobs"`
}

type remotiveJob struct {
	ID                        int      `json:"id"`
	URL                       string   `json:"url"`
	Title                     string   `json:"title"`
	CompanyName               string   `json:"company_name"`
	CompanyLogo               string   `json:"company_logo"`
	Category                  string   `json:"category"`
	Tags                      []string `json:"tags"`
	JobType                   string   `json:"job_type"`
	PublicationDate           string   `json:"publication_date"`
	CandidateRequiredLocation string   `json:"candidate_required_location"`
	Salary                    string   `json:"salary"`
	Description               string   `json:"description"`
}
