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

// JSearchProvider pulls postings from the JSearch API on RapidAPI.
type JSearchProvider struct {
	config SourceConfig
	client *http.Client
}

// NewJSearchProvider creates a new JSearch provider.
func NewJSearchProvider(config SourceConfig) *JSearchProvider {
	return &JSearchProvider{
		config: config,
		client: &http.Client{
			Timeout: config.ParseTimeout(),
		},
	}
}

// Name returns the provider name.
func (p *JSearchProvider) Name() string {
	return "jsearch"
}

// Search fetches postings from the JSearch API.
func (p *JSearchProvider) Search(ctx context.Context, query SearchQuery) (*SearchResult, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("jsearch provider not configured")
	}

	apiURL, err := p.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("failed to build search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-RapidAPI-Key", p.config.APIKey)
	req.Header.Set("X-RapidAPI-Host", "jsearch.p.rapidapi.com")
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
			Message:    fmt.Sprintf("jsearch request failed with status %d", resp.StatusCode),
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	var apiResp jSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if apiResp.Status != "OK" {
		return nil, &SourceError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("jsearch returned error status: %s", apiResp.Status),
		}
	}

	jobs := p.convertJobs(apiResp.Data)

	return &SearchResult{
		Jobs:      jobs,
		Total:     len(jobs),
		HasMore:   len(jobs) == query.Limit,
		Provider:  p.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// IsConfigured checks if the provider has a RapidAPI key.
func (p *JSearchProvider) IsConfigured() bool {
	return p.config.Enabled && p.config.APIKey != ""
}

// RateLimit returns the request budget.
func (p *JSearchProvider) RateLimit() RateLimit {
	return p.config.RateLimit
}

// ValidateCredentials verifies the key with a one-result search.
func (p *JSearchProvider) ValidateCredentials(ctx context.Context) error {
	_, err := p.Search(ctx, SearchQuery{
		Keywords: []string{"software engineer"},
		Limit:    1,
	})
	return err
}

func (p *JSearchProvider) buildSearchURL(query SearchQuery) (string, error) {
	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = "https://jsearch.p.rapidapi.com/search"
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	params := url.Values{}

	var queryParts []string
	if len(query.Keywords) > 0 {
		queryParts = append(queryParts, strings.Join(query.Keywords, " "))
	}
	if query.Location != "" {
		queryParts = append(queryParts, "in "+query.Location)
	}
	if len(queryParts) > 0 {
		params.Set("query", strings.Join(queryParts, " "))
	}

	params.Set("num_pages", "1")
	if query.Limit > 0 {
		params.Set("page", strconv.Itoa(query.Offset/query.Limit+1))
	} else {
		params.Set("page", "1")
	}

	if query.Remote {
		params.Set("remote_jobs_only", "true")
	}

	if query.JobType != "" {
		switch strings.ToLower(query.JobType) {
		case "full-time":
			params.Set("employment_types", "FULLTIME")
		case "part-time":
			params.Set("employment_types", "PARTTIME")
		case "contract":
			params.Set("employment_types", "CONTRACTOR")
		case "internship":
			params.Set("employment_types", "INTERN")
		}
	}

	if query.DatePosted != "" {
		switch strings.ToLower(query.DatePosted) {
		case "1d", "today":
			params.Set("date_posted", "today")
		case "3d":
			params.Set("date_posted", "3days")
		case "7d", "week":
			params.Set("date_posted", "week")
		case "30d", "month":
			params.Set("date_posted", "month")
		}
	}

	u.RawQuery = params.Encode()
	return u.String(), nil
}

func (p *JSearchProvider) convertJobs(data []jSearchJob) []models.Job {
	var jobs []models.Job

	for _, jsJob := range data {
		job := models.NewJob(
			"jsearch",
			jsJob.JobID,
			jsJob.JobTitle,
			jsJob.EmployerName,
			formatJSearchLocation(jsJob),
			formatJSearchSalary(jsJob),
			jsJob.JobDescription,
			jsJob.JobApplyLink,
		)

		job.Remote = jsJob.JobIsRemote
		job.JobType = normalizeEmploymentType(jsJob.JobEmploymentType)

		if jsJob.JobMinSalary != nil {
			job.SalaryMin = int(*jsJob.JobMinSalary)
		}
		if jsJob.JobMaxSalary != nil {
			job.SalaryMax = int(*jsJob.JobMaxSalary)
		}

		if jsJob.JobPostedAtDatetimeUTC != "" {
			if t, err := time.Parse(time.RFC3339, jsJob.JobPostedAtDatetimeUTC); err == nil {
				job.PostedAt = &t
			}
		}

		if len(jsJob.JobRequiredSkills) > 0 {
			job.Keywords = jsJob.JobRequiredSkills
		} else {
			job.ExtractKeywords()
		}

		jobs = append(jobs, *job)
	}

	return jobs
}

func formatJSearchLocation(job jSearchJob) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{job.JobCity, job.JobState, job.JobCountry} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func formatJSearchSalary(job jSearchJob) string {
	if job.JobMinSalary == nil {
		return ""
	}

	period := "per year"
	if job.JobSalaryPeriod != "" {
		period = "per " + strings.ToLower(job.JobSalaryPeriod)
	}
	currency := "$"
	if job.JobSalaryCurrency != "" && job.JobSalaryCurrency != "USD" {
		currency = job.JobSalaryCurrency + " "
	}

	if job.JobMaxSalary != nil {
		return fmt.Sprintf("%s%.0f - %s%.0f %s", currency, *job.JobMinSalary, currency, *job.JobMaxSalary, period)
	}
	return fmt.Sprintf("%s%.0f+ %s", currency, *job.JobMinSalary, period)
}

func normalizeEmploymentType(t string) string {
	switch strings.ToUpper(t) {
	case "FULLTIME":
		return "full-time"
	case "PARTTIME":
		return "part-time"
	case "CONTRACTOR":
		return "contract"
	case "INTERN":
		return "internship"
	default:
		return strings.ToLower(t)
	}
}

// JSearch API response structures
type jSearchResponse struct {
	Status    string       `json:"status"`
	RequestID string       `json:"request_id"`
	Data      []jSearchJob `json:"data"`
}

type jSearchJob struct {
	JobID                  string   `json:"job_id"`
	EmployerName           string   `json:"employer_name"`
	JobPublisher           string   `json:"job_publisher"`
	JobEmploymentType      string   `json:"job_employment_type"`
	JobTitle               string   `json:"job_title"`
	JobApplyLink           string   `json:"job_apply_link"`
	JobDescription         string   `json:"job_description"`
	JobIsRemote            bool     `json:"job_is_remote"`
	JobPostedAtTimestamp   int64    `json:"job_posted_at_timestamp"`
	JobPostedAtDatetimeUTC string   `json:"job_posted_at_datetime_utc"`
	JobCity                string   `json:"job_city"`
	JobState               string   `json:"job_state"`
	JobCountry             string   `json:"job_country"`
	JobBenefits            []string `json:"job_benefits"`
	JobRequiredSkills      []string `json:"job_required_skills"`
	JobMinSalary           *float64 `json:"job_min_salary"`
	JobMaxSalary           *float64 `json:"job_max_salary"`
	JobSalaryCurrency      string   `json:"job_salary_currency"`
	JobSalaryPeriod        string   `json:"job_salary_period"`
}
