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

// GradCircleProvider pulls early-career postings from the GradCircle
// university-recruiting platform API. The API authenticates with the key as
// the basic-auth username and paginates with skip/take.
type GradCircleProvider struct {
	config SourceConfig
	client *http.Client
}

// NewGradCircleProvider creates a new GradCircle provider.
func NewGradCircleProvider(config SourceConfig) *GradCircleProvider {
	return &GradCircleProvider{
		config: config,
		client: &http.Client{
			Timeout: config.ParseTimeout(),
		},
	}
}

// Name returns the provider name.
func (p *GradCircleProvider) Name() string {
	return "gradcircle"
}

// Search fetches postings from the GradCircle API.
func (p *GradCircleProvider) Search(ctx context.Context, query SearchQuery) (*SearchResult, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("gradcircle provider not configured")
	}

	apiURL, err := p.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("failed to build search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(p.config.APIKey, "")
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
			Message:    fmt.Sprintf("gradcircle request failed with status %d", resp.StatusCode),
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	var apiResp gradCircleResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	jobs := p.convertJobs(apiResp.Results)

	return &SearchResult{
		Jobs:      jobs,
		Total:     apiResp.TotalResults,
		HasMore:   query.Offset+len(jobs) < apiResp.TotalResults,
		Provider:  p.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// IsConfigured checks if the provider has an API key.
func (p *GradCircleProvider) IsConfigured() bool {
	return p.config.Enabled && p.config.APIKey != ""
}

// RateLimit returns the request budget.
func (p *GradCircleProvider) RateLimit() RateLimit {
	return p.config.RateLimit
}

// ValidateCredentials verifies the key with a one-result search.
func (p *GradCircleProvider) ValidateCredentials(ctx context.Context) error {
	_, err := p.Search(ctx, SearchQuery{Limit: 1})
	return err
}

func (p *GradCircleProvider) buildSearchURL(query SearchQuery) (string, error) {
	baseURL := p.config.BaseURL
	if baseURL == "" {
		return "", fmt.Errorf("gradcircle base URL not configured")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	params := url.Values{}

	if len(query.Keywords) > 0 {
		params.Set("keywords", strings.Join(query.Keywords, " "))
	}
	if query.Location != "" {
		params.Set("location", query.Location)
	}
	if query.Remote {
		params.Set("workplace", "remote")
	}

	// GradCircle only lists internships and new-grad roles; the role kind
	// maps onto its program filter.
	switch strings.ToLower(query.JobType) {
	case "internship":
		params.Set("program", "internship")
	case "full-time":
		params.Set("program", "new-grad")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = p.config.MaxResults
	}
	params.Set("take", strconv.Itoa(limit))
	params.Set("skip", strconv.Itoa(query.Offset))

	u.RawQuery = params.Encode()
	return u.String(), nil
}

func (p *GradCircleProvider) convertJobs(results []gradCircleJob) []models.Job {
	var jobs []models.Job

	for _, gj := range results {
		job := models.NewJob(
			"gradcircle",
			gj.JobID,
			gj.Title,
			gj.Employer.Name,
			gj.Location,
			formatGradCircleSalary(gj),
			gj.Description,
			gj.ApplyURL,
		)

		job.SalaryMin = gj.SalaryMin
		job.SalaryMax = gj.SalaryMax
		job.Remote = strings.EqualFold(gj.Workplace, "remote") || job.LooksRemote()

		switch strings.ToLower(gj.Program) {
		case "internship":
			job.JobType = "internship"
		default:
			job.JobType = "full-time"
		}

		if t, err := time.Parse(time.RFC3339, gj.PostedDate); err == nil {
			job.PostedAt = &t
		}
		job.ExtractKeywords()

		jobs = append(jobs, *job)
	}

	return jobs
}

func formatGradCircleSalary(gj gradCircleJob) string {
	if gj.SalaryMin > 0 && gj.SalaryMax > 0 {
		return fmt.Sprintf("$%d - $%d per year", gj.SalaryMin, gj.SalaryMax)
	}
	if gj.SalaryMin > 0 {
		return fmt.Sprintf("$%d+ per year", gj.SalaryMin)
	}
	return ""
}

// GradCircle API response structures
type gradCircleResponse struct {
	TotalResults int             `json:"total_results"`
	Skip         int             `json:"skip"`
	Take         int             `json:"take"`
	Results      []gradCircleJob `json:"results"`
}

type gradCircleJob struct {
	JobID       string             `json:"job_id"`
	Title       string             `json:"title"`
	Employer    gradCircleEmployer `json:"employer"`
	Location    string             `json:"location"`
	Workplace   string             `json:"workplace"` // onsite, hybrid, remote
	Program     string             `json:"program"`   // internship, new-grad
	Description string             `json:"description"`
	ApplyURL    string             `json:"apply_url"`
	PostedDate  string             `json:"posted_date"`
	SalaryMin   int                `json:"salary_min"`
	SalaryMax   int                `json:"salary_max"`
	Majors      []string           `json:"majors"`
	GradYears   []int              `json:"grad_years"`
}

type gradCircleEmployer struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Website  string `json:"website"`
}
