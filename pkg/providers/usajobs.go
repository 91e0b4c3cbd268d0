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

// USAJobsProvider pulls postings from the USAJobs federal job board API.
type USAJobsProvider struct {
	config SourceConfig
	client *http.Client
}

// NewUSAJobsProvider creates a new USAJobs provider.
func NewUSAJobsProvider(config SourceConfig) *USAJobsProvider {
	return &USAJobsProvider{
		config: config,
		client: &http.Client{
			Timeout: config.ParseTimeout(),
		},
	}
}

// Name returns the provider name.
func (p *USAJobsProvider) Name() string {
	return "usajobs"
}

// Search fetches postings from the USAJobs API.
func (p *USAJobsProvider) Search(ctx context.Context, query SearchQuery) (*SearchResult, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("usajobs provider not configured")
	}

	apiURL, err := p.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("failed to build search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// USAJobs requires all three headers or the request is rejected.
	req.Header.Set("Host", "data.usajobs.gov")
	req.Header.Set("User-Agent", p.config.Headers["User-Agent"])
	req.Header.Set("Authorization-Key", p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SourceError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("usajobs request failed with status %d", resp.StatusCode),
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	var apiResp usaJobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	jobs := p.convertJobs(apiResp.SearchResult.SearchResultItems)

	return &SearchResult{
		Jobs:      jobs,
		Total:     apiResp.SearchResult.SearchResultCountAll,
		HasMore:   len(jobs) == query.Limit,
		Provider:  p.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// IsConfigured checks if the provider has an API key.
func (p *USAJobsProvider) IsConfigured() bool {
	return p.config.Enabled && p.config.APIKey != ""
}

// RateLimit returns the request budget.
func (p *USAJobsProvider) RateLimit() RateLimit {
	return p.config.RateLimit
}

// ValidateCredentials verifies the key with a one-result search.
func (p *USAJobsProvider) ValidateCredentials(ctx context.Context) error {
	_, err := p.Search(ctx, SearchQuery{
		Keywords: []string{"software"},
		Limit:    1,
	})
	return err
}

func (p *USAJobsProvider) buildSearchURL(query SearchQuery) (string, error) {
	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = "https://data.usajobs.gov/api/Search"
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	params := url.Values{}

	if len(query.Keywords) > 0 {
		params.Set("Keyword", strings.Join(query.Keywords, " "))
	}
	if query.Location != "" {
		params.Set("LocationName", query.Location)
	}
	if query.Remote {
		params.Set("RemoteIndicator", "true")
	}

	if query.JobType != "" {
		switch strings.ToLower(query.JobType) {
		case "full-time":
			params.Set("PositionScheduleTypeCode", "1")
		case "part-time":
			params.Set("PositionScheduleTypeCode", "2")
		}
	}

	limit := query.Limit
	if limit <= 0 {
		limit = p.config.MaxResults
	}
	params.Set("ResultsPerPage", strconv.Itoa(limit))
	if query.Offset > 0 && limit > 0 {
		params.Set("Page", strconv.Itoa(query.Offset/limit+1))
	}

	if days := parseDatePosted(query.DatePosted); days > 0 {
		params.Set("DatePosted", strconv.Itoa(days))
	}

	u.RawQuery = params.Encode()
	return u.String(), nil
}

func (p *USAJobsProvider) convertJobs(items []usaJobsItem) []models.Job {
	var jobs []models.Job

	for _, item := range items {
		md := item.MatchedObjectDescriptor

		job := models.NewJob(
			"usajobs",
			md.PositionID,
			md.PositionTitle,
			md.OrganizationName,
			formatUSAJobsLocation(md.PositionLocationDisplay),
			formatUSAJobsSalary(md),
			md.UserArea.Details.JobSummary,
			md.PositionURI,
		)

		if min, max, ok := usaJobsSalaryBounds(md); ok {
			job.SalaryMin, job.SalaryMax = min, max
		}
		if t, err := time.Parse(time.RFC3339, md.PublicationStartDate); err == nil {
			job.PostedAt = &t
		} else if t, err := time.Parse("2006-01-02", md.PublicationStartDate); err == nil {
			job.PostedAt = &t
		}
		if len(md.PositionSchedule) > 0 {
			job.JobType = normalizeScheduleName(md.PositionSchedule[0].Name)
		}
		job.Remote = job.LooksRemote()
		job.ExtractKeywords()

		jobs = append(jobs, *job)
	}

	return jobs
}

func formatUSAJobsLocation(locations []string) string {
	if len(locations) == 0 {
		return ""
	}
	return strings.Join(locations, ", ")
}

func formatUSAJobsSalary(md usaJobsDescriptor) string {
	if len(md.PositionRemuneration) == 0 {
		return ""
	}

	rem := md.PositionRemuneration[0]
	if rem.MinimumRange != "" && rem.MaximumRange != "" {
		return fmt.Sprintf("$%s - $%s per year", rem.MinimumRange, rem.MaximumRange)
	}
	if rem.MinimumRange != "" {
		return fmt.Sprintf("$%s+ per year", rem.MinimumRange)
	}
	return ""
}

func usaJobsSalaryBounds(md usaJobsDescriptor) (int, int, bool) {
	if len(md.PositionRemuneration) == 0 {
		return 0, 0, false
	}
	rem := md.PositionRemuneration[0]
	min, err1 := strconv.ParseFloat(rem.MinimumRange, 64)
	max, err2 := strconv.ParseFloat(rem.MaximumRange, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return int(min), int(max), true
}

func normalizeScheduleName(name string) string {
	switch strings.ToLower(name) {
	case "full-time", "full time":
		return "full-time"
	case "part-time", "part time":
		return "part-time"
	default:
		return strings.ToLower(name)
	}
}

// USAJobs API response structures
type usaJobsResponse struct {
	LanguageCode string              `json:"LanguageCode"`
	SearchResult usaJobsSearchResult `json:"SearchResult"`
}

type usaJobsSearchResult struct {
	SearchResultCount    int           `json:"SearchResultCount"`
	SearchResultCountAll int           `json:"SearchResultCountAll"`
	SearchResultItems    []usaJobsItem `json:"SearchResultItems"`
}

type usaJobsItem struct {
	MatchedObjectDescriptor usaJobsDescriptor `json:"MatchedObjectDescriptor"`
	MatchedObjectId         string            `json:"MatchedObjectId"`
	RelevanceRank           int               `json:"RelevanceRank"`
}

type usaJobsDescriptor struct {
	PositionID              string                `json:"PositionID"`
	PositionTitle           string                `json:"PositionTitle"`
	PositionURI             string                `json:"PositionURI"`
	ApplyURI                []string              `json:"ApplyURI"`
	PositionLocationDisplay []string              `json:"PositionLocationDisplay"`
	OrganizationName        string                `json:"OrganizationName"`
	DepartmentName          string                `json:"DepartmentName"`
	PositionRemuneration    []usaJobsRemuneration `json:"PositionRemuneration"`
	PublicationStartDate    string                `json:"PublicationStartDate"`
	ApplicationCloseDate    string                `json:"ApplicationCloseDate"`
	PositionSchedule        []usaJobsSchedule     `json:"PositionSchedule"`
	UserArea                usaJobsUserArea       `json:"UserArea"`
}

type usaJobsRemuneration struct {
	MinimumRange     string `json:"MinimumRange"`
	MaximumRange     string `json:"MaximumRange"`
	RateIntervalCode string `json:"RateIntervalCode"`
	Description      string `json:"Description"`
}

type usaJobsSchedule struct {
	Name string `json:"Name"`
	Code string `json:"Code"`
}

type usaJobsUserArea struct {
	Details usaJobsDetails `json:"Details"`
}

type usaJobsDetails struct {
	JobSummary   string `json:"JobSummary"`
	WhoMayApply  string `json:"WhoMayApply"`
	MajorDuties  string `json:"MajorDuties"`
	Education    string `json:"Education"`
	Requirements string `json:"Requirements"`
	HowToApply   string `json:"HowToApply"`
}
