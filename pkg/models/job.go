package models

import (
	"fmt"
	"strings"
	"time"
)

// Job is the canonical posting schema all sources are normalized into.
// The natural key is (Source, ExternalID); ID is the two joined so a posting
// keeps the same identity across aggregation runs.
type Job struct {
	ID         string `gorm:"primaryKey" json:"id"`
	Source     string `gorm:"uniqueIndex:idx_source_external;index" json:"source"`
	ExternalID string `gorm:"uniqueIndex:idx_source_external" json:"external_id"`

	Title       string `gorm:"not null" json:"title"`
	Company     string `gorm:"index" json:"company"`
	Location    string `json:"location"`
	Description string `gorm:"type:text" json:"description"`
	URL         string `json:"url"`
	JobType     string `json:"job_type"` // full-time, part-time, contract, internship

	Salary    string `json:"salary"` // display string as the source published it
	SalaryMin int    `json:"salary_min"`
	SalaryMax int    `json:"salary_max"`

	Remote   bool     `json:"remote"`
	Keywords []string `gorm:"serializer:json" json:"keywords"`

	VisaSponsorship bool     `gorm:"index" json:"visa_sponsorship"`
	VisaKeywords    []string `gorm:"serializer:json" json:"visa_keywords"`

	PostedAt    *time.Time `json:"posted_at,omitempty"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
	LastSeenAt  time.Time  `gorm:"index" json:"last_seen_at"`
	IsActive    bool       `gorm:"index" json:"is_active"`

	// Relevance is computed per search and never persisted.
	Relevance float64 `gorm:"-" json:"relevance,omitempty"`
}

// JobFilter describes a search over stored postings.
type JobFilter struct {
	Keywords  []string  `json:"keywords"`
	Location  string    `json:"location"`
	Sources   []string  `json:"sources"`
	Remote    *bool     `json:"remote,omitempty"`
	VisaOnly  bool      `json:"visa_only"`
	JobType   string    `json:"job_type,omitempty"`
	MinSalary int       `json:"min_salary"`
	MaxSalary int       `json:"max_salary"`
	DateFrom  time.Time `json:"date_from"`
	DateTo    time.Time `json:"date_to"`
	IsActive  *bool     `json:"is_active,omitempty"`
	Limit     int       `json:"limit"`
	Offset    int       `json:"offset"`
}

type JobSearchResult struct {
	Jobs       []Job `json:"jobs"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

type JobStats struct {
	TotalJobs      int64            `json:"total_jobs"`
	ActiveJobs     int64            `json:"active_jobs"`
	SponsoredJobs  int64            `json:"sponsored_jobs"`
	JobsBySource   map[string]int64 `json:"jobs_by_source"`
	JobsByLocation map[string]int64 `json:"jobs_by_location"`
	RecentJobs     int64            `json:"recent_jobs"`
	LastAggregated time.Time        `json:"last_aggregated"`
	Keywords       map[string]int   `json:"keywords"`
}

// NewJob builds a posting with trimmed fields and its identity derived from
// the source-native id.
func NewJob(source, externalID, title, company, location, salary, description, url string) *Job {
	now := time.Now().UTC()
	job := &Job{
		Source:      strings.TrimSpace(source),
		ExternalID:  strings.TrimSpace(externalID),
		Title:       strings.TrimSpace(title),
		Company:     strings.TrimSpace(company),
		Location:    strings.TrimSpace(location),
		Salary:      strings.TrimSpace(salary),
		Description: strings.TrimSpace(description),
		URL:         strings.TrimSpace(url),
		FirstSeenAt: now,
		LastSeenAt:  now,
		IsActive:    true,
	}
	job.ID = job.DedupeKey()
	return job
}

// DedupeKey returns the natural key used for upserts across runs.
func (j *Job) DedupeKey() string {
	return fmt.Sprintf("%s_%s", strings.ToLower(j.Source), j.ExternalID)
}

func (j *Job) IsValid() bool {
	return j.Title != "" && j.Source != "" && j.ExternalID != ""
}

// SearchText returns the lowercased text blob classifiers run over.
func (j *Job) SearchText() string {
	return strings.ToLower(j.Title + " " + j.Description)
}

// LooksRemote reports whether the posting reads like a remote role.
// Sources with an explicit remote flag set Remote directly; this is the
// fallback for text-only sources.
func (j *Job) LooksRemote() bool {
	location := strings.ToLower(j.Location)
	return strings.Contains(location, "remote") ||
		strings.Contains(location, "anywhere") ||
		strings.Contains(location, "work from home")
}

// ExtractKeywords scans title and description for known tech terms and
// stores the matches on the posting.
func (j *Job) ExtractKeywords() []string {
	text := j.SearchText()

	var found []string
	for _, keyword := range techKeywords {
		if strings.Contains(text, keyword) {
			found = append(found, keyword)
		}
	}

	j.Keywords = found
	return found
}

// CalculateRelevance scores the posting against search keywords in [0,1].
// Title matches count double.
func (j *Job) CalculateRelevance(searchKeywords []string) float64 {
	if len(searchKeywords) == 0 {
		return 0.0
	}

	text := j.SearchText()
	title := strings.ToLower(j.Title)
	matches := 0

	for _, keyword := range searchKeywords {
		kw := strings.ToLower(keyword)
		if strings.Contains(text, kw) {
			matches++
			if strings.Contains(title, kw) {
				matches++
			}
		}
	}

	j.Relevance = float64(matches) / float64(2*len(searchKeywords))
	return j.Relevance
}

// GetExperienceLevel buckets the posting into junior/mid/senior from its text.
func (j *Job) GetExperienceLevel() string {
	text := j.SearchText()

	if strings.Contains(text, "senior") || strings.Contains(text, "sr.") ||
		strings.Contains(text, "lead") || strings.Contains(text, "principal") {
		return "senior"
	}

	if strings.Contains(text, "junior") || strings.Contains(text, "jr.") ||
		strings.Contains(text, "entry") || strings.Contains(text, "graduate") ||
		strings.Contains(text, "new grad") || strings.Contains(text, "intern") {
		return "junior"
	}

	return "mid"
}

var techKeywords = []string{
	"javascript", "typescript", "python", "java", "golang", "go", "rust", "c++", "c#",
	"react", "vue", "angular", "node.js", "express", "django", "flask", "spring",
	"kubernetes", "docker", "aws", "azure", "gcp", "terraform",
	"mongodb", "postgresql", "mysql", "redis", "elasticsearch",
	"microservices", "api", "rest", "graphql", "grpc",
	"machine learning", "ai", "data science", "blockchain",
	"frontend", "backend", "fullstack", "devops", "mobile",
	"ios", "android", "react native", "flutter",
}
