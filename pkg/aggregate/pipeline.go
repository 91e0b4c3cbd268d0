package aggregate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"jobradar/pkg/keywords"
	"jobradar/pkg/models"
	"jobradar/pkg/providers"
	"jobradar/pkg/registry"
	"jobradar/pkg/storage"
	"jobradar/pkg/visa"
)

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("aggregation run already in progress")

// Query is one configured search the pipeline fans out on every run.
type Query struct {
	Keywords string `json:"keywords"`
	Location string `json:"location"`
	Remote   bool   `json:"remote"`
	JobType  string `json:"job_type,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// SourceReport summarizes one source's contribution to a run.
type SourceReport struct {
	Fetched int `json:"fetched"`
	Dropped int `json:"dropped"`
}

// RunReport records what a single aggregation run did.
type RunReport struct {
	ID         string                  `json:"id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Queries    int                     `json:"queries"`
	Fetched    int                     `json:"fetched"`
	Inserted   int                     `json:"inserted"`
	Updated    int                     `json:"updated"`
	Expired    int64                   `json:"expired"`
	Sources    map[string]SourceReport `json:"sources"`
	Errors     []string                `json:"errors,omitempty"`
}

// Pipeline runs the fetch, normalize and upsert cycle: every configured
// query is fanned out across the registry, the postings are normalized into
// the canonical schema, deduplicated within the batch and written to the
// store. Postings no source has returned for longer than staleAfter are
// marked inactive at the end of the run.
type Pipeline struct {
	registry   *registry.Registry
	store      *storage.Store
	detector   *visa.Detector
	processor  *keywords.Processor
	queries    []Query
	staleAfter time.Duration
	logger     *logrus.Logger

	mu         sync.Mutex
	running    bool
	lastReport *RunReport
}

// New creates a pipeline over the given sources, store and query set.
func New(reg *registry.Registry, store *storage.Store, queries []Query, staleAfter time.Duration, logger *logrus.Logger) *Pipeline {
	if staleAfter <= 0 {
		staleAfter = 7 * 24 * time.Hour
	}
	return &Pipeline{
		registry:   reg,
		store:      store,
		detector:   visa.NewDetector(),
		processor:  keywords.NewProcessor(),
		queries:    queries,
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// Run executes one full aggregation cycle. Only one run may be active at a
// time; a second caller gets ErrRunInProgress. Individual source failures
// are collected into the report, not fatal; Run returns an error only when
// every source failed for every query.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrRunInProgress
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	report := &RunReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Queries:   len(p.queries),
		Sources:   make(map[string]SourceReport),
	}

	p.logger.Infof("Aggregation run %s started: %d queries", report.ID, len(p.queries))

	batch := make(map[string]models.Job)
	anySucceeded := false

	for _, query := range p.queries {
		results, errs := p.registry.SearchAll(ctx, p.toSearchQuery(query))
		for _, err := range errs {
			report.Errors = append(report.Errors, err.Error())
		}
		if len(results) > 0 {
			anySucceeded = true
		}

		for _, result := range results {
			src := report.Sources[result.Provider]
			for _, job := range result.Jobs {
				src.Fetched++
				report.Fetched++

				p.normalize(&job)
				if !job.IsValid() {
					src.Dropped++
					continue
				}

				// Within a run the newest sighting of a posting wins.
				batch[job.DedupeKey()] = job
			}
			report.Sources[result.Provider] = src
		}

		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, err.Error())
			break
		}
	}

	if !anySucceeded && len(p.queries) > 0 {
		report.FinishedAt = time.Now().UTC()
		p.setLastReport(report)
		return report, fmt.Errorf("aggregation run %s: all sources failed", report.ID)
	}

	if len(batch) > 0 {
		jobs := make([]models.Job, 0, len(batch))
		for _, job := range batch {
			jobs = append(jobs, job)
		}

		inserted, updated, err := p.store.UpsertJobs(ctx, jobs)
		if err != nil {
			report.FinishedAt = time.Now().UTC()
			p.setLastReport(report)
			return report, fmt.Errorf("aggregation run %s: upserting %d jobs: %w", report.ID, len(jobs), err)
		}
		report.Inserted = inserted
		report.Updated = updated
	}

	expired, err := p.ExpireStale(ctx)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	}
	report.Expired = expired

	report.FinishedAt = time.Now().UTC()
	p.setLastReport(report)

	p.logger.Infof("Aggregation run %s finished: %d fetched, %d inserted, %d updated, %d expired, %d errors",
		report.ID, report.Fetched, report.Inserted, report.Updated, report.Expired, len(report.Errors))
	return report, nil
}

// ExpireStale marks postings not seen within the stale window as inactive.
func (p *Pipeline) ExpireStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-p.staleAfter)
	expired, err := p.store.MarkStaleInactive(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring stale postings: %w", err)
	}
	if expired > 0 {
		p.logger.Infof("Marked %d stale postings inactive (not seen since %s)", expired, cutoff.Format(time.RFC3339))
	}
	return expired, nil
}

// LastReport returns the most recent run's report, or nil before any run.
func (p *Pipeline) LastReport() *RunReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReport
}

// Running reports whether a run is currently active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) setLastReport(report *RunReport) {
	p.mu.Lock()
	p.lastReport = report
	p.mu.Unlock()
}

func (p *Pipeline) toSearchQuery(q Query) providers.SearchQuery {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	return providers.SearchQuery{
		Keywords: p.processor.Expand(q.Keywords),
		Location: q.Location,
		Remote:   q.Remote,
		JobType:  q.JobType,
		Limit:    limit,
	}
}

// normalize brings a raw provider posting up to the canonical schema:
// whitespace and entity cleanup, remote and visa detection, keywords and
// the sighting timestamps.
func (p *Pipeline) normalize(job *models.Job) {
	job.Title = cleanText(job.Title)
	job.Company = cleanText(job.Company)
	job.Location = cleanText(job.Location)
	job.Description = strings.TrimSpace(html.UnescapeString(job.Description))
	job.URL = strings.TrimSpace(job.URL)
	job.JobType = strings.ToLower(strings.TrimSpace(job.JobType))

	if job.ID == "" {
		job.ID = job.DedupeKey()
	}

	if !job.Remote && job.LooksRemote() {
		job.Remote = true
	}

	result := p.detector.Detect(job.Title, job.Description)
	job.VisaSponsorship = result.Sponsorship
	job.VisaKeywords = result.Matched

	if len(job.Keywords) == 0 {
		job.Keywords = job.ExtractKeywords()
	}

	now := time.Now().UTC()
	if job.FirstSeenAt.IsZero() {
		job.FirstSeenAt = now
	}
	job.LastSeenAt = now
	job.IsActive = true
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}
