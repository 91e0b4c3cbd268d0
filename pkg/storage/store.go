package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"jobradar/pkg/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence layer over Postgres.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// Open connects to Postgres and migrates the schema.
func Open(dsn string, logger *logrus.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return NewWithDB(db, logger)
}

// NewWithDB wraps an existing gorm connection; tests use this with sqlite.
func NewWithDB(db *gorm.DB, logger *logrus.Logger) (*Store, error) {
	if err := db.AutoMigrate(&models.Job{}, &models.User{}, &models.SavedSearch{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// UpsertJobs writes a batch keyed by (source, external_id). Existing rows get
// their mutable columns and last_seen_at refreshed while first_seen_at is
// preserved; rows reappearing after expiry are reactivated.
func (s *Store) UpsertJobs(ctx context.Context, jobs []models.Job) (inserted, updated int, err error) {
	if len(jobs) == 0 {
		return 0, 0, nil
	}

	ids := make([]string, 0, len(jobs))
	for i := range jobs {
		ids = append(ids, jobs[i].DedupeKey())
	}

	var existing []string
	if err := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id IN ?", ids).
		Pluck("id", &existing).Error; err != nil {
		return 0, 0, fmt.Errorf("checking existing jobs: %w", err)
	}
	existingSet := make(map[string]bool, len(existing))
	for _, id := range existing {
		existingSet[id] = true
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "company", "location", "description", "url", "job_type",
			"salary", "salary_min", "salary_max", "remote", "keywords",
			"visa_sponsorship", "visa_keywords", "posted_at",
			"last_seen_at", "is_active",
		}),
	}).CreateInBatches(jobs, 200).Error
	if err != nil {
		return 0, 0, fmt.Errorf("upserting jobs: %w", err)
	}

	for _, id := range ids {
		if existingSet[id] {
			updated++
		} else {
			inserted++
		}
	}
	return inserted, updated, nil
}

// GetByID returns one posting or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	return &job, nil
}

// GetByIDs returns the postings that still exist, in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]models.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var jobs []models.Job
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("loading jobs by ids: %w", err)
	}
	return jobs, nil
}

// Search runs a filtered, paginated query over stored postings, newest first.
func (s *Store) Search(ctx context.Context, filter models.JobFilter) (models.JobSearchResult, error) {
	q := s.db.WithContext(ctx).Model(&models.Job{})
	q = applyFilter(q, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return models.JobSearchResult{}, fmt.Errorf("counting jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var jobs []models.Job
	err := q.Order("last_seen_at DESC").Limit(limit).Offset(offset).Find(&jobs).Error
	if err != nil {
		return models.JobSearchResult{}, fmt.Errorf("searching jobs: %w", err)
	}

	for i := range jobs {
		jobs[i].CalculateRelevance(filter.Keywords)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return models.JobSearchResult{
		Jobs:       jobs,
		Total:      total,
		Page:       offset/limit + 1,
		PerPage:    limit,
		TotalPages: totalPages,
	}, nil
}

// List returns up to limit postings matching the filter, newest first. It
// skips the per-page cap, so it serves bulk callers like exports and the
// recommendation candidate pool.
func (s *Store) List(ctx context.Context, filter models.JobFilter, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	q := s.db.WithContext(ctx).Model(&models.Job{})
	q = applyFilter(q, filter)

	var jobs []models.Job
	if err := q.Order("last_seen_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return jobs, nil
}

// applyFilter translates a JobFilter into WHERE clauses. Text matching uses
// LOWER(...) LIKE so the same query runs on Postgres and the sqlite test DB.
func applyFilter(q *gorm.DB, filter models.JobFilter) *gorm.DB {
	if len(filter.Keywords) > 0 {
		var conds []string
		var args []interface{}
		for _, kw := range filter.Keywords {
			pattern := "%" + strings.ToLower(kw) + "%"
			conds = append(conds, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(company) LIKE ?)")
			args = append(args, pattern, pattern, pattern)
		}
		q = q.Where(strings.Join(conds, " OR "), args...)
	}

	if filter.Location != "" {
		q = q.Where("LOWER(location) LIKE ?", "%"+strings.ToLower(filter.Location)+"%")
	}
	if len(filter.Sources) > 0 {
		q = q.Where("source IN ?", filter.Sources)
	}
	if filter.Remote != nil {
		q = q.Where("remote = ?", *filter.Remote)
	}
	if filter.VisaOnly {
		q = q.Where("visa_sponsorship = ?", true)
	}
	if filter.JobType != "" {
		q = q.Where("job_type = ?", filter.JobType)
	}
	if filter.MinSalary > 0 {
		q = q.Where("(salary_max >= ? OR salary_max = 0)", filter.MinSalary)
	}
	if filter.MaxSalary > 0 {
		q = q.Where("salary_min <= ?", filter.MaxSalary)
	}
	if !filter.DateFrom.IsZero() {
		q = q.Where("last_seen_at >= ?", filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		q = q.Where("last_seen_at <= ?", filter.DateTo)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}

	return q
}

// MarkStaleInactive deactivates postings not seen since the cutoff. Rows are
// kept because bookmarks may still reference them.
func (s *Store) MarkStaleInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("last_seen_at < ? AND is_active = ?", cutoff, true).
		Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("marking stale jobs inactive: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Stats aggregates store-wide counters for the stats endpoint.
func (s *Store) Stats(ctx context.Context) (*models.JobStats, error) {
	stats := &models.JobStats{
		JobsBySource:   make(map[string]int64),
		JobsByLocation: make(map[string]int64),
		Keywords:       make(map[string]int),
	}

	db := s.db.WithContext(ctx).Model(&models.Job{})

	if err := db.Count(&stats.TotalJobs).Error; err != nil {
		return nil, fmt.Errorf("counting jobs: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("is_active = ?", true).Count(&stats.ActiveJobs).Error; err != nil {
		return nil, fmt.Errorf("counting active jobs: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("visa_sponsorship = ?", true).Count(&stats.SponsoredJobs).Error; err != nil {
		return nil, fmt.Errorf("counting sponsored jobs: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("last_seen_at >= ?", time.Now().Add(-24*time.Hour)).
		Count(&stats.RecentJobs).Error; err != nil {
		return nil, fmt.Errorf("counting recent jobs: %w", err)
	}

	type sourceCount struct {
		Source string
		N      int64
	}
	var bySource []sourceCount
	if err := s.db.WithContext(ctx).Model(&models.Job{}).
		Select("source, COUNT(*) AS n").Group("source").Scan(&bySource).Error; err != nil {
		return nil, fmt.Errorf("counting jobs by source: %w", err)
	}
	for _, sc := range bySource {
		stats.JobsBySource[sc.Source] = sc.N
	}

	type locationCount struct {
		Location string
		N        int64
	}
	var byLocation []locationCount
	if err := s.db.WithContext(ctx).Model(&models.Job{}).
		Select("location, COUNT(*) AS n").
		Where("location <> ''").
		Group("location").Order("n DESC").Limit(10).
		Scan(&byLocation).Error; err != nil {
		return nil, fmt.Errorf("counting jobs by location: %w", err)
	}
	for _, lc := range byLocation {
		stats.JobsByLocation[lc.Location] = lc.N
	}

	// Keyword histogram over the most recent postings; a full-table scan
	// is not worth it for a dashboard counter.
	var recent []models.Job
	if err := s.db.WithContext(ctx).Model(&models.Job{}).
		Select("keywords").Where("is_active = ?", true).
		Order("last_seen_at DESC").Limit(200).
		Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("sampling keywords: %w", err)
	}
	for _, job := range recent {
		for _, kw := range job.Keywords {
			stats.Keywords[kw]++
		}
	}

	// Read the newest row instead of a raw MAX so gorm decodes the
	// timestamp for whichever driver is underneath; an empty table just
	// leaves LastAggregated zero.
	var newest models.Job
	err := s.db.WithContext(ctx).Model(&models.Job{}).
		Select("last_seen_at").Order("last_seen_at DESC").First(&newest).Error
	switch {
	case err == nil:
		stats.LastAggregated = newest.LastSeenAt
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("finding last aggregation time: %w", err)
	}

	return stats, nil
}
