package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jobradar/pkg/models"
	"jobradar/pkg/providers"
	"jobradar/pkg/registry"
	"jobradar/pkg/storage"
)

type fakeProvider struct {
	name string
	jobs []models.Job
	err  error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, query providers.SearchQuery) (*providers.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &providers.SearchResult{Jobs: f.jobs, Total: len(f.jobs)}, nil
}

func (f *fakeProvider) IsConfigured() bool { return true }

func (f *fakeProvider) RateLimit() providers.RateLimit { return providers.RateLimit{} }

func (f *fakeProvider) ValidateCredentials(ctx context.Context) error { return nil }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	store, err := storage.NewWithDB(db, testLogger())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return store
}

func newTestPipeline(t *testing.T, provs ...providers.Provider) (*Pipeline, *storage.Store) {
	t.Helper()
	logger := testLogger()
	reg := registry.New(logger)
	for _, p := range provs {
		if err := reg.Register(p); err != nil {
			t.Fatalf("registering provider: %v", err)
		}
	}
	store := newTestStore(t)
	queries := []Query{{Keywords: "golang"}}
	return New(reg, store, queries, 7*24*time.Hour, logger), store
}

func rawJob(source, externalID, title, description string) models.Job {
	return models.Job{
		Source:      source,
		ExternalID:  externalID,
		Title:       title,
		Description: description,
	}
}

func TestRunNormalizesAndStores(t *testing.T) {
	p := &fakeProvider{
		name: "feed",
		jobs: []models.Job{
			rawJob("feed", "1", "  Go   Engineer ", "We offer H1B visa sponsorship. Go and Postgres."),
		},
	}
	pipeline, store := newTestPipeline(t, p)

	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Fetched != 1 || report.Inserted != 1 || report.Updated != 0 {
		t.Errorf("unexpected report: %+v", report)
	}

	job, err := store.GetByID(context.Background(), "feed_1")
	if err != nil {
		t.Fatalf("job not stored: %v", err)
	}
	if job.Title != "Go Engineer" {
		t.Errorf("whitespace not normalized, got %q", job.Title)
	}
	if !job.VisaSponsorship {
		t.Error("visa detection did not run")
	}
	if len(job.Keywords) == 0 {
		t.Error("keyword extraction did not run")
	}
	if !job.IsActive {
		t.Error("fresh posting should be active")
	}
	if job.FirstSeenAt.IsZero() || job.LastSeenAt.IsZero() {
		t.Error("sighting timestamps not set")
	}
}

func TestRunDedupesWithinBatch(t *testing.T) {
	p := &fakeProvider{
		name: "feed",
		jobs: []models.Job{
			rawJob("feed", "1", "Go Engineer", "first sighting"),
			rawJob("feed", "1", "Go Engineer (updated)", "second sighting"),
		},
	}
	pipeline, store := newTestPipeline(t, p)

	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Inserted != 1 {
		t.Errorf("duplicate batch entries should collapse to one insert, got %d", report.Inserted)
	}

	job, err := store.GetByID(context.Background(), "feed_1")
	if err != nil {
		t.Fatal(err)
	}
	if job.Title != "Go Engineer (updated)" {
		t.Errorf("newest sighting should win, got %q", job.Title)
	}
}

func TestRunSecondRunUpdates(t *testing.T) {
	p := &fakeProvider{
		name: "feed",
		jobs: []models.Job{rawJob("feed", "1", "Go Engineer", "desc")},
	}
	pipeline, _ := newTestPipeline(t, p)

	if _, err := pipeline.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if report.Inserted != 0 || report.Updated != 1 {
		t.Errorf("second sighting should update, got inserted=%d updated=%d", report.Inserted, report.Updated)
	}
}

func TestRunDropsInvalidPostings(t *testing.T) {
	p := &fakeProvider{
		name: "feed",
		jobs: []models.Job{
			rawJob("feed", "1", "", "no title"),
			rawJob("feed", "2", "Valid Role", "fine"),
		},
	}
	pipeline, _ := newTestPipeline(t, p)

	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Inserted != 1 {
		t.Errorf("expected 1 insert, got %d", report.Inserted)
	}
	if report.Sources["feed"].Dropped != 1 {
		t.Errorf("expected 1 dropped posting, got %d", report.Sources["feed"].Dropped)
	}
}

func TestRunPartialSourceFailure(t *testing.T) {
	healthy := &fakeProvider{name: "good", jobs: []models.Job{rawJob("good", "1", "Role", "desc")}}
	broken := &fakeProvider{name: "bad", err: errors.New("boom")}
	pipeline, _ := newTestPipeline(t, healthy, broken)

	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("one healthy source should carry the run: %v", err)
	}
	if report.Inserted != 1 {
		t.Errorf("expected 1 insert from the healthy source, got %d", report.Inserted)
	}
	if len(report.Errors) != 1 {
		t.Errorf("expected the broken source's error in the report, got %v", report.Errors)
	}
}

func TestRunAllSourcesFailing(t *testing.T) {
	broken := &fakeProvider{name: "bad", err: errors.New("boom")}
	pipeline, _ := newTestPipeline(t, broken)

	if _, err := pipeline.Run(context.Background()); err == nil {
		t.Fatal("expected error when every source fails")
	}
}

func TestExpireStale(t *testing.T) {
	p := &fakeProvider{name: "feed"}
	pipeline, store := newTestPipeline(t, p)

	old := rawJob("feed", "old", "Forgotten Role", "desc")
	old.ID = old.DedupeKey()
	old.FirstSeenAt = time.Now().UTC().Add(-30 * 24 * time.Hour)
	old.LastSeenAt = time.Now().UTC().Add(-30 * 24 * time.Hour)
	old.IsActive = true
	if _, _, err := store.UpsertJobs(context.Background(), []models.Job{old}); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	expired, err := pipeline.ExpireStale(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expired != 1 {
		t.Errorf("expected 1 expired posting, got %d", expired)
	}
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	pipeline, _ := newTestPipeline(t, &fakeProvider{name: "feed"})

	pipeline.mu.Lock()
	pipeline.running = true
	pipeline.mu.Unlock()

	if _, err := pipeline.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}
}

func TestLastReport(t *testing.T) {
	pipeline, _ := newTestPipeline(t, &fakeProvider{name: "feed", jobs: []models.Job{rawJob("feed", "1", "Role", "d")}})

	if pipeline.LastReport() != nil {
		t.Fatal("expected no report before any run")
	}

	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := pipeline.LastReport()
	if last == nil || last.ID != report.ID {
		t.Error("last report should reflect the finished run")
	}
}
