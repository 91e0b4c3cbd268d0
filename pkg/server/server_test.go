package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jobradar/pkg/aggregate"
	"jobradar/pkg/export"
	"jobradar/pkg/models"
	"jobradar/pkg/providers"
	"jobradar/pkg/registry"
	"jobradar/pkg/storage"
)

type stubProvider struct {
	name string
	jobs []models.Job
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(ctx context.Context, query providers.SearchQuery) (*providers.SearchResult, error) {
	return &providers.SearchResult{Jobs: s.jobs, Total: len(s.jobs)}, nil
}

func (s *stubProvider) IsConfigured() bool { return true }

func (s *stubProvider) RateLimit() providers.RateLimit { return providers.RateLimit{} }

func (s *stubProvider) ValidateCredentials(ctx context.Context) error { return nil }

func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	store, err := storage.NewWithDB(db, logger)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	reg := registry.New(logger)
	if err := reg.Register(&stubProvider{name: "stub"}); err != nil {
		t.Fatal(err)
	}

	pipeline := aggregate.New(reg, store, []aggregate.Query{{Keywords: "golang"}}, 7*24*time.Hour, logger)
	exporter := export.New(t.TempDir())

	srv := New(":0", []string{"http://localhost:3000"}, store, reg, pipeline, exporter, logger)
	return srv, store
}

func seedJobs(t *testing.T, store *storage.Store, jobs ...models.Job) {
	t.Helper()
	now := time.Now().UTC()
	for i := range jobs {
		if jobs[i].ID == "" {
			jobs[i].ID = jobs[i].DedupeKey()
		}
		if jobs[i].FirstSeenAt.IsZero() {
			jobs[i].FirstSeenAt = now
		}
		if jobs[i].LastSeenAt.IsZero() {
			jobs[i].LastSeenAt = now
		}
	}
	if _, _, err := store.UpsertJobs(context.Background(), jobs); err != nil {
		t.Fatalf("seeding jobs: %v", err)
	}
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSearchJobsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	seedJobs(t, store,
		models.Job{Source: "stub", ExternalID: "1", Title: "Go Engineer", Description: "golang services", IsActive: true},
		models.Job{Source: "stub", ExternalID: "2", Title: "Designer", Description: "figma", IsActive: true},
		models.Job{Source: "stub", ExternalID: "3", Title: "Old Go Role", Description: "golang", IsActive: false},
	)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/jobs?q=golang", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result models.JobSearchResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	// Inactive postings stay hidden by default.
	if result.Total != 1 {
		t.Errorf("expected 1 result, got %d", result.Total)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/jobs?q=golang&include_inactive=true", "")
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("expected 2 results with inactive included, got %d", result.Total)
	}
}

func TestSearchJobsBadParams(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/jobs?remote=banana", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on bad remote value, got %d", w.Code)
	}
}

func TestSearchJobsSalaryWindow(t *testing.T) {
	srv, store := newTestServer(t)
	seedJobs(t, store,
		models.Job{Source: "stub", ExternalID: "1", Title: "Junior Go Engineer", SalaryMin: 60000, SalaryMax: 80000, IsActive: true},
		models.Job{Source: "stub", ExternalID: "2", Title: "Staff Go Engineer", SalaryMin: 180000, SalaryMax: 220000, IsActive: true},
	)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/jobs?max_salary=100000", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result models.JobSearchResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if result.Total != 1 || result.Jobs[0].ExternalID != "1" {
		t.Errorf("expected only the junior role under the ceiling, got %+v", result.Jobs)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/jobs?min_salary=150000", "")
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if result.Total != 1 || result.Jobs[0].ExternalID != "2" {
		t.Errorf("expected only the staff role above the floor, got %+v", result.Jobs)
	}
}

func TestSearchJobsDateTo(t *testing.T) {
	srv, store := newTestServer(t)
	now := time.Now().UTC()
	old := models.Job{Source: "stub", ExternalID: "1", Title: "Archived Go Role", IsActive: true}
	old.FirstSeenAt = now.AddDate(0, 0, -30)
	old.LastSeenAt = now.AddDate(0, 0, -30)
	fresh := models.Job{Source: "stub", ExternalID: "2", Title: "Fresh Go Role", IsActive: true}
	seedJobs(t, store, old, fresh)

	cutoff := now.AddDate(0, 0, -7).Format("2006-01-02")
	w := doRequest(t, srv, http.MethodGet, "/api/v1/jobs?date_to="+cutoff, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result models.JobSearchResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if result.Total != 1 || result.Jobs[0].ExternalID != "1" {
		t.Errorf("expected only the old posting before the cutoff, got %+v", result.Jobs)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/jobs?date_to=yesterday", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on bad date_to value, got %d", w.Code)
	}
}

func TestJobStatsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	// A fresh database must still produce stats.
	w := doRequest(t, srv, http.MethodGet, "/api/v1/jobs/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on empty store, got %d: %s", w.Code, w.Body.String())
	}

	sponsored := models.Job{Source: "stub", ExternalID: "1", Title: "Go Engineer", VisaSponsorship: true, IsActive: true}
	plain := models.Job{Source: "stub", ExternalID: "2", Title: "Analyst", IsActive: true}
	seedJobs(t, store, sponsored, plain)

	w = doRequest(t, srv, http.MethodGet, "/api/v1/jobs/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var stats models.JobStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if stats.TotalJobs != 2 || stats.ActiveJobs != 2 || stats.SponsoredJobs != 1 {
		t.Errorf("unexpected totals: %+v", stats)
	}
	if stats.LastAggregated.IsZero() {
		t.Error("expected last aggregated timestamp")
	}
}

func TestGetJobEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	seedJobs(t, store, models.Job{Source: "stub", ExternalID: "1", Title: "Go Engineer", IsActive: true})

	w := doRequest(t, srv, http.MethodGet, "/api/v1/jobs/stub_1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/jobs/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", w.Code)
	}
}

func TestBookmarkEndpoints(t *testing.T) {
	srv, store := newTestServer(t)
	seedJobs(t, store, models.Job{Source: "stub", ExternalID: "1", Title: "Go Engineer", IsActive: true})

	w := doRequest(t, srv, http.MethodPost, "/api/v1/users/alice/bookmarks/stub_1", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, srv, http.MethodPost, "/api/v1/users/alice/bookmarks/ghost", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 bookmarking unknown job, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/users/alice/bookmarks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var listResp struct {
		Bookmarks []models.Job `json:"bookmarks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(listResp.Bookmarks) != 1 || listResp.Bookmarks[0].ID != "stub_1" {
		t.Errorf("unexpected bookmarks: %+v", listResp.Bookmarks)
	}

	w = doRequest(t, srv, http.MethodDelete, "/api/v1/users/alice/bookmarks/stub_1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSavedSearchEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"name": "remote go", "filter": {"keywords": ["golang"], "visa_only": true}}`
	w := doRequest(t, srv, http.MethodPost, "/api/v1/users/alice/searches", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created models.SavedSearch
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid response: %v", err)
	}

	// Name is required.
	w = doRequest(t, srv, http.MethodPost, "/api/v1/users/alice/searches", `{"filter": {}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a name, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/users/alice/searches", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodDelete, "/api/v1/users/alice/searches/"+created.ID, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodDelete, "/api/v1/users/alice/searches/"+created.ID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	now := time.Now().UTC()
	seedJobs(t, store,
		models.Job{Source: "stub", ExternalID: "1", Title: "Go Engineer", Description: "golang postgres", IsActive: true, PostedAt: &now},
		models.Job{Source: "stub", ExternalID: "2", Title: "Designer", Description: "figma", IsActive: true, PostedAt: &now},
	)

	body := `{"profile": {"skills": ["golang"], "title_keywords": ["engineer"]}, "limit": 5}`
	w := doRequest(t, srv, http.MethodPost, "/api/v1/recommendations", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Recommendations []struct {
			Job   models.Job `json:"job"`
			Score float64    `json:"score"`
		} `json:"recommendations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Recommendations) == 0 {
		t.Fatal("expected recommendations")
	}
	if resp.Recommendations[0].Job.ID != "stub_1" {
		t.Errorf("expected the matching job first, got %s", resp.Recommendations[0].Job.ID)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	seedJobs(t, store, models.Job{Source: "stub", ExternalID: "1", Title: "Go Engineer", IsActive: true})

	w := doRequest(t, srv, http.MethodGet, "/api/v1/export?format=csv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(w.Body.String(), "Go Engineer") {
		t.Error("export missing seeded posting")
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/export?format=xml", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported format, got %d", w.Code)
	}
}

func TestAggregateEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/aggregate/last", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any run, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodPost, "/api/v1/aggregate", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
}

func TestSourcesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/sources", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "stub") {
		t.Error("expected the registered source in the listing")
	}
}
