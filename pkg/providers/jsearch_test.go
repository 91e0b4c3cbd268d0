package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSearchSearch(t *testing.T) {
	payload := `{
		"status": "OK",
		"request_id": "req-1",
		"data": [
			{
				"job_id": "js-abc",
				"employer_name": "Fabrikam",
				"job_employment_type": "FULLTIME",
				"job_title": "Backend Engineer",
				"job_apply_link": "https://example.com/apply/js-abc",
				"job_description": "Go, Postgres and Kafka. H1B visa sponsorship available.",
				"job_is_remote": true,
				"job_posted_at_datetime_utc": "2026-08-19T00:00:00.000Z",
				"job_city": "Austin",
				"job_state": "TX",
				"job_country": "US",
				"job_required_skills": ["go", "postgresql"],
				"job_min_salary": 110000,
				"job_max_salary": 160000
			}
		]
	}`

	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-RapidAPI-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	p := NewJSearchProvider(SourceConfig{
		Name:     "jsearch",
		Enabled:  true,
		Provider: "jsearch",
		BaseURL:  srv.URL,
		APIKey:   "rapid-key",
	})

	result, err := p.Search(context.Background(), SearchQuery{
		Keywords: []string{"backend"},
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "rapid-key" {
		t.Errorf("expected X-RapidAPI-Key rapid-key, got %q", gotKey)
	}
	if len(result.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(result.Jobs))
	}

	job := result.Jobs[0]
	if job.ExternalID != "js-abc" {
		t.Errorf("unexpected external id %s", job.ExternalID)
	}
	if !job.Remote {
		t.Error("expected remote flag from job_is_remote")
	}
	if job.JobType != "full-time" {
		t.Errorf("expected full-time, got %s", job.JobType)
	}
	if len(job.Keywords) != 2 {
		t.Errorf("expected required skills as keywords, got %v", job.Keywords)
	}
}

func TestJSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ERROR", "data": []}`))
	}))
	defer srv.Close()

	p := NewJSearchProvider(SourceConfig{Name: "jsearch", Enabled: true, BaseURL: srv.URL, APIKey: "k"})

	_, err := p.Search(context.Background(), SearchQuery{Limit: 1})
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if _, ok := err.(*SourceError); !ok {
		t.Fatalf("expected SourceError, got %T", err)
	}
}
