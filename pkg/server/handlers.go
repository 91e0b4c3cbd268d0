package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"jobradar/pkg/aggregate"
	"jobradar/pkg/models"
	"jobradar/pkg/recommend"
	"jobradar/pkg/storage"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSearchJobs is GET /jobs. Filters come in as query parameters;
// pagination is page/per_page with per_page capped by the store.
func (s *Server) handleSearchJobs(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.store.Search(c.Request.Context(), filter)
	if err != nil {
		s.logger.Errorf("Job search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		s.logger.Errorf("Job lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleJobStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.logger.Errorf("Stats query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleListSources is GET /sources: every registered source with its
// configuration state and usage counters.
func (s *Server) handleListSources(c *gin.Context) {
	stats := s.registry.Stats()

	configured := make(map[string]bool)
	for _, p := range s.registry.Configured() {
		configured[p.Name()] = true
	}

	out := make([]gin.H, 0, len(stats))
	for name, st := range stats {
		out = append(out, gin.H{
			"name":       name,
			"configured": configured[name],
			"stats":      st,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sources": out})
}

// handleTriggerAggregation is POST /aggregate: kicks off a run in the
// background and returns 202. A second trigger while one is active gets 409.
func (s *Server) handleTriggerAggregation(c *gin.Context) {
	if s.pipeline.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": aggregate.ErrRunInProgress.Error()})
		return
	}

	// The run outlives the request, so it gets its own context.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.pipeline.Run(ctx); err != nil && !errors.Is(err, aggregate.ErrRunInProgress) {
			s.logger.Errorf("Triggered aggregation failed: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "aggregation started"})
}

func (s *Server) handleLastAggregation(c *gin.Context) {
	report := s.pipeline.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no aggregation run recorded yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleListBookmarks(c *gin.Context) {
	jobs, err := s.store.ListBookmarks(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.Errorf("Listing bookmarks failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing bookmarks failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": jobs})
}

func (s *Server) handleAddBookmark(c *gin.Context) {
	user, err := s.store.AddBookmark(c.Request.Context(), c.Param("id"), c.Param("jobId"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		s.logger.Errorf("Adding bookmark failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "adding bookmark failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bookmarks": user.Bookmarks})
}

func (s *Server) handleRemoveBookmark(c *gin.Context) {
	user, err := s.store.RemoveBookmark(c.Request.Context(), c.Param("id"), c.Param("jobId"))
	if err != nil {
		s.logger.Errorf("Removing bookmark failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "removing bookmark failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": user.Bookmarks})
}

func (s *Server) handleListSavedSearches(c *gin.Context) {
	searches, err := s.store.ListSavedSearches(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.Errorf("Listing saved searches failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing saved searches failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"searches": searches})
}

type savedSearchRequest struct {
	Name   string           `json:"name" binding:"required"`
	Filter models.JobFilter `json:"filter"`
}

func (s *Server) handleCreateSavedSearch(c *gin.Context) {
	var req savedSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	search, err := s.store.CreateSavedSearch(c.Request.Context(), c.Param("id"), req.Name, req.Filter)
	if err != nil {
		s.logger.Errorf("Creating saved search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "creating saved search failed"})
		return
	}
	c.JSON(http.StatusCreated, search)
}

func (s *Server) handleDeleteSavedSearch(c *gin.Context) {
	err := s.store.DeleteSavedSearch(c.Request.Context(), c.Param("id"), c.Param("searchId"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "saved search not found"})
		return
	}
	if err != nil {
		s.logger.Errorf("Deleting saved search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deleting saved search failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type recommendationRequest struct {
	Profile recommend.Profile `json:"profile" binding:"required"`
	Limit   int               `json:"limit"`
}

func (s *Server) handleRecommendations(c *gin.Context) {
	var req recommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	recs, err := s.recommender.Recommend(c.Request.Context(), req.Profile, req.Limit)
	if err != nil {
		s.logger.Errorf("Recommendation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recommendation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// handleExport is GET /export: streams the filtered postings as CSV or JSON.
func (s *Server) handleExport(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Exports ignore pagination and take a larger slice.
	filter.Offset = 0

	jobs, err := s.store.List(c.Request.Context(), filter, 1000)
	if err != nil {
		s.logger.Errorf("Export query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	filename := fmt.Sprintf("jobs_%s.%s", time.Now().Format("2006-01-02"), format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	switch format {
	case "csv":
		c.Header("Content-Type", "text/csv")
		err = s.exporter.WriteCSV(c.Writer, jobs)
	case "json":
		c.Header("Content-Type", "application/json")
		err = s.exporter.WriteJSON(c.Writer, jobs)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported format: " + format})
		return
	}
	if err != nil {
		s.logger.Errorf("Export write failed: %v", err)
	}
}

// filterFromQuery translates the request's query parameters into a filter.
func filterFromQuery(c *gin.Context) (models.JobFilter, error) {
	var filter models.JobFilter

	if q := c.Query("q"); q != "" {
		for _, keyword := range strings.Split(q, ",") {
			if keyword = strings.TrimSpace(keyword); keyword != "" {
				filter.Keywords = append(filter.Keywords, keyword)
			}
		}
	}
	filter.Location = c.Query("location")
	if sources := c.Query("sources"); sources != "" {
		for _, source := range strings.Split(sources, ",") {
			if source = strings.TrimSpace(source); source != "" {
				filter.Sources = append(filter.Sources, source)
			}
		}
	}
	filter.JobType = c.Query("job_type")

	if remote := c.Query("remote"); remote != "" {
		value, err := strconv.ParseBool(remote)
		if err != nil {
			return filter, fmt.Errorf("invalid remote value %q", remote)
		}
		filter.Remote = &value
	}
	if visa := c.Query("visa_only"); visa != "" {
		value, err := strconv.ParseBool(visa)
		if err != nil {
			return filter, fmt.Errorf("invalid visa_only value %q", visa)
		}
		filter.VisaOnly = value
	}

	var err error
	if filter.MinSalary, err = intQuery(c, "min_salary", 0); err != nil {
		return filter, err
	}
	if filter.MaxSalary, err = intQuery(c, "max_salary", 0); err != nil {
		return filter, err
	}
	if days, err := intQuery(c, "posted_within_days", 0); err != nil {
		return filter, err
	} else if days > 0 {
		filter.DateFrom = time.Now().UTC().AddDate(0, 0, -days)
	}
	if to := c.Query("date_to"); to != "" {
		value, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, fmt.Errorf("invalid date_to value %q, want YYYY-MM-DD", to)
		}
		// Include the whole named day.
		filter.DateTo = value.AddDate(0, 0, 1)
	}

	// Inactive postings stay hidden unless asked for.
	if include := c.Query("include_inactive"); include == "" {
		active := true
		filter.IsActive = &active
	} else if value, err := strconv.ParseBool(include); err != nil {
		return filter, fmt.Errorf("invalid include_inactive value %q", include)
	} else if !value {
		active := true
		filter.IsActive = &active
	}

	page, err := intQuery(c, "page", 1)
	if err != nil {
		return filter, err
	}
	if page < 1 {
		page = 1
	}
	perPage, err := intQuery(c, "per_page", 20)
	if err != nil {
		return filter, err
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	return filter, nil
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", name, raw)
	}
	return value, nil
}
