package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"jobradar/pkg/providers"
)

// SourceStats tracks per-source usage over the process lifetime.
type SourceStats struct {
	Provider        string        `json:"provider"`
	TotalRequests   int           `json:"total_requests"`
	SuccessRequests int           `json:"success_requests"`
	FailedRequests  int           `json:"failed_requests"`
	TotalJobs       int           `json:"total_jobs"`
	AverageLatency  time.Duration `json:"average_latency"`
	LastUsed        time.Time     `json:"last_used"`
}

// Registry holds the configured job sources and fans searches out across
// them, enforcing each source's rate limit.
type Registry struct {
	providers map[string]providers.Provider
	limiters  map[string]*rate.Limiter
	stats     map[string]*SourceStats
	logger    *logrus.Logger
	mu        sync.RWMutex
}

// New creates an empty registry.
func New(logger *logrus.Logger) *Registry {
	return &Registry{
		providers: make(map[string]providers.Provider),
		limiters:  make(map[string]*rate.Limiter),
		stats:     make(map[string]*SourceStats),
		logger:    logger,
	}
}

// Register adds a source. Registering the same name twice is an error.
func (r *Registry) Register(p providers.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.providers[name] = p
	r.limiters[name] = newLimiter(p.RateLimit())
	r.stats[name] = &SourceStats{Provider: name}

	r.logger.Infof("Registered job source: %s", name)
	return nil
}

func newLimiter(rl providers.RateLimit) *rate.Limiter {
	if rl.RequestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := rl.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rl.RequestsPerMinute)/60.0), burst)
}

// Provider returns the named source.
func (r *Registry) Provider(name string) (providers.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return p, nil
}

// Configured returns every source that is ready to be queried.
func (r *Registry) Configured() []providers.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var configured []providers.Provider
	for _, p := range r.providers {
		if p.IsConfigured() {
			configured = append(configured, p)
		}
	}
	return configured
}

// SearchAll queries every configured source concurrently. One source failing
// never aborts the others; partial results are returned together with the
// per-source errors. An error is returned only when every source failed.
func (r *Registry) SearchAll(ctx context.Context, query providers.SearchQuery) ([]*providers.SearchResult, []error) {
	configured := r.Configured()
	if len(configured) == 0 {
		return nil, []error{fmt.Errorf("no configured job sources available")}
	}

	resultChan := make(chan *providers.SearchResult, len(configured))
	errorChan := make(chan error, len(configured))

	var wg sync.WaitGroup
	for _, p := range configured {
		wg.Add(1)
		go func(p providers.Provider) {
			defer wg.Done()

			result, err := r.search(ctx, p, query)
			if err != nil {
				r.logger.Warnf("Source %s search failed: %v", p.Name(), err)
				errorChan <- fmt.Errorf("source %s: %w", p.Name(), err)
				return
			}
			resultChan <- result
		}(p)
	}

	wg.Wait()
	close(resultChan)
	close(errorChan)

	var results []*providers.SearchResult
	for result := range resultChan {
		results = append(results, result)
	}
	var errs []error
	for err := range errorChan {
		errs = append(errs, err)
	}

	r.logger.Infof("Source fan-out completed: %d succeeded, %d failed", len(results), len(errs))
	return results, errs
}

// SearchProvider queries one source by name.
func (r *Registry) SearchProvider(ctx context.Context, name string, query providers.SearchQuery) (*providers.SearchResult, error) {
	p, err := r.Provider(name)
	if err != nil {
		return nil, err
	}
	if !p.IsConfigured() {
		return nil, fmt.Errorf("provider %s is not configured", name)
	}
	return r.search(ctx, p, query)
}

// search applies the source's rate limit, runs the query and records stats.
func (r *Registry) search(ctx context.Context, p providers.Provider, query providers.SearchQuery) (*providers.SearchResult, error) {
	r.mu.RLock()
	limiter := r.limiters[p.Name()]
	r.mu.RUnlock()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait for %s: %w", p.Name(), err)
		}
	}

	start := time.Now()
	result, err := p.Search(ctx, query)
	r.updateStats(p.Name(), err == nil, time.Since(start), result)
	if err != nil {
		return nil, err
	}

	result.Provider = p.Name()
	if result.FetchedAt.IsZero() {
		result.FetchedAt = time.Now().UTC()
	}
	return result, nil
}

func (r *Registry) updateStats(name string, success bool, duration time.Duration, result *providers.SearchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, exists := r.stats[name]
	if !exists {
		stats = &SourceStats{Provider: name}
		r.stats[name] = stats
	}

	stats.TotalRequests++
	stats.LastUsed = time.Now()

	if success {
		stats.SuccessRequests++
		if result != nil {
			stats.TotalJobs += len(result.Jobs)
		}
	} else {
		stats.FailedRequests++
	}

	// Running average over all requests so far.
	if stats.TotalRequests == 1 {
		stats.AverageLatency = duration
	} else {
		stats.AverageLatency = time.Duration(
			(int64(stats.AverageLatency)*int64(stats.TotalRequests-1) + int64(duration)) / int64(stats.TotalRequests),
		)
	}
}

// Stats returns a copy of the per-source statistics.
func (r *Registry) Stats() map[string]*SourceStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*SourceStats, len(r.stats))
	for name, stats := range r.stats {
		copied := *stats
		out[name] = &copied
	}
	return out
}

// ValidateAll checks credentials on every registered source concurrently.
func (r *Registry) ValidateAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	all := make([]providers.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		all = append(all, p)
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(all))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for _, p := range all {
		wg.Add(1)
		go func(p providers.Provider) {
			defer wg.Done()

			var err error
			if !p.IsConfigured() {
				err = fmt.Errorf("provider not configured")
			} else {
				err = p.ValidateCredentials(ctx)
			}

			resultsMu.Lock()
			results[p.Name()] = err
			resultsMu.Unlock()
		}(p)
	}

	wg.Wait()
	return results
}
