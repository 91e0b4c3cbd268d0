package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/gocolly/colly/v2"

	"jobradar/pkg/models"
	"jobradar/pkg/proxy"
)

// Selectors maps a career board's HTML structure onto posting fields.
type Selectors struct {
	JobContainer string `json:"job_container"`
	Title        string `json:"title"`
	Company      string `json:"company"`
	Location     string `json:"location"`
	Salary       string `json:"salary"`
	Description  string `json:"description"`
	Link         string `json:"link"`
}

// CampusProvider scrapes university career boards that publish postings as
// HTML only. Static pages go through colly; boards that render client-side
// are fetched with chromedp when RenderJS is set.
type CampusProvider struct {
	config  SourceConfig
	proxies *proxy.Manager
}

// NewCampusProvider creates a new campus board scraper.
func NewCampusProvider(config SourceConfig, proxies *proxy.Manager) *CampusProvider {
	return &CampusProvider{
		config:  config,
		proxies: proxies,
	}
}

// Name returns the provider name.
func (p *CampusProvider) Name() string {
	return "campus"
}

// Search scrapes the configured board for postings matching the query.
func (p *CampusProvider) Search(ctx context.Context, query SearchQuery) (*SearchResult, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("campus provider not configured")
	}

	searchURL, err := p.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("failed to build search URL: %w", err)
	}

	var jobs []models.Job
	if p.config.RenderJS {
		jobs, err = p.scrapeWithChromedp(ctx, searchURL)
	} else {
		jobs, err = p.scrapeWithColly(searchURL)
	}
	if err != nil {
		return nil, err
	}

	filtered := jobs[:0]
	for i := range jobs {
		job := jobs[i]
		job.ExtractKeywords()
		if matchesKeywords(&job, query.Keywords) {
			filtered = append(filtered, job)
		}
	}

	limit := query.Limit
	if limit <= 0 {
		limit = p.config.MaxResults
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return &SearchResult{
		Jobs:      filtered,
		Total:     len(filtered),
		HasMore:   false,
		Provider:  p.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// IsConfigured checks a board URL and selectors are present.
func (p *CampusProvider) IsConfigured() bool {
	return p.config.Enabled && p.config.BaseURL != "" &&
		p.config.Selectors != nil && p.config.Selectors.JobContainer != ""
}

// RateLimit returns the request budget.
func (p *CampusProvider) RateLimit() RateLimit {
	return p.config.RateLimit
}

// ValidateCredentials confirms the board is reachable and yields at least
// a parseable page.
func (p *CampusProvider) ValidateCredentials(ctx context.Context) error {
	_, err := p.Search(ctx, SearchQuery{Limit: 1})
	return err
}

func (p *CampusProvider) buildSearchURL(query SearchQuery) (string, error) {
	u, err := url.Parse(p.config.BaseURL)
	if err != nil {
		return "", err
	}

	params := u.Query()
	if len(query.Keywords) > 0 {
		params.Set("q", strings.Join(query.Keywords, " "))
	}
	if query.Location != "" {
		params.Set("location", query.Location)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

func (p *CampusProvider) scrapeWithColly(searchURL string) ([]models.Job, error) {
	sel := p.config.Selectors

	var jobs []models.Job
	var mu sync.Mutex

	c := colly.NewCollector()

	if p.proxies != nil {
		c.UserAgent = p.proxies.RandomUserAgent()
		if proxyURL := p.proxies.CurrentProxy(); proxyURL != "direct" {
			c.SetProxy(proxyURL)
		}
	} else if ua, ok := p.config.Headers["User-Agent"]; ok {
		c.UserAgent = ua
	}

	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       500 * time.Millisecond,
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})

	c.OnHTML(sel.JobContainer, func(e *colly.HTMLElement) {
		link := e.ChildAttr(sel.Link, "href")
		if link != "" && !strings.HasPrefix(link, "http") {
			link = e.Request.AbsoluteURL(link)
		}

		job := models.NewJob(
			"campus",
			hashLink(link),
			e.ChildText(sel.Title),
			e.ChildText(sel.Company),
			e.ChildText(sel.Location),
			e.ChildText(sel.Salary),
			e.ChildText(sel.Description),
			link,
		)
		job.Remote = job.LooksRemote()

		if job.Title != "" && link != "" {
			mu.Lock()
			jobs = append(jobs, *job)
			mu.Unlock()
		}
	})

	var scrapeErr error
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = &SourceError{
			Provider:   p.Name(),
			StatusCode: r.StatusCode,
			Message:    fmt.Sprintf("campus scrape of %s failed: %v", r.Request.URL, err),
			Retryable:  r.StatusCode >= 500 || r.StatusCode == 429,
		}
	})

	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", searchURL, err)
	}
	c.Wait()

	if len(jobs) == 0 && scrapeErr != nil {
		return nil, scrapeErr
	}
	return jobs, nil
}

func (p *CampusProvider) scrapeWithChromedp(ctx context.Context, searchURL string) ([]models.Job, error) {
	sel := p.config.Selectors

	cctx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	cctx, cancel = context.WithTimeout(cctx, p.config.ParseTimeout())
	defer cancel()

	type scrapedJob struct {
		Title       string `json:"title"`
		Company     string `json:"company"`
		Location    string `json:"location"`
		Salary      string `json:"salary"`
		Description string `json:"description"`
		Link        string `json:"link"`
	}

	var scraped []scrapedJob
	err := chromedp.Run(cctx,
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible(sel.JobContainer, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`
			(() => {
				const jobs = [];
				document.querySelectorAll('`+sel.JobContainer+`').forEach(el => {
					const job = {
						title: el.querySelector('`+sel.Title+`')?.textContent?.trim() || '',
						company: el.querySelector('`+sel.Company+`')?.textContent?.trim() || '',
						location: el.querySelector('`+sel.Location+`')?.textContent?.trim() || '',
						salary: el.querySelector('`+sel.Salary+`')?.textContent?.trim() || '',
						description: el.querySelector('`+sel.Description+`')?.textContent?.trim() || '',
						link: el.querySelector('`+sel.Link+`')?.href || ''
					};
					if (job.title && job.link) {
						jobs.push(job);
					}
				});
				return jobs;
			})()
		`, &scraped),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp scrape of %s failed: %w", searchURL, err)
	}

	jobs := make([]models.Job, 0, len(scraped))
	for _, s := range scraped {
		job := models.NewJob(
			"campus",
			hashLink(s.Link),
			s.Title,
			s.Company,
			s.Location,
			s.Salary,
			s.Description,
			s.Link,
		)
		job.Remote = job.LooksRemote()
		jobs = append(jobs, *job)
	}

	return jobs, nil
}
