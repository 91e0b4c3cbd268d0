package proxy

import (
	"fmt"
	"math/rand"
	"net/url"
	"sync"
)

// Config enables outbound request rotation for HTML sources that throttle
// repeated clients.
type Config struct {
	Enabled     bool     `json:"enabled"`
	ProxyList   []string `json:"proxy_list"`
	RotateEvery int      `json:"rotate_every"` // requests before rotating
}

// Manager rotates proxies and user agents for scraping requests.
type Manager struct {
	config       Config
	proxies      []*url.URL
	currentIndex int
	requestCount int
	mu           sync.Mutex
	userAgents   []string
}

// NewManager parses and shuffles the configured proxy list.
func NewManager(config Config) (*Manager, error) {
	m := &Manager{
		config:     config,
		proxies:    make([]*url.URL, 0, len(config.ProxyList)),
		userAgents: defaultUserAgents(),
	}

	for _, proxyStr := range config.ProxyList {
		proxyURL, err := url.Parse(proxyStr)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %s: %w", proxyStr, err)
		}
		m.proxies = append(m.proxies, proxyURL)
	}

	rand.Shuffle(len(m.proxies), func(i, j int) {
		m.proxies[i], m.proxies[j] = m.proxies[j], m.proxies[i]
	})

	return m, nil
}

// CurrentProxy returns the proxy to use for the next request, or "direct"
// when rotation is disabled or no proxies are configured. Rotation advances
// every RotateEvery requests.
func (m *Manager) CurrentProxy() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.config.Enabled || len(m.proxies) == 0 {
		return "direct"
	}

	m.requestCount++
	rotateEvery := m.config.RotateEvery
	if rotateEvery <= 0 {
		rotateEvery = 10
	}
	if m.requestCount >= rotateEvery {
		m.requestCount = 0
		m.currentIndex = (m.currentIndex + 1) % len(m.proxies)
	}

	return m.proxies[m.currentIndex].String()
}

// RandomUserAgent returns a browser user agent drawn at random.
func (m *Manager) RandomUserAgent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userAgents[rand.Intn(len(m.userAgents))]
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	}
}
