// Package robots checks robots.txt permission before a feed is fetched; the
// feed discoverer is its only caller (listing, archive and date-sweep
// crawls do not consult it). Grounded on the teacher's
// pkg/utils/robots.go (cache-by-host, fail-open-on-fetch-error policy),
// with one host-scoped cache shared by the process.
package robots

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

type cacheEntry struct {
	data      *robotstxt.RobotsData
	expiresAt time.Time
}

// Checker caches robots.txt per host for 24h and fails open (permits the
// fetch) if robots.txt cannot be retrieved or parsed.
type Checker struct {
	mu        sync.RWMutex
	cache     map[string]*cacheEntry
	userAgent string
	client    *http.Client
}

func NewChecker(userAgent string) *Checker {
	return &Checker{
		cache:     make(map[string]*cacheEntry),
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Allowed reports whether targetURL may be fetched under the host's
// robots.txt. Returns true (permit) when robots.txt is absent or fails to
// fetch — most of the sources in scope don't publish one.
func (c *Checker) Allowed(targetURL string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return true
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)

	c.mu.RLock()
	cached, ok := c.cache[robotsURL]
	c.mu.RUnlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.data.TestAgent(parsed.Path, c.userAgent)
	}

	data, err := c.fetch(robotsURL)
	if err != nil {
		return true
	}

	c.mu.Lock()
	c.cache[robotsURL] = &cacheEntry{data: data, expiresAt: time.Now().Add(24 * time.Hour)}
	c.mu.Unlock()

	return data.TestAgent(parsed.Path, c.userAgent)
}

func (c *Checker) fetch(robotsURL string) (*robotstxt.RobotsData, error) {
	resp, err := c.client.Get(robotsURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("robots.txt status %d", resp.StatusCode)
	}
	return robotstxt.FromResponse(resp)
}

// NormalizeURL lowercases the scheme/host, strips a trailing path slash,
// and defaults to https when no scheme is given, so that URLs reached via
// different routes (feed vs listing page) compare equal. It has no callers
// in this module.
func NormalizeURL(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	path := parsed.Path
	if strings.HasSuffix(path, "/") && len(path) > 1 {
		path = path[:len(path)-1]
	}
	out := fmt.Sprintf("%s://%s%s", parsed.Scheme, strings.ToLower(parsed.Host), path)
	if parsed.RawQuery != "" {
		out += "?" + parsed.RawQuery
	}
	return out, nil
}
