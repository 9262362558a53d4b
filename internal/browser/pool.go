// Package browser manages rod connections to a remote Chrome DevTools
// endpoint and the per-source browser contexts (pages) used to fetch
// article and listing pages. Grounded on the teacher's
// internal/scraper/browser/pool.go (pool lifecycle, stealth launch flags)
// and original_source's scraper/browser.py (connect-to-remote-websocket
// instead of launching locally, fixed UA/viewport/locale/timezone per
// context, optional SOCKS5 proxy).
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/cha7ura/newsagg/internal/logging"
)

// Config controls how the pool connects and how contexts are fingerprinted.
type Config struct {
	ControlURL string // ws:// endpoint of a running Chrome/rod server
	ProxyURL   string // optional SOCKS5/HTTP proxy; stored only, not applied to the connection or to any context
	UserAgent  string
	PoolSize   int
}

// Pool holds PoolSize independent rod.Browser connections to the same
// remote endpoint, each usable as its own incognito-like root for
// per-source pages. A Pool does not own a local Chrome process; it
// connects to one already running (ControlURL), matching how the
// original system talks to a shared browser service rather than
// spawning Chrome per worker.
type Pool struct {
	mu        sync.Mutex
	browsers  []*rod.Browser
	size      int
	cfg       Config
	logger    *logging.Logger
	closed    bool
}

// New connects PoolSize browsers to cfg.ControlURL and returns a ready Pool.
func New(cfg Config, log *logging.Logger) (*Pool, error) {
	l := log.WithComponent("browser-pool")
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}

	l.Infof("connecting %d browser instances to %s", cfg.PoolSize, cfg.ControlURL)

	p := &Pool{
		browsers: make([]*rod.Browser, 0, cfg.PoolSize),
		size:     cfg.PoolSize,
		cfg:      cfg,
		logger:   l,
	}

	for i := 0; i < cfg.PoolSize; i++ {
		b := rod.New().ControlURL(cfg.ControlURL)
		if err := b.Connect(); err != nil {
			p.Close()
			return nil, fmt.Errorf("connect browser %d/%d: %w", i+1, cfg.PoolSize, err)
		}
		p.browsers = append(p.browsers, b)
	}

	l.Infof("browser pool ready: %d instances", cfg.PoolSize)
	return p, nil
}

// Acquire blocks until a browser connection is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*rod.Browser, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			p.mu.Lock()
			if p.closed {
				p.mu.Unlock()
				return nil, fmt.Errorf("browser pool closed")
			}
			if len(p.browsers) > 0 {
				b := p.browsers[0]
				p.browsers = p.browsers[1:]
				p.mu.Unlock()
				return b, nil
			}
			p.mu.Unlock()
		}
	}
}

// Release returns a browser connection to the pool.
func (p *Pool) Release(b *rod.Browser) {
	if b == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.browsers = append(p.browsers, b)
}

// Close disconnects every browser connection. Does not stop the remote
// Chrome process, since the pool never started it.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, b := range p.browsers {
		_ = b.Close()
	}
	p.logger.Info("browser pool closed")
}

// NewPage opens a fresh page on b with the pool's fingerprint applied: the
// configured user agent, a 1920x1080 viewport, en-US locale, and the
// Asia/Colombo timezone, which the Cloudflare-protected sources in the
// source list expect from a genuine browser in that region.
// ownContext indicates the caller wants an isolated incognito page
// (Cloudflare-protected sources get a fresh context per navigation rather
// than reusing one across an entire source's articles).
func (p *Pool) NewPage(b *rod.Browser, ownContext bool) (*rod.Page, error) {
	var page *rod.Page
	var err error
	if ownContext {
		incognito, ierr := b.Incognito()
		if ierr != nil {
			return nil, fmt.Errorf("incognito context: %w", ierr)
		}
		page, err = incognito.Page(proto.TargetCreateTarget{})
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  1920,
		Height: 1080,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      p.cfg.UserAgent,
		AcceptLanguage: "en-US",
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set user agent: %w", err)
	}

	if err := page.SetExtraHeaders([]string{"Accept-Language", "en-US,en;q=0.9"}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set headers: %w", err)
	}

	if _, err := page.Timezone("Asia/Colombo"); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set timezone: %w", err)
	}

	return page, nil
}
