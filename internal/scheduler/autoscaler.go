package scheduler

import (
	"context"
	"time"
)

// superviseAutoscale runs every cfg.AutoscaleInterval, scaling the worker
// pool per spec §4.9: scale down on sustained error rate (never canceling
// an in-flight scrape — each surplus worker retires between items),
// scale up when queue depth outpaces active workers, hard-capped at
// cfg.MaxWorkers.
func (p *Pool) superviseAutoscale(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.AutoscaleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.autoscaleTick(ctx)
		}
	}
}

func (p *Pool) autoscaleTick(ctx context.Context) {
	p.statesMu.RLock()
	states := make([]*SourceState, 0, len(p.states))
	for _, s := range p.states {
		states = append(states, s)
	}
	p.statesMu.RUnlock()

	queueDepth := 0
	for _, s := range states {
		queueDepth += s.queueDepth()
	}

	// Each source's error-rate window is weighted by how much it actually
	// scraped this tick, then folded into one pool-wide rate.
	var totalErrors, totalScraped int
	for _, s := range states {
		errs, scraped := s.errorWindow()
		totalErrors += errs
		totalScraped += scraped
	}

	p.workerNMu.Lock()
	active := p.workerN
	p.workerNMu.Unlock()

	var recentErrorRate float64
	if totalScraped > 0 {
		recentErrorRate = float64(totalErrors) / float64(totalScraped)
	}

	switch {
	case recentErrorRate >= p.cfg.ErrorRateScaleDown && active > 1:
		target := active / 2
		if target < 1 {
			target = 1
		}
		p.scaleDownTo(target)
		p.logger.Warnf("scaling down: error rate %.0f%% over %d attempts, %d -> %d workers", recentErrorRate*100, totalScraped, active, target)

	case queueDepth > p.cfg.QueueDepthScaleUpMultiple*active && active < p.cfg.MaxWorkers:
		toAdd := p.cfg.MaxWorkers - active
		if toAdd > 2 {
			toAdd = 2
		}
		for i := 0; i < toAdd; i++ {
			p.spawnWorker(ctx)
		}
		p.logger.Infof("scaling up: queue depth %d > 2x active (%d), +%d workers", queueDepth, active, toAdd)

	default:
		// no change
	}
}

// scaleDownTo signals (active - target) workers to exit after their
// current item by pushing that many tokens onto the shared scaleDownCh
// (tokens that do not fit its buffer are dropped); a worker takes one
// token between items and exits. The global p.stop is not used because it
// would halt the whole pool.
func (p *Pool) scaleDownTo(target int) {
	p.workerNMu.Lock()
	toRemove := p.workerN - target
	p.workerNMu.Unlock()
	if toRemove <= 0 {
		return
	}
	for i := 0; i < toRemove; i++ {
		select {
		case p.scaleDownCh <- struct{}{}:
		default:
		}
	}
}
