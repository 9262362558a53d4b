package discover

import (
	"fmt"

	"github.com/cha7ura/newsagg/internal/sourceconfig"
)

// NIDSweepPlan is a materialized candidate-URL sequence for one configured
// numeric-ID sweep range. backfill.NIDSweepRunner (not this package, and
// not the scheduler) does the actual navigation/scrape/classify work per
// URL — this just synthesizes the URL list and carries the sweep's stop
// condition.
type NIDSweepPlan struct {
	URLPattern       string
	Start, End       int
	MaxConsecutive404 int
}

// PlanNIDSweeps converts a profile's configured sweeps into plans. One
// profile can list several disjoint nid ranges (e.g. a site renumbered its
// CMS once).
func PlanNIDSweeps(profile sourceconfig.Profile) []NIDSweepPlan {
	plans := make([]NIDSweepPlan, 0, len(profile.NIDSweeps))
	for _, s := range profile.NIDSweeps {
		max404 := s.MaxConsecutive404
		if max404 == 0 {
			max404 = 50
		}
		plans = append(plans, NIDSweepPlan{
			URLPattern:        s.URLPattern,
			Start:             s.Start,
			End:               s.End,
			MaxConsecutive404: max404,
		})
	}
	return plans
}

// URLForNID formats the candidate URL for a single numeric id.
func (p NIDSweepPlan) URLForNID(nid int) string {
	return fmt.Sprintf(p.URLPattern, nid)
}

// Batches splits [Start, End] into chunks of size batchSize, the unit
// backfill.NIDSweepRunner pre-filters against existing/dead URL sets and
// fetches concurrently —
// grounded on backfill.py's run_nid_sweep batch_size=50 loop.
func (p NIDSweepPlan) Batches(batchSize int) [][]int {
	if batchSize <= 0 {
		batchSize = 50
	}
	var batches [][]int
	for start := p.Start; start <= p.End; start += batchSize {
		end := start + batchSize
		if end > p.End+1 {
			end = p.End + 1
		}
		batch := make([]int, 0, end-start)
		for nid := start; nid < end; nid++ {
			batch = append(batch, nid)
		}
		batches = append(batches, batch)
	}
	return batches
}
