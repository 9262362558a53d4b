package discover

import (
	"testing"

	"github.com/cha7ura/newsagg/internal/sourceconfig"
)

func TestPlanNIDSweepsAppliesDefaultMaxConsecutive404(t *testing.T) {
	profile := sourceconfig.Profile{
		NIDSweeps: []sourceconfig.NIDSweep{
			{URLPattern: "https://example.com/news.php?nid=%d", Start: 100, End: 105},
			{URLPattern: "https://example.com/old.php?nid=%d", Start: 1, End: 5, MaxConsecutive404: 10},
		},
	}

	plans := PlanNIDSweeps(profile)
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	if plans[0].MaxConsecutive404 != 50 {
		t.Fatalf("expected default MaxConsecutive404 of 50, got %d", plans[0].MaxConsecutive404)
	}
	if plans[1].MaxConsecutive404 != 10 {
		t.Fatalf("expected configured MaxConsecutive404 of 10 to survive, got %d", plans[1].MaxConsecutive404)
	}
}

func TestURLForNID(t *testing.T) {
	p := NIDSweepPlan{URLPattern: "https://example.com/news.php?nid=%d"}
	got := p.URLForNID(42)
	want := "https://example.com/news.php?nid=42"
	if got != want {
		t.Fatalf("URLForNID(42) = %q, want %q", got, want)
	}
}

func TestBatchesCoversFullRangeWithoutOverlap(t *testing.T) {
	p := NIDSweepPlan{Start: 1, End: 10}
	batches := p.Batches(3)

	var all []int
	for _, b := range batches {
		all = append(all, b...)
	}
	if len(all) != 10 {
		t.Fatalf("expected 10 total nids across batches, got %d", len(all))
	}
	for i, nid := range all {
		if nid != i+1 {
			t.Fatalf("expected nids to run 1..10 in order with no gaps or overlap, got %v", all)
		}
	}

	if len(batches[0]) != 3 || len(batches[len(batches)-1]) != 1 {
		t.Fatalf("expected batches of size 3 with a trailing partial batch, got sizes %v", batchSizes(batches))
	}
}

func TestBatchesDefaultsZeroBatchSize(t *testing.T) {
	p := NIDSweepPlan{Start: 1, End: 60}
	batches := p.Batches(0)
	if len(batches[0]) != 50 {
		t.Fatalf("expected a zero batchSize to default to 50, got first batch size %d", len(batches[0]))
	}
}

func TestBatchesSingleID(t *testing.T) {
	p := NIDSweepPlan{Start: 7, End: 7}
	batches := p.Batches(50)
	if len(batches) != 1 || len(batches[0]) != 1 || batches[0][0] != 7 {
		t.Fatalf("expected a single batch containing just [7], got %v", batches)
	}
}

func batchSizes(batches [][]int) []int {
	sizes := make([]int, len(batches))
	for i, b := range batches {
		sizes[i] = len(b)
	}
	return sizes
}
