package scheduler

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestState(concurrencyCap, priority int) *SourceState {
	return NewSourceState(uuid.New(), "test-source", "en", time.Millisecond, concurrencyCap, priority, false, 5, time.Minute)
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	s := newTestState(2, 5)
	s.Enqueue(Item{URL: "a"}, Item{URL: "b"}, Item{URL: "c"})

	if depth := s.queueDepth(); depth != 3 {
		t.Fatalf("expected queue depth 3, got %d", depth)
	}

	first, ok := s.dequeue()
	if !ok || first.URL != "a" {
		t.Fatalf("expected first dequeue to return %q, got %+v (ok=%v)", "a", first, ok)
	}
	second, ok := s.dequeue()
	if !ok || second.URL != "b" {
		t.Fatalf("expected second dequeue to return %q, got %+v (ok=%v)", "b", second, ok)
	}

	if depth := s.queueDepth(); depth != 1 {
		t.Fatalf("expected queue depth 1 after two dequeues, got %d", depth)
	}
}

func TestDequeueEmptyQueue(t *testing.T) {
	s := newTestState(2, 5)
	if _, ok := s.dequeue(); ok {
		t.Fatal("expected dequeue on an empty queue to report ok=false")
	}
}

func TestIsCandidateRespectsConcurrencyCap(t *testing.T) {
	s := newTestState(1, 5)
	s.Enqueue(Item{URL: "a"}, Item{URL: "b"})

	if !s.isCandidate() {
		t.Fatal("expected a non-empty queue under the concurrency cap to be a candidate")
	}

	if _, ok := s.dequeue(); !ok {
		t.Fatal("dequeue should have succeeded")
	}

	if s.isCandidate() {
		t.Fatal("expected the source to stop being a candidate once active_count reaches its concurrency cap")
	}
}

func TestIsCandidateFalseWhenQueueEmpty(t *testing.T) {
	s := newTestState(5, 5)
	if s.isCandidate() {
		t.Fatal("expected an empty queue to never be a candidate")
	}
}

func TestRecordSuccessAndErrorUpdateCounters(t *testing.T) {
	s := newTestState(5, 5)
	s.Enqueue(Item{URL: "a"}, Item{URL: "b"})

	if _, ok := s.dequeue(); !ok {
		t.Fatal("dequeue 1 failed")
	}
	s.recordSuccess()

	if _, ok := s.dequeue(); !ok {
		t.Fatal("dequeue 2 failed")
	}
	s.recordError()

	errs, scraped := s.errorWindow()
	if errs != 1 || scraped != 2 {
		t.Fatalf("expected 1 error out of 2 scraped, got errs=%d scraped=%d", errs, scraped)
	}

	_, active, itemsScraped, _, _ := s.snapshot()
	if active != 0 {
		t.Fatalf("expected active_count to return to 0 after both completions, got %d", active)
	}
	if itemsScraped != 1 {
		t.Fatalf("expected itemsScraped to count only the success, got %d", itemsScraped)
	}
}

func TestErrorWindowResetsAfterRead(t *testing.T) {
	s := newTestState(5, 5)
	s.Enqueue(Item{URL: "a"})
	if _, ok := s.dequeue(); !ok {
		t.Fatal("dequeue failed")
	}
	s.recordError()

	errs, scraped := s.errorWindow()
	if errs != 1 || scraped != 1 {
		t.Fatalf("expected the first read to report the recorded error, got errs=%d scraped=%d", errs, scraped)
	}

	errs, scraped = s.errorWindow()
	if errs != 0 || scraped != 0 {
		t.Fatalf("expected errorWindow to reset its counters after being read, got errs=%d scraped=%d", errs, scraped)
	}
}

func TestMarkDiscoveryDone(t *testing.T) {
	s := newTestState(5, 5)
	_, _, _, _, done := s.snapshot()
	if done {
		t.Fatal("expected discoveryDone to start false")
	}

	s.MarkDiscoveryDone()

	_, _, _, _, done = s.snapshot()
	if !done {
		t.Fatal("expected discoveryDone to be true after MarkDiscoveryDone")
	}
}
