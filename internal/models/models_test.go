package models

import (
	"testing"
	"time"
)

func TestDeadLinkSuppressedWithinBackoffWindow(t *testing.T) {
	now := time.Now()
	d := DeadLink{FirstFailedAt: now.Add(-24 * time.Hour), RetryCount: 0}
	if !d.Suppressed(now) {
		t.Fatal("expected a dead link one day into a 7-day backoff to still be suppressed")
	}
}

func TestDeadLinkNotSuppressedAfterBackoffWindow(t *testing.T) {
	now := time.Now()
	d := DeadLink{FirstFailedAt: now.Add(-8 * 24 * time.Hour), RetryCount: 0}
	if d.Suppressed(now) {
		t.Fatal("expected a dead link past its 7-day backoff to no longer be suppressed")
	}
}

func TestDeadLinkPermanentlySuppressedPastBackoffSchedule(t *testing.T) {
	now := time.Now()
	d := DeadLink{FirstFailedAt: now.Add(-100 * 24 * time.Hour), RetryCount: len(Backoff)}
	if !d.Suppressed(now) {
		t.Fatal("expected retry_count >= len(Backoff) to be permanently suppressed regardless of age")
	}
}

func TestDeadLinkEscalatingBackoffByRetryCount(t *testing.T) {
	now := time.Now()

	d := DeadLink{FirstFailedAt: now.Add(-10 * 24 * time.Hour), RetryCount: 1}
	if !d.Suppressed(now) {
		t.Fatal("expected retry_count 1 (14-day backoff) to still suppress at 10 days")
	}

	d2 := DeadLink{FirstFailedAt: now.Add(-20 * 24 * time.Hour), RetryCount: 1}
	if d2.Suppressed(now) {
		t.Fatal("expected retry_count 1 (14-day backoff) to have expired by 20 days")
	}
}

func TestRunCountsAddSumsFieldsAndMergesErrorKinds(t *testing.T) {
	a := NewRunCounts()
	a.Inserted = 3
	a.SkippedNoDate = 1
	a.ScrapeErrorsByKind[ErrorKindNotFound] = 2

	b := NewRunCounts()
	b.Inserted = 5
	b.SkippedDuplicate = 4
	b.ScrapeErrorsByKind[ErrorKindNotFound] = 1
	b.ScrapeErrorsByKind[ErrorKindTimeout] = 7

	a.Add(b)

	if a.Inserted != 8 {
		t.Fatalf("expected Inserted 8, got %d", a.Inserted)
	}
	if a.SkippedNoDate != 1 || a.SkippedDuplicate != 4 {
		t.Fatalf("expected SkippedNoDate=1 SkippedDuplicate=4, got %+v", a)
	}
	if a.ScrapeErrorsByKind[ErrorKindNotFound] != 3 {
		t.Fatalf("expected ErrorKindNotFound to sum to 3, got %d", a.ScrapeErrorsByKind[ErrorKindNotFound])
	}
	if a.ScrapeErrorsByKind[ErrorKindTimeout] != 7 {
		t.Fatalf("expected ErrorKindTimeout to carry over as 7, got %d", a.ScrapeErrorsByKind[ErrorKindTimeout])
	}
}

func TestScrapeErrorError(t *testing.T) {
	se := &ScrapeError{Kind: ErrorKindNotFound, URL: "https://example.com/x"}
	if se.Error() == "" {
		t.Fatal("expected ScrapeError.Error() to return a non-empty message")
	}
}
