package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cha7ura/newsagg/internal/models"
)

// DeadLinkRepository persists and queries the dead_links table. Implements
// internal/deadlink.Store.
type DeadLinkRepository struct {
	db *pgxpool.Pool
}

func NewDeadLinkRepository(db *pgxpool.Pool) *DeadLinkRepository {
	return &DeadLinkRepository{db: db}
}

// suppressedWhere is the retry-schedule predicate from spec.md §4.2:
// permanent at retry_count >= 3, else within backoff[retry_count] of
// first_failed_at.
const suppressedWhere = `(
	retry_count >= 3
	OR (retry_count = 0 AND first_failed_at + interval '7 days' > NOW())
	OR (retry_count = 1 AND first_failed_at + interval '14 days' > NOW())
	OR (retry_count = 2 AND first_failed_at + interval '30 days' > NOW())
)`

// RecordDeadLink inserts a new dead-link row, or on conflict increments
// retry_count and overwrites error_type/last_checked_at.
func (r *DeadLinkRepository) RecordDeadLink(ctx context.Context, sourceID uuid.UUID, url string, kind models.ErrorKind) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO dead_links (source_id, url, error_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (url) DO UPDATE SET
			error_type = EXCLUDED.error_type,
			last_checked_at = NOW(),
			retry_count = dead_links.retry_count + 1
	`, sourceID, url, string(kind))
	if err != nil {
		return fmt.Errorf("record dead link: %w", err)
	}
	return nil
}

// RemoveDeadLink deletes a dead-link row after a successful retry.
func (r *DeadLinkRepository) RemoveDeadLink(ctx context.Context, url string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM dead_links WHERE url = $1`, url)
	if err != nil {
		return fmt.Errorf("remove dead link: %w", err)
	}
	return nil
}

// SuppressedSubset batch-filters urls to those currently suppressed.
func (r *DeadLinkRepository) SuppressedSubset(ctx context.Context, sourceID uuid.UUID, urls []string) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx,
		`SELECT url FROM dead_links WHERE source_id = $1 AND url = ANY($2::text[]) AND `+suppressedWhere,
		sourceID, urls,
	)
	if err != nil {
		return nil, fmt.Errorf("suppressed subset: %w", err)
	}
	defer rows.Close()
	return scanURLSet(rows)
}

// AllSuppressed loads the full suppressed set for a source, for sweeps that
// synthesize candidate URLs rather than crawl for them.
func (r *DeadLinkRepository) AllSuppressed(ctx context.Context, sourceID uuid.UUID) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx,
		`SELECT url FROM dead_links WHERE source_id = $1 AND `+suppressedWhere,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("all suppressed: %w", err)
	}
	defer rows.Close()
	return scanURLSet(rows)
}

// DeadLinkStats is one row of the per-source dead-link breakdown report.
type DeadLinkStats struct {
	SourceName string
	Slug       string
	Language   string
	Total      int
	Permanent  int
	Retryable  int
	Err404     int
	ErrTimeout int
	ErrEmpty   int
	ErrOther   int
}

// DeadLinkStatsBySource powers `check dead-links`.
func (r *DeadLinkRepository) DeadLinkStatsBySource(ctx context.Context) ([]DeadLinkStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.name, s.slug, s.language,
		       COUNT(d.id) AS total,
		       COUNT(d.id) FILTER (WHERE d.retry_count >= 3) AS permanent,
		       COUNT(d.id) FILTER (WHERE d.retry_count < 3) AS retryable,
		       COUNT(d.id) FILTER (WHERE d.error_type = '404') AS err_404,
		       COUNT(d.id) FILTER (WHERE d.error_type = 'timeout') AS err_timeout,
		       COUNT(d.id) FILTER (WHERE d.error_type = 'empty') AS err_empty,
		       COUNT(d.id) FILTER (WHERE d.error_type NOT IN ('404', 'timeout', 'empty')) AS err_other
		FROM sources s
		LEFT JOIN dead_links d ON d.source_id = s.id
		GROUP BY s.id, s.name, s.slug, s.language
		HAVING COUNT(d.id) > 0
		ORDER BY COUNT(d.id) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("dead link stats: %w", err)
	}
	defer rows.Close()

	var out []DeadLinkStats
	for rows.Next() {
		var s DeadLinkStats
		if err := rows.Scan(&s.SourceName, &s.Slug, &s.Language, &s.Total, &s.Permanent,
			&s.Retryable, &s.Err404, &s.ErrTimeout, &s.ErrEmpty, &s.ErrOther); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanURLSet(rows rowScanner) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out[u] = struct{}{}
	}
	return out, rows.Err()
}
