// Package repository is the persistence adapter: idempotent article
// upserts, dead-link bookkeeping, and source/profile reads, over
// jackc/pgx/v5 + pgxpool. Grounded on the teacher's article_repository.go
// (batch-insert-via-pgx.Batch, ON CONFLICT idioms) and on original_source's
// db.py (the exact queries: get_existing_urls, get_recent_titles,
// insert_article, record_dead_link).
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cha7ura/newsagg/internal/models"
)

// ArticleRepository persists and queries article records.
type ArticleRepository struct {
	db *pgxpool.Pool
}

func NewArticleRepository(db *pgxpool.Pool) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// InsertArticle inserts with ON CONFLICT (url) DO NOTHING, returning the new
// id or uuid.Nil if the url already existed. Idempotent.
func (r *ArticleRepository) InsertArticle(ctx context.Context, a *models.ArticleCreate) (uuid.UUID, error) {
	a.Title = sanitizeUTF8(a.Title)
	a.Content = sanitizeUTF8(a.Content)
	a.Excerpt = sanitizeUTF8(a.Excerpt)
	a.Author = sanitizeUTF8(a.Author)

	row := r.db.QueryRow(ctx, `
		INSERT INTO articles (
			source_id, url, title, content, excerpt, image_url, author,
			published_at, language, original_language
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (url) DO NOTHING
		RETURNING id
	`,
		a.SourceID, a.URL, a.Title, a.Content, a.Excerpt, a.ImageURL, a.Author,
		a.PublishedAt, a.Language, a.OriginalLanguage,
	)

	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, nil // duplicate, ON CONFLICT DO NOTHING
		}
		return uuid.Nil, fmt.Errorf("insert article: %w", err)
	}
	return id, nil
}

// ExistingURLs checks which of urls already exist for this source.
func (r *ArticleRepository) ExistingURLs(ctx context.Context, sourceID uuid.UUID, urls []string) (map[string]struct{}, error) {
	if len(urls) == 0 {
		return map[string]struct{}{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT url FROM articles WHERE source_id = $1 AND url = ANY($2::text[])`,
		sourceID, urls,
	)
	if err != nil {
		return nil, fmt.Errorf("existing urls: %w", err)
	}
	defer rows.Close()

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

// AllSourceURLs returns every article URL for a source. Used by the NID
// sweep for pre-filtering.
func (r *ArticleRepository) AllSourceURLs(ctx context.Context, sourceID uuid.UUID) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx, `SELECT url FROM articles WHERE source_id = $1`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("all source urls: %w", err)
	}
	defer rows.Close()

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

// RecentTitles returns raw (un-normalized) titles from the last `days` for
// dedup-window matching.
func (r *ArticleRepository) RecentTitles(ctx context.Context, sourceID uuid.UUID, days int) ([]string, error) {
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	rows, err := r.db.Query(ctx,
		`SELECT title FROM articles WHERE source_id = $1 AND created_at >= $2`,
		sourceID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("recent titles: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ArticleStats is one row of the per-source article count report.
type ArticleStats struct {
	SourceName     string
	Slug           string
	Language       string
	Count          int
	LatestArticle  *time.Time
}

// ArticleStatsBySource powers `check stats`.
func (r *ArticleRepository) ArticleStatsBySource(ctx context.Context) ([]ArticleStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.name, s.slug, s.language, COUNT(a.id) AS count,
		       MAX(a.published_at) AS latest_article
		FROM sources s
		LEFT JOIN articles a ON a.source_id = s.id
		GROUP BY s.id, s.name, s.slug, s.language
		ORDER BY s.name
	`)
	if err != nil {
		return nil, fmt.Errorf("article stats: %w", err)
	}
	defer rows.Close()

	var out []ArticleStats
	for rows.Next() {
		var s ArticleStats
		if err := rows.Scan(&s.SourceName, &s.Slug, &s.Language, &s.Count, &s.LatestArticle); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
