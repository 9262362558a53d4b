package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cha7ura/newsagg/internal/models"
)

// SourceRepository reads source configuration rows.
type SourceRepository struct {
	db *pgxpool.Pool
}

func NewSourceRepository(db *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{db: db}
}

func scanSource(row pgx.Row) (models.Source, error) {
	var s models.Source
	var rssURL *string
	err := row.Scan(&s.ID, &s.Slug, &s.Name, &s.URL, &rssURL, &s.Language, &s.IsActive)
	if rssURL != nil {
		s.RSSURL = *rssURL
	}
	return s, err
}

// GetActiveSources returns every source with is_active = true.
func (r *SourceRepository) GetActiveSources(ctx context.Context) ([]models.Source, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, slug, name, url, rss_url, language, is_active FROM sources WHERE is_active = true ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("active sources: %w", err)
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSourceBySlug looks up a single source, returning (zero, false) if absent.
func (r *SourceRepository) GetSourceBySlug(ctx context.Context, slug string) (models.Source, bool, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, slug, name, url, rss_url, language, is_active FROM sources WHERE slug = $1`,
		slug,
	)
	s, err := scanSource(row)
	if err == pgx.ErrNoRows {
		return models.Source{}, false, nil
	}
	if err != nil {
		return models.Source{}, false, fmt.Errorf("source by slug: %w", err)
	}
	return s, true, nil
}
