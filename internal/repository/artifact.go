package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recast/recast/internal/artifact"
	"github.com/recast/recast/internal/model"
)

// ArtifactRepository is a PostgreSQL-backed artifact.Store.
type ArtifactRepository struct {
	pool     *pgxpool.Pool
	pageSize int
}

// Artifacts returns an artifact store sharing this repository's pool.
func (r *Repository) Artifacts() *ArtifactRepository {
	return &ArtifactRepository{pool: r.pool, pageSize: artifact.DefaultPageSize}
}

const artifactColumns = `id, account_id, content_item_id, format_id, tone_id, output_text, tokens_used, model_id, created_at`

// Save inserts a new artifact.
func (a *ArtifactRepository) Save(ctx context.Context, in artifact.SaveInput) (*model.Artifact, error) {
	// Truncated to the column precision so the returned value matches what a later read sees.
	art, err := artifact.New(in, time.Now().Truncate(time.Microsecond))
	if err != nil {
		return nil, err
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO artifacts (`+artifactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		art.ID,
		art.AccountID,
		art.ContentItemID,
		art.FormatID,
		art.ToneID,
		art.OutputText,
		art.TokensUsed,
		art.ModelID,
		art.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}
	return art, nil
}

// List lazily yields matching artifacts, one page query at a time.
func (a *ArtifactRepository) List(ctx context.Context, accountID string, filter artifact.Filter) iter.Seq2[*model.Artifact, error] {
	return artifact.Paginate(ctx, a.ListPage, accountID, filter, a.pageSize)
}

// ListPage retrieves one page of artifacts using keyset pagination on (created_at, id).
func (a *ArtifactRepository) ListPage(ctx context.Context, accountID string, filter artifact.Filter, cursor string, limit int) (*artifact.Page, error) {
	cursorData, err := artifact.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = artifact.NormalizeLimit(limit)

	query := `
		SELECT ` + artifactColumns + `
		FROM artifacts
		WHERE account_id = $1
	`
	args := []any{accountID}
	argIndex := 2

	if cursorData != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}

	if filter.FormatID != "" {
		query += fmt.Sprintf(" AND format_id = $%d", argIndex)
		args = append(args, filter.FormatID)
		argIndex++
	}

	if len(filter.FormatIDs) > 0 {
		query += fmt.Sprintf(" AND format_id = ANY($%d)", argIndex)
		args = append(args, filter.FormatIDs)
		argIndex++
	}

	if filter.Search != "" {
		query += fmt.Sprintf(" AND strpos(lower(output_text), lower($%d)) > 0", argIndex)
		args = append(args, filter.Search)
		argIndex++
	}

	if filter.CreatedAfter != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, *filter.CreatedAfter)
		argIndex++
	}

	if filter.CreatedBefore != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIndex)
		args = append(args, *filter.CreatedBefore)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1) // Fetch one extra to determine hasMore

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var items []*model.Artifact
	for rows.Next() {
		art, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		items = append(items, art)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifacts: %w", err)
	}

	page := &artifact.Page{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextCursor = artifact.EncodeCursor(page.Items[limit-1])
	}
	return page, nil
}

// Get retrieves an artifact owned by accountID.
func (a *ArtifactRepository) Get(ctx context.Context, accountID, id string) (*model.Artifact, error) {
	art, err := scanArtifact(a.pool.QueryRow(ctx, `
		SELECT `+artifactColumns+`
		FROM artifacts
		WHERE id = $1 AND account_id = $2
	`, id, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, artifact.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return art, nil
}

// Delete removes an artifact owned by accountID.
func (a *ArtifactRepository) Delete(ctx context.Context, accountID, id string) error {
	result, err := a.pool.Exec(ctx, `DELETE FROM artifacts WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return artifact.ErrNotFound
	}
	return nil
}

func scanArtifact(row pgx.Row) (*model.Artifact, error) {
	var art model.Artifact
	err := row.Scan(
		&art.ID,
		&art.AccountID,
		&art.ContentItemID,
		&art.FormatID,
		&art.ToneID,
		&art.OutputText,
		&art.TokensUsed,
		&art.ModelID,
		&art.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	art.CreatedAt = art.CreatedAt.UTC()
	return &art, nil
}
