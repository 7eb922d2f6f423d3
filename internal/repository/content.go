package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recast/recast/internal/content"
	"github.com/recast/recast/internal/model"
)

// ContentRepository is a PostgreSQL-backed content.Store.
type ContentRepository struct {
	pool *pgxpool.Pool
}

// Contents returns a content store sharing this repository's pool.
func (r *Repository) Contents() *ContentRepository {
	return &ContentRepository{pool: r.pool}
}

// Create inserts a new content item.
func (c *ContentRepository) Create(ctx context.Context, item *model.ContentItem) error {
	metadata := item.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO content_items (id, account_id, title, source_type, raw_text, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		item.ID,
		item.AccountID,
		item.Title,
		string(item.SourceType),
		item.RawText,
		metaJSON,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create content item: %w", err)
	}
	return nil
}

// Get retrieves a content item owned by accountID.
func (c *ContentRepository) Get(ctx context.Context, accountID, id string) (*model.ContentItem, error) {
	var (
		item       model.ContentItem
		sourceType string
		metaJSON   []byte
	)
	err := c.pool.QueryRow(ctx, `
		SELECT id, account_id, title, source_type, raw_text, metadata, created_at
		FROM content_items
		WHERE id = $1 AND account_id = $2
	`, id, accountID).Scan(
		&item.ID,
		&item.AccountID,
		&item.Title,
		&sourceType,
		&item.RawText,
		&metaJSON,
		&item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, content.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}

	item.SourceType = model.SourceType(sourceType)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &item.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	if len(item.Metadata) == 0 {
		item.Metadata = nil
	}
	return &item, nil
}
