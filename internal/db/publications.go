package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/autopublisher/internal/types"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var publicationColumns = []string{
	"id", "publication_id", "workflow_id", "platform", "status",
	"platform_post_id", "platform_url", "error_message", "retry_count", "created_at",
}

// SavePublication inserts a publication log row and returns its ID.
func (db *DB) SavePublication(ctx context.Context, pub *Publication) (uuid.UUID, error) {
	if pub.ID == uuid.Nil {
		pub.ID = uuid.New()
	}
	if pub.CreatedAt.IsZero() {
		pub.CreatedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO publications (id, publication_id, workflow_id, platform, status,
		                           platform_post_id, platform_url, error_message, retry_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		pub.ID, pub.PublicationID, pub.WorkflowID, pub.Platform, pub.Status,
		pub.PlatformPostID, pub.PlatformURL, pub.ErrorMessage, pub.RetryCount, pub.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save publication: %w", err)
	}
	return pub.ID, nil
}

// RecordPublication stores the final response of a publish. It satisfies
// publishing.Recorder.
func (db *DB) RecordPublication(ctx context.Context, workflowID string, resp *types.PublicationResponse) error {
	if resp == nil {
		return nil
	}
	_, err := db.SavePublication(ctx, &Publication{
		PublicationID:  resp.PublicationID,
		WorkflowID:     workflowID,
		Platform:       string(resp.Platform),
		Status:         string(resp.Status),
		PlatformPostID: resp.PlatformPostID,
		PlatformURL:    resp.PlatformURL,
		ErrorMessage:   resp.ErrorMessage,
		RetryCount:     resp.RetryCount,
	})
	return err
}

// GetPublication retrieves a publication by ID. It returns nil, nil when no row exists.
func (db *DB) GetPublication(ctx context.Context, id uuid.UUID) (*Publication, error) {
	query, args, err := psql.Select(publicationColumns...).
		From("publications").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	pub, err := scanPublication(db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get publication: %w", err)
	}
	return pub, nil
}

// ListPublications returns log rows matching filter, newest first.
func (db *DB) ListPublications(ctx context.Context, filter PublicationFilter) ([]Publication, error) {
	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = DefaultPublicationLimit
	case limit > MaxPublicationLimit:
		limit = MaxPublicationLimit
	}
	offset := max(filter.Offset, 0)

	builder := psql.Select(publicationColumns...).From("publications")
	if filter.Platform != "" {
		builder = builder.Where(sq.Eq{"platform": filter.Platform})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.WorkflowID != "" {
		builder = builder.Where(sq.Eq{"workflow_id": filter.WorkflowID})
	}
	query, args, err := builder.
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list publications: %w", err)
	}
	defer rows.Close()

	publications := []Publication{}
	for rows.Next() {
		pub, err := scanPublication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan publication: %w", err)
		}
		publications = append(publications, *pub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list publications: %w", err)
	}
	return publications, nil
}

func scanPublication(row pgx.Row) (*Publication, error) {
	var pub Publication
	err := row.Scan(&pub.ID, &pub.PublicationID, &pub.WorkflowID, &pub.Platform, &pub.Status,
		&pub.PlatformPostID, &pub.PlatformURL, &pub.ErrorMessage, &pub.RetryCount, &pub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &pub, nil
}
