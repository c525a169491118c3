package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// PipelineStageStore persists the database-driven stage ordering the
// Pipeline Orchestrator reads at the start of every run (spec.md §4.12).
type PipelineStageStore struct {
	pool *pgxpool.Pool
}

// NewPipelineStageStore wraps a Client's pool as a PipelineStageStore.
func NewPipelineStageStore(c *Client) *PipelineStageStore {
	return &PipelineStageStore{pool: c.Pool}
}

const pipelineStageColumns = "id, slug, incident_type, execution_order, default_order, is_active"

// ListActive returns every active stage applicable to incidentType
// (rows with an empty incident_type apply universally), unordered —
// the caller resolves final order via (execution_order ?? default_order).
func (s *PipelineStageStore) ListActive(ctx context.Context, incidentType string) ([]*models.PipelineStageConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pipelineStageColumns+` FROM pipeline_stages
		WHERE is_active = true AND (incident_type = '' OR incident_type = $1)
	`, incidentType)
	if err != nil {
		return nil, fmt.Errorf("listing active pipeline stages: %w", err)
	}
	defer rows.Close()

	var out []*models.PipelineStageConfig
	for rows.Next() {
		stage, err := scanPipelineStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stage)
	}
	return out, rows.Err()
}

// Upsert creates or updates a stage definition by slug.
func (s *PipelineStageStore) Upsert(ctx context.Context, stage *models.PipelineStageConfig) (*models.PipelineStageConfig, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO pipeline_stages (slug, incident_type, execution_order, default_order, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO UPDATE SET
			incident_type = $2, execution_order = $3, default_order = $4, is_active = $5, updated_at = now()
		RETURNING `+pipelineStageColumns,
		stage.Slug, stage.IncidentType, stage.ExecutionOrder, stage.DefaultOrder, stage.IsActive)
	return scanPipelineStage(row)
}

func scanPipelineStage(row pgx.Row) (*models.PipelineStageConfig, error) {
	var stage models.PipelineStageConfig
	if err := row.Scan(&stage.ID, &stage.Slug, &stage.IncidentType, &stage.ExecutionOrder,
		&stage.DefaultOrder, &stage.IsActive); err != nil {
		return nil, err
	}
	return &stage, nil
}
