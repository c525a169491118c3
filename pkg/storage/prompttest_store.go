package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// PromptTestStore persists PromptTestCase/PromptTestRun fixtures used to
// catch prompt regressions before a schema is promoted to production,
// plus QualitySample rows sampled for manual review.
type PromptTestStore struct {
	pool *pgxpool.Pool
}

// NewPromptTestStore wraps a Client's pool as a PromptTestStore.
func NewPromptTestStore(c *Client) *PromptTestStore {
	return &PromptTestStore{pool: c.Pool}
}

func (s *PromptTestStore) CreateCase(ctx context.Context, tc *models.PromptTestCase) (*models.PromptTestCase, error) {
	expectedJSON, err := json.Marshal(tc.ExpectedFields)
	if err != nil {
		return nil, fmt.Errorf("marshaling expected_fields: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO prompt_test_cases (schema_id, name, article_excerpt, expected_fields, min_confidence)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, schema_id, name, article_excerpt, expected_fields, min_confidence
	`, tc.SchemaID, tc.Name, tc.ArticleExcerpt, expectedJSON, tc.MinConfidence)

	return scanTestCase(row)
}

func (s *PromptTestStore) ListCasesForSchema(ctx context.Context, schemaID string) ([]*models.PromptTestCase, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, schema_id, name, article_excerpt, expected_fields, min_confidence
		FROM prompt_test_cases WHERE schema_id = $1
	`, schemaID)
	if err != nil {
		return nil, fmt.Errorf("listing prompt test cases: %w", err)
	}
	defer rows.Close()

	var out []*models.PromptTestCase
	for rows.Next() {
		tc, err := scanTestCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func scanTestCase(row pgx.Row) (*models.PromptTestCase, error) {
	var tc models.PromptTestCase
	var expectedJSON []byte
	if err := row.Scan(&tc.ID, &tc.SchemaID, &tc.Name, &tc.ArticleExcerpt, &expectedJSON, &tc.MinConfidence); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(expectedJSON, &tc.ExpectedFields); err != nil {
		return nil, fmt.Errorf("unmarshaling expected_fields: %w", err)
	}
	return &tc, nil
}

// RecordRun persists one execution of a PromptTestCase against a
// candidate schema version (spec.md §4.9 "prompt regression testing
// gates promotion").
func (s *PromptTestStore) RecordRun(ctx context.Context, r *models.PromptTestRun) (*models.PromptTestRun, error) {
	actualJSON, err := json.Marshal(r.ActualFields)
	if err != nil {
		return nil, fmt.Errorf("marshaling actual_fields: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO prompt_test_runs (test_case_id, schema_id, schema_version, actual_fields,
			confidence, fields_matched, fields_total, passed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, test_case_id, schema_id, schema_version, actual_fields, confidence,
			fields_matched, fields_total, passed, ran_at
	`, r.TestCaseID, r.SchemaID, r.SchemaVersion, actualJSON, r.Confidence, r.FieldsMatched, r.FieldsTotal, r.Passed)

	return scanTestRun(row)
}

// AllPassedForSchemaVersion reports whether every test run recorded for
// a given schema version passed, the gate promotion checks.
func (s *PromptTestStore) AllPassedForSchemaVersion(ctx context.Context, schemaID string, schemaVersion int) (bool, error) {
	var total, passed int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE passed)
		FROM prompt_test_runs WHERE schema_id = $1 AND schema_version = $2
	`, schemaID, schemaVersion).Scan(&total, &passed)
	if err != nil {
		return false, fmt.Errorf("checking prompt test results: %w", err)
	}
	return total > 0 && total == passed, nil
}

func scanTestRun(row pgx.Row) (*models.PromptTestRun, error) {
	var r models.PromptTestRun
	var actualJSON []byte
	if err := row.Scan(&r.ID, &r.TestCaseID, &r.SchemaID, &r.SchemaVersion, &actualJSON,
		&r.Confidence, &r.FieldsMatched, &r.FieldsTotal, &r.Passed, &r.RanAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(actualJSON, &r.ActualFields); err != nil {
		return nil, fmt.Errorf("unmarshaling actual_fields: %w", err)
	}
	return &r, nil
}

// CreateQualitySample records a production extraction set aside for
// manual quality review (spec.md supplement, distinct from the curation
// queue).
func (s *PromptTestStore) CreateQualitySample(ctx context.Context, qs *models.QualitySample) (*models.QualitySample, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO quality_samples (result_id)
		VALUES ($1)
		RETURNING id, result_id, sampled_at, reviewed, review_note, accurate
	`, qs.ResultID)
	return scanQualitySample(row)
}

func (s *PromptTestStore) ReviewQualitySample(ctx context.Context, id string, accurate bool, note string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE quality_samples SET reviewed = true, accurate = $2, review_note = $3 WHERE id = $1
	`, id, accurate, note)
	return err
}

func (s *PromptTestStore) ListUnreviewedSamples(ctx context.Context, limit int) ([]*models.QualitySample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, result_id, sampled_at, reviewed, review_note, accurate
		FROM quality_samples WHERE NOT reviewed
		ORDER BY sampled_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unreviewed quality samples: %w", err)
	}
	defer rows.Close()

	var out []*models.QualitySample
	for rows.Next() {
		qs, err := scanQualitySample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qs)
	}
	return out, rows.Err()
}

// PurgeReviewedSamplesOlderThan deletes quality samples that have
// already been reviewed and are older than cutoff, returning the number
// removed. Unreviewed samples are never purged regardless of age, since
// they're still awaiting the manual review they were sampled for.
// Called by the retention cleanup job (spec.md §6.5).
func (s *PromptTestStore) PurgeReviewedSamplesOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM quality_samples WHERE reviewed AND sampled_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging reviewed quality samples: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanQualitySample(row pgx.Row) (*models.QualitySample, error) {
	var qs models.QualitySample
	if err := row.Scan(&qs.ID, &qs.ResultID, &qs.SampledAt, &qs.Reviewed, &qs.ReviewNote, &qs.Accurate); err != nil {
		return nil, err
	}
	return &qs, nil
}
