package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// TaxonomyStore persists the Domain/Category two-level taxonomy.
type TaxonomyStore struct {
	pool *pgxpool.Pool
}

// NewTaxonomyStore wraps a Client's pool as a TaxonomyStore.
func NewTaxonomyStore(c *Client) *TaxonomyStore {
	return &TaxonomyStore{pool: c.Pool}
}

func (s *TaxonomyStore) UpsertDomain(ctx context.Context, d *models.Domain) (*models.Domain, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO domains (slug, name, is_active, relevance_scope)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE SET name = $2, is_active = $3, relevance_scope = $4
		RETURNING id, slug, name, is_active, relevance_scope
	`, d.Slug, d.Name, d.IsActive, d.RelevanceScope)
	return scanDomain(row)
}

func (s *TaxonomyStore) GetDomainBySlug(ctx context.Context, slug string) (*models.Domain, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, slug, name, is_active, relevance_scope FROM domains WHERE slug = $1`, slug)
	return scanDomain(row)
}

func (s *TaxonomyStore) ListDomains(ctx context.Context) ([]*models.Domain, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, slug, name, is_active, relevance_scope FROM domains WHERE is_active ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("listing domains: %w", err)
	}
	defer rows.Close()

	var out []*models.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDomain(row pgx.Row) (*models.Domain, error) {
	var d models.Domain
	if err := row.Scan(&d.ID, &d.Slug, &d.Name, &d.IsActive, &d.RelevanceScope); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *TaxonomyStore) UpsertCategory(ctx context.Context, c *models.Category) (*models.Category, error) {
	requiredJSON, err := json.Marshal(c.RequiredFields)
	if err != nil {
		return nil, fmt.Errorf("marshaling required_fields: %w", err)
	}
	optionalJSON, err := json.Marshal(c.OptionalFields)
	if err != nil {
		return nil, fmt.Errorf("marshaling optional_fields: %w", err)
	}
	fieldDefsJSON, err := json.Marshal(c.FieldDefinitions)
	if err != nil {
		return nil, fmt.Errorf("marshaling field_definitions: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO categories (domain_id, slug, name, required_fields, optional_fields, field_definitions, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (domain_id, slug) DO UPDATE SET
			name = $3, required_fields = $4, optional_fields = $5, field_definitions = $6, is_active = $7
		RETURNING `+categoryColumns,
		c.DomainID, c.Slug, c.Name, requiredJSON, optionalJSON, fieldDefsJSON, c.IsActive)
	return scanCategory(row)
}

func (s *TaxonomyStore) ListCategoriesForDomain(ctx context.Context, domainID string) ([]*models.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories WHERE domain_id = $1 AND is_active ORDER BY slug`, domainID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var out []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const categoryColumns = `id, domain_id, slug, name, required_fields, optional_fields, field_definitions, is_active`

func scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	var requiredJSON, optionalJSON, fieldDefsJSON []byte
	if err := row.Scan(&c.ID, &c.DomainID, &c.Slug, &c.Name, &requiredJSON, &optionalJSON, &fieldDefsJSON, &c.IsActive); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(requiredJSON, &c.RequiredFields); err != nil {
		return nil, fmt.Errorf("unmarshaling required_fields: %w", err)
	}
	if err := json.Unmarshal(optionalJSON, &c.OptionalFields); err != nil {
		return nil, fmt.Errorf("unmarshaling optional_fields: %w", err)
	}
	if err := json.Unmarshal(fieldDefsJSON, &c.FieldDefinitions); err != nil {
		return nil, fmt.Errorf("unmarshaling field_definitions: %w", err)
	}
	return &c, nil
}

// SchemaStore persists ExtractionSchema and SchemaExtractionResult rows.
type SchemaStore struct {
	pool *pgxpool.Pool
}

// NewSchemaStore wraps a Client's pool as a SchemaStore.
func NewSchemaStore(c *Client) *SchemaStore {
	return &SchemaStore{pool: c.Pool}
}

// ErrNotFound is returned by Get-style lookups with no matching row.
var ErrNotFound = errors.New("not found")

func (s *SchemaStore) Create(ctx context.Context, sc *models.ExtractionSchema) (*models.ExtractionSchema, error) {
	requiredJSON, _ := json.Marshal(sc.RequiredFields)
	optionalJSON, _ := json.Marshal(sc.OptionalFields)
	fieldDefsJSON, _ := json.Marshal(sc.FieldDefinitions)
	thresholdsJSON, _ := json.Marshal(sc.ConfidenceThresholds)
	qualityJSON, _ := json.Marshal(sc.QualityMetrics)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO extraction_schemas (type, domain_id, category_id, name, system_prompt, user_prompt_template,
			model_name, temperature, max_tokens, required_fields, optional_fields, field_definitions,
			confidence_thresholds, min_quality_threshold, schema_version, is_active, is_production,
			previous_version_id, git_commit_sha, quality_metrics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING `+schemaColumns,
		string(sc.Type), nullableUUID(sc.DomainID), nullableUUID(sc.CategoryID), sc.Name, sc.SystemPrompt, sc.UserPromptTemplate,
		sc.ModelName, sc.Temperature, sc.MaxTokens, requiredJSON, optionalJSON, fieldDefsJSON,
		thresholdsJSON, sc.MinQualityThreshold, sc.SchemaVersion, sc.IsActive, sc.IsProduction,
		nullableUUID(sc.PreviousVersionID), sc.GitCommitSHA, qualityJSON)

	return scanSchema(row)
}

// Promote marks schemaID as the production schema for its
// (domain, category, type), first demoting any existing production
// schema in the same scope. Runs in a transaction so the
// at-most-one-production partial unique index is never violated
// mid-flight (spec.md §4.9 "schema promotion is atomic").
func (s *SchemaStore) Promote(ctx context.Context, schemaID string) (*models.ExtractionSchema, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning promote transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var domainID, categoryID, schemaType string
	if err := tx.QueryRow(ctx, `SELECT domain_id, category_id, type FROM extraction_schemas WHERE id = $1`, schemaID).
		Scan(&domainID, &categoryID, &schemaType); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("schema %s: %w", schemaID, ErrNotFound)
		}
		return nil, fmt.Errorf("looking up schema scope: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE extraction_schemas SET is_production = false
		WHERE domain_id = $1 AND category_id = $2 AND type = $3 AND is_production
	`, domainID, categoryID, schemaType); err != nil {
		return nil, fmt.Errorf("demoting prior production schema: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE extraction_schemas SET is_production = true, deployed_at = now() WHERE id = $1
		RETURNING `+schemaColumns, schemaID)
	promoted, err := scanSchema(row)
	if err != nil {
		return nil, fmt.Errorf("promoting schema %s: %w", schemaID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing promotion: %w", err)
	}
	return promoted, nil
}

func (s *SchemaStore) Get(ctx context.Context, id string) (*models.ExtractionSchema, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+schemaColumns+` FROM extraction_schemas WHERE id = $1`, id)
	return scanSchema(row)
}

// ProductionFor returns the single production schema for a
// (domainID, categoryID, type) scope, used by the Stage 2 Router during
// auto-selection (spec.md §4.7 step 3).
func (s *SchemaStore) ProductionFor(ctx context.Context, domainID, categoryID string, schemaType models.SchemaType) (*models.ExtractionSchema, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+schemaColumns+` FROM extraction_schemas
		WHERE domain_id = $1 AND category_id = $2 AND type = $3 AND is_production
	`, domainID, categoryID, string(schemaType))
	sc, err := scanSchema(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("production schema for domain=%s category=%s type=%s: %w", domainID, categoryID, schemaType, ErrNotFound)
		}
		return nil, err
	}
	return sc, nil
}

// ListActiveStage2Schemas returns every active Stage 2 schema annotated
// with its domain/category slugs, the shape the Stage 2 Router's
// auto-selection matches against (spec.md §4.7 step 3).
func (s *SchemaStore) ListActiveStage2Schemas(ctx context.Context) ([]*models.ExtractionSchema, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+schemaColumnsAliased+`, d.slug, COALESCE(c.slug, '')
		FROM extraction_schemas es
		LEFT JOIN domains d ON d.id = es.domain_id
		LEFT JOIN categories c ON c.id = es.category_id
		WHERE es.type = $1 AND es.is_active
		ORDER BY es.name
	`, string(models.SchemaTypeStage2))
	if err != nil {
		return nil, fmt.Errorf("listing active stage2 schemas: %w", err)
	}
	defer rows.Close()

	var out []*models.ExtractionSchema
	for rows.Next() {
		sc, err := scanSchemaWithSlugs(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

const schemaColumns = `id, type, domain_id, category_id, name, system_prompt, user_prompt_template,
	model_name, temperature, max_tokens, required_fields, optional_fields, field_definitions,
	confidence_thresholds, min_quality_threshold, schema_version, is_active, is_production,
	deployed_at, previous_version_id, rollback_reason, git_commit_sha, quality_metrics`

func scanSchema(row pgx.Row) (*models.ExtractionSchema, error) {
	var sc models.ExtractionSchema
	var schemaType string
	var domainID, categoryID, previousVersionID *string
	var requiredJSON, optionalJSON, fieldDefsJSON, thresholdsJSON, qualityJSON []byte

	if err := row.Scan(
		&sc.ID, &schemaType, &domainID, &categoryID, &sc.Name, &sc.SystemPrompt, &sc.UserPromptTemplate,
		&sc.ModelName, &sc.Temperature, &sc.MaxTokens, &requiredJSON, &optionalJSON, &fieldDefsJSON,
		&thresholdsJSON, &sc.MinQualityThreshold, &sc.SchemaVersion, &sc.IsActive, &sc.IsProduction,
		&sc.DeployedAt, &previousVersionID, &sc.RollbackReason, &sc.GitCommitSHA, &qualityJSON,
	); err != nil {
		return nil, err
	}
	if err := finishScanSchema(&sc, schemaType, domainID, categoryID, previousVersionID,
		requiredJSON, optionalJSON, fieldDefsJSON, thresholdsJSON, qualityJSON); err != nil {
		return nil, err
	}
	return &sc, nil
}

// schemaColumnsAliased is schemaColumns qualified with the "es" alias
// ListActiveStage2Schemas joins under.
const schemaColumnsAliased = `es.id, es.type, es.domain_id, es.category_id, es.name, es.system_prompt, es.user_prompt_template,
	es.model_name, es.temperature, es.max_tokens, es.required_fields, es.optional_fields, es.field_definitions,
	es.confidence_thresholds, es.min_quality_threshold, es.schema_version, es.is_active, es.is_production,
	es.deployed_at, es.previous_version_id, es.rollback_reason, es.git_commit_sha, es.quality_metrics`

// scanSchemaWithSlugs scans a row produced by ListActiveStage2Schemas's
// join, which appends the domain/category slugs after the usual schema
// columns.
func scanSchemaWithSlugs(row pgx.Row) (*models.ExtractionSchema, error) {
	var sc models.ExtractionSchema
	var schemaType string
	var domainID, categoryID, previousVersionID *string
	var requiredJSON, optionalJSON, fieldDefsJSON, thresholdsJSON, qualityJSON []byte

	if err := row.Scan(
		&sc.ID, &schemaType, &domainID, &categoryID, &sc.Name, &sc.SystemPrompt, &sc.UserPromptTemplate,
		&sc.ModelName, &sc.Temperature, &sc.MaxTokens, &requiredJSON, &optionalJSON, &fieldDefsJSON,
		&thresholdsJSON, &sc.MinQualityThreshold, &sc.SchemaVersion, &sc.IsActive, &sc.IsProduction,
		&sc.DeployedAt, &previousVersionID, &sc.RollbackReason, &sc.GitCommitSHA, &qualityJSON,
		&sc.DomainSlug, &sc.CategorySlug,
	); err != nil {
		return nil, err
	}
	if err := finishScanSchema(&sc, schemaType, domainID, categoryID, previousVersionID,
		requiredJSON, optionalJSON, fieldDefsJSON, thresholdsJSON, qualityJSON); err != nil {
		return nil, err
	}
	return &sc, nil
}

func finishScanSchema(sc *models.ExtractionSchema, schemaType string, domainID, categoryID, previousVersionID *string,
	requiredJSON, optionalJSON, fieldDefsJSON, thresholdsJSON, qualityJSON []byte) error {
	sc.Type = models.SchemaType(schemaType)
	if domainID != nil {
		sc.DomainID = *domainID
	}
	if categoryID != nil {
		sc.CategoryID = *categoryID
	}
	if previousVersionID != nil {
		sc.PreviousVersionID = *previousVersionID
	}
	if err := json.Unmarshal(requiredJSON, &sc.RequiredFields); err != nil {
		return fmt.Errorf("unmarshaling required_fields: %w", err)
	}
	if err := json.Unmarshal(optionalJSON, &sc.OptionalFields); err != nil {
		return fmt.Errorf("unmarshaling optional_fields: %w", err)
	}
	if err := json.Unmarshal(fieldDefsJSON, &sc.FieldDefinitions); err != nil {
		return fmt.Errorf("unmarshaling field_definitions: %w", err)
	}
	if len(thresholdsJSON) > 0 {
		if err := json.Unmarshal(thresholdsJSON, &sc.ConfidenceThresholds); err != nil {
			return fmt.Errorf("unmarshaling confidence_thresholds: %w", err)
		}
	}
	if len(qualityJSON) > 0 {
		if err := json.Unmarshal(qualityJSON, &sc.QualityMetrics); err != nil {
			return fmt.Errorf("unmarshaling quality_metrics: %w", err)
		}
	}
	return nil
}

// UpsertResult writes a Stage 2 result for its (stage1_row, schema) pair
// in one transaction. Because that pair is unique, a prior row is first
// marked superseded and then overwritten in place by the new result, so
// no superseded row remains afterwards.
func (s *SchemaStore) UpsertResult(ctx context.Context, r *models.SchemaExtractionResult) (*models.SchemaExtractionResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning result upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE schema_extraction_results SET status = 'superseded'
		WHERE stage1_row_id = $1 AND schema_id = $2 AND status = 'completed'
	`, r.Stage1RowID, r.SchemaID); err != nil {
		return nil, fmt.Errorf("superseding prior result: %w", err)
	}

	extractedJSON, _ := json.Marshal(r.ExtractedData)
	spansJSON, _ := json.Marshal(r.SourceSpans)
	validationJSON, _ := json.Marshal(r.ValidationErrors)

	row := tx.QueryRow(ctx, `
		INSERT INTO schema_extraction_results (stage1_row_id, schema_id, domain_slug, category_slug, schema_name,
			extracted_data, source_spans, confidence, validation_errors, status, stage1_version,
			used_original_text, provider, model, tokens_in, tokens_out, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (stage1_row_id, schema_id) DO UPDATE SET
			domain_slug = $3, category_slug = $4, schema_name = $5, extracted_data = $6, source_spans = $7,
			confidence = $8, validation_errors = $9, status = $10, stage1_version = $11,
			used_original_text = $12, provider = $13, model = $14, tokens_in = $15, tokens_out = $16,
			latency_ms = $17, created_at = now()
		RETURNING `+resultColumns,
		r.Stage1RowID, r.SchemaID, r.DomainSlug, r.CategorySlug, r.SchemaName,
		extractedJSON, spansJSON, r.Confidence, validationJSON, string(r.Status), r.Stage1Version,
		r.UsedOriginalText, r.Provider, r.Model, r.TokensIn, r.TokensOut, r.Latency.Milliseconds())

	result, err := scanResult(row)
	if err != nil {
		return nil, fmt.Errorf("upserting schema extraction result: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing result upsert: %w", err)
	}
	return result, nil
}

func (s *SchemaStore) ListResultsForStage1Row(ctx context.Context, stage1RowID string) ([]*models.SchemaExtractionResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+resultColumns+` FROM schema_extraction_results
		WHERE stage1_row_id = $1 AND status = 'completed'
		ORDER BY created_at
	`, stage1RowID)
	if err != nil {
		return nil, fmt.Errorf("listing schema extraction results: %w", err)
	}
	defer rows.Close()

	var out []*models.SchemaExtractionResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const resultColumns = `id, stage1_row_id, schema_id, domain_slug, category_slug, schema_name,
	extracted_data, source_spans, confidence, validation_errors, status, stage1_version,
	used_original_text, provider, model, tokens_in, tokens_out, latency_ms, created_at`

func scanResult(row pgx.Row) (*models.SchemaExtractionResult, error) {
	var r models.SchemaExtractionResult
	var status string
	var latencyMs int64
	var extractedJSON, spansJSON, validationJSON []byte

	if err := row.Scan(
		&r.ID, &r.Stage1RowID, &r.SchemaID, &r.DomainSlug, &r.CategorySlug, &r.SchemaName,
		&extractedJSON, &spansJSON, &r.Confidence, &validationJSON, &status, &r.Stage1Version,
		&r.UsedOriginalText, &r.Provider, &r.Model, &r.TokensIn, &r.TokensOut, &latencyMs, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.Status = models.Stage2Status(status)
	r.Latency = time.Duration(latencyMs) * time.Millisecond
	if len(extractedJSON) > 0 {
		if err := json.Unmarshal(extractedJSON, &r.ExtractedData); err != nil {
			return nil, fmt.Errorf("unmarshaling extracted_data: %w", err)
		}
	}
	if len(spansJSON) > 0 {
		if err := json.Unmarshal(spansJSON, &r.SourceSpans); err != nil {
			return nil, fmt.Errorf("unmarshaling source_spans: %w", err)
		}
	}
	if len(validationJSON) > 0 {
		if err := json.Unmarshal(validationJSON, &r.ValidationErrors); err != nil {
			return nil, fmt.Errorf("unmarshaling validation_errors: %w", err)
		}
	}
	return &r, nil
}

func nullableUUID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
