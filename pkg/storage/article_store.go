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

// ArticleStore persists Article and Stage1Row rows.
type ArticleStore struct {
	pool *pgxpool.Pool
}

// NewArticleStore wraps a Client's pool as an ArticleStore.
func NewArticleStore(c *Client) *ArticleStore {
	return &ArticleStore{pool: c.Pool}
}

// ErrDuplicateArticle indicates an article with the same content hash
// already exists (spec.md §4.3 "content-hash dedup on ingest").
var ErrDuplicateArticle = errors.New("article with this content hash already exists")

// Create inserts a new article, returning ErrDuplicateArticle if an
// article with the same content hash already exists.
func (s *ArticleStore) Create(ctx context.Context, a *models.Article) (*models.Article, error) {
	extractedJSON, err := json.Marshal(a.ExtractedData)
	if err != nil {
		return nil, fmt.Errorf("marshaling extracted_data: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO articles (source_id, source_url, content_hash, title, content, fetched_at,
			published_at, status, extracted_data, extraction_pipeline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING `+articleColumns,
		a.SourceID, a.SourceURL, a.ContentHash, a.Title, a.Content, a.FetchedAt,
		a.PublishedAt, string(a.Status), extractedJSON, string(a.ExtractionPipeline))

	created, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDuplicateArticle
		}
		return nil, fmt.Errorf("creating article: %w", err)
	}
	return created, nil
}

func (s *ArticleStore) Get(ctx context.Context, id string) (*models.Article, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("article %s: %w", id, err)
		}
		return nil, err
	}
	return a, nil
}

func (s *ArticleStore) GetByContentHash(ctx context.Context, hash string) (*models.Article, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE content_hash = $1`, hash)
	return scanArticle(row)
}

// ListByStatus returns up to limit articles in status, oldest first
// (used by batch extraction jobs, spec.md §4.2 "batch_extract").
func (s *ArticleStore) ListByStatus(ctx context.Context, status models.ArticleStatus, limit int) ([]*models.Article, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE status = $1
		ORDER BY fetched_at ASC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("listing articles by status: %w", err)
	}
	defer rows.Close()

	var out []*models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *ArticleStore) SetStatus(ctx context.Context, id string, status models.ArticleStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE articles SET status = $2 WHERE id = $1`, id, string(status))
	return err
}

// RecordExtractionError increments extraction_error_count and records
// the most recent failure, used by the pipeline's per-article retry
// policy (spec.md §4.2 edge cases).
func (s *ArticleStore) RecordExtractionError(ctx context.Context, id, errMsg, category string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE articles
		SET extraction_error_count = extraction_error_count + 1,
		    last_extraction_error = $2,
		    last_extraction_error_at = now(),
		    last_extraction_category = $3
		WHERE id = $1
	`, id, errMsg, category)
	return err
}

func (s *ArticleStore) SetLatestExtraction(ctx context.Context, id, stage1RowID string, pipeline models.ExtractionPipeline) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE articles SET latest_extraction_id = $2, extraction_pipeline = $3 WHERE id = $1
	`, id, stage1RowID, string(pipeline))
	return err
}

// PurgeRejectedOlderThan deletes rejected articles (and, via cascade,
// their stage1/schema rows) older than cutoff, returning the number
// removed. Called by the retention cleanup job (spec.md §6.5's
// rewrite of the teacher's session retention sweep).
func (s *ArticleStore) PurgeRejectedOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM articles WHERE status = $1 AND fetched_at < $2
	`, string(models.ArticleStatusRejected), cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging rejected articles: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const articleColumns = `id, source_id, source_url, content_hash, title, content, fetched_at,
	published_at, status, extracted_data, latest_extraction_id, extraction_pipeline,
	extraction_error_count, last_extraction_error, last_extraction_error_at, last_extraction_category`

func scanArticle(row pgx.Row) (*models.Article, error) {
	var a models.Article
	var extractedJSON []byte
	var status, pipeline string
	var latestExtractionID *string
	if err := row.Scan(
		&a.ID, &a.SourceID, &a.SourceURL, &a.ContentHash, &a.Title, &a.Content, &a.FetchedAt,
		&a.PublishedAt, &status, &extractedJSON, &latestExtractionID, &pipeline,
		&a.ExtractionErrorCount, &a.LastExtractionError, &a.LastExtractionErrorAt, &a.LastExtractionCategory,
	); err != nil {
		return nil, err
	}
	a.Status = models.ArticleStatus(status)
	a.ExtractionPipeline = models.ExtractionPipeline(pipeline)
	if latestExtractionID != nil {
		a.LatestExtractionID = *latestExtractionID
	}
	if len(extractedJSON) > 0 {
		if err := json.Unmarshal(extractedJSON, &a.ExtractedData); err != nil {
			return nil, fmt.Errorf("unmarshaling extracted_data: %w", err)
		}
	}
	return &a, nil
}

// Stage1Store persists Stage1Row rows.
type Stage1Store struct {
	pool *pgxpool.Pool
}

// NewStage1Store wraps a Client's pool as a Stage1Store.
func NewStage1Store(c *Client) *Stage1Store {
	return &Stage1Store{pool: c.Pool}
}

func (s *Stage1Store) Create(ctx context.Context, r *models.Stage1Row) (*models.Stage1Row, error) {
	dataJSON, err := json.Marshal(r.Data)
	if err != nil {
		return nil, fmt.Errorf("marshaling stage1 data: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO stage1_rows (article_id, data, entity_count, event_count, overall_confidence,
			status, schema_version, prompt_hash, provider, model, tokens_in, tokens_out, latency_ms, error, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+stage1Columns,
		r.ArticleID, dataJSON, r.EntityCount, r.EventCount, r.OverallConfidence,
		string(r.Status), r.SchemaVersion, r.PromptHash, r.Provider, r.Model,
		r.TokensIn, r.TokensOut, r.Latency.Milliseconds(), r.Error, r.CompletedAt)

	return scanStage1Row(row)
}

func (s *Stage1Store) Get(ctx context.Context, id string) (*models.Stage1Row, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+stage1Columns+` FROM stage1_rows WHERE id = $1`, id)
	return scanStage1Row(row)
}

// LatestForArticle returns the most recently created Stage1Row for an
// article, mirroring Article.LatestExtractionID (spec.md §4.6 "only the
// latest row is referenced").
func (s *Stage1Store) LatestForArticle(ctx context.Context, articleID string) (*models.Stage1Row, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+stage1Columns+` FROM stage1_rows
		WHERE article_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, articleID)
	return scanStage1Row(row)
}

const stage1Columns = `id, article_id, data, entity_count, event_count, overall_confidence,
	status, schema_version, prompt_hash, provider, model, tokens_in, tokens_out, latency_ms, error,
	created_at, completed_at`

func scanStage1Row(row pgx.Row) (*models.Stage1Row, error) {
	var r models.Stage1Row
	var dataJSON []byte
	var status string
	var latencyMs int64
	if err := row.Scan(
		&r.ID, &r.ArticleID, &dataJSON, &r.EntityCount, &r.EventCount, &r.OverallConfidence,
		&status, &r.SchemaVersion, &r.PromptHash, &r.Provider, &r.Model, &r.TokensIn, &r.TokensOut,
		&latencyMs, &r.Error, &r.CreatedAt, &r.CompletedAt,
	); err != nil {
		return nil, err
	}
	r.Status = models.Stage1Status(status)
	r.Latency = time.Duration(latencyMs) * time.Millisecond
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &r.Data); err != nil {
			return nil, fmt.Errorf("unmarshaling stage1 data: %w", err)
		}
	}
	return &r, nil
}
