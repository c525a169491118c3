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

// IncidentStore persists Incident rows and their Actor/Event/Article
// link tables.
type IncidentStore struct {
	pool *pgxpool.Pool
}

// NewIncidentStore wraps a Client's pool as an IncidentStore.
func NewIncidentStore(c *Client) *IncidentStore {
	return &IncidentStore{pool: c.Pool}
}

func (s *IncidentStore) Create(ctx context.Context, in *models.Incident) (*models.Incident, error) {
	tagsJSON, _ := json.Marshal(in.Tags)
	customJSON, _ := json.Marshal(in.CustomFields)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO incidents (category, domain_id, category_id, date, state, city, incident_type_id,
			description, source_url, source_tier, victim_name, offender_name, offender_immigration_status,
			prior_deportations, gang_affiliation, tags, custom_fields, latitude, longitude,
			curation_status, extraction_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING `+incidentColumns,
		string(in.Category), nullableUUID(in.DomainID), nullableUUID(in.CategoryID), in.Date, in.State, in.City,
		in.IncidentTypeID, in.Description, in.SourceURL, in.SourceTier, in.VictimName, in.OffenderName,
		in.OffenderImmigrationStatus, in.PriorDeportations, in.GangAffiliation, tagsJSON, customJSON,
		in.Latitude, in.Longitude, string(in.CurationStatus), in.ExtractionConfidence)

	return scanIncident(row)
}

func (s *IncidentStore) Get(ctx context.Context, id string) (*models.Incident, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id)
	in, err := scanIncident(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return in, nil
}

// Update rewrites an incident's mutable fields in place; the row is
// updated, never replaced. No pipeline stage in this module calls it.
func (s *IncidentStore) Update(ctx context.Context, in *models.Incident) (*models.Incident, error) {
	tagsJSON, _ := json.Marshal(in.Tags)
	customJSON, _ := json.Marshal(in.CustomFields)

	row := s.pool.QueryRow(ctx, `
		UPDATE incidents SET
			category = $2, domain_id = $3, category_id = $4, date = $5, state = $6, city = $7,
			incident_type_id = $8, description = $9, source_url = $10, source_tier = $11,
			victim_name = $12, offender_name = $13, offender_immigration_status = $14,
			prior_deportations = $15, gang_affiliation = $16, tags = $17, custom_fields = $18,
			latitude = $19, longitude = $20, curation_status = $21, extraction_confidence = $22,
			updated_at = now()
		WHERE id = $1
		RETURNING `+incidentColumns,
		in.ID, string(in.Category), nullableUUID(in.DomainID), nullableUUID(in.CategoryID), in.Date,
		in.State, in.City, in.IncidentTypeID, in.Description, in.SourceURL, in.SourceTier,
		in.VictimName, in.OffenderName, in.OffenderImmigrationStatus, in.PriorDeportations,
		in.GangAffiliation, tagsJSON, customJSON, in.Latitude, in.Longitude,
		string(in.CurationStatus), in.ExtractionConfidence)

	return scanIncident(row)
}

// SetCurationStatus transitions an incident through the approval
// lifecycle (spec.md §4.10).
func (s *IncidentStore) SetCurationStatus(ctx context.Context, id string, status models.CurationStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE incidents SET curation_status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	return err
}

// FindCandidatesNear returns incidents in the same state within
// windowDays of date, a coarse SQL pre-filter the cross-source dedup
// cascade narrows further with in-process fuzzy matching (spec.md
// §4.9 "SQL pre-filter incident_actors ... by state + |date -
// incident.date| <= 30 days").
func (s *IncidentStore) FindCandidatesNear(ctx context.Context, state string, date time.Time, windowDays int, limit int) ([]*models.Incident, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+incidentColumns+` FROM incidents
		WHERE state = $1 AND abs(extract(epoch from (date - $2::date)) / 86400) <= $3
		ORDER BY date DESC
		LIMIT $4
	`, state, date, windowDays, limit)
	if err != nil {
		return nil, fmt.Errorf("finding candidate incidents: %w", err)
	}
	defer rows.Close()

	var out []*models.Incident
	for rows.Next() {
		in, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// FindBySourceURL returns the incident with an exact source_url match,
// ErrNotFound if none exists — the cheapest tier of the cross-source
// dedup cascade (spec.md §4.9 "exact source_url").
func (s *IncidentStore) FindBySourceURL(ctx context.Context, url string) (*models.Incident, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE source_url = $1 LIMIT 1`, url)
	in, err := scanIncident(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return in, nil
}

// ListMissingMergeInfo returns up to limit incidents whose custom_fields
// has no "merge_info" key, oldest first — the candidate set for the
// backfill-merge-info maintenance pass (spec.md §6.5).
func (s *IncidentStore) ListMissingMergeInfo(ctx context.Context, limit int) ([]*models.Incident, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+incidentColumns+` FROM incidents
		WHERE NOT (custom_fields ? 'merge_info')
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing incidents missing merge_info: %w", err)
	}
	defer rows.Close()

	var out []*models.Incident
	for rows.Next() {
		in, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// SetMergeInfo stamps a synthesized merge_info onto a legacy incident's
// custom_fields (spec.md §6.1's rewrite note: pre-merge-info incidents
// are backfilled with a single-source merge_info rather than left
// absent, so downstream readers can treat the field as always present).
func (s *IncidentStore) SetMergeInfo(ctx context.Context, id string, mergeInfo *models.MergeInfo) error {
	b, err := json.Marshal(mergeInfo)
	if err != nil {
		return fmt.Errorf("marshaling merge_info: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE incidents SET custom_fields = custom_fields || jsonb_build_object('merge_info', $2::jsonb), updated_at = now()
		WHERE id = $1
	`, id, b)
	return err
}

// LinkActor associates an actor with an incident under role, upserting
// confidence if the link already exists.
func (s *IncidentStore) LinkActor(ctx context.Context, incidentID, actorID string, role models.IncidentActorRole, confidence float64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO incident_actor_links (incident_id, actor_id, role, confidence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (incident_id, actor_id, role) DO UPDATE SET confidence = $4
	`, incidentID, actorID, string(role), confidence)
	return err
}

// LinkSource associates an article as a source of an incident
// (spec.md §4.8 "multiple articles may corroborate one incident").
func (s *IncidentStore) LinkSource(ctx context.Context, incidentID, articleID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO incident_source_links (incident_id, article_id)
		VALUES ($1, $2)
		ON CONFLICT (incident_id, article_id) DO NOTHING
	`, incidentID, articleID)
	return err
}

// LinkEvent associates an incident with an Event cluster
// (spec.md §4.12 "pattern detection").
func (s *IncidentStore) LinkEvent(ctx context.Context, incidentID, eventID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO incident_event_links (incident_id, event_id)
		VALUES ($1, $2)
		ON CONFLICT (incident_id, event_id) DO NOTHING
	`, incidentID, eventID)
	return err
}

const incidentColumns = `id, category, domain_id, category_id, date, state, city, incident_type_id,
	description, source_url, source_tier, victim_name, offender_name, offender_immigration_status,
	prior_deportations, gang_affiliation, tags, custom_fields, latitude, longitude,
	curation_status, extraction_confidence, created_at, updated_at`

func scanIncident(row pgx.Row) (*models.Incident, error) {
	var in models.Incident
	var category, curationStatus string
	var domainID, categoryID *string
	var tagsJSON, customJSON []byte

	if err := row.Scan(
		&in.ID, &category, &domainID, &categoryID, &in.Date, &in.State, &in.City, &in.IncidentTypeID,
		&in.Description, &in.SourceURL, &in.SourceTier, &in.VictimName, &in.OffenderName,
		&in.OffenderImmigrationStatus, &in.PriorDeportations, &in.GangAffiliation, &tagsJSON, &customJSON,
		&in.Latitude, &in.Longitude, &curationStatus, &in.ExtractionConfidence, &in.CreatedAt, &in.UpdatedAt,
	); err != nil {
		return nil, err
	}

	in.Category = models.LegacyCategory(category)
	in.CurationStatus = models.CurationStatus(curationStatus)
	if domainID != nil {
		in.DomainID = *domainID
	}
	if categoryID != nil {
		in.CategoryID = *categoryID
	}
	if err := json.Unmarshal(tagsJSON, &in.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}
	if err := json.Unmarshal(customJSON, &in.CustomFields); err != nil {
		return nil, fmt.Errorf("unmarshaling custom_fields: %w", err)
	}
	return &in, nil
}
