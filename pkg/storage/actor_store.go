package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// ActorStore persists canonicalized Actor rows.
type ActorStore struct {
	pool *pgxpool.Pool
}

// NewActorStore wraps a Client's pool as an ActorStore.
func NewActorStore(c *Client) *ActorStore {
	return &ActorStore{pool: c.Pool}
}

func (s *ActorStore) Create(ctx context.Context, a *models.Actor) (*models.Actor, error) {
	aliasesJSON, _ := json.Marshal(a.Aliases)
	personJSON, _ := json.Marshal(a.Person)
	orgJSON, _ := json.Marshal(a.Org)
	externalIDsJSON, _ := json.Marshal(a.ExternalIDs)
	mergedFromJSON, _ := json.Marshal(a.MergedFrom)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO actors (canonical_name, type, aliases, person, org, external_ids, is_merged, merged_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+actorColumns,
		a.CanonicalName, string(a.Type), aliasesJSON, nullableJSON(personJSON), nullableJSON(orgJSON),
		externalIDsJSON, a.IsMerged, mergedFromJSON)

	return scanActor(row)
}

func (s *ActorStore) Get(ctx context.Context, id string) (*models.Actor, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE id = $1`, id)
	return scanActor(row)
}

// FindByCanonicalName looks up a non-merged actor by exact normalized
// name match, the first tier of the entity match cascade
// (models.EntityTierExactNormalized).
func (s *ActorStore) FindByCanonicalName(ctx context.Context, name string) (*models.Actor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+actorColumns+` FROM actors WHERE canonical_name = $1 AND NOT is_merged
	`, name)
	a, err := scanActor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("actor with canonical name %q: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return a, nil
}

// SearchByAlias returns non-merged actors whose alias list contains
// name, supporting the alias-match entity tier.
func (s *ActorStore) SearchByAlias(ctx context.Context, name string) ([]*models.Actor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+actorColumns+` FROM actors
		WHERE NOT is_merged AND aliases @> $1
	`, []byte(`["`+name+`"]`))
	if err != nil {
		return nil, fmt.Errorf("searching actors by alias: %w", err)
	}
	defer rows.Close()

	var out []*models.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Merge marks loserID as merged into winnerID. Non-destructive: the
// loser row persists with IsMerged=true (hidden from the name and alias
// lookups), and its incident links are moved to the winner (spec.md
// §4.8 "actors are never deleted, only merged").
func (s *ActorStore) Merge(ctx context.Context, winnerID, loserID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning merge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE actors SET is_merged = true, merged_from = merged_from || to_jsonb($2::text)
		WHERE id = $1
	`, loserID, loserID); err != nil {
		return fmt.Errorf("marking actor %s merged: %w", loserID, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE actors SET merged_from = merged_from || to_jsonb($2::text) WHERE id = $1
	`, winnerID, loserID); err != nil {
		return fmt.Errorf("recording merge lineage on %s: %w", winnerID, err)
	}

	// Re-point incident links from the loser to the winner. A link with
	// the same (incident, role) already on the winner is left alone
	// rather than producing a duplicate-key error.
	if _, err := tx.Exec(ctx, `
		UPDATE incident_actor_links SET actor_id = $1
		WHERE actor_id = $2
		  AND NOT EXISTS (
		      SELECT 1 FROM incident_actor_links existing
		      WHERE existing.actor_id = $1
		        AND existing.incident_id = incident_actor_links.incident_id
		        AND existing.role = incident_actor_links.role
		  )
	`, winnerID, loserID); err != nil {
		return fmt.Errorf("re-pointing incident links: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM incident_actor_links WHERE actor_id = $1`, loserID); err != nil {
		return fmt.Errorf("clearing residual loser links: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing actor merge: %w", err)
	}
	return nil
}

const actorColumns = `id, canonical_name, type, aliases, person, org, external_ids, is_merged, merged_from`

func scanActor(row pgx.Row) (*models.Actor, error) {
	var a models.Actor
	var actorType string
	var aliasesJSON, personJSON, orgJSON, externalIDsJSON, mergedFromJSON []byte

	if err := row.Scan(&a.ID, &a.CanonicalName, &actorType, &aliasesJSON, &personJSON, &orgJSON,
		&externalIDsJSON, &a.IsMerged, &mergedFromJSON); err != nil {
		return nil, err
	}
	a.Type = models.ActorType(actorType)
	if err := json.Unmarshal(aliasesJSON, &a.Aliases); err != nil {
		return nil, fmt.Errorf("unmarshaling aliases: %w", err)
	}
	if len(personJSON) > 0 {
		if err := json.Unmarshal(personJSON, &a.Person); err != nil {
			return nil, fmt.Errorf("unmarshaling person: %w", err)
		}
	}
	if len(orgJSON) > 0 {
		if err := json.Unmarshal(orgJSON, &a.Org); err != nil {
			return nil, fmt.Errorf("unmarshaling org: %w", err)
		}
	}
	if err := json.Unmarshal(externalIDsJSON, &a.ExternalIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling external_ids: %w", err)
	}
	if err := json.Unmarshal(mergedFromJSON, &a.MergedFrom); err != nil {
		return nil, fmt.Errorf("unmarshaling merged_from: %w", err)
	}
	return &a, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return b
}
