// Package incident implements the Incident Writer of spec.md §4.11:
// turning a merged extraction into a persisted Incident plus its actor
// and event links.
package incident

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// Geocoder resolves a free-text location to coordinates. Interface
// only per spec.md §4.11/Non-goals — no implementation ships with this
// module.
type Geocoder interface {
	Geocode(ctx context.Context, state, city string) (lat, lon float64, ok bool, err error)
}

// ActorRepo is the subset of storage.ActorStore the writer depends on.
type ActorRepo interface {
	FindByCanonicalName(ctx context.Context, name string) (*models.Actor, error)
	SearchByAlias(ctx context.Context, alias string) ([]*models.Actor, error)
	Create(ctx context.Context, a *models.Actor) (*models.Actor, error)
}

// IncidentRepo is the subset of storage.IncidentStore the writer
// depends on.
type IncidentRepo interface {
	Create(ctx context.Context, in *models.Incident) (*models.Incident, error)
	LinkActor(ctx context.Context, incidentID, actorID string, role models.IncidentActorRole, confidence float64) error
	LinkSource(ctx context.Context, incidentID, articleID string) error
	LinkEvent(ctx context.Context, incidentID, eventID string) error
}

// Article is the subset of article fields the writer needs.
type Article struct {
	ID        string
	URL       string
	SourceTier int
}

// ActorInput is one entry of extracted.actors[] (or a legacy flat
// field, promoted to this shape by the caller).
type ActorInput struct {
	Name       string
	Type       models.ActorType
	Role       models.IncidentActorRole
	Confidence float64
}

// Overrides lets a caller (e.g. a human reviewer) force specific
// derived fields instead of recomputing them.
type Overrides struct {
	DomainID   string
	CategoryID string
	Category   models.LegacyCategory
}

// Input is the full set of data create_incident needs (spec.md §4.11's
// `create_incident(extracted_data, article, category, overrides?,
// merge_info?)`).
type Input struct {
	ExtractedData        map[string]any
	Article              Article
	ClassificationHints  []ClassificationHint
	ExtractedCategories  []string // extracted.categories
	Actors               []ActorInput
	EventIDs             []string
	MergeInfo            *models.MergeInfo
	Overrides            *Overrides
	RequiredFieldsBySchema map[string][]string // schema_id -> required_fields, for merge_info.sources union
}

// ClassificationHint mirrors a Stage 1 classification hint.
type ClassificationHint struct {
	DomainSlug   string
	CategorySlug string
	Confidence   float64
}

// Result is create_incident's return value.
type Result struct {
	IncidentID    string
	ActorsCreated int
	Category      models.LegacyCategory
}

// legacyCategoryBySubcategory maps CJ subcategories to "crime" and CR
// subcategories to "enforcement" (spec.md §4.11).
var legacyCategoryBySubcategory = map[string]models.LegacyCategory{
	"prosecution":      models.LegacyCategoryCrime,
	"conviction":       models.LegacyCategoryCrime,
	"sentencing":       models.LegacyCategoryCrime,
	"arrest":           models.LegacyCategoryCrime,
	"enforcement-action": models.LegacyCategoryEnforcement,
	"detention":        models.LegacyCategoryEnforcement,
	"deportation":      models.LegacyCategoryEnforcement,
	"raid":             models.LegacyCategoryEnforcement,
}

// validatableRequiredFields is the writer's intersectable set (spec.md
// §4.11 "intersected with the writer's validatable set").
var validatableRequiredFields = map[string]bool{
	"date": true, "state": true, "incident_type": true,
	"victim_category": true, "outcome_category": true,
}

// agencyNormalization canonicalizes common agency name spellings before
// actor lookup (spec.md §4.11 "canonicalize agencies via a
// normalization table").
var agencyNormalization = map[string]string{
	"ice":       "U.S. Immigration and Customs Enforcement",
	"i.c.e.":    "U.S. Immigration and Customs Enforcement",
	"cbp":       "U.S. Customs and Border Protection",
	"dhs":       "U.S. Department of Homeland Security",
	"pd":        "Police Department",
}

// ErrMissingRequiredField is returned when a validatable required field
// the merged schemas call for is absent from ExtractedData.
type ErrMissingRequiredField struct {
	Field string
}

func (e *ErrMissingRequiredField) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// Writer implements create_incident.
type Writer struct {
	actors    ActorRepo
	incidents IncidentRepo
	geocoder  Geocoder // may be nil; lat/lon left unset if so
}

// NewWriter constructs a Writer. geocoder may be nil.
func NewWriter(actors ActorRepo, incidents IncidentRepo, geocoder Geocoder) *Writer {
	return &Writer{actors: actors, incidents: incidents, geocoder: geocoder}
}

// CreateIncident implements spec.md §4.11's contract.
func (w *Writer) CreateIncident(ctx context.Context, in Input) (*Result, error) {
	if err := w.validateRequiredFields(in); err != nil {
		return nil, err
	}

	legacyCategory := deriveLegacyCategory(in)
	domainID, categoryID := w.deriveDomainCategory(in, legacyCategory)

	incidentType := stringField(in.ExtractedData, "incident_type")
	if incidentType == "" {
		incidentType = inferIncidentType(in.ExtractedData)
	}

	incidentRecord := &models.Incident{
		Category:                  legacyCategory,
		DomainID:                  domainID,
		CategoryID:                categoryID,
		Date:                      parseDate(stringField(in.ExtractedData, "date")),
		State:                     stringField(in.ExtractedData, "state"),
		City:                      stringField(in.ExtractedData, "city"),
		IncidentTypeID:            slugify(incidentType),
		Description:               stringField(in.ExtractedData, "description"),
		SourceURL:                 in.Article.URL,
		SourceTier:                in.Article.SourceTier,
		VictimName:                stringField(in.ExtractedData, "victim_name"),
		OffenderName:              stringField(in.ExtractedData, "offender_name"),
		OffenderImmigrationStatus: stringField(in.ExtractedData, "offender_immigration_status"),
		PriorDeportations:         intField(in.ExtractedData, "prior_deportations"),
		GangAffiliation:           stringField(in.ExtractedData, "gang_affiliation"),
		Tags:                      deriveTags(in, incidentType),
		CustomFields:              derivePolicyContext(in.ExtractedData),
		CurationStatus:            models.CurationPending,
		ExtractionConfidence:      floatField(in.ExtractedData, "overall_confidence"),
	}

	if w.geocoder != nil {
		if lat, lon, ok, err := w.geocoder.Geocode(ctx, incidentRecord.State, incidentRecord.City); err == nil && ok {
			incidentRecord.Latitude = &lat
			incidentRecord.Longitude = &lon
		}
	}

	created, err := w.incidents.Create(ctx, incidentRecord)
	if err != nil {
		return nil, fmt.Errorf("creating incident: %w", err)
	}

	if in.Article.ID != "" {
		if err := w.incidents.LinkSource(ctx, created.ID, in.Article.ID); err != nil {
			return nil, fmt.Errorf("linking source: %w", err)
		}
	}
	for _, eventID := range in.EventIDs {
		if err := w.incidents.LinkEvent(ctx, created.ID, eventID); err != nil {
			return nil, fmt.Errorf("linking event: %w", err)
		}
	}

	actorsCreated, err := w.linkActors(ctx, created.ID, in.Actors)
	if err != nil {
		return nil, err
	}

	return &Result{IncidentID: created.ID, ActorsCreated: actorsCreated, Category: legacyCategory}, nil
}

// validateRequiredFields implements spec.md §4.11's union-then-
// intersect validation.
func (w *Writer) validateRequiredFields(in Input) error {
	union := map[string]bool{}
	for _, fields := range in.RequiredFieldsBySchema {
		for _, f := range fields {
			if validatableRequiredFields[f] {
				union[f] = true
			}
		}
	}

	var fields []string
	for f := range union {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		if !hasNonEmptyField(in.ExtractedData, f) {
			return &ErrMissingRequiredField{Field: f}
		}
	}
	return nil
}

func hasNonEmptyField(data map[string]any, field string) bool {
	v, ok := data[field]
	if !ok {
		return false
	}
	s, ok := v.(string)
	if ok {
		return strings.TrimSpace(s) != ""
	}
	return v != nil
}

// deriveLegacyCategory returns the override category when one is set,
// otherwise the first mapping-table hit among the extracted categories
// and then the classification hints, falling back to crime.
func deriveLegacyCategory(in Input) models.LegacyCategory {
	if in.Overrides != nil && in.Overrides.Category != "" {
		return in.Overrides.Category
	}
	for _, cat := range in.ExtractedCategories {
		if legacy, ok := legacyCategoryBySubcategory[strings.ToLower(cat)]; ok {
			return legacy
		}
	}
	for _, hint := range in.ClassificationHints {
		if legacy, ok := legacyCategoryBySubcategory[strings.ToLower(hint.CategorySlug)]; ok {
			return legacy
		}
	}
	return models.LegacyCategoryCrime
}

// deriveDomainCategory implements spec.md §4.11's priority chain:
// merge_info source category > classification_hints[0] >
// extracted.categories[0] > legacy category, falling back to
// immigration/legacy.
func (w *Writer) deriveDomainCategory(in Input, legacy models.LegacyCategory) (domainID, categoryID string) {
	if in.Overrides != nil && (in.Overrides.DomainID != "" || in.Overrides.CategoryID != "") {
		return in.Overrides.DomainID, in.Overrides.CategoryID
	}
	if in.MergeInfo != nil && len(in.MergeInfo.Sources) > 0 {
		base := in.MergeInfo.Sources[0]
		if base.DomainSlug != "" {
			return base.DomainSlug, ""
		}
	}
	if len(in.ClassificationHints) > 0 {
		return in.ClassificationHints[0].DomainSlug, in.ClassificationHints[0].CategorySlug
	}
	if len(in.ExtractedCategories) > 0 {
		return in.ExtractedCategories[0], ""
	}
	return "immigration", string(legacy)
}

// deriveTags unions incident.incident_types with extracted.categories.
func deriveTags(in Input, incidentType string) []string {
	seen := map[string]bool{}
	var tags []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		tags = append(tags, v)
	}
	add(incidentType)
	for _, c := range in.ExtractedCategories {
		add(c)
	}
	sort.Strings(tags)
	return tags
}

// policyContextKeys whitelists the fields that survive into
// custom_fields ("filtered policy_context", spec.md §4.11).
var policyContextKeys = []string{
	"sanctuary_jurisdiction", "policy_name", "policy_type", "enforcement_priority",
}

func derivePolicyContext(data map[string]any) map[string]any {
	raw, ok := data["policy_context"].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	out := map[string]any{}
	for _, k := range policyContextKeys {
		if v, ok := raw[k]; ok {
			out[k] = v
		}
	}
	return out
}

// linkActors iterates extracted.actors[] (promoted by the caller from
// legacy flat fields when absent), canonicalizing agencies and
// resolving or creating each one.
func (w *Writer) linkActors(ctx context.Context, incidentID string, actors []ActorInput) (int, error) {
	created := 0
	for _, a := range actors {
		name := canonicalizeAgency(a.Name)
		actor, err := w.resolveOrCreateActor(ctx, name, a.Type)
		if err != nil {
			return created, err
		}
		if actor.CreatedFresh {
			created++
		}
		if err := w.incidents.LinkActor(ctx, incidentID, actor.ID, a.Role, a.Confidence); err != nil {
			return created, fmt.Errorf("linking actor %s: %w", name, err)
		}
	}
	return created, nil
}

type resolvedActor struct {
	ID           string
	CreatedFresh bool
}

func (w *Writer) resolveOrCreateActor(ctx context.Context, name string, actorType models.ActorType) (resolvedActor, error) {
	if existing, err := w.actors.FindByCanonicalName(ctx, name); err == nil && existing != nil {
		return resolvedActor{ID: existing.ID}, nil
	}
	if matches, err := w.actors.SearchByAlias(ctx, name); err == nil && len(matches) > 0 {
		return resolvedActor{ID: matches[0].ID}, nil
	}
	created, err := w.actors.Create(ctx, &models.Actor{CanonicalName: name, Type: actorType})
	if err != nil {
		return resolvedActor{}, fmt.Errorf("creating actor %s: %w", name, err)
	}
	return resolvedActor{ID: created.ID, CreatedFresh: true}, nil
}

func canonicalizeAgency(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := agencyNormalization[lower]; ok {
		return canonical
	}
	return name
}

func stringField(data map[string]any, field string) string {
	if v, ok := data[field].(string); ok {
		return v
	}
	return ""
}

func intField(data map[string]any, field string) int {
	switch v := data[field].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func floatField(data map[string]any, field string) float64 {
	switch v := data[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// inferIncidentType falls back to charges[0] stringified (spec.md §9
// open question: "Current specification says coerce").
func inferIncidentType(data map[string]any) string {
	for _, field := range []string{"charges", "violation_type", "case_type", "event_type"} {
		v, ok := data[field]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case []any:
			if len(val) > 0 {
				return fmt.Sprintf("%v", val[0])
			}
		case string:
			if val != "" {
				return val
			}
		}
	}
	return ""
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastWasDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasDash = false
		default:
			if !lastWasDash {
				b.WriteRune('-')
				lastWasDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
