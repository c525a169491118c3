package incident

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

type fakeActorRepo struct {
	byName  map[string]*models.Actor
	created []*models.Actor
	nextID  int
}

func newFakeActorRepo() *fakeActorRepo {
	return &fakeActorRepo{byName: map[string]*models.Actor{}}
}

func (f *fakeActorRepo) FindByCanonicalName(ctx context.Context, name string) (*models.Actor, error) {
	if a, ok := f.byName[name]; ok {
		return a, nil
	}
	return nil, assert.AnError
}

func (f *fakeActorRepo) SearchByAlias(ctx context.Context, alias string) ([]*models.Actor, error) {
	return nil, nil
}

func (f *fakeActorRepo) Create(ctx context.Context, a *models.Actor) (*models.Actor, error) {
	f.nextID++
	a.ID = fmt.Sprintf("actor-%d", f.nextID)
	f.byName[a.CanonicalName] = a
	f.created = append(f.created, a)
	return a, nil
}

type fakeIncidentRepo struct {
	created     *models.Incident
	actorLinks  []models.IncidentActorLink
	sourceLinks []string
	eventLinks  []string
}

func (f *fakeIncidentRepo) Create(ctx context.Context, in *models.Incident) (*models.Incident, error) {
	in.ID = "incident-1"
	f.created = in
	return in, nil
}

func (f *fakeIncidentRepo) LinkActor(ctx context.Context, incidentID, actorID string, role models.IncidentActorRole, confidence float64) error {
	f.actorLinks = append(f.actorLinks, models.IncidentActorLink{IncidentID: incidentID, ActorID: actorID, Role: role, Confidence: confidence})
	return nil
}

func (f *fakeIncidentRepo) LinkSource(ctx context.Context, incidentID, articleID string) error {
	f.sourceLinks = append(f.sourceLinks, articleID)
	return nil
}

func (f *fakeIncidentRepo) LinkEvent(ctx context.Context, incidentID, eventID string) error {
	f.eventLinks = append(f.eventLinks, eventID)
	return nil
}

func baseWriterInput() Input {
	return Input{
		ExtractedData: map[string]any{
			"offender_name": "Juan Perez",
			"state":         "TX",
			"city":          "Dallas",
			"date":          "2024-02-14",
			"incident_type": "dui_fatality",
		},
		Article:             Article{ID: "article-1", URL: "https://example.com/a"},
		ClassificationHints: []ClassificationHint{{DomainSlug: "immigration", CategorySlug: "crime", Confidence: 0.9}},
		ExtractedCategories: []string{"arrest"},
		Actors: []ActorInput{
			{Name: "Juan Perez", Type: models.ActorTypePerson, Role: models.RoleOffender, Confidence: 0.9},
			{Name: "ICE", Type: models.ActorTypeAgency, Role: models.RoleAgency, Confidence: 0.8},
		},
		RequiredFieldsBySchema: map[string][]string{"schema-1": {"date", "state", "incident_type"}},
	}
}

func TestCreateIncidentHappyPath(t *testing.T) {
	actors := newFakeActorRepo()
	incidents := &fakeIncidentRepo{}
	w := NewWriter(actors, incidents, nil)

	result, err := w.CreateIncident(context.Background(), baseWriterInput())
	require.NoError(t, err)
	assert.Equal(t, "incident-1", result.IncidentID)
	assert.Equal(t, models.LegacyCategoryCrime, result.Category)
	assert.Equal(t, 2, result.ActorsCreated)
	assert.Equal(t, "TX", incidents.created.State)
	assert.Equal(t, "dui-fatality", incidents.created.IncidentTypeID)
}

func TestCreateIncidentCanonicalizesAgency(t *testing.T) {
	actors := newFakeActorRepo()
	incidents := &fakeIncidentRepo{}
	w := NewWriter(actors, incidents, nil)

	_, err := w.CreateIncident(context.Background(), baseWriterInput())
	require.NoError(t, err)

	found := false
	for _, a := range actors.created {
		if a.CanonicalName == "U.S. Immigration and Customs Enforcement" {
			found = true
		}
	}
	assert.True(t, found, "ICE should canonicalize to its full agency name")
}

func TestCreateIncidentReusesExistingActor(t *testing.T) {
	actors := newFakeActorRepo()
	actors.byName["Juan Perez"] = &models.Actor{ID: "existing-actor", CanonicalName: "Juan Perez"}
	incidents := &fakeIncidentRepo{}
	w := NewWriter(actors, incidents, nil)

	result, err := w.CreateIncident(context.Background(), baseWriterInput())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ActorsCreated, "Juan Perez already existed; only ICE should be newly created")
}

func TestCreateIncidentMissingRequiredFieldErrors(t *testing.T) {
	actors := newFakeActorRepo()
	incidents := &fakeIncidentRepo{}
	w := NewWriter(actors, incidents, nil)

	in := baseWriterInput()
	delete(in.ExtractedData, "state")

	_, err := w.CreateIncident(context.Background(), in)
	require.Error(t, err)
	var missing *ErrMissingRequiredField
	assert.ErrorAs(t, err, &missing)
	assert.Equal(t, "state", missing.Field)
}

func TestDeriveLegacyCategoryFromSubcategory(t *testing.T) {
	in := Input{ExtractedCategories: []string{"deportation"}}
	assert.Equal(t, models.LegacyCategoryEnforcement, deriveLegacyCategory(in))

	in2 := Input{ExtractedCategories: []string{"prosecution"}}
	assert.Equal(t, models.LegacyCategoryCrime, deriveLegacyCategory(in2))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "dui-fatality", slugify("DUI Fatality"))
	assert.Equal(t, "", slugify(""))
}
