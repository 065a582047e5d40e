package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storywoven/pkg/diff"
	"storywoven/pkg/inference"
	"storywoven/pkg/inference/inferencetest"
	"storywoven/pkg/schema"
	"storywoven/pkg/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return st
}

func seedProject(t *testing.T, st store.Store, p *schema.Project) {
	t.Helper()
	require.NoError(t, st.WriteProject(context.Background(), p))
}

const extractionJSON = `{
	"characters": [
		{"name": "Abby", "role": "protagonist", "type": "human", "first_seen_page": 1},
		{"name": "Waffles", "role": "pet", "type": "dog", "breed": "miniature dachshund", "first_seen_page": 2,
		 "visual": {"size": "small", "colors": ["brown"], "distinctive_features": "long body, short legs"}}
	],
	"groups": [
		{"name": "the grandkids", "singular": "grandkid", "detected_term": "the grandkids", "count_source": "unknown", "first_seen_page": 4}
	],
	"props": [
		{"name": "red kite", "visual": "diamond-shaped red kite", "first_seen_page": 3}
	],
	"environments": [
		{"name": "Grandma's backyard", "owner": "Grandma", "first_seen_page": 1}
	]
}`

func storyPages() []schema.StoryPage {
	return []schema.StoryPage{
		{Page: 1, Text: "Abby woke up early."},
		{Page: 2, Text: "Waffles the dachshund barked."},
	}
}

func TestFinalizeStoryBuildsRegistry(t *testing.T) {
	st := newTestStore(t)
	seedProject(t, st, &schema.Project{ID: "p1", ChildName: "Abby", Pages: storyPages()})

	fake := &inferencetest.Fake{ExtractFunc: inferencetest.BySchema(map[string]string{
		"story_registry": extractionJSON,
	})}
	svc := &Service{Adapter: fake, Store: st}

	res, err := svc.FinalizeStory(context.Background(), "p1", nil)
	require.NoError(t, err)
	assert.True(t, res.Locked)

	reg := res.Registry
	require.Contains(t, reg.Characters, "abby")
	require.Contains(t, reg.Characters, "waffles")
	assert.Equal(t, "miniature dachshund", reg.Characters["waffles"].Breed)
	assert.Equal(t, schema.VisualSourceAuto, reg.Characters["waffles"].VisualSource)
	assert.Contains(t, reg.Groups, "the_grandkids")
	assert.Contains(t, reg.Props, "red_kite")
	assert.Contains(t, reg.Environments, "grandma_s_backyard")

	// protagonist identified by child name, visual source forced to user
	assert.Equal(t, schema.RoleProtagonist, reg.Characters["abby"].Role)
	assert.Equal(t, schema.VisualSourceUser, reg.Characters["abby"].VisualSource)

	// persisted
	p, err := st.LoadProject(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, p.StoryLocked)
	require.NotNil(t, p.Registry)
	assert.Contains(t, p.Registry.Characters, "waffles")
}

func TestFinalizeStoryDemotesExtraProtagonists(t *testing.T) {
	st := newTestStore(t)
	seedProject(t, st, &schema.Project{ID: "p1", ChildName: "Abby", Pages: storyPages()})

	fake := &inferencetest.Fake{ExtractFunc: inferencetest.BySchema(map[string]string{
		"story_registry": `{"characters": [
			{"name": "Abby", "role": "protagonist"},
			{"name": "Ben", "role": "protagonist"}
		]}`,
	})}
	svc := &Service{Adapter: fake, Store: st}

	res, err := svc.FinalizeStory(context.Background(), "p1", nil)
	require.NoError(t, err)
	assert.Equal(t, schema.RoleProtagonist, res.Registry.Characters["abby"].Role)
	assert.Equal(t, schema.RoleOther, res.Registry.Characters["ben"].Role)
}

func TestFinalizeStoryMergesModelCatalog(t *testing.T) {
	st := newTestStore(t)
	seedProject(t, st, &schema.Project{
		ID:        "p1",
		ChildName: "Abby",
		Pages:     storyPages(),
		CharacterModels: []schema.CharacterModel{
			{CharacterKey: "abby", ModelURL: "http://files/abby.png"},
			{CharacterKey: "grandpa_joe", ModelURL: "http://files/joe.png"},
		},
	})

	fake := &inferencetest.Fake{ExtractFunc: inferencetest.BySchema(map[string]string{
		"story_registry": `{"characters": [{"name": "Abby", "role": "protagonist", "visual": {"hair": "brown"}}]}`,
	})}
	svc := &Service{Adapter: fake, Store: st}

	res, err := svc.FinalizeStory(context.Background(), "p1", nil)
	require.NoError(t, err)

	abby := res.Registry.Characters["abby"]
	assert.True(t, abby.HasModel)
	assert.Equal(t, schema.VisualSourceUser, abby.VisualSource)
	assert.Nil(t, abby.Visual, "having a model supersedes extracted visuals")
	assert.Equal(t, "http://files/abby.png", abby.ModelURL)

	// catalog entry the extraction missed becomes a stub
	joe, ok := res.Registry.Characters["grandpa_joe"]
	require.True(t, ok)
	assert.True(t, joe.HasModel)
	assert.Equal(t, schema.RoleOther, joe.Role)
}

func TestFinalizeStoryCarriesLockedCharacters(t *testing.T) {
	st := newTestStore(t)
	lockedAt := time.Now().UTC()
	prior := schema.NewRegistry()
	prior.Characters["abby"] = schema.Character{
		Name: "Abby", Role: schema.RoleProtagonist,
		HasModel: true, VisualSource: schema.VisualSourceUser,
		ModelURL: "http://files/abby.png", LockedAt: &lockedAt,
	}
	seedProject(t, st, &schema.Project{ID: "p1", ChildName: "Abby", Pages: storyPages(), Registry: prior, StoryLocked: true})

	fake := &inferencetest.Fake{ExtractFunc: inferencetest.BySchema(map[string]string{
		"story_registry": `{"characters": [{"name": "Abby", "role": "other", "visual": {"hair": "green"}}]}`,
	})}
	svc := &Service{Adapter: fake, Store: st}

	res, err := svc.FinalizeStory(context.Background(), "p1", nil)
	require.NoError(t, err)

	abby := res.Registry.Characters["abby"]
	assert.True(t, abby.Locked())
	assert.Nil(t, abby.Visual, "re-extraction must not overwrite a locked character")
	assert.Equal(t, "http://files/abby.png", abby.ModelURL)
	assert.Equal(t, schema.RoleProtagonist, abby.Role)
}

func TestFinalizeStoryLockedProtagonistWinsOverChildNameMatch(t *testing.T) {
	st := newTestStore(t)
	lockedAt := time.Now().UTC()
	prior := schema.NewRegistry()
	prior.Characters["abby_rose"] = schema.Character{
		Name: "Abby Rose", Role: schema.RoleProtagonist,
		HasModel: true, VisualSource: schema.VisualSourceUser,
		ModelURL: "http://files/abby.png", LockedAt: &lockedAt,
	}
	seedProject(t, st, &schema.Project{ID: "p1", ChildName: "Abby", Pages: storyPages(), Registry: prior, StoryLocked: true})

	fake := &inferencetest.Fake{ExtractFunc: inferencetest.BySchema(map[string]string{
		"story_registry": `{"characters": [
			{"name": "Abby Rose", "role": "protagonist"},
			{"name": "Abby", "role": "protagonist"}
		]}`,
	})}
	svc := &Service{Adapter: fake, Store: st}

	res, err := svc.FinalizeStory(context.Background(), "p1", nil)
	require.NoError(t, err)

	locked := res.Registry.Characters["abby_rose"]
	assert.Equal(t, schema.RoleProtagonist, locked.Role, "a locked protagonist stays the protagonist")
	assert.True(t, locked.Locked())
	assert.Equal(t, schema.RoleOther, res.Registry.Characters["abby"].Role)
	assert.Equal(t, diff.Unchanged, res.Diff.CharacterState("abby_rose"))
}

func TestFinalizeStoryDuplicateCharactersUnionTraits(t *testing.T) {
	st := newTestStore(t)
	seedProject(t, st, &schema.Project{ID: "p1", ChildName: "Abby", Pages: storyPages()})

	fake := &inferencetest.Fake{ExtractFunc: inferencetest.BySchema(map[string]string{
		"story_registry": `{"characters": [
			{"name": "Abby", "role": "protagonist", "traits": ["curious"]},
			{"name": "abby", "role": "other", "traits": ["brave", "Curious"]}
		]}`,
	})}
	svc := &Service{Adapter: fake, Store: st}

	res, err := svc.FinalizeStory(context.Background(), "p1", nil)
	require.NoError(t, err)
	require.Len(t, res.Registry.Characters, 1)
	assert.ElementsMatch(t, []string{"curious", "brave"}, res.Registry.Characters["abby"].Traits)
}

func TestFinalizeStoryPropCharacterCollision(t *testing.T) {
	st := newTestStore(t)
	seedProject(t, st, &schema.Project{ID: "p1", ChildName: "Abby", Pages: storyPages()})

	fake := &inferencetest.Fake{ExtractFunc: inferencetest.BySchema(map[string]string{
		"story_registry": `{
			"characters": [{"name": "Waffles", "role": "pet", "type": "dog"}, {"name": "Abby", "role": "protagonist"}],
			"props": [{"name": "Waffles"}]
		}`,
	})}
	svc := &Service{Adapter: fake, Store: st}

	res, err := svc.FinalizeStory(context.Background(), "p1", nil)
	require.NoError(t, err)
	assert.Contains(t, res.Registry.Characters, "waffles")
	assert.NotContains(t, res.Registry.Props, "waffles")
}

func TestFinalizeStoryMalformedOutput(t *testing.T) {
	st := newTestStore(t)
	seedProject(t, st, &schema.Project{ID: "p1", ChildName: "Abby", Pages: storyPages()})

	fake := &inferencetest.Fake{ExtractFunc: inferencetest.BySchema(map[string]string{
		"story_registry": `{"characters": "not-a-list"}`,
	})}
	svc := &Service{Adapter: fake, Store: st}

	_, err := svc.FinalizeStory(context.Background(), "p1", nil)
	require.ErrorIs(t, err, inference.ErrMalformedOutput)
}

func TestFinalizeStoryRequiresPages(t *testing.T) {
	st := newTestStore(t)
	seedProject(t, st, &schema.Project{ID: "p1", ChildName: "Abby"})

	svc := &Service{Adapter: &inferencetest.Fake{}, Store: st}
	_, err := svc.FinalizeStory(context.Background(), "p1", nil)
	require.ErrorIs(t, err, schema.ErrInvalidInput)
}
