package story

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storywoven/pkg/inference/inferencetest"
	"storywoven/pkg/registry"
	"storywoven/pkg/schema"
	"storywoven/pkg/store"
)

type memStorage struct {
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Put(_ context.Context, path string, data []byte, _ string) (string, error) {
	m.objects[path] = data
	return "http://files/" + path, nil
}

func (m *memStorage) Get(_ context.Context, path string) ([]byte, error) {
	data, ok := m.objects[path]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func newTestService(t *testing.T, fake *inferencetest.Fake) (*Service, store.Store, *memStorage) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	objects := newMemStorage()
	reg := &registry.Service{Adapter: fake, Store: st}
	svc := NewService(context.Background(), fake, st, objects, reg)
	return svc, st, objects
}

func TestGenerateStoryIdeasCreatesProject(t *testing.T) {
	fake := &inferencetest.Fake{ExtractFunc: inferencetest.BySchema(map[string]string{
		"story_ideas": `{"ideas": [
			{"title": "Abby and the Kite", "blurb": "A windy day adventure."},
			{"title": "Waffles Lost and Found", "blurb": "A small dog gets lost."}
		]}`,
	})}
	svc, st, _ := newTestService(t, fake)

	p, err := svc.GenerateStoryIdeas(context.Background(), IdeasInput{
		ChildName: "Abby", Interests: "kites, dogs", OwnerID: "owner-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "owner-1", p.OwnerID)
	require.Len(t, p.Ideas, 2)

	saved, err := st.LoadProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Abby", saved.ChildName)
	assert.Len(t, saved.Ideas, 2)
}

func TestGenerateStoryIdeasRequiresChildName(t *testing.T) {
	svc, _, _ := newTestService(t, &inferencetest.Fake{})
	_, err := svc.GenerateStoryIdeas(context.Background(), IdeasInput{})
	require.ErrorIs(t, err, schema.ErrInvalidInput)
}

func TestWriteStory(t *testing.T) {
	fake := &inferencetest.Fake{ExtractFunc: inferencetest.BySchema(map[string]string{
		"story_manuscript": `{"title": "Abby and the Kite", "pages": [
			{"page": 7, "text": "Abby found a kite."},
			{"page": 9, "text": "The wind picked up."}
		]}`,
	})}
	svc, st, _ := newTestService(t, fake)

	seed := &schema.Project{
		ID: "p1", ChildName: "Abby",
		Ideas: []schema.StoryIdea{{Title: "Abby and the Kite", Blurb: "A windy day adventure."}},
	}
	require.NoError(t, st.WriteProject(context.Background(), seed))

	p, err := svc.WriteStory(context.Background(), WriteInput{ProjectID: "p1", Idea: "abby and the kite"})
	require.NoError(t, err)
	assert.Equal(t, "Abby and the Kite", p.Title)
	require.Len(t, p.Pages, 2)
	assert.Equal(t, 1, p.Pages[0].Page, "pages renumber contiguously from 1")
	assert.Equal(t, 2, p.Pages[1].Page)
	require.NotNil(t, p.ChosenIdea)
}

func TestWriteStoryRejectsLockedProject(t *testing.T) {
	svc, st, _ := newTestService(t, &inferencetest.Fake{})
	require.NoError(t, st.WriteProject(context.Background(), &schema.Project{
		ID: "p1", ChildName: "Abby", StoryLocked: true,
		Ideas: []schema.StoryIdea{{Title: "X", Blurb: "y"}},
	}))

	_, err := svc.WriteStory(context.Background(), WriteInput{ProjectID: "p1", Idea: "X"})
	require.ErrorIs(t, err, schema.ErrLocked)
}

func TestWriteStoryUnknownIdea(t *testing.T) {
	svc, st, _ := newTestService(t, &inferencetest.Fake{})
	require.NoError(t, st.WriteProject(context.Background(), &schema.Project{ID: "p1", ChildName: "Abby"}))

	_, err := svc.WriteStory(context.Background(), WriteInput{ProjectID: "p1", Idea: "never proposed"})
	require.ErrorIs(t, err, schema.ErrInvalidInput)
}

func TestGenerateCharacterModelPlaceholder(t *testing.T) {
	svc, st, objects := newTestService(t, &inferencetest.Fake{})
	svc.Placeholder = true

	reg := schema.NewRegistry()
	reg.Characters["abby"] = schema.Character{Name: "Abby", Role: schema.RoleProtagonist, VisualSource: schema.VisualSourceAuto}
	require.NoError(t, st.WriteProject(context.Background(), &schema.Project{
		ID: "p1", ChildName: "Abby", StoryLocked: true, Registry: reg,
	}))

	model, err := svc.GenerateCharacterModel(ModelInput{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "abby", model.CharacterKey)
	assert.NotEmpty(t, model.ModelURL)
	assert.NotEmpty(t, model.PreviewURL)

	// stored PNG decodes
	data, ok := objects.objects[model.ModelPath]
	require.True(t, ok)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 512, img.Bounds().Dx())

	// catalog updated and protagonist locked
	p, err := st.LoadProject(context.Background(), "p1")
	require.NoError(t, err)
	_, ok = p.ModelFor("abby")
	assert.True(t, ok)
	abby := p.Registry.Characters["abby"]
	assert.True(t, abby.Locked())
	assert.True(t, abby.HasModel)
	assert.Equal(t, schema.VisualSourceUser, abby.VisualSource)
}

func TestGenerateCharacterModelDeterministicPlaceholder(t *testing.T) {
	a, err := placeholderModel("Abby")
	require.NoError(t, err)
	b, err := placeholderModel("  abby ")
	require.NoError(t, err)
	assert.Equal(t, a, b, "placeholder depends only on the normalized child name")

	c, err := placeholderModel("Ben")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerateCharacterModelCoalesces(t *testing.T) {
	svc, st, _ := newTestService(t, &inferencetest.Fake{})
	svc.Placeholder = true
	require.NoError(t, st.WriteProject(context.Background(), &schema.Project{
		ID: "p1", ChildName: "Abby", Registry: schema.NewRegistry(),
	}))

	first, err := svc.GenerateCharacterModel(ModelInput{ProjectID: "p1"})
	require.NoError(t, err)
	second, err := svc.GenerateCharacterModel(ModelInput{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt, "repeat requests reuse the cached render")

	forced, err := svc.GenerateCharacterModel(ModelInput{ProjectID: "p1", Force: true})
	require.NoError(t, err)
	assert.False(t, forced.CreatedAt.Before(first.CreatedAt))
}
