package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storywoven/pkg/schema"
)

func sceneRegistry() *schema.Registry {
	reg := schema.NewRegistry()
	reg.Characters["abby"] = schema.Character{
		Name: "Abby", Role: schema.RoleProtagonist,
		HasModel: true, VisualSource: schema.VisualSourceUser,
		ModelURL: "http://files/abby.png",
	}
	reg.Characters["waffles"] = schema.Character{
		Name: "Waffles", Role: schema.RolePet, Type: "dog", Breed: "miniature dachshund",
		Visual: &schema.Visual{Size: "small", Colors: []string{"brown"}, DistinctiveFeatures: "long body, short legs"},
	}
	reg.Props["red_kite"] = schema.Prop{Name: "red kite", Visual: "diamond-shaped red kite"}
	reg.Environments["backyard"] = schema.Environment{Name: "the backyard", Description: "a grassy yard with a big oak", Style: "sun-drenched and warm"}
	return reg
}

func sceneInput(reg *schema.Registry) SceneInput {
	return SceneInput{
		ChildName: "Abby",
		PageText:  "Abby and Waffles flew the red kite.\n\nArtist revision notes: make the kite bigger",
		Plan:      &schema.ScenePlan{Characters: []string{"abby", "waffles"}, Props: []string{"red_kite"}, Environment: "backyard"},
		Registry:  reg,
		References: []CharacterReference{
			{Key: "waffles", Data: []byte("waffles-png")},
			{Key: "abby", Data: []byte("abby-png")},
		},
	}
}

func TestAssembleSceneSectionOrder(t *testing.T) {
	p := AssembleScene(sceneInput(sceneRegistry()))

	titles := make([]string, 0, len(p.Sections))
	for _, s := range p.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{
		"", // directive
		"Page text",
		"Setting",
		"Characters in this scene (registry JSON)",
		"Environment (registry JSON)",
		"Props in this scene (registry JSON)",
		"Character visual rules",
		"Strict character rules",
		"Continuity rules",
		"Prop and location continuity",
		"Style",
	}, titles)

	rendered := p.Render()
	assert.Contains(t, rendered, "exactly one illustration")
	assert.Contains(t, rendered, "Square aspect ratio")
	assert.Contains(t, rendered, "No text, letters, captions")
	assert.Contains(t, rendered, "outlines of medium weight")
	assert.Contains(t, rendered, "gentle lighting")
	assert.Contains(t, rendered, "away from the outer edges")
	assert.Contains(t, rendered, `"her dog" means the specific dog`)
}

func TestAssembleScenePageTextVerbatim(t *testing.T) {
	in := sceneInput(sceneRegistry())
	p := AssembleScene(in)
	assert.Contains(t, p.Render(), in.PageText, "page text including revision notes passes through untouched")
}

func TestAssembleSceneProtagonistModelRule(t *testing.T) {
	p := AssembleScene(sceneInput(sceneRegistry()))
	rendered := p.Render()
	assert.Contains(t, rendered, "MUST match the uploaded character model exactly")
	assert.Contains(t, rendered, "miniature dachshund")
	assert.Contains(t, rendered, "long body, short legs")
}

func TestAssembleSceneModellessProtagonist(t *testing.T) {
	reg := sceneRegistry()
	abby := reg.Characters["abby"]
	abby.HasModel = false
	reg.Characters["abby"] = abby

	in := sceneInput(reg)
	in.ChildDescription = "a curious five-year-old with curly brown hair"
	in.References = nil

	rendered := AssembleScene(in).Render()
	assert.NotContains(t, rendered, "MUST match the uploaded character model")
	assert.Contains(t, rendered, "neutral, generic child")
	assert.Contains(t, rendered, "curly brown hair")
}

func TestAssembleSceneNeutralSettingFallback(t *testing.T) {
	in := sceneInput(sceneRegistry())
	in.Plan.Environment = ""

	p := AssembleScene(in)
	rendered := p.Render()
	assert.Contains(t, rendered, "neutral setting")
	assert.NotContains(t, rendered, "sun-drenched")

	for _, s := range p.Sections {
		assert.NotEqual(t, "Environment (registry JSON)", s.Title)
	}
}

func TestAssembleSceneAttachmentsProtagonistFirst(t *testing.T) {
	p := AssembleScene(sceneInput(sceneRegistry()))
	require.Len(t, p.Attachments, 2)
	assert.Equal(t, []byte("abby-png"), p.Attachments[0].Data)
	assert.Equal(t, []byte("waffles-png"), p.Attachments[1].Data)
}

func TestRenderJoinsWithBlankLines(t *testing.T) {
	p := &Prompt{Sections: []Section{{Body: "a"}, {Title: "T", Body: "b"}}}
	rendered := p.Render()
	assert.Equal(t, "a\n\nT:\nb", rendered)
	assert.Equal(t, 1, strings.Count(rendered, "T:"))
}
