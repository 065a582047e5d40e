package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storywoven/pkg/inference/inferencetest"
	"storywoven/pkg/schema"
)

func crowdedRegistry() *schema.Registry {
	reg := schema.NewRegistry()
	reg.Characters["abby"] = schema.Character{Name: "Abby", Role: schema.RoleProtagonist, FirstSeenPage: 1}
	reg.Characters["waffles"] = schema.Character{Name: "Waffles", Role: schema.RolePet, FirstSeenPage: 2}
	reg.Characters["ben"] = schema.Character{Name: "Ben", Role: schema.RoleSibling, FirstSeenPage: 2}
	reg.Characters["mia"] = schema.Character{Name: "Mia", Role: schema.RoleFriend, FirstSeenPage: 3}
	reg.Characters["mom"] = schema.Character{Name: "Mom", Role: schema.RoleParent, FirstSeenPage: 1}
	reg.Characters["grandpa"] = schema.Character{Name: "Grandpa", Role: schema.RoleOther, FirstSeenPage: 4}
	reg.Characters["mail_carrier"] = schema.Character{Name: "the mail carrier", Role: schema.RoleOther, FirstSeenPage: 5}
	return reg
}

func planFake(body string) *inferencetest.Fake {
	return &inferencetest.Fake{ExtractFunc: inferencetest.BySchema(map[string]string{
		"scene_plan": body,
	})}
}

func TestAnalyzeSceneCompositionCapsCharacters(t *testing.T) {
	fake := planFake(`{
		"characters": ["waffles", "ben", "mia", "mom", "grandpa", "mail_carrier", "abby"],
		"props": [],
		"environment": ""
	}`)
	pl := &Planner{Adapter: fake}

	plan, err := pl.AnalyzeSceneComposition(context.Background(), PlanInput{
		Page:      6,
		PageText:  "Everyone gathered in the yard.",
		Registry:  crowdedRegistry(),
		ChildName: "Abby",
	})
	require.NoError(t, err)

	require.Len(t, plan.Characters, MaxCharacterModelsPerScene)
	assert.Equal(t, "abby", plan.Characters[0], "protagonist always leads")
	// page-1 mom beats page-2 entries; role priority breaks the page-2 tie
	// in favor of the pet
	assert.Equal(t, []string{"abby", "mom", "waffles", "ben"}, plan.Characters)
}

func TestAnalyzeSceneCompositionAddsMissingProtagonist(t *testing.T) {
	fake := planFake(`{"characters": ["waffles"], "props": [], "environment": ""}`)
	pl := &Planner{Adapter: fake}

	plan, err := pl.AnalyzeSceneComposition(context.Background(), PlanInput{
		Page: 2, PageText: "Waffles dug a hole.", Registry: crowdedRegistry(), ChildName: "Abby",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"abby", "waffles"}, plan.Characters)
}

func TestAnalyzeSceneCompositionResolvesNearMissKeys(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Characters["abby"] = schema.Character{Name: "Abby", Role: schema.RoleProtagonist}
	reg.Characters["waffles"] = schema.Character{Name: "Waffles", Role: schema.RolePet}
	reg.Props["red_kite"] = schema.Prop{Name: "red kite"}

	fake := planFake(`{"characters": ["abby", "waffle"], "props": ["the red kite", "spaceship"], "environment": ""}`)
	pl := &Planner{Adapter: fake}

	plan, err := pl.AnalyzeSceneComposition(context.Background(), PlanInput{
		Page: 1, PageText: "Abby and Waffles flew the kite.", Registry: reg, ChildName: "Abby",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"abby", "waffles"}, plan.Characters, "near-miss key resolves by similarity")
	assert.Equal(t, []string{"red_kite"}, plan.Props, "invented entities are dropped")
}

func TestAnalyzeSceneCompositionDropsUnknownEnvironment(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Characters["abby"] = schema.Character{Name: "Abby", Role: schema.RoleProtagonist}
	reg.Environments["the_beach"] = schema.Environment{Name: "the beach"}

	fake := planFake(`{"characters": ["abby"], "props": [], "environment": "the moon"}`)
	pl := &Planner{Adapter: fake}

	plan, err := pl.AnalyzeSceneComposition(context.Background(), PlanInput{
		Page: 1, PageText: "Abby looked up.", Registry: reg, ChildName: "Abby",
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Environment)
}

func TestAnalyzeSceneCompositionGroupTakesOneSlot(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Characters["abby"] = schema.Character{Name: "Abby", Role: schema.RoleProtagonist, FirstSeenPage: 1}
	reg.Groups["the_grandkids"] = schema.Group{Key: "the_grandkids", Name: "the grandkids", Singular: "grandkid", FirstSeenPage: 2, Members: []string{}}

	fake := planFake(`{"characters": ["abby", "the_grandkids"], "props": [], "environment": ""}`)
	pl := &Planner{Adapter: fake}

	plan, err := pl.AnalyzeSceneComposition(context.Background(), PlanInput{
		Page: 2, PageText: "The grandkids cheered.", Registry: reg, ChildName: "Abby",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"abby", "the_grandkids"}, plan.Characters)
}

func TestAnalyzeSceneCompositionRequiresRegistry(t *testing.T) {
	pl := &Planner{Adapter: planFake(`{}`)}
	_, err := pl.AnalyzeSceneComposition(context.Background(), PlanInput{Page: 1, PageText: "x"})
	require.ErrorIs(t, err, schema.ErrInvalidInput)
}
