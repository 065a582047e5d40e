package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryUnmarshalLegacyPropsArray(t *testing.T) {
	doc := `{
		"characters": {"abby": {"name": "Abby", "role": "protagonist"}},
		"props": [{"red_ball": {"name": "red ball"}}]
	}`
	var r Registry
	require.NoError(t, json.Unmarshal([]byte(doc), &r))
	require.Contains(t, r.Props, "red_ball")
	assert.Equal(t, "red ball", r.Props["red_ball"].Name)
	assert.Equal(t, "Abby", r.Characters["abby"].Name)
}

func TestRegistryUnmarshalPropsObject(t *testing.T) {
	doc := `{"characters": {}, "props": {"kite": {"name": "kite"}}}`
	var r Registry
	require.NoError(t, json.Unmarshal([]byte(doc), &r))
	assert.Equal(t, "kite", r.Props["kite"].Name)
}

func TestRegistryCloneIsIndependent(t *testing.T) {
	r := NewRegistry()
	r.Characters["abby"] = Character{Name: "Abby", Role: RoleProtagonist}
	r.Groups["the_grandkids"] = Group{Name: "the grandkids", Members: []string{"a", "b"}}
	r.Props["kite"] = Prop{Name: "kite"}

	c := r.Clone()
	c.Characters["abby"] = Character{Name: "Someone Else"}
	c.Groups["the_grandkids"].Members[0] = "z"
	delete(c.Props, "kite")

	assert.Equal(t, "Abby", r.Characters["abby"].Name)
	assert.Equal(t, "a", r.Groups["the_grandkids"].Members[0])
	assert.Contains(t, r.Props, "kite")
}

func TestProtagonist(t *testing.T) {
	r := NewRegistry()
	key, c := r.Protagonist()
	assert.Empty(t, key)
	assert.Nil(t, c)

	r.Characters["waffles"] = Character{Name: "Waffles", Role: RolePet}
	r.Characters["abby"] = Character{Name: "Abby", Role: RoleProtagonist}
	key, c = r.Protagonist()
	assert.Equal(t, "abby", key)
	require.NotNil(t, c)
	assert.Equal(t, "Abby", c.Name)
}

func TestRolePriority(t *testing.T) {
	assert.Less(t, RoleProtagonist.Priority(), RolePet.Priority())
	assert.Less(t, RolePet.Priority(), RoleSibling.Priority())
	assert.Less(t, RoleSibling.Priority(), RoleFriend.Priority())
	assert.Less(t, RoleFriend.Priority(), RoleParent.Priority())
	assert.Less(t, RoleParent.Priority(), RoleOther.Priority())
	assert.Equal(t, RoleOther.Priority(), Role("grandparent").Priority())
}
