package schema

import (
	"github.com/invopop/jsonschema"
)

func generateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

var (
	RegistrySchema   = generateSchema[RegistryExtraction]()
	ScenePlanSchema  = generateSchema[ScenePlanExtraction]()
	LocationSchema   = generateSchema[LocationExtraction]()
	ScenePropsSchema = generateSchema[ScenePropsExtraction]()
	IdeasSchema      = generateSchema[IdeasExtraction]()
	StorySchema      = generateSchema[StoryExtraction]()
)
