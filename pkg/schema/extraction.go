package schema

// Wire shapes returned by structured extraction calls. Entities arrive as
// arrays with display names; keys are derived with NormalizeKey on the read
// side so the model never invents identifier syntax.

type RegistryExtraction struct {
	Characters   []CharacterExtraction   `json:"characters" jsonschema_description:"Every individually named or implied character in the story, including pets"`
	Groups       []GroupExtraction       `json:"groups" jsonschema_description:"Collective references to unnamed plural people (three or more), e.g. 'the grandkids'"`
	Props        []PropExtraction        `json:"props" jsonschema_description:"Recurring physical objects that should look the same on every page"`
	Environments []EnvironmentExtraction `json:"environments" jsonschema_description:"Distinct locations where story pages take place"`
	Notes        string                  `json:"notes,omitempty" jsonschema_description:"Free-text continuity notes that fit no other field"`
}

type CharacterExtraction struct {
	Name          string   `json:"name" jsonschema_description:"Canonical character name"`
	Role          string   `json:"role" jsonschema:"enum=protagonist,enum=sibling,enum=friend,enum=parent,enum=pet,enum=other" jsonschema_description:"Relationship role of this character"`
	Type          string   `json:"type" jsonschema_description:"Species type, e.g. 'human', 'dog', 'cat'"`
	Breed         string   `json:"breed,omitempty" jsonschema_description:"Breed when stated, e.g. 'miniature dachshund'; the caretaker description is authoritative"`
	Gender        string   `json:"gender,omitempty" jsonschema_description:"Gender when stated"`
	Traits        []string `json:"traits,omitempty" jsonschema_description:"Personality traits"`
	Relationship  string   `json:"relationship_to_protagonist,omitempty" jsonschema_description:"How this character relates to the protagonist"`
	Visual        *Visual  `json:"visual,omitempty" jsonschema_description:"Visual attributes detailed enough to redraw the character identically"`
	FirstSeenPage int      `json:"first_seen_page,omitempty" jsonschema_description:"First page number where the character appears"`
}

type GroupExtraction struct {
	Name          string `json:"name" jsonschema_description:"Display name of the group, e.g. 'the grandkids'"`
	Singular      string `json:"singular,omitempty" jsonschema_description:"Singular form, e.g. 'grandkid'"`
	DetectedTerm  string `json:"detected_term,omitempty" jsonschema_description:"The exact term used in the story"`
	DetectedCount *int   `json:"detected_count,omitempty" jsonschema_description:"Group size when the story states or implies one; omit when unknown"`
	CountSource   string `json:"count_source,omitempty" jsonschema:"enum=explicit,enum=implied,enum=unknown" jsonschema_description:"How the count was determined"`
	Relationship  string `json:"relationship_to_protagonist,omitempty" jsonschema_description:"How the group relates to the protagonist"`
	FirstSeenPage int    `json:"first_seen_page,omitempty" jsonschema_description:"First page number where the group appears"`
}

type PropExtraction struct {
	Name          string `json:"name" jsonschema_description:"Prop name, e.g. 'PlayStation controller'"`
	Description   string `json:"description,omitempty" jsonschema_description:"What the prop is and why it matters to the story"`
	Visual        string `json:"visual,omitempty" jsonschema_description:"Visual description: color, shape, size, distinctive marks"`
	FirstSeenPage int    `json:"first_seen_page,omitempty" jsonschema_description:"First page number where the prop appears"`
}

type EnvironmentExtraction struct {
	Name          string `json:"name" jsonschema_description:"Location name, e.g. 'Abby's backyard'"`
	Description   string `json:"description,omitempty" jsonschema_description:"What the location looks like"`
	Owner         string `json:"owner,omitempty" jsonschema_description:"Whose place this is, when stated"`
	Style         string `json:"style,omitempty" jsonschema_description:"Rendering style notes for the location"`
	FirstSeenPage int    `json:"first_seen_page,omitempty" jsonschema_description:"First page number set in the location"`
}

// ScenePlanExtraction is the planner's wire shape; every value must be one of
// the keys offered in the closed set.
type ScenePlanExtraction struct {
	Characters  []string `json:"characters" jsonschema_description:"Keys of characters or groups visually present in this page's illustration"`
	Props       []string `json:"props" jsonschema_description:"Keys of props visually present"`
	Environment string   `json:"environment,omitempty" jsonschema_description:"Key of the environment the page takes place in; empty when none fits"`
}

type LocationExtraction struct {
	Location    string `json:"location,omitempty" jsonschema_description:"Short location name where this page takes place; empty when the text names none"`
	Owner       string `json:"owner,omitempty" jsonschema_description:"Whose place it is, when stated"`
	Description string `json:"description,omitempty" jsonschema_description:"One-line visual description of the location"`
}

type ScenePropsExtraction struct {
	Props []PropExtraction `json:"props" jsonschema_description:"Physical objects visible in this page that are not characters"`
}

type IdeasExtraction struct {
	Ideas []StoryIdea `json:"ideas" jsonschema_description:"Personalized picture-book ideas, each with a short title and a one-paragraph blurb"`
}

type StoryExtraction struct {
	Title string      `json:"title" jsonschema_description:"Book title"`
	Pages []StoryPage `json:"pages" jsonschema_description:"Ordered story pages, two to three sentences each"`
}
