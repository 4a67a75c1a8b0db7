package tools

type ListEntitiesInput struct {
	Scope
	Type string `json:"type,omitempty" jsonschema:"character, location or brand"`
}

type GetEntityInput struct {
	Scope
	Tag string `json:"tag" jsonschema:"Entity tag like @emma or its id"`
}

type PastAssetsInput struct {
	Scope
	Type          string `json:"type,omitempty" jsonschema:"image, video or audio"`
	FavoritesOnly bool   `json:"favorites_only,omitempty" jsonschema:"Only favorites"`
	AllProjects   bool   `json:"all_projects,omitempty" jsonschema:"Include assets of every project"`
	Limit         int    `json:"limit,omitempty" jsonschema:"Maximum results, 20 by default"`
}

type SemanticSearchInput struct {
	Scope
	Query string `json:"query" jsonschema:"What to look for"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results"`
}

type RoadmapProgressInput struct {
	Scope
	RoadmapID string `json:"roadmap_id,omitempty" jsonschema:"Roadmap id, the latest of the project by default"`
}
