package types

// SessionReference is the per-session slot holding the latest uploaded reference.
type SessionReference struct {
	URL    string `json:"url"`
	Base64 string `json:"base64,omitempty"`
}

// ResolvedReferences is the outcome of reference resolution for one turn.
type ResolvedReferences struct {
	Primary  string   `json:"primary_reference_url,omitempty"`
	All      []string `json:"all_reference_urls,omitempty"`
	Uploaded []string `json:"uploaded,omitempty"`
	// LastGenerated is the newest image produced in the session. It feeds
	// follow-up edits but never counts as a reference for new generations.
	LastGenerated string `json:"last_generated_url,omitempty"`
}

func (r ResolvedReferences) HasAny() bool {
	return r.Primary != "" || len(r.All) > 0
}
