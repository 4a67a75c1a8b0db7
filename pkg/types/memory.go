package types

const (
	USER_MEMORY_MAX_SUMMARIES = 20
	USER_MEMORY_MAX_PROMPTS   = 50
)

// UserMemory is the cross-session memory of one user, kept in the cache.
type UserMemory struct {
	UserID            string             `json:"user_id"`
	Summaries         []SessionSummary   `json:"summaries"`
	Preferences       map[string]string  `json:"preferences"`
	SuccessfulPrompts []SuccessfulPrompt `json:"successful_prompts"`
	StylePreferences  map[string]string  `json:"style_preferences"`
	CoreMemories      []string           `json:"core_memories"`
	UpdatedAt         int64              `json:"updated_at"`
}

func NewUserMemory(userID string) *UserMemory {
	return &UserMemory{
		UserID:           userID,
		Preferences:      map[string]string{},
		StylePreferences: map[string]string{},
	}
}

type SessionSummary struct {
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
	CreatedAt int64  `json:"created_at"`
}

type SuccessfulPrompt struct {
	Prompt    string    `json:"prompt"`
	URL       string    `json:"url"`
	Score     float64   `json:"score"`
	Type      AssetType `json:"type"`
	CreatedAt int64     `json:"created_at"`
}

type EpisodeType string

const (
	EPISODE_PREFERENCE  EpisodeType = "preference"
	EPISODE_CREATION    EpisodeType = "creation"
	EPISODE_FEEDBACK    EpisodeType = "feedback"
	EPISODE_ERROR       EpisodeType = "error"
	EPISODE_SUCCESS     EpisodeType = "success"
	EPISODE_INTERACTION EpisodeType = "interaction"
)

// Importance is derived from the event type, on a 1..10 scale.
func (t EpisodeType) Importance() int {
	switch t {
	case EPISODE_PREFERENCE:
		return 9
	case EPISODE_FEEDBACK:
		return 8
	case EPISODE_CREATION:
		return 7
	case EPISODE_SUCCESS:
		return 6
	case EPISODE_ERROR:
		return 4
	case EPISODE_INTERACTION:
		return 2
	}
	return 1
}

type Episode struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	EventType   EpisodeType    `json:"event_type"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Importance  int            `json:"importance"`
	CreatedAt   int64          `json:"created_at"`
	AccessCount int            `json:"access_count"`
}

type EpisodeFilter struct {
	EventType EpisodeType
	Query     string
	Limit     int
}
