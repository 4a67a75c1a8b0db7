package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventPayloadShapes(t *testing.T) {
	p := 0.5
	progress := Event{Type: EVENT_PROGRESS, TaskType: "long_video", Progress: &p, Message: "scene 1/2"}
	assert.Equal(t, ProgressPayload{TaskType: "long_video", Progress: 0.5, Message: "scene 1/2"}, progress.Payload())

	errEv := Event{Type: EVENT_ERROR, TaskType: "video", Message: "boom"}
	assert.Equal(t, ErrorPayload{TaskType: "video", Message: "boom"}, errEv.Payload())

	assert.Equal(t, struct{}{}, Event{Type: EVENT_DONE}.Payload())

	tok := NewEvent(EVENT_TOKEN, "hel")
	assert.Equal(t, "hel", tok.Payload())
	assert.NotZero(t, tok.Timestamp)
}

func TestEpisodeImportanceOrdering(t *testing.T) {
	assert.Greater(t, EPISODE_PREFERENCE.Importance(), EPISODE_CREATION.Importance())
	assert.Greater(t, EPISODE_CREATION.Importance(), EPISODE_INTERACTION.Importance())
	for _, et := range []EpisodeType{EPISODE_PREFERENCE, EPISODE_CREATION, EPISODE_FEEDBACK, EPISODE_ERROR, EPISODE_SUCCESS, EPISODE_INTERACTION} {
		assert.GreaterOrEqual(t, et.Importance(), 1)
		assert.LessOrEqual(t, et.Importance(), 10)
	}
}

func TestJSONMapScan(t *testing.T) {
	var m JSONMap
	assert.NoError(t, m.Scan([]byte(`{"hair":"brown"}`)))
	assert.Equal(t, "brown", m["hair"])

	var empty JSONMap
	assert.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)

	assert.Error(t, m.Scan(42))
}
