package srv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupAIRequiresToken(t *testing.T) {
	_, err := SetupAI(AIConfig{})
	assert.Error(t, err)

	s := SetupSrvs(ApplyAI(AIConfig{}))
	assert.Nil(t, s.AI())
}

func TestSetupAIRoles(t *testing.T) {
	a, err := SetupAI(AIConfig{Token: "sk-test", ChatModel: "gpt-4o", CheapModel: "gpt-4o-mini"})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", a.Chat().ModelName())
	assert.Equal(t, "gpt-4o-mini", a.Cheap().ModelName())
	// vision falls back to the chat model
	assert.Equal(t, "gpt-4o", a.Vision().ModelName())
	assert.Nil(t, a.Embedder())
	assert.NotNil(t, a.Reader())
}
