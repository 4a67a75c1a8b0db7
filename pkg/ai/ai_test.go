package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atelier-studio/atelier/pkg/types"
)

func TestToolCallAccumulatorMergesByIndex(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(types.ToolCallDelta{Index: 1, ID: "b", Name: "edit_"})
	acc.Add(types.ToolCallDelta{Index: 0, ID: "a", Name: "generate_image", Arguments: `{"pro`})
	acc.Add(types.ToolCallDelta{Index: 1, Name: "image", Arguments: `{}`})
	acc.Add(types.ToolCallDelta{Index: 0, Arguments: `mpt":"x"}`})
	acc.Add(types.ToolCallDelta{Index: 2, Name: "list_entities"})

	calls := acc.Calls()
	assert.Len(t, calls, 3)
	assert.Equal(t, "generate_image", calls[0].Name)
	assert.Equal(t, `{"prompt":"x"}`, calls[0].Arguments)
	assert.Equal(t, "edit_image", calls[1].Name)
	assert.Equal(t, "call_2", calls[2].ID)
	assert.Equal(t, "{}", calls[2].Arguments)
}
