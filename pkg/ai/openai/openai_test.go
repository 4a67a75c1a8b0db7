package openai

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/types"
)

func TestConvertMessages(t *testing.T) {
	msgs := ConvertMessages("persona", []types.LLMMessage{
		{Role: types.ROLE_USER, Parts: []types.ChatMessagePart{
			{Type: types.PART_TEXT, Text: "edit this"},
			{Type: types.PART_IMAGE, ImageURL: "https://cdn/x.png"},
		}},
		{Role: types.ROLE_ASSISTANT, ToolCalls: []types.ToolCall{{ID: "c1", Name: "edit_image", Arguments: `{"prompt":"x"}`}}},
		{Role: types.ROLE_TOOL, ToolCallID: "c1", Content: `{"success":true}`},
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	require.Len(t, msgs[1].MultiContent, 2)
	assert.Equal(t, "https://cdn/x.png", msgs[1].MultiContent[1].ImageURL.URL)
	assert.Equal(t, "edit_image", msgs[2].ToolCalls[0].Function.Name)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
}

func TestBuildRequestTools(t *testing.T) {
	d := New("token", "", "gpt-4o")
	r := d.buildRequest(ai.ChatRequest{
		Tools: []ai.ToolSpec{{
			Name:       "generate_image",
			Parameters: jsonschema.Definition{Type: jsonschema.Object},
		}},
		ToolChoice: types.TOOL_CHOICE_REQUIRED,
	})

	require.Len(t, r.Tools, 1)
	assert.Equal(t, "generate_image", r.Tools[0].Function.Name)
	assert.Equal(t, "required", r.ToolChoice)

	r = d.buildRequest(ai.ChatRequest{ToolChoice: types.TOOL_CHOICE_REQUIRED})
	assert.Nil(t, r.ToolChoice)
}
