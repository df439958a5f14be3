package anthropic

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestFillEmptyContent(t *testing.T) {
	msgs := []*schema.Message{
		{Role: schema.Tool},
		{Role: schema.Assistant},
		{Role: schema.User, Content: "keep"},
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{ID: "1"}}},
	}
	fillEmptyContent(msgs)
	assert.Equal(t, "{}", msgs[0].Content)
	assert.Equal(t, "...", msgs[1].Content)
	assert.Equal(t, "keep", msgs[2].Content)
	assert.Equal(t, "", msgs[3].Content)
}
