package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractThinking(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantContent   string
		wantReasoning string
	}{
		{"no thinking", "Hello world", "Hello world", ""},
		{"leading block", "<think>Reasoning here</think>Hello world", "Hello world", "Reasoning here"},
		{"trailing block", "Hello world<think>Reasoning here</think>", "Hello world", "Reasoning here"},
		{"middle block", "Hello <think>Reasoning</think> world", "Hello  world", "Reasoning"},
		{"multiple blocks", "<think>R1</think>C1<think>R2</think>C2", "C1C2", "R1R2"},
		{"unclosed block", "Hello <think>Reasoning", "Hello ", "Reasoning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, reasoning := ExtractThinking(tt.input)
			assert.Equal(t, tt.wantContent, content)
			assert.Equal(t, tt.wantReasoning, reasoning)
		})
	}
}

func TestSplitOutput_OnlyReasoningLeavesNoContent(t *testing.T) {
	content, reasoning := SplitOutput("<think>\nplanning\n</think>\n\n")
	assert.Empty(t, content)
	assert.Equal(t, "planning", reasoning)
}
