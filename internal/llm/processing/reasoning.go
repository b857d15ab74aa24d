package processing

import "strings"

const (
	ThinkStart = "<think>"
	ThinkEnd   = "</think>"
)

// ExtractThinking separates <think>...</think> blocks from the rest of text.
// Multiple blocks are concatenated; an unclosed block runs to the end of text.
func ExtractThinking(text string) (content string, reasoning string) {
	var c, r strings.Builder

	rest := text
	for {
		before, after, found := strings.Cut(rest, ThinkStart)
		c.WriteString(before)
		if !found {
			break
		}
		inner, tail, closed := strings.Cut(after, ThinkEnd)
		r.WriteString(inner)
		if !closed {
			break
		}
		rest = tail
	}

	return c.String(), r.String()
}

// SplitOutput is ExtractThinking with surrounding whitespace removed from both parts.
func SplitOutput(text string) (content string, reasoning string) {
	content, reasoning = ExtractThinking(text)
	return strings.TrimSpace(content), strings.TrimSpace(reasoning)
}
