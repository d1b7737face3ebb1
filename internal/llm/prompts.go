package llm

import (
	"strings"

	"llamad/pkg/types"
)

// MessagesToPromptFunc converts a message list into a single prompt string.
type MessagesToPromptFunc func(messages []types.ChatMessage) string

// CompletionToPromptFunc shapes a raw prompt before it reaches the engine.
type CompletionToPromptFunc func(prompt string) string

// DefaultMessagesToPrompt renders each message as a "role: content" line and
// ends with an open assistant line for the model to continue.
func DefaultMessagesToPrompt(messages []types.ChatMessage) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("assistant: ")
	return b.String()
}

// DefaultCompletionToPrompt passes the prompt through unchanged.
func DefaultCompletionToPrompt(prompt string) string { return prompt }
