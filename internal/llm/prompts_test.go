package llm

import (
	"testing"

	"llamad/pkg/types"
)

func TestDefaultMessagesToPrompt(t *testing.T) {
	got := DefaultMessagesToPrompt([]types.ChatMessage{
		{Role: types.RoleSystem, Content: "be brief"},
		{Role: types.RoleUser, Content: "hi"},
	})
	want := "system: be brief\nuser: hi\nassistant: "
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDefaultMessagesToPromptEmpty(t *testing.T) {
	if got := DefaultMessagesToPrompt(nil); got != "assistant: " {
		t.Fatalf("got %q", got)
	}
}

func TestDefaultCompletionToPromptIsIdentity(t *testing.T) {
	if got := DefaultCompletionToPrompt("as-is"); got != "as-is" {
		t.Fatalf("got %q", got)
	}
}
