package types

// Model represents a model artifact available on disk.
type Model struct {
	// Stable identifier for the model (the artifact file name).
	// example: llama-2-13b-chat.ggmlv3.q4_0.bin
	ID string `json:"id" example:"llama-2-13b-chat.ggmlv3.q4_0.bin"`
	// Human-friendly name.
	// example: llama-2-13b-chat.ggmlv3.q4_0.bin
	Name string `json:"name" example:"llama-2-13b-chat.ggmlv3.q4_0.bin"`
	// Absolute path to the model file on disk.
	// example: /home/user/.cache/llamad/models/llama-2-13b-chat.ggmlv3.q4_0.bin
	Path string `json:"path" example:"/home/user/.cache/llamad/models/llama-2-13b-chat.ggmlv3.q4_0.bin"`
	// Quantization level or variant string.
	// example: q4_0
	Quant string `json:"quant" example:"q4_0"`
	// Optional family (e.g., llama, mistral, phi).
	// example: llama
	Family string `json:"family,omitempty" example:"llama"`
}

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is a single role-tagged message in a conversation.
// The adapter does not interpret message semantics; it only formats
// sequences of messages into prompts.
type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Metadata describes the configured model, derived once at construction.
type Metadata struct {
	// Maximum number of context tokens the model was loaded with.
	ContextWindow int `json:"context_window"`
	// Maximum number of new tokens generated per call.
	NumOutput int `json:"num_output"`
	// Resolved absolute path of the model artifact.
	ModelName string `json:"model_name"`
}
