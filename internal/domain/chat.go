package domain

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape sent to the completion
// proxy. Transcript turns use the same shape with a user or assistant role.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
