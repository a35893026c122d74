package domain

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is a single chat line. Turns are values and are never
// modified after they are appended to a log.
type ConversationTurn struct {
	Role Role
	Text string
}

// UserTurn builds a turn authored by the user.
func UserTurn(text string) ConversationTurn {
	return ConversationTurn{Role: RoleUser, Text: text}
}

// AssistantTurn builds a turn authored by the assistant.
func AssistantTurn(text string) ConversationTurn {
	return ConversationTurn{Role: RoleAssistant, Text: text}
}
