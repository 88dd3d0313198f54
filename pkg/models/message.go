package models

import "time"

// Role represents the role of a turn in the backend-facing history
type Role string

const (
	// RoleUser represents a turn from the user
	RoleUser Role = "user"
	// RoleAssistant represents a turn from the assistant
	RoleAssistant Role = "assistant"
)

// Origin determines which side of the timeline a message is rendered on
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// Role maps a display origin to its wire role
func (o Origin) Role() Role {
	if o == OriginUser {
		return RoleUser
	}
	return RoleAssistant
}

// DisplayMessage represents a message rendered in the timeline.
// It is never modified after the store creates it.
type DisplayMessage struct {
	ID        string    `json:"id"`
	Seq       int       `json:"seq"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Origin    Origin    `json:"origin"`
	// Failed marks an assistant message that carries a failure explanation
	// instead of a backend reply.
	Failed bool `json:"failed,omitempty"`
}

// WireTurn represents one step of the history sent to the backend
type WireTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ViewMode is derived from the timeline; it is never stored
type ViewMode int

const (
	// ModeLanding is shown while the timeline is empty
	ModeLanding ViewMode = iota
	// ModeConversation is shown once the first message exists
	ModeConversation
)

func (m ViewMode) String() string {
	switch m {
	case ModeLanding:
		return "landing"
	case ModeConversation:
		return "conversation"
	default:
		return "unknown"
	}
}

// ModeFor derives the view mode from the number of display messages
func ModeFor(messageCount int) ViewMode {
	if messageCount == 0 {
		return ModeLanding
	}
	return ModeConversation
}

// Snapshot is a value copy of a session handed to renderers
type Snapshot struct {
	Messages []DisplayMessage `json:"messages"`
	History  []WireTurn       `json:"history"`
	Pending  bool             `json:"pending"`
	Mode     ViewMode         `json:"mode"`
}
