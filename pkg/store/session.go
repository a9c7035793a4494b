package store

import "time"

// Document is one retrieved knowledge-base chunk, best match first.
type Document struct {
	Text     string                 `json:"text"`
	SourceID string                 `json:"source_id"`
	Distance float64                `json:"distance"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Turn is one line of the conversation history.
type Turn struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Subject   string    `json:"subject,omitempty"` // agent turns only
	CreatedAt time.Time `json:"created_at"`
}

// SessionState is the position of a conversation in its lifecycle.
type SessionState string

const (
	StateIdle              SessionState = "IDLE"
	StateInitiating        SessionState = "INITIATING"
	StateAwaitingUserInput SessionState = "AWAITING_USER_INPUT"
	StateResponding        SessionState = "RESPONDING"
	StateTerminated        SessionState = "TERMINATED"
)

// Session is the in-memory state of one user's conversation.
// History is append-only.
type Session struct {
	UserID    string                 `json:"user_id"`
	State     SessionState           `json:"state"`
	Profile   map[string]interface{} `json:"profile,omitempty"`
	History   []Turn                 `json:"history"`
	Strategy  string                 `json:"strategy,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// LastAgentTurn returns the most recent agent turn, if any.
func (s *Session) LastAgentTurn() (Turn, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Speaker == SpeakerAgent {
			return s.History[i], true
		}
	}
	return Turn{}, false
}
