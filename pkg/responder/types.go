package responder

import "time"

// ResponseIDNone marks a reply that is not attributable to a catalog row
// (scripted, flow-continuation and fallback replies). Outcome feedback keyed
// by it is a no-op.
const ResponseIDNone int64 = -1

// Conversation states tracked per user. A user starts in StateInitial and
// moves through the scripted flow as topics are detected in their messages.
const (
	StateInitial         = "initial"
	StateAwaitingDetails = "awaiting_details"
	StateFollowUp        = "follow_up"
	StateClosing         = "closing"
)

// historyLimit caps previous_messages per user, oldest evicted first.
const historyLimit = 5

// UserContext is the per-user conversational state, upserted on every
// handled message.
type UserContext struct {
	UserID            string
	Context           map[string]string
	State             string
	PreviousMessages  []string
	LastInteractionMS int64
}

// ConversationTurn is the append-only record of one handled message.
// Helpful stays nil until delivery feedback is attached.
type ConversationTurn struct {
	ID          string
	UserID      string
	Message     string
	Response    string
	Context     map[string]string
	Helpful     *bool
	CreatedAtMS int64
}

// ResponsePattern is one catalog row: a substring pattern mapped to a reply
// template, with usage statistics maintained by outcome feedback.
type ResponsePattern struct {
	ID          int64
	Pattern     string
	Response    string
	Context     string
	UsageCount  int
	SuccessRate float64
	CreatedAtMS int64
}

// Reply is the engine's answer for one inbound message. Delay is the pacing
// the transport should apply before delivering Text.
type Reply struct {
	Text       string
	ResponseID int64
	Delay      time.Duration
}

func defaultUserContext(userID string) UserContext {
	return UserContext{
		UserID:           userID,
		Context:          map[string]string{},
		State:            StateInitial,
		PreviousMessages: []string{},
	}
}
