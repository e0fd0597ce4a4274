package responder

import (
	"context"
	"time"
)

// Store provides durable persistence for user contexts, conversation turns
// and the response catalog.
type Store interface {
	Close() error

	GetUserContext(ctx context.Context, userID string) (UserContext, error)
	UpdateUserContext(ctx context.Context, userID string, contextMap map[string]string, state, message string) error

	LogTurn(ctx context.Context, turn ConversationTurn) (string, error)
	GetTurn(ctx context.Context, turnID string) (ConversationTurn, error)
	SetTurnHelpfulness(ctx context.Context, turnID string, helpful bool) error

	EnsureSeedResponses(ctx context.Context) error
	FindResponse(ctx context.Context, message, contextFilter string) (ResponsePattern, bool, error)
	GetResponse(ctx context.Context, id int64) (ResponsePattern, error)
	RecordOutcome(ctx context.Context, responseID int64, wasHelpful bool) error
	InsertLearnedResponse(ctx context.Context, pattern, response string) (int64, error)
	ListUnhandledMessages(ctx context.Context, marker string, minCount, limit int) ([]string, error)
}

// Classifier assigns a coarse intent tag to an inbound message.
type Classifier interface {
	Classify(message string) string
}

// Shaper turns raw replies into natural-sounding ones and paces delivery.
type Shaper interface {
	ScriptedReply(intent string) (string, bool)
	Humanize(reply string, previousMessages []string) string
	TypingDelay(reply string) time.Duration
}
