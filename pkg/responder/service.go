package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// FallbackReply is the last-resort answer when no scripted, flow or catalog
// reply applies. It deliberately contains LearnMarker so the learning pass
// can find the turns it produced.
const FallbackReply = "I'm still learning about that one. Could you provide more details so I can help you better?"

// LearnMarker tags fallback replies in the conversation log. The learning
// pass scans for it to discover messages the catalog cannot answer yet.
const LearnMarker = "still learning"

// flowReplies are the fixed continuations for users mid-conversation. A user
// in a listed state gets the continuation for that state before the catalog
// is consulted.
var flowReplies = map[string]string{
	StateAwaitingDetails: "Thanks for providing those details. Let me help you with that.",
	StateFollowUp:        "Is there anything specific you'd like to know about that?",
}

// Service is the message-handling engine: it classifies inbound messages,
// selects a reply through the scripted -> flow -> catalog -> fallback chain,
// logs the turn and advances the user's conversation state.
type Service struct {
	store      Store
	classifier Classifier
	shaper     Shaper
	log        *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store Store, classifier Classifier, shaper Shaper, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:      store,
		classifier: classifier,
		shaper:     shaper,
		log:        log,
		locks:      map[string]*sync.Mutex{},
	}
}

// userLock returns the mutex serializing handling for one user. Messages
// from different users proceed concurrently; two messages from the same
// user are handled strictly in arrival order.
func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// HandleMessage processes one inbound message end to end: reply selection,
// turn logging and context advancement. It always returns a usable Reply;
// when storage fails mid-handling the fallback reply is returned alongside
// the error so the transport can still answer the user.
func (s *Service) HandleMessage(ctx context.Context, userID, message string) (Reply, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	uc, err := s.store.GetUserContext(ctx, userID)
	if err != nil {
		if isCorrupt(err) {
			// Recoverable: answer from the default context and keep going.
			s.log.Warn("user context corrupted, using defaults", "user_id", userID, "error", err)
		} else {
			return s.fallback(), fmt.Errorf("handle message: %w", err)
		}
	}

	reply, err := s.selectReply(ctx, uc, message)
	if err != nil {
		return s.fallback(), fmt.Errorf("handle message: %w", err)
	}

	turn := ConversationTurn{
		UserID:   userID,
		Message:  message,
		Response: reply.Text,
		Context:  uc.Context,
	}
	if _, err := s.store.LogTurn(ctx, turn); err != nil {
		return s.fallback(), fmt.Errorf("handle message: %w", err)
	}

	nextCtx, nextState := nextContext(uc, message)
	if err := s.store.UpdateUserContext(ctx, userID, nextCtx, nextState, message); err != nil {
		return s.fallback(), fmt.Errorf("handle message: %w", err)
	}

	return reply, nil
}

// SelectResponse runs the reply-selection chain without logging a turn or
// touching the user's context. It exists for previewing what the engine
// would answer.
func (s *Service) SelectResponse(ctx context.Context, userID, message string) (Reply, error) {
	uc, err := s.store.GetUserContext(ctx, userID)
	if err != nil && !isCorrupt(err) {
		return s.fallback(), fmt.Errorf("select response: %w", err)
	}
	reply, err := s.selectReply(ctx, uc, message)
	if err != nil {
		return s.fallback(), fmt.Errorf("select response: %w", err)
	}
	return reply, nil
}

// RecordOutcome feeds one delivery outcome back into the catalog row that
// produced the reply. Replies without a catalog row are ignored.
func (s *Service) RecordOutcome(ctx context.Context, responseID int64, wasHelpful bool) error {
	if err := s.store.RecordOutcome(ctx, responseID, wasHelpful); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// selectReply walks the fallback chain: scripted intent reply, then flow
// continuation, then catalog lookup, then the fixed fallback. Catalog
// matching sees the lowercased message; the user's context map doubles as
// the catalog's context filter.
func (s *Service) selectReply(ctx context.Context, uc UserContext, message string) (Reply, error) {
	lowered := strings.ToLower(message)

	if scripted, ok := s.shaper.ScriptedReply(s.classifier.Classify(lowered)); ok {
		text := s.shaper.Humanize(scripted, uc.PreviousMessages)
		return Reply{Text: text, ResponseID: ResponseIDNone, Delay: s.shaper.TypingDelay(text)}, nil
	}

	if flow, ok := flowReplies[uc.State]; ok {
		text := s.shaper.Humanize(flow, uc.PreviousMessages)
		return Reply{Text: text, ResponseID: ResponseIDNone, Delay: s.shaper.TypingDelay(text)}, nil
	}

	match, found, err := s.store.FindResponse(ctx, lowered, encodeMap(uc.Context))
	if err != nil {
		return Reply{}, fmt.Errorf("select reply: %w", err)
	}
	if found {
		text := s.shaper.Humanize(match.Response, uc.PreviousMessages)
		return Reply{Text: text, ResponseID: match.ID, Delay: s.shaper.TypingDelay(text)}, nil
	}

	return s.fallback(), nil
}

func (s *Service) fallback() Reply {
	text := FallbackReply
	return Reply{Text: text, ResponseID: ResponseIDNone, Delay: s.shaper.TypingDelay(text)}
}

// nextContext computes the user's context and state after a handled
// message. Topic keywords move the user into the scripted flow; closing
// phrases end it. Unrecognized messages reset to the initial state.
func nextContext(uc UserContext, message string) (map[string]string, string) {
	lowered := strings.ToLower(message)

	next := make(map[string]string, len(uc.Context)+1)
	for k, v := range uc.Context {
		next[k] = v
	}

	switch {
	case strings.Contains(lowered, "price") || strings.Contains(lowered, "cost"):
		next["topic"] = "pricing"
		return next, StateAwaitingDetails
	case strings.Contains(lowered, "help"):
		next["topic"] = "support"
		return next, StateFollowUp
	case strings.Contains(lowered, "thanks") || strings.Contains(lowered, "thank you") || strings.Contains(lowered, "bye"):
		return next, StateClosing
	default:
		return next, StateInitial
	}
}

func isCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptContext)
}
