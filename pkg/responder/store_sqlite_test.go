package responder

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state", "dmpilot.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGetUserContext_AbsentReturnsDefault(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	uc, err := store.GetUserContext(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserContext: %v", err)
	}
	if uc.State != StateInitial {
		t.Fatalf("expected state %q, got %q", StateInitial, uc.State)
	}
	if len(uc.Context) != 0 || len(uc.PreviousMessages) != 0 {
		t.Fatalf("expected empty default context, got %+v", uc)
	}
}

func TestUpdateUserContext_HistoryCappedAtFive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	messages := []string{"one", "two", "three", "four", "five", "six", "seven"}
	for _, msg := range messages {
		if err := store.UpdateUserContext(ctx, "u1", map[string]string{"topic": "pricing"}, StateAwaitingDetails, msg); err != nil {
			t.Fatalf("UpdateUserContext(%q): %v", msg, err)
		}
	}

	uc, err := store.GetUserContext(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserContext: %v", err)
	}
	if len(uc.PreviousMessages) != historyLimit {
		t.Fatalf("expected %d messages, got %d: %v", historyLimit, len(uc.PreviousMessages), uc.PreviousMessages)
	}
	if uc.PreviousMessages[0] != "three" || uc.PreviousMessages[4] != "seven" {
		t.Fatalf("expected oldest entries evicted first, got %v", uc.PreviousMessages)
	}
	if uc.State != StateAwaitingDetails {
		t.Fatalf("expected state %q, got %q", StateAwaitingDetails, uc.State)
	}
	if uc.Context["topic"] != "pricing" {
		t.Fatalf("expected topic=pricing, got %v", uc.Context)
	}
	if uc.LastInteractionMS == 0 {
		t.Fatalf("expected last interaction timestamp to be set")
	}
}

func TestGetUserContext_CorruptBlobReturnsDefaultAndTypedError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.db.Exec(`
INSERT INTO user_contexts(user_id, context_json, conversation_state, previous_messages_json, last_interaction_ms)
VALUES('u1', '{not json', 'follow_up', '[]', 123)`); err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	uc, err := store.GetUserContext(ctx, "u1")
	if !errors.Is(err, ErrCorruptContext) {
		t.Fatalf("expected ErrCorruptContext, got %v", err)
	}
	if uc.State != StateInitial || len(uc.Context) != 0 {
		t.Fatalf("expected default context on corruption, got %+v", uc)
	}
}

func TestEnsureSeedResponses_InsertsOnceOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.EnsureSeedResponses(ctx); err != nil {
		t.Fatalf("EnsureSeedResponses: %v", err)
	}
	if err := store.EnsureSeedResponses(ctx); err != nil {
		t.Fatalf("EnsureSeedResponses second call: %v", err)
	}

	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM responses`).Scan(&count); err != nil {
		t.Fatalf("count responses: %v", err)
	}
	if count != len(seedResponses) {
		t.Fatalf("expected %d seed rows, got %d", len(seedResponses), count)
	}
}

func TestFindResponse_SubstringMatchAndRanking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.EnsureSeedResponses(ctx); err != nil {
		t.Fatalf("EnsureSeedResponses: %v", err)
	}

	// "hello" appears in the message, and so does "hi" (inside "something").
	// Equal stats, so the lowest id wins: "hello" is seeded first.
	match, found, err := store.FindResponse(ctx, "hello, i need something", "{}")
	if err != nil {
		t.Fatalf("FindResponse: %v", err)
	}
	if !found {
		t.Fatalf("expected a match")
	}
	if match.Pattern != "hello" {
		t.Fatalf("expected lowest-id tie-break to pick %q, got %q", "hello", match.Pattern)
	}

	// A row with higher usage outranks lower ids.
	if err := store.RecordOutcome(ctx, match.ID+1, true); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	second, err := store.GetResponse(ctx, match.ID+1)
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	match2, found, err := store.FindResponse(ctx, "hello "+second.Pattern, "{}")
	if err != nil || !found {
		t.Fatalf("FindResponse after outcome: found=%v err=%v", found, err)
	}
	if match2.ID != second.ID {
		t.Fatalf("expected usage_count to dominate ranking, got pattern %q", match2.Pattern)
	}
}

func TestFindResponse_ContextFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	filtered, err := store.InsertLearnedResponse(ctx, "renewal", "Your renewal is handled by support.")
	if err != nil {
		t.Fatalf("InsertLearnedResponse: %v", err)
	}
	if _, err := store.db.Exec(`UPDATE responses SET context = ? WHERE id = ?`, `{"topic":"support"}`, filtered); err != nil {
		t.Fatalf("set context filter: %v", err)
	}

	// Non-matching user context: the filtered row is invisible.
	_, found, err := store.FindResponse(ctx, "about my renewal", `{"topic":"pricing"}`)
	if err != nil {
		t.Fatalf("FindResponse: %v", err)
	}
	if found {
		t.Fatalf("expected no match when context filter differs")
	}

	// Matching user context: the row is selectable.
	match, found, err := store.FindResponse(ctx, "about my renewal", `{"topic":"support"}`)
	if err != nil || !found {
		t.Fatalf("FindResponse with matching context: found=%v err=%v", found, err)
	}
	if match.ID != filtered {
		t.Fatalf("expected filtered row %d, got %d", filtered, match.ID)
	}
}

func TestRecordOutcome_RunningAverage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.InsertLearnedResponse(ctx, "opening hours", "We open at 9am.")
	if err != nil {
		t.Fatalf("InsertLearnedResponse: %v", err)
	}

	outcomes := []bool{true, true, false, true}
	for _, helpful := range outcomes {
		if err := store.RecordOutcome(ctx, id, helpful); err != nil {
			t.Fatalf("RecordOutcome: %v", err)
		}
	}

	p, err := store.GetResponse(ctx, id)
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if p.UsageCount != 4 {
		t.Fatalf("expected usage_count 4, got %d", p.UsageCount)
	}
	if p.SuccessRate < 0.7499 || p.SuccessRate > 0.7501 {
		t.Fatalf("expected success_rate 0.75, got %f", p.SuccessRate)
	}
}

func TestRecordOutcome_NoneIDIsNoOp(t *testing.T) {
	store := newTestStore(t)
	if err := store.RecordOutcome(context.Background(), ResponseIDNone, true); err != nil {
		t.Fatalf("expected no-op for ResponseIDNone, got %v", err)
	}
}

func TestLogTurn_AndHelpfulness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	turnID, err := store.LogTurn(ctx, ConversationTurn{
		UserID:   "u1",
		Message:  "what plans do you offer",
		Response: "We have three plans.",
		Context:  map[string]string{"topic": "pricing"},
	})
	if err != nil {
		t.Fatalf("LogTurn: %v", err)
	}
	if !strings.HasPrefix(turnID, "trn-") {
		t.Fatalf("expected trn- prefixed id, got %q", turnID)
	}

	turn, err := store.GetTurn(ctx, turnID)
	if err != nil {
		t.Fatalf("GetTurn: %v", err)
	}
	if turn.Helpful != nil {
		t.Fatalf("expected helpfulness unset on a fresh turn")
	}
	if turn.Context["topic"] != "pricing" {
		t.Fatalf("expected context preserved, got %v", turn.Context)
	}

	if err := store.SetTurnHelpfulness(ctx, turnID, true); err != nil {
		t.Fatalf("SetTurnHelpfulness: %v", err)
	}
	turn, err = store.GetTurn(ctx, turnID)
	if err != nil {
		t.Fatalf("GetTurn after feedback: %v", err)
	}
	if turn.Helpful == nil || !*turn.Helpful {
		t.Fatalf("expected helpful=true, got %+v", turn.Helpful)
	}

	if err := store.SetTurnHelpfulness(ctx, "trn-missing", false); err == nil {
		t.Fatalf("expected error for unknown turn id")
	}
}

func TestListUnhandledMessages_GroupsAndThresholds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	log := func(userID, msg, resp string) {
		t.Helper()
		if _, err := store.LogTurn(ctx, ConversationTurn{UserID: userID, Message: msg, Response: resp}); err != nil {
			t.Fatalf("LogTurn: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		log("u1", "when do you open", FallbackReply)
	}
	for i := 0; i < 4; i++ {
		log("u2", "where is the office", FallbackReply)
	}
	// Below threshold.
	log("u3", "do you ship abroad", FallbackReply)
	// Answered turns never count, regardless of frequency.
	for i := 0; i < 5; i++ {
		log("u4", "hello", "Hey there! How can I help you today?")
	}

	msgs, err := store.ListUnhandledMessages(ctx, LearnMarker, 3, 10)
	if err != nil {
		t.Fatalf("ListUnhandledMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 candidates, got %v", msgs)
	}
	if msgs[0] != "where is the office" || msgs[1] != "when do you open" {
		t.Fatalf("expected most frequent first, got %v", msgs)
	}
}
