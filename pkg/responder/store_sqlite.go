package responder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the canonical persistent responder storage.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the responder database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create responder db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process responder. Use one shared connection to avoid writer
	// lock contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			context_json TEXT NOT NULL DEFAULT '{}',
			was_helpful INTEGER,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS conversations_user_idx ON conversations(user_id, created_at_ms DESC);`,
		`CREATE TABLE IF NOT EXISTS user_contexts (
			user_id TEXT PRIMARY KEY,
			context_json TEXT NOT NULL DEFAULT '{}',
			conversation_state TEXT NOT NULL DEFAULT 'initial',
			previous_messages_json TEXT NOT NULL DEFAULT '[]',
			last_interaction_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS responses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pattern TEXT NOT NULL,
			response TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			usage_count INTEGER NOT NULL DEFAULT 0,
			success_rate REAL NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS responses_rank_idx ON responses(usage_count DESC, success_rate DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema failed on %q: %w", trimSQL(stmt), err)
		}
	}
	return nil
}

func trimSQL(sql string) string {
	line := strings.TrimSpace(sql)
	if len(line) > 96 {
		return line[:96] + "..."
	}
	return line
}

func nowMS() int64 { return time.Now().UnixMilli() }

func encodeMap(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeMap(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	out := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeList(l []string) string {
	if len(l) == 0 {
		return "[]"
	}
	b, err := json.Marshal(l)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	out := []string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserContext returns the stored context for userID, or the default
// context when none exists. Absence is not an error. A row whose serialized
// blobs cannot be decoded yields the default context together with an error
// wrapping ErrCorruptContext, so callers can log the anomaly and continue.
func (s *SQLiteStore) GetUserContext(ctx context.Context, userID string) (UserContext, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT context_json, conversation_state, previous_messages_json, last_interaction_ms
FROM user_contexts WHERE user_id = ?`, userID)

	var contextRaw, state, messagesRaw string
	var lastMS int64
	if err := row.Scan(&contextRaw, &state, &messagesRaw, &lastMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaultUserContext(userID), nil
		}
		return UserContext{}, fmt.Errorf("get user context: %w", err)
	}

	contextMap, cErr := decodeMap(contextRaw)
	messages, mErr := decodeList(messagesRaw)
	if cErr != nil || mErr != nil {
		return defaultUserContext(userID), fmt.Errorf("get user context %q: %w", userID, ErrCorruptContext)
	}
	if state == "" {
		state = StateInitial
	}

	return UserContext{
		UserID:            userID,
		Context:           contextMap,
		State:             state,
		PreviousMessages:  messages,
		LastInteractionMS: lastMS,
	}, nil
}

// UpdateUserContext appends message to the user's history (capped to the
// last five entries, oldest dropped first) and upserts the full record with
// last_interaction set to now. The first call for a userID creates the row.
// Callers serialize calls per user; this is last-write-wins replace.
func (s *SQLiteStore) UpdateUserContext(ctx context.Context, userID string, contextMap map[string]string, state, message string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update user context begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var messagesRaw string
	messages := []string{}
	row := tx.QueryRowContext(ctx, `SELECT previous_messages_json FROM user_contexts WHERE user_id = ?`, userID)
	switch err := row.Scan(&messagesRaw); {
	case err == nil:
		decoded, dErr := decodeList(messagesRaw)
		if dErr == nil {
			messages = decoded
		}
		// A corrupt history blob restarts the history rather than failing
		// the write; the read path reports the corruption.
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("update user context read history: %w", err)
	}

	messages = append(messages, message)
	if len(messages) > historyLimit {
		messages = messages[len(messages)-historyLimit:]
	}
	if state == "" {
		state = StateInitial
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO user_contexts(user_id, context_json, conversation_state, previous_messages_json, last_interaction_ms)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	context_json = excluded.context_json,
	conversation_state = excluded.conversation_state,
	previous_messages_json = excluded.previous_messages_json,
	last_interaction_ms = excluded.last_interaction_ms`,
		userID, encodeMap(contextMap), state, encodeList(messages), nowMS()); err != nil {
		return fmt.Errorf("update user context upsert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update user context commit: %w", err)
	}
	return nil
}

// LogTurn appends one conversation turn and returns its id.
func (s *SQLiteStore) LogTurn(ctx context.Context, turn ConversationTurn) (string, error) {
	if strings.TrimSpace(turn.UserID) == "" {
		return "", fmt.Errorf("log turn: empty user_id")
	}
	if turn.ID == "" {
		turn.ID = "trn-" + uuid.NewString()
	}
	if turn.CreatedAtMS == 0 {
		turn.CreatedAtMS = nowMS()
	}

	var helpful any
	if turn.Helpful != nil {
		helpful = boolToInt(*turn.Helpful)
	}

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO conversations(id, user_id, message, response, context_json, was_helpful, created_at_ms)
VALUES(?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.UserID, turn.Message, turn.Response, encodeMap(turn.Context), helpful, turn.CreatedAtMS); err != nil {
		return "", fmt.Errorf("log turn: %w", err)
	}
	return turn.ID, nil
}

func (s *SQLiteStore) GetTurn(ctx context.Context, turnID string) (ConversationTurn, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, user_id, message, response, context_json, was_helpful, created_at_ms
FROM conversations WHERE id = ?`, turnID)

	var turn ConversationTurn
	var contextRaw string
	var helpful sql.NullInt64
	if err := row.Scan(&turn.ID, &turn.UserID, &turn.Message, &turn.Response, &contextRaw, &helpful, &turn.CreatedAtMS); err != nil {
		return ConversationTurn{}, fmt.Errorf("get turn: %w", err)
	}
	contextMap, err := decodeMap(contextRaw)
	if err != nil {
		contextMap = map[string]string{}
	}
	turn.Context = contextMap
	if helpful.Valid {
		v := helpful.Int64 != 0
		turn.Helpful = &v
	}
	return turn, nil
}

// SetTurnHelpfulness attaches delivery feedback to an already logged turn.
func (s *SQLiteStore) SetTurnHelpfulness(ctx context.Context, turnID string, helpful bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET was_helpful = ? WHERE id = ?`, boolToInt(helpful), turnID)
	if err != nil {
		return fmt.Errorf("set turn helpfulness: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set turn helpfulness: turn %q not found", turnID)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// seedResponses is the fixed initial catalog, inserted exactly once on an
// empty responses table.
var seedResponses = []struct {
	pattern  string
	response string
}{
	{"hello", "Hey there! How can I help you today?"},
	{"hi", "Hi! What can I do for you?"},
	{"help", "I'd be happy to help! What do you need assistance with?"},
	{"thank", "You're welcome! Is there anything else you need?"},
	{"bye", "Take care! Have a great day!"},
	{"price", "I can help you with pricing. What specific service are you interested in?"},
	{"cost", "Let me help you with the costs. What would you like to know about?"},
	{"how", "I'd be happy to explain. What would you like to know more about?"},
	{"where", "I can help you with location information. What are you looking for?"},
	{"when", "Let me check the timing for you. What specifically would you like to know?"},
}

// EnsureSeedResponses inserts the initial catalog when the responses table
// is empty. Idempotent: the count is checked first.
func (s *SQLiteStore) EnsureSeedResponses(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed responses begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM responses`).Scan(&count); err != nil {
		return fmt.Errorf("seed responses count: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := nowMS()
	for _, seed := range seedResponses {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO responses(pattern, response, context, usage_count, success_rate, created_at_ms)
VALUES(?, ?, '', 0, 0, ?)`, seed.pattern, seed.response, now); err != nil {
			return fmt.Errorf("seed responses insert %q: %w", seed.pattern, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed responses commit: %w", err)
	}
	return nil
}

// FindResponse returns the best catalog match for message, which must
// already be lowercased. A row matches when its pattern is a substring of
// the message and its context filter is empty or equals contextFilter.
// Ranking: usage_count desc, success_rate desc, then lowest id as the fixed
// tie-break.
func (s *SQLiteStore) FindResponse(ctx context.Context, message, contextFilter string) (ResponsePattern, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, pattern, response, context, usage_count, success_rate, created_at_ms
FROM responses
WHERE instr(?, pattern) > 0
AND (context = '' OR context = ?)
ORDER BY usage_count DESC, success_rate DESC, id ASC
LIMIT 1`, message, contextFilter)

	var p ResponsePattern
	if err := row.Scan(&p.ID, &p.Pattern, &p.Response, &p.Context, &p.UsageCount, &p.SuccessRate, &p.CreatedAtMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ResponsePattern{}, false, nil
		}
		return ResponsePattern{}, false, fmt.Errorf("find response: %w", err)
	}
	return p, true, nil
}

func (s *SQLiteStore) GetResponse(ctx context.Context, id int64) (ResponsePattern, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, pattern, response, context, usage_count, success_rate, created_at_ms
FROM responses WHERE id = ?`, id)

	var p ResponsePattern
	if err := row.Scan(&p.ID, &p.Pattern, &p.Response, &p.Context, &p.UsageCount, &p.SuccessRate, &p.CreatedAtMS); err != nil {
		return ResponsePattern{}, fmt.Errorf("get response: %w", err)
	}
	return p, nil
}

// RecordOutcome folds one delivery outcome into the matched row's running
// average: success_rate' = (success_rate*usage_count + outcome) / (usage_count+1),
// then usage_count is bumped. Order-dependent and never decays old evidence.
// ResponseIDNone is an explicit no-op.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, responseID int64, wasHelpful bool) error {
	if responseID == ResponseIDNone {
		return nil
	}
	outcome := 0.0
	if wasHelpful {
		outcome = 1.0
	}
	if _, err := s.db.ExecContext(ctx, `
UPDATE responses
SET success_rate = (success_rate * usage_count + ?) / (usage_count + 1),
	usage_count = usage_count + 1
WHERE id = ?`, outcome, responseID); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// InsertLearnedResponse appends a catalog row synthesized by the learning
// pass: zero usage, zero success rate, no context filter.
func (s *SQLiteStore) InsertLearnedResponse(ctx context.Context, pattern, response string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO responses(pattern, response, context, usage_count, success_rate, created_at_ms)
VALUES(?, ?, '', 0, 0, ?)`, strings.ToLower(pattern), response, nowMS())
	if err != nil {
		return 0, fmt.Errorf("insert learned response: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert learned response id: %w", err)
	}
	return id, nil
}

// ListUnhandledMessages returns distinct messages whose logged response
// contains marker and which occurred at least minCount times, most frequent
// first, capped at limit.
func (s *SQLiteStore) ListUnhandledMessages(ctx context.Context, marker string, minCount, limit int) ([]string, error) {
	if minCount <= 0 {
		minCount = 1
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT message FROM conversations
WHERE response LIKE ?
GROUP BY message
HAVING COUNT(*) >= ?
ORDER BY COUNT(*) DESC, message ASC
LIMIT ?`, "%"+marker+"%", minCount, limit)
	if err != nil {
		return nil, fmt.Errorf("list unhandled messages: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, limit)
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("scan unhandled message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unhandled messages: %w", err)
	}
	return out, nil
}
