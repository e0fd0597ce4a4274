package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/elliotchance/pie/v2"
)

// Learner grows the response catalog from conversation history: messages the
// engine repeatedly answered with the fallback become new catalog patterns
// with a synthesized reply.
type Learner struct {
	store Store
	log   *slog.Logger

	minOccurrences int
	maxCandidates  int
}

func NewLearner(store Store, minOccurrences, maxCandidates int, log *slog.Logger) *Learner {
	if minOccurrences <= 0 {
		minOccurrences = 3
	}
	if maxCandidates <= 0 {
		maxCandidates = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Learner{store: store, log: log, minOccurrences: minOccurrences, maxCandidates: maxCandidates}
}

// Run executes one learning pass and returns the number of catalog rows it
// added. Messages whose shape yields no reply template are skipped. Runs are
// not deduplicated against rows added by earlier passes; a pattern already
// learned still answers its message, which keeps it out of future fallback
// logs.
func (l *Learner) Run(ctx context.Context) (int, error) {
	candidates, err := l.store.ListUnhandledMessages(ctx, LearnMarker, l.minOccurrences, l.maxCandidates)
	if err != nil {
		return 0, fmt.Errorf("learning pass: %w", err)
	}

	added := 0
	for _, msg := range candidates {
		response, ok := generateResponse(msg)
		if !ok {
			continue
		}
		id, err := l.store.InsertLearnedResponse(ctx, strings.ToLower(msg), response)
		if err != nil {
			return added, fmt.Errorf("learning pass: %w", err)
		}
		l.log.Info("learned new response pattern", "response_id", id, "pattern", strings.ToLower(msg))
		added++
	}
	return added, nil
}

// generateResponse synthesizes a reply for an unhandled message based on its
// question shape. Messages matching no shape produce nothing.
func generateResponse(message string) (string, bool) {
	lowered := strings.ToLower(message)
	anyKeyword := func(keywords ...string) bool {
		return pie.Any(keywords, func(kw string) bool { return strings.Contains(lowered, kw) })
	}

	switch {
	case anyKeyword("when", "what time", "schedule"):
		return "Let me check our schedule and get back to you on that.", true
	case anyKeyword("how", "explain"):
		return "That's a great question. Let me find the details for you.", true
	case anyKeyword("where", "location"):
		return "Let me get you the location details you need.", true
	case strings.Contains(lowered, "?"):
		return "Good question! Let me look into that for you.", true
	default:
		return "", false
	}
}
