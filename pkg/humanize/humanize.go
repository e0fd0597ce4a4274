// Package humanize makes bot replies read and arrive like a person typed
// them: scripted variants per intent, conversational prefixes, occasional
// typos, and a typing-speed delivery delay.
package humanize

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Options tune the randomized behaviors. Rates are probabilities in [0,1];
// tests pin them to 0 or 1 for determinism.
type Options struct {
	AckRate  float64
	MuseRate float64
	TypoRate float64
	MinCPS   float64
	MaxCPS   float64
	MaxDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		AckRate:  0.4,
		MuseRate: 0.3,
		TypoRate: 0.05,
		MinCPS:   30,
		MaxCPS:   80,
		MaxDelay: 8 * time.Second,
	}
}

// Shaper applies the humanizing transforms. Safe for concurrent use.
type Shaper struct {
	opts Options

	mu  sync.Mutex
	rng *rand.Rand
}

func NewShaper(opts Options) *Shaper {
	if opts.MinCPS <= 0 {
		opts.MinCPS = 30
	}
	if opts.MaxCPS < opts.MinCPS {
		opts.MaxCPS = opts.MinCPS
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 8 * time.Second
	}
	return &Shaper{
		opts: opts,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var scriptedVariants = map[string][]string{
	"greeting": {
		"Hey! How's it going?",
		"Hi there! What's up?",
		"Hello! How can I help?",
		"Hey hey! Good to hear from you!",
		"Hi! How are you doing today?",
	},
	"pricing": {
		"Our prices start at $50. Want me to send you the full price list?",
		"Depends on what you're looking for! Basic packages start at $50.",
		"Let me get you the pricing info. What service are you interested in?",
	},
	"help": {
		"Sure thing, happy to help! What do you need?",
		"Of course! Tell me what's going on.",
		"I'm here to help. What can I do for you?",
	},
}

// ScriptedReply picks a random variant for intent. Unknown intents return
// ok=false so the caller can fall through to the next selection stage.
func (s *Shaper) ScriptedReply(intent string) (string, bool) {
	variants, ok := scriptedVariants[intent]
	if !ok {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return variants[s.rng.Intn(len(variants))], true
}

var ackPrefixes = []string{
	"Got it! ",
	"Sure! ",
	"Okay, ",
	"Right, ",
}

var musePrefixes = []string{
	"Hmm, ",
	"Let me think... ",
	"Good question! ",
}

var typoMap = map[string]string{
	"your":   "youre",
	"there":  "their",
	"hello":  "helo",
	"please": "plz",
}

// Humanize rewrites reply to read more conversationally. An acknowledgement
// prefix can appear when the conversation has history; a musing prefix when
// the reply is long or a question. At most one typo is injected, followed by
// the corrected word on its own line, the way people fix themselves in chat.
func (s *Shaper) Humanize(reply string, previousMessages []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := reply
	switch {
	case len(previousMessages) > 0 && s.roll(s.opts.AckRate):
		out = ackPrefixes[s.rng.Intn(len(ackPrefixes))] + out
	case (len(strings.Fields(out)) > 8 || strings.Contains(out, "?")) && s.roll(s.opts.MuseRate):
		out = musePrefixes[s.rng.Intn(len(musePrefixes))] + out
	}

	if s.roll(s.opts.TypoRate) {
		words := strings.Fields(out)
		for i, w := range words {
			typo, ok := typoMap[strings.ToLower(strings.Trim(w, ".,!?"))]
			if !ok {
				continue
			}
			correct := strings.Trim(w, ".,!?")
			words[i] = strings.Replace(w, correct, typo, 1)
			out = strings.Join(words, " ") + "\n*" + correct
			break
		}
	}
	return out
}

// TypingDelay estimates how long a person would take to type reply at a
// random speed between MinCPS and MaxCPS characters per second, plus a short
// thinking pause for longer replies, capped at MaxDelay.
func (s *Shaper) TypingDelay(reply string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	cps := s.opts.MinCPS + s.rng.Float64()*(s.opts.MaxCPS-s.opts.MinCPS)
	seconds := float64(len(reply)) / cps
	if len(strings.Fields(reply)) > 5 {
		seconds += 0.5 + s.rng.Float64()
	}

	delay := time.Duration(seconds * float64(time.Second))
	if delay > s.opts.MaxDelay {
		delay = s.opts.MaxDelay
	}
	return delay
}

// roll must be called with s.mu held.
func (s *Shaper) roll(rate float64) bool {
	if rate <= 0 {
		return false
	}
	if rate >= 1 {
		return true
	}
	return s.rng.Float64() < rate
}
