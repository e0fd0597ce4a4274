package humanize

import (
	"strings"
	"testing"
	"time"
)

func shaperWith(ack, muse, typo float64) *Shaper {
	return NewShaper(Options{
		AckRate:  ack,
		MuseRate: muse,
		TypoRate: typo,
		MinCPS:   30,
		MaxCPS:   80,
		MaxDelay: 8 * time.Second,
	})
}

func TestScriptedReply_KnownIntentsReturnVariant(t *testing.T) {
	s := shaperWith(0, 0, 0)

	for intent, variants := range scriptedVariants {
		reply, ok := s.ScriptedReply(intent)
		if !ok {
			t.Fatalf("expected scripted reply for intent %q", intent)
		}
		found := false
		for _, v := range variants {
			if v == reply {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("reply %q is not a known %q variant", reply, intent)
		}
	}
}

func TestScriptedReply_UnknownIntentFallsThrough(t *testing.T) {
	s := shaperWith(0, 0, 0)
	if _, ok := s.ScriptedReply("unknown"); ok {
		t.Fatalf("unknown intent must not produce a scripted reply")
	}
}

func TestHumanize_AllRatesZeroIsIdentity(t *testing.T) {
	s := shaperWith(0, 0, 0)
	in := "Our prices start at $50. Want me to send you the full price list?"
	if out := s.Humanize(in, []string{"earlier message"}); out != in {
		t.Fatalf("expected identity transform, got %q", out)
	}
}

func TestHumanize_AckRequiresHistory(t *testing.T) {
	s := shaperWith(1, 0, 0)

	// No history: no acknowledgement even at rate 1.
	if out := s.Humanize("Sure.", nil); out != "Sure." {
		t.Fatalf("expected no ack without history, got %q", out)
	}

	out := s.Humanize("Sure.", []string{"hi"})
	hasPrefix := false
	for _, p := range ackPrefixes {
		if strings.HasPrefix(out, p) {
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		t.Fatalf("expected an acknowledgement prefix, got %q", out)
	}
}

func TestHumanize_MusingOnQuestionsAndLongReplies(t *testing.T) {
	s := shaperWith(0, 1, 0)

	out := s.Humanize("Want me to check?", nil)
	hasPrefix := false
	for _, p := range musePrefixes {
		if strings.HasPrefix(out, p) {
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		t.Fatalf("expected a musing prefix on a question, got %q", out)
	}

	// Short statement: no musing even at rate 1.
	if out := s.Humanize("Sure.", nil); out != "Sure." {
		t.Fatalf("expected short statement untouched, got %q", out)
	}
}

func TestHumanize_TypoFollowedByCorrection(t *testing.T) {
	s := shaperWith(0, 0, 1)

	out := s.Humanize("hello please wait", nil)
	if !strings.Contains(out, "\n*") {
		t.Fatalf("expected a chat-style correction line, got %q", out)
	}
	if !strings.Contains(out, "helo") {
		t.Fatalf("expected the first known word misspelled, got %q", out)
	}
	if !strings.HasSuffix(out, "*hello") {
		t.Fatalf("expected correction of the misspelled word, got %q", out)
	}
}

func TestHumanize_TypoSkipsWhenNoKnownWord(t *testing.T) {
	s := shaperWith(0, 0, 1)
	in := "nothing matches here"
	if out := s.Humanize(in, nil); out != in {
		t.Fatalf("expected untouched reply when no typo candidate, got %q", out)
	}
}

func TestTypingDelay_Bounds(t *testing.T) {
	s := shaperWith(0, 0, 0)
	reply := "Let me get you the pricing info. What service are you interested in?"

	for i := 0; i < 50; i++ {
		delay := s.TypingDelay(reply)
		// Slowest: len/30 cps + 1.5s pause. Fastest: len/80 cps + 0.5s.
		min := time.Duration(float64(len(reply))/80*float64(time.Second)) + 500*time.Millisecond
		max := time.Duration(float64(len(reply))/30*float64(time.Second)) + 1500*time.Millisecond
		if delay < min || delay > max {
			t.Fatalf("delay %v outside [%v, %v]", delay, min, max)
		}
	}
}

func TestTypingDelay_CappedAtMax(t *testing.T) {
	s := NewShaper(Options{MinCPS: 1, MaxCPS: 1, MaxDelay: 2 * time.Second})
	long := strings.Repeat("a very long reply ", 50)
	if delay := s.TypingDelay(long); delay > 2*time.Second {
		t.Fatalf("expected delay capped at 2s, got %v", delay)
	}
}

func TestTypingDelay_ShortReplySkipsThinkingPause(t *testing.T) {
	s := shaperWith(0, 0, 0)
	// Five words or fewer: no extra pause, so the delay is pure typing time.
	reply := "Sure thing!"
	max := time.Duration(float64(len(reply))/30*float64(time.Second)) + time.Millisecond
	if delay := s.TypingDelay(reply); delay > max {
		t.Fatalf("expected no thinking pause for short reply, got %v", delay)
	}
}
