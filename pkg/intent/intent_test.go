package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_DefaultRules(t *testing.T) {
	c := NewClassifier(nil)

	cases := []struct {
		name    string
		message string
		want    string
	}{
		{"greeting_hi", "hi there", Greeting},
		{"greeting_hello", "hello, anyone home?", Greeting},
		{"greeting_good_morning", "good morning!", Greeting},
		{"pricing_price", "what's the price of the pro plan", Pricing},
		{"pricing_how_much", "how much does it cost", Pricing},
		{"help_support", "i need support with my order", Help},
		{"help_how_do_i", "how do i reset my password", Help},
		{"unknown", "do you take returns", Unknown},
		{"unknown_empty", "", Unknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.message))
		})
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := NewClassifier(nil)
	assert.Equal(t, Greeting, c.Classify("HELLO THERE"))
	assert.Equal(t, Pricing, c.Classify("What Is The PRICE"))
}

func TestClassify_FirstRuleWins(t *testing.T) {
	c := NewClassifier(nil)
	// Contains both a greeting keyword and a pricing keyword; the greeting
	// rule is listed first.
	assert.Equal(t, Greeting, c.Classify("hi, how much is it"))
}

func TestClassify_SubstringSemantics(t *testing.T) {
	c := NewClassifier(nil)
	// Keyword hits are substring hits, not word hits: "this" contains "hi".
	assert.Equal(t, Greeting, c.Classify("is this thing on"))
}

func TestClassify_CustomRules(t *testing.T) {
	c := NewClassifier([]Rule{
		{Tag: "shipping", Keywords: []string{"ship", "deliver"}},
	})

	require.Equal(t, "shipping", c.Classify("when do you ship orders"))
	assert.Equal(t, Unknown, c.Classify("hello"))
}
