// Package intent assigns coarse intent tags to inbound messages by keyword
// matching against an ordered rule list.
package intent

import "strings"

// Intent tags produced by the classifier.
const (
	Greeting = "greeting"
	Pricing  = "pricing"
	Help     = "help"
	Unknown  = "unknown"
)

// Rule maps an intent tag to the keywords that trigger it. A message
// triggers the rule when any keyword appears as a substring.
type Rule struct {
	Tag      string
	Keywords []string
}

// DefaultRules returns the built-in rule list. Order matters: the first rule
// with a keyword hit wins, so earlier rules shadow later ones.
func DefaultRules() []Rule {
	return []Rule{
		{Tag: Greeting, Keywords: []string{"hi", "hello", "hey", "good morning", "good evening"}},
		{Tag: Pricing, Keywords: []string{"price", "cost", "how much", "pricing"}},
		{Tag: Help, Keywords: []string{"help", "support", "assist", "how do i"}},
	}
}

type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over rules; nil means DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the tag of the first rule whose keyword occurs in
// message, or Unknown. Matching is case-insensitive substring matching, so
// "this" hits the greeting keyword "hi"; rules and keyword choice carry the
// precision burden.
func (c *Classifier) Classify(message string) string {
	lowered := strings.ToLower(message)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, kw) {
				return rule.Tag
			}
		}
	}
	return Unknown
}
