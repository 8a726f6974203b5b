package conversation

import (
	"context"
	"strings"

	"github.com/PabloGalante/graphchat/internal/domain"
)

// Reply is the plan for one assistant message.
type Reply struct {
	Kind domain.Kind

	// Placeholder is the content of the envelope chunk that opens the stream.
	Placeholder string

	// Text is streamed one character per chunk. Empty means no streaming.
	Text string

	// Think adds the pre-final delay.
	Think bool

	// Content is the authoritative content of the final chunk and of the
	// persisted assistant message.
	Content string
}

// Composer builds a Reply, looking up whatever it needs in the catalog.
type Composer func(ctx context.Context, catalog domain.Catalog, userText string) (*Reply, error)

// Rule pairs a predicate on the user text with the reply it produces.
type Rule struct {
	Name    string
	Matches func(userText string) bool
	Compose Composer
}

// ContainsKeyword is a case-insensitive substring predicate.
func ContainsKeyword(keyword string) func(string) bool {
	keyword = strings.ToLower(keyword)
	return func(userText string) bool {
		return strings.Contains(strings.ToLower(userText), keyword)
	}
}

// Classifier evaluates rules top to bottom; the first match wins and the
// fallback applies when none match.
type Classifier struct {
	rules    []Rule
	fallback Rule
}

func NewClassifier(fallback Rule, rules ...Rule) *Classifier {
	return &Classifier{
		rules:    rules,
		fallback: fallback,
	}
}

// DefaultClassifier: workflow > explain > node search > offer options.
func DefaultClassifier() *Classifier {
	return NewClassifier(
		Rule{Name: "options", Matches: func(string) bool { return true }, Compose: composeOptions},
		Rule{Name: "workflow", Matches: ContainsKeyword("workflow"), Compose: composeWorkflowOptions},
		Rule{Name: "explain", Matches: ContainsKeyword("explain"), Compose: composeExplanation},
		Rule{Name: "node_search", Matches: ContainsKeyword("node search"), Compose: composeNodeSearch},
	)
}

func (c *Classifier) Classify(userText string) Rule {
	for _, r := range c.rules {
		if r.Matches(userText) {
			return r
		}
	}
	return c.fallback
}
