// Package intent maps free-text queries onto recognized query intents with
// explicit confidence. It is rules-only: "no match" is the signal that a
// caller should fall back to a generative model, never a silent guess.
package intent

import (
	"strings"
	"unicode"
)

// Intent types registered by AddDefaults.
const (
	SimilaritySearch = "similarity_search"
	FactTree         = "fact_tree"
	Predict          = "predict"
	Count            = "count"
)

// DefaultMinConfidence is the floor below which a fuzzy match is discarded.
const DefaultMinConfidence = 0.5

// Pattern is one recognized query template. A phrase matches as a prefix; the
// remainder of the query becomes the extracted target value.
type Pattern struct {
	IntentType string         `json:"intent_type" yaml:"intent_type"`
	Phrases    []string       `json:"phrases" yaml:"phrases"`
	Template   map[string]any `json:"template,omitempty" yaml:"template,omitempty"`
}

// Match is a successful intent resolution.
type Match struct {
	IntentType string
	Confidence float64
	Values     map[string]string
	Template   map[string]any
}

// HighConfidence reports whether the match needs no generative fallback.
func (m Match) HighConfidence() bool { return m.Confidence >= 0.8 }

// Encoder matches query text against registered patterns.
// Not safe for concurrent mutation; register patterns before serving.
type Encoder struct {
	patterns []Pattern
	floor    float64
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithMinConfidence overrides the fuzzy-match floor (default 0.5).
func WithMinConfidence(f float64) Option {
	return func(e *Encoder) { e.floor = f }
}

// NewEncoder creates an empty intent encoder.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{floor: DefaultMinConfidence}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddPattern registers a custom pattern. Later patterns win ties, so
// domain-specific registrations can shadow the defaults.
func (e *Encoder) AddPattern(p Pattern) { e.patterns = append(e.patterns, p) }

// Patterns returns the registered patterns in registration order.
func (e *Encoder) Patterns() []Pattern { return e.patterns }

// AddDefaults registers the baseline pattern library.
func (e *Encoder) AddDefaults() {
	e.AddPattern(Pattern{
		IntentType: SimilaritySearch,
		Phrases: []string{
			"find similar to",
			"what is similar to",
			"search for",
			"find matches for",
			"similar to",
		},
		Template: map[string]any{"operation": "similarity_search", "top_k": 5},
	})
	e.AddPattern(Pattern{
		IntentType: FactTree,
		Phrases: []string{
			"explain",
			"what is",
			"describe",
			"tell me about",
			"verify",
		},
		Template: map[string]any{"operation": "fact_tree", "max_depth": 2},
	})
	e.AddPattern(Pattern{
		IntentType: Predict,
		Phrases: []string{
			"predict",
			"what comes after",
			"forecast",
			"what happens next for",
		},
		Template: map[string]any{"operation": "predict", "steps": 1},
	})
	e.AddPattern(Pattern{
		IntentType: Count,
		Phrases: []string{
			"how many",
			"count",
		},
		Template: map[string]any{"operation": "count"},
	})
}

// MatchIntent resolves text to the best-scoring pattern.
// An exact phrase-prefix match scores 1.0; otherwise the score is the token
// overlap between the query and the phrase, discarded below the floor.
// Returns (match, true) or (zero, false) — the false case is the explicit
// fallback signal.
func (e *Encoder) MatchIntent(text string) (Match, bool) {
	query := normalize(text)
	if query == "" {
		return Match{}, false
	}

	best := Match{Confidence: -1}
	bestLen := -1
	for _, p := range e.patterns {
		for _, phrase := range p.Phrases {
			norm := normalize(phrase)
			conf, target := scorePhrase(query, norm)
			if conf < e.floor || conf < best.Confidence {
				continue
			}
			// On equal confidence the longer (more specific) phrase wins;
			// at equal length later registrations shadow earlier ones, so
			// domain patterns can override the defaults.
			if conf > best.Confidence || len(norm) >= bestLen {
				best = Match{
					IntentType: p.IntentType,
					Confidence: conf,
					Values:     map[string]string{"target": target},
					Template:   p.Template,
				}
				bestLen = len(norm)
			}
		}
	}
	if best.Confidence < 0 {
		return Match{}, false
	}
	return best, true
}

// scorePhrase scores query against one normalized phrase.
// A prefix match is exact (1.0) and yields the remainder as the target.
// Otherwise the confidence is the fraction of phrase tokens found in the
// query, scaled down so fuzzy matches never reach exact confidence.
func scorePhrase(query, phrase string) (float64, string) {
	if phrase == "" {
		return 0, ""
	}
	if query == phrase {
		return 1.0, ""
	}
	if strings.HasPrefix(query, phrase+" ") {
		return 1.0, strings.TrimSpace(strings.TrimPrefix(query, phrase))
	}

	phraseTokens := strings.Fields(phrase)
	queryTokens := strings.Fields(query)
	querySet := make(map[string]struct{}, len(queryTokens))
	for _, tok := range queryTokens {
		querySet[tok] = struct{}{}
	}
	var hits int
	for _, tok := range phraseTokens {
		if _, ok := querySet[tok]; ok {
			hits++
		}
	}
	if hits == 0 {
		return 0, ""
	}
	conf := 0.9 * float64(hits) / float64(len(phraseTokens))

	// Whatever the phrase did not consume is the candidate target.
	var rest []string
	phraseSet := make(map[string]struct{}, len(phraseTokens))
	for _, tok := range phraseTokens {
		phraseSet[tok] = struct{}{}
	}
	for _, tok := range queryTokens {
		if _, ok := phraseSet[tok]; !ok {
			rest = append(rest, tok)
		}
	}
	return conf, strings.Join(rest, " ")
}

// Normalize lowercases, strips punctuation and collapses whitespace — the
// shared treatment for query text before matching or probe encoding.
func Normalize(text string) string { return normalize(text) }

func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPunct(r):
			// dropped; don't reset prevSpace
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}
