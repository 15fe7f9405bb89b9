package service

import (
	"regexp"
	"strings"
)

// KeywordRule describes how one keyword participates in classification.
// Rules are data, not code: the matcher below never needs to change when
// the keyword tables do.
type KeywordRule struct {
	Keyword string

	// Which passes the keyword participates in.
	Exact        bool
	Prefix       bool // "keyword " at the start of the text
	Substring    bool // high-confidence subset only
	WordBoundary bool // context-sensitive words like "cancel"

	// Phrases that indicate ordinary conversational use of the keyword
	// ("stop by", "cancel the"). Their presence anywhere in the text
	// suppresses the substring and word-boundary passes for this rule.
	FalsePositiveContexts []string
}

// RuleSet evaluates keyword rules in four short-circuiting passes, most
// deliberate signal first: exact match, prefix match, substring match,
// word-boundary match.
type RuleSet struct {
	rules    []KeywordRule
	patterns map[string]*regexp.Regexp
}

func NewRuleSet(rules []KeywordRule) *RuleSet {
	patterns := make(map[string]*regexp.Regexp)
	for _, r := range rules {
		if r.WordBoundary {
			patterns[r.Keyword] = regexp.MustCompile(`\b` + regexp.QuoteMeta(r.Keyword) + `\b`)
		}
	}
	return &RuleSet{rules: rules, patterns: patterns}
}

// Match reports the first keyword the text triggers and whether any did.
// Matching is case-insensitive on trimmed text.
func (rs *RuleSet) Match(text string) (string, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", false
	}

	for _, r := range rs.rules {
		if r.Exact && text == r.Keyword {
			return r.Keyword, true
		}
	}

	for _, r := range rs.rules {
		if r.Prefix && strings.HasPrefix(text, r.Keyword+" ") {
			return r.Keyword, true
		}
	}

	for _, r := range rs.rules {
		if r.Substring && strings.Contains(text, r.Keyword) && !suppressed(text, r.FalsePositiveContexts) {
			return r.Keyword, true
		}
	}

	for _, r := range rs.rules {
		if r.WordBoundary && rs.patterns[r.Keyword].MatchString(text) && !suppressed(text, r.FalsePositiveContexts) {
			return r.Keyword, true
		}
	}

	return "", false
}

func suppressed(text string, contexts []string) bool {
	for _, c := range contexts {
		if strings.Contains(text, c) {
			return true
		}
	}
	return false
}

// DefaultOptOutRules is the production opt-out keyword table. The first
// group is unambiguous compliance vocabulary; the word-boundary group holds
// words that only signal opt-out when used alone ("CANCEL") rather than in
// a sentence ("please cancel the order").
func DefaultOptOutRules() *RuleSet {
	return NewRuleSet([]KeywordRule{
		{Keyword: "stop", Exact: true, Prefix: true, Substring: true, FalsePositiveContexts: []string{
			"stop by", "stop at", "stop in", "stop over", "stop and", "stop your",
			"can't stop", "cannot stop", "don't stop", "won't stop",
			"non-stop", "nonstop", "bus stop",
		}},
		{Keyword: "stop all", Exact: true, Prefix: true},
		{Keyword: "stopall", Exact: true},
		{Keyword: "unsubscribe", Exact: true, Prefix: true, Substring: true, FalsePositiveContexts: []string{
			"to unsubscribe", "unsubscribe link", "unsubscribe here", "unsubscribe at",
		}},
		{Keyword: "opt out", Exact: true, Prefix: true, Substring: true, FalsePositiveContexts: []string{
			"to opt out", "opt out link", "opt out at",
		}},
		{Keyword: "opt-out", Exact: true, Prefix: true, Substring: true, FalsePositiveContexts: []string{
			"to opt-out", "opt-out link", "opt-out at",
		}},
		{Keyword: "optout", Exact: true, Substring: true, FalsePositiveContexts: []string{
			"to optout",
		}},
		{Keyword: "remove me", Exact: true, Prefix: true},
		{Keyword: "delete me", Exact: true, Prefix: true},
		{Keyword: "end", WordBoundary: true, FalsePositiveContexts: []string{
			"will end", "end of", "end our", "end up", "to end", "the end",
		}},
		{Keyword: "quit", WordBoundary: true, FalsePositiveContexts: []string{
			"don't quit", "won't quit", "never quit", "quit my",
		}},
		{Keyword: "cancel", WordBoundary: true, FalsePositiveContexts: []string{
			"cancel the", "cancel my", "cancel our", "cancel that", "don't cancel",
		}},
		{Keyword: "remove", WordBoundary: true, FalsePositiveContexts: []string{
			"remove the", "remove my", "remove it", "remove that",
		}},
		{Keyword: "delete", WordBoundary: true, FalsePositiveContexts: []string{
			"delete the", "delete my", "delete it", "delete that",
		}},
	})
}

// DefaultOptInRules mirrors the opt-out table for re-subscription requests.
// "yes" is exact-match-only: it is far too common in conversation to trust
// anywhere else.
func DefaultOptInRules() *RuleSet {
	return NewRuleSet([]KeywordRule{
		{Keyword: "start", Exact: true, Prefix: true},
		{Keyword: "unstop", Exact: true},
		{Keyword: "subscribe", Exact: true, Prefix: true, Substring: true, FalsePositiveContexts: []string{
			"unsubscribe", "to subscribe",
		}},
		{Keyword: "resume", Exact: true, Prefix: true},
		{Keyword: "opt in", Exact: true, Prefix: true},
		{Keyword: "opt-in", Exact: true, Prefix: true},
		{Keyword: "yes", Exact: true},
	})
}
