// Package supervisor orchestrates query sessions: it classifies the
// question, optionally builds a TODO plan, delegates work to isolated
// sub-agents, and synthesizes the final cited answer.
package supervisor

import (
	"regexp"
	"strings"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

// Rule names the classification rule that matched. Rules are evaluated
// in declaration order; the first match wins.
type Rule string

const (
	RuleGreeting      Rule = "greeting"
	RuleLookup        Rule = "lookup"
	RuleMultiTemporal Rule = "multi_temporal"
	RuleSynthesis     Rule = "synthesis"
	RuleDefault       Rule = "default"
)

// Classification is the deterministic routing decision for a question.
type Classification struct {
	Mode models.QueryMode
	Rule Rule
}

var (
	greetingRe = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good (morning|afternoon|evening)|thanks|thank you|who are you|what can you do)\b`)
	lookupRe   = regexp.MustCompile(`(?i)\b(list|show me|show all|who attended|who is|who was|when is|when was|what is the status|find the|what decisions|which decisions|what was decided|action items)\b`)
	temporalRe = regexp.MustCompile(`(?i)\b(evolved?|evolving|compare[ds]?|comparison|trend(s|ing)?|over time)\b`)
	synthRe    = regexp.MustCompile(`(?i)\b(summar(y|ize|ise)|decisions across|stakeholders?|overview|key themes)\b`)

	// timeWindowRe matches one reference to a distinct time window:
	// a year, a month name, a quarter, or a relative period. "May" is
	// deliberately absent; as a bare word it is almost always the verb.
	timeWindowRe = regexp.MustCompile(`(?i)\b(20\d{2}|q[1-4]|january|february|march|april|june|july|august|september|october|november|december|(last|this|next) (week|month|quarter|year))\b`)
)

// Classify routes a question to an execution mode. Rules apply in
// order: greeting, single-entity lookup, multi-temporal, synthesis,
// then the planned default.
func Classify(question string) Classification {
	switch {
	case greetingRe.MatchString(question):
		return Classification{Mode: models.ModeDirect, Rule: RuleGreeting}
	case lookupRe.MatchString(question):
		return Classification{Mode: models.ModeSingleDelegate, Rule: RuleLookup}
	case temporalRe.MatchString(question) || len(timeWindows(question)) >= 2:
		return Classification{Mode: models.ModePlanned, Rule: RuleMultiTemporal}
	case synthRe.MatchString(question):
		return Classification{Mode: models.ModeSingleDelegate, Rule: RuleSynthesis}
	default:
		return Classification{Mode: models.ModePlanned, Rule: RuleDefault}
	}
}

// timeWindows returns the distinct time-window references in a question,
// in order of first appearance.
func timeWindows(question string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, match := range timeWindowRe.FindAllString(question, -1) {
		key := strings.ToLower(match)
		if !seen[key] {
			seen[key] = true
			out = append(out, match)
		}
	}
	return out
}
