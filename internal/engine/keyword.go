// Package engine evaluates user-defined triage rules against mail and
// applies their actions through narrow mailbox capability interfaces.
package engine

import (
	"strings"

	"github.com/Alexmalab/mailsift/internal/rules"
)

// evaluateKeywords reports whether the keyword expression matches text as
// a substring test. AND binds tighter than OR: consecutive terms joined
// by "and" form a group that must match in full, and the expression holds
// if any such group holds. An empty term list matches vacuously.
func evaluateKeywords(terms []rules.KeywordTerm, text string, caseSensitive bool) bool {
	if len(terms) == 0 {
		return true
	}
	if !caseSensitive {
		text = strings.ToLower(text)
	}
	contains := func(keyword string) bool {
		if !caseSensitive {
			keyword = strings.ToLower(keyword)
		}
		return strings.Contains(text, keyword)
	}

	// Single term: plain substring test, no logic pairing involved.
	if len(terms) == 1 {
		return contains(terms[0].Keyword)
	}

	groupHolds := true
	for i, term := range terms {
		groupHolds = groupHolds && contains(term.Keyword)
		endOfGroup := term.Logic != rules.LogicAnd || i == len(terms)-1
		if !endOfGroup {
			continue
		}
		if groupHolds {
			return true
		}
		groupHolds = true
	}
	return false
}
