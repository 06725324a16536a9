package engine

import "github.com/Alexmalab/mailsift/internal/rules"

// evaluateContentGroups applies the enabled subject/body groups to
// content, combined with AND. present reports whether the content was
// ever obtained; an empty-but-fetched string is present.
//
// Against absent content an include group with keywords fails, while an
// exclude group vacuously passes (nothing is there to be excluded).
func evaluateContentGroups(groups []rules.ConditionGroup, content string, present bool) bool {
	for _, g := range groups {
		if !g.Enabled {
			continue
		}
		// A group without keywords constrains nothing.
		if len(g.Keywords) == 0 {
			continue
		}
		if !present {
			if g.Type == rules.Exclude {
				continue
			}
			return false
		}
		raw := evaluateKeywords(g.Keywords, content, g.CaseSensitive)
		if g.Type == rules.Exclude {
			raw = !raw
		}
		if !raw {
			return false
		}
	}
	return true
}
