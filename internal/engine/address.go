package engine

import (
	"strings"

	"github.com/Alexmalab/mailsift/internal/mail"
	"github.com/Alexmalab/mailsift/internal/rules"
)

// evaluateSenderGroups applies the enabled sender groups to a single
// address, combined with AND. A nil sender yields a raw non-match for
// every group.
func evaluateSenderGroups(groups []rules.ConditionGroup, sender *mail.Address) bool {
	for _, g := range groups {
		if !g.Enabled {
			continue
		}
		raw := sender != nil && addressContains(*sender, g.Address, g.CaseSensitive)
		if g.Type == rules.Exclude {
			raw = !raw
		}
		if !raw {
			return false
		}
	}
	return true
}

// evaluateListGroups applies the enabled recipient/cc groups to an
// address list, combined with AND. A group's raw match holds if any list
// element matches; a nil (never fetched) list yields a raw non-match.
func evaluateListGroups(groups []rules.ConditionGroup, addrs []mail.Address) bool {
	for _, g := range groups {
		if !g.Enabled {
			continue
		}
		raw := false
		for _, a := range addrs {
			if addressContains(a, g.Address, g.CaseSensitive) {
				raw = true
				break
			}
		}
		if g.Type == rules.Exclude {
			raw = !raw
		}
		if !raw {
			return false
		}
	}
	return true
}

// addressContains reports whether the needle occurs in the address's
// email or display name, folding case unless the group asks otherwise.
func addressContains(a mail.Address, needle string, caseSensitive bool) bool {
	email, name := a.Email, a.DisplayName
	if !caseSensitive {
		needle = strings.ToLower(needle)
		email = strings.ToLower(email)
		name = strings.ToLower(name)
	}
	return strings.Contains(email, needle) || strings.Contains(name, needle)
}
