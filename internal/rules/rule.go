package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode selects how a rule decides matches.
type Mode string

const (
	// ModeNormal evaluates the rule's keyword/address condition groups.
	ModeNormal Mode = "normal"
	// ModeAI delegates the match decision to an external LLM judgement.
	ModeAI Mode = "ai"
)

// MatchType says whether a group's raw match must be present or absent.
type MatchType string

const (
	Include MatchType = "include"
	Exclude MatchType = "exclude"
)

// Logic joins a keyword term to the term that follows it. AND binds
// tighter than OR.
type Logic string

const (
	LogicOr  Logic = "or"
	LogicAnd Logic = "and"
)

// ConditionType names one evaluable aspect of a message.
type ConditionType string

const (
	CondSubject   ConditionType = "subject"
	CondBody      ConditionType = "body"
	CondSender    ConditionType = "sender"
	CondRecipient ConditionType = "recipient"
	CondCc        ConditionType = "cc"
)

// ConditionTypes lists every condition type in evaluation order.
var ConditionTypes = []ConditionType{CondSender, CondRecipient, CondCc, CondSubject, CondBody}

// KeywordTerm is one keyword plus the logic joining it to the next term.
// Logic is meaningless on the last term of a list.
type KeywordTerm struct {
	Keyword string `json:"keyword"`
	Logic   Logic  `json:"logic,omitempty"`
}

// UnmarshalJSON accepts both the object form and the legacy bare-string
// form (a plain keyword, implicitly OR-joined).
func (t *KeywordTerm) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Keyword = s
		t.Logic = LogicOr
		return nil
	}
	type plain KeywordTerm
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = KeywordTerm(p)
	return nil
}

// ConditionGroup is one include/exclude clause within a condition type.
// Subject/body groups carry Keywords; address groups carry Address.
type ConditionGroup struct {
	Enabled       bool          `json:"enabled"`
	Type          MatchType     `json:"type"`
	CaseSensitive bool          `json:"caseSensitive"`
	Keywords      []KeywordTerm `json:"keywords,omitempty"`
	Address       string        `json:"address,omitempty"`
}

// GroupList is the ordered groups of one condition type. Sibling groups
// combine with AND: every enabled group must hold for the type to pass.
type GroupList []ConditionGroup

// UnmarshalJSON lifts the legacy single-object condition shape into a
// one-element group list, so evaluators only ever see the array shape.
func (l *GroupList) UnmarshalJSON(data []byte) error {
	var groups []ConditionGroup
	if err := json.Unmarshal(data, &groups); err == nil {
		*l = groups
		return nil
	}
	var single ConditionGroup
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("condition groups: %w", err)
	}
	*l = GroupList{single}
	return nil
}

// EnabledGroups returns only the groups that participate in evaluation.
func (l GroupList) EnabledGroups() []ConditionGroup {
	out := make([]ConditionGroup, 0, len(l))
	for _, g := range l {
		if g.Enabled {
			out = append(out, g)
		}
	}
	return out
}

// Conditions maps condition types to their groups.
type Conditions map[ConditionType]GroupList

// Enabled reports whether the given condition type has any enabled group.
func (c Conditions) Enabled(t ConditionType) bool {
	return len(c[t].EnabledGroups()) > 0
}

// Prompt is the system/user prompt pair of an AI-mode rule. System is
// captured at rule save time; an empty value falls back to the built-in
// classification prompt.
type Prompt struct {
	System string `json:"system,omitempty"`
	User   string `json:"user"`
}

// LabelList accepts both a single label name and a list of names.
type LabelList []string

func (l *LabelList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = LabelList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("setLabel: %w", err)
	}
	*l = many
	return nil
}

// Action is what a matched rule does to the message.
type Action struct {
	Type           string    `json:"type,omitempty"` // "normal" or "delete"
	MoveToFolder   string    `json:"moveToFolder,omitempty"`
	SetLabel       LabelList `json:"setLabel,omitempty"`
	MarkAsRead     bool      `json:"markAsRead,omitempty"`
	StopProcessing *bool     `json:"stopProcessing,omitempty"`
}

// IsDelete reports whether the action removes the mail from processing.
func (a Action) IsDelete() bool { return a.Type == "delete" }

// Stops reports whether a match ends the rule pass. Absent means stop.
func (a Action) Stops() bool {
	return a.StopProcessing == nil || *a.StopProcessing
}

// Rule is one user-authored automation unit. Rules are stored as an
// ordered list; list order is evaluation priority.
type Rule struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Enabled       bool       `json:"enabled"`
	ConditionMode Mode       `json:"conditionMode,omitempty"`
	Conditions    Conditions `json:"conditions,omitempty"`
	AIPrompt      *Prompt    `json:"aiPrompt,omitempty"`
	Action        Action     `json:"action"`
}

// Mode normalizes the stored condition mode; rules predating AI support
// have none and evaluate normally.
func (r Rule) Mode() Mode {
	if r.ConditionMode == ModeAI {
		return ModeAI
	}
	return ModeNormal
}

// Validate checks the invariants a rule must satisfy before it is saved
// or imported.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	switch r.Mode() {
	case ModeAI:
		if r.AIPrompt == nil || strings.TrimSpace(r.AIPrompt.User) == "" {
			return fmt.Errorf("rule %q: ai mode requires a user prompt", r.Name)
		}
	case ModeNormal:
		for t, groups := range r.Conditions {
			switch t {
			case CondSubject, CondBody, CondSender, CondRecipient, CondCc:
			default:
				return fmt.Errorf("rule %q: unknown condition type %q", r.Name, t)
			}
			for _, g := range groups {
				if g.Type != Include && g.Type != Exclude {
					return fmt.Errorf("rule %q: %s group has invalid type %q", r.Name, t, g.Type)
				}
			}
		}
	}
	return nil
}
