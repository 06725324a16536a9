package gmailctl

import (
	"fmt"
	"strings"

	"github.com/Alexmalab/mailsift/internal/rules"
)

// ConvertResult is the outcome of converting one export: the rules that
// could be expressed natively plus the filters that could not.
type ConvertResult struct {
	Rules   []rules.Rule
	Skipped []string // filter names/ids with a reason
}

// Convert turns a compiled gmailctl export into native rules. Gmail
// filters run independently of each other, so every converted rule
// continues processing instead of stopping at the first match.
//
// Filters that only express raw query strings or forwards have no native
// equivalent and are reported in Skipped.
func Convert(export Export) ConvertResult {
	labelNames := make(map[string]string, len(export.Labels))
	for _, l := range export.Labels {
		labelNames[l.ID] = l.Name
	}

	var res ConvertResult
	noStop := false
	for i, f := range export.Filters {
		name := f.Name
		if name == "" {
			name = f.ID
		}
		if name == "" {
			name = fmt.Sprintf("gmailctl filter %d", i+1)
		}

		conds := criteriaConditions(f.Criteria)
		if len(conds) == 0 {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s: no convertible criteria (query-only filters are not supported)", name))
			continue
		}
		if f.Action.Forward != "" {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s: forwarding has no native action", name))
			continue
		}

		action, ok := filterAction(f.Action, labelNames)
		if !ok {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s: no convertible action", name))
			continue
		}
		action.StopProcessing = &noStop

		res.Rules = append(res.Rules, rules.Rule{
			Name:       name,
			Enabled:    true,
			Conditions: conds,
			Action:     action,
		})
	}
	return res
}

func criteriaConditions(c FilterCriteria) rules.Conditions {
	conds := rules.Conditions{}
	addContent := func(t rules.ConditionType, value string) {
		conds[t] = rules.GroupList{{
			Enabled:  true,
			Type:     rules.Include,
			Keywords: []rules.KeywordTerm{{Keyword: value, Logic: rules.LogicOr}},
		}}
	}
	// Append rather than assign: to and list both target the recipient
	// condition, and both groups must survive.
	addAddress := func(t rules.ConditionType, value string) {
		conds[t] = append(conds[t], rules.ConditionGroup{Enabled: true, Type: rules.Include, Address: value})
	}

	if c.From != "" {
		addAddress(rules.CondSender, c.From)
	}
	if c.To != "" {
		addAddress(rules.CondRecipient, c.To)
	}
	if c.Subject != "" {
		addContent(rules.CondSubject, strings.Trim(c.Subject, `"`))
	}
	if c.List != "" {
		// List posts carry the list address in To/Cc.
		addAddress(rules.CondRecipient, c.List)
	}
	if len(conds) == 0 {
		return nil
	}
	return conds
}

// filterAction maps Gmail label mutations onto a native action. Adding a
// label while leaving the inbox is a move; adding TRASH is a delete;
// removing UNREAD marks read.
func filterAction(a FilterAction, labelNames map[string]string) (rules.Action, bool) {
	var act rules.Action
	archives := false
	for _, id := range a.RemoveLabelIDs {
		switch id {
		case "INBOX":
			archives = true
		case "UNREAD":
			act.MarkAsRead = true
		}
	}

	var added []string
	for _, id := range a.AddLabelIDs {
		if id == "TRASH" {
			act.Type = "delete"
			return act, true
		}
		name := labelNames[id]
		if name == "" {
			name = id
		}
		added = append(added, name)
	}

	if archives && len(added) > 0 {
		act.MoveToFolder = added[0]
		added = added[1:]
	}
	if len(added) > 0 {
		act.SetLabel = rules.LabelList(added)
	}

	if !act.MarkAsRead && act.MoveToFolder == "" && len(act.SetLabel) == 0 {
		return rules.Action{}, false
	}
	return act, true
}
