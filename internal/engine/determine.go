package engine

import (
	"github.com/Alexmalab/mailsift/internal/mail"
	"github.com/Alexmalab/mailsift/internal/rules"
)

// ActionType tags one planned action.
type ActionType string

const (
	ActionMarkRead   ActionType = "markRead"
	ActionApplyLabel ActionType = "applyLabel"
	ActionMove       ActionType = "moveMail"
)

// Action is one planned, not-yet-executed operation on a message. All
// planned actions reference the message's identifier as it was when the
// plan was computed; the batch runner resolves renames itself.
type Action struct {
	Type     ActionType
	MailID   mail.MailID
	IsRead   bool
	LabelIDs []string
	FolderID string
	UniqueID string
}

// DetermineActions computes what the rule set would do to a fully
// described message without executing anything and without fetching.
// Data the context does not carry fails the conditions that need it.
// AI-mode rules are not judged here: a pure decision pass cannot call
// out to an LLM, so they are skipped.
func DetermineActions(mc mail.Context, ruleSet []rules.Rule, dir mail.Directory) []Action {
	var planned []Action

	for _, rule := range ruleSet {
		if !rule.Enabled || rule.Mode() == rules.ModeAI {
			continue
		}
		if !matchesKnownData(rule, mc) {
			continue
		}

		act := rule.Action
		if act.MarkAsRead {
			planned = append(planned, Action{Type: ActionMarkRead, MailID: mc.ID, IsRead: true})
		}
		if len(act.SetLabel) > 0 {
			labelIDs := make([]string, 0, len(act.SetLabel))
			for _, name := range act.SetLabel {
				if lid, ok := dir.LabelID(name); ok {
					labelIDs = append(labelIDs, lid)
				}
			}
			if len(labelIDs) > 0 {
				planned = append(planned, Action{Type: ActionApplyLabel, MailID: mc.ID, LabelIDs: labelIDs})
			}
		}
		if act.MoveToFolder != "" {
			if fid, ok := dir.FolderID(act.MoveToFolder); ok {
				planned = append(planned, Action{
					Type:     ActionMove,
					MailID:   mc.ID,
					FolderID: fid,
					UniqueID: mail.UniqueID(mc.ID),
				})
			}
		}

		if act.Stops() {
			break
		}
	}
	return planned
}

// matchesKnownData evaluates a normal-mode rule against only the data the
// context already holds. Enabled conditions whose data is absent fail.
func matchesKnownData(rule rules.Rule, mc mail.Context) bool {
	conds := rule.Conditions

	if groups := conds[rules.CondSender].EnabledGroups(); len(groups) > 0 {
		if mc.Sender == nil || !evaluateSenderGroups(groups, mc.Sender) {
			return false
		}
	}
	if groups := conds[rules.CondRecipient].EnabledGroups(); len(groups) > 0 {
		if mc.Recipients == nil || !evaluateListGroups(groups, mc.Recipients) {
			return false
		}
	}
	if groups := conds[rules.CondCc].EnabledGroups(); len(groups) > 0 {
		if mc.Cc == nil || !evaluateListGroups(groups, mc.Cc) {
			return false
		}
	}
	if groups := conds[rules.CondSubject].EnabledGroups(); len(groups) > 0 {
		if !evaluateContentGroups(groups, mc.Subject, mc.HasSubject) {
			return false
		}
	}
	if groups := conds[rules.CondBody].EnabledGroups(); len(groups) > 0 {
		if !mc.HasBody {
			return false
		}
		if !evaluateContentGroups(groups, mc.Body, true) {
			return false
		}
	}
	return true
}
