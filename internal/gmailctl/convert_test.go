package gmailctl

import (
	"testing"

	"github.com/Alexmalab/mailsift/internal/rules"
)

func TestConvertMoveFilter(t *testing.T) {
	export := Export{
		Labels: []Label{{ID: "Label_1", Name: "newsletters"}},
		Filters: []Filter{{
			Name:     "newsletter sweep",
			Criteria: FilterCriteria{From: "news@example.com"},
			Action: FilterAction{
				AddLabelIDs:    []string{"Label_1"},
				RemoveLabelIDs: []string{"INBOX", "UNREAD"},
			},
		}},
	}

	res := Convert(export)
	if len(res.Skipped) != 0 {
		t.Fatalf("unexpected skips: %v", res.Skipped)
	}
	if len(res.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(res.Rules))
	}
	r := res.Rules[0]
	if !r.Enabled || r.Name != "newsletter sweep" {
		t.Fatalf("rule metadata wrong: %+v", r)
	}
	groups := r.Conditions[rules.CondSender].EnabledGroups()
	if len(groups) != 1 || groups[0].Address != "news@example.com" {
		t.Fatalf("sender condition wrong: %+v", groups)
	}
	if r.Action.MoveToFolder != "newsletters" {
		t.Fatalf("archive+label must become a move, got %+v", r.Action)
	}
	if !r.Action.MarkAsRead {
		t.Fatalf("UNREAD removal must mark read")
	}
	if r.Action.Stops() {
		t.Fatalf("imported rules must not stop processing")
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("converted rule invalid: %v", err)
	}
}

func TestConvertLabelOnlyFilter(t *testing.T) {
	export := Export{
		Labels: []Label{{ID: "Label_2", Name: "finance"}},
		Filters: []Filter{{
			ID:       "f2",
			Criteria: FilterCriteria{Subject: `"invoice"`},
			Action:   FilterAction{AddLabelIDs: []string{"Label_2"}},
		}},
	}

	res := Convert(export)
	if len(res.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d (skipped: %v)", len(res.Rules), res.Skipped)
	}
	r := res.Rules[0]
	subj := r.Conditions[rules.CondSubject].EnabledGroups()
	if len(subj) != 1 || subj[0].Keywords[0].Keyword != "invoice" {
		t.Fatalf("quoted subject must be unwrapped: %+v", subj)
	}
	if r.Action.MoveToFolder != "" || len(r.Action.SetLabel) != 1 || r.Action.SetLabel[0] != "finance" {
		t.Fatalf("label-only filter mis-converted: %+v", r.Action)
	}
}

func TestConvertKeepsToAndListGroups(t *testing.T) {
	export := Export{
		Labels: []Label{{ID: "Label_3", Name: "golang-nuts"}},
		Filters: []Filter{{
			Name:     "list traffic",
			Criteria: FilterCriteria{To: "me@example.com", List: "golang-nuts.googlegroups.com"},
			Action:   FilterAction{AddLabelIDs: []string{"Label_3"}},
		}},
	}

	res := Convert(export)
	if len(res.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d (skipped: %v)", len(res.Rules), res.Skipped)
	}
	groups := res.Rules[0].Conditions[rules.CondRecipient].EnabledGroups()
	if len(groups) != 2 {
		t.Fatalf("to and list must each keep their recipient group: %+v", groups)
	}
	if groups[0].Address != "me@example.com" || groups[1].Address != "golang-nuts.googlegroups.com" {
		t.Fatalf("recipient groups wrong: %+v", groups)
	}
}

func TestConvertTrashFilter(t *testing.T) {
	export := Export{
		Filters: []Filter{{
			Name:     "drop spam",
			Criteria: FilterCriteria{From: "spam@example.com"},
			Action:   FilterAction{AddLabelIDs: []string{"TRASH"}},
		}},
	}
	res := Convert(export)
	if len(res.Rules) != 1 || !res.Rules[0].Action.IsDelete() {
		t.Fatalf("TRASH must convert to a delete action: %+v", res)
	}
}

func TestConvertSkipsUnconvertible(t *testing.T) {
	export := Export{
		Filters: []Filter{
			{Name: "query only", Criteria: FilterCriteria{Query: "has:attachment"}},
			{Name: "forwarder", Criteria: FilterCriteria{From: "a@b.c"}, Action: FilterAction{Forward: "x@y.z"}},
			{Name: "no action", Criteria: FilterCriteria{From: "a@b.c"}},
		},
	}
	res := Convert(export)
	if len(res.Rules) != 0 {
		t.Fatalf("nothing should convert: %+v", res.Rules)
	}
	if len(res.Skipped) != 3 {
		t.Fatalf("expected 3 skips, got %v", res.Skipped)
	}
}
