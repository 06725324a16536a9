package engine

import (
	"testing"

	"github.com/Alexmalab/mailsift/internal/mail"
	"github.com/Alexmalab/mailsift/internal/rules"
)

func TestDetermineActionsPlansWithoutFetching(t *testing.T) {
	rule := subjectRule("triage", "invoice", rules.Action{
		MarkAsRead:   true,
		SetLabel:     rules.LabelList{"Finance"},
		MoveToFolder: "Receipts",
	})
	mc := mail.NewContext("3_9:u7").WithSubject("invoice attached")

	planned := DetermineActions(mc, []rules.Rule{rule}, testDir())
	if len(planned) != 3 {
		t.Fatalf("expected 3 planned actions, got %d: %+v", len(planned), planned)
	}
	if planned[0].Type != ActionMarkRead || planned[1].Type != ActionApplyLabel || planned[2].Type != ActionMove {
		t.Fatalf("unexpected action order: %+v", planned)
	}
	if planned[1].LabelIDs[0] != "l-fin" {
		t.Fatalf("label not resolved: %+v", planned[1])
	}
	if planned[2].FolderID != "f-rec" || planned[2].UniqueID != "u7" {
		t.Fatalf("move not planned correctly: %+v", planned[2])
	}
}

func TestDetermineActionsAbsentDataFails(t *testing.T) {
	// The planner never fetches; a body condition against header-only
	// data cannot match.
	rule := bodyRule("invoice")
	rule.Action = rules.Action{MarkAsRead: true}
	mc := mail.NewContext("3_9:u7").WithSubject("invoice attached")

	if planned := DetermineActions(mc, []rules.Rule{rule}, testDir()); len(planned) != 0 {
		t.Fatalf("body rule must not match header-only data: %+v", planned)
	}
}

func TestDetermineActionsSkipsAIRules(t *testing.T) {
	ai := aiRule("receipts", "")
	ai.Action = rules.Action{MarkAsRead: true}
	mc := fullContext()

	if planned := DetermineActions(mc, []rules.Rule{ai}, testDir()); len(planned) != 0 {
		t.Fatalf("ai rules are not judged by the pure planner: %+v", planned)
	}
}

func TestDetermineActionsStops(t *testing.T) {
	first := subjectRule("first", "report", rules.Action{MarkAsRead: true})
	second := subjectRule("second", "report", rules.Action{SetLabel: rules.LabelList{"Urgent"}})
	mc := mail.NewContext("3_9:u7").WithSubject("status report")

	planned := DetermineActions(mc, []rules.Rule{first, second}, testDir())
	if len(planned) != 1 || planned[0].Type != ActionMarkRead {
		t.Fatalf("default stop must cut the plan after the first match: %+v", planned)
	}
}
