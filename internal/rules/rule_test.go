package rules

import (
	"encoding/json"
	"testing"
)

func TestGroupListAcceptsLegacySingleObject(t *testing.T) {
	legacy := `{"enabled":true,"type":"include","keywords":["invoice"]}`
	var l GroupList
	if err := json.Unmarshal([]byte(legacy), &l); err != nil {
		t.Fatalf("unmarshal legacy shape: %v", err)
	}
	if len(l) != 1 {
		t.Fatalf("legacy object must become a one-element list, got %d", len(l))
	}
	g := l[0]
	if !g.Enabled || g.Type != Include {
		t.Fatalf("legacy fields lost: %+v", g)
	}
	if len(g.Keywords) != 1 || g.Keywords[0].Keyword != "invoice" || g.Keywords[0].Logic != LogicOr {
		t.Fatalf("bare-string keyword must lift to an or-joined term: %+v", g.Keywords)
	}
}

func TestGroupListAcceptsArray(t *testing.T) {
	modern := `[
		{"enabled":true,"type":"include","keywords":[{"keyword":"a","logic":"and"},{"keyword":"b"}]},
		{"enabled":false,"type":"exclude","keywords":["c"]}
	]`
	var l GroupList
	if err := json.Unmarshal([]byte(modern), &l); err != nil {
		t.Fatalf("unmarshal array shape: %v", err)
	}
	if len(l) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(l))
	}
	if l[0].Keywords[0].Logic != LogicAnd {
		t.Fatalf("explicit logic lost: %+v", l[0].Keywords)
	}
	if enabled := l.EnabledGroups(); len(enabled) != 1 {
		t.Fatalf("EnabledGroups must drop disabled groups, got %d", len(enabled))
	}
}

func TestLabelListAcceptsStringAndArray(t *testing.T) {
	var one LabelList
	if err := json.Unmarshal([]byte(`"Finance"`), &one); err != nil {
		t.Fatalf("single label: %v", err)
	}
	if len(one) != 1 || one[0] != "Finance" {
		t.Fatalf("single label mis-parsed: %v", one)
	}

	var many LabelList
	if err := json.Unmarshal([]byte(`["Finance","Urgent"]`), &many); err != nil {
		t.Fatalf("label array: %v", err)
	}
	if len(many) != 2 {
		t.Fatalf("label array mis-parsed: %v", many)
	}
}

func TestActionStopsDefaultsToTrue(t *testing.T) {
	var act Action
	if err := json.Unmarshal([]byte(`{"markAsRead":true}`), &act); err != nil {
		t.Fatalf("unmarshal action: %v", err)
	}
	if !act.Stops() {
		t.Fatalf("absent stopProcessing must stop")
	}

	if err := json.Unmarshal([]byte(`{"stopProcessing":false}`), &act); err != nil {
		t.Fatalf("unmarshal action: %v", err)
	}
	if act.Stops() {
		t.Fatalf("explicit false must continue")
	}
}

func TestRuleModeNormalization(t *testing.T) {
	if (Rule{}).Mode() != ModeNormal {
		t.Fatalf("missing mode must evaluate normally")
	}
	if (Rule{ConditionMode: ModeAI}).Mode() != ModeAI {
		t.Fatalf("ai mode lost")
	}
	if (Rule{ConditionMode: "weird"}).Mode() != ModeNormal {
		t.Fatalf("unknown mode must fall back to normal")
	}
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{
			name: "valid-normal",
			rule: Rule{Name: "ok", Conditions: Conditions{
				CondSubject: GroupList{{Enabled: true, Type: Include}},
			}},
		},
		{
			name:    "empty-name",
			rule:    Rule{Name: "  "},
			wantErr: true,
		},
		{
			name:    "ai-without-prompt",
			rule:    Rule{Name: "ai", ConditionMode: ModeAI},
			wantErr: true,
		},
		{
			name: "ai-with-prompt",
			rule: Rule{Name: "ai", ConditionMode: ModeAI, AIPrompt: &Prompt{User: "find receipts"}},
		},
		{
			name: "bad-group-type",
			rule: Rule{Name: "bad", Conditions: Conditions{
				CondBody: GroupList{{Enabled: true, Type: "sometimes"}},
			}},
			wantErr: true,
		},
		{
			name: "unknown-condition-type",
			rule: Rule{Name: "bad", Conditions: Conditions{
				ConditionType("attachment"): GroupList{{Enabled: true, Type: Include}},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
