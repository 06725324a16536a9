package engine

import (
	"testing"

	"github.com/Alexmalab/mailsift/internal/rules"
)

func terms(pairs ...string) []rules.KeywordTerm {
	// pairs alternate keyword, logic ("and"/"or"); a trailing keyword
	// without logic defaults to or.
	var out []rules.KeywordTerm
	for i := 0; i < len(pairs); i += 2 {
		t := rules.KeywordTerm{Keyword: pairs[i], Logic: rules.LogicOr}
		if i+1 < len(pairs) && pairs[i+1] == "and" {
			t.Logic = rules.LogicAnd
		}
		out = append(out, t)
	}
	return out
}

func TestEvaluateKeywords(t *testing.T) {
	tests := []struct {
		name          string
		terms         []rules.KeywordTerm
		text          string
		caseSensitive bool
		want          bool
	}{
		{
			name:  "empty-terms-vacuous",
			terms: nil,
			text:  "anything",
			want:  true,
		},
		{
			name:  "single-term-hit",
			terms: terms("invoice", "or"),
			text:  "your invoice is attached",
			want:  true,
		},
		{
			name:  "single-term-miss",
			terms: terms("invoice", "or"),
			text:  "weekly digest",
			want:  false,
		},
		{
			name:  "or-chain-any-suffices",
			terms: terms("alpha", "or", "beta", "or"),
			text:  "contains beta only",
			want:  true,
		},
		{
			name:  "and-chain-all-required",
			terms: terms("alpha", "and", "beta", "or"),
			text:  "contains beta only",
			want:  false,
		},
		{
			name:  "and-chain-holds",
			terms: terms("alpha", "and", "beta", "or"),
			text:  "alpha and beta together",
			want:  true,
		},
		{
			// (A and B) or C: C alone matches.
			name:  "and-binds-tighter-than-or",
			terms: terms("alpha", "and", "beta", "or", "gamma", "or"),
			text:  "only gamma here",
			want:  true,
		},
		{
			name:  "and-group-broken-c-absent",
			terms: terms("alpha", "and", "beta", "or", "gamma", "or"),
			text:  "alpha without the rest",
			want:  false,
		},
		{
			name:  "trailing-and-group-must-complete",
			terms: terms("alpha", "or", "beta", "and", "gamma", "or"),
			text:  "beta by itself",
			want:  false,
		},
		{
			name:          "case-sensitive-miss",
			terms:         terms("Test", "or"),
			text:          "test message",
			caseSensitive: true,
			want:          false,
		},
		{
			name:  "case-insensitive-hit",
			terms: terms("Test", "or"),
			text:  "test message",
			want:  true,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got := evaluateKeywords(tc.terms, tc.text, tc.caseSensitive)
			if got != tc.want {
				t.Fatalf("evaluateKeywords() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluateContentGroups(t *testing.T) {
	include := func(kw ...string) rules.ConditionGroup {
		var ts []rules.KeywordTerm
		for _, k := range kw {
			ts = append(ts, rules.KeywordTerm{Keyword: k, Logic: rules.LogicOr})
		}
		return rules.ConditionGroup{Enabled: true, Type: rules.Include, Keywords: ts}
	}
	exclude := func(kw ...string) rules.ConditionGroup {
		g := include(kw...)
		g.Type = rules.Exclude
		return g
	}

	tests := []struct {
		name    string
		groups  []rules.ConditionGroup
		content string
		present bool
		want    bool
	}{
		{
			name:    "include-hit",
			groups:  []rules.ConditionGroup{include("report")},
			content: "monthly report ready",
			present: true,
			want:    true,
		},
		{
			name:    "exclude-inverts",
			groups:  []rules.ConditionGroup{exclude("spam")},
			content: "spam offer",
			present: true,
			want:    false,
		},
		{
			name:    "exclude-passes-when-absent-from-text",
			groups:  []rules.ConditionGroup{exclude("spam")},
			content: "legitimate mail",
			present: true,
			want:    true,
		},
		{
			name:    "sibling-groups-and",
			groups:  []rules.ConditionGroup{include("report"), exclude("draft")},
			content: "draft report",
			present: true,
			want:    false,
		},
		{
			name:    "absent-content-fails-include",
			groups:  []rules.ConditionGroup{include("report")},
			present: false,
			want:    false,
		},
		{
			name:    "absent-content-passes-exclude",
			groups:  []rules.ConditionGroup{exclude("spam")},
			present: false,
			want:    true,
		},
		{
			name:    "keywordless-group-is-inert",
			groups:  []rules.ConditionGroup{{Enabled: true, Type: rules.Include}},
			present: false,
			want:    true,
		},
		{
			name:    "disabled-group-is-inert",
			groups:  []rules.ConditionGroup{{Enabled: false, Type: rules.Include, Keywords: terms("nope", "or")}},
			content: "anything",
			present: true,
			want:    true,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got := evaluateContentGroups(tc.groups, tc.content, tc.present)
			if got != tc.want {
				t.Fatalf("evaluateContentGroups() = %v, want %v", got, tc.want)
			}
		})
	}
}
