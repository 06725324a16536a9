package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/Alexmalab/mailsift/internal/mail"
	"github.com/Alexmalab/mailsift/internal/rules"
)

func bodyRule(keyword string) rules.Rule {
	return rules.Rule{
		ID:      "body-" + keyword,
		Name:    "body-" + keyword,
		Enabled: true,
		Conditions: rules.Conditions{
			rules.CondBody: rules.GroupList{{
				Enabled:  true,
				Type:     rules.Include,
				Keywords: []rules.KeywordTerm{{Keyword: keyword, Logic: rules.LogicOr}},
			}},
		},
	}
}

func senderRule(address string) rules.Rule {
	return rules.Rule{
		ID:      "sender",
		Name:    "sender",
		Enabled: true,
		Conditions: rules.Conditions{
			rules.CondSender: rules.GroupList{{Enabled: true, Type: rules.Include, Address: address}},
		},
	}
}

func TestResolveFetchesBodyOnce(t *testing.T) {
	fake := &fakeMailbox{
		details: map[mail.MailID]mail.Detail{
			"1_1:u1": {
				Body: "please find the invoice attached", HasBody: true,
				Recipients: []mail.Address{{Email: "me@example.com"}},
			},
		},
	}
	r := &Resolver{Fetcher: fake, Log: slogDiscard()}

	rule := bodyRule("invoice")
	rule.Conditions[rules.CondRecipient] = rules.GroupList{{
		Enabled: true, Type: rules.Include, Address: "me@example.com",
	}}

	out := r.Resolve(context.Background(), rule, mail.NewContext("1_1:u1"))
	if !out.Matched {
		t.Fatalf("expected match")
	}
	if len(fake.fetchCalls) != 1 {
		t.Fatalf("body and recipient must share one fetch, got %d", len(fake.fetchCalls))
	}
}

func TestResolveEnrichmentCarriesToNextRule(t *testing.T) {
	fake := &fakeMailbox{
		details: map[mail.MailID]mail.Detail{
			"1_1:u1": {Body: "invoice and receipt", HasBody: true},
		},
	}
	r := &Resolver{Fetcher: fake, Log: slogDiscard()}

	mc := mail.NewContext("1_1:u1")
	out := r.Resolve(context.Background(), bodyRule("invoice"), mc)
	if !out.Matched {
		t.Fatalf("first rule should match")
	}
	out = r.Resolve(context.Background(), bodyRule("receipt"), out.Ctx)
	if !out.Matched {
		t.Fatalf("second rule should match")
	}
	if len(fake.fetchCalls) != 1 {
		t.Fatalf("second rule must reuse fetched body, got %d fetches", len(fake.fetchCalls))
	}
}

func TestResolveBodyRequiredButUnavailable(t *testing.T) {
	// Fetch succeeds but the backend returns no body field.
	fake := &fakeMailbox{details: map[mail.MailID]mail.Detail{"1_1:u1": {}}}
	r := &Resolver{Fetcher: fake, Log: slogDiscard()}

	out := r.Resolve(context.Background(), bodyRule("invoice"), mail.NewContext("1_1:u1"))
	if out.Matched {
		t.Fatalf("rule requiring an unavailable body must not match")
	}
}

func TestResolveFetchFailureDowngradesToNonMatch(t *testing.T) {
	fake := &fakeMailbox{fetchErr: errors.New("backend down")}
	r := &Resolver{Fetcher: fake, Log: slogDiscard()}

	out := r.Resolve(context.Background(), bodyRule("invoice"), mail.NewContext("1_1:u1"))
	if out.Matched {
		t.Fatalf("fetch failure must yield a non-match, not an error")
	}
}

func TestResolveSenderDeferredUntilFetch(t *testing.T) {
	fake := &fakeMailbox{
		details: map[mail.MailID]mail.Detail{
			"1_1:u1": {Sender: &mail.Address{Email: "alerts@example.com"}},
		},
	}
	r := &Resolver{Fetcher: fake, Log: slogDiscard()}

	out := r.Resolve(context.Background(), senderRule("alerts@"), mail.NewContext("1_1:u1"))
	if !out.Matched {
		t.Fatalf("sender fetched on demand should match")
	}
	if len(fake.fetchCalls) != 1 {
		t.Fatalf("expected exactly one fetch, got %d", len(fake.fetchCalls))
	}
}

func TestResolveKnownSenderMissSkipsFetch(t *testing.T) {
	fake := &fakeMailbox{}
	r := &Resolver{Fetcher: fake, Log: slogDiscard()}

	mc := mail.NewContext("1_1:u1").WithSender(&mail.Address{Email: "other@example.com"})
	out := r.Resolve(context.Background(), senderRule("alerts@"), mc)
	if out.Matched {
		t.Fatalf("known non-matching sender must miss")
	}
	if len(fake.fetchCalls) != 0 {
		t.Fatalf("a header-phase miss must not fetch, got %d", len(fake.fetchCalls))
	}
}

func TestResolveMergeDoesNotOverwrite(t *testing.T) {
	fake := &fakeMailbox{
		details: map[mail.MailID]mail.Detail{
			"1_1:u1": {
				Subject: "fetched subject", HasSubject: true,
				Body: "body text", HasBody: true,
			},
		},
	}
	r := &Resolver{Fetcher: fake, Log: slogDiscard()}

	mc := mail.NewContext("1_1:u1").WithSubject("original subject")
	out := r.Resolve(context.Background(), bodyRule("body text"), mc)
	if !out.Matched {
		t.Fatalf("expected match")
	}
	if out.Ctx.Subject != "original subject" {
		t.Fatalf("fetch must not overwrite known subject, got %q", out.Ctx.Subject)
	}
}

func TestResolveNoConditionsMatchesVacuously(t *testing.T) {
	fake := &fakeMailbox{}
	r := &Resolver{Fetcher: fake, Log: slogDiscard()}

	rule := rules.Rule{ID: "empty", Name: "empty", Enabled: true}
	out := r.Resolve(context.Background(), rule, mail.NewContext("1_1:u1"))
	if !out.Matched {
		t.Fatalf("rule without conditions matches everything")
	}
	if len(fake.fetchCalls) != 0 {
		t.Fatalf("nothing to evaluate, nothing to fetch")
	}
}
