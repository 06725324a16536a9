package engine

import (
	"context"
	"log/slog"

	"github.com/Alexmalab/mailsift/internal/mail"
	"github.com/Alexmalab/mailsift/internal/metrics"
	"github.com/Alexmalab/mailsift/internal/rules"
)

// resolvePhase names where in the per-rule state machine a decision fell.
type resolvePhase string

const (
	phaseHeader resolvePhase = "header"
	phaseReval  resolvePhase = "reevaluate"
	phaseBody   resolvePhase = "body"
)

// Outcome is a condition resolver's structured result: the match decision
// plus the context enriched by any fetch done along the way. The enriched
// context is threaded forward so later rules reuse the fetched data.
type Outcome struct {
	Matched bool
	Ctx     mail.Context
}

// Resolver decides whether a normal-mode rule's conditions hold for one
// message, requesting full message detail at most once per rule and only
// when an enabled condition needs data that is not yet present.
type Resolver struct {
	Fetcher mail.Fetcher
	Log     *slog.Logger
}

// Resolve runs the header-check / fetch / re-evaluate / body-check state
// machine for one rule. Capability failures never escape: a failed fetch
// downgrades the conditions that depended on it to non-matches.
func (r *Resolver) Resolve(ctx context.Context, rule rules.Rule, mc mail.Context) Outcome {
	senderGroups := rule.Conditions[rules.CondSender].EnabledGroups()
	recipGroups := rule.Conditions[rules.CondRecipient].EnabledGroups()
	ccGroups := rule.Conditions[rules.CondCc].EnabledGroups()
	subjectGroups := rule.Conditions[rules.CondSubject].EnabledGroups()
	bodyGroups := rule.Conditions[rules.CondBody].EnabledGroups()

	// Header phase: evaluate what the data at hand allows. Address data
	// that has never been fetched defers its condition rather than
	// failing it outright; a fetch attempt comes first.
	var needSender, needRecip, needCc bool
	if len(senderGroups) > 0 {
		if mc.Sender == nil {
			needSender = true
		} else if !evaluateSenderGroups(senderGroups, mc.Sender) {
			return r.miss(rule, mc, phaseHeader)
		}
	}
	if len(recipGroups) > 0 {
		if mc.Recipients == nil {
			needRecip = true
		} else if !evaluateListGroups(recipGroups, mc.Recipients) {
			return r.miss(rule, mc, phaseHeader)
		}
	}
	if len(ccGroups) > 0 {
		if mc.Cc == nil {
			needCc = true
		} else if !evaluateListGroups(ccGroups, mc.Cc) {
			return r.miss(rule, mc, phaseHeader)
		}
	}
	if len(subjectGroups) > 0 {
		if !evaluateContentGroups(subjectGroups, mc.Subject, mc.HasSubject) {
			return r.miss(rule, mc, phaseHeader)
		}
	}

	// Fetch phase: one full-message fetch covers every missing field.
	needBody := len(bodyGroups) > 0 && !mc.HasBody
	if needSender || needRecip || needCc || needBody {
		detail, err := r.Fetcher.FetchFullMessage(ctx, mc.ID)
		if err != nil {
			metrics.CapabilityFailures.WithLabelValues("fetch").Inc()
			r.Log.Warn("full message fetch failed",
				"rule", rule.Name, "mail", mc.ID, "error", err)
		} else {
			mc.Merge(detail)
		}
	}

	// Re-evaluation phase: deferred address conditions now fail when
	// their data is still missing after the fetch attempt.
	if needSender {
		if mc.Sender == nil || !evaluateSenderGroups(senderGroups, mc.Sender) {
			return r.miss(rule, mc, phaseReval)
		}
	}
	if needRecip {
		if mc.Recipients == nil || !evaluateListGroups(recipGroups, mc.Recipients) {
			return r.miss(rule, mc, phaseReval)
		}
	}
	if needCc {
		if mc.Cc == nil || !evaluateListGroups(ccGroups, mc.Cc) {
			return r.miss(rule, mc, phaseReval)
		}
	}

	// Body phase: a rule that asks about the body requires the body to
	// exist. Required-but-unavailable is a deliberate failure, unlike
	// the vacuous pass of a rule with no enabled conditions at all.
	if len(bodyGroups) > 0 {
		if !mc.HasBody {
			r.Log.Warn("body required but unavailable; rule does not match",
				"rule", rule.Name, "mail", mc.ID)
			return Outcome{Matched: false, Ctx: mc}
		}
		if !evaluateContentGroups(bodyGroups, mc.Body, true) {
			return r.miss(rule, mc, phaseBody)
		}
	}

	return Outcome{Matched: true, Ctx: mc}
}

func (r *Resolver) miss(rule rules.Rule, mc mail.Context, phase resolvePhase) Outcome {
	r.Log.Debug("rule did not match", "rule", rule.Name, "mail", mc.ID, "phase", phase)
	return Outcome{Matched: false, Ctx: mc}
}
