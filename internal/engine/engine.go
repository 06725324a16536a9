package engine

import (
	"context"
	"log/slog"

	"github.com/Alexmalab/mailsift/internal/llm"
	"github.com/Alexmalab/mailsift/internal/mail"
	"github.com/Alexmalab/mailsift/internal/metrics"
	"github.com/Alexmalab/mailsift/internal/rules"
)

// Engine orchestrates one rule pass over one message: it walks enabled
// rules in priority order, resolves conditions, executes actions on a
// match and threads the possibly renamed mail identifier forward.
type Engine struct {
	Log *slog.Logger

	resolver *Resolver
	ai       *AIResolver
	exec     *Executor
}

// New wires an engine from its capabilities. judge may be nil, which
// disables AI-mode rules for every pass run through this engine.
func New(mailbox mail.Mailbox, dir mail.Directory, judge llm.Judge, log *slog.Logger) *Engine {
	return &Engine{
		Log:      log,
		resolver: &Resolver{Fetcher: mailbox, Log: log},
		ai:       &AIResolver{Fetcher: mailbox, Judge: judge, Log: log},
		exec:     &Executor{Mailbox: mailbox, Dir: dir, Log: log},
	}
}

// Run evaluates the rule snapshot against one message. The context is
// mutated only locally: fetched data and identifier changes flow from
// rule to rule within this pass and are discarded when it ends. A
// matched rule whose action stops processing ends the pass early.
func (e *Engine) Run(ctx context.Context, ruleSet []rules.Rule, mc mail.Context) {
	metrics.MailsProcessed.Inc()
	e.Log.Info("running rules", "mail", mc.ID, "rules", len(ruleSet))

	for _, rule := range ruleSet {
		if !rule.Enabled {
			continue
		}

		var out Outcome
		switch rule.Mode() {
		case rules.ModeAI:
			out = e.ai.Resolve(ctx, rule, mc)
		default:
			out = e.resolver.Resolve(ctx, rule, mc)
		}
		mc = out.Ctx
		if !out.Matched {
			continue
		}

		metrics.RulesMatched.WithLabelValues(string(rule.Mode())).Inc()
		e.Log.Info("rule matched", "rule", rule.Name, "mail", mc.ID)

		res := e.exec.Execute(ctx, rule, mc.ID)
		mc.ID = res.ID
		if res.Moved {
			// A verified move refreshes subject/sender for later rules.
			if res.HasSubject && res.Subject != "" {
				mc.Subject = res.Subject
				mc.HasSubject = true
			}
			if res.Sender != nil {
				mc.Sender = res.Sender
			}
		}
		if res.Deleted {
			e.Log.Info("mail removed from processing", "rule", rule.Name, "mail", mc.ID)
			break
		}
		if rule.Action.Stops() {
			e.Log.Info("rule stops processing", "rule", rule.Name, "mail", mc.ID)
			break
		}
	}
}
