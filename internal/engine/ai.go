package engine

import (
	"context"
	"log/slog"

	"github.com/Alexmalab/mailsift/internal/llm"
	"github.com/Alexmalab/mailsift/internal/mail"
	"github.com/Alexmalab/mailsift/internal/metrics"
	"github.com/Alexmalab/mailsift/internal/rules"
)

// AIResolver delegates a rule's match decision to an external LLM
// judgement. A nil Judge (no provider configured, or the configured one
// is unsupported) skips every AI rule without error.
type AIResolver struct {
	Fetcher mail.Fetcher
	Judge   llm.Judge
	Log     *slog.Logger
}

// Resolve judges the message's subject and body against the rule's
// prompt. Missing content triggers one fetch attempt; missing
// configuration, fetch failure and judge failure all yield a non-match,
// never an error.
func (r *AIResolver) Resolve(ctx context.Context, rule rules.Rule, mc mail.Context) Outcome {
	if r.Judge == nil {
		r.Log.Debug("ai rule skipped: no llm judge configured", "rule", rule.Name)
		return Outcome{Matched: false, Ctx: mc}
	}
	if rule.AIPrompt == nil || rule.AIPrompt.User == "" {
		r.Log.Warn("ai rule skipped: user prompt missing", "rule", rule.Name)
		return Outcome{Matched: false, Ctx: mc}
	}

	// The judge needs both subject and body.
	if !mc.HasSubject || mc.Subject == "" || !mc.HasBody || mc.Body == "" {
		detail, err := r.Fetcher.FetchFullMessage(ctx, mc.ID)
		if err != nil {
			metrics.CapabilityFailures.WithLabelValues("fetch").Inc()
			r.Log.Warn("full message fetch failed for ai rule",
				"rule", rule.Name, "mail", mc.ID, "error", err)
			return Outcome{Matched: false, Ctx: mc}
		}
		mc.Merge(detail)
	}
	if !mc.HasSubject || mc.Subject == "" || !mc.HasBody || mc.Body == "" {
		r.Log.Warn("ai rule skipped: subject or body unavailable after fetch",
			"rule", rule.Name, "mail", mc.ID)
		return Outcome{Matched: false, Ctx: mc}
	}

	system := rule.AIPrompt.System
	if system == "" {
		system = llm.DefaultSystemPrompt
	}
	matched, err := r.Judge.JudgeMail(ctx, system, rule.AIPrompt.User, mc.Subject, mc.Body)
	if err != nil {
		metrics.LLMJudgements.WithLabelValues("error").Inc()
		r.Log.Warn("llm judgement failed", "rule", rule.Name, "mail", mc.ID, "error", err)
		return Outcome{Matched: false, Ctx: mc}
	}
	if matched {
		metrics.LLMJudgements.WithLabelValues("match").Inc()
	} else {
		metrics.LLMJudgements.WithLabelValues("no_match").Inc()
	}
	return Outcome{Matched: matched, Ctx: mc}
}
