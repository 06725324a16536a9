package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rule engine metrics.
var (
	MailsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailsift_mails_processed_total",
			Help: "Total number of messages run through the rule engine",
		},
	)

	RulesMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailsift_rules_matched_total",
			Help: "Total number of rule matches",
		},
		[]string{"mode"},
	)

	ActionsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailsift_actions_applied_total",
			Help: "Total number of actions applied to messages",
		},
		[]string{"action"},
	)

	CapabilityFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailsift_capability_failures_total",
			Help: "Total number of failed mailbox capability calls",
		},
		[]string{"capability"},
	)

	LLMJudgements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailsift_llm_judgements_total",
			Help: "Total number of LLM judge calls by outcome",
		},
		[]string{"outcome"},
	)

	MoveVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailsift_move_verifications_total",
			Help: "Total number of post-move verifications by result",
		},
		[]string{"result"},
	)
)
