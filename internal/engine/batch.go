package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Alexmalab/mailsift/internal/mail"
	"github.com/Alexmalab/mailsift/internal/metrics"
	"github.com/Alexmalab/mailsift/internal/rules"
)

const (
	defaultBatchSize = 50
	defaultScanLimit = 1000
)

// Waiter gates outbound capability calls (small interface, satisfied by
// rate.TokenBucket).
type Waiter interface {
	Wait(ctx context.Context) error
}

// BatchRunner sweeps a mailbox and applies the rule set to every listed
// message. Identifier-preserving actions (labels, mark-read) are
// coalesced across each chunk into batched capability calls; moves run
// per message because each needs its own post-move verification.
type BatchRunner struct {
	Mailbox     mail.Mailbox
	Dir         mail.Directory
	Limiter     Waiter
	Log         *slog.Logger
	BatchSize   int
	ScanLimit   int
	VerifyLimit int
}

// BatchReport summarizes one batch run.
type BatchReport struct {
	Processed  int
	Total      int
	MarkedRead int
	Labeled    int
	Moved      int
}

type labelOp struct {
	labelIDs []string
	mailIDs  []mail.MailID
}

// Run enumerates the given folders and plans then executes rule actions
// for every message. selected optionally restricts the pass to specific
// rule ids. One failing message or capability call never aborts the run.
func (b *BatchRunner) Run(ctx context.Context, folderIDs []string, ruleSet []rules.Rule, selected []string) (BatchReport, error) {
	runID := uuid.NewString()
	log := b.Log.With("run", runID)

	active := selectRules(ruleSet, selected)
	report := BatchReport{}
	if len(active) == 0 {
		log.Info("no enabled rules to execute")
		return report, nil
	}
	log.Info("starting batch run", "rules", len(active), "folders", strings.Join(folderIDs, ","))

	scanLimit := b.ScanLimit
	if scanLimit <= 0 {
		scanLimit = defaultScanLimit
	}
	if err := b.wait(ctx); err != nil {
		return report, err
	}
	list, err := b.Mailbox.QueryMailList(ctx, folderIDs, scanLimit, 0)
	if err != nil {
		metrics.CapabilityFailures.WithLabelValues("queryMailList").Inc()
		return report, fmt.Errorf("list mailbox: %w", err)
	}
	report.Total = list.Total
	if report.Total == 0 {
		report.Total = len(list.Headers)
	}
	if len(list.Headers) == 0 {
		log.Info("mailbox empty; nothing to process")
		return report, nil
	}

	batchSize := b.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	resolver := &Resolver{Fetcher: b.Mailbox, Log: log}

	for start := 0; start < len(list.Headers); start += batchSize {
		end := start + batchSize
		if end > len(list.Headers) {
			end = len(list.Headers)
		}
		chunk := list.Headers[start:end]

		markRead := make([]mail.MailID, 0, len(chunk))
		markReadSeen := map[mail.MailID]struct{}{}
		labelOps := map[string]*labelOp{}
		var moves []Action
		movedSeen := map[mail.MailID]struct{}{}

		for _, header := range chunk {
			report.Processed++
			mc := contextFromHeader(header)
			for _, planned := range b.planForMail(ctx, resolver, active, mc) {
				switch planned.Type {
				case ActionMarkRead:
					if _, ok := markReadSeen[planned.MailID]; !ok {
						markReadSeen[planned.MailID] = struct{}{}
						markRead = append(markRead, planned.MailID)
					}
				case ActionApplyLabel:
					key := labelKey(planned.LabelIDs)
					op := labelOps[key]
					if op == nil {
						op = &labelOp{labelIDs: planned.LabelIDs}
						labelOps[key] = op
					}
					op.mailIDs = append(op.mailIDs, planned.MailID)
				case ActionMove:
					// One move per mail; stopProcessing normally prevents
					// a second rule from also moving it.
					if _, ok := movedSeen[planned.MailID]; !ok {
						movedSeen[planned.MailID] = struct{}{}
						moves = append(moves, planned)
					}
				}
			}
		}

		b.applyLabelOps(ctx, log, labelOps, &report)
		b.applyMarkRead(ctx, log, markRead, &report)
		b.applyMoves(ctx, log, moves, &report)
	}

	log.Info("batch run finished",
		"processed", report.Processed,
		"markedRead", report.MarkedRead,
		"labeled", report.Labeled,
		"moved", report.Moved)
	return report, nil
}

// planForMail decides, without side effects on the mailbox beyond data
// fetches, which actions the rule set takes for one message.
func (b *BatchRunner) planForMail(ctx context.Context, resolver *Resolver, active []rules.Rule, mc mail.Context) []Action {
	var planned []Action
	for _, rule := range active {
		if rule.Mode() == rules.ModeAI {
			// Batch planning is deterministic only; AI rules run in the
			// per-message engine pass instead.
			continue
		}
		out := resolver.Resolve(ctx, rule, mc)
		mc = out.Ctx
		if !out.Matched {
			continue
		}
		metrics.RulesMatched.WithLabelValues(string(rules.ModeNormal)).Inc()
		planned = append(planned, DetermineActions(mc, []rules.Rule{rule}, b.Dir)...)
		if rule.Action.Stops() {
			break
		}
	}
	return planned
}

func (b *BatchRunner) applyLabelOps(ctx context.Context, log *slog.Logger, ops map[string]*labelOp, report *BatchReport) {
	keys := make([]string, 0, len(ops))
	for k := range ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		op := ops[k]
		if err := b.wait(ctx); err != nil {
			return
		}
		if err := b.Mailbox.ApplyLabels(ctx, op.mailIDs, op.labelIDs); err != nil {
			metrics.CapabilityFailures.WithLabelValues("applyLabels").Inc()
			log.Warn("batched label apply failed", "labels", op.labelIDs, "count", len(op.mailIDs), "error", err)
			continue
		}
		report.Labeled += len(op.mailIDs)
	}
}

func (b *BatchRunner) applyMarkRead(ctx context.Context, log *slog.Logger, ids []mail.MailID, report *BatchReport) {
	if len(ids) == 0 {
		return
	}
	if err := b.wait(ctx); err != nil {
		return
	}
	if err := b.Mailbox.MarkRead(ctx, ids, true); err != nil {
		metrics.CapabilityFailures.WithLabelValues("markRead").Inc()
		log.Warn("batched mark read failed", "count", len(ids), "error", err)
		return
	}
	report.MarkedRead += len(ids)
}

func (b *BatchRunner) applyMoves(ctx context.Context, log *slog.Logger, moves []Action, report *BatchReport) {
	limit := b.VerifyLimit
	if limit <= 0 {
		limit = defaultVerifyLimit
	}
	for _, mv := range moves {
		if err := b.wait(ctx); err != nil {
			return
		}
		if err := b.Mailbox.MoveToFolder(ctx, mv.MailID, mv.FolderID); err != nil {
			metrics.CapabilityFailures.WithLabelValues("move").Inc()
			log.Warn("move failed", "mail", mv.MailID, "folder", mv.FolderID, "error", err)
			continue
		}
		check, err := b.Mailbox.VerifyMove(ctx, mv.UniqueID, mv.FolderID, limit)
		if err != nil {
			metrics.CapabilityFailures.WithLabelValues("verifyMove").Inc()
			log.Warn("move verification failed", "mail", mv.MailID, "error", err)
			continue
		}
		if !check.Found {
			log.Warn("moved mail not found in destination", "mail", mv.MailID, "folder", mv.FolderID)
			continue
		}
		report.Moved++
		log.Info("mail moved", "old", mv.MailID, "new", check.NewID)
	}
}

func (b *BatchRunner) wait(ctx context.Context) error {
	if b.Limiter == nil {
		return nil
	}
	return b.Limiter.Wait(ctx)
}

// selectRules filters the snapshot down to enabled rules, optionally
// restricted to specific rule ids.
func selectRules(ruleSet []rules.Rule, selected []string) []rules.Rule {
	wanted := map[string]struct{}{}
	for _, id := range selected {
		wanted[id] = struct{}{}
	}
	out := make([]rules.Rule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if !r.Enabled {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[r.ID]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// contextFromHeader builds the initial per-message state from a listing
// entry. The raw From header is parsed when the backend did not already
// split it.
func contextFromHeader(h mail.Header) mail.Context {
	mc := mail.NewContext(h.ID).WithSubject(h.Subject)
	if h.Sender != nil {
		mc.Sender = h.Sender
	} else if h.From != "" {
		addr := mail.ParseAddress(h.From)
		mc.Sender = &addr
	}
	return mc
}

func labelKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
