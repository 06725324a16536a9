package engine

import (
	"context"
	"log/slog"

	"github.com/Alexmalab/mailsift/internal/mail"
	"github.com/Alexmalab/mailsift/internal/metrics"
	"github.com/Alexmalab/mailsift/internal/rules"
)

const defaultVerifyLimit = 5

// ExecResult reports what an action pass did to the message: its final
// identifier (possibly changed by a move) and any metadata refreshed by
// the post-move verification.
type ExecResult struct {
	ID         mail.MailID
	Moved      bool
	Deleted    bool
	Subject    string
	HasSubject bool
	Sender     *mail.Address
}

// Executor applies a matched rule's actions. Cheap identifier-preserving
// operations run first; the move, which may invalidate the identifier,
// runs last so earlier steps never chase a rename.
type Executor struct {
	Mailbox     mail.Mailbox
	Dir         mail.Directory
	Log         *slog.Logger
	VerifyLimit int
}

// Execute runs label, mark-read and move actions for one message. Every
// capability failure is logged and skipped; execution always reaches the
// end and returns the best-known identifier.
func (e *Executor) Execute(ctx context.Context, rule rules.Rule, id mail.MailID) ExecResult {
	res := ExecResult{ID: id}
	act := rule.Action

	if act.IsDelete() {
		// Delete is remove-from-processing only; the backend call is a
		// stub in the reference system.
		e.Log.Info("delete action: removing mail from processing", "rule", rule.Name, "mail", id)
		res.Deleted = true
		return res
	}

	if len(act.SetLabel) > 0 {
		labelIDs := make([]string, 0, len(act.SetLabel))
		for _, name := range act.SetLabel {
			lid, ok := e.Dir.LabelID(name)
			if !ok {
				e.Log.Warn("label name unresolvable; skipping", "rule", rule.Name, "label", name)
				continue
			}
			labelIDs = append(labelIDs, lid)
		}
		if len(labelIDs) > 0 {
			if err := e.Mailbox.ApplyLabels(ctx, []mail.MailID{res.ID}, labelIDs); err != nil {
				metrics.CapabilityFailures.WithLabelValues("applyLabels").Inc()
				e.Log.Warn("apply labels failed", "rule", rule.Name, "mail", res.ID, "error", err)
			} else {
				metrics.ActionsApplied.WithLabelValues("label").Inc()
			}
		}
	}

	if act.MarkAsRead {
		if err := e.Mailbox.MarkRead(ctx, []mail.MailID{res.ID}, true); err != nil {
			metrics.CapabilityFailures.WithLabelValues("markRead").Inc()
			e.Log.Warn("mark read failed", "rule", rule.Name, "mail", res.ID, "error", err)
		} else {
			metrics.ActionsApplied.WithLabelValues("markRead").Inc()
		}
	}

	if act.MoveToFolder != "" {
		folderID, ok := e.Dir.FolderID(act.MoveToFolder)
		if !ok {
			e.Log.Warn("folder name unresolvable; skipping move",
				"rule", rule.Name, "folder", act.MoveToFolder)
			return res
		}
		e.move(ctx, rule, folderID, &res)
	}

	return res
}

// move relocates the message and re-resolves its identifier. The
// verification capability is the sole authority for the new identifier;
// when it cannot find the message the pre-move id is kept.
func (e *Executor) move(ctx context.Context, rule rules.Rule, folderID string, res *ExecResult) {
	uniqueID := mail.UniqueID(res.ID)

	if err := e.Mailbox.MoveToFolder(ctx, res.ID, folderID); err != nil {
		metrics.CapabilityFailures.WithLabelValues("move").Inc()
		e.Log.Warn("move failed", "rule", rule.Name, "mail", res.ID, "folder", folderID, "error", err)
		return
	}
	metrics.ActionsApplied.WithLabelValues("move").Inc()

	limit := e.VerifyLimit
	if limit <= 0 {
		limit = defaultVerifyLimit
	}
	check, err := e.Mailbox.VerifyMove(ctx, uniqueID, folderID, limit)
	if err != nil {
		metrics.CapabilityFailures.WithLabelValues("verifyMove").Inc()
		metrics.MoveVerifications.WithLabelValues("error").Inc()
		e.Log.Warn("move verification failed; keeping pre-move id",
			"rule", rule.Name, "mail", res.ID, "error", err)
		return
	}
	if !check.Found {
		metrics.MoveVerifications.WithLabelValues("not_found").Inc()
		e.Log.Warn("moved mail not found in destination; keeping pre-move id",
			"rule", rule.Name, "mail", res.ID, "folder", folderID)
		return
	}

	metrics.MoveVerifications.WithLabelValues("found").Inc()
	e.Log.Info("move verified", "rule", rule.Name, "old", res.ID, "new", check.NewID)
	res.ID = check.NewID
	res.Moved = true
	res.Subject = check.Subject
	res.HasSubject = check.HasSubject
	res.Sender = check.Sender
}
