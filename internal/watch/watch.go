// Package watch polls a mailbox folder and feeds newly arrived messages
// through the rule engine, approximating a push notification stream.
package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/Alexmalab/mailsift/internal/engine"
	"github.com/Alexmalab/mailsift/internal/mail"
	"github.com/Alexmalab/mailsift/internal/rules"
)

// RuleSource supplies the rule snapshot for each processed message.
type RuleSource interface {
	List(ctx context.Context) ([]rules.Rule, error)
}

// Service is the polling loop. The first poll only primes the seen set
// so a restart does not replay the whole mailbox; later polls process
// everything that appeared since.
type Service struct {
	Mailbox  mail.Mailbox
	Rules    RuleSource
	Engine   *engine.Engine
	Folders  []string
	Interval time.Duration
	Limit    int
	Log      *slog.Logger

	seen   map[string]struct{}
	primed bool
}

// Run polls until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	if err := s.PollOnce(ctx); err != nil {
		s.Log.Warn("initial poll failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.PollOnce(ctx); err != nil {
				s.Log.Warn("poll failed", "error", err)
			}
		}
	}
}

// PollOnce lists the watched folders and runs the engine over messages
// not seen before. Messages are keyed by their move-invariant id, so a
// rule-driven move does not make the same mail look new again.
func (s *Service) PollOnce(ctx context.Context) error {
	list, err := s.Mailbox.QueryMailList(ctx, s.Folders, s.Limit, 0)
	if err != nil {
		return err
	}
	if s.seen == nil {
		s.seen = map[string]struct{}{}
	}

	if !s.primed {
		for _, h := range list.Headers {
			s.seen[mail.UniqueID(h.ID)] = struct{}{}
		}
		s.primed = true
		s.Log.Info("watch primed", "known", len(s.seen))
		return nil
	}

	var fresh []mail.Header
	for _, h := range list.Headers {
		key := mail.UniqueID(h.ID)
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.Log.Debug("new mail detected", "mail", h.ID, "folder", mail.FolderToken(h.ID))
		fresh = append(fresh, h)
	}
	if len(fresh) == 0 {
		return nil
	}

	ruleSet, err := s.Rules.List(ctx)
	if err != nil {
		return err
	}
	s.Log.Info("processing new mail", "count", len(fresh))
	// Oldest first, matching arrival order.
	for i := len(fresh) - 1; i >= 0; i-- {
		h := fresh[i]
		mc := mail.NewContext(h.ID).WithSubject(h.Subject)
		if h.Sender != nil {
			mc.Sender = h.Sender
		} else if h.From != "" {
			addr := mail.ParseAddress(h.From)
			mc.Sender = &addr
		}
		s.Engine.Run(ctx, ruleSet, mc)
	}
	return nil
}
