// Package runtime wires the pieces shared by the mailsift binaries:
// logging, the configured mailbox backend, the optional LLM judge and
// the metrics endpoint.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Alexmalab/mailsift/internal/config"
	"github.com/Alexmalab/mailsift/internal/gmailapi"
	"github.com/Alexmalab/mailsift/internal/imapmail"
	"github.com/Alexmalab/mailsift/internal/llm"
	"github.com/Alexmalab/mailsift/internal/mail"
)

// Logger builds the process logger at the configured level.
func Logger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// OpenMailbox builds the configured backend and snapshots its directory.
// The returned closer releases the backend connection.
func OpenMailbox(ctx context.Context, cfg config.Config, log *slog.Logger) (mail.Mailbox, mail.Directory, func() error, error) {
	switch cfg.Mailbox.Backend {
	case "imap":
		client, err := imapmail.Dial(cfg.IMAP.Address, cfg.IMAP.Username, cfg.IMAP.Password, log)
		if err != nil {
			return nil, nil, nil, err
		}
		dir, err := client.Directory(ctx)
		if err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		return client, dir, client.Close, nil

	case "gmail":
		cfgDir := cfg.Gmail.CredentialsDir
		if cfgDir == "" {
			cfgDir = os.ExpandEnv("$HOME/.mailsift")
		}
		svc, err := gmailapi.NewService(ctx, cfgDir)
		if err != nil {
			return nil, nil, nil, err
		}
		client := gmailapi.NewClient(svc)
		dir, err := client.Directory(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		return client, dir, func() error { return nil }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown mailbox backend %q", cfg.Mailbox.Backend)
	}
}

// NewJudge builds the LLM judge, or nil when no provider is configured.
// A misconfigured provider disables AI rules rather than aborting.
func NewJudge(cfg config.LLMConfig, log *slog.Logger) llm.Judge {
	if cfg.Provider == "" {
		return nil
	}
	judge, err := llm.New(llm.Config{Provider: cfg.Provider, APIKey: cfg.APIKey, Model: cfg.Model})
	if err != nil {
		log.Warn("llm judge unavailable; ai rules disabled", "error", err)
		return nil
	}
	return judge
}

// ServeMetrics exposes the Prometheus endpoint in the background. An
// empty address disables it.
func ServeMetrics(addr string, log *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()
}
