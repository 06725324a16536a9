// mailsift-watch polls a mailbox folder and runs the stored rule set
// over every newly arrived message until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Alexmalab/mailsift/internal/config"
	"github.com/Alexmalab/mailsift/internal/engine"
	"github.com/Alexmalab/mailsift/internal/rules"
	"github.com/Alexmalab/mailsift/internal/runtime"
	"github.com/Alexmalab/mailsift/internal/watch"
)

func main() {
	cfgPath := flag.String("config", "mailsift.toml", "path to config file")
	folder := flag.String("folder", "", "folder to watch (default: the configured inbox)")
	flag.Parse()

	if err := run(*cfgPath, *folder); err != nil && !errors.Is(err, context.Canceled) {
		runtime.Logger("info").Error("mailsift-watch failed", "error", err)
		os.Exit(1)
	}
}

func run(cfgPath, folder string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	log := runtime.Logger(cfg.Run.LogLevel)
	runtime.ServeMetrics(cfg.Run.MetricsAddr, log)

	interval, err := cfg.Run.GetPollInterval()
	if err != nil {
		return err
	}

	store, err := rules.OpenStore(cfg.Rules.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	mailbox, dir, closeMailbox, err := runtime.OpenMailbox(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeMailbox()

	if folder == "" {
		folder = cfg.IMAP.Inbox
		if cfg.Mailbox.Backend == "gmail" {
			folder = "INBOX"
		}
	}
	folderID, ok := dir.FolderID(folder)
	if !ok {
		return fmt.Errorf("unknown folder %q", folder)
	}

	judge := runtime.NewJudge(cfg.LLM, log)
	svc := &watch.Service{
		Mailbox:  mailbox,
		Rules:    store,
		Engine:   engine.New(mailbox, dir, judge, log),
		Folders:  []string{folderID},
		Interval: interval,
		Limit:    cfg.Run.ScanLimit,
		Log:      log,
	}
	log.Info("watching mailbox", "folder", folder, "interval", interval)
	return svc.Run(ctx)
}
