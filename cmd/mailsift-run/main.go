// mailsift-run executes the stored rule set over a mailbox folder once
// and reports what it did.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Alexmalab/mailsift/internal/config"
	"github.com/Alexmalab/mailsift/internal/engine"
	"github.com/Alexmalab/mailsift/internal/rate"
	"github.com/Alexmalab/mailsift/internal/rules"
	"github.com/Alexmalab/mailsift/internal/runtime"
)

type runFlags struct {
	cfgPath string
	folders string
	ruleIDs string
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.Logger("info").Error("mailsift-run failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() runFlags {
	cfgPath := flag.String("config", "mailsift.toml", "path to config file")
	folders := flag.String("folders", "", "comma separated folder names to process (default: the configured inbox)")
	ruleIDs := flag.String("rules", "", "comma separated rule ids to run (default: all enabled)")
	flag.Parse()
	return runFlags{cfgPath: *cfgPath, folders: *folders, ruleIDs: *ruleIDs}
}

func run(flags runFlags) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(flags.cfgPath)
	if err != nil {
		return err
	}
	log := runtime.Logger(cfg.Run.LogLevel)
	runtime.ServeMetrics(cfg.Run.MetricsAddr, log)

	store, err := rules.OpenStore(cfg.Rules.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	ruleSet, err := store.List(ctx)
	if err != nil {
		return err
	}

	mailbox, dir, closeMailbox, err := runtime.OpenMailbox(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeMailbox()

	limiter := rate.NewTokenBucket(cfg.Run.RatePerSec, cfg.Run.RateBurst)
	defer limiter.Stop()

	folders := splitList(flags.folders)
	if len(folders) == 0 {
		folders = defaultFolders(cfg)
	}
	folderIDs := make([]string, 0, len(folders))
	for _, name := range folders {
		id, ok := dir.FolderID(name)
		if !ok {
			return fmt.Errorf("unknown folder %q", name)
		}
		folderIDs = append(folderIDs, id)
	}

	runner := &engine.BatchRunner{
		Mailbox:     mailbox,
		Dir:         dir,
		Limiter:     limiter,
		Log:         log,
		BatchSize:   cfg.Run.BatchSize,
		ScanLimit:   cfg.Run.ScanLimit,
		VerifyLimit: cfg.Run.VerifyLimit,
	}
	report, err := runner.Run(ctx, folderIDs, ruleSet, splitList(flags.ruleIDs))
	if err != nil {
		return err
	}

	fmt.Printf("processed %d of %d messages: %d marked read, %d labeled, %d moved\n",
		report.Processed, report.Total, report.MarkedRead, report.Labeled, report.Moved)
	return nil
}

func defaultFolders(cfg config.Config) []string {
	if cfg.Mailbox.Backend == "imap" {
		return []string{cfg.IMAP.Inbox}
	}
	return []string{"INBOX"}
}

func splitList(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
