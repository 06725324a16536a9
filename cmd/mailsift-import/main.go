// mailsift-import converts a compiled gmailctl filter export into native
// rules and appends them to the rule store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Alexmalab/mailsift/internal/config"
	"github.com/Alexmalab/mailsift/internal/gmailctl"
	"github.com/Alexmalab/mailsift/internal/rules"
	"github.com/Alexmalab/mailsift/internal/runtime"
)

type importFlags struct {
	cfgPath     string
	binary      string
	gmailctlCfg string
	dryRun      bool
}

func main() {
	flags := parseFlags()
	if err := run(flags); err != nil {
		runtime.Logger("info").Error("mailsift-import failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() importFlags {
	cfgPath := flag.String("config", "mailsift.toml", "path to config file")
	binary := flag.String("gmailctl-binary", "gmailctl", "gmailctl binary to invoke")
	gmailctlCfg := flag.String("gmailctl-config", "", "path to gmailctl config (optional)")
	dryRun := flag.Bool("dry-run", false, "print converted rules without saving")
	flag.Parse()
	return importFlags{cfgPath: *cfgPath, binary: *binary, gmailctlCfg: *gmailctlCfg, dryRun: *dryRun}
}

func run(flags importFlags) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(flags.cfgPath)
	if err != nil {
		return err
	}
	log := runtime.Logger(cfg.Run.LogLevel)

	export, err := gmailctl.Runner{Binary: flags.binary, ConfigDir: flags.gmailctlCfg}.ExportFilters(ctx)
	if err != nil {
		return err
	}
	res := gmailctl.Convert(export)
	for _, skipped := range res.Skipped {
		log.Warn("filter skipped", "filter", skipped)
	}
	if len(res.Rules) == 0 {
		return fmt.Errorf("no convertible filters in export (%d skipped)", len(res.Skipped))
	}

	if flags.dryRun {
		for _, r := range res.Rules {
			fmt.Printf("would import: %s\n", r.Name)
		}
		return nil
	}

	store, err := rules.OpenStore(cfg.Rules.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, r := range res.Rules {
		saved, err := store.Save(ctx, r)
		if err != nil {
			return fmt.Errorf("saving rule %q: %w", r.Name, err)
		}
		log.Info("rule imported", "id", saved.ID, "name", saved.Name)
	}
	fmt.Printf("imported %d rules (%d filters skipped)\n", len(res.Rules), len(res.Skipped))
	return nil
}
