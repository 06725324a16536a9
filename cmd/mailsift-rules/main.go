// mailsift-rules manages the stored rule list: inspect it, toggle rules
// and adjust their priority order.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Alexmalab/mailsift/internal/config"
	"github.com/Alexmalab/mailsift/internal/rules"
	"github.com/Alexmalab/mailsift/internal/runtime"
)

const usage = `usage: mailsift-rules [-config path] <command> [args]

commands:
  list              show all rules in priority order
  toggle <id>       flip a rule's enabled flag
  rm <id>           delete a rule
  up <id>           move a rule one position earlier
  down <id>         move a rule one position later
`

func main() {
	cfgPath := flag.String("config", "mailsift.toml", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if err := run(*cfgPath, flag.Args()); err != nil {
		runtime.Logger("info").Error("mailsift-rules failed", "error", err)
		os.Exit(1)
	}
}

func run(cfgPath string, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("missing command")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	store, err := rules.OpenStore(cfg.Rules.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch cmd := args[0]; cmd {
	case "list":
		return list(ctx, store)
	case "toggle", "rm", "up", "down":
		if len(args) != 2 {
			return fmt.Errorf("%s requires a rule id", cmd)
		}
		return modify(ctx, store, cmd, args[1])
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func list(ctx context.Context, store *rules.Store) error {
	ruleSet, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(ruleSet) == 0 {
		fmt.Println("no rules stored")
		return nil
	}
	for i, r := range ruleSet {
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		fmt.Printf("%2d. [%s] %s (%s, id %s)\n", i+1, state, r.Name, r.Mode(), r.ID)
	}
	return nil
}

func modify(ctx context.Context, store *rules.Store, cmd, id string) error {
	switch cmd {
	case "toggle":
		enabled, err := store.Toggle(ctx, id)
		if err != nil {
			return err
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		fmt.Printf("rule %s is now %s\n", id, state)
		return nil
	case "rm":
		if err := store.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("rule %s deleted\n", id)
		return nil
	case "up":
		return store.MoveUp(ctx, id)
	case "down":
		return store.MoveDown(ctx, id)
	}
	return fmt.Errorf("unknown command %q", cmd)
}
