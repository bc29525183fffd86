package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
	// daemon commands run until interrupted; the others share one ledger
	// timeout.
	daemon bool
	stores stores
}

var commands = map[string]command{
	"create-market":  {usage: "create the market on the base ledger", run: runCreateMarket},
	"delegate":       {usage: "delegate the market to the rollup", run: runDelegate},
	"commit":         {usage: "commit rollup state back to the base ledger", run: runCommit},
	"claim-seat":     {usage: "claim a trader seat on the rollup", run: runClaimSeat},
	"setup-accounts": {usage: "create the payer's base and quote token accounts", run: runSetupAccounts},
	"wrap":           {usage: "wrap native SOL into the payer's wSOL account", run: runWrap},
	"unwrap":         {usage: "close the payer's wSOL account back into SOL", run: runUnwrap},
	"deposit":        {usage: "deposit tokens into the market", run: runDeposit},
	"place":          {usage: "place an order", run: runPlace},
	"cancel":         {usage: "cancel orders by sequence number", run: runCancel},
	"book":           {usage: "print the order book", run: runBook, stores: snapshotsIfFree},
	"watch":          {usage: "poll the book, publish feeds and serve metrics", run: runWatch, daemon: true, stores: allStores},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd command, args []string) error {
	a, err := newApp(cmd.stores)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.svc.Recover(); err != nil {
		return err
	}
	if !cmd.daemon {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Ledger.Timeout)
		defer cancel()
	}
	return cmd.run(ctx, a, args)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: manifest <command> [flags]")
	fmt.Fprintln(os.Stderr)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-15s %s\n", name, commands[name].usage)
	}
}
