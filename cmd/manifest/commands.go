package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"manifest/domain/instruction"
	"manifest/domain/orderbook"
	"manifest/infra/kafka"
	"manifest/service"
)

func flags(name string) *pflag.FlagSet {
	return pflag.NewFlagSet(name, pflag.ContinueOnError)
}

func printSignature(what string, sig solana.Signature) {
	if sig.IsZero() {
		fmt.Printf("%s: nothing to do\n", what)
		return
	}
	fmt.Printf("%s: %s\n", what, sig)
}

// ---- market lifecycle ----

func runCreateMarket(ctx context.Context, a *app, args []string) error {
	if err := flags("create-market").Parse(args); err != nil {
		return err
	}
	s, err := a.session()
	if err != nil {
		return err
	}
	s, sig, err := a.svc.CreateMarket(ctx, s)
	if err != nil {
		return err
	}
	printSignature("market "+s.Market.String(), sig)
	return a.save(s)
}

func runDelegate(ctx context.Context, a *app, args []string) error {
	if err := flags("delegate").Parse(args); err != nil {
		return err
	}
	s, err := a.session()
	if err != nil {
		return err
	}
	s, sig, err := a.svc.DelegateMarket(ctx, s)
	if err != nil {
		return err
	}
	printSignature("delegate", sig)
	return a.save(s)
}

func runCommit(ctx context.Context, a *app, args []string) error {
	if err := flags("commit").Parse(args); err != nil {
		return err
	}
	s, err := a.session()
	if err != nil {
		return err
	}
	sig, err := a.svc.CommitMarket(ctx, s)
	if err != nil {
		return err
	}
	printSignature("commit", sig)
	return nil
}

func runClaimSeat(ctx context.Context, a *app, args []string) error {
	if err := flags("claim-seat").Parse(args); err != nil {
		return err
	}
	s, err := a.session()
	if err != nil {
		return err
	}
	s, sig, err := a.svc.ClaimSeat(ctx, s)
	if err != nil {
		return err
	}
	printSignature("claim seat", sig)
	return a.save(s)
}

func runSetupAccounts(ctx context.Context, a *app, args []string) error {
	if err := flags("setup-accounts").Parse(args); err != nil {
		return err
	}
	s, err := a.session()
	if err != nil {
		return err
	}
	s, sig, err := a.svc.SetupTokenAccounts(ctx, s)
	if err != nil {
		return err
	}
	printSignature("token accounts", sig)
	fmt.Printf("base:  %s\nquote: %s\n", s.BaseTokenAccount, s.QuoteTokenAccount)
	return a.save(s)
}

// ---- trading ----

func runDeposit(ctx context.Context, a *app, args []string) error {
	fs := flags("deposit")
	side := fs.String("mint", "base", "base or quote")
	amount := fs.String("amount", "", "amount in whole tokens")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	qty, err := decimal.NewFromString(*amount)
	if err != nil {
		return errors.Wrapf(err, "--amount %q", *amount)
	}
	var mint solana.PublicKey
	switch *side {
	case "base":
		mint = s.BaseMint
	case "quote":
		mint = s.QuoteMint
	default:
		return errors.Errorf("--mint %q is not base or quote", *side)
	}

	res, err := a.svc.Deposit(ctx, s, mint, qty)
	if err != nil {
		return err
	}
	fmt.Printf("deposited %d atoms\ntransfer: %s\ndeposit:  %s\n", res.Atoms, res.Transfer, res.Deposit)
	return nil
}

func runPlace(ctx context.Context, a *app, args []string) error {
	fs := flags("place")
	side := fs.String("side", "bid", "bid or ask")
	px := fs.String("price", "", "price in quote tokens per base token")
	amount := fs.String("amount", "", "size in base tokens")
	kind := fs.String("type", "limit", "limit, ioc, post-only, global or reverse")
	lastValid := fs.Uint32("last-valid-slot", 0, "expiry slot, 0 for none")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := service.OrderRequest{LastValidSlot: *lastValid}
	switch *side {
	case "bid", "buy":
		req.IsBid = true
	case "ask", "sell":
	default:
		return errors.Errorf("--side %q is not bid or ask", *side)
	}
	var err error
	if req.Price, err = decimal.NewFromString(*px); err != nil {
		return errors.Wrapf(err, "--price %q", *px)
	}
	if req.Amount, err = decimal.NewFromString(*amount); err != nil {
		return errors.Wrapf(err, "--amount %q", *amount)
	}
	if req.Type, err = instruction.ParseOrderType(*kind); err != nil {
		return err
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	sig, err := a.svc.PlaceOrders(ctx, s, []service.OrderRequest{req})
	if err != nil {
		return err
	}
	printSignature("place", sig)
	return nil
}

func runCancel(ctx context.Context, a *app, args []string) error {
	fs := flags("cancel")
	seqs := fs.UintSlice("seq", nil, "order sequence numbers to cancel")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := a.session()
	if err != nil {
		return err
	}
	ids := make([]uint64, 0, len(*seqs))
	for _, v := range *seqs {
		ids = append(ids, uint64(v))
	}
	sig, err := a.svc.CancelOrders(ctx, s, ids)
	if err != nil {
		return err
	}
	printSignature("cancel", sig)
	return nil
}

func runWrap(ctx context.Context, a *app, args []string) error {
	fs := flags("wrap")
	amount := fs.String("amount", "1", "SOL to wrap")
	if err := fs.Parse(args); err != nil {
		return err
	}
	qty, err := decimal.NewFromString(*amount)
	if err != nil {
		return errors.Wrapf(err, "--amount %q", *amount)
	}
	s, err := a.session()
	if err != nil {
		return err
	}
	res, err := a.svc.WrapSOL(ctx, s, qty)
	if err != nil {
		return err
	}
	fmt.Printf("wrapped %d lamports into %s\n", res.Lamports, res.Account)
	printSignature("wrap", res.Signature)
	return nil
}

func runUnwrap(ctx context.Context, a *app, args []string) error {
	if err := flags("unwrap").Parse(args); err != nil {
		return err
	}
	s, err := a.session()
	if err != nil {
		return err
	}
	account, sig, err := a.svc.UnwrapSOL(ctx, s)
	if err != nil {
		return err
	}
	fmt.Printf("closed %s\n", account)
	printSignature("unwrap", sig)
	return nil
}

// ---- reads ----

func runBook(ctx context.Context, a *app, args []string) error {
	fs := flags("book")
	stored := fs.Bool("stored", false, "decode the newest stored snapshot instead of fetching")
	withOrders := fs.Bool("orders", true, "list every resting order with its sequence number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := a.session()
	if err != nil {
		return err
	}

	var book *orderbook.Book
	if *stored {
		if a.snaps == nil {
			return errors.New("snapshot store is held by another process; stop watch or drop --stored")
		}
		book, err = a.svc.LoadOrderBook(s)
	} else {
		book, err = a.svc.FetchOrderBook(ctx, s)
	}
	if err != nil {
		return err
	}

	e := kafka.NewBookEvent(s.Market, book, time.Now())
	if *withOrders {
		e = e.WithOrders(book)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "market has %d bids and %d asks (visited %d and %d nodes)\n",
		len(book.Bids.Orders), len(book.Asks.Orders), book.Bids.TotalVisited, book.Asks.TotalVisited)
	return a.save(s.WithHeader(book.Header))
}
