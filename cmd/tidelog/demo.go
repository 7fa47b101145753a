package main

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/web3tea/tidelog/bank"
	"github.com/web3tea/tidelog/eventstore"
	"github.com/web3tea/tidelog/memory"
	"github.com/web3tea/tidelog/pkg/log"
)

var demoCmd = &cli.Command{
	Name:  "demo",
	Usage: "Run the sample banking slices against the store",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "memory",
			Usage: "use an in-memory store instead of PostgreSQL",
		},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		var store eventstore.Store
		if c.Bool("memory") {
			store = memory.New(memory.WithLogger(log.NewLogger("store", os.Stderr)))
		} else {
			var err error
			if store, err = openStore(ctx, c); err != nil {
				return err
			}
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
		defer store.Close()

		service := bank.NewService(store, log.NewLogger("bank", os.Stderr))

		if err := service.OpenAccount(ctx, "alice", "EUR"); err != nil {
			return err
		}
		if err := service.OpenAccount(ctx, "bob", "EUR"); err != nil {
			return err
		}

		// Concurrent deposits racing on the same account; losers re-read
		// and retry inside the slice.
		var g errgroup.Group
		for range 3 {
			g.Go(func() error {
				return service.Deposit(ctx, "alice", decimal.NewFromInt(100))
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if err := service.Withdraw(ctx, "alice", decimal.NewFromInt(50)); err != nil {
			return err
		}
		transferID, err := service.Transfer(ctx, "alice", "bob", decimal.NewFromInt(125))
		if err != nil {
			return err
		}
		log.Infof("transfer %s settled", transferID)

		return renderAccounts(ctx, service, "alice", "bob")
	},
}

func renderAccounts(ctx context.Context, service *bank.Service, accountIDs ...string) error {
	balanceColor := color.New(color.FgGreen, color.Bold).SprintFunc()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Account", "Currency", "Balance", "Opened At"})

	for _, id := range accountIDs {
		account, err := service.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{
			account.ID,
			account.Currency,
			balanceColor(account.Balance.StringFixed(2)),
			account.OpenedAt.Format("2006-01-02 15:04:05"),
		})
	}

	t.Render()
	return nil
}
