package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/web3tea/tidelog/pkg/log"
)

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "Create the events table and its indexes if absent",
	Action: func(ctx context.Context, c *cli.Command) error {
		store, err := openStore(ctx, c)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return err
		}
		log.Infof("schema is up to date")
		return nil
	},
}
