package main

import (
	"context"
	stdlog "log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/web3tea/tidelog/config"
	"github.com/web3tea/tidelog/eventstore"
	"github.com/web3tea/tidelog/pkg/log"
	"github.com/web3tea/tidelog/postgres"
)

func main() {
	cmd := &cli.Command{
		Name:  "tidelog",
		Usage: "An aggregateless event store on PostgreSQL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a TOML, JSON or YAML config file",
			},
		},
		Commands: []*cli.Command{
			migrateCmd,
			queryCmd,
			appendCmd,
			demoCmd,
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		stdlog.Fatal(err)
	}
}

func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	log.SetGlobalLevel(log.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

func openStore(ctx context.Context, c *cli.Command) (eventstore.Store, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return postgres.New(ctx, cfg.Database.StoreConfig(), log.NewLogger("store", os.Stderr))
}
