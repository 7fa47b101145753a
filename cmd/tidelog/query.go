package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/web3tea/tidelog/eventstore"
)

var queryCmd = &cli.Command{
	Name:  "query",
	Usage: "Query events by type and payload predicates",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "type",
			Aliases:  []string{"t"},
			Usage:    "event type tag to include (repeatable)",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:    "predicate",
			Aliases: []string{"p"},
			Usage:   "payload subset predicate as a JSON object (repeatable, OR-ed)",
		},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		filter, err := parseFilter(c.StringSlice("type"), c.StringSlice("predicate"))
		if err != nil {
			return err
		}

		store, err := openStore(ctx, c)
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := store.Query(ctx, filter)
		if err != nil {
			return err
		}

		renderEvents(result)
		return nil
	},
}

func parseFilter(types, predicates []string) (eventstore.Filter, error) {
	objs := make([]map[string]any, 0, len(predicates))
	for _, raw := range predicates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return eventstore.Filter{}, fmt.Errorf("invalid predicate %q: %w", raw, err)
		}
		objs = append(objs, obj)
	}
	return eventstore.NewFilter(types, objs...)
}
