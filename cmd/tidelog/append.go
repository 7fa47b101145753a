package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/web3tea/tidelog/eventstore"
	"github.com/web3tea/tidelog/pkg/log"
)

var appendCmd = &cli.Command{
	Name:  "append",
	Usage: "Conditionally append an event within a filter's scope",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "filter-type",
			Usage:    "event type tag of the scope filter (repeatable)",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "filter-predicate",
			Usage: "payload subset predicate of the scope filter as JSON (repeatable, OR-ed)",
		},
		&cli.StringFlag{
			Name:     "type",
			Aliases:  []string{"t"},
			Usage:    "type tag of the event to append",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "payload",
			Aliases: []string{"d"},
			Usage:   "event payload as a JSON object",
			Value:   "{}",
		},
		&cli.StringFlag{
			Name:  "metadata",
			Usage: "event metadata as a JSON object",
			Value: "{}",
		},
		&cli.IntFlag{
			Name:    "expected",
			Aliases: []string{"e"},
			Usage:   "expected max sequence number within the filter; -1 skips the check",
			Value:   eventstore.AnyMaxSequenceNumber,
		},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		filter, err := parseFilter(c.StringSlice("filter-type"), c.StringSlice("filter-predicate"))
		if err != nil {
			return err
		}

		var payload, metadata map[string]any
		if err := json.Unmarshal([]byte(c.String("payload")), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if err := json.Unmarshal([]byte(c.String("metadata")), &metadata); err != nil {
			return fmt.Errorf("invalid metadata: %w", err)
		}

		store, err := openStore(ctx, c)
		if err != nil {
			return err
		}
		defer store.Close()

		err = store.Append(ctx, filter, c.Int("expected"), eventstore.Event{
			Type:     c.String("type"),
			Payload:  payload,
			Metadata: metadata,
		})
		if err != nil {
			return err
		}

		log.Infof("event appended")
		return nil
	},
}
