package main

import (
	"errors"
	"net/url"

	"github.com/urfave/cli/v2"
)

var listswaps = cli.Command{
	Name:  "list",
	Usage: "list swaps, optionally filtered by state or party",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "state",
			Usage: "filter by state, either active or expired",
		},
		&cli.StringFlag{
			Name:  "sender",
			Usage: "filter by sender account",
		},
		&cli.StringFlag{
			Name:  "recipient",
			Usage: "filter by recipient account",
		},
	},
	Action: listSwapsAction,
}

func listSwapsAction(ctx *cli.Context) error {
	query := url.Values{}
	filters := 0
	for _, key := range []string{"state", "sender", "recipient"} {
		if value := ctx.String(key); value != "" {
			query.Set(key, value)
			filters++
		}
	}
	if filters > 1 {
		return errors.New("at most one of --state, --sender, --recipient")
	}

	return doGet(ctx, "/v1/swaps", query)
}
