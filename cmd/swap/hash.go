package main

import (
	"errors"
	"net/url"

	"github.com/urfave/cli/v2"
)

var hash = cli.Command{
	Name:      "hash",
	Usage:     "hash a preimage the way the registry does",
	ArgsUsage: "<preimage>",
	Action:    hashAction,
}

func hashAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("usage: hash <preimage>")
	}

	query := url.Values{}
	query.Set("preimage", ctx.Args().First())
	return doGet(ctx, "/v1/preimage/hash", query)
}
