package main

import (
	"errors"
	"net/url"

	"github.com/urfave/cli/v2"
)

var verify = cli.Command{
	Name:      "verify",
	Usage:     "check that a preimage matches a hashlock",
	ArgsUsage: "<preimage> <hashlock>",
	Action:    verifyAction,
}

func verifyAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return errors.New("usage: verify <preimage> <hashlock>")
	}

	query := url.Values{}
	query.Set("preimage", ctx.Args().Get(0))
	query.Set("hashlock", ctx.Args().Get(1))
	return doGet(ctx, "/v1/preimage/verify", query)
}
