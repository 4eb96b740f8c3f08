package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

var refund = cli.Command{
	Name:      "refund",
	Usage:     "return an expired swap's funds to the sender",
	ArgsUsage: "<swap_id>",
	Action:    refundAction,
}

func refundAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("usage: refund <swap_id>")
	}

	path := fmt.Sprintf("/v1/swaps/%s/refund", ctx.Args().First())
	return doPost(ctx, path, map[string]interface{}{})
}
