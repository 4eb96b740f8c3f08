package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

var withdraw = cli.Command{
	Name:      "withdraw",
	Usage:     "claim an escrowed swap by revealing the preimage",
	ArgsUsage: "<swap_id> <preimage>",
	Action:    withdrawAction,
}

func withdrawAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return errors.New("usage: withdraw <swap_id> <preimage>")
	}

	path := fmt.Sprintf("/v1/swaps/%s/withdraw", ctx.Args().Get(0))
	return doPost(ctx, path, map[string]interface{}{
		"preimage": ctx.Args().Get(1),
	})
}
