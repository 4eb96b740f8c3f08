package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

var getswap = cli.Command{
	Name:      "get",
	Usage:     "show a swap by id",
	ArgsUsage: "<swap_id>",
	Action:    getSwapAction,
}

func getSwapAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("usage: get <swap_id>")
	}

	return doGet(ctx, fmt.Sprintf("/v1/swaps/%s", ctx.Args().First()), nil)
}
