package main

import (
	"github.com/urfave/cli/v2"
)

var count = cli.Command{
	Name:   "count",
	Usage:  "print the number of swaps the registry has recorded",
	Action: countAction,
}

func countAction(ctx *cli.Context) error {
	return doGet(ctx, "/v1/swaps/count", nil)
}
