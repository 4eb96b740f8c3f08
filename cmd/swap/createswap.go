package main

import (
	"github.com/urfave/cli/v2"
)

var createswap = cli.Command{
	Name:  "create",
	Usage: "lock funds under a hashlock until the given deadline",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "sender",
			Usage:    "account the escrowed amount is debited from",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "recipient",
			Usage:    "account allowed to withdraw with the preimage",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "ledger",
			Usage:    "asset ledger id the amount is denominated in",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:     "amount",
			Usage:    "amount in base units",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "hashlock",
			Usage:    "hash of the secret, in the registry ledger's encoding",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:     "timelock",
			Usage:    "refund deadline in the registry ledger's native time unit",
			Required: true,
		},
	},
	Action: createSwapAction,
}

func createSwapAction(ctx *cli.Context) error {
	return doPost(ctx, "/v1/swaps", map[string]interface{}{
		"sender":    ctx.String("sender"),
		"recipient": ctx.String("recipient"),
		"ledger_id": ctx.String("ledger"),
		"amount":    ctx.Uint64("amount"),
		"hashlock":  ctx.String("hashlock"),
		"timelock":  ctx.Uint64("timelock"),
	})
}
