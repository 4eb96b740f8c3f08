package main

import (
	"github.com/urfave/cli/v2"

	"github.com/hashlock-labs/swapd/pkg/commitment"
)

var commit = cli.Command{
	Name:  "commit",
	Usage: "generate a fresh secret with its hashlock, encoded for both ledgers",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "reveal",
			Usage: "also print the secret; keep it private until both legs are locked",
		},
	},
	Action: commitAction,
}

func commitAction(ctx *cli.Context) error {
	com, err := commitment.New()
	if err != nil {
		return err
	}

	resp := map[string]string{
		"hashlock_evm": com.HashlockFor(commitment.LedgerEvm),
		"hashlock_icp": com.HashlockFor(commitment.LedgerIcp),
	}
	if ctx.Bool("reveal") {
		resp["secret_evm"] = com.SecretFor(commitment.LedgerEvm)
		resp["secret_icp"] = com.SecretFor(commitment.LedgerIcp)
	}

	printJSON(resp)
	return nil
}
