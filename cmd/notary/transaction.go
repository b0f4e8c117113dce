package main

import (
	"fmt"
	"net/url"

	"github.com/urfave/cli/v2"
)

var transactions = cli.Command{
	Name:      "transactions",
	Usage:     "list the transactions known for an address, or for all of them",
	ArgsUsage: "[address]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "refresh",
			Usage: "query the ledger before listing, requires an address",
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "max number of transactions listed without an address",
			Value: 10,
		},
		&cli.IntFlag{
			Name:  "skip",
			Usage: "number of transactions skipped when listed without an address",
		},
	},
	Action: transactionsAction,
}

var transaction = cli.Command{
	Name:      "transaction",
	Usage:     "get the merged state of a transaction",
	ArgsUsage: "<txid>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "detail",
			Usage: "fetch the full transaction from the ledger",
		},
	},
	Action: transactionAction,
}

func transactionsAction(ctx *cli.Context) error {
	if ctx.NArg() == 0 && !ctx.Bool("refresh") {
		return listAllTransactions(ctx)
	}
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}

	address := url.PathEscape(ctx.Args().First())
	var resp map[string]interface{}
	var err error
	if ctx.Bool("refresh") {
		err = postJSON(ctx, "/v1/addresses/"+address+"/refresh", nil, &resp)
	} else {
		err = getJSON(ctx, "/v1/addresses/"+address+"/transactions", &resp)
	}
	if err != nil {
		return err
	}

	printRespJSON(ctx, resp)
	return nil
}

func listAllTransactions(ctx *cli.Context) error {
	path := fmt.Sprintf(
		"/v1/transactions?count=%d&skip=%d", ctx.Int("count"), ctx.Int("skip"),
	)

	var resp map[string]interface{}
	if err := getJSON(ctx, path, &resp); err != nil {
		return err
	}

	printRespJSON(ctx, resp)
	return nil
}

func transactionAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}

	path := "/v1/transactions/" + url.PathEscape(ctx.Args().First())
	if ctx.Bool("detail") {
		path += "?detail=true"
	}

	var resp map[string]interface{}
	if err := getJSON(ctx, path, &resp); err != nil {
		return err
	}

	printRespJSON(ctx, resp)
	return nil
}
