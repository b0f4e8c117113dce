package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var session = cli.Command{
	Name:      "session",
	Usage:     "get info about a registration session",
	ArgsUsage: "<id>",
	Action:    sessionAction,
}

var closeSession = cli.Command{
	Name:      "close",
	Usage:     "close a registration session",
	ArgsUsage: "<id>",
	Action:    closeSessionAction,
}

var pay = cli.Command{
	Name:      "pay",
	Usage:     "pay the amount requested for a registration session",
	ArgsUsage: "<id>",
	Action:    payAction,
}

func sessionAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}

	var resp map[string]interface{}
	if err := getJSON(
		ctx, "/v1/sessions/"+ctx.Args().First(), &resp,
	); err != nil {
		return err
	}

	printRespJSON(ctx, resp)
	return nil
}

func closeSessionAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}

	id := ctx.Args().First()
	if err := deleteResource(ctx, "/v1/sessions/"+id); err != nil {
		return err
	}

	fmt.Fprintf(ctx.App.Writer, "session %s closed\n", id)
	return nil
}

func payAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}

	var resp map[string]interface{}
	if err := postJSON(
		ctx, "/v1/sessions/"+ctx.Args().First()+"/pay", nil, &resp,
	); err != nil {
		return err
	}

	printRespJSON(ctx, resp)
	return nil
}
