package main

import (
	"fmt"
	"net/url"

	"github.com/urfave/cli/v2"
)

var addwebhook = cli.Command{
	Name:  "addwebhook",
	Usage: "register a webhook for transaction status changes",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "action",
			Usage: "the topic to subscribe for: TRANSACTION_PENDING, TRANSACTION_CONFIRMED or *",
			Value: "*",
		},
		&cli.StringFlag{
			Name:     "endpoint",
			Usage:    "the url notified through HTTP POST requests",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "secret",
			Usage: "the secret used to sign the bearer token of the requests",
		},
	},
	Action: addWebhookAction,
}

var removewebhook = cli.Command{
	Name:      "removewebhook",
	Usage:     "remove a registered webhook",
	ArgsUsage: "<id>",
	Action:    removeWebhookAction,
}

var listwebhooks = cli.Command{
	Name:  "listwebhooks",
	Usage: "list the registered webhooks",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "action",
			Usage: "only list the webhooks of the given topic",
		},
	},
	Action: listWebhooksAction,
}

func addWebhookAction(ctx *cli.Context) error {
	req := map[string]string{
		"topic":    ctx.String("action"),
		"endpoint": ctx.String("endpoint"),
		"secret":   ctx.String("secret"),
	}

	var resp map[string]interface{}
	if err := postJSON(ctx, "/v1/webhooks", req, &resp); err != nil {
		return err
	}

	printRespJSON(ctx, resp)
	return nil
}

func removeWebhookAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}

	id := ctx.Args().First()
	if err := deleteResource(ctx, "/v1/webhooks/"+id); err != nil {
		return err
	}

	fmt.Fprintf(ctx.App.Writer, "webhook %s removed\n", id)
	return nil
}

func listWebhooksAction(ctx *cli.Context) error {
	path := "/v1/webhooks"
	if topic := ctx.String("action"); len(topic) > 0 {
		path += "?topic=" + url.QueryEscape(topic)
	}

	var resp map[string]interface{}
	if err := getJSON(ctx, path, &resp); err != nil {
		return err
	}

	printRespJSON(ctx, resp)
	return nil
}
