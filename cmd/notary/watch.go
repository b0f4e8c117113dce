package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"
)

var watch = cli.Command{
	Name:      "watch",
	Usage:     "follow the status changes of the transactions paying an address",
	ArgsUsage: "<address>",
	Action:    watchAction,
}

func watchAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}

	endpoint := "ws" + strings.TrimPrefix(daemonURL(ctx), "http") +
		"/v1/addresses/" + url.PathEscape(ctx.Args().First()) + "/stream"

	conn, _, err := websocket.DefaultDialer.DialContext(
		ctx.Context, endpoint, nil,
	)
	if err != nil {
		return fmt.Errorf("unable to connect to daemon: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Context.Done()
		conn.Close()
	}()

	for {
		var change map[string]interface{}
		if err := conn.ReadJSON(&change); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) ||
				ctx.Context.Err() != nil {
				return nil
			}
			return err
		}
		printRespJSON(ctx, change)
	}
}
