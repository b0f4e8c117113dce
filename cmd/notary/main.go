package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

const requestTimeout = 2 * time.Minute

var rpcFlag = cli.StringFlag{
	Name:    "rpcserver",
	Usage:   "notaryd daemon address host:port",
	Value:   "localhost:9090",
	EnvVars: []string{"NOTARY_RPCSERVER"},
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "notary CLI"
	app.Usage = "Command line interface for notaryd users"
	app.Flags = []cli.Flag{&rpcFlag}
	app.Commands = append(
		app.Commands,
		&fingerprintCmd,
		&register,
		&session,
		&closeSession,
		&pay,
		&transactions,
		&transaction,
		&watch,
		&addwebhook,
		&removewebhook,
		&listwebhooks,
	)
	return app
}

// daemonURL returns the base url of the daemon REST API.
func daemonURL(ctx *cli.Context) string {
	server := ctx.String(rpcFlag.Name)
	if !strings.HasPrefix(server, "http://") &&
		!strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	return strings.TrimSuffix(server, "/")
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// doRequest sends the request to the daemon and decodes the JSON response
// into out, if not nil.
func doRequest(
	ctx *cli.Context, method, path, contentType string, body io.Reader,
	out interface{},
) error {
	req, err := http.NewRequestWithContext(
		ctx.Context, method, daemonURL(ctx)+path, body,
	)
	if err != nil {
		return err
	}
	if len(contentType) > 0 {
		req.Header.Set("Content-Type", contentType)
	}

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil ||
			len(e.Error) <= 0 {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &apiError{resp.StatusCode, e.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getJSON(ctx *cli.Context, path string, out interface{}) error {
	return doRequest(ctx, http.MethodGet, path, "", nil, out)
}

func postJSON(ctx *cli.Context, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	return doRequest(ctx, http.MethodPost, path, "application/json", body, out)
}

func deleteResource(ctx *cli.Context, path string) error {
	return doRequest(ctx, http.MethodDelete, path, "", nil, nil)
}

func printRespJSON(ctx *cli.Context, resp interface{}) {
	buf, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fmt.Fprintln(ctx.App.ErrWriter, "unable to decode response: ", err)
		return
	}
	fmt.Fprintln(ctx.App.Writer, string(buf))
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func requireArgs(ctx *cli.Context, n int) error {
	if ctx.NArg() != n {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}
	return nil
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[notary] %v\n", err)
	}
	os.Exit(1)
}
