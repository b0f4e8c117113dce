package main

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tdex-network/tdex-notary/pkg/fingerprint"
	"github.com/urfave/cli/v2"
)

var fingerprintCmd = cli.Command{
	Name:      "fingerprint",
	Usage:     "compute the fingerprint of a document, without registering it",
	ArgsUsage: "<file>",
	Action:    fingerprintAction,
}

var register = cli.Command{
	Name:      "register",
	Usage:     "upload a document and open a registration session for it",
	ArgsUsage: "<file>",
	Action:    registerAction,
}

func fingerprintAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}

	digest, err := fingerprint.FromFile(ctx.Context, ctx.Args().First())
	if err != nil {
		return err
	}

	fmt.Fprintln(ctx.App.Writer, digest)
	return nil
}

func registerAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}

	path := ctx.Args().First()
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	// The document is streamed to the daemon, never loaded in memory.
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	var resp map[string]interface{}
	if err := doRequest(
		ctx, http.MethodPost,
		fmt.Sprintf("/v1/documents?size=%d", info.Size()),
		form.FormDataContentType(), pr, &resp,
	); err != nil {
		pr.Close()
		return err
	}

	printRespJSON(ctx, resp)
	return nil
}
