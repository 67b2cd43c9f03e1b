package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/pinboard/pkg/client"
	"github.com/aretw0/pinboard/pkg/core"
)

// newNotebook connects to --server or the configured base URL.
func newNotebook() *client.Notebook {
	base := serverURL
	if base == "" {
		base = cfg.Server.BaseURL
	}
	var opts []client.Option
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.NewNotebook(client.New(base, opts...))
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), client.DefaultTimeout)
}

// checkFields rejects blank values and colors outside the palette before any request.
func checkFields(fields map[string]*string) error {
	var problems []string
	for _, name := range []string{"title", "content", "color"} {
		v, ok := fields[name]
		if !ok || v == nil {
			continue
		}
		if strings.TrimSpace(*v) == "" {
			problems = append(problems, name+" cannot be blank")
			continue
		}
		if name == "color" && !core.InPalette(*v) {
			problems = append(problems, fmt.Sprintf("color must be one of %s", strings.Join(core.Palette, ", ")))
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func printJSON(v any) {
	if err := encodeJSON(os.Stdout, v); err != nil {
		fatal("Error encoding JSON", err)
	}
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// failed reports a Notebook failure and exits. API errors carry their own message.
func failed(nb *client.Notebook, err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", nb.Err())
		os.Exit(1)
	}
	fatal(nb.Err(), err)
}
