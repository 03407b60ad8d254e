package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotrcpt/internal/auth"
	"github.com/desertthunder/spotrcpt/internal/shared"
)

// APIGet makes an authenticated GET through the session manager and prints the JSON payload.
//
// The call goes through the same cache, refresh and retry handling receipts use.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	endpoint := strings.TrimSpace(cmd.StringArg("endpoint"))
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint", shared.ErrMissingArgument)
	}

	if err := r.open(); err != nil {
		return err
	}

	var opts []auth.CallOption
	if cmd.Bool("no-cache") {
		opts = append(opts, auth.WithoutCache())
	}

	r.logger.Debug("GET request", "endpoint", endpoint)
	payload, err := r.session.CallAPI(ctx, endpoint, opts...)
	if err != nil {
		return withHint(err)
	}

	if !cmd.Bool("pretty") {
		return r.writePlain("%s\n", payload)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	return r.writePlain("%s\n", buf.String())
}
