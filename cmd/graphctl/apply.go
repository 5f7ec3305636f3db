package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"graphengine/application/router"
)

type applyOptions struct {
	operation string
	domain    string
	server    string
	timeout   time.Duration
}

func newApplyCmd() *cobra.Command {
	opts := &applyOptions{}
	cmd := &cobra.Command{
		Use:   "apply <file|->",
		Short: "Run one operation with the payload in a JSON or YAML file",
		Long: "Run one operation with the payload in a JSON or YAML file. Without --server the\n" +
			"operation runs against an in-process host seeded with the demo assets.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			if opts.server != "" {
				return applyRemote(ctx, cmd.OutOrStdout(), opts, payload)
			}
			return applyLocal(ctx, cmd.OutOrStdout(), opts, payload)
		},
	}
	cmd.Flags().StringVarP(&opts.operation, "op", "o", router.OpBatch, "operation to run")
	cmd.Flags().StringVarP(&opts.domain, "domain", "d", "", "expected domain of the target graph")
	cmd.Flags().StringVarP(&opts.server, "server", "s", "", "base URL of a graphengine server")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "time limit for the operation")
	return cmd
}

func readPayload(stdin io.Reader, name string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return toJSON(data)
}

func applyLocal(ctx context.Context, out io.Writer, opts *applyOptions, payload json.RawMessage) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	r, _, err := newEngine(logger)
	if err != nil {
		return err
	}
	resp := r.Route(ctx, opts.domain, opts.operation, payload)
	if err := printJSON(out, resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s failed", opts.operation)
	}
	return nil
}

func applyRemote(ctx context.Context, out io.Writer, opts *applyOptions, payload json.RawMessage) error {
	target := strings.TrimRight(opts.server, "/") + "/api/v1/graphs/commands/" + url.PathEscape(opts.operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if opts.domain != "" {
		req.Header.Set("X-Graph-Domain", opts.domain)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", target, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		body = append(pretty.Bytes(), '\n')
	}
	if _, err := out.Write(body); err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s failed: %s", opts.operation, res.Status)
	}
	return nil
}
