package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tsarna/obsws/pkg/obsws/protocol"
	"github.com/tsarna/obsws/pkg/obsws/transform"
)

type requestOptions struct {
	jq          string
	raw         bool
	timeout     time.Duration
	dialTimeout time.Duration
}

func newRequestCmd(root *rootOptions) *cobra.Command {
	opts := &requestOptions{}

	requestCmd := &cobra.Command{
		Use:   "request <uri|profile> <request-type> [json-data]",
		Short: "Send a request to OBS and print the response data",
		Long: `Connect to OBS, send one request and print its responseData as JSON.

The optional third argument is the requestData object as JSON. A request
that OBS rejects exits with an error carrying the status code and comment.

Examples:
  obsws request obsws://localhost:4455/secret GetVersion
  obsws request studio SetCurrentProgramScene '{"sceneName":"Live"}'
  obsws request studio GetSceneList --jq '.scenes[].sceneName' -r`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, root, opts, args)
		},
	}

	requestCmd.Flags().StringVar(&opts.jq, "jq", "", "jq query applied to the response data")
	requestCmd.Flags().BoolVarP(&opts.raw, "raw", "r", false, "print strings without JSON quoting")
	requestCmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "total operation timeout")
	requestCmd.Flags().DurationVar(&opts.dialTimeout, "dial-timeout", 0, "WebSocket dial timeout (default from profile, or 30s)")

	return requestCmd
}

func runRequest(cmd *cobra.Command, root *rootOptions, opts *requestOptions, args []string) error {
	target, requestType := args[0], args[1]

	var data protocol.Document
	if len(args) == 3 {
		if err := json.Unmarshal([]byte(args[2]), &data); err != nil {
			return fmt.Errorf("invalid request data: %w", err)
		}
	}

	var query *transform.JQ
	if opts.jq != "" {
		var err error
		if query, err = transform.CompileJQ(opts.jq); err != nil {
			return err
		}
	}

	cfg, logger, err := root.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	b, stopMetrics, err := root.sessionBuilder(target, cfg, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()
	s, err := b.WithDialTimeout(opts.dialTimeout).Build()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	logger.Info("Sending request",
		zap.String("request_type", requestType),
		zap.Any("request_data", data))

	resp, err := s.Call(ctx, requestType, data)
	if err != nil {
		return fmt.Errorf("request %s: %w", requestType, err)
	}
	if err := resp.Err(); err != nil {
		return err
	}

	var out any = resp.ResponseData
	if query != nil {
		var ok bool
		out, ok, err = query.ApplyResponse(ctx, resp)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	return printValue(cmd.OutOrStdout(), out, opts.raw)
}
