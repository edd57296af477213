package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	obserrors "github.com/tsarna/obsws/pkg/obsws/errors"
	"github.com/tsarna/obsws/pkg/obsws/events"
	"github.com/tsarna/obsws/pkg/obsws/protocol"
	"github.com/tsarna/obsws/pkg/obsws/session"
	"github.com/tsarna/obsws/pkg/obsws/transform"
)

type eventsOptions struct {
	jq            string
	raw           bool
	subscriptions []string
}

func newEventsCmd(root *rootOptions) *cobra.Command {
	opts := &eventsOptions{}

	eventsCmd := &cobra.Command{
		Use:   "events <uri|profile> [topic-patterns...]",
		Short: "Print events from OBS",
		Long: `Connect to OBS and print events as "<topic>\t<json>" lines until
interrupted.

Topics are "<category>/<eventType>", for example
"scenes/CurrentProgramSceneChanged". Patterns are MQTT-style; with no
patterns every event is printed.

When the target is a URI every non high-volume category is subscribed to,
otherwise the profile's event_subscriptions apply. --subscribe overrides both.

Examples:
  obsws events obsws://localhost:4455/secret
  obsws events studio "scenes/#" "+/InputMuteStateChanged"
  obsws events studio --subscribe inputvolumemeters --jq '.inputs[].inputName'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd, root, opts, args)
		},
	}

	eventsCmd.Flags().StringVar(&opts.jq, "jq", "", "jq query applied to each event's data")
	eventsCmd.Flags().BoolVarP(&opts.raw, "raw", "r", false, "print strings without JSON quoting")
	eventsCmd.Flags().StringSliceVar(&opts.subscriptions, "subscribe", nil, "event categories to subscribe to (general, scenes, inputs, ..., all)")

	return eventsCmd
}

func subscriptionMask(names []string) (uint32, error) {
	var mask uint32
	for _, name := range names {
		bit, ok := events.Subscription(name)
		if !ok {
			return 0, fmt.Errorf("unknown event category %q", name)
		}
		mask |= bit
	}
	return mask, nil
}

func runEvents(cmd *cobra.Command, root *rootOptions, opts *eventsOptions, args []string) error {
	target, patterns := args[0], args[1:]

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

	switch {
	case len(opts.subscriptions) > 0:
		mask, err := subscriptionMask(opts.subscriptions)
		if err != nil {
			return err
		}
		b = b.WithEventSubscriptions(mask)
	case isURI(target):
		b = b.WithEventSubscriptions(protocol.SubscriptionAll)
	}

	out := cmd.OutOrStdout()
	printer := events.FuncSink(func(ctx context.Context, ev *protocol.Event) error {
		var payload any = ev.EventData
		if query != nil {
			var ok bool
			var err error
			payload, ok, err = query.ApplyEvent(ctx, ev)
			if err != nil || !ok {
				return err
			}
		}

		text, err := format(payload, opts.raw)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\t%s\n", events.Topic(ev), text)
		return err
	})

	sink := events.NewLoggingSink(logger, events.NewFilterSink(printer, patterns...)).
		WithLevel(zapcore.DebugLevel).
		WithName("events")

	s, err := b.WithEventSink(sink).Build()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	logger.Info("Listening for events... (Press Ctrl+C to exit)",
		zap.Strings("patterns", patterns),
		zap.Uint32("subscriptions", s.EventSubscriptions()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return receiveLoop(gctx, s, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.Close()
	})

	err = g.Wait()
	logger.Info("Shutdown complete")
	return err
}

// receiveLoop reads until ctx is done or the session fails. Per-message
// errors are logged and skipped.
func receiveLoop(ctx context.Context, s *session.Session, logger *zap.Logger) error {
	for {
		_, err := s.Receive(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if isFatal(err) {
			return err
		}
		logger.Warn("Skipping message", zap.Error(err))
	}
}

func isFatal(err error) bool {
	return errors.Is(err, obserrors.ErrTransport) ||
		errors.Is(err, obserrors.ErrSessionClosed) ||
		errors.Is(err, obserrors.ErrNotReady)
}
