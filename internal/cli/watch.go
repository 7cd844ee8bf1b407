package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"fragmentone/socket"

	"github.com/spf13/cobra"
)

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Show today's exchange and wait for a fragment from somebody else",
		Long: `Print today's exchange, then listen for new fragments. While the
placeholder is shown, the first fragment shared by somebody else replaces
it. Stops on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, rootOpts, cmd)
		},
	}
}

func runWatch(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	s, err := openSession(ctx, opts)
	if err != nil {
		return fail(formatter, err)
	}
	defer s.Close()

	last := s.viewOutput()
	if err := formatter.Success(last); err != nil {
		return err
	}
	if s.readyErr != nil {
		formatter.VerboseLog("Loading today's state: %v", s.readyErr)
	}

	err = s.client.Listen(ctx, func(msg socket.WSMessage) {
		switch msg.Type {
		case socket.PresenceUpdateType:
			var p socket.PresencePayload
			if json.Unmarshal(msg.Payload, &p) == nil {
				formatter.VerboseLog("%d visitors online", p.Online)
			}
		case socket.FragmentAddedType:
			if msg.UserID == s.identity.AuthorID || !s.engine.View().IsFallback() {
				return
			}
			if _, err := s.engine.Reconcile(ctx); err != nil {
				formatter.VerboseLog("Refreshing after new fragment: %v", err)
				return
			}
			if next := s.viewOutput(); next != last {
				last = next
				formatter.Success(next)
			}
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return fail(formatter, storeFailure("feed", err))
}
