package cli

import (
	"fragmentone/internal/clock"
	"fragmentone/pkg/errs"

	"github.com/spf13/cobra"
)

func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show today's exchange",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return fail(formatter, err)
			}
			defer s.Close()

			if err := formatter.Success(s.viewOutput()); err != nil {
				return err
			}
			if s.readyErr != nil {
				return fail(formatter, storeFailure("refresh", s.readyErr))
			}
			return nil
		},
	}
}

func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete fragments from previous days",
		Long: `Delete every fragment written before today. Runs at most once per day
per device; "show" and "submit" already do this on the way.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return fail(formatter, err)
			}
			defer s.Close()

			// identity-ready already swept; retry once if the delete failed.
			res := s.engine.LastSweep()
			if errs.IsWrite(s.readyErr) {
				if res, err = s.engine.Cleanup(cmd.Context()); err != nil {
					return fail(formatter, storeFailure("sweep", err))
				}
			}
			return formatter.Success(SweepOutput{Date: clock.Today(s.clock), Skipped: res.Skipped, Deleted: res.Deleted})
		},
	}
}
