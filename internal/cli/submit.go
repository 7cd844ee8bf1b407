package cli

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"fragmentone/internal/exchange"
	"fragmentone/internal/fragment/model"

	"github.com/spf13/cobra"
)

func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <text>",
		Short: "Share today's fragment and receive one from somebody else",
		Long: `Share today's fragment. Arguments are joined with spaces.

Each visitor may share one fragment per day. Once shared, a fragment
written by somebody else today is shown in return; when nobody else has
written yet, a placeholder is shown until "show" or "watch" finds one.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(rootOpts, strings.Join(args, " "), cmd)
		},
	}
}

func runSubmit(opts *RootOptions, text string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	text = strings.TrimSpace(text)
	if text == "" {
		return fail(formatter, NewExitError(ExitCommandError, "fragment text is empty"))
	}
	if n := utf8.RuneCountInString(text); n > model.MaxTextLength {
		return fail(formatter, NewExitError(ExitCommandError,
			fmt.Sprintf("fragment is %d characters, the limit is %d", n, model.MaxTextLength)))
	}

	s, err := openSession(cmd.Context(), opts)
	if err != nil {
		return fail(formatter, err)
	}
	defer s.Close()
	if s.readyErr != nil {
		formatter.VerboseLog("Loading today's state: %v", s.readyErr)
	}

	_, err = s.engine.Submit(cmd.Context(), text)
	switch {
	case errors.Is(err, exchange.ErrAlreadySubmitted):
		formatter.Success(s.viewOutput())
		return fail(formatter, WrapExitError(ExitFailure, "you already shared a fragment today", err))
	case err != nil:
		return fail(formatter, storeFailure("submit", err))
	}
	return formatter.Success(s.viewOutput())
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func fail(f *OutputFormatter, err error) error {
	f.Error(err)
	return err
}
