package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"fragmentone/pkg/logger"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Server   string
	StateDir string
	TZ       string
}

var ValidFormats = []string{"text", "json"}

const defaultServer = "http://localhost:8080"

// The logger is process-global; the first command to run configures it.
var initLogging sync.Once

// NewRootCommand creates the root command for the fragment CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fragment",
		Short: "Fragment One - one fragment a day, exchanged with a stranger",
		Long: `Share one short fragment of text per day and receive one written by
somebody else on the same day. Fragments disappear the day after.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				err := NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			initLogging.Do(func() { logger.InitConsole(opts.Verbose) })

			fc, err := loadFileConfig(opts.StateDir)
			if err != nil {
				err = WrapExitError(ExitCommandError, "read config", err)
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			applyFileConfig(cmd, opts, fc)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("FRAGMENT_SERVER", defaultServer), "fragment server base URL")
	cmd.PersistentFlags().StringVar(&opts.StateDir, "state-dir", envOr("FRAGMENT_STATE_DIR", defaultStateDir()), "directory holding this device's cache")
	cmd.PersistentFlags().StringVar(&opts.TZ, "tz", envOr("FRAGMENT_TZ", "Local"), "time zone that decides when a day starts")

	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".fragment"
	}
	return filepath.Join(dir, "fragmentone")
}
