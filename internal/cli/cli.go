// Package cli wires the agent's subcommands and maps client errors to
// process exit codes.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/serverpulse/agent/internal/client"
)

// Execute runs the root command and exits with a code derived from the
// failure kind.
func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agent",
		Short:         "ServerPulse host monitoring agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		runCmd(),
		loginCmd(),
		checkConfigCmd(),
		versionCmd(),
	)

	root.CompletionOptions.HiddenDefaultCmd = true
	return root
}

// exitCode maps a failure to a sysexits-style code so supervisors can
// distinguish config mistakes from transport trouble.
func exitCode(err error) int {
	var cerr *client.ClientError
	if !errors.As(err, &cerr) {
		return 1
	}

	switch cerr.Kind() {
	case client.KindConfiguration:
		return 78 // EX_CONFIG
	case client.KindYaml:
		return 65 // EX_DATAERR
	case client.KindIO:
		return 74 // EX_IOERR
	case client.KindWebserver, client.KindWebsocket:
		return 69 // EX_UNAVAILABLE
	case client.KindToken:
		return 77 // EX_NOPERM
	case client.KindTask:
		return 70 // EX_SOFTWARE
	default:
		return 1
	}
}
