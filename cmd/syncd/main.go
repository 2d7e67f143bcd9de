// Command syncd is the daemon's single entry point (spec.md §6): it
// dispatches on the first positional argument to one of sync:run,
// sync:daemon, auth:telegram, health:check, or cookies:check.
//
// Grounded on the teacher's cobra usage pattern (see
// other_examples/a8036adc_tim-coutinho-agentops__cli-cmd-ao-rpi_loop.go.go
// for the reference shape this repo's complete example repos don't
// otherwise exercise): a root command with subcommands registered via
// AddCommand, package-level flag variables bound in init().
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// time/tzdata embeds the IANA timezone database so TZ values like
	// "Asia/Shanghai" (spec.md §6 default) resolve even on minimal
	// container base images that ship without /usr/share/zoneinfo.
	_ "time/tzdata"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

// exitCode lets a subcommand signal a non-zero exit without cobra treating
// it as an error (cookies:check prints its report and exits 1 when the
// session is not logged in, without an error message). Subcommands that
// also return an error, such as a failing health:check, have that error
// printed as well.
var exitCode int

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "syncd",
		Short:         "Archive media-bearing posts from source accounts to a sink channel",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newSyncRunCommand(),
		newSyncDaemonCommand(),
		newAuthTelegramCommand(),
		newHealthCheckCommand(),
		newCookiesCheckCommand(),
	)

	defaultArgs(root)
	return root
}

// defaultArgs implements the APP_MODE auxiliary launcher from spec.md §6:
// with no positional argument, APP_MODE=daemon selects sync:daemon,
// otherwise sync:run.
func defaultArgs(root *cobra.Command) {
	if len(os.Args) > 1 {
		return
	}
	if os.Getenv("APP_MODE") == "daemon" {
		os.Args = append(os.Args, "sync:daemon")
		return
	}
	os.Args = append(os.Args, "sync:run")
}
