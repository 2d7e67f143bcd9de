package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newAuthTelegramCommand is the interactive sink-platform credential
// bootstrap. Its concrete flow is out of scope (spec.md §1, §6): this stub
// only documents the expected outcome (a SINK_STRING_SESSION value to put
// in the environment) so the command exists and fails loudly rather than
// silently, rather than being omitted from the CLI surface entirely.
func newAuthTelegramCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "auth:telegram",
		Short: "Interactively bootstrap sink-platform credentials (out of scope)",
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = 1
			return fmt.Errorf("auth:telegram is not implemented; obtain SINK_STRING_SESSION out of band and set it in the environment")
		},
	}
}
