package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"archivesyncd/internal/config"
	"archivesyncd/internal/logging"
	"archivesyncd/internal/source"
)

func newCookiesCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cookies:check",
		Short: "Parse SOURCE_COOKIES_JSON and probe a logged-in session, printing a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				exitCode = 1
				return err
			}

			bundle, err := source.ParseCookieBundle(cfg.SourceCookiesJSON)
			if err != nil {
				exitCode = 1
				return fmt.Errorf("cookie bundle is malformed: %w", err)
			}
			fmt.Printf("parsed %d cookie entries (%d domain rewrites)\n", len(bundle.Entries), bundle.DomainRewrites)

			logger := logging.New(os.Stderr, "info")
			adapter, err := source.NewAdapter(cfg.SourceCookiesJSON, cfg.SourceWebBearer, logger)
			if err != nil {
				exitCode = 1
				return fmt.Errorf("cookie bundle is unusable: %w", err)
			}

			status := adapter.CheckSession(context.Background())
			if !status.LoggedIn {
				exitCode = 1
				fmt.Printf("not logged in: %s\n", status.Reason)
				return nil
			}
			fmt.Printf("logged in via %s\n", status.Host)
			return nil
		},
	}
}
