package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	appconfig "frameworks/coursebook/internal/config"
)

func newAskCmd() *cobra.Command {
	var (
		sessionID string
		dir       string
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := appconfig.LoadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := buildApp(cmd.Context(), cfg, logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if dir != "" {
				if _, _, err := a.service.AddCourseFolder(cmd.Context(), dir, false); err != nil {
					return err
				}
			}

			answer, sources, err := a.service.Query(cmd.Context(), strings.Join(args, " "), sessionID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer)
			if len(sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, s := range sources {
					if s.Link != "" {
						fmt.Fprintf(out, "  - %s (%s)\n", s.Text, s.Link)
					} else {
						fmt.Fprintf(out, "  - %s\n", s.Text)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to continue (needs REDIS_ADDRS to outlive the process)")
	cmd.Flags().StringVar(&dir, "dir", "", "load course documents from this folder first")
	return cmd
}
