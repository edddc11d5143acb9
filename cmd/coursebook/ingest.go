package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appconfig "frameworks/coursebook/internal/config"
)

func newIngestCmd() *cobra.Command {
	var (
		dir           string
		file          string
		clearExisting bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load course documents from a folder into the index",
		Long:  "Parse every .txt and .md course document in a folder and add courses that are not indexed yet. Use --clear to rebuild the index from scratch, or --file to index one document regardless of what is already loaded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := appconfig.LoadConfig()
			if dir == "" {
				dir = cfg.DocsDir
			}
			if cfg.DatabaseURL == "" {
				logger.Warn("DATABASE_URL not set - ingested courses will not persist")
			}

			a, err := buildApp(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if file != "" {
				course, chunks, err := a.service.AddCourseDocument(cmd.Context(), file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %q with %d chunks from %s\n", course.Title, chunks, file)
				return nil
			}

			courses, chunks, err := a.service.AddCourseFolder(cmd.Context(), dir, clearExisting)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d courses with %d chunks from %s\n", courses, chunks, dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "folder of course documents (default DOCS_DIR)")
	cmd.Flags().StringVar(&file, "file", "", "index a single course document instead of a folder")
	cmd.Flags().BoolVar(&clearExisting, "clear", false, "remove all indexed courses before loading")
	cmd.MarkFlagsMutuallyExclusive("file", "dir")
	cmd.MarkFlagsMutuallyExclusive("file", "clear")
	return cmd
}
