package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"massupload/internal/exporter"
)

func newHistoryCmd() *cobra.Command {
	var (
		user  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history --user <id>",
		Short: "Print a user's recent uploads as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(user) == "" {
				return errors.New("--user is required")
			}
			rt, err := openRuntime(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := rt.uploads.History(cmd.Context(), user, limit)
			if err != nil {
				return err
			}
			return exporter.WriteCSV(cmd.OutOrStdout(), exporter.WriteOptions{
				Headers: exporter.HistoryHeaders,
				Records: exporter.HistoryRecords(entries),
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user whose uploads are listed")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of uploads, 0 uses the configured default")
	return cmd
}
