package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"massupload/internal/upload"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the upload types and their columns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tNAME\tREQUIRED\tOPTIONAL")
			for _, cfg := range rt.uploads.Types() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cfg.Type(), cfg.Name(),
					columnList(cfg.Required()), columnList(cfg.Optional()))
			}
			return tw.Flush()
		},
	}
}

func columnList(cols []upload.ColumnSpec) string {
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, fmt.Sprintf("%s(%s)", c.Name, c.Type))
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
