package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"massupload/internal/upload"
)

func newTemplateCmd() *cobra.Command {
	var typ, out string

	cmd := &cobra.Command{
		Use:   "template --type <type> [--out <file.xlsx>]",
		Short: "Write a blank workbook with the headers of an upload type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(typ) == "" {
				return errors.New("--type is required")
			}
			if out == "" {
				out = typ + "_template.xlsx"
			}

			rt, err := openRuntime(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := rt.uploads.Template(upload.UploadType(typ), f); err != nil {
				f.Close()
				os.Remove(out)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "upload type")
	cmd.Flags().StringVar(&out, "out", "", "output file (default <type>_template.xlsx)")
	return cmd
}
