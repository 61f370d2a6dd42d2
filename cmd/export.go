package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/lehigh-university-libraries/wagner/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var bookID int64
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a book with its translations",
		Long: `Export writes a book and its pages to a file.

Formats:
  yaml     one document with the book and every page
  jsonl    one aligned sentence per line
  parquet  one aligned sentence per row`,
		Example: `  # Export book 1 as YAML
  wagner export --book 1 --output exports/book1.yaml

  # Export sentence pairs as parquet
  wagner export --book 1 --format parquet --output exports/book1.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bookID <= 0 {
				return fmt.Errorf("--book is required")
			}

			if format == "" {
				format = filepath.Ext(output)
			}
			if format == "" {
				format = string(export.FormatYAML)
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("book-%d.%s", bookID, f)
			}

			a, err := openStore()
			if err != nil {
				return err
			}
			defer a.Close()

			book, err := a.store.GetBook(cmd.Context(), bookID)
			if err != nil {
				return err
			}
			pages, err := a.store.ListPages(cmd.Context(), bookID)
			if err != nil {
				return err
			}

			if err := export.WriteFile(output, f, book, pages); err != nil {
				return err
			}

			absPath, _ := filepath.Abs(output)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d pages of %q to %s\n", len(pages), book.Title, absPath)
			return nil
		},
	}

	cmd.Flags().Int64Var(&bookID, "book", 0, "ID of the book to export (required)")
	cmd.Flags().StringVar(&format, "format", "", "Export format: yaml, jsonl or parquet (defaults to the output extension)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to book-<id>.<format>)")

	return cmd
}
