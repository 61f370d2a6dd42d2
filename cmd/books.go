package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/lehigh-university-libraries/wagner/internal/models"
	"github.com/spf13/cobra"
)

func newBooksCmd() *cobra.Command {
	var create string
	var author string

	cmd := &cobra.Command{
		Use:   "books",
		Short: "List books or create a new one",
		Example: `  # List books
  wagner books

  # Create a book
  wagner books --create "Mein Leben" --author "Richard Wagner"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStore()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if create != "" {
				book := &models.Book{Title: create, Author: author}
				if err := a.store.CreateBook(cmd.Context(), book); err != nil {
					return err
				}
				fmt.Fprintf(out, "Created book %d: %s\n", book.ID, book.Title)
				return nil
			}

			books, err := a.store.ListBooks(cmd.Context())
			if err != nil {
				return err
			}
			if len(books) == 0 {
				fmt.Fprintln(out, "No books yet")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tPAGES\tPUBLISHED")
			for _, b := range books {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%t\n", b.ID, b.Title, b.Author, b.PageCount, b.Published)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&create, "create", "", "Create a book with this title")
	cmd.Flags().StringVar(&author, "author", "", "Author of the created book")

	return cmd
}
