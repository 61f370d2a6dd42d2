package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lehigh-university-libraries/wagner/internal/images"
	"github.com/lehigh-university-libraries/wagner/internal/models"
	"github.com/lehigh-university-libraries/wagner/internal/pipeline"
	"github.com/spf13/cobra"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

func newIngestCmd() *cobra.Command {
	var bookID int64
	var title string
	var author string

	cmd := &cobra.Command{
		Use:   "ingest [images or directories...]",
		Short: "OCR and translate page scans into a book",
		Long: `Ingest runs OCR on a batch of page scans and appends them to a book in order.

Scans are read in the order given; directories are expanded to their image files
sorted by name, and http(s) URLs are downloaded. Each page is merged with the end of the page before it, starting
from the book's current last page.`,
		Example: `  # Append scans to book 1
  wagner ingest --book 1 scans/001.png scans/002.png

  # Create a new book from a directory of scans
  wagner ingest --title "Oper und Drama" --author "Richard Wagner" scans/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if bookID == 0 && title == "" {
				return fmt.Errorf("either --book or --title is required")
			}

			paths, err := collectImages(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no images found")
			}

			// the CLI runs on the operator's machine, so local hosts are reachable
			fetcher := images.NewFetcher(0, true)
			files := make([]pipeline.PageFile, 0, len(paths))
			for _, path := range paths {
				if images.IsURL(path) {
					img, err := fetcher.Fetch(cmd.Context(), path)
					if err != nil {
						return err
					}
					files = append(files, pipeline.PageFile{Name: img.Filename, Data: img.Data})
					continue
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				files = append(files, pipeline.PageFile{Name: filepath.Base(path), Data: data})
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if bookID == 0 {
				book := &models.Book{Title: title, Author: author}
				if err := a.store.CreateBook(cmd.Context(), book); err != nil {
					return err
				}
				bookID = book.ID
				fmt.Fprintf(cmd.OutOrStdout(), "Created book %d: %s\n", book.ID, book.Title)
			}

			pages, err := a.pipeline.IngestBook(cmd.Context(), bookID, files)
			for _, p := range pages {
				fmt.Fprintf(cmd.OutOrStdout(), "  page %d  %-8s %d sentences\n", p.PageNumber, p.PageType, len(p.Sentences))
			}
			if err != nil {
				return fmt.Errorf("ingest stopped after %d of %d pages: %w", len(pages), len(files), err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d pages into book %d\n", len(pages), bookID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&bookID, "book", 0, "ID of the book to append to")
	cmd.Flags().StringVar(&title, "title", "", "Create a new book with this title")
	cmd.Flags().StringVar(&author, "author", "", "Author of the new book")

	return cmd
}

// collectImages expands directories into their image files, sorted by name.
// URLs are passed through unchanged.
func collectImages(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if images.IsURL(arg) {
			paths = append(paths, arg)
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		var dirImages []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
				dirImages = append(dirImages, filepath.Join(arg, entry.Name()))
			}
		}
		slices.Sort(dirImages)
		paths = append(paths, dirImages...)
	}
	return paths, nil
}
