package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBooksAndExport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WAGNER_CONFIG", "")
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "wagner.db"))

	out, err := runRoot(t, "books", "--create", "Mein Leben", "--author", "Richard Wagner")
	if err != nil {
		t.Fatalf("books --create failed: %v", err)
	}
	if !strings.Contains(out, "Created book 1: Mein Leben") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = runRoot(t, "books")
	if err != nil {
		t.Fatalf("books failed: %v", err)
	}
	if !strings.Contains(out, "Mein Leben") || !strings.Contains(out, "Richard Wagner") {
		t.Errorf("book missing from listing: %s", out)
	}

	output := filepath.Join(dir, "exports", "book.jsonl")
	if _, err := runRoot(t, "export", "--book", "1", "--output", output); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("export file not written: %v", err)
	}

	if _, err := runRoot(t, "export", "--book", "9", "--output", output); err == nil {
		t.Error("expected error exporting a missing book")
	}
}

func TestIngestRequiresBook(t *testing.T) {
	if _, err := runRoot(t, "ingest", "scan.png"); err == nil {
		t.Error("expected error without --book or --title")
	}
}

func TestCollectImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002.png", "001.JPG", "notes.txt", "003.tiff"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	single := filepath.Join(dir, "notes.txt")

	paths, err := collectImages([]string{single, dir})
	if err != nil {
		t.Fatalf("collectImages failed: %v", err)
	}

	expected := []string{
		single,
		filepath.Join(dir, "001.JPG"),
		filepath.Join(dir, "002.png"),
		filepath.Join(dir, "003.tiff"),
	}
	if len(paths) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, paths)
	}
	for i := range expected {
		if paths[i] != expected[i] {
			t.Errorf("paths[%d] = %s, want %s", i, paths[i], expected[i])
		}
	}

	if _, err := collectImages([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for missing path")
	}
}
