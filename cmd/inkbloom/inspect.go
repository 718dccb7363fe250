package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abdulachik/inkbloom/internal/assembler"
	"github.com/abdulachik/inkbloom/internal/epub"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <book.epub>",
	Short: "Preview which chapters would be illustrated",
	Long:  `List every package item with its kind, cleaned text length and filter decision. No service is called.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	book, err := epub.Open(args[0])
	if err != nil {
		return fmt.Errorf("open book: %w", err)
	}

	entries, err := assembler.Preview(book)
	if err != nil {
		return fmt.Errorf("preview book: %w", err)
	}

	fmt.Printf("%s by %s (%d items)\n\n", book.Metadata.Title(), book.Metadata.PrimaryAuthor(), len(book.Items))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHREF\tKIND\tLENGTH\tDECISION\tSEQ")
	planned := 0
	for _, e := range entries {
		length, seq := "-", "-"
		if e.Kind == epub.KindChapter {
			length = fmt.Sprint(e.TextLength)
		}
		if e.Sequence >= 0 {
			seq = fmt.Sprint(e.Sequence)
			planned++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Href, e.Kind, length, e.Decision, seq)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d chapters would be illustrated\n", planned)
	return nil
}
