package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/notebook-ai/cli/internal/documents"
	"github.com/notebook-ai/cli/internal/session"
	"github.com/spf13/cobra"
)

var assumeYes bool

var docsCmd = &cobra.Command{
	Use:     "docs",
	Aliases: []string{"ls"},
	Short:   "List uploaded documents",
	Args:    cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		docs := a.store.Documents()
		if len(docs) == 0 {
			fmt.Println("No documents. Upload one with `notebook-ai upload <file>`.")
			return nil
		}

		selectedID := ""
		if sel, ok := a.store.Selected(); ok {
			selectedID = sel.ID
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tFILENAME")
		for _, doc := range docs {
			marker := ""
			if doc.ID == selectedID {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", marker, doc.ID, doc.Filename)
		}
		return w.Flush()
	}),
}

var selectCmd = &cobra.Command{
	Use:   "select <id|filename>",
	Short: "Select the document questions are asked about",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		doc, err := resolveDocument(a.store, args[0])
		if err != nil {
			return err
		}
		if err := a.store.SelectDocument(doc); err != nil {
			return err
		}
		fmt.Printf("Selected %q\n", doc.Filename)
		return nil
	}),
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id|filename>",
	Aliases: []string{"rm"},
	Short:   "Delete a document from the backend",
	Args:    cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		doc, err := resolveDocument(a.store, args[0])
		if err != nil {
			return err
		}
		if !confirm(fmt.Sprintf("Delete %q", doc.Filename)) {
			fmt.Println("Cancelled.")
			return nil
		}
		if err := a.store.DeleteDocument(cmd.Context(), doc.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted %q\n", doc.Filename)
		if sel, ok := a.store.Selected(); ok {
			fmt.Printf("Selected %q\n", sel.Filename)
		}
		return nil
	}),
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every document from the backend",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if !confirm("Delete ALL documents? This cannot be undone") {
			fmt.Println("Cancelled.")
			return nil
		}
		result, err := a.store.ClearAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %d documents (%d files removed)\n", result.DeletedCollections, result.DeletedFiles)
		return nil
	}),
}

func init() {
	deleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	clearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(docsCmd, selectCmd, deleteCmd, clearCmd)
}

// confirm asks a yes/no question unless --yes was given
func confirm(label string) bool {
	if assumeYes {
		return true
	}
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}

// resolveDocument finds a document by ID, then by exact filename
func resolveDocument(store *session.Store, arg string) (documents.Document, error) {
	docs := store.Documents()
	if i := documents.IndexOf(docs, arg); i >= 0 {
		return docs[i], nil
	}

	var matches []documents.Document
	for _, doc := range docs {
		if strings.EqualFold(doc.Filename, arg) {
			matches = append(matches, doc)
		}
	}
	switch len(matches) {
	case 0:
		return documents.Document{}, fmt.Errorf("no document %q: %w", arg, session.ErrUnknownDocument)
	case 1:
		return matches[0], nil
	default:
		return documents.Document{}, errors.New("several documents are named " + arg + "; use the ID")
	}
}

// selectedDocument returns the selection or explains how to make one
func selectedDocument(store *session.Store) (documents.Document, error) {
	doc, ok := store.Selected()
	if !ok {
		return documents.Document{}, errors.New("no document selected; run `notebook-ai select <id>` first")
	}
	return doc, nil
}
