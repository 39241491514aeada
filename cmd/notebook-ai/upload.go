package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/notebook-ai/cli/internal/gateway"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var waitProcessed bool

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a document and select it",
	Long: `Upload a .pdf, .doc, .docx or .txt file. The uploaded document becomes
the selected document. The backend needs a few seconds to index it;
pass --wait to block until then.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		path := args[0]

		var bar *progressbar.ProgressBar
		onProgress := func(p gateway.Progress) {
			if bar == nil {
				bar = progressbar.NewOptions64(p.Total,
					progressbar.OptionSetDescription("Uploading "+filepath.Base(path)),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowBytes(true),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set64(p.Loaded)
		}

		doc, ticket, err := a.store.Upload(cmd.Context(), path, onProgress)
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return err
		}

		fmt.Printf("Uploaded %q (id %s)\n", doc.Filename, doc.ID)
		if !waitProcessed {
			return nil
		}

		fmt.Println("Processing...")
		select {
		case <-time.After(ticket.Grace):
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}
		if a.store.ProcessingDone(ticket) {
			fmt.Printf("Document %q has been processed!\n", doc.Filename)
		}
		return nil
	}),
}

func init() {
	uploadCmd.Flags().BoolVar(&waitProcessed, "wait", false, "wait for the processing period to end")
	rootCmd.AddCommand(uploadCmd)
}
