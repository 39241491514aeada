package main

import (
	"github.com/notebook-ai/cli/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive terminal UI",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// runTUI never tees logs to the console: the UI owns the terminal
func runTUI(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	a.log.Info("starting tui", zap.String("backend", a.client.BaseURL()), zap.String("storage", a.cfg.Storage.Driver))
	return tui.Run(cmd.Context(), tui.Deps{
		Store:        a.store,
		Conversation: a.conv,
		Speech:       a.speech,
		Log:          a.log,
	})
}
