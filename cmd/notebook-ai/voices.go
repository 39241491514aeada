package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var setVoice string

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List speech voices or set the preferred one",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if err := a.speech.LoadVoices(cmd.Context()); err != nil {
			return err
		}

		if setVoice != "" {
			if err := a.speech.SelectVoice(setVoice); err != nil {
				return err
			}
			fmt.Printf("Voice set to %s\n", setVoice)
			return nil
		}

		current, _ := a.speech.SelectedVoice()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tURI\tNAME\tLANG")
		for _, v := range a.speech.Voices() {
			marker := ""
			if v.URI == current.URI {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, v.URI, v.Name, v.Lang)
		}
		return w.Flush()
	}),
}

func init() {
	voicesCmd.Flags().StringVar(&setVoice, "set", "", "voice URI to use for speech output")
	rootCmd.AddCommand(voicesCmd)
}
