package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/manifoldco/promptui"
	"github.com/notebook-ai/cli/internal/conversation"
	"github.com/spf13/cobra"
)

var (
	numQuestions int
	speak        bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the selected document",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		doc, err := selectedDocument(a.store)
		if err != nil {
			return err
		}
		a.conv.Activate(doc)
		a.speech.SetVoiceMode(speak && prepareVoice(cmd, a))

		msg, err := a.conv.Send(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		printAnswer(msg.Text)
		return nil
	}),
}

var taskCmd = &cobra.Command{
	Use:       "task <summarize|generate-questions|extract-keywords>",
	Short:     "Run a task on the selected document",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"summarize", "generate-questions", "extract-keywords"},
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		kind, ok := conversation.ParseKind(args[0])
		if !ok {
			return fmt.Errorf("unknown task %q", args[0])
		}
		doc, err := selectedDocument(a.store)
		if err != nil {
			return err
		}
		a.conv.Activate(doc)
		a.speech.SetVoiceMode(speak && prepareVoice(cmd, a))

		params := conversation.Params{}
		if kind == conversation.KindGenerateQuestions {
			n := numQuestions
			if !cmd.Flags().Changed("count") {
				if n, err = promptCount(); err != nil {
					return err
				}
			}
			params.NumQuestions = n
		}

		msg, err := a.conv.Run(cmd.Context(), kind, params)
		if err != nil {
			return err
		}
		printAnswer(msg.Text)
		return nil
	}),
}

func init() {
	taskCmd.Flags().IntVarP(&numQuestions, "count", "n", conversation.DefaultQuestions, "number of questions for generate-questions")
	askCmd.Flags().BoolVar(&speak, "speak", false, "read the answer aloud")
	taskCmd.Flags().BoolVar(&speak, "speak", false, "read the answer aloud")
	rootCmd.AddCommand(askCmd, taskCmd)
}

func promptCount() (int, error) {
	prompt := promptui.Prompt{
		Label:   fmt.Sprintf("How many questions (1-%d)", conversation.MaxQuestions),
		Default: strconv.Itoa(conversation.DefaultQuestions),
		Validate: func(s string) error {
			if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
				return errors.New("enter a whole number")
			}
			return nil
		},
	}
	value, err := prompt.Run()
	if err != nil {
		return 0, fmt.Errorf("question count: %w", err)
	}
	n, _ := strconv.Atoi(strings.TrimSpace(value))
	return n, nil
}

// prepareVoice loads voices so the preferred one is used. It reports
// whether speech output can be used at all.
func prepareVoice(cmd *cobra.Command, a *app) bool {
	if err := a.speech.LoadVoices(cmd.Context()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Speech output unavailable: %v\n", err)
		return false
	}
	return true
}

func printAnswer(text string) {
	out, err := glamour.Render(text, "dark")
	if err != nil {
		fmt.Println(text)
		return
	}
	fmt.Print(out)
}
