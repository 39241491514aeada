package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/notebook-ai/cli/internal/conversation"
)

type dialogKind int

const (
	dialogNone dialogKind = iota
	dialogConfirmDelete
	dialogConfirmClear
	dialogUploadPath
	dialogQuestionCount
	dialogVoices
)

// dialog is the modal shown over the panes. Confirmations answer y/n,
// prompts read a line of text.
type dialog struct {
	kind     dialogKind
	question string
	target   string
	input    textinput.Model
}

func confirmDialog(kind dialogKind, question, target string) dialog {
	return dialog{kind: kind, question: question, target: target}
}

func promptDialog(kind dialogKind, question, value string) dialog {
	input := textinput.New()
	input.Prompt = "> "
	input.SetValue(value)
	input.CursorEnd()
	input.Focus()
	return dialog{kind: kind, question: question, input: input}
}

func (d dialog) isConfirm() bool {
	return d.kind == dialogConfirmDelete || d.kind == dialogConfirmClear
}

func (d dialog) View() string {
	var body string
	if d.isConfirm() {
		body = lipgloss.JoinVertical(lipgloss.Left,
			d.question,
			"",
			helpStyle.Render("y: Yes | n/Esc: No"),
		)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left,
			d.question,
			"",
			d.input.View(),
			"",
			helpStyle.Render("Enter: OK | Esc: Cancel"),
		)
	}
	return dialogStyle.Render(body)
}

// parseCount reads the question count typed into the prompt. Anything that
// is not an integer becomes 0, which the controller rejects.
func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// taskKeys maps chat shortcuts to tasks
var taskKeys = map[string]conversation.Kind{
	"ctrl+s": conversation.KindSummarize,
	"ctrl+g": conversation.KindGenerateQuestions,
	"ctrl+k": conversation.KindExtractKeywords,
}

const chatHelp = "enter: Send | ctrl+s: Summarize | ctrl+g: Questions | ctrl+k: Keywords | ctrl+r: Mic | ctrl+t: Voice | ctrl+o: Voices"
