package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/glamour"
	"github.com/notebook-ai/cli/internal/conversation"
)

// ChatView renders the conversation log and owns the message input
type ChatView struct {
	input    textinput.Model
	renderer *glamour.TermRenderer
	width    int
	height   int
}

func newChatView() ChatView {
	input := textinput.New()
	input.Placeholder = "Ask anything about the document..."
	input.Prompt = "> "
	input.CharLimit = 4000
	return ChatView{input: input}
}

func (cv *ChatView) resize(width, height int) {
	cv.width = width
	cv.height = height
	cv.input.Width = width - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		cv.renderer = r
	}
}

func (cv *ChatView) render(text string) string {
	if cv.renderer == nil {
		return text
	}
	out, err := cv.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// View renders the log bottom-aligned to the pane height
func (cv *ChatView) View(title string, messages []conversation.Message, pending bool, spin, hint string) string {
	var body []string
	for _, msg := range messages {
		switch msg.Sender {
		case conversation.SenderUser:
			body = append(body, userStyle.Render("You"), msg.Text, "")
		default:
			text := cv.render(msg.Text)
			if msg.Failed {
				text = errorStyle.Render(msg.Text)
			}
			body = append(body, botStyle.Render("Assistant"), text, "")
		}
	}
	if pending {
		body = append(body, botStyle.Render("Assistant"), spin+" Thinking...", "")
	}

	lines := strings.Split(strings.Join(body, "\n"), "\n")
	room := cv.height - 5
	if room < 1 {
		room = 1
	}
	if len(lines) > room {
		lines = lines[len(lines)-room:]
	}

	out := []string{titleStyle.Render(title), ""}
	out = append(out, lines...)
	out = append(out, cv.input.View())
	if hint != "" {
		out = append(out, helpStyle.Render(hint))
	}
	return strings.Join(out, "\n")
}
