package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/notebook-ai/cli/internal/documents"
)

// DocumentsView renders the document list with a cursor
type DocumentsView struct {
	cursor int
	width  int
	height int
}

func (dv *DocumentsView) clamp(n int) {
	if dv.cursor >= n {
		dv.cursor = n - 1
	}
	if dv.cursor < 0 {
		dv.cursor = 0
	}
}

func (dv *DocumentsView) moveUp() {
	if dv.cursor > 0 {
		dv.cursor--
	}
}

func (dv *DocumentsView) moveDown(n int) {
	if dv.cursor < n-1 {
		dv.cursor++
	}
}

// focus puts the cursor on id
func (dv *DocumentsView) focus(docs []documents.Document, id string) {
	if i := documents.IndexOf(docs, id); i >= 0 {
		dv.cursor = i
	}
}

// current returns the document under the cursor
func (dv *DocumentsView) current(docs []documents.Document) (documents.Document, bool) {
	if dv.cursor < 0 || dv.cursor >= len(docs) {
		return documents.Document{}, false
	}
	return docs[dv.cursor], true
}

// View renders docs. selectedID is the active document; spin is drawn next
// to documents that are still processing.
func (dv *DocumentsView) View(docs []documents.Document, selectedID string, processing func(string) bool, spin string) string {
	lines := []string{titleStyle.Render("Documents"), ""}

	if len(docs) == 0 {
		lines = append(lines, helpStyle.Render("No documents yet. Press u to upload."))
	}

	for i, doc := range docs {
		marker := "  "
		if doc.ID == selectedID {
			marker = "● "
		}
		name := truncate(doc.Filename, dv.width-4)

		style := lipgloss.NewStyle()
		if doc.ID == selectedID {
			style = activeStyle
		}
		if i == dv.cursor {
			style = selectedStyle
		}

		line := style.Render(marker + name)
		if processing(doc.ID) {
			line += " " + spin
		}
		lines = append(lines, line)
	}

	lines = append(lines, "", helpStyle.Render("enter: Select | u: Upload | d: Delete | C: Clear all"))
	return strings.Join(lines, "\n")
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-1 {
		r = r[:width-1]
	}
	return fmt.Sprintf("%s…", string(r))
}
