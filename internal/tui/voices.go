package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/notebook-ai/cli/internal/speech"
)

// VoicesView picks the synthesizer voice
type VoicesView struct {
	voices   []speech.Voice
	selected int
	current  string
	errorMsg string
}

func newVoicesView(bridge *speech.Bridge) VoicesView {
	vv := VoicesView{voices: bridge.Voices()}
	if v, ok := bridge.SelectedVoice(); ok {
		vv.current = v.URI
		for i, voice := range vv.voices {
			if voice.URI == v.URI {
				vv.selected = i
				break
			}
		}
	}
	return vv
}

func (vv *VoicesView) up() {
	if vv.selected > 0 {
		vv.selected--
	}
}

func (vv *VoicesView) down() {
	if vv.selected < len(vv.voices)-1 {
		vv.selected++
	}
}

func (vv *VoicesView) choice() (speech.Voice, bool) {
	if vv.selected < 0 || vv.selected >= len(vv.voices) {
		return speech.Voice{}, false
	}
	return vv.voices[vv.selected], true
}

// View renders the voices view
func (vv VoicesView) View(locale string) string {
	var lines []string

	lines = append(lines, titleStyle.Render("Voices ("+locale+")"))
	lines = append(lines, "")

	if vv.errorMsg != "" {
		lines = append(lines, errorStyle.Render("Error: "+vv.errorMsg))
		lines = append(lines, "")
	}

	if len(vv.voices) == 0 {
		lines = append(lines, "No voices found. Check the speech.synthesizer_cmd setting.")
	} else {
		for i, voice := range vv.voices {
			style := lipgloss.NewStyle()
			if voice.URI == vv.current {
				style = activeStyle
			}
			if i == vv.selected {
				style = selectedStyle
			}
			lines = append(lines, style.Render(voice.String()))
		}
	}

	lines = append(lines, "")
	lines = append(lines, helpStyle.Render("j/k: Navigate | Enter/Space: Select | r: Reload | Esc: Close"))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
