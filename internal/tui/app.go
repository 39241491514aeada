package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/notebook-ai/cli/internal/conversation"
	"github.com/notebook-ai/cli/internal/documents"
	"github.com/notebook-ai/cli/internal/gateway"
	"github.com/notebook-ai/cli/internal/session"
	"github.com/notebook-ai/cli/internal/speech"
	"go.uber.org/zap"
)

// Deps are the collaborators the TUI drives
type Deps struct {
	Store        *session.Store
	Conversation *conversation.Controller
	Speech       *speech.Bridge
	Log          *zap.Logger
}

type focus int

const (
	focusDocuments focus = iota
	focusChat
)

// Model is the bubbletea model. Commands only talk to the backend; the
// results come back as messages and Update applies them to the session
// store and the conversation controller, one event at a time.
type Model struct {
	ctx    context.Context
	store  *session.Store
	conv   *conversation.Controller
	speech *speech.Bridge
	log    *zap.Logger

	docs    DocumentsView
	chat    ChatView
	voices  VoicesView
	spinner spinner.Model
	dialog  dialog

	focus  focus
	width  int
	height int

	uploading  bool
	uploadName string
	upload     gateway.Progress
	uploadCh   chan tea.Msg

	listening  *speech.Listening
	transcript speech.Transcript

	spinning  bool
	status    string
	statusErr bool
	statusSeq int
}

// NewModel builds the model and activates the persisted selection
func NewModel(ctx context.Context, deps Deps) Model {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := Model{
		ctx:     ctx,
		store:   deps.Store,
		conv:    deps.Conversation,
		speech:  deps.Speech,
		log:     log.Named("tui"),
		chat:    newChatView(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	if sel, ok := m.store.Selected(); ok {
		m.docs.focus(m.store.Documents(), sel.ID)
		m.setFocus(focusChat)
	}
	m.syncConversation()
	return m
}

// Run starts the program and blocks until the user quits
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(NewModel(ctx, deps), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.speech.CanSynthesize() {
		cmds = append(cmds, loadVoices(m.ctx, m.speech))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		docsWidth := m.width * 30 / 100
		chatWidth := m.width - docsWidth - 4 // borders
		paneHeight := m.height - 4           // top bar + bottom bar
		m.docs.width = docsWidth
		m.docs.height = paneHeight
		m.chat.resize(chatWidth, paneHeight)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.stopListening()
			m.speech.Cancel()
			return m, tea.Quit
		}
		if m.dialog.kind != dialogNone {
			return m.updateDialog(msg)
		}
		if m.focus == focusChat {
			return m.updateChat(msg)
		}
		return m.updateDocuments(msg)

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case uploadProgressMsg:
		m.upload = msg.progress
		return m, waitFor(m.uploadCh)

	case uploadDoneMsg:
		m.uploading = false
		m.uploadCh = nil
		if msg.err != nil {
			cmd := m.setStatus(describe("Upload failed", msg.err), true)
			return m, cmd
		}
		ticket := m.store.AddDocument(msg.doc)
		m.docs.focus(m.store.Documents(), msg.doc.ID)
		m.syncConversation()
		m.setFocus(focusChat)
		cmd := tea.Batch(
			waitProcessing(ticket),
			m.spin(),
			m.setStatus(fmt.Sprintf("Uploaded %q. Processing...", msg.doc.Filename), false),
		)
		return m, cmd

	case processingDoneMsg:
		if m.store.ProcessingDone(msg.ticket) {
			cmd := m.setStatus(fmt.Sprintf("Document %q has been processed!", msg.ticket.Filename), false)
			return m, cmd
		}
		return m, nil

	case deleteDoneMsg:
		if msg.err != nil {
			cmd := m.setStatus(describe("Delete failed", msg.err), true)
			return m, cmd
		}
		m.store.RemoveDocument(msg.id)
		m.docs.clamp(len(m.store.Documents()))
		m.syncConversation()
		cmd := m.setStatus("Document deleted.", false)
		return m, cmd

	case clearDoneMsg:
		if msg.err != nil {
			cmd := m.setStatus(describe("Clear all failed", msg.err), true)
			return m, cmd
		}
		m.store.Reset()
		m.docs.cursor = 0
		m.syncConversation()
		m.setFocus(focusDocuments)
		cmd := m.setStatus(fmt.Sprintf("Cleared %d documents.", msg.result.DeletedCollections), false)
		return m, cmd

	case responseMsg:
		if !m.conv.Complete(msg.result) {
			return m, nil
		}
		if msg.result.Err != nil {
			cmd := m.setStatus(describe(msg.result.Request.Kind.Label()+" failed", msg.result.Err), true)
			return m, cmd
		}
		return m, nil

	case voicesLoadedMsg:
		if msg.err != nil {
			m.log.Warn("voices unavailable", zap.Error(msg.err))
		}
		if m.dialog.kind == dialogVoices {
			m.voices = newVoicesView(m.speech)
			if msg.err != nil {
				m.voices.errorMsg = msg.err.Error()
			}
		}
		return m, nil

	case listeningMsg:
		if msg.err != nil {
			if errors.Is(msg.err, speech.ErrUnavailable) {
				cmd := m.setStatus("Speech input is not available on this system.", true)
				return m, cmd
			}
			cmd := m.setStatus("Speech recognition failed to start.", true)
			return m, cmd
		}
		m.listening = msg.listening
		m.transcript.Reset()
		m.chat.input.Reset()
		return m, waitTranscript(m.listening)

	case transcriptMsg:
		if m.listening == nil {
			return m, nil
		}
		if msg.event.Err != nil {
			m.stopListening()
			cmd := m.setStatus("Speech recognition error. Please try again.", true)
			return m, cmd
		}
		m.chat.input.SetValue(m.transcript.Apply(msg.event))
		m.chat.input.CursorEnd()
		return m, waitTranscript(m.listening)

	case listenEndedMsg:
		m.listening = nil
		return m, nil

	case statusClearMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
			m.statusErr = false
		}
		return m, nil
	}

	if m.focus == focusChat {
		var cmd tea.Cmd
		m.chat.input, cmd = m.chat.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateDocuments(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	docs := m.store.Documents()

	switch msg.String() {
	case "q":
		m.stopListening()
		m.speech.Cancel()
		return m, tea.Quit
	case "k", "up":
		m.docs.moveUp()
	case "j", "down":
		m.docs.moveDown(len(docs))
	case "enter", " ":
		doc, ok := m.docs.current(docs)
		if !ok {
			return m, nil
		}
		if err := m.store.SelectDocument(doc); err != nil {
			cmd := m.setStatus(err.Error(), true)
			return m, cmd
		}
		m.syncConversation()
		m.setFocus(focusChat)
	case "tab":
		if _, ok := m.conv.Active(); ok {
			m.setFocus(focusChat)
		}
	case "u":
		if m.uploading {
			cmd := m.setStatus("An upload is already running.", true)
			return m, cmd
		}
		m.dialog = promptDialog(dialogUploadPath,
			fmt.Sprintf("Path of the document to upload (%s):", strings.Join(documents.AcceptedExtensions, ", ")), "")
	case "d":
		doc, ok := m.docs.current(docs)
		if !ok {
			return m, nil
		}
		if m.store.IsProcessing(doc.ID) {
			cmd := m.setStatus(fmt.Sprintf("%q is still processing.", doc.Filename), true)
			return m, cmd
		}
		m.dialog = confirmDialog(dialogConfirmDelete, fmt.Sprintf("Delete %q?", doc.Filename), doc.ID)
	case "C":
		if len(docs) == 0 {
			return m, nil
		}
		m.dialog = confirmDialog(dialogConfirmClear, "Delete ALL documents? This cannot be undone.", "")
	}
	return m, nil
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if kind, ok := taskKeys[key]; ok {
		if m.conv.State() == conversation.Pending {
			return m, nil
		}
		if kind == conversation.KindGenerateQuestions {
			m.dialog = promptDialog(dialogQuestionCount,
				fmt.Sprintf("How many questions (1-%d)?", conversation.MaxQuestions),
				fmt.Sprint(conversation.DefaultQuestions))
			return m, nil
		}
		return m.runTask(kind, conversation.Params{})
	}

	switch key {
	case "tab", "esc":
		m.setFocus(focusDocuments)
		return m, nil
	case "enter":
		text := m.chat.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.stopListening()
		req, err := m.conv.SendMessage(text)
		if err != nil {
			cmd := m.dispatchError(err)
			return m, cmd
		}
		m.chat.input.Reset()
		cmd := tea.Batch(execute(m.ctx, m.conv, req), m.spin())
		return m, cmd
	case "ctrl+r":
		if m.listening != nil {
			m.stopListening()
			return m, nil
		}
		if !m.speech.CanRecognize() {
			cmd := m.setStatus("Speech input is not available on this system.", true)
			return m, cmd
		}
		return m, startListening(m.ctx, m.speech)
	case "ctrl+t":
		if !m.speech.CanSynthesize() {
			cmd := m.setStatus("Speech output is not available on this system.", true)
			return m, cmd
		}
		m.speech.SetVoiceMode(!m.speech.VoiceMode())
		if m.speech.VoiceMode() {
			cmd := m.setStatus("Voice mode on.", false)
			return m, cmd
		}
		cmd := m.setStatus("Voice mode off.", false)
		return m, cmd
	case "ctrl+o":
		if !m.speech.CanSynthesize() {
			cmd := m.setStatus("Speech output is not available on this system.", true)
			return m, cmd
		}
		m.voices = newVoicesView(m.speech)
		m.dialog = dialog{kind: dialogVoices}
		return m, nil
	}

	var cmd tea.Cmd
	m.chat.input, cmd = m.chat.input.Update(msg)
	return m, cmd
}

func (m Model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.dialog

	if d.kind == dialogVoices {
		switch msg.String() {
		case "esc", "q":
			m.dialog = dialog{}
		case "k", "up":
			m.voices.up()
		case "j", "down":
			m.voices.down()
		case "r":
			return m, loadVoices(m.ctx, m.speech)
		case "enter", " ":
			if v, ok := m.voices.choice(); ok {
				if err := m.speech.SelectVoice(v.URI); err != nil {
					m.voices.errorMsg = err.Error()
					return m, nil
				}
				m.dialog = dialog{}
				cmd := m.setStatus("Voice set to "+v.String()+".", false)
				return m, cmd
			}
		}
		return m, nil
	}

	if d.isConfirm() {
		switch msg.String() {
		case "y", "Y":
			m.dialog = dialog{}
			if d.kind == dialogConfirmDelete {
				return m, deleteDocument(m.ctx, m.store, d.target)
			}
			return m, clearAll(m.ctx, m.store)
		case "n", "N", "esc":
			m.dialog = dialog{}
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.dialog = dialog{}
		return m, nil
	case "enter":
		value := d.input.Value()
		m.dialog = dialog{}
		switch d.kind {
		case dialogUploadPath:
			return m.startUpload(value)
		case dialogQuestionCount:
			return m.runTask(conversation.KindGenerateQuestions, conversation.Params{NumQuestions: parseCount(value)})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.dialog.input, cmd = m.dialog.input.Update(msg)
	return m, cmd
}

func (m Model) startUpload(path string) (tea.Model, tea.Cmd) {
	path = expandHome(strings.TrimSpace(path))
	if path == "" {
		return m, nil
	}
	m.uploading = true
	m.uploadName = filepath.Base(path)
	m.upload = gateway.Progress{}
	m.uploadCh = make(chan tea.Msg, 8)
	cmd := tea.Batch(startUpload(m.ctx, m.store, path, m.uploadCh), m.spin())
	return m, cmd
}

func (m Model) runTask(kind conversation.Kind, params conversation.Params) (tea.Model, tea.Cmd) {
	req, err := m.conv.RunTask(kind, params)
	if err != nil {
		cmd := m.dispatchError(err)
		return m, cmd
	}
	cmd := tea.Batch(execute(m.ctx, m.conv, req), m.spin())
	return m, cmd
}

func (m *Model) dispatchError(err error) tea.Cmd {
	var ve *conversation.ValidationError
	switch {
	case errors.Is(err, conversation.ErrPending):
		return nil
	case errors.Is(err, conversation.ErrNoDocument):
		return m.setStatus("Select a document first.", true)
	case errors.As(err, &ve):
		if ve.Field == "num_questions" {
			return m.setStatus(fmt.Sprintf("Enter a number between 1 and %d.", conversation.MaxQuestions), true)
		}
		return nil
	default:
		return m.setStatus(err.Error(), true)
	}
}

// syncConversation points the conversation at the store's selection
func (m *Model) syncConversation() {
	if sel, ok := m.store.Selected(); ok {
		m.conv.Activate(sel)
		return
	}
	m.conv.Deactivate()
	m.setFocus(focusDocuments)
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusChat {
		m.chat.input.Focus()
	} else {
		m.chat.input.Blur()
	}
}

func (m *Model) stopListening() {
	if m.listening != nil {
		m.listening.Stop()
		m.listening = nil
	}
}

func (m *Model) busy() bool {
	if m.uploading || m.conv.State() == conversation.Pending {
		return true
	}
	for _, doc := range m.store.Documents() {
		if m.store.IsProcessing(doc.ID) {
			return true
		}
	}
	return false
}

func (m *Model) spin() tea.Cmd {
	if m.spinning {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusSeq++
	m.status = text
	m.statusErr = isErr
	return clearStatusAfter(m.statusSeq)
}

func describe(what string, err error) string {
	var se *gateway.ServerError
	switch {
	case gateway.IsNetwork(err):
		return what + ": cannot reach the backend. Please check that it is running."
	case errors.As(err, &se) && se.Err != nil:
		return what + ": the backend sent an invalid response."
	case errors.As(err, &se):
		return fmt.Sprintf("%s: backend returned %d.", what, se.Status)
	case errors.Is(err, documents.ErrUnsupportedType):
		return fmt.Sprintf("%s: only %s files are accepted.", what, strings.Join(documents.AcceptedExtensions, ", "))
	default:
		return fmt.Sprintf("%s: %v", what, err)
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func (m Model) View() string {
	if m.width == 0 {
		return "\n  Loading...\n"
	}

	docs := m.store.Documents()
	selectedID := ""
	if sel, ok := m.store.Selected(); ok {
		selectedID = sel.ID
	}

	// Top bar
	top := fmt.Sprintf("notebook-ai · %d documents", len(docs))
	if m.speech.VoiceMode() {
		top += " · voice on"
	}
	if m.listening != nil {
		top += " · listening..."
	}
	if m.uploading {
		top += fmt.Sprintf(" · uploading %s %d%%", m.uploadName, m.upload.Percent())
	}
	topBar := topBarStyle.Render(top)

	// Panes
	spin := m.spinner.View()
	left := paneStyle(m.focus == focusDocuments, m.docs.width, m.docs.height).
		Render(m.docs.View(docs, selectedID, m.store.IsProcessing, spin))

	var chatContent string
	if active, ok := m.conv.Active(); ok {
		hint := chatHelp
		if m.store.IsProcessing(active.ID) {
			hint = spin + " Processing document... " + chatHelp
		}
		chatContent = m.chat.View("Chatting about: "+active.Filename, m.conv.Messages(),
			m.conv.State() == conversation.Pending, spin, hint)
	} else {
		chatContent = lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Welcome!"),
			"",
			"Upload a document or select one from the list to start chatting.",
		)
	}
	right := paneStyle(m.focus == focusChat, m.chat.width, m.chat.height).Render(chatContent)
	panes := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	if m.dialog.kind != dialogNone {
		var body string
		if m.dialog.kind == dialogVoices {
			body = dialogStyle.Render(m.voices.View(m.speech.Locale()))
		} else {
			body = m.dialog.View()
		}
		panes = lipgloss.Place(lipgloss.Width(panes), lipgloss.Height(panes), lipgloss.Center, lipgloss.Center, body)
	}

	// Bottom bar
	var bottom string
	switch {
	case m.status != "" && m.statusErr:
		bottom = errorStyle.Padding(0, 1).Render(m.status)
	case m.status != "":
		bottom = noticeStyle.Padding(0, 1).Render(m.status)
	default:
		bottom = bottomStyle.Render("tab: Switch pane | ↑↓/jk: Navigate | q: Quit (documents) | ctrl+c: Quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left, topBar, panes, bottom)
}
