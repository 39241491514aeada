package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/notebook-ai/cli/internal/conversation"
	"github.com/notebook-ai/cli/internal/documents"
	"github.com/notebook-ai/cli/internal/gateway"
	"github.com/notebook-ai/cli/internal/session"
	"github.com/notebook-ai/cli/internal/speech"
)

const statusTTL = 4 * time.Second

// --- Messages ---

type uploadProgressMsg struct {
	progress gateway.Progress
}

type uploadDoneMsg struct {
	doc documents.Document
	err error
}

type processingDoneMsg struct {
	ticket session.Ticket
}

type deleteDoneMsg struct {
	id  string
	err error
}

type clearDoneMsg struct {
	result *gateway.ClearAllResult
	err    error
}

type responseMsg struct {
	result conversation.Result
}

type voicesLoadedMsg struct {
	err error
}

type listeningMsg struct {
	listening *speech.Listening
	err       error
}

type transcriptMsg struct {
	event speech.Event
}

type listenEndedMsg struct{}

type statusClearMsg struct {
	seq int
}

// --- Commands ---

// startUpload runs the upload on its own goroutine and feeds progress and
// the final result through ch. Progress updates are dropped when the loop
// is behind; the result never is.
func startUpload(ctx context.Context, store *session.Store, path string, ch chan tea.Msg) tea.Cmd {
	go func() {
		defer close(ch)
		doc, err := store.RequestUpload(ctx, path, func(p gateway.Progress) {
			select {
			case ch <- uploadProgressMsg{progress: p}:
			default:
			}
		})
		ch <- uploadDoneMsg{doc: doc, err: err}
	}()
	return waitFor(ch)
}

// waitFor delivers the next message from ch
func waitFor(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func waitProcessing(ticket session.Ticket) tea.Cmd {
	return tea.Tick(ticket.Grace, func(time.Time) tea.Msg {
		return processingDoneMsg{ticket: ticket}
	})
}

func deleteDocument(ctx context.Context, store *session.Store, id string) tea.Cmd {
	return func() tea.Msg {
		return deleteDoneMsg{id: id, err: store.RequestDelete(ctx, id)}
	}
}

func clearAll(ctx context.Context, store *session.Store) tea.Cmd {
	return func() tea.Msg {
		result, err := store.RequestClearAll(ctx)
		return clearDoneMsg{result: result, err: err}
	}
}

func execute(ctx context.Context, conv *conversation.Controller, req conversation.Request) tea.Cmd {
	return func() tea.Msg {
		return responseMsg{result: conv.Execute(ctx, req)}
	}
}

func loadVoices(ctx context.Context, bridge *speech.Bridge) tea.Cmd {
	return func() tea.Msg {
		return voicesLoadedMsg{err: bridge.LoadVoices(ctx)}
	}
}

func startListening(ctx context.Context, bridge *speech.Bridge) tea.Cmd {
	return func() tea.Msg {
		l, err := bridge.Listen(ctx)
		return listeningMsg{listening: l, err: err}
	}
}

func waitTranscript(l *speech.Listening) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-l.Events()
		if !ok {
			return listenEndedMsg{}
		}
		return transcriptMsg{event: ev}
	}
}

func clearStatusAfter(seq int) tea.Cmd {
	return tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return statusClearMsg{seq: seq}
	})
}
