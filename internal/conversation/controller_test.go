package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/notebook-ai/cli/internal/documents"
	"github.com/notebook-ai/cli/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type call struct {
	op         string
	query      string
	documentID string
	n          int
}

type fakeGateway struct {
	calls []call
	reply string
	err   error
}

func (f *fakeGateway) Chat(_ context.Context, query, documentID string) (string, error) {
	f.calls = append(f.calls, call{op: "chat", query: query, documentID: documentID})
	return f.reply, f.err
}

func (f *fakeGateway) Summarize(_ context.Context, documentID string) (string, error) {
	f.calls = append(f.calls, call{op: "summarize", documentID: documentID})
	return f.reply, f.err
}

func (f *fakeGateway) GenerateQuestions(_ context.Context, documentID string, n int) (string, error) {
	f.calls = append(f.calls, call{op: "generate-questions", documentID: documentID, n: n})
	return f.reply, f.err
}

func (f *fakeGateway) ExtractKeywords(_ context.Context, documentID string) (string, error) {
	f.calls = append(f.calls, call{op: "extract-keywords", documentID: documentID})
	return f.reply, f.err
}

type fakeSpeaker struct {
	spoken  []string
	cancels int
}

func (f *fakeSpeaker) Speak(text string) { f.spoken = append(f.spoken, text) }
func (f *fakeSpeaker) Cancel()           { f.cancels++ }

var (
	docA = documents.Document{ID: "a", Filename: "a.pdf"}
	docB = documents.Document{ID: "b", Filename: "b.pdf"}
)

func newController(t *testing.T) (*Controller, *fakeGateway, *fakeSpeaker) {
	t.Helper()
	gw := &fakeGateway{reply: "answer"}
	sp := &fakeSpeaker{}
	c := New(gw, sp, zap.NewNop())
	c.Activate(docA)
	return c, gw, sp
}

func TestActivateGreets(t *testing.T) {
	c, _, sp := newController(t)

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, SenderAssistant, msgs[0].Sender)
	assert.Contains(t, msgs[0].Text, `"a.pdf"`)
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, 1, sp.cancels)
}

func TestActivateSameDocumentKeepsLog(t *testing.T) {
	c, _, sp := newController(t)
	_, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)

	c.Activate(docA)
	assert.Len(t, c.Messages(), 3)
	assert.Equal(t, 1, sp.cancels)
}

func TestActivateOtherDocumentResets(t *testing.T) {
	c, _, sp := newController(t)
	_, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)

	c.Activate(docB)
	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, `"b.pdf"`)
	assert.Equal(t, 2, sp.cancels)
	active, ok := c.Active()
	require.True(t, ok)
	assert.Equal(t, docB, active)
}

func TestSendMessage(t *testing.T) {
	c, gw, sp := newController(t)

	msg, err := c.Send(context.Background(), "What is this about?")
	require.NoError(t, err)
	assert.Equal(t, Message{Sender: SenderAssistant, Text: "answer"}, msg)

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, Message{Sender: SenderUser, Text: "What is this about?"}, msgs[1])
	assert.Equal(t, []call{{op: "chat", query: "What is this about?", documentID: "a"}}, gw.calls)
	assert.Equal(t, []string{"answer"}, sp.spoken)
	assert.Equal(t, Idle, c.State())
}

func TestSendMessageEmpty(t *testing.T) {
	c, gw, _ := newController(t)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.SendMessage(text)
		assert.True(t, IsValidation(err))
	}
	assert.Len(t, c.Messages(), 1)
	assert.Empty(t, gw.calls)
	assert.Equal(t, Idle, c.State())
}

func TestNoActiveDocument(t *testing.T) {
	c := New(&fakeGateway{}, nil, nil)

	_, err := c.SendMessage("hi")
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = c.RunTask(KindSummarize, Params{})
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestPendingGate(t *testing.T) {
	c, gw, _ := newController(t)

	req, err := c.SendMessage("first")
	require.NoError(t, err)
	assert.Equal(t, Pending, c.State())
	length := len(c.Messages())

	_, err = c.SendMessage("second")
	assert.ErrorIs(t, err, ErrPending)
	_, err = c.RunTask(KindSummarize, Params{})
	assert.ErrorIs(t, err, ErrPending)
	_, err = c.RunTask(KindGenerateQuestions, Params{NumQuestions: 3})
	assert.ErrorIs(t, err, ErrPending)

	assert.Len(t, c.Messages(), length)
	assert.Empty(t, gw.calls)

	assert.True(t, c.Complete(c.Execute(context.Background(), req)))
	assert.Len(t, gw.calls, 1)
	assert.Equal(t, Idle, c.State())
}

func TestRunTasks(t *testing.T) {
	tests := []struct {
		kind   Kind
		params Params
		want   call
		prompt string
	}{
		{KindSummarize, Params{}, call{op: "summarize", documentID: "a"}, "Please summarize this document."},
		{KindGenerateQuestions, Params{NumQuestions: 7}, call{op: "generate-questions", documentID: "a", n: 7}, "Please generate questions for this document."},
		{KindExtractKeywords, Params{}, call{op: "extract-keywords", documentID: "a"}, "Please extract keywords from this document."},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			c, gw, sp := newController(t)

			msg, err := c.Run(context.Background(), tt.kind, tt.params)
			require.NoError(t, err)
			assert.Equal(t, "answer", msg.Text)

			msgs := c.Messages()
			require.Len(t, msgs, 3)
			assert.Equal(t, Message{Sender: SenderUser, Text: tt.prompt}, msgs[1])
			assert.Equal(t, []call{tt.want}, gw.calls)
			assert.Equal(t, []string{"answer"}, sp.spoken)
		})
	}
}

func TestGenerateQuestionsInvalidCount(t *testing.T) {
	for _, n := range []int{0, -3, MaxQuestions + 1} {
		c, gw, _ := newController(t)
		before := c.Messages()

		_, err := c.RunTask(KindGenerateQuestions, Params{NumQuestions: n})

		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "count %d", n)
		assert.Equal(t, "num_questions", ve.Field)
		assert.Equal(t, before, c.Messages(), "log rolled back for count %d", n)
		assert.Empty(t, gw.calls)
		assert.Equal(t, Idle, c.State())
	}
}

func TestRunTaskUnknownKind(t *testing.T) {
	c, gw, _ := newController(t)

	_, err := c.RunTask("translate", Params{})
	assert.True(t, IsValidation(err))
	_, err = c.RunTask(KindChat, Params{})
	assert.True(t, IsValidation(err))
	assert.Len(t, c.Messages(), 1)
	assert.Empty(t, gw.calls)
}

func TestFailureAppendsApology(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindChat, "Sorry, something went wrong. Please try again."},
		{KindSummarize, "Sorry, could not summarize this document. Please try again."},
		{KindExtractKeywords, "Sorry, could not extract keywords from this document. Please try again."},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			c, gw, sp := newController(t)
			gw.err = &gateway.ServerError{Op: string(tt.kind), Status: 500}

			var (
				msg Message
				err error
			)
			if tt.kind == KindChat {
				msg, err = c.Send(context.Background(), "hi")
			} else {
				msg, err = c.Run(context.Background(), tt.kind, Params{})
			}
			require.Error(t, err)
			assert.True(t, gateway.IsServer(err))
			assert.Equal(t, Message{Sender: SenderAssistant, Text: tt.want, Failed: true}, msg)
			assert.Equal(t, Idle, c.State())
			assert.Empty(t, sp.spoken)
			assert.Len(t, gw.calls, 1, "no retry")
		})
	}
}

func TestNetworkFailureReturnsToIdle(t *testing.T) {
	c, gw, _ := newController(t)
	gw.err = &gateway.NetworkError{Op: "chat", Err: errors.New("connection refused")}

	_, err := c.Send(context.Background(), "hi")
	assert.True(t, gateway.IsNetwork(err))
	assert.Equal(t, Idle, c.State())

	gw.err = nil
	_, err = c.Send(context.Background(), "again")
	assert.NoError(t, err)
}

func TestStaleResultDiscarded(t *testing.T) {
	c, gw, sp := newController(t)

	req, err := c.SendMessage("about a")
	require.NoError(t, err)
	assert.Equal(t, "a", req.DocumentID)

	c.Activate(docB)
	res := c.Execute(context.Background(), req)

	assert.False(t, c.Complete(res))
	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "b.pdf")
	assert.Equal(t, Idle, c.State())
	assert.Len(t, gw.calls, 1)
	assert.Empty(t, sp.spoken)
}

func TestCompleteTwiceIgnored(t *testing.T) {
	c, _, _ := newController(t)
	req, err := c.SendMessage("hi")
	require.NoError(t, err)
	res := c.Execute(context.Background(), req)

	assert.True(t, c.Complete(res))
	assert.False(t, c.Complete(res))
	assert.Len(t, c.Messages(), 3)
}

func TestDeactivate(t *testing.T) {
	c, _, _ := newController(t)
	c.Deactivate()

	_, ok := c.Active()
	assert.False(t, ok)
	assert.Empty(t, c.Messages())
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("generate-questions")
	assert.True(t, ok)
	assert.Equal(t, KindGenerateQuestions, k)

	_, ok = ParseKind("chat")
	assert.False(t, ok)
}
