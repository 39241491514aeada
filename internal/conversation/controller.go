package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/notebook-ai/cli/internal/documents"
	"go.uber.org/zap"
)

// MaxQuestions is the largest question count the backend accepts
const MaxQuestions = 20

// DefaultQuestions is the count offered when prompting for one
const DefaultQuestions = 5

// Gateway is the subset of the backend the controller calls
type Gateway interface {
	Chat(ctx context.Context, query, documentID string) (string, error)
	Summarize(ctx context.Context, documentID string) (string, error)
	GenerateQuestions(ctx context.Context, documentID string, n int) (string, error)
	ExtractKeywords(ctx context.Context, documentID string) (string, error)
}

// Speaker receives answers for speech output
type Speaker interface {
	Speak(text string)
	Cancel()
}

type silent struct{}

func (silent) Speak(string) {}
func (silent) Cancel()      {}

// State is the task state of the active conversation
type State int

const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

// Params carries task arguments
type Params struct {
	// NumQuestions is required by generate-questions.
	NumQuestions int
}

// Request is one dispatched exchange. It is produced by SendMessage or
// RunTask, executed off the event loop and folded back with Complete.
type Request struct {
	ID           uuid.UUID
	DocumentID   string
	Kind         Kind
	Query        string
	NumQuestions int
}

// Result is the outcome of executing a Request
type Result struct {
	Request Request
	Text    string
	Err     error
}

// Controller holds the message log of the active document and gates
// requests so that at most one is in flight. It is not safe for concurrent
// use: call it from the goroutine that owns the session.
type Controller struct {
	gateway Gateway
	speaker Speaker
	log     *zap.Logger

	active   *documents.Document
	messages []Message
	state    State
	pending  uuid.UUID
}

// New creates a controller with no active document. A nil speaker disables
// speech output.
func New(gw Gateway, speaker Speaker, log *zap.Logger) *Controller {
	if speaker == nil {
		speaker = silent{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		gateway: gw,
		speaker: speaker,
		log:     log.Named("conversation"),
	}
}

// Activate makes doc the active document. A change of document resets the
// log to a greeting, returns to Idle and cancels speech output; activating
// the current document again does nothing.
func (c *Controller) Activate(doc documents.Document) {
	if c.active != nil && c.active.ID == doc.ID {
		return
	}
	active := doc
	c.active = &active
	c.reset([]Message{{Sender: SenderAssistant, Text: greeting(doc.Filename)}})
	c.log.Debug("conversation activated", zap.String("document_id", doc.ID))
}

// Deactivate clears the active document and the log
func (c *Controller) Deactivate() {
	if c.active == nil {
		return
	}
	c.active = nil
	c.reset(nil)
}

func (c *Controller) reset(messages []Message) {
	c.messages = messages
	c.state = Idle
	c.pending = uuid.Nil
	c.speaker.Cancel()
}

// Active returns the active document, if any
func (c *Controller) Active() (documents.Document, bool) {
	if c.active == nil {
		return documents.Document{}, false
	}
	return *c.active, true
}

// Messages returns a copy of the log
func (c *Controller) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// State returns the task state
func (c *Controller) State() State {
	return c.state
}

// SendMessage appends text as a user message and moves to Pending. Empty
// text and calls made while Pending are rejected without touching the log.
func (c *Controller) SendMessage(text string) (Request, error) {
	if c.active == nil {
		return Request{}, ErrNoDocument
	}
	if c.state == Pending {
		return Request{}, ErrPending
	}
	if strings.TrimSpace(text) == "" {
		return Request{}, &ValidationError{Field: "text", Reason: "message is empty"}
	}

	c.messages = append(c.messages, Message{Sender: SenderUser, Text: text})
	return c.begin(Request{Kind: KindChat, Query: text}), nil
}

// RunTask appends a message describing kind and moves to Pending.
// generate-questions needs a count between 1 and MaxQuestions; otherwise the
// appended message is retracted and a ValidationError returned.
func (c *Controller) RunTask(kind Kind, params Params) (Request, error) {
	if c.active == nil {
		return Request{}, ErrNoDocument
	}
	if c.state == Pending {
		return Request{}, ErrPending
	}
	if kind == KindChat {
		return Request{}, &ValidationError{Field: "kind", Reason: "chat is not a task"}
	}
	if _, ok := ParseKind(string(kind)); !ok {
		return Request{}, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown task %q", kind)}
	}

	c.messages = append(c.messages, Message{Sender: SenderUser, Text: taskPrompt(kind)})

	req := Request{Kind: kind}
	if kind == KindGenerateQuestions {
		if err := validateCount(params.NumQuestions); err != nil {
			c.messages = c.messages[:len(c.messages)-1]
			return Request{}, err
		}
		req.NumQuestions = params.NumQuestions
	}
	return c.begin(req), nil
}

func validateCount(n int) error {
	if n <= 0 {
		return &ValidationError{Field: "num_questions", Reason: "must be a positive integer"}
	}
	if n > MaxQuestions {
		return &ValidationError{Field: "num_questions", Reason: fmt.Sprintf("must be at most %d", MaxQuestions)}
	}
	return nil
}

func (c *Controller) begin(req Request) Request {
	req.ID = uuid.New()
	req.DocumentID = c.active.ID
	c.state = Pending
	c.pending = req.ID

	c.log.Debug("request dispatched",
		zap.String("request_id", req.ID.String()),
		zap.String("kind", string(req.Kind)),
		zap.String("document_id", req.DocumentID),
	)
	return req
}

// Execute performs req against the gateway. It reads no controller state
// and may run on any goroutine.
func (c *Controller) Execute(ctx context.Context, req Request) Result {
	var (
		text string
		err  error
	)
	switch req.Kind {
	case KindChat:
		text, err = c.gateway.Chat(ctx, req.Query, req.DocumentID)
	case KindSummarize:
		text, err = c.gateway.Summarize(ctx, req.DocumentID)
	case KindGenerateQuestions:
		text, err = c.gateway.GenerateQuestions(ctx, req.DocumentID, req.NumQuestions)
	case KindExtractKeywords:
		text, err = c.gateway.ExtractKeywords(ctx, req.DocumentID)
	default:
		err = fmt.Errorf("unknown request kind %q", req.Kind)
	}
	return Result{Request: req, Text: text, Err: err}
}

// Complete folds res into the log and returns to Idle. Results for a
// request that is no longer pending, for example because the active
// document changed, are dropped and reported as false.
func (c *Controller) Complete(res Result) bool {
	if c.state != Pending || res.Request.ID != c.pending {
		c.log.Debug("discarding stale result",
			zap.String("request_id", res.Request.ID.String()),
			zap.String("document_id", res.Request.DocumentID),
		)
		return false
	}
	c.state = Idle
	c.pending = uuid.Nil

	if res.Err != nil {
		c.log.Error("request failed",
			zap.String("kind", string(res.Request.Kind)),
			zap.String("document_id", res.Request.DocumentID),
			zap.Error(res.Err),
		)
		c.messages = append(c.messages, Message{Sender: SenderAssistant, Text: apology(res.Request.Kind), Failed: true})
		return true
	}

	c.messages = append(c.messages, Message{Sender: SenderAssistant, Text: res.Text})
	c.speaker.Speak(res.Text)
	return true
}

// Send runs a chat exchange to completion. The returned error is the
// gateway failure, if any; the log already holds the apology.
func (c *Controller) Send(ctx context.Context, text string) (Message, error) {
	req, err := c.SendMessage(text)
	if err != nil {
		return Message{}, err
	}
	return c.finish(ctx, req)
}

// Run runs a task to completion
func (c *Controller) Run(ctx context.Context, kind Kind, params Params) (Message, error) {
	req, err := c.RunTask(kind, params)
	if err != nil {
		return Message{}, err
	}
	return c.finish(ctx, req)
}

func (c *Controller) finish(ctx context.Context, req Request) (Message, error) {
	res := c.Execute(ctx, req)
	c.Complete(res)
	last := c.messages[len(c.messages)-1]
	return last, res.Err
}
