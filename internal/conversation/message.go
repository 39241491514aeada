package conversation

import "fmt"

// Sender identifies who wrote a message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry of the conversation log
type Message struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
	// Failed marks an apology written in place of a backend answer.
	Failed bool `json:"failed,omitempty"`
}

// Kind is the type of request dispatched to the backend
type Kind string

const (
	KindChat              Kind = "chat"
	KindSummarize         Kind = "summarize"
	KindGenerateQuestions Kind = "generate-questions"
	KindExtractKeywords   Kind = "extract-keywords"
)

// Tasks lists the task kinds in display order
var Tasks = []Kind{KindSummarize, KindGenerateQuestions, KindExtractKeywords}

// ParseKind maps a task name to its Kind
func ParseKind(name string) (Kind, bool) {
	for _, k := range Tasks {
		if string(k) == name {
			return k, true
		}
	}
	return "", false
}

// Label is the short name shown on task buttons
func (k Kind) Label() string {
	switch k {
	case KindSummarize:
		return "Summarize"
	case KindGenerateQuestions:
		return "Generate questions"
	case KindExtractKeywords:
		return "Extract keywords"
	default:
		return "Chat"
	}
}

func (k Kind) action() string {
	switch k {
	case KindSummarize:
		return "summarize"
	case KindGenerateQuestions:
		return "generate questions for"
	case KindExtractKeywords:
		return "extract keywords from"
	default:
		return "answer"
	}
}

func greeting(filename string) string {
	return fmt.Sprintf("Hello! You can now ask anything about the document %q.", filename)
}

func taskPrompt(k Kind) string {
	return fmt.Sprintf("Please %s this document.", k.action())
}

func apology(k Kind) string {
	if k == KindChat {
		return "Sorry, something went wrong. Please try again."
	}
	return fmt.Sprintf("Sorry, could not %s this document. Please try again.", k.action())
}
