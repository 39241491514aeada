package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable matches every CapabilityUnavailable with errors.Is
var ErrUnavailable = errors.New("capability unavailable")

// Capability names
const (
	CapabilitySynthesis   = "speech synthesis"
	CapabilityRecognition = "speech recognition"
)

// CapabilityUnavailable is returned when the host cannot provide a speech
// capability
type CapabilityUnavailable struct {
	Capability string
	Err        error
}

func (e *CapabilityUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s is not available: %v", e.Capability, e.Err)
	}
	return fmt.Sprintf("%s is not available", e.Capability)
}

func (e *CapabilityUnavailable) Is(target error) bool {
	return target == ErrUnavailable
}

func (e *CapabilityUnavailable) Unwrap() error {
	return e.Err
}

// Voice is one synthesizer voice
type Voice struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
	Lang string `json:"lang"`
}

func (v Voice) String() string {
	return fmt.Sprintf("%s (%s)", v.Name, v.Lang)
}

// Synthesizer speaks text. Speak returns once the utterance has started and
// replaces any utterance still playing.
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Speak(text string, voice Voice, locale string) error
	Cancel()
}

// Event is one recognition update. Err is set on the last event of a failed
// recognition.
type Event struct {
	Transcript string
	Final      bool
	Err        error
}

// Recognizer streams recognition events until ctx is cancelled or the
// engine stops. The channel is closed when recognition ends.
type Recognizer interface {
	Recognize(ctx context.Context, locale string) (<-chan Event, error)
}

// Transcript accumulates recognition events into the text shown in the
// input field: every final segment followed by the current interim one
type Transcript struct {
	final   []string
	interim string
}

// Apply folds ev in and returns the live text
func (t *Transcript) Apply(ev Event) string {
	if ev.Err == nil {
		if ev.Final {
			if s := strings.TrimSpace(ev.Transcript); s != "" {
				t.final = append(t.final, s)
			}
			t.interim = ""
		} else {
			t.interim = strings.TrimSpace(ev.Transcript)
		}
	}
	return t.String()
}

func (t *Transcript) String() string {
	parts := t.final
	if t.interim != "" {
		parts = append(parts[:len(parts):len(parts)], t.interim)
	}
	return strings.Join(parts, " ")
}

// Reset clears the transcript
func (t *Transcript) Reset() {
	t.final = nil
	t.interim = ""
}

// languagePrefix reduces a locale such as vi-VN to vi
func languagePrefix(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		return locale[:i]
	}
	return locale
}

func matchesLocale(v Voice, locale string) bool {
	prefix := languagePrefix(locale)
	if prefix == "" {
		return false
	}
	lang := strings.ToLower(v.Lang)
	return lang == prefix || strings.HasPrefix(lang, prefix+"-") || strings.HasPrefix(lang, prefix+"_")
}
