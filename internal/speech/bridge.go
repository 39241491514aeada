package speech

import (
	"context"
	"fmt"
	"sync"

	"github.com/notebook-ai/cli/internal/storage"
	"go.uber.org/zap"
)

// Bridge adapts the host speech capabilities to the conversation. Either
// capability may be nil; synthesis is then skipped silently and Listen
// returns CapabilityUnavailable.
type Bridge struct {
	synth   Synthesizer
	recog   Recognizer
	storage *storage.Adapter
	locale  string
	log     *zap.Logger

	mu        sync.Mutex
	voiceMode bool
	voices    []Voice
	selected  string
}

// NewBridge creates a bridge for locale
func NewBridge(synth Synthesizer, recog Recognizer, adapter *storage.Adapter, locale string, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		synth:   synth,
		recog:   recog,
		storage: adapter,
		locale:  locale,
		log:     log.Named("speech"),
	}
}

// CanSynthesize reports whether speech output is available
func (b *Bridge) CanSynthesize() bool {
	return b.synth != nil
}

// CanRecognize reports whether speech input is available
func (b *Bridge) CanRecognize() bool {
	return b.recog != nil
}

// Locale returns the configured locale
func (b *Bridge) Locale() string {
	return b.locale
}

// LoadVoices fetches the voice list and settles the selected voice: the
// persisted preference if it is still offered, else the first voice for the
// locale, else the first voice.
func (b *Bridge) LoadVoices(ctx context.Context) error {
	if b.synth == nil {
		return &CapabilityUnavailable{Capability: CapabilitySynthesis}
	}
	voices, err := b.synth.Voices(ctx)
	if err != nil {
		b.log.Warn("voice list unavailable", zap.Error(err))
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.voices = voices
	b.selected = ""

	if uri, ok := storage.Load[string](b.storage, storage.KeyVoiceURI); ok && indexOfVoice(voices, uri) >= 0 {
		b.selected = uri
		return nil
	}
	if v, ok := defaultVoice(voices, b.locale); ok {
		b.selected = v.URI
		b.storage.Save(storage.KeyVoiceURI, v.URI)
	}
	return nil
}

func defaultVoice(voices []Voice, locale string) (Voice, bool) {
	for _, v := range voices {
		if matchesLocale(v, locale) {
			return v, true
		}
	}
	if len(voices) > 0 {
		return voices[0], true
	}
	return Voice{}, false
}

func indexOfVoice(voices []Voice, uri string) int {
	for i, v := range voices {
		if v.URI == uri {
			return i
		}
	}
	return -1
}

// Voices returns the voices for the locale, or every voice when none match
func (b *Bridge) Voices() []Voice {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matching []Voice
	for _, v := range b.voices {
		if matchesLocale(v, b.locale) {
			matching = append(matching, v)
		}
	}
	if len(matching) > 0 {
		return matching
	}
	out := make([]Voice, len(b.voices))
	copy(out, b.voices)
	return out
}

// SelectedVoice returns the voice used for speaking
func (b *Bridge) SelectedVoice() (Voice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := indexOfVoice(b.voices, b.selected); i >= 0 {
		return b.voices[i], true
	}
	return Voice{}, false
}

// SelectVoice changes and persists the voice preference
func (b *Bridge) SelectVoice(uri string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if indexOfVoice(b.voices, uri) < 0 {
		return fmt.Errorf("unknown voice %q", uri)
	}
	b.selected = uri
	b.storage.Save(storage.KeyVoiceURI, uri)
	return nil
}

// VoiceMode reports whether answers are spoken
func (b *Bridge) VoiceMode() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.voiceMode
}

// SetVoiceMode toggles spoken answers. Turning it off stops speech.
func (b *Bridge) SetVoiceMode(on bool) {
	b.mu.Lock()
	b.voiceMode = on
	b.mu.Unlock()

	if !on {
		b.Cancel()
	}
}

// Speak speaks text when voice mode is on. Failures are logged.
func (b *Bridge) Speak(text string) {
	if b.synth == nil || text == "" {
		return
	}

	b.mu.Lock()
	on := b.voiceMode
	var voice Voice
	if i := indexOfVoice(b.voices, b.selected); i >= 0 {
		voice = b.voices[i]
	}
	b.mu.Unlock()

	if !on {
		return
	}
	if err := b.synth.Speak(text, voice, b.locale); err != nil {
		b.log.Warn("speech output failed", zap.Error(err))
	}
}

// Cancel stops the current utterance
func (b *Bridge) Cancel() {
	if b.synth != nil {
		b.synth.Cancel()
	}
}

// Listening is an active recognition
type Listening struct {
	events <-chan Event
	cancel context.CancelFunc
}

// Events delivers recognition updates and is closed when recognition ends
func (l *Listening) Events() <-chan Event {
	return l.events
}

// Stop ends recognition
func (l *Listening) Stop() {
	l.cancel()
}

// Listen starts continuous recognition in the configured locale
func (b *Bridge) Listen(ctx context.Context) (*Listening, error) {
	if b.recog == nil {
		return nil, &CapabilityUnavailable{Capability: CapabilityRecognition}
	}
	ctx, cancel := context.WithCancel(ctx)
	events, err := b.recog.Recognize(ctx, b.locale)
	if err != nil {
		cancel()
		b.log.Warn("speech input failed to start", zap.Error(err))
		return nil, err
	}
	return &Listening{events: events, cancel: cancel}, nil
}
