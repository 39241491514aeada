package speech

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// LocalePlaceholder in recognizer arguments is replaced with the locale
const LocalePlaceholder = "{locale}"

// CommandSynthesizer speaks through an espeak-ng compatible command
type CommandSynthesizer struct {
	path string
	log  *zap.Logger

	mu      sync.Mutex
	current *exec.Cmd
}

// NewCommandSynthesizer resolves name on PATH
func NewCommandSynthesizer(name string, log *zap.Logger) (*CommandSynthesizer, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &CapabilityUnavailable{Capability: CapabilitySynthesis}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, &CapabilityUnavailable{Capability: CapabilitySynthesis, Err: err}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CommandSynthesizer{path: path, log: log.Named("speech")}, nil
}

// Voices lists the voices reported by --voices
func (s *CommandSynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	out, err := exec.CommandContext(ctx, s.path, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	return parseVoices(out), nil
}

// Speak stops the current utterance and starts a new one
func (s *CommandSynthesizer) Speak(text string, voice Voice, locale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	args := []string{}
	switch {
	case voice.URI != "":
		args = append(args, "-v", voice.URI)
	case locale != "":
		args = append(args, "-v", languagePrefix(locale))
	}
	args = append(args, "--", text)

	cmd := exec.Command(s.path, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start synthesizer: %w", err)
	}
	s.current = cmd

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		if s.current == cmd {
			s.current = nil
		}
		s.mu.Unlock()
		if err != nil {
			s.log.Debug("utterance ended", zap.Error(err))
		}
	}()
	return nil
}

// Cancel stops the current utterance
func (s *CommandSynthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *CommandSynthesizer) stopLocked() {
	if s.current == nil || s.current.Process == nil {
		return
	}
	if err := s.current.Process.Kill(); err != nil {
		s.log.Debug("failed to stop utterance", zap.Error(err))
	}
	s.current = nil
}

// parseVoices reads espeak-ng --voices output:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  vi              --/M      Vietnamese_Northern roa/vi
func parseVoices(out []byte) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		name := fields[3]
		voices = append(voices, Voice{
			URI:  name,
			Name: strings.ReplaceAll(name, "_", " "),
			Lang: fields[1],
		})
	}
	return voices
}

// CommandRecognizer runs an external recognizer that prints one JSON object
// per line: {"transcript": "...", "final": true}
type CommandRecognizer struct {
	path    string
	args    []string
	maxLine int
	log     *zap.Logger
}

// maxRecognizerLine bounds a single line of recognizer output
const maxRecognizerLine = 1 << 20

// NewCommandRecognizer resolves name on PATH
func NewCommandRecognizer(name string, args []string, log *zap.Logger) (*CommandRecognizer, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &CapabilityUnavailable{Capability: CapabilityRecognition}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, &CapabilityUnavailable{Capability: CapabilityRecognition, Err: err}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CommandRecognizer{path: path, args: args, maxLine: maxRecognizerLine, log: log.Named("speech")}, nil
}

type recognizerLine struct {
	Transcript string `json:"transcript"`
	Final      bool   `json:"final"`
	Error      string `json:"error"`
}

// Recognize starts the command and streams its events. Cancelling ctx
// kills the command and ends the stream without an error event.
func (r *CommandRecognizer) Recognize(ctx context.Context, locale string) (<-chan Event, error) {
	args := make([]string, len(r.args))
	for i, a := range r.args {
		args[i] = strings.ReplaceAll(a, LocalePlaceholder, locale)
	}

	cmd := exec.CommandContext(ctx, r.path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach recognizer: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recognizer: %w", err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)

		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var failure error
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, min(4096, r.maxLine)), r.maxLine)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var msg recognizerLine
			if err := json.Unmarshal(line, &msg); err != nil {
				failure = fmt.Errorf("failed to parse recognizer output: %w", err)
				break
			}
			if msg.Error != "" {
				failure = fmt.Errorf("recognizer error: %s", msg.Error)
				break
			}
			if !send(Event{Transcript: msg.Transcript, Final: msg.Final}) {
				break
			}
		}
		if failure == nil {
			if err := scanner.Err(); err != nil {
				failure = fmt.Errorf("failed to read recognizer output: %w", err)
			}
		}
		if failure != nil && cmd.Process != nil {
			cmd.Process.Kill()
		}

		waitErr := cmd.Wait()
		if ctx.Err() != nil {
			return
		}
		if failure == nil && waitErr != nil {
			failure = fmt.Errorf("recognizer exited: %w: %s", waitErr, strings.TrimSpace(stderr.String()))
		}
		if failure != nil {
			r.log.Warn("recognition failed", zap.Error(failure))
			send(Event{Err: failure})
		}
	}()
	return events, nil
}
