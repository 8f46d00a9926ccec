// Package transcribe converts audio files into raw transcript text through
// a pluggable backend selected at startup.
package transcribe

import (
	"context"
	"fmt"

	"github.com/Ahaxin/myday/internal/config"
)

// StubTranscript is the fixed output of the stub backend.
const StubTranscript = "[raw transcript placeholder]"

// Backend is a pluggable speech-to-text engine. Implementations are pure
// functions over the input file and configuration; they never mutate
// shared state.
type Backend interface {
	// Transcribe converts the audio file at audioPath into raw text.
	Transcribe(ctx context.Context, audioPath string) (string, error)
	// RequiresAudio reports whether the backend needs a local audio file.
	RequiresAudio() bool
}

// NewBackend selects the transcription backend from configuration.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.TranscriptionBackend {
	case config.TranscriptionBackendWhisper:
		return NewWhisperBackend(cfg.WhisperModel, cfg.WhisperDevice), nil
	case config.TranscriptionBackendStub, "":
		return &StubBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", cfg.TranscriptionBackend)
	}
}

// StubBackend returns a fixed placeholder transcript. Used when no model is
// configured and as a safety fallback.
type StubBackend struct{}

func (s *StubBackend) Transcribe(_ context.Context, _ string) (string, error) {
	return StubTranscript, nil
}

func (s *StubBackend) RequiresAudio() bool { return false }
