package transcribe

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

//go:embed assets/faster_whisper.py
var whisperScript []byte

// UnavailableTranscript is returned when the whisper runtime is missing.
// Transcription degrades to usable placeholder output rather than failing
// the pipeline.
const UnavailableTranscript = "[transcription unavailable: faster-whisper not installed]"

// WhisperBackend runs faster-whisper through a python helper process and
// joins the decoded segments into a single transcript.
type WhisperBackend struct {
	model  string
	device string // cpu|cuda|auto
}

// NewWhisperBackend builds a whisper backend for the given model size and
// device.
func NewWhisperBackend(model, device string) *WhisperBackend {
	if model == "" {
		model = "tiny"
	}
	if device == "" {
		device = "cpu"
	}
	return &WhisperBackend{model: model, device: device}
}

func (w *WhisperBackend) RequiresAudio() bool { return true }

type whisperOutput struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (w *WhisperBackend) Transcribe(ctx context.Context, audioPath string) (string, error) {
	scriptPath := filepath.Join(os.TempDir(), "myday_faster_whisper.py")
	if err := os.WriteFile(scriptPath, whisperScript, 0o755); err != nil {
		return "", fmt.Errorf("write helper script: %w", err)
	}
	defer os.Remove(scriptPath)

	py := os.Getenv("MYDAY_PYTHON")
	if py == "" {
		py = "python3"
	}

	cmd := exec.CommandContext(ctx, py, scriptPath,
		"--audio", audioPath,
		"--model", w.model,
		"--device", w.device,
	)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if strings.Contains(stderr, "ModuleNotFoundError") {
				return UnavailableTranscript, nil
			}
			return "", fmt.Errorf("whisper helper failed: %s", stderr)
		}
		// python itself is not installed
		return UnavailableTranscript, nil
	}

	var parsed whisperOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return "", fmt.Errorf("parse whisper output: %w", err)
	}

	texts := make([]string, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		texts = append(texts, seg.Text)
	}
	return JoinSegments(texts), nil
}

// JoinSegments joins trimmed, non-empty segment texts with single spaces.
func JoinSegments(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.TrimSpace(s)
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
