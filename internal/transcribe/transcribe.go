package transcribe

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"strings"

	"calbot/pkg/audioconv"
	"calbot/pkg/stt"
)

// Placeholder texts handed downstream instead of errors.
const (
	Unrecognized = "Could not understand audio"
	Unavailable  = "API unavailable"
)

type Result struct {
	Text    string
	Success bool
}

// Recognizer is a remote speech-to-text backend.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
}

type Transcriber struct {
	rec Recognizer
}

func New(rec Recognizer) *Transcriber {
	return &Transcriber{rec: rec}
}

// Transcribe never fails: undecodable audio and recognizer errors become
// placeholder text so classification sees ordinary input.
func (t *Transcriber) Transcribe(ctx context.Context, wavPath string) Result {
	if err := validate(wavPath); err != nil {
		log.Warn("Rejected audio", "path", wavPath, "err", err)
		return Result{Text: Unrecognized}
	}

	text, err := t.rec.Recognize(ctx, wavPath)
	switch {
	case errors.Is(err, stt.ErrNoSpeech):
		log.Info("No speech recognized", "path", wavPath)
		return Result{Text: Unrecognized}
	case err != nil:
		log.Warn("Recognizer failed", "path", wavPath, "err", err)
		return Result{Text: Unavailable}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Text: Unrecognized}
	}

	log.Debug("Transcribed", "text", text)
	return Result{Text: text, Success: true}
}

func validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pcm, err := audioconv.ReadWAV(f)
	if err != nil {
		return fmt.Errorf("decode wav: %w", err)
	}
	if len(pcm) == 0 {
		return errors.New("no samples")
	}
	return nil
}
