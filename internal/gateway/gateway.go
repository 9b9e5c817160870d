package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"calbot/internal/metrics"
	"calbot/internal/pipeline"
	"calbot/internal/transcribe"
)

type Kind string

const (
	KindText  Kind = "text"
	KindVoice Kind = "voice"
)

var ErrStaging = errors.New("staging failed")

// Attachment is a voice payload that can be fetched once.
type Attachment interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

type InboundMessage struct {
	SenderID string
	Kind     Kind
	Text     string
	Audio    Attachment
}

// ReplyFunc delivers text back to the sender of the message being handled.
type ReplyFunc func(ctx context.Context, text string) error

type Runner interface {
	Run(ctx context.Context, text string) pipeline.Outcome
}

type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) transcribe.Result
}

type Converter interface {
	ToWAV(ctx context.Context, src, dst string) error
}

type Gateway struct {
	runner Runner
	stt    Transcriber
	conv   Converter
	dir    string

	wg sync.WaitGroup
}

func New(runner Runner, stt Transcriber, conv Converter, stagingDir string) (*Gateway, error) {
	if err := os.MkdirAll(stagingDir, 0o700); err != nil {
		return nil, fmt.Errorf("staging dir: %w", err)
	}
	return &Gateway{runner: runner, stt: stt, conv: conv, dir: stagingDir}, nil
}

// Dispatch handles msg on its own goroutine. Cancelling ctx does not abort
// the run: it carries on to its reply, bounded by the per-call timeouts.
// Wait blocks until every dispatched message has been answered.
func (g *Gateway) Dispatch(ctx context.Context, msg InboundMessage, reply ReplyFunc) {
	ctx = context.WithoutCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.Handle(ctx, msg, reply)
	}()
}

func (g *Gateway) Wait() {
	g.wg.Wait()
}

// Handle sends exactly one reply for msg, whatever happens while handling it.
func (g *Gateway) Handle(ctx context.Context, msg InboundMessage, reply ReplyFunc) {
	logger := log.With("sender", msg.SenderID, "kind", msg.Kind)
	metrics.Messages.WithLabelValues(string(msg.Kind)).Inc()

	var once sync.Once
	send := func(text string) {
		once.Do(func() {
			if err := reply(ctx, text); err != nil {
				logger.Error("Failed to send reply", "err", err)
			}
		})
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered while handling message", "panic", r)
			send(pipeline.ReplyFailure)
		}
	}()

	switch msg.Kind {
	case KindText:
		send(g.runner.Run(ctx, msg.Text).Reply)
	case KindVoice:
		text, err := g.transcribeVoice(ctx, msg)
		if err != nil {
			logger.Error("Failed to process voice message", "err", err)
			send(pipeline.ReplyFailure)
			return
		}
		out := g.runner.Run(ctx, text)
		send(fmt.Sprintf("Transcribed Text: %s\n%s", text, out.Reply))
	default:
		logger.Warn("Unsupported message kind")
		send(pipeline.ReplyUnsupported)
	}
}

// transcribeVoice stages the attachment, converts it to wav and transcribes
// it. Every staged file is removed before it returns.
func (g *Gateway) transcribeVoice(ctx context.Context, msg InboundMessage) (string, error) {
	if msg.Audio == nil {
		return "", fmt.Errorf("%w: voice message without audio", ErrStaging)
	}

	base := filepath.Join(g.dir, safeName(msg.SenderID)+"-"+uuid.NewString())
	var staged []string
	defer func() { cleanup(staged) }()

	download := base + ".download"
	staged = append(staged, download)
	if err := g.download(ctx, msg.Audio, download); err != nil {
		return "", fmt.Errorf("%w: download: %w", ErrStaging, err)
	}

	src, err := sniffRename(download, base)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStaging, err)
	}
	staged = append(staged, src)

	wav := base + ".wav"
	staged = append(staged, wav)
	if err := g.conv.ToWAV(ctx, src, wav); err != nil {
		return "", fmt.Errorf("%w: convert: %w", ErrStaging, err)
	}

	return g.stt.Transcribe(ctx, wav).Text, nil
}

func (g *Gateway) download(ctx context.Context, att Attachment, dst string) error {
	rc, err := att.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// sniffRename gives the downloaded file the extension of its real container.
func sniffRename(path, base string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect container: %w", err)
	}

	var ext string
	switch {
	case mt.Is("audio/ogg"), mt.Is("application/ogg"), mt.Is("audio/opus"):
		ext = ".oga"
	case mt.Is("audio/wav"), mt.Is("audio/x-wav"):
		ext = ".src.wav"
	case mt.Is("audio/mpeg"), mt.Is("audio/mp3"):
		ext = ".mp3"
	default:
		return "", fmt.Errorf("unsupported attachment type %s", mt.String())
	}

	dst := base + ext
	if err := os.Rename(path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func cleanup(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("Failed to remove staged file", "path", p, "err", err)
		}
	}
}

func safeName(id string) string {
	if id == "" {
		return "anonymous"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
