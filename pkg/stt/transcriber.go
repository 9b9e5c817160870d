package stt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

// ErrNoSpeech is returned when the service answers but recognized nothing.
var ErrNoSpeech = errors.New("no speech recognized")

type Options struct {
	Model       string  // "" => whisper-1
	Language    string  // ISO-639-1 hint, "" = detect
	Prompt      string  // optional context for the recognizer
	Temperature float64 // 0 = service default
}

type Result struct {
	Text     string
	Language string // forced language, if any
}

// Transcriber sends audio files to the OpenAI transcription endpoint.
type Transcriber struct {
	client openai.Client
	opt    Options
}

func NewTranscriber(client openai.Client, opt Options) *Transcriber {
	if opt.Model == "" {
		opt.Model = string(openai.AudioModelWhisper1)
	}
	return &Transcriber{client: client, opt: opt}
}

// TranscribeFile uploads the file at path. The file extension tells the
// service which container it is.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string, opt Options) (Result, error) {
	if path == "" {
		return Result{}, errors.New("empty audio path")
	}
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	if opt.Model == "" {
		opt.Model = t.opt.Model
	}

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(opt.Model),
	}
	if opt.Language != "" {
		params.Language = openai.String(opt.Language)
	}
	if opt.Prompt != "" {
		params.Prompt = openai.String(opt.Prompt)
	}
	if opt.Temperature != 0 {
		params.Temperature = openai.Float(opt.Temperature)
	}

	res, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("transcription: %w", err)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return Result{}, ErrNoSpeech
	}

	return Result{Text: text, Language: opt.Language}, nil
}

// Recognize transcribes with the options the Transcriber was built with.
func (t *Transcriber) Recognize(ctx context.Context, path string) (string, error) {
	res, err := t.TranscribeFile(ctx, path, t.opt)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
