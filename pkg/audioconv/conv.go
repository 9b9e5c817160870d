package audioconv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SampleRate is the rate every decoder resamples to.
const SampleRate = 16000

type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOgg     Format = "ogg"
)

var ErrUnsupported = errors.New("unsupported audio format")

type Options struct {
	MaxSamples int // 0 = no limit
}

// Converter turns staged voice containers into 16 kHz mono 16-bit WAV files.
type Converter struct {
	opt Options
}

func NewConverter(opt Options) *Converter {
	return &Converter{opt: opt}
}

func (c *Converter) ToWAV(ctx context.Context, src, dst string) error {
	pcm, err := DecodeFile(ctx, src, c.opt)
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}
	if len(pcm) == 0 {
		return fmt.Errorf("decode %s: no samples", src)
	}
	return WriteWAV(dst, pcm)
}

// Sniff identifies the container from its first bytes.
func Sniff(head []byte) Format {
	switch {
	case len(head) >= 4 && string(head[:4]) == "RIFF":
		return FormatWAV
	case len(head) >= 4 && string(head[:4]) == "OggS":
		return FormatOgg
	case len(head) >= 3 && string(head[:3]) == "ID3":
		return FormatMP3
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// DecodeFile decodes a wav, mp3 or ogg (vorbis or opus) file into mono
// float32 samples at SampleRate.
func DecodeFile(_ context.Context, path string, opt Options) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pcm []float32
	switch f := Sniff(data); f {
	case FormatWAV:
		pcm, err = decodeWAV(bytes.NewReader(data))
	case FormatMP3:
		pcm, err = decodeMP3(bytes.NewReader(data))
	case FormatOgg:
		pcm, err = decodeOgg(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	if err != nil {
		return nil, err
	}

	if opt.MaxSamples > 0 && len(pcm) > opt.MaxSamples {
		pcm = pcm[:opt.MaxSamples]
	}
	return pcm, nil
}

func decodeOgg(data []byte) ([]float32, error) {
	if isOggOpus(data) {
		return decodeOggOpus(bytes.NewReader(data))
	}
	pcm, vErr := decodeOggVorbis(bytes.NewReader(data))
	if vErr == nil {
		return pcm, nil
	}
	pcm, oErr := decodeOggOpus(bytes.NewReader(data))
	if oErr == nil {
		return pcm, nil
	}
	return nil, fmt.Errorf("cannot decode ogg as vorbis (%v) or opus (%w)", vErr, oErr)
}

// WriteWAV stores mono samples at SampleRate as 16-bit PCM.
func WriteWAV(path string, pcm []float32) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(out, SampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: SampleRate},
		Data:           float32ToInt16Range(pcm),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		out.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return out.Close()
}

// ReadWAV returns the mono samples of a wav file resampled to SampleRate.
func ReadWAV(r io.ReadSeeker) ([]float32, error) {
	return decodeWAV(r)
}
