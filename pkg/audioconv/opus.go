package audioconv

import (
	"bytes"
	"errors"
	"io"

	popus "github.com/pekim/opus"
)

// Telegram voice notes are Ogg/Opus.
func decodeOggOpus(rs io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(rs)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	var (
		pcm48 []float32
		buf   = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm48 = append(pcm48, int16ToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if len(pcm48) == 0 {
		return nil, errors.New("empty opus stream")
	}

	return toMono16k(pcm48, ch, 48000), nil
}

// isOggOpus reports whether the first logical stream carries an OpusHead
// identification packet.
func isOggOpus(data []byte) bool {
	if len(data) < 27 {
		return false
	}
	segs := int(data[26])
	start := 27 + segs
	return len(data) >= start+8 && bytes.Equal(data[start:start+8], []byte("OpusHead"))
}
