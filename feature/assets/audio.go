package assets

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"asset-bank/core/asset"
)

var errBadWave = errors.New("malformed wave data")

// Audio is an encoded sound clip. Format details are filled in for WAV data.
type Audio struct {
	base
	Data          []byte
	Format        string
	Channels      int
	SampleRate    int
	BitsPerSample int
	Duration      time.Duration
	// Stream is set by the sidecar for clips played without full decoding.
	Stream bool
}

// LoadAudio reads the clip and parses WAV headers.
func LoadAudio(r io.Reader, meta asset.Metadata) (asset.Asset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	a := &Audio{Data: data, Stream: meta.Bool("stream", false)}

	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		a.Format = "wav"
		if err := parseWave(a, data[12:]); err != nil {
			return nil, fmt.Errorf("load audio: %w", err)
		}
	case bytes.HasPrefix(data, []byte("OggS")):
		a.Format = "ogg"
	case bytes.HasPrefix(data, []byte("ID3")) || len(data) >= 2 && data[0] == 0xff && data[1]&0xe0 == 0xe0:
		a.Format = "mp3"
	default:
		return nil, fmt.Errorf("load audio: unrecognized format")
	}
	return a, nil
}

func parseWave(a *Audio, chunks []byte) error {
	var byteRate uint32
	haveFmt := false

	for len(chunks) >= 8 {
		id := string(chunks[0:4])
		size := binary.LittleEndian.Uint32(chunks[4:8])
		chunks = chunks[8:]
		if uint64(size) > uint64(len(chunks)) {
			return fmt.Errorf("%w: chunk %q overruns data", errBadWave, id)
		}
		body := chunks[:size]

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return fmt.Errorf("%w: short fmt chunk", errBadWave)
			}
			a.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			a.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			byteRate = binary.LittleEndian.Uint32(body[8:12])
			a.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return fmt.Errorf("%w: data before fmt", errBadWave)
			}
			if byteRate > 0 {
				a.Duration = time.Duration(uint64(size) * uint64(time.Second) / uint64(byteRate))
			}
			return nil
		}

		// Chunks are word aligned.
		if size%2 == 1 && int(size) < len(chunks) {
			size++
		}
		chunks = chunks[size:]
	}
	if !haveFmt {
		return fmt.Errorf("%w: missing fmt chunk", errBadWave)
	}
	return nil
}
