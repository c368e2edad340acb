package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"dictation/internal/domain"
)

var ErrNotWAV = errors.New("not a wav file")

// EncodeWAV wraps raw PCM in a WAV container. Buffers that already hold a
// container are returned unchanged.
func EncodeWAV(buf domain.AudioBuffer) ([]byte, error) {
	if buf.Format.Encoding == domain.EncodingContainer {
		return buf.Data, nil
	}
	if buf.Format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d", buf.Format.BitDepth)
	}

	// the encoder needs to seek back and patch the header sizes
	f, err := os.CreateTemp("", "dictation-*.wav")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	channels := buf.Format.Channels
	if channels <= 0 {
		channels = 1
	}

	enc := wav.NewEncoder(f, buf.Format.SampleRate, 16, channels, 1)
	ib := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  buf.Format.SampleRate,
		},
		Data:           pcm16ToInts(buf.Data),
		SourceBitDepth: 16,
	}
	if err := enc.Write(ib); err != nil {
		enc.Close()
		return nil, fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing wav encoder: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding wav: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading wav: %w", err)
	}
	return data, nil
}

// DecodeWAV extracts 16-bit PCM from a WAV file.
func DecodeWAV(data []byte) (domain.AudioBuffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return domain.AudioBuffer{}, ErrNotWAV
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return domain.AudioBuffer{}, fmt.Errorf("decoding wav: %w", err)
	}
	if dec.BitDepth != 16 {
		return domain.AudioBuffer{}, fmt.Errorf("unsupported bit depth %d", dec.BitDepth)
	}

	return domain.AudioBuffer{
		Data: intsToPCM16(pcm.Data),
		Format: domain.AudioFormat{
			Encoding:   domain.EncodingPCM16,
			SampleRate: int(dec.SampleRate),
			Channels:   int(dec.NumChans),
			BitDepth:   16,
		},
	}, nil
}

// Filename returns a file name whose extension matches the audio payload, for
// multipart uploads.
func Filename(buf domain.AudioBuffer) string {
	if buf.Format.Encoding != domain.EncodingContainer {
		return "audio.wav"
	}
	switch {
	case bytes.HasPrefix(buf.Data, []byte("RIFF")):
		return "audio.wav"
	case bytes.HasPrefix(buf.Data, []byte("OggS")):
		return "audio.ogg"
	case bytes.HasPrefix(buf.Data, []byte("fLaC")):
		return "audio.flac"
	case bytes.HasPrefix(buf.Data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "audio.webm"
	case bytes.HasPrefix(buf.Data, []byte("ID3")), len(buf.Data) > 1 && buf.Data[0] == 0xFF && buf.Data[1]&0xE0 == 0xE0:
		return "audio.mp3"
	case len(buf.Data) > 8 && string(buf.Data[4:8]) == "ftyp":
		return "audio.m4a"
	default:
		return "audio.wav"
	}
}

func pcm16ToInts(data []byte) []int {
	out := make([]int, len(data)/2)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return out
}

func intsToPCM16(samples []int) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out
}
