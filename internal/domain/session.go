package domain

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateRecording  SessionState = "recording"
	StateProcessing SessionState = "processing"
)

type AudioEncoding string

const (
	// EncodingPCM16 is raw little-endian signed 16-bit samples.
	EncodingPCM16 AudioEncoding = "pcm_s16le"
	// EncodingContainer means the bytes are already a complete file (wav, webm, mp3...).
	EncodingContainer AudioEncoding = "container"
)

type AudioFormat struct {
	Encoding   AudioEncoding
	SampleRate int
	Channels   int
	BitDepth   int
}

func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		Encoding:   EncodingPCM16,
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}
}

// AudioBuffer is a finalized recording handed to the transcription stage.
type AudioBuffer struct {
	Data   []byte
	Format AudioFormat
}

func (b AudioBuffer) Empty() bool { return len(b.Data) == 0 }

// RecordingSession holds the chunks of one capture. Chunks are appended from
// the capture goroutine while the controller may read its metadata.
type RecordingSession struct {
	ID        string
	StartedAt time.Time

	mu     sync.Mutex
	state  SessionState
	chunks [][]byte
	size   int
}

func NewRecordingSession(now time.Time) *RecordingSession {
	return &RecordingSession{
		ID:        uuid.NewString(),
		StartedAt: now,
		state:     StateRecording,
	}
}

func (s *RecordingSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *RecordingSession) SetState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *RecordingSession) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
	s.size += len(chunk)
}

// Size returns the number of captured bytes so far.
func (s *RecordingSession) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Finalize concatenates the captured chunks in arrival order.
func (s *RecordingSession) Finalize(format AudioFormat) AudioBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf bytes.Buffer
	buf.Grow(s.size)
	for _, c := range s.chunks {
		buf.Write(c)
	}
	return AudioBuffer{Data: buf.Bytes(), Format: format}
}
