//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"dictation/internal/domain"
)

const framesPerBuffer = 1024

// MicrophoneCapture streams 16-bit mono PCM from the default input device.
type MicrophoneCapture struct {
	sampleRate int
	logger     *zap.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	stop   chan struct{}
	done   chan struct{}
}

func NewMicrophoneCapture(sampleRate int, logger *zap.Logger) *MicrophoneCapture {
	return &MicrophoneCapture{
		sampleRate: sampleRate,
		logger:     logger.Named("microphone"),
	}
}

func (m *MicrophoneCapture) Name() string {
	return "microphone"
}

func (m *MicrophoneCapture) Format() domain.AudioFormat {
	return domain.AudioFormat{
		Encoding:   domain.EncodingPCM16,
		SampleRate: m.sampleRate,
		Channels:   1,
		BitDepth:   16,
	}
}

func (m *MicrophoneCapture) Start(_ context.Context) (<-chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return nil, fmt.Errorf("microphone already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	buffer := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), framesPerBuffer, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, domain.WrapError(domain.KindPermissionDenied, "microphone", fmt.Errorf("opening stream: %w", err))
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, domain.WrapError(domain.KindPermissionDenied, "microphone", fmt.Errorf("starting stream: %w", err))
	}

	m.stream = stream
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	out := make(chan []byte, 16)
	go m.read(stream, buffer, out, m.stop, m.done)

	m.logger.Info("microphone started", zap.Int("sample_rate", m.sampleRate))
	return out, nil
}

func (m *MicrophoneCapture) read(stream *portaudio.Stream, buffer []int16, out chan<- []byte, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			m.logger.Warn("reading from stream", zap.Error(err))
			return
		}

		chunk := make([]byte, len(buffer)*2)
		for i, s := range buffer {
			binary.LittleEndian.PutUint16(chunk[i*2:], uint16(s))
		}
		out <- chunk
	}
}

// Stop waits for the reader to hand over the last buffer, then releases the
// device.
func (m *MicrophoneCapture) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}

	close(m.stop)
	<-m.done

	var firstErr error
	if err := m.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("stopping stream: %w", err)
	}
	if err := m.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing stream: %w", err)
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("terminating portaudio: %w", err)
	}

	m.stream = nil
	m.logger.Info("microphone stopped")
	return firstErr
}
