//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dictation/internal/domain"
)

// MicrophoneCapture stub when portaudio is not available
type MicrophoneCapture struct {
	sampleRate int
	logger     *zap.Logger
}

func NewMicrophoneCapture(sampleRate int, logger *zap.Logger) *MicrophoneCapture {
	return &MicrophoneCapture{sampleRate: sampleRate, logger: logger}
}

func (m *MicrophoneCapture) Name() string {
	return "microphone"
}

func (m *MicrophoneCapture) Format() domain.AudioFormat {
	return domain.AudioFormat{Encoding: domain.EncodingPCM16, SampleRate: m.sampleRate, Channels: 1, BitDepth: 16}
}

func (m *MicrophoneCapture) Start(_ context.Context) (<-chan []byte, error) {
	return nil, fmt.Errorf("microphone capture not available: rebuild with -tags portaudio")
}

func (m *MicrophoneCapture) Stop() error {
	return nil
}
