package application

import (
	"context"

	"dictation/internal/domain"
)

// AudioCapture streams raw chunks from an input device. The channel returned
// by Start is closed once Stop has flushed the last chunk.
type AudioCapture interface {
	Start(ctx context.Context) (<-chan []byte, error)
	Stop() error
	Format() domain.AudioFormat
	Name() string
}
