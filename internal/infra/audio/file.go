package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"dictation/internal/domain"
)

const fileChunkSize = 32 * 1024

var ErrNoPendingFile = errors.New("no audio file waiting")

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".webm": true,
	".ogg":  true,
	".flac": true,
}

// FileCapture replays audio files dropped into a directory, one file per
// recording. WAV files are decoded to PCM; other formats are passed through
// as containers. Consumed files are renamed with a .processed suffix.
type FileCapture struct {
	dir string

	mu     sync.Mutex
	format domain.AudioFormat
	stop   chan struct{}
}

func NewFileCapture(dir string) *FileCapture {
	return &FileCapture{dir: dir, format: domain.DefaultAudioFormat()}
}

func (f *FileCapture) Name() string {
	return "file"
}

func (f *FileCapture) Format() domain.AudioFormat {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.format
}

func (f *FileCapture) Start(ctx context.Context) (<-chan []byte, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audio dir: %w", err)
	}

	path, err := f.nextFile()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	if err := os.Rename(path, path+".processed"); err != nil {
		return nil, fmt.Errorf("marking %s processed: %w", path, err)
	}

	buf, err := DecodeWAV(data)
	if err != nil {
		buf = domain.AudioBuffer{Data: data, Format: domain.AudioFormat{Encoding: domain.EncodingContainer}}
	}

	stop := make(chan struct{})
	f.mu.Lock()
	f.format = buf.Format
	f.stop = stop
	f.mu.Unlock()

	out := make(chan []byte, 4)
	go func() {
		defer close(out)
		for off := 0; off < len(buf.Data); off += fileChunkSize {
			end := min(off+fileChunkSize, len(buf.Data))
			select {
			case out <- buf.Data[off:end]:
			case <-ctx.Done():
				return
			}
		}
		select {
		case <-stop:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

func (f *FileCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop != nil {
		close(f.stop)
		f.stop = nil
	}
	return nil
}

func (f *FileCapture) nextFile() (string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return "", fmt.Errorf("reading dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !audioExtensions[filepath.Ext(entry.Name())] {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return "", ErrNoPendingFile
	}

	sort.Strings(names)
	return filepath.Join(f.dir, names[0]), nil
}
