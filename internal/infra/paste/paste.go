package paste

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
	"go.uber.org/zap"

	"dictation/internal/domain"
)

type Mode string

const (
	// ModeKeystroke copies the text and sends the paste shortcut.
	ModeKeystroke Mode = "keystroke"
	// ModeClipboard only copies the text.
	ModeClipboard Mode = "clipboard"
)

type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// Shortcut sends the platform paste key combination to the focused window.
type Shortcut func() error

type Config struct {
	Mode            Mode
	RestoreContents bool
	SettleDelay     time.Duration
}

type Paster struct {
	cfg      Config
	clip     Clipboard
	shortcut Shortcut
	logger   *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Paster {
	return NewWith(cfg, SystemClipboard{}, newKeyboard().paste, logger)
}

// NewWith builds a Paster on custom clipboard and keyboard backends.
func NewWith(cfg Config, clip Clipboard, shortcut Shortcut, logger *zap.Logger) *Paster {
	if cfg.Mode == "" {
		cfg.Mode = ModeKeystroke
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 80 * time.Millisecond
	}
	return &Paster{cfg: cfg, clip: clip, shortcut: shortcut, logger: logger.Named("paste")}
}

// Paste puts text on the clipboard and, in keystroke mode, pastes it into
// the focused application. When the keystroke cannot be sent the text stays
// on the clipboard and a PermissionDenied error is returned.
func (p *Paster) Paste(ctx context.Context, text string) error {
	var previous string
	if p.cfg.RestoreContents {
		previous, _ = p.clip.ReadAll()
	}

	if err := p.clip.WriteAll(text); err != nil {
		return fmt.Errorf("writing clipboard: %w", err)
	}
	if p.cfg.Mode == ModeClipboard {
		return nil
	}

	if err := sleep(ctx, p.cfg.SettleDelay); err != nil {
		return err
	}

	if err := p.shortcut(); err != nil {
		return domain.WrapError(domain.KindPermissionDenied, "paste", fmt.Errorf("sending paste shortcut: %w", err))
	}

	if p.cfg.RestoreContents {
		if err := sleep(ctx, 120*time.Millisecond); err != nil {
			return nil
		}
		if err := p.clip.WriteAll(previous); err != nil {
			p.logger.Warn("restoring clipboard", zap.Error(err))
		}
	}

	p.logger.Debug("text pasted", zap.Int("chars", len(text)))
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type SystemClipboard struct{}

func (SystemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (SystemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

type keyboard struct {
	once sync.Once
	kb   keybd_event.KeyBonding
	err  error
}

func newKeyboard() *keyboard {
	return &keyboard{}
}

func (k *keyboard) paste() error {
	k.once.Do(func() {
		k.kb, k.err = keybd_event.NewKeyBonding()
		if k.err == nil && runtime.GOOS == "linux" {
			// uinput needs a moment before the virtual device accepts events
			time.Sleep(2 * time.Second)
		}
	})
	if k.err != nil {
		return k.err
	}

	k.kb.Clear()
	if runtime.GOOS == "darwin" {
		k.kb.HasSuper(true)
	} else {
		k.kb.HasCTRL(true)
	}
	k.kb.SetKeys(keybd_event.VK_V)
	return k.kb.Launching()
}
