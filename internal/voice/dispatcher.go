package voice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/google/uuid"
)

// DefaultSpeechTimeout bounds one synthesize-and-play cycle.
const DefaultSpeechTimeout = time.Minute

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, languageCode string) ([]byte, error)
}

// Player plays synthesized audio.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Dispatcher speaks replies. Failures are logged and never reach the caller.
type Dispatcher struct {
	synth   Synthesizer
	player  Player
	timeout time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimeout bounds each Dispatch call.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(v *Dispatcher) {
		if d > 0 {
			v.timeout = d
		}
	}
}

func NewDispatcher(synth Synthesizer, player Player, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{synth: synth, player: player, timeout: DefaultSpeechTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch selects, synthesizes and plays the speech for resp and reports
// what was selected. A truncated selection is still played.
func (d *Dispatcher) Dispatch(ctx context.Context, resp models.ClassifiedResponse) Selection {
	sel := SelectText(resp)
	if sel.Skip {
		slog.Debug("Dispatcher.Dispatch: nothing to speak", "kind", resp.Kind)
		return sel
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	audio, err := d.synth.Synthesize(ctx, sel.Text, sel.LanguageCode)
	if err != nil {
		slog.Warn("Dispatcher.Dispatch: synthesis failed, skipping playback", "error", err)
		return sel
	}
	if len(audio) == 0 {
		slog.Warn("Dispatcher.Dispatch: synthesizer returned no audio")
		return sel
	}
	if err := d.player.Play(ctx, audio); err != nil {
		slog.Warn("Dispatcher.Dispatch: playback failed", "error", err)
	}
	return sel
}

// FilePlayer "plays" audio by writing it as a WAV file under dir.
type FilePlayer struct {
	dir string
}

func NewFilePlayer(dir string) *FilePlayer {
	return &FilePlayer{dir: dir}
}

func (p *FilePlayer) Play(ctx context.Context, audio []byte) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create speech directory: %w", err)
	}
	path := filepath.Join(p.dir, "speech-"+uuid.NewString()+".wav")
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return fmt.Errorf("failed to write speech file: %w", err)
	}
	slog.Info("Speech ready", "path", path, "bytes", len(audio))
	return nil
}
