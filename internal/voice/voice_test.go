package voice

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

type mockSynth struct {
	texts []string
	langs []string
	err   error
}

func (m *mockSynth) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	m.texts = append(m.texts, text)
	m.langs = append(m.langs, lang)
	if m.err != nil {
		return nil, m.err
	}
	return []byte("RIFF"), nil
}

type mockPlayer struct {
	played int
	err    error
}

func (m *mockPlayer) Play(ctx context.Context, audio []byte) error {
	m.played++
	return m.err
}

func TestSelectText_PerKind(t *testing.T) {
	tests := []struct {
		name string
		resp models.ClassifiedResponse
		want string
	}{
		{
			name: "structured speaks voice text",
			resp: models.ClassifiedResponse{
				Kind:       models.ResponseKindStructured,
				Structured: &models.StructuredAnalysis{VoiceText: "Here is a short summary."},
			},
			want: "Here is a short summary.",
		},
		{
			name: "plain speaks display text",
			resp: models.NewPlainMessage("Hello there"),
			want: "Hello there",
		},
		{
			name: "reminder speaks display text",
			resp: models.ClassifiedResponse{
				Kind:     models.ResponseKindReminder,
				Reminder: &models.ReminderDirective{DisplayText: "I'll remind you at 5pm", ReminderTimeExpr: "5pm", ReminderText: "call mom"},
			},
			want: "I'll remind you at 5pm",
		},
		{
			name: "fallback speaks apology",
			resp: models.NewFallbackMessage(),
			want: models.VoiceFallbackText,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := SelectText(tt.resp)
			if sel.Skip || sel.Truncated || sel.Text != tt.want {
				t.Errorf("SelectText() = %+v, want text %q", sel, tt.want)
			}
			if sel.LanguageCode != DefaultLanguage {
				t.Errorf("LanguageCode = %q", sel.LanguageCode)
			}
		})
	}
}

func TestSelectText_SkipBlank(t *testing.T) {
	for _, resp := range []models.ClassifiedResponse{
		{Kind: models.ResponseKindStructured, Structured: &models.StructuredAnalysis{VoiceText: "   "}},
		{Kind: models.ResponseKindStructured},
		models.NewPlainMessage("\n\t"),
	} {
		if sel := SelectText(resp); !sel.Skip || sel.Text != "" {
			t.Errorf("SelectText(%+v) = %+v, want skip", resp, sel)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Run("under limit untouched", func(t *testing.T) {
		text := strings.Repeat("a", MaxSpeechLength)
		if got, cut := truncate(text); cut || got != text {
			t.Error("text at the limit must not be truncated")
		}
	})
	t.Run("cuts at last full stop", func(t *testing.T) {
		text := strings.Repeat("a", 2000) + "." + strings.Repeat("b", 1000)
		got, cut := truncate(text)
		if !cut || len([]rune(got)) != 2001 || !strings.HasSuffix(got, ".") {
			t.Errorf("truncate() len=%d cut=%v", len([]rune(got)), cut)
		}
	})
	t.Run("hard cut when full stop too early", func(t *testing.T) {
		text := strings.Repeat("a", 50) + "." + strings.Repeat("b", 3000)
		got, cut := truncate(text)
		if !cut || len([]rune(got)) != MaxSpeechLength {
			t.Errorf("truncate() len=%d cut=%v", len([]rune(got)), cut)
		}
	})
	t.Run("counts runes not bytes", func(t *testing.T) {
		text := strings.Repeat("न", 3000)
		got, cut := truncate(text)
		if !cut || len([]rune(got)) != MaxSpeechLength {
			t.Errorf("truncate() len=%d cut=%v", len([]rune(got)), cut)
		}
	})
}

func TestResolveLanguage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		text     string
		wantLang string
		wantText string
	}{
		{"supported code kept", "hi-IN", "namaste", "hi-IN", "namaste"},
		{"unsupported code replaced", "fr-FR", "bonjour", DefaultLanguage, "bonjour"},
		{"phrase picks hindi", "", "Tell me a story in Hindi please", LanguageHindi, "Tell me a story please"},
		{"phrase picks english", "", "explain IN ENGLISH", LanguageEnglish, "explain"},
		{"no hint defaults", "", "hello", DefaultLanguage, "hello"},
		{"code wins over phrase", "en-IN", "say it in hindi", "en-IN", "say it in hindi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lang, text := ResolveLanguage(tt.code, tt.text)
			if lang != tt.wantLang || text != tt.wantText {
				t.Errorf("ResolveLanguage() = %q, %q; want %q, %q", lang, text, tt.wantLang, tt.wantText)
			}
		})
	}
}

func TestDispatch_LongTextStillPlays(t *testing.T) {
	synth := &mockSynth{}
	player := &mockPlayer{}
	d := NewDispatcher(synth, player)

	sel := d.Dispatch(context.Background(), models.NewPlainMessage(strings.Repeat("x", 3000)))
	if !sel.Truncated {
		t.Error("expected truncation to be reported")
	}
	if len(synth.texts) != 1 || len([]rune(synth.texts[0])) != MaxSpeechLength {
		t.Fatalf("unexpected synthesis calls: %d", len(synth.texts))
	}
	if player.played != 1 {
		t.Errorf("expected playback, got %d", player.played)
	}
}

func TestDispatch_SkipsAndSwallowsFailures(t *testing.T) {
	synth := &mockSynth{}
	player := &mockPlayer{}
	d := NewDispatcher(synth, player)

	d.Dispatch(context.Background(), models.NewPlainMessage("  "))
	if len(synth.texts) != 0 {
		t.Error("blank text must not be synthesized")
	}

	synth.err = errors.New("quota")
	d.Dispatch(context.Background(), models.NewPlainMessage("hi"))
	if player.played != 0 {
		t.Error("playback must be skipped after synthesis failure")
	}

	synth.err = nil
	player.err = errors.New("no device")
	d.Dispatch(context.Background(), models.NewPlainMessage("hi"))
	if player.played != 1 {
		t.Error("expected one playback attempt")
	}
}

func TestFilePlayer(t *testing.T) {
	dir := t.TempDir()
	p := NewFilePlayer(dir)
	if err := p.Play(context.Background(), []byte("RIFFdata")); err != nil {
		t.Fatalf("Play: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".wav") {
		t.Fatalf("unexpected dir contents: %v (%v)", entries, err)
	}
}
