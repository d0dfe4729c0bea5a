// Package voice picks the text to speak for a reply, synthesizes it and plays
// the result without blocking the conversation.
package voice

import (
	"log/slog"
	"strings"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

const (
	// MaxSpeechLength is the longest text, in runes, sent for synthesis.
	MaxSpeechLength = 2500
	// minSentenceCut is the earliest rune index a full-stop cut may land on.
	minSentenceCut = 100
)

// Selection is what will be spoken for one reply.
type Selection struct {
	Text         string
	LanguageCode string
	Truncated    bool
	// Skip is set when there is nothing to speak.
	Skip bool
}

// SelectText picks the speakable text for resp: the dedicated voice text for
// structured analyses, the display text for plain messages and reminders,
// and a fixed apology for fallbacks.
func SelectText(resp models.ClassifiedResponse) Selection {
	var text string
	switch resp.Kind {
	case models.ResponseKindStructured:
		if resp.Structured != nil {
			text = resp.Structured.VoiceText
		}
	case models.ResponseKindFallback:
		text = models.VoiceFallbackText
	default:
		text = resp.DisplayText()
	}

	lang, text := ResolveLanguage(resp.LanguageCode, text)
	text = strings.TrimSpace(text)
	if text == "" {
		return Selection{LanguageCode: lang, Skip: true}
	}

	spoken, truncated := truncate(text)
	if truncated {
		slog.Info("voice.SelectText: speech text truncated",
			"kind", resp.Kind, "original_runes", len([]rune(text)), "spoken_runes", len([]rune(spoken)))
	}
	return Selection{Text: spoken, LanguageCode: lang, Truncated: truncated}
}

// truncate limits text to MaxSpeechLength runes, preferring to end on the
// last full stop when it falls past minSentenceCut.
func truncate(text string) (string, bool) {
	runes := []rune(text)
	if len(runes) <= MaxSpeechLength {
		return text, false
	}
	head := runes[:MaxSpeechLength]
	for i := len(head) - 1; i > minSentenceCut; i-- {
		if head[i] == '.' {
			return string(head[:i+1]), true
		}
	}
	return string(head), true
}
