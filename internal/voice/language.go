package voice

import (
	"log/slog"
	"regexp"
	"strings"
)

// Supported speech languages.
const (
	LanguageEnglish = "en-IN"
	LanguageHindi   = "hi-IN"
	DefaultLanguage = LanguageEnglish
)

// languagePhrases map an inline request such as "say this in hindi" to a
// language. Checked in order.
var languagePhrases = []struct {
	pattern *regexp.Regexp
	code    string
}{
	{regexp.MustCompile(`(?i)\bin hindi\b`), LanguageHindi},
	{regexp.MustCompile(`(?i)\bin english\b`), LanguageEnglish},
}

// ResolveLanguage returns the language to speak text in and the text to speak.
// A supplied code wins when supported and is replaced by the default when
// not. Without a code, an inline "in hindi"/"in english" phrase picks the
// language and is removed from the text.
func ResolveLanguage(code, text string) (string, string) {
	if code = strings.TrimSpace(code); code != "" {
		if supported(code) {
			return code, text
		}
		slog.Debug("voice.ResolveLanguage: unsupported language, using default", "language", code, "default", DefaultLanguage)
		return DefaultLanguage, text
	}
	for _, lp := range languagePhrases {
		if lp.pattern.MatchString(text) {
			clean := strings.Join(strings.Fields(lp.pattern.ReplaceAllString(text, "")), " ")
			return lp.code, clean
		}
	}
	return DefaultLanguage, text
}

func supported(code string) bool {
	return code == LanguageEnglish || code == LanguageHindi
}
