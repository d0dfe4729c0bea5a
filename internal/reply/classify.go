package reply

import (
	"log/slog"
	"strings"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// Field names used by the backend reply envelopes.
const (
	fieldStatus       = "status"
	fieldData         = "data"
	fieldType         = "type"
	fieldResponse     = "response"
	fieldMessage      = "message"
	fieldReminderTime = "reminder_time"
	fieldReminderText = "reminder_text"
	fieldVoiceMessage = "voice_message"
	fieldLanguageCode = "language_code"
	fieldKeyPoints    = "key_points"

	structuredTypeMarker = "structured"
)

// predicate inspects a reply object and reports whether it recognised it.
type predicate func(obj map[string]any) (models.ClassifiedResponse, bool)

// classifiers is evaluated in order; the first match wins. Reminder and
// nested-message envelopes are checked before the structured marker.
var classifiers = []predicate{
	matchNestedMessage,
	matchStructured,
	matchBareMessage,
}

// Classify assigns exactly one response kind to a normalized reply.
func Classify(n models.NormalizedReply) models.ClassifiedResponse {
	if n.Kind == models.ReplyKindObject && n.Object != nil {
		obj := unwrapEnvelope(n.Object)
		for _, match := range classifiers {
			if resp, ok := match(obj); ok {
				resp.LanguageCode = languageCode(obj)
				slog.Debug("reply.Classify: classified object reply", "kind", resp.Kind)
				return resp
			}
		}
	}

	if n.Kind == models.ReplyKindString && strings.TrimSpace(n.Text) != "" {
		slog.Debug("reply.Classify: classified string reply", "kind", models.ResponseKindPlain)
		return models.NewPlainMessage(n.Text)
	}

	slog.Debug("reply.Classify: no shape matched, using fallback", "normalized_kind", n.Kind)
	return models.NewFallbackMessage()
}

// ClassifyRaw normalizes and classifies in one step.
func ClassifyRaw(raw any) models.ClassifiedResponse {
	return Classify(Normalize(raw))
}

// unwrapEnvelope strips one {"status": ..., "data": {...}} transport wrapper.
func unwrapEnvelope(obj map[string]any) map[string]any {
	if _, hasStatus := obj[fieldStatus]; !hasStatus {
		return obj
	}
	if data, ok := obj[fieldData].(map[string]any); ok {
		return data
	}
	return obj
}

// matchNestedMessage recognises {"response": {"message": ...}} envelopes and
// top-level reminder envelopes carrying message plus both reminder fields.
func matchNestedMessage(obj map[string]any) (models.ClassifiedResponse, bool) {
	if nested, ok := obj[fieldResponse].(map[string]any); ok {
		if msg := nonEmptyString(nested, fieldMessage); msg != "" {
			if d, ok := reminderDirective(msg, nested, obj); ok {
				return models.ClassifiedResponse{Kind: models.ResponseKindReminder, Reminder: &d}, true
			}
			return models.NewPlainMessage(msg), true
		}
	}

	if msg := nonEmptyString(obj, fieldMessage); msg != "" {
		if d, ok := reminderDirective(msg, obj); ok {
			return models.ClassifiedResponse{Kind: models.ResponseKindReminder, Reminder: &d}, true
		}
	}
	return models.ClassifiedResponse{}, false
}

// reminderDirective builds a directive when both reminder fields are present
// as strings in any of the given scopes (searched in order). Empty values are
// kept; the directive then renders but does not schedule.
func reminderDirective(msg string, scopes ...map[string]any) (models.ReminderDirective, bool) {
	timeExpr, hasTime := lookupString(fieldReminderTime, scopes...)
	text, hasText := lookupString(fieldReminderText, scopes...)
	if !hasTime || !hasText {
		return models.ReminderDirective{}, false
	}
	return models.ReminderDirective{
		DisplayText:      msg,
		ReminderTimeExpr: timeExpr,
		ReminderText:     text,
	}, true
}

// matchStructured recognises the four-perspective analysis. All four sections
// must carry content; otherwise later predicates get a chance.
func matchStructured(obj map[string]any) (models.ClassifiedResponse, bool) {
	marker, _ := obj[fieldType].(string)
	if !strings.EqualFold(strings.TrimSpace(marker), structuredTypeMarker) {
		return models.ClassifiedResponse{}, false
	}

	// Each perspective is read from the nested response, then the top level.
	scopes := []map[string]any{obj}
	if nested, ok := obj[fieldResponse].(map[string]any); ok {
		scopes = []map[string]any{nested, obj}
	}

	sections := make(map[models.PerspectiveKey]models.PerspectiveContent, len(models.PerspectiveKeys))
	for _, key := range models.PerspectiveKeys {
		content, ok := perspectiveFrom(string(key), scopes)
		if !ok || content.IsEmpty() {
			slog.Debug("reply.matchStructured: perspective missing or empty", "perspective", key)
			return models.ClassifiedResponse{}, false
		}
		sections[key] = content
	}

	voice, _ := lookupString(fieldVoiceMessage, obj, scopes[0])
	return models.ClassifiedResponse{
		Kind: models.ResponseKindStructured,
		Structured: &models.StructuredAnalysis{
			Sections:  sections,
			VoiceText: voice,
		},
	}, true
}

// matchBareMessage recognises {"message": "..."} chit-chat replies.
func matchBareMessage(obj map[string]any) (models.ClassifiedResponse, bool) {
	if msg := nonEmptyString(obj, fieldMessage); msg != "" {
		return models.NewPlainMessage(msg), true
	}
	return models.ClassifiedResponse{}, false
}

// perspectiveFrom returns the first scope's section for key that has content.
func perspectiveFrom(key string, scopes []map[string]any) (models.PerspectiveContent, bool) {
	for _, scope := range scopes {
		if content, ok := perspectiveContent(scope[key]); ok && !content.IsEmpty() {
			return content, true
		}
	}
	return models.PerspectiveContent{}, false
}

func perspectiveContent(v any) (models.PerspectiveContent, bool) {
	switch section := v.(type) {
	case string:
		return models.PerspectiveContent{Analysis: section}, true
	case map[string]any:
		content := models.PerspectiveContent{
			Analysis:    stringField(section, "analysis"),
			Perspective: stringField(section, "perspective"),
			Story:       stringField(section, "story"),
			Framework:   stringField(section, "framework"),
		}
		if points, ok := section[fieldKeyPoints].([]any); ok {
			for _, p := range points {
				if s, ok := p.(string); ok && strings.TrimSpace(s) != "" {
					content.KeyPoints = append(content.KeyPoints, s)
				}
			}
		}
		return content, true
	default:
		return models.PerspectiveContent{}, false
	}
}

func languageCode(obj map[string]any) string {
	if code, ok := lookupString(fieldLanguageCode, obj); ok {
		return code
	}
	if nested, ok := obj[fieldResponse].(map[string]any); ok {
		code, _ := lookupString(fieldLanguageCode, nested)
		return code
	}
	return ""
}

func lookupString(key string, scopes ...map[string]any) (string, bool) {
	for _, scope := range scopes {
		if s, ok := scope[key].(string); ok {
			return s, true
		}
	}
	return "", false
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func nonEmptyString(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
