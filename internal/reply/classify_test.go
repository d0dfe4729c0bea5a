package reply

import (
	"testing"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

func structuredPayload() map[string]any {
	return map[string]any{
		"type": "structured",
		"response": map[string]any{
			"psychological":    map[string]any{"analysis": "You feel stuck.", "key_points": []any{"stress", "fatigue"}},
			"philosophical":    map[string]any{"perspective": "Stoics would say..."},
			"autobiographical": map[string]any{"story": "Once I..."},
			"logical":          map[string]any{"framework": "Step back and list options."},
		},
		"voice_message": "Here is a short summary.",
		"language_code": "en-IN",
	}
}

func TestClassify_Structured(t *testing.T) {
	got := ClassifyRaw(structuredPayload())
	if got.Kind != models.ResponseKindStructured {
		t.Fatalf("kind = %q, want structured", got.Kind)
	}
	if got.Structured.VoiceText != "Here is a short summary." {
		t.Errorf("voice text = %q", got.Structured.VoiceText)
	}
	if len(got.Structured.Sections) != 4 {
		t.Errorf("expected 4 sections, got %d", len(got.Structured.Sections))
	}
	psych := got.Structured.Sections[models.PerspectivePsychological]
	if psych.DisplayText() != "You feel stuck." || len(psych.KeyPoints) != 2 {
		t.Errorf("unexpected psychological section: %+v", psych)
	}
	if got.LanguageCode != "en-IN" {
		t.Errorf("language = %q", got.LanguageCode)
	}
}

func TestClassify_StructuredRequiresAllFourPerspectives(t *testing.T) {
	for _, key := range models.PerspectiveKeys {
		t.Run(string(key)+" missing", func(t *testing.T) {
			payload := structuredPayload()
			delete(payload["response"].(map[string]any), string(key))
			got := ClassifyRaw(payload)
			if got.Kind == models.ResponseKindStructured {
				t.Fatal("expected reclassification when a perspective is missing")
			}
			if got.Kind != models.ResponseKindFallback && got.Kind != models.ResponseKindPlain {
				t.Errorf("kind = %q, want plain or fallback", got.Kind)
			}
		})
		t.Run(string(key)+" empty", func(t *testing.T) {
			payload := structuredPayload()
			payload["response"].(map[string]any)[string(key)] = map[string]any{"analysis": "  "}
			if got := ClassifyRaw(payload); got.Kind == models.ResponseKindStructured {
				t.Fatal("expected reclassification when a perspective is empty")
			}
		})
	}
}

func TestClassify_StructuredPerspectiveAtTopLevel(t *testing.T) {
	payload := structuredPayload()
	nested := payload["response"].(map[string]any)
	payload["logical"] = nested["logical"]
	delete(nested, "logical")
	nested["philosophical"] = map[string]any{"perspective": " "}
	payload["philosophical"] = "Top-level view."

	got := ClassifyRaw(payload)
	if got.Kind != models.ResponseKindStructured {
		t.Fatalf("kind = %q, want structured", got.Kind)
	}
	if s := got.Structured.Sections[models.PerspectiveLogical]; s.DisplayText() != "Step back and list options." {
		t.Errorf("logical section = %+v", s)
	}
	if s := got.Structured.Sections[models.PerspectivePhilosophical]; s.DisplayText() != "Top-level view." {
		t.Errorf("philosophical section = %+v", s)
	}
}

func TestClassify_StructuredWithoutMarkerIsNotStructured(t *testing.T) {
	payload := structuredPayload()
	delete(payload, "type")
	if got := ClassifyRaw(payload); got.Kind != models.ResponseKindFallback {
		t.Errorf("kind = %q, want fallback", got.Kind)
	}
}

func TestClassify_StructuredFallsBackToBareMessage(t *testing.T) {
	payload := structuredPayload()
	delete(payload["response"].(map[string]any), "logical")
	payload["message"] = "Plain summary"
	got := ClassifyRaw(payload)
	if got.Kind != models.ResponseKindPlain || got.Text != "Plain summary" {
		t.Errorf("got %+v, want plain message", got)
	}
}

func TestClassify_Reminder(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    models.ReminderDirective
	}{
		{
			name: "top level envelope",
			payload: map[string]any{
				"message":       "Reminder set: 'drink water' in 5 minutes",
				"reminder_time": "in 5 minutes",
				"reminder_text": "drink water",
			},
			want: models.ReminderDirective{DisplayText: "Reminder set: 'drink water' in 5 minutes", ReminderTimeExpr: "in 5 minutes", ReminderText: "drink water"},
		},
		{
			name: "nested response",
			payload: map[string]any{
				"response": map[string]any{
					"message":       "Okay!",
					"reminder_time": "2:30pm",
					"reminder_text": "call mom",
				},
			},
			want: models.ReminderDirective{DisplayText: "Okay!", ReminderTimeExpr: "2:30pm", ReminderText: "call mom"},
		},
		{
			name:    "string encoded inside status envelope",
			payload: `{"status":"success","data":{"message":"Saved","reminder_time":"","reminder_text":"stretch"}}`,
			want:    models.ReminderDirective{DisplayText: "Saved", ReminderTimeExpr: "", ReminderText: "stretch"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyRaw(tt.payload)
			if got.Kind != models.ResponseKindReminder {
				t.Fatalf("kind = %q, want reminder", got.Kind)
			}
			if *got.Reminder != tt.want {
				t.Errorf("directive = %+v, want %+v", *got.Reminder, tt.want)
			}
		})
	}
}

func TestClassify_ReminderWinsOverStructured(t *testing.T) {
	payload := structuredPayload()
	payload["message"] = "Will remind you"
	payload["reminder_time"] = "in 1 hour"
	payload["reminder_text"] = "walk"
	if got := ClassifyRaw(payload); got.Kind != models.ResponseKindReminder {
		t.Errorf("kind = %q, want reminder", got.Kind)
	}
}

func TestClassify_NestedMessageWithoutReminderFields(t *testing.T) {
	got := ClassifyRaw(map[string]any{
		"type":     "chit-chat",
		"response": map[string]any{"message": "Hi there!", "reminder_time": "in 5 minutes"},
	})
	if got.Kind != models.ResponseKindPlain || got.Text != "Hi there!" {
		t.Errorf("got %+v, want plain nested message", got)
	}
}

func TestClassify_PlainAndFallback(t *testing.T) {
	tests := []struct {
		name     string
		payload  any
		wantKind models.ResponseKind
		wantText string
	}{
		{"bare message", map[string]any{"message": "hello", "language_code": "hi-IN"}, models.ResponseKindPlain, "hello"},
		{"raw string", "just text", models.ResponseKindPlain, "just text"},
		{"malformed json string", `{"message":`, models.ResponseKindPlain, `{"message":`},
		{"nil", nil, models.ResponseKindFallback, models.FallbackText},
		{"blank string", "   ", models.ResponseKindFallback, models.FallbackText},
		{"empty object", map[string]any{}, models.ResponseKindFallback, models.FallbackText},
		{"blank message", map[string]any{"message": " "}, models.ResponseKindFallback, models.FallbackText},
		{"non-string message", map[string]any{"message": 12}, models.ResponseKindFallback, models.FallbackText},
		{"nil map", map[string]any(nil), models.ResponseKindFallback, models.FallbackText},
		{"number", 3.5, models.ResponseKindFallback, models.FallbackText},
		{"integer", 42, models.ResponseKindFallback, models.FallbackText},
		{"bool", true, models.ResponseKindFallback, models.FallbackText},
		{"decoded array", []any{map[string]any{"message": "x"}}, models.ResponseKindFallback, models.FallbackText},
		{"deeply malformed", map[string]any{"response": []any{map[string]any{"x": nil}}, "type": 7}, models.ResponseKindFallback, models.FallbackText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyRaw(tt.payload)
			if got.Kind != tt.wantKind {
				t.Fatalf("kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if got.DisplayText() != tt.wantText {
				t.Errorf("text = %q, want %q", got.DisplayText(), tt.wantText)
			}
		})
	}
}

func TestClassify_LanguageCodeFromNestedResponse(t *testing.T) {
	got := ClassifyRaw(map[string]any{"response": map[string]any{"message": "namaste", "language_code": "hi-IN"}})
	if got.LanguageCode != "hi-IN" {
		t.Errorf("language = %q, want hi-IN", got.LanguageCode)
	}
}

func TestPredicatesAreIndependent(t *testing.T) {
	obj := map[string]any{"message": "hi"}
	if _, ok := matchNestedMessage(obj); ok {
		t.Error("bare message without reminder fields should not match the nested predicate")
	}
	if _, ok := matchStructured(obj); ok {
		t.Error("bare message should not match the structured predicate")
	}
	if resp, ok := matchBareMessage(obj); !ok || resp.Text != "hi" {
		t.Errorf("bare message predicate = %+v, %v", resp, ok)
	}
}
