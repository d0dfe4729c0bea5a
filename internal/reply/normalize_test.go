package reply

import (
	"encoding/json"
	"testing"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		wantKind models.ReplyKind
		wantText string
	}{
		{"nil", nil, models.ReplyKindString, ""},
		{"plain string", "hello there", models.ReplyKindString, "hello there"},
		{"object string", `{"message":"hi"}`, models.ReplyKindObject, ""},
		{"padded object string", "  {\"message\":\"hi\"}\n", models.ReplyKindObject, ""},
		{"malformed object string", `{"message": "hi"`, models.ReplyKindString, `{"message": "hi"`},
		{"array string", `[1,2,3]`, models.ReplyKindString, `[1,2,3]`},
		{"bytes", []byte(`{"message":"hi"}`), models.ReplyKindObject, ""},
		{"raw message", json.RawMessage(`"quoted"`), models.ReplyKindString, `"quoted"`},
		{"map", map[string]any{"message": "hi"}, models.ReplyKindObject, ""},
		{"number", 42, models.ReplyKindString, ""},
		{"bool", true, models.ReplyKindString, ""},
		{"slice", []string{"a"}, models.ReplyKindString, ""},
		{"unencodable", make(chan int), models.ReplyKindString, ""},
		{"struct", struct {
			Message string `json:"message"`
		}{"typed"}, models.ReplyKindObject, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			if got.Kind != tt.wantKind {
				t.Fatalf("kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if got.Kind == models.ReplyKindString && got.Text != tt.wantText {
				t.Errorf("text = %q, want %q", got.Text, tt.wantText)
			}
			if got.Kind == models.ReplyKindObject && got.Object == nil {
				t.Error("expected decoded object")
			}
		})
	}
}

func TestNormalize_UnwrapsOnlyOneLevel(t *testing.T) {
	// A JSON string literal that itself contains an object stays a string.
	inner := `{"message":"hi"}`
	encoded, _ := json.Marshal(inner)
	got := Normalize(string(encoded))
	if got.Kind != models.ReplyKindString || got.Text != string(encoded) {
		t.Errorf("expected verbatim string, got %+v", got)
	}
}

func TestNormalize_PassesThroughNormalizedReply(t *testing.T) {
	in := models.NormalizedReply{Kind: models.ReplyKindString, Text: "x"}
	if got := Normalize(in); got.Text != "x" || got.Kind != models.ReplyKindString {
		t.Errorf("unexpected %+v", got)
	}
}

func TestNormalizeJSON(t *testing.T) {
	got := NormalizeJSON([]byte(`{"status":"success"}`))
	if got.Kind != models.ReplyKindObject || got.Object["status"] != "success" {
		t.Errorf("unexpected %+v", got)
	}
}
