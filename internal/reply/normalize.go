// Package reply turns arbitrary backend replies into classified responses.
//
// Normalization coerces whatever arrived from the network boundary into a
// tagged object-or-string value; classification runs a fixed, ordered chain of
// pure predicates over that value and always yields exactly one response kind.
package reply

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// Normalize coerces a backend payload into a NormalizedReply. It never fails:
// strings are decoded at most once and kept verbatim when they do not decode
// to a JSON object.
func Normalize(raw any) models.NormalizedReply {
	switch v := raw.(type) {
	case nil:
		return models.NormalizedReply{Kind: models.ReplyKindString}
	case models.NormalizedReply:
		return v
	case map[string]any:
		return models.NormalizedReply{Kind: models.ReplyKindObject, Object: v}
	case string:
		return normalizeString(v)
	case []byte:
		return normalizeString(string(v))
	case json.RawMessage:
		return normalizeString(string(v))
	}

	// Anything else goes through one JSON round trip so typed envelopes still
	// classify by their field names. Values that are not objects (numbers,
	// booleans, arrays) carry no displayable text.
	data, err := json.Marshal(raw)
	if err != nil {
		slog.Debug("reply.Normalize: payload not encodable", "type", fmt.Sprintf("%T", raw), "error", err)
		return models.NormalizedReply{Kind: models.ReplyKindString}
	}
	if n := normalizeString(string(data)); n.Kind == models.ReplyKindObject {
		return n
	}
	slog.Debug("reply.Normalize: non-object payload dropped", "type", fmt.Sprintf("%T", raw))
	return models.NormalizedReply{Kind: models.ReplyKindString}
}

// NormalizeJSON is a convenience wrapper for raw response bodies.
func NormalizeJSON(body []byte) models.NormalizedReply {
	return normalizeString(string(body))
}

func normalizeString(s string) models.NormalizedReply {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") {
		return models.NormalizedReply{Kind: models.ReplyKindString, Text: s}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil || obj == nil {
		slog.Debug("reply.Normalize: string payload is not a JSON object", "error", err)
		return models.NormalizedReply{Kind: models.ReplyKindString, Text: s}
	}
	return models.NormalizedReply{Kind: models.ReplyKindObject, Object: obj}
}
