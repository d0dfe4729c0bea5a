package models

import "strings"

// ReplyKind tags the shape of a normalized backend reply.
type ReplyKind string

const (
	// ReplyKindObject marks a reply that decoded to a JSON object.
	ReplyKindObject ReplyKind = "object"
	// ReplyKindString marks a reply kept as raw text.
	ReplyKindString ReplyKind = "string"
)

// NormalizedReply is the tagged value produced by the payload normalizer.
// Exactly one of Object or Text is meaningful, selected by Kind.
type NormalizedReply struct {
	Kind   ReplyKind      `json:"kind"`
	Object map[string]any `json:"object,omitempty"`
	Text   string         `json:"text,omitempty"`
}

// ResponseKind tags a classified backend reply.
type ResponseKind string

const (
	ResponseKindStructured ResponseKind = "structured-analysis"
	ResponseKindReminder   ResponseKind = "reminder"
	ResponseKindPlain      ResponseKind = "plain-message"
	ResponseKindFallback   ResponseKind = "fallback"
)

// Fixed texts used when nothing better is available.
const (
	// FallbackText is shown when a reply matches no known shape.
	FallbackText = "Sorry, I couldn't understand the response. Please try again."
	// TransportFailureText is shown when the backend could not be reached.
	TransportFailureText = "Sorry, I'm having trouble responding."
	// VoiceFallbackText is spoken for fallback replies.
	VoiceFallbackText = "Sorry, something went wrong."
)

// PerspectiveKey names one of the four analysis perspectives.
type PerspectiveKey string

const (
	PerspectivePsychological    PerspectiveKey = "psychological"
	PerspectivePhilosophical    PerspectiveKey = "philosophical"
	PerspectiveAutobiographical PerspectiveKey = "autobiographical"
	PerspectiveLogical          PerspectiveKey = "logical"
)

// PerspectiveKeys lists the perspectives in display order.
var PerspectiveKeys = []PerspectiveKey{
	PerspectivePsychological,
	PerspectivePhilosophical,
	PerspectiveAutobiographical,
	PerspectiveLogical,
}

// PerspectiveContent is one section of a structured analysis.
type PerspectiveContent struct {
	Analysis    string   `json:"analysis,omitempty"`
	Perspective string   `json:"perspective,omitempty"`
	Story       string   `json:"story,omitempty"`
	Framework   string   `json:"framework,omitempty"`
	KeyPoints   []string `json:"key_points,omitempty"`
}

// DisplayText returns the first non-empty of analysis, perspective, story and framework.
func (p PerspectiveContent) DisplayText() string {
	for _, s := range []string{p.Analysis, p.Perspective, p.Story, p.Framework} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// IsEmpty reports whether the section has nothing to display.
func (p PerspectiveContent) IsEmpty() bool {
	if p.DisplayText() != "" {
		return false
	}
	for _, kp := range p.KeyPoints {
		if strings.TrimSpace(kp) != "" {
			return false
		}
	}
	return true
}

// StructuredAnalysis is a four-perspective breakdown of a reply.
type StructuredAnalysis struct {
	Sections  map[PerspectiveKey]PerspectiveContent `json:"sections"`
	VoiceText string                                `json:"voice_text,omitempty"`
}

// ReminderDirective asks the client to show a message now and notify later.
type ReminderDirective struct {
	DisplayText      string `json:"display_text"`
	ReminderTimeExpr string `json:"reminder_time,omitempty"`
	ReminderText     string `json:"reminder_text,omitempty"`
}

// Schedulable reports whether the directive carries enough to arm a reminder.
func (d ReminderDirective) Schedulable() bool {
	return strings.TrimSpace(d.ReminderTimeExpr) != "" && strings.TrimSpace(d.ReminderText) != ""
}

// ClassifiedResponse is the tagged union produced by the response classifier.
// Kind selects which of the payload fields is set; Text carries the display
// text for plain and fallback replies.
type ClassifiedResponse struct {
	Kind         ResponseKind        `json:"kind"`
	Text         string              `json:"text,omitempty"`
	Structured   *StructuredAnalysis `json:"structured,omitempty"`
	Reminder     *ReminderDirective  `json:"reminder,omitempty"`
	LanguageCode string              `json:"language_code,omitempty"`
}

// DisplayText returns the text rendered into the transcript for this reply.
func (c ClassifiedResponse) DisplayText() string {
	switch c.Kind {
	case ResponseKindReminder:
		if c.Reminder != nil {
			return c.Reminder.DisplayText
		}
	case ResponseKindStructured:
		if c.Structured != nil {
			var parts []string
			for _, key := range PerspectiveKeys {
				if text := c.Structured.Sections[key].DisplayText(); text != "" {
					parts = append(parts, text)
				}
			}
			return strings.Join(parts, "\n\n")
		}
	}
	return c.Text
}

// NewPlainMessage builds a plain chat reply.
func NewPlainMessage(text string) ClassifiedResponse {
	return ClassifiedResponse{Kind: ResponseKindPlain, Text: text}
}

// NewFallbackMessage builds the fixed fallback reply.
func NewFallbackMessage() ClassifiedResponse {
	return ClassifiedResponse{Kind: ResponseKindFallback, Text: FallbackText}
}
