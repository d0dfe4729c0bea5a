package models

import "time"

// Sender identifies who authored a transcript entry.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatEntry is one line of the visible transcript.
type ChatEntry struct {
	ID       string              `json:"id"`
	TurnID   string              `json:"turn_id"`
	Sender   Sender              `json:"sender"`
	Text     string              `json:"text"`
	Response *ClassifiedResponse `json:"response,omitempty"`
	Time     time.Time           `json:"time"`
}
