package models

// Outline limits.
const (
	// MaxCheckpointsPerStep caps the checkpoints kept for one step.
	MaxCheckpointsPerStep = 4
	// MinCheckpointLength is the exclusive lower bound on a checkpoint's trimmed length.
	MinCheckpointLength = 10
	// DebugExcerptLength bounds the raw text carried by the debug node.
	DebugExcerptLength = 500
)

// OutlineCheckpoint is one actionable item beneath a step.
type OutlineCheckpoint struct {
	ID    string `json:"id"` // "<stepId>.<index>"
	Text  string `json:"text"`
	Done  bool   `json:"done"`
	Debug bool   `json:"debug,omitempty"`
}

// OutlineNode is one step of a decomposed goal plan.
type OutlineNode struct {
	ID          int                 `json:"id"`
	Title       string              `json:"title"`
	Done        bool                `json:"done"`
	Checkpoints []OutlineCheckpoint `json:"checkpoints"`
}
