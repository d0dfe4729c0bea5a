// Package outline carves an ordered plan of steps and checkpoints out of
// free-form goal-breakdown text.
//
// Extraction runs an ordered chain of strategies. Each strategy either returns
// at least one step with a valid checkpoint or reports no match; a final
// synthetic strategy guarantees the caller always receives a renderable node.
package outline

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// DebugTitle is the title of the synthetic node emitted when nothing parses.
const DebugTitle = "Could not parse response"

var (
	stepMarkerPattern   = regexp.MustCompile(`(?i)step\s+(\d+):`)
	numberedListPattern = regexp.MustCompile(`(\d+)\.\s+`)
	bulletPrefixPattern = regexp.MustCompile(`^[•\-]\s*`)
)

// strategy returns nil when it finds no step with at least one checkpoint.
type strategy func(text string) []models.OutlineNode

// strategies are tried in order before falling back to the debug node.
var strategies = []struct {
	name string
	run  strategy
}{
	{"step-marker", splitStrategy(stepMarkerPattern)},
	{"numbered-list", splitStrategy(numberedListPattern)},
}

// Extract decomposes plan text into outline nodes. It never returns an empty
// slice and produces the same result for the same input.
func Extract(text string) []models.OutlineNode {
	for _, s := range strategies {
		if nodes := s.run(text); len(nodes) > 0 {
			slog.Debug("outline.Extract: strategy matched", "strategy", s.name, "steps", len(nodes))
			return nodes
		}
	}
	slog.Warn("outline.Extract: no step structure found, emitting debug node", "text_length", len(text))
	return debugNodes(text)
}

// splitStrategy splits text on marker, treating everything between two
// markers as one step segment.
func splitStrategy(marker *regexp.Regexp) strategy {
	return func(text string) []models.OutlineNode {
		matches := marker.FindAllStringSubmatchIndex(text, -1)
		var nodes []models.OutlineNode
		for i, m := range matches {
			label := text[m[2]:m[3]]
			end := len(text)
			if i+1 < len(matches) {
				end = matches[i+1][0]
			}
			segment := text[m[1]:end]

			id := len(nodes) + 1
			title, checkpoints := parseSegment(segment, label)
			if len(checkpoints) == 0 {
				continue
			}
			nodes = append(nodes, newNode(id, title, checkpoints))
		}
		return nodes
	}
}

// parseSegment returns the segment's title and its retained checkpoint texts.
func parseSegment(segment, label string) (string, []string) {
	lines := strings.Split(strings.TrimSpace(segment), "\n")
	title := strings.TrimSpace(lines[0])
	if title == "" {
		title = "Step " + label
	}

	var checkpoints []string
	for _, line := range lines {
		clean := strings.TrimSpace(line)
		if !strings.HasPrefix(clean, "•") && !strings.HasPrefix(clean, "-") {
			continue
		}
		text := strings.TrimSpace(bulletPrefixPattern.ReplaceAllString(clean, ""))
		if utf8.RuneCountInString(text) <= models.MinCheckpointLength {
			continue
		}
		checkpoints = append(checkpoints, text)
		if len(checkpoints) == models.MaxCheckpointsPerStep {
			break
		}
	}
	return title, checkpoints
}

func newNode(id int, title string, texts []string) models.OutlineNode {
	node := models.OutlineNode{ID: id, Title: title, Checkpoints: make([]models.OutlineCheckpoint, 0, len(texts))}
	for i, text := range texts {
		node.Checkpoints = append(node.Checkpoints, models.OutlineCheckpoint{
			ID:   checkpointID(id, i+1),
			Text: text,
		})
	}
	return node
}

func checkpointID(stepID, index int) string {
	return fmt.Sprintf("%d.%d", stepID, index)
}

// debugNodes wraps a bounded excerpt of the raw text in a single node.
func debugNodes(text string) []models.OutlineNode {
	excerpt := text
	if utf8.RuneCountInString(text) > models.DebugExcerptLength {
		excerpt = string([]rune(text)[:models.DebugExcerptLength]) + "..."
	}
	if strings.TrimSpace(excerpt) == "" {
		excerpt = "(empty response)"
	}
	return []models.OutlineNode{{
		ID:    1,
		Title: DebugTitle,
		Checkpoints: []models.OutlineCheckpoint{{
			ID:    checkpointID(1, 1),
			Text:  excerpt,
			Debug: true,
		}},
	}}
}
