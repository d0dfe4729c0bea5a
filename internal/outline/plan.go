package outline

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/google/uuid"
)

// Plan holds the outline of one goal breakdown and applies completion
// toggles with the step/checkpoint cascade rules.
type Plan struct {
	mu        sync.Mutex
	id        string
	goal      string
	nodes     []models.OutlineNode
	createdAt time.Time
}

// PlanSnapshot is an immutable copy of a plan for rendering.
type PlanSnapshot struct {
	ID        string               `json:"id"`
	Goal      string               `json:"goal"`
	Steps     []models.OutlineNode `json:"steps"`
	Progress  Progress             `json:"progress"`
	Complete  bool                 `json:"complete"`
	CreatedAt time.Time            `json:"created_at"`
}

// Progress summarises how many steps are done.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// NewPlan builds a plan from freshly extracted nodes.
func NewPlan(goal string, nodes []models.OutlineNode) *Plan {
	return &Plan{
		id:        uuid.NewString(),
		goal:      goal,
		nodes:     cloneNodes(nodes),
		createdAt: time.Now(),
	}
}

// ID returns the plan identifier.
func (p *Plan) ID() string { return p.id }

// ToggleStep flips a step. Marking a step done marks all its checkpoints
// done; un-marking leaves the checkpoints as they are.
func (p *Plan) ToggleStep(stepID int) (models.OutlineNode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	node, err := p.find(stepID)
	if err != nil {
		return models.OutlineNode{}, err
	}
	node.Done = !node.Done
	if node.Done {
		for i := range node.Checkpoints {
			node.Checkpoints[i].Done = true
		}
	}
	slog.Debug("Plan.ToggleStep", "plan", p.id, "step", stepID, "done", node.Done)
	return cloneNode(*node), nil
}

// SetStepDone applies an external completion event to a step without
// touching its checkpoints.
func (p *Plan) SetStepDone(stepID int, done bool) (models.OutlineNode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	node, err := p.find(stepID)
	if err != nil {
		return models.OutlineNode{}, err
	}
	node.Done = done
	return cloneNode(*node), nil
}

// ToggleCheckpoint flips one checkpoint; the parent step is done exactly when
// every checkpoint is done.
func (p *Plan) ToggleCheckpoint(stepID int, checkpointID string) (models.OutlineNode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	node, err := p.find(stepID)
	if err != nil {
		return models.OutlineNode{}, err
	}
	found := false
	for i := range node.Checkpoints {
		if node.Checkpoints[i].ID == checkpointID {
			node.Checkpoints[i].Done = !node.Checkpoints[i].Done
			found = true
			break
		}
	}
	if !found {
		return models.OutlineNode{}, models.ErrCheckpointMissing
	}

	allDone := true
	for _, cp := range node.Checkpoints {
		if !cp.Done {
			allDone = false
			break
		}
	}
	node.Done = allDone
	slog.Debug("Plan.ToggleCheckpoint", "plan", p.id, "step", stepID, "checkpoint", checkpointID, "step_done", node.Done)
	return cloneNode(*node), nil
}

// Progress reports completed steps over total steps.
func (p *Plan) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress()
}

// Complete reports whether every step is done.
func (p *Plan) Complete() bool {
	pr := p.Progress()
	return pr.Total > 0 && pr.Completed == pr.Total
}

// Snapshot returns a deep copy suitable for rendering.
func (p *Plan) Snapshot() PlanSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr := p.progress()
	return PlanSnapshot{
		ID:        p.id,
		Goal:      p.goal,
		Steps:     cloneNodes(p.nodes),
		Progress:  pr,
		Complete:  pr.Total > 0 && pr.Completed == pr.Total,
		CreatedAt: p.createdAt,
	}
}

func (p *Plan) progress() Progress {
	pr := Progress{Total: len(p.nodes)}
	for _, n := range p.nodes {
		if n.Done {
			pr.Completed++
		}
	}
	if pr.Total > 0 {
		pr.Percent = int(math.Round(float64(pr.Completed) / float64(pr.Total) * 100))
	}
	return pr
}

func (p *Plan) find(stepID int) (*models.OutlineNode, error) {
	for i := range p.nodes {
		if p.nodes[i].ID == stepID {
			return &p.nodes[i], nil
		}
	}
	return nil, models.ErrStepNotFound
}

func cloneNode(n models.OutlineNode) models.OutlineNode {
	n.Checkpoints = append([]models.OutlineCheckpoint(nil), n.Checkpoints...)
	return n
}

func cloneNodes(nodes []models.OutlineNode) []models.OutlineNode {
	out := make([]models.OutlineNode, len(nodes))
	for i, n := range nodes {
		out[i] = cloneNode(n)
	}
	return out
}

// Registry keeps plans by ID for the lifetime of the process.
type Registry struct {
	mu    sync.RWMutex
	plans map[string]*Plan
}

// NewRegistry creates an empty plan registry.
func NewRegistry() *Registry {
	return &Registry{plans: make(map[string]*Plan)}
}

// Add stores a plan.
func (r *Registry) Add(p *Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[p.ID()] = p
}

// Get returns a plan by ID.
func (r *Registry) Get(id string) (*Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, models.ErrPlanNotFound
	}
	return p, nil
}
