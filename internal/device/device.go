// Package device keeps the per-installation identity, visit counter and
// feature usage in the key/value store.
package device

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/BTreeMap/ReplyPipe/internal/notify"
	"github.com/google/uuid"
)

// KV keys owned by this package.
const (
	KeyID         = "device.id"
	KeyVisitCount = "device.visit_count"
	KeyFeatures   = "device.features"
)

// Features recorded by Use.
const (
	FeatureChat          = "chat"
	FeatureVoice         = "voice"
	FeatureGoalBreakdown = "goal_breakdown"
	FeatureReminder      = "reminder"
)

// KV is the storage the profile lives in.
type KV interface {
	GetValue(key string) (string, bool, error)
	SetValue(key, value string) error
}

// Profile is a snapshot of the device state.
type Profile struct {
	ID                     string   `json:"device_id"`
	VisitCount             int      `json:"visit_count"`
	Features               []string `json:"features"`
	NotificationPermission string   `json:"notification_permission"`
}

// Tracker reads and updates the device profile.
type Tracker struct {
	kv KV
	mu sync.Mutex
}

func NewTracker(kv KV) *Tracker {
	return &Tracker{kv: kv}
}

// Visit records one start of the application, assigning a device id on the
// first one.
func (t *Tracker) Visit() (Profile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.ensureID(); err != nil {
		return Profile{}, err
	}
	count, err := t.visitCount()
	if err != nil {
		return Profile{}, err
	}
	if err := t.kv.SetValue(KeyVisitCount, strconv.Itoa(count+1)); err != nil {
		return Profile{}, fmt.Errorf("failed to store visit count: %w", err)
	}
	return t.profile()
}

// Use marks feature as used. Repeated use is recorded once.
func (t *Tracker) Use(feature string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	features, err := t.features()
	if err != nil {
		return err
	}
	i := sort.SearchStrings(features, feature)
	if i < len(features) && features[i] == feature {
		return nil
	}
	features = append(features, "")
	copy(features[i+1:], features[i:])
	features[i] = feature

	raw, err := json.Marshal(features)
	if err != nil {
		return err
	}
	if err := t.kv.SetValue(KeyFeatures, string(raw)); err != nil {
		return fmt.Errorf("failed to store features: %w", err)
	}
	slog.Debug("Tracker.Use: feature recorded", "feature", feature)
	return nil
}

// Profile returns the current profile.
func (t *Tracker) Profile() (Profile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.profile()
}

func (t *Tracker) profile() (Profile, error) {
	id, _, err := t.kv.GetValue(KeyID)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read device id: %w", err)
	}
	count, err := t.visitCount()
	if err != nil {
		return Profile{}, err
	}
	features, err := t.features()
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:                     id,
		VisitCount:             count,
		Features:               features,
		NotificationPermission: string(notify.NewPermissionStore(t.kv).Get()),
	}, nil
}

func (t *Tracker) ensureID() (string, error) {
	id, ok, err := t.kv.GetValue(KeyID)
	if err != nil {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := t.kv.SetValue(KeyID, id); err != nil {
		return "", fmt.Errorf("failed to store device id: %w", err)
	}
	slog.Info("Tracker: new device id assigned", "device_id", id)
	return id, nil
}

func (t *Tracker) visitCount() (int, error) {
	raw, ok, err := t.kv.GetValue(KeyVisitCount)
	if err != nil {
		return 0, fmt.Errorf("failed to read visit count: %w", err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Tracker: corrupt visit count, restarting from zero", "value", raw)
		return 0, nil
	}
	return n, nil
}

func (t *Tracker) features() ([]string, error) {
	raw, ok, err := t.kv.GetValue(KeyFeatures)
	if err != nil {
		return nil, fmt.Errorf("failed to read features: %w", err)
	}
	features := []string{}
	if !ok {
		return features, nil
	}
	if err := json.Unmarshal([]byte(raw), &features); err != nil {
		slog.Warn("Tracker: corrupt feature list, resetting", "error", err)
		return []string{}, nil
	}
	sort.Strings(features)
	return features, nil
}
