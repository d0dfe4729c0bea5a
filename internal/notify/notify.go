// Package notify delivers fired reminders to the user, preferring a messaging
// platform and falling back to in-terminal banners or alerts.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// Delivery channels reported by Dispatcher.Deliver.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelTwilio   = "twilio"
	ChannelBanner   = "banner"
	ChannelAlert    = "alert"
)

// ReminderTitle heads every delivered reminder.
const ReminderTitle = "⏰ Reminder"

// PermissionKey is the KV key holding the notification permission.
const PermissionKey = "notify.permission"

// Sender pushes a text message to a recipient on some platform.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// KV is the storage the permission state lives in.
type KV interface {
	GetValue(key string) (string, bool, error)
	SetValue(key, value string) error
}

// Permission is the user's answer to the notification prompt.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission validates a permission string.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(strings.ToLower(strings.TrimSpace(s))); p {
	case PermissionDefault, PermissionGranted, PermissionDenied:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrInvalidPermission, s)
	}
}

// PermissionStore reads and writes the notification permission.
type PermissionStore struct {
	kv KV
}

func NewPermissionStore(kv KV) *PermissionStore {
	return &PermissionStore{kv: kv}
}

// Get returns the stored permission, or PermissionDefault when nothing valid
// is stored.
func (p *PermissionStore) Get() Permission {
	v, ok, err := p.kv.GetValue(PermissionKey)
	if err != nil {
		slog.Warn("PermissionStore.Get: read failed, treating as default", "error", err)
		return PermissionDefault
	}
	if !ok {
		return PermissionDefault
	}
	perm, err := ParsePermission(v)
	if err != nil {
		slog.Warn("PermissionStore.Get: invalid stored value", "value", v)
		return PermissionDefault
	}
	return perm
}

// Set stores perm.
func (p *PermissionStore) Set(perm Permission) error {
	if _, err := ParsePermission(string(perm)); err != nil {
		return err
	}
	if err := p.kv.SetValue(PermissionKey, string(perm)); err != nil {
		return fmt.Errorf("failed to store notification permission: %w", err)
	}
	slog.Info("Notification permission updated", "permission", perm)
	return nil
}
