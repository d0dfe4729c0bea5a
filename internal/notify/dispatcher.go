package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// ReceiptRecorder stores the outcome of each delivery attempt.
type ReceiptRecorder interface {
	AddReceipt(r models.Receipt) error
}

// Dispatcher picks exactly one channel for a fired reminder. A platform
// sender is used when one is configured and permission is granted. Otherwise
// a banner is shown if a platform exists, or a blocking alert if none does. A
// failed platform send falls back to the banner.
type Dispatcher struct {
	perms     *PermissionStore
	platform  Sender
	channel   string
	recipient string
	banner    *Banner
	alert     *Alert
	receipts  ReceiptRecorder
	now       func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPlatform sends reminders to recipient through s, reported as channel.
func WithPlatform(channel string, s Sender, recipient string) DispatcherOption {
	return func(d *Dispatcher) {
		d.platform = s
		d.channel = channel
		d.recipient = recipient
	}
}

// WithReceipts records every delivery attempt.
func WithReceipts(r ReceiptRecorder) DispatcherOption {
	return func(d *Dispatcher) { d.receipts = r }
}

// NewDispatcher creates a Dispatcher; banner and alert are the fallback tiers.
func NewDispatcher(perms *PermissionStore, banner *Banner, alert *Alert, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		perms:  perms,
		banner: banner,
		alert:  alert,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HasPlatform reports whether a platform sender is configured.
func (d *Dispatcher) HasPlatform() bool {
	return d.platform != nil
}

// Deliver shows r through one channel and returns that channel's name.
func (d *Dispatcher) Deliver(ctx context.Context, r models.ReminderSchedule) string {
	if d.platform == nil {
		d.alert.Show(ReminderTitle, r.Text)
		d.record(r.ID, ChannelAlert, models.MessageStatusSent)
		return ChannelAlert
	}

	if perm := d.perms.Get(); perm == PermissionGranted {
		body := ReminderTitle + ": " + r.Text
		err := d.platform.SendMessage(ctx, d.recipient, body)
		if err == nil {
			d.record(r.ID, d.channel, models.MessageStatusSent)
			return d.channel
		}
		slog.Warn("Dispatcher.Deliver: platform send failed, falling back to banner",
			"id", r.ID, "channel", d.channel, "error", err)
		d.record(r.ID, d.channel, models.MessageStatusFailed)
	} else {
		slog.Debug("Dispatcher.Deliver: notification permission not granted", "permission", perm)
	}

	d.banner.Show(ReminderTitle, r.Text)
	d.record(r.ID, ChannelBanner, models.MessageStatusSent)
	return ChannelBanner
}

func (d *Dispatcher) record(id, channel string, status models.MessageStatus) {
	if d.receipts == nil {
		return
	}
	err := d.receipts.AddReceipt(models.Receipt{
		ReminderID: id,
		Channel:    channel,
		Status:     status,
		Time:       d.now().Unix(),
	})
	if err != nil {
		slog.Error("Dispatcher.record: failed to store receipt", "id", id, "error", err)
	}
}
