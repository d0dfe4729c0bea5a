package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/api"
	"github.com/BTreeMap/ReplyPipe/internal/chat"
	"github.com/BTreeMap/ReplyPipe/internal/device"
	"github.com/BTreeMap/ReplyPipe/internal/genai"
	"github.com/BTreeMap/ReplyPipe/internal/lockfile"
	"github.com/BTreeMap/ReplyPipe/internal/notify"
	"github.com/BTreeMap/ReplyPipe/internal/remind"
	"github.com/BTreeMap/ReplyPipe/internal/scheduler"
	"github.com/BTreeMap/ReplyPipe/internal/store"
	"github.com/BTreeMap/ReplyPipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/ReplyPipe/internal/voice"
	"github.com/BTreeMap/ReplyPipe/internal/whatsapp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping ReplyPipe", "state_dir", *flags.stateDir, "api_addr", *flags.apiAddr)
	runErr := run(flags)
	lock.Release()
	if runErr != nil {
		slog.Error("ReplyPipe failed to run", "error", runErr)
		os.Exit(1)
	}
	slog.Info("ReplyPipe exited successfully")
}

// run wires every component and serves the API until a termination signal.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !validNotifyChannel(*flags.notifyChannel) {
		return fmt.Errorf("unknown notify channel %q", *flags.notifyChannel)
	}

	st, err := store.Open(buildStoreOptions(flags)...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	tracker := device.NewTracker(st)
	if profile, err := tracker.Visit(); err != nil {
		slog.Warn("Failed to record visit", "error", err)
	} else {
		slog.Info("Device profile loaded", "device_id", profile.ID, "visit_count", profile.VisitCount)
	}

	gen, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return fmt.Errorf("failed to create language model client: %w", err)
	}

	perms := notify.NewPermissionStore(st)
	banner := notify.NewBanner(os.Stdout, time.Duration(*flags.bannerSeconds)*time.Second)
	notifyOpts := []notify.DispatcherOption{notify.WithReceipts(st)}
	platform, closePlatform, err := openPlatform(ctx, flags)
	if err != nil {
		return err
	}
	defer closePlatform()
	if platform != nil {
		notifyOpts = append(notifyOpts, notify.WithPlatform(*flags.notifyChannel, platform, *flags.notifyRecipient))
	}
	dispatcher := notify.NewDispatcher(perms, banner, notify.NewAlert(os.Stdout), notifyOpts...)
	if dispatcher.HasPlatform() {
		slog.Info("Reminders deliver on the platform when permitted", "channel", *flags.notifyChannel, "permission", perms.Get())
	} else {
		slog.Info("No platform channel configured; reminders use the desktop alert")
	}

	timer := remind.NewSimpleTimer()
	defer timer.Stop()
	reminders := remind.NewScheduler(timer, dispatcher, remind.WithRepo(st))
	if n, err := reminders.Recover(ctx); err != nil {
		slog.Warn("Failed to recover pending reminders", "error", err)
	} else if n > 0 {
		slog.Info("Recovered pending reminders", "count", n)
	}

	cron := scheduler.NewScheduler()
	defer cron.Stop()
	if err := scheduler.NewHousekeeper(st, scheduler.DefaultRetention).Register(cron, scheduler.DefaultPurgeExpr); err != nil {
		return err
	}

	sessOpts := []chat.Option{chat.WithReminders(reminders), chat.WithFeatureTracker(tracker)}
	if *flags.voice {
		player := voice.NewFilePlayer(filepath.Join(*flags.stateDir, "speech"))
		sessOpts = append(sessOpts, chat.WithSpeaker(voice.NewDispatcher(gen, player)))
	}
	session := chat.NewSession(gen, sessOpts...)

	apiOpts := append(buildAPIOptions(flags),
		api.WithReminders(reminders),
		api.WithHistory(st),
		api.WithBanner(banner),
		api.WithPermissions(perms),
		api.WithProfiler(tracker),
	)
	server := api.NewServer(session, apiOpts...)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server stopped: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API server shutdown incomplete", "error", err)
	}
	session.Wait()
	return nil
}

// openPlatform connects the configured platform reminder channel. With no
// channel it returns a nil sender.
func openPlatform(ctx context.Context, flags Flags) (notify.Sender, func(), error) {
	noop := func() {}
	if *flags.notifyChannel != "" && *flags.notifyRecipient == "" {
		slog.Warn("Notify channel set without a recipient; platform reminders disabled", "channel", *flags.notifyChannel)
		return nil, noop, nil
	}

	switch *flags.notifyChannel {
	case notify.ChannelWhatsApp:
		wa, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(flags)...)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to start WhatsApp client: %w", err)
		}
		return wa, wa.Close, nil
	case notify.ChannelTwilio:
		tw, err := twiliowhatsapp.NewClient(buildTwilioOptions(flags)...)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		return tw, noop, nil
	}
	return nil, noop, nil
}
