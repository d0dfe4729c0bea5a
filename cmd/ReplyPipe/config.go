package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BTreeMap/ReplyPipe/internal/api"
	"github.com/BTreeMap/ReplyPipe/internal/genai"
	"github.com/BTreeMap/ReplyPipe/internal/notify"
	"github.com/BTreeMap/ReplyPipe/internal/store"
	"github.com/BTreeMap/ReplyPipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/ReplyPipe/internal/util"
	"github.com/BTreeMap/ReplyPipe/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ReplyPipe state data
	DefaultStateDir = "/var/lib/replypipe"
	// DefaultAppDBFileName is the default SQLite database for reminders, receipts and device state
	DefaultAppDBFileName = "replypipe.db"
	// DefaultBannerSeconds is how long a reminder banner stays on screen
	DefaultBannerSeconds = 5
)

// Config holds environment configuration
type Config struct {
	StateDir        string
	DatabaseDSN     string
	WhatsAppDBDSN   string
	OpenAIKey       string
	OpenAIModel     string
	APIAddr         string
	NotifyChannel   string
	NotifyRecipient string
	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string
	VoiceEnabled    bool
	BannerSeconds   int
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	dbDSN           *string
	waDSN           *string
	qrOutput        *string
	numeric         *bool
	openaiKey       *string
	openaiModel     *string
	apiAddr         *string
	notifyChannel   *string
	notifyRecipient *string
	voice           *bool
	bannerSeconds   *int

	// Twilio credentials are env-only.
	twilioSID   string
	twilioToken string
	twilioFrom  string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// defaultWhatsAppDSN is the whatsmeow session database inside stateDir.
func defaultWhatsAppDSN(stateDir string) string {
	return "file:" + filepath.Join(stateDir, whatsapp.DefaultDBFile) + "?_foreign_keys=on"
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:        util.FirstNonEmpty(os.Getenv("REPLYPIPE_STATE_DIR"), DefaultStateDir),
		DatabaseDSN:     os.Getenv("DATABASE_URL"),
		WhatsAppDBDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     os.Getenv("OPENAI_MODEL"),
		APIAddr:         os.Getenv("API_ADDR"),
		NotifyChannel:   strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFY_CHANNEL"))),
		NotifyRecipient: os.Getenv("NOTIFY_RECIPIENT"),
		TwilioSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:      os.Getenv("TWILIO_FROM_NUMBER"),
		VoiceEnabled:    util.ParseBoolEnv("VOICE_ENABLED", true),
		BannerSeconds:   util.ParseIntEnv("BANNER_SECONDS", DefaultBannerSeconds),
	}

	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultAppDBFileName)
		slog.Debug("No DATABASE_URL set, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}
	if config.WhatsAppDBDSN == "" {
		config.WhatsAppDBDSN = defaultWhatsAppDSN(config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"REPLYPIPE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"NOTIFY_CHANNEL", config.NotifyChannel,
		"VOICE_ENABLED", config.VoiceEnabled,
		"BANNER_SECONDS", config.BannerSeconds)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	flags := Flags{
		stateDir:        fs.String("state-dir", config.StateDir, "state directory for ReplyPipe data (overrides $REPLYPIPE_STATE_DIR)"),
		dbDSN:           fs.String("db-dsn", config.DatabaseDSN, "database DSN for reminders and device state (overrides $DATABASE_URL)"),
		waDSN:           fs.String("whatsapp-db-dsn", config.WhatsAppDBDSN, "WhatsApp session database DSN (overrides $WHATSAPP_DB_DSN)"),
		qrOutput:        fs.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:         fs.Bool("numeric-code", false, "print the raw WhatsApp pairing code instead of a QR code"),
		openaiKey:       fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:     fs.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		apiAddr:         fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		notifyChannel:   fs.String("notify-channel", config.NotifyChannel, "platform reminder channel: whatsapp, twilio or empty (overrides $NOTIFY_CHANNEL)"),
		notifyRecipient: fs.String("notify-recipient", config.NotifyRecipient, "phone number that receives platform reminders (overrides $NOTIFY_RECIPIENT)"),
		voice:           fs.Bool("voice", config.VoiceEnabled, "synthesize speech for replies (overrides $VOICE_ENABLED)"),
		bannerSeconds:   fs.Int("banner-seconds", config.BannerSeconds, "seconds a reminder banner stays visible (overrides $BANNER_SECONDS)"),
		twilioSID:       config.TwilioSID,
		twilioToken:     config.TwilioToken,
		twilioFrom:      config.TwilioFrom,
	}
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	// Follow a relocated state dir unless the DSNs were set explicitly.
	if *flags.stateDir != config.StateDir {
		if *flags.dbDSN == filepath.Join(config.StateDir, DefaultAppDBFileName) {
			*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultAppDBFileName)
		}
		if *flags.waDSN == defaultWhatsAppDSN(config.StateDir) {
			*flags.waDSN = defaultWhatsAppDSN(*flags.stateDir)
		}
		slog.Debug("State directory overridden by flag", "state_dir", *flags.stateDir)
	}
	*flags.notifyChannel = strings.ToLower(strings.TrimSpace(*flags.notifyChannel))

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"notifyChannel", *flags.notifyChannel,
		"voice", *flags.voice)
	return flags, nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, will use in-memory store")
		return storeOpts
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	waOpts := []whatsapp.Option{whatsapp.WithDBDSN(*flags.waDSN)}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	return waOpts
}

// buildTwilioOptions constructs Twilio configuration options
func buildTwilioOptions(flags Flags) []twiliowhatsapp.Option {
	return []twiliowhatsapp.Option{
		twiliowhatsapp.WithAccountSID(flags.twilioSID),
		twiliowhatsapp.WithAuthToken(flags.twilioToken),
		twiliowhatsapp.WithFromWhats(flags.twilioFrom),
	}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}

// validNotifyChannel reports whether channel names a platform tier, or none.
func validNotifyChannel(channel string) bool {
	switch channel {
	case "", notify.ChannelWhatsApp, notify.ChannelTwilio:
		return true
	}
	return false
}
