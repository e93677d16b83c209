package config

import (
	"os"
	"time"
)

// Settings is the fully resolved service configuration.
type Settings struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// RecordsPath is the SQLite file backing products and orders.
	// ":memory:" keeps everything in process.
	RecordsPath string

	// QueuePath is the SQLite file backing the durable queue.
	QueuePath string

	// EventLogPath is the SQLite file backing the audit log.
	EventLogPath string

	// MaxReceiveCount is how many deliveries a queue message gets before
	// quarantine.
	MaxReceiveCount int

	// VisibilityTimeout is the queue's delivery lease.
	VisibilityTimeout time.Duration

	// DeadLetterRetention is how long quarantined messages are kept.
	DeadLetterRetention time.Duration

	// BatchSize caps one consumer dispatch.
	BatchSize int

	// MaxBatchingWindow bounds how long a non-full batch waits.
	MaxBatchingWindow time.Duration

	// ReaperInterval is how often expired audit entries are purged.
	ReaperInterval time.Duration
}

// DefaultSettings returns the production tuning.
func DefaultSettings() Settings {
	return Settings{
		ListenAddr:          ":8080",
		LogLevel:            "info",
		RecordsPath:         "storefront.db",
		QueuePath:           "queue.db",
		EventLogPath:        "eventlog.db",
		MaxReceiveCount:     3,
		VisibilityTimeout:   5 * time.Minute,
		DeadLetterRetention: 10 * 24 * time.Hour,
		BatchSize:           5,
		MaxBatchingWindow:   60 * time.Second,
		ReaperInterval:      30 * time.Second,
	}
}

// SettingsFrom resolves Settings from a parsed config, falling back to
// defaults for anything unset.
func SettingsFrom(cfg Config) Settings {
	def := DefaultSettings()

	server := cfg.Section("server")
	storage := cfg.Section("storage")
	queue := cfg.Section("queue")
	consumer := cfg.Section("consumer")
	eventLog := cfg.Section("event_log")

	return Settings{
		ListenAddr:          server.String("listen_addr", def.ListenAddr),
		LogLevel:            server.String("log_level", def.LogLevel),
		RecordsPath:         storage.String("records_path", def.RecordsPath),
		QueuePath:           storage.String("queue_path", def.QueuePath),
		EventLogPath:        storage.String("event_log_path", def.EventLogPath),
		MaxReceiveCount:     queue.Int("max_receive_count", def.MaxReceiveCount),
		VisibilityTimeout:   queue.Duration("visibility_timeout", def.VisibilityTimeout),
		DeadLetterRetention: queue.Duration("dead_letter_retention", def.DeadLetterRetention),
		BatchSize:           consumer.Int("batch_size", def.BatchSize),
		MaxBatchingWindow:   consumer.Duration("max_batching_window", def.MaxBatchingWindow),
		ReaperInterval:      eventLog.Duration("reaper_interval", def.ReaperInterval),
	}
}

// Load resolves Settings from an optional config file path. An empty
// path or a missing file yields the defaults; an unreadable or invalid
// file is an error. Environment variables STOREFRONT_LISTEN_ADDR and
// STOREFRONT_LOG_LEVEL override the file.
func Load(path string) (Settings, error) {
	settings := DefaultSettings()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			cfg, err := FromFile(path)
			if err != nil {
				return Settings{}, err
			}
			settings = SettingsFrom(cfg)
		}
	}

	if addr := os.Getenv("STOREFRONT_LISTEN_ADDR"); addr != "" {
		settings.ListenAddr = addr
	}
	if level := os.Getenv("STOREFRONT_LOG_LEVEL"); level != "" {
		settings.LogLevel = level
	}
	return settings, nil
}
