package config

import "time"

// Application constants
const (
	AppName = "massupload"

	// EnvPrefix namespaces every environment variable, e.g. MASSUPLOAD_SERVER_PORT.
	EnvPrefix = "MASSUPLOAD"
	// ConfigFileEnv names the YAML file to load. When unset DefaultConfigFile
	// is read if it exists.
	ConfigFileEnv     = "MASSUPLOAD_CONFIG_FILE"
	DefaultConfigFile = "config.yaml"
	DefaultEnvFile    = ".env"

	// Upload limits
	DefaultMaxFileBytes = 20 << 20
	DefaultWorkers      = 2
	DefaultQueueSize    = 32
	DefaultResultsDir   = "data/results"
	DefaultDatabaseDSN  = "data/massupload.db"
	DefaultHistoryLimit = 50

	// Network timeouts
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 2 * time.Minute
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	WebSocketPingPeriod    = 30 * time.Second
	WebSocketPongWait      = 60 * time.Second
)
