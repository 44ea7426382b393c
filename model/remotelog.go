package model

// LogLevel is the severity carried by remote log records.
type LogLevel string

const (
	LogLevelDebug LogLevel = "Debug"
	LogLevelInfo  LogLevel = "Info"
	LogLevelWarn  LogLevel = "Warning"
	LogLevelError LogLevel = "Error"
)

// RemoteLogRecords is one batch of log messages shipped to the collector.
type RemoteLogRecords struct {
	Context RemoteLogContext  `json:"context"`
	Logs    []RemoteLogRecord `json:"errors"`
}

// RemoteLogContext describes the emitter of the records.
type RemoteLogContext struct {
	Version       string `json:"version"`             // Agent version
	BundleID      string `json:"bundleId"`            // Integrating application
	DeviceID      string `json:"deviceId,omitempty"`  // Device identifier, if any
	SessionID     string `json:"sessionId"`           // Agent session
	ProfileID     int    `json:"profileId"`           // Integration profile
	ExceptionType string `json:"exception,omitempty"` // Error type that triggered the log
	LogID         string `json:"logId,omitempty"`     // Stable id of the log site
	DeviceOS      string `json:"deviceOs,omitempty"`  // Operating system
	Timestamp     int64  `json:"timestamp,omitempty"` // Unix millis of the first record
}

// RemoteLogRecord is a group of messages sharing a level.
type RemoteLogRecord struct {
	Level    LogLevel `json:"errorType"`
	Messages []string `json:"messages"`
}
