package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	UploadDir    string `mapstructure:"upload_dir" yaml:"upload_dir"`
	// MaxUploadSize caps a single uploaded file, in bytes.
	MaxUploadSize int64 `mapstructure:"max_upload_size" yaml:"max_upload_size"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// HistoryLimit is how many recent messages are replayed on room join.
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`
	// WSMessageLimit caps inbound websocket events per connection per minute.
	// Zero disables the limit.
	WSMessageLimit int `mapstructure:"ws_message_limit" yaml:"ws_message_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":3000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "fileflow.db",
		UploadDir:         "storage/uploads",
		MaxUploadSize:     32 << 20,
		JWTSecret:         "fileflow-secret-change-me",
		JWTIssuer:         "fileflow",
		JWTAudience:       "fileflow",
		TokenTTL:          24 * time.Hour,
		LogLevel:          "info",
		HistoryLimit:      50,
		WSMessageLimit:    120,
	}
}
