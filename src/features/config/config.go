package config

import "time"

// Config holds the application configuration.
type Config struct {
	Root      string     `yaml:"root" validate:"required"`
	LockDir   string     `yaml:"lock_dir"`
	Rules     []TypeRule `yaml:"rules" validate:"dive"`
	Projects  []string   `yaml:"projects" validate:"dive,required"`
	Exclude   Exclude    `yaml:"exclude"`
	Watcher   Watcher    `yaml:"watcher"`
	OCR       OCR        `yaml:"ocr"`
	Logger    Logger     `yaml:"logger"`
	Server    Server     `yaml:"server"`
	Jobs      Jobs       `yaml:"jobs"`
	Telegram  Telegram   `yaml:"telegram"`
	Reporting Reporting  `yaml:"reporting"`
}

// TypeRule maps a sniffed type fragment to a destination folder. Order matters.
type TypeRule struct {
	Type     string `yaml:"type" validate:"required"`
	Category string `yaml:"category" validate:"required"`
}

// Exclude lists names that are never classified or watched.
type Exclude struct {
	MetadataNames []string `yaml:"metadata_names"`
}

// Watcher holds the stability detection settings.
type Watcher struct {
	Retries        int           `yaml:"retries" validate:"min=1"`
	Interval       time.Duration `yaml:"interval" validate:"required"`
	AutoStart      bool          `yaml:"auto_start"`
	SweepOnStart   bool          `yaml:"sweep_on_start"`
	IgnoreSuffixes []string      `yaml:"ignore_suffixes"`
}

// OCR configures the tesseract based text extractor
type OCR struct {
	Enabled   bool          `yaml:"enabled"`
	Binary    string        `yaml:"binary"`
	Languages string        `yaml:"languages"`
	MinWidth  int           `yaml:"min_width"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxPixels int64         `yaml:"max_pixels"`
}

// Logger holds the configuration for the app logging
type Logger struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json logfmt"`
}

// Server hold the configuration for the Fiber server Config
type Server struct {
	Enabled     bool   `yaml:"enabled"`
	PrintRoutes bool   `yaml:"show_routes"`
	Port        uint32 `yaml:"port"`
}

type Jobs struct {
	Log      bool          `yaml:"log"`
	LogPath  string        `yaml:"log_path"`
	Webhooks WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	Enabled  bool     `yaml:"enabled"`
	JobTypes []string `yaml:"job_types"`
	Command  string   `yaml:"command"`
}

// Telegram configures the bot. Results are pushed to ChatID when it is set;
// commands are accepted only from AllowedUsers.
type Telegram struct {
	Enabled      bool     `yaml:"enabled"`
	Token        string   `yaml:"token"`
	ChatID       int64    `yaml:"chat_id"`
	AllowedUsers []string `yaml:"allowed_users"`
}

// Reporting sizes the outbound result queue and the in-memory history.
type Reporting struct {
	QueueSize   int `yaml:"queue_size"`
	HistorySize int `yaml:"history_size"`
}
