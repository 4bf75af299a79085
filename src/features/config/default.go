package config

import "time"

// createDefaultConfig creates a new Config with sensible default values
func createDefaultConfig() *Config {
	return &Config{
		Root: "./Desktop",
		Rules: []TypeRule{
			{Type: "image", Category: "Media/Images"},
			{Type: "video", Category: "Media/Videos"},
			{Type: "audio", Category: "Media/Audio"},
			{Type: "application/pdf", Category: "Documents/PDFs"},
			{Type: "application/zip", Category: "Archives"},
			{Type: "text/plain", Category: "Documents/Text"},
			{Type: "application/x-dosexec", Category: "Installers"},
			{Type: "application/vnd.microsoft.portable-executable", Category: "Installers"},
			{Type: "application/x-mach-binary", Category: "Installers"},
		},
		Projects: []string{"Physics", "Finance", "Resume", "Invoice", "Project_Alpha"},
		Exclude: Exclude{
			MetadataNames: []string{".DS_Store", "desktop.ini", "Thumbs.db"},
		},
		Watcher: Watcher{
			Retries:        5,
			Interval:       time.Second,
			AutoStart:      true,
			SweepOnStart:   false,
			IgnoreSuffixes: []string{".tmp", ".part", ".crdownload", ".download"},
		},
		OCR: OCR{
			Enabled:   true,
			Binary:    "tesseract",
			Languages: "eng",
			MinWidth:  1000,
			Timeout:   30 * time.Second,
			MaxPixels: 50_000_000,
		},
		Logger: Logger{
			Level:  "info",
			Format: "",
		},
		Server: Server{
			Enabled:     false,
			PrintRoutes: false,
			Port:        3636,
		},
		Jobs: Jobs{
			Log:     true,
			LogPath: "./logs/jobs",
			Webhooks: WebhookConfig{
				Enabled:  false,
				JobTypes: []string{},
				Command:  "",
			},
		},
		Telegram: Telegram{
			Enabled:      false,
			Token:        "", // Can be obtained with https://t.me/BotFather
			ChatID:       0,
			AllowedUsers: []string{},
		},
		Reporting: Reporting{
			QueueSize:   64,
			HistorySize: 200,
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	def := createDefaultConfig()
	if cfg.Rules == nil {
		cfg.Rules = def.Rules
	}
	if cfg.Projects == nil {
		cfg.Projects = def.Projects
	}
	if cfg.Watcher.Retries == 0 {
		cfg.Watcher.Retries = def.Watcher.Retries
	}
	if cfg.Watcher.Interval == 0 {
		cfg.Watcher.Interval = def.Watcher.Interval
	}
	if cfg.Watcher.IgnoreSuffixes == nil {
		cfg.Watcher.IgnoreSuffixes = def.Watcher.IgnoreSuffixes
	}
	if cfg.Exclude.MetadataNames == nil {
		cfg.Exclude.MetadataNames = def.Exclude.MetadataNames
	}
	if cfg.OCR.Binary == "" {
		cfg.OCR.Binary = def.OCR.Binary
	}
	if cfg.OCR.Languages == "" {
		cfg.OCR.Languages = def.OCR.Languages
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = def.OCR.Timeout
	}
	if cfg.OCR.MaxPixels <= 0 {
		cfg.OCR.MaxPixels = def.OCR.MaxPixels
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Jobs.LogPath == "" {
		cfg.Jobs.LogPath = def.Jobs.LogPath
	}
	if cfg.Reporting.QueueSize <= 0 {
		cfg.Reporting.QueueSize = def.Reporting.QueueSize
	}
	if cfg.Reporting.HistorySize <= 0 {
		cfg.Reporting.HistorySize = def.Reporting.HistorySize
	}
}
