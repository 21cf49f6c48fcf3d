package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "personacore",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Storage: StorageConfig{
			Type:         "badger",
			WriteTimeout: 2 * time.Second,
			Badger: BadgerConfig{
				Path:             "./data/memory",
				SyncWrites:       true,
				ValueLogFileSize: 268435456, // 256MB
			},
			Redis: RedisConfig{
				Address:   "localhost:6379",
				Password:  "",
				DB:        0,
				KeyPrefix: "personacore",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Personality: PersonalityFileConfig{
			Path:             "./personality.json",
			Watch:            false,
			AutosaveInterval: 5 * time.Minute,
		},
		Tracker: TrackerConfig{
			Enabled:       true,
			Interval:      1 * time.Minute,
			MaturityDelay: 15 * time.Minute,
			MetricsURL:    "",
		},
		Learning: LearningTuning{
			PositiveFeedbackHalf: 10,
			AmplificationHalf:    5,
			ResponsesHalf:        5,
			ImpressionsHalf:      500,
			SuccessThreshold:     0.7,
			ExemplarCap:          50,
			TrendWindow:          10,
			TopTopics:            5,
		},
		Memory: MemoryTuning{
			ContextRecent:        5,
			ContextRelationships: 3,
			ContextTopics:        5,
			CurrentBoost:         0.25,
		},
	}
}
