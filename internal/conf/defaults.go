package conf

import "github.com/spf13/viper"

// setIngestDefaults mirrors conf/defaults.go's setDefaultConfig: every
// recognized option gets a default before env binding so a missing
// environment variable never produces a zero-value surprise.
func setIngestDefaults(v *viper.Viper) {
	v.SetDefault("audio_storage_dir", "/data/audio")
	v.SetDefault("max_upload_size_bytes", int64(10*1024*1024)) // 10 MiB
	v.SetDefault("admin_token", "")
	v.SetDefault("internal_token", "")
	v.SetDefault("database_url", "sqlite:///data/audiocore.db")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "8080")
}

func setWorkerDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "sqlite:///data/audiocore.db")
	v.SetDefault("audio_storage_dir", "/data/audio")
	v.SetDefault("vad_aggressiveness", 2)
	v.SetDefault("vad_frame_ms", 30)
	v.SetDefault("silence_gap_sec", 12)
	v.SetDefault("max_dialogue_sec", 120)
	v.SetDefault("poll_interval_sec", 5)
	v.SetDefault("batch_size", 10)
	v.SetDefault("max_retries", 3)
	v.SetDefault("retry_delay_sec", 2)
	v.SetDefault("stuck_timeout_sec", 600)
	v.SetDefault("recovery_interval_sec", 60)
	v.SetDefault("metrics_log_interval_sec", 60)
	v.SetDefault("metrics_port", "9090")
	v.SetDefault("log_level", "info")
}
