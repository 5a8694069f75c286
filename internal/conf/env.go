package conf

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envBinding mirrors conf/env.go's envBinding: a viper key, the
// environment variable name that feeds it, and an optional validator
// run against the raw string value (viper itself handles type coercion).
type envBinding struct {
	Key      string
	EnvVar   string
	Validate func(string) error
}

func bindIngestEnv(v *viper.Viper) error {
	bindings := []envBinding{
		{"audio_storage_dir", "AUDIO_STORAGE_DIR", nil},
		{"max_upload_size_bytes", "MAX_UPLOAD_SIZE_BYTES", validatePositiveInt},
		{"admin_token", "ADMIN_TOKEN", nil},
		{"internal_token", "INTERNAL_TOKEN", nil},
		{"database_url", "DATABASE_URL", nil},
		{"host", "HOST", nil},
		{"port", "PORT", nil},
	}
	return bindAll(v, bindings)
}

func bindWorkerEnv(v *viper.Viper) error {
	bindings := []envBinding{
		{"database_url", "DATABASE_URL", nil},
		{"audio_storage_dir", "AUDIO_STORAGE_DIR", nil},
		{"vad_aggressiveness", "VAD_AGGRESSIVENESS", validateRange(0, 3)},
		{"vad_frame_ms", "VAD_FRAME_MS", validateOneOf("10", "20", "30")},
		{"silence_gap_sec", "SILENCE_GAP_SEC", validatePositiveInt},
		{"max_dialogue_sec", "MAX_DIALOGUE_SEC", validatePositiveInt},
		{"poll_interval_sec", "POLL_INTERVAL_SEC", validateRange(1, 300)},
		{"batch_size", "BATCH_SIZE", validateRange(1, 100)},
		{"max_retries", "MAX_RETRIES", validatePositiveInt},
		{"retry_delay_sec", "RETRY_DELAY_SEC", validatePositiveInt},
		{"stuck_timeout_sec", "STUCK_TIMEOUT_SEC", validatePositiveInt},
		{"recovery_interval_sec", "RECOVERY_INTERVAL_SEC", validatePositiveInt},
		{"metrics_log_interval_sec", "METRICS_LOG_INTERVAL_SEC", validatePositiveInt},
		{"metrics_port", "METRICS_PORT", nil},
		{"log_level", "LOG_LEVEL", nil},
	}
	return bindAll(v, bindings)
}

func bindAll(v *viper.Viper, bindings []envBinding) error {
	v.AutomaticEnv()
	var problems []string
	for _, b := range bindings {
		if err := v.BindEnv(b.Key, b.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", b.EnvVar, err))
			continue
		}
		if b.Validate == nil {
			continue
		}
		raw := v.GetString(b.Key)
		if raw == "" {
			continue
		}
		if err := b.Validate(raw); err != nil {
			problems = append(problems, fmt.Sprintf("invalid %s value %q: %v", b.EnvVar, raw, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validatePositiveInt(raw string) error {
	var n int64
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return fmt.Errorf("not an integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateRange(lo, hi int) func(string) error {
	return func(raw string) error {
		var n int
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
			return fmt.Errorf("not an integer: %w", err)
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be in [%d, %d], got %d", lo, hi, n)
		}
		return nil
	}
}

func validateOneOf(allowed ...string) func(string) error {
	return func(raw string) error {
		for _, a := range allowed {
			if raw == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of %v", allowed)
	}
}
