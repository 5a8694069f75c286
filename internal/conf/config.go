// Package conf loads and validates the environment-driven configuration
// surface for the ingest service and the VAD/dialogue worker.
package conf

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// IngestSettings is the configuration surface for the ingest binary.
type IngestSettings struct {
	AudioStorageDir    string
	MaxUploadSizeBytes int64
	AdminToken         string
	InternalToken      string
	DatabaseURL        string
	Host               string
	Port               string
}

// WorkerSettings is the configuration surface for the worker binary.
type WorkerSettings struct {
	DatabaseURL           string
	AudioStorageDir       string
	VADAggressiveness     int
	VADFrameMS            int
	SilenceGapSec         int
	MaxDialogueSec        int
	PollIntervalSec       int
	BatchSize             int
	MaxRetries            int
	RetryDelaySec         int
	StuckTimeoutSec       int
	RecoveryIntervalSec   int
	MetricsLogIntervalSec int
	MetricsPort           string
	LogLevel              string
}

// SilenceGap returns SilenceGapSec as a time.Duration.
func (s *WorkerSettings) SilenceGap() time.Duration {
	return time.Duration(s.SilenceGapSec) * time.Second
}

// MaxDialogue returns MaxDialogueSec as a time.Duration.
func (s *WorkerSettings) MaxDialogue() time.Duration {
	return time.Duration(s.MaxDialogueSec) * time.Second
}

// LoadIngestSettings reads and validates the ingest configuration from
// the environment via viper: defaults first, then bindings, then
// validation.
func LoadIngestSettings() (*IngestSettings, error) {
	v := viper.New()
	setIngestDefaults(v)
	if err := bindIngestEnv(v); err != nil {
		return nil, fmt.Errorf("error binding ingest environment variables: %w", err)
	}

	s := &IngestSettings{
		AudioStorageDir:    v.GetString("audio_storage_dir"),
		MaxUploadSizeBytes: v.GetInt64("max_upload_size_bytes"),
		AdminToken:         v.GetString("admin_token"),
		InternalToken:      v.GetString("internal_token"),
		DatabaseURL:        v.GetString("database_url"),
		Host:               v.GetString("host"),
		Port:               v.GetString("port"),
	}
	if err := validateIngestSettings(s); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadWorkerSettings reads and validates the worker configuration.
func LoadWorkerSettings() (*WorkerSettings, error) {
	v := viper.New()
	setWorkerDefaults(v)
	if err := bindWorkerEnv(v); err != nil {
		return nil, fmt.Errorf("error binding worker environment variables: %w", err)
	}

	s := &WorkerSettings{
		DatabaseURL:           v.GetString("database_url"),
		AudioStorageDir:       v.GetString("audio_storage_dir"),
		VADAggressiveness:     v.GetInt("vad_aggressiveness"),
		VADFrameMS:            v.GetInt("vad_frame_ms"),
		SilenceGapSec:         v.GetInt("silence_gap_sec"),
		MaxDialogueSec:        v.GetInt("max_dialogue_sec"),
		PollIntervalSec:       v.GetInt("poll_interval_sec"),
		BatchSize:             v.GetInt("batch_size"),
		MaxRetries:            v.GetInt("max_retries"),
		RetryDelaySec:         v.GetInt("retry_delay_sec"),
		StuckTimeoutSec:       v.GetInt("stuck_timeout_sec"),
		RecoveryIntervalSec:   v.GetInt("recovery_interval_sec"),
		MetricsLogIntervalSec: v.GetInt("metrics_log_interval_sec"),
		MetricsPort:           v.GetString("metrics_port"),
		LogLevel:              v.GetString("log_level"),
	}
	// viper treats an empty environment variable as unset and would fall
	// back to the default; an explicitly empty METRICS_PORT disables the
	// metrics endpoint instead.
	if raw, ok := os.LookupEnv("METRICS_PORT"); ok && raw == "" {
		s.MetricsPort = ""
	}
	if err := validateWorkerSettings(s); err != nil {
		return nil, err
	}
	return s, nil
}
