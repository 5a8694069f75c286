package conf

import "fmt"

func validateIngestSettings(s *IngestSettings) error {
	if s.AudioStorageDir == "" {
		return fmt.Errorf("AUDIO_STORAGE_DIR must not be empty")
	}
	if s.MaxUploadSizeBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_BYTES must be positive, got %d", s.MaxUploadSizeBytes)
	}
	if s.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if s.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	return nil
}

func validateWorkerSettings(s *WorkerSettings) error {
	if s.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if s.AudioStorageDir == "" {
		return fmt.Errorf("AUDIO_STORAGE_DIR must not be empty")
	}
	if s.VADAggressiveness < 0 || s.VADAggressiveness > 3 {
		return fmt.Errorf("VAD_AGGRESSIVENESS must be in [0, 3], got %d", s.VADAggressiveness)
	}
	switch s.VADFrameMS {
	case 10, 20, 30:
	default:
		return fmt.Errorf("VAD_FRAME_MS must be one of 10, 20, 30, got %d", s.VADFrameMS)
	}
	if s.PollIntervalSec < 1 || s.PollIntervalSec > 300 {
		return fmt.Errorf("POLL_INTERVAL_SEC must be in [1, 300], got %d", s.PollIntervalSec)
	}
	if s.BatchSize < 1 || s.BatchSize > 100 {
		return fmt.Errorf("BATCH_SIZE must be in [1, 100], got %d", s.BatchSize)
	}
	if s.SilenceGapSec <= 0 {
		return fmt.Errorf("SILENCE_GAP_SEC must be positive, got %d", s.SilenceGapSec)
	}
	if s.MaxDialogueSec <= 0 {
		return fmt.Errorf("MAX_DIALOGUE_SEC must be positive, got %d", s.MaxDialogueSec)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative, got %d", s.MaxRetries)
	}
	if s.RetryDelaySec <= 0 {
		return fmt.Errorf("RETRY_DELAY_SEC must be positive, got %d", s.RetryDelaySec)
	}
	if s.StuckTimeoutSec <= 0 {
		return fmt.Errorf("STUCK_TIMEOUT_SEC must be positive, got %d", s.StuckTimeoutSec)
	}
	if s.RecoveryIntervalSec <= 0 {
		return fmt.Errorf("RECOVERY_INTERVAL_SEC must be positive, got %d", s.RecoveryIntervalSec)
	}
	if s.MetricsLogIntervalSec <= 0 {
		return fmt.Errorf("METRICS_LOG_INTERVAL_SEC must be positive, got %d", s.MetricsLogIntervalSec)
	}
	return nil
}

// AllowedCodecs enumerates the codecs the upload endpoint accepts.
var AllowedCodecs = map[string]bool{"opus": true}

// AllowedSampleRates enumerates the sample rates the upload endpoint accepts.
var AllowedSampleRates = map[int]bool{8000: true, 16000: true, 24000: true, 32000: true, 48000: true}
