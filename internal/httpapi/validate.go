package httpapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/salescontrol/audiocore/internal/conf"
)

// chunkMetadata is the validated upload form, minus the payload itself.
type chunkMetadata struct {
	StartTS    time.Time
	EndTS      time.Time
	Codec      string
	SampleRate int
	Channels   int
}

// parseChunkMetadata validates the upload form fields. Timestamps must be
// RFC 3339 with an explicit offset; naive timestamps are rejected rather
// than assumed UTC, since recorders in different locations would silently
// disagree about what they mean.
func parseChunkMetadata(ctx echo.Context) (*chunkMetadata, error) {
	startTS, err := parseTimestamp(ctx.FormValue("start_ts"))
	if err != nil {
		return nil, fmt.Errorf("invalid start_ts: %w", err)
	}
	endTS, err := parseTimestamp(ctx.FormValue("end_ts"))
	if err != nil {
		return nil, fmt.Errorf("invalid end_ts: %w", err)
	}
	if !endTS.After(startTS) {
		return nil, fmt.Errorf("end_ts must be after start_ts")
	}
	if endTS.Sub(startTS) > maxChunkDuration {
		return nil, fmt.Errorf("chunk duration exceeds %s", maxChunkDuration)
	}

	codec := strings.ToLower(strings.TrimSpace(ctx.FormValue("codec")))
	if !conf.AllowedCodecs[codec] {
		return nil, fmt.Errorf("unsupported codec %q", codec)
	}
	sampleRate, err := strconv.Atoi(ctx.FormValue("sample_rate"))
	if err != nil || !conf.AllowedSampleRates[sampleRate] {
		return nil, fmt.Errorf("unsupported sample_rate %q", ctx.FormValue("sample_rate"))
	}
	channels, err := strconv.Atoi(ctx.FormValue("channels"))
	if err != nil || channels != 1 {
		return nil, fmt.Errorf("channels must be 1")
	}

	return &chunkMetadata{
		StartTS:    startTS.UTC(),
		EndTS:      endTS.UTC(),
		Codec:      codec,
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}

// parseTimestamp accepts RFC 3339 with a zone offset only.
func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("not RFC 3339 with offset: %w", err)
	}
	return t, nil
}
