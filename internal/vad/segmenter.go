package vad

// Segment is a maximal [StartMS, EndMS) interval of continuous speech
// within one chunk, after hysteresis smoothing.
type Segment struct {
	StartMS int
	EndMS   int
}

// SegmenterConfig carries the hysteresis smoothing parameters.
type SegmenterConfig struct {
	FrameMS                int
	MinSpeechFrames        int
	SilenceWithinSegmentMS int
	MinSegmentMS           int
}

// DefaultSegmenterConfig returns the standard smoothing parameters.
func DefaultSegmenterConfig(frameMS int) SegmenterConfig {
	return SegmenterConfig{
		FrameMS:                frameMS,
		MinSpeechFrames:        3,
		SilenceWithinSegmentMS: 300,
		MinSegmentMS:           200,
	}
}

// candidate tracks an in-progress segment while the onset/offset
// hysteresis rules are being evaluated frame by frame.
type candidate struct {
	startFrame    int
	speechFrames  int
	lastSpeechIdx int
	silenceRunMS  int
	committed     bool
}

// Smooth collapses a frame-level speech/non-speech stream into ordered,
// disjoint segments:
//   - onset: a speech frame starts a candidate; it commits once
//     MinSpeechFrames speech frames have accumulated since onset
//   - offset: silence is tolerated up to SilenceWithinSegmentMS inside an
//     open segment before it closes; EndMS trims trailing silence back to
//     the last speech frame
//   - segments shorter than MinSegmentMS are dropped
func Smooth(frames []Frame, cfg SegmenterConfig) []Segment {
	var segments []Segment
	var cur *candidate

	for i, f := range frames {
		if f.Speech {
			if cur == nil {
				cur = &candidate{startFrame: i, lastSpeechIdx: i}
			}
			cur.speechFrames++
			cur.lastSpeechIdx = i
			cur.silenceRunMS = 0
			if !cur.committed && cur.speechFrames >= cfg.MinSpeechFrames {
				cur.committed = true
			}
			continue
		}

		if cur == nil {
			continue
		}
		cur.silenceRunMS += cfg.FrameMS
		if cur.silenceRunMS > cfg.SilenceWithinSegmentMS {
			appendIfValid(&segments, cur, cfg)
			cur = nil
		}
	}
	appendIfValid(&segments, cur, cfg)

	return segments
}

func appendIfValid(segments *[]Segment, cur *candidate, cfg SegmenterConfig) {
	if cur == nil || !cur.committed {
		return
	}
	startMS := cur.startFrame * cfg.FrameMS
	endMS := (cur.lastSpeechIdx + 1) * cfg.FrameMS
	if endMS-startMS < cfg.MinSegmentMS {
		return
	}
	*segments = append(*segments, Segment{StartMS: startMS, EndMS: endMS})
}
