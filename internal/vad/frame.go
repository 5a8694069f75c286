package vad

import (
	"encoding/binary"
	"math"

	"github.com/smallnest/ringbuffer"
)

// Frame is one fixed-length window of the chunk's PCM stream, classified
// speech/non-speech. Timing is assigned by the segmenter, which knows the
// configured VAD_FRAME_MS.
type Frame struct {
	Index  int
	Speech bool
}

// Classifier labels fixed-length PCM frames as speech/non-speech. The
// aggressiveness level (0-3) trades recall for precision, the same
// contract webrtcvad-style frame classifiers expose: level 0 is the most
// permissive, level 3 the most conservative about calling a frame speech.
type Classifier struct {
	Aggressiveness int
}

// energyThresholds maps aggressiveness (0-3) to a minimum RMS energy,
// tuned against 16-bit PCM full scale (32767), with level 3 requiring
// roughly 6x the energy level 0 does before calling a frame speech.
var energyThresholds = [4]float64{150, 300, 550, 900}

// zcrCeilings caps zero-crossing rate per frame; pure noise/hiss tends to
// have a much higher ZCR than voiced speech at the same energy level, so
// this rejects hiss that would otherwise pass the energy gate.
var zcrCeilings = [4]float64{0.35, 0.32, 0.28, 0.24}

func (c Classifier) bounds() (energyFloor, zcrCeiling float64) {
	level := c.Aggressiveness
	if level < 0 {
		level = 0
	}
	if level > 3 {
		level = 3
	}
	return energyThresholds[level], zcrCeilings[level]
}

// FrameAccumulator re-frames a chunk's PCM stream into fixed-length
// windows via a ring buffer. A trailing partial frame (PCM length not a
// multiple of frameSamples) is dropped: a window shorter than one full
// frame cannot be classified.
type FrameAccumulator struct {
	rb           *ringbuffer.RingBuffer
	frameSamples int
}

// NewFrameAccumulator creates an accumulator over pcm, framed at
// frameSamples samples per window.
func NewFrameAccumulator(pcm []int16, frameSamples int) *FrameAccumulator {
	rb := ringbuffer.New(len(pcm) * 2)
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	_, _ = rb.Write(buf)
	return &FrameAccumulator{rb: rb, frameSamples: frameSamples}
}

// Next drains one fixed-length frame of PCM samples, or returns ok=false
// once fewer than frameSamples samples remain.
func (a *FrameAccumulator) Next() (samples []int16, ok bool) {
	frameBytes := a.frameSamples * 2
	if a.rb.Length() < frameBytes {
		return nil, false
	}
	raw := make([]byte, frameBytes)
	n, err := a.rb.Read(raw)
	if err != nil || n < frameBytes {
		return nil, false
	}
	samples = make([]int16, a.frameSamples)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples, true
}

// Classify splits pcm into frameSamples-long windows via a
// FrameAccumulator and labels each speech/non-speech.
func (c Classifier) Classify(pcm []int16, frameSamples int) []Frame {
	energyFloor, zcrCeiling := c.bounds()
	acc := NewFrameAccumulator(pcm, frameSamples)

	var frames []Frame
	for {
		window, ok := acc.Next()
		if !ok {
			break
		}
		rms := rmsOf(window)
		zcr := zeroCrossingRate(window)
		frames = append(frames, Frame{
			Index:  len(frames),
			Speech: rms >= energyFloor && zcr <= zcrCeiling,
		})
	}
	return frames
}

func rmsOf(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		v := float64(s)
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}

func zeroCrossingRate(samples []int16) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}
