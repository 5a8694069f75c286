// Package vad turns a chunk's raw audio payload into PCM, classifies each
// fixed-length frame as speech/non-speech, and smooths the frame stream
// into speech segments.
package vad

import (
	"io"

	"github.com/hraban/opus"
	"github.com/salescontrol/audiocore/internal/apperr"
)

// PCM is mono 16-bit PCM sampled at SampleRate.
type PCM struct {
	Samples    []int16
	SampleRate int
}

// Decoder turns a chunk's codec-specific payload into mono PCM.
type Decoder interface {
	Decode(r io.Reader, sampleRate, channels int) (PCM, error)
}

// OpusDecoder decodes opus payloads via github.com/hraban/opus, the
// binding behind the sole codec the upload endpoint accepts.
type OpusDecoder struct{}

// maxOpusFrameSamples bounds a single Decode call's output buffer; opus
// frames are at most 120ms, so at 48kHz that's 5760 samples per channel.
const maxOpusFrameSamples = 5760

// Decode reads raw opus packets framed by a length-prefixed container
// (the recorder agent's upload format) and concatenates the decoded PCM.
// Packet framing: each packet is a uint32 big-endian length prefix
// followed by that many bytes of opus payload, terminated by EOF.
func (OpusDecoder) Decode(r io.Reader, sampleRate, channels int) (PCM, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return PCM{}, apperr.New(err).Component("vad").Category(apperr.CategoryDecode).
			Context("sample_rate", sampleRate).Context("channels", channels).Build()
	}

	var out []int16
	pcmBuf := make([]int16, maxOpusFrameSamples*channels)
	lenBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(r, lenBuf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return PCM{}, apperr.New(err).Component("vad").Category(apperr.CategoryDecode).
				Context("operation", "read_packet_length").Build()
		}
		packetLen := int(lenBuf[0])<<24 | int(lenBuf[1])<<16 | int(lenBuf[2])<<8 | int(lenBuf[3])
		if packetLen <= 0 || packetLen > 65535 {
			return PCM{}, apperr.Newf("invalid opus packet length %d", packetLen).
				Component("vad").Category(apperr.CategoryDecode).Build()
		}
		packet := make([]byte, packetLen)
		if _, err := io.ReadFull(r, packet); err != nil {
			return PCM{}, apperr.New(err).Component("vad").Category(apperr.CategoryDecode).
				Context("operation", "read_packet_body").Build()
		}
		n, err := dec.Decode(packet, pcmBuf)
		if err != nil {
			return PCM{}, apperr.New(err).Component("vad").Category(apperr.CategoryDecode).
				Context("operation", "opus_decode").Build()
		}
		out = append(out, pcmBuf[:n*channels]...)
	}

	return PCM{Samples: out, SampleRate: sampleRate}, nil
}
