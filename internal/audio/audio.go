// Package audio wraps waveform decoding, silence-based segmentation, and
// acoustic quality extraction. The analyze pipeline consumes these through
// the Segmenter and Analyzer interfaces and treats them as black boxes.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip is a decoded mono waveform.
type Clip struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Decode reads a WAV file into a mono float64 waveform in [-1, 1].
// Multi-channel input is downmixed by averaging.
func Decode(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, errors.New("not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("could not decode WAV data: %w", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return Clip{}, errors.New("empty WAV file")
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels) / scale
	}
	return Clip{Samples: samples, SampleRate: int(buf.Format.SampleRate)}, nil
}

// EncodeWAV writes a mono float64 waveform as 16-bit PCM WAV.
func EncodeWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		v := math.Round(s * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		buf.Data[i] = int(v)
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("could not write WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("could not finalize WAV file: %w", err)
	}
	return nil
}

// DecodeBytes is a convenience wrapper over Decode for in-memory uploads.
func DecodeBytes(data []byte) (Clip, error) {
	return Decode(bytes.NewReader(data))
}
