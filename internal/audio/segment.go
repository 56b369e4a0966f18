package audio

import "math"

// Segment is a half-open sample range [Start, End) of one candidate
// utterance within a clip.
type Segment struct {
	Start int
	End   int
}

// Segmenter splits a waveform into ordered, non-overlapping candidate
// utterance ranges.
type Segmenter interface {
	Split(samples []float64, sampleRate int) []Segment
}

// SilenceSegmenter detects utterances by frame energy relative to the
// loudest frame in the clip: frames more than TopDB below the peak RMS are
// silence, consecutive non-silent frames merge into one segment.
type SilenceSegmenter struct {
	TopDB       float64
	FrameLength int
	HopLength   int
}

// NewSilenceSegmenter returns a segmenter with the standard 20 dB threshold
// on 2048/512 frames.
func NewSilenceSegmenter() *SilenceSegmenter {
	return &SilenceSegmenter{TopDB: 20, FrameLength: 2048, HopLength: 512}
}

// Split implements Segmenter. Returned segments are ordered by start and do
// not overlap. A fully silent clip yields no segments.
func (s *SilenceSegmenter) Split(samples []float64, sampleRate int) []Segment {
	frames := rmsFrames(samples, s.FrameLength, s.HopLength)
	if len(frames) == 0 {
		return nil
	}

	peak := 0.0
	for _, f := range frames {
		if f > peak {
			peak = f
		}
	}
	if peak == 0 {
		return nil
	}
	threshold := peak * math.Pow(10, -s.TopDB/20)

	var segments []Segment
	inSegment := false
	startFrame := 0
	for i, f := range frames {
		loud := f > threshold
		switch {
		case loud && !inSegment:
			inSegment = true
			startFrame = i
		case !loud && inSegment:
			inSegment = false
			segments = append(segments, s.frameSpan(startFrame, i, len(samples)))
		}
	}
	if inSegment {
		segments = append(segments, s.frameSpan(startFrame, len(frames), len(samples)))
	}
	return segments
}

func (s *SilenceSegmenter) frameSpan(startFrame, endFrame, n int) Segment {
	start := startFrame * s.HopLength
	end := (endFrame-1)*s.HopLength + s.FrameLength
	if end > n {
		end = n
	}
	return Segment{Start: start, End: end}
}

// rmsFrames computes the per-frame root-mean-square energy of a waveform.
func rmsFrames(samples []float64, frameLength, hopLength int) []float64 {
	if len(samples) == 0 || frameLength <= 0 || hopLength <= 0 {
		return nil
	}
	var frames []float64
	for start := 0; start < len(samples); start += hopLength {
		end := start + frameLength
		if end > len(samples) {
			end = len(samples)
		}
		var sum float64
		for _, v := range samples[start:end] {
			sum += v * v
		}
		frames = append(frames, math.Sqrt(sum/float64(end-start)))
		if end == len(samples) {
			break
		}
	}
	return frames
}
