package audio

import "math"

// Quality holds the acoustic voice-quality measures for one utterance.
type Quality struct {
	MeanF0  float64
	Jitter  float64
	Shimmer float64
}

// Analyzer extracts acoustic quality measures from a waveform. The second
// return value is false when the segment carries too little voiced material
// to measure; such segments are discarded, not scored as zero.
type Analyzer interface {
	Analyze(samples []float64, sampleRate int) (Quality, bool)
}

// PitchAnalyzer measures fundamental frequency per frame by normalized
// autocorrelation, then derives jitter from period variability and shimmer
// from frame-amplitude variability.
type PitchAnalyzer struct {
	FrameLength int
	HopLength   int
	MinF0       float64
	MaxF0       float64
	// VoicingThreshold is the minimum normalized autocorrelation peak for a
	// frame to count as voiced.
	VoicingThreshold float64
}

// NewPitchAnalyzer returns an analyzer tuned for child speech: F0 search
// range 60–600 Hz on 2048/512 frames.
func NewPitchAnalyzer() *PitchAnalyzer {
	return &PitchAnalyzer{
		FrameLength:      2048,
		HopLength:        512,
		MinF0:            60,
		MaxF0:            600,
		VoicingThreshold: 0.3,
	}
}

// minVoicedFrames is the minimum number of voiced pitch samples required
// before jitter is meaningful.
const minVoicedFrames = 3

// Analyze implements Analyzer.
func (a *PitchAnalyzer) Analyze(samples []float64, sampleRate int) (Quality, bool) {
	if sampleRate <= 0 || len(samples) < a.FrameLength {
		return Quality{}, false
	}

	minLag := int(float64(sampleRate) / a.MaxF0)
	maxLag := int(float64(sampleRate) / a.MinF0)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= a.FrameLength {
		maxLag = a.FrameLength - 1
	}

	var pitches []float64
	for start := 0; start+a.FrameLength <= len(samples); start += a.HopLength {
		frame := samples[start : start+a.FrameLength]
		if f0, ok := a.framePitch(frame, sampleRate, minLag, maxLag); ok {
			pitches = append(pitches, f0)
		}
	}
	if len(pitches) < minVoicedFrames {
		return Quality{}, false
	}

	meanF0 := mean(pitches)

	// Jitter: relative variability of successive pitch periods.
	periods := make([]float64, len(pitches))
	for i, f0 := range pitches {
		periods[i] = 1 / f0
	}
	jitter := 0.0
	if diffs := diff(periods); len(diffs) > 0 {
		jitter = std(diffs) / mean(periods)
	}

	// Shimmer: relative variability of successive frame amplitudes.
	shimmer := 0.0
	rms := rmsFrames(samples, a.FrameLength, a.HopLength)
	if len(rms) > 1 {
		if m := mean(rms); m > 0 {
			shimmer = std(diff(rms)) / m
		}
	}

	return Quality{MeanF0: meanF0, Jitter: jitter, Shimmer: shimmer}, true
}

// framePitch estimates the fundamental frequency of one frame, or reports
// the frame as unvoiced.
func (a *PitchAnalyzer) framePitch(frame []float64, sampleRate, minLag, maxLag int) (float64, bool) {
	var energy float64
	for _, v := range frame {
		energy += v * v
	}
	if energy == 0 {
		return 0, false
	}

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i+lag < len(frame); i++ {
			corr += frame[i] * frame[i+lag]
		}
		corr /= energy
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag == 0 || bestCorr < a.VoicingThreshold {
		return 0, false
	}
	return float64(sampleRate) / float64(bestLag), true
}

func mean(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// std is the population standard deviation.
func std(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := mean(v)
	var sum float64
	for _, x := range v {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(v)))
}

func diff(v []float64) []float64 {
	if len(v) < 2 {
		return nil
	}
	out := make([]float64, len(v)-1)
	for i := 1; i < len(v); i++ {
		out[i-1] = v[i] - v[i-1]
	}
	return out
}
