package audio_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/lourdes7u7/analisisAudio/internal/audio"
)

func TestPitchAnalyzer_PureTone(t *testing.T) {
	t.Parallel()

	samples := tone(200, 0.5, 1.0)
	quality, ok := audio.NewPitchAnalyzer().Analyze(samples, testRate)
	if !ok {
		t.Fatal("Analyze(pure 200 Hz tone): ok=false, want voiced")
	}
	if math.Abs(quality.MeanF0-200) > 10 {
		t.Errorf("MeanF0 = %v, want within 10 of 200", quality.MeanF0)
	}
	// A perfectly periodic tone has near-zero period and amplitude variability.
	if quality.Jitter > 0.05 {
		t.Errorf("Jitter = %v, want near 0 for a steady tone", quality.Jitter)
	}
	if quality.Shimmer > 0.1 {
		t.Errorf("Shimmer = %v, want near 0 for a steady tone", quality.Shimmer)
	}
}

func TestPitchAnalyzer_SilenceFails(t *testing.T) {
	t.Parallel()

	if _, ok := audio.NewPitchAnalyzer().Analyze(silence(1.0), testRate); ok {
		t.Error("Analyze(silence): ok=true, want failure (no voiced frames)")
	}
}

func TestPitchAnalyzer_TooShortFails(t *testing.T) {
	t.Parallel()

	// Shorter than one analysis frame.
	if _, ok := audio.NewPitchAnalyzer().Analyze(tone(200, 0.5, 0.05), testRate); ok {
		t.Error("Analyze(short clip): ok=true, want failure")
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	original := tone(440, 0.25, 0.5)
	path := filepath.Join(t.TempDir(), "clip.wav")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := audio.EncodeWAV(f, original, testRate); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	in, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()
	clip, err := audio.Decode(in)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if clip.SampleRate != testRate {
		t.Errorf("SampleRate = %d, want %d", clip.SampleRate, testRate)
	}
	if len(clip.Samples) != len(original) {
		t.Fatalf("decoded %d samples, want %d", len(clip.Samples), len(original))
	}
	// 16-bit quantization keeps samples within ~1/32767 of the original.
	for i := 0; i < len(original); i += 997 {
		if math.Abs(clip.Samples[i]-original[i]) > 0.001 {
			t.Fatalf("sample %d = %v, want within 0.001 of %v", i, clip.Samples[i], original[i])
		}
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := audio.DecodeBytes([]byte("definitely not a wav file")); err == nil {
		t.Error("DecodeBytes(garbage): err=nil, want error")
	}
}
