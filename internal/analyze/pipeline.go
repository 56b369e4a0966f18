// Package analyze runs the end-to-end scoring pipeline for one uploaded
// clip: segment the waveform, transcribe and measure each utterance, score
// every repetition against the target word, and fold the outcomes into the
// persisted report tree.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lourdes7u7/analisisAudio/internal/audio"
	"github.com/lourdes7u7/analisisAudio/internal/lexicon"
	"github.com/lourdes7u7/analisisAudio/internal/report"
	"github.com/lourdes7u7/analisisAudio/internal/scoring"
	"github.com/lourdes7u7/analisisAudio/internal/store"
	"github.com/lourdes7u7/analisisAudio/internal/transcribe"
)

var (
	// ErrMissingFields means the request lacked a required parameter. Nothing
	// was processed or persisted.
	ErrMissingFields = errors.New("missing required parameters")
	// ErrNoSpeech means the segmenter found no utterances in the clip.
	ErrNoSpeech = errors.New("no pronunciation detected")
	// ErrNoValidSegments means every detected segment was too short or failed
	// acoustic analysis. The report is left untouched.
	ErrNoValidSegments = errors.New("no valid segments could be processed")
)

// segmentWorkers bounds how many segments are transcribed concurrently.
const segmentWorkers = 4

// Request identifies where one clip's results belong in the report tree.
type Request struct {
	ReportID      string
	Level         string
	Sublevel      string
	SessionNumber int
	Word          string
	Filename      string
	Audio         []byte
}

func (r Request) validate() error {
	if len(r.Audio) == 0 || r.ReportID == "" || r.Level == "" || r.Sublevel == "" || r.Word == "" || r.SessionNumber < 1 {
		return ErrMissingFields
	}
	return nil
}

// Summary is the per-call result returned to the caller.
type Summary struct {
	ReportID               string              `json:"reportId"`
	SessionNumber          int                 `json:"sessionNumber"`
	Word                   string              `json:"word"`
	Repetitions            []report.Repetition `json:"repetitions"`
	SegmentsDetected       int                 `json:"segmentsDetected"`
	ValidSegmentsProcessed int                 `json:"validSegmentsProcessed"`
}

// Pipeline wires the adapters together. One Pipeline serves all requests;
// per-report mutual exclusion happens at the persistence step.
type Pipeline struct {
	log         *zap.Logger
	store       store.Store
	locks       *store.KeyedLock
	segmenter   audio.Segmenter
	analyzer    audio.Analyzer
	transcriber transcribe.Transcriber
	uploadDir   string
	minSegment  float64
}

// NewPipeline constructs the analyze pipeline. minSegmentSeconds is the
// shortest utterance worth scoring; anything shorter is discarded.
func NewPipeline(
	log *zap.Logger,
	st store.Store,
	locks *store.KeyedLock,
	segmenter audio.Segmenter,
	analyzer audio.Analyzer,
	transcriber transcribe.Transcriber,
	uploadDir string,
	minSegmentSeconds float64,
) *Pipeline {
	return &Pipeline{
		log:         log,
		store:       st,
		locks:       locks,
		segmenter:   segmenter,
		analyzer:    analyzer,
		transcriber: transcriber,
		uploadDir:   uploadDir,
		minSegment:  minSegmentSeconds,
	}
}

// segmentOutcome collects the independent per-segment results. Slots keep
// the original segment order so repetitions stay deterministic regardless of
// which worker finishes first.
type segmentOutcome struct {
	transcription transcribe.Result
	quality       audio.Quality
	voiced        bool
}

// Analyze processes one uploaded clip end to end. The report document is
// only written when at least one repetition was scored; every early exit
// leaves persisted state untouched. All temporary audio artifacts are
// removed on every path.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (*Summary, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	profile := lexicon.ProfileFor(req.Sublevel)

	uploadPath, err := p.saveUpload(req)
	if err != nil {
		return nil, err
	}
	defer os.Remove(uploadPath)

	clip, err := p.decode(uploadPath)
	if err != nil {
		return nil, err
	}

	intervals := p.segmenter.Split(clip.Samples, clip.SampleRate)
	p.log.Debug("Segmented clip",
		zap.String("reportId", req.ReportID),
		zap.Int("segments", len(intervals)),
		zap.Float64("duration", clip.Duration()))
	if len(intervals) == 0 {
		return nil, ErrNoSpeech
	}

	valid := p.filterShort(intervals, clip.SampleRate)
	if len(valid) == 0 {
		return nil, ErrNoValidSegments
	}

	outcomes, err := p.processSegments(ctx, clip, valid, uploadPath, profile)
	if err != nil {
		return nil, err
	}

	repetitions := p.scoreOutcomes(outcomes, req.Word, profile)
	if len(repetitions) == 0 {
		return nil, ErrNoValidSegments
	}

	if err := p.persist(ctx, req, repetitions); err != nil {
		return nil, err
	}

	return &Summary{
		ReportID:               req.ReportID,
		SessionNumber:          req.SessionNumber,
		Word:                   req.Word,
		Repetitions:            repetitions,
		SegmentsDetected:       len(intervals),
		ValidSegmentsProcessed: len(repetitions),
	}, nil
}

// saveUpload writes the raw upload to the scratch directory. The file only
// lives for the duration of the call.
func (p *Pipeline) saveUpload(req Request) (string, error) {
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create upload directory: %w", err)
	}
	stamp := time.Now().Format("20060102_150405.000000")
	name := fmt.Sprintf("%s_%s_%s", req.ReportID, stamp, filepath.Base(req.Filename))
	path := filepath.Join(p.uploadDir, name)
	if err := os.WriteFile(path, req.Audio, 0o644); err != nil {
		return "", fmt.Errorf("could not save upload: %w", err)
	}
	return path, nil
}

func (p *Pipeline) decode(path string) (audio.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("could not open upload: %w", err)
	}
	defer f.Close()
	clip, err := audio.Decode(f)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("could not decode upload: %w", err)
	}
	return clip, nil
}

// filterShort drops intervals shorter than the minimum utterance duration.
func (p *Pipeline) filterShort(intervals []audio.Segment, sampleRate int) []audio.Segment {
	minSamples := int(p.minSegment * float64(sampleRate))
	var valid []audio.Segment
	for _, seg := range intervals {
		if seg.End-seg.Start >= minSamples {
			valid = append(valid, seg)
		}
	}
	return valid
}

// processSegments runs transcription and acoustic analysis for every valid
// segment. Transcription is network I/O and the calls are independent, so
// segments run on a bounded worker group; the slot slice preserves segment
// order. Per-segment WAV files are written for the recognizer and removed
// before returning.
func (p *Pipeline) processSegments(ctx context.Context, clip audio.Clip, segments []audio.Segment, uploadPath string, profile lexicon.Profile) ([]segmentOutcome, error) {
	wavs := make([][]byte, len(segments))
	for i, seg := range segments {
		data, err := p.encodeSegment(uploadPath, i, clip.Samples[seg.Start:seg.End], clip.SampleRate)
		if err != nil {
			return nil, err
		}
		wavs[i] = data
	}

	outcomes := make([]segmentOutcome, len(segments))
	g := new(errgroup.Group)
	g.SetLimit(segmentWorkers)
	for i, seg := range segments {
		g.Go(func() error {
			quality, voiced := p.analyzer.Analyze(clip.Samples[seg.Start:seg.End], clip.SampleRate)
			result := p.transcriber.Transcribe(ctx, wavs[i], profile)
			outcomes[i] = segmentOutcome{transcription: result, quality: quality, voiced: voiced}
			return nil
		})
	}
	g.Wait()
	return outcomes, nil
}

// encodeSegment writes one segment as a temporary WAV file and returns its
// bytes. The file is removed before returning, error or not.
func (p *Pipeline) encodeSegment(uploadPath string, idx int, samples []float64, sampleRate int) ([]byte, error) {
	path := fmt.Sprintf("%s_seg%d.wav", uploadPath, idx)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create segment file: %w", err)
	}
	defer os.Remove(path)

	if err := audio.EncodeWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("could not close segment file: %w", err)
	}
	return os.ReadFile(path)
}

// scoreOutcomes turns segment outcomes into repetitions. Segments without
// enough voiced material are discarded, not scored as zero; a failed
// transcription still scores (as an empty transcript with zero confidence).
func (p *Pipeline) scoreOutcomes(outcomes []segmentOutcome, word string, profile lexicon.Profile) []report.Repetition {
	var repetitions []report.Repetition
	for i, o := range outcomes {
		if !o.voiced {
			p.log.Debug("Discarding segment without voiced material", zap.Int("segment", i))
			continue
		}
		text, confidence := o.transcription.TextAndConfidence()
		accuracy := scoring.Accuracy(text, word, confidence, o.quality.Jitter, o.quality.Shimmer, profile)
		repetitions = append(repetitions, report.Repetition{
			PronunciationAccuracy:      accuracy,
			ContainsPronunciationSound: true,
			PronunciationMatchesWord:   lexicon.Matches(text, word),
		})
		p.log.Debug("Scored segment",
			zap.Int("segment", i),
			zap.String("text", text),
			zap.Float64("confidence", confidence),
			zap.Float64("accuracy", accuracy))
	}
	return repetitions
}

// persist appends the repetitions and refreshes the touched rollups under
// the per-report lock: word average first, then the session average that
// depends on it.
func (p *Pipeline) persist(ctx context.Context, req Request, repetitions []report.Repetition) error {
	unlock := p.locks.Lock(req.ReportID)
	defer unlock()

	r, err := p.store.Get(ctx, req.ReportID)
	if err != nil {
		return err
	}

	session, word := r.Touch(req.Level, req.Sublevel, req.SessionNumber, req.Word)
	for _, rep := range repetitions {
		word.Append(rep)
	}
	word.Recompute()
	session.Recompute()

	if err := p.store.Save(ctx, r); err != nil {
		return fmt.Errorf("could not save report %s: %w", req.ReportID, err)
	}
	return nil
}
