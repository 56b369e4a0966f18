// Package transcribe wraps the external speech-to-text service. Failures of
// the recognizer never fail an analyze call: the Result type makes the
// degraded path explicit, and the scoring boundary maps Unavailable to an
// empty transcript with zero confidence.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lourdes7u7/analisisAudio/internal/config"
	"github.com/lourdes7u7/analisisAudio/internal/lexicon"
)

// Result is the outcome of one transcription call.
type Result struct {
	Text       string
	Confidence float64
	// Unavailable is set when the recognizer could not be reached or
	// answered with an error. Text and Confidence are zero in that case.
	Unavailable bool
}

// TextAndConfidence maps the result onto the scoring inputs: an unavailable
// recognizer behaves like an unrecognized utterance.
func (r Result) TextAndConfidence() (string, float64) {
	if r.Unavailable {
		return "", 0
	}
	return r.Text, r.Confidence
}

// Transcriber converts one utterance of WAV audio into text, using the
// vocabulary selected by the profile.
type Transcriber interface {
	Transcribe(ctx context.Context, wavData []byte, profile lexicon.Profile) Result
}

// WitClient talks to the Wit.ai speech endpoint with a separate app token
// per vocabulary profile.
type WitClient struct {
	endpoint string
	tokens   map[lexicon.Profile]string
	client   *http.Client
	log      *zap.Logger
}

// NewWitClient builds a client from the recognizer configuration.
func NewWitClient(cfg config.STTConfig, log *zap.Logger) *WitClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WitClient{
		endpoint: cfg.Endpoint,
		tokens: map[lexicon.Profile]string{
			lexicon.ProfileVowels:    cfg.VocalesToken,
			lexicon.ProfileAlphabet:  cfg.AbecedarioToken,
			lexicon.ProfileSyllables: cfg.SilabasToken,
		},
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// witResponse is the subset of the Wit.ai speech response we read. The
// confidence comes from the speech block when present, otherwise from the
// first recognized intent.
type witResponse struct {
	Text   string `json:"text"`
	Speech struct {
		Confidence float64 `json:"confidence"`
	} `json:"speech"`
	Intents []struct {
		Confidence float64 `json:"confidence"`
	} `json:"intents"`
}

// Transcribe implements Transcriber. Transport errors, timeouts, and non-200
// answers all degrade to an Unavailable result.
func (c *WitClient) Transcribe(ctx context.Context, wavData []byte, profile lexicon.Profile) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(wavData))
	if err != nil {
		c.log.Error("Failed to build transcription request", zap.Error(err))
		return Result{Unavailable: true}
	}
	req.Header.Set("Authorization", "Bearer "+c.tokens[profile])
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("Transcription request failed", zap.String("profile", string(profile)), zap.Error(err))
		return Result{Unavailable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("Transcription service returned an error",
			zap.String("profile", string(profile)),
			zap.Int("status", resp.StatusCode))
		return Result{Unavailable: true}
	}

	var body witResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.log.Warn("Could not decode transcription response", zap.Error(err))
		return Result{Unavailable: true}
	}

	confidence := body.Speech.Confidence
	if confidence == 0 && len(body.Intents) > 0 {
		confidence = body.Intents[0].Confidence
	}

	text := strings.TrimSpace(body.Text)
	c.log.Debug("Transcription result",
		zap.String("profile", string(profile)),
		zap.String("text", text),
		zap.Float64("confidence", confidence))
	return Result{Text: text, Confidence: confidence}
}

// String implements fmt.Stringer for log-friendly output.
func (r Result) String() string {
	if r.Unavailable {
		return "unavailable"
	}
	return fmt.Sprintf("%q (%.2f)", r.Text, r.Confidence)
}
