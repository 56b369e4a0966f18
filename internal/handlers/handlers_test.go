package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lourdes7u7/analisisAudio/internal/analyze"
	"github.com/lourdes7u7/analisisAudio/internal/audio"
	"github.com/lourdes7u7/analisisAudio/internal/handlers"
	"github.com/lourdes7u7/analisisAudio/internal/lexicon"
	"github.com/lourdes7u7/analisisAudio/internal/report"
	"github.com/lourdes7u7/analisisAudio/internal/store"
	"github.com/lourdes7u7/analisisAudio/internal/transcribe"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testRate = 16000

type stubSegmenter struct {
	segments []audio.Segment
}

func (s stubSegmenter) Split(samples []float64, sampleRate int) []audio.Segment {
	return s.segments
}

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(samples []float64, sampleRate int) (audio.Quality, bool) {
	return audio.Quality{MeanF0: 200, Jitter: 0.01, Shimmer: 0.02}, true
}

type stubTranscriber struct {
	result transcribe.Result
}

func (s stubTranscriber) Transcribe(ctx context.Context, wav []byte, profile lexicon.Profile) transcribe.Result {
	return s.result
}

type app struct {
	router *gin.Engine
	store  *store.FileStore
}

func newApp(t *testing.T, seg audio.Segmenter, tr transcribe.Transcriber) *app {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	locks := store.NewKeyedLock()
	pipeline := analyze.NewPipeline(zap.NewNop(), fs, locks, seg, stubAnalyzer{}, tr, t.TempDir(), 0.3)

	reportHandler := handlers.NewReportHandler(zap.NewNop(), fs, locks)
	analyzeHandler := handlers.NewAnalyzeHandler(zap.NewNop(), pipeline)

	r := gin.New()
	r.POST("/start", reportHandler.Start)
	r.POST("/analyze", analyzeHandler.Analyze)
	r.GET("/report/:reportId", reportHandler.Get)
	r.GET("/reports", reportHandler.List)
	r.POST("/finalize/:reportId", reportHandler.Finalize)
	return &app{router: r, store: fs}
}

func defaultApp(t *testing.T) *app {
	t.Helper()
	return newApp(t,
		stubSegmenter{segments: []audio.Segment{{Start: 0, End: 8000}}},
		stubTranscriber{result: transcribe.Result{Text: "a", Confidence: 0.9}},
	)
}

func (a *app) seedReport(t *testing.T) string {
	t.Helper()
	r := report.New(report.PatientDetails{PatientFullName: "Ana Pérez"}, report.MedicalDetails{},
		time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC))
	if err := a.store.Create(context.Background(), r); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return r.ReportDetails.ReportID
}

func (a *app) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, w.Body.String())
	}
	return body
}

// analyzeForm builds the multipart body the game client sends. Empty values
// are omitted so required-field validation can be exercised.
func analyzeForm(t *testing.T, fields map[string]string, withAudio bool) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if withAudio {
		part, err := mw.CreateFormFile("audio", "clip.wav")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(wavBytes(t))
	}
	for k, v := range fields {
		if v != "" {
			mw.WriteField(k, v)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf, mw.FormDataContentType()
}

func wavBytes(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	samples := make([]float64, testRate)
	for i := range samples {
		samples[i] = 0.3
	}
	if err := audio.EncodeWAV(f, samples, testRate); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestStart(t *testing.T) {
	t.Parallel()
	a := defaultApp(t)

	// Numeric patientId and patientAge must be accepted alongside strings.
	body := `{
		"patientDetails": {"patientId": 42, "patientFullName": "Ana Pérez", "patientAge": "7", "patientGender": "F", "diagnostic": "dislalia"},
		"medicalDetails": {"medicalCenterId": "c1", "medicalCenterName": "Centro", "medicalPlace": "Quito", "specialistName": "Dra. Ruiz"}
	}`
	w := a.do(httptest.NewRequest(http.MethodPost, "/start", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", w.Code, w.Body.String())
	}

	resp := decodeBody(t, w)
	id, _ := resp["reportId"].(string)
	if !regexp.MustCompile(`^\d{8}_\d{6}$`).MatchString(id) {
		t.Fatalf("reportId = %q, want timestamp-shaped ID", id)
	}

	r, err := a.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("created report not persisted: %v", err)
	}
	if r.PatientDetails.PatientID != "42" {
		t.Errorf("PatientID = %q, want numeric id coerced to \"42\"", r.PatientDetails.PatientID)
	}
	if r.ReportDetails.ReportStatus != report.StatusInProgress {
		t.Errorf("status = %q, want in_progress", r.ReportDetails.ReportStatus)
	}
}

func TestStart_InvalidBody(t *testing.T) {
	t.Parallel()
	a := defaultApp(t)

	w := a.do(httptest.NewRequest(http.MethodPost, "/start", strings.NewReader("{not json")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetReport_CompletesAndDownloads(t *testing.T) {
	t.Parallel()
	a := defaultApp(t)
	id := a.seedReport(t)

	w := a.do(httptest.NewRequest(http.MethodGet, "/report/"+id, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, "report_"+id+".json") {
		t.Errorf("Content-Disposition = %q, want attachment named report_%s.json", got, id)
	}

	var doc report.Report
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("download is not a report document: %v", err)
	}
	if doc.ReportDetails.ReportStatus != report.StatusCompleted {
		t.Errorf("downloaded status = %q, want completed", doc.ReportDetails.ReportStatus)
	}
	if doc.ReportDetails.Comments != report.DefaultComments {
		t.Errorf("Comments = %q, want default backfill", doc.ReportDetails.Comments)
	}

	// The completion must be persisted, not just rendered.
	r, err := a.store.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if r.ReportDetails.ReportStatus != report.StatusCompleted {
		t.Errorf("persisted status = %q, want completed", r.ReportDetails.ReportStatus)
	}
}

func TestGetReport_KeepsSpecialistText(t *testing.T) {
	t.Parallel()
	a := defaultApp(t)
	id := a.seedReport(t)

	fin := `{"comments": "Buen progreso", "recommendations": "Practicar vocales"}`
	w := a.do(httptest.NewRequest(http.MethodPost, "/finalize/"+id, strings.NewReader(fin)))
	if w.Code != http.StatusOK {
		t.Fatalf("finalize status = %d, want 200\n%s", w.Code, w.Body.String())
	}

	w = a.do(httptest.NewRequest(http.MethodGet, "/report/"+id, nil))
	var doc report.Report
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.ReportDetails.Comments != "Buen progreso" {
		t.Errorf("Comments = %q, export must not overwrite specialist text", doc.ReportDetails.Comments)
	}
}

func TestGetReport_NotFound(t *testing.T) {
	t.Parallel()
	a := defaultApp(t)

	w := a.do(httptest.NewRequest(http.MethodGet, "/report/19990101_000000", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListReports(t *testing.T) {
	t.Parallel()
	a := defaultApp(t)
	a.seedReport(t)

	w := a.do(httptest.NewRequest(http.MethodGet, "/reports", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decodeBody(t, w)
	reports, ok := resp["reports"].([]any)
	if !ok || len(reports) != 1 {
		t.Errorf("reports = %v, want a single summary", resp["reports"])
	}
}

func TestFinalize_NotFound(t *testing.T) {
	t.Parallel()
	a := defaultApp(t)

	w := a.do(httptest.NewRequest(http.MethodPost, "/finalize/19990101_000000", strings.NewReader(`{}`)))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	a := defaultApp(t)
	id := a.seedReport(t)

	body, contentType := analyzeForm(t, map[string]string{
		"reportId": id,
		"level":    "Level 1",
		"sublevel": "Vocales",
		"word":     "a",
	}, true)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	w := a.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("response missing result object: %v", resp)
	}
	if got, _ := result["sessionNumber"].(float64); got != 1 {
		t.Errorf("sessionNumber = %v, want default 1", result["sessionNumber"])
	}
	if reps, ok := result["repetitions"].([]any); !ok || len(reps) != 1 {
		t.Errorf("repetitions = %v, want one scored repetition", result["repetitions"])
	}
}

func TestAnalyze_MissingFields(t *testing.T) {
	t.Parallel()
	a := defaultApp(t)
	id := a.seedReport(t)

	cases := []struct {
		name      string
		fields    map[string]string
		withAudio bool
	}{
		{"no audio file", map[string]string{"reportId": id, "level": "Level 1", "sublevel": "Vocales", "word": "a"}, false},
		{"no word", map[string]string{"reportId": id, "level": "Level 1", "sublevel": "Vocales"}, true},
		{"no report id", map[string]string{"level": "Level 1", "sublevel": "Vocales", "word": "a"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			body, contentType := analyzeForm(t, tc.fields, tc.withAudio)
			req := httptest.NewRequest(http.MethodPost, "/analyze", body)
			req.Header.Set("Content-Type", contentType)

			w := a.do(req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400\n%s", w.Code, w.Body.String())
			}
			if resp := decodeBody(t, w); resp["error"] != "Missing required parameters" {
				t.Errorf("error = %v, want missing-parameters message", resp["error"])
			}
		})
	}
}

func TestAnalyze_InvalidSessionNumber(t *testing.T) {
	t.Parallel()
	a := defaultApp(t)
	id := a.seedReport(t)

	body, contentType := analyzeForm(t, map[string]string{
		"reportId":      id,
		"level":         "Level 1",
		"sublevel":      "Vocales",
		"word":          "a",
		"sessionNumber": "zero",
	}, true)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	if w := a.do(req); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAnalyze_SilentClip(t *testing.T) {
	t.Parallel()
	// Segmenter finds nothing in the clip.
	a := newApp(t, stubSegmenter{}, stubTranscriber{})
	id := a.seedReport(t)

	body, contentType := analyzeForm(t, map[string]string{
		"reportId": id,
		"level":    "Level 1",
		"sublevel": "Vocales",
		"word":     "a",
	}, true)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	w := a.do(req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400\n%s", w.Code, w.Body.String())
	}
	if resp := decodeBody(t, w); resp["error"] != "No pronunciation detected" {
		t.Errorf("error = %v, want no-pronunciation message", resp["error"])
	}

	// A rejected clip must not leave any trace in the report.
	r, err := a.store.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if sub := r.Reports.Games.Expresatea.Levels["Level 1"].Sublevels["Vocales"]; sub != nil {
		t.Errorf("report gained entries from a rejected clip: %+v", sub)
	}
}

func TestAnalyze_UnknownReport(t *testing.T) {
	t.Parallel()
	a := defaultApp(t)

	body, contentType := analyzeForm(t, map[string]string{
		"reportId": "19990101_000000",
		"level":    "Level 1",
		"sublevel": "Vocales",
		"word":     "a",
	}, true)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	if w := a.do(req); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
