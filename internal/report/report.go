// Package report defines the per-patient report document and the aggregation
// rules that fold repetition outcomes into word and session rollups.
//
// The document shape (field names and order) is the export format consumed by
// the therapist-facing tooling, so every entity is an explicit struct rather
// than a generic map: field order is a property of the schema.
package report

import (
	"math"
	"time"

	"github.com/lourdes7u7/analisisAudio/internal/lexicon"
)

// Status is the lifecycle state of a report.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Default texts backfilled when a report is completed without explicit
// specialist input.
const (
	DefaultComments        = "The patient has shown significant improvement in attention and focus."
	DefaultRecommendations = "The patient should continue using the app for at least 30 minutes a day."
)

const (
	// IDFormat is the sortable timestamp layout used for report IDs.
	IDFormat = "20060102_150405"
	// createdFormat is the human-readable creation timestamp layout.
	createdFormat = "02-01-2006 15:04"
)

// PatientDetails is opaque patient metadata, passed through verbatim.
type PatientDetails struct {
	PatientID       string `json:"patientId"`
	PatientFullName string `json:"patientFullName"`
	PatientAge      string `json:"patientAge"`
	PatientGender   string `json:"patientGender"`
	Diagnostic      string `json:"diagnostic"`
}

// MedicalDetails is opaque medical-center metadata, passed through verbatim.
type MedicalDetails struct {
	MedicalCenterID   string `json:"medicalCenterId"`
	MedicalCenterName string `json:"medicalCenterName"`
	MedicalPlace      string `json:"medicalPlace"`
	SpecialistName    string `json:"specialistName"`
}

// Details carries the report's own identity and lifecycle fields.
type Details struct {
	ReportID        string `json:"reportId"`
	ReportCreated   string `json:"reportCreated"`
	ReportType      string `json:"reportType"`
	ReportStatus    Status `json:"reportStatus"`
	Comments        string `json:"comments"`
	Recommendations string `json:"recommendations"`
}

// Report is the root document, one per patient report lifecycle.
type Report struct {
	PatientDetails PatientDetails `json:"patientDetails"`
	MedicalDetails MedicalDetails `json:"medicalDetails"`
	ReportDetails  Details        `json:"reportDetails"`
	Reports        GameReports    `json:"reports"`
}

// GameReports nests the per-game result trees.
type GameReports struct {
	Games Games `json:"games"`
}

// Games holds one entry per supported game.
type Games struct {
	Expresatea Game `json:"expresatea"`
}

// Game is the level tree for one game.
type Game struct {
	Levels map[string]*Level `json:"levels"`
}

// Level groups sublevels by name.
type Level struct {
	Sublevels map[string]*Sublevel `json:"sublevels"`
}

// Sublevel holds the ordered session list for one exercise category.
type Sublevel struct {
	SublevelName string     `json:"sublevelName"`
	Sessions     []*Session `json:"sessions"`
}

// Session is one sitting of the game. Sessions are positionally indexed,
// 1-based; the slice only ever grows.
type Session struct {
	SessionNumber  int            `json:"sessionNumber"`
	Words          []*Word        `json:"words"`
	SessionAverage SessionAverage `json:"sessionAverage"`
}

// SessionAverage is the session rollup, recomputed from word averages.
type SessionAverage struct {
	PronunciationAccuracy float64 `json:"pronunciationAccuracy"`
	TotalCorrectWords     int     `json:"totalCorrectWords"`
}

// Word accumulates the repetitions of one target word within a session.
// The repetition list is append-only.
type Word struct {
	Word              string       `json:"word"`
	Repetitions       []Repetition `json:"repetitions"`
	IndividualAverage WordAverage  `json:"individualAverage"`
}

// WordAverage is the per-word rollup.
type WordAverage struct {
	PronunciationAccuracy float64 `json:"pronunciationAccuracy"`
	WordRepeatedCorrectly bool    `json:"wordRepeatedCorrectly"`
}

// Repetition is one scored utterance segment. Segments that fail acoustic
// analysis are discarded before this point, so ContainsPronunciationSound is
// always true once persisted.
type Repetition struct {
	PronunciationAccuracy      float64 `json:"pronunciationAccuracy"`
	ContainsPronunciationSound bool    `json:"containsPronunciationSound"`
	PronunciationMatchesWord   bool    `json:"pronunciationMatchesWord"`
}

// New creates a report in the in_progress state with an ID derived from the
// creation instant. The level tree is seeded with an empty "Level 1" so the
// export shape is stable from the first analyze call.
func New(patient PatientDetails, medical MedicalDetails, now time.Time) *Report {
	return &Report{
		PatientDetails: patient,
		MedicalDetails: medical,
		ReportDetails: Details{
			ReportID:      now.Format(IDFormat),
			ReportCreated: now.Format(createdFormat),
			ReportType:    "game",
			ReportStatus:  StatusInProgress,
		},
		Reports: GameReports{
			Games: Games{
				Expresatea: Game{
					Levels: map[string]*Level{
						"Level 1": {Sublevels: map[string]*Sublevel{}},
					},
				},
			},
		},
	}
}

// Touch locates the session and word at the given path, creating every
// missing node on the way. Creation is idempotent: re-touching an existing
// path changes nothing structurally.
//
// The session slice is padded with empty placeholder sessions until it is
// long enough for sessionNumber. Callers that skip numbers leave permanent
// gap sessions behind; those are never backfilled with data.
func (r *Report) Touch(level, sublevel string, sessionNumber int, word string) (*Session, *Word) {
	levels := r.Reports.Games.Expresatea.Levels
	if levels == nil {
		levels = map[string]*Level{}
		r.Reports.Games.Expresatea.Levels = levels
	}

	lvl, ok := levels[level]
	if !ok {
		lvl = &Level{Sublevels: map[string]*Sublevel{}}
		levels[level] = lvl
	}

	sub, ok := lvl.Sublevels[sublevel]
	if !ok {
		sub = &Sublevel{
			SublevelName: lexicon.SublevelLabel(sublevel),
			Sessions:     []*Session{},
		}
		lvl.Sublevels[sublevel] = sub
	}

	for len(sub.Sessions) < sessionNumber {
		sub.Sessions = append(sub.Sessions, &Session{
			SessionNumber: len(sub.Sessions) + 1,
			Words:         []*Word{},
		})
	}
	session := sub.Sessions[sessionNumber-1]

	for _, w := range session.Words {
		if w.Word == word {
			return session, w
		}
	}
	w := &Word{Word: word, Repetitions: []Repetition{}}
	session.Words = append(session.Words, w)
	return session, w
}

// Append adds one repetition outcome. Repetitions are append-only.
func (w *Word) Append(rep Repetition) {
	w.Repetitions = append(w.Repetitions, rep)
}

// Recompute refreshes the word rollup from its repetitions: mean accuracy
// rounded to one decimal, and whether any repetition matched the word.
func (w *Word) Recompute() {
	if len(w.Repetitions) == 0 {
		return
	}
	var sum float64
	correct := false
	for _, rep := range w.Repetitions {
		sum += rep.PronunciationAccuracy
		correct = correct || rep.PronunciationMatchesWord
	}
	w.IndividualAverage = WordAverage{
		PronunciationAccuracy: round1(sum / float64(len(w.Repetitions))),
		WordRepeatedCorrectly: correct,
	}
}

// Recompute refreshes the session rollup from its word averages (not from
// raw repetitions), so word rollups must be recomputed first.
func (s *Session) Recompute() {
	if len(s.Words) == 0 {
		return
	}
	var sum float64
	correct := 0
	for _, w := range s.Words {
		sum += w.IndividualAverage.PronunciationAccuracy
		if w.IndividualAverage.WordRepeatedCorrectly {
			correct++
		}
	}
	s.SessionAverage = SessionAverage{
		PronunciationAccuracy: round1(sum / float64(len(s.Words))),
		TotalCorrectWords:     correct,
	}
}

// Complete marks the report completed for export, backfilling the default
// comments and recommendations only where the specialist left them empty.
func (r *Report) Complete() {
	r.ReportDetails.ReportStatus = StatusCompleted
	if r.ReportDetails.Comments == "" {
		r.ReportDetails.Comments = DefaultComments
	}
	if r.ReportDetails.Recommendations == "" {
		r.ReportDetails.Recommendations = DefaultRecommendations
	}
}

// Finalize overwrites the specialist fields and closes the report.
func (r *Report) Finalize(comments, recommendations string) {
	r.ReportDetails.Comments = comments
	r.ReportDetails.Recommendations = recommendations
	r.ReportDetails.ReportStatus = StatusCompleted
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
