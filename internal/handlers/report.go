package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lourdes7u7/analisisAudio/internal/report"
	"github.com/lourdes7u7/analisisAudio/internal/store"
)

// ReportHandler serves the report lifecycle endpoints: create, export,
// list, and finalize.
type ReportHandler struct {
	log   *zap.Logger
	store store.Store
	locks *store.KeyedLock
}

func NewReportHandler(log *zap.Logger, st store.Store, locks *store.KeyedLock) *ReportHandler {
	return &ReportHandler{log: log, store: st, locks: locks}
}

// flexString accepts both JSON strings and numbers; clients send patient
// IDs and ages either way.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = flexString(t)
	case float64:
		*s = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	case nil:
		*s = ""
	default:
		return fmt.Errorf("unsupported value %v", v)
	}
	return nil
}

type startRequest struct {
	PatientDetails struct {
		PatientID       flexString `json:"patientId"`
		PatientFullName string     `json:"patientFullName"`
		PatientAge      flexString `json:"patientAge"`
		PatientGender   string     `json:"patientGender"`
		Diagnostic      string     `json:"diagnostic"`
	} `json:"patientDetails"`
	MedicalDetails struct {
		MedicalCenterID   flexString `json:"medicalCenterId"`
		MedicalCenterName string     `json:"medicalCenterName"`
		MedicalPlace      string     `json:"medicalPlace"`
		SpecialistName    string     `json:"specialistName"`
	} `json:"medicalDetails"`
}

// Start creates a new report document and returns its ID.
func (h *ReportHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid start request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	patient := report.PatientDetails{
		PatientID:       string(req.PatientDetails.PatientID),
		PatientFullName: req.PatientDetails.PatientFullName,
		PatientAge:      string(req.PatientDetails.PatientAge),
		PatientGender:   req.PatientDetails.PatientGender,
		Diagnostic:      req.PatientDetails.Diagnostic,
	}
	medical := report.MedicalDetails{
		MedicalCenterID:   string(req.MedicalDetails.MedicalCenterID),
		MedicalCenterName: req.MedicalDetails.MedicalCenterName,
		MedicalPlace:      req.MedicalDetails.MedicalPlace,
		SpecialistName:    req.MedicalDetails.SpecialistName,
	}

	// Report IDs have second granularity; on a collision, take the next
	// second so two creations in the same instant both succeed.
	now := time.Now()
	for attempt := 0; attempt < 5; attempt++ {
		r := report.New(patient, medical, now)
		err := h.store.Create(c.Request.Context(), r)
		if err == nil {
			h.log.Info("Created report", zap.String("reportId", r.ReportDetails.ReportID))
			c.JSON(http.StatusOK, gin.H{"reportId": r.ReportDetails.ReportID, "status": "success"})
			return
		}
		if !errors.Is(err, store.ErrExists) {
			h.log.Error("Failed to create report", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create report"})
			return
		}
		now = now.Add(time.Second)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not allocate a report ID"})
}

// Get exports the full report tree as a downloadable document. Export marks
// the report completed and backfills default comments and recommendations;
// that mutation is persisted before the response is written.
func (h *ReportHandler) Get(c *gin.Context) {
	id := c.Param("reportId")

	unlock := h.locks.Lock(id)
	r, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		unlock()
		h.notFoundOrError(c, id, err)
		return
	}

	r.Complete()
	if err := h.store.Save(c.Request.Context(), r); err != nil {
		unlock()
		h.log.Error("Failed to save completed report", zap.String("reportId", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save report"})
		return
	}
	unlock()

	data, err := store.Marshal(r)
	if err != nil {
		h.log.Error("Failed to encode report", zap.String("reportId", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not encode report"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "report_"+id+".json"))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// List returns a summary line per persisted report.
func (h *ReportHandler) List(c *gin.Context) {
	summaries, err := h.store.List(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list reports", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": summaries})
}

type finalizeRequest struct {
	Comments        string `json:"comments"`
	Recommendations string `json:"recommendations"`
}

// Finalize overwrites the specialist fields and closes the report.
func (h *ReportHandler) Finalize(c *gin.Context) {
	id := c.Param("reportId")

	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	unlock := h.locks.Lock(id)
	defer unlock()

	r, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.notFoundOrError(c, id, err)
		return
	}

	r.Finalize(req.Comments, req.Recommendations)
	if err := h.store.Save(c.Request.Context(), r); err != nil {
		h.log.Error("Failed to finalize report", zap.String("reportId", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save report"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Report finalized"})
}

func (h *ReportHandler) notFoundOrError(c *gin.Context, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	h.log.Error("Failed to load report", zap.String("reportId", id), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load report"})
}
