package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lourdes7u7/analisisAudio/internal/analyze"
	"github.com/lourdes7u7/analisisAudio/internal/store"
)

// AnalyzeHandler accepts one audio clip per call and runs it through the
// scoring pipeline.
type AnalyzeHandler struct {
	log      *zap.Logger
	pipeline *analyze.Pipeline
}

func NewAnalyzeHandler(log *zap.Logger, pipeline *analyze.Pipeline) *AnalyzeHandler {
	return &AnalyzeHandler{log: log, pipeline: pipeline}
}

// Analyze handles the multipart upload. Required fields: the audio file plus
// reportId, level, sublevel, and word; sessionNumber defaults to 1. Any
// missing field rejects the call before any processing happens.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}

	reportID := c.PostForm("reportId")
	level := c.PostForm("level")
	sublevel := c.PostForm("sublevel")
	word := c.PostForm("word")
	if reportID == "" || level == "" || sublevel == "" || word == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}

	sessionNumber := 1
	if raw := c.PostForm("sessionNumber"); raw != "" {
		sessionNumber, err = strconv.Atoi(raw)
		if err != nil || sessionNumber < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session number"})
			return
		}
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.log.Error("Failed to open uploaded audio", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read audio file"})
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		h.log.Error("Failed to read uploaded audio", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read audio file"})
		return
	}

	summary, err := h.pipeline.Analyze(c.Request.Context(), analyze.Request{
		ReportID:      reportID,
		Level:         level,
		Sublevel:      sublevel,
		SessionNumber: sessionNumber,
		Word:          word,
		Filename:      fileHeader.Filename,
		Audio:         data,
	})
	if err != nil {
		h.respondError(c, reportID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": summary})
}

func (h *AnalyzeHandler) respondError(c *gin.Context, reportID string, err error) {
	switch {
	case errors.Is(err, analyze.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
	case errors.Is(err, analyze.ErrNoSpeech):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No pronunciation detected"})
	case errors.Is(err, analyze.ErrNoValidSegments):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No valid segments could be processed"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
	default:
		h.log.Error("Analyze call failed", zap.String("reportId", reportID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing audio"})
	}
}
