package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/credit-engine/internal/analysis"
	"github.com/rawblock/credit-engine/internal/db"
	"github.com/rawblock/credit-engine/internal/ingest"
	"github.com/rawblock/credit-engine/internal/metrics"
	"github.com/rawblock/credit-engine/internal/pipeline"
	"github.com/rawblock/credit-engine/pkg/models"
)

type APIHandler struct {
	dbStore *db.PostgresStore
	runner  *pipeline.Runner
	wsHub   *Hub
}

// handleHealth returns engine status and capabilities for service discovery
func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "RawBlock Credit Scoring Engine v1.0",
		"capabilities": gin.H{
			"sync_scoring":           true,
			"async_scoring":          true,
			"percentile_calibration": true,
			"population_analysis":    true,
			"markdown_reports":       true,
			"websocket_stream":       true,
		},
		"dbConnected": h.dbStore != nil,
	})
}

// handleScore runs the full scoring pipeline on the posted batch and
// returns scores plus population analysis.
// POST /api/v1/score  body: JSON array of raw transaction records
func (h *APIHandler) handleScore(c *gin.Context) {
	batch, ok := h.bindBatch(c)
	if !ok {
		return
	}

	out, err := h.runner.Run(c.Request.Context(), batch)
	if err != nil {
		if errors.Is(err, pipeline.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": "A scoring run is already in progress"})
			return
		}
		metrics.ObserveRunFailure()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Scoring run failed", "details": err.Error()})
		return
	}

	h.finishRun(out)
	c.JSON(http.StatusOK, out)
}

// handleScoreAsync launches a background scoring run.
// POST /api/v1/score/async  body: JSON array of raw transaction records
func (h *APIHandler) handleScoreAsync(c *gin.Context) {
	batch, ok := h.bindBatch(c)
	if !ok {
		return
	}

	// Background runs outlive the request context.
	runID, err := h.runner.Start(context.Background(), batch, func(out *pipeline.Result, err error) {
		if err != nil {
			metrics.ObserveRunFailure()
			return
		}
		h.finishRun(out)
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": "A scoring run is already in progress"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start run", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "run_started",
		"runId":   runID,
		"records": len(batch),
	})
}

// bindBatch parses and pre-validates the posted transaction batch,
// answering 4xx itself when the batch is unusable.
func (h *APIHandler) bindBatch(c *gin.Context) ([]models.RawTransaction, bool) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Pipeline not initialized"})
		return nil, false
	}

	var batch []models.RawTransaction
	if err := c.ShouldBindJSON(&batch); err != nil {
		metrics.ObserveRunRejected()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected a JSON array of transaction records"})
		return nil, false
	}
	if err := ingest.ValidateBatch(batch); err != nil {
		metrics.ObserveRunRejected()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return batch, true
}

// finishRun records metrics, persists and broadcasts one completed run.
// Persistence failures are logged, never surfaced to the client: the
// scores were already computed.
func (h *APIHandler) finishRun(out *pipeline.Result) {
	metrics.ObserveRun(float64(out.DurationMs)/1000.0, out.TotalRecords, out.DroppedRecords, out.WalletCount)

	if h.dbStore != nil {
		run := db.RunRecord{
			ID:             out.RunID,
			StartedAt:      out.StartedAt,
			FinishedAt:     out.FinishedAt,
			DurationMs:     out.DurationMs,
			TotalRecords:   out.TotalRecords,
			DroppedRecords: out.DroppedRecords,
			WalletCount:    out.WalletCount,
		}
		if err := h.dbStore.SaveRun(context.Background(), run, out.Scores, out.Analysis); err != nil {
			log.Printf("[API] Failed to persist run %s: %v", out.RunID, err)
		}
	}

	if h.wsHub != nil {
		h.wsHub.BroadcastEvent("run_completed", gin.H{
			"runId":       out.RunID,
			"walletCount": out.WalletCount,
			"durationMs":  out.DurationMs,
			"meanScore":   out.Analysis.Distribution.MeanScore,
		})
	}
}

// handleProgress returns the current progress of the pipeline runner.
func (h *APIHandler) handleProgress(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Pipeline not initialized"})
		return
	}
	c.JSON(http.StatusOK, h.runner.Progress())
}

// handleGetRuns returns persisted run summaries, newest first.
func (h *APIHandler) handleGetRuns(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	runs, totalCount, err := h.dbStore.GetRuns(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch runs", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       runs,
		"totalCount": totalCount,
		"page":       page,
		"limit":      limit,
	})
}

// handleGetRun returns one run summary.
func (h *APIHandler) handleGetRun(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}
	runID, ok := parseRunID(c)
	if !ok {
		return
	}

	run, err := h.dbStore.GetRun(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch run", "details": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// handleGetRunScores returns a run's wallet scores, highest first.
func (h *APIHandler) handleGetRunScores(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}
	runID, ok := parseRunID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	scores, totalCount, err := h.dbStore.GetRunScores(c.Request.Context(), runID, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scores", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runId":      runID,
		"data":       scores,
		"totalCount": totalCount,
		"page":       page,
		"limit":      limit,
	})
}

// handleGetRunAnalysis returns the stored analysis document for a run.
func (h *APIHandler) handleGetRunAnalysis(c *gin.Context) {
	result, ok := h.loadAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleGetRunReport renders the stored analysis as a markdown report.
func (h *APIHandler) handleGetRunReport(c *gin.Context) {
	result, ok := h.loadAnalysis(c)
	if !ok {
		return
	}
	report := analysis.RenderMarkdown(*result)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report))
}

func (h *APIHandler) loadAnalysis(c *gin.Context) (*models.AnalysisResult, bool) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return nil, false
	}
	runID, ok := parseRunID(c)
	if !ok {
		return nil, false
	}

	result, err := h.dbStore.GetRunAnalysis(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analysis", "details": err.Error()})
		return nil, false
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return nil, false
	}
	return result, true
}

// handleGetWallet returns a wallet's score history across runs.
// Addresses are matched case-insensitively.
func (h *APIHandler) handleGetWallet(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	address := strings.ToLower(c.Param("address"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	history, err := h.dbStore.GetWalletHistory(c.Request.Context(), address, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch wallet history", "details": err.Error()})
		return
	}
	if len(history) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Wallet has no recorded scores"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"walletAddress": address,
		"latest":        history[0],
		"history":       history,
	})
}

// handleGetCategories returns the risk category breakdown of the most
// recent run.
func (h *APIHandler) handleGetCategories(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	summary, err := h.dbStore.GetCategorySummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": summary})
}

func parseRunID(c *gin.Context) (uuid.UUID, bool) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run id"})
		return uuid.Nil, false
	}
	return runID, true
}
