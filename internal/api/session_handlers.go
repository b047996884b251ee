package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tracelens/investigation-engine/internal/engine"
	"github.com/tracelens/investigation-engine/internal/layout"
	"github.com/tracelens/investigation-engine/internal/preprocess"
	"github.com/tracelens/investigation-engine/internal/viewport"
	"github.com/tracelens/investigation-engine/pkg/models"
)

// handleCreateSession loads a case's node/link collections into a fresh
// in-memory graph and returns the session id.
// POST /api/v1/sessions { "caseId": "...", "nodes": [...], "links": [...] }
func (h *APIHandler) handleCreateSession(c *gin.Context) {
	var req struct {
		CaseID string        `json:"caseId"`
		Nodes  []models.Node `json:"nodes"`
		Links  []models.Link `json:"links"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.CaseID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "caseId is required"})
		return
	}

	id := uuid.NewString()
	h.putSession(id, &session{caseID: req.CaseID, state: engine.NewState(req.Nodes, req.Links)})

	nodes, links := h.getSession(id).state.Graph()
	log.Printf("Session %s created for case %s: %d nodes, %d links", id, req.CaseID, len(nodes), len(links))
	c.JSON(http.StatusCreated, gin.H{
		"sessionId": id,
		"caseId":    req.CaseID,
		"nodes":     len(nodes),
		"links":     len(links),
	})
}

func (h *APIHandler) requireSession(c *gin.Context) *session {
	s := h.getSession(c.Param("id"))
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown session id"})
		return nil
	}
	return s
}

// handleGetGraph returns the current node/link snapshot.
func (h *APIHandler) handleGetGraph(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	nodes, links := s.state.Graph()
	c.JSON(http.StatusOK, gin.H{
		"nodes":        nodes,
		"links":        links,
		"activeLayout": s.state.ActiveLayout(),
	})
}

// handleGetStats returns the header-bar summary.
func (h *APIHandler) handleGetStats(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	c.JSON(http.StatusOK, s.state.Stats())
}

// handleListLayouts returns the registered layout strategy names.
func (h *APIHandler) handleListLayouts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": layout.Names()})
}

// handleApplyLayout runs a layout strategy and persists resulting positions
// best-effort. Layered-sankey precondition failures come back as 422 with a
// user-visible warning and no partial layout applied.
// POST /sessions/:id/layout { "strategy": "tree", "width": 1600, "height": 900 }
func (h *APIHandler) handleApplyLayout(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	var req struct {
		Strategy string  `json:"strategy"`
		Width    float64 `json:"width"`
		Height   float64 `json:"height"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	res, err := s.state.ApplyLayout(req.Strategy, layout.Container{Width: req.Width, Height: req.Height})
	if err != nil {
		if errors.Is(err, layout.ErrNoLayerDiversity) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"warning": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.persistLayout(c.Request.Context(), s, res)
	if res.Patterns != nil {
		h.broadcastPatterns(s.caseID, *res.Patterns)
	}
	c.JSON(http.StatusOK, res)
}

// persistLayout pushes positions (and layered-sankey outputs) to the store.
// Failures are logged and dropped: the store is telemetry, not truth.
func (h *APIHandler) persistLayout(ctx context.Context, s *session, res layout.Result) {
	if h.dbStore == nil {
		return
	}
	if err := h.dbStore.SavePositions(ctx, s.caseID, res.Strategy, s.state.FinitePositions()); err != nil {
		log.Printf("Failed to persist positions for case %s: %v", s.caseID, err)
	}
	if res.Classifications != nil {
		if err := h.dbStore.SaveClassifications(ctx, s.caseID, res.Classifications); err != nil {
			log.Printf("Failed to persist classifications for case %s: %v", s.caseID, err)
		}
	}
	if res.Patterns != nil {
		if err := h.dbStore.SavePatternReport(ctx, s.caseID, *res.Patterns); err != nil {
			log.Printf("Failed to persist pattern report for case %s: %v", s.caseID, err)
		}
	}
}

// handlePreprocess runs the dedup → aggregate → filter pipeline and returns
// the cleaned links plus the duplicate audit trail.
// POST /sessions/:id/preprocess { "aggregate": true, "minAmount": 1000 }
func (h *APIHandler) handlePreprocess(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	var req struct {
		Aggregate *bool    `json:"aggregate"`
		MinAmount *float64 `json:"minAmount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	opts := preprocess.DefaultOptions()
	if req.Aggregate != nil {
		opts.Aggregate = *req.Aggregate
	}
	if req.MinAmount != nil {
		opts.MinAmount = *req.MinAmount
	}

	res := s.state.Preprocess(opts)
	c.JSON(http.StatusOK, gin.H{
		"links":      res.Links,
		"duplicates": res.Duplicates,
	})
}

// handleClassifications recomputes and returns the account classification map.
func (h *APIHandler) handleClassifications(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	classifications := s.state.Classify()
	if h.dbStore != nil {
		if err := h.dbStore.SaveClassifications(c.Request.Context(), s.caseID, classifications); err != nil {
			log.Printf("Failed to persist classifications for case %s: %v", s.caseID, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"classifications": classifications})
}

// handlePatterns recomputes and returns the pattern report, broadcasting
// fresh alerts to the stream.
func (h *APIHandler) handlePatterns(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	report := s.state.Patterns()
	h.broadcastPatterns(s.caseID, report)
	if h.dbStore != nil {
		if err := h.dbStore.SavePatternReport(c.Request.Context(), s.caseID, report); err != nil {
			log.Printf("Failed to persist pattern report for case %s: %v", s.caseID, err)
		}
	}
	c.JSON(http.StatusOK, report)
}

// broadcastPatterns pushes a pattern-alert frame to all stream subscribers.
func (h *APIHandler) broadcastPatterns(caseID string, report models.PatternReport) {
	if h.wsHub == nil {
		return
	}
	if len(report.RapidForwards) == 0 && len(report.SplittingPatterns) == 0 && len(report.CircularFlows) == 0 {
		return
	}
	payload, _ := json.Marshal(gin.H{
		"type":     "pattern_alert",
		"caseId":   caseID,
		"patterns": report,
	})
	h.wsHub.Broadcast(payload)
	log.Printf("[ALERT] case %s: %d rapid forwards, %d splitting patterns, %d circular flows",
		caseID, len(report.RapidForwards), len(report.SplittingPatterns), len(report.CircularFlows))
}

// handleViewport culls the graph against the padded view rectangle.
// GET /sessions/:id/viewport?x=0&y=0&zoom=1&width=1600&height=900
func (h *APIHandler) handleViewport(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	v := viewport.View{
		X:      queryFloat(c, "x", 0),
		Y:      queryFloat(c, "y", 0),
		Zoom:   queryFloat(c, "zoom", 1),
		Width:  queryFloat(c, "width", 1600),
		Height: queryFloat(c, "height", 900),
	}
	nodes, links := s.state.Viewport(v)
	c.JSON(http.StatusOK, gin.H{"nodes": nodes, "links": links})
}

func queryFloat(c *gin.Context, key string, fallback float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

// handleHistory lists the undo/redo log.
func (h *APIHandler) handleHistory(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	entries, canUndo, canRedo := s.state.History()
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"canUndo": canUndo,
		"canRedo": canRedo,
	})
}

// handleUndo reverts the most recent action. An exhausted stack is a 200
// no-op with a user-visible message, never an error state.
func (h *APIHandler) handleUndo(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	entry, err := s.state.Undo()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"applied": false, "message": "Nothing to undo"})
		return
	}
	h.persistPositions(c.Request.Context(), s)
	c.JSON(http.StatusOK, gin.H{"applied": true, "action": entry})
}

// handleRedo re-applies the most recently undone action.
func (h *APIHandler) handleRedo(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	entry, err := s.state.Redo()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"applied": false, "message": "Nothing to redo"})
		return
	}
	h.persistPositions(c.Request.Context(), s)
	c.JSON(http.StatusOK, gin.H{"applied": true, "action": entry})
}

func (h *APIHandler) persistPositions(ctx context.Context, s *session) {
	if h.dbStore == nil {
		return
	}
	if err := h.dbStore.SavePositions(ctx, s.caseID, s.state.ActiveLayout(), s.state.FinitePositions()); err != nil {
		log.Printf("Failed to persist positions for case %s: %v", s.caseID, err)
	}
}

// handleExportJSON returns the evidence document.
func (h *APIHandler) handleExportJSON(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	c.JSON(http.StatusOK, s.state.ExportJSON())
}

// handleExportPNG returns the rasterized snapshot of the current view.
func (h *APIHandler) handleExportPNG(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	png, err := s.state.ExportPNG()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// handleHealth reports engine status and capabilities for service discovery.
func (h *APIHandler) handleHealth(c *gin.Context) {
	h.mu.RLock()
	active := len(h.sessions)
	h.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":         "operational",
		"engine":         "TraceLens Investigation Graph Engine v1.0",
		"activeSessions": active,
		"capabilities": gin.H{
			"layouts":           layout.Names(),
			"pattern_detection": true,
			"undo_redo":         true,
			"viewport_culling":  true,
			"exports":           []string{"json", "png"},
		},
		"dbConnected": h.dbStore != nil,
	})
}
