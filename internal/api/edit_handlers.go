package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tracelens/investigation-engine/internal/engine"
	"github.com/tracelens/investigation-engine/pkg/models"
)

// Structural edit endpoints. Each edit mutates the in-memory graph through
// the engine's documented operations (which record history) and then pushes
// the affected positions to the store best-effort.

func editStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrNodeNotFound), errors.Is(err, engine.ErrLinkNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNodeExists), errors.Is(err, engine.ErrLinkExists):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// handleAddNode creates an entity node.
// POST /sessions/:id/nodes {node payload}
func (h *APIHandler) handleAddNode(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	var node models.Node
	if err := c.ShouldBindJSON(&node); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid node payload", "details": err.Error()})
		return
	}
	if err := s.state.AddNode(node); err != nil {
		c.JSON(editStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"node": node})
}

// handleDeleteNode removes a node and its attached links.
func (h *APIHandler) handleDeleteNode(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	if err := s.state.DeleteNode(c.Param("nodeId")); err != nil {
		c.JSON(editStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("nodeId")})
}

// handleMoveNode records a drag.
// POST /sessions/:id/nodes/:nodeId/move { "x": 120, "y": 480 }
func (h *APIHandler) handleMoveNode(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	var pos models.Position
	if err := c.ShouldBindJSON(&pos); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid position payload", "details": err.Error()})
		return
	}
	if err := s.state.MoveNode(c.Param("nodeId"), pos); err != nil {
		c.JSON(editStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.persistPositions(c.Request.Context(), s)
	c.JSON(http.StatusOK, gin.H{"moved": c.Param("nodeId"), "position": pos})
}

// handleAddLink creates a relationship.
func (h *APIHandler) handleAddLink(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	var link models.Link
	if err := c.ShouldBindJSON(&link); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid link payload", "details": err.Error()})
		return
	}
	if err := s.state.AddLink(link); err != nil {
		c.JSON(editStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"link": link})
}

// handleUpdateLink replaces a relationship's payload.
func (h *APIHandler) handleUpdateLink(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	var link models.Link
	if err := c.ShouldBindJSON(&link); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid link payload", "details": err.Error()})
		return
	}
	link.ID = c.Param("linkId")
	if err := s.state.UpdateLink(link); err != nil {
		c.JSON(editStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"link": link})
}

// handleDeleteLink removes a relationship.
func (h *APIHandler) handleDeleteLink(c *gin.Context) {
	s := h.requireSession(c)
	if s == nil {
		return
	}
	if err := s.state.DeleteLink(c.Param("linkId")); err != nil {
		c.JSON(editStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("linkId")})
}
