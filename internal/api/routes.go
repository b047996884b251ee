package api

import (
	"os"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/tracelens/investigation-engine/internal/db"
	"github.com/tracelens/investigation-engine/internal/engine"
)

// session is one loaded investigation graph plus its owning case id.
type session struct {
	caseID string
	state  *engine.State
}

// APIHandler carries the shared server dependencies.
type APIHandler struct {
	mu       sync.RWMutex
	sessions map[string]*session
	dbStore  *db.PostgresStore
	wsHub    *Hub
}

// SetupRouter wires the Gin engine: CORS, auth, rate limiting, and the
// /api/v1 investigation-graph surface.
func SetupRouter(dbStore *db.PostgresStore, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	// CORS — configurable via ALLOWED_ORIGINS (comma separated), * by default.
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		sessions: make(map[string]*session),
		dbStore:  dbStore,
		wsHub:    wsHub,
	}

	limiter := NewRateLimiter(120, 30)

	api := r.Group("/api/v1")
	api.Use(limiter.Middleware())
	{
		api.GET("/health", handler.handleHealth)
		api.GET("/stream", wsHub.Subscribe)
		api.GET("/layouts", handler.handleListLayouts)

		protected := api.Group("")
		protected.Use(AuthMiddleware())
		{
			protected.POST("/sessions", handler.handleCreateSession)
			protected.GET("/sessions/:id/graph", handler.handleGetGraph)
			protected.GET("/sessions/:id/stats", handler.handleGetStats)
			protected.POST("/sessions/:id/layout", handler.handleApplyLayout)
			protected.POST("/sessions/:id/preprocess", handler.handlePreprocess)
			protected.GET("/sessions/:id/classifications", handler.handleClassifications)
			protected.GET("/sessions/:id/patterns", handler.handlePatterns)
			protected.GET("/sessions/:id/viewport", handler.handleViewport)
			protected.GET("/sessions/:id/history", handler.handleHistory)
			protected.POST("/sessions/:id/undo", handler.handleUndo)
			protected.POST("/sessions/:id/redo", handler.handleRedo)

			protected.POST("/sessions/:id/nodes", handler.handleAddNode)
			protected.DELETE("/sessions/:id/nodes/:nodeId", handler.handleDeleteNode)
			protected.POST("/sessions/:id/nodes/:nodeId/move", handler.handleMoveNode)
			protected.POST("/sessions/:id/links", handler.handleAddLink)
			protected.PUT("/sessions/:id/links/:linkId", handler.handleUpdateLink)
			protected.DELETE("/sessions/:id/links/:linkId", handler.handleDeleteLink)

			protected.GET("/sessions/:id/export/json", handler.handleExportJSON)
			protected.GET("/sessions/:id/export/png", handler.handleExportPNG)
		}
	}

	return r
}

// getSession resolves a session id, nil when unknown.
func (h *APIHandler) getSession(id string) *session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[id]
}

func (h *APIHandler) putSession(id string, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[id] = s
}
