package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"frameworks/coursebook/internal/tools"
	"frameworks/coursebook/pkg/logging"
)

type ChatHandler struct {
	Service *Service
	Logger  logging.Logger
}

type QueryRequest struct {
	Query     *string `json:"query" binding:"required"`
	SessionID string  `json:"session_id,omitempty"`
}

type QueryResponse struct {
	Answer    string         `json:"answer"`
	Sources   []tools.Source `json:"sources"`
	SessionID string         `json:"session_id"`
}

func NewChatHandler(service *Service, logger logging.Logger) *ChatHandler {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &ChatHandler{Service: service, Logger: logger}
}

func RegisterRoutes(router gin.IRoutes, handler *ChatHandler) {
	router.POST("/api/query", handler.HandleQuery)
	router.GET("/api/courses", handler.HandleCourses)
	router.DELETE("/api/session/:id", handler.HandleClearSession)
}

// HandleRoot answers GET / so load balancers and people get a quick signal.
func (h *ChatHandler) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Course Materials RAG System"})
}

func (h *ChatHandler) HandleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid request payload: " + err.Error()})
		return
	}
	ctx := c.Request.Context()

	sessionID := req.SessionID
	if sessionID == "" {
		id, err := h.Service.Sessions().CreateSession(ctx)
		if err != nil {
			h.Logger.WithError(err).Error("Failed to create session")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		sessionID = id
	}

	answer, sources, err := h.Service.Query(ctx, *req.Query, sessionID)
	if err != nil {
		h.Logger.WithError(err).WithField("session_id", sessionID).Error("Query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if sources == nil {
		sources = []tools.Source{}
	}
	c.JSON(http.StatusOK, QueryResponse{Answer: answer, Sources: sources, SessionID: sessionID})
}

func (h *ChatHandler) HandleCourses(c *gin.Context) {
	analytics, err := h.Service.Analytics(c.Request.Context())
	if err != nil {
		h.Logger.WithError(err).Error("Failed to retrieve analytics")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to retrieve analytics: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (h *ChatHandler) HandleClearSession(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.Service.Sessions().Clear(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "session_id": sessionID})
}
