package notifications

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/middleware"
	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler handles per-user notification endpoints and the live stream.
type Handler struct {
	repo   *Repository
	hub    *Hub
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(repo *Repository, hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, hub: hub, logger: logger}
}

// List returns the caller's notifications.
func (h *Handler) List(c *gin.Context) {
	p := middleware.Principal(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.repo.List(c.Request.Context(), p.UserID, c.Query("status"), limit, offset)
	if err != nil {
		response.Internal(c, "failed to list notifications")
		return
	}
	response.OK(c, list)
}

// UnreadCount returns the caller's unread count.
func (h *Handler) UnreadCount(c *gin.Context) {
	p := middleware.Principal(c)
	count, err := h.repo.UnreadCount(c.Request.Context(), p.UserID)
	if err != nil {
		response.Internal(c, "failed to count notifications")
		return
	}
	response.OK(c, gin.H{"unread": count})
}

// MarkRead marks one notification read.
func (h *Handler) MarkRead(c *gin.Context) {
	h.setStatus(c, models.NotificationRead)
}

// Archive archives one notification.
func (h *Handler) Archive(c *gin.Context) {
	h.setStatus(c, models.NotificationArchived)
}

func (h *Handler) setStatus(c *gin.Context, status string) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	ok, err := h.repo.SetStatus(c.Request.Context(), p.UserID, id, status)
	if err != nil {
		response.Internal(c, "failed to update notification")
		return
	}
	if !ok {
		response.NotFound(c, "notification not found")
		return
	}
	response.OK(c, gin.H{"status": status})
}

// MarkAllRead marks every unread notification read.
func (h *Handler) MarkAllRead(c *gin.Context) {
	p := middleware.Principal(c)
	n, err := h.repo.MarkAllRead(c.Request.Context(), p.UserID)
	if err != nil {
		response.Internal(c, "failed to update notifications")
		return
	}
	response.OK(c, gin.H{"marked": n})
}

// Delete removes one notification.
func (h *Handler) Delete(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	ok, err := h.repo.Delete(c.Request.Context(), p.UserID, id)
	if err != nil {
		response.Internal(c, "failed to delete notification")
		return
	}
	if !ok {
		response.NotFound(c, "notification not found")
		return
	}
	response.NoContent(c)
}

// BatchCreateRequest creates the same notification for several users.
type BatchCreateRequest struct {
	UserIDs   []uuid.UUID             `json:"user_ids" binding:"required,min=1"`
	Type      string                  `json:"type" binding:"required"`
	Priority  string                  `json:"priority"`
	Title     string                  `json:"title" binding:"required"`
	Message   string                  `json:"message"`
	Reference *models.NotificationRef `json:"reference"`
	ExpiresAt *time.Time              `json:"expires_at"`
}

// BatchCreate fans one notification out to several users of the tenant.
func (h *Handler) BatchCreate(c *gin.Context) {
	p := middleware.Principal(c)
	var req BatchCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Priority == "" {
		req.Priority = "info"
	}
	created := 0
	for _, userID := range req.UserIDs {
		n := &models.Notification{
			UserID:    userID,
			TenantID:  p.TenantID,
			Type:      req.Type,
			Priority:  req.Priority,
			Title:     req.Title,
			Message:   req.Message,
			Reference: req.Reference,
			ExpiresAt: req.ExpiresAt,
		}
		if err := h.repo.Create(c.Request.Context(), n); err != nil {
			h.logger.Warn("batch create notification", zap.Error(err))
			continue
		}
		h.hub.Publish(n)
		created++
	}
	response.Created(c, gin.H{"created": created})
}

// Stream upgrades to a websocket delivering the caller's notifications as
// they are created. The read loop only services control frames.
func (h *Handler) Stream(c *gin.Context) {
	p := middleware.Principal(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade", zap.Error(err))
		return
	}
	detach := h.hub.Register(p.UserID, conn)
	defer detach()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
