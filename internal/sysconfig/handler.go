package sysconfig

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ratepro/backend/pkg/queue"
	"github.com/ratepro/backend/pkg/response"
	"github.com/ratepro/backend/pkg/secrets"
)

// Handler serves the platform-scoped system config endpoints. Route
// declarations restrict every endpoint to platform admins.
type Handler struct {
	repo   *Repository
	box    *secrets.Box
	jobs   queue.Queue
	logger *zap.Logger
}

// NewHandler creates a system config handler.
func NewHandler(repo *Repository, box *secrets.Box, jobs queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, box: box, jobs: jobs, logger: logger}
}

// keyView is the listing projection of one key. Sensitive values are
// never echoed back; IsSet tells the admin whether an override exists.
type keyView struct {
	Key       string `json:"key"`
	Category  string `json:"category"`
	Sensitive bool   `json:"sensitive"`
	Value     string `json:"value,omitempty"`
	IsSet     bool   `json:"is_set"`
	Default   string `json:"default,omitempty"`
}

func (h *Handler) views(c *gin.Context, keys []Key) ([]keyView, bool) {
	stored, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list system config", zap.Error(err))
		response.Internal(c, "failed to load config")
		return nil, false
	}
	byKey := map[string]Record{}
	for _, rec := range stored {
		byKey[rec.Key] = rec
	}

	views := make([]keyView, 0, len(keys))
	for _, k := range keys {
		v := keyView{Key: k.Name, Category: k.Category, Sensitive: k.Sensitive, Default: k.Default}
		if rec, ok := byKey[k.Name]; ok {
			v.IsSet = true
			if !k.Sensitive {
				v.Value = rec.Value
			}
		}
		views = append(views, v)
	}
	return views, true
}

// List returns every registered key with its override state.
func (h *Handler) List(c *gin.Context) {
	views, ok := h.views(c, Keys())
	if !ok {
		return
	}
	response.OK(c, views)
}

// ByCategory returns the keys of one category.
func (h *Handler) ByCategory(c *gin.Context) {
	keys := KeysByCategory(c.Param("category"))
	if len(keys) == 0 {
		response.NotFound(c, "unknown config category")
		return
	}
	views, ok := h.views(c, keys)
	if !ok {
		return
	}
	response.OK(c, views)
}

// UpsertRequest sets one key's override.
type UpsertRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// Upsert stores an override. Sensitive values are encrypted at rest;
// keys outside the registry are rejected.
func (h *Handler) Upsert(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	key, ok := Lookup(req.Key)
	if !ok {
		response.BadRequest(c, "key is not configurable")
		return
	}

	rec := &Record{
		Key:       key.Name,
		Value:     req.Value,
		Sensitive: key.Sensitive,
		Category:  key.Category,
	}
	if key.Sensitive {
		if h.box == nil {
			response.Internal(c, "no encryption key configured")
			return
		}
		sealed, err := h.box.Encrypt(req.Value)
		if err != nil {
			h.logger.Error("encrypt config value", zap.Error(err), zap.String("key", key.Name))
			response.Internal(c, "failed to store config")
			return
		}
		rec.Value = sealed
		rec.Encrypted = true
	}

	if err := h.repo.Upsert(c.Request.Context(), rec); err != nil {
		h.logger.Error("upsert system config", zap.Error(err), zap.String("key", key.Name))
		response.Internal(c, "failed to store config")
		return
	}
	response.OK(c, gin.H{"key": key.Name, "is_set": true})
}

// Reset removes a key's override so it resolves from env/default again.
func (h *Handler) Reset(c *gin.Context) {
	name := c.Param("key")
	if _, ok := Lookup(name); !ok {
		response.BadRequest(c, "key is not configurable")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.OK(c, gin.H{"key": name, "is_set": false})
			return
		}
		h.logger.Error("delete system config", zap.Error(err), zap.String("key", name))
		response.Internal(c, "failed to reset config")
		return
	}
	response.OK(c, gin.H{"key": name, "is_set": false})
}

// TestEmailRequest asks for a test delivery.
type TestEmailRequest struct {
	Recipient string `json:"recipient" binding:"required,email"`
}

// TestEmail enqueues a test message so the admin can verify the email
// settings end to end.
func (h *Handler) TestEmail(c *gin.Context) {
	var req TestEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	err := h.jobs.Enqueue(c.Request.Context(), queue.JobTypeEmail, uuid.Nil, queue.EmailPayload{
		RecipientEmail: req.Recipient,
		Subject:        "Test email",
		BodyHTML:       "<p>This is a test email confirming your email configuration works.</p>",
		EmailType:      "config_test",
	})
	if err != nil {
		h.logger.Error("enqueue test email", zap.Error(err))
		response.Internal(c, "failed to enqueue test email")
		return
	}
	response.OK(c, gin.H{"queued": true, "recipient": req.Recipient})
}
