// Package media issues pre-signed upload URLs for answer attachments.
package media

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/surveys"
	"github.com/ratepro/backend/pkg/response"
	"github.com/ratepro/backend/pkg/storage"
	"github.com/ratepro/backend/pkg/utils"
)

// Handler serves upload URL requests. Respondents upload straight to S3
// with the returned URL and reference the object key in their answer; the
// API never proxies file bytes.
type Handler struct {
	s3      *storage.S3
	surveys *surveys.Repository
	logger  *zap.Logger
}

// NewHandler creates a media handler. s3 may be nil when no bucket is
// configured; requests then fail with 503.
func NewHandler(s3 *storage.S3, surveyRepo *surveys.Repository, logger *zap.Logger) *Handler {
	return &Handler{s3: s3, surveys: surveyRepo, logger: logger}
}

// UploadURLRequest asks for a pre-signed PUT URL.
type UploadURLRequest struct {
	SurveyID    uuid.UUID `json:"survey_id" binding:"required"`
	ContentType string    `json:"content_type" binding:"required"`
	SizeBytes   int64     `json:"size_bytes" binding:"required,min=1"`
}

// UploadURL issues a pre-signed upload URL for one attachment. The target
// survey must currently accept submissions.
func (h *Handler) UploadURL(c *gin.Context) {
	if h.s3 == nil {
		c.JSON(http.StatusServiceUnavailable,
			response.Body{Success: false, Error: "media storage is not configured"})
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	contentType := strings.ToLower(req.ContentType)
	ext, allowed := storage.AllowedMediaTypes[contentType]
	if !allowed {
		response.BadRequest(c, "content type not allowed")
		return
	}
	if req.SizeBytes > storage.MaxMediaFileSize {
		response.BadRequest(c, fmt.Sprintf("file exceeds %d bytes", int64(storage.MaxMediaFileSize)))
		return
	}

	survey, err := h.surveys.GetByID(c.Request.Context(), req.SurveyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "survey not found")
			return
		}
		h.logger.Error("load survey for media", zap.Error(err))
		response.Internal(c, "failed to issue upload URL")
		return
	}
	if !survey.AcceptsSubmissions(time.Now().UTC()) {
		response.NotFound(c, "survey not found")
		return
	}

	name, err := utils.NewOpaqueToken(16)
	if err != nil {
		h.logger.Error("generate media key", zap.Error(err))
		response.Internal(c, "failed to issue upload URL")
		return
	}
	key := storage.MediaKey(survey.TenantID.String(), survey.ID.String(), name+ext)
	url, err := h.s3.PresignUpload(c.Request.Context(), key, contentType)
	if err != nil {
		h.logger.Error("presign upload", zap.Error(err))
		response.Internal(c, "failed to issue upload URL")
		return
	}
	response.OK(c, gin.H{"upload_url": url, "key": key})
}
