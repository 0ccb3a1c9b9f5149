package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/authz"
	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/pkg/queue"
	"github.com/ratepro/backend/pkg/response"
	"github.com/ratepro/backend/pkg/utils"
)

// Handler handles authentication HTTP endpoints.
type Handler struct {
	repo       *Repository
	jwt        *JWTService
	jobs       queue.Queue
	otpExpire  time.Duration
	baseURL    string
	logger     *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, jobs queue.Queue, otpExpireMinutes int, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		repo:      repo,
		jwt:       jwt,
		jobs:      jobs,
		otpExpire: time.Duration(otpExpireMinutes) * time.Minute,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Company  string `json:"company" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a tenant plus its first companyAdmin user and sends the
// verification email (OTP and magic link) through the job queue.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	if _, err := h.repo.GetByEmail(ctx, req.Email); err == nil {
		response.Conflict(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	tenantID, err := h.repo.CreateTenant(ctx, req.Company)
	if err != nil {
		response.Internal(c, "failed to create tenant")
		return
	}

	user := &models.User{
		TenantID: &tenantID,
		Email:    req.Email,
		Password: hash,
		FullName: req.FullName,
		Role:     models.RoleCompanyAdmin,
		IsActive: true,
	}
	if err := h.repo.Create(ctx, user); err != nil {
		response.Internal(c, "failed to create user")
		return
	}

	if err := h.sendOTP(c, user, OTPPurposeVerify); err != nil {
		h.logger.Error("send verification email", zap.Error(err), zap.String("user_id", user.ID.String()))
	}
	response.Created(c, user.ToPublic())
}

func (h *Handler) sendOTP(c *gin.Context, user *models.User, purpose string) error {
	code, err := utils.NewOTP(6)
	if err != nil {
		return err
	}
	magic, err := utils.NewOpaqueToken(32)
	if err != nil {
		return err
	}
	otp := &OTPCode{
		UserID:     user.ID,
		Code:       code,
		MagicToken: magic,
		Purpose:    purpose,
		ExpiresAt:  time.Now().Add(h.otpExpire),
	}
	if err := h.repo.CreateOTP(c.Request.Context(), otp); err != nil {
		return err
	}
	link := fmt.Sprintf("%s/auth/%s?token=%s", h.baseURL, purpose, magic)
	subject := "Verify your RatePro account"
	if purpose == OTPPurposeReset {
		subject = "Reset your RatePro password"
	}
	return h.jobs.Enqueue(c.Request.Context(), queue.JobTypeEmail, tenantOrNil(user), queue.EmailPayload{
		TenantID:       user.TenantID,
		RecipientEmail: user.Email,
		Subject:        subject,
		BodyHTML:       fmt.Sprintf("<p>Your code is <b>%s</b> or use <a href=%q>this link</a>.</p>", code, link),
		EmailType:      "otp_" + purpose,
	})
}

func tenantOrNil(u *models.User) uuid.UUID {
	if u.TenantID != nil {
		return *u.TenantID
	}
	return uuid.Nil
}

// Login verifies credentials and sets access+refresh cookies.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil || !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !user.IsActive {
		response.Unauthorized(c, "account deactivated")
		return
	}
	access, refresh, err := h.jwt.GeneratePair(user)
	if err != nil {
		response.Internal(c, "failed to generate tokens")
		return
	}
	setAuthCookies(c, access, refresh)
	response.OK(c, gin.H{"token": access, "refresh_token": refresh, "user": user.ToPublic()})
}

// VerifyEmail consumes an OTP code or magic-link token.
func (h *Handler) VerifyEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.BadRequest(c, "invalid code")
		return
	}
	ok, err := h.repo.ConsumeOTP(c.Request.Context(), user.ID, OTPPurposeVerify, req.Code)
	if err != nil || !ok {
		response.BadRequest(c, "invalid or expired code")
		return
	}
	if err := h.repo.MarkVerified(c.Request.Context(), user.ID); err != nil {
		response.Internal(c, "failed to verify account")
		return
	}
	response.OK(c, gin.H{"verified": true})
}

// ResendOTP re-issues a code for purpose verify or reset.
func (h *Handler) ResendOTP(c *gin.Context) {
	var req struct {
		Email   string `json:"email" binding:"required,email"`
		Purpose string `json:"purpose" binding:"required,oneof=verify reset"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		// Do not reveal whether the email exists.
		response.OK(c, gin.H{"sent": true})
		return
	}
	if err := h.sendOTP(c, user, req.Purpose); err != nil {
		h.logger.Error("resend otp", zap.Error(err))
	}
	response.OK(c, gin.H{"sent": true})
}

// ForgotPassword sends a reset OTP.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if user, err := h.repo.GetByEmail(c.Request.Context(), req.Email); err == nil {
		if err := h.sendOTP(c, user, OTPPurposeReset); err != nil {
			h.logger.Error("send reset email", zap.Error(err))
		}
	}
	response.OK(c, gin.H{"sent": true})
}

// ResetPassword consumes a reset OTP and replaces the password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		Code        string `json:"code" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.BadRequest(c, "invalid code")
		return
	}
	ok, err := h.repo.ConsumeOTP(c.Request.Context(), user.ID, OTPPurposeReset, req.Code)
	if err != nil || !ok {
		response.BadRequest(c, "invalid or expired code")
		return
	}
	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	if err := h.repo.UpdatePassword(c.Request.Context(), user.ID, hash); err != nil {
		response.Internal(c, "failed to reset password")
		return
	}
	response.OK(c, gin.H{"reset": true})
}

// Refresh exchanges a valid refresh token for a new pair.
func (h *Handler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil || refresh == "" {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.ShouldBindJSON(&req)
		refresh = req.RefreshToken
	}
	claims, err := h.jwt.ValidateRefresh(refresh)
	if err != nil {
		response.Unauthorized(c, "invalid refresh token")
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil || !user.IsActive {
		response.Unauthorized(c, "account not found or deactivated")
		return
	}
	access, newRefresh, err := h.jwt.GeneratePair(user)
	if err != nil {
		response.Internal(c, "failed to generate tokens")
		return
	}
	setAuthCookies(c, access, newRefresh)
	response.OK(c, gin.H{"token": access, "refresh_token": newRefresh})
}

// Me returns the authenticated user's full public record.
func (h *Handler) Me(c *gin.Context) {
	v, ok := c.Get("principal")
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	p, ok := v.(*authz.Principal)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), p.UserID)
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, user.ToPublic())
}

// Logout clears the auth cookies.
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie("access_token", "", -1, "/", "", true, true)
	c.SetCookie("refresh_token", "", -1, "/", "", true, true)
	c.Status(http.StatusNoContent)
}

func setAuthCookies(c *gin.Context, access, refresh string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", access, int((24 * time.Hour).Seconds()), "/", "", true, true)
	c.SetCookie("refresh_token", refresh, int((7 * 24 * time.Hour).Seconds()), "/", "", true, true)
}
