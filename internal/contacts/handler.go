package contacts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/middleware"
	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/pkg/response"
)

// Handler handles contact and category endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a contacts handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// ContactRequest is the body for contact create/update.
type ContactRequest struct {
	Email      string                    `json:"email" binding:"required,email"`
	FullName   string                    `json:"full_name" binding:"required"`
	Phone      string                    `json:"phone"`
	Categories []string                  `json:"categories"`
	Tags       []string                  `json:"tags"`
	Enrichment *models.ContactEnrichment `json:"enrichment"`
}

// Create adds a contact to the tenant.
func (h *Handler) Create(c *gin.Context) {
	p := middleware.Principal(c)
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ct := &models.Contact{
		TenantID:   *p.TenantID,
		Email:      req.Email,
		FullName:   req.FullName,
		Phone:      req.Phone,
		Categories: req.Categories,
		Tags:       req.Tags,
		Enrichment: req.Enrichment,
	}
	if err := h.repo.Create(c.Request.Context(), ct); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			response.Conflict(c, "contact email already exists")
			return
		}
		response.Internal(c, "failed to create contact")
		return
	}
	response.Created(c, ct)
}

// List returns tenant contacts with search, category filter and paging.
func (h *Handler) List(c *gin.Context) {
	p := middleware.Principal(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, total, err := h.repo.List(c.Request.Context(), *p.TenantID, ListOptions{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		response.Internal(c, "failed to list contacts")
		return
	}
	response.OK(c, gin.H{"contacts": list, "total": total})
}

// Get returns one contact.
func (h *Handler) Get(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid contact id")
		return
	}
	ct, err := h.repo.GetInTenant(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.NotFound(c, "contact not found")
		return
	}
	response.OK(c, ct)
}

// Update replaces the mutable contact fields. Email and survey stats are
// immutable through this endpoint.
func (h *Handler) Update(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid contact id")
		return
	}
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ct := &models.Contact{
		ID:         id,
		TenantID:   *p.TenantID,
		FullName:   req.FullName,
		Phone:      req.Phone,
		Categories: req.Categories,
		Tags:       req.Tags,
		Enrichment: req.Enrichment,
	}
	ok, err := h.repo.Update(c.Request.Context(), ct)
	if err != nil {
		response.Internal(c, "failed to update contact")
		return
	}
	if !ok {
		response.NotFound(c, "contact not found")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

// Delete removes a contact.
func (h *Handler) Delete(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid contact id")
		return
	}
	ok, err := h.repo.Delete(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.Internal(c, "failed to delete contact")
		return
	}
	if !ok {
		response.NotFound(c, "contact not found")
		return
	}
	response.NoContent(c)
}

// RowResult reports the outcome of one CSV row in a bulk upload.
type RowResult struct {
	Row   int    `json:"row"`
	Email string `json:"email"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BulkUpload imports contacts from a CSV file field named "file" with
// columns email,name[,phone[,categories[,tags]]]. Each row succeeds or
// fails independently; the response reports per-row results.
func (h *Handler) BulkUpload(c *gin.Context) {
	p := middleware.Principal(c)
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing csv file")
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var results []RowResult
	created := 0
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			results = append(results, RowResult{Row: row, OK: false, Error: "malformed csv row"})
			continue
		}
		if row == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "email") {
			continue // header
		}
		if len(record) < 2 || strings.TrimSpace(record[0]) == "" {
			results = append(results, RowResult{Row: row, OK: false, Error: "email and name are required"})
			continue
		}
		ct := &models.Contact{
			TenantID: *p.TenantID,
			Email:    strings.TrimSpace(record[0]),
			FullName: strings.TrimSpace(record[1]),
		}
		if len(record) > 2 {
			ct.Phone = strings.TrimSpace(record[2])
		}
		if len(record) > 3 && record[3] != "" {
			ct.Categories = splitList(record[3])
		}
		if len(record) > 4 && record[4] != "" {
			ct.Tags = splitList(record[4])
		}
		if err := h.repo.Create(c.Request.Context(), ct); err != nil {
			msg := "failed to create contact"
			if errors.Is(err, ErrDuplicateEmail) {
				msg = "duplicate email"
			}
			results = append(results, RowResult{Row: row, Email: ct.Email, OK: false, Error: msg})
			continue
		}
		created++
		results = append(results, RowResult{Row: row, Email: ct.Email, OK: true})
	}
	response.OK(c, gin.H{"created": created, "results": results})
}

func splitList(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Export streams the tenant's contacts as CSV.
func (h *Handler) Export(c *gin.Context) {
	p := middleware.Principal(c)
	list, err := h.repo.ListAll(c.Request.Context(), *p.TenantID)
	if err != nil {
		response.Internal(c, "failed to export contacts")
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="contacts.csv"`)
	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"email", "name", "phone", "categories", "tags", "invited", "responded", "avg_nps", "avg_rating"})
	for i := range list {
		ct := &list[i]
		_ = w.Write([]string{
			ct.Email,
			ct.FullName,
			ct.Phone,
			strings.Join(ct.Categories, ";"),
			strings.Join(ct.Tags, ";"),
			strconv.Itoa(ct.Stats.InvitedCount),
			strconv.Itoa(ct.Stats.RespondedCount),
			formatFloat(ct.Stats.AvgNPSScore),
			formatFloat(ct.Stats.AvgRating),
		})
	}
	w.Flush()
	c.Status(http.StatusOK)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}

// CreateCategory adds a contact category.
func (h *Handler) CreateCategory(c *gin.Context) {
	p := middleware.Principal(c)
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	cat := &models.Category{TenantID: *p.TenantID, Name: req.Name}
	if err := h.repo.CreateCategory(c.Request.Context(), cat); err != nil {
		response.Conflict(c, "category name already in use")
		return
	}
	response.Created(c, cat)
}

// ListCategories returns the tenant's categories.
func (h *Handler) ListCategories(c *gin.Context) {
	p := middleware.Principal(c)
	list, err := h.repo.ListCategories(c.Request.Context(), *p.TenantID)
	if err != nil {
		response.Internal(c, "failed to list categories")
		return
	}
	response.OK(c, list)
}

// DeleteCategory removes a category.
func (h *Handler) DeleteCategory(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid category id")
		return
	}
	ok, err := h.repo.DeleteCategory(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.Internal(c, "failed to delete category")
		return
	}
	if !ok {
		response.NotFound(c, "category not found")
		return
	}
	response.NoContent(c)
}
