package analytics

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/actions"
	"github.com/ratepro/backend/internal/middleware"
	"github.com/ratepro/backend/pkg/response"
)

// Handler serves the tenant analytics endpoints. Everything here is
// read-only aggregation over stored responses and actions.
type Handler struct {
	repo    *Repository
	actions *actions.Repository
	logger  *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(repo *Repository, actionRepo *actions.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, actions: actionRepo, logger: logger}
}

// window is the parsed reporting window of a request.
type window struct {
	From time.Time
	To   time.Time
}

func (w window) previous() window {
	span := w.To.Sub(w.From)
	return window{From: w.From.Add(-span), To: w.From}
}

// parseWindow reads from/to (RFC3339) or days (default 30) query params.
func parseWindow(c *gin.Context) (window, error) {
	now := time.Now().UTC()
	w := window{To: now}

	if s := c.Query("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return w, fmt.Errorf("invalid 'to' timestamp")
		}
		w.To = t.UTC()
	}
	if s := c.Query("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return w, fmt.Errorf("invalid 'from' timestamp")
		}
		w.From = t.UTC()
	} else {
		days := 30
		if s := c.Query("days"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 366 {
				return w, fmt.Errorf("invalid 'days' value")
			}
			days = n
		}
		w.From = w.To.AddDate(0, 0, -days)
	}
	if !w.From.Before(w.To) {
		return w, fmt.Errorf("'from' must precede 'to'")
	}
	return w, nil
}

func parseInterval(c *gin.Context) (string, error) {
	switch s := c.DefaultQuery("interval", IntervalDay); s {
	case IntervalDay, IntervalWeek, IntervalMonth:
		return s, nil
	default:
		return "", fmt.Errorf("interval must be day, week or month")
	}
}

// tenantID resolves the caller's tenant. Analytics is meaningless without
// one, so platform principals must act within a tenant to use it.
func (h *Handler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	p := middleware.Principal(c)
	if p == nil || p.TenantID == nil {
		response.Forbidden(c, response.CodeNoTenantContext, "analytics requires a tenant context")
		return uuid.Nil, false
	}
	return *p.TenantID, true
}

// facts loads the window's facts, also parsing an optional survey_id.
func (h *Handler) facts(c *gin.Context) ([]Fact, window, bool) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return nil, window{}, false
	}
	w, err := parseWindow(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return nil, window{}, false
	}
	q := FactQuery{TenantID: tenantID, From: w.From, To: w.To}
	if s := c.Query("survey_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid survey_id")
			return nil, window{}, false
		}
		q.SurveyID = &id
	}
	facts, err := h.repo.Facts(c.Request.Context(), q)
	if err != nil {
		h.logger.Error("load analytics facts", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return nil, window{}, false
	}
	return facts, w, true
}

// NPS serves the Net Promoter Score summary.
func (h *Handler) NPS(c *gin.Context) {
	facts, w, ok := h.facts(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{"window": w, "nps": ComputeNPS(facts)})
}

// CSI serves the Customer Satisfaction Index summary.
func (h *Handler) CSI(c *gin.Context) {
	facts, w, ok := h.facts(c)
	if !ok {
		return
	}
	maxRating := 5
	if s := c.Query("max_rating"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 10 {
			response.BadRequest(c, "invalid max_rating")
			return
		}
		maxRating = n
	}
	response.OK(c, gin.H{"window": w, "csi": ComputeCSI(facts, maxRating)})
}

// Sentiment serves the tenant-wide sentiment overview.
func (h *Handler) Sentiment(c *gin.Context) {
	facts, w, ok := h.facts(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{"window": w, "sentiment": ComputeSentiment(facts)})
}

// SentimentBySurvey serves the sentiment overview of one survey.
func (h *Handler) SentimentBySurvey(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	surveyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid survey id")
		return
	}
	w, err := parseWindow(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	facts, err := h.repo.Facts(c.Request.Context(), FactQuery{
		TenantID: tenantID, SurveyID: &surveyID, From: w.From, To: w.To,
	})
	if err != nil {
		h.logger.Error("load survey sentiment", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	response.OK(c, gin.H{"window": w, "survey_id": surveyID, "sentiment": ComputeSentiment(facts)})
}

// surveySentimentCell is one survey's row in the heatmap.
type surveySentimentCell struct {
	Survey      SurveyRef          `json:"survey"`
	Total       int                `json:"total"`
	Percentages map[string]float64 `json:"percentages"`
}

// SentimentHeatmap serves the per-survey sentiment distribution grid.
func (h *Handler) SentimentHeatmap(c *gin.Context) {
	facts, w, ok := h.facts(c)
	if !ok {
		return
	}
	tenantID, _ := h.tenantID(c)
	refs, err := h.repo.SurveysWithResponses(c.Request.Context(), tenantID, w.From, w.To)
	if err != nil {
		h.logger.Error("load heatmap surveys", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}

	bySurvey := map[uuid.UUID][]Fact{}
	for _, f := range facts {
		bySurvey[f.SurveyID] = append(bySurvey[f.SurveyID], f)
	}
	cells := make([]surveySentimentCell, 0, len(refs))
	for _, ref := range refs {
		o := ComputeSentiment(bySurvey[ref.ID])
		cells = append(cells, surveySentimentCell{
			Survey:      ref,
			Total:       o.Total,
			Percentages: o.Percentages,
		})
	}
	response.OK(c, gin.H{"window": w, "surveys": cells})
}

// surveyBreakdownRow is one survey's classification counts.
type surveyBreakdownRow struct {
	Survey      SurveyRef `json:"survey"`
	Total       int       `json:"total"`
	Complaints  int       `json:"complaints"`
	Praise      int       `json:"praise"`
	Suggestions int       `json:"suggestions"`
	Flagged     int       `json:"flagged"`
}

// SentimentBreakdown serves per-survey classification counts.
func (h *Handler) SentimentBreakdown(c *gin.Context) {
	facts, w, ok := h.facts(c)
	if !ok {
		return
	}
	tenantID, _ := h.tenantID(c)
	refs, err := h.repo.SurveysWithResponses(c.Request.Context(), tenantID, w.From, w.To)
	if err != nil {
		h.logger.Error("load breakdown surveys", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}

	bySurvey := map[uuid.UUID][]Fact{}
	for _, f := range facts {
		bySurvey[f.SurveyID] = append(bySurvey[f.SurveyID], f)
	}
	rows := make([]surveyBreakdownRow, 0, len(refs))
	for _, ref := range refs {
		o := ComputeSentiment(bySurvey[ref.ID])
		rows = append(rows, surveyBreakdownRow{
			Survey:      ref,
			Total:       o.Total,
			Complaints:  o.Complaints,
			Praise:      o.Praise,
			Suggestions: o.Suggestions,
			Flagged:     o.Flagged,
		})
	}
	response.OK(c, gin.H{"window": w, "surveys": rows})
}

// SatisfactionTrend serves average rating/score per interval.
func (h *Handler) SatisfactionTrend(c *gin.Context) {
	interval, err := parseInterval(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	facts, w, ok := h.facts(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{"window": w, "interval": interval,
		"points": ComputeSatisfactionTrend(facts, interval)})
}

// VolumeTrend serves the gap-filled response count series.
func (h *Handler) VolumeTrend(c *gin.Context) {
	interval, err := parseInterval(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	facts, w, ok := h.facts(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{"window": w, "interval": interval,
		"points": ComputeVolumeTrend(facts, interval, w.From, w.To)})
}

// ComplaintTrends serves per-category action movement between the current
// and previous windows.
func (h *Handler) ComplaintTrends(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	w, err := parseWindow(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	prev := w.previous()
	current, err := h.repo.ActionCountsByCategory(c.Request.Context(), tenantID, w.From, w.To)
	if err != nil {
		h.logger.Error("load complaint trends", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	previous, err := h.repo.ActionCountsByCategory(c.Request.Context(), tenantID, prev.From, prev.To)
	if err != nil {
		h.logger.Error("load complaint trends", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	response.OK(c, gin.H{"window": w, "previous_window": prev,
		"categories": ComputeComplaintTrends(current, previous)})
}

// Engagement serves the submission-time histograms.
func (h *Handler) Engagement(c *gin.Context) {
	facts, w, ok := h.facts(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{"window": w, "engagement": ComputeEngagement(facts)})
}

// CompareTrend serves the current window against the preceding one of
// equal length.
func (h *Handler) CompareTrend(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	w, err := parseWindow(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	prev := w.previous()
	current, err := h.repo.Facts(c.Request.Context(), FactQuery{TenantID: tenantID, From: w.From, To: w.To})
	if err != nil {
		h.logger.Error("load comparison facts", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	previous, err := h.repo.Facts(c.Request.Context(), FactQuery{TenantID: tenantID, From: prev.From, To: prev.To})
	if err != nil {
		h.logger.Error("load comparison facts", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	response.OK(c, gin.H{"window": w, "previous_window": prev,
		"comparison": Compare(current, previous)})
}

// AllTrends bundles every trend series in one payload for dashboards that
// render them together.
func (h *Handler) AllTrends(c *gin.Context) {
	interval, err := parseInterval(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	facts, w, ok := h.facts(c)
	if !ok {
		return
	}
	tenantID, _ := h.tenantID(c)
	prev := w.previous()
	currentActions, err := h.repo.ActionCountsByCategory(c.Request.Context(), tenantID, w.From, w.To)
	if err != nil {
		h.logger.Error("load trend actions", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	previousActions, err := h.repo.ActionCountsByCategory(c.Request.Context(), tenantID, prev.From, prev.To)
	if err != nil {
		h.logger.Error("load trend actions", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	response.OK(c, gin.H{
		"window":       w,
		"interval":     interval,
		"satisfaction": ComputeSatisfactionTrend(facts, interval),
		"volume":       ComputeVolumeTrend(facts, interval, w.From, w.To),
		"complaints":   ComputeComplaintTrends(currentActions, previousActions),
		"engagement":   ComputeEngagement(facts),
	})
}

// actionWidget is the dashboard's open-action severity summary.
type actionWidget struct {
	Severity string `json:"severity"`
	Priority string `json:"priority"`
	Open     int    `json:"open"`
}

// Executive serves the headline dashboard: NPS, CSI, sentiment, volume
// and action health in one payload.
func (h *Handler) Executive(c *gin.Context) {
	facts, w, ok := h.facts(c)
	if !ok {
		return
	}
	tenantID, _ := h.tenantID(c)
	dash, err := h.actions.Dashboard(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("load action dashboard", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}

	sentiment := ComputeSentiment(facts)
	widgets := make([]actionWidget, 0, len(dash.OpenByPriority))
	for _, priority := range []string{"high", "medium", "low"} {
		if n, exists := dash.OpenByPriority[priority]; exists {
			widgets = append(widgets, actionWidget{
				Severity: severityFor(priority),
				Priority: priority,
				Open:     n,
			})
		}
	}
	var slaOnTime *float64
	if dash.Resolved > 0 {
		v := round1(100 * float64(dash.ResolvedOnTime) / float64(dash.Resolved))
		slaOnTime = &v
	}

	response.OK(c, gin.H{
		"window":    w,
		"responses": len(facts),
		"nps":       ComputeNPS(facts),
		"csi":       ComputeCSI(facts, 5),
		"sentiment": gin.H{
			"distribution": sentiment.Distribution,
			"percentages":  sentiment.Percentages,
			"flagged":      sentiment.Flagged,
		},
		"actions": gin.H{
			"open":                 widgets,
			"overdue":              dash.Overdue,
			"sla_on_time_pct":      slaOnTime,
			"avg_resolution_hours": dash.AvgResolveHours,
		},
	})
}

func severityFor(priority string) string {
	switch priority {
	case "high":
		return "critical"
	case "medium":
		return "warning"
	default:
		return "info"
	}
}

// Alerts serves what needs attention now: flagged responses in the window
// and overdue actions.
func (h *Handler) Alerts(c *gin.Context) {
	facts, w, ok := h.facts(c)
	if !ok {
		return
	}
	tenantID, _ := h.tenantID(c)
	overdue, err := h.actions.OverdueBefore(c.Request.Context(), tenantID, time.Now().UTC())
	if err != nil {
		h.logger.Error("load overdue actions", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}

	flagged := 0
	complaints := 0
	for _, f := range facts {
		if f.Flagged {
			flagged++
		}
		if f.IsComplaint {
			complaints++
		}
	}
	response.OK(c, gin.H{
		"window":            w,
		"flagged_responses": flagged,
		"complaints":        complaints,
		"overdue_actions":   overdue,
	})
}

// Export streams the window's response facts as CSV.
func (h *Handler) Export(c *gin.Context) {
	facts, w, ok := h.facts(c)
	if !ok {
		return
	}

	filename := fmt.Sprintf("analytics_%s_%s.csv",
		w.From.Format("20060102"), w.To.Format("20060102"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	cw := csv.NewWriter(c.Writer)
	_ = cw.Write([]string{"survey_id", "submitted_at", "score", "rating",
		"completion_time", "sentiment", "complaint", "praise", "suggestion", "flagged"})
	for _, f := range facts {
		_ = cw.Write([]string{
			f.SurveyID.String(),
			f.SubmittedAt.UTC().Format(time.RFC3339),
			formatIntPtr(f.Score),
			formatIntPtr(f.Rating),
			formatIntPtr(f.CompletionTime),
			f.Sentiment,
			strconv.FormatBool(f.IsComplaint),
			strconv.FormatBool(f.IsPraise),
			strconv.FormatBool(f.IsSuggestion),
			strconv.FormatBool(f.Flagged),
		})
	}
	cw.Flush()
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
