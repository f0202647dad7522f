// Package stats aggregates the patient state into the dashboard payload.
package stats

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"yukti-backend/assessment"
	"yukti-backend/dailylog"
	"yukti-backend/history"
	"yukti-backend/meds"
	"yukti-backend/records"
	"yukti-backend/risk"
)

// DashboardResponse is the response of GET /dashboard.
type DashboardResponse struct {
	Risk           RiskStats            `json:"risk"`
	Medications    MedicationStats      `json:"medications"`
	Reports        ReportStats          `json:"reports"`
	Timeline       []dailylog.Day       `json:"timeline"`
	LatestSummary  *records.Summary     `json:"latestSummary"`
	RecentActivity []RecentActivityItem `json:"recent_activity"`
}

type RiskStats struct {
	Tier       risk.Tier            `json:"tier"`
	Label      string               `json:"label"`
	Total      int                  `json:"total"`
	MaxTotal   int                  `json:"maxTotal"`
	Complete   bool                 `json:"complete"`
	Categories []risk.CategoryScore `json:"categories"`
}

type MedicationStats struct {
	Active     int                `json:"active"`
	Archived   int                `json:"archived"`
	TakenToday int                `json:"takenToday"`
	Today      dailylog.Adherence `json:"today"`
}

type ReportStats struct {
	Total             int    `json:"total"`
	LastReportDate    string `json:"lastReportDate,omitempty"`
	AbnormalBiomarker int    `json:"abnormalBiomarkers"`
}

type RecentActivityItem struct {
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// TimelineDays is the length of the adherence timeline.
const TimelineDays = 7

type Handler struct {
	assessment *assessment.Service
	meds       *meds.Service
	logs       *dailylog.Service
	history    *history.Service
}

func NewHandler(a *assessment.Service, m *meds.Service, l *dailylog.Service, h *history.Service) *Handler {
	return &Handler{assessment: a, meds: m, logs: l, history: h}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/dashboard", h.dashboard)
}

func (h *Handler) dashboard(c *gin.Context) {
	resp, err := h.Build(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// Build assembles the dashboard from every service.
func (h *Handler) Build(ctx context.Context) (DashboardResponse, error) {
	var resp DashboardResponse

	snap, err := h.assessment.Get(ctx)
	if err != nil {
		return resp, err
	}
	p := snap.Scores
	resp.Risk = RiskStats{Tier: p.Tier, Label: p.RiskLabel, Total: p.Total, MaxTotal: p.MaxTotal, Complete: p.Complete, Categories: p.Categories}

	all, err := h.meds.List(ctx)
	if err != nil {
		return resp, err
	}
	for _, m := range all {
		if m.IsActive() {
			resp.Medications.Active++
		} else {
			resp.Medications.Archived++
		}
	}

	today := h.logs.Today()
	log, err := h.logs.Get(ctx, today)
	if err != nil {
		return resp, err
	}
	resp.Medications.TakenToday = len(log.MedsTaken)
	if resp.Medications.Today, err = h.logs.Adherence(ctx, today, resp.Medications.Active); err != nil {
		return resp, err
	}

	end, _ := time.Parse("2006-01-02", today)
	from := records.DateKey(end.AddDate(0, 0, -(TimelineDays - 1)))
	if resp.Timeline, err = h.logs.Calendar(ctx, from, today, resp.Medications.Active); err != nil {
		return resp, err
	}

	reports, err := h.history.All(ctx)
	if err != nil {
		return resp, err
	}
	resp.Reports.Total = len(reports)
	if len(reports) > 0 {
		latest := reports[0]
		resp.Reports.LastReportDate = latest.Meta.ReportDate
		for _, b := range latest.Biomarkers {
			if b.Abnormal() {
				resp.Reports.AbnormalBiomarker++
			}
		}
	}
	resp.RecentActivity = recentActivity(reports, 5)

	if sum, ok, err := h.history.LatestSummary(ctx); err != nil {
		return resp, err
	} else if ok {
		resp.LatestSummary = &sum
	}
	return resp, nil
}

func recentActivity(reports []records.AnalysisRecord, limit int) []RecentActivityItem {
	items := make([]RecentActivityItem, 0, limit)
	for _, r := range reports {
		if len(items) == limit {
			break
		}
		title := r.Meta.ReportType
		if title == "" {
			title = "Report"
		}
		items = append(items, RecentActivityItem{Type: "report", Title: title, Description: r.Summary, Timestamp: r.Timestamp})
	}
	return items
}
