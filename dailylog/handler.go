package dailylog

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"yukti-backend/records"
)

// ActiveLister supplies the denominator of the adherence score.
type ActiveLister interface {
	Active(ctx context.Context) ([]records.ActiveMedication, error)
}

type Handler struct {
	svc  *Service
	meds ActiveLister
}

func NewHandler(svc *Service, meds ActiveLister) *Handler { return &Handler{svc: svc, meds: meds} }

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/logs", h.rangeLogs)
	r.GET("/logs/:date", h.get)
	r.POST("/logs/:date/meds/:name/toggle", h.toggle)
	r.PUT("/logs/:date/wellness", h.wellness)
}

// rangeLogs defaults to the last 30 days.
func (h *Handler) rangeLogs(c *gin.Context) {
	to := c.DefaultQuery("to", h.svc.Today())
	from := c.Query("from")
	if from == "" {
		end, err := time.Parse("2006-01-02", to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidDate.Error()})
			return
		}
		from = records.DateKey(end.AddDate(0, 0, -29))
	}
	ctx := c.Request.Context()
	active, err := h.meds.Active(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logs, err := h.svc.Range(ctx, from, to)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	days, err := h.svc.Calendar(ctx, from, to, len(active))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "logs": logs, "days": days})
}

func (h *Handler) get(c *gin.Context) {
	log, err := h.svc.Get(c.Request.Context(), c.Param("date"))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, log)
}

func (h *Handler) toggle(c *gin.Context) {
	log, err := h.svc.ToggleMed(c.Request.Context(), c.Param("date"), c.Param("name"))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, log)
}

func (h *Handler) wellness(c *gin.Context) {
	var w Wellness
	if err := c.ShouldBindJSON(&w); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log, err := h.svc.SaveWellness(c.Request.Context(), c.Param("date"), w)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, log)
}

func statusOf(err error) int {
	if errors.Is(err, ErrInvalidDate) || errors.Is(err, ErrRangeTooLong) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
