package export

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"yukti-backend/dailylog"
	"yukti-backend/meds"
	"yukti-backend/records"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	meds   *meds.Service
	logs   *dailylog.Service
	logger *zap.Logger
}

func NewHandler(m *meds.Service, l *dailylog.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{meds: m, logs: l, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/export/adherence.xlsx", h.adherence)
}

// adherence exports the last 30 days unless from/to are given.
func (h *Handler) adherence(c *gin.Context) {
	ctx := c.Request.Context()
	to := c.DefaultQuery("to", h.logs.Today())
	from := c.Query("from")
	if from == "" {
		end, err := time.Parse("2006-01-02", to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": dailylog.ErrInvalidDate.Error()})
			return
		}
		from = records.DateKey(end.AddDate(0, 0, -29))
	}

	all, err := h.meds.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	active := 0
	for _, m := range all {
		if m.IsActive() {
			active++
		}
	}
	logs, err := h.logs.Range(ctx, from, to)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, dailylog.ErrInvalidDate) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	data, err := Adherence(Workbook{Medications: all, Logs: logs, ActiveCount: active})
	if err != nil {
		h.logger.Error("adherence export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=adherence-"+from+"-"+to+".xlsx")
	c.Data(http.StatusOK, xlsxContentType, data)
}
