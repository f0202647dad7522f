package assessment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"yukti-backend/risk"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/assessment", h.get)
	r.PUT("/assessment", h.save)
	r.DELETE("/assessment", h.reset)
	r.GET("/assessment/questions", h.questions)
}

func (h *Handler) get(c *gin.Context) {
	snap, err := h.svc.Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

type saveRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
}

func (h *Handler) save(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.svc.Save(c.Request.Context(), req.Answers)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalid) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) reset(c *gin.Context) {
	if err := h.svc.Reset(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) questions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": risk.Questions, "categories": h.svc.table.Categories})
}
