package meds

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"yukti-backend/records"
	"yukti-backend/store"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/medications", h.list)
	r.POST("/medications", h.add)
	r.PUT("/medications/:name", h.update)
	r.POST("/medications/:name/archive", h.archive)
	r.POST("/medications/:name/restore", h.restore)
}

func (h *Handler) list(c *gin.Context) {
	var (
		items []records.ActiveMedication
		err   error
	)
	if c.Query("status") == "active" {
		items, err = h.svc.Active(c.Request.Context())
	} else {
		items, err = h.svc.List(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) add(c *gin.Context) {
	var m records.ActiveMedication
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.Add(c.Request.Context(), m)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) update(c *gin.Context) {
	var m records.ActiveMedication
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if m.Name == "" {
		m.Name = c.Param("name")
	}
	out, err := h.svc.Update(c.Request.Context(), c.Param("name"), m)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) archive(c *gin.Context) {
	if err := h.svc.Archive(c.Request.Context(), c.Param("name")); err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": records.StatusArchived})
}

func (h *Handler) restore(c *gin.Context) {
	if err := h.svc.Restore(c.Request.Context(), c.Param("name")); err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": records.StatusActive})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
