package analyze

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"yukti-backend/models"
	"yukti-backend/prompts"
	"yukti-backend/reconcile"
	"yukti-backend/sse"
)

type Handler struct {
	pipeline  *Pipeline
	timeout   time.Duration
	maxUpload int64
	logger    *zap.Logger
}

func NewHandler(p *Pipeline, timeout time.Duration, maxUpload int64, logger *zap.Logger) *Handler {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pipeline: p, timeout: timeout, maxUpload: maxUpload, logger: logger}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/analyze", h.Analyze)
	r.POST("/analyze/stream", h.Stream)
}

// readRequest parses the multipart form: file, clinicalContext, historyContext, mode.
func (h *Handler) readRequest(c *gin.Context) (Request, error) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	req := Request{
		Mode:            prompts.ParseMode(c.PostForm("mode")),
		ClinicalContext: c.PostForm("clinicalContext"),
		HistoryContext:  c.PostForm("historyContext"),
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, &ValidationError{Msg: "File too large"}
		}
		return req, nil
	}
	f, err := fh.Open()
	if err != nil {
		return req, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return req, err
	}
	mime := fh.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	req.File = &models.Attachment{Name: fh.Filename, MimeType: mime, Data: data}
	return req, nil
}

// Analyze answers {result, modelUsed}.
func (h *Handler) Analyze(c *gin.Context) {
	req, err := h.readRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.pipeline.Run(ctx, req, nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	body := gin.H{"result": res.Payload(), "modelUsed": res.ModelUsed}
	if len(res.Warnings) > 0 {
		body["warnings"] = res.Warnings
	}
	c.JSON(http.StatusOK, body)
}

// Stream reports pipeline stages as events, then the same body Analyze returns.
func (h *Handler) Stream(c *gin.Context) {
	req, err := h.readRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if req.Mode == prompts.ModeDocument && req.File == nil {
		h.fail(c, &ValidationError{Msg: "No file provided"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)

	ch := make(chan string, 8)
	go func() {
		defer close(ch)
		defer cancel()
		res, err := h.pipeline.Run(ctx, req, func(e Event) { ch <- sse.JSON(e) })
		if err != nil {
			status, body := errorBody(err)
			body["stage"] = "error"
			body["status"] = status
			ch <- sse.JSON(body)
			return
		}
		ch <- sse.JSON(gin.H{"stage": "result", "result": res.Payload(), "modelUsed": res.ModelUsed})
	}()
	sse.Stream(c, ch)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("analyze request failed", zap.Error(err))
	}
	c.JSON(status, body)
}

func errorBody(err error) (int, gin.H) {
	var (
		verr  *ValidationError
		perr  *reconcile.ParseError
		afail *models.AnalysisFailure
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, gin.H{"error": verr.Msg}
	case errors.As(err, &perr):
		return http.StatusInternalServerError, gin.H{"error": "Failed to parse Summary JSON", "raw": perr.Raw}
	case errors.As(err, &afail):
		return http.StatusInternalServerError, gin.H{"error": "Failed to analyze the report.", "details": afail.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"error": "Failed to analyze the report.", "details": err.Error()}
	}
}
