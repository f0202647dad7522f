// Package sse writes server-sent events to a gin response.
package sse

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Done is the final event of every stream.
const Done = "[DONE]"

// Stream writes each message of ch as an event of "data:" lines:
//
//	data: <message>\n\n
//
// and finishes with:
//
//	data: [DONE]\n\n
//
// ch is always drained so its producer never blocks.
func Stream(c *gin.Context, ch <-chan string) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		for range ch {
		}
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	for msg := range ch {
		writeEvent(c.Writer, msg)
		flusher.Flush()
	}
	writeEvent(c.Writer, Done)
	flusher.Flush()
}

// writeEvent frames msg as one event. Each line keeps its trailing newline inside its
// own data field, so a client concatenating the fields gets msg back.
func writeEvent(w io.Writer, msg string) {
	var b strings.Builder
	for _, line := range strings.SplitAfter(msg, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(w, b.String())
}

// JSON encodes v as a single-line event payload.
func JSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return string(b)
}
